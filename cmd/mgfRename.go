/*
Copyright © 2025 Godwin Mafireyi (mafireyi@gmail.com)
*/
package cmd

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/gmaffy/search-whisperer/mgf"
	"github.com/spf13/cobra"
)

// mgfRenameCmd represents the mgfRename command
var mgfRenameCmd = &cobra.Command{
	Use:   "mgfRename -i <mgf> [-o <renamed mgf>]",
	Short: "Makes spectrum titles unique",
	Long: `Copies an MGF file, renaming the second spectrum titled T to T_2, the third
to T_3 and so on. Suffixes already used by other spectra are skipped.`,
	Run: func(cmd *cobra.Command, args []string) {
		input, iErr := cmd.Flags().GetString("input")
		if iErr != nil {
			log.Fatalf("Error getting input flag: %v", iErr)
		}

		output, oErr := cmd.Flags().GetString("out")
		if oErr != nil {
			log.Fatalf("Error getting out flag: %v", oErr)
		}

		if input == "" {
			log.Fatalf("Provide an MGF file (-i)")
		}
		if output == "" {
			ext := filepath.Ext(input)
			output = strings.TrimSuffix(input, ext) + "_renamed" + ext
		}

		n, err := mgf.RenameDuplicateTitles(input, output)
		if err != nil {
			log.Fatalf("Error renaming titles in %s: %v", input, err)
		}
		fmt.Printf("Renamed %d spectra, wrote %s\n", n, output)
	},
}

func init() {
	rootCmd.AddCommand(mgfRenameCmd)

	mgfRenameCmd.Flags().StringP("input", "i", "", "MGF file")
	mgfRenameCmd.Flags().StringP("out", "o", "", "Output MGF (default: <name>_renamed.mgf)")
}

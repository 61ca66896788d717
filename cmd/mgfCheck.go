/*
Copyright © 2025 Godwin Mafireyi (mafireyi@gmail.com)
*/
package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/gmaffy/search-whisperer/mgf"
	"github.com/spf13/cobra"
)

// mgfCheckCmd represents the mgfCheck command
var mgfCheckCmd = &cobra.Command{
	Use:   "mgfCheck -i <mgf>...",
	Short: "Reports MGF problems that make search engines fail",
	Long: `Counts spectra without a title, without a precursor charge or without peaks,
and duplicate titles. Exits with status 1 when a file cannot be searched as is.`,
	Run: func(cmd *cobra.Command, args []string) {
		inputs, iErr := cmd.Flags().GetStringSlice("input")
		if iErr != nil {
			log.Fatalf("Error getting input flag: %v", iErr)
		}
		if len(inputs) == 0 {
			log.Fatalf("Provide at least one MGF file (-i)")
		}

		bad := 0
		for _, in := range inputs {
			report, err := mgf.Check(in)
			if err != nil {
				log.Fatalf("Error checking %s: %v", in, err)
			}
			fmt.Println(report)
			if !report.OK() {
				bad++
			}
		}
		if bad > 0 {
			fmt.Printf("%d file(s) need fixing; duplicate titles can be fixed with mgfRename\n", bad)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(mgfCheckCmd)

	mgfCheckCmd.Flags().StringSliceP("input", "i", []string{}, "MGF files")
}

/*
Copyright © 2025 Godwin Mafireyi (mafireyi@gmail.com)
*/
package cmd

import (
	"fmt"
	"log"

	"github.com/gmaffy/search-whisperer/mgf"
	"github.com/spf13/cobra"
)

// mgfMergeCmd represents the mgfMerge command
var mgfMergeCmd = &cobra.Command{
	Use:   "mgfMerge -i <mgf>... -o <merged mgf>",
	Short: "Concatenates MGF files into one",
	Run: func(cmd *cobra.Command, args []string) {
		inputs, iErr := cmd.Flags().GetStringSlice("input")
		if iErr != nil {
			log.Fatalf("Error getting input flag: %v", iErr)
		}

		output, oErr := cmd.Flags().GetString("out")
		if oErr != nil {
			log.Fatalf("Error getting out flag: %v", oErr)
		}

		if len(inputs) < 2 || output == "" {
			log.Fatalf("Provide at least two MGF files (-i) and an output file (-o)")
		}

		n, err := mgf.Merge(inputs, output)
		if err != nil {
			log.Fatalf("Error merging MGF files: %v", err)
		}
		fmt.Printf("Wrote %d spectra from %d files to %s\n", n, len(inputs), output)
	},
}

func init() {
	rootCmd.AddCommand(mgfMergeCmd)

	mgfMergeCmd.Flags().StringSliceP("input", "i", []string{}, "MGF files to merge")
	mgfMergeCmd.Flags().StringP("out", "o", "", "Merged MGF file")
}

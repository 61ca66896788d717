/*
Copyright © 2025 Godwin Mafireyi (mafireyi@gmail.com)
*/
package cmd

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/gmaffy/search-whisperer/mgf"
	"github.com/spf13/cobra"
)

// mgfSplitCmd represents the mgfSplit command
var mgfSplitCmd = &cobra.Command{
	Use:   "mgfSplit -i <mgf> -n <spectra per file> [-o <out dir>]",
	Short: "Splits an MGF file into <name>_1.mgf, <name>_2.mgf, ...",
	Run: func(cmd *cobra.Command, args []string) {
		input, iErr := cmd.Flags().GetString("input")
		if iErr != nil {
			log.Fatalf("Error getting input flag: %v", iErr)
		}

		outDir, oErr := cmd.Flags().GetString("out")
		if oErr != nil {
			log.Fatalf("Error getting out flag: %v", oErr)
		}

		maxSpectra, nErr := cmd.Flags().GetInt("spectra")
		if nErr != nil {
			log.Fatalf("Error getting spectra flag: %v", nErr)
		}

		if input == "" {
			log.Fatalf("Provide an MGF file (-i)")
		}
		if outDir == "" {
			outDir = filepath.Dir(input)
		}

		chunks, err := mgf.Split(input, outDir, maxSpectra)
		if err != nil {
			log.Fatalf("Error splitting %s: %v", input, err)
		}
		for _, c := range chunks {
			fmt.Println(c)
		}
		fmt.Printf("Split %s into %d files\n", input, len(chunks))
	},
}

func init() {
	rootCmd.AddCommand(mgfSplitCmd)

	mgfSplitCmd.Flags().StringP("input", "i", "", "MGF file to split")
	mgfSplitCmd.Flags().StringP("out", "o", "", "Output directory (default: next to the input)")
	mgfSplitCmd.Flags().IntP("spectra", "n", 25000, "Maximum spectra per file")
}

/*
Copyright © 2025 Godwin Mafireyi (mafireyi@gmail.com)
*/
package cmd

import (
	"fmt"
	"log"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gmaffy/search-whisperer/mgf"
	"github.com/spf13/cobra"
	"golang.org/x/exp/maps"
)

// mgfStatsCmd represents the mgfStats command
var mgfStatsCmd = &cobra.Command{
	Use:   "mgfStats -i <mgf> [-o <out dir>]",
	Short: "Summarises an MGF file: precursor m/z, peak counts and charges",
	Long: `Prints precursor and peak count statistics and writes:

1. <name>_spectra.csv, one row per spectrum
2. <name>_stats.html, charge and precursor m/z histograms`,
	Run: func(cmd *cobra.Command, args []string) {
		input, iErr := cmd.Flags().GetString("input")
		if iErr != nil {
			log.Fatalf("Error getting input flag: %v", iErr)
		}

		outDir, oErr := cmd.Flags().GetString("out")
		if oErr != nil {
			log.Fatalf("Error getting out flag: %v", oErr)
		}

		if input == "" {
			log.Fatalf("Provide an MGF file (-i)")
		}
		if outDir == "" {
			outDir = filepath.Dir(input)
		}

		summary, err := mgf.Summarize(input)
		if err != nil {
			log.Fatalf("Error reading %s: %v", input, err)
		}

		fmt.Printf("Spectra:      %d\n", summary.Spectra)
		fmt.Printf("Precursor m/z min %.2f  median %.2f  mean %.2f  max %.2f  sd %.2f\n",
			summary.PrecursorMZ.Min, summary.PrecursorMZ.Median, summary.PrecursorMZ.Mean,
			summary.PrecursorMZ.Max, summary.PrecursorMZ.StdDev)
		fmt.Printf("Peaks         min %.0f  median %.0f  mean %.1f  max %.0f\n",
			summary.PeakCount.Min, summary.PeakCount.Median, summary.PeakCount.Mean, summary.PeakCount.Max)

		charges := maps.Keys(summary.Charges)
		slices.Sort(charges)
		for _, z := range charges {
			label := mgf.FormatCharge(z)
			if z == 0 {
				label = "unknown"
			}
			fmt.Printf("Charge %-7s %d\n", label, summary.Charges[z])
		}

		base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
		csvPath := filepath.Join(outDir, base+"_spectra.csv")
		htmlPath := filepath.Join(outDir, base+"_stats.html")
		if err := mgf.WriteReport(summary, csvPath, htmlPath); err != nil {
			log.Fatalf("Error writing report: %v", err)
		}
		fmt.Printf("Wrote %s and %s\n", csvPath, htmlPath)
	},
}

func init() {
	rootCmd.AddCommand(mgfStatsCmd)

	mgfStatsCmd.Flags().StringP("input", "i", "", "MGF file")
	mgfStatsCmd.Flags().StringP("out", "o", "", "Output directory (default: next to the input)")
}

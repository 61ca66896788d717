/*
Copyright © 2025 Godwin Mafireyi (mafireyi@gmail.com)
*/
package cmd

import (
	"fmt"
	"log"

	"github.com/gmaffy/search-whisperer/fasta"
	"github.com/spf13/cobra"
)

// createDecoyCmd represents the createDecoy command
var createDecoyCmd = &cobra.Command{
	Use:   "createDecoy -i <fasta> [-o <target-decoy fasta>] [args]",
	Short: "Appends decoy sequences to a protein database",
	Long: `Writes every target sequence followed by one decoy per target. Decoys are
reversed sequences, or shuffled ones with --shuffle, and their accession
carries the decoy tag (default _REVERSED).`,
	Run: func(cmd *cobra.Command, args []string) {
		input, iErr := cmd.Flags().GetString("input")
		if iErr != nil {
			log.Fatalf("Error getting input flag: %v", iErr)
		}

		output, oErr := cmd.Flags().GetString("out")
		if oErr != nil {
			log.Fatalf("Error getting out flag: %v", oErr)
		}

		tag, tErr := cmd.Flags().GetString("tag")
		if tErr != nil {
			log.Fatalf("Error getting tag flag: %v", tErr)
		}

		shuffle, shErr := cmd.Flags().GetBool("shuffle")
		if shErr != nil {
			log.Fatalf("Error getting shuffle flag: %v", shErr)
		}

		seed, seErr := cmd.Flags().GetUint64("seed")
		if seErr != nil {
			log.Fatalf("Error getting seed flag: %v", seErr)
		}

		if input == "" {
			log.Fatalf("Provide a FASTA file (-i)")
		}
		if output == "" {
			output = fasta.DecoyName(input)
		}

		has, err := fasta.HasDecoys(input, tag)
		if err != nil {
			log.Fatalf("Error reading %s: %v", input, err)
		}
		if has {
			log.Fatalf("%s already has sequences tagged %s", input, tag)
		}

		stats, err := fasta.CreateDecoy(input, output, fasta.DecoyOptions{Tag: tag, Shuffle: shuffle, Seed: seed})
		if err != nil {
			log.Fatalf("Error creating decoys: %v", err)
		}
		fmt.Printf("Wrote %d targets and %d decoys to %s\n", stats.Targets, stats.Decoys, output)
	},
}

func init() {
	rootCmd.AddCommand(createDecoyCmd)

	createDecoyCmd.Flags().StringP("input", "i", "", "Target FASTA file")
	createDecoyCmd.Flags().StringP("out", "o", "", "Output FASTA (default: <name>_concatenated_target_decoy.fasta)")
	createDecoyCmd.Flags().StringP("tag", "t", fasta.DefaultDecoyTag, "Suffix added to decoy accessions")
	createDecoyCmd.Flags().Bool("shuffle", false, "Shuffle residues instead of reversing them")
	createDecoyCmd.Flags().Uint64("seed", 1, "Seed for --shuffle")
}

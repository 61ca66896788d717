/*
Copyright © 2025 Godwin Mafireyi (mafireyi@gmail.com)
*/
package cmd

import (
	"fmt"
	"log"

	"github.com/gmaffy/search-whisperer/engines"
	"github.com/gmaffy/search-whisperer/utils"
	"github.com/spf13/cobra"
)

// writeParamsCmd represents the writeParams command
var writeParamsCmd = &cobra.Command{
	Use:   "writeParams [-o <params yaml>] [--config-file]",
	Short: "Writes default search parameters (and config) to edit",
	Run: func(cmd *cobra.Command, args []string) {
		output, oErr := cmd.Flags().GetString("out")
		if oErr != nil {
			log.Fatalf("Error getting out flag: %v", oErr)
		}

		withConfig, cErr := cmd.Flags().GetBool("config-file")
		if cErr != nil {
			log.Fatalf("Error getting config-file flag: %v", cErr)
		}

		if err := engines.DefaultParameters().Save(output); err != nil {
			log.Fatalf("Error writing %s: %v", output, err)
		}
		fmt.Printf("Wrote search parameters to %s\n", output)

		if withConfig {
			path := configPath()
			if utils.FileExists(path) {
				log.Fatalf("%s already exists", path)
			}
			if err := utils.DefaultConfig().Save(path); err != nil {
				log.Fatalf("Error writing %s: %v", path, err)
			}
			fmt.Printf("Wrote config to %s\n", path)
		}
	},
}

func init() {
	rootCmd.AddCommand(writeParamsCmd)

	writeParamsCmd.Flags().StringP("out", "o", "search_parameters.yaml", "Search parameters file")
	writeParamsCmd.Flags().Bool("config-file", false, "Also write a default config file to --config")
}

/*
Copyright © 2025 Godwin Mafireyi (mafireyi@gmail.com)
*/
package cmd

import (
	"log"
	"os"

	"github.com/gmaffy/search-whisperer/utils"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "search-whisperer",
	Short: "Runs proteomics search engines on MS/MS spectra",
	Long: `A command line front end for proteomics search engines:
1.	Tool checks: OMSSA, X!Tandem, MS-GF+, MS Amanda, MyriMatch, Comet, Tide, Andromeda
2.	Searches: one or more engines on MGF or raw files, resumable
3.	MGF utils: merge, split, rename duplicate titles, check, statistics
4.	Target/decoy FASTA databases
5.	PeptideShaker updates from Maven
`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

var cfgFile string

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to config file (default is the user config dir)")
}

// configPath is the --config flag or the default preferences file.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return utils.DefaultConfigPath()
}

func loadConfig() utils.Config {
	cfg, err := utils.LoadConfig(configPath())
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	return cfg
}

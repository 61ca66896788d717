/*
Copyright © 2025 Godwin Mafireyi (mafireyi@gmail.com)
*/
package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gmaffy/search-whisperer/engines"
	"github.com/gmaffy/search-whisperer/search"
	"github.com/spf13/cobra"
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search -f <fasta> -s <mgf>... -o <out dir> [args]",
	Short: "Searches MS/MS spectra against a protein database with one or more engines",
	Long: `Runs the following pipeline:

1. msconvert on raw files (-R) to create MGF files
2. checks the MGF files, renames duplicate titles and splits large files
3. appends reversed decoys to the FASTA when it has none (--decoys)
4. formats the database for the engines that need it (OMSSA, Tide)
5. every selected engine on every MGF file, -j at a time
6. zips the results (--zip) and builds a PeptideShaker project (--peptideshaker)

Steps logged as COMPLETED in <out dir>/search.log are not run again.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		spectra, sErr := cmd.Flags().GetStringSlice("spectra")
		if sErr != nil {
			log.Fatalf("Error getting spectra flag: %v", sErr)
		}

		raw, rErr := cmd.Flags().GetStringSlice("raw")
		if rErr != nil {
			log.Fatalf("Error getting raw flag: %v", rErr)
		}

		fastaFile, fErr := cmd.Flags().GetString("fasta")
		if fErr != nil {
			log.Fatalf("Error getting fasta flag: %v", fErr)
		}

		outDir, outErr := cmd.Flags().GetString("out")
		if outErr != nil {
			log.Fatalf("Error getting output directory flag: %v", outErr)
		}

		engineIDs, eErr := cmd.Flags().GetStringSlice("engines")
		if eErr != nil {
			log.Fatalf("Error getting engines flag: %v", eErr)
		}

		paramsFile, pErr := cmd.Flags().GetString("params")
		if pErr != nil {
			log.Fatalf("Error getting params flag: %v", pErr)
		}

		if cmd.Flags().Changed("jobs") {
			jobs, jErr := cmd.Flags().GetInt("jobs")
			if jErr != nil {
				log.Fatalf("Error getting jobs flag: %v", jErr)
			}
			cfg.Jobs = jobs
		}
		if cmd.Flags().Changed("threads") {
			threads, tErr := cmd.Flags().GetInt("threads")
			if tErr != nil {
				log.Fatalf("Error getting threads flag: %v", tErr)
			}
			cfg.Threads = threads
		}
		for flag, target := range map[string]*bool{
			"decoys":        &cfg.CreateDecoys,
			"zip":           &cfg.ZipResults,
			"peptideshaker": &cfg.PeptideShaker,
		} {
			if cmd.Flags().Changed(flag) {
				v, err := cmd.Flags().GetBool(flag)
				if err != nil {
					log.Fatalf("Error getting %s flag: %v", flag, err)
				}
				*target = v
			}
		}
		if cmd.Flags().Changed("split") {
			split, spErr := cmd.Flags().GetInt("split")
			if spErr != nil {
				log.Fatalf("Error getting split flag: %v", spErr)
			}
			cfg.MaxSpectraPerFile = split
		}

		params := engines.DefaultParameters()
		if paramsFile != "" {
			var err error
			if params, err = engines.LoadParameters(paramsFile); err != nil {
				log.Fatalf("Error loading search parameters: %v", err)
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		h := &search.Handler{
			Config: cfg,
			Params: params,
			Runner: search.ExecRunner{},
			Logger: slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})),
		}
		summary, err := h.Run(ctx, search.Request{
			Spectra:   spectra,
			Raw:       raw,
			Fasta:     fastaFile,
			OutputDir: outDir,
			Engines:   engineIDs,
		})

		fmt.Printf("\n----------------------------------------------------------\n\n")
		for _, s := range summary.Skipped {
			fmt.Printf("%-12s skipped\n", s)
		}
		for _, j := range summary.Jobs {
			status := j.Status
			if j.Err != nil {
				status = fmt.Sprintf("%s: %v", j.Status, j.Err)
			}
			fmt.Printf("%-12s %-40s %s\n", j.Engine, j.Spectrum, status)
		}
		if summary.Archive != "" {
			fmt.Printf("Results archive: %s\n", summary.Archive)
		}
		if summary.PeptideShaker != "" {
			fmt.Printf("PeptideShaker project: %s\n", summary.PeptideShaker)
		}
		if err != nil {
			log.Fatalf("Search failed: %v", err)
		}
		fmt.Printf("Search finished, run %s\n", summary.RunID)
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().StringSliceP("spectra", "s", []string{}, "MGF files")
	searchCmd.Flags().StringSliceP("raw", "R", []string{}, "Raw files converted with msconvert")
	searchCmd.Flags().StringP("fasta", "f", "", "Protein database in FASTA format")
	searchCmd.Flags().StringP("out", "o", "", "Output directory (default output_dir from the config)")
	searchCmd.Flags().StringSliceP("engines", "e", []string{}, "Search engines (default engines from the config)")
	searchCmd.Flags().StringP("params", "p", "", "Search parameters YAML file (see writeParams)")
	searchCmd.Flags().IntP("jobs", "j", 1, "Engine processes run side by side")
	searchCmd.Flags().IntP("threads", "t", 1, "Threads per engine process")
	searchCmd.Flags().Int("split", 0, "Split MGF files with more spectra than this")
	searchCmd.Flags().Bool("decoys", false, "Append decoys to the FASTA when it has none")
	searchCmd.Flags().Bool("zip", false, "Zip the results")
	searchCmd.Flags().Bool("peptideshaker", false, "Build a PeptideShaker project from the results")
}

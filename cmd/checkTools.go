/*
Copyright © 2025 Godwin Mafireyi (mafireyi@gmail.com)
*/
package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gmaffy/search-whisperer/advocate"
	"github.com/gmaffy/search-whisperer/toolcheck"
	"github.com/spf13/cobra"
)

// checkToolsCmd represents the checkTools command
var checkToolsCmd = &cobra.Command{
	Use:   "checkTools [-t tool]...",
	Short: "Checks that the configured search engines and helper tools start",
	Long: `For every tool with a folder in the config file:

1. finds the executable in the folder (or its bin/ subfolder)
2. launches it once in its own folder with a check argument
3. reports it as working when it prints nothing unexpected on stderr

Tools that fail are listed with what to do about them.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		tools, tErr := cmd.Flags().GetStringSlice("tool")
		if tErr != nil {
			log.Fatalf("Error getting tool flag: %v", tErr)
		}

		jobs, jErr := cmd.Flags().GetInt("jobs")
		if jErr != nil {
			log.Fatalf("Error getting jobs flag: %v", jErr)
		}

		var advs []advocate.Advocate
		if len(tools) == 0 {
			advs = advocate.All()
		} else {
			for _, t := range tools {
				adv, err := advocate.Lookup(t)
				if err != nil {
					log.Fatalf("%v", err)
				}
				advs = append(advs, adv)
			}
		}

		var checks []toolcheck.Check
		failed := 0
		for _, adv := range advs {
			dir, ok := cfg.ToolDir(adv.ID)
			if !ok {
				if len(tools) > 0 {
					fmt.Printf("%-24s NOT CONFIGURED  set tools.%s in %s\n", adv.Name, adv.ID, configPath())
					failed++
				}
				continue
			}
			exe, err := advocate.ValidateFolder(adv, dir)
			if err != nil {
				fmt.Printf("%-24s NOT FOUND       %v\n", adv.Name, err)
				failed++
				continue
			}
			checks = append(checks, toolcheck.NewCheck(adv, exe, cfg.Java, cfg.CheckTimeoutDuration()))
		}

		if len(checks) == 0 && failed == 0 {
			fmt.Printf("No tools configured. Add tool folders under tools: in %s\n", configPath())
			return
		}

		for _, res := range toolcheck.CheckAll(context.Background(), checks, jobs) {
			if res.Healthy {
				fmt.Printf("%-24s OK              %s (%s)\n", res.Advocate.Name, strings.Join(res.Command, " "), res.Duration.Round(time.Millisecond))
				continue
			}
			failed++
			fmt.Printf("%-24s FAILED          %s\n", res.Advocate.Name, strings.Join(res.Command, " "))
			for _, line := range strings.Split(strings.TrimSpace(res.Output), "\n") {
				fmt.Printf("    | %s\n", line)
			}
			fmt.Printf("    %s\n", res.Remediation)
			fmt.Printf("    Fix the folder with tools.%s in %s\n", res.Advocate.ID, configPath())
		}

		if failed > 0 {
			fmt.Printf("\n%d tool(s) need attention\n", failed)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(checkToolsCmd)

	checkToolsCmd.Flags().StringSliceP("tool", "t", []string{}, "Tools to check (default: every configured tool)")
	checkToolsCmd.Flags().IntP("jobs", "j", 4, "Tools checked side by side")
}

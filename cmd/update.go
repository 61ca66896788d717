/*
Copyright © 2025 Godwin Mafireyi (mafireyi@gmail.com)
*/
package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/gmaffy/search-whisperer/advocate"
	"github.com/gmaffy/search-whisperer/updater"
	"github.com/gmaffy/search-whisperer/utils"
	"github.com/spf13/cobra"
)

// updateCmd represents the update command
var updateCmd = &cobra.Command{
	Use:   "update [-t tool] [-d install dir] [--check]",
	Short: "Installs the latest release of a tool from the Maven repository",
	Long: `Reads maven-metadata.xml for the tool from maven_repo (config file) and,
when the release is newer than the installed one, downloads and unpacks it
under the install directory and points the config file at the new folder.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		tool, tErr := cmd.Flags().GetString("tool")
		if tErr != nil {
			log.Fatalf("Error getting tool flag: %v", tErr)
		}

		installRoot, dErr := cmd.Flags().GetString("dir")
		if dErr != nil {
			log.Fatalf("Error getting dir flag: %v", dErr)
		}

		checkOnly, cErr := cmd.Flags().GetBool("check")
		if cErr != nil {
			log.Fatalf("Error getting check flag: %v", cErr)
		}

		adv, err := advocate.Lookup(tool)
		if err != nil {
			log.Fatalf("%v", err)
		}
		if adv.Maven == nil {
			log.Fatalf("%s is not distributed through Maven", adv.Name)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		client := updater.NewClient(cfg.MavenRepo)
		current, _ := cfg.ToolDir(adv.ID)

		if checkOnly {
			latest, err := client.LatestVersion(ctx, *adv.Maven)
			if err != nil {
				log.Fatalf("Error checking %s: %v", adv.Name, err)
			}
			installed := "not installed"
			if current != "" {
				if v, err := updater.InstalledVersion(current, adv); err == nil {
					installed = v
				}
			}
			fmt.Printf("%s installed: %s, latest: %s\n", adv.Name, installed, latest)
			return
		}

		if installRoot == "" {
			if current != "" {
				installRoot = filepath.Dir(current)
			} else {
				installRoot = filepath.Join(filepath.Dir(configPath()), "tools")
			}
		}

		fmt.Printf("Checking %s for %s ...\n", cfg.MavenRepo, adv.Name)
		res, err := client.Update(ctx, adv, current, installRoot)
		if err != nil {
			log.Fatalf("Update failed: %v", err)
		}
		if !res.Updated {
			fmt.Printf("%s %s is up to date\n", adv.Name, res.Installed)
			return
		}

		saved, err := utils.LoadConfigFile(configPath())
		if err != nil {
			log.Fatalf("Installed %s in %s but could not read the config: %v", res.Latest, res.Folder, err)
		}
		saved.SetToolDir(adv.ID, res.Folder)
		if err := saved.Save(configPath()); err != nil {
			log.Fatalf("Installed %s in %s but could not save the config: %v", res.Latest, res.Folder, err)
		}
		fmt.Printf("Installed %s %s in %s\n", adv.Name, res.Latest, res.Folder)
	},
}

func init() {
	rootCmd.AddCommand(updateCmd)

	updateCmd.Flags().StringP("tool", "t", "peptideshaker", "Tool to update")
	updateCmd.Flags().StringP("dir", "d", "", "Folder the new release is unpacked in (default: next to the current one)")
	updateCmd.Flags().Bool("check", false, "Only print the installed and latest versions")
}

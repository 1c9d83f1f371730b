package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	logFile    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "igcrawl",
	Short: "Collect Instagram posts by hashtag",
	Long: `igcrawl collects recent Instagram posts for one or more hashtags and
writes them, joined with their authors' profiles, to JSON files.

Features:
  - Cursor-based hashtag feed pagination with capacity and recency limits
  - Multi-hashtag search returning only posts tagged with every hashtag
  - Owner profile caching with bounded retry under rate limiting
  - Secure credential storage using the system keychain
  - CSV export of collected results

Credentials come from stored accounts ('igcrawl auth login'), a Netscape
cookies.txt file, environment variables, or a config file.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is $HOME/.igcrawl.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file")

	rootCmd.SetVersionTemplate(`igcrawl {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// printError writes a consistent error line for command surfaces
func printError(title, detail string) {
	if detail != "" {
		fmt.Fprintf(os.Stderr, "Error: %s: %s\n", title, detail)
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %s\n", title)
}

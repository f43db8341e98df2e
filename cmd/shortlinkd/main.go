// Command shortlinkd runs the URL-shortener redirect service and its
// admin API, and provides a migrate subcommand for the PostgreSQL and
// MySQL backends.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "shortlinkd",
	Short: "Short-link redirect service",
	Long: `shortlinkd serves HTTP 307 redirects for short codes backed by
SQLite, PostgreSQL, or MySQL, with a layered in-process cache, an
asynchronous click accumulator, and a bearer-token-guarded admin API for
link and runtime-configuration management.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to an optional YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("shortlinkd %s (built %s, commit %s)\n", version, buildTime, gitCommit)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

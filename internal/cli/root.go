// Package cli implements the majordomo command line interface.
package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/majordomo-ai/majordomo/internal/config"
	"github.com/majordomo-ai/majordomo/internal/runtime"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/majordomo-ai/majordomo/internal/cli.version=1.2.3"
	version = "0.3.0"
	logo    = "\n" +
		"  _ __ ___   __ _ (_) ___  _ __ __| | ___  _ __ ___   ___\n" +
		" | '_ ` _ \\ / _` || |/ _ \\| '__/ _` |/ _ \\| '_ ` _ \\ / _ \\\n" +
		" | | | | | | (_| || | (_) | | | (_| | (_) | | | | | | (_) |\n" +
		" |_| |_| |_|\\__,_|/ |\\___/|_|  \\__,_|\\___/|_| |_| |_|\\___/\n" +
		"                |__/\n"
)

var rootCmd = &cobra.Command{
	Use:   "majordomo",
	Short: "majordomo - personal assistant agent runtime",
	Long:  color.CyanString(logo) + "\nA personal assistant runtime: chat, tools, background agents and schedules.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("majordomo %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// openRuntime loads configuration and builds the wired runtime. Every
// command that touches state goes through here.
func openRuntime() (*runtime.Runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return runtime.New(cfg)
}

func printHeader(title string) {
	color.New(color.FgCyan, color.Bold).Println(title)
}

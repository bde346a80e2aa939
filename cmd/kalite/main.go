package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kalite/kalite/cmd"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "kalite",
		Short: "Offline Khan Academy content server",
		Long: `A CLI application that imports local content into the KA Lite topic tree and serves it.
`,
		SilenceErrors: true,
	}

	// Parse persistent flags
	rootCmd.PersistentFlags().StringVar(&cmd.FlagConfigFolder, "config-dir", cmd.FlagConfigFolder, "Config folder")
	rootCmd.PersistentFlags().StringVar(&cmd.FlagConfigFile, "config", cmd.FlagConfigFile, "Config file")
	rootCmd.PersistentFlags().StringVar(&cmd.FlagLogFile, "log", cmd.FlagLogFile, "Log file")
	rootCmd.PersistentFlags().CountVarP(&cmd.FlagLogLevel, "verbose", "v", "Verbose level")

	rootCmd.PersistentFlags().BoolVar(&cmd.FlagDryRun, "dry-run", false, "Dry run mode")

	rootCmd.AddCommand(cmd.ContentCommand())
	rootCmd.AddCommand(cmd.ServeCommand())
	rootCmd.AddCommand(cmd.UpdateCommand())
	rootCmd.AddCommand(cmd.VersionCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

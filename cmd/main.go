package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tablekv/internal/config"
	"tablekv/internal/db"
	"tablekv/internal/shell"
)

const version = "0.1.0"

var (
	configPath string
	dataDir    string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "tablekv",
	Short: "An embedded, filesystem-backed key-value store",
	Long: `tablekv is an embedded key-value storage engine organized by namespace
and table, with write-ahead logging, expiring entries and segment compaction.`,
	RunE: runShell,
}

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start the interactive shell",
	RunE:  runShell,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the tablekv version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tablekv %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVarP(&dataDir, "dir", "d", "kvstore", "storage root directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.AddCommand(shellCmd, versionCmd)
}

func runShell(cmd *cobra.Command, args []string) error {
	conf, err := loadConfig()
	if err != nil {
		return err
	}

	database, err := db.Open(conf)
	if err != nil {
		return err
	}
	defer database.Close()

	return shell.New(database, os.Stdin, os.Stdout).Run()
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		conf, err := config.FromFile(configPath)
		if err != nil {
			return nil, err
		}
		if logLevel != "" {
			conf.LogLevel = logLevel
		}
		return conf, nil
	}

	conf := config.New(dataDir)
	if logLevel != "" {
		conf.LogLevel = logLevel
	}
	return conf, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Package cli implements the gridsub command line interface.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/gridsub/gridsub/pkg/config"
	"github.com/gridsub/gridsub/pkg/logger"
)

var (
	cfg        *config.Config
	log        *logger.Logger
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "gridsub",
	Short: "Submit batches of jobs and workflows to an HTCondor pool",
	Long: "gridsub builds submit and workflow descriptors from a YAML manifest,\n" +
		"stages input files into the distributed store, and hands the result\n" +
		"to the scheduler.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var path string
		var err error
		cfg, path, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		level := cfg.LogLevel
		if verbose {
			level = "DEBUG"
		}
		parsed, err := logger.ParseLevel(level)
		if err != nil {
			return err
		}
		log = logger.NewWithConfig(logger.Config{Level: parsed, Output: os.Stderr})
		if path != "" {
			log.Debug("loaded configuration", "path", path)
		}
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to configuration file (searches common locations if not specified)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging")

	rootCmd.AddCommand(newSubmitCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newVersionCmd())
}

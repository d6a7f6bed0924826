package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lenhanpham/gaussian-extractor/internal/config"
	"github.com/lenhanpham/gaussian-extractor/internal/ui"
)

var (
	forceCreate bool

	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
		Long: `Show the effective configuration or create a default configuration file.

The file is searched in the current directory, $HOME and /etc/gaussian_extractor
as .gaussian_extractor.yaml. Environment variables prefixed with
GAUSSIAN_EXTRACTOR_ override file values.`,
	}

	configShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if configErr != nil {
				return fmt.Errorf("configuration error: %w", configErr)
			}
			config.Show(outWriter())
			return nil
		},
	}

	configCreateCmd = &cobra.Command{
		Use:   "create [path]",
		Short: "Write a default configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			} else {
				p, err := config.DefaultPath()
				if err != nil {
					return fmt.Errorf("cannot determine the default path, pass one explicitly: %w", err)
				}
				path = p
			}
			if err := config.Create(path, forceCreate); err != nil {
				return err
			}
			ui.PrintSuccess(outWriter(), "Configuration written to %s", path)
			return nil
		},
	}

	configPathCmd = &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file in use",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			if p := config.Path(); p != "" {
				fmt.Fprintln(outWriter(), p)
				return
			}
			fmt.Fprintln(outWriter(), "No configuration file found; using defaults")
		},
	}
)

func init() {
	configCreateCmd.Flags().BoolVar(&forceCreate, "force", false, "Overwrite an existing file")
	configCmd.AddCommand(configShowCmd, configCreateCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}

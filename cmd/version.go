package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lenhanpham/gaussian-extractor/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		w := outWriter()
		fmt.Fprintln(w, version.HeaderInfo())
		fmt.Fprintf(w, "Build time: %s\n", version.BuildTime)
		fmt.Fprintf(w, "Repository: %s\n", version.Repository)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

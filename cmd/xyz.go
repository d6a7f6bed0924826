package cmd

import (
	"github.com/spf13/cobra"

	"github.com/lenhanpham/gaussian-extractor/internal/coord"
	"github.com/lenhanpham/gaussian-extractor/internal/stringsutil"
	"github.com/lenhanpham/gaussian-extractor/internal/ui"
)

var (
	fileList string

	xyzCmd = &cobra.Command{
		Use:   "xyz",
		Short: "Extract final coordinates to XYZ files",
		Long: `Write the last standard orientation (or input orientation) of each log as an
XYZ file. Finished jobs go to <dir>_final_coord, all others to
<dir>_running_coord.`,
		Args: cobra.NoArgs,
		RunE: runXYZ,
	}
)

func init() {
	xyzCmd.Flags().StringVar(&fileList, "files", "", "Comma separated log files to convert instead of the whole directory")
	rootCmd.AddCommand(xyzCmd)
}

func runXYZ(cmd *cobra.Command, _ []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	sp := ui.NewSpinnerTo(errWriter(), "Extracting coordinates...")
	if s.quiet {
		sp.Start()
	}
	summary, err := coord.Run(cmd.Context(), coord.Options{
		Dir:           s.dir,
		Extension:     s.extension,
		Files:         stringsutil.SplitNonEmpty(fileList, ","),
		Threads:       s.threads,
		MaxFileSizeMB: s.maxFileSizeMB,
		BatchSize:     batchSize,
		FileHandles:   s.fileHandles,
		Resources:     s.resources,
		Quiet:         s.quiet,
		Out:           outWriter(),
	})
	sp.Stop()
	if err != nil {
		return err
	}
	if s.quiet && summary.Failed > 0 {
		ui.PrintWarning(errWriter(), "%d files failed", summary.Failed)
	}
	return nil
}

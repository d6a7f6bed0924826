package cmd

import (
	"github.com/spf13/cobra"

	"github.com/lenhanpham/gaussian-extractor/internal/config"
	"github.com/lenhanpham/gaussian-extractor/internal/jobcheck"
	"github.com/lenhanpham/gaussian-extractor/internal/ui"
)

var (
	targetDir   string
	dirSuffix   string
	showDetails bool

	doneCmd = newCheckCmd(jobcheck.KindDone, "done",
		"Move completed jobs to <dir>-done",
		"Move jobs whose log ends in normal termination, with their input and checkpoint\n"+
			"files, into <dir>-<suffix>.")
	errorsCmd = newCheckCmd(jobcheck.KindErrors, "errors",
		"Move error-terminated jobs to errorJobs/",
		"Move jobs that stopped with an error termination, with their input and\n"+
			"checkpoint files, into errorJobs/.")
	pcmCmd = newCheckCmd(jobcheck.KindPCM, "pcm",
		"Move PCM convergence failures to PCMMkU/",
		"Move jobs that failed in PCMMkU, with their input and checkpoint files, into PCMMkU/.")
	imodeCmd = newCheckCmd(jobcheck.KindImaginary, "imode",
		"Move jobs with imaginary frequencies to <dir>-imaginary",
		"Move jobs whose frequency lines contain a negative value, with their input and\n"+
			"checkpoint files, into <dir>-imaginary.")
	checkCmd = newCheckCmd(jobcheck.KindAll, "check",
		"Run done, errors and pcm in a single pass",
		"Classify every log once and move completed, error and PCM-failed jobs into\n"+
			"their directories.")
)

func newCheckCmd(kind jobcheck.Kind, use, short, long string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long:  long,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd, kind)
		},
	}
	f := cmd.Flags()
	if kind != jobcheck.KindAll {
		f.StringVar(&targetDir, "target-dir", "", "Destination directory name instead of the default")
	}
	if kind == jobcheck.KindDone || kind == jobcheck.KindAll {
		f.StringVar(&dirSuffix, "dir-suffix", "", "Suffix of the completed-jobs directory (default done)")
	}
	f.BoolVar(&showDetails, "show-details", false, "Print the error message of each moved job")
	return cmd
}

func init() {
	rootCmd.AddCommand(doneCmd, errorsCmd, pcmCmd, imodeCmd, checkCmd)
}

func runCheck(cmd *cobra.Command, kind jobcheck.Kind) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	opts := jobcheck.Options{
		Dir:             s.dir,
		Extension:       s.extension,
		InputExtensions: config.Extensions(s.cfg.InputExtensions),
		Threads:         s.threads,
		MaxFileSizeMB:   s.maxFileSizeMB,
		BatchSize:       batchSize,
		FileHandles:     s.fileHandles,
		Resources:       s.resources,
		TargetDir:       targetDir,
		DirSuffix:       dirSuffix,
		ErrorDir:        s.cfg.ErrorDirectoryName,
		PCMDir:          s.cfg.PCMDirectoryName,
		LogOnly:         !s.cfg.MoveRelatedFiles,
		Quiet:           s.quiet,
		ShowDetails:     showDetails,
		Out:             outWriter(),
		ErrOut:          errWriter(),
	}
	if kind == jobcheck.KindAll {
		opts.TargetDir = ""
	}
	if opts.DirSuffix == "" {
		opts.DirSuffix = s.cfg.DoneDirectorySuffix
	}
	if !cmd.Flags().Changed("show-details") {
		opts.ShowDetails = s.cfg.ShowErrorDetails
	}

	sp := ui.NewSpinnerTo(errWriter(), "Checking jobs...")
	if s.quiet {
		sp.Start()
	}
	summary, err := jobcheck.Run(cmd.Context(), kind, opts)
	sp.Stop()
	if err != nil {
		return err
	}
	if s.quiet && summary.FailedMoves > 0 {
		ui.PrintWarning(errWriter(), "%d jobs could not be moved", summary.FailedMoves)
	}
	return nil
}

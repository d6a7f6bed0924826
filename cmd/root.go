package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lenhanpham/gaussian-extractor/internal/config"
	xglog "github.com/lenhanpham/gaussian-extractor/internal/log"
	"github.com/lenhanpham/gaussian-extractor/internal/resource"
	"github.com/lenhanpham/gaussian-extractor/internal/scheduler"
	"github.com/lenhanpham/gaussian-extractor/internal/version"
)

var (
	cfgFile     string
	workDir     string
	quiet       bool
	extension   string
	threadsFlag string
	maxFileSize int
	batchSize   int
	verbose     bool
	configErr   error

	rootCmd = &cobra.Command{
		Use:   "gaussian-extractor",
		Short: "gaussian-extractor - " + version.Description,
		Long: `gaussian-extractor processes Gaussian log files in batch: it extracts ` +
			`thermodynamic data, sorts jobs by status, combines high-level energies ` +
			`and writes coordinates and new inputs.

Without a subcommand it runs extract in the current directory.`,
		Version:       version.Current().String(),
		Args:          cobra.NoArgs,
		RunE:          runExtract,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
)

// RootCmd exposes the command tree for documentation generation.
func RootCmd() *cobra.Command {
	return rootCmd
}

// Execute runs the command tree; ctx is cancelled on interrupt.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Configuration file path (default searches ., $HOME and /etc/gaussian_extractor)")
	pf.StringVarP(&workDir, "dir", "d", ".", "Directory holding the files to process")
	pf.BoolVarP(&quiet, "quiet", "q", false, "Only print essential output")
	pf.StringVarP(&extension, "ext", "e", "", "Output file extension (default .log, which also matches .out)")
	pf.StringVarP(&threadsFlag, "threads", "n", "", "Worker threads: a number, half or max")
	pf.IntVar(&maxFileSize, "max-file-size", 0, "Skip files larger than this many MB")
	pf.IntVar(&batchSize, "batch-size", 0, "Read directories this many entries at a time (0 reads at once)")
	pf.BoolVar(&verbose, "verbose", false, "Show diagnostic logging")

	addExtractFlags(rootCmd)
}

func initConfig() {
	level := "warn"
	if verbose {
		level = "debug"
	}
	xglog.Configure(xglog.Config{Level: level, Output: errWriter(), Console: true})
	configErr = config.Init(cfgFile)
}

// settings are the values every batch command shares, resolved from flags
// first and the configuration second.
type settings struct {
	cfg           *config.Config
	dir           string
	quiet         bool
	extension     string
	threads       int
	maxFileSizeMB int
	fileHandles   int
	resources     scheduler.Resources
}

func loadSettings(cmd *cobra.Command) (*settings, error) {
	if configErr != nil {
		return nil, fmt.Errorf("configuration error: %w", configErr)
	}
	cfg, err := config.Get()
	if err != nil {
		return nil, err
	}

	s := &settings{
		cfg:           cfg,
		dir:           workDir,
		quiet:         quiet,
		extension:     extension,
		maxFileSizeMB: maxFileSize,
		fileHandles:   cfg.FileHandleLimit,
		resources:     scheduler.Detect(nil),
	}
	if !cmd.Flags().Changed("quiet") {
		s.quiet = cfg.QuietMode
	}
	if s.extension == "" {
		s.extension = cfg.OutputExtension
	}
	if !cmd.Flags().Changed("max-file-size") {
		s.maxFileSizeMB = cfg.MaxFileSizeMB
	}

	requested := threadsFlag
	if strings.TrimSpace(requested) == "" {
		requested = cfg.DefaultThreads
	}
	if s.threads, err = resource.ParseThreads(requested); err != nil {
		return nil, err
	}
	return s, nil
}

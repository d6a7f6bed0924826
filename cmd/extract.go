package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lenhanpham/gaussian-extractor/internal/extract"
	"github.com/lenhanpham/gaussian-extractor/internal/resource"
	"github.com/lenhanpham/gaussian-extractor/internal/scheduler"
	"github.com/lenhanpham/gaussian-extractor/internal/store"
	"github.com/lenhanpham/gaussian-extractor/internal/ui"
)

var (
	temperature   float64
	concentration float64
	sortColumn    int
	outputFormat  string
	useInputTemp  bool
	memoryLimit   int
	resourceInfo  bool
	sqlitePath    string

	extractCmd = &cobra.Command{
		Use:   "extract",
		Short: "Extract thermodynamic data from every log file in the directory",
		Long: `Extract Gibbs free energies, zero-point energies, lowest frequencies and
job status from every Gaussian log file and write them sorted to
<dir>.results (text) or <dir>.csv.`,
		Args: cobra.NoArgs,
		RunE: runExtract,
	}
)

func init() {
	addExtractFlags(extractCmd)
	rootCmd.AddCommand(extractCmd)
}

// addEnergyFlags registers the flags shared by extract and the high-level tables.
func addEnergyFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Float64VarP(&temperature, "temp", "t", 0, "Temperature in K (default 298.15)")
	f.Float64VarP(&concentration, "cm", "c", 0, "Concentration in M for the phase correction (default 1)")
	f.IntVar(&sortColumn, "col", 0, "Sort column of the result table")
	f.StringVarP(&outputFormat, "format", "f", "", "Output format: text or csv")
	f.IntVar(&memoryLimit, "memory-limit", 0, "Memory limit in MB (0 selects one automatically)")
}

func addExtractFlags(cmd *cobra.Command) {
	addEnergyFlags(cmd)
	f := cmd.Flags()
	f.BoolVar(&useInputTemp, "use-input-temp", false, "Use --temp for every file instead of the temperature in the log")
	f.BoolVar(&resourceInfo, "resource-info", false, "Show detected cores, memory and job scheduler limits and exit")
	f.StringVar(&sqlitePath, "sqlite", "", "Also store the results in this SQLite database")
}

type energySettings struct {
	temperature   float64
	concentration float64
	sortColumn    int
	format        string
	memoryLimitMB int
}

func loadEnergySettings(cmd *cobra.Command, s *settings) (energySettings, error) {
	e := energySettings{
		temperature:   temperature,
		concentration: concentration,
		sortColumn:    sortColumn,
		format:        outputFormat,
		memoryLimitMB: memoryLimit,
	}
	if !cmd.Flags().Changed("temp") {
		e.temperature = s.cfg.DefaultTemperature
	}
	if !cmd.Flags().Changed("cm") {
		e.concentration = s.cfg.DefaultConcentration
	}
	if !cmd.Flags().Changed("col") {
		e.sortColumn = s.cfg.DefaultSortColumn
	}
	if e.format == "" {
		e.format = s.cfg.DefaultOutputFormat
	}
	if !cmd.Flags().Changed("memory-limit") {
		e.memoryLimitMB = s.cfg.MemoryLimitMB
	}
	if e.temperature <= 0 {
		return e, fmt.Errorf("temperature must be positive, got %g", e.temperature)
	}
	if e.concentration <= 0 {
		return e, fmt.Errorf("concentration must be positive, got %g", e.concentration)
	}
	return e, nil
}

func runExtract(cmd *cobra.Command, _ []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if resourceInfo {
		printResourceInfo(outWriter(), s)
		return nil
	}
	e, err := loadEnergySettings(cmd, s)
	if err != nil {
		return err
	}

	opts := extract.Options{
		Dir:           s.dir,
		Extension:     s.extension,
		Temperature:   e.temperature,
		UseInputTemp:  useInputTemp || (!cmd.Flags().Changed("use-input-temp") && s.cfg.UseInputTemp),
		Concentration: e.concentration,
		SortColumn:    e.sortColumn,
		Format:        e.format,
		Precision:     s.cfg.DecimalPrecision,
		Threads:       s.threads,
		MaxFileSizeMB: s.maxFileSizeMB,
		MemoryLimitMB: e.memoryLimitMB,
		BatchSize:     batchSize,
		FileHandles:   s.fileHandles,
		Resources:     s.resources,
		Quiet:         s.quiet,
		Out:           outWriter(),
		ErrOut:        errWriter(),
	}
	if !extract.ValidSortColumn(opts.SortColumn) {
		opts.Warnings = append(opts.Warnings,
			fmt.Sprintf("Sort column %d is not sortable; keeping discovery order", opts.SortColumn))
	}

	sp := ui.NewSpinnerTo(errWriter(), "Extracting...")
	if s.quiet {
		sp.Start()
	}
	summary, err := extract.Run(cmd.Context(), opts)
	sp.Stop()
	if err != nil {
		return err
	}
	if len(summary.Errors) > 0 && s.quiet {
		ui.PrintWarning(errWriter(), "%d files could not be processed", len(summary.Errors))
	}

	if sqlitePath != "" {
		if err := saveToStore(cmd.Context(), sqlitePath, opts, summary); err != nil {
			return err
		}
		if !s.quiet {
			ui.PrintSuccess(outWriter(), "Results stored in %s", sqlitePath)
		}
	}
	return nil
}

func saveToStore(ctx context.Context, path string, opts extract.Options, summary *extract.Summary) error {
	db, err := store.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	dir, err := filepath.Abs(summary.Dir)
	if err != nil {
		return err
	}
	run := store.NewRun(dir, summary.RunStarted)
	run.Temperature = opts.Temperature
	run.Concentration = opts.Concentration
	run.FilesTotal = len(summary.Files)
	run.FilesOK = len(summary.Results)
	return db.SaveRun(ctx, run, summary.Results)
}

func printResourceInfo(w io.Writer, s *settings) {
	fmt.Fprint(w, scheduler.Describe(s.resources))
	fmt.Fprintln(w, "=== System Resources ===")
	fmt.Fprintf(w, "CPU cores: %d\n", resource.Cores())
	fmt.Fprintf(w, "System memory: %s\n", resource.FormatBytes(uint64(resource.SystemMemoryMB())*1024*1024))
	fmt.Fprintf(w, "Requested threads: %d\n", s.threads)
	threads := resource.SafeThreadCount(s.threads, s.threads, s.resources)
	fmt.Fprintf(w, "Safe thread count: %d\n", threads)
	limit := resource.SafeMemoryLimit(s.cfg.MemoryLimitMB, threads, s.resources)
	fmt.Fprintf(w, "Memory limit: %s\n", resource.FormatBytes(uint64(limit)*1024*1024))
	fmt.Fprintf(w, "File handle limit: %d\n", s.fileHandles)
	fmt.Fprintln(w, ui.Rule(w, 40))
}

package highlevel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/lenhanpham/gaussian-extractor/internal/discovery"
	"github.com/lenhanpham/gaussian-extractor/internal/fsutil"
	xglog "github.com/lenhanpham/gaussian-extractor/internal/log"
	"github.com/lenhanpham/gaussian-extractor/internal/parallel"
	"github.com/lenhanpham/gaussian-extractor/internal/report"
	"github.com/lenhanpham/gaussian-extractor/internal/resource"
	"github.com/lenhanpham/gaussian-extractor/internal/scheduler"
)

var (
	ErrNoFiles       = errors.New("no matching files found")
	ErrNoResults     = errors.New("no valid results were computed")
	ErrInvalidFormat = errors.New("invalid output format")
)

// Options configures a high-level energy run.
type Options struct {
	Dir       string
	Extension string
	Mode      Mode
	// Temperature in K for low-level files without one.
	Temperature float64
	// Concentration in mol/L.
	Concentration float64
	SortColumn    int
	Format        string

	Threads       int
	MaxFileSizeMB int
	MemoryLimitMB int
	BatchSize     int
	FileHandles   int
	Resources     scheduler.Resources

	Quiet  bool
	Out    io.Writer
	ErrOut io.Writer
}

// Summary describes a finished run.
type Summary struct {
	Files      []string
	Results    []Result
	Threads    int
	PeakMemory uint64
	Warnings   []string
	Errors     []string
	OutputPath string
	Elapsed    time.Duration
}

// OutputPath returns "<dir>-highLevel-kJ" or "<dir>-highLevel-au" with the
// format's extension inside dir.
func OutputPath(dir string, mode Mode, format string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dir, err)
	}
	suffix := "-highLevel-kJ"
	if mode == ModeAU {
		suffix = "-highLevel-au"
	}
	ext := ".results"
	if format == FormatCSV {
		ext = ".csv"
	}
	return filepath.Join(abs, filepath.Base(abs)+suffix+ext), nil
}

// highLevelReserve is the memory reserved per file while it is processed.
const highLevelReserve = 10 * 1024 * 1024

// Run computes high-level energies for every matching file in opts.Dir,
// prints the table and saves it next to the inputs.
func Run(ctx context.Context, opts Options) (*Summary, error) {
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if opts.Extension == "" {
		opts.Extension = ".log"
	}
	if opts.Mode == "" {
		opts.Mode = ModeKJ
	}
	if opts.Format == "" {
		opts.Format = FormatText
	}
	if opts.Concentration <= 0 {
		opts.Concentration = 1
	}
	if opts.Threads <= 0 {
		opts.Threads = parallel.DefaultWorkers()
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.ErrOut == nil {
		opts.ErrOut = io.Discard
	}
	if opts.Format != FormatText && opts.Format != FormatCSV {
		return nil, fmt.Errorf("%w: %q (supported: text, csv)", ErrInvalidFormat, opts.Format)
	}
	logger := xglog.WithComponent("highlevel")
	started := time.Now()

	exts := discovery.ExpandExtensions(opts.Extension)
	found, err := discovery.Find(discovery.Options{
		Dir:        opts.Dir,
		Extensions: exts,
		MaxSizeMB:  opts.MaxFileSizeMB,
		BatchSize:  opts.BatchSize,
	})
	if err != nil {
		return nil, err
	}
	if len(found.Files) == 0 {
		return nil, fmt.Errorf("%w: no %s files in %s", ErrNoFiles, discovery.Describe(exts), opts.Dir)
	}

	out := parallel.NewSyncWriter(opts.Out)
	threads := resource.SafeThreadCount(opts.Threads, len(found.Files), opts.Resources)
	memLimit := resource.SafeMemoryLimit(opts.MemoryLimitMB, threads, opts.Resources)
	monitor := resource.NewMemoryMonitor(memLimit)
	handles := resource.NewFileHandles(opts.FileHandles)
	if !opts.Quiet {
		fmt.Fprintf(out, "Found %d %s files\n", len(found.Files), discovery.Describe(exts))
		fmt.Fprintf(out, "Using: %d threads", threads)
		if threads < opts.Threads {
			fmt.Fprint(out, " (reduced for safety)")
		}
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Max file size limit: %d MB\n", opts.MaxFileSizeMB)
		fmt.Fprintf(out, "Memory limit: %s\n", resource.FormatBytes(uint64(memLimit)*1024*1024))
	}
	logger.Debug().Str("mode", string(opts.Mode)).Int("files", len(found.Files)).Int("threads", threads).Msg("starting high-level run")

	collector := &report.Collector{}
	calcOpts := CalcOptions{Temperature: opts.Temperature, Concentration: opts.Concentration * 1000}
	outcomes, err := parallel.Map(ctx, parallel.NewExecutor(threads), found.Files,
		func(ctx context.Context, file string) (Result, error) {
			release, err := handles.Acquire(ctx)
			if err != nil {
				return Result{}, err
			}
			defer release()
			if !monitor.TryReserve(highLevelReserve) {
				return Result{}, fmt.Errorf("insufficient memory to process %s", file)
			}
			defer monitor.Release(highLevelReserve)
			return Calculate(filepath.Join(opts.Dir, file), calcOpts, collector.Warn)
		}, nil)
	if err != nil {
		return nil, fmt.Errorf("high-level run interrupted: %w", err)
	}

	results := make([]Result, 0, len(outcomes))
	for i, o := range outcomes {
		if o.Err != nil {
			collector.Error(fmt.Sprintf("Error processing %s: %v", found.Files[i], o.Err))
			continue
		}
		results = append(results, o.Value)
	}

	summary := &Summary{
		Files:      found.Files,
		Threads:    threads,
		PeakMemory: monitor.Peak(),
		Warnings:   collector.Warnings(),
		Errors:     collector.Errors(),
	}
	if !opts.Quiet {
		if len(summary.Errors) > 0 {
			fmt.Fprintln(opts.ErrOut, "Errors encountered during processing:")
			for _, e := range summary.Errors {
				fmt.Fprintf(opts.ErrOut, "  %s\n", e)
			}
		}
		if len(summary.Warnings) > 0 {
			fmt.Fprintln(out, "Warnings:")
			for _, w := range summary.Warnings {
				fmt.Fprintf(out, "  %s\n", w)
			}
		}
	}
	if len(results) == 0 {
		return summary, ErrNoResults
	}

	Sort(results, opts.Mode, opts.SortColumn)
	summary.Results = results

	info := SummaryInfo{
		Parent:        filepath.Join("..", results[0].FileName),
		Temperature:   results[0].Temperature,
		Concentration: calcOpts.Concentration,
	}
	var rendered strings.Builder
	if err := Render(&rendered, opts.Mode, opts.Format, info, results); err != nil {
		return summary, err
	}

	path, err := OutputPath(opts.Dir, opts.Mode, opts.Format)
	if err != nil {
		return summary, err
	}
	if err := fsutil.WriteStringAtomic(path, rendered.String()); err != nil {
		return summary, err
	}
	summary.OutputPath = path
	summary.Elapsed = time.Since(started)

	if opts.Quiet {
		fmt.Fprintf(out, "Processed %d/%d files. Results written to %s\n",
			len(results), len(found.Files), filepath.Base(path))
		return summary, nil
	}
	fmt.Fprintf(out, "Successfully processed %d/%d files.\n", len(results), len(found.Files))
	fmt.Fprint(out, rendered.String())
	fmt.Fprintf(out, "\nResults saved to: %s\n", filepath.Base(path))
	fmt.Fprintf(out, "Peak memory usage: %s\n", resource.FormatBytes(monitor.Peak()))
	return summary, nil
}


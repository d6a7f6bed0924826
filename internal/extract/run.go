package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
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
	ErrNoResults     = errors.New("no valid results were extracted")
	ErrInvalidFormat = errors.New("invalid output format")
)

// Options configures a batch extraction.
type Options struct {
	Dir       string
	Extension string
	// Temperature in K, used for files without one or for all files with UseInputTemp.
	Temperature  float64
	UseInputTemp bool
	// Concentration in mol/L.
	Concentration float64
	SortColumn    int
	Format        string
	Precision     int

	Threads       int
	MaxFileSizeMB int
	MemoryLimitMB int
	BatchSize     int
	FileHandles   int
	Resources     scheduler.Resources

	Quiet bool
	// Warnings raised before the run (e.g. while parsing flags) are carried into the report.
	Warnings []string

	Out    io.Writer
	ErrOut io.Writer
}

func (o *Options) defaults() {
	if o.Dir == "" {
		o.Dir = "."
	}
	if o.Extension == "" {
		o.Extension = ".log"
	}
	if o.Temperature <= 0 {
		o.Temperature = 298.15
	}
	if o.Concentration <= 0 {
		o.Concentration = 1
	}
	if o.Format == "" {
		o.Format = FormatText
	}
	if o.Precision <= 0 {
		o.Precision = 6
	}
	if o.Threads <= 0 {
		o.Threads = parallel.DefaultWorkers()
	}
	if o.Out == nil {
		o.Out = io.Discard
	}
	if o.ErrOut == nil {
		o.ErrOut = io.Discard
	}
}

// Summary describes a finished extraction.
type Summary struct {
	RunStarted    time.Time
	Dir           string
	Files         []string
	Results       []Result
	Threads       int
	MemoryLimitMB int
	PeakMemory    uint64
	Warnings      []string
	Errors        []string
	OutputPath    string
	Elapsed       time.Duration
}

// OutputPath returns "<dir name>.results" or "<dir name>.csv" inside dir.
func OutputPath(dir, format string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dir, err)
	}
	ext := ".results"
	if format == FormatCSV {
		ext = ".csv"
	}
	return filepath.Join(abs, filepath.Base(abs)+ext), nil
}

// Run extracts every matching log file in opts.Dir and writes the report.
func Run(ctx context.Context, opts Options) (*Summary, error) {
	opts.defaults()
	logger := xglog.WithComponent("extract")
	started := time.Now()

	if opts.Format != FormatText && opts.Format != FormatCSV {
		return nil, fmt.Errorf("%w: %q (supported: text, csv)", ErrInvalidFormat, opts.Format)
	}

	out := parallel.NewSyncWriter(opts.Out)
	res := opts.Resources
	if !opts.Quiet {
		fmt.Fprint(out, scheduler.Describe(res))
	}

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

	collector := &report.Collector{}
	for _, w := range opts.Warnings {
		collector.Warn(w)
	}
	for _, name := range found.Oversized {
		collector.Warn(fmt.Sprintf("Skipping oversized file: %s (>%d MB)", name, opts.MaxFileSizeMB))
	}

	if len(found.Files) == 0 {
		return nil, fmt.Errorf("%w: no %s files in %s", ErrNoFiles, discovery.Describe(exts), opts.Dir)
	}

	threads := resource.SafeThreadCount(opts.Threads, len(found.Files), res)
	memLimit := resource.SafeMemoryLimit(opts.MemoryLimitMB, threads, res)
	monitor := resource.NewMemoryMonitor(memLimit)
	handles := resource.NewFileHandles(opts.FileHandles)

	if !opts.Quiet {
		printPlan(out, opts, exts, len(found.Files), threads, memLimit, res)
	}
	logger.Debug().Int("files", len(found.Files)).Int("threads", threads).Int("memory_mb", memLimit).Msg("starting extraction")

	parseOpts := ParseOptions{
		Temperature:   opts.Temperature,
		Concentration: opts.Concentration * 1000,
		UseInputTemp:  opts.UseInputTemp,
	}
	total := len(found.Files)
	interval := parallel.ProgressInterval(total)

	outcomes, err := parallel.Map(ctx, parallel.NewExecutor(threads), found.Files,
		func(ctx context.Context, name string) (Result, error) {
			return extractOne(ctx, filepath.Join(opts.Dir, name), parseOpts, monitor, handles, collector)
		},
		func(done int) {
			if !opts.Quiet && done%interval == 0 {
				fmt.Fprintf(out, "Processed %d/%d files (%d%%)\n", done, total, done*100/total)
			}
		})
	if err != nil {
		return nil, fmt.Errorf("extraction interrupted: %w", err)
	}

	results := make([]Result, 0, len(outcomes))
	for i, o := range outcomes {
		if o.Err != nil {
			collector.Error(fmt.Sprintf("Error processing file '%s': %v", found.Files[i], o.Err))
			continue
		}
		results = append(results, o.Value)
	}

	summary := &Summary{
		RunStarted:    started,
		Dir:           opts.Dir,
		Files:         found.Files,
		Threads:       threads,
		MemoryLimitMB: memLimit,
		PeakMemory:    monitor.Peak(),
		Warnings:      collector.Warnings(),
		Errors:        collector.Errors(),
	}

	if len(results) == 0 {
		if len(summary.Errors) > 0 {
			fmt.Fprintln(opts.ErrOut, "\nErrors encountered:")
			for _, e := range summary.Errors {
				fmt.Fprintf(opts.ErrOut, "  %s\n", e)
			}
		}
		return summary, ErrNoResults
	}

	Sort(results, opts.SortColumn)
	summary.Results = results

	path, err := OutputPath(opts.Dir, opts.Format)
	if err != nil {
		return summary, err
	}
	header := HeaderInfo{
		Temperature:   opts.Temperature,
		UseInputTemp:  opts.UseInputTemp,
		Concentration: opts.Concentration * 1000,
		Threads:       threads,
		Processed:     len(results),
		Total:         total,
		PeakMemory:    resource.FormatBytes(monitor.Peak()),
		Warnings:      summary.Warnings,
		Errors:        summary.Errors,
	}

	var rendered strings.Builder
	if err := Render(&rendered, opts.Format, header, results, opts.Precision); err != nil {
		return summary, err
	}
	if err := fsutil.WriteStringAtomic(path, rendered.String()); err != nil {
		return summary, err
	}
	summary.OutputPath = path
	summary.Elapsed = time.Since(started)

	if opts.Quiet {
		fmt.Fprintf(out, "Processed %d/%d files. Results written to %s (execution time: %.1fs)\n",
			len(results), total, filepath.Base(path), summary.Elapsed.Seconds())
		return summary, nil
	}

	fmt.Fprint(out, rendered.String())
	fmt.Fprintf(out, "\nResults written to %s\n", filepath.Base(path))
	fmt.Fprintf(out, "Total execution time: %.3f seconds\n", summary.Elapsed.Seconds())
	fmt.Fprintf(out, "Memory usage: %s\n", monitor.Usage())
	return summary, nil
}

func printPlan(w io.Writer, opts Options, exts []string, files, threads, memLimit int, res scheduler.Resources) {
	fmt.Fprintf(w, "Found %d %s files\n", files, discovery.Describe(exts))

	cores := resource.Cores()
	fmt.Fprintf(w, "System: %d cores detected\n", cores)
	fmt.Fprintf(w, "Requested: %d threads", opts.Threads)
	if opts.Threads == max(cores/2, 1) {
		fmt.Fprint(w, " (default: half cores)")
	}
	fmt.Fprintln(w)

	if res.InJob() {
		fmt.Fprintf(w, "Job scheduler: %s", scheduler.Name(res.Scheduler))
		if res.HasCPULimit {
			fmt.Fprintf(w, " (CPU limit: %d)\n", res.AllocatedCPUs)
		} else {
			fmt.Fprintln(w, " (no CPU limits detected - interactive session)")
		}
	} else {
		fmt.Fprintln(w, "Environment: Interactive/local execution")
	}

	fmt.Fprintf(w, "Using: %d threads", threads)
	switch {
	case threads < opts.Threads:
		fmt.Fprint(w, " (reduced for safety)")
	case threads == opts.Threads:
		fmt.Fprint(w, " (as requested)")
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Max file size limit: %d MB\n", opts.MaxFileSizeMB)
	if opts.MemoryLimitMB > 0 && memLimit < opts.MemoryLimitMB {
		fmt.Fprintf(w, "Note: Memory limit reduced from %d MB to %d MB due to job allocation\n", opts.MemoryLimitMB, memLimit)
	}
	fmt.Fprintf(w, "Memory limit: %s", resource.FormatBytes(uint64(memLimit)*1024*1024))
	if res.HasMemoryLimit {
		fmt.Fprintf(w, " (job allocation: %s)", resource.FormatBytes(uint64(res.AllocatedMemMB)*1024*1024))
	}
	fmt.Fprintln(w)
}

// estimateFallback is the reservation used when a file's size is unknown.
const estimateFallback = 100 * 1024

func extractOne(
	ctx context.Context,
	path string,
	opts ParseOptions,
	monitor *resource.MemoryMonitor,
	handles *resource.FileHandles,
	collector *report.Collector,
) (Result, error) {
	release, err := handles.Acquire(ctx)
	if err != nil {
		return Result{}, err
	}
	defer release()

	estimate := uint64(estimateFallback)
	if info, err := os.Stat(path); err == nil {
		estimate = uint64(info.Size() / 10)
	}
	if !monitor.TryReserve(estimate) {
		return Result{}, fmt.Errorf("insufficient memory to process file: %s", path)
	}
	defer monitor.Release(estimate)

	return ParseFile(path, opts, collector.Warn)
}

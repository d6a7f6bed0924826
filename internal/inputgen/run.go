package inputgen

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/lenhanpham/gaussian-extractor/internal/discovery"
	"github.com/lenhanpham/gaussian-extractor/internal/fsutil"
	xglog "github.com/lenhanpham/gaussian-extractor/internal/log"
	"github.com/lenhanpham/gaussian-extractor/internal/parallel"
	"github.com/lenhanpham/gaussian-extractor/internal/report"
	"github.com/lenhanpham/gaussian-extractor/internal/resource"
	"github.com/lenhanpham/gaussian-extractor/internal/scheduler"
)

// XYZExtension is the geometry file extension read by Run.
const XYZExtension = ".xyz"

// Options configures an input creation run.
type Options struct {
	Dir string
	// Files restricts the run to these XYZ names (relative to Dir).
	Files       []string
	Params      Params
	Threads     int
	FileHandles int
	Resources   scheduler.Resources
	Quiet       bool

	Out io.Writer
}

// Summary counts the outcome of an input creation run.
type Summary struct {
	Total     int
	Processed int
	Created   int
	Skipped   int
	Failed    int
	Errors    []string
	Elapsed   time.Duration
}

// Run renders inputs for every XYZ file in opts.Dir. Existing input files are
// never overwritten.
func Run(ctx context.Context, opts Options) (*Summary, error) {
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if opts.Threads <= 0 {
		opts.Threads = parallel.DefaultWorkers()
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if err := Validate(opts.Params); err != nil {
		return nil, err
	}
	logger := xglog.WithComponent("inputgen")
	started := time.Now()

	files := opts.Files
	if len(files) == 0 {
		found, err := discovery.Find(discovery.Options{Dir: opts.Dir, Extensions: []string{XYZExtension}})
		if err != nil {
			return nil, err
		}
		files = found.Files
	}

	summary := &Summary{Total: len(files)}
	if len(files) == 0 {
		if !opts.Quiet {
			fmt.Fprintf(opts.Out, "No %s files found in %s.\n", XYZExtension, opts.Dir)
		}
		return summary, nil
	}

	threads := resource.SafeThreadCount(opts.Threads, len(files), opts.Resources)
	handles := resource.NewFileHandles(opts.FileHandles)
	if !opts.Quiet {
		fmt.Fprintf(opts.Out, "Found %d %s files\n", len(files), XYZExtension)
		fmt.Fprintf(opts.Out, "Creating %s inputs with %d threads\n", opts.Params.CalcType, threads)
	}
	logger.Debug().Str("calc_type", string(opts.Params.CalcType)).Int("files", len(files)).Msg("starting input creation")

	outcomes, err := parallel.Map(ctx, parallel.NewExecutor(threads), files,
		func(ctx context.Context, name string) ([]Input, error) {
			release, err := handles.Acquire(ctx)
			if err != nil {
				return nil, err
			}
			defer release()
			return Generate(opts.Params, filepath.Join(opts.Dir, name))
		}, nil)
	if err != nil {
		return nil, fmt.Errorf("input creation interrupted: %w", err)
	}

	collector := &report.Collector{}
	for i, o := range outcomes {
		summary.Processed++
		if o.Err != nil {
			summary.Failed++
			collector.Error(fmt.Sprintf("Error creating input for %s: %v", files[i], o.Err))
			continue
		}
		for _, in := range o.Value {
			dest := filepath.Join(opts.Dir, in.Name)
			if fsutil.Exists(dest) {
				summary.Skipped++
				if !opts.Quiet {
					fmt.Fprintf(opts.Out, "%s exists and will not be overwritten.\n", in.Name)
				}
				continue
			}
			if err := fsutil.WriteStringAtomic(dest, in.Content); err != nil {
				summary.Failed++
				collector.Error(fmt.Sprintf("Failed to write %s: %v", in.Name, err))
				continue
			}
			summary.Created++
			if !opts.Quiet {
				fmt.Fprintf(opts.Out, "%s was newly created.\n", in.Name)
			}
		}
	}

	summary.Errors = collector.Errors()
	summary.Elapsed = time.Since(started)
	if !opts.Quiet {
		PrintSummary(opts.Out, summary)
	}
	return summary, nil
}

// PrintSummary writes the closing block of an input creation run.
func PrintSummary(w io.Writer, s *Summary) {
	fmt.Fprintln(w, "\nInput creation completed:")
	fmt.Fprintf(w, "Files processed: %d/%d\n", s.Processed, s.Total)
	fmt.Fprintf(w, "Files created: %d\n", s.Created)
	fmt.Fprintf(w, "Files skipped: %d\n", s.Skipped)
	fmt.Fprintf(w, "Files failed: %d\n", s.Failed)
	fmt.Fprintf(w, "Execution time: %.3f seconds\n", s.Elapsed.Seconds())
	if len(s.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors encountered:")
		for _, e := range s.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
}

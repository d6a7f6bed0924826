package jobcheck

import (
	"context"
	"errors"
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
	"github.com/lenhanpham/gaussian-extractor/internal/ui"
)

// Kind selects which jobs a check run looks for.
type Kind string

const (
	KindDone      Kind = "done"
	KindErrors    Kind = "errors"
	KindPCM       Kind = "pcm"
	KindImaginary Kind = "imode"
	KindAll       Kind = "all"
)

const (
	DefaultDoneSuffix      = "done"
	DefaultErrorDir        = "errorJobs"
	DefaultPCMDir          = "PCMMkU"
	DefaultImaginarySuffix = "imaginary"

	progressEvery = 50
)

var ErrUnknownKind = errors.New("unknown check kind")

// Options configures a check run.
type Options struct {
	Dir             string
	Extension       string
	InputExtensions []string
	Threads         int
	MaxFileSizeMB   int
	BatchSize       int
	FileHandles     int
	Resources       scheduler.Resources

	// TargetDir replaces the default destination directory name.
	TargetDir string
	// DirSuffix names the completed-jobs directory "<dir>-<suffix>".
	DirSuffix string
	ErrorDir  string
	PCMDir    string
	// LogOnly leaves input and checkpoint files in place.
	LogOnly bool

	Quiet       bool
	ShowDetails bool

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
	if o.InputExtensions == nil {
		o.InputExtensions = DefaultInputExtensions
	}
	if o.Threads <= 0 {
		o.Threads = parallel.DefaultWorkers()
	}
	if o.DirSuffix == "" {
		o.DirSuffix = DefaultDoneSuffix
	}
	if o.ErrorDir == "" {
		o.ErrorDir = DefaultErrorDir
	}
	if o.PCMDir == "" {
		o.PCMDir = DefaultPCMDir
	}
	if o.Out == nil {
		o.Out = io.Discard
	}
	if o.ErrOut == nil {
		o.ErrOut = io.Discard
	}
}

// Summary counts what a check run did.
type Summary struct {
	Kind        Kind
	Total       int
	Processed   int
	Matched     int
	Moved       int
	FailedMoves int
	// Counts holds matches per status; only filled for KindAll.
	Counts  map[Status]int
	Errors  []string
	Elapsed time.Duration
}

// targets maps each status a kind collects to its destination directory.
func targets(kind Kind, opts Options, dirName string) (map[Status]string, error) {
	pick := func(def string) string {
		if opts.TargetDir != "" {
			return opts.TargetDir
		}
		return def
	}
	switch kind {
	case KindDone:
		return map[Status]string{StatusCompleted: pick(dirName + "-" + opts.DirSuffix)}, nil
	case KindErrors:
		return map[Status]string{StatusError: pick(opts.ErrorDir)}, nil
	case KindPCM:
		return map[Status]string{StatusPCMFailed: pick(opts.PCMDir)}, nil
	case KindImaginary:
		return map[Status]string{StatusUnknown: pick(dirName + "-" + DefaultImaginarySuffix)}, nil
	case KindAll:
		return map[Status]string{
			StatusCompleted: dirName + "-" + opts.DirSuffix,
			StatusError:     opts.ErrorDir,
			StatusPCMFailed: opts.PCMDir,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// classifier returns the per-file check for kind. For KindImaginary a match is
// reported with StatusUnknown, since frequencies say nothing about termination.
func classifier(kind Kind, inputExts []string) func(path string) (Job, error) {
	switch kind {
	case KindErrors:
		return func(path string) (Job, error) { return CheckError(path, inputExts) }
	case KindPCM:
		return func(path string) (Job, error) { return CheckPCM(path, inputExts) }
	case KindImaginary:
		return func(path string) (Job, error) {
			imaginary, err := HasImaginaryFrequency(path)
			if err != nil || !imaginary {
				return Job{Path: path, Status: StatusRunning}, err
			}
			return Job{Path: path, Status: StatusUnknown, Related: RelatedFiles(path, inputExts)}, nil
		}
	default:
		return func(path string) (Job, error) { return CheckStatus(path, inputExts) }
	}
}

var headlines = map[Kind]string{
	KindDone:      "Checking for completed jobs...",
	KindErrors:    "Checking for error jobs...",
	KindPCM:       "Checking for PCM convergence failures...",
	KindImaginary: "Checking for imaginary frequencies...",
	KindAll:       "Running all job checks in a single pass...",
}

var matchLabels = map[Status]string{
	StatusCompleted: "completed jobs",
	StatusError:     "error jobs",
	StatusPCMFailed: "PCM failed jobs",
	StatusUnknown:   "jobs with imaginary frequencies",
}

// Run classifies every matching file in opts.Dir and moves the jobs selected
// by kind, with their related files, into the kind's directory.
func Run(ctx context.Context, kind Kind, opts Options) (*Summary, error) {
	opts.defaults()
	logger := xglog.WithComponent("jobcheck")
	started := time.Now()

	abs, err := filepath.Abs(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", opts.Dir, err)
	}
	dests, err := targets(kind, opts, filepath.Base(abs))
	if err != nil {
		return nil, err
	}

	out := parallel.NewSyncWriter(opts.Out)
	summary := &Summary{Kind: kind}

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
		if !opts.Quiet {
			fmt.Fprintf(out, "No %s files found in %s.\n", discovery.Describe(exts), opts.Dir)
		}
		return summary, nil
	}
	summary.Total = len(found.Files)

	for status, dir := range dests {
		path := filepath.Join(opts.Dir, dir)
		if err := fsutil.EnsureDir(path); err != nil {
			return nil, fmt.Errorf("create target directory %s: %w", dir, err)
		}
		dests[status] = path
	}

	threads := resource.SafeThreadCount(opts.Threads, len(found.Files), opts.Resources)
	handles := resource.NewFileHandles(opts.FileHandles)
	if !opts.Quiet {
		fmt.Fprintf(out, "Found %d %s files\n", len(found.Files), discovery.Describe(exts))
		fmt.Fprintln(out, headlines[kind])
		fmt.Fprintf(out, "Using %d threads\n", threads)
	}
	logger.Debug().Str("kind", string(kind)).Int("files", len(found.Files)).Int("threads", threads).Msg("starting job check")

	check := classifier(kind, opts.InputExtensions)
	outcomes, err := parallel.Map(ctx, parallel.NewExecutor(threads), found.Files,
		func(ctx context.Context, name string) (Job, error) {
			release, err := handles.Acquire(ctx)
			if err != nil {
				return Job{}, err
			}
			defer release()
			return check(filepath.Join(opts.Dir, name))
		},
		func(done int) {
			if !opts.Quiet && (done%progressEvery == 0 || done == summary.Total) {
				fmt.Fprintf(out, "checking: %d/%d files (%d%%)\n", done, summary.Total, done*100/summary.Total)
			}
		})
	if err != nil {
		return nil, fmt.Errorf("job check interrupted: %w", err)
	}

	collector := &report.Collector{}
	matched := map[Status][]Job{}
	for i, o := range outcomes {
		if o.Err != nil {
			collector.Error(fmt.Sprintf("Error checking %s: %v", found.Files[i], o.Err))
			continue
		}
		summary.Processed++
		if _, ok := dests[o.Value.Status]; ok {
			matched[o.Value.Status] = append(matched[o.Value.Status], o.Value)
			summary.Matched++
		}
	}

	if kind == KindAll {
		summary.Counts = map[Status]int{}
		for _, s := range []Status{StatusCompleted, StatusError, StatusPCMFailed} {
			summary.Counts[s] = len(matched[s])
		}
		if !opts.Quiet {
			fmt.Fprintln(out, "\n=== Classification Results ===")
			fmt.Fprintf(out, "Completed jobs found: %d\n", len(matched[StatusCompleted]))
			fmt.Fprintf(out, "Error jobs found: %d\n", len(matched[StatusError]))
			fmt.Fprintf(out, "PCM failed jobs found: %d\n", len(matched[StatusPCMFailed]))
		}
	}

	for _, status := range []Status{StatusCompleted, StatusError, StatusPCMFailed, StatusUnknown} {
		dest, ok := dests[status]
		if !ok {
			continue
		}
		jobs := matched[status]
		if len(jobs) == 0 {
			if !opts.Quiet && kind != KindAll {
				fmt.Fprintf(out, "No %s found\n", matchLabels[status])
			}
			continue
		}
		if !opts.Quiet {
			if kind != KindAll {
				fmt.Fprintf(out, "Found %d %s\n", len(jobs), matchLabels[status])
			}
			fmt.Fprintf(out, "Moving files to %s/\n", filepath.Base(dest))
		}
		for _, job := range jobs {
			if opts.LogOnly {
				job.Related = nil
			}
			if err := moveJob(job, dest); err != nil {
				summary.FailedMoves++
				collector.Error(fmt.Sprintf("Failed to move files for %s: %v", job.Name(), err))
				logger.Warn().Err(err).Str("file", job.Path).Msg("move failed")
				continue
			}
			summary.Moved++
			printMoved(out, opts, job, dest)
		}
	}

	summary.Errors = collector.Errors()
	summary.Elapsed = time.Since(started)
	if !opts.Quiet {
		PrintSummary(out, summary)
	}
	return summary, nil
}

func printMoved(w io.Writer, opts Options, job Job, dest string) {
	switch job.Status {
	case StatusError:
		if !opts.Quiet || opts.ShowDetails {
			fmt.Fprintf(w, "%s: %s\n", job.Name(), job.Message)
		}
	case StatusPCMFailed:
		if !opts.Quiet {
			fmt.Fprintf(w, "%s %s\n", job.Name(), job.Message)
		}
	case StatusCompleted:
		if !opts.Quiet {
			fmt.Fprintf(w, "%s %s\n", job.Name(), ui.Status("done"))
		}
	default:
		if !opts.Quiet {
			fmt.Fprintf(w, "%s moved to %s\n", job.Name(), filepath.Base(dest))
		}
	}
}

// moveJob moves the log first; companions are only moved once it succeeded.
func moveJob(job Job, dest string) error {
	if _, err := fsutil.MoveFile(job.Path, dest); err != nil {
		return err
	}
	var errs []error
	for _, related := range job.Related {
		if !fsutil.Exists(related) {
			continue
		}
		if _, err := fsutil.MoveFile(related, dest); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var operationNames = map[Kind]string{
	KindDone:      "Job completion check",
	KindErrors:    "Error job check",
	KindPCM:       "PCM failure check",
	KindImaginary: "Imaginary frequency check",
	KindAll:       "All job checks",
}

// PrintSummary writes the closing block of a check run.
func PrintSummary(w io.Writer, s *Summary) {
	fmt.Fprintf(w, "\n%s completed:\n", operationNames[s.Kind])
	fmt.Fprintf(w, "Files processed: %d/%d\n", s.Processed, s.Total)
	fmt.Fprintf(w, "Files matched: %d\n", s.Matched)
	fmt.Fprintf(w, "Files moved: %d\n", s.Moved)
	if s.FailedMoves > 0 {
		fmt.Fprintf(w, "Failed moves: %d\n", s.FailedMoves)
	}
	fmt.Fprintf(w, "Execution time: %.3f seconds\n", s.Elapsed.Seconds())
	if len(s.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors encountered:")
		for _, e := range s.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
}

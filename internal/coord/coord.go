// Package coord extracts the last geometry of Gaussian jobs into XYZ files.
package coord

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lenhanpham/gaussian-extractor/internal/discovery"
	"github.com/lenhanpham/gaussian-extractor/internal/fsutil"
	"github.com/lenhanpham/gaussian-extractor/internal/gaussian"
	xglog "github.com/lenhanpham/gaussian-extractor/internal/log"
	"github.com/lenhanpham/gaussian-extractor/internal/parallel"
	"github.com/lenhanpham/gaussian-extractor/internal/report"
	"github.com/lenhanpham/gaussian-extractor/internal/resource"
	"github.com/lenhanpham/gaussian-extractor/internal/scheduler"
)

const (
	FinalSuffix   = "_final_coord"
	RunningSuffix = "_running_coord"

	headerRows    = 4
	progressEvery = 50
)

var (
	ErrNoOrientation = errors.New("no orientation section found")
	ErrUnterminated  = errors.New("no end delimiter found for orientation section")
	ErrNoAtoms       = errors.New("invalid number of atoms")
)

// Atom is one row of an orientation table, in Angstrom.
type Atom struct {
	Number  int
	X, Y, Z float64
}

// Symbol is the element symbol of the atom.
func (a Atom) Symbol() string {
	return gaussian.ElementSymbol(a.Number)
}

// Geometry is a parsed structure together with the job completion state.
type Geometry struct {
	Atoms     []Atom
	Completed bool
}

type block struct {
	skip   int
	rows   []string
	closed bool
}

// Parse reads the table under the last orientation header of a log file,
// standard or input.
func Parse(path string) (Geometry, error) {
	var current *block

	err := gaussian.Scan(path, func(line string) {
		if strings.Contains(line, "Standard orientation:") || strings.Contains(line, "Input orientation:") {
			current = &block{skip: headerRows}
			return
		}
		if current == nil || current.closed {
			return
		}
		if current.skip > 0 {
			current.skip--
			return
		}
		if strings.Contains(line, "----") {
			current.closed = true
			return
		}
		current.rows = append(current.rows, line)
	})
	if err != nil {
		return Geometry{}, err
	}

	b := current
	if b == nil {
		return Geometry{}, ErrNoOrientation
	}
	if !b.closed {
		return Geometry{}, ErrUnterminated
	}
	if len(b.rows) == 0 {
		return Geometry{}, ErrNoAtoms
	}

	geom := Geometry{Atoms: make([]Atom, 0, len(b.rows))}
	for _, row := range b.rows {
		atom, err := parseRow(row)
		if err != nil {
			return Geometry{}, err
		}
		geom.Atoms = append(geom.Atoms, atom)
	}

	tail, err := gaussian.TailLines(path, 10)
	if err != nil {
		return Geometry{}, err
	}
	for _, line := range tail {
		if strings.Contains(line, "Normal termination of Gaussian") {
			geom.Completed = true
			break
		}
	}
	return geom, nil
}

func parseRow(row string) (Atom, error) {
	fields := strings.Fields(row)
	if len(fields) < 6 {
		return Atom{}, fmt.Errorf("failed to parse coordinate line: %q", row)
	}
	number, err := strconv.Atoi(fields[1])
	if err != nil {
		return Atom{}, fmt.Errorf("failed to parse coordinate line: %q", row)
	}
	var xyz [3]float64
	for i := range xyz {
		v, err := strconv.ParseFloat(fields[3+i], 64)
		if err != nil {
			return Atom{}, fmt.Errorf("failed to parse coordinate line: %q", row)
		}
		xyz[i] = v
	}
	return Atom{Number: number, X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
}

// WriteXYZ renders the geometry in XYZ format with comment as the title line.
func WriteXYZ(w io.Writer, comment string, atoms []Atom) error {
	if _, err := fmt.Fprintf(w, "%d\n%s\n", len(atoms), comment); err != nil {
		return err
	}
	for _, a := range atoms {
		if _, err := fmt.Fprintf(w, "%-10s%20.10f%20.10f%20.10f\n", a.Symbol(), a.X, a.Y, a.Z); err != nil {
			return err
		}
	}
	return nil
}

// XYZName returns "<stem>.xyz", or "<stem><ext>.xyz" when the stem is shared
// by several inputs of the batch.
func XYZName(file string, conflicts map[string]bool) string {
	base := filepath.Base(file)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if conflicts[stem] {
		return base + ".xyz"
	}
	return stem + ".xyz"
}

// Conflicts returns the stems that appear with more than one extension.
func Conflicts(files []string) map[string]bool {
	seen := map[string]int{}
	for _, f := range files {
		base := filepath.Base(f)
		seen[strings.TrimSuffix(base, filepath.Ext(base))]++
	}
	out := map[string]bool{}
	for stem, n := range seen {
		if n > 1 {
			out[stem] = true
		}
	}
	return out
}

// Options configures an XYZ extraction run.
type Options struct {
	Dir       string
	Extension string
	// Files restricts the run to these names (relative to Dir).
	Files         []string
	Threads       int
	MaxFileSizeMB int
	BatchSize     int
	FileHandles   int
	Resources     scheduler.Resources
	Quiet         bool

	Out io.Writer
}

// Summary counts the outcome of an extraction run.
type Summary struct {
	Total          int
	Processed      int
	Extracted      int
	MovedToFinal   int
	MovedToRunning int
	Failed         int
	Errors         []string
	Elapsed        time.Duration
}

type extracted struct {
	name string
	geom Geometry
}

// Run writes one XYZ file per log into "<dir>_final_coord" or
// "<dir>_running_coord" depending on whether the job finished.
func Run(ctx context.Context, opts Options) (*Summary, error) {
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if opts.Extension == "" {
		opts.Extension = ".log"
	}
	if opts.Threads <= 0 {
		opts.Threads = parallel.DefaultWorkers()
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	logger := xglog.WithComponent("coord")
	started := time.Now()

	abs, err := filepath.Abs(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", opts.Dir, err)
	}
	dirName := filepath.Base(abs)

	exts := discovery.ExpandExtensions(opts.Extension)
	files := opts.Files
	if len(files) == 0 {
		found, err := discovery.Find(discovery.Options{
			Dir:        opts.Dir,
			Extensions: exts,
			MaxSizeMB:  opts.MaxFileSizeMB,
			BatchSize:  opts.BatchSize,
		})
		if err != nil {
			return nil, err
		}
		files = found.Files
	}

	out := parallel.NewSyncWriter(opts.Out)
	summary := &Summary{Total: len(files)}
	if len(files) == 0 {
		if !opts.Quiet {
			fmt.Fprintf(out, "No %s files found in %s.\n", discovery.Describe(exts), opts.Dir)
		}
		return summary, nil
	}

	threads := resource.SafeThreadCount(opts.Threads, len(files), opts.Resources)
	handles := resource.NewFileHandles(opts.FileHandles)
	if !opts.Quiet {
		fmt.Fprintf(out, "Found %d %s files\n", len(files), discovery.Describe(exts))
		fmt.Fprintln(out, "Extracting coordinates...")
		fmt.Fprintf(out, "Using %d threads\n", threads)
	}
	logger.Debug().Int("files", len(files)).Int("threads", threads).Msg("starting coordinate extraction")

	outcomes, err := parallel.Map(ctx, parallel.NewExecutor(threads), files,
		func(ctx context.Context, name string) (Geometry, error) {
			release, err := handles.Acquire(ctx)
			if err != nil {
				return Geometry{}, err
			}
			defer release()
			return Parse(filepath.Join(opts.Dir, name))
		},
		func(done int) {
			if !opts.Quiet && (done%progressEvery == 0 || done == len(files)) {
				fmt.Fprintf(out, "Extracting: %d/%d files (%d%%)\n", done, len(files), done*100/len(files))
			}
		})
	if err != nil {
		return nil, fmt.Errorf("coordinate extraction interrupted: %w", err)
	}

	collector := &report.Collector{}
	var ok []extracted
	for i, o := range outcomes {
		summary.Processed++
		if o.Err != nil {
			summary.Failed++
			collector.Error(fmt.Sprintf("Error extracting %s: %v", files[i], o.Err))
			continue
		}
		summary.Extracted++
		ok = append(ok, extracted{name: files[i], geom: o.Value})
	}

	conflicts := Conflicts(files)
	written := map[string]bool{}
	for _, e := range ok {
		xyz := XYZName(e.name, conflicts)
		suffix := RunningSuffix
		if e.geom.Completed {
			suffix = FinalSuffix
		}
		dest := filepath.Join(opts.Dir, dirName+suffix, xyz)
		if written[dest] {
			continue
		}
		if err := writeGeometry(dest, e.name, e.geom); err != nil {
			summary.Failed++
			collector.Error(fmt.Sprintf("Failed to write %s: %v", xyz, err))
			continue
		}
		written[dest] = true
		if e.geom.Completed {
			summary.MovedToFinal++
		} else {
			summary.MovedToRunning++
		}
	}

	summary.Errors = collector.Errors()
	summary.Elapsed = time.Since(started)
	if !opts.Quiet {
		PrintSummary(out, summary)
	}
	return summary, nil
}

func writeGeometry(dest, logName string, geom Geometry) error {
	if err := fsutil.EnsureDir(filepath.Dir(dest)); err != nil {
		return err
	}
	base := filepath.Base(logName)
	comment := strings.TrimSuffix(base, filepath.Ext(base))
	return fsutil.WriteFileAtomic(dest, func(w io.Writer) error {
		return WriteXYZ(w, comment, geom.Atoms)
	})
}

// PrintSummary writes the closing block of an extraction run.
func PrintSummary(w io.Writer, s *Summary) {
	fmt.Fprintln(w, "\nCoordinate extraction completed:")
	fmt.Fprintf(w, "Files processed: %d/%d\n", s.Processed, s.Total)
	fmt.Fprintf(w, "Files extracted: %d\n", s.Extracted)
	fmt.Fprintf(w, "Moved to final: %d\n", s.MovedToFinal)
	fmt.Fprintf(w, "Moved to running: %d\n", s.MovedToRunning)
	fmt.Fprintf(w, "Files failed: %d\n", s.Failed)
	fmt.Fprintf(w, "Execution time: %.3f seconds\n", s.Elapsed.Seconds())
	if len(s.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors encountered:")
		for _, e := range s.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
}

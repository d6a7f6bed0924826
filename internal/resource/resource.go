package resource

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/semaphore"

	"github.com/lenhanpham/gaussian-extractor/internal/scheduler"
)

const (
	MinMemoryMB     = 1024
	MaxMemoryMB     = 32768
	DefaultMemoryMB = 4096

	DefaultFileHandles = 20
)

var (
	hardwareCores  = runtime.NumCPU
	systemMemoryMB = detectSystemMemoryMB
)

// Cores returns the number of logical CPUs, never less than one.
func Cores() int {
	return max(hardwareCores(), 1)
}

// SystemMemoryMB returns total physical memory, or DefaultMemoryMB if it
// cannot be determined.
func SystemMemoryMB() int {
	if mb := systemMemoryMB(); mb > 0 {
		return mb
	}
	return DefaultMemoryMB
}

// ParseThreads interprets a thread request: a positive number, "half" or "max".
func ParseThreads(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "half":
		return max(Cores()/2, 1), nil
	case "max":
		return Cores(), nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid thread count %q: use a positive number, half or max", s)
	}
	return n, nil
}

// SafeThreadCount bounds the requested worker count by machine size, the job
// allocation and the number of files.
func SafeThreadCount(requested, files int, res scheduler.Resources) int {
	cores := Cores()
	threads := requested

	if !(res.InJob() && res.HasCPULimit) {
		var limit int
		switch {
		case cores >= 32:
			limit = min(cores/2, 32)
		case cores >= 16:
			limit = min(cores/2, 16)
		default:
			limit = min(cores, 8)
		}
		if requested > limit {
			threads = limit
		}
	}

	if res.HasCPULimit && res.AllocatedCPUs > 0 {
		threads = min(threads, res.AllocatedCPUs)
	}
	threads = min(threads, files)
	return max(threads, 1)
}

// OptimalMemoryLimit returns a share of system memory scaled by thread count,
// reduced inside a batch job and clamped to [MinMemoryMB, MaxMemoryMB].
func OptimalMemoryLimit(threads int, inJob bool) int {
	var share float64
	switch {
	case threads <= 4:
		share = 0.3
	case threads <= 8:
		share = 0.4
	case threads <= 16:
		share = 0.5
	default:
		share = 0.6
	}
	if inJob {
		share *= 0.7
	}
	return clampMemory(int(float64(SystemMemoryMB()) * share))
}

// SafeMemoryLimit resolves the memory budget in MB. A request of 0 selects
// OptimalMemoryLimit. A job memory allocation caps the budget at 95% of it.
func SafeMemoryLimit(requestedMB, threads int, res scheduler.Resources) int {
	limit := requestedMB
	if limit <= 0 {
		limit = OptimalMemoryLimit(threads, res.InJob())
	}
	if res.HasMemoryLimit && res.AllocatedMemMB > 0 {
		limit = min(limit, res.AllocatedMemMB*95/100)
	}
	return clampMemory(limit)
}

func clampMemory(mb int) int {
	return min(max(mb, MinMemoryMB), MaxMemoryMB)
}

// FormatBytes renders a byte count with binary units.
func FormatBytes(n uint64) string {
	return humanize.IBytes(n)
}

// MemoryMonitor tracks an estimate of the memory used by in-flight work.
type MemoryMonitor struct {
	limit   atomic.Uint64
	current atomic.Uint64
	peak    atomic.Uint64
}

func NewMemoryMonitor(limitMB int) *MemoryMonitor {
	m := &MemoryMonitor{}
	m.SetLimitMB(limitMB)
	return m
}

func (m *MemoryMonitor) SetLimitMB(limitMB int) {
	m.limit.Store(uint64(max(limitMB, 0)) * 1024 * 1024)
}

// TryReserve records n bytes as in use if that stays below the limit.
func (m *MemoryMonitor) TryReserve(n uint64) bool {
	for {
		cur := m.current.Load()
		if cur+n >= m.limit.Load() {
			return false
		}
		if m.current.CompareAndSwap(cur, cur+n) {
			m.bumpPeak(cur + n)
			return true
		}
	}
}

func (m *MemoryMonitor) bumpPeak(v uint64) {
	for {
		p := m.peak.Load()
		if v <= p || m.peak.CompareAndSwap(p, v) {
			return
		}
	}
}

func (m *MemoryMonitor) Release(n uint64) {
	for {
		cur := m.current.Load()
		next := uint64(0)
		if cur > n {
			next = cur - n
		}
		if m.current.CompareAndSwap(cur, next) {
			return
		}
	}
}

func (m *MemoryMonitor) Current() uint64 { return m.current.Load() }
func (m *MemoryMonitor) Peak() uint64    { return m.peak.Load() }
func (m *MemoryMonitor) Limit() uint64   { return m.limit.Load() }

// Usage renders "current (peak: x) / limit".
func (m *MemoryMonitor) Usage() string {
	return fmt.Sprintf("%s (peak: %s) / %s",
		FormatBytes(m.Current()), FormatBytes(m.Peak()), FormatBytes(m.Limit()))
}

// FileHandles bounds the number of files open at once.
type FileHandles struct {
	sem *semaphore.Weighted
}

func NewFileHandles(limit int) *FileHandles {
	if limit <= 0 {
		limit = DefaultFileHandles
	}
	return &FileHandles{sem: semaphore.NewWeighted(int64(limit))}
}

// Acquire blocks until a handle is free and returns its release func.
func (f *FileHandles) Acquire(ctx context.Context) (func(), error) {
	if err := f.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire file handle: %w", err)
	}
	return func() { f.sem.Release(1) }, nil
}

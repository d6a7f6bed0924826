// Package scheduler detects batch job schedulers from the process environment
// and reads the CPU and memory allocation granted to the current job.
package scheduler

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

type Type int

const (
	None Type = iota
	SLURM
	PBS
	SGE
	LSF
	UnknownCluster
)

// Name returns the display name of a scheduler type.
func Name(t Type) string {
	switch t {
	case SLURM:
		return "SLURM"
	case PBS:
		return "PBS/Torque"
	case SGE:
		return "SGE/OGS"
	case LSF:
		return "LSF"
	case UnknownCluster:
		return "Unknown Cluster"
	default:
		return "None"
	}
}

func (t Type) String() string { return Name(t) }

// Resources describes what the scheduler granted to the running job.
type Resources struct {
	Scheduler      Type
	JobID          string
	AllocatedCPUs  int
	AllocatedMemMB int
	HasCPULimit    bool
	HasMemoryLimit bool
	Nodes          int
	TasksPerNode   int
	Partition      string
	Account        string
}

// InJob reports whether the process runs under any scheduler.
func (r Resources) InJob() bool {
	return r.Scheduler != None
}

// Env looks up an environment variable; an empty result means unset.
type Env func(key string) string

// OSEnv reads the real process environment.
var OSEnv Env = os.Getenv

// DetectType determines which scheduler, if any, launched the process.
func DetectType(env Env) Type {
	switch {
	case env("SLURM_JOB_ID") != "":
		return SLURM
	case env("PBS_JOBID") != "" || env("PBS_JOB_ID") != "":
		return PBS
	case env("JOB_ID") != "" || env("SGE_JOB_ID") != "":
		return SGE
	case env("LSB_JOBID") != "" || env("LSF_JOB_ID") != "":
		return LSF
	case env("BATCH_JOB_ID") != "" || env("QUEUE") != "" || env("CLUSTER_NAME") != "":
		return UnknownCluster
	default:
		return None
	}
}

// Detect reads the job allocation for the detected scheduler.
func Detect(env Env) Resources {
	if env == nil {
		env = OSEnv
	}
	switch t := DetectType(env); t {
	case SLURM:
		return detectSLURM(env)
	case PBS:
		return detectPBS(env)
	case SGE:
		return detectSGE(env)
	case LSF:
		return detectLSF(env)
	default:
		return Resources{Scheduler: t}
	}
}

func firstOf(env Env, keys ...string) string {
	for _, k := range keys {
		if v := env(k); v != "" {
			return v
		}
	}
	return ""
}

func envInt(env Env, key string, fallback int) int {
	v := strings.TrimSpace(env(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func detectSLURM(env Env) Resources {
	r := Resources{Scheduler: SLURM, JobID: env("SLURM_JOB_ID")}

	cpusPerTask := envInt(env, "SLURM_CPUS_PER_TASK", 0)
	ntasks := envInt(env, "SLURM_NTASKS", 1)
	if cpusPerTask > 0 {
		r.AllocatedCPUs = cpusPerTask * ntasks
		r.HasCPULimit = true
	} else if list := env("SLURM_JOB_CPUS_PER_NODE"); list != "" {
		r.AllocatedCPUs = ParseCPUList(list)
		r.HasCPULimit = r.AllocatedCPUs > 0
	}

	if perNode := env("SLURM_MEM_PER_NODE"); perNode != "" {
		r.AllocatedMemMB = ParseSLURMMemory(perNode)
		r.HasMemoryLimit = true
	} else if perCPU := env("SLURM_MEM_PER_CPU"); perCPU != "" {
		mb := ParseSLURMMemory(perCPU)
		if r.AllocatedCPUs > 0 {
			r.AllocatedMemMB = mb * r.AllocatedCPUs
		} else {
			r.AllocatedMemMB = mb * ntasks
		}
		r.HasMemoryLimit = true
	}

	r.Nodes = envInt(env, "SLURM_JOB_NUM_NODES", 1)
	r.TasksPerNode = envInt(env, "SLURM_NTASKS_PER_NODE", 0)
	r.Partition = env("SLURM_JOB_PARTITION")
	r.Account = env("SLURM_JOB_ACCOUNT")
	return r
}

var (
	pbsNCPUsPattern = regexp.MustCompile(`ncpus=(\d+)`)
	pbsMemPattern   = regexp.MustCompile(`mem=([0-9]+(?:\.[0-9]+)?[kmgtKMGT]?[bB]?)`)
)

func detectPBS(env Env) Resources {
	r := Resources{Scheduler: PBS, JobID: firstOf(env, "PBS_JOBID", "PBS_JOB_ID")}

	ncpus := envInt(env, "PBS_NUM_PPN", 0)
	if ncpus == 0 {
		ncpus = envInt(env, "PBS_NCPUS", 0)
	}
	if ncpus == 0 {
		ncpus = envInt(env, "NCPUS", 0)
	}
	if ncpus > 0 {
		r.AllocatedCPUs = ncpus
		r.HasCPULimit = true
	}

	if list := env("PBS_RESOURCE_LIST"); list != "" {
		if m := pbsNCPUsPattern.FindStringSubmatch(list); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				r.AllocatedCPUs = n
				r.HasCPULimit = true
			}
		}
		if m := pbsMemPattern.FindStringSubmatch(list); m != nil {
			r.AllocatedMemMB = ParsePBSMemory(m[1])
			r.HasMemoryLimit = true
		}
	}
	if mem := firstOf(env, "PBS_RESOURCE_MEM", "PBS_MEM"); mem != "" {
		r.AllocatedMemMB = ParsePBSMemory(mem)
		r.HasMemoryLimit = true
	}

	r.Nodes = envInt(env, "PBS_NUM_NODES", 1)
	r.Partition = env("PBS_QUEUE")
	r.Account = env("PBS_ACCOUNT")
	return r
}

func detectSGE(env Env) Resources {
	r := Resources{Scheduler: SGE, JobID: firstOf(env, "JOB_ID", "SGE_JOB_ID")}

	slots := envInt(env, "NSLOTS", 0)
	if slots == 0 {
		slots = envInt(env, "SGE_NSLOTS", 0)
	}
	if slots > 0 {
		r.AllocatedCPUs = slots
		r.HasCPULimit = true
	}
	if mem := firstOf(env, "SGE_MEM", "MEMORY"); mem != "" {
		r.AllocatedMemMB = ParseMemory(mem)
		r.HasMemoryLimit = true
	}

	r.Partition = firstOf(env, "QUEUE", "PE")
	r.Account = env("SGE_ACCOUNT")
	return r
}

func detectLSF(env Env) Resources {
	r := Resources{Scheduler: LSF, JobID: firstOf(env, "LSB_JOBID", "LSF_JOB_ID")}

	if n := envInt(env, "LSB_MAX_NUM_PROCESSORS", 0); n > 0 {
		r.AllocatedCPUs = n
		r.HasCPULimit = true
	}
	if mem := env("LSB_MEM"); mem != "" {
		r.AllocatedMemMB = ParseMemory(mem)
		r.HasMemoryLimit = true
	}

	r.Partition = env("LSB_QUEUE")
	r.Account = env("LSB_PROJECT_NAME")
	return r
}

var memPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)([kmgt]?)b?`)

func splitMemory(s string) (float64, string, bool) {
	s = strings.ToLower(strings.Join(strings.Fields(s), ""))
	m := memPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, "", false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, "", false
	}
	return v, m[2], true
}

func scaleToMB(v float64, unit string, bareUnitMB float64) int {
	switch unit {
	case "k":
		return int(v / 1024)
	case "m":
		return int(v)
	case "g":
		return int(v * 1024)
	case "t":
		return int(v * 1024 * 1024)
	default:
		return int(v * bareUnitMB)
	}
}

// ParseSLURMMemory converts a SLURM memory value to MB. Bare numbers are MB.
func ParseSLURMMemory(s string) int {
	v, unit, ok := splitMemory(s)
	if !ok {
		return 0
	}
	return scaleToMB(v, unit, 1)
}

// ParsePBSMemory converts a PBS memory value to MB. Bare numbers are bytes.
func ParsePBSMemory(s string) int {
	v, unit, ok := splitMemory(s)
	if !ok {
		return 0
	}
	return scaleToMB(v, unit, 1.0/(1024*1024))
}

// ParseMemory converts a generic memory value to MB. Bare numbers are MB.
func ParseMemory(s string) int {
	return ParseSLURMMemory(s)
}

// ParseCPUList sums a SLURM CPU list such as "16(x2),8" or "0-3,8".
func ParseCPUList(s string) int {
	total := 0
	for _, token := range strings.Split(s, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		repeat := 1
		if open := strings.Index(token, "(x"); open >= 0 && strings.HasSuffix(token, ")") {
			if n, err := strconv.Atoi(token[open+2 : len(token)-1]); err == nil {
				repeat = n
			}
			token = token[:open]
		}

		if lo, hi, found := strings.Cut(token, "-"); found {
			start, err1 := strconv.Atoi(lo)
			end, err2 := strconv.Atoi(hi)
			if err1 == nil && err2 == nil && end >= start {
				total += (end - start + 1) * repeat
			}
			continue
		}
		if n, err := strconv.Atoi(token); err == nil {
			total += n * repeat
		}
	}
	return total
}

// Describe renders the job allocation block shown before batch processing.
// It returns an empty string outside a scheduler.
func Describe(r Resources) string {
	if !r.InJob() {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n=== Job Scheduler Information ===\n")
	fmt.Fprintf(&b, "Scheduler: %s\n", Name(r.Scheduler))
	fmt.Fprintf(&b, "Job ID: %s\n", r.JobID)
	if r.HasCPULimit {
		fmt.Fprintf(&b, "Allocated CPUs: %d\n", r.AllocatedCPUs)
	}
	if r.HasMemoryLimit {
		fmt.Fprintf(&b, "Allocated Memory: %s\n", humanize.IBytes(uint64(r.AllocatedMemMB)*1024*1024))
	}
	if r.Partition != "" {
		fmt.Fprintf(&b, "Partition/Queue: %s\n", r.Partition)
	}
	if r.Account != "" {
		fmt.Fprintf(&b, "Account: %s\n", r.Account)
	}
	b.WriteString("=================================\n\n")
	return b.String()
}

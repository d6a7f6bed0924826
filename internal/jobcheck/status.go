// Package jobcheck classifies Gaussian jobs by how they ended and sorts their
// files into directories.
package jobcheck

import (
	"path/filepath"
	"strings"

	"github.com/lenhanpham/gaussian-extractor/internal/fsutil"
	"github.com/lenhanpham/gaussian-extractor/internal/gaussian"
)

// Status is the state of a job as read from its output file.
type Status string

const (
	StatusCompleted Status = "COMPLETED"
	StatusError     Status = "ERROR"
	StatusPCMFailed Status = "PCM_FAILED"
	StatusRunning   Status = "RUNNING"
	StatusUnknown   Status = "UNKNOWN"
)

const (
	statusTailLines = 10
	pcmTailLines    = 100
	pcmMarker       = "failed in PCMMkU"
)

// DefaultInputExtensions are the input file extensions moved along with a log.
var DefaultInputExtensions = []string{".com", ".gjf", ".gau"}

// Job is one classified output file.
type Job struct {
	Path    string
	Status  Status
	Message string
	// Related lists companion files (inputs, checkpoint) that move with Path.
	Related []string
}

// Name is the base name of the log file.
func (j Job) Name() string {
	return filepath.Base(j.Path)
}

// CheckStatus classifies a job from the end of its output. A file that
// mentions "Normal" in its last lines is complete. Otherwise, error lines
// without an "Error on" line mark an error termination, reported with the
// last such line. A PCM convergence failure anywhere in the file is checked
// next, and anything else is still running.
func CheckStatus(path string, inputExts []string) (Job, error) {
	job := Job{Path: path, Status: StatusUnknown}

	tail, err := gaussian.TailLines(path, statusTailLines)
	if err != nil {
		return job, err
	}
	if normalTermination(tail) {
		job.Status = StatusCompleted
		job.Related = RelatedFiles(path, inputExts)
		return job, nil
	}
	if msg, ok := errorTermination(tail); ok {
		job.Status = StatusError
		job.Message = msg
		job.Related = RelatedFiles(path, inputExts)
		return job, nil
	}

	pcm := false
	err = gaussian.Scan(path, func(line string) {
		if !pcm && strings.Contains(line, pcmMarker) {
			pcm = true
		}
	})
	if err != nil {
		return job, err
	}
	if pcm {
		job.Status = StatusPCMFailed
		job.Message = pcmMarker
		job.Related = RelatedFiles(path, inputExts)
		return job, nil
	}

	job.Status = StatusRunning
	return job, nil
}

// CheckError looks only for an error termination in the last lines.
func CheckError(path string, inputExts []string) (Job, error) {
	job := Job{Path: path, Status: StatusUnknown}

	tail, err := gaussian.TailLines(path, statusTailLines)
	if err != nil {
		return job, err
	}
	if normalTermination(tail) {
		job.Status = StatusCompleted
		return job, nil
	}
	if msg, ok := errorTermination(tail); ok {
		job.Status = StatusError
		job.Message = msg
		job.Related = RelatedFiles(path, inputExts)
		return job, nil
	}
	job.Status = StatusRunning
	return job, nil
}

// CheckPCM looks for a PCM convergence failure near the end of the file.
func CheckPCM(path string, inputExts []string) (Job, error) {
	job := Job{Path: path, Status: StatusUnknown}

	tail, err := gaussian.TailLines(path, pcmTailLines)
	if err != nil {
		return job, err
	}
	for _, line := range tail {
		if strings.Contains(line, pcmMarker) {
			job.Status = StatusPCMFailed
			job.Message = pcmMarker
			job.Related = RelatedFiles(path, inputExts)
			break
		}
	}
	return job, nil
}

// HasImaginaryFrequency reports whether any "Frequencies --" line carries a
// negative value.
func HasImaginaryFrequency(path string) (bool, error) {
	found := false
	err := gaussian.Scan(path, func(line string) {
		if found || !strings.Contains(line, "Frequencies --") {
			return
		}
		for _, f := range gaussian.Frequencies(line) {
			if f < 0 {
				found = true
				return
			}
		}
	})
	return found, err
}

// RelatedFiles returns existing files that share the log's stem and carry
// one of inputExts or ".chk".
func RelatedFiles(path string, inputExts []string) []string {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)

	var related []string
	for _, e := range append(append([]string{}, inputExts...), ".chk") {
		if e == ext {
			continue
		}
		candidate := stem + e
		if fsutil.Exists(candidate) {
			related = append(related, candidate)
		}
	}
	return related
}

func normalTermination(tail []string) bool {
	for _, line := range tail {
		if strings.Contains(line, "Normal") {
			return true
		}
	}
	return false
}

func errorTermination(tail []string) (string, bool) {
	last := ""
	for _, line := range tail {
		if !strings.Contains(line, "Error") {
			continue
		}
		if strings.Contains(line, "Error on") {
			return "", false
		}
		last = line
	}
	return strings.TrimSpace(last), last != ""
}

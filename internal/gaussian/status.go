package gaussian

import "strings"

// Status is the termination state of a Gaussian job.
type Status string

const (
	StatusDone   Status = "DONE"
	StatusError  Status = "ERROR"
	StatusUndone Status = "UNDONE"
)

// Termination counts the markers that decide a job's status.
type Termination struct {
	Normal    int
	Errors    int
	Copyright int
}

// Observe updates the counters from one line of output.
func (t *Termination) Observe(line string) {
	if strings.Contains(line, "Normal termination") {
		t.Normal++
	} else if strings.Contains(line, "Error termination") {
		t.Errors++
	}
	if strings.Contains(line, "Copyright") {
		t.Copyright++
	}
}

// NeedsTail reports whether the file end must be read to tell DONE from UNDONE.
func (t Termination) NeedsTail() bool {
	return t.Errors == 0 && t.Copyright > 0 && t.Normal >= t.Copyright
}

// Resolve decides the status. A multi-step job prints one banner per step
// and may print extra normal terminations, so DONE also requires the last
// normal termination to sit at the end of the file.
func (t Termination) Resolve(tail string) Status {
	switch {
	case t.Errors > 0:
		return StatusError
	case t.NeedsTail() && strings.Contains(tail, "Normal termination"):
		return StatusDone
	default:
		return StatusUndone
	}
}

// StatusTailLines is how many trailing lines TailStatus inspects.
const StatusTailLines = 10

// TailStatus decides a status from the last lines of a file alone: any
// "Normal" means DONE, an "Error" line means ERROR unless some line reports
// "Error on", and anything else is UNDONE.
func TailStatus(lines []string) Status {
	hasError, hasErrorOn := false, false
	for _, line := range lines {
		if strings.Contains(line, "Normal") {
			return StatusDone
		}
		if strings.Contains(line, "Error") {
			hasError = true
			if strings.Contains(line, "Error on") {
				hasErrorOn = true
			}
		}
	}
	if hasError && !hasErrorOn {
		return StatusError
	}
	return StatusUndone
}

// StatusOf scans a file and returns its status.
func StatusOf(path string) (Status, error) {
	var t Termination
	if err := Scan(path, t.Observe); err != nil {
		return StatusUndone, err
	}
	if !t.NeedsTail() {
		return t.Resolve(""), nil
	}
	tail, err := ReadTail(path, TailSize)
	if err != nil {
		return StatusUndone, err
	}
	return t.Resolve(tail), nil
}

// Package gaussian holds the constants and low-level text helpers shared by
// every reader of Gaussian output files.
package gaussian

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

const (
	// GasConstant in J/(mol K).
	GasConstant = 8.314462618
	// StandardPressure in Pa.
	StandardPressure = 101325.0
	// BoltzmannHartree in Hartree/K.
	BoltzmannHartree = 0.000003166811563

	HartreeToKJPerMol = 2625.5002
	HartreeToEV       = 27.211396641308
	// KJPerMolToHartree converts kJ/mol to Hartree.
	KJPerMolToHartree = 0.0003808798033989866

	DefaultTemperature = 298.15
	// DefaultConcentration is 1 M expressed in mol/m3.
	DefaultConcentration = 1000.0
)

// PhaseCorrection is the free energy change (Hartree) from the 1 atm gas
// standard state to a solution of concentration mol/m3 at temperature K.
func PhaseCorrection(temperature, concentration float64) float64 {
	rt := GasConstant * temperature
	return rt * math.Log(concentration*rt/StandardPressure) / 1000 * KJPerMolToHartree
}

// LeadingFloat parses the number at the start of s after leading blanks,
// ignoring whatever follows it ("-1.5 Hartrees" -> -1.5).
func LeadingFloat(s string) (float64, bool) {
	s = strings.TrimLeft(s, " \t")
	end := 0
	seenDigit, seenDot, seenExp := false, false, false
scan:
	for ; end < len(s); end++ {
		c := s[end]
		switch {
		case c >= '0' && c <= '9':
			seenDigit = true
		case (c == '+' || c == '-') && (end == 0 || s[end-1] == 'e' || s[end-1] == 'E'):
		case c == '.' && !seenDot && !seenExp:
			seenDot = true
		case (c == 'e' || c == 'E') && seenDigit && !seenExp:
			seenExp = true
		default:
			break scan
		}
	}
	for end > 0 {
		if v, err := strconv.ParseFloat(s[:end], 64); err == nil {
			return v, true
		}
		end--
	}
	return 0, false
}

// After parses the number following the first occurrence of marker in line.
func After(line, marker string) (float64, bool) {
	i := strings.Index(line, marker)
	if i < 0 {
		return 0, false
	}
	return LeadingFloat(line[i+len(marker):])
}

// Field returns the n-th whitespace separated field of line, counting from 1.
func Field(line string, n int) (string, bool) {
	fields := strings.Fields(line)
	if n < 1 || n > len(fields) {
		return "", false
	}
	return fields[n-1], true
}

// FloatField parses the n-th field of line as a number.
func FloatField(line string, n int) (float64, bool) {
	f, ok := Field(line, n)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(f, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Frequencies parses the values of a "Frequencies --" line.
func Frequencies(line string) []float64 {
	_, rest, ok := strings.Cut(line, "--")
	if !ok {
		return nil
	}
	var out []float64
	for _, f := range strings.Fields(rest) {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			break
		}
		out = append(out, v)
	}
	return out
}

// TailSize is how much of a file end is inspected for termination messages.
const TailSize = 2048

// ReadTail returns up to n bytes from the end of the file.
func ReadTail(path string, n int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	offset := max(info.Size()-n, 0)
	buf := make([]byte, info.Size()-offset)
	if _, err := f.ReadAt(buf, offset); err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(buf), nil
}

// TailLines returns the last n lines of the file.
func TailLines(path string, n int) ([]string, error) {
	size := int64(TailSize)
	for {
		tail, err := ReadTail(path, size)
		if err != nil {
			return nil, err
		}
		lines := strings.Split(strings.TrimRight(tail, "\n"), "\n")
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		whole := int64(len(tail)) >= info.Size()
		// The first line of a partial tail may be cut, so require one extra.
		if len(lines) > n || whole {
			if !whole {
				lines = lines[1:]
			}
			if len(lines) > n {
				lines = lines[len(lines)-n:]
			}
			if len(lines) == 1 && lines[0] == "" {
				return nil, nil
			}
			return lines, nil
		}
		size *= 4
	}
}

// Scan calls fn for every line of the file. Lines may be arbitrarily long.
func Scan(path string, fn func(line string)) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 64*1024)
	for {
		line, err := r.ReadString('\n')
		if len(line) > 0 {
			fn(strings.TrimRight(line, "\r\n"))
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read %s: %w", path, err)
		}
	}
}

// Package extract pulls thermochemistry out of Gaussian log files in bulk and
// renders it as a sorted report.
package extract

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/lenhanpham/gaussian-extractor/internal/gaussian"
	"github.com/lenhanpham/gaussian-extractor/internal/stringsutil"
)

// NameWidth is the widest file name shown in reports; longer names keep their tail.
const NameWidth = 53

// Result is the extracted data of one log file.
type Result struct {
	FileName string
	// ETGKJ is the Gibbs free energy in kJ/mol.
	ETGKJ float64
	// LowFreq is the last imaginary frequency, or the lowest real one.
	LowFreq float64
	// Gibbs is the Gibbs free energy in Hartree, phase corrected when solvated.
	Gibbs       float64
	Nuclear     float64
	SCF         float64
	ZPE         float64
	Status      gaussian.Status
	PhaseCorr   bool
	Rounds      int
	Temperature float64
}

// PhaseCorrLabel renders PhaseCorr as YES or NO.
func (r Result) PhaseCorrLabel() string {
	if r.PhaseCorr {
		return "YES"
	}
	return "NO"
}

// ParseOptions carries the run-wide parameters of a parse.
type ParseOptions struct {
	Temperature float64
	// Concentration in mol/m3.
	Concentration float64
	// UseInputTemp ignores temperatures found in the files.
	UseInputTemp bool
}

type parser struct {
	opts     ParseOptions
	name     string
	warn     func(string)
	term     gaussian.Termination
	scf      float64
	scfTD    float64
	scfEqui  float64
	zpe      float64
	etg      float64
	nuclear  float64
	negative []float64
	positive []float64
	temp     float64
	scrf     bool
}

func (p *parser) line(line string) {
	p.term.Observe(line)

	switch {
	case strings.Contains(line, "SCF Done"):
		if v, ok := gaussian.After(line, "="); ok {
			p.scf = v
		}
	case strings.Contains(line, "Total Energy, E(CIS"):
		if v, ok := gaussian.After(line, "="); ok {
			p.scfTD = v
		}
	case strings.Contains(line, "After PCM corrections, the energy is"):
		if v, ok := gaussian.After(line, "energy is"); ok {
			p.scfEqui = v
		}
	case strings.Contains(line, "Zero-point correction"):
		if v, ok := gaussian.After(line, "="); ok {
			p.zpe = v
		}
	case strings.Contains(line, "Sum of electronic and thermal Free Energies"):
		if v, ok := gaussian.After(line, "="); ok {
			p.etg = v
		}
	case strings.Contains(line, "nuclear repulsion energy"):
		v, ok := gaussian.After(line, "nuclear repulsion energy")
		if ok {
			p.nuclear = v
		} else {
			p.warn(fmt.Sprintf("Could not parse nuclear repulsion energy from '%s' in file '%s'",
				strings.TrimSpace(line), p.name))
		}
	case strings.Contains(line, "Frequencies --"):
		for _, f := range gaussian.Frequencies(line) {
			if f < 0 {
				p.negative = append(p.negative, f)
			} else {
				p.positive = append(p.positive, f)
			}
		}
	case !p.opts.UseInputTemp && strings.Contains(line, "Kelvin.  Pressure"):
		p.parseTemperature(line)
	case strings.Contains(line, "scrf"):
		p.scrf = true
	}
}

func (p *parser) parseTemperature(line string) {
	start := strings.Index(line, "Temperature")
	end := strings.Index(line, "Kelvin")
	if start < 0 || end < 0 || start >= end {
		return
	}
	text := strings.TrimSpace(line[start+len("Temperature") : end])
	if text == "" {
		return
	}
	v, ok := gaussian.LeadingFloat(text)
	if !ok {
		p.warn(fmt.Sprintf("Could not parse temperature from '%s' in file '%s'. Using default %.2f K",
			strings.TrimSpace(line), p.name, gaussian.DefaultTemperature))
		v = gaussian.DefaultTemperature
	}
	p.temp = v
}

// DisplayName is the base name of path cut to its last NameWidth characters.
func DisplayName(path string) string {
	return stringsutil.KeepLast(filepath.Base(path), NameWidth)
}

// ParseFile extracts a Result from one log file. Recoverable oddities in the
// file are passed to warn; only I/O failures are returned as errors.
func ParseFile(path string, opts ParseOptions, warn func(string)) (Result, error) {
	if warn == nil {
		warn = func(string) {}
	}
	p := &parser{
		opts: opts,
		name: filepath.Base(path),
		warn: warn,
		temp: opts.Temperature,
	}
	if err := gaussian.Scan(path, p.line); err != nil {
		return Result{}, err
	}

	status := p.term.Resolve("")
	if p.term.NeedsTail() {
		tail, err := gaussian.ReadTail(path, gaussian.TailSize)
		if err != nil {
			return Result{}, fmt.Errorf("tail check: %w", err)
		}
		status = p.term.Resolve(tail)
	}

	var lowFreq float64
	if len(p.negative) > 0 {
		lowFreq = p.negative[len(p.negative)-1]
	} else if len(p.positive) > 0 {
		lowFreq = slices.Min(p.positive)
	}

	scf := p.scf
	switch {
	case p.scfEqui != 0:
		scf = p.scfEqui
	case p.scfTD != 0:
		scf = p.scfTD
	}

	gibbs := p.etg
	if p.scrf && p.etg != 0 {
		gibbs += gaussian.PhaseCorrection(p.temp, opts.Concentration)
	}

	return Result{
		FileName:    DisplayName(path),
		ETGKJ:       gibbs * gaussian.HartreeToKJPerMol,
		LowFreq:     lowFreq,
		Gibbs:       gibbs,
		Nuclear:     p.nuclear,
		SCF:         scf,
		ZPE:         p.zpe,
		Status:      status,
		PhaseCorr:   p.scrf,
		Rounds:      p.term.Copyright,
		Temperature: p.temp,
	}, nil
}

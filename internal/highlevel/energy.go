// Package highlevel combines single-point energies from a high-level
// calculation with thermal corrections from the low-level frequency job one
// directory up.
package highlevel

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/lenhanpham/gaussian-extractor/internal/fsutil"
	"github.com/lenhanpham/gaussian-extractor/internal/gaussian"
)

// MaxTemperature bounds temperatures accepted from a low-level file.
const MaxTemperature = 10000.0

var ErrParentMissing = errors.New("parent file not found")

// Result is the combined energy record of one high-level file. Energies are
// in Hartree unless the field name says otherwise.
type Result struct {
	FileName string

	SCFHigh  float64
	TDHigh   float64
	EquiHigh float64
	CLRHigh  float64
	// EHigh is the high-level electronic energy actually used.
	EHigh float64

	SCFLow float64
	TDLow  float64
	ELow   float64

	ZPE          float64
	TCEnergy     float64
	TCEnthalpy   float64
	TCGibbs      float64
	EntropyTotal float64
	// TC is the thermal correction to energy without ZPE.
	TC float64
	// TS is the entropic term, tcH - tcG.
	TS          float64
	Temperature float64

	Enthalpy        float64
	GibbsUncorr     float64
	PhaseCorrection float64
	PhaseCorr       bool
	Gibbs           float64
	GibbsKJ         float64
	GibbsEV         float64

	LowFreq float64
	Status  gaussian.Status
}

// PhaseCorrLabel renders PhaseCorr as YES or NO.
func (r Result) PhaseCorrLabel() string {
	if r.PhaseCorr {
		return "YES"
	}
	return "NO"
}

// CalcOptions carries the defaults used while combining energies.
type CalcOptions struct {
	// Temperature in K for low-level files that report none.
	Temperature float64
	// Concentration in mol/m3 for the phase correction.
	Concentration float64
}

// lastMatch keeps the last line containing each marker.
type lastMatch map[string]string

func (m lastMatch) observe(line string, markers ...string) {
	for _, mk := range markers {
		if strings.Contains(line, mk) {
			m[mk] = line
		}
	}
}

func (m lastMatch) field(marker string, n int) float64 {
	line, ok := m[marker]
	if !ok {
		return 0
	}
	v, _ := gaussian.FloatField(line, n)
	return v
}

const (
	markSCF        = "SCF Done"
	markCIS        = "Total Energy, E(CIS"
	markPCM        = "After PCM corrections, the energy is"
	markCLR        = "Total energy after correction"
	markZPE        = "Zero-point correction"
	markTCEnthalpy = "Thermal correction to Enthalpy"
	markTCGibbs    = "Thermal correction to Gibbs Free Energy"
	markTCEnergy   = "Thermal correction to Energy"
	markKelvin     = "Kelvin.  Pressure"
	markEntropy    = "Total S"
)

var entropyLine = regexp.MustCompile(`Total\s+S`)

// ParentPath is the low-level file matching a high-level file: same name,
// one directory up.
func ParentPath(path string) string {
	return filepath.Join(filepath.Dir(path), "..", filepath.Base(path))
}

// Calculate builds the Result for a high-level output file. Non-fatal issues
// are passed to warn when it is set.
func Calculate(path string, opts CalcOptions, warn func(string)) (Result, error) {
	if warn == nil {
		warn = func(string) {}
	}
	if opts.Temperature <= 0 {
		opts.Temperature = gaussian.DefaultTemperature
	}
	if opts.Concentration <= 0 {
		opts.Concentration = gaussian.DefaultConcentration
	}
	r := Result{FileName: filepath.Base(path)}

	high := lastMatch{}
	scrf := false
	err := gaussian.Scan(path, func(line string) {
		high.observe(line, markSCF, markCIS, markPCM, markCLR)
		if !scrf && strings.Contains(line, "scrf") {
			scrf = true
		}
	})
	if err != nil {
		return r, err
	}
	if _, ok := high[markSCF]; !ok {
		warn(fmt.Sprintf("Pattern '%s' not found in: %s", markSCF, path))
	}
	r.SCFHigh = high.field(markSCF, 5)
	r.TDHigh = high.field(markCIS, 5)
	r.EquiHigh = high.field(markPCM, 7)
	r.CLRHigh = high.field(markCLR, 6)
	r.EHigh = firstNonZero(r.EquiHigh, r.CLRHigh, r.TDHigh, r.SCFHigh)

	tail, err := gaussian.TailLines(path, gaussian.StatusTailLines)
	if err != nil {
		return r, err
	}
	r.Status = gaussian.TailStatus(tail)

	parent := ParentPath(path)
	if !fsutil.Exists(parent) {
		return r, fmt.Errorf("%w: %s", ErrParentMissing, parent)
	}
	if err := readLowLevel(parent, &r, opts, warn); err != nil {
		return r, err
	}

	r.TC = r.TCEnergy - r.ZPE
	r.TS = r.TCEnthalpy - r.TCGibbs
	r.Enthalpy = r.EHigh + r.TCEnthalpy
	r.GibbsUncorr = r.EHigh + r.TCGibbs
	r.Gibbs = r.GibbsUncorr
	if scrf {
		r.PhaseCorr = true
		r.PhaseCorrection = gaussian.PhaseCorrection(r.Temperature, opts.Concentration)
		r.Gibbs += r.PhaseCorrection
	}
	r.GibbsKJ = r.Gibbs * gaussian.HartreeToKJPerMol
	r.GibbsEV = r.Gibbs * gaussian.HartreeToEV
	return r, nil
}

func readLowLevel(parent string, r *Result, opts CalcOptions, warn func(string)) error {
	low := lastMatch{}
	lowest := math.Inf(1)
	err := gaussian.Scan(parent, func(line string) {
		low.observe(line, markSCF, markCIS, markZPE, markTCEnthalpy, markTCGibbs, markTCEnergy, markKelvin)
		if entropyLine.MatchString(line) {
			low[markEntropy] = line
		}
		if strings.Contains(line, "Frequencies --") {
			for _, f := range gaussian.Frequencies(line) {
				lowest = min(lowest, f)
			}
		}
	})
	if err != nil {
		return fmt.Errorf("failed to extract thermal data from %s: %w", parent, err)
	}

	r.SCFLow = low.field(markSCF, 5)
	r.TDLow = low.field(markCIS, 5)
	r.ELow = firstNonZero(r.TDLow, r.SCFLow)
	r.ZPE = low.field(markZPE, 3)
	r.TCEnthalpy = low.field(markTCEnthalpy, 5)
	r.TCGibbs = low.field(markTCGibbs, 7)
	r.TCEnergy = low.field(markTCEnergy, 5)
	r.EntropyTotal = low.field(markEntropy, 2)
	if r.ZPE == 0 && r.TCEnthalpy == 0 && r.TCGibbs == 0 {
		warn("No thermal corrections found in: " + parent)
	}

	r.Temperature = opts.Temperature
	if t := low.field(markKelvin, 2); t > 0 && t < MaxTemperature {
		r.Temperature = t
	} else if t > 0 {
		warn(fmt.Sprintf("Invalid temperature (%.3f) found in %s, using default", t, parent))
	}

	if !math.IsInf(lowest, 1) {
		r.LowFreq = lowest
	}
	return nil
}

func firstNonZero(values ...float64) float64 {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}

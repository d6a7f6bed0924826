package highlevel

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lenhanpham/gaussian-extractor/internal/gaussian"
)

const lowLevelLog = ` Copyright (c) 1988-2019, Gaussian, Inc.  All Rights Reserved.
 SCF Done:  E(RB3LYP) =  -76.4000000     A.U. after   10 cycles
 Frequencies --    -45.1234   1600.0000   3700.0000
 Frequencies --   3800.0000
 Temperature   310.000 Kelvin.  Pressure   1.00000 Atm.
 Zero-point correction=                           0.021000 (Hartree/Particle)
 Thermal correction to Energy=                    0.024000
 Thermal correction to Enthalpy=                  0.025000
 Thermal correction to Gibbs Free Energy=         0.003000
 Normal termination of Gaussian 16 at Mon Jan  1 00:00:00 2024.
`

const highLevelLog = ` Copyright (c) 1988-2019, Gaussian, Inc.  All Rights Reserved.
 #p m062x/def2tzvp scrf=(smd,solvent=water)
 SCF Done:  E(RM062X) =  -76.5000000     A.U. after   12 cycles
 After PCM corrections, the energy is   -76.5100000
 Normal termination of Gaussian 16 at Mon Jan  1 00:00:00 2024.
`

const gasHighLevelLog = ` Copyright (c) 1988-2019, Gaussian, Inc.  All Rights Reserved.
 #p ccsd(t)/aug-cc-pvtz
 SCF Done:  E(RHF) =  -76.0000000     A.U. after   12 cycles
`

// layout creates <root>/low/<name> and <root>/low/high/<name> and returns the
// high-level directory.
func layout(t *testing.T, files map[string][2]string) string {
	t.Helper()
	low := filepath.Join(t.TempDir(), "low")
	high := filepath.Join(low, "high")
	require.NoError(t, os.MkdirAll(high, 0o755))
	for name, contents := range files {
		if contents[0] != "" {
			require.NoError(t, os.WriteFile(filepath.Join(low, name), []byte(contents[0]), 0o644))
		}
		require.NoError(t, os.WriteFile(filepath.Join(high, name), []byte(contents[1]), 0o644))
	}
	return high
}

func TestCalculate_Solvated(t *testing.T) {
	dir := layout(t, map[string][2]string{"water.log": {lowLevelLog, highLevelLog}})

	r, err := Calculate(filepath.Join(dir, "water.log"), CalcOptions{Concentration: 1000}, nil)
	require.NoError(t, err)

	assert.Equal(t, "water.log", r.FileName)
	assert.InDelta(t, -76.51, r.EHigh, 1e-9, "PCM equilibrium energy wins")
	assert.InDelta(t, -76.4, r.ELow, 1e-9)
	assert.InDelta(t, 310.0, r.Temperature, 1e-9)
	assert.InDelta(t, 0.003, r.TC, 1e-9)
	assert.InDelta(t, 0.022, r.TS, 1e-9)
	assert.InDelta(t, -76.51+0.025, r.Enthalpy, 1e-9)
	assert.True(t, r.PhaseCorr)
	assert.InDelta(t, gaussian.PhaseCorrection(310, 1000), r.PhaseCorrection, 1e-12)
	assert.InDelta(t, -76.51+0.003+r.PhaseCorrection, r.Gibbs, 1e-9)
	assert.InDelta(t, r.Gibbs*gaussian.HartreeToKJPerMol, r.GibbsKJ, 1e-6)
	assert.InDelta(t, -45.1234, r.LowFreq, 1e-9)
	assert.Equal(t, gaussian.StatusDone, r.Status)
}

func TestCalculate_GasPhaseUndone(t *testing.T) {
	dir := layout(t, map[string][2]string{"gas.log": {lowLevelLog, gasHighLevelLog}})

	r, err := Calculate(filepath.Join(dir, "gas.log"), CalcOptions{}, nil)
	require.NoError(t, err)

	assert.InDelta(t, -76.0, r.EHigh, 1e-9)
	assert.False(t, r.PhaseCorr)
	assert.InDelta(t, -76.0+0.003, r.Gibbs, 1e-9)
	assert.Equal(t, gaussian.StatusUndone, r.Status)
}

func TestCalculate_StatusFromLastLines(t *testing.T) {
	linked := ` Copyright (c) 1988-2019, Gaussian, Inc.  All Rights Reserved.
 Error termination via Lnk1e in l9999.exe
 Copyright (c) 1988-2019, Gaussian, Inc.  All Rights Reserved.
 SCF Done:  E(RHF) =  -76.0000000     A.U. after   12 cycles
 Normal termination of Gaussian 16 at Mon Jan  1 00:00:00 2024.
`
	failed := gasHighLevelLog + " Error termination via Lnk1e in l502.exe\n"
	dir := layout(t, map[string][2]string{
		"linked.log": {lowLevelLog, linked},
		"failed.log": {lowLevelLog, failed},
	})

	r, err := Calculate(filepath.Join(dir, "linked.log"), CalcOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, gaussian.StatusDone, r.Status, "a later step ending normally is done")

	r, err = Calculate(filepath.Join(dir, "failed.log"), CalcOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, gaussian.StatusError, r.Status)
}

func TestCalculate_MissingParent(t *testing.T) {
	dir := layout(t, map[string][2]string{"orphan.log": {"", highLevelLog}})

	_, err := Calculate(filepath.Join(dir, "orphan.log"), CalcOptions{}, nil)
	require.ErrorIs(t, err, ErrParentMissing)
}

func TestCalculate_InvalidTemperatureWarns(t *testing.T) {
	low := strings.Replace(lowLevelLog, "310.000", "20000.000", 1)
	dir := layout(t, map[string][2]string{"hot.log": {low, highLevelLog}})

	var warnings []string
	r, err := Calculate(filepath.Join(dir, "hot.log"), CalcOptions{Temperature: 298.15}, func(w string) {
		warnings = append(warnings, w)
	})
	require.NoError(t, err)
	assert.InDelta(t, 298.15, r.Temperature, 1e-9)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "Invalid temperature")
}

func TestSort(t *testing.T) {
	results := []Result{
		{FileName: "b", GibbsKJ: -1, Gibbs: -3, PhaseCorr: false},
		{FileName: "a", GibbsKJ: -2, Gibbs: -1, PhaseCorr: true},
		{FileName: "c", GibbsKJ: -3, Gibbs: -2, PhaseCorr: false},
	}
	names := func() string {
		var b strings.Builder
		for _, r := range results {
			b.WriteString(r.FileName)
		}
		return b.String()
	}

	Sort(results, ModeKJ, 2)
	assert.Equal(t, "cab", names())
	Sort(results, ModeKJ, 1)
	assert.Equal(t, "abc", names())
	Sort(results, ModeKJ, 7)
	assert.Equal(t, "abc", names(), "YES first, stable otherwise")
	Sort(results, ModeAU, 99)
	assert.Equal(t, "bca", names(), "falls back to G a.u")

	assert.True(t, ValidSortColumn(ModeAU, 10))
	assert.False(t, ValidSortColumn(ModeKJ, 8))
}

func TestWriteText_WidthsFollowData(t *testing.T) {
	long := strings.Repeat("n", 60) + ".log"
	results := []Result{{FileName: long, GibbsKJ: -200000.123456, Status: gaussian.StatusDone}}

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, ModeKJ, results))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)

	nameWidth := len(long) + 3
	assert.Equal(t, strings.Repeat(" ", nameWidth-len("Output name"))+"Output name", lines[0][:nameWidth])
	assert.Equal(t, "   "+long, lines[2][:nameWidth])
	assert.Contains(t, lines[2], "-200000.123456")
	assert.True(t, strings.HasSuffix(lines[2], "DONE      NO"))
}

func TestWriteCSV(t *testing.T) {
	results := []Result{{FileName: "water.log", GibbsKJ: -1, Gibbs: -2, GibbsEV: -3, LowFreq: 12.346, Status: gaussian.StatusDone, PhaseCorr: true}}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, ModeKJ, results))
	assert.Equal(t,
		"Output name,G kJ/mol,G a.u,G eV,LowFQ,Status,PhCorr\n"+
			"\"water.log\",-1.000000,-2.000000,-3.000000,12.35,DONE,YES\n",
		buf.String())

	buf.Reset()
	require.NoError(t, WriteCSV(&buf, ModeAU, results))
	assert.True(t, strings.HasPrefix(buf.String(),
		"Output name,E high a.u,E low a.u,ZPE a.u,TC a.u,TS a.u,H a.u,G a.u,LowFQ,PhaseCorr\n"))
}

func TestRun(t *testing.T) {
	dir := layout(t, map[string][2]string{
		"water.log":  {lowLevelLog, highLevelLog},
		"gas.log":    {lowLevelLog, gasHighLevelLog},
		"orphan.log": {"", highLevelLog},
	})

	var out, errOut bytes.Buffer
	summary, err := Run(context.Background(), Options{Dir: dir, Mode: ModeAU, Threads: 2, Out: &out, ErrOut: &errOut})
	require.NoError(t, err)

	require.Len(t, summary.Results, 2)
	assert.Equal(t, "water.log", summary.Results[0].FileName, "lowest G first")
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "orphan.log")
	assert.Contains(t, errOut.String(), "Errors encountered during processing:")
	assert.Equal(t, filepath.Join(dir, "high-highLevel-au.results"), summary.OutputPath)

	data, err := os.ReadFile(summary.OutputPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Temperature in ../water.log: 310.000 K.")
	assert.Contains(t, string(data), "E high a.u")
	assert.Contains(t, out.String(), "Successfully processed 2/3 files.")
}

func TestRun_Errors(t *testing.T) {
	_, err := Run(context.Background(), Options{Dir: t.TempDir()})
	require.ErrorIs(t, err, ErrNoFiles)

	_, err = Run(context.Background(), Options{Dir: t.TempDir(), Format: "xml"})
	require.ErrorIs(t, err, ErrInvalidFormat)

	dir := layout(t, map[string][2]string{"orphan.log": {"", highLevelLog}})
	_, err = Run(context.Background(), Options{Dir: dir, Quiet: true, Format: FormatCSV})
	require.ErrorIs(t, err, ErrNoResults)
}

func TestPhaseCorrectionHeader(t *testing.T) {
	h := Header(SummaryInfo{Parent: "../a.log", Temperature: 298.15, Concentration: 1000})
	assert.Contains(t, h, "The concentration for phase correction: 1 M or 1000 mol/m3")
	assert.False(t, math.IsNaN(gaussian.PhaseCorrection(298.15, 1000)))
}

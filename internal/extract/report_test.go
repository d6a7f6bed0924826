package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lenhanpham/gaussian-extractor/internal/gaussian"
)

func sampleResults() []Result {
	return []Result{
		{FileName: "b.log", ETGKJ: -200, LowFreq: 30, Gibbs: -0.07, SCF: -2, Rounds: 2, Status: gaussian.StatusDone},
		{FileName: "a.log", ETGKJ: -300, LowFreq: -50, Gibbs: -0.11, SCF: -1, Rounds: 1, Status: gaussian.StatusError, PhaseCorr: true},
		{FileName: "c.log", ETGKJ: -100, LowFreq: 10, Gibbs: -0.03, SCF: -3, Rounds: 3, Status: gaussian.StatusUndone},
	}
}

func names(rs []Result) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.FileName
	}
	return out
}

func TestSort(t *testing.T) {
	tests := []struct {
		column int
		want   []string
	}{
		{2, []string{"a.log", "b.log", "c.log"}},
		{3, []string{"a.log", "c.log", "b.log"}},
		{6, []string{"c.log", "b.log", "a.log"}},
		{10, []string{"a.log", "b.log", "c.log"}},
		{8, []string{"b.log", "a.log", "c.log"}},
	}
	for _, tt := range tests {
		rs := sampleResults()
		Sort(rs, tt.column)
		assert.Equal(t, tt.want, names(rs), "column %d", tt.column)
	}
	assert.True(t, ValidSortColumn(7))
	assert.False(t, ValidSortColumn(8))
}

func TestHeader(t *testing.T) {
	h := Header(HeaderInfo{
		Temperature:   298.15,
		Concentration: 1000,
		Threads:       4,
		Processed:     2,
		Total:         3,
		PeakMemory:    "1.0 MiB",
		Warnings:      []string{"odd file"},
		Errors:        []string{"broken file"},
	})
	assert.Contains(t, h, "Default temperature for files without specified temp: 298.150 K")
	assert.Contains(t, h, "The concentration for phase correction: 1 M or 1000 mol/m3")
	assert.Contains(t, h, "Representative Gibbs free correction for phase changing at 298.150 K: 0.0030")
	assert.Contains(t, h, "Using 4 threads for processing.")
	assert.Contains(t, h, "Successfully processed 2/3 files.")
	assert.Contains(t, h, "Warnings:\n- odd file\n")
	assert.Contains(t, h, "Errors:\n- broken file\n")

	clean := Header(HeaderInfo{Temperature: 300, UseInputTemp: true, Concentration: 500})
	assert.Contains(t, clean, "Using specified temperature for all files: 300.000 K")
	assert.Contains(t, clean, "0.5 M or 500 mol/m3")
	assert.NotContains(t, clean, "Warnings:")
}

func TestWriteText(t *testing.T) {
	var b strings.Builder
	require.NoError(t, WriteText(&b, sampleResults()[:1], 6))

	lines := strings.Split(strings.TrimRight(b.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "Output name"))
	assert.Len(t, lines[0], 165)
	assert.Len(t, lines[1], 165)
	assert.Len(t, lines[2], 165)
	assert.Contains(t, lines[2], "-200.000000")
	assert.Contains(t, lines[2], "30.00")
	assert.True(t, strings.HasSuffix(lines[2], "  DONE    NO     2"))
}

func TestWriteCSV(t *testing.T) {
	var b strings.Builder
	require.NoError(t, WriteCSV(&b, sampleResults()[1:2], 3))

	lines := strings.Split(strings.TrimRight(b.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, CSVHeader, lines[0])
	assert.Equal(t, `"a.log",-300.000,-50.00,-0.110,0.000,-1.000,0.000,ERROR,YES,1`, lines[1])
}

func TestRender_InvalidFormat(t *testing.T) {
	var b strings.Builder
	err := Render(&b, "xml", HeaderInfo{}, nil, 6)
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

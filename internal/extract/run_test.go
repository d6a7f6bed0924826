package extract

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_WritesTextReport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "batch1")
	require.NoError(t, os.Mkdir(dir, 0o755))
	writeLog(t, dir, "water.log", completedFreqLog)
	writeLog(t, dir, "other.OUT", strings.Replace(completedFreqLog, "-76.406000", "-76.500000", 1))
	writeLog(t, dir, "ignored.txt", "nothing")

	var out bytes.Buffer
	summary, err := Run(context.Background(), Options{
		Dir:        dir,
		SortColumn: 2,
		Threads:    2,
		Out:        &out,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"other.OUT", "water.log"}, summary.Files)
	require.Len(t, summary.Results, 2)
	assert.Equal(t, "other.OUT", summary.Results[0].FileName, "lowest energy first")
	assert.Equal(t, filepath.Join(dir, "batch1.results"), summary.OutputPath)

	data, err := os.ReadFile(summary.OutputPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Successfully processed 2/2 files.")
	assert.Contains(t, string(data), "Output name")

	assert.Contains(t, out.String(), "Found 2 .log/.out files")
	assert.Contains(t, out.String(), "Results written to batch1.results")
}

func TestRun_CSVQuiet(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "water.log", completedFreqLog)

	var out bytes.Buffer
	summary, err := Run(context.Background(), Options{Dir: dir, Format: FormatCSV, Quiet: true, Out: &out})
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(summary.OutputPath, ".csv"))
	assert.True(t, strings.HasPrefix(out.String(), "Processed 1/1 files. Results written to"))

	data, err := os.ReadFile(summary.OutputPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), CSVHeader)
}

func TestRun_NoFiles(t *testing.T) {
	_, err := Run(context.Background(), Options{Dir: t.TempDir()})
	assert.ErrorIs(t, err, ErrNoFiles)
}

func TestRun_OversizedWarning(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "water.log", completedFreqLog)
	writeLog(t, dir, "huge.log", strings.Repeat("x", 1024*1024+1))

	summary, err := Run(context.Background(), Options{Dir: dir, MaxFileSizeMB: 1, Quiet: true})
	require.NoError(t, err)
	require.Len(t, summary.Warnings, 1)
	assert.Contains(t, summary.Warnings[0], "huge.log")
}

func TestRun_InvalidFormat(t *testing.T) {
	_, err := Run(context.Background(), Options{Dir: t.TempDir(), Format: "xml"})
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestRun_Cancelled(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"a.log", "b.log", "c.log"} {
		writeLog(t, dir, n, completedFreqLog)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, Options{Dir: dir, Quiet: true})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_ReportsUnreadableFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read files without permission bits")
	}
	dir := filepath.Join(t.TempDir(), "mixed")
	require.NoError(t, os.Mkdir(dir, 0o755))
	writeLog(t, dir, "water.log", completedFreqLog)
	writeLog(t, dir, "locked.log", completedFreqLog)
	locked := filepath.Join(dir, "locked.log")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o644) })

	var out bytes.Buffer
	summary, err := Run(context.Background(), Options{Dir: dir, Out: &out})
	require.NoError(t, err)

	require.Len(t, summary.Results, 1)
	assert.Equal(t, "water.log", summary.Results[0].FileName)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "locked.log")
	assert.Contains(t, out.String(), "Successfully processed 1/2 files.")

	require.FileExists(t, summary.OutputPath)
	data, err := os.ReadFile(summary.OutputPath)
	require.NoError(t, err)
	report := string(data)
	assert.Contains(t, report, "Successfully processed 1/2 files.")
	assert.Contains(t, report, "Errors:\n- "+summary.Errors[0])
}

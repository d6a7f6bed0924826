package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lenhanpham/gaussian-extractor/internal/extract"
	"github.com/lenhanpham/gaussian-extractor/internal/gaussian"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveRun(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	run := NewRun("/data/opt", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	_, err := uuid.Parse(run.ID)
	require.NoError(t, err)
	run.Temperature, run.Concentration = 298.15, 1
	run.FilesTotal, run.FilesOK = 3, 2

	results := []extract.Result{
		{FileName: "b.log", ETGKJ: -1000.5, LowFreq: 12.3, Gibbs: -0.38, Nuclear: 9.1, SCF: -0.4, ZPE: 0.02, Status: gaussian.StatusDone, PhaseCorr: true, Rounds: 2},
		{FileName: "a.log", ETGKJ: -2000.5, LowFreq: -40.1, Gibbs: -0.76, Nuclear: 8.2, SCF: -0.8, ZPE: 0.01, Status: gaussian.StatusUndone, Rounds: 1},
	}
	require.NoError(t, s.SaveRun(ctx, run, results))

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Empty(t, cmp.Diff(run, runs[0]))

	stored, err := s.Results(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff([]extract.Result{results[1], results[0]}, stored))
}

func TestSaveRun_RollsBackOnFailure(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	run := NewRun("/data", time.Now())
	dup := []extract.Result{
		{FileName: "x.log", Status: gaussian.StatusDone},
		{FileName: "x.log", Status: gaussian.StatusDone},
	}
	require.Error(t, s.SaveRun(ctx, run, dup))

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs, "run row is rolled back with its results")
}

func TestRuns_NewestFirst(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	older := NewRun("/a", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	newer := NewRun("/b", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, s.SaveRun(ctx, older, nil))
	require.NoError(t, s.SaveRun(ctx, newer, nil))

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newer.ID, runs[0].ID)
	assert.Equal(t, older.ID, runs[1].ID)
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveRun(context.Background(), NewRun("/a", time.Now()), nil))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	runs, err := s.Runs(context.Background())
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestOpen_PathWithURISyntax(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run?1 #a 100%")
	require.NoError(t, os.Mkdir(dir, 0o755))
	path := filepath.Join(dir, "results.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveRun(context.Background(), NewRun(dir, time.Now()), nil))
	require.NoError(t, s.Close())

	assert.FileExists(t, path)
	entries, err := os.ReadDir(filepath.Dir(dir))
	require.NoError(t, err)
	require.Len(t, entries, 1, "nothing is created beside the intended directory")
	assert.Equal(t, filepath.Base(dir), entries[0].Name())
}

func TestDSN(t *testing.T) {
	got := dsn("/data/run?1#a%.db")
	assert.True(t, strings.HasPrefix(got, "file:/data/run%3F1%23a%25.db?_pragma=journal_mode(WAL)&"), got)
	assert.Contains(t, got, "_pragma=busy_timeout(5000)")
	assert.Contains(t, got, "_pragma=foreign_keys(ON)")
}

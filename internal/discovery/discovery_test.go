package discovery

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir, name string, size int) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(strings.Repeat("x", size)), 0o644))
}

func TestExpandExtensions(t *testing.T) {
	assert.Equal(t, []string{".log", ".out"}, ExpandExtensions(".LOG"))
	assert.Equal(t, []string{".out"}, ExpandExtensions("out"))
	assert.Equal(t, []string{".log", ".out"}, ExpandExtensions(".log", ".out"))
	assert.Empty(t, ExpandExtensions(" "))
}

func TestFind(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "b.log", 1)
	touch(t, dir, "a.LOG", 1)
	touch(t, dir, "c.out", 1)
	touch(t, dir, "d.gjf", 1)
	touch(t, dir, "noext", 1)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.log"), 0o755))

	res, err := Find(Options{Dir: dir, Extensions: ExpandExtensions(".log")})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.LOG", "b.log", "c.out"}, res.Files)
	assert.Empty(t, res.Oversized)
}

func TestFind_BatchedMatchesUnbatched(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"e.log", "a.log", "c.log", "b.log", "d.log", "x.txt"} {
		touch(t, dir, n, 1)
	}

	all, err := Find(Options{Dir: dir, Extensions: []string{".log"}})
	require.NoError(t, err)
	batched, err := Find(Options{Dir: dir, Extensions: []string{".log"}, BatchSize: 2})
	require.NoError(t, err)

	assert.Equal(t, all.Files, batched.Files)
	assert.Len(t, batched.Files, 5)
}

func TestFind_SkipsOversized(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "small.log", 10)
	touch(t, dir, "big.log", 1024*1024+1)

	res, err := Find(Options{Dir: dir, Extensions: []string{".log"}, MaxSizeMB: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"small.log"}, res.Files)
	assert.Equal(t, []string{"big.log"}, res.Oversized)
}

func TestFind_FollowsSymlinks(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(t.TempDir(), "real.log")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))
	require.NoError(t, os.Symlink(target, filepath.Join(dir, "linked.log")))
	require.NoError(t, os.Symlink(filepath.Join(dir, "missing.log"), filepath.Join(dir, "dangling.log")))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.log"), 0o755))
	require.NoError(t, os.Symlink(filepath.Join(dir, "sub.log"), filepath.Join(dir, "dirlink.log")))

	res, err := Find(Options{Dir: dir, Extensions: []string{".log"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"linked.log"}, res.Files)
}

func TestFind_MissingDir(t *testing.T) {
	_, err := Find(Options{Dir: filepath.Join(t.TempDir(), "nope"), Extensions: []string{".log"}})
	assert.Error(t, err)
}

func TestHasExtension(t *testing.T) {
	assert.True(t, HasExtension("x.Gjf", []string{".gjf"}))
	assert.False(t, HasExtension("x", []string{".gjf"}))
	assert.Equal(t, ".log/.out", Describe([]string{".log", ".out"}))
}

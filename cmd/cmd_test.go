package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lenhanpham/gaussian-extractor/internal/config"
	"github.com/lenhanpham/gaussian-extractor/internal/inputgen"
	"github.com/lenhanpham/gaussian-extractor/internal/store"
	"github.com/lenhanpham/gaussian-extractor/internal/version"
)

const finishedLog = ` Entering Gaussian System, Link 0=g16
 # opt freq b3lyp/6-31g(d)
 SCF Done:  E(RB3LYP) =  -76.4089999     A.U. after    5 cycles
 Frequencies --   1625.1234              3710.2201              3821.5566
 Temperature   298.150 Kelvin.  Pressure   1.00000 Atm.
 Zero-point correction=                           0.021000 (Hartree/Particle)
 Thermal correction to Gibbs Free Energy=         0.003000
 Sum of electronic and zero-point Energies=         -76.387999
 Sum of electronic and thermal Free Energies=       -76.406000
                         Standard orientation:
 ---------------------------------------------------------------------
 Center     Atomic      Atomic             Coordinates (Angstroms)
 Number     Number       Type             X           Y           Z
 ---------------------------------------------------------------------
      1          8           0        0.000000    0.000000    0.117300
      2          1           0        0.000000    0.757200   -0.469200
      3          1           0        0.000000   -0.757200   -0.469200
 ---------------------------------------------------------------------
 Normal termination of Gaussian 16 at Mon Jan  1 00:00:00 2024.
`

const waterXYZ = `3
water
O    0.000000    0.000000    0.117300
H    0.000000    0.757200   -0.469200
H    0.000000   -0.757200   -0.469200
`

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execute runs the command tree with args in an isolated home and working
// directory and returns what it printed.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	resetFlags(rootCmd)
	configErr = nil

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := Execute(context.Background())
	return out.String(), errOut.String(), err
}

func batchDir(t *testing.T, name string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.Mkdir(dir, 0o755))
	return dir
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "gaussian-extractor", rootCmd.Use)
	assert.True(t, rootCmd.SilenceErrors)
	assert.True(t, rootCmd.SilenceUsage)
	assert.Equal(t, version.Current().String(), rootCmd.Version)

	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"extract", "done", "errors", "pcm", "imode", "check", "high-kj", "high-au", "xyz", "ci", "config", "version", "completion", "interactive"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestExecute_DefaultRunsExtract(t *testing.T) {
	dir := batchDir(t, "batch")
	writeFile(t, dir, "water.log", finishedLog)

	out, _, err := execute(t, "-d", dir)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "batch.results"))
	assert.Contains(t, out, "Results written to batch.results")
}

func TestExecute_ExtractCSVWithStore(t *testing.T) {
	dir := batchDir(t, "batch")
	writeFile(t, dir, "water.log", finishedLog)
	dbPath := filepath.Join(t.TempDir(), "results.db")

	out, _, err := execute(t, "extract", "-d", dir, "-f", "csv", "-q", "--sqlite", dbPath)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "batch.csv"))
	assert.Contains(t, out, "Processed 1/1 files.")

	db, err := store.Open(dbPath)
	require.NoError(t, err)
	defer db.Close()
	runs, err := db.Runs(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].FilesOK)
	assert.InDelta(t, 298.15, runs[0].Temperature, 1e-9)
}

func TestExecute_ExtractRejectsBadTemperature(t *testing.T) {
	dir := batchDir(t, "batch")

	_, _, err := execute(t, "extract", "-d", dir, "-t", "-5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "temperature must be positive")
}

func TestExecute_ResourceInfo(t *testing.T) {
	out, _, err := execute(t, "--resource-info", "-n", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "=== System Resources ===")
	assert.Contains(t, out, "Requested threads: 1")
}

func TestExecute_InvalidThreads(t *testing.T) {
	_, _, err := execute(t, "extract", "-n", "many")
	require.Error(t, err)
}

func TestExecute_DoneMovesJob(t *testing.T) {
	dir := batchDir(t, "batch")
	writeFile(t, dir, "water.log", finishedLog)
	writeFile(t, dir, "water.gjf", "input")

	_, _, err := execute(t, "done", "-d", dir, "-q")
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "batch-done", "water.log"))
	assert.FileExists(t, filepath.Join(dir, "batch-done", "water.gjf"))
	assert.NoFileExists(t, filepath.Join(dir, "water.log"))
}

func TestExecute_DoneWithSuffix(t *testing.T) {
	dir := batchDir(t, "batch")
	writeFile(t, dir, "water.log", finishedLog)

	_, _, err := execute(t, "done", "-d", dir, "-q", "--dir-suffix", "finished")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "batch-finished", "water.log"))
}

func TestExecute_XYZ(t *testing.T) {
	dir := batchDir(t, "batch")
	writeFile(t, dir, "water.log", finishedLog)

	_, _, err := execute(t, "xyz", "-d", dir, "-q")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "batch_final_coord", "water.xyz"))
}

func TestExecute_CICreatesInputs(t *testing.T) {
	dir := batchDir(t, "mols")
	writeFile(t, dir, "water.xyz", waterXYZ)

	out, _, err := execute(t, "ci", "-d", dir, "--calc-type", "opt_freq", "--solvent", "water", "--charge", "-1", "--mult", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "was newly created")

	data, err := os.ReadFile(filepath.Join(dir, "water.gau"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "opt(maxcycles=300) freq scf(maxcycle=300,xqc) UWB97XD/Def2SVPP scrf(smd,solvent=water)")
	assert.Contains(t, string(data), "-1 2\n")
}

func TestExecute_CIParamFileWithOverride(t *testing.T) {
	dir := batchDir(t, "mols")
	writeFile(t, dir, "water.xyz", waterXYZ)
	params := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(params, []byte("calc_type: sp\nfunctional: b3lyp\nextension: .com\n"), 0o644))

	_, _, err := execute(t, "ci", "-d", dir, "--param-file", params, "--basis", "6-31G")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "water.com"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "B3LYP/6-31G")
}

func TestExecute_CIRejectsInvalidParams(t *testing.T) {
	dir := batchDir(t, "mols")
	writeFile(t, dir, "water.xyz", waterXYZ)

	_, _, err := execute(t, "ci", "-d", dir, "--basis", "gen")
	require.Error(t, err)

	_, _, err = execute(t, "ci", "-d", dir, "--calc-type", "bogus")
	require.Error(t, err)

	_, _, err = execute(t, "ci", "-d", dir, "--mult", "0")
	require.Error(t, err)
}

func TestExecute_CITemplates(t *testing.T) {
	dir := t.TempDir()

	_, _, err := execute(t, "ci", "-d", dir, "--genci-params=ts_freq")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "ts_freq.yaml"))

	_, _, err = execute(t, "ci", "-d", dir, "--genci-params=ts_freq")
	require.Error(t, err, "existing templates are not overwritten")

	all := filepath.Join(t.TempDir(), "templates")
	out, _, err := execute(t, "ci", "--genci-all-params="+all)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(all, "irc.yaml"))
	assert.Contains(t, out, "Created ")
}

func TestExecute_ConfigCreateAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gx.yaml")

	out, _, err := execute(t, "config", "create", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	_, _, err = execute(t, "config", "create", path)
	require.ErrorIs(t, err, config.ErrConfigExists)

	_, _, err = execute(t, "config", "create", path, "--force")
	require.NoError(t, err)

	out, _, err = execute(t, "config", "show", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration file: "+path)
	assert.Contains(t, out, "=== Extraction ===")

	out, _, err = execute(t, "config", "path", "--config", path)
	require.NoError(t, err)
	assert.Equal(t, path+"\n", out)
}

func TestExecute_ConfigPathDefaults(t *testing.T) {
	out, _, err := execute(t, "config", "path")
	require.NoError(t, err)
	assert.Contains(t, out, "using defaults")
}

func TestExecute_ConfigFileSetsDefaults(t *testing.T) {
	dir := batchDir(t, "batch")
	writeFile(t, dir, "water.log", finishedLog)
	path := filepath.Join(t.TempDir(), "gx.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default_output_format: csv\nquiet_mode: true\n"), 0o644))

	_, _, err := execute(t, "extract", "-d", dir, "--config", path)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "batch.csv"))
}

func TestExecute_Version(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, version.HeaderInfo())
	assert.Contains(t, out, "Build time: "+version.BuildTime)
}

func TestExecute_Completion(t *testing.T) {
	out, _, err := execute(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "gaussian-extractor")

	_, _, err = execute(t, "completion", "tcsh")
	require.Error(t, err)
}

func TestInteractiveArgs(t *testing.T) {
	tests := []struct {
		name   string
		choice interactiveChoice
		want   []string
	}{
		{"extract", interactiveChoice{Task: "extract", Dir: "runs"}, []string{"extract", "--dir", "runs"}},
		{"quiet check", interactiveChoice{Task: "done", Dir: ".", Quiet: true}, []string{"done", "--dir", ".", "--quiet"}},
		{"ci type", interactiveChoice{Task: "ci", Dir: "mols", CalcType: "ts_freq"}, []string{"ci", "--dir", "mols", "--calc-type", "ts_freq"}},
		{"calc type only for ci", interactiveChoice{Task: "xyz", CalcType: "sp"}, []string{"xyz"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, interactiveArgs(tt.choice))
		})
	}
}

func TestInteractiveTasksAreCommands(t *testing.T) {
	for _, name := range interactiveTasks {
		sub, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
		assert.NotNil(t, sub.RunE, name)
	}
	assert.Len(t, inputgen.CalcTypes(), 11)
}

func TestExecute_InteractiveNeedsTerminal(t *testing.T) {
	_, _, err := execute(t, "interactive")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs a terminal")
}

func TestRunChoice_RunsSelectedCommand(t *testing.T) {
	dir := batchDir(t, "mols")
	writeFile(t, dir, "water.xyz", waterXYZ)

	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	resetFlags(rootCmd)
	configErr = nil
	require.NoError(t, config.Init(""))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetContext(context.Background())
	t.Cleanup(func() { rootCmd.SetOut(nil) })

	err := runChoice(rootCmd, interactiveChoice{Task: "ci", Dir: dir, Quiet: true, CalcType: "opt_freq"})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "water.gau"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "opt(maxcycles=300) freq")

	err = runChoice(rootCmd, interactiveChoice{Task: "config"})
	assert.Error(t, err, "config has no action of its own")
}

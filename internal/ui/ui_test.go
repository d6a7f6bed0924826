package ui

import (
	"bytes"
	"testing"

	fcolor "github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func noColor(t *testing.T) {
	t.Helper()
	prev := fcolor.NoColor
	fcolor.NoColor = true
	t.Cleanup(func() { fcolor.NoColor = prev })
}

func TestSpinner_NonTerminalIsSilent(t *testing.T) {
	var buf bytes.Buffer
	sp := NewSpinnerTo(&buf, "Scanning")
	assert.False(t, sp.Enabled())
	sp.Start()
	sp.UpdateMessage("still scanning")
	sp.Stop()
	assert.Empty(t, buf.String())
}

func TestStatus_PlainWithoutColor(t *testing.T) {
	noColor(t)
	for _, s := range []string{"DONE", "ERROR", "UNDONE", "COMPLETED", "PCM_FAILED", "RUNNING", "other"} {
		assert.Equal(t, s, Status(s))
	}
}

func TestStatus_Colored(t *testing.T) {
	prev := fcolor.NoColor
	fcolor.NoColor = false
	t.Cleanup(func() { fcolor.NoColor = prev })

	assert.Contains(t, Status("DONE"), "\x1b[32m")
	assert.Contains(t, Status("ERROR"), "\x1b[31m")
	assert.Equal(t, "other", Status("other"))
}

func TestPrinters(t *testing.T) {
	noColor(t)
	var buf bytes.Buffer
	PrintError(&buf, "failed %d", 2)
	PrintWarning(&buf, "careful")
	PrintSuccess(&buf, "saved %s", "x.results")
	assert.Equal(t, "✗ failed 2\n✗ careful\n✔ saved x.results\n", buf.String())
}

func TestWidth_NonTerminal(t *testing.T) {
	var buf bytes.Buffer
	assert.False(t, IsTerminal(&buf))
	assert.Equal(t, DefaultWidth, Width(&buf))
	assert.Equal(t, "-----", Rule(&buf, 5))
	assert.Len(t, Rule(&buf, 200), DefaultWidth)
}

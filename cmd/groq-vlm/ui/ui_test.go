package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureOut(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := Out
	Out = &buf
	t.Cleanup(func() { Out = prev })
	return &buf
}

func TestMessages_NoColor(t *testing.T) {
	InitUI(true, true)
	buf := captureOut(t)

	Step("Converting %s", "doc.pdf")
	Warning("Page %d failed", 2)

	assert.Equal(t, "→ Converting doc.pdf\n⚠ Page 2 failed\n", buf.String())
	assert.True(t, Verbose())

	InitUI(true, false)
	assert.False(t, Verbose())
}

func TestSpinner_UpdateMessage(t *testing.T) {
	InitUI(true, false)
	s := NewSpinner(&bytes.Buffer{}, "Opening document")
	assert.Equal(t, " Opening document", s.spinner.Suffix)

	s.UpdateMessage("Rendering doc.pdf")
	assert.Equal(t, " Rendering doc.pdf", s.spinner.Suffix)
}

func TestProgressBar_NilSafe(t *testing.T) {
	var bar *ProgressBar
	assert.NotPanics(t, func() {
		bar.Add(1)
		bar.Finish()
	})
}

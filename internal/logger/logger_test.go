package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDebugSuppressedByDefault(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	SetVerbose(false)

	Debug("hidden %d", 1)
	assert.Empty(t, buf.String())

	Info("shown %d", 2)
	assert.Contains(t, buf.String(), "shown 2")
}

func TestVerboseEnablesDebug(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	SetVerbose(true)
	defer SetVerbose(false)

	Debug("page %d fetched", 3)
	assert.Contains(t, buf.String(), "page 3 fetched")
}

func TestLevelsLabelled(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	Warn("careful")
	Error("broken")

	out := buf.String()
	assert.True(t, strings.Contains(out, "careful"))
	assert.True(t, strings.Contains(out, "broken"))
}

package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitWriterLevels(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, false, "")

	Debug("hidden")
	Info("shown", "category", "ai")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "category=ai")
}

func TestInitWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, true, "json")

	Debug("tier attempted", "tier", 2)

	assert.Contains(t, buf.String(), `"msg":"tier attempted"`)
	assert.Contains(t, buf.String(), `"tier":2`)
}

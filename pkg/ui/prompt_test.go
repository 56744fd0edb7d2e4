package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderPromptPlainWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, "tish> ", RenderPrompt(&buf, "tish> "))
}

func TestPrintBannerSilentWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "tish dev")
	assert.Empty(t, buf.String())
}

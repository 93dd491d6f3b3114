package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommandParser(t *testing.T) {
	parser := NewCommandParser()

	tests := []struct {
		input string
		want  CommandType
		isCmd bool
	}{
		{"/help", CommandTypeHelp, true},
		{"  /help  ", CommandTypeHelp, true},
		{"/?", CommandTypeHelp, true},
		{"/replay", CommandTypeReplay, true},
		{"/quit", CommandTypeQuit, true},
		{"/exit", CommandTypeQuit, true},
		{"/help me", CommandTypeUnknown, false},
		{"/unknown", CommandTypeUnknown, false},
		{"help", CommandTypeUnknown, false},
		{"", CommandTypeUnknown, false},
	}

	for _, tt := range tests {
		cmd := parser.Parse(tt.input)
		assert.Equal(t, tt.isCmd, parser.IsCommand(tt.input), tt.input)
		if !tt.isCmd {
			assert.Nil(t, cmd, tt.input)
			continue
		}
		if assert.NotNil(t, cmd, tt.input) {
			assert.Equal(t, tt.want, cmd.Type, tt.input)
		}
	}
}

func TestFormatCommandType(t *testing.T) {
	assert.Equal(t, "HELP", FormatCommandType(CommandTypeHelp))
	assert.Equal(t, "REPLAY", FormatCommandType(CommandTypeReplay))
	assert.Equal(t, "QUIT", FormatCommandType(CommandTypeQuit))
	assert.Equal(t, "UNKNOWN", FormatCommandType(CommandTypeUnknown))
}

func TestMarkdownRenderer(t *testing.T) {
	plain := NewMarkdownRenderer(80, true)
	assert.Equal(t, "**bold**", plain.Render("**bold**"))

	r := NewMarkdownRenderer(80, false)
	assert.Equal(t, "", r.Render(""))
	assert.Contains(t, r.Render("Galp"), "Galp")

	r.SetWidth(0)
	assert.Contains(t, r.Render("Galp"), "Galp")
}

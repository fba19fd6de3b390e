package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizer(t *testing.T) {
	tests := []struct {
		input    string
		expected []TokenType
	}{
		{"cat file.txt", []TokenType{WORD, WORD, EOF}},
		{"cat file.txt | grep pattern", []TokenType{WORD, WORD, PIPE, WORD, WORD, EOF}},
		{`echo "hello world" > output.txt`, []TokenType{WORD, WORD, REDIRECT_OUT, WORD, EOF}},
		{"command1 && command2 || command3", []TokenType{WORD, AND, WORD, OR, WORD, EOF}},
		{"cat file1; cat file2", []TokenType{WORD, WORD, SEMICOLON, WORD, WORD, EOF}},
		{"sleep 1 &", []TokenType{WORD, WORD, BACKGROUND, EOF}},
		{"a >> b < c", []TokenType{WORD, REDIRECT_APPEND, WORD, REDIRECT_IN, WORD, EOF}},
		{"a # comment | ignored\nb", []TokenType{WORD, NEWLINE, WORD, EOF}},
		{"#!/bin/vosh\necho", []TokenType{NEWLINE, WORD, EOF}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tokens, err := NewTokenizer(tt.input).TokenizeAll()
			require.NoError(t, err)
			types := make([]TokenType, len(tokens))
			for i, tok := range tokens {
				types[i] = tok.Type
			}
			assert.Equal(t, tt.expected, types)
		})
	}
}

func TestTokenizerWords(t *testing.T) {
	tests := []struct {
		input  string
		value  string
		quoted bool
	}{
		{"plain", "plain", false},
		{`"double $HOME"`, "double $HOME", true},
		{`'single \n'`, `single \n`, true},
		{`"tab\there"`, "tab\there", true},
		{`pre"mid dle"post`, "premid dlepost", true},
		{`a\ b`, "a b", true},
		{`''`, "", true},
		{"*.txt", "*.txt", false},
		{"héllo", "héllo", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tok, err := NewTokenizer(tt.input).NextToken()
			require.NoError(t, err)
			assert.Equal(t, WORD, tok.Type)
			assert.Equal(t, tt.value, tok.Value)
			assert.Equal(t, tt.quoted, tok.Quoted)
		})
	}
}

func TestParseUnits(t *testing.T) {
	units, err := Parse("echo hi | tr h H > out.txt && cat < out.txt; sleep 5 & false || echo y")
	require.NoError(t, err)
	require.Len(t, units, 5)

	first := units[0]
	assert.Equal(t, OpAnd, first.Operator)
	require.Len(t, first.Pipeline.Segments, 2)
	assert.Equal(t, "echo", first.Pipeline.Segments[0].Name)
	assert.Equal(t, []string{"hi"}, first.Pipeline.Segments[0].Values())
	assert.Equal(t, []string{"h", "H"}, first.Pipeline.Segments[1].Values())
	assert.Equal(t, &Redirect{Mode: Overwrite, Path: "out.txt"}, first.Pipeline.Output)

	assert.Equal(t, OpSequence, units[1].Operator)
	assert.Equal(t, "out.txt", units[1].Pipeline.InputRedirect)

	assert.Equal(t, OpBackground, units[2].Operator)
	assert.True(t, units[2].Pipeline.Background)

	assert.Equal(t, OpOr, units[3].Operator)
	assert.Equal(t, OpEnd, units[4].Operator)
	assert.Equal(t, "echo y", units[4].Pipeline.String())
}

func TestParseAppendAndNewlines(t *testing.T) {
	units, err := Parse("echo a >> log\n\necho b;")
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, Append, units[0].Pipeline.Output.Mode)
	assert.Equal(t, OpSequence, units[0].Operator)
	assert.Equal(t, OpSequence, units[1].Operator)
	assert.Equal(t, "echo a >> log", units[0].Pipeline.String())
}

func TestParseEmpty(t *testing.T) {
	for _, in := range []string{"", "   ", "\n\n", "# only a comment"} {
		units, err := Parse(in)
		require.NoError(t, err, in)
		assert.Empty(t, units, in)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []string{
		`echo "unterminated`,
		`echo 'unterminated`,
		`echo trailing\`,
		"echo hi >",
		"cat <",
		"echo hi |",
		"| echo hi",
		"; echo hi",
		"echo a && && echo b",
		"echo a &&",
		"echo a ||",
		"echo a | | b",
		"echo a ;; echo b",
	}
	for _, in := range tests {
		t.Run(in, func(t *testing.T) {
			_, err := Parse(in)
			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.GreaterOrEqual(t, pe.Pos, 0)
		})
	}
}

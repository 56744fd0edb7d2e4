package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSimpleCommand(t *testing.T) {
	tok, err := Parse("ls -l /tmp")
	require.NoError(t, err)
	assert.Equal(t, []string{"ls", "-l", "/tmp"}, tok.Argv)
	assert.False(t, tok.Background)
	assert.Equal(t, BuiltinNone, tok.Builtin)
	assert.Equal(t, "ls -l /tmp", tok.Raw)
}

func TestParseBlankLine(t *testing.T) {
	for _, line := range []string{"", "   ", "\t"} {
		tok, err := Parse(line)
		require.NoError(t, err)
		assert.Empty(t, tok.Argv)
	}
}

func TestParseBackground(t *testing.T) {
	tok, err := Parse("sleep 5 &")
	require.NoError(t, err)
	assert.Equal(t, []string{"sleep", "5"}, tok.Argv)
	assert.True(t, tok.Background)
	assert.Equal(t, "sleep 5 &", tok.Raw)
}

func TestParseAmpersandOnlyAsLastToken(t *testing.T) {
	tok, err := Parse("echo a&b")
	require.NoError(t, err)
	assert.Equal(t, []string{"echo", "a&b"}, tok.Argv)
	assert.False(t, tok.Background)
}

func TestParseQuotedTokens(t *testing.T) {
	tok, err := Parse(`sh -c 'sleep 1; echo hi'`)
	require.NoError(t, err)
	assert.Equal(t, []string{"sh", "-c", "sleep 1; echo hi"}, tok.Argv)

	tok, err = Parse(`echo "hello world"`)
	require.NoError(t, err)
	assert.Equal(t, []string{"echo", "hello world"}, tok.Argv)
}

func TestParseUnmatchedQuote(t *testing.T) {
	_, err := Parse(`echo "oops`)
	assert.ErrorIs(t, err, ErrUnmatchedQuote)
}

func TestParseRedirects(t *testing.T) {
	tok, err := Parse("sort < in.txt > out.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"sort"}, tok.Argv)
	assert.Equal(t, "in.txt", tok.Infile)
	assert.Equal(t, "out.txt", tok.Outfile)

	tok, err = Parse("jobs > jobs.out")
	require.NoError(t, err)
	assert.Equal(t, BuiltinJobs, tok.Builtin)
	assert.Equal(t, "jobs.out", tok.Outfile)
}

func TestParseRedirectErrors(t *testing.T) {
	_, err := Parse("cat < a < b")
	assert.ErrorIs(t, err, ErrAmbiguousRedirect)

	_, err = Parse("cat > a > b")
	assert.ErrorIs(t, err, ErrAmbiguousRedirect)

	_, err = Parse("cat <")
	assert.ErrorIs(t, err, ErrMissingRedirectTarget)

	_, err = Parse("cat < > out")
	assert.ErrorIs(t, err, ErrAmbiguousRedirect)
}

func TestParseBuiltins(t *testing.T) {
	tests := []struct {
		line string
		want Builtin
	}{
		{"quit", BuiltinQuit},
		{"jobs", BuiltinJobs},
		{"bg %1", BuiltinBg},
		{"fg 1234", BuiltinFg},
		{"jobsx", BuiltinNone},
		{"echo quit", BuiltinNone},
	}
	for _, tc := range tests {
		tok, err := Parse(tc.line)
		require.NoError(t, err, tc.line)
		assert.Equal(t, tc.want, tok.Builtin, tc.line)
	}
}

func TestParseBackgroundAmpersandAlone(t *testing.T) {
	tok, err := Parse("&")
	require.NoError(t, err)
	assert.Empty(t, tok.Argv)
}

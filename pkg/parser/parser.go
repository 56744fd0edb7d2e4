// Package parser tokenizes a raw command line into an argument vector,
// optional redirect targets, a background flag, and a builtin
// classification. It understands single- and double-quoted tokens and the
// <, > and trailing & operators; pipelines and globbing are out of scope.
package parser

import (
	"errors"
	"strings"
)

// Builtin identifies commands the dispatcher interprets itself.
type Builtin int

const (
	BuiltinNone Builtin = iota
	BuiltinQuit
	BuiltinJobs
	BuiltinBg
	BuiltinFg
)

var (
	// ErrAmbiguousRedirect reports a duplicate < or > on one line.
	ErrAmbiguousRedirect = errors.New("ambiguous I/O redirection")
	// ErrMissingRedirectTarget reports a < or > with no following file name.
	ErrMissingRedirectTarget = errors.New("must provide file name for redirection")
	// ErrUnmatchedQuote reports a quoted token with no closing quote.
	ErrUnmatchedQuote = errors.New("unmatched quote")
)

// Tokens is the parsed form of one command line.
type Tokens struct {
	Argv       []string
	Infile     string
	Outfile    string
	Background bool
	Builtin    Builtin

	// Raw is the original line, retained for job display.
	Raw string
}

// parsing states: what the next token binds to
type nextToken int

const (
	nextArg nextToken = iota
	nextInfile
	nextOutfile
)

// Parse tokenizes line. A blank line yields empty Argv and no error.
// Background is true iff the last token is exactly "&".
func Parse(line string) (*Tokens, error) {
	tok := &Tokens{Raw: strings.TrimSpace(line)}

	state := nextArg
	rest := line
	for {
		rest = strings.TrimLeft(rest, " \t\r\n")
		if rest == "" {
			break
		}

		switch rest[0] {
		case '<':
			if tok.Infile != "" {
				return nil, ErrAmbiguousRedirect
			}
			if state != nextArg {
				return nil, ErrAmbiguousRedirect
			}
			state = nextInfile
			rest = rest[1:]
			continue
		case '>':
			if tok.Outfile != "" {
				return nil, ErrAmbiguousRedirect
			}
			if state != nextArg {
				return nil, ErrAmbiguousRedirect
			}
			state = nextOutfile
			rest = rest[1:]
			continue
		}

		var word string
		var err error
		word, rest, err = scanWord(rest)
		if err != nil {
			return nil, err
		}

		switch state {
		case nextInfile:
			tok.Infile = word
		case nextOutfile:
			tok.Outfile = word
		default:
			tok.Argv = append(tok.Argv, word)
		}
		state = nextArg
	}

	if state != nextArg {
		return nil, ErrMissingRedirectTarget
	}
	if len(tok.Argv) == 0 {
		return tok, nil
	}

	if tok.Argv[len(tok.Argv)-1] == "&" {
		tok.Background = true
		tok.Argv = tok.Argv[:len(tok.Argv)-1]
		if len(tok.Argv) == 0 {
			return &Tokens{Raw: tok.Raw}, nil
		}
	}

	tok.Builtin = classify(tok.Argv[0])
	return tok, nil
}

// scanWord consumes one token from the front of s. A token starting with a
// quote runs to the matching close quote; anything else runs to the next
// whitespace.
func scanWord(s string) (word, rest string, err error) {
	if s[0] == '\'' || s[0] == '"' {
		quote := s[0]
		end := strings.IndexByte(s[1:], quote)
		if end < 0 {
			return "", "", ErrUnmatchedQuote
		}
		return s[1 : 1+end], s[2+end:], nil
	}
	end := strings.IndexAny(s, " \t\r\n")
	if end < 0 {
		return s, "", nil
	}
	return s[:end], s[end:], nil
}

func classify(name string) Builtin {
	switch name {
	case "quit":
		return BuiltinQuit
	case "jobs":
		return BuiltinJobs
	case "bg":
		return BuiltinBg
	case "fg":
		return BuiltinFg
	default:
		return BuiltinNone
	}
}

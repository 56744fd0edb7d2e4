// Package history persists issued command lines to an append-only file in
// the workspace. A file lock guards against interleaved writes from
// concurrent shell sessions sharing one workspace.
package history

import (
	"fmt"
	"os"
	"strings"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
)

// File is an append-only history file.
type File struct {
	path   string
	lock   *flock.Flock
	logger zerolog.Logger
}

// Open prepares a history file at path. The file is created lazily on the
// first append.
func Open(path string, logger zerolog.Logger) *File {
	return &File{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logger.With().Str("component", "history").Logger(),
	}
}

// Path returns the history file location.
func (f *File) Path() string { return f.path }

// Append records one command line. Failures are logged, never fatal: losing
// a history line must not disturb the command loop.
func (f *File) Append(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	locked, err := f.lock.TryLock()
	if err != nil || !locked {
		f.logger.Debug().Err(err).Msg("history lock unavailable, dropping line")
		return
	}
	defer func() {
		if err := f.lock.Unlock(); err != nil {
			f.logger.Debug().Err(err).Msg("history unlock failed")
		}
	}()

	if err := f.append(line); err != nil {
		f.logger.Warn().Err(err).Str("path", f.path).Msg("history append failed")
	}
}

// Lines returns all recorded history lines.
func (f *File) Lines() ([]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read history: %w", err)
	}
	var out []string
	for _, l := range strings.Split(string(data), "\n") {
		if l != "" {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *File) append(line string) error {
	fh, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer fh.Close()

	if _, err := fh.WriteString(line + "\n"); err != nil {
		return err
	}
	return nil
}

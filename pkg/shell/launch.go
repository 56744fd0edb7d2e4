package shell

import (
	"fmt"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"

	"github.com/tish-sh/tish/pkg/parser"
)

// spawn starts tok's command as the leader of a fresh process group and
// returns its pid (== pgid). Setpgid decouples the child from the shell's
// group so terminal interrupt and suspend only reach jobs the relay
// explicitly targets. Signal dispositions reset to default across exec, so
// the program reacts to default semantics rather than the shell's handlers.
//
// The child never re-enters shell logic: fork and exec are atomic here, and
// a failed launch reports an error with no process created.
func (s *Shell) spawn(tok *parser.Tokens) (int, error) {
	cmd := exec.Command(tok.Argv[0], tok.Argv[1:]...)
	cmd.SysProcAttr = &unix.SysProcAttr{Setpgid: true}
	cmd.Env = os.Environ()

	var opened []*os.File
	closeOpened := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}

	if tok.Infile != "" {
		f, err := os.Open(tok.Infile)
		if err != nil {
			return 0, fmt.Errorf("redirect input: %w", err)
		}
		opened = append(opened, f)
		cmd.Stdin = f
	} else {
		cmd.Stdin = os.Stdin
	}

	if tok.Outfile != "" {
		f, err := os.OpenFile(tok.Outfile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			closeOpened()
			return 0, fmt.Errorf("redirect output: %w", err)
		}
		opened = append(opened, f)
		cmd.Stdout = f
	} else {
		cmd.Stdout = s.childStdout()
	}
	cmd.Stderr = s.childStderr()

	err := cmd.Start()
	// The child holds its own descriptors after fork; ours close either way.
	closeOpened()
	if err != nil {
		return 0, err
	}

	pid := cmd.Process.Pid
	// The relay reaps through wait4; drop the runtime's handle so nothing
	// else ever waits on this pid.
	_ = cmd.Process.Release()

	s.logger.Debug().Int("pgid", pid).Strs("argv", tok.Argv).Msg("child started")
	return pid, nil
}

// childStdout and childStderr hand real descriptors to the child. Anything
// other than an *os.File (a test buffer) falls back to the process streams:
// wiring a pipe would require a copier goroutine whose lifecycle belongs to
// exec.Cmd.Wait, which the relay replaces.
func (s *Shell) childStdout() *os.File {
	if f, ok := s.out.(*os.File); ok {
		return f
	}
	return os.Stdout
}

func (s *Shell) childStderr() *os.File {
	if f, ok := s.errOut.(*os.File); ok {
		return f
	}
	return os.Stderr
}

package shell

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/tish-sh/tish/pkg/event"
	"github.com/tish-sh/tish/pkg/job"
	"github.com/tish-sh/tish/pkg/parser"
)

// Eval dispatches one command line: builtins are interpreted in place,
// anything else is launched as an external job. User errors are printed
// and swallowed; only quit and fatal conditions surface as errors.
func (s *Shell) Eval(line string) error {
	tok, err := parser.Parse(line)
	if err != nil {
		fmt.Fprintf(s.errOut, "tish: %v\n", err)
		return nil
	}
	if len(tok.Argv) == 0 {
		return nil
	}

	switch tok.Builtin {
	case parser.BuiltinQuit:
		return s.runQuit()
	case parser.BuiltinJobs:
		s.runJobs(tok)
		return nil
	case parser.BuiltinBg:
		s.runResume(tok, false)
		return nil
	case parser.BuiltinFg:
		s.runResume(tok, true)
		return nil
	}
	s.runExternal(tok)
	return nil
}

// runExternal launches an external command as a fresh job. The lock is held
// from before the launch until the table entry is committed, so the relay
// can never observe (or reap past) a half-registered child.
func (s *Shell) runExternal(tok *parser.Tokens) {
	initial := job.Foreground
	if tok.Background {
		initial = job.Background
	}

	s.mu.Lock()

	if s.table.Full() {
		capacity := s.table.Capacity()
		s.mu.Unlock()
		fmt.Fprintf(s.errOut, "tish: too many jobs (max %d); %s not started\n", capacity, tok.Argv[0])
		s.publish(event.JobRefused, job.Job{Cmdline: tok.Raw}, 0)
		return
	}

	pid, err := s.spawn(tok)
	if err != nil {
		s.mu.Unlock()
		fmt.Fprintf(s.errOut, "tish: %s: %v\n", tok.Argv[0], err)
		return
	}

	j, ok := s.table.Add(pid, initial, tok.Raw)
	if !ok {
		// Cannot happen while we hold the lock across the Full check, but
		// a refused child must never be leaked: kill the group and let the
		// relay reap it.
		s.mu.Unlock()
		_ = unix.Kill(-pid, unix.SIGKILL)
		fmt.Fprintf(s.errOut, "tish: too many jobs; %s killed\n", tok.Argv[0])
		s.publish(event.JobRefused, job.Job{PGID: pid, Cmdline: tok.Raw}, int(unix.SIGKILL))
		return
	}
	s.publish(event.JobStarted, j, 0)

	if initial == job.Foreground {
		s.fgPGID = pid
		s.waitForegroundLocked(pid)
		s.fgPGID = 0
		s.mu.Unlock()
		return
	}

	s.mu.Unlock()
	fmt.Fprintf(s.out, "%s %s\n", j.Ref(), j.Cmdline)
}

// waitForegroundLocked blocks until pgid is no longer the foreground job:
// the relay reaps it (exit or kill) or marks it Stopped. Cond.Wait releases
// the lock while parked, which lets the relay run.
func (s *Shell) waitForegroundLocked(pgid int) {
	for {
		j := s.table.Get(pgid)
		if j == nil || j.State != job.Foreground {
			return
		}
		s.fgWake.Wait()
	}
}

// runResume implements fg and bg: look the job up by %jid or pid, set the
// target state, deliver SIGCONT to the whole group, and for fg fall into
// the foreground wait exactly like a fresh foreground launch.
func (s *Shell) runResume(tok *parser.Tokens, foreground bool) {
	name := "bg"
	if foreground {
		name = "fg"
	}
	if len(tok.Argv) < 2 {
		fmt.Fprintf(s.errOut, "tish: %s command requires %%jobid or pid argument\n", name)
		return
	}

	s.mu.Lock()
	j, err := s.table.Resolve(tok.Argv[1])
	if err != nil {
		s.mu.Unlock()
		fmt.Fprintf(s.errOut, "tish: %s: %v\n", name, err)
		return
	}
	target := *j

	if foreground {
		s.table.SetState(target.PGID, job.Foreground)
		s.fgPGID = target.PGID
		s.signalGroup(target.PGID, unix.SIGCONT)
		s.publish(event.JobContinued, target, int(unix.SIGCONT))
		s.waitForegroundLocked(target.PGID)
		s.fgPGID = 0
		s.mu.Unlock()
		return
	}

	s.table.SetState(target.PGID, job.Background)
	s.signalGroup(target.PGID, unix.SIGCONT)
	s.publish(event.JobContinued, target, int(unix.SIGCONT))
	s.mu.Unlock()
	fmt.Fprintf(s.out, "%s %s\n", target.Ref(), target.Cmdline)
}

// runJobs lists the table to stdout or to the line's redirect target.
func (s *Shell) runJobs(tok *parser.Tokens) {
	s.mu.Lock()
	jobs := s.table.Jobs()
	s.mu.Unlock()

	out := s.out
	if tok.Outfile != "" {
		f, err := os.OpenFile(tok.Outfile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			fmt.Fprintf(s.errOut, "tish: jobs: %v\n", err)
			return
		}
		defer f.Close()
		out = f
	}

	for _, j := range jobs {
		fmt.Fprintln(out, j.StatusLine())
	}
}

// runQuit tears down every live job's process group and stops the loop.
func (s *Shell) runQuit() error {
	s.mu.Lock()
	jobs := s.table.Jobs()
	for _, j := range jobs {
		s.signalGroup(j.PGID, unix.SIGKILL)
	}
	s.mu.Unlock()

	s.logger.Info().Int("jobs", len(jobs)).Msg("quit: killed remaining job groups")
	return ErrQuit
}

// signalGroup delivers sig to the whole process group. ESRCH means the
// group died under us, which the relay will observe; anything else on a
// kill of our own child is a broken invariant.
func (s *Shell) signalGroup(pgid int, sig unix.Signal) {
	if err := unix.Kill(-pgid, sig); err != nil && err != unix.ESRCH {
		s.logger.Fatal().Err(err).Int("pgid", pgid).Stringer("signal", sig).Msg("kill failed")
	}
}

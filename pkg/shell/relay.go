package shell

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/tish-sh/tish/pkg/event"
	"github.com/tish-sh/tish/pkg/job"
)

// relay drains asynchronous OS notifications. It is the single owner of
// reaping: only this goroutine calls wait4, removes jobs, and emits stop
// and termination notices, so a transition can never be reported twice.
func (s *Shell) relay(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-s.sigCh:
			switch sig {
			case unix.SIGCHLD:
				s.reapChildren()
			case unix.SIGINT:
				s.forwardToForeground(unix.SIGINT)
			case unix.SIGTSTP:
				s.forwardToForeground(unix.SIGTSTP)
			case unix.SIGQUIT:
				fmt.Fprintln(s.out, "Terminating after receipt of SIGQUIT signal")
				os.Exit(1)
			}
		}
	}
}

// reapChildren collects every child with a pending state change without
// blocking, then wakes any parked foreground wait. Signals coalesce, so one
// SIGCHLD delivery may stand for several children.
func (s *Shell) reapChildren() {
	s.mu.Lock()
	defer func() {
		s.fgWake.Broadcast()
		s.mu.Unlock()
	}()

	for {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, unix.WNOHANG|unix.WUNTRACED|unix.WCONTINUED, nil)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.ECHILD:
			// no children at all: a normal condition, not an error
			return
		case err != nil:
			s.logger.Fatal().Err(err).Msg("wait4 failed")
		case pid <= 0:
			return
		}
		s.handleStatusLocked(pid, ws)
	}
}

// handleStatusLocked applies one wait status to the table. Stops and
// continues change state in place; exits and kills remove the job. The
// termination and stop notices here are the only ones the shell prints.
func (s *Shell) handleStatusLocked(pid int, ws unix.WaitStatus) {
	j := s.table.Get(pid)

	switch {
	case ws.Stopped():
		if j == nil {
			return
		}
		stopped := *j
		fmt.Fprintf(s.out, "Job %s stopped by signal %d\n", stopped.Ref(), int(ws.StopSignal()))
		s.table.SetState(pid, job.Stopped)
		s.publish(event.JobStopped, stopped, int(ws.StopSignal()))

	case ws.Continued():
		if j == nil || j.State != job.Stopped {
			return
		}
		continued := *j
		s.table.SetState(pid, job.Background)
		s.publish(event.JobContinued, continued, int(unix.SIGCONT))

	case ws.Signaled():
		if j != nil {
			killed := *j
			fmt.Fprintf(s.out, "Job %s terminated by signal %d\n", killed.Ref(), int(ws.Signal()))
			s.publish(event.JobTerminated, killed, int(ws.Signal()))
		}
		s.table.Remove(pid)

	case ws.Exited():
		if j != nil {
			s.publish(event.JobExited, *j, 0)
		}
		// normal exit is silent
		s.table.Remove(pid)
	}
}

// forwardToForeground relays a terminal-generated interrupt or suspend to
// the entire foreground process group, so every member receives it, not
// just the leader. Without a foreground job the signal is dropped; cleanup
// after the target dies arrives through SIGCHLD, never here.
func (s *Shell) forwardToForeground(sig unix.Signal) {
	s.mu.Lock()
	fg := s.fgPGID
	s.mu.Unlock()

	if fg <= 0 {
		s.logger.Debug().Stringer("signal", sig).Msg("no foreground job, dropping signal")
		return
	}
	if err := unix.Kill(-fg, sig); err != nil && err != unix.ESRCH {
		s.logger.Error().Err(err).Int("pgid", fg).Stringer("signal", sig).Msg("forward signal failed")
	}
}

// Package job models the shell's tracked process groups and the bounded
// table that holds them. The table itself is a plain data structure; all
// synchronization is owned by the shell that embeds it.
package job

import (
	"fmt"

	"github.com/google/uuid"
)

// State describes where a job currently runs.
type State int

const (
	// Foreground jobs own the read-eval loop until they stop or exit.
	// At most one job is in this state at any instant.
	Foreground State = iota + 1
	// Background jobs run detached from the loop.
	Background
	// Stopped jobs received a stop signal and wait for fg/bg.
	Stopped
)

// Label returns the state column used by the jobs listing.
func (s State) Label() string {
	switch s {
	case Foreground:
		return "Foreground"
	case Background:
		return "Running"
	case Stopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Job is one tracked process group. PGID doubles as the group leader's pid
// because every job is launched as the leader of a fresh group.
type Job struct {
	PGID    int
	ID      int
	State   State
	Cmdline string

	// UID correlates log lines and lifecycle events for this job across
	// id reuse.
	UID uuid.UUID
}

// StatusLine renders the job in the jobs-listing format:
// [jid] (pid) State cmdline
func (j Job) StatusLine() string {
	return fmt.Sprintf("[%d] (%d) %s %s", j.ID, j.PGID, j.State.Label(), j.Cmdline)
}

// Ref renders the short [jid] (pid) prefix shared by all notices.
func (j Job) Ref() string {
	return fmt.Sprintf("[%d] (%d)", j.ID, j.PGID)
}

package shell

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/tish-sh/tish/pkg/config"
	"github.com/tish-sh/tish/pkg/job"
)

// syncBuffer guards a bytes.Buffer against the relay goroutine writing
// notices while the test reads.
type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (sb *syncBuffer) Write(p []byte) (int, error) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.b.Write(p)
}

func (sb *syncBuffer) String() string {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.b.String()
}

func newTestShell(t *testing.T, maxJobs int) (*Shell, *syncBuffer, *syncBuffer) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Shell.MaxJobs = maxJobs

	out := &syncBuffer{}
	errOut := &syncBuffer{}
	s := New(cfg,
		WithStreams(strings.NewReader(""), out, errOut),
		WithoutPrompt(),
	)

	stop := s.start(context.Background())
	t.Cleanup(func() {
		_ = s.runQuit() // kill anything the test left behind
		time.Sleep(50 * time.Millisecond)
		stop()
	})
	return s, out, errOut
}

func snapshot(s *Shell) ([]job.Job, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.Jobs(), s.fgPGID
}

func waitTableLen(t *testing.T, s *Shell, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		jobs, _ := snapshot(s)
		return len(jobs) == want
	}, 5*time.Second, 20*time.Millisecond, "table never reached %d jobs", want)
}

func TestBackgroundLaunchGrowsTableByOne(t *testing.T) {
	s, out, _ := newTestShell(t, 16)

	pids := map[int]bool{}
	for i := 1; i <= 3; i++ {
		require.NoError(t, s.Eval("sleep 5 &"))

		jobs, _ := snapshot(s)
		require.Len(t, jobs, i)
		last := jobs[len(jobs)-1]
		assert.Equal(t, i, last.ID)
		assert.Equal(t, job.Background, last.State)
		assert.False(t, pids[last.PGID], "pids must be distinct")
		pids[last.PGID] = true

		assert.Contains(t, out.String(), fmt.Sprintf("[%d] (%d) sleep 5 &", last.ID, last.PGID))
	}
}

func TestJobsListing(t *testing.T) {
	s, out, _ := newTestShell(t, 16)

	require.NoError(t, s.Eval("sleep 5 &"))
	jobs, _ := snapshot(s)
	require.Len(t, jobs, 1)

	require.NoError(t, s.Eval("jobs"))
	assert.Contains(t, out.String(),
		fmt.Sprintf("[1] (%d) Running sleep 5 &", jobs[0].PGID))
}

func TestJobsListingRedirect(t *testing.T) {
	s, _, _ := newTestShell(t, 16)
	path := filepath.Join(t.TempDir(), "jobs.out")

	require.NoError(t, s.Eval("sleep 5 &"))
	require.NoError(t, s.Eval("jobs > "+path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Running sleep 5 &")
}

func TestForegroundNormalExitIsSilent(t *testing.T) {
	s, out, errOut := newTestShell(t, 16)

	require.NoError(t, s.Eval("sh -c 'exit 0'"))

	waitTableLen(t, s, 0)
	assert.Empty(t, out.String())
	assert.Empty(t, errOut.String())
}

func TestForegroundTerminationNotice(t *testing.T) {
	s, out, _ := newTestShell(t, 16)

	done := make(chan error, 1)
	go func() { done <- s.Eval("sleep 5") }()

	var fg int
	require.Eventually(t, func() bool {
		jobs, fgPGID := snapshot(s)
		if len(jobs) == 1 && fgPGID != 0 {
			fg = fgPGID
			return true
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)

	// the terminal would deliver SIGINT to the shell; the relay must
	// forward it to the whole foreground group
	require.NoError(t, unix.Kill(os.Getpid(), unix.SIGINT))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("foreground wait did not return")
	}

	waitTableLen(t, s, 0)
	notice := fmt.Sprintf("Job [1] (%d) terminated by signal %d\n", fg, int(unix.SIGINT))
	assert.Equal(t, 1, strings.Count(out.String(), notice), "exactly one termination notice, got %q", out.String())
}

func TestForegroundStopThenBgThenKill(t *testing.T) {
	s, out, _ := newTestShell(t, 16)

	done := make(chan error, 1)
	go func() { done <- s.Eval("sleep 5") }()

	require.Eventually(t, func() bool {
		_, fgPGID := snapshot(s)
		return fgPGID != 0
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, unix.Kill(os.Getpid(), unix.SIGTSTP))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("stop did not return control to the prompt")
	}

	jobs, fgPGID := snapshot(s)
	require.Len(t, jobs, 1)
	assert.Equal(t, job.Stopped, jobs[0].State)
	assert.Equal(t, 0, fgPGID)
	stopNotice := fmt.Sprintf("Job [1] (%d) stopped by signal %d\n", jobs[0].PGID, int(unix.SIGTSTP))
	assert.Equal(t, 1, strings.Count(out.String(), stopNotice))

	// bg %1 resumes it and reports Running
	require.NoError(t, s.Eval("bg %1"))
	require.NoError(t, s.Eval("jobs"))
	assert.Contains(t, out.String(), fmt.Sprintf("[1] (%d) Running sleep 5", jobs[0].PGID))

	// terminated background jobs still get exactly one notice
	require.NoError(t, unix.Kill(-jobs[0].PGID, unix.SIGKILL))
	waitTableLen(t, s, 0)
	killNotice := fmt.Sprintf("Job [1] (%d) terminated by signal %d\n", jobs[0].PGID, int(unix.SIGKILL))
	assert.Equal(t, 1, strings.Count(out.String(), killNotice))
}

func TestFgResumesStoppedJobToCompletion(t *testing.T) {
	s, out, _ := newTestShell(t, 16)

	done := make(chan error, 1)
	go func() { done <- s.Eval("sleep 1") }()

	require.Eventually(t, func() bool {
		_, fgPGID := snapshot(s)
		return fgPGID != 0
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, unix.Kill(os.Getpid(), unix.SIGTSTP))
	require.NoError(t, <-done)

	jobs, _ := snapshot(s)
	require.Len(t, jobs, 1)
	require.Equal(t, job.Stopped, jobs[0].State)

	// fg resumes and waits for the natural exit, which is silent
	before := out.String()
	require.NoError(t, s.Eval("fg %1"))
	waitTableLen(t, s, 0)
	assert.Equal(t, before, out.String(), "natural exit after fg must print nothing")
}

func TestBgFgUserErrors(t *testing.T) {
	s, _, errOut := newTestShell(t, 16)

	require.NoError(t, s.Eval("bg %7"))
	assert.Contains(t, errOut.String(), "no such job")

	require.NoError(t, s.Eval("fg"))
	assert.Contains(t, errOut.String(), "requires %jobid or pid argument")

	require.NoError(t, s.Eval("bg nope"))
	assert.Contains(t, errOut.String(), "%jobid or pid")
}

func TestCommandNotFound(t *testing.T) {
	s, _, errOut := newTestShell(t, 16)

	require.NoError(t, s.Eval("definitely-not-a-command-xyz"))
	assert.Contains(t, errOut.String(), "definitely-not-a-command-xyz")

	jobs, _ := snapshot(s)
	assert.Empty(t, jobs)
}

func TestCapacityExhaustion(t *testing.T) {
	s, _, errOut := newTestShell(t, 2)

	require.NoError(t, s.Eval("sleep 5 &"))
	require.NoError(t, s.Eval("sleep 5 &"))
	require.NoError(t, s.Eval("sleep 5 &"))

	jobs, _ := snapshot(s)
	assert.Len(t, jobs, 2)
	assert.Contains(t, errOut.String(), "too many jobs")
}

func TestQuitKillsRemainingJobs(t *testing.T) {
	s, _, _ := newTestShell(t, 16)

	require.NoError(t, s.Eval("sleep 5 &"))
	jobs, _ := snapshot(s)
	require.Len(t, jobs, 1)
	pgid := jobs[0].PGID

	err := s.Eval("quit")
	require.ErrorIs(t, err, ErrQuit)

	require.Eventually(t, func() bool {
		// the group is gone once kill(pgid, 0) reports no such process
		return unix.Kill(-pgid, 0) == unix.ESRCH
	}, 5*time.Second, 20*time.Millisecond)
}

func TestRunScript(t *testing.T) {
	cfg := config.DefaultConfig()
	out := &syncBuffer{}
	errOut := &syncBuffer{}
	script := "sh -c 'exit 0'\nsleep 5 &\njobs\nquit\n"
	s := New(cfg,
		WithStreams(strings.NewReader(script), out, errOut),
		WithoutPrompt(),
	)

	require.NoError(t, s.Run(context.Background()))
	assert.Contains(t, out.String(), "Running sleep 5 &")
}

func TestAtMostOneForegroundJob(t *testing.T) {
	s, _, _ := newTestShell(t, 16)

	require.NoError(t, s.Eval("sleep 5 &"))
	require.NoError(t, s.Eval("sleep 5 &"))

	done := make(chan error, 1)
	go func() { done <- s.Eval("sleep 5") }()

	require.Eventually(t, func() bool {
		_, fgPGID := snapshot(s)
		return fgPGID != 0
	}, 5*time.Second, 20*time.Millisecond)

	jobs, _ := snapshot(s)
	fgCount := 0
	for _, j := range jobs {
		if j.State == job.Foreground {
			fgCount++
		}
	}
	assert.Equal(t, 1, fgCount)

	require.NoError(t, unix.Kill(os.Getpid(), unix.SIGINT))
	require.NoError(t, <-done)
}

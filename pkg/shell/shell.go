// Package shell implements the job-control core: the command dispatcher,
// the process launcher, and the signal relay that keeps the job table
// consistent while children change state concurrently with the read-eval
// loop.
//
// Concurrency model: one mutex guards the job table and the foreground
// pointer. The dispatcher's compound read-modify-write sections and the
// relay goroutine's entire reap pass run under it, which is the Go
// rendering of the original design's blocked-signal critical sections.
// The foreground wait is a condition-variable wait that the relay
// broadcasts after every table mutation, so a child reaped before the
// dispatcher starts waiting can never cause a lost wakeup.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/tish-sh/tish/pkg/config"
	"github.com/tish-sh/tish/pkg/event"
	"github.com/tish-sh/tish/pkg/history"
	"github.com/tish-sh/tish/pkg/job"
	"github.com/tish-sh/tish/pkg/logging"
	"github.com/tish-sh/tish/pkg/ui"
)

// ErrQuit signals a clean shutdown requested by the quit builtin.
var ErrQuit = errors.New("quit requested")

// JobEvent is the payload published on the event bus for every job
// lifecycle transition.
type JobEvent struct {
	Job    job.Job
	Signal int
}

// Shell owns the read-eval loop, the job table and the signal relay.
type Shell struct {
	cfg config.Config

	// mu guards table and fgPGID against the relay goroutine. fgWake is
	// broadcast by the relay after every table mutation.
	mu     sync.Mutex
	fgWake *sync.Cond
	table  *job.Table
	fgPGID int // 0 = no foreground job

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	bus    *event.Bus
	hist   *history.File
	logger zerolog.Logger

	noPrompt bool
	sigCh    chan os.Signal

	// ctx carries the session context into event publishing.
	ctx context.Context
}

// Option customizes a Shell.
type Option func(*Shell)

// WithStreams overrides the shell's input and output streams.
func WithStreams(in io.Reader, out, errOut io.Writer) Option {
	return func(s *Shell) {
		s.in, s.out, s.errOut = in, out, errOut
	}
}

// WithBus attaches an event bus for job lifecycle events.
func WithBus(bus *event.Bus) Option {
	return func(s *Shell) { s.bus = bus }
}

// WithHistory attaches a history file.
func WithHistory(h *history.File) Option {
	return func(s *Shell) { s.hist = h }
}

// WithLogger overrides the shell's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Shell) { s.logger = l }
}

// WithoutPrompt suppresses the prompt, for driver scripts and tests.
func WithoutPrompt() Option {
	return func(s *Shell) { s.noPrompt = true }
}

// New constructs a Shell from cfg.
func New(cfg config.Config, opts ...Option) *Shell {
	s := &Shell{
		cfg:    cfg,
		in:     os.Stdin,
		out:    os.Stdout,
		errOut: os.Stderr,
		logger: logging.NewLogger("shell"),
		sigCh:  make(chan os.Signal, 64),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.table = job.NewTable(cfg.Shell.MaxJobs, s.logger)
	s.fgWake = sync.NewCond(&s.mu)
	return s
}

// Run executes the read-eval loop until EOF or the quit builtin.
func (s *Shell) Run(ctx context.Context) error {
	stop := s.start(ctx)
	defer stop()

	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		s.printPrompt()
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read command line: %w", err)
			}
			// EOF (ctrl-d)
			fmt.Fprintln(s.out)
			return nil
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if s.hist != nil {
			s.hist.Append(line)
		}
		if err := s.Eval(line); err != nil {
			if errors.Is(err, ErrQuit) {
				return nil
			}
			return err
		}
	}
}

// start installs the signal relay and returns its teardown.
func (s *Shell) start(ctx context.Context) (stop func()) {
	s.ctx = ctx
	signal.Notify(s.sigCh, unix.SIGCHLD, unix.SIGINT, unix.SIGTSTP, unix.SIGQUIT)
	relayCtx, cancel := context.WithCancel(ctx)
	go s.relay(relayCtx)
	return func() {
		signal.Stop(s.sigCh)
		cancel()
	}
}

func (s *Shell) printPrompt() {
	if s.noPrompt {
		return
	}
	fmt.Fprint(s.out, ui.RenderPrompt(s.out, s.cfg.Shell.Prompt))
}

func (s *Shell) publish(name string, j job.Job, sig int) {
	if s.bus == nil {
		return
	}
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	s.bus.Publish(ctx, name, JobEvent{Job: j, Signal: sig})
}

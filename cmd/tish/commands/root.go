package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tish-sh/tish/pkg/appctx"
	"github.com/tish-sh/tish/pkg/config"
	"github.com/tish-sh/tish/pkg/event"
	"github.com/tish-sh/tish/pkg/history"
	"github.com/tish-sh/tish/pkg/logging"
	"github.com/tish-sh/tish/pkg/shell"
	"github.com/tish-sh/tish/pkg/ui"
	"github.com/tish-sh/tish/pkg/version"
	"github.com/tish-sh/tish/pkg/workspace"
)

const cliExecutable = "tish"

// NewCommand constructs the top-level tish CLI command, wiring global
// flags, configuration loading, and the interactive shell as the default
// action.
func NewCommand() *cobra.Command {
	var (
		configFile   string
		workspaceDir string
		noPrompt     bool
		noHistory    bool
		verbosity    int
		manager      *config.Manager
	)

	cmd := &cobra.Command{
		Use:   cliExecutable,
		Short: "tish is a tiny shell with job control",
		Long: `tish runs commands in the foreground or background, tracks them as
jobs, and supports suspending, resuming and listing them with the
jobs, fg and bg builtins.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			manager = config.NewManager()
			debug, _ := cmd.Flags().GetBool("debug")
			if err := manager.Load(config.DefaultSources(configFile, cmd.Flags(), debug)); err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}

			base := logging.ParseLevel(manager.Get().Log.Level)
			logging.ConfigureGlobal(logging.VerbosityLevel(base, verbosity))

			ctx := appctx.WithConfig(cmd.Context(), manager)
			cmd.SetContext(ctx)
			if root := cmd.Root(); root != nil && root != cmd {
				root.SetContext(ctx)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd.Context(), manager, configFile, workspaceDir, noPrompt, noHistory)
		},
	}

	cmd.SilenceUsage = true

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path")
	cmd.PersistentFlags().StringVar(&workspaceDir, "workspace-dir", "", "Override workspace root directory")
	cmd.PersistentFlags().CountVarP(&verbosity, "verbosity", "v", "Increase logging verbosity (repeatable)")
	cmd.Flags().BoolVarP(&noPrompt, "no-prompt", "p", false, "Do not emit a command prompt (for test drivers)")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "Disable command history for this session")

	config.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(newConfigCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

// runShell prepares the workspace, history and event plumbing, then hands
// control to the read-eval loop until EOF or quit.
func runShell(ctx context.Context, manager *config.Manager, configFile, workspaceDir string, noPrompt, noHistory bool) error {
	cfg := manager.Get()

	if workspaceDir == "" {
		workspaceDir = cfg.Shell.WorkspaceDir
	}
	root, err := workspace.Prepare(workspaceDir)
	if err != nil {
		return fmt.Errorf("prepare workspace: %w", err)
	}
	ctx = workspace.WithContext(ctx, root)
	log.Debug().Str("workspace", root).Msg("workspace ready")

	bus := event.New()
	subscribeAuditLog(bus)

	opts := []shell.Option{shell.WithBus(bus)}
	if noPrompt {
		opts = append(opts, shell.WithoutPrompt())
	}
	if cfg.Shell.HistoryEnabled && !noHistory {
		opts = append(opts, shell.WithHistory(
			history.Open(workspace.HistoryPath(root), log.Logger)))
	}

	if configFile != "" {
		watcher, err := config.NewWatcher(manager, configFile, log.Logger, func(level string) {
			logging.ConfigureGlobalLevel(level)
		})
		if err != nil {
			log.Warn().Err(err).Msg("config watcher unavailable")
		} else {
			go func() {
				_ = watcher.Start(ctx)
			}()
		}
	}

	if !noPrompt {
		ui.PrintBanner(os.Stdout, version.Info())
	}

	return shell.New(cfg, opts...).Run(ctx)
}

// subscribeAuditLog mirrors every job lifecycle event into the structured
// log, keyed by the job's correlation id.
func subscribeAuditLog(bus *event.Bus) {
	audit := logging.NewLogger("audit")
	for _, name := range []string{
		event.JobStarted,
		event.JobStopped,
		event.JobContinued,
		event.JobTerminated,
		event.JobExited,
		event.JobRefused,
	} {
		bus.Subscribe(name, func(ctx context.Context, data any) {
			ev, ok := data.(shell.JobEvent)
			if !ok {
				return
			}
			audit.Info().
				Str("event", name).
				Int("jid", ev.Job.ID).
				Int("pgid", ev.Job.PGID).
				Str("uid", ev.Job.UID.String()).
				Int("signal", ev.Signal).
				Str("cmdline", ev.Job.Cmdline).
				Msg("job lifecycle")
		})
	}
}

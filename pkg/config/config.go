package config

import (
	"fmt"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

var validate = validator.New()

// Manager handles loading, validating and accessing application
// configuration built from layered sources.
type Manager struct {
	koanfInstance *koanf.Koanf
	currentConfig Config
	mu            sync.RWMutex // protects currentConfig during runtime updates
}

// NewManager creates a new config Manager with an empty koanf instance.
func NewManager() *Manager {
	return &Manager{
		koanfInstance: koanf.New("."),
	}
}

// DefaultConfig returns a new Config struct populated with hardcoded default
// values. These serve as the baseline if no other sources override them.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{
			Level:  "error",
			Format: "text",
		},
		Shell: ShellConfig{
			Prompt:         "tish> ",
			MaxJobs:        16,
			HistoryEnabled: true,
			WorkspaceDir:   "",
		},
	}
}

// DefaultConfigAsMap converts DefaultConfig to a flat map for koanf's
// confmap provider, so every key is known to koanf up front.
func DefaultConfigAsMap() map[string]interface{} {
	def := DefaultConfig()
	return map[string]interface{}{
		"log.level":  def.Log.Level,
		"log.format": def.Log.Format,

		"shell.prompt":          def.Shell.Prompt,
		"shell.max_jobs":        def.Shell.MaxJobs,
		"shell.history_enabled": def.Shell.HistoryEnabled,
		"shell.workspace_dir":   def.Shell.WorkspaceDir,
	}
}

// Load loads the given sources in priority order (lowest first) and
// unmarshals the merged result into the manager's current config.
func (m *Manager) Load(sources []Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ordered := append([]Source{}, sources...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority() < ordered[j].Priority()
	})

	for _, src := range ordered {
		if err := src.Load(m.koanfInstance); err != nil {
			return fmt.Errorf("load config source %s: %w", src.Name(), err)
		}
	}

	var newCfg Config
	if err := m.koanfInstance.UnmarshalWithConf("", &newCfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("unmarshal merged config: %w", err)
	}

	if err := validate.Struct(newCfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	m.currentConfig = newCfg
	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentConfig
}

// SetLogLevel updates the runtime log level, used by the config watcher.
// The new value is validated before it is applied.
func (m *Manager) SetLogLevel(level string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	probe := m.currentConfig
	probe.Log.Level = level
	if err := validate.Struct(probe); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	m.currentConfig = probe
	return nil
}

// BindFlags defines command-line flags corresponding to configuration
// settings, allowing overrides of config file and environment values.
// Call when setting up the root cobra command.
func BindFlags(flags *pflag.FlagSet) {
	defaults := DefaultConfig()

	flags.String("log.level", defaults.Log.Level, "Log level (trace, debug, info, warn, error)")
	flags.String("log.format", defaults.Log.Format, "Log format (text, json)")
	flags.String("shell.prompt", defaults.Shell.Prompt, "Prompt text")
	flags.Int("shell.max_jobs", defaults.Shell.MaxJobs, "Maximum number of tracked jobs")
	flags.Bool("shell.history_enabled", defaults.Shell.HistoryEnabled, "Persist command history")

	var flagvar bool
	flags.BoolVar(&flagvar, "debug", false, "Enable debug logging")
}

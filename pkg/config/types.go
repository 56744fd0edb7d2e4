package config

// Config is the root configuration structure for the tish application.
// It aggregates all other specific configuration structs.
type Config struct {
	Log   LogConfig   `description:"Logging configuration" koanf:"log"`
	Shell ShellConfig `description:"Shell runtime configuration" koanf:"shell"`
}

// LogConfig holds logging related configuration.
type LogConfig struct {
	Level  string `description:"Log level for tish diagnostics" koanf:"level" validate:"oneof=trace debug info warn error fatal panic"`
	Format string `description:"Log format: json | text" koanf:"format" validate:"oneof=json text"`
}

// ShellConfig holds configuration for the interactive shell runtime.
type ShellConfig struct {
	// Prompt is printed before each command line unless --no-prompt is set.
	Prompt string `description:"Interactive prompt text" koanf:"prompt" validate:"required"`

	// MaxJobs bounds the job table. Launches beyond this are refused.
	MaxJobs int `description:"Maximum number of concurrently tracked jobs" koanf:"max_jobs" validate:"gte=1,lte=4096"`

	// HistoryEnabled toggles appending command lines to the history file.
	HistoryEnabled bool `description:"Persist command history to the workspace" koanf:"history_enabled"`

	// WorkspaceDir overrides the default ~/.tish state directory.
	WorkspaceDir string `description:"Workspace root directory" koanf:"workspace_dir"`
}

package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	// LogLevelChanged is true when the configured verbosity changed.
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// ListeningChanged is true when any wake/capture tuning value changed.
	// These take effect on the next turn.
	ListeningChanged bool
	NewListening     ListeningConfig
}

// Empty reports whether the diff contains no hot-reloadable change.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.ListeningChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart; provider,
// store, and MCP changes require one.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Listening != new.Listening {
		d.ListeningChanged = true
		d.NewListening = new.Listening
	}

	return d
}

// Package config implements TOML configuration loading, validation, and
// platform path resolution for drivecache. Resolution order is defaults,
// then config file, then CLI flags.
package config

// Config is the top-level structure parsed from the TOML config file.
type Config struct {
	Cache     CacheConfig     `toml:"cache"`
	Server    ServerConfig    `toml:"server"`
	Transfers TransfersConfig `toml:"transfers"`
	Logging   LoggingConfig   `toml:"logging"`
}

// CacheConfig controls where cached files and the cache index live.
type CacheConfig struct {
	// BaseDir is the directory containing the file-cache tree and the
	// cache index database.
	BaseDir string `toml:"base_dir"`
	// CleanOnStart removes the previous session's cached files when the
	// agent starts, so stale cache content never outlives a session on a
	// shared machine.
	CleanOnStart bool `toml:"clean_on_start"`
}

// ServerConfig points the agent at the repository server.
type ServerConfig struct {
	URL string `toml:"url"`
}

// TransfersConfig bounds concurrent transfer work.
type TransfersConfig struct {
	ParallelUploads int `toml:"parallel_uploads"`
}

// LoggingConfig controls the slog handler. Level is one of debug, info,
// warn, error.
type LoggingConfig struct {
	Level string `toml:"level"`
}

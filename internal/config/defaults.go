package config

import (
	"os"
	"path/filepath"
)

// defaultParallelUploads bounds concurrent uploads when the config file does
// not say otherwise. Auto-updates are bursty but small; two slots keep a
// bulk save from saturating the uplink.
const defaultParallelUploads = 2

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			BaseDir: DefaultBaseDir(),
		},
		Transfers: TransfersConfig{
			ParallelUploads: defaultParallelUploads,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultBaseDir returns the default cache base directory,
// ~/.local/share/drivecache or the XDG equivalent.
func DefaultBaseDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "drivecache")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		// Last resort; a relative dir still works for one-off runs.
		return "drivecache"
	}

	return filepath.Join(home, ".local", "share", "drivecache")
}

// DefaultConfigPath returns the default config file location,
// ~/.config/drivecache/config.toml or the XDG equivalent.
func DefaultConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "drivecache", "config.toml")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("drivecache", "config.toml")
	}

	return filepath.Join(home, ".config", "drivecache", "config.toml")
}

// DefaultAccountsPath returns the default location of the account store.
func DefaultAccountsPath() string {
	return filepath.Join(filepath.Dir(DefaultConfigPath()), "accounts.toml")
}

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// maxParallelUploads caps configured upload concurrency; beyond this the
// server's per-connection fairness suffers with no throughput gain.
const maxParallelUploads = 16

var errEmptyBaseDir = errors.New("cache.base_dir must not be empty")

// Validate checks a Config for invalid or out-of-range values.
func Validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Cache.BaseDir) == "" {
		return errEmptyBaseDir
	}

	if cfg.Server.URL != "" {
		u, err := url.Parse(cfg.Server.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("server.url %q is not a valid URL", cfg.Server.URL)
		}
	}

	if cfg.Transfers.ParallelUploads < 1 || cfg.Transfers.ParallelUploads > maxParallelUploads {
		return fmt.Errorf("transfers.parallel_uploads must be 1-%d, got %d",
			maxParallelUploads, cfg.Transfers.ParallelUploads)
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", cfg.Logging.Level)
	}

	return nil
}

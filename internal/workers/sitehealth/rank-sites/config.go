// internal/workers/sitehealth/rank-sites/config.go
package ranksites

import (
	"time"

	"sitesight/internal/common/config"
)

type Config struct {
	Timeout          time.Duration
	DefaultSitesPath string
}

// LoadConfig derives the handler settings from the worker section; the
// source path is used when a job carries neither sites nor sitesPath.
func LoadConfig(wcfg config.WorkerConfig, defaultSitesPath string) *Config {
	timeout := time.Duration(wcfg.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Config{
		Timeout:          timeout,
		DefaultSitesPath: defaultSitesPath,
	}
}

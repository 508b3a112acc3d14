package swenv

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/launchdarkly/sw-test-env/cache"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldlog"
)

const (
	DefaultOrigin = "http://localhost:3333/"
	DefaultScope  = "/"
)

// Config holds the settings that can come from the environment.
type Config struct {
	Origin  string `env:"SW_TEST_ENV_ORIGIN" envDefault:"http://localhost:3333/"`
	Webroot string `env:"SW_TEST_ENV_WEBROOT" envDefault:"."`
	Debug   bool   `env:"SW_TEST_ENV_DEBUG"`
}

// LoadConfig reads Config from environment variables.
func LoadConfig() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return c, nil
}

// Options configure a Harness.
type Options struct {
	// Loggers receives debug output about registrations and lifecycle transitions.
	Loggers ldlog.Loggers

	// Executor runs worker scripts.
	Executor Executor

	// Fetcher replaces the in-process origin server for fetches made by worker scopes.
	Fetcher cache.Fetcher
}

package main

import (
	"fmt"
	"os"

	"github.com/polendina/strangerchat"
	"github.com/rs/zerolog"
)

// mustLoadConfig loads the config or exits with a message.
func mustLoadConfig() *Config {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// newClient builds a client from the configuration.
func newClient(cfg *Config, log zerolog.Logger, opts ...strangerchat.ClientOption) *strangerchat.Client {
	base := []strangerchat.ClientOption{
		strangerchat.WithLogger(log),
		strangerchat.WithInterests(cfg.Profile.Interests),
	}
	if cfg.Server.BaseURL != "" {
		base = append(base, strangerchat.WithBaseURL(cfg.Server.BaseURL))
	}
	if cfg.Server.CheckURL != "" {
		base = append(base, strangerchat.WithCheckURL(cfg.Server.CheckURL))
	}
	if cfg.Server.Language != "" {
		base = append(base, strangerchat.WithLanguage(cfg.Server.Language))
	}
	if cfg.Server.UserAgent != "" {
		base = append(base, strangerchat.WithUserAgent(cfg.Server.UserAgent))
	}
	return strangerchat.NewClient(append(base, opts...)...)
}

func valueOrDefault(val, def string) string {
	if val == "" {
		return def
	}
	return val
}

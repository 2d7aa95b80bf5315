package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// ============================================================================
// Config types
// ============================================================================

// Config represents the CLI configuration stored in ~/.strangerchat/config.toml.
type Config struct {
	Server  ConfigServer  `toml:"server"`
	Profile ConfigProfile `toml:"profile"`
	Log     ConfigLog     `toml:"log"`
	Bridge  ConfigBridge  `toml:"bridge"`
}

// ConfigServer holds the endpoints and request settings.
type ConfigServer struct {
	BaseURL   string `toml:"base_url"`
	CheckURL  string `toml:"check_url"`
	Language  string `toml:"language"`
	UserAgent string `toml:"user_agent"`
}

// ConfigProfile holds the interests searched with.
type ConfigProfile struct {
	Interests []string `toml:"interests"`
}

type ConfigLog struct {
	Level string `toml:"level"`
}

type ConfigBridge struct {
	Addr string `toml:"addr"`
}

const (
	envBaseURL        = "STRANGERCHAT_BASE_URL"
	defaultBridgeAddr = "127.0.0.1:8787"
)

// ============================================================================
// Config helpers
// ============================================================================

// configDir returns the path to ~/.strangerchat, creating it if needed.
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".strangerchat")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("cannot create config directory: %w", err)
	}
	return dir, nil
}

func configPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// loadConfig reads the config file, returning a zero Config if there is none.
// STRANGERCHAT_BASE_URL overrides server.base_url.
func loadConfig() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	cfg, err := readConfig(path)
	if err != nil {
		return nil, err
	}
	if v := os.Getenv(envBaseURL); v != "" {
		cfg.Server.BaseURL = v
	}
	return cfg, nil
}

func readConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("cannot read config: %w", err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config: %w", err)
	}
	return &cfg, nil
}

// saveConfig writes the config back to disk. The environment override is
// not persisted.
func saveConfig(cfg *Config) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	onDisk := *cfg
	if os.Getenv(envBaseURL) != "" {
		stored, err := readConfig(path)
		if err != nil {
			return err
		}
		onDisk.Server.BaseURL = stored.Server.BaseURL
	}
	return writeConfig(path, &onDisk)
}

func writeConfig(path string, cfg *Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("cannot write config: %w", err)
	}
	return nil
}

// ============================================================================
// Logging
// ============================================================================

var logLevelFlag string

// newLogger writes human-readable logs to stderr. The --log-level flag wins
// over log.level; anything unparseable falls back to info.
func newLogger(cfg *Config) zerolog.Logger {
	level := logLevelFlag
	if level == "" {
		level = cfg.Log.Level
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// ============================================================================
// Root command
// ============================================================================

var rootCmd = &cobra.Command{
	Use:          "strangerchat",
	Short:        "Anonymous stranger chat from the terminal",
	Long:         "Command-line client for a random one-to-one text chat service.\nChat with strangers, manage interests, and expose a session over WebSocket.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level (trace, debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

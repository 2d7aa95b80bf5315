package main

import (
	"path/filepath"
	"testing"

	"github.com/polendina/strangerchat"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetConfigValue(t *testing.T) {
	cfg := &Config{}

	valid := map[string]string{
		"server.base_url":   "https://front9.example.com",
		"server.check_url":  "https://check.example.com/check",
		"server.language":   "fr",
		"server.user_agent": "test-agent",
		"log.level":         "debug",
		"bridge.addr":       ":9000",
		"profile.interests": "music, films,, Music ,books",
	}
	for key, value := range valid {
		require.NoError(t, setConfigValue(cfg, key, value), key)
	}

	assert.Equal(t, "https://front9.example.com", cfg.Server.BaseURL)
	assert.Equal(t, "fr", cfg.Server.Language)
	assert.Equal(t, ":9000", cfg.Bridge.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, []string{"music", "films", "books"}, cfg.Profile.Interests)
}

func TestSetConfigValue_Rejects(t *testing.T) {
	tests := []struct {
		key, value string
		errPart    string
	}{
		{"language", "fr", "dot notation"},
		{"server.nope", "x", "unknown key"},
		{"nope.field", "x", "unknown config section"},
		{"log.level", "loud", "invalid log level"},
		{"server.language", "french", "two-letter"},
		{"server.base_url", "front1.example.com", "not an http(s) URL"},
		{"server.check_url", "ftp://check.example.com", "not an http(s) URL"},
		{"bridge.addr", "localhost", "host:port"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			cfg := &Config{}
			err := setConfigValue(cfg, tt.key, tt.value)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errPart)
			assert.Equal(t, &Config{}, cfg, "a rejected value must not be stored")
		})
	}
}

func TestEffectiveValue(t *testing.T) {
	t.Setenv(envBaseURL, "")
	cfg := &Config{}
	key := func(name string) configKey {
		k, err := lookupKey(name)
		require.NoError(t, err)
		return k
	}

	value, source := effectiveValue(cfg, key("server.language"))
	assert.Equal(t, strangerchat.DefaultLanguage, value)
	assert.Equal(t, "default", source)

	require.NoError(t, setConfigValue(cfg, "server.language", "de"))
	value, source = effectiveValue(cfg, key("server.language"))
	assert.Equal(t, "de", value)
	assert.Equal(t, "config", source)

	require.NoError(t, setConfigValue(cfg, "server.language", ""))
	value, _ = effectiveValue(cfg, key("server.language"))
	assert.Equal(t, strangerchat.DefaultLanguage, value, "an empty value resets to the default")

	_, source = effectiveValue(cfg, key("profile.interests"))
	assert.Equal(t, "unset", source)

	t.Setenv(envBaseURL, "http://127.0.0.1:9999")
	value, source = effectiveValue(cfg, key("server.base_url"))
	assert.Equal(t, "http://127.0.0.1:9999", value)
	assert.Equal(t, "env "+envBaseURL, source)
}

func TestConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := readConfig(path)
	require.NoError(t, err, "reading a missing file")
	assert.Equal(t, &Config{}, cfg)

	cfg.Server.BaseURL = "https://front1.example.com"
	cfg.Profile.Interests = []string{`rock "n" roll`, "chess"}
	cfg.Log.Level = "warn"
	require.NoError(t, writeConfig(path, cfg))

	got, err := readConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(envBaseURL, "http://127.0.0.1:9999")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9999", cfg.Server.BaseURL)

	cfg.Server.Language = "es"
	require.NoError(t, saveConfig(cfg))

	stored, err := readStoredConfig()
	require.NoError(t, err)
	assert.Empty(t, stored.Server.BaseURL, "the override must stay out of the file")
	assert.Equal(t, "es", stored.Server.Language)
}

func TestInterestLists(t *testing.T) {
	tests := []struct {
		name string
		got  []string
		want []string
	}{
		{"parse", parseInterests(" music ,films,,"), []string{"music", "films"}},
		{"parse empty", parseInterests(""), nil},
		{"merge keeps first spelling", mergeInterests([]string{"Music"}, []string{"music", "jazz"}), []string{"Music", "jazz"}},
		{"remove ignores case", removeInterests([]string{"Music", "jazz", "chess"}, []string{"music", "CHESS"}), []string{"jazz"}},
		{"remove missing", removeInterests([]string{"jazz"}, []string{"opera"}), []string{"jazz"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestNewLogger_Level(t *testing.T) {
	t.Cleanup(func() { logLevelFlag = "" })

	cases := []struct {
		flag, config string
		want         zerolog.Level
	}{
		{"", "", zerolog.InfoLevel},
		{"", "debug", zerolog.DebugLevel},
		{"warn", "debug", zerolog.WarnLevel},
		{"", "loud", zerolog.InfoLevel},
	}
	for _, c := range cases {
		logLevelFlag = c.flag
		log := newLogger(&Config{Log: ConfigLog{Level: c.config}})
		assert.Equal(t, c.want, log.GetLevel(), "flag %q config %q", c.flag, c.config)
	}
}

package main

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"regexp"
	"strings"
	"text/tabwriter"

	"github.com/polendina/strangerchat"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// ============================================================================
// Keys
// ============================================================================

// configKey is one setting reachable as section.field.
type configKey struct {
	name  string
	def   string
	get   func(*Config) string
	set   func(*Config, string)
	check func(string) error
}

var languageCode = regexp.MustCompile(`^[a-z]{2}$`)

var configKeys = []configKey{
	{
		name:  "server.base_url",
		def:   strangerchat.DefaultBaseURL,
		get:   func(c *Config) string { return c.Server.BaseURL },
		set:   func(c *Config, v string) { c.Server.BaseURL = v },
		check: checkHTTPURL,
	},
	{
		name:  "server.check_url",
		def:   strangerchat.DefaultCheckURL,
		get:   func(c *Config) string { return c.Server.CheckURL },
		set:   func(c *Config, v string) { c.Server.CheckURL = v },
		check: checkHTTPURL,
	},
	{
		name: "server.language",
		def:  strangerchat.DefaultLanguage,
		get:  func(c *Config) string { return c.Server.Language },
		set:  func(c *Config, v string) { c.Server.Language = v },
		check: func(v string) error {
			if !languageCode.MatchString(v) {
				return fmt.Errorf("language must be a two-letter code such as %q", strangerchat.DefaultLanguage)
			}
			return nil
		},
	},
	{
		name: "server.user_agent",
		def:  strangerchat.DefaultUserAgent,
		get:  func(c *Config) string { return c.Server.UserAgent },
		set:  func(c *Config, v string) { c.Server.UserAgent = v },
	},
	{
		name: "profile.interests",
		get:  func(c *Config) string { return strings.Join(c.Profile.Interests, ", ") },
		set:  func(c *Config, v string) { c.Profile.Interests = parseInterests(v) },
	},
	{
		name: "log.level",
		def:  "info",
		get:  func(c *Config) string { return c.Log.Level },
		set:  func(c *Config, v string) { c.Log.Level = v },
		check: func(v string) error {
			if _, err := zerolog.ParseLevel(v); err != nil {
				return fmt.Errorf("invalid log level %q", v)
			}
			return nil
		},
	},
	{
		name: "bridge.addr",
		def:  defaultBridgeAddr,
		get:  func(c *Config) string { return c.Bridge.Addr },
		set:  func(c *Config, v string) { c.Bridge.Addr = v },
		check: func(v string) error {
			if _, _, err := net.SplitHostPort(v); err != nil {
				return fmt.Errorf("bridge address must be host:port: %w", err)
			}
			return nil
		},
	},
}

func checkHTTPURL(v string) error {
	u, err := url.Parse(v)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%q is not an http(s) URL", v)
	}
	return nil
}

func lookupKey(name string) (configKey, error) {
	section, _, ok := strings.Cut(name, ".")
	if !ok {
		return configKey{}, fmt.Errorf("key must use dot notation: section.field (e.g. server.language)")
	}
	known := false
	for _, k := range configKeys {
		if k.name == name {
			return k, nil
		}
		known = known || strings.HasPrefix(k.name, section+".")
	}
	if !known {
		return configKey{}, fmt.Errorf("unknown config section %q (valid: server, profile, log, bridge)", section)
	}
	return configKey{}, fmt.Errorf("unknown key %q", name)
}

// setConfigValue validates and sets a key. An empty value resets it to the
// built-in default.
func setConfigValue(cfg *Config, name, value string) error {
	k, err := lookupKey(name)
	if err != nil {
		return err
	}
	value = strings.TrimSpace(value)
	if value != "" && k.check != nil {
		if err := k.check(value); err != nil {
			return err
		}
	}
	k.set(cfg, value)
	return nil
}

// effectiveValue is what the client will use for a key, and where it comes
// from.
func effectiveValue(cfg *Config, k configKey) (value, source string) {
	if k.name == "server.base_url" {
		if v := os.Getenv(envBaseURL); v != "" {
			return v, "env " + envBaseURL
		}
	}
	if v := k.get(cfg); v != "" {
		return v, "config"
	}
	if k.def == "" {
		return "", "unset"
	}
	return k.def, "default"
}

// ============================================================================
// Commands
// ============================================================================

var configShowRaw bool

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configGetCmd, configSetCmd, configUnsetCmd)
	configShowCmd.Flags().BoolVar(&configShowRaw, "raw", false, "print the config file as stored")
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage strangerchat configuration",
	Long:  "View or modify the configuration stored in ~/.strangerchat/config.toml.",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print every setting with the value in effect",
	RunE: func(cmd *cobra.Command, args []string) error {
		if configShowRaw {
			path, err := configPath()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if os.IsNotExist(err) {
				fmt.Println("No configuration file found. Run 'strangerchat init' to create one.")
				return nil
			}
			if err != nil {
				return fmt.Errorf("cannot read config file: %w", err)
			}
			fmt.Print(string(data))
			return nil
		}

		cfg, err := readStoredConfig()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, k := range configKeys {
			value, source := effectiveValue(cfg, k)
			fmt.Fprintf(w, "%s\t%s\t(%s)\n", k.name, valueOrDefault(value, "-"), source)
		}
		return w.Flush()
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the value in effect for one key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := lookupKey(args[0])
		if err != nil {
			return err
		}
		cfg, err := readStoredConfig()
		if err != nil {
			return err
		}
		value, _ := effectiveValue(cfg, k)
		fmt.Fprintln(cmd.OutOrStdout(), value)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value using dot notation.\nExample: strangerchat config set profile.interests \"music, films\"",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateConfigKey(cmd, args[0], args[1])
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Reset a key to its built-in default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateConfigKey(cmd, args[0], "")
	},
}

func updateConfigKey(cmd *cobra.Command, name, value string) error {
	cfg, err := readStoredConfig()
	if err != nil {
		return err
	}
	if err := setConfigValue(cfg, name, value); err != nil {
		return err
	}
	if err := saveConfig(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	k, _ := lookupKey(name)
	shown, source := effectiveValue(cfg, k)
	fmt.Fprintf(cmd.OutOrStdout(), "%s = %s (%s)\n", name, valueOrDefault(shown, "-"), source)
	return nil
}

// readStoredConfig loads the file without the environment override, so that
// effectiveValue can report where each value comes from.
func readStoredConfig() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	return readConfig(path)
}

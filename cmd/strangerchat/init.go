package main

import (
	"fmt"

	"github.com/polendina/strangerchat"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init [interest...]",
	Short: "Write a starter ~/.strangerchat/config.toml",
	Long:  "Initialize the configuration file with the default servers, optionally storing the interests to search with.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if cfg.Server.BaseURL == "" {
			cfg.Server.BaseURL = strangerchat.DefaultBaseURL
		}
		if cfg.Server.CheckURL == "" {
			cfg.Server.CheckURL = strangerchat.DefaultCheckURL
		}
		if cfg.Server.Language == "" {
			cfg.Server.Language = strangerchat.DefaultLanguage
		}
		if cfg.Log.Level == "" {
			cfg.Log.Level = "info"
		}
		if cfg.Bridge.Addr == "" {
			cfg.Bridge.Addr = defaultBridgeAddr
		}
		if len(args) > 0 {
			cfg.Profile.Interests = mergeInterests(nil, args)
		}

		if err := saveConfig(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		path, _ := configPath()
		fmt.Printf("Configuration saved to %s\n", path)
		return nil
	},
}

package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(interestsCmd)
	interestsCmd.AddCommand(interestsListCmd)
	interestsCmd.AddCommand(interestsSetCmd)
	interestsCmd.AddCommand(interestsAddCmd)
	interestsCmd.AddCommand(interestsRemoveCmd)
}

// parseInterests splits a comma separated list, trimming blanks and
// dropping empty and repeated entries.
func parseInterests(s string) []string {
	return mergeInterests(nil, strings.Split(s, ","))
}

// mergeInterests appends add to list, keeping the first spelling of any
// entry that differs only in case.
func mergeInterests(list, add []string) []string {
	out := slices.Clone(list)
	for _, raw := range add {
		v := strings.TrimSpace(raw)
		if v == "" || containsFold(out, v) {
			continue
		}
		out = append(out, v)
	}
	return out
}

func removeInterests(list, remove []string) []string {
	return slices.DeleteFunc(slices.Clone(list), func(v string) bool {
		return containsFold(remove, v)
	})
}

func containsFold(list []string, v string) bool {
	return slices.ContainsFunc(list, func(s string) bool {
		return strings.EqualFold(strings.TrimSpace(s), v)
	})
}

var interestsCmd = &cobra.Command{
	Use:   "interests",
	Short: "Manage the interests used to find a stranger",
}

var interestsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved interests",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustLoadConfig()
		if len(cfg.Profile.Interests) == 0 {
			fmt.Println("No interests saved. Strangers will be picked at random.")
			return nil
		}
		for _, v := range cfg.Profile.Interests {
			fmt.Println(v)
		}
		return nil
	},
}

var interestsSetCmd = &cobra.Command{
	Use:   "set <interest, ...>",
	Short: "Replace saved interests with a comma separated list",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateInterests(func([]string) []string {
			return parseInterests(strings.Join(args, ","))
		})
	},
}

var interestsAddCmd = &cobra.Command{
	Use:   "add <interest>...",
	Short: "Add interests",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateInterests(func(cur []string) []string {
			return mergeInterests(cur, args)
		})
	},
}

var interestsRemoveCmd = &cobra.Command{
	Use:   "remove <interest>...",
	Short: "Remove interests",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateInterests(func(cur []string) []string {
			return removeInterests(cur, args)
		})
	},
}

func updateInterests(update func([]string) []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Profile.Interests = update(cfg.Profile.Interests)
	if err := saveConfig(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	fmt.Printf("Interests: %s\n", valueOrDefault(strings.Join(cfg.Profile.Interests, ", "), "(none)"))
	return nil
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var statusJSON bool

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the raw site status as JSON")
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and live site status",
	Long:  "Display the current configuration and fetch the server's advisory status: users online, front servers and queue times.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustLoadConfig()
		client := newClient(cfg, zerolog.Nop())
		defer client.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		st, err := client.Status(ctx)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		if statusJSON {
			out, err := json.MarshalIndent(st, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode status: %w", err)
			}
			fmt.Println(string(out))
			return nil
		}

		fmt.Println("Configuration:")
		fmt.Printf("  Base URL:  %s\n", valueOrDefault(cfg.Server.BaseURL, "(default)"))
		fmt.Printf("  Language:  %s\n", valueOrDefault(cfg.Server.Language, "(default)"))
		fmt.Printf("  Interests: %s\n", valueOrDefault(strings.Join(cfg.Profile.Interests, ", "), "(none)"))
		fmt.Printf("  Local ID:  %s\n", client.LocalID())

		fmt.Println()
		fmt.Println("Live status:")
		fmt.Printf("  Online:       %d\n", st.Count)
		fmt.Printf("  Servers:      %s\n", valueOrDefault(strings.Join(st.Servers, ", "), "(none)"))
		fmt.Printf("  Spy queue:    %.1fs\n", st.SpyQueueTime)
		fmt.Printf("  Spyee queue:  %.1fs\n", st.SpyeeQueueTime)
		if st.Timestamp > 0 {
			at := time.UnixMilli(int64(st.Timestamp * 1000))
			fmt.Printf("  As of:        %s\n", at.Format(time.RFC3339))
		}
		return nil
	},
}

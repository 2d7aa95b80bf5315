package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/polendina/strangerchat"
	"github.com/spf13/cobra"
)

var (
	bridgeAddr    string
	bridgeOrigins []string
)

func init() {
	rootCmd.AddCommand(bridgeCmd)
	bridgeCmd.Flags().StringVar(&bridgeAddr, "addr", "", "listen address (overrides bridge.addr)")
	bridgeCmd.Flags().StringSliceVar(&bridgeOrigins, "origin", nil, "allowed browser origin patterns")
}

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Serve a chat session over WebSocket",
	Long:  "Run one chat client and expose it at ws://<addr>/ws so that another program can drive it.\nClients receive session.state, then session.transition messages, and may send message.send, session.start, session.next, session.disconnect and search.stop.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustLoadConfig()
		log := newLogger(cfg)

		addr := bridgeAddr
		if addr == "" {
			addr = valueOrDefault(cfg.Bridge.Addr, defaultBridgeAddr)
		}

		client := newClient(cfg, log)
		defer client.Close()

		mux := http.NewServeMux()
		mux.Handle("/ws", strangerchat.NewBridge(client,
			strangerchat.WithBridgeLogger(log),
			strangerchat.WithOriginPatterns(bridgeOrigins...),
		))
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			log.Info().Str("addr", addr).Msg("bridge listening on /ws")
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("bridge server: %w", err)
			}
		case <-ctx.Done():
			log.Info().Msg("shutting down bridge")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("disconnect on shutdown")
		}
		return srv.Shutdown(shutdownCtx)
	},
}

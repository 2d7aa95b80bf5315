package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/polendina/strangerchat"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	chatInterests string
	chatAutoStop  time.Duration
)

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVarP(&chatInterests, "interests", "i", "", "comma separated interests for this session (overrides profile.interests)")
	chatCmd.Flags().DurationVar(&chatAutoStop, "auto-stop", 10*time.Second, "stop matching on interests after this long without a stranger (0 disables)")
}

const chatHelp = `Type a line to send it. Commands:
  /next   leave this stranger and find another
  /stop   stop matching on interests and take anyone
  /quit   disconnect and exit`

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with a stranger",
	Long:  "Start an interactive session. Lines typed are sent to the stranger; /next, /stop and /quit control the session.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustLoadConfig()
		if chatInterests != "" {
			cfg.Profile.Interests = parseInterests(chatInterests)
		}
		log := newLogger(cfg)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s := &chatSession{log: log, autoStop: chatAutoStop}
		client := newClient(cfg, log, strangerchat.WithHandlers(s.handlers()))
		s.client = client
		defer client.Close()

		fmt.Println(chatHelp)
		if err := client.Start(ctx); err != nil {
			return fmt.Errorf("failed to start session: %w", err)
		}

		lines := make(chan string)
		go func() {
			defer close(lines)
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				lines <- scanner.Text()
			}
			if err := scanner.Err(); err != nil {
				log.Warn().Err(err).Msg("error reading input")
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return s.leave()
			case line, ok := <-lines:
				if !ok {
					return s.leave()
				}
				if done := s.input(ctx, strings.TrimSpace(line)); done {
					return s.leave()
				}
			}
		}
	},
}

// chatSession ties the terminal to one client.
type chatSession struct {
	client   *strangerchat.Client
	log      zerolog.Logger
	autoStop time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

// input handles one line from the terminal and reports whether to exit.
func (s *chatSession) input(ctx context.Context, text string) bool {
	switch text {
	case "":
		return false
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Println(chatHelp)
	case "/next":
		fmt.Println("*** Looking for someone new ***")
		if err := s.client.Next(ctx); err != nil {
			fmt.Printf("*** Could not start a new chat: %v ***\n", err)
		}
	case "/stop":
		if err := s.client.StopSearching(ctx); err != nil {
			fmt.Printf("*** %v ***\n", err)
		}
	default:
		if !s.client.State().Phase.Paired() {
			fmt.Println("*** Nobody is connected; type /next to search ***")
			return false
		}
		if err := s.client.SendMessage(ctx, text); err != nil {
			s.log.Warn().Err(err).Msg("send failed")
			return false
		}
		fmt.Printf("You: %s\n", text)
	}
	return false
}

func (s *chatSession) leave() error {
	s.cancelTimer()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.client.Disconnect(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.log.Warn().Err(err).Msg("disconnect failed")
	}
	fmt.Println("*** Disconnected ***")
	return nil
}

func (s *chatSession) handlers() strangerchat.Handlers {
	return strangerchat.Handlers{
		OnWaiting: func() {
			fmt.Println("*** Looking for someone you can chat with... ***")
			s.armTimer()
		},
		OnConnected: func(likes []string) {
			if len(likes) > 0 {
				fmt.Printf("*** You're now chatting with a random stranger. You both like %s. ***\n", strings.Join(likes, ", "))
			} else {
				fmt.Println("*** You're now chatting with a random stranger. Say hi! ***")
			}
		},
		OnTyping: func() {
			fmt.Println("*** Stranger is typing... ***")
		},
		OnMessage: func(text string) {
			fmt.Printf("Stranger: %s\n", text)
		},
		OnRecaptchaRequired: func() {
			fmt.Println("*** The server wants a captcha solved; this client cannot do that ***")
		},
		OnPeerDisconnected: func() {
			fmt.Println("*** Stranger has disconnected. Type /next to find someone new. ***")
		},
		OnServerError: func() {
			fmt.Println("*** The server reported an error. Type /next to try again. ***")
		},
		OnTransportError: func(err error) {
			if errors.Is(err, strangerchat.ErrRejected) {
				fmt.Println("*** The server refused the connection ***")
				return
			}
			fmt.Printf("*** Connection lost: %v ***\n", err)
		},
		OnEvent: func(t strangerchat.Transition) {
			s.log.Debug().Str("event", string(t.Event.Type)).Str("from", string(t.From)).Str("to", string(t.To)).Msg("transition")
			if t.To != strangerchat.PhaseAwaitingMatch {
				s.cancelTimer()
			}
		},
	}
}

// armTimer gives up on matching by interests once autoStop passes without a
// stranger, the way the web client does.
func (s *chatSession) armTimer() {
	if s.autoStop <= 0 || len(s.client.State().PendingInterests) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		return
	}
	s.timer = time.AfterFunc(s.autoStop, func() {
		s.mu.Lock()
		s.timer = nil
		s.mu.Unlock()
		if s.client.State().Phase != strangerchat.PhaseAwaitingMatch {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.client.StopSearching(ctx); err != nil {
			s.log.Warn().Err(err).Msg("stop searching failed")
			return
		}
		fmt.Println("*** No match on interests yet; now matching with anyone ***")
	})
}

func (s *chatSession) cancelTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

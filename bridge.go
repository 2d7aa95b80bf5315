package strangerchat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"nhooyr.io/websocket"
)

// ============================================================================
// Bridge Wire Types
// ============================================================================

// BridgeEnvelope is the wire format for everything the bridge exchanges.
type BridgeEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Bridge message types.
const (
	BridgeState      = "session.state"
	BridgeTransition = "session.transition"
	BridgeError      = "error"

	BridgeSend       = "message.send"
	BridgeStart      = "session.start"
	BridgeNext       = "session.next"
	BridgeDisconnect = "session.disconnect"
	BridgeStopSearch = "search.stop"
)

// TransitionPayload is the payload of a session.transition envelope.
type TransitionPayload struct {
	From         Phase     `json:"from"`
	To           Phase     `json:"to"`
	Event        EventType `json:"event"`
	CommonLikes  []string  `json:"commonLikes,omitempty"`
	SameLanguage bool      `json:"sameLanguage,omitempty"`
	Text         string    `json:"text,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// SendPayload is the payload of a message.send command.
type SendPayload struct {
	Text string `json:"text"`
}

// StartPayload is the optional payload of a session.start command.
type StartPayload struct {
	Interests []string `json:"interests,omitempty"`
}

// BridgeErrorPayload reports a failed command.
type BridgeErrorPayload struct {
	Command string `json:"command"`
	Message string `json:"message"`
}

func newTransitionPayload(t Transition) TransitionPayload {
	p := TransitionPayload{
		From:         t.From,
		To:           t.To,
		Event:        t.Event.Type,
		CommonLikes:  t.Event.CommonLikes,
		SameLanguage: t.Event.SameLanguage,
		Text:         t.Event.Text,
	}
	if t.Event.Err != nil {
		p.Error = t.Event.Err.Error()
	}
	return p
}

// ============================================================================
// Bridge
// ============================================================================

// Bridge serves a Client's session over WebSocket so that a separate user
// interface can drive it. Every connection receives the current state, then
// each transition; it may send chat commands back.
type Bridge struct {
	client *Client
	log    zerolog.Logger
	accept *websocket.AcceptOptions
	buffer int
}

type BridgeOption func(*Bridge)

// WithOriginPatterns allows cross-origin browser connections from the given
// host patterns.
func WithOriginPatterns(patterns ...string) BridgeOption {
	return func(b *Bridge) { b.accept.OriginPatterns = patterns }
}

func WithBridgeLogger(logger zerolog.Logger) BridgeOption {
	return func(b *Bridge) { b.log = logger }
}

func NewBridge(client *Client, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		client: client,
		log:    zerolog.Nop(),
		accept: &websocket.AcceptOptions{},
		buffer: 64,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, b.accept)
	if err != nil {
		b.log.Warn().Err(err).Msg("websocket accept")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "bridge error")

	log := b.log.With().Str("remote", r.RemoteAddr).Logger()
	log.Info().Msg("bridge client connected")

	transitions, unsubscribe := b.client.Subscribe(b.buffer)
	defer unsubscribe()

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error { return b.writeLoop(ctx, conn, transitions) })
	g.Go(func() error { return b.readLoop(ctx, conn, log) })

	err = g.Wait()
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		log.Info().Msg("bridge client disconnected")
		conn.Close(websocket.StatusNormalClosure, "")
	default:
		log.Warn().Err(err).Msg("bridge connection ended")
	}
}

func (b *Bridge) writeLoop(ctx context.Context, conn *websocket.Conn, transitions <-chan Transition) error {
	if err := writeEnvelope(ctx, conn, BridgeState, b.client.State()); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t := <-transitions:
			if err := writeEnvelope(ctx, conn, BridgeTransition, newTransitionPayload(t)); err != nil {
				return err
			}
		}
	}
}

func (b *Bridge) readLoop(ctx context.Context, conn *websocket.Conn, log zerolog.Logger) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var env BridgeEnvelope
		if json.Unmarshal(data, &env) != nil {
			log.Debug().Msg("ignoring malformed bridge message")
			continue
		}

		if err := b.handle(ctx, env); err != nil {
			log.Warn().Err(err).Str("command", env.Type).Msg("bridge command failed")
			reply := BridgeErrorPayload{Command: env.Type, Message: err.Error()}
			if err := writeEnvelope(ctx, conn, BridgeError, reply); err != nil {
				return err
			}
		}
	}
}

func (b *Bridge) handle(ctx context.Context, env BridgeEnvelope) error {
	switch env.Type {
	case BridgeSend:
		var p SendPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil || p.Text == "" {
			return errors.New("message.send needs a non-empty text")
		}
		return b.client.SendMessage(ctx, p.Text)
	case BridgeStart:
		var p StartPayload
		if len(env.Payload) > 0 {
			if err := json.Unmarshal(env.Payload, &p); err != nil {
				return fmt.Errorf("invalid session.start payload: %w", err)
			}
		}
		if p.Interests != nil {
			b.client.SetInterests(p.Interests)
		}
		return b.client.Start(ctx)
	case BridgeNext:
		return b.client.Next(ctx)
	case BridgeDisconnect:
		return b.client.Disconnect(ctx)
	case BridgeStopSearch:
		return b.client.StopSearching(ctx)
	default:
		return fmt.Errorf("unknown command %q", env.Type)
	}
}

func writeEnvelope(ctx context.Context, conn *websocket.Conn, typ string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(BridgeEnvelope{Type: typ, Payload: raw})
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// Package strangerchat is a client for an anonymous one-to-one text chat
// service that pairs two strangers over a long-polling HTTP protocol.
//
// A Client bootstraps a session, polls for events on its own goroutine, runs
// them through a small state machine and reports them through Handlers or
// Subscribe channels.
//
// Example:
//
//	client := strangerchat.NewClient(
//		strangerchat.WithInterests([]string{"music", "books"}),
//		strangerchat.WithHandlers(strangerchat.Handlers{
//			OnConnected: func(likes []string) { fmt.Println("paired", likes) },
//			OnMessage:   func(text string) { fmt.Println("stranger:", text) },
//		}),
//	)
//	defer client.Close()
//
//	if err := client.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//	client.SendMessage(ctx, "hi")
package strangerchat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ============================================================================
// Defaults
// ============================================================================

const (
	DefaultBaseURL   = "https://front1.omegle.com"
	DefaultCheckURL  = "https://waw.omegle.com/check"
	DefaultLanguage  = "en"
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/115.0"

	// DefaultTimeout bounds a single request, long polls included.
	DefaultTimeout = 2 * time.Minute
)

const (
	pathStart      = "/start"
	pathEvents     = "/events"
	pathSend       = "/send"
	pathDisconnect = "/disconnect"
	pathStopSearch = "/stoplookingforcommonlikes"
	pathStatus     = "/status"

	capabilities = "recaptcha2,t3"
	ackBody      = "win"
)

// ============================================================================
// Client
// ============================================================================

// Client runs chat sessions against one front server. Sessions are started
// one at a time; the local id and challenge token outlive them.
type Client struct {
	baseURL    string
	checkURL   string
	language   string
	userAgent  string
	interests  []string
	blocked    map[string]bool
	httpClient *http.Client
	log        zerolog.Logger

	localID string

	tokenMu sync.Mutex
	token   string

	mu       sync.Mutex
	m        *machine
	starting bool

	disp *dispatcher

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type ClientOption func(*Client)

func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithCheckURL(u string) ClientOption {
	return func(c *Client) { c.checkURL = u }
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = client }
}

func WithLanguage(lang string) ClientOption {
	return func(c *Client) { c.language = lang }
}

func WithUserAgent(ua string) ClientOption {
	return func(c *Client) { c.userAgent = ua }
}

// WithInterests sets the topics sent with every search.
func WithInterests(interests []string) ClientOption {
	return func(c *Client) { c.interests = slices.Clone(interests) }
}

// WithBlockedIDs lists peer ids to skip: when one of them connects, the
// client leaves at once and searches again, as Next does.
func WithBlockedIDs(ids ...string) ClientOption {
	return func(c *Client) {
		if c.blocked == nil {
			c.blocked = make(map[string]bool, len(ids))
		}
		for _, id := range ids {
			c.blocked[id] = true
		}
	}
}

func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) { c.log = logger }
}

func WithHandlers(h Handlers) ClientOption {
	return func(c *Client) { c.disp.setHandlers(h) }
}

// NewClient creates a Client. No request is made until Start.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:   DefaultBaseURL,
		checkURL:  DefaultCheckURL,
		language:  DefaultLanguage,
		userAgent: DefaultUserAgent,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		log:     zerolog.Nop(),
		localID: randomID(),
		disp:    newDispatcher(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.m = newMachine(c.interests)
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.log = c.log.With().Str("randid", c.localID).Logger()
	return c
}

// LocalID returns the random id this client identifies itself with.
func (c *Client) LocalID() string {
	return c.localID
}

// State returns a snapshot of the current session.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.m.snapshot(c.localID)
}

// SetHandlers replaces the registered callback set.
func (c *Client) SetHandlers(h Handlers) {
	c.disp.setHandlers(h)
}

// Subscribe returns a channel receiving every transition from now on, and a
// function that ends the subscription. The channel is never closed.
func (c *Client) Subscribe(buffer int) (<-chan Transition, func()) {
	return c.disp.subscribe(buffer)
}

// SetInterests replaces the topics used by the next Start.
func (c *Client) SetInterests(interests []string) {
	c.mu.Lock()
	c.m.setInterests(interests)
	c.mu.Unlock()
}

// ============================================================================
// Session Lifecycle
// ============================================================================

// Start asks the server for a stranger. It fetches the challenge token if
// needed, applies the events bundled with the bootstrap response and starts
// polling. Every successful bootstrap begins a new session in PhaseIdle, also
// after a session that ended Closed. When the bootstrap request fails no
// phase is entered and Start can simply be retried.
//
// The bundled events are reported from the session goroutine, so Start does
// not wait for handlers or subscribers.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.ctx.Err() != nil {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.m.handle != "" || c.starting {
		c.mu.Unlock()
		return ErrSessionActive
	}
	c.starting = true
	interests := slices.Clone(c.m.pending)
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.starting = false
		c.mu.Unlock()
	}()

	token, err := c.challenge(ctx)
	if err != nil {
		return err
	}

	form := url.Values{
		"caps":        {capabilities},
		"firstevents": {"1"},
		"spid":        {""},
		"randid":      {c.localID},
		"cc":          {token},
		"topics":      {encodeTopics(interests)},
		"lang":        {c.language},
	}
	body, err := c.post(ctx, c.endpoint(pathStart), form)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	resp, err := decodeStart(body)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}

	if resp.ClientID == "" || resp.ClientID == nullClientID {
		c.log.Warn().Msg("start refused by server")
		c.mu.Lock()
		if c.ctx.Err() != nil {
			c.mu.Unlock()
			return ErrClosed
		}
		t := c.m.apply(transportError(ErrRejected))
		c.wg.Add(1)
		c.mu.Unlock()

		go func() {
			defer c.wg.Done()
			c.disp.emit([]Transition{t})
		}()
		return ErrRejected
	}

	handle := resp.ClientID
	c.log.Info().Str("handle", handle).Strs("topics", interests).Msg("session started")

	c.mu.Lock()
	if c.ctx.Err() != nil {
		c.mu.Unlock()
		return ErrClosed
	}
	gen := c.m.bind(handle)
	transitions := c.applyLocked(gen, DecodeEvents(resp.Events))
	skip := c.blockedLocked()
	c.wg.Add(1)
	c.mu.Unlock()

	go c.run(gen, handle, transitions, skip)
	return nil
}

// SendMessage sends text to the stranger. Delivery is best effort: a refused
// send is logged and otherwise ignored. Sending without a peer is allowed and
// changes nothing.
func (c *Client) SendMessage(ctx context.Context, text string) error {
	c.mu.Lock()
	handle := c.m.handle
	if c.m.phase.Paired() {
		c.m.record(SenderLocal, text)
	}
	c.mu.Unlock()

	return c.bestEffort(ctx, pathSend, url.Values{"msg": {text}, "id": {handle}})
}

// StopSearching tells the server to stop looking for a stranger with common
// interests. The official web client sends it after ten seconds without a
// match; timing is left to the caller. Without a session it returns
// ErrNotConnected and sends nothing.
func (c *Client) StopSearching(ctx context.Context) error {
	c.mu.Lock()
	handle := c.m.handle
	c.mu.Unlock()

	if handle == "" {
		return ErrNotConnected
	}
	return c.bestEffort(ctx, pathStopSearch, url.Values{"id": {handle}})
}

// Disconnect ends the current session. Polling stops before the notice is
// sent; a poll already in flight is discarded when it returns.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	handle := c.m.handle
	c.m.reset()
	c.mu.Unlock()

	if handle == "" {
		return nil
	}
	c.log.Info().Str("handle", handle).Msg("disconnecting")
	return c.bestEffort(ctx, pathDisconnect, url.Values{"id": {handle}})
}

// Next leaves the current stranger and searches again with the requested
// interests.
func (c *Client) Next(ctx context.Context) error {
	if err := c.Disconnect(ctx); err != nil {
		c.log.Warn().Err(err).Msg("disconnect before next")
	}
	return c.Start(ctx)
}

// Status fetches the advisory site metadata.
func (c *Client) Status(ctx context.Context) (*SiteStatus, error) {
	query := url.Values{
		"nocache": {strconv.FormatInt(time.Now().UnixMilli(), 10)},
		"randid":  {c.localID},
	}
	data, err := c.get(ctx, c.endpoint(pathStatus)+"?"+query.Encode())
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	return decodeJSON[SiteStatus](data)
}

// Close stops polling, aborts requests in flight and ends all
// subscriptions, then waits for the session goroutine to exit. It does not
// notify the server; call Disconnect first for that. Close must not be
// called from a Handlers callback.
func (c *Client) Close() {
	c.mu.Lock()
	c.cancel()
	c.mu.Unlock()

	// Subscriptions end before the wait so that a reader that went away
	// cannot hold up the session goroutine.
	c.disp.closeAll()
	c.wg.Wait()

	c.mu.Lock()
	c.m.reset()
	c.mu.Unlock()
}

// applyLocked applies events for session gen while it stays current. The
// caller holds c.mu.
func (c *Client) applyLocked(gen uint64, events []Event) []Transition {
	transitions := make([]Transition, 0, len(events))
	for _, ev := range events {
		if !c.m.live(gen) {
			break
		}
		transitions = append(transitions, c.m.apply(ev))
	}
	return transitions
}

// blockedLocked reports whether the session is paired with a blocked peer.
// The caller holds c.mu.
func (c *Client) blockedLocked() bool {
	return c.m.phase.Paired() && c.blocked[c.m.peerID]
}

// ============================================================================
// Internal request helpers
// ============================================================================

func (c *Client) endpoint(path string) string {
	return c.baseURL + path
}

func (c *Client) post(ctx context.Context, u string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	return c.do(req)
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Endpoint: req.URL.Path, Code: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}

// bestEffort posts to an endpoint that acknowledges with "win". Refusals are
// logged and dropped; only a failure to reach the server is returned.
func (c *Client) bestEffort(ctx context.Context, path string, form url.Values) error {
	body, err := c.post(ctx, c.endpoint(path), form)
	var statusErr *StatusError
	switch {
	case errors.As(err, &statusErr):
		c.log.Warn().Str("endpoint", path).Int("status", statusErr.Code).Msg("request refused")
		return nil
	case err != nil:
		return fmt.Errorf("%s: %w", strings.TrimPrefix(path, "/"), err)
	}
	if got := strings.TrimSpace(string(body)); got != ackBody {
		c.log.Warn().Str("endpoint", path).Str("body", got).Msg("unexpected acknowledgement")
	}
	return nil
}

func decodeJSON[T any](data []byte) (*T, error) {
	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &result, nil
}

// encodeTopics renders interests as the JSON list the start endpoint expects.
func encodeTopics(interests []string) string {
	if len(interests) == 0 {
		return "[]"
	}
	data, _ := json.Marshal(interests)
	return string(data)
}

package strangerchat

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ============================================================================
// Errors
// ============================================================================

var (
	// ErrChallenge is returned by Start when the challenge token cannot be obtained.
	ErrChallenge = errors.New("challenge token unavailable")

	// ErrRejected marks a bootstrap the server refused (clientID "null"), usually an IP block.
	ErrRejected = errors.New("server rejected the session")

	// ErrSessionActive is returned by Start while a session handle is still held.
	ErrSessionActive = errors.New("session already active")

	// ErrNotConnected is returned by operations that need a session handle.
	ErrNotConnected = errors.New("no active session")

	// ErrClosed is returned by Start once the client has been closed.
	ErrClosed = errors.New("client closed")
)

// StatusError is returned when an endpoint answers with a non-2xx status.
type StatusError struct {
	Endpoint string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: HTTP %d", e.Endpoint, e.Code)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Endpoint, e.Code, e.Body)
}

// ============================================================================
// Wire Types
// ============================================================================

// nullClientID is what the start endpoint reports when it refuses the client.
const nullClientID = "null"

// startResponse is the body of the bootstrap request.
type startResponse struct {
	ClientID string          `json:"clientID"`
	Events   json.RawMessage `json:"events,omitempty"`
}

// SiteStatus is the advisory metadata served by the status endpoint.
type SiteStatus struct {
	Count           int      `json:"count"`
	Servers         []string `json:"servers"`
	AntiNudeServers []string `json:"antinudeservers,omitempty"`
	AntiNudePercent float64  `json:"antinudepercent,omitempty"`
	SpyQueueTime    float64  `json:"spyQueueTime"`
	SpyeeQueueTime  float64  `json:"spyeeQueueTime"`
	Timestamp       float64  `json:"timestamp"`
}

// ============================================================================
// Transcript
// ============================================================================

// Sender identifies who wrote a transcript message.
type Sender string

const (
	SenderLocal Sender = "local"
	SenderPeer  Sender = "peer"
)

// Message is one line of the current pairing's transcript.
type Message struct {
	ID   string    `json:"id"`
	From Sender    `json:"from"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

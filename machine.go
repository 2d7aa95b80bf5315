package strangerchat

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Phase is the coarse stage of a session.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseAwaitingMatch Phase = "awaiting_match"
	PhasePaired        Phase = "paired"
	PhasePeerTyping    Phase = "peer_typing"
	PhaseClosed        Phase = "closed"
)

// Paired reports whether a peer is attached in this phase.
func (p Phase) Paired() bool {
	return p == PhasePaired || p == PhasePeerTyping
}

// Transition records one applied event.
type Transition struct {
	From  Phase `json:"from"`
	To    Phase `json:"to"`
	Event Event `json:"event"`
}

// State is a snapshot of a session.
type State struct {
	Phase            Phase     `json:"phase"`
	LocalID          string    `json:"localId"`
	PeerID           string    `json:"peerId,omitempty"`
	CommonLikes      []string  `json:"commonLikes,omitempty"`
	SameLanguage     bool      `json:"sameLanguage,omitempty"`
	PendingInterests []string  `json:"pendingInterests,omitempty"`
	Messages         []Message `json:"messages,omitempty"`
}

// machine is the session state. It is not safe for concurrent use; the
// Client serialises access to it.
type machine struct {
	phase Phase

	// handle is the server-issued id that polls are bound to. peerID mirrors
	// it while a peer is attached. gen counts bootstraps so that a poll from
	// an earlier session never matches a later one, even if the server
	// reuses the id.
	handle string
	peerID string
	gen    uint64

	requested    []string
	pending      []string
	commonLikes  []string
	sameLanguage bool
	transcript   []Message

	now func() time.Time
}

func newMachine(interests []string) *machine {
	return &machine{
		phase:     PhaseIdle,
		requested: slices.Clone(interests),
		pending:   slices.Clone(interests),
		now:       time.Now,
	}
}

// bind starts a new session for the handle returned by a successful
// bootstrap. Whatever the previous session ended in, the new one begins
// Idle.
func (m *machine) bind(handle string) uint64 {
	m.gen++
	m.phase = PhaseIdle
	m.handle = handle
	m.peerID = ""
	m.commonLikes = nil
	m.sameLanguage = false
	return m.gen
}

// live reports whether gen is the current session and it still holds a
// handle.
func (m *machine) live(gen uint64) bool {
	return m.handle != "" && m.gen == gen
}

// apply runs one event through the transition table.
func (m *machine) apply(ev Event) Transition {
	from := m.phase

	switch ev.Type {
	case EventRecaptchaRequired:
		// notification only
	case EventConnected:
		if m.handle == "" {
			// no session to pair; a late event from a finished poll
			break
		}
		m.phase = PhasePaired
		m.peerID = m.handle
		m.commonLikes = slices.Clone(ev.CommonLikes)
		m.sameLanguage = ev.SameLanguage
		m.transcript = nil
	case EventTyping:
		if m.phase == PhasePaired {
			m.phase = PhasePeerTyping
		}
	case EventStoppedTyping:
		if m.phase == PhasePeerTyping {
			m.phase = PhasePaired
		}
	case EventMessage:
		if m.phase.Paired() {
			m.record(SenderPeer, ev.Text)
		}
	case EventPeerDisconnected:
		m.detach(PhaseIdle)
	case EventWaiting:
		if m.phase == PhaseIdle || m.phase == PhaseAwaitingMatch {
			m.phase = PhaseAwaitingMatch
		}
	case EventServerError, EventTransportError:
		m.detach(PhaseClosed)
	}

	return Transition{From: from, To: m.phase, Event: ev}
}

// reset handles a local disconnect. It moves to Idle without an event.
func (m *machine) reset() {
	m.detach(PhaseIdle)
}

func (m *machine) detach(to Phase) {
	m.phase = to
	m.handle = ""
	m.peerID = ""
	m.commonLikes = nil
	m.sameLanguage = false
	m.pending = slices.Clone(m.requested)
}

func (m *machine) setInterests(interests []string) {
	m.requested = slices.Clone(interests)
	m.pending = slices.Clone(interests)
}

func (m *machine) record(from Sender, text string) {
	m.transcript = append(m.transcript, Message{
		ID:   uuid.NewString(),
		From: from,
		Text: text,
		At:   m.now(),
	})
}

func (m *machine) snapshot(localID string) State {
	return State{
		Phase:            m.phase,
		LocalID:          localID,
		PeerID:           m.peerID,
		CommonLikes:      slices.Clone(m.commonLikes),
		SameLanguage:     m.sameLanguage,
		PendingInterests: slices.Clone(m.pending),
		Messages:         slices.Clone(m.transcript),
	}
}

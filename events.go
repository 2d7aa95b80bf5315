package strangerchat

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// ============================================================================
// Event Types
// ============================================================================

// EventType is the wire name of a protocol event.
type EventType string

const (
	EventRecaptchaRequired EventType = "recaptchaRequired"
	EventConnected         EventType = "connected"
	EventTyping            EventType = "typing"
	EventStoppedTyping     EventType = "stoppedTyping"
	EventMessage           EventType = "gotMessage"
	EventPeerDisconnected  EventType = "strangerDisconnected"
	EventWaiting           EventType = "waiting"
	EventServerError       EventType = "error"
	EventTransportError    EventType = "connectionError"
)

// Sibling units the server bundles next to "connected".
const (
	unitCommonLikes   = "commonLikes"
	unitServerMessage = "serverMessage"
)

// Event is one decoded protocol event. Only the fields of its Type are set.
type Event struct {
	Type EventType `json:"type"`

	// Connected
	CommonLikes  []string `json:"commonLikes,omitempty"`
	SameLanguage bool     `json:"sameLanguage,omitempty"`

	// Message
	Text string `json:"text,omitempty"`

	// TransportError
	Err error `json:"-"`
}

// eventNames maps wire names to event types. recaptchaRejected asks for the
// same user action as recaptchaRequired.
var eventNames = map[string]EventType{
	"recaptchaRequired":    EventRecaptchaRequired,
	"recaptchaRejected":    EventRecaptchaRequired,
	"connected":            EventConnected,
	"typing":               EventTyping,
	"stoppedTyping":        EventStoppedTyping,
	"gotMessage":           EventMessage,
	"strangerDisconnected": EventPeerDisconnected,
	"waiting":              EventWaiting,
	"error":                EventServerError,
	"connectionError":      EventTransportError,
}

func transportError(err error) Event {
	return Event{Type: EventTransportError, Err: err}
}

// ============================================================================
// Decoding
// ============================================================================

// DecodeEvents decodes a raw events body. The server answers either with an
// object carrying an "events" key or with a bare array of arrays. Anything it
// does not recognize is dropped; it never fails.
func DecodeEvents(body []byte) []Event {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil
	}

	switch body[0] {
	case '{':
		var obj struct {
			Events json.RawMessage `json:"events"`
		}
		if json.Unmarshal(body, &obj) != nil {
			return nil
		}
		name, ok := innermostName(obj.Events)
		if !ok {
			return nil
		}
		if t, known := eventNames[name]; known {
			return []Event{{Type: t}}
		}
		return nil
	case '[':
		return decodeUnits(body)
	default:
		return nil
	}
}

// innermostName follows the first element of nested arrays down to a string.
func innermostName(raw json.RawMessage) (string, bool) {
	for depth := 0; depth < 8; depth++ {
		if s, ok := coerceString(raw); ok {
			return s, true
		}
		var arr []json.RawMessage
		if json.Unmarshal(raw, &arr) != nil || len(arr) == 0 {
			return "", false
		}
		raw = arr[0]
	}
	return "", false
}

// decodeUnits decodes an array of event units, e.g.
// [["connected"],["commonLikes",["music"]],["gotMessage","hi"]].
func decodeUnits(body []byte) []Event {
	var units []json.RawMessage
	if json.Unmarshal(body, &units) != nil {
		return nil
	}

	var events []Event
	for i, unit := range units {
		var entries []json.RawMessage
		if json.Unmarshal(unit, &entries) != nil {
			continue
		}
		tokens := stringTokens(entries)
		if len(tokens) == 0 {
			continue
		}
		t, known := eventNames[tokens[0]]
		if !known {
			continue
		}

		ev := Event{Type: t}
		switch t {
		case EventConnected:
			ev.CommonLikes, ev.SameLanguage = scanSiblings(units, i)
		case EventMessage:
			if len(tokens) > 1 {
				ev.Text = tokens[len(tokens)-1]
			}
		}
		events = append(events, ev)
	}
	return events
}

// stringTokens keeps the entries that read as strings. Status objects the
// server embeds next to some events are skipped.
func stringTokens(entries []json.RawMessage) []string {
	tokens := make([]string, 0, len(entries))
	for _, e := range entries {
		if s, ok := coerceString(e); ok {
			tokens = append(tokens, s)
		}
	}
	return tokens
}

// scanSiblings looks through the other units of a batch for the common likes
// list and the same-language marker that accompany "connected".
func scanSiblings(units []json.RawMessage, self int) ([]string, bool) {
	likes := []string{}
	sameLanguage := false
	for i, unit := range units {
		if i == self {
			continue
		}
		var entries []json.RawMessage
		if json.Unmarshal(unit, &entries) != nil || len(entries) == 0 {
			continue
		}
		name, ok := coerceString(entries[0])
		if !ok {
			continue
		}
		switch name {
		case unitServerMessage:
			sameLanguage = true
		case unitCommonLikes:
			if len(entries) < 2 {
				continue
			}
			var raw []json.RawMessage
			if json.Unmarshal(entries[1], &raw) != nil {
				continue
			}
			likes = stringTokens(raw)
		}
	}
	return likes, sameLanguage
}

// coerceString reads strings, numbers and booleans as text. Objects, arrays
// and null are not strings.
func coerceString(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}
	switch raw[0] {
	case '"':
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return "", false
		}
		return s, true
	case 't', 'f':
		b, err := strconv.ParseBool(string(raw))
		if err != nil {
			return "", false
		}
		return strconv.FormatBool(b), true
	case '{', '[', 'n':
		return "", false
	default:
		var n json.Number
		if json.Unmarshal(raw, &n) != nil {
			return "", false
		}
		return n.String(), true
	}
}

// decodeStart parses the bootstrap response.
func decodeStart(body []byte) (*startResponse, error) {
	resp, err := decodeJSON[startResponse](body)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

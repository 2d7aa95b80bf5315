package strangerchat

import (
	"sync"
)

// ============================================================================
// Handlers
// ============================================================================

// Handlers is the callback set a Client reports events through. Nil fields
// are skipped. For every applied event exactly one specific callback runs,
// followed by OnEvent.
//
// Callbacks run on the session's goroutine in the order the server sent the
// events, so they should return quickly. They may call back into the Client,
// except for Close, which waits for that goroutine; call it from another
// goroutine instead.
type Handlers struct {
	OnRecaptchaRequired func()
	OnConnected         func(commonLikes []string)
	OnTyping            func()
	OnStoppedTyping     func()
	OnMessage           func(text string)
	OnPeerDisconnected  func()
	OnWaiting           func()
	OnServerError       func()
	OnTransportError    func(err error)

	// OnEvent receives every transition, whatever its event type.
	OnEvent func(t Transition)
}

func (h *Handlers) specific(ev Event) {
	switch ev.Type {
	case EventRecaptchaRequired:
		if h.OnRecaptchaRequired != nil {
			h.OnRecaptchaRequired()
		}
	case EventConnected:
		if h.OnConnected != nil {
			h.OnConnected(ev.CommonLikes)
		}
	case EventTyping:
		if h.OnTyping != nil {
			h.OnTyping()
		}
	case EventStoppedTyping:
		if h.OnStoppedTyping != nil {
			h.OnStoppedTyping()
		}
	case EventMessage:
		if h.OnMessage != nil {
			h.OnMessage(ev.Text)
		}
	case EventPeerDisconnected:
		if h.OnPeerDisconnected != nil {
			h.OnPeerDisconnected()
		}
	case EventWaiting:
		if h.OnWaiting != nil {
			h.OnWaiting()
		}
	case EventServerError:
		if h.OnServerError != nil {
			h.OnServerError()
		}
	case EventTransportError:
		if h.OnTransportError != nil {
			h.OnTransportError(ev.Err)
		}
	}
}

// ============================================================================
// Dispatcher
// ============================================================================

type subscription struct {
	ch   chan Transition
	done chan struct{}
}

type dispatcher struct {
	mu       sync.RWMutex
	handlers Handlers
	subs     map[*subscription]struct{}

	// stop is closed by closeAll; emits after that skip subscribers.
	stop     chan struct{}
	stopOnce sync.Once
}

func newDispatcher() *dispatcher {
	return &dispatcher{
		subs: make(map[*subscription]struct{}),
		stop: make(chan struct{}),
	}
}

func (d *dispatcher) setHandlers(h Handlers) {
	d.mu.Lock()
	d.handlers = h
	d.mu.Unlock()
}

func (d *dispatcher) subscribe(buffer int) (<-chan Transition, func()) {
	s := &subscription{
		ch:   make(chan Transition, buffer),
		done: make(chan struct{}),
	}
	d.mu.Lock()
	d.subs[s] = struct{}{}
	d.mu.Unlock()

	cancel := func() {
		d.mu.Lock()
		_, ok := d.subs[s]
		delete(d.subs, s)
		d.mu.Unlock()
		if ok {
			close(s.done)
		}
	}
	return s.ch, cancel
}

// emit delivers transitions in order. A subscriber with a full buffer holds
// up the session until it reads, unsubscribes or the client is closed.
func (d *dispatcher) emit(transitions []Transition) {
	d.mu.RLock()
	h := d.handlers
	subs := make([]*subscription, 0, len(d.subs))
	for s := range d.subs {
		subs = append(subs, s)
	}
	d.mu.RUnlock()

	for _, t := range transitions {
		h.specific(t.Event)
		if h.OnEvent != nil {
			h.OnEvent(t)
		}
		for _, s := range subs {
			select {
			case s.ch <- t:
			case <-s.done:
			case <-d.stop:
			}
		}
	}
}

func (d *dispatcher) closeAll() {
	d.stopOnce.Do(func() { close(d.stop) })

	d.mu.Lock()
	subs := d.subs
	d.subs = make(map[*subscription]struct{})
	d.mu.Unlock()
	for s := range subs {
		close(s.done)
	}
}

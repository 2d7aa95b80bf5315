package strangerchat

import (
	"net/url"
)

// run owns one session: it reports the events bundled with the bootstrap
// response, then long-polls until the session ends.
func (c *Client) run(gen uint64, handle string, initial []Transition, skip bool) {
	defer c.wg.Done()

	log := c.log.With().Str("handle", handle).Logger()
	log.Debug().Msg("session loop started")
	defer log.Debug().Msg("session loop stopped")

	c.disp.emit(initial)
	if skip {
		c.skipBlocked(gen, handle)
		return
	}
	c.poll(gen, handle)
}

// poll long-polls the events endpoint until the session is cleared or
// replaced. The server holds each request open until it has something to
// say, so requests are re-issued back to back without any delay.
func (c *Client) poll(gen uint64, handle string) {
	form := url.Values{"id": {handle}}
	for c.current(gen) {
		body, err := c.post(c.ctx, c.endpoint(pathEvents), form)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.log.Warn().Err(err).Str("handle", handle).Msg("poll failed")
			c.deliver(gen, []Event{transportError(err)})
			return
		}

		events := DecodeEvents(body)
		if len(events) == 0 {
			c.log.Trace().Bytes("body", body).Msg("no events in response")
			continue
		}
		delivered, skip := c.deliver(gen, events)
		if !delivered {
			c.log.Debug().Int("events", len(events)).Msg("discarded response for finished session")
			return
		}
		if skip {
			c.skipBlocked(gen, handle)
			return
		}
	}
}

// current reports whether gen still names the active session.
func (c *Client) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.m.live(gen)
}

// deliver applies a response's events and then notifies, in order. It drops
// the batch if the session ended while the request was in flight. skip is
// set when the batch paired the session with a blocked peer.
func (c *Client) deliver(gen uint64, events []Event) (delivered, skip bool) {
	c.mu.Lock()
	if !c.m.live(gen) {
		c.mu.Unlock()
		return false, false
	}
	transitions := c.applyLocked(gen, events)
	skip = c.blockedLocked()
	c.mu.Unlock()

	c.disp.emit(transitions)
	return true, skip
}

// skipBlocked leaves a blocked peer and searches again, unless a handler
// already moved the session on.
func (c *Client) skipBlocked(gen uint64, handle string) {
	if !c.current(gen) {
		return
	}
	c.log.Info().Str("handle", handle).Msg("blocked peer connected, searching again")
	if err := c.Next(c.ctx); err != nil && c.ctx.Err() == nil {
		c.log.Warn().Err(err).Msg("search after blocked peer")
	}
}

package strangerchat

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
)

// randomID returns the local id sent as randid: a number in [1e9, 2e9) in
// upper-case base 36, which is always six characters long.
func randomID() string {
	n := rand.IntN(1_000_000_000) + 1_000_000_000
	return strings.ToUpper(strconv.FormatInt(int64(n), 36))
}

// challenge returns the cached challenge token, fetching it from the check
// endpoint while it is empty.
func (c *Client) challenge(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.token != "" {
		return c.token, nil
	}

	body, err := c.post(ctx, c.checkURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrChallenge, err)
	}
	token := strings.TrimSpace(string(body))
	if token == "" {
		return "", fmt.Errorf("%w: empty response", ErrChallenge)
	}

	c.token = token
	c.log.Debug().Msg("challenge token fetched")
	return token, nil
}

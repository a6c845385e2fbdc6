package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(burst int, interval time.Duration) (*rateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	rl := newRateLimiter(RateLimitConfig{Burst: burst, RefillInterval: interval})
	rl.now = clock.now
	rl.lastCheck = clock.now()
	return rl, clock
}

func TestRateLimiter_Burst_Then_Deny(t *testing.T) {
	req := require.New(t)
	rl, _ := newTestLimiter(3, time.Second)

	for i := 0; i < 3; i++ {
		req.True(rl.allow(), "token %d", i)
	}
	req.False(rl.allow())
}

func TestRateLimiter_Refills_Over_Time(t *testing.T) {
	req := require.New(t)
	rl, clock := newTestLimiter(2, time.Second)

	req.True(rl.allow())
	req.True(rl.allow())
	req.False(rl.allow())

	clock.advance(500 * time.Millisecond)
	req.True(rl.allow())
	req.False(rl.allow())

	clock.advance(10 * time.Second)
	req.True(rl.allow())
	req.True(rl.allow())
	req.False(rl.allow(), "refill never exceeds the burst")
}

func TestRateLimiter_Invalid_Config_Uses_Minimums(t *testing.T) {
	req := require.New(t)
	rl, _ := newTestLimiter(0, 0)
	req.True(rl.allow())
	req.False(rl.allow())
}

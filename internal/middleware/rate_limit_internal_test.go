package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyedRateLimiter_EvictsIdleBuckets(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	k := NewKeyedRateLimiter(1, 1)
	k.now = func() time.Time { return now }

	k.limiter("10.0.0.1 /a")
	k.limiter("10.0.0.2 /a")
	assert.Equal(t, 2, k.Len())

	now = now.Add(limiterIdleTTL + time.Second)
	k.limiter("10.0.0.3 /a")

	assert.Equal(t, 1, k.Len())
}

package assemble

import (
	"math/rand/v2"
	"time"
)

// MaxRetries is the default number of retries of a transient merge failure.
const MaxRetries = 3

const maxBackoff = 30 * time.Second

// Backoff waits 2^attempt seconds, capped at maxBackoff, plus up to half
// that again in jitter. attempt is 0-indexed.
func Backoff(attempt int) time.Duration {
	base := maxBackoff
	switch {
	case attempt <= 0:
		base = time.Second
	case attempt < 5: // 2^5 s already passes the cap
		base = time.Duration(1<<attempt) * time.Second
	}
	return base + time.Duration(rand.Int64N(int64(base)/2))
}

package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/fleveque/image-service/internal/model"
)

// minIdleTTL is the shortest time an idle client's bucket is kept.
const minIdleTTL = time.Minute

// RateLimit returns per-client rate limiting middleware using token buckets.
// Clients are identified by gin's ClientIP (the service has no API keys), so
// the router's trusted proxies decide whether X-Forwarded-For is believed.
//
// Token bucket algorithm: each client gets a bucket that fills at `rps` tokens/sec
// up to `burst` tokens. Each request consumes one token. If the bucket is empty,
// the request is rejected with 429.
//
// onReject is called for every rejected request; it may be nil.
func RateLimit(rps float64, burst int, onReject func()) gin.HandlerFunc {
	store := newLimiterStore(rps, burst, time.Now)

	return func(c *gin.Context) {
		if !store.get(c.ClientIP()).Allow() {
			if onReject != nil {
				onReject()
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, model.ErrorResponse{
				Success: false,
				Error:   "rate limit exceeded",
			})
			return
		}

		c.Next()
	}
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterStore holds one bucket per client and forgets clients that have
// been idle for idleTTL. A bucket idle that long has refilled completely,
// so dropping it and starting a fresh one later changes nothing.
//
// sync.Mutex protects the map of limiters from concurrent goroutine access.
// This is one of the few cases where Go uses traditional locks instead of channels,
// a shared map with simple read/write is cleaner with a mutex than a channel.
type limiterStore struct {
	mu        sync.Mutex
	rps       rate.Limit
	burst     int
	idleTTL   time.Duration
	now       func() time.Time
	lastSweep time.Time
	clients   map[string]*clientLimiter
}

func newLimiterStore(rps float64, burst int, now func() time.Time) *limiterStore {
	// Twice the time an empty bucket needs to refill, like a key TTL of
	// two windows.
	ttl := minIdleTTL
	if rps > 0 {
		if refill := time.Duration(float64(burst) / rps * float64(time.Second)); 2*refill > ttl {
			ttl = 2 * refill
		}
	}
	return &limiterStore{
		rps:     rate.Limit(rps),
		burst:   burst,
		idleTTL: ttl,
		now:     now,
		clients: make(map[string]*clientLimiter),
	}
}

// get returns the client's bucket, creating it on first use. Idle clients
// are swept at most once per idleTTL, so the map is bounded by the number
// of clients seen within roughly two TTLs.
func (s *limiterStore) get(key string) *rate.Limiter {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastSweep) >= s.idleTTL {
		for k, cl := range s.clients {
			if now.Sub(cl.lastSeen) >= s.idleTTL {
				delete(s.clients, k)
			}
		}
		s.lastSweep = now
	}

	cl, ok := s.clients[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(s.rps, s.burst)}
		s.clients[key] = cl
	}
	cl.lastSeen = now
	return cl.limiter
}

func (s *limiterStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

package middleware

import (
	"net/http"
	"sync"
	"time"

	perr "landpulse/internal/platform/errors"
	pnet "landpulse/internal/platform/net"

	"golang.org/x/time/rate"
)

// RateLimitOptions configures the per-client token bucket
type RateLimitOptions struct {
	// RPS is the sustained requests per second per client, <= 0 disables limiting
	RPS float64
	// Burst is the bucket size, defaults to 1
	Burst int
	// IdleTTL evicts limiters for clients not seen for this long, defaults to 10m
	IdleTTL time.Duration
	// OnLimit writes the rejection; required
	OnLimit func(w http.ResponseWriter, r *http.Request, err error)
}

type clientLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimit limits requests per client IP with golang.org/x/time/rate
func RateLimit(o RateLimitOptions) func(http.Handler) http.Handler {
	if o.RPS <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if o.Burst <= 0 {
		o.Burst = 1
	}
	if o.IdleTTL <= 0 {
		o.IdleTTL = 10 * time.Minute
	}

	var (
		mu      sync.Mutex
		clients = map[string]*clientLimiter{}
		swept   = time.Now()
	)
	allow := func(ip string, now time.Time) bool {
		mu.Lock()
		defer mu.Unlock()
		if now.Sub(swept) > o.IdleTTL {
			for k, c := range clients {
				if now.Sub(c.seen) > o.IdleTTL {
					delete(clients, k)
				}
			}
			swept = now
		}
		c, ok := clients[ip]
		if !ok {
			c = &clientLimiter{lim: rate.NewLimiter(rate.Limit(o.RPS), o.Burst)}
			clients[ip] = c
		}
		c.seen = now
		return c.lim.AllowN(now, 1)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !allow(pnet.ClientIP(r), time.Now()) {
				w.Header().Set("Retry-After", "1")
				o.OnLimit(w, r, perr.TooManyRequestsf("too many requests, retry shortly"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

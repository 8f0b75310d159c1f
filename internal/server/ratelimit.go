package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/HerbHall/devicepulse/pkg/models"
	"golang.org/x/time/rate"
)

// defaultIdleTTL is how long a tenant's bucket is kept without requests.
const defaultIdleTTL = 10 * time.Minute

type tenantBucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// TenantLimiter applies a token bucket per tenant. Buckets idle for longer
// than the idle TTL are dropped; by then they have refilled, so a new bucket
// behaves the same.
type TenantLimiter struct {
	mu        sync.Mutex
	buckets   map[models.TenantID]*tenantBucket
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewTenantLimiter allows each tenant rps requests per second with the given
// burst. A non-positive rps disables limiting.
func NewTenantLimiter(rps float64, burst int) *TenantLimiter {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	idle := defaultIdleTTL
	if rps > 0 {
		if refill := time.Duration(float64(burst) / rps * float64(time.Second)); refill > idle {
			idle = refill
		}
	}
	return &TenantLimiter{
		buckets: make(map[models.TenantID]*tenantBucket),
		limit:   limit,
		burst:   burst,
		idleTTL: idle,
		now:     time.Now,
	}
}

// Allow reports whether tenantID may make a request now.
func (l *TenantLimiter) Allow(tenantID models.TenantID) bool {
	l.mu.Lock()
	now := l.now()
	l.sweep(now)
	b, ok := l.buckets[tenantID]
	if !ok {
		b = &tenantBucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[tenantID] = b
	}
	b.seen = now
	l.mu.Unlock()
	return b.lim.AllowN(now, 1)
}

// sweep drops idle buckets at most once per idle TTL. Callers hold l.mu.
func (l *TenantLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.idleTTL {
		return
	}
	l.lastSweep = now
	for id, b := range l.buckets {
		if now.Sub(b.seen) >= l.idleTTL {
			delete(l.buckets, id)
		}
	}
}

// Middleware answers 429 once the caller's tenant exceeds its budget. It must
// run after the auth middleware; requests without an identity pass through.
func (l *TenantLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := IdentityFrom(r.Context()); ok && !l.Allow(id.TenantID) {
			RateLimited(w, "tenant request rate exceeded", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}

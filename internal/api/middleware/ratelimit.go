package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ConflictingTheories/meme-citadel-sub000/internal/domain"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/metrics"
	"golang.org/x/time/rate"
)

const maxTrackedKeys = 10000

// IPLimiter is a token bucket per client address.
type IPLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
}

func NewIPLimiter(rps float64, burst int) *IPLimiter {
	return &IPLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(rps),
		burst:    burst,
	}
}

func (l *IPLimiter) get(key string) *rate.Limiter {
	l.mu.RLock()
	limiter, ok := l.limiters[key]
	l.mu.RUnlock()
	if ok {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if limiter, ok = l.limiters[key]; ok {
		return limiter
	}
	if len(l.limiters) >= maxTrackedKeys {
		l.limiters = make(map[string]*rate.Limiter)
	}
	limiter = rate.NewLimiter(l.rate, l.burst)
	l.limiters[key] = limiter
	return limiter
}

func (l *IPLimiter) Allow(key string) bool {
	return l.get(key).Allow()
}

// RateLimit rejects clients that exceed rps requests per second. It relies on
// chi's RealIP having rewritten RemoteAddr.
func RateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	limiter := NewIPLimiter(rps, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(clientAddr(r)) {
				metrics.RateLimited.WithLabelValues("ip", "").Inc()
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded", "RateLimitExceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientAddr(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

// allowance is the hourly and daily budget of one identity at one tier.
type allowance struct {
	mu     sync.Mutex
	hourly *rate.Limiter
	daily  *rate.Limiter
}

func newAllowance(l domain.TierLimits) *allowance {
	return &allowance{
		hourly: rate.NewLimiter(rate.Limit(float64(l.PerHour)/time.Hour.Seconds()), l.PerHour),
		daily:  rate.NewLimiter(rate.Limit(float64(l.PerDay)/(24*time.Hour).Seconds()), l.PerDay),
	}
}

// take consumes one write from both windows, or neither.
func (a *allowance) take(now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.hourly.TokensAt(now) < 1 || a.daily.TokensAt(now) < 1 {
		return false
	}
	a.hourly.AllowN(now, 1)
	a.daily.AllowN(now, 1)
	return true
}

// remaining is the unspent share of both windows, 2 when untouched.
func (a *allowance) remaining(now time.Time) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hourly.TokensAt(now)/float64(a.hourly.Burst()) +
		a.daily.TokensAt(now)/float64(a.daily.Burst())
}

// TierLimiter enforces the per-hour and per-day write allowance of each
// identity's trust tier. A tier change starts a fresh allowance.
type TierLimiter struct {
	mu         sync.Mutex
	allowances map[string]*allowance
	capacity   int
	now        func() time.Time
}

func NewTierLimiter() *TierLimiter {
	return &TierLimiter{
		allowances: make(map[string]*allowance),
		capacity:   maxTrackedKeys,
		now:        time.Now,
	}
}

func (t *TierLimiter) Allow(identity *domain.Identity) bool {
	limits := domain.LimitsForTrust(identity.TrustScore)
	key := identity.PublicID + "|" + string(limits.Tier)
	now := t.now()

	t.mu.Lock()
	a, ok := t.allowances[key]
	if !ok {
		if len(t.allowances) >= t.capacity {
			t.evict(now)
		}
		a = newAllowance(limits)
		t.allowances[key] = a
	}
	t.mu.Unlock()

	return a.take(now)
}

// evict makes room for one allowance. Fully refilled allowances carry no
// state and all go; otherwise the single allowance with the most budget
// left is dropped, so spent budgets are never forgotten first. Caller holds
// t.mu.
func (t *TierLimiter) evict(now time.Time) {
	var (
		victim string
		most   = -1.0
	)
	for key, a := range t.allowances {
		left := a.remaining(now)
		if left >= 2 {
			delete(t.allowances, key)
			continue
		}
		if left > most {
			victim, most = key, left
		}
	}
	if len(t.allowances) >= t.capacity && most >= 0 {
		delete(t.allowances, victim)
	}
}

// Middleware must run after RequireIdentity.
func (t *TierLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := IdentityFromContext(r.Context())
		if identity == nil {
			next.ServeHTTP(w, r)
			return
		}
		if !t.Allow(identity) {
			limits := domain.LimitsForTrust(identity.TrustScore)
			metrics.RateLimited.WithLabelValues("tier", string(limits.Tier)).Inc()
			w.Header().Set("X-RateLimit-Limit-Hour", strconv.Itoa(limits.PerHour))
			w.Header().Set("X-RateLimit-Limit-Day", strconv.Itoa(limits.PerDay))
			writeError(w, http.StatusTooManyRequests, domain.ErrRateLimitExceeded.Error(), "RateLimitExceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

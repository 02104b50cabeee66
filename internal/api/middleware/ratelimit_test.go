package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ConflictingTheories/meme-citadel-sub000/internal/domain"
	"go.uber.org/zap"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitPerIP(t *testing.T) {
	h := RateLimit(1, 2)(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/search?q=x", nil)
		req.Header.Set("X-Real-IP", "10.0.0.1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Fatalf("burst requests should pass, got %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("expected 429 after burst, got %d", codes[2])
	}

	// A different client has its own bucket.
	req := httptest.NewRequest(http.MethodGet, "/v1/search?q=x", nil)
	req.Header.Set("X-Real-IP", "10.0.0.2")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("second client should pass, got %d", rec.Code)
	}
}

func TestTierLimiterAllowance(t *testing.T) {
	tests := []struct {
		name  string
		trust float64
		want  int
	}{
		{"restricted", 10, 2},
		{"limited", 40, 5},
		{"standard", 70, 20},
		{"trusted", 95, 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewTierLimiter()
			now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
			l.now = func() time.Time { return now }

			id := &domain.Identity{PublicID: "cit_" + tt.name, TrustScore: tt.trust}
			allowed := 0
			for i := 0; i < 100; i++ {
				if l.Allow(id) {
					allowed++
				}
			}
			if allowed != tt.want {
				t.Errorf("allowed %d writes in one instant, want %d", allowed, tt.want)
			}
		})
	}
}

func TestTierLimiterEvictionKeepsSpentBudgets(t *testing.T) {
	l := NewTierLimiter()
	l.capacity = 2
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	spent := &domain.Identity{PublicID: "cit_spent", TrustScore: 10}
	for i := 0; i < 2; i++ {
		if !l.Allow(spent) {
			t.Fatalf("write %d denied", i+1)
		}
	}
	if l.Allow(spent) {
		t.Fatal("restricted identity allowed a third write in one instant")
	}

	// Fresh identities push the limiter past capacity many times over.
	for i := 0; i < 50; i++ {
		l.Allow(&domain.Identity{PublicID: fmt.Sprintf("cit_flood_%d", i), TrustScore: 10})
	}
	if l.Allow(spent) {
		t.Error("flooding the limiter reset a spent allowance")
	}
	if n := len(l.allowances); n > 2 {
		t.Errorf("tracked %d allowances, capacity 2", n)
	}

	// Once every window has refilled, nothing is lost by dropping them.
	now = now.Add(25 * time.Hour)
	l.Allow(&domain.Identity{PublicID: "cit_late", TrustScore: 10})
	if n := len(l.allowances); n != 1 {
		t.Errorf("tracked %d allowances after refill sweep, want 1", n)
	}
}

func TestTierLimiterDailyWindow(t *testing.T) {
	l := NewTierLimiter()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	id := &domain.Identity{PublicID: "cit_daily", TrustScore: 10}

	allowed := 0
	// Restricted: 2/hour, 10/day. The hourly window refills every 90
	// minutes, so only the daily budget can hold writes below 24.
	for step := 0; step < 12; step++ {
		for i := 0; i < 2; i++ {
			if l.Allow(id) {
				allowed++
			}
		}
		now = now.Add(90 * time.Minute)
	}
	if allowed < 10 || allowed > 17 {
		t.Errorf("allowed %d writes in 18 hours, want the daily budget (10 plus refill) to bind", allowed)
	}
}

func TestTierLimiterMiddleware(t *testing.T) {
	l := NewTierLimiter()
	h := l.Middleware(okHandler())
	id := &domain.Identity{PublicID: "cit_mw", TrustScore: 10}

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/claims", nil)
		req = req.WithContext(WithIdentity(req.Context(), id))
		last = httptest.NewRecorder()
		h.ServeHTTP(last, req)
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", last.Code)
	}
	if got := last.Header().Get("X-RateLimit-Limit-Hour"); got != "2" {
		t.Errorf("X-RateLimit-Limit-Hour = %q", got)
	}
}

type mapResolver map[string]*domain.Identity

func (m mapResolver) GetIdentity(_ context.Context, publicID string) (*domain.Identity, error) {
	if i, ok := m[publicID]; ok {
		return i, nil
	}
	return nil, domain.ErrIdentityNotFound
}

func TestRequireIdentity(t *testing.T) {
	resolver := mapResolver{"cit_known": {PublicID: "cit_known", TrustScore: 80}}

	var seen *domain.Identity
	h := RequireIdentity(resolver, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"unknown identity", "cit_nobody", http.StatusUnauthorized},
		{"known identity", "cit_known", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/claims", nil)
			if tt.header != "" {
				req.Header.Set(IdentityHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
	if seen == nil || seen.PublicID != "cit_known" {
		t.Errorf("identity not placed in context: %+v", seen)
	}
}

func TestRequestIDPropagation(t *testing.T) {
	var inCtx string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inCtx = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if inCtx != "req-42" || rec.Header().Get(RequestIDHeader) != "req-42" {
		t.Errorf("request id not propagated: ctx=%q header=%q", inCtx, rec.Header().Get(RequestIDHeader))
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("expected a generated request id")
	}
}

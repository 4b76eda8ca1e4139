package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"walkypainty/internal/identity"
	"walkypainty/internal/metrics"
)

func TestMessageLimits(t *testing.T) {
	ml := NewMessageLimits(100, 10, 2)
	assert.True(t, ml.ValidateMessageSize(100))
	assert.False(t, ml.ValidateMessageSize(101))
	assert.Equal(t, int64(400), ml.ReadLimit())

	lim := ml.NewSessionLimiter()
	assert.True(t, lim.Allow())
	assert.True(t, lim.Allow())
	assert.False(t, lim.Allow())

	unlimited := MessageLimits{}
	assert.True(t, unlimited.ValidateMessageSize(1<<20))
	assert.True(t, unlimited.NewSessionLimiter().Allow())
}

func TestIPRateLimit(t *testing.T) {
	iprl := NewIPRateLimit(10, 2)
	now := time.Unix(0, 0)
	iprl.now = func() time.Time { return now }

	assert.True(t, iprl.Allow("1.1.1.1"))
	assert.True(t, iprl.Allow("1.1.1.1"))
	assert.False(t, iprl.Allow("1.1.1.1"))
	assert.True(t, iprl.Allow("2.2.2.2"), "limits are per IP")

	now = now.Add(6 * time.Second)
	assert.True(t, iprl.Allow("1.1.1.1"), "one token refills every six seconds")
}

func TestIPRateLimitCleanup(t *testing.T) {
	iprl := NewIPRateLimit(10, 2)
	now := time.Unix(0, 0)
	iprl.now = func() time.Time { return now }

	iprl.Allow("1.1.1.1")
	now = now.Add(30 * time.Minute)
	iprl.Allow("2.2.2.2")
	now = now.Add(45 * time.Minute)

	assert.Equal(t, 1, iprl.Cleanup())
	assert.Equal(t, 1, iprl.Len())
}

func TestGuestIssuesAndReusesCookie(t *testing.T) {
	var seen []identity.Identity
	h := Guest(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, ok := IdentityFrom(r.Context())
		require.True(t, ok)
		seen = append(seen, ident)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, GuestCookie, cookies[0].Name)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Result().Cookies())

	require.Len(t, seen, 2)
	assert.True(t, seen[0].Same(seen[1]))
	assert.True(t, seen[0].IsGuest())
}

func TestGuestRejectsForgedCookie(t *testing.T) {
	var got identity.Identity
	h := Guest(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = IdentityFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: GuestCookie, Value: "not-a-uuid"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.NotEqual(t, "not-a-uuid", got.ID)
	assert.Len(t, rec.Result().Cookies(), 1)
}

func TestRequestLogger(t *testing.T) {
	m := metrics.New()
	h := RequestLogger(zap.NewNop(), m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/brew", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	count, err := m.Registry().Gather()
	require.NoError(t, err)
	found := false
	for _, mf := range count {
		if mf.GetName() == "walkypainty_http_requests_total" {
			found = true
		}
	}
	assert.True(t, found)
}

package access_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/tutorchat/internal/adapters/ratelimit/memory"
	"github.com/PabloGalante/tutorchat/internal/app/access"
	"github.com/PabloGalante/tutorchat/internal/domain"
)

var allowList = []string{"https://school.example.com", "http://localhost:5500/"}

func TestOriginMatcherExact(t *testing.T) {
	m := access.NewOriginMatcher(allowList, access.MatchExact)

	assert.True(t, m.Allowed(""), "absent origin is permitted")
	assert.True(t, m.Allowed("https://school.example.com"))
	assert.True(t, m.Allowed("http://localhost:5500"), "trailing slash in config is ignored")
	assert.False(t, m.Allowed("https://school.example.com.evil.net"))
	assert.False(t, m.Allowed("https://evil.example.com"))
	assert.False(t, m.Allowed("http://localhost:3000"))
}

func TestOriginMatcherPrefix(t *testing.T) {
	m := access.NewOriginMatcher([]string{"http://localhost"}, access.MatchPrefix)

	assert.True(t, m.Allowed("http://localhost"))
	assert.True(t, m.Allowed("http://localhost:5500"))
	assert.False(t, m.Allowed("http://localhost.evil.net"))
	assert.False(t, m.Allowed("http://localhostile"))
}

func TestParseMatchMode(t *testing.T) {
	mode, err := access.ParseMatchMode("")
	require.NoError(t, err)
	assert.Equal(t, access.MatchExact, mode)

	mode, err = access.ParseMatchMode("PREFIX")
	require.NoError(t, err)
	assert.Equal(t, access.MatchPrefix, mode)

	_, err = access.ParseMatchMode("substring")
	assert.Error(t, err)
}

type brokenCounter struct{}

func (brokenCounter) Increment(context.Context, string, time.Duration, int) (domain.Usage, error) {
	return domain.Usage{}, errors.New("connection refused")
}

func TestLimiterCeiling(t *testing.T) {
	ctx := context.Background()
	l := access.NewLimiter(memory.NewCounter(), 2, time.Minute)

	d := l.Allow(ctx, "caller")
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)
	assert.Equal(t, 2, d.Limit)

	d = l.Allow(ctx, "caller")
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	d = l.Allow(ctx, "caller")
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
}

func TestLimiterFailsOpen(t *testing.T) {
	l := access.NewLimiter(brokenCounter{}, 2, time.Minute)
	assert.True(t, l.Allow(context.Background(), "caller").Allowed)
}

func TestPolicyRefusesForeignOriginRegardlessOfPayload(t *testing.T) {
	p := access.NewPolicy(
		access.NewOriginMatcher(allowList, access.MatchExact),
		access.NewLimiter(memory.NewCounter(), 10, time.Minute),
		false,
	)

	for _, path := range []string{"/api/chat", "/api/health"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set("Origin", "https://evil.example.com")

		_, err := p.Check(req)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrOriginDenied)
		assert.Equal(t, domain.MsgOrigin, domain.PublicMessage(err))
	}
}

func TestPolicyRateLimitsPerCaller(t *testing.T) {
	p := access.NewPolicy(nil, access.NewLimiter(memory.NewCounter(), 1, time.Minute), false)

	first := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	first.RemoteAddr = "10.0.0.1:1234"
	_, err := p.Check(first)
	require.NoError(t, err)

	again := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	again.RemoteAddr = "10.0.0.1:9999"
	d, err := p.Check(again)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.False(t, d.Allowed)

	other := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	other.RemoteAddr = "10.0.0.2:1234"
	_, err = p.Check(other)
	assert.NoError(t, err)
}

func TestCallerKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:4000"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	assert.Equal(t, "192.0.2.7", access.NewPolicy(nil, nil, false).CallerKey(req))
	assert.Equal(t, "203.0.113.9", access.NewPolicy(nil, nil, true).CallerKey(req))
}

// Package access implements the relay's access policy: an origin allow-list
// followed by a per-caller request ceiling.
package access

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/PabloGalante/tutorchat/internal/domain"
	"github.com/PabloGalante/tutorchat/internal/observability"
)

type Policy struct {
	origins    *OriginMatcher
	limiter    *Limiter
	trustProxy bool
}

// NewPolicy combines both checks. With trustProxy set, the caller identity is
// the first X-Forwarded-For address instead of the socket peer.
func NewPolicy(origins *OriginMatcher, limiter *Limiter, trustProxy bool) *Policy {
	return &Policy{origins: origins, limiter: limiter, trustProxy: trustProxy}
}

// CheckOrigin refuses an origin outside the allow-list.
func (p *Policy) CheckOrigin(ctx context.Context, origin string) error {
	if p.origins == nil || p.origins.Allowed(origin) {
		return nil
	}
	err := domain.OriginDenied(origin)
	observability.LoggerFromContext(ctx).Warn("origin refused", "origin", origin, "error", err)
	return err
}

// CheckRate counts the request against the caller's window.
func (p *Policy) CheckRate(ctx context.Context, caller string) (Decision, error) {
	if p.limiter == nil {
		return Decision{Allowed: true}, nil
	}
	d := p.limiter.Allow(ctx, caller)
	if !d.Allowed {
		observability.LoggerFromContext(ctx).Warn("rate limit exceeded", "caller", caller, "limit", d.Limit)
		return d, domain.RateLimited("Please wait a moment before sending more messages.")
	}
	return d, nil
}

// Check runs the origin check, then the rate check.
func (p *Policy) Check(r *http.Request) (Decision, error) {
	ctx := r.Context()
	if err := p.CheckOrigin(ctx, r.Header.Get("Origin")); err != nil {
		return Decision{}, err
	}
	return p.CheckRate(ctx, p.CallerKey(r))
}

// CallerKey identifies the caller for rate limiting.
func (p *Policy) CallerKey(r *http.Request) string {
	if p.trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

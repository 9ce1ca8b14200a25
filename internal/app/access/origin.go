package access

import (
	"fmt"
	"strings"
)

// MatchMode selects how a request origin is compared against the allow-list.
type MatchMode string

const (
	// MatchExact requires the origin to equal an entry (trailing slash ignored).
	MatchExact MatchMode = "exact"
	// MatchPrefix accepts an origin that extends an entry at a ':' or '/' boundary,
	// e.g. "http://localhost" admits "http://localhost:5500".
	MatchPrefix MatchMode = "prefix"
)

func ParseMatchMode(s string) (MatchMode, error) {
	switch MatchMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", MatchExact:
		return MatchExact, nil
	case MatchPrefix:
		return MatchPrefix, nil
	default:
		return "", fmt.Errorf("unknown origin match mode %q", s)
	}
}

type OriginMatcher struct {
	mode    MatchMode
	allowed []string
}

func NewOriginMatcher(allowed []string, mode MatchMode) *OriginMatcher {
	m := &OriginMatcher{mode: mode}
	if m.mode == "" {
		m.mode = MatchExact
	}
	for _, a := range allowed {
		if a = normalizeOrigin(a); a != "" {
			m.allowed = append(m.allowed, a)
		}
	}
	return m
}

// Allowed reports whether origin may call the relay. An absent origin
// (non-browser caller) is allowed.
func (m *OriginMatcher) Allowed(origin string) bool {
	origin = normalizeOrigin(origin)
	if origin == "" {
		return true
	}
	for _, a := range m.allowed {
		if origin == a {
			return true
		}
		if m.mode == MatchPrefix && strings.HasPrefix(origin, a) {
			switch origin[len(a)] {
			case ':', '/':
				return true
			}
		}
	}
	return false
}

func normalizeOrigin(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), "/")
}

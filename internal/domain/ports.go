package domain

import (
	"context"
	"time"
)

// ProviderRole is the role of a turn in the sequence handed to the provider.
type ProviderRole string

const (
	ProviderUser  ProviderRole = "user"
	ProviderModel ProviderRole = "model"
)

// ProviderTurn is one entry of the exact sequence sent to the provider.
// A turn may carry more than one text part.
type ProviderTurn struct {
	Role  ProviderRole
	Parts []string
}

// LLMClient defines how the relay talks to the generative-language provider.
// An empty string with a nil error means the provider produced no candidate text.
type LLMClient interface {
	Generate(ctx context.Context, turns []ProviderTurn) (string, error)
}

// KVStore is the external store that keeps a session history between visits.
// Get returns (nil, nil) when the key does not exist.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Clear(ctx context.Context, key string) error
}

// Usage is the state of one caller's window after a counter increment.
type Usage struct {
	Count   int64
	Allowed bool
	ResetAt time.Time
}

// Counter is a shared, atomically updated request counter keyed by caller.
// Increment only counts the request when the current count is below ceiling,
// so refused requests do not push the count further.
type Counter interface {
	Increment(ctx context.Context, key string, window time.Duration, ceiling int) (Usage, error)
}

// Relay is the client-side view of the relay endpoint.
type Relay interface {
	Chat(ctx context.Context, req ChatRequest) (ChatReply, error)
}

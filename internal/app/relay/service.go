// Package relay advances a conversation by one turn: it validates the
// request, builds the provider payload, calls the provider and maps the
// outcome onto the client-facing taxonomy. It keeps no state between calls.
package relay

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PabloGalante/tutorchat/internal/domain"
	"github.com/PabloGalante/tutorchat/internal/observability"
)

const (
	DefaultMaxMessageLength = 2000
	DefaultHistoryWindow    = 10
)

type Options struct {
	// MaxMessageLength is counted in characters (runes).
	MaxMessageLength int
	// HistoryWindow caps how many incoming history turns are forwarded.
	HistoryWindow int
	// Model is reported by the health endpoint.
	Model string
}

type Service struct {
	llm     domain.LLMClient
	persona *Persona
	maxLen  int
	window  int
	model   string
	now     func() time.Time
}

func NewService(llm domain.LLMClient, persona *Persona, opts Options) *Service {
	s := &Service{
		llm:     llm,
		persona: persona,
		maxLen:  opts.MaxMessageLength,
		window:  opts.HistoryWindow,
		model:   opts.Model,
		now:     time.Now,
	}
	if s.maxLen <= 0 {
		s.maxLen = DefaultMaxMessageLength
	}
	if s.window <= 0 {
		s.window = DefaultHistoryWindow
	}
	return s
}

func (s *Service) Model() string { return s.model }

func (s *Service) MaxMessageLength() int { return s.maxLen }

// Validate checks the message before any provider work.
func (s *Service) Validate(req domain.ChatRequest) error {
	if strings.TrimSpace(req.Message) == "" {
		return domain.Validation("Message is required")
	}
	if utf8.RuneCountInString(req.Message) > s.maxLen {
		return domain.Validation(fmt.Sprintf("Please keep your message under %d characters", s.maxLen))
	}
	return nil
}

// Chat runs one turn. Errors are *domain.Error values whose Message is safe
// to return to the caller.
func (s *Service) Chat(ctx context.Context, req domain.ChatRequest) (domain.ChatReply, error) {
	if err := s.Validate(req); err != nil {
		return domain.ChatReply{}, err
	}

	log := observability.LoggerFromContext(ctx).With(
		"history_len", len(req.History),
		"message_len", utf8.RuneCountInString(req.Message),
	)

	turns := BuildTurns(s.persona, req.Message, lastTurns(req.History, s.window), req.Context)

	start := s.now()
	text, err := s.llm.Generate(ctx, turns)
	elapsed := s.now().Sub(start)
	if err != nil {
		mapped := mapProviderError(err)
		log.Error("provider call failed",
			"error", err,
			"kind", mapped.Kind,
			"elapsed_ms", elapsed.Milliseconds())
		return domain.ChatReply{}, mapped
	}

	if strings.TrimSpace(text) == "" {
		log.Warn("provider returned no candidate text, using fallback")
		text = s.persona.FallbackReply
	}

	log.Info("chat turn completed", "elapsed_ms", elapsed.Milliseconds(), "turns", len(turns))
	return domain.ChatReply{Reply: text}, nil
}

// mapProviderError keeps the provider's rate-limit signal and turns
// everything else into a generic upstream failure.
func mapProviderError(err error) *domain.Error {
	if domain.KindOf(err) == domain.KindRateLimited {
		return domain.UpstreamRateLimited(err)
	}
	return domain.Upstream(err)
}

func lastTurns(history []domain.Turn, k int) []domain.Turn {
	if len(history) > k {
		return history[len(history)-k:]
	}
	return history
}

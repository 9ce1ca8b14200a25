// Package window derives the bounded context window sent upstream with each turn.
package window

import "github.com/PabloGalante/tutorchat/internal/domain"

// DefaultSize is the number of most recent messages sent with a request.
const DefaultSize = 10

// Build returns the last min(k, len(history)) messages in their original
// order, re-tagged with provider-neutral roles. history is never modified.
// A non-positive k yields an empty window.
func Build(history []domain.Message, k int) []domain.Turn {
	if k <= 0 || len(history) == 0 {
		return []domain.Turn{}
	}
	if k > len(history) {
		k = len(history)
	}

	out := make([]domain.Turn, 0, k)
	for _, m := range history[len(history)-k:] {
		out = append(out, domain.Turn{
			Role:    turnRole(m.Role),
			Content: m.Content,
		})
	}
	return out
}

func turnRole(r domain.Role) domain.TurnRole {
	if r == domain.RoleBot {
		return domain.TurnAssistant
	}
	return domain.TurnUser
}

package llm

import (
	"context"
	"fmt"

	"github.com/PabloGalante/tutorchat/internal/domain"
)

// MockLLM answers locally without calling a provider. Useful for dev.
type MockLLM struct{}

func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

func (m *MockLLM) Generate(ctx context.Context, turns []domain.ProviderTurn) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(turns) == 0 {
		return "", nil
	}
	last := turns[len(turns)-1]
	if len(last.Parts) == 0 {
		return "", nil
	}
	return fmt.Sprintf("You said %q. Have a look at Section 05: Guide to Prompting for more.", last.Parts[0]), nil
}

var _ domain.LLMClient = (*MockLLM)(nil)

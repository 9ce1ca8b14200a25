package window_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/tutorchat/internal/app/window"
	"github.com/PabloGalante/tutorchat/internal/domain"
)

func makeHistory(n int) []domain.Message {
	base := time.Date(2025, 12, 1, 10, 0, 0, 0, time.UTC)
	out := make([]domain.Message, 0, n)
	for i := 0; i < n; i++ {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleBot
		}
		out = append(out, domain.Message{
			Role:      role,
			Content:   fmt.Sprintf("m%d", i),
			Timestamp: base.Add(time.Duration(i) * time.Second),
		})
	}
	return out
}

func TestBuildEmptyHistory(t *testing.T) {
	got := window.Build(nil, 10)
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestBuildTakesLastKInOrder(t *testing.T) {
	history := makeHistory(15)

	got := window.Build(history, 10)

	require.Len(t, got, 10)
	for i, turn := range got {
		assert.Equal(t, fmt.Sprintf("m%d", i+5), turn.Content)
	}
}

func TestBuildShorterThanK(t *testing.T) {
	history := makeHistory(3)

	got := window.Build(history, 10)

	require.Len(t, got, 3)
	assert.Equal(t, "m0", got[0].Content)
	assert.Equal(t, "m2", got[2].Content)
}

func TestBuildMapsRoles(t *testing.T) {
	history := makeHistory(2)

	got := window.Build(history, 10)

	assert.Equal(t, domain.TurnUser, got[0].Role)
	assert.Equal(t, domain.TurnAssistant, got[1].Role)
}

func TestBuildIsDeterministicAndDoesNotMutate(t *testing.T) {
	history := makeHistory(12)
	snapshot := append([]domain.Message(nil), history...)

	first := window.Build(history, 4)
	second := window.Build(history, 4)

	assert.Equal(t, first, second)
	assert.Equal(t, snapshot, history)
}

func TestBuildNonPositiveK(t *testing.T) {
	history := makeHistory(5)
	assert.Empty(t, window.Build(history, 0))
	assert.Empty(t, window.Build(history, -3))
}

func TestBuildLengthProperty(t *testing.T) {
	for n := 0; n <= 20; n++ {
		for k := 0; k <= 12; k++ {
			got := window.Build(makeHistory(n), k)
			assert.Len(t, got, min(n, k), "n=%d k=%d", n, k)
		}
	}
}

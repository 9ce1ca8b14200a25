package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	memstore "github.com/PabloGalante/tutorchat/internal/adapters/storage/memory"
	"github.com/PabloGalante/tutorchat/internal/app/session"
	"github.com/PabloGalante/tutorchat/internal/domain"
)

type echoRelay struct{}

func (echoRelay) Chat(_ context.Context, req domain.ChatRequest) (domain.ChatReply, error) {
	return domain.ChatReply{Reply: "echo: " + req.Message}, nil
}

func TestReplSendsAndResets(t *testing.T) {
	ctx := context.Background()
	var out bytes.Buffer

	client := session.New(ctx, session.Options{
		Store:     memstore.NewStore(),
		Relay:     echoRelay{},
		Observers: []session.Observer{render(&out)},
	})

	in := strings.NewReader("Hi\n\n/reset\n/quit\nignored\n")
	err := repl(ctx, client, in, &out)

	assert.NoError(t, err)
	assert.Contains(t, out.String(), "Thunda is typing...")
	assert.Contains(t, out.String(), "Thunda: echo: Hi")
	assert.Contains(t, out.String(), "-- conversation cleared --")
	assert.NotContains(t, out.String(), "echo: ignored")

	// Reset re-seeds the welcome message only.
	history := client.History()
	if assert.Len(t, history, 1) {
		assert.Equal(t, domain.RoleBot, history[0].Role)
	}
}

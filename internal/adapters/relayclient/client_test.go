package relayclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/tutorchat/internal/adapters/relayclient"
	"github.com/PabloGalante/tutorchat/internal/domain"
)

func TestChatPostsRequestAndDecodesReply(t *testing.T) {
	var got domain.ChatRequest
	var origin string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		origin = r.Header.Get("Origin")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"reply":"Hello!"}`))
	}))
	defer srv.Close()

	c, err := relayclient.New(relayclient.Options{BaseURL: srv.URL + "/", Origin: "https://courses.example.com"})
	require.NoError(t, err)

	reply, err := c.Chat(context.Background(), domain.ChatRequest{
		Message: "Hi",
		Context: domain.ChatContext{UserName: "Ada"},
	})

	require.NoError(t, err)
	assert.Equal(t, "Hello!", reply.Reply)
	assert.Equal(t, "Hi", got.Message)
	assert.NotNil(t, got.History)
	assert.Equal(t, "Ada", got.Context.UserName)
	assert.Equal(t, "https://courses.example.com", origin)
}

func TestChatMapsErrorEnvelope(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   error
		msg    string
	}{
		{http.StatusTooManyRequests, `{"error":"rate_limited","message":"slow down"}`, domain.ErrRateLimited, "slow down"},
		{http.StatusBadRequest, `{"error":"validation","message":"Message is required"}`, domain.ErrValidation, "Message is required"},
		{http.StatusForbidden, `not json`, domain.ErrOriginDenied, domain.MsgUpstream},
		{http.StatusBadGateway, ``, domain.ErrUpstream, domain.MsgUpstream},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(tc.body))
		}))

		c, err := relayclient.New(relayclient.Options{BaseURL: srv.URL})
		require.NoError(t, err)

		_, err = c.Chat(context.Background(), domain.ChatRequest{Message: "Hi"})
		assert.ErrorIs(t, err, tc.want, "status %d", tc.status)
		assert.Equal(t, tc.msg, domain.PublicMessage(err))

		srv.Close()
	}
}

func TestChatTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, err := relayclient.New(relayclient.Options{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	_, err = c.Chat(context.Background(), domain.ChatRequest{Message: "Hi"})

	assert.ErrorIs(t, err, domain.ErrUpstream)
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := relayclient.New(relayclient.Options{})
	assert.Error(t, err)
}

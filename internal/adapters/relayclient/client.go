// Package relayclient calls a remote relay over HTTP. It is the transport the
// Session Client uses when it runs outside the relay process.
package relayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PabloGalante/tutorchat/internal/domain"
)

const (
	DefaultTimeout = 30 * time.Second
	chatPath       = "/api/chat"

	// maxResponseBytes bounds how much of a reply body is read.
	maxResponseBytes = 1 << 20
)

type Options struct {
	// BaseURL is the relay root, e.g. https://relay.example.com.
	BaseURL string
	// Origin is sent as the Origin header so the relay's allow-list applies.
	Origin     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

type Client struct {
	endpoint string
	origin   string
	http     *http.Client
}

func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("relayclient: base url is required")
	}

	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		endpoint: base + chatPath,
		origin:   opts.Origin,
		http:     hc,
	}, nil
}

// envelope is the relay's error body.
type envelope struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Chat posts one turn and returns the relay's reply. Non-2xx answers are
// returned as *domain.Error carrying the relay's kind and message.
func (c *Client) Chat(ctx context.Context, req domain.ChatRequest) (domain.ChatReply, error) {
	if req.History == nil {
		req.History = []domain.Turn{}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return domain.ChatReply{}, fmt.Errorf("encode chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.ChatReply{}, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.origin != "" {
		httpReq.Header.Set("Origin", c.origin)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return domain.ChatReply{}, domain.Upstream(fmt.Errorf("post %s: %w", c.endpoint, err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.ChatReply{}, domain.Upstream(fmt.Errorf("read reply: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.ChatReply{}, errorFromResponse(resp.StatusCode, raw)
	}

	var reply domain.ChatReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return domain.ChatReply{}, domain.Upstream(fmt.Errorf("decode reply: %w", err))
	}
	return reply, nil
}

func errorFromResponse(status int, raw []byte) error {
	var env envelope
	_ = json.Unmarshal(raw, &env)

	kind := domain.ErrorKind(env.Error)
	switch kind {
	case domain.KindValidation, domain.KindOriginDenied, domain.KindRateLimited, domain.KindUpstream:
	default:
		kind = kindForStatus(status)
	}

	msg := env.Message
	if msg == "" {
		msg = domain.MsgUpstream
	}
	return &domain.Error{
		Kind:    kind,
		Message: msg,
		Err:     fmt.Errorf("relay answered %d", status),
	}
}

func kindForStatus(status int) domain.ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return domain.KindRateLimited
	case status == http.StatusForbidden:
		return domain.KindOriginDenied
	case status >= 400 && status < 500:
		return domain.KindValidation
	default:
		return domain.KindUpstream
	}
}

var _ domain.Relay = (*Client)(nil)

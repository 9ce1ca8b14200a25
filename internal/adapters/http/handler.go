package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PabloGalante/tutorchat/internal/app/access"
	"github.com/PabloGalante/tutorchat/internal/app/relay"
	"github.com/PabloGalante/tutorchat/internal/domain"
	"github.com/PabloGalante/tutorchat/internal/observability"
)

const (
	DefaultBodyLimit   = 10 << 10
	DefaultServiceName = "Thunda Chatbot API"

	// providerRetryAfter is advertised when the provider itself refuses for quota.
	providerRetryAfter = 60 * time.Second
)

type Options struct {
	// Policy guards every /api/ route. Nil allows everything.
	Policy *access.Policy
	// BodyLimit caps the JSON body of POST /api/chat in bytes.
	BodyLimit int64
	// ServiceName is reported by the health route.
	ServiceName string
}

type Server struct {
	svc       *relay.Service
	policy    *access.Policy
	bodyLimit int64
	service   string
	now       func() time.Time
}

func NewServer(svc *relay.Service, opts Options) http.Handler {
	s := &Server{
		svc:       svc,
		policy:    opts.Policy,
		bodyLimit: opts.BodyLimit,
		service:   opts.ServiceName,
		now:       time.Now,
	}
	if s.policy == nil {
		s.policy = access.NewPolicy(nil, nil, false)
	}
	if s.bodyLimit <= 0 {
		s.bodyLimit = DefaultBodyLimit
	}
	if s.service == "" {
		s.service = DefaultServiceName
	}

	api := http.NewServeMux()
	// /api/health → liveness and configured model (GET)
	api.HandleFunc("/api/health", s.handleHealth)
	api.HandleFunc("/", notFound)

	mux := http.NewServeMux()
	// /api/chat → one relay turn (POST). Counts quota itself, after validation.
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.Handle("/api/", s.withRateLimit(api))
	mux.HandleFunc("/", notFound)

	return chainMiddlewares(mux,
		s.withCORS,
		withSecurityHeaders,
		withLogging,
		withRequestID,
		withRecover,
	)
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

// chatRequest keeps message raw so a missing or non-string value is reported
// as a validation failure instead of a decode failure.
type chatRequest struct {
	Message json.RawMessage    `json:"message"`
	History []domain.Turn      `json:"history"`
	Context domain.ChatContext `json:"context"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
	Model     string `json:"model"`
	Service   string `json:"service"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ─────────────────────────────────────────────
// Concrete handlers
// ─────────────────────────────────────────────

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.bodyLimit)

	var body chatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{
				Error:   string(domain.KindValidation),
				Message: "Request body too large",
			})
			return
		}
		writeError(w, r, domain.Validation("Invalid JSON body"))
		return
	}

	msg, err := decodeMessage(body.Message)
	if err != nil {
		writeError(w, r, err)
		return
	}

	req := domain.ChatRequest{
		Message: msg,
		History: body.History,
		Context: body.Context,
	}
	// Invalid requests are refused before they touch the caller's quota.
	if err := s.svc.Validate(req); err != nil {
		writeError(w, r, err)
		return
	}
	if !s.allowRate(w, r) {
		return
	}

	reply, err := s.svc.Chat(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: s.now().UnixMilli(),
		Model:     s.svc.Model(),
		Service:   s.service,
	})
}

func decodeMessage(raw json.RawMessage) (string, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return "", domain.Validation("Message is required")
	}
	var msg string
	if err := json.Unmarshal(raw, &msg); err != nil {
		return "", domain.Validation("Message must be a string")
	}
	return msg, nil
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindOriginDenied:
		return http.StatusForbidden
	case domain.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as the {error, message} envelope. Only the
// caller-safe message leaves the process.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	status := statusFor(kind)

	if status == http.StatusTooManyRequests && w.Header().Get("Retry-After") == "" {
		w.Header().Set("Retry-After", strconv.Itoa(int(providerRetryAfter.Seconds())))
	}
	if status == http.StatusInternalServerError {
		observability.LoggerFromContext(r.Context()).Debug("request failed",
			"path", r.URL.Path, "kind", kind)
	}

	writeJSON(w, status, errorResponse{
		Error:   string(kind),
		Message: domain.PublicMessage(err),
	})
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, errorResponse{
		Error:   "not_found",
		Message: "Not found",
	})
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{
		Error:   "method_not_allowed",
		Message: "method not allowed",
	})
}

package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/PabloGalante/tutorchat/internal/domain"
)

const (
	BackendGemini = "gemini"
	BackendVertex = "vertex"

	DefaultModel   = "gemini-1.5-pro"
	DefaultTimeout = 30 * time.Second
)

// GenerationParams are fixed per process.
type GenerationParams struct {
	Temperature     float32
	TopK            float32
	TopP            float32
	MaxOutputTokens int32
}

func DefaultGenerationParams() GenerationParams {
	return GenerationParams{
		Temperature:     0.7,
		TopK:            40,
		TopP:            0.95,
		MaxOutputTokens: 1024,
	}
}

type GeminiConfig struct {
	Backend string // "gemini" (API key) or "vertex"

	APIKey   string
	Project  string
	Location string

	Model   string
	Params  GenerationParams
	Timeout time.Duration
}

type GeminiClient struct {
	client  *genai.Client
	model   string
	config  *genai.GenerateContentConfig
	timeout time.Duration
}

// NewGeminiClient creates an LLMClient backed by the Gemini API, either with
// an API key or through Vertex AI.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	cc := &genai.ClientConfig{}
	switch cfg.Backend {
	case "", BackendGemini:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("gemini api key is required")
		}
		cc.APIKey = cfg.APIKey
		cc.Backend = genai.BackendGeminiAPI
	case BackendVertex:
		if cfg.Project == "" || cfg.Location == "" {
			return nil, fmt.Errorf("vertex project and location are required")
		}
		cc.Project = cfg.Project
		cc.Location = cfg.Location
		cc.Backend = genai.BackendVertexAI
	default:
		return nil, fmt.Errorf("unknown gemini backend %q", cfg.Backend)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &GeminiClient{
		client:  client,
		model:   model,
		config:  generateConfig(cfg.Params),
		timeout: timeout,
	}, nil
}

func generateConfig(p GenerationParams) *genai.GenerateContentConfig {
	block := genai.HarmBlockThresholdBlockMediumAndAbove
	return &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(p.Temperature),
		TopK:            genai.Ptr(p.TopK),
		TopP:            genai.Ptr(p.TopP),
		MaxOutputTokens: p.MaxOutputTokens,
		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHarassment, Threshold: block},
			{Category: genai.HarmCategoryHateSpeech, Threshold: block},
			{Category: genai.HarmCategorySexuallyExplicit, Threshold: block},
			{Category: genai.HarmCategoryDangerousContent, Threshold: block},
		},
	}
}

func (g *GeminiClient) Model() string { return g.model }

// Generate implements domain.LLMClient. It returns the first candidate's
// text, or "" when the provider produced none.
func (g *GeminiClient) Generate(ctx context.Context, turns []domain.ProviderTurn) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	res, err := g.client.Models.GenerateContent(ctx, g.model, toContents(turns), g.config)
	if err != nil {
		return "", classify(err)
	}
	return firstCandidateText(res), nil
}

func toContents(turns []domain.ProviderTurn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		role := genai.Role(genai.RoleUser)
		if t.Role == domain.ProviderModel {
			role = genai.Role(genai.RoleModel)
		}
		parts := make([]*genai.Part, 0, len(t.Parts))
		for _, p := range t.Parts {
			parts = append(parts, genai.NewPartFromText(p))
		}
		contents = append(contents, genai.NewContentFromParts(parts, role))
	}
	return contents
}

func firstCandidateText(res *genai.GenerateContentResponse) string {
	if res == nil || len(res.Candidates) == 0 {
		return ""
	}
	c := res.Candidates[0]
	if c == nil || c.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range c.Content.Parts {
		if p == nil || p.Thought {
			continue
		}
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// classify maps provider failures onto the relay's taxonomy. The original
// error is kept for server-side logs.
func classify(err error) error {
	if isQuotaError(err) {
		return domain.UpstreamRateLimited(fmt.Errorf("gemini generate content: %w", err))
	}
	return domain.Upstream(fmt.Errorf("gemini generate content: %w", err))
}

func isQuotaError(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED"
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code == http.StatusTooManyRequests || apiErrPtr.Status == "RESOURCE_EXHAUSTED"
	}
	return false
}

var _ domain.LLMClient = (*GeminiClient)(nil)

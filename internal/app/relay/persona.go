package relay

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

//go:embed persona.yaml
var defaultPersona []byte

// maxUserNameRunes caps the display name substituted into the instructions.
const maxUserNameRunes = 80

// Persona is the static instruction preamble. It is loaded once at startup
// and never built from request data beyond the single name placeholder.
type Persona struct {
	Version           string `yaml:"version"`
	BotName           string `yaml:"bot_name"`
	Placeholder       string `yaml:"placeholder"`
	DefaultUserName   string `yaml:"default_user_name"`
	DefaultCourseName string `yaml:"default_course_name"`
	Instructions      string `yaml:"instructions"`
	Acknowledgement   string `yaml:"acknowledgement"`
	FallbackReply     string `yaml:"fallback_reply"`
}

// LoadPersona reads a persona file. An empty path returns the embedded default.
func LoadPersona(path string) (*Persona, error) {
	raw := defaultPersona
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read persona: %w", err)
		}
		raw = b
	}
	return ParsePersona(raw)
}

func ParsePersona(raw []byte) (*Persona, error) {
	var p Persona
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode persona: %w", err)
	}

	if p.Placeholder == "" {
		p.Placeholder = "{userName}"
	}
	if p.DefaultUserName == "" {
		p.DefaultUserName = "Student"
	}
	if p.FallbackReply == "" {
		p.FallbackReply = "Sorry, I couldn't generate a response. Please try again."
	}

	if strings.TrimSpace(p.Instructions) == "" {
		return nil, fmt.Errorf("persona: instructions are required")
	}
	if strings.TrimSpace(p.Acknowledgement) == "" {
		return nil, fmt.Errorf("persona: acknowledgement is required")
	}
	if n := strings.Count(p.Instructions, p.Placeholder); n != 1 {
		return nil, fmt.Errorf("persona: placeholder %q must appear exactly once, found %d", p.Placeholder, n)
	}
	return &p, nil
}

// Render substitutes the display name into the instructions.
func (p *Persona) Render(userName string) string {
	return strings.Replace(p.Instructions, p.Placeholder, p.displayName(userName), 1)
}

// displayName folds whitespace so the name cannot open new lines in the
// instructions, and caps its length.
func (p *Persona) displayName(userName string) string {
	name := strings.Join(strings.Fields(userName), " ")
	if name == "" {
		return p.DefaultUserName
	}
	if utf8.RuneCountInString(name) > maxUserNameRunes {
		name = string([]rune(name)[:maxUserNameRunes])
	}
	return name
}

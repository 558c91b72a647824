package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/gridwright/gridwright/pkg/entity"
	"github.com/gridwright/gridwright/pkg/validate"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.5-flash"

// defaultRequestsPerMinute bounds outbound model calls; free-tier Gemini
// keys throttle hard beyond this.
const defaultRequestsPerMinute = 10

// Gemini is a Producer backed by the Gemini API.
type Gemini struct {
	client  *genai.Client
	model   string
	limiter *rate.Limiter
}

// GeminiConfig configures a Gemini producer.
type GeminiConfig struct {
	// APIKey is required.
	APIKey string

	// Model defaults to DefaultModel.
	Model string

	// RequestsPerMinute caps outbound calls. Defaults to a conservative
	// free-tier rate; <= 0 uses the default.
	RequestsPerMinute int
}

// NewGemini creates a Gemini-backed suggestion producer.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = defaultRequestsPerMinute
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &Gemini{
		client:  client,
		model:   cfg.Model,
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1),
	}, nil
}

// ModifyTable sends the instruction and full table to the model and
// decodes the strict-JSON response into a TableChange.
func (g *Gemini) ModifyTable(ctx context.Context, kind entity.Kind, instruction string, rows []entity.Row) (*TableChange, error) {
	prompt, err := modifyPrompt(kind, instruction, rows)
	if err != nil {
		return nil, err
	}

	text, err := g.generate(ctx, prompt, &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.2),
	})
	if err != nil {
		return nil, err
	}
	if text == "" {
		return &TableChange{Message: "No changes returned.", Changes: map[int]map[string]any{}}, nil
	}

	return decodeTableChange(text)
}

// FixAll sends every errored row (with its error messages) to the model
// and decodes the strict-JSON correction map.
func (g *Gemini) FixAll(ctx context.Context, datasets map[entity.Kind][]entity.Row, errs validate.Errors) (Fixes, error) {
	prompt, hasWork, err := fixAllPrompt(datasets, errs)
	if err != nil {
		return nil, err
	}
	if !hasWork {
		return Fixes{}, nil
	}

	text, err := g.generate(ctx, prompt, &genai.GenerateContentConfig{
		ThinkingConfig: &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr[int32](0),
		},
	})
	if err != nil {
		return nil, err
	}
	if text == "" {
		return Fixes{}, nil
	}

	return decodeFixes(text)
}

// generate performs one rate-limited model call and returns the
// response text.
func (g *Gemini) generate(ctx context.Context, prompt string, cfg *genai.GenerateContentConfig) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}

	return strings.TrimSpace(resp.Text()), nil
}

// stripCodeFence removes a surrounding ```json / ``` fence the model
// sometimes adds despite instructions.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// decodeTableChange parses a strict-JSON modify response.
func decodeTableChange(text string) (*TableChange, error) {
	var raw struct {
		Message string                    `json:"message"`
		Changes map[string]map[string]any `json:"changes"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &raw); err != nil {
		return nil, fmt.Errorf("unexpected model response: %w", err)
	}

	changes, err := rowKeyedChanges(raw.Changes)
	if err != nil {
		return nil, err
	}
	return &TableChange{Message: raw.Message, Changes: changes}, nil
}

// decodeFixes parses a strict-JSON fix-all response.
func decodeFixes(text string) (Fixes, error) {
	var raw map[string]map[string]map[string]any
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &raw); err != nil {
		return nil, fmt.Errorf("unexpected model response: %w", err)
	}

	fixes := Fixes{}
	for name, rows := range raw {
		kind, err := entity.ParseKind(name)
		if err != nil {
			// Hallucinated entity names are dropped, not fatal.
			continue
		}
		converted, err := rowKeyedChanges(rows)
		if err != nil {
			return nil, err
		}
		if len(converted) > 0 {
			fixes[kind] = converted
		}
	}
	return fixes, nil
}

// rowKeyedChanges converts JSON's string row keys to ints.
func rowKeyedChanges(in map[string]map[string]any) (map[int]map[string]any, error) {
	out := make(map[int]map[string]any, len(in))
	for key, fields := range in {
		index, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("model returned non-numeric row key %q", key)
		}
		out[index] = fields
	}
	return out, nil
}

// Compile-time check.
var _ Producer = (*Gemini)(nil)

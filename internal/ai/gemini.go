package ai

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-1.5-flash"

// contentGenerator is the slice of *genai.Models the provider needs.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type GeminiProvider struct {
	models contentGenerator
	Model  string
	Config *genai.GenerateContentConfig
}

// DefaultGenerationConfig matches the sampling used for persona replies.
func DefaultGenerationConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0.7),
		TopP:            genai.Ptr[float32](0.8),
		TopK:            genai.Ptr[float32](40),
		MaxOutputTokens: 1024,
	}
}

func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini: api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return newGeminiProvider(client.Models, model), nil
}

func newGeminiProvider(models contentGenerator, model string) *GeminiProvider {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiProvider{models: models, Model: model, Config: DefaultGenerationConfig()}
}

// Contents maps messages onto Gemini's native user/model roles.
func Contents(messages []Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		var role genai.Role = genai.RoleUser
		if m.Role == RoleAssistant || m.Role == "model" {
			role = genai.RoleModel
		}
		out = append(out, genai.NewContentFromText(m.Content, role))
	}
	return out
}

func (p *GeminiProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	if p.models == nil {
		return "", errors.New("gemini: client is nil")
	}
	if len(messages) == 0 {
		return "", errors.New("gemini: no messages")
	}

	res, err := p.models.GenerateContent(ctx, p.Model, Contents(messages), p.Config)
	if err != nil {
		return "", err
	}
	return ResponseText(res)
}

// ResponseText returns the trimmed text of the first candidate. A blocked or
// empty candidate yields ErrEmptyResponse.
func ResponseText(res *genai.GenerateContentResponse) (string, error) {
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}
	var b strings.Builder
	for _, part := range res.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

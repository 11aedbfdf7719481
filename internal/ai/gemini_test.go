package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeModels struct {
	gotModel    string
	gotContents []*genai.Content
	res         *genai.GenerateContentResponse
	err         error
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	_ = ctx
	_ = config
	f.gotModel = model
	f.gotContents = contents
	return f.res, f.err
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	c := &genai.Content{Role: genai.RoleModel}
	for _, p := range parts {
		c.Parts = append(c.Parts, &genai.Part{Text: p})
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: c}}}
}

func TestGeminiChat_MapsRolesAndTrims(t *testing.T) {
	fm := &fakeModels{res: textResponse("  Hello ", "there  ")}
	p := newGeminiProvider(fm, "")

	reply, err := p.Chat(context.Background(), []Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hey"},
		{Role: RoleUser, Content: "how are you"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello there", reply)
	assert.Equal(t, DefaultGeminiModel, fm.gotModel)

	require.Len(t, fm.gotContents, 3)
	assert.Equal(t, string(genai.RoleUser), fm.gotContents[0].Role)
	assert.Equal(t, string(genai.RoleModel), fm.gotContents[1].Role)
	assert.Equal(t, "how are you", fm.gotContents[2].Parts[0].Text)
}

func TestGeminiChat_EmptyCandidate(t *testing.T) {
	fm := &fakeModels{res: &genai.GenerateContentResponse{}}
	p := newGeminiProvider(fm, "gemini-test")

	_, err := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	assert.ErrorIs(t, err, ErrEmptyResponse)

	fm.res = textResponse("   ")
	_, err = p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestGeminiChat_UpstreamError(t *testing.T) {
	boom := errors.New("boom")
	p := newGeminiProvider(&fakeModels{err: boom}, "")
	_, err := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	assert.ErrorIs(t, err, boom)
}

func TestNewGeminiProvider_RequiresKey(t *testing.T) {
	_, err := NewGeminiProvider(context.Background(), " ", "")
	assert.Error(t, err)
}

func TestContents_RoleMapping(t *testing.T) {
	got := Contents([]Message{
		{Role: RoleUser, Content: "a"},
		{Role: "model", Content: "b"},
		{Role: RoleAssistant, Content: "c"},
		{Role: "system", Content: "d"},
	})
	require.Len(t, got, 4)
	roles := []string{got[0].Role, got[1].Role, got[2].Role, got[3].Role}
	assert.Equal(t, []string{"user", "model", "model", "user"}, roles)
}

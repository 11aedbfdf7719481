package reply

import (
	"context"
	"strings"

	"github.com/suPer8Hu/personapal/internal/ai"
	"github.com/suPer8Hu/personapal/internal/chat"
)

// Direct sends one labeled prompt straight to the model.
type Direct struct {
	provider ai.Provider
}

func NewDirect(provider ai.Provider) *Direct {
	return &Direct{provider: provider}
}

func (d *Direct) Complete(ctx context.Context, req Request) (string, error) {
	return d.provider.Chat(ctx, []ai.Message{{
		Role:    ai.RoleUser,
		Content: BuildPrompt(req.SystemPrompt, req.PersonaName, req.History),
	}})
}

// BuildPrompt renders the system prompt, the labeled history in order and a
// trailing cue for the persona's next line. The newest user turn is already
// part of history and is not repeated.
func BuildPrompt(systemPrompt, personaName string, history []chat.Turn) string {
	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\nPrevious conversation:\n")
	for i, t := range history {
		if i > 0 {
			b.WriteByte('\n')
		}
		if t.Role == chat.RoleUser {
			b.WriteString("User: ")
		} else {
			b.WriteString(personaName)
			b.WriteString(": ")
		}
		b.WriteString(t.Text)
	}
	b.WriteString("\n\n")
	b.WriteString(personaName)
	b.WriteByte(':')
	return b.String()
}

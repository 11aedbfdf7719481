package prompt

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/suPer8Hu/personapal/internal/ai"
)

type Attributes struct {
	Name        string
	Title       string
	Description string
	Traits      []string
	Tone        string
}

// Synthesizer produces the system prompt for a new persona. It asks the
// model first and falls back to a fixed template; it never fails.
type Synthesizer struct {
	provider ai.Provider // nil when no credential is configured
	timeout  time.Duration
}

func NewSynthesizer(provider ai.Provider, timeout time.Duration) *Synthesizer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Synthesizer{provider: provider, timeout: timeout}
}

func (s *Synthesizer) Synthesize(ctx context.Context, a Attributes) string {
	if s == nil || s.provider == nil {
		return Fallback(a)
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.provider.Chat(cctx, []ai.Message{{Role: ai.RoleUser, Content: metaPrompt(a)}})
	if err != nil {
		log.Printf("[Synthesizer] upstream failed name=%q err=%v", a.Name, err)
		return Fallback(a)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return Fallback(a)
	}
	return out
}

// Fallback is pure: identical attributes always give identical text.
func Fallback(a Attributes) string {
	return fmt.Sprintf(
		"You are %s, a %s. %s Your personality traits include: %s. Your communication tone is %s. You should respond in character...",
		a.Name, a.Title, a.Description, strings.Join(a.Traits, ", "), a.Tone,
	)
}

func metaPrompt(a Attributes) string {
	return fmt.Sprintf(`Create a detailed system prompt for an AI persona with these characteristics:

Name: %s
Title: %s
Description: %s
Personality traits: %s
Tone: %s

The system prompt should:
1. Define the persona's role and character
2. Describe their communication style and approach
3. Include specific behavioral guidelines
4. Be detailed enough to create consistent responses
5. Be written in second person ("You are...")

Generate a comprehensive system prompt:`,
		a.Name, a.Title, a.Description, strings.Join(a.Traits, ", "), a.Tone)
}

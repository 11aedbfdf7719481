package supastore

import (
	"encoding/json"
	"time"

	"github.com/suPer8Hu/personapal/internal/chat"
	"github.com/suPer8Hu/personapal/internal/persona"
	"github.com/suPer8Hu/personapal/internal/profile"
)

// personaRow mirrors the personas table. Nullable text columns are pointers.
type personaRow struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Title            *string         `json:"title"`
	Description      *string         `json:"description"`
	Personality      []string        `json:"personality"`
	Tone             *string         `json:"tone"`
	Avatar           *string         `json:"avatar"`
	Color            *string         `json:"color"`
	SystemPrompt     *string         `json:"system_prompt"`
	ExampleDialogues json.RawMessage `json:"example_dialogues"`
	UserID           *string         `json:"user_id"`
	IsPublic         bool            `json:"is_public"`
	CreatedAt        *time.Time      `json:"created_at"`
}

type profileRow struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	FullName  *string    `json:"full_name"`
	AvatarURL *string    `json:"avatar_url"`
	CreatedAt *time.Time `json:"created_at"`
}

type conversationRow struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	PersonaID string     `json:"persona_id"`
	Title     string     `json:"title"`
	Messages  chat.Turns `json:"messages"`
	CreatedAt *time.Time `json:"created_at"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// toPersona is the single ingestion point for persona rows. Missing or
// malformed optional columns become zero values.
func (r personaRow) toPersona() persona.Persona {
	p := persona.Persona{
		ID:           r.ID,
		Name:         r.Name,
		Title:        deref(r.Title),
		Description:  deref(r.Description),
		Traits:       r.Personality,
		Tone:         deref(r.Tone),
		Avatar:       deref(r.Avatar),
		Color:        deref(r.Color),
		SystemPrompt: deref(r.SystemPrompt),
		OwnerID:      deref(r.UserID),
		Public:       r.IsPublic,
	}
	if r.CreatedAt != nil {
		p.CreatedAt = *r.CreatedAt
	}
	if len(r.ExampleDialogues) > 0 {
		var ds []persona.Dialogue
		if err := json.Unmarshal(r.ExampleDialogues, &ds); err == nil {
			p.ExampleDialogues = ds
		}
	}
	return p.Normalize(persona.SourceRemote)
}

func personaPayload(p persona.Persona) map[string]any {
	dialogues := p.ExampleDialogues
	if dialogues == nil {
		dialogues = []persona.Dialogue{}
	}
	traits := p.Traits
	if traits == nil {
		traits = []string{}
	}
	payload := map[string]any{
		"id":                p.ID,
		"name":              p.Name,
		"title":             p.Title,
		"description":       p.Description,
		"personality":       traits,
		"tone":              p.Tone,
		"avatar":            p.Avatar,
		"color":             p.Color,
		"system_prompt":     p.SystemPrompt,
		"example_dialogues": dialogues,
		"is_public":         p.Public,
	}
	if p.OwnerID != "" {
		payload["user_id"] = p.OwnerID
	}
	return payload
}

func (r profileRow) toProfile() profile.Profile {
	p := profile.Profile{
		ID:        r.ID,
		Email:     r.Email,
		FullName:  deref(r.FullName),
		AvatarURL: deref(r.AvatarURL),
	}
	if r.CreatedAt != nil {
		p.CreatedAt = *r.CreatedAt
	}
	return p
}

func (r conversationRow) toTranscript() chat.Transcript {
	t := chat.Transcript{
		ID:        r.ID,
		UserID:    r.UserID,
		PersonaID: r.PersonaID,
		Title:     r.Title,
		Messages:  r.Messages,
	}
	if t.Messages == nil {
		t.Messages = chat.Turns{}
	}
	if r.CreatedAt != nil {
		t.CreatedAt = *r.CreatedAt
		t.UpdatedAt = *r.CreatedAt
	}
	return t
}

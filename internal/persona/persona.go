package persona

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound   = errors.New("persona not found")
	ErrValidation = errors.New("invalid persona")
)

type Source string

const (
	SourceBuiltin Source = "builtin"
	SourceRemote  Source = "remote"
	SourceLocal   Source = "local"
)

type Dialogue struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

// Persona is the single normalized shape used everywhere past an ingestion
// boundary, whatever store it came from.
type Persona struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Traits           []string   `json:"personality"`
	Tone             string     `json:"tone"`
	Avatar           string     `json:"avatar"`
	Color            string     `json:"color"`
	SystemPrompt     string     `json:"system_prompt"`
	ExampleDialogues []Dialogue `json:"example_dialogues"`
	OwnerID          string     `json:"user_id,omitempty"`
	Public           bool       `json:"is_public"`
	Source           Source     `json:"source,omitempty"`
	CreatedAt        time.Time  `json:"created_at,omitempty"`
}

func (p Persona) IsBuiltin() bool { return p.Source == SourceBuiltin }

// VisibleTo: built-ins and public personas are visible to everyone, the rest
// only to their owner.
func (p Persona) VisibleTo(userID string) bool {
	if p.IsBuiltin() || p.OwnerID == "" || p.Public {
		return true
	}
	return userID != "" && p.OwnerID == userID
}

// Usable reports whether the persona can condition generation.
func (p Persona) Usable() bool {
	return strings.TrimSpace(p.SystemPrompt) != ""
}

// Greeting is the locally synthesized first turn of every chat.
func (p Persona) Greeting() string {
	line, ok := greetings[p.ID]
	if !ok {
		line = defaultGreeting
	}
	return fmt.Sprintf("Hi there! I'm %s, your %s. %s", p.Name, strings.ToLower(p.Title), line)
}

// Normalize fills the zero values a store row may leave empty.
func (p Persona) Normalize(src Source) Persona {
	p.ID = strings.TrimSpace(p.ID)
	if p.Traits == nil {
		p.Traits = []string{}
	}
	if p.ExampleDialogues == nil {
		p.ExampleDialogues = []Dialogue{}
	}
	p.Source = src
	return p
}

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

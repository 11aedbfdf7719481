package sqlstore

import (
	"encoding/json"
	"log"
	"time"

	"github.com/suPer8Hu/personapal/internal/persona"
	"github.com/suPer8Hu/personapal/internal/profile"
)

type PersonaRow struct {
	ID               string    `gorm:"primaryKey;type:varchar(64)"`
	Name             string    `gorm:"type:varchar(128);not null"`
	Title            string    `gorm:"type:varchar(255)"`
	Description      string    `gorm:"type:text"`
	Personality      string    `gorm:"type:text"` // JSON array
	Tone             string    `gorm:"type:varchar(128)"`
	Avatar           string    `gorm:"type:varchar(64)"`
	Color            string    `gorm:"type:varchar(64)"`
	SystemPrompt     string    `gorm:"type:text"`
	ExampleDialogues string    `gorm:"type:text"` // JSON array
	UserID           *string   `gorm:"type:varchar(64);index"`
	IsPublic         bool      `gorm:"not null;default:false"`
	CreatedAt        time.Time `gorm:"index"`
}

func (PersonaRow) TableName() string { return "personas" }

type ProfileRow struct {
	ID        string  `gorm:"primaryKey;type:varchar(64)"`
	Email     string  `gorm:"type:varchar(255);not null"`
	FullName  *string `gorm:"type:varchar(255)"`
	AvatarURL *string `gorm:"type:varchar(512)"`
	CreatedAt time.Time
}

func (ProfileRow) TableName() string { return "profiles" }

func personaToRow(p persona.Persona) PersonaRow {
	traits, _ := json.Marshal(nonNil(p.Traits))
	dialogues, _ := json.Marshal(p.ExampleDialogues)
	if p.ExampleDialogues == nil {
		dialogues = []byte("[]")
	}
	row := PersonaRow{
		ID:               p.ID,
		Name:             p.Name,
		Title:            p.Title,
		Description:      p.Description,
		Personality:      string(traits),
		Tone:             p.Tone,
		Avatar:           p.Avatar,
		Color:            p.Color,
		SystemPrompt:     p.SystemPrompt,
		ExampleDialogues: string(dialogues),
		IsPublic:         p.Public,
		CreatedAt:        p.CreatedAt,
	}
	if p.OwnerID != "" {
		owner := p.OwnerID
		row.UserID = &owner
	}
	return row
}

// rowToPersona tolerates malformed JSON columns by reading them as empty.
func rowToPersona(r PersonaRow) persona.Persona {
	p := persona.Persona{
		ID:           r.ID,
		Name:         r.Name,
		Title:        r.Title,
		Description:  r.Description,
		Tone:         r.Tone,
		Avatar:       r.Avatar,
		Color:        r.Color,
		SystemPrompt: r.SystemPrompt,
		Public:       r.IsPublic,
		CreatedAt:    r.CreatedAt,
	}
	if r.UserID != nil {
		p.OwnerID = *r.UserID
	}
	if r.Personality != "" {
		if err := json.Unmarshal([]byte(r.Personality), &p.Traits); err != nil {
			log.Printf("[SQLStore] bad personality column id=%s err=%v", r.ID, err)
		}
	}
	if r.ExampleDialogues != "" {
		if err := json.Unmarshal([]byte(r.ExampleDialogues), &p.ExampleDialogues); err != nil {
			log.Printf("[SQLStore] bad example_dialogues column id=%s err=%v", r.ID, err)
		}
	}
	return p.Normalize(persona.SourceRemote)
}

func profileToRow(p profile.Profile) ProfileRow {
	return ProfileRow{
		ID:        p.ID,
		Email:     p.Email,
		FullName:  strPtr(p.FullName),
		AvatarURL: strPtr(p.AvatarURL),
		CreatedAt: p.CreatedAt,
	}
}

func rowToProfile(r ProfileRow) profile.Profile {
	p := profile.Profile{ID: r.ID, Email: r.Email, CreatedAt: r.CreatedAt}
	if r.FullName != nil {
		p.FullName = *r.FullName
	}
	if r.AvatarURL != nil {
		p.AvatarURL = *r.AvatarURL
	}
	return p
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

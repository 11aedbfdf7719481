package chat

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a chat. Timestamps are non-decreasing within a
// transcript.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"content"`
	CreatedAt time.Time `json:"timestamp"`
}

// Turns is stored as a JSON document in a single column.
type Turns []Turn

func (t Turns) Value() (driver.Value, error) {
	if t == nil {
		t = Turns{}
	}
	b, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (t *Turns) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*t = Turns{}
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("chat: cannot scan %T into Turns", src)
	}
	if len(b) == 0 {
		*t = Turns{}
		return nil
	}
	return json.Unmarshal(b, t)
}

type Transcript struct {
	ID        string    `gorm:"primaryKey;type:varchar(26)" json:"id"`
	UserID    string    `gorm:"type:varchar(64);index:idx_conv_user_persona,priority:1;not null" json:"user_id"`
	PersonaID string    `gorm:"type:varchar(64);index:idx_conv_user_persona,priority:2;not null" json:"persona_id"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	Messages  Turns     `gorm:"type:text;not null" json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Transcript) TableName() string { return "conversations" }

// Key identifies the transcript a chat session writes into.
type Key struct {
	SessionID   string
	UserID      string
	PersonaID   string
	PersonaName string
}

func (k Key) String() string {
	return k.SessionID + ":" + k.UserID + ":" + k.PersonaID
}

func TranscriptTitle(personaName string) string {
	return "Chat with " + personaName
}

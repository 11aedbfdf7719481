package chat

import "time"

// PersistJob is the queued form of one AppendTurn call.
type PersistJob struct {
	SessionID   string    `json:"session_id"`
	UserID      string    `json:"user_id"`
	PersonaID   string    `json:"persona_id"`
	PersonaName string    `json:"persona_name"`
	Messages    []Turn    `json:"messages"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

func NewPersistJob(k Key, history []Turn, now time.Time) PersistJob {
	return PersistJob{
		SessionID:   k.SessionID,
		UserID:      k.UserID,
		PersonaID:   k.PersonaID,
		PersonaName: k.PersonaName,
		Messages:    append([]Turn(nil), history...),
		EnqueuedAt:  now.UTC(),
	}
}

func (j PersistJob) Key() Key {
	return Key{SessionID: j.SessionID, UserID: j.UserID, PersonaID: j.PersonaID, PersonaName: j.PersonaName}
}

func (j PersistJob) Valid() bool {
	return j.SessionID != "" && j.UserID != "" && j.PersonaID != ""
}

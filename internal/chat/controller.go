package chat

import (
	"context"
	"crypto/subtle"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/suPer8Hu/personapal/internal/common"
	"github.com/suPer8Hu/personapal/internal/persona"
)

var (
	ErrBusy            = errors.New("a reply is already being generated")
	ErrEmptyMessage    = errors.New("message is empty")
	ErrNotReady        = errors.New("session is not ready")
	ErrPersonaNotFound = errors.New("persona not found")
	ErrSessionNotFound = errors.New("session not found")
)

type State string

const (
	StateIdle           State = "idle"
	StatePersonaLoading State = "persona_loading"
	StateReady          State = "ready"
	StateAwaitingReply  State = "awaiting_reply"
	StateClosed         State = "closed"
)

type PersonaResolver interface {
	Resolve(ctx context.Context, userID, id string) (persona.Persona, error)
}

// Generator never fails: upstream trouble comes back as an apology line.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, personaName string, history []Turn) string
	FallbackMode() bool
}

type TranscriptLookup interface {
	Remembered(ctx context.Context, k Key) (string, bool)
}

// Hub owns the live chat sessions of this process.
type Hub struct {
	personas  PersonaResolver
	gen       Generator
	persister Persister        // nil disables persistence
	lookup    TranscriptLookup // optional

	mu       sync.RWMutex
	sessions map[string]*Session

	newID    func() (string, error)
	newToken func() string
	now      func() time.Time
}

func NewHub(personas PersonaResolver, gen Generator, persister Persister, lookup TranscriptLookup) *Hub {
	return &Hub{
		personas:  personas,
		gen:       gen,
		persister: persister,
		lookup:    lookup,
		sessions:  make(map[string]*Session),
		newID:     common.NewULID,
		newToken:  uuid.NewString,
		now:       time.Now,
	}
}

type Session struct {
	hub    *Hub
	id     string
	userID string
	token  string // proves ownership of anonymous sessions

	mu         sync.Mutex
	state      State
	persona    persona.Persona
	messages   []Turn
	cancel     context.CancelFunc
	lastActive time.Time
}

type Snapshot struct {
	SessionID    string          `json:"session_id"`
	SessionToken string          `json:"session_token"`
	Persona      persona.Persona `json:"persona"`
	Messages     []Turn          `json:"messages"`
	State        State           `json:"state"`
	Typing       bool            `json:"typing"`
	FallbackMode bool            `json:"fallback_mode"`
	TranscriptID string          `json:"transcript_id,omitempty"`
}

// Open resolves the persona and starts a session whose only message is the
// persona's greeting. An unknown persona discards the session.
func (h *Hub) Open(ctx context.Context, userID, personaID string) (*Session, error) {
	id, err := h.newID()
	if err != nil {
		return nil, err
	}
	s := &Session{hub: h, id: id, userID: userID, token: h.newToken(), state: StateIdle}

	s.mu.Lock()
	s.state = StatePersonaLoading
	s.mu.Unlock()

	p, err := h.personas.Resolve(ctx, userID, personaID)
	if err != nil {
		if errors.Is(err, persona.ErrNotFound) {
			return nil, ErrPersonaNotFound
		}
		return nil, err
	}

	greetID, err := h.newID()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.persona = p
	s.messages = []Turn{{
		ID:        greetID,
		Role:      RoleAssistant,
		Text:      p.Greeting(),
		CreatedAt: h.now().UTC(),
	}}
	s.state = StateReady
	s.lastActive = h.now()
	s.mu.Unlock()

	h.mu.Lock()
	h.sessions[id] = s
	h.mu.Unlock()

	log.Printf("[Chat] session opened session=%s user=%s persona=%s", id, userID, p.ID)
	return s, nil
}

// Get returns the session if the caller owns it: signed-in sessions match on
// userID, anonymous ones on the token handed out by Open.
func (h *Hub) Get(sessionID, userID, token string) (*Session, error) {
	h.mu.RLock()
	s, ok := h.sessions[sessionID]
	h.mu.RUnlock()
	if !ok || !s.ownedBy(userID, token) {
		return nil, ErrSessionNotFound
	}
	s.touch()
	return s, nil
}

// Close moves the session to Closed. A reply still being generated is
// dropped when it arrives.
func (h *Hub) Close(sessionID, userID, token string) error {
	h.mu.Lock()
	s, ok := h.sessions[sessionID]
	if !ok || !s.ownedBy(userID, token) {
		h.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(h.sessions, sessionID)
	h.mu.Unlock()

	s.close()
	log.Printf("[Chat] session closed session=%s", sessionID)
	return nil
}

// Sweep closes sessions with no activity for longer than idle. Sessions
// waiting on a reply are left alone.
func (h *Hub) Sweep(idle time.Duration) int {
	cutoff := h.now().Add(-idle)

	h.mu.Lock()
	var stale []*Session
	for id, s := range h.sessions {
		s.mu.Lock()
		expired := s.state != StateAwaitingReply && s.lastActive.Before(cutoff)
		s.mu.Unlock()
		if expired {
			delete(h.sessions, id)
			stale = append(stale, s)
		}
	}
	h.mu.Unlock()

	for _, s := range stale {
		s.close()
	}
	if len(stale) > 0 {
		log.Printf("[Chat] swept idle sessions count=%d idle=%s", len(stale), idle)
	}
	return len(stale)
}

// RunJanitor sweeps idle sessions every interval until ctx is done.
func (h *Hub) RunJanitor(ctx context.Context, idle, interval time.Duration) {
	if idle <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Sweep(idle)
		}
	}
}

func (s *Session) ownedBy(userID, token string) bool {
	if s.userID != "" {
		return s.userID == userID
	}
	return userID == "" && token != "" && subtle.ConstantTimeCompare([]byte(s.token), []byte(token)) == 1
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActive = s.hub.now()
	s.mu.Unlock()
}

func (s *Session) close() {
	s.mu.Lock()
	s.state = StateClosed
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// FallbackMode reports whether replies are canned demo lines.
func (h *Hub) FallbackMode() bool { return h.gen.FallbackMode() }

func (s *Session) ID() string { return s.id }

func (s *Session) key() Key {
	return Key{SessionID: s.id, UserID: s.userID, PersonaID: s.persona.ID, PersonaName: s.persona.Name}
}

// Send appends the user's turn, generates the persona's reply from the full
// history and appends it. Only one reply may be in flight per session.
func (s *Session) Send(ctx context.Context, text string) (Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Turn{}, ErrEmptyMessage
	}
	h := s.hub

	s.mu.Lock()
	switch s.state {
	case StateAwaitingReply:
		s.mu.Unlock()
		return Turn{}, ErrBusy
	case StateReady:
	default:
		s.mu.Unlock()
		return Turn{}, ErrNotReady
	}

	userTurnID, err := h.newID()
	if err != nil {
		s.mu.Unlock()
		return Turn{}, err
	}
	s.messages = append(s.messages, Turn{
		ID:        userTurnID,
		Role:      RoleUser,
		Text:      text,
		CreatedAt: s.nextTimestamp(),
	})
	s.state = StateAwaitingReply
	history := append([]Turn(nil), s.messages...)
	p := s.persona
	// only Close stops a generation; a dropped request still gets its reply
	// recorded for the next snapshot
	gctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	reply := h.gen.Generate(gctx, p.SystemPrompt, p.Name, history)

	replyID, idErr := h.newID()

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		log.Printf("[Chat] reply discarded for closed session=%s", s.id)
		return Turn{}, ErrSessionNotFound
	}
	s.cancel = nil
	if idErr != nil {
		s.state = StateReady
		s.mu.Unlock()
		return Turn{}, idErr
	}
	turn := Turn{
		ID:        replyID,
		Role:      RoleAssistant,
		Text:      reply,
		CreatedAt: s.nextTimestamp(),
	}
	s.messages = append(s.messages, turn)
	s.state = StateReady
	s.lastActive = h.now()
	full := append([]Turn(nil), s.messages...)
	k := s.key()
	s.mu.Unlock()

	if h.persister != nil && k.UserID != "" {
		h.persister.Persist(k, full)
	}
	return turn, nil
}

// nextTimestamp never goes backwards relative to the last turn. Caller holds mu.
func (s *Session) nextTimestamp() time.Time {
	now := s.hub.now().UTC()
	if n := len(s.messages); n > 0 && now.Before(s.messages[n-1].CreatedAt) {
		return s.messages[n-1].CreatedAt
	}
	return now
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Snapshot(ctx context.Context) Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		SessionID:    s.id,
		SessionToken: s.token,
		Persona:      s.persona,
		Messages:     append([]Turn(nil), s.messages...),
		State:        s.state,
		Typing:       s.state == StateAwaitingReply,
	}
	k := s.key()
	s.mu.Unlock()

	snap.FallbackMode = s.hub.gen.FallbackMode()
	if s.hub.lookup != nil && k.UserID != "" {
		if id, ok := s.hub.lookup.Remembered(ctx, k); ok {
			snap.TranscriptID = id
		}
	}
	return snap
}

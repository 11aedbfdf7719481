package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/suPer8Hu/personapal/internal/common"
)

var (
	ErrTranscriptNotFound = errors.New("transcript not found")
	ErrAnonymous          = errors.New("anonymous transcripts are not stored")
)

// TranscriptBackend is a durable home for transcripts (SQL or Supabase).
// CreateTranscript may replace t.ID with a backend-assigned id.
type TranscriptBackend interface {
	CreateTranscript(ctx context.Context, t *Transcript) error
	ReplaceMessages(ctx context.Context, id string, turns []Turn) error
	ListTranscripts(ctx context.Context, userID string) ([]Transcript, error)
}

// TranscriptIndex remembers which transcript a session key writes into.
type TranscriptIndex interface {
	Get(ctx context.Context, key string) (id string, ok bool, err error)
	Set(ctx context.Context, key, id string) error
}

// MemoryIndex is the in-process TranscriptIndex.
type MemoryIndex struct {
	mu  sync.RWMutex
	ids map[string]string
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{ids: make(map[string]string)}
}

func (m *MemoryIndex) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.ids[key]
	return id, ok, nil
}

func (m *MemoryIndex) Set(_ context.Context, key, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids[key] = id
	return nil
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// Store creates a transcript on the first append for a key and overwrites
// its turns on every later append.
type Store struct {
	backend TranscriptBackend
	index   TranscriptIndex

	locksMu sync.Mutex
	locks   map[string]*keyLock

	newID func() (string, error)
	now   func() time.Time
}

func NewStore(backend TranscriptBackend, index TranscriptIndex) *Store {
	if index == nil {
		index = NewMemoryIndex()
	}
	return &Store{
		backend: backend,
		index:   index,
		locks:   make(map[string]*keyLock),
		newID:   common.NewULID,
		now:     time.Now,
	}
}

// AppendTurn stores the full history for k and returns the transcript id.
func (s *Store) AppendTurn(ctx context.Context, k Key, history []Turn) (string, error) {
	if strings.TrimSpace(k.UserID) == "" {
		return "", ErrAnonymous
	}
	key := k.String()
	unlock := s.lock(key)
	defer unlock()

	id, ok, err := s.index.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("transcript index get: %w", err)
	}
	if ok {
		err := s.backend.ReplaceMessages(ctx, id, history)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, ErrTranscriptNotFound) {
			return "", fmt.Errorf("replace transcript %s: %w", id, err)
		}
		log.Printf("[Transcripts] remembered id=%s is gone, creating a new one key=%s", id, key)
	}

	id, err = s.newID()
	if err != nil {
		return "", err
	}
	now := s.now().UTC()
	t := &Transcript{
		ID:        id,
		UserID:    k.UserID,
		PersonaID: k.PersonaID,
		Title:     TranscriptTitle(k.PersonaName),
		Messages:  Turns(append([]Turn(nil), history...)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.backend.CreateTranscript(ctx, t); err != nil {
		return "", fmt.Errorf("create transcript: %w", err)
	}
	if t.ID != "" {
		id = t.ID
	}
	if err := s.index.Set(ctx, key, id); err != nil {
		return id, fmt.Errorf("transcript index set: %w", err)
	}
	return id, nil
}

// Remembered returns the transcript id already bound to k, if any.
func (s *Store) Remembered(ctx context.Context, k Key) (string, bool) {
	id, ok, err := s.index.Get(ctx, k.String())
	if err != nil {
		log.Printf("[Transcripts] index get failed key=%s err=%v", k.String(), err)
		return "", false
	}
	return id, ok
}

func (s *Store) ListTranscripts(ctx context.Context, userID string) ([]Transcript, error) {
	if strings.TrimSpace(userID) == "" {
		return []Transcript{}, nil
	}
	return s.backend.ListTranscripts(ctx, userID)
}

func (s *Store) lock(key string) func() {
	s.locksMu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &keyLock{}
		s.locks[key] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, key)
		}
		s.locksMu.Unlock()
	}
}

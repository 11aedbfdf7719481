package profile

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"
)

var ErrNoUser = errors.New("profile: user id is required")

type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	AvatarURL string    `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is a profiles table. GetProfile returns (nil, nil) when absent.
type Store interface {
	GetProfile(ctx context.Context, id string) (*Profile, error)
	InsertProfile(ctx context.Context, p Profile) error
}

// Service creates a profile row the first time a user is seen.
type Service struct {
	store   Store
	timeout time.Duration

	mu   sync.Mutex
	seen map[string]bool
	now  func() time.Time
}

func NewService(store Store, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{store: store, timeout: timeout, seen: make(map[string]bool), now: time.Now}
}

// Ensure returns the stored profile, inserting one built from the token's
// claims when none exists.
func (s *Service) Ensure(ctx context.Context, userID, email, fullName string) (*Profile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrNoUser
	}
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	existing, err := s.store.GetProfile(cctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.markSeen(userID)
		return existing, nil
	}

	p := Profile{ID: userID, Email: email, FullName: fullName, CreatedAt: s.now().UTC()}
	if err := s.store.InsertProfile(cctx, p); err != nil {
		// a concurrent first request may have inserted it
		if again, gerr := s.store.GetProfile(cctx, userID); gerr == nil && again != nil {
			s.markSeen(userID)
			return again, nil
		}
		return nil, err
	}
	log.Printf("[Profiles] created profile user=%s", userID)
	s.markSeen(userID)
	return &p, nil
}

// EnsureOnce runs Ensure at most once per user per process. Failures are
// logged and retried on the next call.
func (s *Service) EnsureOnce(ctx context.Context, userID, email, fullName string) {
	s.mu.Lock()
	done := s.seen[userID]
	s.mu.Unlock()
	if done || userID == "" {
		return
	}
	if _, err := s.Ensure(ctx, userID, email, fullName); err != nil {
		log.Printf("[Profiles] ensure failed user=%s err=%v", userID, err)
	}
}

func (s *Service) markSeen(userID string) {
	s.mu.Lock()
	s.seen[userID] = true
	s.mu.Unlock()
}

package supastore

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/suPer8Hu/personapal/internal/chat"
	"github.com/suPer8Hu/personapal/internal/persona"
	"github.com/suPer8Hu/personapal/internal/profile"
	postgrest "github.com/supabase-community/postgrest-go"
	supabase "github.com/supabase-community/supabase-go"
)

const (
	tablePersonas      = "personas"
	tableProfiles      = "profiles"
	tableConversations = "conversations"
)

// Store is the hosted backend: personas, profiles and conversations tables
// behind the project's row-level security.
type Store struct {
	client *supabase.Client
}

func New(url, key string) (*Store, error) {
	if strings.TrimSpace(url) == "" || strings.TrimSpace(key) == "" {
		return nil, errors.New("supabase credentials missing: SUPABASE_URL or SUPABASE_KEY not set")
	}
	client, err := supabase.NewClient(url, key, nil)
	if err != nil {
		return nil, errors.Wrap(err, "supabase client")
	}
	return &Store{client: client}, nil
}

// run executes a postgrest call, giving up when ctx is done. The SDK takes
// no context, so an abandoned call finishes in the background.
func run(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return run(ctx, func() error {
		var out []personaRow
		_, err := s.client.From(tablePersonas).Select("id", "", false).Limit(1, "").ExecuteTo(&out)
		return errors.Wrap(err, "supabase ping")
	})
}

func (s *Store) GetPersona(ctx context.Context, id string) (*persona.Persona, error) {
	var rows []personaRow
	err := run(ctx, func() error {
		_, err := s.client.From(tablePersonas).Select("*", "", false).Eq("id", id).Limit(1, "").ExecuteTo(&rows)
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "get persona %s", id)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	p := rows[0].toPersona()
	return &p, nil
}

func (s *Store) ListPersonasByOwner(ctx context.Context, ownerID string) ([]persona.Persona, error) {
	var rows []personaRow
	err := run(ctx, func() error {
		_, err := s.client.From(tablePersonas).Select("*", "", false).
			Eq("user_id", ownerID).
			Order("created_at", &postgrest.OrderOpts{Ascending: false}).
			ExecuteTo(&rows)
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "list personas owner=%s", ownerID)
	}
	out := make([]persona.Persona, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toPersona())
	}
	return out, nil
}

func (s *Store) InsertPersona(ctx context.Context, p persona.Persona) error {
	err := run(ctx, func() error {
		var out []personaRow
		_, err := s.client.From(tablePersonas).Insert(personaPayload(p), false, "", "representation", "").ExecuteTo(&out)
		return err
	})
	return errors.Wrapf(err, "insert persona %s", p.ID)
}

func (s *Store) GetProfile(ctx context.Context, id string) (*profile.Profile, error) {
	var rows []profileRow
	err := run(ctx, func() error {
		_, err := s.client.From(tableProfiles).Select("*", "", false).Eq("id", id).Limit(1, "").ExecuteTo(&rows)
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "get profile %s", id)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	p := rows[0].toProfile()
	return &p, nil
}

func (s *Store) InsertProfile(ctx context.Context, p profile.Profile) error {
	payload := map[string]any{
		"id":        p.ID,
		"email":     p.Email,
		"full_name": p.FullName,
	}
	if p.AvatarURL != "" {
		payload["avatar_url"] = p.AvatarURL
	}
	err := run(ctx, func() error {
		var out []profileRow
		_, err := s.client.From(tableProfiles).Insert(payload, false, "", "representation", "").ExecuteTo(&out)
		return err
	})
	return errors.Wrapf(err, "insert profile %s", p.ID)
}

// CreateTranscript lets the table assign the id and writes it back to t.
func (s *Store) CreateTranscript(ctx context.Context, t *chat.Transcript) error {
	payload := map[string]any{
		"user_id":    t.UserID,
		"persona_id": t.PersonaID,
		"title":      t.Title,
		"messages":   t.Messages,
	}
	var rows []conversationRow
	err := run(ctx, func() error {
		_, err := s.client.From(tableConversations).Insert(payload, false, "", "representation", "").ExecuteTo(&rows)
		return err
	})
	if err != nil {
		return errors.Wrap(err, "insert conversation")
	}
	if len(rows) == 0 || rows[0].ID == "" {
		return errors.New("insert conversation: no row returned")
	}
	t.ID = rows[0].ID
	return nil
}

func (s *Store) ReplaceMessages(ctx context.Context, id string, turns []chat.Turn) error {
	var rows []conversationRow
	err := run(ctx, func() error {
		_, err := s.client.From(tableConversations).
			Update(map[string]any{"messages": chat.Turns(turns)}, "representation", "").
			Eq("id", id).
			ExecuteTo(&rows)
		return err
	})
	if err != nil {
		return errors.Wrapf(err, "update conversation %s", id)
	}
	if len(rows) == 0 {
		return chat.ErrTranscriptNotFound
	}
	return nil
}

func (s *Store) ListTranscripts(ctx context.Context, userID string) ([]chat.Transcript, error) {
	var rows []conversationRow
	err := run(ctx, func() error {
		_, err := s.client.From(tableConversations).Select("*", "", false).
			Eq("user_id", userID).
			Order("created_at", &postgrest.OrderOpts{Ascending: false}).
			ExecuteTo(&rows)
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "list conversations user=%s", userID)
	}
	out := make([]chat.Transcript, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toTranscript())
	}
	return out, nil
}

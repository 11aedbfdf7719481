package sqlstore

import (
	"context"
	"errors"

	"github.com/suPer8Hu/personapal/internal/chat"
	"github.com/suPer8Hu/personapal/internal/persona"
	"github.com/suPer8Hu/personapal/internal/profile"
	"gorm.io/gorm"
)

// Store keeps personas and profiles in MySQL or SQLite. Transcripts live in
// chat.Repo on the same connection.
type Store struct {
	db *gorm.DB
	*chat.Repo
}

func New(db *gorm.DB) *Store {
	return &Store{db: db, Repo: chat.NewRepo(db)}
}

func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(&PersonaRow{}, &ProfileRow{}); err != nil {
		return err
	}
	return s.Repo.AutoMigrate()
}

func (s *Store) GetPersona(ctx context.Context, id string) (*persona.Persona, error) {
	var row PersonaRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p := rowToPersona(row)
	return &p, nil
}

// ListPersonasByOwner returns the owner's personas, newest first.
func (s *Store) ListPersonasByOwner(ctx context.Context, ownerID string) ([]persona.Persona, error) {
	var rows []PersonaRow
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]persona.Persona, 0, len(rows))
	for _, r := range rows {
		out = append(out, rowToPersona(r))
	}
	return out, nil
}

func (s *Store) InsertPersona(ctx context.Context, p persona.Persona) error {
	row := personaToRow(p)
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *Store) GetProfile(ctx context.Context, id string) (*profile.Profile, error) {
	var row ProfileRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p := rowToProfile(row)
	return &p, nil
}

func (s *Store) InsertProfile(ctx context.Context, p profile.Profile) error {
	row := profileToRow(p)
	return s.db.WithContext(ctx).Create(&row).Error
}

package chat

import (
	"context"

	"gorm.io/gorm"
)

// Repo is the SQL transcript backend.
type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) AutoMigrate() error {
	return r.db.AutoMigrate(&Transcript{})
}

func (r *Repo) CreateTranscript(ctx context.Context, t *Transcript) error {
	return r.db.WithContext(ctx).Create(t).Error
}

// ReplaceMessages overwrites the stored turns. A missing row yields
// ErrTranscriptNotFound.
func (r *Repo) ReplaceMessages(ctx context.Context, id string, turns []Turn) error {
	res := r.db.WithContext(ctx).Model(&Transcript{}).
		Where("id = ?", id).
		Updates(map[string]any{"messages": Turns(turns)})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	// MySQL reports zero affected rows for an unchanged row.
	var n int64
	if err := r.db.WithContext(ctx).Model(&Transcript{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrTranscriptNotFound
	}
	return nil
}

// ListTranscripts returns the user's transcripts, newest first.
func (r *Repo) ListTranscripts(ctx context.Context, userID string) ([]Transcript, error) {
	var out []Transcript
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

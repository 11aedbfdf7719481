package localstore

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/suPer8Hu/personapal/internal/persona"
	bolt "go.etcd.io/bbolt"
)

var personasBucket = []byte("personas")

// Store is the on-device fallback for custom personas: one JSON list per key
// inside a single BoltDB file.
type Store struct {
	db *bolt.DB
}

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, e := tx.CreateBucketIfNotExists(personasBucket)
		return e
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Load(ctx context.Context, key string) ([]persona.Persona, bool, error) {
	_ = ctx
	var (
		out   []persona.Persona
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(personasBucket)
		if b == nil {
			return nil
		}
		v := b.Get([]byte(key))
		if v == nil {
			return nil
		}
		found = true
		if e := json.Unmarshal(v, &out); e != nil {
			// Corrupt entries read as empty instead of failing the caller.
			log.Printf("[LocalStore] malformed entry key=%s err=%v", key, e)
			out = nil
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, found, nil
}

func (s *Store) Save(ctx context.Context, key string, personas []persona.Persona) error {
	_ = ctx
	if personas == nil {
		personas = []persona.Persona{}
	}
	enc, err := json.Marshal(personas)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, e := tx.CreateBucketIfNotExists(personasBucket)
		if e != nil {
			return e
		}
		return b.Put([]byte(key), enc)
	})
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_ = ctx
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(personasBucket)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}

// Keys lists every stored key, for operator tooling.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	_ = ctx
	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(personasBucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}

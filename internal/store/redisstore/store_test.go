package redisstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/personapal/internal/chat"
)

var _ chat.TranscriptIndex = (*Store)(nil)

func TestTranscriptKey(t *testing.T) {
	k := chat.Key{SessionID: "s1", UserID: "u1", PersonaID: "maya"}
	assert.Equal(t, "personapal:transcript:s1:u1:maya", transcriptKey(k.String()))
}

// Runs only against a real server: REDIS_TEST_ADDR=localhost:6379 go test ./...
func TestStore_GetSet(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	s := New(addr, "", 0, time.Minute)
	defer s.Close()
	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))

	key := "test:" + t.Name()
	_ = s.rdb.Del(ctx, transcriptKey(key)).Err()

	_, ok, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, key, "01ABC"))
	id, ok, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "01ABC", id)

	require.NoError(t, s.rdb.Del(ctx, transcriptKey(key)).Err())
}

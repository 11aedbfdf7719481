package persona

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/personapal/internal/prompt"
)

type memLocal struct {
	mu   sync.Mutex
	data map[string][]Persona
}

func newMemLocal() *memLocal { return &memLocal{data: map[string][]Persona{}} }

func (m *memLocal) Load(ctx context.Context, key string) ([]Persona, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return append([]Persona(nil), v...), ok, nil
}

func (m *memLocal) Save(ctx context.Context, key string, ps []Persona) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]Persona(nil), ps...)
	return nil
}

func (m *memLocal) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

type memRemote struct {
	rows      map[string]Persona
	err       error
	inserted  []Persona
	insertErr error
}

func (m *memRemote) GetPersona(ctx context.Context, id string) (*Persona, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memRemote) ListPersonasByOwner(ctx context.Context, ownerID string) ([]Persona, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []Persona
	for _, p := range m.rows {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memRemote) InsertPersona(ctx context.Context, p Persona) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.inserted = append(m.inserted, p)
	return nil
}

type fixedSynth struct{ calls int }

func (f *fixedSynth) Synthesize(ctx context.Context, a prompt.Attributes) string {
	f.calls++
	return prompt.Fallback(a)
}

func newTestRepo(remote RemoteStore, local LocalStore) *Repository {
	r := NewRepository(remote, local, &fixedSynth{}, 0)
	n := 0
	r.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	return r
}

func TestResolve_BuiltinFirst(t *testing.T) {
	remote := &memRemote{rows: map[string]Persona{"maya": {ID: "maya", Name: "Impostor"}}}
	r := newTestRepo(remote, newMemLocal())

	p, err := r.Resolve(context.Background(), "", "maya")
	require.NoError(t, err)
	assert.Equal(t, "Maya", p.Name)
	assert.True(t, p.IsBuiltin())
	assert.True(t, p.VisibleTo(""), "builtins are visible to all")
}

func TestResolve_RemoteThenLocal(t *testing.T) {
	ctx := context.Background()
	local := newMemLocal()
	_ = local.Save(ctx, UserLocalKey("u1"), []Persona{{ID: "loc", Name: "Local", OwnerID: "u1", SystemPrompt: "x"}})
	remote := &memRemote{rows: map[string]Persona{"rem": {ID: "rem", Name: "Remote", OwnerID: "u1", SystemPrompt: "y"}}}
	r := newTestRepo(remote, local)

	p, err := r.Resolve(ctx, "u1", "rem")
	require.NoError(t, err)
	assert.Equal(t, SourceRemote, p.Source)

	p, err = r.Resolve(ctx, "u1", "loc")
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, p.Source)
}

func TestResolve_RemoteErrorFallsBackToLocal(t *testing.T) {
	ctx := context.Background()
	local := newMemLocal()
	_ = local.Save(ctx, UserLocalKey("u1"), []Persona{{ID: "loc", Name: "Local", OwnerID: "u1"}})
	r := newTestRepo(&memRemote{err: errors.New("offline")}, local)

	p, err := r.Resolve(ctx, "u1", "loc")
	require.NoError(t, err)
	assert.Equal(t, "Local", p.Name)
}

func TestResolve_NotFound(t *testing.T) {
	r := newTestRepo(&memRemote{rows: map[string]Persona{}}, newMemLocal())
	_, err := r.Resolve(context.Background(), "u1", "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Resolve(context.Background(), "u1", "  ")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolve_PrivatePersonaHiddenFromOthers(t *testing.T) {
	remote := &memRemote{rows: map[string]Persona{
		"priv": {ID: "priv", OwnerID: "owner"},
		"pub":  {ID: "pub", OwnerID: "owner", Public: true},
	}}
	r := newTestRepo(remote, newMemLocal())
	ctx := context.Background()

	_, err := r.Resolve(ctx, "stranger", "priv")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = r.Resolve(ctx, "", "priv")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Resolve(ctx, "owner", "priv")
	assert.NoError(t, err)
	_, err = r.Resolve(ctx, "stranger", "pub")
	assert.NoError(t, err)
}

func TestListForUser_DedupRemoteWins(t *testing.T) {
	ctx := context.Background()
	local := newMemLocal()
	_ = local.Save(ctx, UserLocalKey("u1"), []Persona{
		{ID: "shared", Name: "LocalCopy", OwnerID: "u1"},
		{ID: "only-local", Name: "OnlyLocal", OwnerID: "u1"},
		{ID: "theo", Name: "ShadowTheo", OwnerID: "u1"},
	})
	remote := &memRemote{rows: map[string]Persona{
		"shared": {ID: "shared", Name: "RemoteCopy", OwnerID: "u1"},
		"other":  {ID: "other", Name: "SomeoneElse", OwnerID: "u2"},
	}}
	r := newTestRepo(remote, local)

	list, err := r.ListForUser(ctx, "u1")
	require.NoError(t, err)

	byID := map[string]Persona{}
	for _, p := range list {
		_, dup := byID[p.ID]
		require.False(t, dup, "duplicate id %s", p.ID)
		byID[p.ID] = p
	}
	assert.Len(t, list, len(Builtins())+2)
	assert.Equal(t, "RemoteCopy", byID["shared"].Name)
	assert.Equal(t, "OnlyLocal", byID["only-local"].Name)
	assert.Equal(t, "Theo", byID["theo"].Name)
	assert.NotContains(t, byID, "other")
	assert.Equal(t, "maya", list[0].ID)
}

func TestListForUser_Anonymous(t *testing.T) {
	r := newTestRepo(&memRemote{}, newMemLocal())
	list, err := r.ListForUser(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, list, 4)
}

func TestLegacyMigration_Idempotent(t *testing.T) {
	ctx := context.Background()
	local := newMemLocal()
	_ = local.Save(ctx, LegacyLocalKey, []Persona{
		{ID: "a", Name: "A"},
		{ID: "b", Name: "B", OwnerID: "u1"},
		{ID: "c", Name: "C", OwnerID: "u2"},
	})
	_ = local.Save(ctx, UserLocalKey("u1"), []Persona{{ID: "b", Name: "B", OwnerID: "u1"}})

	r := newTestRepo(nil, local)
	require.NoError(t, r.MigrateLegacy(ctx, "u1"))

	once, _, _ := local.Load(ctx, UserLocalKey("u1"))
	assert.Len(t, once, 2)
	_, legacyLeft, _ := local.Load(ctx, LegacyLocalKey)
	assert.False(t, legacyLeft)

	other, _, _ := local.Load(ctx, UserLocalKey("u2"))
	require.Len(t, other, 1)
	assert.Equal(t, "c", other[0].ID)

	// second run, even with the legacy key restored, must not duplicate
	_ = local.Save(ctx, LegacyLocalKey, []Persona{{ID: "a", Name: "A"}})
	require.NoError(t, r.MigrateLegacy(ctx, "u1"))
	require.NoError(t, r.MigrateLegacy(ctx, "u1"))

	twice, _, _ := local.Load(ctx, UserLocalKey("u1"))
	assert.Equal(t, len(once), len(twice))
}

func TestLegacyMigration_RunsOnFirstRead(t *testing.T) {
	ctx := context.Background()
	local := newMemLocal()
	_ = local.Save(ctx, LegacyLocalKey, []Persona{{ID: "a", Name: "A"}})
	r := newTestRepo(nil, local)

	list, err := r.ListForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, len(Builtins())+1)

	p, err := r.Resolve(ctx, "u1", "a")
	require.NoError(t, err)
	assert.Equal(t, "u1", p.OwnerID)
}

func TestCreate_ValidationBeforeAnyCall(t *testing.T) {
	remote := &memRemote{}
	local := newMemLocal()
	synth := &fixedSynth{}
	r := NewRepository(remote, local, synth, 0)

	cases := []Draft{
		{Title: "Coach", Description: "d"},
		{Name: "Alex", Description: "d"},
		{Name: "Alex", Title: "Coach", Description: "   "},
	}
	for _, d := range cases {
		_, err := r.Create(context.Background(), "u1", d)
		assert.ErrorIs(t, err, ErrValidation)
	}
	_, err := r.Create(context.Background(), "", Draft{Name: "A", Title: "B", Description: "C"})
	assert.ErrorIs(t, err, ErrValidation)

	assert.Zero(t, synth.calls)
	assert.Empty(t, remote.inserted)
	assert.Empty(t, local.data)
}

func TestCreate_StoresAndNotifies(t *testing.T) {
	ctx := context.Background()
	remote := &memRemote{insertErr: errors.New("rls denied")}
	local := newMemLocal()
	r := newTestRepo(remote, local)

	var got []Persona
	unsubscribe := r.Subscribe("u1", func(p Persona) { got = append(got, p) })
	var otherUser int
	r.Subscribe("u2", func(Persona) { otherUser++ })

	p, err := r.Create(ctx, "u1", Draft{
		Name:        " Alex ",
		Title:       "Coach",
		Description: "Helps with goals.",
		Traits:      []string{"friendly", "encouraging", "friendly", ""},
		Tone:        "warm",
	})
	require.NoError(t, err)
	assert.Equal(t, "id-1", p.ID)
	assert.Equal(t, "Alex", p.Name)
	assert.Equal(t, "u1", p.OwnerID)
	assert.Equal(t, []string{"friendly", "encouraging"}, p.Traits)
	assert.Equal(t,
		"You are Alex, a Coach. Helps with goals. Your personality traits include: friendly, encouraging. Your communication tone is warm. You should respond in character...",
		p.SystemPrompt)
	assert.Equal(t, "🤖", p.Avatar)

	stored, _, _ := local.Load(ctx, UserLocalKey("u1"))
	require.Len(t, stored, 1)
	require.Len(t, got, 1)
	assert.Equal(t, p.ID, got[0].ID)
	assert.Zero(t, otherUser)

	unsubscribe()
	unsubscribe()
	_, err = r.Create(ctx, "u1", Draft{Name: "B", Title: "T", Description: "D"})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	stored, _, _ = local.Load(ctx, UserLocalKey("u1"))
	assert.Len(t, stored, 2)
}

func TestCreate_Defaults(t *testing.T) {
	r := newTestRepo(nil, newMemLocal())
	p, err := r.Create(context.Background(), "u1", Draft{Name: "A", Title: "B", Description: "C"})
	require.NoError(t, err)
	assert.Equal(t, []string{"friendly", "helpful"}, p.Traits)
	assert.Equal(t, "conversational", p.Tone)
	assert.Equal(t, "hsl(220 70% 50%)", p.Color)
	assert.True(t, p.Usable())
}

func TestGreeting(t *testing.T) {
	maya, _ := Builtin("maya")
	assert.Equal(t,
		"Hi there! I'm Maya, your warm-hearted friend. I'm so happy you're here! How are you feeling today? I'm here to listen and support you in any way I can. 💕",
		maya.Greeting())

	custom := Persona{ID: "x", Name: "Alex", Title: "Coach"}
	assert.Equal(t,
		"Hi there! I'm Alex, your coach. I'm excited to chat with you today! What would you like to talk about?",
		custom.Greeting())
}

func TestCannedResponses(t *testing.T) {
	assert.Len(t, CannedResponses("Maya"), 4)
	assert.Equal(t, GenericResponses, CannedResponses("Nobody"))
	assert.Equal(t, GenericResponses, CannedResponses(""))
}

func TestBuiltins_AreCopies(t *testing.T) {
	b := Builtins()
	b[0].Traits[0] = "mutated"
	again, _ := Builtin(b[0].ID)
	assert.NotEqual(t, "mutated", again.Traits[0])
}

func TestResolve_RowWithoutPromptGetsTemplate(t *testing.T) {
	ctx := context.Background()
	row := Persona{ID: "rem", Name: "Sam", Title: "Guide", Description: "Shows the way.", Traits: []string{"calm"}, Tone: "gentle", OwnerID: "u1"}
	local := newMemLocal()
	_ = local.Save(ctx, UserLocalKey("u1"), []Persona{{ID: "loc", Name: "Lou", Title: "Pal", Description: "Local.", OwnerID: "u1", SystemPrompt: "   "}})
	r := newTestRepo(&memRemote{rows: map[string]Persona{"rem": row}}, local)

	p, err := r.Resolve(ctx, "u1", "rem")
	require.NoError(t, err)
	assert.True(t, p.Usable())
	assert.Equal(t, prompt.Fallback(prompt.Attributes{
		Name: "Sam", Title: "Guide", Description: "Shows the way.", Traits: []string{"calm"}, Tone: "gentle",
	}), p.SystemPrompt)

	list, err := r.ListForUser(ctx, "u1")
	require.NoError(t, err)
	for _, x := range list {
		assert.True(t, x.Usable(), "persona %s has no prompt", x.ID)
	}
}

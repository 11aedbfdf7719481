package persona

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/suPer8Hu/personapal/internal/prompt"
)

const (
	LegacyLocalKey = "customPersonas"

	customIDPrefix = "custom-"

	defaultTone   = "conversational"
	defaultAvatar = "🤖"
	defaultColor  = "hsl(220 70% 50%)"
)

var defaultTraits = []string{"friendly", "helpful"}

// UserLocalKey is the per-user namespaced key in the local store.
func UserLocalKey(userID string) string {
	return LegacyLocalKey + "_" + userID
}

// RemoteStore is the hosted (row-scoped) persona table. GetPersona returns
// (nil, nil) when no row matches.
type RemoteStore interface {
	GetPersona(ctx context.Context, id string) (*Persona, error)
	ListPersonasByOwner(ctx context.Context, ownerID string) ([]Persona, error)
	InsertPersona(ctx context.Context, p Persona) error
}

// LocalStore holds persona lists under string keys on the local device.
type LocalStore interface {
	Load(ctx context.Context, key string) ([]Persona, bool, error)
	Save(ctx context.Context, key string, personas []Persona) error
	Delete(ctx context.Context, key string) error
}

type PromptSynthesizer interface {
	Synthesize(ctx context.Context, a prompt.Attributes) string
}

type Draft struct {
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Traits      []string `json:"personality"`
	Tone        string   `json:"tone"`
	Avatar      string   `json:"avatar"`
	Color       string   `json:"color"`
	Public      bool     `json:"is_public"`
}

type Repository struct {
	remote  RemoteStore // optional
	local   LocalStore  // optional
	synth   PromptSynthesizer
	timeout time.Duration

	migrateMu sync.Mutex
	migrated  map[string]bool

	subsMu  sync.RWMutex
	subs    map[string]map[int]func(Persona)
	nextSub int

	now   func() time.Time
	newID func() string
}

func NewRepository(remote RemoteStore, local LocalStore, synth PromptSynthesizer, timeout time.Duration) *Repository {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Repository{
		remote:   remote,
		local:    local,
		synth:    synth,
		timeout:  timeout,
		migrated: make(map[string]bool),
		subs:     make(map[string]map[int]func(Persona)),
		now:      time.Now,
		newID:    func() string { return customIDPrefix + uuid.NewString() },
	}
}

// Resolve looks in the built-in set, then the remote store, then the
// caller's local store. Anything invisible to userID counts as not found.
func (r *Repository) Resolve(ctx context.Context, userID, id string) (Persona, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Persona{}, ErrNotFound
	}
	if p, ok := Builtin(id); ok {
		return p, nil
	}

	if r.remote != nil {
		p, err := r.remoteGet(ctx, id)
		if err != nil {
			log.Printf("[Personas] remote lookup failed id=%s err=%v", id, err)
		} else if p != nil && p.VisibleTo(userID) {
			return ingest(*p, SourceRemote), nil
		}
	}

	if userID != "" {
		locals, err := r.localList(ctx, userID)
		if err != nil {
			log.Printf("[Personas] local lookup failed user=%s id=%s err=%v", userID, id, err)
		}
		for _, p := range locals {
			if p.ID == id && p.VisibleTo(userID) {
				return ingest(p, SourceLocal), nil
			}
		}
	}
	return Persona{}, ErrNotFound
}

// ListForUser returns built-ins followed by the user's custom personas,
// deduplicated by id with remote rows winning over local copies.
func (r *Repository) ListForUser(ctx context.Context, userID string) ([]Persona, error) {
	out := Builtins()
	if userID == "" {
		return out, nil
	}

	var remote []Persona
	if r.remote != nil {
		cctx, cancel := context.WithTimeout(ctx, r.timeout)
		rows, err := r.remote.ListPersonasByOwner(cctx, userID)
		cancel()
		if err != nil {
			log.Printf("[Personas] remote list failed user=%s err=%v", userID, err)
		}
		remote = lo.Map(rows, func(p Persona, _ int) Persona { return ingest(p, SourceRemote) })
	}

	locals, err := r.localList(ctx, userID)
	if err != nil {
		log.Printf("[Personas] local list failed user=%s err=%v", userID, err)
	}
	locals = lo.Map(locals, func(p Persona, _ int) Persona { return ingest(p, SourceLocal) })

	custom := lo.UniqBy(append(remote, locals...), func(p Persona) string { return p.ID })
	custom = lo.Filter(custom, func(p Persona, _ int) bool {
		_, shadowsBuiltin := builtinByID[p.ID]
		return p.ID != "" && !shadowsBuiltin && p.VisibleTo(userID)
	})
	return append(out, custom...), nil
}

// Create validates, synthesizes the system prompt, stores locally (required)
// and remotely (best effort), then notifies the owner's subscribers.
func (r *Repository) Create(ctx context.Context, userID string, d Draft) (Persona, error) {
	if strings.TrimSpace(userID) == "" {
		return Persona{}, &ValidationError{Field: "user", Reason: "must be signed in"}
	}
	d, err := normalizeDraft(d)
	if err != nil {
		return Persona{}, err
	}

	p := Persona{
		ID:          r.newID(),
		Name:        d.Name,
		Title:       d.Title,
		Description: d.Description,
		Traits:      d.Traits,
		Tone:        d.Tone,
		Avatar:      d.Avatar,
		Color:       d.Color,
		OwnerID:     userID,
		Public:      d.Public,
		CreatedAt:   r.now().UTC(),
	}
	if r.synth != nil {
		p.SystemPrompt = r.synth.Synthesize(ctx, prompt.Attributes{
			Name: p.Name, Title: p.Title, Description: p.Description, Traits: p.Traits, Tone: p.Tone,
		})
	}
	p = ingest(p, SourceLocal)

	if r.local != nil {
		if err := r.appendLocal(ctx, userID, p); err != nil {
			return Persona{}, fmt.Errorf("store persona locally: %w", err)
		}
	}

	if r.remote != nil {
		cctx, cancel := context.WithTimeout(ctx, r.timeout)
		err := r.remote.InsertPersona(cctx, p)
		cancel()
		if err != nil {
			log.Printf("[Personas] remote insert failed user=%s id=%s err=%v", userID, p.ID, err)
		} else if r.local == nil {
			p.Source = SourceRemote
		}
	}

	r.publish(userID, p)
	return p, nil
}

// Subscribe registers fn for personas created by userID. The returned func
// removes the subscription.
func (r *Repository) Subscribe(userID string, fn func(Persona)) (unsubscribe func()) {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()
	id := r.nextSub
	r.nextSub++
	if r.subs[userID] == nil {
		r.subs[userID] = make(map[int]func(Persona))
	}
	r.subs[userID][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			r.subsMu.Lock()
			defer r.subsMu.Unlock()
			delete(r.subs[userID], id)
			if len(r.subs[userID]) == 0 {
				delete(r.subs, userID)
			}
		})
	}
}

func (r *Repository) publish(userID string, p Persona) {
	r.subsMu.RLock()
	fns := make([]func(Persona), 0, len(r.subs[userID]))
	for _, fn := range r.subs[userID] {
		fns = append(fns, fn)
	}
	r.subsMu.RUnlock()

	for _, fn := range fns {
		fn(clone(p))
	}
}

// MigrateLegacy moves records under the shared legacy key into per-user
// keys and clears it. Records are merged by id, so re-running is a no-op.
func (r *Repository) MigrateLegacy(ctx context.Context, userID string) error {
	if r.local == nil {
		return nil
	}
	r.migrateMu.Lock()
	defer r.migrateMu.Unlock()
	return r.migrateLocked(ctx, userID)
}

func (r *Repository) migrateLocked(ctx context.Context, userID string) error {
	legacy, ok, err := r.local.Load(ctx, LegacyLocalKey)
	if err != nil {
		return err
	}
	if ok {
		byOwner := lo.GroupBy(legacy, func(p Persona) string {
			if p.OwnerID == "" {
				return userID
			}
			return p.OwnerID
		})
		for owner, recs := range byOwner {
			recs = lo.Map(recs, func(p Persona, _ int) Persona {
				p.OwnerID = owner
				return p
			})
			existing, _, err := r.local.Load(ctx, UserLocalKey(owner))
			if err != nil {
				return err
			}
			merged := lo.UniqBy(append(existing, recs...), func(p Persona) string { return p.ID })
			if err := r.local.Save(ctx, UserLocalKey(owner), merged); err != nil {
				return err
			}
		}
		if err := r.local.Delete(ctx, LegacyLocalKey); err != nil {
			return err
		}
		log.Printf("[Personas] migrated %d legacy local personas (first reader user=%s)", len(legacy), userID)
	}
	r.migrated[userID] = true
	return nil
}

func (r *Repository) localList(ctx context.Context, userID string) ([]Persona, error) {
	if r.local == nil {
		return nil, nil
	}
	r.migrateMu.Lock()
	defer r.migrateMu.Unlock()
	if !r.migrated[userID] {
		if err := r.migrateLocked(ctx, userID); err != nil {
			log.Printf("[Personas] legacy migration failed user=%s err=%v", userID, err)
		}
	}
	ps, _, err := r.local.Load(ctx, UserLocalKey(userID))
	return ps, err
}

func (r *Repository) appendLocal(ctx context.Context, userID string, p Persona) error {
	r.migrateMu.Lock()
	defer r.migrateMu.Unlock()
	if !r.migrated[userID] {
		if err := r.migrateLocked(ctx, userID); err != nil {
			return err
		}
	}
	existing, _, err := r.local.Load(ctx, UserLocalKey(userID))
	if err != nil {
		return err
	}
	return r.local.Save(ctx, UserLocalKey(userID), append(existing, p))
}

func (r *Repository) remoteGet(ctx context.Context, id string) (*Persona, error) {
	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.remote.GetPersona(cctx, id)
}

// ingest normalizes a stored row and gives it the template prompt when the
// row carries none, so every persona past this point can drive generation.
func ingest(p Persona, src Source) Persona {
	p = p.Normalize(src)
	if !p.Usable() {
		p.SystemPrompt = prompt.Fallback(prompt.Attributes{
			Name: p.Name, Title: p.Title, Description: p.Description, Traits: p.Traits, Tone: p.Tone,
		})
	}
	return p
}

func normalizeDraft(d Draft) (Draft, error) {
	d.Name = strings.TrimSpace(d.Name)
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	d.Tone = strings.TrimSpace(d.Tone)

	switch {
	case d.Name == "":
		return d, &ValidationError{Field: "name", Reason: "is required"}
	case d.Title == "":
		return d, &ValidationError{Field: "title", Reason: "is required"}
	case d.Description == "":
		return d, &ValidationError{Field: "description", Reason: "is required"}
	}

	traits := lo.Uniq(lo.Compact(lo.Map(d.Traits, func(t string, _ int) string { return strings.TrimSpace(t) })))
	if len(traits) == 0 {
		traits = append([]string(nil), defaultTraits...)
	}
	d.Traits = traits

	if d.Tone == "" {
		d.Tone = defaultTone
	}
	if strings.TrimSpace(d.Avatar) == "" {
		d.Avatar = defaultAvatar
	}
	if strings.TrimSpace(d.Color) == "" {
		d.Color = defaultColor
	}
	return d, nil
}

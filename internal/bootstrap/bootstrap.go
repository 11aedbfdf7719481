// Package bootstrap builds the clients and stores shared by every command
// from a config.Config.
package bootstrap

import (
	"context"
	"log"
	"time"

	"github.com/suPer8Hu/personapal/internal/ai"
	"github.com/suPer8Hu/personapal/internal/chat"
	"github.com/suPer8Hu/personapal/internal/config"
	"github.com/suPer8Hu/personapal/internal/db"
	"github.com/suPer8Hu/personapal/internal/persona"
	"github.com/suPer8Hu/personapal/internal/profile"
	"github.com/suPer8Hu/personapal/internal/prompt"
	"github.com/suPer8Hu/personapal/internal/relay"
	"github.com/suPer8Hu/personapal/internal/reply"
	"github.com/suPer8Hu/personapal/internal/store/localstore"
	"github.com/suPer8Hu/personapal/internal/store/redisstore"
	"github.com/suPer8Hu/personapal/internal/store/sqlstore"
	"github.com/suPer8Hu/personapal/internal/store/supastore"
)

type Backends struct {
	Personas    persona.RemoteStore
	Transcripts chat.TranscriptBackend
	Profiles    profile.Store
	Local       *localstore.Store // nil when the file could not be opened
	Index       chat.TranscriptIndex

	closers []func() error
}

// Open connects the hosted or SQL backend, the local persona file and the
// transcript index. Only the primary backend is fatal; the rest degrade.
func Open(ctx context.Context, cfg config.Config) (*Backends, error) {
	b := &Backends{}

	if cfg.UseSupabase() {
		s, err := supastore.New(cfg.SupabaseURL, cfg.SupabaseKey)
		if err != nil {
			return nil, err
		}
		pctx, cancel := context.WithTimeout(ctx, cfg.UpstreamTimeout)
		if err := s.Ping(pctx); err != nil {
			log.Printf("[Bootstrap] supabase ping failed err=%v", err)
		}
		cancel()
		b.Personas, b.Transcripts, b.Profiles = s, s, s
		log.Printf("[Bootstrap] backend=supabase url=%s", cfg.SupabaseURL)
	} else {
		gdb, err := db.Open(cfg.DBDSN)
		if err != nil {
			return nil, err
		}
		s := sqlstore.New(gdb)
		if err := s.AutoMigrate(); err != nil {
			return nil, err
		}
		b.Personas, b.Transcripts, b.Profiles = s, s, s
		if sqlDB, err := gdb.DB(); err == nil {
			b.closers = append(b.closers, sqlDB.Close)
		}
		log.Printf("[Bootstrap] backend=sql")
	}

	if cfg.LocalStorePath != "" {
		ls, err := localstore.Open(cfg.LocalStorePath)
		if err != nil {
			log.Printf("[Bootstrap] local persona store disabled path=%s err=%v", cfg.LocalStorePath, err)
		} else {
			b.Local = ls
			b.closers = append(b.closers, ls.Close)
		}
	}

	b.Index = chat.NewMemoryIndex()
	if cfg.RedisAddr != "" {
		rs := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.TranscriptIndexTTL)
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rs.Ping(pctx)
		cancel()
		if err != nil {
			log.Printf("[Bootstrap] redis unavailable, using in-memory transcript index addr=%s err=%v", cfg.RedisAddr, err)
			_ = rs.Close()
		} else {
			b.Index = rs
			b.closers = append(b.closers, rs.Close)
		}
	}
	return b, nil
}

// LocalStore returns the local store as an interface, nil-safe.
func (b *Backends) LocalStore() persona.LocalStore {
	if b.Local == nil {
		return nil
	}
	return b.Local
}

func (b *Backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			log.Printf("[Bootstrap] close failed err=%v", err)
		}
	}
}

// Provider returns the Gemini provider, or nil when no key is configured.
func Provider(ctx context.Context, cfg config.Config) ai.Provider {
	if cfg.GeminiAPIKey == "" {
		return nil
	}
	p, err := ai.NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		log.Printf("[Bootstrap] gemini client failed, continuing without it err=%v", err)
		return nil
	}
	return p
}

// Generator picks the reply upstream for the configured mode. Without one
// the generator runs in demo mode.
func Generator(cfg config.Config, provider ai.Provider) *reply.Generator {
	opts := []reply.Option{
		reply.WithTimeout(cfg.UpstreamTimeout),
		reply.WithDemoDelay(cfg.DemoDelayMin, cfg.DemoDelayMax),
	}
	switch {
	case cfg.GenerationMode == config.ModeRelay && cfg.RelayURL != "":
		log.Printf("[Bootstrap] generation=relay url=%s", cfg.RelayURL)
		return reply.NewGenerator(relay.NewClient(cfg.RelayURL, cfg.SupabaseKey), opts...)
	case cfg.GenerationMode == config.ModeDirect && provider != nil:
		log.Printf("[Bootstrap] generation=direct model=%s", cfg.GeminiModel)
		return reply.NewGenerator(reply.NewDirect(provider), opts...)
	}
	log.Printf("[Bootstrap] generation=demo")
	return reply.NewGenerator(nil, opts...)
}

func Synthesizer(cfg config.Config, provider ai.Provider) *prompt.Synthesizer {
	return prompt.NewSynthesizer(provider, cfg.UpstreamTimeout)
}

func Repository(cfg config.Config, b *Backends, provider ai.Provider) *persona.Repository {
	return persona.NewRepository(b.Personas, b.LocalStore(), Synthesizer(cfg, provider), cfg.UpstreamTimeout)
}

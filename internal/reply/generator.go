package reply

import (
	"context"
	"errors"
	"log"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/suPer8Hu/personapal/internal/chat"
	"github.com/suPer8Hu/personapal/internal/persona"
)

const Apology = "I'm having trouble responding right now. Please try again."

var errBlankReply = errors.New("reply: upstream returned blank text")

// Request is everything an upstream needs to produce one persona reply.
type Request struct {
	SystemPrompt string
	PersonaName  string
	History      []chat.Turn
}

// Upstream produces the raw reply text or an error.
type Upstream interface {
	Complete(ctx context.Context, req Request) (string, error)
}

type Option func(*Generator)

// WithSleep replaces the context-aware sleep used in demo mode.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(g *Generator) { g.sleep = fn }
}

func WithRand(r *rand.Rand) Option {
	return func(g *Generator) { g.rng = r }
}

func WithDemoDelay(min, max time.Duration) Option {
	return func(g *Generator) {
		if min >= 0 && max >= min {
			g.delayMin, g.delayMax = min, max
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// Generator turns a persona and a history into the persona's next line. It
// never fails: upstream trouble becomes Apology, and without an upstream it
// answers from the persona's canned lines.
type Generator struct {
	upstream Upstream // nil means demo mode
	timeout  time.Duration

	delayMin time.Duration
	delayMax time.Duration
	sleep    func(ctx context.Context, d time.Duration) error

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewGenerator(upstream Upstream, opts ...Option) *Generator {
	g := &Generator{
		upstream: upstream,
		timeout:  30 * time.Second,
		delayMin: time.Second,
		delayMax: 3 * time.Second,
		sleep:    sleepCtx,
		rng:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// FallbackMode reports whether replies are simulated.
func (g *Generator) FallbackMode() bool { return g.upstream == nil }

func (g *Generator) Generate(ctx context.Context, systemPrompt, personaName string, history []chat.Turn) string {
	if g.upstream == nil {
		return g.demo(ctx, personaName)
	}

	cctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	out, err := g.upstream.Complete(cctx, Request{
		SystemPrompt: systemPrompt,
		PersonaName:  personaName,
		History:      history,
	})
	if err == nil {
		out = strings.TrimSpace(out)
		if out == "" {
			err = errBlankReply
		}
	}
	if err != nil {
		log.Printf("[Reply] upstream failed persona=%q turns=%d cost=%s err=%v", personaName, len(history), time.Since(start), err)
		return Apology
	}
	return out
}

func (g *Generator) demo(ctx context.Context, personaName string) string {
	lines := persona.CannedResponses(personaName)

	g.rngMu.Lock()
	delay := g.delayMin
	if span := g.delayMax - g.delayMin; span > 0 {
		delay += time.Duration(g.rng.Int64N(int64(span) + 1))
	}
	line := lines[g.rng.IntN(len(lines))]
	g.rngMu.Unlock()

	if err := g.sleep(ctx, delay); err != nil {
		log.Printf("[Reply] demo delay interrupted persona=%q err=%v", personaName, err)
	}
	return line
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

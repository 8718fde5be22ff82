// Package selection picks the next chord and outline for a practice session.
package selection

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/audiolibrelab/improvlab/internal/catalog"
)

// DefaultAttempts bounds how many random draws are made before the engine
// accepts a repeat or falls back to a full pass over the chords.
const DefaultAttempts = 20

// Selection is a chord paired with the outline to play over it.
type Selection struct {
	Chord   catalog.ChordEntry
	Outline string
}

// Same reports whether s and o name the same chord and outline.
func (s Selection) Same(o Selection) bool {
	return s.Chord.Name == o.Chord.Name && s.Outline == o.Outline
}

func (s Selection) String() string {
	return fmt.Sprintf("%s: %s", s.Chord.Name, s.Outline)
}

// Option configures an Engine.
type Option func(*Engine)

// WithRand sets the random source. Tests pass a seeded generator.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) {
		e.rng = r
	}
}

// WithAttempts overrides the redraw budget.
func WithAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.attempts = n
		}
	}
}

// Engine draws selections with a soft no-immediate-repeat policy.
type Engine struct {
	mu       sync.Mutex
	rng      *rand.Rand
	attempts int
}

// NewEngine creates an engine seeded from the runtime's random source.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		attempts: DefaultAttempts,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PickNext draws a chord uniformly from chords and an outline uniformly from
// that chord's outlines in the enabled categories. A draw equal to last is
// redrawn up to the attempt budget, after which the repeat is accepted.
// It returns false only when no chord has any outline in the enabled
// categories.
func (e *Engine) PickNext(chords []catalog.ChordEntry, enabled map[catalog.OutlineCategory]bool, last *Selection) (Selection, bool) {
	if len(chords) == 0 || len(enabled) == 0 {
		return Selection{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var repeat *Selection
	for attempt := 0; attempt < e.attempts; attempt++ {
		chord := chords[e.rng.IntN(len(chords))]
		pool := chord.OutlinePool(enabled)
		if len(pool) == 0 {
			continue
		}
		sel := Selection{Chord: chord, Outline: pool[e.rng.IntN(len(pool))]}
		if last == nil || !sel.Same(*last) {
			return sel, true
		}
		if repeat == nil {
			repeat = &sel
		}
	}
	if repeat != nil {
		return *repeat, true
	}

	// Every draw hit a chord without outlines. Walk all chords once so a
	// usable chord is never missed.
	for _, i := range e.rng.Perm(len(chords)) {
		chord := chords[i]
		pool := chord.OutlinePool(enabled)
		if len(pool) == 0 {
			continue
		}
		sel := Selection{Chord: chord, Outline: pool[e.rng.IntN(len(pool))]}
		if last != nil && sel.Same(*last) && len(pool) > 1 {
			for _, j := range e.rng.Perm(len(pool)) {
				if pool[j] != last.Outline {
					sel.Outline = pool[j]
					break
				}
			}
		}
		return sel, true
	}
	return Selection{}, false
}

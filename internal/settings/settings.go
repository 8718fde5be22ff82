// Package settings holds the playback configuration shared by the
// scheduler and the control surfaces.
package settings

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/audiolibrelab/improvlab/internal/catalog"
	"github.com/audiolibrelab/improvlab/internal/tempo"
)

// ErrRequiresFullFeatureSet is returned when a change needs the full
// feature set and the entitlement does not grant it.
var ErrRequiresFullFeatureSet = errors.New("this setting requires the full feature set")

// AllowedBarsPerChord are the selectable window lengths.
var AllowedBarsPerChord = []int{4, 8, 16}

// DefaultBarsPerChord is the only window length of the free tier.
const DefaultBarsPerChord = 4

// Configuration is a snapshot of the playback settings.
type Configuration struct {
	ChordCategories   map[catalog.ChordCategory]bool   `json:"chord_categories"`
	OutlineCategories map[catalog.OutlineCategory]bool `json:"outline_categories"`
	BarsPerChord      int                              `json:"bars_per_chord"`
	BPM               float64                          `json:"bpm"`
}

// Default enables every category at 4 bars per chord.
func Default() Configuration {
	c := Configuration{
		ChordCategories:   make(map[catalog.ChordCategory]bool),
		OutlineCategories: make(map[catalog.OutlineCategory]bool),
		BarsPerChord:      DefaultBarsPerChord,
		BPM:               tempo.DefaultBPM,
	}
	for _, cat := range catalog.ChordCategories {
		c.ChordCategories[cat] = true
	}
	for _, cat := range catalog.OutlineCategories {
		c.OutlineCategories[cat] = true
	}
	return c
}

// Clone returns a deep copy.
func (c Configuration) Clone() Configuration {
	out := c
	out.ChordCategories = make(map[catalog.ChordCategory]bool, len(c.ChordCategories))
	for k, v := range c.ChordCategories {
		out.ChordCategories[k] = v
	}
	out.OutlineCategories = make(map[catalog.OutlineCategory]bool, len(c.OutlineCategories))
	for k, v := range c.OutlineCategories {
		out.OutlineCategories[k] = v
	}
	return out
}

// EnabledChordCategories lists enabled chord categories in catalog order.
func (c Configuration) EnabledChordCategories() []catalog.ChordCategory {
	var out []catalog.ChordCategory
	for _, cat := range catalog.ChordCategories {
		if c.ChordCategories[cat] {
			out = append(out, cat)
		}
	}
	return out
}

// EnabledOutlineCategories lists enabled outline categories in catalog order.
func (c Configuration) EnabledOutlineCategories() []catalog.OutlineCategory {
	var out []catalog.OutlineCategory
	for _, cat := range catalog.OutlineCategories {
		if c.OutlineCategories[cat] {
			out = append(out, cat)
		}
	}
	return out
}

// ValidBarsPerChord reports whether bars is a selectable window length.
func ValidBarsPerChord(bars int) bool {
	for _, b := range AllowedBarsPerChord {
		if b == bars {
			return true
		}
	}
	return false
}

// Entitlement decides whether gated settings may be changed.
type Entitlement interface {
	FullFeatureSet() bool
}

// StaticEntitlement is an entitlement fixed at startup from configuration.
type StaticEntitlement bool

func (e StaticEntitlement) FullFeatureSet() bool { return bool(e) }

// Store is the thread-safe holder of the current configuration.
type Store struct {
	mu          sync.RWMutex
	cfg         Configuration
	entitlement Entitlement

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(Configuration)
}

// NewStore creates a store. Without the full feature set the initial
// configuration is forced to the free tier defaults.
func NewStore(initial Configuration, entitlement Entitlement) (*Store, error) {
	if entitlement == nil {
		entitlement = StaticEntitlement(false)
	}
	if err := initial.validate(); err != nil {
		return nil, err
	}
	cfg := initial.Clone()
	if !entitlement.FullFeatureSet() {
		free := Default()
		free.BPM = cfg.BPM
		cfg = free
	}
	return &Store{
		cfg:         cfg,
		entitlement: entitlement,
		subs:        make(map[int]func(Configuration)),
	}, nil
}

func (c Configuration) validate() error {
	if !ValidBarsPerChord(c.BarsPerChord) {
		return fmt.Errorf("bars_per_chord must be one of %v, got %d", AllowedBarsPerChord, c.BarsPerChord)
	}
	if c.BPM <= 0 {
		return fmt.Errorf("bpm must be positive, got %v", c.BPM)
	}
	for cat := range c.ChordCategories {
		if !cat.IsValid() {
			return fmt.Errorf("unknown chord category '%s'", cat)
		}
	}
	for cat := range c.OutlineCategories {
		if !cat.IsValid() {
			return fmt.Errorf("unknown outline category '%s'", cat)
		}
	}
	return nil
}

// Snapshot returns a copy of the current configuration.
func (s *Store) Snapshot() Configuration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// FullFeatureSet reports the current entitlement.
func (s *Store) FullFeatureSet() bool {
	return s.entitlement.FullFeatureSet()
}

// Subscribe registers fn to run after every successful change. The
// returned function removes it.
func (s *Store) Subscribe(fn func(Configuration)) (cancel func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) notify(cfg Configuration) {
	s.subMu.Lock()
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Configuration), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(cfg.Clone())
	}
}

// update applies fn to a copy and commits it if fn succeeds.
func (s *Store) update(fn func(*Configuration) error) error {
	s.mu.Lock()
	next := s.cfg.Clone()
	if err := fn(&next); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := next.validate(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.cfg = next
	committed := next.Clone()
	s.mu.Unlock()

	s.notify(committed)
	return nil
}

// Change is a set of settings to replace together. Nil fields are left
// untouched.
type Change struct {
	BarsPerChord      *int
	ChordCategories   []catalog.ChordCategory
	OutlineCategories []catalog.OutlineCategory
	// Set* mark the category lists as present, so an empty list can
	// disable every category.
	SetChordCategories   bool
	SetOutlineCategories bool
}

// Apply validates every field of ch and commits them in one update.
// Nothing is applied when any field is rejected.
func (s *Store) Apply(ch Change) error {
	full := s.entitlement.FullFeatureSet()

	if ch.BarsPerChord != nil {
		bars := *ch.BarsPerChord
		if !ValidBarsPerChord(bars) {
			return fmt.Errorf("bars_per_chord must be one of %v, got %d", AllowedBarsPerChord, bars)
		}
		if bars != DefaultBarsPerChord && !full {
			return fmt.Errorf("%d bars per chord: %w", bars, ErrRequiresFullFeatureSet)
		}
	}

	var chords map[catalog.ChordCategory]bool
	if ch.SetChordCategories {
		chords = make(map[catalog.ChordCategory]bool, len(catalog.ChordCategories))
		for _, cat := range catalog.ChordCategories {
			chords[cat] = false
		}
		for _, cat := range ch.ChordCategories {
			if !cat.IsValid() {
				return fmt.Errorf("unknown chord category '%s'", cat)
			}
			chords[cat] = true
		}
		if !full && !allChords(chords) {
			return fmt.Errorf("chord category filter: %w", ErrRequiresFullFeatureSet)
		}
	}

	var outlines map[catalog.OutlineCategory]bool
	if ch.SetOutlineCategories {
		outlines = make(map[catalog.OutlineCategory]bool, len(catalog.OutlineCategories))
		for _, cat := range catalog.OutlineCategories {
			outlines[cat] = false
		}
		for _, cat := range ch.OutlineCategories {
			if !cat.IsValid() {
				return fmt.Errorf("unknown outline category '%s'", cat)
			}
			outlines[cat] = true
		}
		if !full && !allOutlines(outlines) {
			return fmt.Errorf("outline category filter: %w", ErrRequiresFullFeatureSet)
		}
	}

	return s.update(func(c *Configuration) error {
		if ch.BarsPerChord != nil {
			c.BarsPerChord = *ch.BarsPerChord
		}
		if chords != nil {
			c.ChordCategories = chords
		}
		if outlines != nil {
			c.OutlineCategories = outlines
		}
		return nil
	})
}

// SetBarsPerChord changes the window length. Only 4 is allowed without
// the full feature set.
func (s *Store) SetBarsPerChord(bars int) error {
	return s.Apply(Change{BarsPerChord: &bars})
}

// SetChordCategories replaces the enabled chord categories.
func (s *Store) SetChordCategories(enabled []catalog.ChordCategory) error {
	return s.Apply(Change{ChordCategories: enabled, SetChordCategories: true})
}

// SetOutlineCategories replaces the enabled outline categories.
func (s *Store) SetOutlineCategories(enabled []catalog.OutlineCategory) error {
	return s.Apply(Change{OutlineCategories: enabled, SetOutlineCategories: true})
}

// SetChordCategoryEnabled toggles a single chord category.
func (s *Store) SetChordCategoryEnabled(cat catalog.ChordCategory, enabled bool) error {
	if !cat.IsValid() {
		return fmt.Errorf("unknown chord category '%s'", cat)
	}
	cfg := s.Snapshot()
	cfg.ChordCategories[cat] = enabled
	return s.SetChordCategories(cfg.EnabledChordCategories())
}

// SetOutlineCategoryEnabled toggles a single outline category.
func (s *Store) SetOutlineCategoryEnabled(cat catalog.OutlineCategory, enabled bool) error {
	if !cat.IsValid() {
		return fmt.Errorf("unknown outline category '%s'", cat)
	}
	cfg := s.Snapshot()
	cfg.OutlineCategories[cat] = enabled
	return s.SetOutlineCategories(cfg.EnabledOutlineCategories())
}

func allChords(set map[catalog.ChordCategory]bool) bool {
	for _, cat := range catalog.ChordCategories {
		if !set[cat] {
			return false
		}
	}
	return true
}

func allOutlines(set map[catalog.OutlineCategory]bool) bool {
	for _, cat := range catalog.OutlineCategories {
		if !set[cat] {
			return false
		}
	}
	return true
}

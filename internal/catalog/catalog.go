// Package catalog holds the static registry of practice chords and the
// outline suggestions that go with them.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ChordCategory is the harmonic class of a chord.
type ChordCategory string

const (
	MajorSeventh    ChordCategory = "major-seventh"
	MinorSeventh    ChordCategory = "minor-seventh"
	DominantSeventh ChordCategory = "dominant-seventh"
)

// ChordCategories lists every known chord category in display order.
var ChordCategories = []ChordCategory{MajorSeventh, MinorSeventh, DominantSeventh}

// OutlineCategory groups outline suggestions.
type OutlineCategory string

const (
	Triad              OutlineCategory = "triad"
	TriadPlusExtension OutlineCategory = "triad-plus-extension"
	Pentatonic         OutlineCategory = "pentatonic"
	PairedTriad        OutlineCategory = "paired-triad"
)

// OutlineCategories lists every known outline category in display order.
var OutlineCategories = []OutlineCategory{Triad, TriadPlusExtension, Pentatonic, PairedTriad}

// IsValid reports whether c is a known chord category.
func (c ChordCategory) IsValid() bool {
	for _, known := range ChordCategories {
		if c == known {
			return true
		}
	}
	return false
}

// IsValid reports whether c is a known outline category.
func (c OutlineCategory) IsValid() bool {
	for _, known := range OutlineCategories {
		if c == known {
			return true
		}
	}
	return false
}

// ChordEntry is one backing chord. Entries are never mutated after load.
type ChordEntry struct {
	Name             string                       `yaml:"name" json:"name"`
	Category         ChordCategory                `yaml:"category" json:"category"`
	PrimaryAudioID   string                       `yaml:"audio" json:"audio"`
	SecondaryAudioID string                       `yaml:"bass,omitempty" json:"bass,omitempty"`
	Outlines         map[OutlineCategory][]string `yaml:"outlines" json:"outlines"`
}

// HasSecondary reports whether the chord has a bass layer.
func (e ChordEntry) HasSecondary() bool {
	return e.SecondaryAudioID != ""
}

// OutlinePool returns the outline texts of the enabled categories, in
// category display order.
func (e ChordEntry) OutlinePool(enabled map[OutlineCategory]bool) []string {
	var pool []string
	for _, cat := range OutlineCategories {
		if enabled[cat] {
			pool = append(pool, e.Outlines[cat]...)
		}
	}
	return pool
}

// document is the on-disk YAML layout.
type document struct {
	Drums  string       `yaml:"drums"`
	Chords []ChordEntry `yaml:"chords"`
}

// Catalog is the read-only chord registry.
type Catalog struct {
	drums   string
	entries []ChordEntry
	byName  map[string]int
}

//go:embed default.yaml
var defaultDocument []byte

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultDocument)
	if err != nil {
		panic(fmt.Sprintf("built-in catalog is invalid: %v", err))
	}
	return c
}

// Load reads a catalog document from path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// LoadOrDefault reads path, or returns the built-in catalog when path is
// empty.
func LoadOrDefault(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	return New(doc.Drums, doc.Chords)
}

// New builds a catalog from entries, validating them.
func New(drums string, entries []ChordEntry) (*Catalog, error) {
	if drums == "" {
		return nil, fmt.Errorf("'drums' is required")
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("'chords' cannot be empty")
	}

	c := &Catalog{
		drums:   drums,
		entries: make([]ChordEntry, 0, len(entries)),
		byName:  make(map[string]int, len(entries)),
	}
	for i, e := range entries {
		if err := validateEntry(e, fmt.Sprintf("chords[%d]", i)); err != nil {
			return nil, err
		}
		if _, dup := c.byName[e.Name]; dup {
			return nil, fmt.Errorf("chords[%d]: duplicate name '%s'", i, e.Name)
		}
		c.byName[e.Name] = len(c.entries)
		c.entries = append(c.entries, cloneEntry(e))
	}
	return c, nil
}

func validateEntry(e ChordEntry, prefix string) error {
	if e.Name == "" {
		return fmt.Errorf("%s: 'name' is required", prefix)
	}
	if !e.Category.IsValid() {
		return fmt.Errorf("%s '%s': unknown category '%s'", prefix, e.Name, e.Category)
	}
	if e.PrimaryAudioID == "" {
		return fmt.Errorf("%s '%s': 'audio' is required", prefix, e.Name)
	}
	for cat := range e.Outlines {
		if !cat.IsValid() {
			return fmt.Errorf("%s '%s': unknown outline category '%s'", prefix, e.Name, cat)
		}
	}
	return nil
}

func cloneEntry(e ChordEntry) ChordEntry {
	out := e
	out.Outlines = make(map[OutlineCategory][]string, len(e.Outlines))
	for cat, texts := range e.Outlines {
		out.Outlines[cat] = append([]string(nil), texts...)
	}
	return out
}

// DrumsAudioID is the drum groove that plays under every chord.
func (c *Catalog) DrumsAudioID() string {
	return c.drums
}

// Entries returns every chord in catalog order.
func (c *Catalog) Entries() []ChordEntry {
	return append([]ChordEntry(nil), c.entries...)
}

// Lookup finds a chord by name.
func (c *Catalog) Lookup(name string) (ChordEntry, bool) {
	i, ok := c.byName[name]
	if !ok {
		return ChordEntry{}, false
	}
	return c.entries[i], true
}

// Available returns the chords whose category is enabled.
func (c *Catalog) Available(enabled map[ChordCategory]bool) []ChordEntry {
	var out []ChordEntry
	for _, e := range c.entries {
		if enabled[e.Category] {
			out = append(out, e)
		}
	}
	return out
}

// AssetIDs returns every audio asset the catalog references, sorted and
// deduplicated, including the drum groove.
func (c *Catalog) AssetIDs() []string {
	seen := map[string]bool{c.drums: true}
	for _, e := range c.entries {
		seen[e.PrimaryAudioID] = true
		if e.HasSecondary() {
			seen[e.SecondaryAudioID] = true
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	entries := c.Entries()
	if len(entries) != 4 {
		t.Fatalf("Expected 4 chords, got %d", len(entries))
	}
	if c.DrumsAudioID() != "drumgroove_135.wav" {
		t.Errorf("Expected drums 'drumgroove_135.wav', got %s", c.DrumsAudioID())
	}

	cmaj, ok := c.Lookup("Cmaj7")
	if !ok {
		t.Fatal("Cmaj7 not found")
	}
	if cmaj.Category != MajorSeventh || cmaj.PrimaryAudioID != "gtr_cmaj7.wav" || cmaj.SecondaryAudioID != "bass_c.wav" {
		t.Errorf("Cmaj7 incorrect: got %+v", cmaj)
	}
	for _, cat := range OutlineCategories {
		if len(cmaj.Outlines[cat]) == 0 {
			t.Errorf("Cmaj7 has no %s outlines", cat)
		}
	}
}

func TestAssetIDsAreDeduplicated(t *testing.T) {
	ids := Default().AssetIDs()
	want := []string{
		"bass_c.wav", "bass_g.wav", "drumgroove_135.wav",
		"gtr_cmaj7.wav", "gtr_cmin7.wav", "gtr_g7b9.wav", "gtr_galt.wav",
	}
	if strings.Join(ids, ",") != strings.Join(want, ",") {
		t.Errorf("AssetIDs = %v, want %v", ids, want)
	}
}

func TestAvailableFiltersByCategory(t *testing.T) {
	c := Default()

	dominant := c.Available(map[ChordCategory]bool{DominantSeventh: true})
	if len(dominant) != 2 {
		t.Fatalf("Expected 2 dominant chords, got %d", len(dominant))
	}
	for _, e := range dominant {
		if e.Category != DominantSeventh {
			t.Errorf("%s has category %s", e.Name, e.Category)
		}
	}

	if got := c.Available(map[ChordCategory]bool{}); len(got) != 0 {
		t.Errorf("Expected no chords with empty filter, got %d", len(got))
	}
}

func TestOutlinePool(t *testing.T) {
	e := ChordEntry{
		Name: "X",
		Outlines: map[OutlineCategory][]string{
			Triad:      {"a", "b"},
			Pentatonic: {"c"},
		},
	}
	pool := e.OutlinePool(map[OutlineCategory]bool{Triad: true, Pentatonic: true, PairedTriad: true})
	if strings.Join(pool, ",") != "a,b,c" {
		t.Errorf("pool = %v, want [a b c]", pool)
	}
	if pool := e.OutlinePool(map[OutlineCategory]bool{PairedTriad: true}); len(pool) != 0 {
		t.Errorf("pool = %v, want empty", pool)
	}
}

func TestNewValidation(t *testing.T) {
	valid := ChordEntry{Name: "Cmaj7", Category: MajorSeventh, PrimaryAudioID: "c.wav"}

	tests := []struct {
		name    string
		drums   string
		entries []ChordEntry
		wantErr string
	}{
		{"missing drums", "", []ChordEntry{valid}, "'drums' is required"},
		{"no chords", "d.wav", nil, "'chords' cannot be empty"},
		{"missing name", "d.wav", []ChordEntry{{Category: MajorSeventh, PrimaryAudioID: "c.wav"}}, "'name' is required"},
		{"bad category", "d.wav", []ChordEntry{{Name: "X", Category: "sixth", PrimaryAudioID: "c.wav"}}, "unknown category"},
		{"missing audio", "d.wav", []ChordEntry{{Name: "X", Category: MajorSeventh}}, "'audio' is required"},
		{"duplicate", "d.wav", []ChordEntry{valid, valid}, "duplicate name 'Cmaj7'"},
		{"bad outline category", "d.wav", []ChordEntry{{
			Name: "X", Category: MajorSeventh, PrimaryAudioID: "c.wav",
			Outlines: map[OutlineCategory][]string{"arpeggio": {"x"}},
		}}, "unknown outline category"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.drums, tt.entries)
			if err == nil {
				t.Fatalf("Expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	doc := `drums: drums.wav
chords:
  - name: Dm7
    category: minor-seventh
    audio: dm7.wav
    outlines:
      pentatonic: [D minor pentatonic]
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	e, ok := c.Lookup("Dm7")
	if !ok {
		t.Fatal("Dm7 not found")
	}
	if e.HasSecondary() {
		t.Error("Dm7 should not have a bass layer")
	}
	if got := e.Outlines[Pentatonic]; len(got) != 1 || got[0] != "D minor pentatonic" {
		t.Errorf("unexpected outlines %v", got)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}

	if c, err := LoadOrDefault(path); err != nil || len(c.Entries()) != 1 {
		t.Errorf("LoadOrDefault(path) = %v, %v", c, err)
	}
	if c, err := LoadOrDefault(""); err != nil || len(c.Entries()) != len(Default().Entries()) {
		t.Errorf("LoadOrDefault(\"\") should return the built-in catalog, got %v", err)
	}
}

package scheduler

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/audiolibrelab/improvlab/internal/audio"
	"github.com/audiolibrelab/improvlab/internal/audio/audiotest"
	"github.com/audiolibrelab/improvlab/internal/catalog"
	"github.com/audiolibrelab/improvlab/internal/clock/clocktest"
	"github.com/audiolibrelab/improvlab/internal/selection"
	"github.com/audiolibrelab/improvlab/internal/settings"
	"github.com/audiolibrelab/improvlab/internal/tempo"
	"github.com/audiolibrelab/improvlab/internal/transcript"
)

type harness struct {
	sched  *Scheduler
	pool   *audio.Pool
	output *audio.NullOutput
	store  *settings.Store
	clock  *clocktest.Fake
	log    *transcript.Memory
}

// newHarness builds a scheduler over cat with every asset in present
// available, or every catalog asset when present is nil.
func newHarness(t *testing.T, cat *catalog.Catalog, present []string) *harness {
	t.Helper()
	if present == nil {
		present = cat.AssetIDs()
	}
	fs := afero.NewMemMapFs()
	data := audiotest.WAV(t, 44100, 441, 0.5)
	for _, id := range present {
		afero.WriteFile(fs, "/sounds/"+id, data, 0644)
	}

	out := audio.NewNullOutput()
	pool := audio.NewPool(audio.NewFileStore(fs, "/sounds"), out)
	pool.Preload(context.Background(), cat.AssetIDs())

	store, err := settings.NewStore(settings.Default(), settings.StaticEntitlement(true))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	fake := clocktest.NewFake()
	log := transcript.NewMemory(0)
	sched := New(cat, pool, store,
		WithClock(fake),
		WithSelector(selection.NewEngine(selection.WithRand(rand.New(rand.NewPCG(7, 11))))),
		WithTranscript(log),
	)
	t.Cleanup(sched.Close)

	return &harness{sched: sched, pool: pool, output: out, store: store, clock: fake, log: log}
}

func mustCatalog(t *testing.T, entries ...catalog.ChordEntry) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New("drums.wav", entries)
	if err != nil {
		t.Fatalf("catalog.New failed: %v", err)
	}
	return cat
}

func TestStartAndStop(t *testing.T) {
	h := newHarness(t, catalog.Default(), nil)

	if err := h.sched.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	snap := h.sched.Snapshot()
	if snap.Status != StatusPlaying {
		t.Fatalf("Expected PLAYING, got %s", snap.Status)
	}
	if snap.Chord == "" || snap.Outline == "" || snap.SessionID == "" {
		t.Errorf("Expected an active selection, got %+v", snap)
	}
	if snap.ActiveSources != 3 || h.pool.ActiveSources() != 3 {
		t.Errorf("Expected drums, harmony and bass playing, got %d/%d", snap.ActiveSources, h.pool.ActiveSources())
	}
	if h.clock.Pending() != 2 {
		t.Errorf("Expected preview and window timers, got %d", h.clock.Pending())
	}
	if h.log.Len() != 1 || h.log.Chords()[0] != snap.Chord {
		t.Errorf("Expected the first chord in the transcript, got %v", h.log.Chords())
	}

	h.sched.Stop()
	stopped := h.sched.Snapshot()
	if stopped.Status != StatusIdle {
		t.Errorf("Expected IDLE, got %s", stopped.Status)
	}
	if h.pool.ActiveSources() != 0 || stopped.ActiveSources != 0 {
		t.Errorf("Expected no sources after stop, got %d", h.pool.ActiveSources())
	}
	if h.clock.Pending() != 0 {
		t.Errorf("Expected timers cancelled, got %d pending", h.clock.Pending())
	}
	if stopped.Chord != snap.Chord || stopped.Outline != snap.Outline {
		t.Errorf("Chord and outline should stay visible after stop, got %+v", stopped)
	}
	if stopped.Upcoming != "" {
		t.Errorf("Upcoming should be cleared, got %q", stopped.Upcoming)
	}

	h.clock.Advance(time.Minute)
	if h.log.Len() != 1 || h.pool.ActiveSources() != 0 {
		t.Error("Nothing should happen after stop")
	}
}

func TestStartTwiceIsNoop(t *testing.T) {
	h := newHarness(t, catalog.Default(), nil)

	h.sched.Start()
	first := h.sched.Snapshot()
	if err := h.sched.Start(); err != nil {
		t.Fatalf("Second Start failed: %v", err)
	}
	second := h.sched.Snapshot()

	if first.SessionID != second.SessionID || first.Chord != second.Chord || first.Outline != second.Outline {
		t.Errorf("Second Start changed the session: %+v vs %+v", first, second)
	}
	if h.pool.ActiveSources() != 3 {
		t.Errorf("Expected a single set of sources, got %d", h.pool.ActiveSources())
	}
	if h.clock.Pending() != 2 {
		t.Errorf("Expected a single set of timers, got %d", h.clock.Pending())
	}
}

func TestStopWhileIdle(t *testing.T) {
	h := newHarness(t, catalog.Default(), nil)

	h.sched.Stop()
	h.sched.Stop()
	snap := h.sched.Snapshot()
	if snap.Status != StatusIdle || snap.Chord != "" || snap.Message != "" {
		t.Errorf("Stop while idle should change nothing, got %+v", snap)
	}
	if snap.BarsPerChord != 4 || snap.BPM != tempo.DefaultBPM {
		t.Errorf("Idle snapshot should report the configuration, got %+v", snap)
	}
}

func TestPreviewAndWindowTick(t *testing.T) {
	h := newHarness(t, catalog.Default(), nil)
	if err := h.store.SetBarsPerChord(8); err != nil {
		t.Fatalf("SetBarsPerChord failed: %v", err)
	}

	h.sched.Start()
	delay := tempo.PreviewDelay(tempo.DefaultBPM, 8)
	if ms := tempo.Milliseconds(delay); ms < 10666 || ms > 10667 {
		t.Fatalf("Expected preview at about 10666ms, got %f", ms)
	}

	h.clock.Advance(delay - time.Millisecond)
	if got := h.sched.Snapshot().Upcoming; got != "" {
		t.Fatalf("Preview fired early: %q", got)
	}

	h.clock.Advance(time.Millisecond)
	upcoming := h.sched.Snapshot().Upcoming
	if upcoming == "" {
		t.Fatal("Expected an upcoming announcement")
	}
	if h.log.Len() != 1 {
		t.Errorf("Preview must not activate the chord, transcript has %d entries", h.log.Len())
	}

	h.clock.Advance(tempo.PreviewLead(tempo.DefaultBPM))
	snap := h.sched.Snapshot()
	if got := snap.Chord + ": " + snap.Outline; got != upcoming {
		t.Errorf("Expected %q to become active, got %q", upcoming, got)
	}
	if snap.Upcoming != "" {
		t.Errorf("Upcoming should reset for the new window, got %q", snap.Upcoming)
	}
	if h.log.Len() != 2 {
		t.Errorf("Expected 2 transcript entries, got %d", h.log.Len())
	}
	if h.pool.ActiveSources() != 3 {
		t.Errorf("Old sources should be replaced, got %d", h.pool.ActiveSources())
	}
}

func TestBarsChangeAppliesAtNextWindow(t *testing.T) {
	h := newHarness(t, catalog.Default(), nil)

	h.sched.Start()
	window4 := tempo.WindowDuration(tempo.DefaultBPM, 4)

	h.clock.Advance(time.Second)
	if err := h.store.SetBarsPerChord(16); err != nil {
		t.Fatalf("SetBarsPerChord failed: %v", err)
	}
	if got := h.sched.Snapshot().WindowDuration; got != window4 {
		t.Errorf("Armed window changed mid-flight: %v", got)
	}

	h.clock.Advance(window4 - time.Second - time.Millisecond)
	if h.log.Len() != 1 {
		t.Fatalf("Window ended early, transcript has %d entries", h.log.Len())
	}

	h.clock.Advance(time.Millisecond)
	if h.log.Len() != 2 {
		t.Fatalf("Window did not end on time, transcript has %d entries", h.log.Len())
	}
	snap := h.sched.Snapshot()
	if snap.BarsPerChord != 16 || snap.WindowDuration != tempo.WindowDuration(tempo.DefaultBPM, 16) {
		t.Errorf("Next window should use 16 bars, got %+v", snap)
	}
}

func TestStaleCallbacksAreIgnored(t *testing.T) {
	h := newHarness(t, catalog.Default(), nil)

	h.sched.Start()
	h.sched.mu.Lock()
	stale := h.sched.generation
	h.sched.mu.Unlock()

	h.sched.Stop()
	h.sched.windowEnd(stale)
	h.sched.preview(stale)
	if h.pool.ActiveSources() != 0 || h.log.Len() != 1 {
		t.Error("A stale callback revived a stopped session")
	}

	h.sched.Start()
	before := h.sched.Snapshot()
	h.sched.preview(stale)
	h.sched.windowEnd(stale)
	after := h.sched.Snapshot()
	if after.Upcoming != "" || after.Chord != before.Chord || after.Outline != before.Outline {
		t.Errorf("A stale callback changed the new session: %+v", after)
	}
	if h.log.Len() != 2 {
		t.Errorf("Expected one entry per start, got %d", h.log.Len())
	}
}

func TestStartRejectedWithoutOutlines(t *testing.T) {
	cat := mustCatalog(t, catalog.ChordEntry{
		Name:           "Cmaj7",
		Category:       catalog.MajorSeventh,
		PrimaryAudioID: "gtr.wav",
		Outlines:       map[catalog.OutlineCategory][]string{catalog.Pentatonic: {"Emin pentatonic"}},
	})
	h := newHarness(t, cat, nil)
	h.store.SetOutlineCategories([]catalog.OutlineCategory{catalog.Triad})

	err := h.sched.Start()
	if !errors.Is(err, ErrNoOutlines) {
		t.Fatalf("Expected ErrNoOutlines, got %v", err)
	}
	snap := h.sched.Snapshot()
	if snap.Status != StatusIdle || snap.Message != MessageNoOutlines {
		t.Errorf("Expected idle with message, got %+v", snap)
	}
	if h.pool.ActiveSources() != 0 || h.clock.Pending() != 0 {
		t.Error("A rejected start must not start audio or timers")
	}
}

func TestStartPreconditions(t *testing.T) {
	t.Run("no chord categories", func(t *testing.T) {
		h := newHarness(t, catalog.Default(), nil)
		h.store.SetChordCategories(nil)
		if err := h.sched.Start(); !errors.Is(err, ErrNoChords) {
			t.Errorf("Expected ErrNoChords, got %v", err)
		}
	})

	t.Run("no outline categories", func(t *testing.T) {
		h := newHarness(t, catalog.Default(), nil)
		h.store.SetOutlineCategories(nil)
		if err := h.sched.Start(); !errors.Is(err, ErrNoOutlineCategories) {
			t.Errorf("Expected ErrNoOutlineCategories, got %v", err)
		}
	})

	t.Run("audio not preloaded", func(t *testing.T) {
		cat := catalog.Default()
		pool := audio.NewPool(audio.NewFileStore(afero.NewMemMapFs(), "/"), audio.NewNullOutput())
		store, _ := settings.NewStore(settings.Default(), nil)
		sched := New(cat, pool, store, WithClock(clocktest.NewFake()))
		defer sched.Close()

		if err := sched.Start(); !errors.Is(err, ErrAudioNotReady) {
			t.Errorf("Expected ErrAudioNotReady, got %v", err)
		}
		if snap := sched.Snapshot(); snap.Status != StatusIdle || snap.Message != MessageAudioLoading {
			t.Errorf("Unexpected state: %+v", snap)
		}
	})

	t.Run("audio output unavailable", func(t *testing.T) {
		h := newHarness(t, catalog.Default(), nil)
		h.output.FailWith(errors.New("blocked until user gesture"))

		err := h.sched.Start()
		if !errors.Is(err, ErrAudioNotReady) || !errors.Is(err, audio.ErrAudioUnavailable) {
			t.Errorf("Expected audio unavailable, got %v", err)
		}
		if snap := h.sched.Snapshot(); snap.Status != StatusIdle || snap.Message != MessageAudioUnavailable {
			t.Errorf("Unexpected state: %+v", snap)
		}

		h.output.FailWith(nil)
		if err := h.sched.Start(); err != nil {
			t.Errorf("Start should succeed once the output opens, got %v", err)
		}
		if snap := h.sched.Snapshot(); snap.Message != "" {
			t.Errorf("Message should clear on start, got %q", snap.Message)
		}
	})
}

func TestMissingLayerIsSkipped(t *testing.T) {
	cat := mustCatalog(t, catalog.ChordEntry{
		Name:             "Cmaj7",
		Category:         catalog.MajorSeventh,
		PrimaryAudioID:   "gtr.wav",
		SecondaryAudioID: "bass.wav",
		Outlines:         map[catalog.OutlineCategory][]string{catalog.Triad: {"G major triad"}},
	})
	h := newHarness(t, cat, []string{"drums.wav", "gtr.wav"})

	if err := h.sched.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if got := h.sched.Snapshot().ActiveSources; got != 2 {
		t.Errorf("Expected drums and harmony only, got %d", got)
	}
}

func TestSuspendAndResume(t *testing.T) {
	cat := mustCatalog(t,
		catalog.ChordEntry{
			Name:           "Cmaj7",
			Category:       catalog.MajorSeventh,
			PrimaryAudioID: "gtr_c.wav",
			Outlines:       map[catalog.OutlineCategory][]string{catalog.Triad: {"G major triad"}},
		},
		catalog.ChordEntry{
			Name:           "Cmin7",
			Category:       catalog.MinorSeventh,
			PrimaryAudioID: "gtr_cm.wav",
			Outlines:       map[catalog.OutlineCategory][]string{catalog.Pentatonic: {"Cmin pentatonic"}},
		},
	)
	h := newHarness(t, cat, nil)
	h.sched.Start()

	if err := h.store.SetOutlineCategories([]catalog.OutlineCategory{catalog.PairedTriad}); err != nil {
		t.Fatalf("SetOutlineCategories failed: %v", err)
	}

	window := tempo.WindowDuration(tempo.DefaultBPM, 4)
	h.clock.Advance(tempo.PreviewDelay(tempo.DefaultBPM, 4))
	if got := h.sched.Snapshot().Upcoming; got != MessageNoOutlines {
		t.Errorf("Expected explanatory upcoming message, got %q", got)
	}

	h.clock.Advance(window)
	snap := h.sched.Snapshot()
	if !snap.Suspended || snap.Status != StatusPlaying {
		t.Fatalf("Expected a suspended session, got %+v", snap)
	}
	if snap.ActiveSources != 2 {
		t.Errorf("The current chord should keep looping, got %d sources", snap.ActiveSources)
	}
	if h.clock.Pending() != 0 {
		t.Errorf("No timers should be armed while suspended, got %d", h.clock.Pending())
	}

	h.clock.Advance(10 * window)
	if h.log.Len() != 1 {
		t.Errorf("Suspended session advanced, transcript has %d entries", h.log.Len())
	}

	if err := h.store.SetOutlineCategories([]catalog.OutlineCategory{catalog.Triad}); err != nil {
		t.Fatalf("SetOutlineCategories failed: %v", err)
	}
	snap = h.sched.Snapshot()
	if snap.Suspended || snap.Message != "" {
		t.Errorf("Expected resumed session, got %+v", snap)
	}
	if snap.Chord != "Cmaj7" || h.log.Len() != 2 {
		t.Errorf("Expected Cmaj7 activated on resume, got %q with %d entries", snap.Chord, h.log.Len())
	}
	if h.clock.Pending() != 2 {
		t.Errorf("Expected a new window to be armed, got %d timers", h.clock.Pending())
	}
}

func TestCloseDetachesFromSettings(t *testing.T) {
	h := newHarness(t, catalog.Default(), nil)
	h.sched.Start()
	h.sched.Close()

	if h.sched.Snapshot().Status != StatusIdle {
		t.Error("Close should stop the session")
	}
	h.store.SetBarsPerChord(8)
	if h.pool.ActiveSources() != 0 || h.clock.Pending() != 0 {
		t.Error("A closed scheduler must not react to settings changes")
	}
}

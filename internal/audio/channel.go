package audio

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/gopxl/beep/v2"
)

// Channel is a mix bus with its own gain stage.
type Channel string

const (
	ChannelDrums   Channel = "drums"
	ChannelHarmony Channel = "harmony"
	ChannelBass    Channel = "bass"
)

// Channels lists the mix buses in display order.
var Channels = []Channel{ChannelDrums, ChannelHarmony, ChannelBass}

// ParseChannel accepts a channel name, including the aliases "primary" and
// "secondary" for harmony and bass.
func ParseChannel(name string) (Channel, error) {
	switch name {
	case "drums":
		return ChannelDrums, nil
	case "harmony", "primary":
		return ChannelHarmony, nil
	case "bass", "secondary":
		return ChannelBass, nil
	default:
		return "", fmt.Errorf("unknown channel '%s' (expected drums, harmony or bass)", name)
	}
}

// Gains reports the current mixer levels.
type Gains struct {
	Master  float64 `json:"master" yaml:"master"`
	Drums   float64 `json:"drums" yaml:"drums"`
	Harmony float64 `json:"harmony" yaml:"harmony"`
	Bass    float64 `json:"bass" yaml:"bass"`
}

func clampGain(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// gainStage scales whatever its streamer produces. The level is read on
// every buffer so changes apply to sound that is already playing.
type gainStage struct {
	s    beep.Streamer
	bits atomic.Uint64
}

func newGainStage(s beep.Streamer, level float64) *gainStage {
	g := &gainStage{s: s}
	g.set(level)
	return g
}

func (g *gainStage) set(level float64) {
	g.bits.Store(math.Float64bits(clampGain(level)))
}

func (g *gainStage) level() float64 {
	return math.Float64frombits(g.bits.Load())
}

func (g *gainStage) Stream(samples [][2]float64) (int, bool) {
	n, ok := g.s.Stream(samples)
	level := g.level()
	for i := 0; i < n; i++ {
		samples[i][0] *= level
		samples[i][1] *= level
	}
	return n, ok
}

func (g *gainStage) Err() error { return g.s.Err() }

// bus mixes the sources of one channel. It never ends: when nothing is
// playing it produces silence so the master mixer keeps it. The bus owns
// its sources and drops stopped ones itself, so an output that is never
// pulled does not accumulate them.
type bus struct {
	mu      sync.Mutex
	sources []*Source
	mixer   beep.Mixer
}

func (b *bus) add(src *Source) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sources = append(b.sources, src)
	b.rebuild()
}

func (b *bus) remove(src *Source) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.sources {
		if s == src {
			b.sources = append(b.sources[:i], b.sources[i+1:]...)
			break
		}
	}
	b.rebuild()
}

// rebuild resets the mixer to the sources still playing. Must be called
// with mu held.
func (b *bus) rebuild() {
	live := b.sources[:0]
	for _, s := range b.sources {
		if s.Playing() {
			live = append(live, s)
		}
	}
	for i := len(live); i < len(b.sources); i++ {
		b.sources[i] = nil
	}
	b.sources = live

	b.mixer = beep.Mixer{}
	for _, s := range b.sources {
		b.mixer.Add(s)
	}
}

// len is the number of sources the bus holds.
func (b *bus) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sources)
}

func (b *bus) Stream(samples [][2]float64) (int, bool) {
	b.mu.Lock()
	n, _ := b.mixer.Stream(samples)
	b.mu.Unlock()
	for i := n; i < len(samples); i++ {
		samples[i] = [2]float64{}
	}
	return len(samples), true
}

func (b *bus) Err() error { return nil }

// graph renders the channel mix under a lock that is also held while
// sources are added or removed, so layers started together begin on the
// same frame.
type graph struct {
	mu sync.Mutex
	s  beep.Streamer
}

func (g *graph) Stream(samples [][2]float64) (int, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.s.Stream(samples)
}

func (g *graph) Err() error { return g.s.Err() }

package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/gopxl/beep/v2"
	"golang.org/x/sync/errgroup"
)

// ErrAssetUnavailable is returned when starting an asset that was never
// loaded successfully.
var ErrAssetUnavailable = errors.New("audio asset unavailable")

// ErrNotPreloaded is returned by Activate before Preload has been attempted.
var ErrNotPreloaded = errors.New("audio assets have not been loaded yet")

const defaultLoadConcurrency = 4

// PreloadResult summarises a Preload call.
type PreloadResult struct {
	Loaded   []string `json:"loaded"`
	Warnings []string `json:"warnings,omitempty"`
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithSampleRate sets the rate every asset is decoded to.
func WithSampleRate(rate int) PoolOption {
	return func(p *Pool) {
		if rate > 0 {
			p.format.SampleRate = beep.SampleRate(rate)
		}
	}
}

// WithExtensions restricts the accepted asset encodings.
func WithExtensions(exts []string) PoolOption {
	return func(p *Pool) {
		p.extensions = exts
	}
}

// WithLoadConcurrency bounds concurrent asset loads.
func WithLoadConcurrency(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithGains sets the initial mixer levels.
func WithGains(g Gains) PoolOption {
	return func(p *Pool) {
		p.initial = g
	}
}

// Pool loads and caches decoded assets and owns the mixer graph:
// one gain stage per channel, all feeding a master gain stage.
type Pool struct {
	store       AssetStore
	output      Output
	format      beep.Format
	extensions  []string
	concurrency int
	initial     Gains
	decoder     *Decoder

	mu        sync.RWMutex
	buffers   map[string]*beep.Buffer
	failures  map[string]error
	attempted bool
	opened    bool
	live      map[*Source]struct{}

	graph  *graph
	buses  map[Channel]*bus
	stages map[Channel]*gainStage
	master *gainStage
}

// Layer is one asset looping on a channel.
type Layer struct {
	AssetID string
	Channel Channel
}

// NewPool creates a pool reading from store and playing through output.
func NewPool(store AssetStore, output Output, opts ...PoolOption) *Pool {
	p := &Pool{
		store:       store,
		output:      output,
		format:      beep.Format{SampleRate: 44100, NumChannels: 2, Precision: 2},
		concurrency: defaultLoadConcurrency,
		initial:     Gains{Master: 1, Drums: 1, Harmony: 1, Bass: 1},
		buffers:     make(map[string]*beep.Buffer),
		failures:    make(map[string]error),
		live:        make(map[*Source]struct{}),
		buses:       make(map[Channel]*bus),
		stages:      make(map[Channel]*gainStage),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.decoder = NewDecoder(p.format, p.extensions)

	levels := map[Channel]float64{
		ChannelDrums:   p.initial.Drums,
		ChannelHarmony: p.initial.Harmony,
		ChannelBass:    p.initial.Bass,
	}
	var master beep.Mixer
	for _, ch := range Channels {
		b := &bus{}
		stage := newGainStage(b, levels[ch])
		p.buses[ch] = b
		p.stages[ch] = stage
		master.Add(stage)
	}
	p.graph = &graph{s: &master}
	p.master = newGainStage(p.graph, p.initial.Master)
	return p
}

// Format is the format every buffer is decoded to.
func (p *Pool) Format() beep.Format { return p.format }

// Preload fetches and decodes ids concurrently. Ids already loaded are
// skipped. Failures are recorded per asset and reported as warnings; they
// never stop the other loads.
func (p *Pool) Preload(ctx context.Context, ids []string) PreloadResult {
	var (
		g       errgroup.Group
		resMu   sync.Mutex
		result  PreloadResult
		pending []string
	)
	g.SetLimit(p.concurrency)

	p.mu.RLock()
	for _, id := range ids {
		if _, ok := p.buffers[id]; !ok {
			pending = append(pending, id)
		}
	}
	p.mu.RUnlock()

	for _, id := range pending {
		g.Go(func() error {
			buf, err := p.load(ctx, id)

			p.mu.Lock()
			if err != nil {
				p.failures[id] = err
			} else {
				p.buffers[id] = buf
				delete(p.failures, id)
			}
			p.mu.Unlock()

			resMu.Lock()
			defer resMu.Unlock()
			if err != nil {
				slog.Warn("Audio asset failed to load", "asset", id, "error", err)
				result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %v", id, err))
				return nil
			}
			slog.Debug("Audio asset loaded", "asset", id, "frames", buf.Len())
			result.Loaded = append(result.Loaded, id)
			return nil
		})
	}
	_ = g.Wait()

	p.mu.Lock()
	p.attempted = true
	p.mu.Unlock()

	sort.Strings(result.Loaded)
	sort.Strings(result.Warnings)
	return result
}

func (p *Pool) load(ctx context.Context, id string) (*beep.Buffer, error) {
	data, err := p.store.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	return p.decoder.Decode(id, data)
}

// Ready reports whether Preload has run at least once, whatever the
// outcome of the individual assets.
func (p *Pool) Ready() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.attempted
}

// Loaded reports whether id decoded successfully.
func (p *Pool) Loaded(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.buffers[id]
	return ok
}

// Failures returns the load error of every asset that failed.
func (p *Pool) Failures() map[string]error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]error, len(p.failures))
	for id, err := range p.failures {
		out[id] = err
	}
	return out
}

// Activate opens the output once preloading has been attempted. It is
// called on every user-initiated start; a failure leaves the pool closed
// so the next start tries again.
func (p *Pool) Activate() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.attempted {
		return ErrNotPreloaded
	}
	if p.opened {
		return nil
	}
	if err := p.output.Open(p.format, p.master); err != nil {
		return err
	}
	p.opened = true
	slog.Debug("Audio output opened", "backend", p.output.Type(), "sample_rate", int(p.format.SampleRate))
	return nil
}

// StartLoop starts id looping forever through channel.
func (p *Pool) StartLoop(id string, channel Channel) (*Source, error) {
	sources, err := p.StartLoops([]Layer{{AssetID: id, Channel: channel}})
	if len(sources) == 0 {
		return nil, err
	}
	return sources[0], nil
}

// StartLoops starts every layer on the same output frame. Layers whose
// asset is unavailable are skipped; the returned error joins their
// failures and the started sources are still returned.
func (p *Pool) StartLoops(layers []Layer) ([]*Source, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	type pending struct {
		src *Source
		bus *bus
	}
	var (
		ready []pending
		errs  []error
	)
	for _, l := range layers {
		buf, ok := p.buffers[l.AssetID]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrAssetUnavailable, l.AssetID))
			continue
		}
		b, ok := p.buses[l.Channel]
		if !ok {
			errs = append(errs, fmt.Errorf("unknown channel '%s'", l.Channel))
			continue
		}
		src := newSource(l.AssetID, l.Channel, beep.Loop(-1, buf.Streamer(0, buf.Len())))
		ready = append(ready, pending{src: src, bus: b})
	}

	sources := make([]*Source, 0, len(ready))
	p.graph.mu.Lock()
	for _, r := range ready {
		r.bus.add(r.src)
		p.live[r.src] = struct{}{}
		sources = append(sources, r.src)
	}
	p.graph.mu.Unlock()

	return sources, errors.Join(errs...)
}

// StopAll stops every given source and removes it from its bus. Nil and
// already stopped sources are ignored.
func (p *Pool) StopAll(sources []*Source) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.graph.mu.Lock()
	defer p.graph.mu.Unlock()
	for _, src := range sources {
		if src == nil {
			continue
		}
		src.Stop()
		if b, ok := p.buses[src.Channel()]; ok {
			b.remove(src)
		}
		delete(p.live, src)
	}
}

// ActiveSources counts sources started and not yet stopped.
func (p *Pool) ActiveSources() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.live)
}

// SetChannelGain sets a channel level, clamped to [0,1].
func (p *Pool) SetChannelGain(channel Channel, level float64) error {
	stage, ok := p.stages[channel]
	if !ok {
		return fmt.Errorf("unknown channel '%s'", channel)
	}
	stage.set(level)
	return nil
}

// SetMasterGain sets the master level, clamped to [0,1].
func (p *Pool) SetMasterGain(level float64) {
	p.master.set(level)
}

// Gains returns the current levels.
func (p *Pool) Gains() Gains {
	return Gains{
		Master:  p.master.level(),
		Drums:   p.stages[ChannelDrums].level(),
		Harmony: p.stages[ChannelHarmony].level(),
		Bass:    p.stages[ChannelBass].level(),
	}
}

// Close stops every source and closes the output.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.graph.mu.Lock()
	for src := range p.live {
		src.Stop()
		if b, ok := p.buses[src.Channel()]; ok {
			b.remove(src)
		}
	}
	p.graph.mu.Unlock()
	p.live = make(map[*Source]struct{})
	if !p.opened {
		return nil
	}
	p.opened = false
	return p.output.Close()
}

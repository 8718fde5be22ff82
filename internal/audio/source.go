package audio

import (
	"sync/atomic"

	"github.com/gopxl/beep/v2"
)

// Source is a handle to one looping asset playing through a channel.
type Source struct {
	assetID string
	channel Channel
	s       beep.Streamer
	stopped atomic.Bool
}

func newSource(assetID string, channel Channel, s beep.Streamer) *Source {
	return &Source{assetID: assetID, channel: channel, s: s}
}

// AssetID names the asset this source plays.
func (s *Source) AssetID() string { return s.assetID }

// Channel is the bus the source is routed through.
func (s *Source) Channel() Channel { return s.channel }

// Playing reports whether Stop has not been called.
func (s *Source) Playing() bool { return !s.stopped.Load() }

// Stop silences the source. It reports whether this call stopped it;
// stopping an already stopped source does nothing.
func (s *Source) Stop() bool {
	return s.stopped.CompareAndSwap(false, true)
}

// Stream ends the source as soon as it is stopped, which drops it from its bus.
func (s *Source) Stream(samples [][2]float64) (int, bool) {
	if s.stopped.Load() {
		return 0, false
	}
	return s.s.Stream(samples)
}

func (s *Source) Err() error { return s.s.Err() }

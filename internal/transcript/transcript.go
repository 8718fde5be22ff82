// Package transcript records the chord and outline pairs a practice
// session has played.
package transcript

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultCapacity bounds the in-memory transcript.
const DefaultCapacity = 500

// Entry is one activated chord and outline.
type Entry struct {
	Time      time.Time `json:"time"`
	SessionID string    `json:"session_id,omitempty"`
	Chord     string    `json:"chord"`
	Outline   string    `json:"outline"`
}

// Sink receives entries as they are activated.
type Sink interface {
	Append(e Entry) error
}

// Memory keeps the most recent entries in memory.
type Memory struct {
	mu       sync.RWMutex
	capacity int
	entries  []Entry
}

// NewMemory creates a transcript holding at most capacity entries. A
// non-positive capacity uses DefaultCapacity.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Memory{capacity: capacity}
}

func (m *Memory) Append(e Entry) error {
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	if over := len(m.entries) - m.capacity; over > 0 {
		m.entries = append(m.entries[:0:0], m.entries[over:]...)
	}
	return nil
}

// Entries returns a copy of the recorded entries, oldest first.
func (m *Memory) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Entry(nil), m.entries...)
}

// Chords returns the chord names in order.
func (m *Memory) Chords() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Chord
	}
	return out
}

// Outlines returns the outlines in order.
func (m *Memory) Outlines() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Outline
	}
	return out
}

// Len is the number of entries held.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Reset discards every entry.
func (m *Memory) Reset() {
	m.mu.Lock()
	m.entries = nil
	m.mu.Unlock()
}

// Multi fans entries out to several sinks. A failing sink is logged and
// does not prevent delivery to the others.
type Multi []Sink

func (m Multi) Append(e Entry) error {
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Append(e); err != nil {
			slog.Warn("Transcript sink failed", "chord", e.Chord, "error", err)
		}
	}
	return nil
}

// Package tui implements the practice screen using Bubble Tea.
package tui

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/audiolibrelab/improvlab/internal/catalog"
	"github.com/audiolibrelab/improvlab/internal/scheduler"
	"github.com/audiolibrelab/improvlab/internal/service"
	"github.com/audiolibrelab/improvlab/internal/settings"
)

// RefreshInterval is how often the screen polls the session state.
const RefreshInterval = 200 * time.Millisecond

const (
	gainStep         = 0.1
	progressWidth    = 40
	transcriptLength = 12
)

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(RefreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Model is the Bubble Tea model of the practice screen.
type Model struct {
	svc  service.Service
	keys KeyMap
	help help.Model

	status         service.Status
	message        string
	showTranscript bool
	width          int
	now            func() time.Time
	quitting       bool
}

// New creates a practice screen driving svc.
func New(svc service.Service) Model {
	m := Model{
		svc:  svc,
		keys: DefaultKeyMap,
		help: help.New(),
		now:  time.Now,
	}
	m.status = svc.GetStatus()
	return m
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.status = m.svc.GetStatus()
		return m, tick()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		cmd := m.handleKey(msg)
		m.status = m.svc.GetStatus()
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	m.message = ""

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.svc.Stop()
		m.quitting = true
		return tea.Quit

	case key.Matches(msg, m.keys.Toggle):
		if m.svc.GetStatus().Status == scheduler.StatusPlaying {
			m.svc.Stop()
			return nil
		}
		if err := m.svc.Start(); err != nil {
			slog.Debug("Start rejected", "error", err)
		}

	case key.Matches(msg, m.keys.Bars4):
		m.setError(m.svc.SetBarsPerChord(4))
	case key.Matches(msg, m.keys.Bars8):
		m.setError(m.svc.SetBarsPerChord(8))
	case key.Matches(msg, m.keys.Bars16):
		m.setError(m.svc.SetBarsPerChord(16))

	case key.Matches(msg, m.keys.Major):
		m.toggleChordCategory(catalog.MajorSeventh)
	case key.Matches(msg, m.keys.Minor):
		m.toggleChordCategory(catalog.MinorSeventh)
	case key.Matches(msg, m.keys.Dominant):
		m.toggleChordCategory(catalog.DominantSeventh)

	case key.Matches(msg, m.keys.Triads):
		m.toggleOutlineCategory(catalog.Triad)
	case key.Matches(msg, m.keys.Extensions):
		m.toggleOutlineCategory(catalog.TriadPlusExtension)
	case key.Matches(msg, m.keys.Pentatonic):
		m.toggleOutlineCategory(catalog.Pentatonic)
	case key.Matches(msg, m.keys.Paired):
		m.toggleOutlineCategory(catalog.PairedTriad)

	case key.Matches(msg, m.keys.LouderMaster):
		m.svc.SetMasterGain(m.svc.GetGains().Master + gainStep)
	case key.Matches(msg, m.keys.SofterMaster):
		m.svc.SetMasterGain(m.svc.GetGains().Master - gainStep)

	case key.Matches(msg, m.keys.Transcript):
		m.showTranscript = !m.showTranscript
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return nil
}

func (m *Model) toggleChordCategory(cat catalog.ChordCategory) {
	cfg := m.svc.GetSettings()
	cfg.ChordCategories[cat] = !cfg.ChordCategories[cat]
	m.setError(m.svc.SetChordCategories(cfg.EnabledChordCategories()))
}

func (m *Model) toggleOutlineCategory(cat catalog.OutlineCategory) {
	cfg := m.svc.GetSettings()
	cfg.OutlineCategories[cat] = !cfg.OutlineCategories[cat]
	m.setError(m.svc.SetOutlineCategories(cfg.EnabledOutlineCategories()))
}

func (m *Model) setError(err error) {
	switch {
	case err == nil:
		m.message = ""
	case errors.Is(err, settings.ErrRequiresFullFeatureSet):
		m.message = "Available with the full feature set"
	default:
		m.message = err.Error()
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	s := m.status
	var b strings.Builder

	badge := idleStyle.Render(string(s.Status))
	if s.Status == scheduler.StatusPlaying {
		badge = playingStyle.Render(string(s.Status))
	}
	b.WriteString(titleStyle.Render("ImprovLab") + "  " + badge + "  ")
	b.WriteString(dimStyle.Render(fmt.Sprintf("%d bars @ %.0f BPM", s.BarsPerChord, s.BPM)))
	b.WriteString("\n\n")

	chord := s.Chord
	if chord == "" {
		chord = "-"
	}
	b.WriteString(chordStyle.Render(chord) + "\n")
	b.WriteString(outlineStyle.Render(s.Outline) + "\n\n")

	if s.Upcoming != "" {
		b.WriteString(dimStyle.Render("Coming up next: ") + s.Upcoming + "\n")
	}
	if s.Status == scheduler.StatusPlaying {
		b.WriteString(renderProgress(m.progress()) + "\n")
	}

	if s.Message != "" {
		b.WriteString("\n" + warningStyle.Render(s.Message) + "\n")
	}
	if m.message != "" {
		b.WriteString("\n" + errorStyle.Render(m.message) + "\n")
	}
	for _, w := range s.Warnings {
		b.WriteString(dimStyle.Render("! "+w) + "\n")
	}

	b.WriteString("\n" + renderFilters(s.Settings) + "\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Mix  master %.0f%%  drums %.0f%%  harmony %.0f%%  bass %.0f%%",
		s.Gains.Master*100, s.Gains.Drums*100, s.Gains.Harmony*100, s.Gains.Bass*100)) + "\n")

	if m.showTranscript {
		b.WriteString("\n" + m.renderTranscript())
	}

	b.WriteString("\n" + m.help.View(m.keys))
	return boxStyle.Render(b.String())
}

// progress is the elapsed fraction of the current chord window.
func (m Model) progress() float64 {
	if m.status.WindowDuration <= 0 || m.status.WindowStartedAt.IsZero() {
		return 0
	}
	p := float64(m.now().Sub(m.status.WindowStartedAt)) / float64(m.status.WindowDuration)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

func renderProgress(p float64) string {
	filled := int(p * progressWidth)
	return progressFullStyle.Render(strings.Repeat("█", filled)) +
		progressEmptyStyle.Render(strings.Repeat("─", progressWidth-filled))
}

func renderFilters(cfg settings.Configuration) string {
	var chords, outlines []string
	for _, cat := range catalog.ChordCategories {
		chords = append(chords, mark(cfg.ChordCategories[cat])+" "+string(cat))
	}
	for _, cat := range catalog.OutlineCategories {
		outlines = append(outlines, mark(cfg.OutlineCategories[cat])+" "+string(cat))
	}
	return "Chords    " + strings.Join(chords, "  ") + "\n" +
		"Outlines  " + strings.Join(outlines, "  ")
}

func mark(on bool) string {
	if on {
		return outlineStyle.Render("●")
	}
	return dimStyle.Render("○")
}

func (m Model) renderTranscript() string {
	entries := m.svc.GetTranscript()
	if len(entries) == 0 {
		return dimStyle.Render("Nothing played yet") + "\n"
	}
	if len(entries) > transcriptLength {
		entries = entries[len(entries)-transcriptLength:]
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Transcript") + "\n")
	for _, e := range entries {
		b.WriteString(fmt.Sprintf("%s  %-8s %s\n", dimStyle.Render(e.Time.Format("15:04:05")), e.Chord, e.Outline))
	}
	return b.String()
}

// IsTTY returns true if stdout is connected to a terminal.
func IsTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Run shows the practice screen until the user quits.
func Run(svc service.Service) error {
	if !IsTTY() {
		return fmt.Errorf("the practice screen needs a terminal, use 'improvlab serve' instead")
	}
	p := tea.NewProgram(New(svc), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

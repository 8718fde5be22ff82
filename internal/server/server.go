package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/audiolibrelab/improvlab/internal/catalog"
	"github.com/audiolibrelab/improvlab/internal/service"
	"github.com/audiolibrelab/improvlab/internal/settings"
	"github.com/audiolibrelab/improvlab/internal/transcript"
)

// Server represents the web server for controlling a practice session
type Server struct {
	service service.Service
	port    string
}

// GenericResponse represents a generic API response
type GenericResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// SettingsResponse is returned after a settings change
type SettingsResponse struct {
	Success  bool                   `json:"success"`
	Message  string                 `json:"message"`
	Settings settings.Configuration `json:"settings"`
}

// ChordInfo describes one catalog entry for the UI
type ChordInfo struct {
	Name     string                                `json:"name"`
	Category catalog.ChordCategory                 `json:"category"`
	HasBass  bool                                  `json:"has_bass"`
	Outlines map[catalog.OutlineCategory][]string `json:"outlines"`
}

// CatalogResponse represents the JSON response for the catalog endpoint
type CatalogResponse struct {
	Chords            []ChordInfo               `json:"chords"`
	TotalCount        int                       `json:"total_count"`
	ChordCategories   []catalog.ChordCategory   `json:"chord_categories"`
	OutlineCategories []catalog.OutlineCategory `json:"outline_categories"`
}

// TranscriptResponse represents the JSON response for the transcript endpoint
type TranscriptResponse struct {
	Entries    []transcript.Entry `json:"entries"`
	TotalCount int                `json:"total_count"`
	Source     string             `json:"source"`
}

// New creates a new web server instance around svc
func New(svc service.Service, port string) *Server {
	return &Server{
		service: svc,
		port:    port,
	}
}

// Handler returns the routes of the control surface
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/start", s.handleStart)
	mux.HandleFunc("/stop", s.handleStop)
	mux.HandleFunc("/settings", s.handleSettings)
	mux.HandleFunc("/mix", s.handleMix)
	mux.HandleFunc("/config/profiles", s.handleProfiles)
	mux.HandleFunc("/api/catalog", s.handleCatalog)
	mux.HandleFunc("/api/transcript", s.handleTranscript)
	return mux
}

// Start starts the web server
func (s *Server) Start() error {
	localIP := getLocalIP()

	slog.Info("Starting ImprovLab Web Server",
		"port", s.port,
		"local_url", fmt.Sprintf("http://%s:%s", localIP, s.port),
		"localhost_url", fmt.Sprintf("http://localhost:%s", s.port))

	srv := &http.Server{Addr: ":" + s.port, Handler: s.Handler()}
	return srv.ListenAndServe()
}

// requireMethod writes a 405 and returns false when r does not use method
func (s *Server) requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusMethodNotAllowed)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   "Method not allowed",
	})
	return false
}

func (s *Server) sendJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// handleIndex serves the main web UI
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write([]byte(indexHTML))
}

// handleStatus returns the current session state
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}
	s.sendJSON(w, s.service.GetStatus())
}

// handleStart starts a practice session (IDLE -> PLAYING)
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}

	if err := s.service.Start(); err != nil {
		status := http.StatusServiceUnavailable
		if service.IsUserError(err) {
			status = http.StatusConflict
		}
		msg := s.service.GetStatus().Message
		if msg == "" {
			msg = err.Error()
		}
		s.sendErrorResponse(w, status, msg, "operation", "start", "error", err)
		return
	}

	snap := s.service.GetStatus()
	s.sendJSON(w, GenericResponse{
		Success: true,
		Message: fmt.Sprintf("Practice started on %s: %s", snap.Chord, snap.Outline),
	})
}

// handleStop stops the practice session (PLAYING -> IDLE)
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	s.service.Stop()
	s.sendJSON(w, GenericResponse{Success: true, Message: "Practice stopped"})
}

// handleSettings changes bars per chord and the category filters. Only the
// fields present in the form are changed.
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		s.sendJSON(w, SettingsResponse{Success: true, Settings: s.service.GetSettings()})
		return
	}
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	if err := r.ParseForm(); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, "Failed to parse form", "operation", "settings")
		return
	}

	slog.Debug("Settings request received", "form", r.Form)

	var change settings.Change
	if _, ok := r.Form["bars_per_chord"]; ok {
		bars, err := strconv.Atoi(r.FormValue("bars_per_chord"))
		if err != nil {
			s.sendErrorResponse(w, http.StatusBadRequest, "bars_per_chord must be a number", "operation", "settings")
			return
		}
		change.BarsPerChord = &bars
	}
	if values, ok := r.Form["chord_categories"]; ok {
		change.SetChordCategories = true
		for _, name := range splitValues(values) {
			change.ChordCategories = append(change.ChordCategories, catalog.ChordCategory(name))
		}
	}
	if values, ok := r.Form["outline_categories"]; ok {
		change.SetOutlineCategories = true
		for _, name := range splitValues(values) {
			change.OutlineCategories = append(change.OutlineCategories, catalog.OutlineCategory(name))
		}
	}

	// All fields are applied together or not at all.
	if err := s.service.UpdateSettings(change); err != nil {
		s.sendSettingsError(w, err)
		return
	}

	s.sendJSON(w, SettingsResponse{
		Success:  true,
		Message:  "Settings updated",
		Settings: s.service.GetSettings(),
	})
}

func (s *Server) sendSettingsError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, settings.ErrRequiresFullFeatureSet) {
		status = http.StatusForbidden
	}
	s.sendErrorResponse(w, status, err.Error(), "operation", "settings")
}

// splitValues accepts repeated form values as well as comma separated lists
func splitValues(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// handleMix sets the level of one channel or of the master bus
func (s *Server) handleMix(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		s.sendJSON(w, s.service.GetGains())
		return
	}
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	if err := r.ParseForm(); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, "Failed to parse form", "operation", "mix")
		return
	}

	channel := r.FormValue("channel")
	if channel == "" {
		s.sendErrorResponse(w, http.StatusBadRequest, "channel is required", "operation", "mix")
		return
	}
	level, err := strconv.ParseFloat(r.FormValue("level"), 64)
	if err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, "level must be a number between 0 and 1", "operation", "mix")
		return
	}
	if err := s.service.SetChannelGain(channel, level); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, err.Error(), "operation", "mix")
		return
	}

	s.sendJSON(w, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("%s level set", channel),
		"gains":   s.service.GetGains(),
	})
}

// handleProfiles returns available configuration profiles
func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}
	profiles, err := s.service.ListProfiles()
	if err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError, err.Error(), "operation", "profiles")
		return
	}
	s.sendJSON(w, map[string]interface{}{
		"profiles": profiles,
		"active":   s.service.GetConfig().Profile,
	})
}

// handleCatalog lists the chords, optionally filtered by ?category=
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}

	filter := r.URL.Query().Get("category")
	if filter != "" && !catalog.ChordCategory(filter).IsValid() {
		s.sendErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("unknown chord category '%s'", filter), "operation", "catalog")
		return
	}

	chords := []ChordInfo{}
	for _, e := range s.service.GetCatalog().Entries() {
		if filter != "" && string(e.Category) != filter {
			continue
		}
		chords = append(chords, ChordInfo{
			Name:     e.Name,
			Category: e.Category,
			HasBass:  e.HasSecondary(),
			Outlines: e.Outlines,
		})
	}

	s.sendJSON(w, CatalogResponse{
		Chords:            chords,
		TotalCount:        len(chords),
		ChordCategories:   catalog.ChordCategories,
		OutlineCategories: catalog.OutlineCategories,
	})
}

// handleTranscript returns the chords played so far. ?source=file returns
// the persisted history instead of this run's transcript.
func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodDelete {
		s.service.ResetTranscript()
		s.sendJSON(w, GenericResponse{Success: true, Message: "Transcript cleared"})
		return
	}
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}

	source := r.URL.Query().Get("source")
	var entries []transcript.Entry
	switch source {
	case "", "memory":
		source = "memory"
		entries = s.service.GetTranscript()
	case "file":
		var err error
		entries, err = s.service.GetTranscriptHistory()
		if err != nil {
			s.sendErrorResponse(w, http.StatusInternalServerError, err.Error(), "operation", "transcript")
			return
		}
	default:
		s.sendErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("unknown source '%s'", source), "operation", "transcript")
		return
	}
	if entries == nil {
		entries = []transcript.Entry{}
	}

	s.sendJSON(w, TranscriptResponse{Entries: entries, TotalCount: len(entries), Source: source})
}

// sendErrorResponse logs the error and sends a JSON error response to the client
func (s *Server) sendErrorResponse(w http.ResponseWriter, statusCode int, errorMsg string, logContext ...interface{}) {
	// Log the error with structured context
	logFields := []interface{}{"error_message", errorMsg, "status_code", statusCode}
	if len(logContext) > 0 {
		logFields = append(logFields, logContext...)
	}
	slog.Error("Sending error response to client", logFields...)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   errorMsg,
	})
}

func getLocalIP() string {
	// Try to connect to a remote address to determine local IP
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "localhost"
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String()
}

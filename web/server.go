// Package web serves the speech form.
package web

import (
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/d1nch8g/speechform/utterance"
	"github.com/d1nch8g/speechform/voices"
)

//go:embed templates/form.html
var templates embed.FS

var formTemplate = template.Must(template.ParseFS(templates, "templates/form.html"))

// Form field names, shared with the template.
const (
	fieldLanguage = "lang"
	fieldVoice    = "voice"
	fieldPitch    = "pitch"
	fieldRate     = "speech-rate"
	fieldPhrase   = "phrase"
)

type formView struct {
	State     utterance.State
	Directory voices.Directory
	VoiceID   string

	RateMin, RateMax   float64
	PitchMin, PitchMax float64
	Step               float64
}

type Server struct {
	controller *utterance.Controller
	handler    http.Handler
}

// NewServer wires the form routes around controller and logs every request
// through logger.
func NewServer(controller *utterance.Controller, logger zerolog.Logger) *Server {
	s := &Server{controller: controller}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleForm)
	mux.HandleFunc("GET /voices", s.handleVoices)
	mux.HandleFunc("POST /speak", s.handleSpeak)
	mux.HandleFunc("POST /pause", s.handlePause)
	mux.HandleFunc("POST /resume", s.handleResume)
	mux.HandleFunc("POST /refresh", s.handleRefresh)

	var h http.Handler = mux
	h = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request handled")
	})(h)
	h = hlog.RequestIDHandler("req_id", "X-Request-Id")(h)
	h = hlog.NewHandler(logger)(h)

	s.handler = h
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	view := formView{
		State:     s.controller.State(),
		Directory: s.controller.Directory(),
		RateMin:   utterance.RateMin,
		RateMax:   utterance.RateMax,
		PitchMin:  utterance.PitchMin,
		PitchMax:  utterance.PitchMax,
		Step:      utterance.Step,
	}
	if view.State.Voice != nil {
		view.VoiceID = view.State.Voice.ID
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := formTemplate.Execute(w, view); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Failed to render form")
	}
}

func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.controller.Directory()); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Failed to encode directory")
	}
}

func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	if !s.applyForm(w, r) {
		return
	}
	s.controller.Speak()
	redirectHome(w, r)
}

// Pause and Resume share the form with Speak, so edits made before pressing
// them are kept too. The selectors always post their current values, which
// the controller does not treat as a new choice.
func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if !s.applyForm(w, r) {
		return
	}
	s.controller.Pause()
	redirectHome(w, r)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if !s.applyForm(w, r) {
		return
	}
	s.controller.Resume()
	redirectHome(w, r)
}

// Refresh also submits the form; edits are applied before re-querying so the
// redirect does not lose them.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !s.applyForm(w, r) {
		return
	}
	dir := s.controller.RefreshDirectory()
	hlog.FromRequest(r).Info().
		Int("voices", len(dir.Voices)).
		Int("languages", len(dir.Languages)).
		Msg("Voice directory refreshed")
	redirectHome(w, r)
}

// applyForm replays submitted fields onto the controller. Missing fields and
// numbers that do not parse leave the state as it was. It writes a 400 and
// returns false when the body is not a form.
func (s *Server) applyForm(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return false
	}

	logger := hlog.FromRequest(r)

	if tag := r.PostForm.Get(fieldLanguage); tag != "" {
		if !s.controller.SetLanguage(tag) {
			logger.Debug().Str("lang", tag).Msg("Unknown language ignored")
		}
	}
	if id := r.PostForm.Get(fieldVoice); id != "" {
		if !s.controller.SetVoice(id) {
			logger.Debug().Str("voice", id).Msg("Unknown voice ignored")
		}
	}
	if v, ok := parseFloat(r, fieldPitch); ok {
		s.controller.SetPitch(v)
	}
	if v, ok := parseFloat(r, fieldRate); ok {
		s.controller.SetRate(v)
	}
	if _, ok := r.PostForm[fieldPhrase]; ok {
		s.controller.SetPhrase(r.PostForm.Get(fieldPhrase))
	}
	return true
}

func parseFloat(r *http.Request, field string) (float64, bool) {
	raw := r.PostForm.Get(field)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		hlog.FromRequest(r).Debug().Str("field", field).Str("value", raw).Msg("Ignoring unparseable number")
		return 0, false
	}
	return v, true
}

func redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

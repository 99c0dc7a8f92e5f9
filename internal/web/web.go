package web

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"countdown/internal/advance"
	"countdown/internal/clock"
	"countdown/internal/config"
	"countdown/internal/events"
	"countdown/internal/hijri"
	"countdown/internal/ics"
	appLog "countdown/internal/log"
	"countdown/internal/model"
	"countdown/internal/recurrence"
	"countdown/internal/store"
)

const (
	eventsCacheTTL = 30 * time.Second
	maxImportBytes = 1 << 20
)

// Deps are the collaborators a Server is built from.
type Deps struct {
	Config    *config.Config
	Clock     clock.Clock
	Store     store.Store
	Templates []model.EventTemplate
}

// Server provides the HTTP API over the event catalog and the user's
// countdowns.
type Server struct {
	cfg       *config.Config
	clock     clock.Clock
	loc       *time.Location
	store     store.Store
	generator *events.Generator
	advancer  *advance.Service
	templates []model.EventTemplate
	router    *chi.Mux

	// Materialized instances only change when the reference day moves on,
	// so a short cache spares a pass over the catalog per request.
	eventsMu    sync.RWMutex
	eventsCache *eventsCache
}

type eventsCache struct {
	instances []model.EventInstance
	updatedAt time.Time
}

// NewServer constructs a new Server.
func NewServer(d Deps) *Server {
	s := &Server{
		cfg:       d.Config,
		clock:     d.Clock,
		loc:       d.Clock.Now().Location(),
		store:     d.Store,
		generator: events.NewGenerator(d.Clock),
		advancer:  advance.NewService(d.Store, d.Clock),
		templates: d.Templates,
		router:    chi.NewRouter(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware guards the API group with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Countdown", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(chimiddleware.Compress(5))

	// /health stays reachable without credentials.
	s.router.Get("/health", s.handleHealth)

	s.router.Group(func(r chi.Router) {
		if s.basicAuthEnabled() {
			appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
			r.Use(s.basicAuthMiddleware)
		}

		r.Get("/api/now", s.handleNow)
		r.Get("/api/hijri", s.handleHijri)
		r.Get("/api/events", s.handleEvents)
		r.Get("/api/events.ics", s.handleEventsICS)

		r.Route("/api/countdowns", func(r chi.Router) {
			r.Get("/", s.handleListCountdowns)
			r.Post("/", s.handleCreateCountdown)
			r.Post("/import", s.handleImportCountdowns)
			r.Get("/{id}", s.handleGetCountdown)
			r.Delete("/{id}", s.handleDeleteCountdown)
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleNow(w http.ResponseWriter, _ *http.Request) {
	now := s.clock.Now()
	_, offset := now.Zone()
	writeJSON(w, http.StatusOK, nowResponse{
		Now:           clock.Format(now),
		OffsetMinutes: offset / 60,
		Hijri:         hijri.FromGregorian(now),
		EndOfDay:      clock.Format(clock.AtEndOfDay(now)),
	})
}

// handleHijri converts a single day in either direction.
//
// GET /api/hijri?date=2026-02-17    Gregorian to Hijri
// GET /api/hijri?hijri=1447-09-01   Hijri to Gregorian
func (s *Server) handleHijri(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if raw := q.Get("hijri"); raw != "" {
		var d hijri.Date
		if _, err := fmt.Sscanf(raw, "%d-%d-%d", &d.Year, &d.Month, &d.Day); err != nil {
			writeError(w, http.StatusBadRequest, "hijri must be YYYY-MM-DD")
			return
		}
		if d.Year < 1 || d.Month < 1 || d.Month > 12 || d.Day < 1 || d.Day > hijri.MonthLength(d.Year, d.Month) {
			writeError(w, http.StatusBadRequest, "hijri date out of range")
			return
		}
		g := hijri.ToGregorian(d.Year, d.Month, d.Day, s.loc)
		writeJSON(w, http.StatusOK, hijriResponse{Gregorian: g.Format("2006-01-02"), Hijri: d})
		return
	}

	day := s.clock.Now()
	if raw := q.Get("date"); raw != "" {
		t, err := clock.Parse(raw, s.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		day = t
	}
	writeJSON(w, http.StatusOK, hijriResponse{
		Gregorian: day.Format("2006-01-02"),
		Hijri:     hijri.FromGregorian(day),
	})
}

// instances returns the materialized catalog, served from cache while it
// is fresh.
func (s *Server) instances() []model.EventInstance {
	now := s.clock.Now()

	s.eventsMu.RLock()
	ec := s.eventsCache
	s.eventsMu.RUnlock()
	if ec != nil && now.Sub(ec.updatedAt) < eventsCacheTTL && clock.StartOfDay(now).Equal(clock.StartOfDay(ec.updatedAt)) {
		return ec.instances
	}

	out := s.generator.ProcessAll(s.templates)

	s.eventsMu.Lock()
	s.eventsCache = &eventsCache{instances: out, updatedAt: now}
	s.eventsMu.Unlock()

	appLog.Debug("events materialized", "templates", len(s.templates), "instances", len(out))
	return out
}

func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	instances := s.instances()
	dtos := make([]instanceDTO, 0, len(instances))
	for _, in := range instances {
		dtos = append(dtos, toInstanceDTO(in))
	}
	writeJSON(w, http.StatusOK, eventsResponse{
		Now:    clock.Format(s.clock.Now()),
		Events: dtos,
	})
}

// handleEventsICS serves upcoming events plus the stored countdowns as an
// iCalendar feed.
func (s *Server) handleEventsICS(w http.ResponseWriter, r *http.Request) {
	countdowns, err := s.store.List(r.Context())
	if err != nil {
		appLog.Error("api events.ics: list countdowns failed", err)
		writeError(w, http.StatusInternalServerError, "failed to list countdowns")
		return
	}
	body := ics.Export(s.instances(), countdowns, s.clock.Now())

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}

// handleListCountdowns runs an auto-advance pass before answering, so
// passed recurring targets are never shown.
func (s *Server) handleListCountdowns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cs, err := s.store.List(ctx)
	if err != nil {
		appLog.Error("api countdowns: list failed", err)
		writeError(w, http.StatusInternalServerError, "failed to list countdowns")
		return
	}

	cs, errs := s.advancer.AdvanceAll(ctx, cs)
	for _, e := range errs {
		// The record keeps its previous target; the next pass retries.
		appLog.Error("api countdowns: auto-advance failed", e)
	}

	dtos := make([]countdownDTO, 0, len(cs))
	for _, c := range cs {
		dtos = append(dtos, toCountdownDTO(c))
	}
	writeJSON(w, http.StatusOK, countdownsResponse{Countdowns: dtos})
}

func (s *Server) handleGetCountdown(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	c, err := s.store.Get(ctx, id)
	if err != nil {
		appLog.Error("api countdown: get failed", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to load countdown")
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "countdown not found")
		return
	}

	advanced, err := s.advancer.MaybeAdvance(ctx, *c)
	if err != nil {
		appLog.Error("api countdown: auto-advance failed", err, "id", id)
	} else if advanced != nil {
		c = advanced
	}
	writeJSON(w, http.StatusOK, toCountdownDTO(*c))
}

func (s *Server) handleCreateCountdown(w http.ResponseWriter, r *http.Request) {
	var req countdownRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxImportBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	c, err := req.toCountdown(s.clock.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.store.Create(r.Context(), c)
	if err != nil {
		if errors.Is(err, store.ErrInvalid) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		appLog.Error("api countdowns: create failed", err)
		writeError(w, http.StatusInternalServerError, "failed to create countdown")
		return
	}
	appLog.Info("countdown created", "id", created.ID, "recurring", created.IsRecurring)
	writeJSON(w, http.StatusCreated, toCountdownDTO(created))
}

// handleImportCountdowns creates one countdown per VEVENT of an
// iCalendar body. Records that fail to store are reported and skipped.
func (s *Server) handleImportCountdowns(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	parsed, err := ics.ParseCountdowns(body, s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := importResponse{Created: []countdownDTO{}}
	for _, c := range parsed {
		created, err := s.store.Create(r.Context(), c)
		if err != nil {
			appLog.Error("api import: create failed", err, "title", c.Title)
			resp.Failed = append(resp.Failed, c.Title)
			continue
		}
		resp.Created = append(resp.Created, toCountdownDTO(created))
	}
	appLog.Info("countdowns imported", "created", len(resp.Created), "failed", len(resp.Failed))
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteCountdown(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	deleted, err := s.store.Delete(r.Context(), id)
	if err != nil {
		appLog.Error("api countdown: delete failed", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to delete countdown")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "countdown not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// resolveInitialTarget picks the first target of a recurring countdown
// created without one.
func resolveInitialTarget(rec model.RecurrenceSettings, now time.Time) (time.Time, error) {
	occ, err := recurrence.NextUserOccurrence(rec, now)
	if err != nil {
		return time.Time{}, err
	}
	return occ.TargetDate, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/hamed0406/subwatch/internal/domain"
	apimw "github.com/hamed0406/subwatch/internal/httpapi/middleware"
	"github.com/hamed0406/subwatch/internal/pipeline"
	"github.com/hamed0406/subwatch/internal/repo"
)

type Detector interface {
	Detect(ctx context.Context, day time.Time) (*domain.ChangeEvent, error)
}

// Runner triggers a full collect and compare run.
type Runner interface {
	Execute(ctx context.Context) (pipeline.Report, error)
}

type Server struct {
	Logger   *zap.Logger
	Store    repo.SnapshotStore
	Detector Detector
	Runner   Runner
	Lookback int
	Now      func() time.Time
}

func NewServer(l *zap.Logger, store repo.SnapshotStore, det Detector, runner Runner) *Server {
	return &Server{
		Logger:   l,
		Store:    store,
		Detector: det,
		Runner:   runner,
		Lookback: pipeline.DefaultLookback,
		Now:      time.Now,
	}
}

func (s *Server) Router(keys apimw.Keys, publicRPM, publicBurst int) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(apimw.RateLimit(publicRPM, publicBurst))
		r.Use(apimw.RequireAny(keys))

		r.Get("/status", s.handleStatus)
		r.Get("/snapshots/{date}", s.handleSnapshot)
		r.Get("/changes/{date}", s.handleChanges)
		r.With(apimw.RequireAdmin(keys)).Post("/runs", s.handleRun)
	})
	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// pathDay parses {date}; "today" and "yesterday" are accepted too.
func (s *Server) pathDay(r *http.Request) (time.Time, bool) {
	raw := chi.URLParam(r, "date")
	switch raw {
	case "today":
		return domain.Day(s.Now()), true
	case "yesterday":
		return domain.Day(s.Now()).AddDate(0, 0, -1), true
	}
	d, err := domain.ParseDay(raw)
	return d, err == nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := pipeline.BuildStatus(r.Context(), s.Store, s.Now(), s.Lookback)
	if err != nil {
		s.Logger.Warn("status_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "status unavailable")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type snapshotView struct {
	Date    string          `json:"date"`
	Domains []domain.Domain `json:"domains"`
	IPs     []string        `json:"ips"`
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	day, ok := s.pathDay(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	snap, err := s.Store.Read(r.Context(), day)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		writeError(w, http.StatusNotFound, "no snapshot for "+domain.DateKey(day))
		return
	case err != nil:
		s.Logger.Warn("snapshot_read_error", zap.String("day", domain.DateKey(day)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "read error")
		return
	}
	writeJSON(w, http.StatusOK, snapshotView{Date: snap.Key(), Domains: snap.Domains, IPs: snap.IPs})
}

type changesView struct {
	Date    string          `json:"date"`
	Action  domain.Action   `json:"action"`
	Domains []domain.Domain `json:"domains"`
}

func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	day, ok := s.pathDay(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	ev, err := s.Detector.Detect(r.Context(), day)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		writeError(w, http.StatusNotFound, "no snapshot for "+domain.DateKey(day))
		return
	case err != nil:
		s.Logger.Warn("changes_error", zap.String("day", domain.DateKey(day)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "diff error")
		return
	}
	view := changesView{Date: domain.DateKey(day), Action: domain.ActionNew, Domains: []domain.Domain{}}
	if ev != nil {
		view.Domains = ev.Domains
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.Runner == nil {
		writeError(w, http.StatusServiceUnavailable, "runs disabled")
		return
	}
	rep, err := s.Runner.Execute(r.Context())
	if err != nil {
		s.Logger.Warn("run_request_failed", zap.String("run_id", rep.RunID), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error(), "report": rep})
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

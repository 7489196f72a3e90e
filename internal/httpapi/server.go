package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/netdiag/internal/domain"
	apimw "github.com/hamed0406/netdiag/internal/httpapi/middleware"
	"github.com/hamed0406/netdiag/internal/notify"
	"github.com/hamed0406/netdiag/internal/orchestrator"
	"github.com/hamed0406/netdiag/internal/repo"
)

// Runner is the part of the orchestrator the API needs.
type Runner interface {
	Run(ctx context.Context, req domain.DiagnosticRequest, out orchestrator.Output) (*domain.DiagnosticReport, error)
}

// Defaults fill in fields a POST body leaves out.
type Defaults struct {
	Ports          []int
	Count          int
	TimeoutSeconds int
	Concurrency    int
}

type Server struct {
	Logger    *zap.Logger
	Reports   repo.ReportStore
	Runner    Runner
	Defaults  Defaults
	ReportDir string
	Notifier  notify.Notifier
}

func NewServer(l *zap.Logger, rs repo.ReportStore, runner Runner, def Defaults, reportDir string) *Server {
	return &Server{Logger: l, Reports: rs, Runner: runner, Defaults: def, ReportDir: reportDir}
}

// Router wires CORS, auth and per-IP rate limits. Zero rpm disables a limit.
func (s *Server) Router(keys apimw.Keys, allowedOrigins []string, publicRPM, publicBurst, adminRPM, adminBurst int) http.Handler {
	r := chi.NewRouter()
	if len(allowedOrigins) == 0 {
		r.Use(cors.AllowAll().Handler)
	} else {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(apimw.RateLimit(publicRPM, publicBurst))
		r.Use(apimw.RequireAny(keys))
		r.Get("/api/diagnostics", s.handleList)
		r.Get("/api/diagnostics/{id}", s.handleGet)
	})

	r.Group(func(r chi.Router) {
		r.Use(apimw.RateLimit(adminRPM, adminBurst))
		r.Use(apimw.RequireAdmin(keys))
		r.Post("/api/diagnostics", s.handleRun)
	})

	return r
}

type runPayload struct {
	Target      string `json:"target"`
	Ports       []int  `json:"ports"`
	Count       int    `json:"count"`
	Timeout     int    `json:"timeout"`
	Nmap        bool   `json:"nmap"`
	Concurrency int    `json:"concurrency"`
	Insecure    bool   `json:"insecure"`
}

func (s *Server) request(p runPayload) domain.DiagnosticRequest {
	req := domain.DiagnosticRequest{
		Target:         strings.TrimSpace(p.Target),
		Ports:          p.Ports,
		PingCount:      p.Count,
		TimeoutSeconds: p.Timeout,
		UseDeepScan:    p.Nmap,
		Concurrency:    p.Concurrency,
		InsecureTLS:    p.Insecure,
	}
	if len(req.Ports) == 0 {
		req.Ports = append([]int(nil), s.Defaults.Ports...)
	}
	if req.PingCount == 0 {
		req.PingCount = s.Defaults.Count
	}
	if req.TimeoutSeconds == 0 {
		req.TimeoutSeconds = s.Defaults.TimeoutSeconds
	}
	if req.Concurrency == 0 {
		req.Concurrency = s.Defaults.Concurrency
	}
	return req
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var p runPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	req := s.request(p)
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	path := filepath.Join(s.ReportDir, domain.DefaultLogName(req.Target))
	rep, err := s.Runner.Run(r.Context(), req, orchestrator.Output{Path: path})

	switch {
	case domain.IsConfigurationError(err):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil && !errors.Is(err, domain.ErrInterrupted):
		s.Logger.Error("diagnostic_failed", zap.String("target", req.Target), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "diagnostic failed")
		return
	}

	if err := s.Reports.Save(r.Context(), rep); err != nil {
		s.Logger.Warn("report_save_error", zap.String("id", string(rep.ID)), zap.Error(err))
	}
	s.Logger.Info("diagnostic_done",
		zap.String("id", string(rep.ID)),
		zap.String("target", req.Target),
		zap.Int("results", len(rep.Results)),
		zap.Bool("interrupted", rep.Interrupted),
		zap.String("log", path),
	)
	s.sendSummary(r.Context(), rep)
	writeJSON(w, http.StatusCreated, rep)
}

// sendSummary sends the report summary without holding up the response.
func (s *Server) sendSummary(ctx context.Context, rep *domain.DiagnosticReport) {
	if s.Notifier == nil {
		return
	}
	go func() {
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()
		title, text := notify.ReportText(rep)
		if err := s.Notifier.Send(nctx, title, text); err != nil {
			s.Logger.Warn("notify_error", zap.String("id", string(rep.ID)), zap.Error(err))
		}
	}()
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := s.Reports.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := domain.ReportID(chi.URLParam(r, "id"))
	rep, err := s.Reports.Get(r.Context(), id)
	if errors.Is(err, repo.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "get error")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"windowtracker/entity"
	"windowtracker/query"
	"windowtracker/report"
	"windowtracker/sample"
	"windowtracker/status"
	"windowtracker/tracker"
	"windowtracker/validate"
)

//go:embed static/*
var staticFS embed.FS

type Store interface {
	FetchAllJoinedWithIcons(ctx context.Context, cutoff float64) ([]entity.LogRow, error)
	Summary(ctx context.Context, dim query.Dimension) ([]query.SummaryItem, error)
	DayTotals(ctx context.Context) ([]query.DayTotal, error)
	CountActivities(ctx context.Context) (int, error)
	CountIcons(ctx context.Context) (int, error)
	GetIcon(ctx context.Context, title string) (entity.IconCacheEntry, bool, error)
}

// Controller is the tracker as seen from the control API.
type Controller interface {
	Start(ctx context.Context) error
	Stop() error
	SetPollingInterval(ms int) int
	PollingInterval() int
	CanStart() bool
	CanStop() bool
}

type Populator interface {
	Populate(ctx context.Context, fill, flush bool) (sample.Stats, error)
}

type Options struct {
	ReportPath string
	// SessionContext outlives requests; tracking sessions started over HTTP
	// are bound to it.
	SessionContext context.Context
	Logger         *zap.Logger
}

type Server struct {
	router     chi.Router
	db         Store
	tracker    Controller
	sampler    Populator
	history    *status.History
	reportPath string
	sessionCtx context.Context
	logger     *zap.Logger
}

// NewServer builds the viewer. tracker and sampler may be nil, which turns
// the control endpoints off.
func NewServer(db Store, ctl Controller, sampler Populator, history *status.History, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.SessionContext == nil {
		opts.SessionContext = context.Background()
	}
	if history == nil {
		history = status.NewHistory(0)
	}
	s := &Server{
		router:     chi.NewRouter(),
		db:         db,
		tracker:    ctl,
		sampler:    sampler,
		history:    history,
		reportPath: opts.ReportPath,
		sessionCtx: opts.SessionContext,
		logger:     opts.Logger.Named("web"),
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			s.logger.Debug("request", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Duration("dur", time.Since(start)))
		})
	})

	static, _ := fs.Sub(staticFS, "static")
	s.router.Get("/", s.handleIndex)
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	s.router.Get("/report", s.handleReport)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/log", s.handleLog)
		r.Get("/summary", s.handleSummary)
		r.Get("/days", s.handleDays)
		r.Get("/icon", s.handleIcon)
		r.Get("/status", s.handleStatus)
		r.Post("/start", s.handleStart)
		r.Post("/stop", s.handleStop)
		r.Post("/interval", s.handleInterval)
		r.Post("/sample", s.handleSample)
	})
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("viewer listening", zap.String("url", "http://"+addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data, _ := staticFS.ReadFile("static/index.html")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// handleReport serves the last generated report file as is.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if s.reportPath == "" {
		http.NotFound(w, r)
		return
	}
	if _, err := os.Stat(s.reportPath); err != nil {
		http.Error(w, "no report generated yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	http.ServeFile(w, r, s.reportPath)
}

// logRow is a window_log row as the viewer shows it.
type logRow struct {
	ID           int64    `json:"id"`
	Date         string   `json:"date"`
	Time         string   `json:"time"`
	Program      string   `json:"program"`
	Title        string   `json:"title"`
	Duration     *float64 `json:"duration"`
	DurationText string   `json:"duration_text"`
	Icon         []byte   `json:"icon,omitempty"`
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	cutoff, err := validate.ParseCutoff(r.URL.Query().Get("cutoff"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	rows, err := s.db.FetchAllJoinedWithIcons(r.Context(), cutoff)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]logRow, len(rows))
	for i, row := range rows {
		d := row.Seconds()
		out[i] = logRow{
			ID:           row.ID,
			Date:         row.Date,
			Time:         row.Time,
			Program:      row.Program,
			Title:        row.Title,
			Duration:     d,
			DurationText: report.FormatDuration(d),
			Icon:         row.IconData,
		}
	}
	writeJSON(w, map[string]any{"cutoff": cutoff, "rows": out})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	by := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("by")))
	if by == "" {
		by = string(query.DimensionProgram)
	}
	dim := query.Dimension(by)
	if dim != query.DimensionProgram && dim != query.DimensionTitle {
		s.writeError(w, http.StatusBadRequest, errors.New("by must be program or title"))
		return
	}
	items, err := s.db.Summary(r.Context(), dim)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, map[string]any{"by": by, "items": items})
}

func (s *Server) handleDays(w http.ResponseWriter, r *http.Request) {
	days, err := s.db.DayTotals(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, days)
}

// handleIcon serves the cached icon of a window title as PNG.
func (s *Server) handleIcon(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	if title == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("title is required"))
		return
	}
	entry, ok, err := s.db.GetIcon(r.Context(), title)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "max-age=3600")
	w.Write(entry.IconData)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.CountActivities(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	icons, err := s.db.CountIcons(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	canStart, canStop := s.history.Flags()
	resp := map[string]any{
		"can_start":   canStart,
		"can_stop":    canStop,
		"last_report": s.history.LastReport(),
		"messages":    s.history.Messages(),
		"rows":        rows,
		"icons":       icons,
	}
	if s.tracker != nil {
		resp["can_start"] = s.tracker.CanStart()
		resp["can_stop"] = s.tracker.CanStop()
		resp["interval_ms"] = s.tracker.PollingInterval()
	}
	writeJSON(w, resp)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if s.tracker == nil {
		s.writeError(w, http.StatusNotImplemented, errors.New("tracking is not available"))
		return
	}
	if err := s.tracker.Start(s.sessionCtx); err != nil {
		s.writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if s.tracker == nil {
		s.writeError(w, http.StatusNotImplemented, errors.New("tracking is not available"))
		return
	}
	if err := s.tracker.Stop(); err != nil {
		s.writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleInterval(w http.ResponseWriter, r *http.Request) {
	if s.tracker == nil {
		s.writeError(w, http.StatusNotImplemented, errors.New("tracking is not available"))
		return
	}
	type req struct {
		Value json.RawMessage `json:"interval_ms"`
	}
	var body req
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	// "250" et 250 sont acceptés
	ms, clamped, err := validate.ParseInterval(strings.Trim(string(body.Value), `"`))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	ms = s.tracker.SetPollingInterval(ms)
	writeJSON(w, map[string]any{"interval_ms": ms, "clamped": clamped})
}

func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	if s.sampler == nil {
		s.writeError(w, http.StatusNotImplemented, errors.New("sample data is not available"))
		return
	}
	if s.tracker != nil && !s.tracker.CanStart() {
		s.writeError(w, http.StatusConflict, tracker.ErrAlreadyRunning)
		return
	}
	type req struct {
		Fill  bool `json:"fill"`
		Flush bool `json:"flush"`
	}
	var body req
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	st, err := s.sampler.Populate(r.Context(), body.Fill, body.Flush)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, map[string]any{"deleted": st.Deleted, "inserted": st.Inserted, "seconds": st.Seconds})
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	} else {
		s.logger.Warn("request failed", zap.Int("status", status), zap.Error(err))
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

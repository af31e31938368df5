package httpapi

import (
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hamed0406/opsboard/internal/domain"
	"github.com/hamed0406/opsboard/internal/flags"
	"github.com/hamed0406/opsboard/internal/health"
	"github.com/hamed0406/opsboard/internal/sla"
)

// ---- health ----

type runPayload struct {
	Source string `json:"source"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var p runPayload
	if err := decodeBody(w, r, &p, true); err != nil {
		badRequest(w, "bad payload")
		return
	}
	source := domain.SourceManual
	if p.Source != "" {
		parsed, ok := domain.ParseSource(p.Source)
		if !ok || parsed == domain.SourceUser {
			badRequest(w, "source must be manual or scheduled")
			return
		}
		source = parsed
	}

	sum, err := s.Health.Run(r.Context(), source)
	if err != nil {
		s.internalError(w, r, "health_run_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleRecentErrors(w http.ResponseWriter, r *http.Request) {
	window := health.DefaultErrorWindow
	if v := r.URL.Query().Get("hours"); v != "" {
		h, err := strconv.Atoi(v)
		if err != nil || h < 1 || h > 24*7 {
			badRequest(w, "hours must be between 1 and 168")
			return
		}
		window = time.Duration(h) * time.Hour
	}
	d, err := s.Health.RecentErrors(r.Context(), window)
	if err != nil {
		s.internalError(w, r, "recent_errors_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleReportError(w http.ResponseWriter, r *http.Request) {
	var rep health.UserReport
	if err := decodeBody(w, r, &rep, false); err != nil {
		badRequest(w, "bad payload")
		return
	}
	row, err := s.Health.ReportError(r.Context(), rep)
	if errors.Is(err, health.ErrInvalidReport) {
		badRequest(w, err.Error())
		return
	}
	if err != nil {
		s.internalError(w, r, "report_error_failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, row)
}

// ---- sla ----

type slaList struct {
	Reports []domain.SlaReport `json:"reports"`
	Current domain.SlaReport   `json:"current"`
}

func (s *Server) handleListSLA(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			badRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}
	reports, err := s.SLA.List(r.Context(), limit)
	if err != nil {
		s.internalError(w, r, "sla_list_failed", err)
		return
	}
	current, err := s.SLA.CurrentMonth(r.Context())
	if err != nil {
		s.internalError(w, r, "sla_current_failed", err)
		return
	}
	if reports == nil {
		reports = []domain.SlaReport{}
	}
	writeJSON(w, http.StatusOK, slaList{Reports: reports, Current: current})
}

type slaPayload struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

func (s *Server) handleUpsertSLA(w http.ResponseWriter, r *http.Request) {
	var p slaPayload
	if err := decodeBody(w, r, &p, false); err != nil {
		badRequest(w, "bad payload")
		return
	}
	rep, err := s.SLA.Upsert(r.Context(), p.Year, p.Month)
	if errors.Is(err, sla.ErrInvalidPeriod) {
		badRequest(w, err.Error())
		return
	}
	if err != nil {
		s.internalError(w, r, "sla_upsert_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// ---- flags ----

var flagKeyRe = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,100}$`)

type flagList struct {
	Flags map[string]bool `json:"flags"`
	State flags.State     `json:"state"`
}

func (s *Server) handleListFlags(w http.ResponseWriter, r *http.Request) {
	all, state := s.Flags.Snapshot(r.Context())
	writeJSON(w, http.StatusOK, flagList{Flags: all, State: state})
}

type flagValue struct {
	Key   string      `json:"key"`
	Value bool        `json:"value"`
	State flags.State `json:"state"`
}

func (s *Server) handleGetFlag(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if !flagKeyRe.MatchString(key) {
		badRequest(w, "invalid flag key")
		return
	}
	l := s.Flags.Lookup(r.Context(), key)
	writeJSON(w, http.StatusOK, flagValue{Key: key, Value: l.Value, State: l.State})
}

type flagPayload struct {
	Value       *bool  `json:"value"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

func (s *Server) handlePutFlag(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if !flagKeyRe.MatchString(key) {
		badRequest(w, "invalid flag key")
		return
	}
	var p flagPayload
	if err := decodeBody(w, r, &p, false); err != nil || p.Value == nil {
		badRequest(w, "bad payload: value is required")
		return
	}
	f := &domain.FeatureFlag{
		Key:         key,
		Value:       *p.Value,
		Description: p.Description,
		Category:    p.Category,
		UpdatedAt:   s.Clock.Now().UTC(),
	}
	if err := s.FlagRepo.UpsertFlag(r.Context(), f); err != nil {
		s.internalError(w, r, "flag_upsert_failed", err)
		return
	}
	s.Flags.Invalidate()
	s.Logger.Info("flag_updated", zap.String("key", key), zap.Bool("value", f.Value))
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleInvalidateFlags(w http.ResponseWriter, r *http.Request) {
	s.Flags.Invalidate()
	writeJSON(w, http.StatusOK, map[string]bool{"invalidated": true})
}

package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/kapu/shortlist-go/internal/command"
	"github.com/kapu/shortlist-go/internal/domain"
	apperrors "github.com/kapu/shortlist-go/pkg/errors"
)

const maxBodyBytes = 16 << 10

// CategoryInfo is one entry of the category menu.
type CategoryInfo struct {
	Key              domain.Category `json:"key"`
	Label            string          `json:"label"`
	SubFilterKind    string          `json:"sub_filter_kind"`
	SubFilterDefault string          `json:"sub_filter_default,omitempty"`
	SubFilterOptions []string        `json:"sub_filter_options,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true
	for name, ping := range s.health {
		if err := ping(ctx); err != nil {
			checks[name] = err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	s.respondJSON(w, status, map[string]any{
		"checks":   checks,
		"sessions": s.sessions.Count(),
	})
}

func (s *Server) handleCategories(w http.ResponseWriter, _ *http.Request) {
	out := make([]CategoryInfo, 0, len(domain.AllCategories))
	for _, c := range domain.AllCategories {
		p := domain.ProfileFor(c)
		out = append(out, CategoryInfo{
			Key:              c,
			Label:            p.Label,
			SubFilterKind:    string(p.SubFilter.Kind),
			SubFilterDefault: p.SubFilter.Default,
			SubFilterOptions: p.SubFilter.Options,
		})
	}
	s.respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	category := domain.CategoryBook
	if req.Category != "" {
		c, err := domain.ParseCategory(req.Category)
		if err != nil {
			s.respondError(w, apperrors.NewValidationError(err.Error(), "category", req.Category), nil)
			return
		}
		category = c
	}

	_, engine, err := s.sessions.Create(category, req.Identity)
	if err != nil {
		s.respondError(w, err, nil)
		return
	}
	s.respondJSON(w, http.StatusCreated, engine.View())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	engine, err := s.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondError(w, err, nil)
		return
	}
	s.respondJSON(w, http.StatusOK, engine.View())
}

func (s *Server) handleLibrary(w http.ResponseWriter, r *http.Request) {
	engine, err := s.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondError(w, err, nil)
		return
	}
	result, err := s.registry.Execute(r.Context(), engine, command.ActionLibrary,
		map[string]any{"search": r.URL.Query().Get("search")})
	if err != nil {
		s.respondError(w, err, nil)
		return
	}
	s.respondJSON(w, http.StatusOK, result.Library)
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	engine, err := s.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondError(w, err, nil)
		return
	}

	var req ActionRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.registry.Execute(r.Context(), engine, chi.URLParam(r, "action"), req.Params())
	if err != nil {
		var data any
		if result != nil {
			data = result
		}
		s.respondError(w, err, data)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

// decodeBody reads an optional JSON body and validates it. It writes the
// error response itself and reports whether the handler may continue.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dest any) bool {
	if r.Body != nil && r.ContentLength != 0 {
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err := dec.Decode(dest); err != nil && !errors.Is(err, io.EOF) {
			s.respondError(w, apperrors.NewValidationError("invalid JSON body", "body", nil).WithCause(err), nil)
			return false
		}
	}
	if err := validateStruct(dest); err != nil {
		s.respondError(w, err, nil)
		return false
	}
	return true
}

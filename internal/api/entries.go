package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-integrations/internal/audit"
	"github.com/nerrad567/gray-logic-integrations/internal/entry"
	"github.com/nerrad567/gray-logic-integrations/internal/integrations"
)

// entryResponse is a stored entry with whether it is running.
type entryResponse struct {
	entry.Entry
	Loaded bool `json:"loaded"`
}

// handleListIntegrations returns the registered integrations.
func (s *Server) handleListIntegrations(w http.ResponseWriter, _ *http.Request) {
	infos := s.integrations.Integrations()
	writeJSON(w, http.StatusOK, map[string]any{
		"integrations": infos,
		"count":        len(infos),
	})
}

// handleListEntries returns the stored entries, optionally for one domain.
func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	var (
		entries []entry.Entry
		err     error
	)
	if domain := r.URL.Query().Get("domain"); domain != "" {
		entries, err = s.entries.ListByDomain(r.Context(), domain)
	} else {
		entries, err = s.entries.List(r.Context())
	}
	if err != nil {
		s.logger.Error("listing entries failed", "error", err)
		writeInternalError(w, "listing entries failed")
		return
	}

	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryResponse{Entry: e, Loaded: s.integrations.Loaded(e.ID)})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": out,
		"count":   len(out),
	})
}

// handleGetEntry returns one stored entry.
func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	e, err := s.entries.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeEntryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entryResponse{Entry: *e, Loaded: s.integrations.Loaded(e.ID)})
}

// handleDeleteEntry unloads and deletes an entry.
func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	e, err := s.entries.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeEntryError(w, r, err)
		return
	}
	if err := s.integrations.RemoveEntry(r.Context(), e.ID); err != nil {
		s.writeEntryError(w, r, err)
		return
	}
	s.recordAudit(r, audit.ActionEntryRemoved, e.Domain, e.ID, map[string]any{"title": e.Title})
	w.WriteHeader(http.StatusNoContent)
}

// handleGetEntryState returns the latest state of an entry.
func (s *Server) handleGetEntryState(w http.ResponseWriter, r *http.Request) {
	state, err := s.integrations.State(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeEntryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handleRefreshEntry polls a running entry now and returns its new state.
func (s *Server) handleRefreshEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.integrations.Refresh(r.Context(), id); err != nil {
		s.writeEntryError(w, r, err)
		return
	}
	state, err := s.integrations.State(r.Context(), id)
	if err != nil {
		s.writeEntryError(w, r, err)
		return
	}
	s.recordAudit(r, audit.ActionEntryRefreshed, state.Domain, id, nil)
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) writeEntryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, entry.ErrEntryNotFound):
		writeNotFound(w, "entry not found")
	case errors.Is(err, integrations.ErrNotLoaded), errors.Is(err, integrations.ErrRefreshUnsupported):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	default:
		// A failed refresh is also recorded in the entry state.
		if r.Method == http.MethodPost {
			writeError(w, http.StatusBadGateway, ErrCodeUpstream, err.Error())
			return
		}
		s.logger.Error("entry request failed", "error", err, "request_id", requestID(r))
		writeInternalError(w, "entry request failed")
	}
}

package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-logic-integrations/internal/audit"
)

// recordAudit stores an audit record for a change made by the caller.
// Failures are logged; the change itself already happened.
func (s *Server) recordAudit(r *http.Request, action audit.Action, domain, entryID string, details map[string]any) {
	if s.audit == nil {
		return
	}
	rec := &audit.Record{
		Action:  action,
		Domain:  domain,
		EntryID: entryID,
		Source:  audit.SourceAPI,
		Details: details,
	}
	if claims := claimsFromContext(r.Context()); claims != nil {
		rec.Subject = claims.Subject
	}
	if err := s.audit.Record(r.Context(), rec); err != nil {
		s.logger.Warn("recording audit failed", "action", action, "entry_id", entryID, "error", err)
	}
}

// handleListAudit returns audit records, newest first. Query parameters
// action, domain, entry_id, limit and offset narrow the result.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := audit.Filter{
		Action:  audit.Action(q.Get("action")),
		Domain:  q.Get("domain"),
		EntryID: q.Get("entry_id"),
	}
	for name, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, name+" must be a non-negative integer")
			return
		}
		*dst = n
	}

	page, err := s.audit.List(r.Context(), f)
	if err != nil {
		s.logger.Error("listing audit records failed", "error", err)
		writeInternalError(w, "listing audit records failed")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-integrations/internal/audit"
	"github.com/nerrad567/gray-logic-integrations/internal/flow"
)

// startFlowRequest is the request body for POST /flows.
type startFlowRequest struct {
	Domain string `json:"domain"`
}

// handleListFlows returns the flows in progress.
func (s *Server) handleListFlows(w http.ResponseWriter, _ *http.Request) {
	flows := s.flows.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"flows": flows,
		"count": len(flows),
	})
}

// handleStartFlow creates a flow for a domain and returns its first step.
func (s *Server) handleStartFlow(w http.ResponseWriter, r *http.Request) {
	var req startFlowRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Domain == "" {
		writeBadRequest(w, "domain is required")
		return
	}

	res, err := s.flows.Start(r.Context(), req.Domain)
	if err != nil {
		s.writeFlowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleGetFlow returns the step a flow is waiting on.
func (s *Server) handleGetFlow(w http.ResponseWriter, r *http.Request) {
	res, err := s.flows.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeFlowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleConfigureFlow submits input to the current step. Form errors come
// back as a 200 form result.
func (s *Server) handleConfigureFlow(w http.ResponseWriter, r *http.Request) {
	input := map[string]any{}
	if err := decodeJSON(r, &input); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	res, err := s.flows.Configure(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		s.writeFlowError(w, r, err)
		return
	}
	if res.Type == flow.ResultCreateEntry {
		s.recordAudit(r, audit.ActionEntryCreated, res.Domain, res.EntryID, map[string]any{
			"title":     res.Title,
			"unique_id": res.UniqueID,
			"flow_id":   res.FlowID,
		})
	}
	writeJSON(w, http.StatusOK, res)
}

// handleAbortFlow discards a flow.
func (s *Server) handleAbortFlow(w http.ResponseWriter, r *http.Request) {
	if err := s.flows.Abort(chi.URLParam(r, "id")); err != nil {
		s.writeFlowError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeFlowError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, flow.ErrUnknownDomain):
		writeNotFound(w, "unknown integration domain")
	case errors.Is(err, flow.ErrFlowNotFound):
		writeNotFound(w, "flow not found")
	default:
		s.logger.Error("flow step failed", "error", err, "request_id", requestID(r))
		writeInternalError(w, "flow step failed")
	}
}

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/hupe1980/useragents/core"
	"github.com/hupe1980/useragents/registry"
)

// agentRequestBody distinguishes absent fields from empty ones.
type agentRequestBody struct {
	AgentName    *string `json:"agent_name"`
	Instructions *string `json:"instructions"`
	Query        *string `json:"query"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type agentsResponse struct {
	Agents []registry.Entry `json:"agents"`
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeAgentRequest(w, r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	if !s.opts.StrictStatus {
		s.writeJSON(w, http.StatusOK, s.dispatcher.Handle(r.Context(), req))
		return
	}

	resp, err := s.dispatcher.Dispatch(r.Context(), req)
	if err != nil {
		s.writeJSON(w, statusFor(err), core.NewAgentResponse(req, err.Error()))
		return
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) decodeAgentRequest(w http.ResponseWriter, r *http.Request) (core.AgentRequest, error) {
	var body agentRequestBody

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		return core.AgentRequest{}, fmt.Errorf("invalid request body: %w", err)
	}

	var missing []string
	if body.AgentName == nil {
		missing = append(missing, "agent_name")
	}
	if body.Instructions == nil {
		missing = append(missing, "instructions")
	}
	if body.Query == nil {
		missing = append(missing, "query")
	}
	if len(missing) > 0 {
		return core.AgentRequest{}, fmt.Errorf("missing fields: %v", missing)
	}

	req := core.AgentRequest{
		AgentName:    *body.AgentName,
		Instructions: *body.Instructions,
		Query:        *body.Query,
	}

	if err := req.Validate(); err != nil {
		return core.AgentRequest{}, err
	}

	return req, nil
}

func statusFor(err error) int {
	var (
		nf *core.AgentNotFoundError
		ee *core.ExecutionError
	)

	switch {
	case errors.As(err, &nf):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.As(err, &ee):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleAgents(w http.ResponseWriter, _ *http.Request) {
	resp := agentsResponse{Agents: []registry.Entry{}}
	if s.catalog != nil {
		resp.Agents = append(resp.Agents, s.catalog.Entries()...)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("server.write.failed", "error", err.Error())
	}
}

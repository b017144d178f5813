package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

type agentSummary struct {
	Name    string `json:"name"`
	AgentID string `json:"agent_id"`
	Cycles  int    `json:"cycles"`
}

type healthResult struct {
	Agents        int    `json:"agents"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Started       string `json:"started"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, Success(healthResult{
		Agents:        len(s.agents),
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		Started:       s.started.UTC().Format(time.RFC3339),
	}))
}

func (s *Server) agentsHandler(w http.ResponseWriter, r *http.Request) {
	out := make([]agentSummary, 0, len(s.agents))
	for _, a := range s.agents {
		out = append(out, agentSummary{Name: a.Name(), AgentID: a.AgentID(), Cycles: a.History().Len()})
	}
	writeJSONResponse(w, http.StatusOK, Success(out))
}

// lookup resolves the {name} path value or writes a 404.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (Agent, bool) {
	name := r.PathValue("name")
	a, ok := s.byName[name]
	if !ok {
		slog.Warn("Server.lookup: unknown agent", "name", name, "path", r.URL.Path)
		writeJSONResponse(w, http.StatusNotFound, Error("Unknown agent: "+name))
		return nil, false
	}
	return a, true
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSONResponse(w, http.StatusOK, Success(a.Status()))
}

func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := s.lookup(w, r)
	if !ok {
		return
	}
	records := a.History().Snapshot()
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSONResponse(w, http.StatusBadRequest, Error("limit must be a positive integer"))
			return
		}
		if n < len(records) {
			records = records[len(records)-n:]
		}
	}
	writeJSONResponse(w, http.StatusOK, Success(records))
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSONResponse(w, http.StatusOK, Success(a.History().Stats()))
}

func (s *Server) reloadHandler(w http.ResponseWriter, r *http.Request) {
	if s.reloader == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, Error("Settings reload not configured"))
		return
	}
	if err := s.reloader.Reload(); err != nil {
		slog.Error("Server.reloadHandler: reload failed", "error", err)
		writeJSONResponse(w, http.StatusUnprocessableEntity, Error(err.Error()))
		return
	}
	slog.Info("Server.reloadHandler: settings reloaded")
	writeJSONResponse(w, http.StatusOK, SuccessWithMessage("Settings reloaded", nil))
}

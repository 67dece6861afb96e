package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/blockhaven/statusd/internal/status"
	"github.com/blockhaven/statusd/internal/vars"
)

// lookupQuery echoes back the parsed request so callers can see which
// target the result belongs to.
type lookupQuery struct {
	Server string `json:"server"`
	Host   string `json:"host"`
	Type   string `json:"type"`
	Port   uint16 `json:"port"`
}

// lookupResponse is the public lookup payload. CachedAt is when the
// underlying probe ran; QueryTimeMS is this request's wall time.
type lookupResponse struct {
	CachedAt    time.Time           `json:"cached_at"`
	Query       lookupQuery         `json:"query"`
	Status      status.StatusResult `json:"status"`
	QueryTimeMS int64               `json:"query_time_ms"`
}

// handleLookup resolves the status of one arbitrary address.
// Query params: ?server=host[:port]&type=minecraft|minecraft_bedrock|source
func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	server := r.URL.Query().Get("server")
	if server == "" {
		respondError(w, http.StatusBadRequest, "missing server parameter")
		return
	}

	typ := r.URL.Query().Get("type")
	if typ == "" {
		typ = status.TypeJava
	}

	target, err := status.ParseTarget(server, typ)
	if err != nil {
		var vErr *status.ValidationError
		if errors.As(err, &vErr) {
			respondError(w, http.StatusBadRequest, vErr.Error())
			return
		}
		respondError(w, http.StatusBadRequest, "invalid request")
		return
	}

	result := s.cache.Get(r.Context(), target, s.lookupTTL)

	respondJSON(w, http.StatusOK, lookupResponse{
		Query: lookupQuery{
			Server: server,
			Host:   target.Host,
			Port:   target.Port,
			Type:   typ,
		},
		QueryTimeMS: time.Since(start).Milliseconds(),
		CachedAt:    result.QueriedAt,
		Status:      result,
	})
}

// handleServers returns the status of every enabled registry server, keyed
// by "host:port". The list is config-driven, so it bypasses the
// fixed-window limiter.
func (s *Server) handleServers(w http.ResponseWriter, r *http.Request) {
	servers, err := s.registry.List(true)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch server list")
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}

	targets := make([]status.ServerTarget, 0, len(servers))
	for _, srv := range servers {
		targets = append(targets, srv.Target())
	}

	results := s.cache.GetMany(r.Context(), targets, s.listTTL)

	respondJSON(w, http.StatusOK, results)
}

// handleHealthz reports liveness and build information.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"build":  vars.Ver(),
	})
}

// respondJSON writes v as a JSON response body.
func respondJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// respondError writes a JSON error body with the given status code.
func respondError(w http.ResponseWriter, code int, msg string) {
	respondJSON(w, code, map[string]string{"error": msg})
}

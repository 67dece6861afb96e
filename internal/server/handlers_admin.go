package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/blockhaven/statusd/internal/registry"
)

// handleAdminList returns all registry rows, including disabled ones.
func (s *Server) handleAdminList(w http.ResponseWriter, _ *http.Request) {
	servers, err := s.registry.List(false)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch servers")
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}

	if servers == nil {
		servers = []registry.Server{}
	}

	respondJSON(w, http.StatusOK, servers)
}

// handleAdminUpsert creates or updates a configured server from a JSON body.
func (s *Server) handleAdminUpsert(w http.ResponseWriter, r *http.Request) {
	var srv registry.Server
	if err := json.NewDecoder(r.Body).Decode(&srv); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if srv.Host == "" || len(srv.Host) > 255 {
		respondError(w, http.StatusBadRequest, "host must be 1-255 characters")
		return
	}
	if !srv.Edition.Valid() {
		respondError(w, http.StatusBadRequest, "unknown edition")
		return
	}
	if srv.Port == 0 {
		srv.Port = srv.Edition.DefaultPort()
	}

	if err := s.registry.Upsert(srv); err != nil {
		log.Error().Err(err).
			Str("host", srv.Host).
			Uint16("port", srv.Port).
			Msg("Failed to upsert server")

		respondError(w, http.StatusInternalServerError, "database error")
		return
	}

	log.Info().
		Str("host", srv.Host).
		Uint16("port", srv.Port).
		Str("edition", string(srv.Edition)).
		Msg("Server saved")

	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAdminDelete removes a configured server.
// Query params: ?id=42
func (s *Server) handleAdminDelete(w http.ResponseWriter, r *http.Request) {
	idStr := r.URL.Query().Get("id")
	if idStr == "" {
		respondError(w, http.StatusBadRequest, "missing id parameter")
		return
	}

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := s.registry.Delete(id); err != nil {
		log.Error().Err(err).Int64("id", id).Msg("Failed to delete server")
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}

	log.Info().Int64("id", id).Msg("Server deleted")

	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/cuemby/relay/pkg/cache"
	"github.com/cuemby/relay/pkg/coordinator"
	"github.com/cuemby/relay/pkg/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error string `json:"error"`
}

// PurgeResponse is the body of a successful cache purge
type PurgeResponse struct {
	Purged int `json:"purged"`
}

func (s *Server) createContent(w http.ResponseWriter, r *http.Request) {
	var in types.NewContent
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	content, err := s.content.Create(r.Context(), in)
	if err != nil {
		s.writeContentError(w, r, err, "failed to create content")
		return
	}
	writeJSON(w, http.StatusCreated, content)
}

func (s *Server) likeContent(w http.ResponseWriter, r *http.Request) {
	id, ok := contentID(w, r)
	if !ok {
		return
	}

	content, err := s.content.Like(r.Context(), id)
	if err != nil {
		s.writeContentError(w, r, err, "failed to like content")
		return
	}
	writeJSON(w, http.StatusOK, content)
}

func (s *Server) getContent(w http.ResponseWriter, r *http.Request) {
	id, ok := contentID(w, r)
	if !ok {
		return
	}

	content, err := s.content.Get(r.Context(), id)
	if err != nil {
		s.writeContentError(w, r, err, "failed to load content")
		return
	}
	writeJSON(w, http.StatusOK, content)
}

func (s *Server) listContent(w http.ResponseWriter, r *http.Request) {
	contents, err := s.content.ListLatest(r.Context())
	if err != nil {
		s.writeContentError(w, r, err, "failed to list content")
		return
	}
	writeJSON(w, http.StatusOK, contents)
}

func (s *Server) purgeCache(w http.ResponseWriter, r *http.Request) {
	pattern, err := cache.PurgePattern(chi.URLParam(r, "namespace"), chi.URLParam(r, "pattern"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	purged, err := s.cache.DeleteMatching(r.Context(), pattern)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("pattern", pattern).Msg("Cache purge failed")
		writeError(w, http.StatusServiceUnavailable, "cache unavailable")
		return
	}

	zerolog.Ctx(r.Context()).Info().Str("pattern", pattern).Int("purged", purged).Msg("Cache purged")
	writeJSON(w, http.StatusOK, PurgeResponse{Purged: purged})
}

func (s *Server) writeContentError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	switch {
	case errors.Is(err, coordinator.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, coordinator.ErrNotFound):
		writeError(w, http.StatusNotFound, "content not found")
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg(msg)
		writeError(w, http.StatusInternalServerError, msg)
	}
}

func contentID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid content id")
		return 0, false
	}
	return id, true
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, ErrorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

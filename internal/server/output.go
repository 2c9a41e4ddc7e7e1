package server

import (
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/voyagen/m3ueditor/internal/service"
)

// handlePlaylistOutput serves GET /{uuid}/playlist.m3u without authentication:
// the uuid is the capability.
func (s *Server) handlePlaylistOutput(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "uuid")
	if _, err := uuid.Parse(id); err != nil {
		writeErr(w, http.StatusNotFound, "playlist not found")
		return
	}
	target, body, err := service.GeneratePlaylist(r.Context(), s.store, id)
	if err != nil {
		s.writeStoreErr(w, r, "playlist", err)
		return
	}
	w.Header().Set("Content-Type", "audio/x-mpegurl; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", target.Name+".m3u"))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		s.log.WithError(err).WithField("uuid", id).Warn("write playlist output")
	}
}

package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/voyagen/m3ueditor/internal/cache"
	"github.com/voyagen/m3ueditor/internal/models"
)

// parseForce reads the optional {force} path segment; absent means true.
func parseForce(r *http.Request) (bool, error) {
	v := chi.URLParam(r, "force")
	if v == "" {
		return true, nil
	}
	force, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid force: %s", v)
	}
	return force, nil
}

func (s *Server) handleSyncPlaylist(w http.ResponseWriter, r *http.Request) {
	p, ok := owned(s, w, r, "playlist", s.store.GetPlaylist, func(p *models.Playlist) int64 { return p.UserID })
	if !ok {
		return
	}
	force, err := parseForce(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	job := cache.SyncJob{Kind: cache.JobPlaylist, ID: p.ID, UserID: p.UserID, Force: force}
	if err := s.queue.Dispatch(r.Context(), job); err != nil {
		s.writeStoreErr(w, r, "playlist", err)
		return
	}
	writeMessage(w, http.StatusOK, fmt.Sprintf("Playlist %q is currently being synced...", p.Name))
}

func (s *Server) handleSyncEpg(w http.ResponseWriter, r *http.Request) {
	e, ok := owned(s, w, r, "epg", s.store.GetEpg, func(e *models.Epg) int64 { return e.UserID })
	if !ok {
		return
	}
	force, err := parseForce(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	job := cache.SyncJob{Kind: cache.JobEpg, ID: e.ID, UserID: e.UserID, Force: force}
	if err := s.queue.Dispatch(r.Context(), job); err != nil {
		s.writeStoreErr(w, r, "epg", err)
		return
	}
	writeMessage(w, http.StatusOK, fmt.Sprintf("EPG %q is currently being synced...", e.Name))
}

// dispatchImport queues the first import of a new record. A failed dispatch
// is only logged: a never-synced record is due and the scheduler picks it up.
func (s *Server) dispatchImport(r *http.Request, kind string, id, userID int64) {
	job := cache.SyncJob{Kind: kind, ID: id, UserID: userID, Force: true}
	if err := s.queue.Dispatch(r.Context(), job); err != nil {
		s.log.WithError(err).WithField("job", kind).WithField("id", id).Warn("initial import not queued")
	}
}

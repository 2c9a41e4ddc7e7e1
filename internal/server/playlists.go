package server

import (
	"net/http"

	"github.com/voyagen/m3ueditor/internal/cache"
	"github.com/voyagen/m3ueditor/internal/models"
	"github.com/voyagen/m3ueditor/internal/storage"
	"github.com/voyagen/m3ueditor/internal/store"
)

func playlistOwner(p *models.Playlist) int64 { return p.UserID }

func (s *Server) handleListPlaylists(w http.ResponseWriter, r *http.Request) {
	playlists, err := s.store.ListPlaylists(r.Context(), currentUser(r))
	if err != nil {
		s.writeStoreErr(w, r, "playlist", err)
		return
	}
	if playlists == nil {
		playlists = []models.Playlist{}
	}
	writeJSON(w, http.StatusOK, playlists)
}

type createPlaylistRequest struct {
	Name         string         `json:"name" validate:"required,max=255"`
	URL          string         `json:"url" validate:"required,http_url"`
	SyncInterval string         `json:"sync_interval" validate:"interval"`
	ImportPrefs  map[string]any `json:"import_prefs"`
}

func (s *Server) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var req createPlaylistRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.ImportPrefs == nil {
		req.ImportPrefs = map[string]any{}
	}
	p := &models.Playlist{
		UserID:       currentUser(r),
		Name:         req.Name,
		URL:          req.URL,
		SyncInterval: models.NormalizeSyncInterval(req.SyncInterval),
		ImportPrefs:  req.ImportPrefs,
	}
	if err := s.store.CreatePlaylist(r.Context(), p); err != nil {
		s.writeStoreErr(w, r, "playlist", err)
		return
	}
	s.dispatchImport(r, cache.JobPlaylist, p.ID, p.UserID)
	writeJSON(w, http.StatusCreated, p)
}

type updatePlaylistRequest struct {
	Name         *string        `json:"name" validate:"omitempty,min=1,max=255"`
	URL          *string        `json:"url" validate:"omitempty,http_url"`
	SyncInterval *string        `json:"sync_interval" validate:"omitempty,interval"`
	ImportPrefs  map[string]any `json:"import_prefs"`
}

func (s *Server) handleUpdatePlaylist(w http.ResponseWriter, r *http.Request) {
	p, ok := owned(s, w, r, "playlist", s.store.GetPlaylist, playlistOwner)
	if !ok {
		return
	}
	var req updatePlaylistRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.SyncInterval != nil {
		v := models.NormalizeSyncInterval(*req.SyncInterval)
		req.SyncInterval = &v
	}
	fields := store.PlaylistUpdate{
		Name:         req.Name,
		URL:          req.URL,
		SyncInterval: req.SyncInterval,
		ImportPrefs:  req.ImportPrefs,
	}
	if err := s.store.UpdatePlaylist(r.Context(), p.ID, fields); err != nil {
		s.writeStoreErr(w, r, "playlist", err)
		return
	}
	updated, err := s.store.GetPlaylist(r.Context(), p.ID)
	if err != nil {
		s.writeStoreErr(w, r, "playlist", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeletePlaylist(w http.ResponseWriter, r *http.Request) {
	p, ok := owned(s, w, r, "playlist", s.store.GetPlaylist, playlistOwner)
	if !ok {
		return
	}
	if err := s.store.DeletePlaylist(r.Context(), p.ID); err != nil {
		s.writeStoreErr(w, r, "playlist", err)
		return
	}
	s.removeFolder(storage.KindPlaylist, p.UUID)
	writeMessage(w, http.StatusOK, "Playlist deleted")
}

// removeFolder drops the raw document folder of a deleted record. Failures are logged only.
func (s *Server) removeFolder(kind, uuid string) {
	if s.folders == nil {
		return
	}
	if err := s.folders.Remove(kind, uuid); err != nil {
		s.log.WithError(err).WithField("uuid", uuid).Warn("remove storage folder")
	}
}

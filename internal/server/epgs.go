package server

import (
	"net/http"

	"github.com/voyagen/m3ueditor/internal/cache"
	"github.com/voyagen/m3ueditor/internal/models"
	"github.com/voyagen/m3ueditor/internal/storage"
	"github.com/voyagen/m3ueditor/internal/store"
)

func epgOwner(e *models.Epg) int64 { return e.UserID }

func (s *Server) handleListEpgs(w http.ResponseWriter, r *http.Request) {
	epgs, err := s.store.ListEpgs(r.Context(), currentUser(r))
	if err != nil {
		s.writeStoreErr(w, r, "epg", err)
		return
	}
	if epgs == nil {
		epgs = []models.Epg{}
	}
	writeJSON(w, http.StatusOK, epgs)
}

type createEpgRequest struct {
	Name         string `json:"name" validate:"required,max=255"`
	URL          string `json:"url" validate:"required,http_url"`
	SyncInterval string `json:"sync_interval" validate:"interval"`
}

func (s *Server) handleCreateEpg(w http.ResponseWriter, r *http.Request) {
	var req createEpgRequest
	if !s.decode(w, r, &req) {
		return
	}
	e := &models.Epg{
		UserID:       currentUser(r),
		Name:         req.Name,
		URL:          req.URL,
		SyncInterval: models.NormalizeSyncInterval(req.SyncInterval),
	}
	if err := s.store.CreateEpg(r.Context(), e); err != nil {
		s.writeStoreErr(w, r, "epg", err)
		return
	}
	s.dispatchImport(r, cache.JobEpg, e.ID, e.UserID)
	writeJSON(w, http.StatusCreated, e)
}

type updateEpgRequest struct {
	Name         *string `json:"name" validate:"omitempty,min=1,max=255"`
	URL          *string `json:"url" validate:"omitempty,http_url"`
	SyncInterval *string `json:"sync_interval" validate:"omitempty,interval"`
}

func (s *Server) handleUpdateEpg(w http.ResponseWriter, r *http.Request) {
	e, ok := owned(s, w, r, "epg", s.store.GetEpg, epgOwner)
	if !ok {
		return
	}
	var req updateEpgRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.SyncInterval != nil {
		v := models.NormalizeSyncInterval(*req.SyncInterval)
		req.SyncInterval = &v
	}
	fields := store.EpgUpdate{Name: req.Name, URL: req.URL, SyncInterval: req.SyncInterval}
	if err := s.store.UpdateEpg(r.Context(), e.ID, fields); err != nil {
		s.writeStoreErr(w, r, "epg", err)
		return
	}
	updated, err := s.store.GetEpg(r.Context(), e.ID)
	if err != nil {
		s.writeStoreErr(w, r, "epg", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteEpg(w http.ResponseWriter, r *http.Request) {
	e, ok := owned(s, w, r, "epg", s.store.GetEpg, epgOwner)
	if !ok {
		return
	}
	if err := s.store.DeleteEpg(r.Context(), e.ID); err != nil {
		s.writeStoreErr(w, r, "epg", err)
		return
	}
	s.removeFolder(storage.KindEpg, e.UUID)
	writeMessage(w, http.StatusOK, "EPG deleted")
}

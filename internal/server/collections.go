package server

import (
	"net/http"

	"github.com/voyagen/m3ueditor/internal/models"
	"github.com/voyagen/m3ueditor/internal/store"
)

func customOwner(c *models.CustomPlaylist) int64 { return c.UserID }
func mergedOwner(m *models.MergedPlaylist) int64 { return m.UserID }

// --- custom playlists ---

func (s *Server) handleListCustomPlaylists(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListCustomPlaylists(r.Context(), currentUser(r))
	if err != nil {
		s.writeStoreErr(w, r, "custom playlist", err)
		return
	}
	if list == nil {
		list = []models.CustomPlaylist{}
	}
	writeJSON(w, http.StatusOK, list)
}

type createCustomPlaylistRequest struct {
	Name                 string  `json:"name" validate:"required,max=255"`
	Channels             []int64 `json:"channels"`
	AutoChannelIncrement bool    `json:"auto_channel_increment"`
	ChannelStart         int     `json:"channel_start" validate:"min=0"`
}

func (s *Server) handleCreateCustomPlaylist(w http.ResponseWriter, r *http.Request) {
	var req createCustomPlaylistRequest
	if !s.decode(w, r, &req) {
		return
	}
	userID := currentUser(r)
	if !s.checkListOrFail(w, r, userID, store.OwnedChannels, "channels", req.Channels) {
		return
	}
	cp := &models.CustomPlaylist{
		UserID:               userID,
		Name:                 req.Name,
		AutoChannelIncrement: req.AutoChannelIncrement,
		ChannelStart:         req.ChannelStart,
	}
	if err := s.store.CreateCustomPlaylist(r.Context(), cp); err != nil {
		s.writeStoreErr(w, r, "custom playlist", err)
		return
	}
	if len(req.Channels) > 0 {
		if err := s.store.AttachCustomPlaylistChannels(r.Context(), cp.ID, req.Channels); err != nil {
			s.writeStoreErr(w, r, "custom playlist", err)
			return
		}
	}
	s.writeCustomPlaylist(w, r, http.StatusCreated, cp.ID)
}

type updateCustomPlaylistRequest struct {
	Name                 *string  `json:"name" validate:"omitempty,min=1,max=255"`
	Channels             *[]int64 `json:"channels"`
	AutoChannelIncrement *bool    `json:"auto_channel_increment"`
	ChannelStart         *int     `json:"channel_start" validate:"omitempty,min=0"`
}

func (s *Server) handleUpdateCustomPlaylist(w http.ResponseWriter, r *http.Request) {
	cp, ok := owned(s, w, r, "custom playlist", s.store.GetCustomPlaylist, customOwner)
	if !ok {
		return
	}
	var req updateCustomPlaylistRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Channels != nil && !s.checkListOrFail(w, r, cp.UserID, store.OwnedChannels, "channels", *req.Channels) {
		return
	}
	fields := store.CollectionUpdate{
		Name:                 req.Name,
		AutoChannelIncrement: req.AutoChannelIncrement,
		ChannelStart:         req.ChannelStart,
	}
	if err := s.store.UpdateCustomPlaylist(r.Context(), cp.ID, fields); err != nil {
		s.writeStoreErr(w, r, "custom playlist", err)
		return
	}
	if req.Channels != nil {
		if err := s.store.SyncCustomPlaylistChannels(r.Context(), cp.ID, *req.Channels); err != nil {
			s.writeStoreErr(w, r, "custom playlist", err)
			return
		}
	}
	s.writeCustomPlaylist(w, r, http.StatusOK, cp.ID)
}

type attachChannelsRequest struct {
	Channels []int64 `json:"channels" validate:"required,min=1"`
}

func (s *Server) handleAttachCustomPlaylistChannels(w http.ResponseWriter, r *http.Request) {
	cp, ok := owned(s, w, r, "custom playlist", s.store.GetCustomPlaylist, customOwner)
	if !ok {
		return
	}
	var req attachChannelsRequest
	if !s.decode(w, r, &req) {
		return
	}
	if !s.checkListOrFail(w, r, cp.UserID, store.OwnedChannels, "channels", req.Channels) {
		return
	}
	if err := s.store.AttachCustomPlaylistChannels(r.Context(), cp.ID, req.Channels); err != nil {
		s.writeStoreErr(w, r, "custom playlist", err)
		return
	}
	s.writeCustomPlaylist(w, r, http.StatusOK, cp.ID)
}

func (s *Server) handleDeleteCustomPlaylist(w http.ResponseWriter, r *http.Request) {
	cp, ok := owned(s, w, r, "custom playlist", s.store.GetCustomPlaylist, customOwner)
	if !ok {
		return
	}
	if err := s.store.DeleteCustomPlaylist(r.Context(), cp.ID); err != nil {
		s.writeStoreErr(w, r, "custom playlist", err)
		return
	}
	writeMessage(w, http.StatusOK, "Custom playlist deleted")
}

func (s *Server) writeCustomPlaylist(w http.ResponseWriter, r *http.Request, status int, id int64) {
	cp, err := s.store.GetCustomPlaylist(r.Context(), id)
	if err != nil {
		s.writeStoreErr(w, r, "custom playlist", err)
		return
	}
	if cp.Channels == nil {
		cp.Channels = []models.ChannelRef{}
	}
	writeJSON(w, status, cp)
}

// --- merged playlists ---

func (s *Server) handleListMergedPlaylists(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListMergedPlaylists(r.Context(), currentUser(r))
	if err != nil {
		s.writeStoreErr(w, r, "merged playlist", err)
		return
	}
	if list == nil {
		list = []models.MergedPlaylist{}
	}
	writeJSON(w, http.StatusOK, list)
}

type createMergedPlaylistRequest struct {
	Name                 string  `json:"name" validate:"required,max=255"`
	Playlists            []int64 `json:"playlists" validate:"required,min=1"`
	AutoChannelIncrement bool    `json:"auto_channel_increment"`
	ChannelStart         int     `json:"channel_start" validate:"min=0"`
}

func (s *Server) handleCreateMergedPlaylist(w http.ResponseWriter, r *http.Request) {
	var req createMergedPlaylistRequest
	if !s.decode(w, r, &req) {
		return
	}
	userID := currentUser(r)
	if !s.checkListOrFail(w, r, userID, store.OwnedPlaylists, "playlists", req.Playlists) {
		return
	}
	mp := &models.MergedPlaylist{
		UserID:               userID,
		Name:                 req.Name,
		AutoChannelIncrement: req.AutoChannelIncrement,
		ChannelStart:         req.ChannelStart,
	}
	if err := s.store.CreateMergedPlaylist(r.Context(), mp); err != nil {
		s.writeStoreErr(w, r, "merged playlist", err)
		return
	}
	if err := s.store.SyncMergedPlaylistPlaylists(r.Context(), mp.ID, req.Playlists); err != nil {
		s.writeStoreErr(w, r, "merged playlist", err)
		return
	}
	s.writeMergedPlaylist(w, r, http.StatusCreated, mp.ID)
}

type updateMergedPlaylistRequest struct {
	Name                 *string  `json:"name" validate:"omitempty,min=1,max=255"`
	Playlists            *[]int64 `json:"playlists"`
	AutoChannelIncrement *bool    `json:"auto_channel_increment"`
	ChannelStart         *int     `json:"channel_start" validate:"omitempty,min=0"`
}

func (s *Server) handleUpdateMergedPlaylist(w http.ResponseWriter, r *http.Request) {
	mp, ok := owned(s, w, r, "merged playlist", s.store.GetMergedPlaylist, mergedOwner)
	if !ok {
		return
	}
	var req updateMergedPlaylistRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Playlists != nil && !s.checkListOrFail(w, r, mp.UserID, store.OwnedPlaylists, "playlists", *req.Playlists) {
		return
	}
	fields := store.CollectionUpdate{
		Name:                 req.Name,
		AutoChannelIncrement: req.AutoChannelIncrement,
		ChannelStart:         req.ChannelStart,
	}
	if err := s.store.UpdateMergedPlaylist(r.Context(), mp.ID, fields); err != nil {
		s.writeStoreErr(w, r, "merged playlist", err)
		return
	}
	if req.Playlists != nil {
		if err := s.store.SyncMergedPlaylistPlaylists(r.Context(), mp.ID, *req.Playlists); err != nil {
			s.writeStoreErr(w, r, "merged playlist", err)
			return
		}
	}
	s.writeMergedPlaylist(w, r, http.StatusOK, mp.ID)
}

func (s *Server) handleDeleteMergedPlaylist(w http.ResponseWriter, r *http.Request) {
	mp, ok := owned(s, w, r, "merged playlist", s.store.GetMergedPlaylist, mergedOwner)
	if !ok {
		return
	}
	if err := s.store.DeleteMergedPlaylist(r.Context(), mp.ID); err != nil {
		s.writeStoreErr(w, r, "merged playlist", err)
		return
	}
	writeMessage(w, http.StatusOK, "Merged playlist deleted")
}

func (s *Server) writeMergedPlaylist(w http.ResponseWriter, r *http.Request, status int, id int64) {
	mp, err := s.store.GetMergedPlaylist(r.Context(), id)
	if err != nil {
		s.writeStoreErr(w, r, "merged playlist", err)
		return
	}
	if mp.Playlists == nil {
		mp.Playlists = []models.PlaylistRef{}
	}
	writeJSON(w, status, mp)
}

// checkListOrFail checks list ownership and writes 422 (or 500) itself on failure.
func (s *Server) checkListOrFail(w http.ResponseWriter, r *http.Request, userID int64, table, field string, ids []int64) bool {
	errs := fieldErrors{}
	if err := s.checkOwnedList(r.Context(), errs, userID, table, field, ids); err != nil {
		s.writeStoreErr(w, r, field, err)
		return false
	}
	if len(errs) > 0 {
		writeValidation(w, errs)
		return false
	}
	return true
}

package server

import (
	"errors"
	"net/http"

	"github.com/voyagen/m3ueditor/internal/models"
	"github.com/voyagen/m3ueditor/internal/store"
)

func groupOwner(g *models.Group) int64 { return g.UserID }

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.store.ListGroups(r.Context(), currentUser(r))
	if err != nil {
		s.writeStoreErr(w, r, "group", err)
		return
	}
	if groups == nil {
		groups = []models.Group{}
	}
	writeJSON(w, http.StatusOK, groups)
}

type createGroupRequest struct {
	Name       string `json:"name" validate:"required,max=255"`
	PlaylistID *int64 `json:"playlist_id" validate:"required"`
}

var nameTaken = fieldErrors{"name": {"The name has already been taken."}}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if !s.decode(w, r, &req) {
		return
	}
	userID := currentUser(r)
	errs := fieldErrors{}
	if err := s.checkOwned(r.Context(), errs, userID, store.OwnedPlaylists, "playlist_id", req.PlaylistID); err != nil {
		s.writeStoreErr(w, r, "playlist", err)
		return
	}
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}
	g := &models.Group{UserID: userID, PlaylistID: *req.PlaylistID, Name: req.Name}
	if err := s.store.CreateGroup(r.Context(), g); err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeValidation(w, nameTaken)
			return
		}
		s.writeStoreErr(w, r, "group", err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

type updateGroupRequest struct {
	Name       *string `json:"name" validate:"omitempty,min=1,max=255"`
	PlaylistID *int64  `json:"playlist_id"`
}

func (s *Server) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	g, ok := owned(s, w, r, "group", s.store.GetGroup, groupOwner)
	if !ok {
		return
	}
	var req updateGroupRequest
	if !s.decode(w, r, &req) {
		return
	}
	errs := fieldErrors{}
	if err := s.checkOwned(r.Context(), errs, g.UserID, store.OwnedPlaylists, "playlist_id", req.PlaylistID); err != nil {
		s.writeStoreErr(w, r, "playlist", err)
		return
	}
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}
	if err := s.store.UpdateGroup(r.Context(), g.ID, store.GroupUpdate{Name: req.Name, PlaylistID: req.PlaylistID}); err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeValidation(w, nameTaken)
			return
		}
		s.writeStoreErr(w, r, "group", err)
		return
	}
	updated, err := s.store.GetGroup(r.Context(), g.ID)
	if err != nil {
		s.writeStoreErr(w, r, "group", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	g, ok := owned(s, w, r, "group", s.store.GetGroup, groupOwner)
	if !ok {
		return
	}
	if err := s.store.DeleteGroup(r.Context(), g.ID); err != nil {
		s.writeStoreErr(w, r, "group", err)
		return
	}
	writeMessage(w, http.StatusOK, "Group deleted")
}

package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/voyagen/m3ueditor/internal/cache"
	"github.com/voyagen/m3ueditor/internal/models"
	"github.com/voyagen/m3ueditor/internal/store"
)

const (
	defaultChannelLimit = 50
	maxChannelLimit     = 500
)

func channelOwner(c *models.Channel) int64 { return c.UserID }

func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := store.ChannelFilter{
		UserID: currentUser(r),
		Search: q.Get("search"),
	}

	if v := q.Get("playlist_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Sprintf("invalid playlist_id: %s", v))
			return
		}
		filter.PlaylistID = &id
	}
	if v := q.Get("group_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Sprintf("invalid group_id: %s", v))
			return
		}
		filter.GroupID = &id
	}
	if v := q.Get("enabled"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Sprintf("invalid enabled: %s (use true or false)", v))
			return
		}
		filter.Enabled = &enabled
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Sprintf("invalid limit: %s", v))
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeErr(w, http.StatusBadRequest, fmt.Sprintf("invalid offset: %s", v))
			return
		}
		filter.Offset = n
	}

	// Apply defaults so the response reflects actual values used.
	if filter.Limit <= 0 {
		filter.Limit = defaultChannelLimit
	}
	if filter.Limit > maxChannelLimit {
		filter.Limit = maxChannelLimit
	}

	channels, total, err := s.store.ListChannels(r.Context(), filter)
	if err != nil {
		s.writeStoreErr(w, r, "channel", err)
		return
	}
	if channels == nil {
		channels = []models.Channel{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"channels": channels,
		"total":    total,
		"limit":    filter.Limit,
		"offset":   filter.Offset,
	})
}

type createChannelRequest struct {
	Name       string  `json:"name" validate:"required,max=255"`
	URL        string  `json:"url" validate:"required,http_url"`
	PlaylistID *int64  `json:"playlist_id" validate:"required"`
	GroupID    *int64  `json:"group_id"`
	Title      string  `json:"title" validate:"max=255"`
	Logo       *string `json:"logo" validate:"omitempty,http_url"`
	Enabled    *bool   `json:"enabled"`
	Shift      int     `json:"shift"`
	Number     *int    `json:"channel" validate:"omitempty,min=0"`
}

func (s *Server) handleCreateChannel(w http.ResponseWriter, r *http.Request) {
	var req createChannelRequest
	if !s.decode(w, r, &req) {
		return
	}
	userID := currentUser(r)
	errs, err := s.checkChannelRefs(r, userID, req.PlaylistID, req.GroupID)
	if err != nil {
		s.writeStoreErr(w, r, "channel", err)
		return
	}
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	ch := &models.Channel{
		UserID:     userID,
		PlaylistID: *req.PlaylistID,
		GroupID:    req.GroupID,
		Name:       req.Name,
		Title:      req.Title,
		URL:        req.URL,
		Logo:       req.Logo,
		LogoType:   models.LogoTypeChannel,
		Shift:      req.Shift,
		Number:     req.Number,
		Enabled:    req.Enabled == nil || *req.Enabled,
	}
	if err := s.store.CreateChannel(r.Context(), ch); err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeValidation(w, nameTaken)
			return
		}
		s.writeStoreErr(w, r, "channel", err)
		return
	}
	writeJSON(w, http.StatusCreated, ch)
}

// checkChannelRefs validates the playlist and group a channel points at: both
// must belong to userID and the group must be one of the playlist's.
func (s *Server) checkChannelRefs(r *http.Request, userID int64, playlistID, groupID *int64) (fieldErrors, error) {
	errs := fieldErrors{}
	ctx := r.Context()
	if err := s.checkOwned(ctx, errs, userID, store.OwnedPlaylists, "playlist_id", playlistID); err != nil {
		return nil, err
	}
	if err := s.checkOwned(ctx, errs, userID, store.OwnedGroups, "group_id", groupID); err != nil {
		return nil, err
	}
	if len(errs) == 0 && playlistID != nil && groupID != nil {
		g, err := s.store.GetGroup(ctx, *groupID)
		if err != nil {
			return nil, err
		}
		if g.PlaylistID != *playlistID {
			errs.add("group_id", "The selected group id does not belong to the playlist.")
		}
	}
	return errs, nil
}

type updateChannelRequest struct {
	Name         *string `json:"name" validate:"omitempty,min=1,max=255"`
	URL          *string `json:"url" validate:"omitempty,http_url"`
	PlaylistID   *int64  `json:"playlist_id"`
	GroupID      *int64  `json:"group_id"`
	Enabled      *bool   `json:"enabled"`
	Shift        *int    `json:"shift"`
	Logo         *string `json:"logo"`
	LogoType     *string `json:"logo_type" validate:"omitempty,oneof=channel epg"`
	NameCustom   *string `json:"name_custom" validate:"omitempty,max=255"`
	TitleCustom  *string `json:"title_custom" validate:"omitempty,max=255"`
	Number       *int    `json:"channel" validate:"omitempty,min=0"`
	EpgChannelID *int64  `json:"epg_channel_id"`
}

func (s *Server) handleUpdateChannel(w http.ResponseWriter, r *http.Request) {
	ch, ok := owned(s, w, r, "channel", s.store.GetChannel, channelOwner)
	if !ok {
		return
	}
	var req updateChannelRequest
	if !s.decode(w, r, &req) {
		return
	}

	// The group that will be set must belong to the playlist that will be set,
	// including a kept group when only playlist_id changes.
	playlistID, groupID := req.PlaylistID, req.GroupID
	if playlistID == nil && groupID != nil {
		playlistID = &ch.PlaylistID
	}
	if groupID == nil && playlistID != nil && ch.GroupID != nil {
		groupID = ch.GroupID
	}
	errs, err := s.checkChannelRefs(r, ch.UserID, playlistID, groupID)
	if err != nil {
		s.writeStoreErr(w, r, "channel", err)
		return
	}
	if err := s.checkOwned(r.Context(), errs, ch.UserID, store.OwnedEpgChannels, "epg_channel_id", req.EpgChannelID); err != nil {
		s.writeStoreErr(w, r, "channel", err)
		return
	}
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	fields := store.ChannelUpdate{
		Name:         req.Name,
		URL:          req.URL,
		PlaylistID:   req.PlaylistID,
		GroupID:      req.GroupID,
		Enabled:      req.Enabled,
		Shift:        req.Shift,
		Logo:         req.Logo,
		LogoType:     req.LogoType,
		NameCustom:   req.NameCustom,
		TitleCustom:  req.TitleCustom,
		Number:       req.Number,
		EpgChannelID: req.EpgChannelID,
	}
	if err := s.store.UpdateChannel(r.Context(), ch.ID, fields); err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeValidation(w, nameTaken)
			return
		}
		s.writeStoreErr(w, r, "channel", err)
		return
	}
	updated, err := s.store.GetChannel(r.Context(), ch.ID)
	if err != nil {
		s.writeStoreErr(w, r, "channel", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteChannel(w http.ResponseWriter, r *http.Request) {
	ch, ok := owned(s, w, r, "channel", s.store.GetChannel, channelOwner)
	if !ok {
		return
	}
	if err := s.store.DeleteChannel(r.Context(), ch.ID); err != nil {
		s.writeStoreErr(w, r, "channel", err)
		return
	}
	writeMessage(w, http.StatusOK, "Channel deleted")
}

// --- bulk actions ---

type bulkResponse struct {
	Message string `json:"message"`
	Updated int64  `json:"updated"`
}

type bulkIDsRequest struct {
	IDs []int64 `json:"ids" validate:"required,min=1"`
}

// decodeBulk decodes a bulk request and checks that every id is one of the caller's channels.
func (s *Server) decodeBulk(w http.ResponseWriter, r *http.Request, dst any, ids func() []int64, extra func(fieldErrors) error) bool {
	if !s.decode(w, r, dst) {
		return false
	}
	errs := fieldErrors{}
	if err := s.checkOwnedList(r.Context(), errs, currentUser(r), store.OwnedChannels, "ids", ids()); err != nil {
		s.writeStoreErr(w, r, "channel", err)
		return false
	}
	if extra != nil {
		if err := extra(errs); err != nil {
			s.writeStoreErr(w, r, "channel", err)
			return false
		}
	}
	if len(errs) > 0 {
		writeValidation(w, errs)
		return false
	}
	return true
}

func (s *Server) handleBulkEnable(enabled bool) http.HandlerFunc {
	verb := "enabled"
	if !enabled {
		verb = "disabled"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req bulkIDsRequest
		if !s.decodeBulk(w, r, &req, func() []int64 { return req.IDs }, nil) {
			return
		}
		n, err := s.store.SetChannelsEnabled(r.Context(), currentUser(r), req.IDs, enabled)
		if err != nil {
			s.writeStoreErr(w, r, "channel", err)
			return
		}
		writeJSON(w, http.StatusOK, bulkResponse{Message: fmt.Sprintf("Channels %s", verb), Updated: n})
	}
}

type bulkMoveRequest struct {
	IDs        []int64 `json:"ids" validate:"required,min=1"`
	PlaylistID *int64  `json:"playlist_id" validate:"required"`
	GroupID    *int64  `json:"group_id" validate:"required"`
}

func (s *Server) handleBulkMove(w http.ResponseWriter, r *http.Request) {
	var req bulkMoveRequest
	extra := func(errs fieldErrors) error {
		refs, err := s.checkChannelRefs(r, currentUser(r), req.PlaylistID, req.GroupID)
		for k, v := range refs {
			errs[k] = append(errs[k], v...)
		}
		return err
	}
	if !s.decodeBulk(w, r, &req, func() []int64 { return req.IDs }, extra) {
		return
	}
	g, err := s.store.GetGroup(r.Context(), *req.GroupID)
	if err != nil {
		s.writeStoreErr(w, r, "group", err)
		return
	}
	n, err := s.store.MoveChannelsToGroup(r.Context(), currentUser(r), req.IDs, g)
	if err != nil {
		s.writeStoreErr(w, r, "channel", err)
		return
	}
	writeJSON(w, http.StatusOK, bulkResponse{Message: fmt.Sprintf("Channels moved to %q", g.Name), Updated: n})
}

type bulkLogoTypeRequest struct {
	IDs      []int64 `json:"ids" validate:"required,min=1"`
	LogoType string  `json:"logo_type" validate:"required,oneof=channel epg"`
}

func (s *Server) handleBulkLogoType(w http.ResponseWriter, r *http.Request) {
	var req bulkLogoTypeRequest
	if !s.decodeBulk(w, r, &req, func() []int64 { return req.IDs }, nil) {
		return
	}
	n, err := s.store.SetChannelsLogoType(r.Context(), currentUser(r), req.IDs, req.LogoType)
	if err != nil {
		s.writeStoreErr(w, r, "channel", err)
		return
	}
	writeJSON(w, http.StatusOK, bulkResponse{Message: "Channel logo type updated", Updated: n})
}

type bulkMapEpgRequest struct {
	IDs       []int64 `json:"ids" validate:"required,min=1"`
	EpgID     *int64  `json:"epg_id" validate:"required"`
	Overwrite bool    `json:"overwrite"`
}

func (s *Server) handleBulkMapEpg(w http.ResponseWriter, r *http.Request) {
	var req bulkMapEpgRequest
	userID := currentUser(r)
	extra := func(errs fieldErrors) error {
		return s.checkOwned(r.Context(), errs, userID, store.OwnedEpgs, "epg_id", req.EpgID)
	}
	if !s.decodeBulk(w, r, &req, func() []int64 { return req.IDs }, extra) {
		return
	}
	job := cache.SyncJob{
		Kind:       cache.JobMapEpg,
		ID:         *req.EpgID,
		UserID:     userID,
		ChannelIDs: req.IDs,
		Overwrite:  req.Overwrite,
	}
	if err := s.queue.Dispatch(r.Context(), job); err != nil {
		s.writeStoreErr(w, r, "epg", err)
		return
	}
	writeMessage(w, http.StatusAccepted, "EPG mapping queued")
}

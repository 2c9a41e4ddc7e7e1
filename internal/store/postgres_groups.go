package store

import (
	"context"
	"fmt"

	"github.com/voyagen/m3ueditor/internal/models"
)

// GetOrCreateGroup returns the group id for (playlistID, name), inserting it if needed.
func (p *Postgres) GetOrCreateGroup(ctx context.Context, userID, playlistID int64, name string) (int64, error) {
	var id int64
	err := p.pool.QueryRow(ctx,
		`INSERT INTO groups (user_id, playlist_id, name) VALUES ($1, $2, $3)
		 ON CONFLICT (playlist_id, name) DO UPDATE SET updated_at = NOW()
		 RETURNING id`,
		userID, playlistID, name,
	).Scan(&id)
	if err != nil {
		return 0, wrapErr("GetOrCreateGroup", err)
	}
	return id, nil
}

func (p *Postgres) CreateGroup(ctx context.Context, g *models.Group) error {
	err := p.pool.QueryRow(ctx,
		`INSERT INTO groups (user_id, playlist_id, name) VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		g.UserID, g.PlaylistID, g.Name,
	).Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return wrapErr("CreateGroup", err)
	}
	return nil
}

const groupSelect = `SELECT g.id, g.user_id, g.playlist_id, g.name, g.created_at, g.updated_at, p.name
	FROM groups g JOIN playlists p ON p.id = g.playlist_id`

func (p *Postgres) GetGroup(ctx context.Context, id int64) (*models.Group, error) {
	var g models.Group
	var playlistName string
	err := p.pool.QueryRow(ctx, groupSelect+` WHERE g.id = $1`, id).
		Scan(&g.ID, &g.UserID, &g.PlaylistID, &g.Name, &g.CreatedAt, &g.UpdatedAt, &playlistName)
	if err != nil {
		return nil, wrapErr("GetGroup", err)
	}
	g.Playlist = &models.PlaylistRef{ID: g.PlaylistID, Name: playlistName}
	return &g, nil
}

func (p *Postgres) ListGroups(ctx context.Context, userID int64) ([]models.Group, error) {
	rows, err := p.pool.Query(ctx, groupSelect+` WHERE g.user_id = $1 ORDER BY p.name, g.name`, userID)
	if err != nil {
		return nil, wrapErr("ListGroups", err)
	}
	defer rows.Close()
	var out []models.Group
	for rows.Next() {
		var g models.Group
		var playlistName string
		if err := rows.Scan(&g.ID, &g.UserID, &g.PlaylistID, &g.Name, &g.CreatedAt, &g.UpdatedAt, &playlistName); err != nil {
			return nil, wrapErr("ListGroups", err)
		}
		g.Playlist = &models.PlaylistRef{ID: g.PlaylistID, Name: playlistName}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("ListGroups", err)
	}
	return out, nil
}

// UpdateGroup applies fields and copies a new name onto the channels' group label
// in the same transaction.
func (p *Postgres) UpdateGroup(ctx context.Context, id int64, fields GroupUpdate) error {
	var b setBuilder
	if fields.Name != nil {
		b.add("name", *fields.Name)
	}
	if fields.PlaylistID != nil {
		b.add("playlist_id", *fields.PlaylistID)
	}
	if b.empty() {
		_, err := p.GetGroup(ctx, id)
		return err
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("UpdateGroup begin: %w", err)
	}
	defer tx.Rollback(ctx)

	sql, args := b.update("groups", id)
	tag, err := tx.Exec(ctx, sql, args...)
	if err != nil {
		return wrapErr("UpdateGroup", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("UpdateGroup: %w", ErrNotFound)
	}
	if fields.Name != nil {
		if _, err := tx.Exec(ctx,
			`UPDATE channels SET "group" = $1, updated_at = NOW() WHERE group_id = $2`,
			*fields.Name, id); err != nil {
			return wrapErr("UpdateGroup channels", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("UpdateGroup commit: %w", err)
	}
	return nil
}

// DeleteGroup removes a group; its channels keep their label and lose group_id.
func (p *Postgres) DeleteGroup(ctx context.Context, id int64) error {
	return p.execOne(ctx, "DeleteGroup", `DELETE FROM groups WHERE id = $1`, id)
}

func (p *Postgres) DeleteGroupsNotIn(ctx context.Context, playlistID int64, keep []int64) (int64, error) {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM groups WHERE playlist_id = $1 AND NOT (id = ANY($2))`, playlistID, nonNil(keep))
	if err != nil {
		return 0, wrapErr("DeleteGroupsNotIn", err)
	}
	return tag.RowsAffected(), nil
}

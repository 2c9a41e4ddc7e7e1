package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/voyagen/m3ueditor/internal/models"
)

const playlistColumns = `id, uuid::text, user_id, name, url, sync_interval, status, errors,
	channels, synced, import_prefs, created_at, updated_at`

func scanPlaylist(row pgx.Row) (*models.Playlist, error) {
	var pl models.Playlist
	err := row.Scan(&pl.ID, &pl.UUID, &pl.UserID, &pl.Name, &pl.URL, &pl.SyncInterval,
		&pl.Status, &pl.Errors, &pl.Channels, &pl.Synced, &pl.ImportPrefs,
		&pl.CreatedAt, &pl.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &pl, nil
}

func (p *Postgres) CreatePlaylist(ctx context.Context, pl *models.Playlist) error {
	if pl.UUID == "" {
		pl.UUID = newUUID()
	}
	if pl.ImportPrefs == nil {
		pl.ImportPrefs = map[string]any{}
	}
	pl.SyncInterval = models.NormalizeSyncInterval(pl.SyncInterval)
	pl.Status = models.StatusPending
	err := p.pool.QueryRow(ctx,
		`INSERT INTO playlists (uuid, user_id, name, url, sync_interval, status, import_prefs)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`,
		pl.UUID, pl.UserID, pl.Name, pl.URL, pl.SyncInterval, pl.Status, pl.ImportPrefs,
	).Scan(&pl.ID, &pl.CreatedAt, &pl.UpdatedAt)
	if err != nil {
		return wrapErr("CreatePlaylist", err)
	}
	return nil
}

func (p *Postgres) GetPlaylist(ctx context.Context, id int64) (*models.Playlist, error) {
	pl, err := scanPlaylist(p.pool.QueryRow(ctx,
		`SELECT `+playlistColumns+` FROM playlists WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr("GetPlaylist", err)
	}
	return pl, nil
}

func (p *Postgres) ListPlaylists(ctx context.Context, userID int64) ([]models.Playlist, error) {
	return p.queryPlaylists(ctx, "ListPlaylists",
		`SELECT `+playlistColumns+` FROM playlists WHERE user_id = $1 ORDER BY name, id`, userID)
}

func (p *Postgres) UpdatePlaylist(ctx context.Context, id int64, fields PlaylistUpdate) error {
	var b setBuilder
	if fields.Name != nil {
		b.add("name", *fields.Name)
	}
	if fields.URL != nil {
		b.add("url", *fields.URL)
	}
	if fields.SyncInterval != nil {
		b.add("sync_interval", models.NormalizeSyncInterval(*fields.SyncInterval))
	}
	if fields.ImportPrefs != nil {
		b.add("import_prefs", fields.ImportPrefs)
	}
	if b.empty() {
		_, err := p.GetPlaylist(ctx, id)
		return err
	}
	sql, args := b.update("playlists", id)
	return p.execOne(ctx, "UpdatePlaylist", sql, args...)
}

func (p *Postgres) DeletePlaylist(ctx context.Context, id int64) error {
	return p.execOne(ctx, "DeletePlaylist", `DELETE FROM playlists WHERE id = $1`, id)
}

// UpdatePlaylistSync writes a status transition. The channel count is left
// alone while processing; synced is only written when set.
func (p *Postgres) UpdatePlaylistSync(ctx context.Context, id int64, s models.SyncState) error {
	var b setBuilder
	b.add("status", s.Status)
	b.add("errors", s.Errors)
	if s.Status != models.StatusProcessing {
		b.add("channels", s.Count)
	}
	if !s.Synced.IsZero() {
		b.add("synced", s.Synced)
	}
	sql, args := b.update("playlists", id)
	return p.execOne(ctx, "UpdatePlaylistSync", sql, args...)
}

func (p *Postgres) ListDuePlaylists(ctx context.Context, now time.Time) ([]models.Playlist, error) {
	return p.queryPlaylists(ctx, "ListDuePlaylists",
		`SELECT `+playlistColumns+` FROM playlists
		 WHERE (status <> 'processing' OR updated_at < $2)
		   AND (synced IS NULL OR synced + sync_interval::interval <= $1)
		 ORDER BY synced NULLS FIRST, id`,
		now, now.Add(-staleProcessing))
}

func (p *Postgres) queryPlaylists(ctx context.Context, op, sql string, args ...any) ([]models.Playlist, error) {
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer rows.Close()
	var out []models.Playlist
	for rows.Next() {
		pl, err := scanPlaylist(rows)
		if err != nil {
			return nil, wrapErr(op, err)
		}
		out = append(out, *pl)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(op, err)
	}
	return out, nil
}

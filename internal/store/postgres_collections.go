package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/voyagen/m3ueditor/internal/models"
)

func (p *Postgres) CreateCustomPlaylist(ctx context.Context, cp *models.CustomPlaylist) error {
	if cp.UUID == "" {
		cp.UUID = newUUID()
	}
	if cp.ChannelStart == 0 {
		cp.ChannelStart = 1
	}
	err := p.pool.QueryRow(ctx,
		`INSERT INTO custom_playlists (uuid, user_id, name, auto_channel_increment, channel_start)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		cp.UUID, cp.UserID, cp.Name, cp.AutoChannelIncrement, cp.ChannelStart,
	).Scan(&cp.ID, &cp.CreatedAt, &cp.UpdatedAt)
	if err != nil {
		return wrapErr("CreateCustomPlaylist", err)
	}
	return nil
}

const customSelect = `SELECT id, uuid::text, user_id, name, auto_channel_increment, channel_start,
	created_at, updated_at FROM custom_playlists`

func scanCustom(row pgx.Row) (*models.CustomPlaylist, error) {
	var cp models.CustomPlaylist
	if err := row.Scan(&cp.ID, &cp.UUID, &cp.UserID, &cp.Name, &cp.AutoChannelIncrement,
		&cp.ChannelStart, &cp.CreatedAt, &cp.UpdatedAt); err != nil {
		return nil, err
	}
	cp.Channels = []models.ChannelRef{}
	return &cp, nil
}

func (p *Postgres) GetCustomPlaylist(ctx context.Context, id int64) (*models.CustomPlaylist, error) {
	cp, err := scanCustom(p.pool.QueryRow(ctx, customSelect+` WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr("GetCustomPlaylist", err)
	}
	if err := p.loadCustomChannels(ctx, []*models.CustomPlaylist{cp}); err != nil {
		return nil, err
	}
	return cp, nil
}

func (p *Postgres) ListCustomPlaylists(ctx context.Context, userID int64) ([]models.CustomPlaylist, error) {
	rows, err := p.pool.Query(ctx, customSelect+` WHERE user_id = $1 ORDER BY name, id`, userID)
	if err != nil {
		return nil, wrapErr("ListCustomPlaylists", err)
	}
	var ptrs []*models.CustomPlaylist
	for rows.Next() {
		cp, err := scanCustom(rows)
		if err != nil {
			rows.Close()
			return nil, wrapErr("ListCustomPlaylists", err)
		}
		ptrs = append(ptrs, cp)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, wrapErr("ListCustomPlaylists", err)
	}
	if err := p.loadCustomChannels(ctx, ptrs); err != nil {
		return nil, err
	}
	out := make([]models.CustomPlaylist, len(ptrs))
	for i, cp := range ptrs {
		out[i] = *cp
	}
	return out, nil
}

// loadCustomChannels fills Channels for every custom playlist in one query.
func (p *Postgres) loadCustomChannels(ctx context.Context, cps []*models.CustomPlaylist) error {
	if len(cps) == 0 {
		return nil
	}
	byID := make(map[int64]*models.CustomPlaylist, len(cps))
	ids := make([]int64, 0, len(cps))
	for _, cp := range cps {
		byID[cp.ID] = cp
		ids = append(ids, cp.ID)
	}
	rows, err := p.pool.Query(ctx,
		`SELECT cp.custom_playlist_id, c.id, c.name
		 FROM channel_custom_playlist cp JOIN channels c ON c.id = cp.channel_id
		 WHERE cp.custom_playlist_id = ANY($1)
		 ORDER BY c.id`, ids)
	if err != nil {
		return wrapErr("loadCustomChannels", err)
	}
	defer rows.Close()
	for rows.Next() {
		var owner int64
		var ref models.ChannelRef
		if err := rows.Scan(&owner, &ref.ID, &ref.Name); err != nil {
			return wrapErr("loadCustomChannels", err)
		}
		if cp := byID[owner]; cp != nil {
			cp.Channels = append(cp.Channels, ref)
		}
	}
	return rows.Err()
}

func (p *Postgres) UpdateCustomPlaylist(ctx context.Context, id int64, fields CollectionUpdate) error {
	return p.updateCollection(ctx, "UpdateCustomPlaylist", "custom_playlists", id, fields)
}

func (p *Postgres) DeleteCustomPlaylist(ctx context.Context, id int64) error {
	return p.execOne(ctx, "DeleteCustomPlaylist", `DELETE FROM custom_playlists WHERE id = $1`, id)
}

func (p *Postgres) AttachCustomPlaylistChannels(ctx context.Context, id int64, channelIDs []int64) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO channel_custom_playlist (custom_playlist_id, channel_id)
		 SELECT $1, unnest($2::bigint[])
		 ON CONFLICT DO NOTHING`, id, nonNil(channelIDs))
	if err != nil {
		return wrapErr("AttachCustomPlaylistChannels", err)
	}
	return nil
}

func (p *Postgres) SyncCustomPlaylistChannels(ctx context.Context, id int64, channelIDs []int64) error {
	return p.syncPivot(ctx, "SyncCustomPlaylistChannels",
		"channel_custom_playlist", "custom_playlist_id", "channel_id", id, channelIDs)
}

func (p *Postgres) CreateMergedPlaylist(ctx context.Context, mp *models.MergedPlaylist) error {
	if mp.UUID == "" {
		mp.UUID = newUUID()
	}
	if mp.ChannelStart == 0 {
		mp.ChannelStart = 1
	}
	err := p.pool.QueryRow(ctx,
		`INSERT INTO merged_playlists (uuid, user_id, name, auto_channel_increment, channel_start)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		mp.UUID, mp.UserID, mp.Name, mp.AutoChannelIncrement, mp.ChannelStart,
	).Scan(&mp.ID, &mp.CreatedAt, &mp.UpdatedAt)
	if err != nil {
		return wrapErr("CreateMergedPlaylist", err)
	}
	return nil
}

const mergedSelect = `SELECT m.id, m.uuid::text, m.user_id, m.name, m.auto_channel_increment,
	m.channel_start, m.created_at, m.updated_at,
	(SELECT COUNT(*) FROM channels c WHERE c.playlist_id IN
	   (SELECT playlist_id FROM merged_playlist_playlist WHERE merged_playlist_id = m.id)),
	(SELECT COUNT(*) FROM channels c WHERE c.enabled AND c.playlist_id IN
	   (SELECT playlist_id FROM merged_playlist_playlist WHERE merged_playlist_id = m.id))
	FROM merged_playlists m`

func scanMerged(row pgx.Row) (*models.MergedPlaylist, error) {
	var mp models.MergedPlaylist
	if err := row.Scan(&mp.ID, &mp.UUID, &mp.UserID, &mp.Name, &mp.AutoChannelIncrement,
		&mp.ChannelStart, &mp.CreatedAt, &mp.UpdatedAt, &mp.ChannelsCount, &mp.EnabledChannelsCount); err != nil {
		return nil, err
	}
	mp.Playlists = []models.PlaylistRef{}
	return &mp, nil
}

func (p *Postgres) GetMergedPlaylist(ctx context.Context, id int64) (*models.MergedPlaylist, error) {
	mp, err := scanMerged(p.pool.QueryRow(ctx, mergedSelect+` WHERE m.id = $1`, id))
	if err != nil {
		return nil, wrapErr("GetMergedPlaylist", err)
	}
	if err := p.loadMergedPlaylists(ctx, []*models.MergedPlaylist{mp}); err != nil {
		return nil, err
	}
	return mp, nil
}

func (p *Postgres) ListMergedPlaylists(ctx context.Context, userID int64) ([]models.MergedPlaylist, error) {
	rows, err := p.pool.Query(ctx, mergedSelect+` WHERE m.user_id = $1 ORDER BY m.name, m.id`, userID)
	if err != nil {
		return nil, wrapErr("ListMergedPlaylists", err)
	}
	var ptrs []*models.MergedPlaylist
	for rows.Next() {
		mp, err := scanMerged(rows)
		if err != nil {
			rows.Close()
			return nil, wrapErr("ListMergedPlaylists", err)
		}
		ptrs = append(ptrs, mp)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, wrapErr("ListMergedPlaylists", err)
	}
	if err := p.loadMergedPlaylists(ctx, ptrs); err != nil {
		return nil, err
	}
	out := make([]models.MergedPlaylist, len(ptrs))
	for i, mp := range ptrs {
		out[i] = *mp
	}
	return out, nil
}

func (p *Postgres) loadMergedPlaylists(ctx context.Context, mps []*models.MergedPlaylist) error {
	if len(mps) == 0 {
		return nil
	}
	byID := make(map[int64]*models.MergedPlaylist, len(mps))
	ids := make([]int64, 0, len(mps))
	for _, mp := range mps {
		byID[mp.ID] = mp
		ids = append(ids, mp.ID)
	}
	rows, err := p.pool.Query(ctx,
		`SELECT mpp.merged_playlist_id, pl.id, pl.name
		 FROM merged_playlist_playlist mpp JOIN playlists pl ON pl.id = mpp.playlist_id
		 WHERE mpp.merged_playlist_id = ANY($1)
		 ORDER BY pl.id`, ids)
	if err != nil {
		return wrapErr("loadMergedPlaylists", err)
	}
	defer rows.Close()
	for rows.Next() {
		var owner int64
		var ref models.PlaylistRef
		if err := rows.Scan(&owner, &ref.ID, &ref.Name); err != nil {
			return wrapErr("loadMergedPlaylists", err)
		}
		if mp := byID[owner]; mp != nil {
			mp.Playlists = append(mp.Playlists, ref)
		}
	}
	return rows.Err()
}

func (p *Postgres) UpdateMergedPlaylist(ctx context.Context, id int64, fields CollectionUpdate) error {
	return p.updateCollection(ctx, "UpdateMergedPlaylist", "merged_playlists", id, fields)
}

func (p *Postgres) DeleteMergedPlaylist(ctx context.Context, id int64) error {
	return p.execOne(ctx, "DeleteMergedPlaylist", `DELETE FROM merged_playlists WHERE id = $1`, id)
}

func (p *Postgres) SyncMergedPlaylistPlaylists(ctx context.Context, id int64, playlistIDs []int64) error {
	return p.syncPivot(ctx, "SyncMergedPlaylistPlaylists",
		"merged_playlist_playlist", "merged_playlist_id", "playlist_id", id, playlistIDs)
}

// FindOutput resolves uuid against the three uuid-addressable tables.
func (p *Postgres) FindOutput(ctx context.Context, uuid string) (*OutputTarget, error) {
	var t OutputTarget
	err := p.pool.QueryRow(ctx,
		`SELECT 'playlist', id, name, false, 1 FROM playlists WHERE uuid = $1::uuid
		 UNION ALL
		 SELECT 'custom', id, name, auto_channel_increment, channel_start FROM custom_playlists WHERE uuid = $1::uuid
		 UNION ALL
		 SELECT 'merged', id, name, auto_channel_increment, channel_start FROM merged_playlists WHERE uuid = $1::uuid
		 LIMIT 1`, uuid,
	).Scan(&t.Kind, &t.ID, &t.Name, &t.AutoChannelIncrement, &t.ChannelStart)
	if err != nil {
		return nil, wrapErr("FindOutput", err)
	}
	return &t, nil
}

func (p *Postgres) updateCollection(ctx context.Context, op, table string, id int64, fields CollectionUpdate) error {
	var b setBuilder
	if fields.Name != nil {
		b.add("name", *fields.Name)
	}
	if fields.AutoChannelIncrement != nil {
		b.add("auto_channel_increment", *fields.AutoChannelIncrement)
	}
	if fields.ChannelStart != nil {
		b.add("channel_start", *fields.ChannelStart)
	}
	if b.empty() {
		return p.execOne(ctx, op, `SELECT 1 FROM `+table+` WHERE id = $1`, id)
	}
	sql, args := b.update(table, id)
	return p.execOne(ctx, op, sql, args...)
}

// syncPivot replaces the right-hand ids linked to id in a pivot table.
func (p *Postgres) syncPivot(ctx context.Context, op, table, leftCol, rightCol string, id int64, rightIDs []int64) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s begin: %w", op, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND NOT (%s = ANY($2))`, table, leftCol, rightCol),
		id, nonNil(rightIDs)); err != nil {
		return wrapErr(op, err)
	}
	if _, err := tx.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (%s, %s) SELECT $1, unnest($2::bigint[]) ON CONFLICT DO NOTHING`,
			table, leftCol, rightCol),
		id, nonNil(rightIDs)); err != nil {
		return wrapErr(op, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s commit: %w", op, err)
	}
	return nil
}

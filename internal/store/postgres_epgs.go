package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/voyagen/m3ueditor/internal/models"
)

const epgColumns = `id, uuid::text, user_id, name, url, sync_interval, status, errors,
	channel_count, programme_count, synced, created_at, updated_at`

func scanEpg(row pgx.Row) (*models.Epg, error) {
	var e models.Epg
	err := row.Scan(&e.ID, &e.UUID, &e.UserID, &e.Name, &e.URL, &e.SyncInterval,
		&e.Status, &e.Errors, &e.ChannelCount, &e.ProgrammeCount, &e.Synced,
		&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (p *Postgres) CreateEpg(ctx context.Context, e *models.Epg) error {
	if e.UUID == "" {
		e.UUID = newUUID()
	}
	e.SyncInterval = models.NormalizeSyncInterval(e.SyncInterval)
	e.Status = models.StatusPending
	err := p.pool.QueryRow(ctx,
		`INSERT INTO epgs (uuid, user_id, name, url, sync_interval, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		e.UUID, e.UserID, e.Name, e.URL, e.SyncInterval, e.Status,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return wrapErr("CreateEpg", err)
	}
	return nil
}

func (p *Postgres) GetEpg(ctx context.Context, id int64) (*models.Epg, error) {
	e, err := scanEpg(p.pool.QueryRow(ctx, `SELECT `+epgColumns+` FROM epgs WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr("GetEpg", err)
	}
	return e, nil
}

func (p *Postgres) ListEpgs(ctx context.Context, userID int64) ([]models.Epg, error) {
	return p.queryEpgs(ctx, "ListEpgs",
		`SELECT `+epgColumns+` FROM epgs WHERE user_id = $1 ORDER BY name, id`, userID)
}

func (p *Postgres) UpdateEpg(ctx context.Context, id int64, fields EpgUpdate) error {
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
	if b.empty() {
		_, err := p.GetEpg(ctx, id)
		return err
	}
	sql, args := b.update("epgs", id)
	return p.execOne(ctx, "UpdateEpg", sql, args...)
}

func (p *Postgres) DeleteEpg(ctx context.Context, id int64) error {
	return p.execOne(ctx, "DeleteEpg", `DELETE FROM epgs WHERE id = $1`, id)
}

func (p *Postgres) UpdateEpgSync(ctx context.Context, id int64, s models.SyncState) error {
	var b setBuilder
	b.add("status", s.Status)
	b.add("errors", s.Errors)
	if s.Status != models.StatusProcessing {
		b.add("channel_count", s.Count)
		b.add("programme_count", s.Programmes)
	}
	if !s.Synced.IsZero() {
		b.add("synced", s.Synced)
	}
	sql, args := b.update("epgs", id)
	return p.execOne(ctx, "UpdateEpgSync", sql, args...)
}

func (p *Postgres) ListDueEpgs(ctx context.Context, now time.Time) ([]models.Epg, error) {
	return p.queryEpgs(ctx, "ListDueEpgs",
		`SELECT `+epgColumns+` FROM epgs
		 WHERE (status <> 'processing' OR updated_at < $2)
		   AND (synced IS NULL OR synced + sync_interval::interval <= $1)
		 ORDER BY synced NULLS FIRST, id`,
		now, now.Add(-staleProcessing))
}

func (p *Postgres) queryEpgs(ctx context.Context, op, sql string, args ...any) ([]models.Epg, error) {
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer rows.Close()
	var out []models.Epg
	for rows.Next() {
		e, err := scanEpg(rows)
		if err != nil {
			return nil, wrapErr(op, err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(op, err)
	}
	return out, nil
}

// UpsertEpgChannel keys on (epg_id, channel_id) and refreshes the display fields.
func (p *Postgres) UpsertEpgChannel(ctx context.Context, ch *models.EpgChannel) (int64, error) {
	var id int64
	err := p.pool.QueryRow(ctx,
		`INSERT INTO epg_channels (user_id, epg_id, channel_id, name, display_name, icon)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (epg_id, channel_id) DO UPDATE SET
		   name = EXCLUDED.name,
		   display_name = EXCLUDED.display_name,
		   icon = EXCLUDED.icon,
		   updated_at = NOW()
		 RETURNING id`,
		ch.UserID, ch.EpgID, ch.ChannelID, ch.Name, ch.DisplayName, ch.Icon,
	).Scan(&id)
	if err != nil {
		return 0, wrapErr("UpsertEpgChannel", err)
	}
	ch.ID = id
	return id, nil
}

func (p *Postgres) DeleteEpgChannelsNotIn(ctx context.Context, epgID int64, keep []int64) (int64, error) {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM epg_channels WHERE epg_id = $1 AND NOT (id = ANY($2))`, epgID, nonNil(keep))
	if err != nil {
		return 0, wrapErr("DeleteEpgChannelsNotIn", err)
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) ListEpgChannels(ctx context.Context, epgID int64) ([]models.EpgChannel, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, user_id, epg_id, channel_id, name, display_name, icon
		 FROM epg_channels WHERE epg_id = $1 ORDER BY id`, epgID)
	if err != nil {
		return nil, wrapErr("ListEpgChannels", err)
	}
	defer rows.Close()
	var out []models.EpgChannel
	for rows.Next() {
		var ec models.EpgChannel
		if err := rows.Scan(&ec.ID, &ec.UserID, &ec.EpgID, &ec.ChannelID, &ec.Name, &ec.DisplayName, &ec.Icon); err != nil {
			return nil, wrapErr("ListEpgChannels", err)
		}
		out = append(out, ec)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("ListEpgChannels", err)
	}
	return out, nil
}

// nonNil turns a nil slice into an empty one so it encodes as '{}' rather than NULL.
func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

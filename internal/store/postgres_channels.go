package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/voyagen/m3ueditor/internal/models"
)

const channelColumns = `c.id, c.user_id, c.playlist_id, c.group_id, c."group", c.name, c.title,
	c.name_custom, c.title_custom, c.url, c.logo, c.logo_type, c.stream_id, c.shift, c.lang,
	c.country, c.channel, c.enabled, c.epg_channel_id, c.created_at, c.updated_at,
	p.name, g.name`

const channelFrom = ` FROM channels c
	JOIN playlists p ON p.id = c.playlist_id
	LEFT JOIN groups g ON g.id = c.group_id`

const channelSelect = `SELECT ` + channelColumns + channelFrom

func scanChannel(row pgx.Row, extra ...any) (*models.Channel, error) {
	var c models.Channel
	var playlistName string
	var groupName *string
	dest := []any{&c.ID, &c.UserID, &c.PlaylistID, &c.GroupID, &c.Group, &c.Name, &c.Title,
		&c.NameCustom, &c.TitleCustom, &c.URL, &c.Logo, &c.LogoType, &c.StreamID, &c.Shift, &c.Lang,
		&c.Country, &c.Number, &c.Enabled, &c.EpgChannelID, &c.CreatedAt, &c.UpdatedAt,
		&playlistName, &groupName}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	c.Playlist = &models.PlaylistRef{ID: c.PlaylistID, Name: playlistName}
	if c.GroupID != nil && groupName != nil {
		c.GroupRef = &models.GroupRef{ID: *c.GroupID, Name: *groupName}
	}
	return &c, nil
}

// UpsertChannel inserts or refreshes the channel keyed by (playlist_id, name, group).
// Only source-owned columns are overwritten; user edits survive.
func (p *Postgres) UpsertChannel(ctx context.Context, ch *models.Channel) (int64, error) {
	var id int64
	err := p.pool.QueryRow(ctx,
		`INSERT INTO channels (user_id, playlist_id, group_id, "group", name, title, url, logo,
		                       stream_id, shift, lang, country)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (playlist_id, name, "group") DO UPDATE SET
		   group_id = EXCLUDED.group_id,
		   title = EXCLUDED.title,
		   url = EXCLUDED.url,
		   logo = EXCLUDED.logo,
		   stream_id = EXCLUDED.stream_id,
		   shift = EXCLUDED.shift,
		   lang = EXCLUDED.lang,
		   country = EXCLUDED.country,
		   updated_at = NOW()
		 RETURNING id`,
		ch.UserID, ch.PlaylistID, ch.GroupID, ch.Group, ch.Name, ch.Title, ch.URL, ch.Logo,
		ch.StreamID, ch.Shift, ch.Lang, ch.Country,
	).Scan(&id)
	if err != nil {
		return 0, wrapErr("UpsertChannel", err)
	}
	ch.ID = id
	return id, nil
}

func (p *Postgres) CreateChannel(ctx context.Context, ch *models.Channel) error {
	if ch.LogoType == "" {
		ch.LogoType = models.LogoTypeChannel
	}
	err := p.pool.QueryRow(ctx,
		`INSERT INTO channels (user_id, playlist_id, group_id, "group", name, title, name_custom,
		                       title_custom, url, logo, logo_type, stream_id, shift, lang, country,
		                       channel, enabled, epg_channel_id)
		 VALUES ($1, $2, $3, COALESCE((SELECT name FROM groups WHERE id = $3), $4), $5, $6, $7,
		         $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		 RETURNING id, "group", created_at, updated_at`,
		ch.UserID, ch.PlaylistID, ch.GroupID, ch.Group, ch.Name, ch.Title, ch.NameCustom,
		ch.TitleCustom, ch.URL, ch.Logo, ch.LogoType, ch.StreamID, ch.Shift, ch.Lang, ch.Country,
		ch.Number, ch.Enabled, ch.EpgChannelID,
	).Scan(&ch.ID, &ch.Group, &ch.CreatedAt, &ch.UpdatedAt)
	if err != nil {
		return wrapErr("CreateChannel", err)
	}
	return nil
}

func (p *Postgres) GetChannel(ctx context.Context, id int64) (*models.Channel, error) {
	ch, err := scanChannel(p.pool.QueryRow(ctx, channelSelect+` WHERE c.id = $1`, id))
	if err != nil {
		return nil, wrapErr("GetChannel", err)
	}
	return ch, nil
}

// ListChannels returns a page of channels and the total number of matches.
func (p *Postgres) ListChannels(ctx context.Context, f ChannelFilter) ([]models.Channel, int, error) {
	where := []string{"c.user_id = $1"}
	args := []any{f.UserID}
	addArg := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.PlaylistID != nil {
		addArg("c.playlist_id = $%d", *f.PlaylistID)
	}
	if f.GroupID != nil {
		addArg("c.group_id = $%d", *f.GroupID)
	}
	if f.Enabled != nil {
		addArg("c.enabled = $%d", *f.Enabled)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		addArg("(c.name ILIKE $%[1]d OR c.title ILIKE $%[1]d OR c.name_custom ILIKE $%[1]d)", "%"+escapeLike(s)+"%")
	}
	whereSQL := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM channels c`+whereSQL, args...).Scan(&total); err != nil {
		return nil, 0, wrapErr("ListChannels count", err)
	}

	limit, offset := pageBounds(f.Limit, f.Offset)
	args = append(args, limit, offset)
	sql := channelSelect + whereSQL +
		fmt.Sprintf(` ORDER BY c.playlist_id, c."group", c.channel NULLS LAST, c.name LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	out, err := p.queryChannels(ctx, "ListChannels", sql, args...)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (p *Postgres) ListChannelsByIDs(ctx context.Context, userID int64, ids []int64) ([]models.Channel, error) {
	return p.queryChannels(ctx, "ListChannelsByIDs",
		channelSelect+` WHERE c.user_id = $1 AND c.id = ANY($2) ORDER BY c.id`, userID, nonNil(ids))
}

func (p *Postgres) queryChannels(ctx context.Context, op, sql string, args ...any) ([]models.Channel, error) {
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer rows.Close()
	var out []models.Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, wrapErr(op, err)
		}
		out = append(out, *ch)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(op, err)
	}
	return out, nil
}

func (p *Postgres) UpdateChannel(ctx context.Context, id int64, fields ChannelUpdate) error {
	var b setBuilder
	if fields.Name != nil {
		b.add("name", *fields.Name)
	}
	if fields.URL != nil {
		b.add("url", *fields.URL)
	}
	if fields.PlaylistID != nil {
		b.add("playlist_id", *fields.PlaylistID)
	}
	if fields.GroupID != nil {
		b.addExpr(`group_id = $%[1]d, "group" = COALESCE((SELECT name FROM groups WHERE id = $%[1]d), '')`, *fields.GroupID)
	}
	if fields.Enabled != nil {
		b.add("enabled", *fields.Enabled)
	}
	if fields.Shift != nil {
		b.add("shift", *fields.Shift)
	}
	if fields.Logo != nil {
		b.add("logo", *fields.Logo)
	}
	if fields.LogoType != nil {
		b.add("logo_type", *fields.LogoType)
	}
	if fields.NameCustom != nil {
		b.add("name_custom", *fields.NameCustom)
	}
	if fields.TitleCustom != nil {
		b.add("title_custom", *fields.TitleCustom)
	}
	if fields.Number != nil {
		b.add("channel", *fields.Number)
	}
	if fields.EpgChannelID != nil {
		b.add("epg_channel_id", *fields.EpgChannelID)
	}
	if b.empty() {
		_, err := p.GetChannel(ctx, id)
		return err
	}
	sql, args := b.update("channels", id)
	return p.execOne(ctx, "UpdateChannel", sql, args...)
}

func (p *Postgres) DeleteChannel(ctx context.Context, id int64) error {
	return p.execOne(ctx, "DeleteChannel", `DELETE FROM channels WHERE id = $1`, id)
}

func (p *Postgres) DeleteChannelsNotIn(ctx context.Context, playlistID int64, keep []int64) (int64, error) {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM channels WHERE playlist_id = $1 AND NOT (id = ANY($2))`, playlistID, nonNil(keep))
	if err != nil {
		return 0, wrapErr("DeleteChannelsNotIn", err)
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) SetChannelsEnabled(ctx context.Context, userID int64, ids []int64, enabled bool) (int64, error) {
	tag, err := p.pool.Exec(ctx,
		`UPDATE channels SET enabled = $1, updated_at = NOW() WHERE user_id = $2 AND id = ANY($3)`,
		enabled, userID, nonNil(ids))
	if err != nil {
		return 0, wrapErr("SetChannelsEnabled", err)
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) MoveChannelsToGroup(ctx context.Context, userID int64, ids []int64, g *models.Group) (int64, error) {
	tag, err := p.pool.Exec(ctx,
		`UPDATE channels SET group_id = $1, "group" = $2, updated_at = NOW()
		 WHERE user_id = $3 AND playlist_id = $4 AND id = ANY($5)`,
		g.ID, g.Name, userID, g.PlaylistID, nonNil(ids))
	if err != nil {
		return 0, wrapErr("MoveChannelsToGroup", err)
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) SetChannelsLogoType(ctx context.Context, userID int64, ids []int64, logoType string) (int64, error) {
	tag, err := p.pool.Exec(ctx,
		`UPDATE channels SET logo_type = $1, updated_at = NOW() WHERE user_id = $2 AND id = ANY($3)`,
		logoType, userID, nonNil(ids))
	if err != nil {
		return 0, wrapErr("SetChannelsLogoType", err)
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) SetChannelEpgChannel(ctx context.Context, channelID int64, epgChannelID *int64) error {
	return p.execOne(ctx, "SetChannelEpgChannel",
		`UPDATE channels SET epg_channel_id = $1, updated_at = NOW() WHERE id = $2`,
		epgChannelID, channelID)
}

// ListOutputChannels returns enabled channels of a playlist, custom playlist or
// merged playlist joined with their mapped EPG channel.
func (p *Postgres) ListOutputChannels(ctx context.Context, kind string, id int64) ([]models.OutputChannel, error) {
	base := `SELECT ` + channelColumns + `, e.channel_id, e.icon` + channelFrom +
		` LEFT JOIN epg_channels e ON e.id = c.epg_channel_id`

	var sql string
	switch kind {
	case models.OutputPlaylist:
		sql = base + ` WHERE c.playlist_id = $1 AND c.enabled ORDER BY c.id`
	case models.OutputCustomPlaylist:
		sql = base + ` JOIN channel_custom_playlist cp ON cp.channel_id = c.id
			WHERE cp.custom_playlist_id = $1 AND c.enabled ORDER BY c.id`
	case models.OutputMergedPlaylist:
		sql = base + ` WHERE c.enabled AND c.playlist_id IN
			(SELECT playlist_id FROM merged_playlist_playlist WHERE merged_playlist_id = $1)
			ORDER BY c.playlist_id, c.id`
	default:
		return nil, fmt.Errorf("ListOutputChannels: unknown kind %q", kind)
	}

	rows, err := p.pool.Query(ctx, sql, id)
	if err != nil {
		return nil, wrapErr("ListOutputChannels", err)
	}
	defer rows.Close()
	var out []models.OutputChannel
	for rows.Next() {
		var oc models.OutputChannel
		ch, err := scanChannel(rows, &oc.EpgXMLTVID, &oc.EpgIcon)
		if err != nil {
			return nil, wrapErr("ListOutputChannels", err)
		}
		oc.Channel = *ch
		out = append(out, oc)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("ListOutputChannels", err)
	}
	return out, nil
}

func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

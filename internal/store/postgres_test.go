package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestSetBuilder(t *testing.T) {
	var b setBuilder
	assert.True(t, b.empty())
	b.add("name", "x")
	b.addExpr(`group_id = $%[1]d, "group" = (SELECT name FROM groups WHERE id = $%[1]d)`, int64(7))

	sql, args := b.update("channels", 42)
	assert.Equal(t,
		`UPDATE channels SET name = $1, group_id = $2, "group" = (SELECT name FROM groups WHERE id = $2), updated_at = NOW() WHERE id = $3`,
		sql)
	assert.Equal(t, []any{"x", int64(7), int64(42)}, args)
}

func TestWrapErr(t *testing.T) {
	assert.ErrorIs(t, wrapErr("Get", pgx.ErrNoRows), ErrNotFound)
	assert.ErrorIs(t, wrapErr("Create", &pgconn.PgError{Code: "23505"}), ErrConflict)
	assert.ErrorIs(t, wrapErr("Create", &pgconn.PgError{Code: "23503"}), ErrNotFound)

	other := errors.New("boom")
	err := wrapErr("Op", other)
	assert.ErrorIs(t, err, other)
	assert.Equal(t, "Op: boom", err.Error())
}

func TestPageBounds(t *testing.T) {
	tests := []struct{ limit, offset, wantLimit, wantOffset int }{
		{0, 0, 50, 0},
		{10, 5, 10, 5},
		{9999, -3, 500, 0},
	}
	for _, tt := range tests {
		l, o := pageBounds(tt.limit, tt.offset)
		assert.Equal(t, tt.wantLimit, l, fmt.Sprint(tt))
		assert.Equal(t, tt.wantOffset, o, fmt.Sprint(tt))
	}
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\% \_sports\\`, escapeLike(`100% _sports\`))
}

func TestFilterHash(t *testing.T) {
	pid := int64(3)
	a := filterHash(ChannelFilter{UserID: 1, PlaylistID: &pid, Limit: 50})
	b := filterHash(ChannelFilter{UserID: 1, PlaylistID: &pid, Limit: 50})
	c := filterHash(ChannelFilter{UserID: 1, Limit: 50})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 16)
}

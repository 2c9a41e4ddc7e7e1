package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres implements Store using PostgreSQL.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres store from a DSN. Caller must call Close when done.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// Ping checks the database connection.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

var ownedTables = map[string]bool{
	OwnedPlaylists:       true,
	OwnedGroups:          true,
	OwnedChannels:        true,
	OwnedEpgs:            true,
	OwnedCustomPlaylists: true,
	OwnedEpgChannels:     true,
}

// OwnedIDs returns the subset of ids in table that belong to userID.
func (p *Postgres) OwnedIDs(ctx context.Context, table string, userID int64, ids []int64) ([]int64, error) {
	if !ownedTables[table] {
		return nil, fmt.Errorf("OwnedIDs: unknown table %q", table)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := p.pool.Query(ctx,
		`SELECT id FROM `+table+` WHERE user_id = $1 AND id = ANY($2) ORDER BY id`, userID, ids)
	if err != nil {
		return nil, fmt.Errorf("OwnedIDs: %w", err)
	}
	owned, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("OwnedIDs: %w", err)
	}
	return owned, nil
}

// newUUID returns a time-ordered identifier.
func newUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// wrapErr maps driver errors onto the store sentinels.
func wrapErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%s: %w: %s", op, ErrConflict, pgErr.ConstraintName)
		case "23503":
			return fmt.Errorf("%s: %w: %s", op, ErrNotFound, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// execOne runs a statement that must affect exactly one row.
func (p *Postgres) execOne(ctx context.Context, op, sql string, args ...any) error {
	tag, err := p.pool.Exec(ctx, sql, args...)
	if err != nil {
		return wrapErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

// setBuilder accumulates "col = $n" fragments for partial updates.
type setBuilder struct {
	sets []string
	args []any
}

func (b *setBuilder) add(col string, v any) {
	b.args = append(b.args, v)
	b.sets = append(b.sets, fmt.Sprintf("%s = $%d", col, len(b.args)))
}

func (b *setBuilder) empty() bool { return len(b.sets) == 0 }

// update builds "UPDATE table SET ..., updated_at = NOW() WHERE id = $n".
func (b *setBuilder) update(table string, id int64) (string, []any) {
	args := append(b.args, id)
	sql := fmt.Sprintf(`UPDATE %s SET %s, updated_at = NOW() WHERE id = $%d`,
		table, strings.Join(b.sets, ", "), len(args))
	return sql, args
}

// addExpr appends a SET fragment whose format refers to the new placeholder as %[1]d.
func (b *setBuilder) addExpr(format string, v any) {
	b.args = append(b.args, v)
	b.sets = append(b.sets, fmt.Sprintf(format, len(b.args)))
}

package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB matches the methods from *pgxpool.Pool that we use. Begin returns the
// narrow Tx below so tests can fake the pool without implementing pgx.Tx.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (Tx, error)
}

type Tx interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// NewPgxDB adapts a pgx pool to the DB interface.
func NewPgxDB(pool *pgxpool.Pool) DB {
	return pgxDB{pool: pool}
}

type pgxDB struct {
	pool *pgxpool.Pool
}

func (p pgxDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return p.pool.QueryRow(ctx, sql, args...)
}

func (p pgxDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return p.pool.Exec(ctx, sql, args...)
}

func (p pgxDB) Begin(ctx context.Context) (Tx, error) {
	return p.pool.Begin(ctx)
}

type Repository interface {
	Get(ctx context.Context, userID string) ([]Line, error)
	Replace(ctx context.Context, userID string, lines []Line) error
	AddItem(ctx context.Context, userID string, itemID int64, qty int) ([]Line, error)
	SetItem(ctx context.Context, userID string, itemID int64, qty int) ([]Line, error)
	Merge(ctx context.Context, userID string, guest []Line) ([]Line, error)
}

type PostgresRepository struct {
	db DB
}

func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get returns the user's cart lines, lazily creating an empty row for a
// first-time user. A corrupt stored payload degrades to an empty cart.
func (r *PostgresRepository) Get(ctx context.Context, userID string) ([]Line, error) {
	var raw []byte
	err := r.db.QueryRow(ctx, `SELECT items FROM carts WHERE user_id = $1`, userID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, err := r.db.Exec(ctx,
				`INSERT INTO carts (user_id, items) VALUES ($1, '[]') ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
				return nil, fmt.Errorf("create cart row: %w", err)
			}
			return []Line{}, nil
		}
		return nil, err
	}

	return decodeLines(raw), nil
}

// Replace overwrites the full cart, last writer wins. It stores exactly
// what it is given; de-duplication is the caller's job.
func (r *PostgresRepository) Replace(ctx context.Context, userID string, lines []Line) error {
	payload, err := encodeLines(lines)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, upsertCartSQL, userID, payload)
	return err
}

func (r *PostgresRepository) AddItem(ctx context.Context, userID string, itemID int64, qty int) ([]Line, error) {
	if itemID == 0 {
		return nil, ErrMissingItem
	}
	if qty <= 0 {
		return nil, ErrNonPositiveQty
	}

	return r.mutate(ctx, userID, func(lines []Line) []Line {
		for i := range lines {
			if lines[i].ItemID == itemID {
				lines[i].Qty += qty
				return lines
			}
		}
		return append(lines, Line{ItemID: itemID, Qty: qty})
	})
}

// SetItem is the unified setQuantity contract: qty 0 removes the line, any
// positive qty sets it, negatives are rejected before touching state.
func (r *PostgresRepository) SetItem(ctx context.Context, userID string, itemID int64, qty int) ([]Line, error) {
	if itemID == 0 {
		return nil, ErrMissingItem
	}
	if qty < 0 {
		return nil, ErrNegativeQty
	}

	return r.mutate(ctx, userID, func(lines []Line) []Line {
		out := lines[:0]
		found := false
		for _, l := range lines {
			if l.ItemID == itemID {
				found = true
				if qty > 0 {
					out = append(out, Line{ItemID: itemID, Qty: qty})
				}
				continue
			}
			out = append(out, l)
		}
		if !found && qty > 0 {
			out = append(out, Line{ItemID: itemID, Qty: qty})
		}
		return out
	})
}

// Merge folds guest lines into the stored cart in one transaction, so a
// login merge is computed and committed atomically on the server side.
func (r *PostgresRepository) Merge(ctx context.Context, userID string, guest []Line) ([]Line, error) {
	return r.mutate(ctx, userID, func(lines []Line) []Line {
		return MergeLines(lines, guest)
	})
}

const upsertCartSQL = `
INSERT INTO carts (user_id, items, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (user_id) DO UPDATE
SET items = EXCLUDED.items, updated_at = NOW()
`

// mutate runs a read-modify-write under a per-user row lock so concurrent
// sessions of the same user cannot lose updates.
func (r *PostgresRepository) mutate(ctx context.Context, userID string, fn func([]Line) []Line) (lines []Line, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var raw []byte
	err = tx.QueryRow(ctx, `SELECT items FROM carts WHERE user_id = $1 FOR UPDATE`, userID).Scan(&raw)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	lines = fn(decodeLines(raw))

	payload, err := encodeLines(lines)
	if err != nil {
		return nil, err
	}
	if _, err = tx.Exec(ctx, upsertCartSQL, userID, payload); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return lines, nil
}

func decodeLines(raw []byte) []Line {
	if len(raw) == 0 {
		return []Line{}
	}
	var lines []Line
	if err := json.Unmarshal(raw, &lines); err != nil || lines == nil {
		// favor availability: a corrupt row reads as an empty cart
		return []Line{}
	}
	return lines
}

func encodeLines(lines []Line) ([]byte, error) {
	if lines == nil {
		lines = []Line{}
	}
	payload, err := json.Marshal(lines)
	if err != nil {
		return nil, fmt.Errorf("encode cart lines: %w", err)
	}
	return payload, nil
}

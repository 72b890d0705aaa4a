package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrNotFound = errors.New("item not found")

const defaultListLimit = 50

// Filter narrows a catalog listing. Zero values mean "no constraint".
type Filter struct {
	Category string
	MinPrice *float64
	MaxPrice *float64
	Query    string
	IDs      []int64
	Limit    int
	Offset   int
}

// DB matches the methods from *pgxpool.Pool that we use.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type Repository interface {
	List(ctx context.Context, f Filter) ([]Item, error)
	ByIDs(ctx context.Context, ids []int64) (map[int64]Item, error)
	Create(ctx context.Context, it *Item) error
	Update(ctx context.Context, it *Item) error
	Delete(ctx context.Context, id int64) error
}

type PostgresRepository struct {
	db DB
}

func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) List(ctx context.Context, f Filter) ([]Item, error) {
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`SELECT id, title, description, price, category, image FROM items WHERE 1=1`)

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Category != "" {
		sb.WriteString(` AND category = ` + arg(f.Category))
	}
	if f.MinPrice != nil {
		sb.WriteString(` AND price >= ` + arg(*f.MinPrice))
	}
	if f.MaxPrice != nil {
		sb.WriteString(` AND price <= ` + arg(*f.MaxPrice))
	}
	if f.Query != "" {
		p := arg("%" + f.Query + "%")
		sb.WriteString(` AND (title ILIKE ` + p + ` OR description ILIKE ` + p + `)`)
	}
	if len(f.IDs) > 0 {
		sb.WriteString(` AND id = ANY(` + arg(f.IDs) + `)`)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	sb.WriteString(` ORDER BY id LIMIT ` + arg(limit) + ` OFFSET ` + arg(f.Offset))

	rows, err := r.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Title, &it.Description, &it.Price, &it.Category, &it.Image); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ByIDs resolves item details for cart decoration. Unknown ids are simply
// absent from the returned map.
func (r *PostgresRepository) ByIDs(ctx context.Context, ids []int64) (map[int64]Item, error) {
	if len(ids) == 0 {
		return map[int64]Item{}, nil
	}

	items, err := r.List(ctx, Filter{IDs: ids, Limit: len(ids)})
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	return byID, nil
}

func (r *PostgresRepository) Create(ctx context.Context, it *Item) error {
	const q = `
INSERT INTO items (title, description, price, category, image)
VALUES ($1, $2, $3, $4, $5)
RETURNING id
`
	return r.db.QueryRow(ctx, q, it.Title, it.Description, it.Price, it.Category, it.Image).Scan(&it.ID)
}

func (r *PostgresRepository) Update(ctx context.Context, it *Item) error {
	const q = `
UPDATE items SET title = $2, description = $3, price = $4, category = $5, image = $6
WHERE id = $1
`
	tag, err := r.db.Exec(ctx, q, it.ID, it.Title, it.Description, it.Price, it.Category, it.Image)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
	return err
}

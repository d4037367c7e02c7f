package core

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ProductRecord is the work item persisted from a validated envelope.
// Rows are immutable after insertion; this pipeline has no update or delete
// path.
type ProductRecord struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
}

// ProductRepository defines persistence operations for products.
type ProductRepository interface {
	Insert(ctx context.Context, p ProductRecord) (int64, error)
	List(ctx context.Context, page, perPage int) ([]ProductRecord, int, error)
}

// PgProductRepository implements ProductRepository using pgxpool.
type PgProductRepository struct {
	db *pgxpool.Pool
}

func NewPgProductRepository(db *pgxpool.Pool) *PgProductRepository {
	return &PgProductRepository{db: db}
}

// Insert stores one product and returns its assigned id. Publishing the same
// task twice yields two distinct rows; the sink does not deduplicate.
func (r *PgProductRepository) Insert(ctx context.Context, p ProductRecord) (int64, error) {
	const q = `INSERT INTO products (name, description, price) VALUES ($1,$2,$3) RETURNING id`
	var id int64
	if err := r.db.QueryRow(ctx, q, p.Name, p.Description, p.Price).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// List returns paginated products, oldest first.
func (r *PgProductRepository) List(ctx context.Context, page, perPage int) ([]ProductRecord, int, error) {
	if page <= 0 || perPage <= 0 {
		return nil, 0, errors.New("invalid pagination")
	}
	const countQ = `SELECT COUNT(*) FROM products`
	var total int
	if err := r.db.QueryRow(ctx, countQ).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(ctx, `SELECT id, name, description, price FROM products ORDER BY id LIMIT $1 OFFSET $2`, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items := make([]ProductRecord, 0, perPage)
	for rows.Next() {
		var p ProductRecord
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price); err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

// EnsureProductSchema creates the products table if it does not exist yet, so
// the worker can start against an empty database.
func EnsureProductSchema(ctx context.Context, db *pgxpool.Pool) error {
	const q = `CREATE TABLE IF NOT EXISTS products (
		id SERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		price DOUBLE PRECISION NOT NULL DEFAULT 0
	)`
	_, err := db.Exec(ctx, q)
	return err
}

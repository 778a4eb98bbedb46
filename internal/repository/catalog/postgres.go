package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq" // postgres driver

	"github.com/kailas-cloud/shopsearch/internal/domain"
	"github.com/kailas-cloud/shopsearch/internal/domain/product"
)

const productColumns = `product_id, name, brand, category, price, description, stock, rating`

const (
	queryByID   = `SELECT ` + productColumns + ` FROM products WHERE product_id = $1 AND NOT is_deleted`
	queryByName = `SELECT ` + productColumns + ` FROM products WHERE lower(name) = $1 AND NOT is_deleted ORDER BY product_id LIMIT 1`
)

// PostgresReader reads products from the relational catalog. Read-only.
type PostgresReader struct {
	db *sql.DB
}

// OpenPostgres opens a pooled connection to the catalog database.
func OpenPostgres(ctx context.Context, dsn string, maxOpen int) (*PostgresReader, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog database: %w", err)
	}

	if maxOpen <= 0 {
		maxOpen = 10
	}
	conn.SetMaxOpenConns(maxOpen)
	conn.SetMaxIdleConns(max(maxOpen/5, 1))
	conn.SetConnMaxLifetime(5 * time.Minute)

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping catalog database: %w", err)
	}
	return NewPostgresReader(conn), nil
}

// NewPostgresReader wraps an existing connection pool.
func NewPostgresReader(conn *sql.DB) *PostgresReader {
	return &PostgresReader{db: conn}
}

// ByID returns the product with the given identifier.
func (r *PostgresReader) ByID(ctx context.Context, id string) (product.Product, error) {
	p, err := r.scanOne(ctx, queryByID, id)
	if err != nil {
		return product.Product{}, fmt.Errorf("product %s: %w", id, err)
	}
	return p, nil
}

// ByName returns the product whose name matches exactly, ignoring case.
func (r *PostgresReader) ByName(ctx context.Context, name string) (product.Product, error) {
	p, err := r.scanOne(ctx, queryByName, strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return product.Product{}, fmt.Errorf("product %q: %w", name, err)
	}
	return p, nil
}

// Ping verifies the connection.
func (r *PostgresReader) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx) //nolint:wrapcheck // health probe
}

// Close releases the pool.
func (r *PostgresReader) Close() error {
	return r.db.Close() //nolint:wrapcheck // shutdown path
}

func (r *PostgresReader) scanOne(ctx context.Context, query string, arg string) (product.Product, error) {
	var (
		p                     product.Product
		brand, category, desc sql.NullString
		stock                 sql.NullInt64
		rating                sql.NullFloat64
	)

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&p.ID, &p.Name, &brand, &category, &p.Price, &desc, &stock, &rating,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return product.Product{}, domain.ErrNotFound
	}
	if err != nil {
		return product.Product{}, fmt.Errorf("query catalog: %w", err)
	}

	p.Brand = brand.String
	p.Category = category.String
	p.Description = desc.String
	p.Stock = int(stock.Int64)
	p.Rating = rating.Float64
	return p, nil
}

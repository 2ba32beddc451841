package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/yalublugerbl4/shop/internal/models"
)

// Product is a stored product row. Category and season are assigned at
// import time from the category the URL was discovered under; extraction
// itself knows nothing about either.
type Product struct {
	ID           string             `json:"id"`
	Title        string             `json:"title"`
	PriceCents   int64              `json:"price_cents"`
	Description  string             `json:"description"`
	ImagesBase64 []string           `json:"images_base64"`
	SizePrices   []models.SizePrice `json:"size_prices"`
	Category     string             `json:"category,omitempty"`
	Season       string             `json:"season,omitempty"`
	SourceURL    string             `json:"source_url"`
	IsActive     bool               `json:"is_active"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// ListFilter narrows List results. Zero-valued fields are ignored.
type ListFilter struct {
	Category string
	Season   string
	Query    string
	Size     string
	Brand    string
	Limit    int
	Offset   int
}

type ProductStore struct {
	db *DB
}

func NewProductStore(db *DB) *ProductStore {
	return &ProductStore{db: db}
}

// Upsert inserts the record or refreshes the existing row with the same
// source URL. Re-ingesting a URL reactivates it.
func (s *ProductStore) Upsert(ctx context.Context, record *models.ProductRecord, category, season string) (*Product, error) {
	images, err := json.Marshal(record.ImagesBase64)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal images: %w", err)
	}
	sizes := record.SizePrices
	if sizes == nil {
		sizes = []models.SizePrice{}
	}
	sizesJSON, err := json.Marshal(sizes)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal size prices: %w", err)
	}

	query := `
		INSERT INTO products (title, price_cents, description, images_base64, size_prices, category, season, source_url)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8)
		ON CONFLICT (source_url) DO UPDATE SET
			title = EXCLUDED.title,
			price_cents = EXCLUDED.price_cents,
			description = EXCLUDED.description,
			images_base64 = EXCLUDED.images_base64,
			size_prices = EXCLUDED.size_prices,
			category = COALESCE(EXCLUDED.category, products.category),
			season = COALESCE(EXCLUDED.season, products.season),
			is_active = TRUE,
			updated_at = NOW()
		RETURNING id, title, price_cents, description, images_base64, size_prices,
			COALESCE(category, ''), COALESCE(season, ''), source_url, is_active, created_at, updated_at`

	row := s.db.pool.QueryRow(ctx, query,
		record.Title, record.PriceCents, record.Description, images, sizesJSON,
		category, season, record.SourceURL)

	product, err := scanProduct(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert product: %w", err)
	}
	return product, nil
}

func (s *ProductStore) ExistsBySourceURL(ctx context.Context, sourceURL string) (bool, error) {
	var exists bool
	err := s.db.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM products WHERE source_url = $1 AND is_active)`,
		sourceURL).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check product existence: %w", err)
	}
	return exists, nil
}

func (s *ProductStore) GetByID(ctx context.Context, id string) (*Product, error) {
	row := s.db.pool.QueryRow(ctx, `
		SELECT id, title, price_cents, description, images_base64, size_prices,
			COALESCE(category, ''), COALESCE(season, ''), source_url, is_active, created_at, updated_at
		FROM products
		WHERE id = $1`, id)

	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return product, nil
}

// List returns active products matching the filter, newest first.
func (s *ProductStore) List(ctx context.Context, filter ListFilter) ([]*Product, error) {
	var conditions []string
	var args []any

	conditions = append(conditions, "is_active")

	addCondition := func(clause string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}

	if filter.Category != "" {
		addCondition("category = $%d", filter.Category)
	}
	if filter.Season != "" {
		addCondition("season = $%d", filter.Season)
	}
	if filter.Query != "" {
		addCondition("title ILIKE $%d", "%"+filter.Query+"%")
	}
	if filter.Brand != "" {
		addCondition("title ILIKE $%d", filter.Brand+"%")
	}
	if filter.Size != "" {
		// size_prices is a JSONB array of {"size": ..., "price_cents": ...}.
		addCondition(`size_prices @> jsonb_build_array(jsonb_build_object('size', $%d::text))`, filter.Size)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	args = append(args, limit)
	limitClause := fmt.Sprintf("LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	offsetClause := fmt.Sprintf("OFFSET $%d", len(args))

	query := fmt.Sprintf(`
		SELECT id, title, price_cents, description, images_base64, size_prices,
			COALESCE(category, ''), COALESCE(season, ''), source_url, is_active, created_at, updated_at
		FROM products
		WHERE %s
		ORDER BY created_at DESC
		%s %s`, strings.Join(conditions, " AND "), limitClause, offsetClause)

	rows, err := s.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []*Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}

	return products, nil
}

// Deactivate soft-deletes a product. The row stays so a later re-ingest of
// the same source URL revives it instead of recreating it.
func (s *ProductStore) Deactivate(ctx context.Context, id string) error {
	tag, err := s.db.pool.Exec(ctx,
		`UPDATE products SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	var images, sizes []byte

	err := row.Scan(&p.ID, &p.Title, &p.PriceCents, &p.Description, &images, &sizes,
		&p.Category, &p.Season, &p.SourceURL, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(images, &p.ImagesBase64); err != nil {
		return nil, fmt.Errorf("failed to unmarshal images: %w", err)
	}
	if err := json.Unmarshal(sizes, &p.SizePrices); err != nil {
		return nil, fmt.Errorf("failed to unmarshal size prices: %w", err)
	}

	return &p, nil
}

package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const queryTimeout = 5 * time.Second

const productColumns = `p.id, p.name, p.description, p.price, p.category_id, c.name, c.parent_id,
	p.brand, p.color, p.material, p.stock, p.shipping_fee, p.is_featured, p.is_active, p.created_at`

type ProductModel struct {
	DB *sql.DB
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner) (*Product, error) {
	var (
		p                      Product
		cat                    Category
		parent                 uuid.NullUUID
		brand, color, material sql.NullString
	)
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.CategoryID, &cat.Name, &parent,
		&brand, &color, &material, &p.Stock, &p.ShippingFee, &p.IsFeatured, &p.IsActive, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	cat.ID = p.CategoryID
	if parent.Valid {
		id := parent.UUID
		cat.ParentID = &id
	}
	p.Category = &cat
	p.Brand = nullable(brand)
	p.Color = nullable(color)
	p.Material = nullable(material)
	p.Images = []ProductImage{}
	p.Sizes = []ProductSize{}
	return &p, nil
}

func nullable(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func idArray(ids []uuid.UUID) any {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return pq.Array(out)
}

// Filters returns the brand/color/material facets across active products.
func (m *ProductModel) Filters(ctx context.Context) (Filters, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := m.DB.QueryContext(ctx, `SELECT brand, color, material FROM products WHERE is_active`)
	if err != nil {
		return Filters{}, fmt.Errorf("query facets: %w", err)
	}
	defer rows.Close()

	var facets []FacetRow
	for rows.Next() {
		var brand, color, material sql.NullString
		if err := rows.Scan(&brand, &color, &material); err != nil {
			return Filters{}, fmt.Errorf("scan facets: %w", err)
		}
		facets = append(facets, FacetRow{Brand: nullable(brand), Color: nullable(color), Material: nullable(material)})
	}
	if err := rows.Err(); err != nil {
		return Filters{}, fmt.Errorf("iterate facets: %w", err)
	}
	return BuildFacets(facets), nil
}

// Related returns up to limit other in-stock products of the category,
// featured first and then newest first. Each carries only its in-stock
// sizes and its primary image.
func (m *ProductModel) Related(ctx context.Context, productID, categoryID uuid.UUID, limit int) ([]*Product, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	q := `SELECT ` + productColumns + `
		FROM products p
		JOIN categories c ON c.id = p.category_id
		WHERE p.category_id = $1 AND p.id <> $2 AND p.stock > 0 AND p.is_active
		ORDER BY p.is_featured DESC, p.created_at DESC, p.id DESC
		LIMIT $3`
	products, err := m.query(ctx, q, categoryID, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("query related: %w", err)
	}
	if err := m.attachSizes(ctx, products, true); err != nil {
		return nil, err
	}
	if err := m.attachImages(ctx, products, true); err != nil {
		return nil, err
	}
	return products, nil
}

// Get returns an active product with its category, every size row and every
// image.
func (m *ProductModel) Get(ctx context.Context, id uuid.UUID) (*Product, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	q := `SELECT ` + productColumns + `
		FROM products p
		JOIN categories c ON c.id = p.category_id
		WHERE p.id = $1 AND p.is_active`
	p, err := scanProduct(m.DB.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoRecord
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	products := []*Product{p}
	if err := m.attachSizes(ctx, products, false); err != nil {
		return nil, err
	}
	if err := m.attachImages(ctx, products, false); err != nil {
		return nil, err
	}
	return p, nil
}

// GetMany loads active products by id with all sizes and the primary image.
// Unknown and inactive ids are absent from the result.
func (m *ProductModel) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Product, error) {
	out := make(map[uuid.UUID]*Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	q := `SELECT ` + productColumns + `
		FROM products p
		JOIN categories c ON c.id = p.category_id
		WHERE p.id = ANY($1::uuid[]) AND p.is_active`
	products, err := m.query(ctx, q, idArray(ids))
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	if err := m.attachSizes(ctx, products, false); err != nil {
		return nil, err
	}
	if err := m.attachImages(ctx, products, true); err != nil {
		return nil, err
	}
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

// List returns active products, newest first, optionally narrowed to one
// category and a case-insensitive name match.
func (m *ProductModel) List(ctx context.Context, categoryID *uuid.UUID, search string, limit int) ([]*Product, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	args := []any{limit}
	where := "p.is_active"
	if categoryID != nil {
		args = append(args, *categoryID)
		where += fmt.Sprintf(" AND p.category_id = $%d", len(args))
	}
	if search != "" {
		args = append(args, "%"+search+"%")
		where += fmt.Sprintf(" AND p.name ILIKE $%d", len(args))
	}
	q := `SELECT ` + productColumns + `
		FROM products p
		JOIN categories c ON c.id = p.category_id
		WHERE ` + where + `
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $1`
	products, err := m.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	if err := m.attachSizes(ctx, products, true); err != nil {
		return nil, err
	}
	if err := m.attachImages(ctx, products, true); err != nil {
		return nil, err
	}
	return products, nil
}

// ShippingFees maps each known product id to its shipping fee.
func (m *ProductModel) ShippingFees(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	fees := make(map[uuid.UUID]decimal.Decimal, len(ids))
	if len(ids) == 0 {
		return fees, nil
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := m.DB.QueryContext(ctx, `SELECT id, shipping_fee FROM products WHERE id = ANY($1::uuid[])`, idArray(ids))
	if err != nil {
		return nil, fmt.Errorf("query shipping fees: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		var fee decimal.Decimal
		if err := rows.Scan(&id, &fee); err != nil {
			return nil, fmt.Errorf("scan shipping fee: %w", err)
		}
		fees[id] = fee
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shipping fees: %w", err)
	}
	return fees, nil
}

// Insert stores a product along with its sizes and images and returns the
// new id. Product stock is the sum of the size rows when sizes are given.
func (m *ProductModel) Insert(ctx context.Context, p *Product) (uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if len(p.Sizes) > 0 {
		p.Stock = 0
		for _, s := range p.Sizes {
			p.Stock += s.Stock
		}
	}

	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, err
	}
	defer tx.Rollback()

	id := uuid.New()
	_, err = tx.ExecContext(ctx, `INSERT INTO products
		(id, name, description, price, category_id, brand, color, material, stock, shipping_fee, is_featured, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		id, p.Name, p.Description, p.Price, p.CategoryID, p.Brand, p.Color, p.Material,
		p.Stock, p.ShippingFee, p.IsFeatured, p.IsActive)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert product: %w", err)
	}
	for _, s := range p.Sizes {
		if _, err := tx.ExecContext(ctx, `INSERT INTO product_sizes (product_id, size, stock) VALUES ($1, $2, $3)`,
			id, s.Size, s.Stock); err != nil {
			return uuid.Nil, fmt.Errorf("insert size: %w", err)
		}
	}
	for _, img := range p.Images {
		if _, err := tx.ExecContext(ctx, `INSERT INTO product_images (product_id, url, alt_text, sort_order) VALUES ($1, $2, $3, $4)`,
			id, img.URL, img.AltText, img.SortOrder); err != nil {
			return uuid.Nil, fmt.Errorf("insert image: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (m *ProductModel) query(ctx context.Context, q string, args ...any) ([]*Product, error) {
	rows, err := m.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []*Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func productIndex(products []*Product) ([]uuid.UUID, map[uuid.UUID]*Product) {
	ids := make([]uuid.UUID, 0, len(products))
	byID := make(map[uuid.UUID]*Product, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
		byID[p.ID] = p
	}
	return ids, byID
}

func (m *ProductModel) attachSizes(ctx context.Context, products []*Product, inStockOnly bool) error {
	if len(products) == 0 {
		return nil
	}
	ids, byID := productIndex(products)

	q := `SELECT product_id, size, stock FROM product_sizes WHERE product_id = ANY($1::uuid[])`
	if inStockOnly {
		q += ` AND stock > 0`
	}
	q += ` ORDER BY product_id, size`

	rows, err := m.DB.QueryContext(ctx, q, idArray(ids))
	if err != nil {
		return fmt.Errorf("query sizes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var pid uuid.UUID
		var s ProductSize
		if err := rows.Scan(&pid, &s.Size, &s.Stock); err != nil {
			return fmt.Errorf("scan size: %w", err)
		}
		if p, ok := byID[pid]; ok {
			p.Sizes = append(p.Sizes, s)
		}
	}
	return rows.Err()
}

func (m *ProductModel) attachImages(ctx context.Context, products []*Product, primaryOnly bool) error {
	if len(products) == 0 {
		return nil
	}
	ids, byID := productIndex(products)

	q := `SELECT product_id, url, alt_text, sort_order FROM product_images
		WHERE product_id = ANY($1::uuid[]) ORDER BY product_id, sort_order, id`
	if primaryOnly {
		q = `SELECT DISTINCT ON (product_id) product_id, url, alt_text, sort_order FROM product_images
		WHERE product_id = ANY($1::uuid[]) ORDER BY product_id, sort_order, id`
	}

	rows, err := m.DB.QueryContext(ctx, q, idArray(ids))
	if err != nil {
		return fmt.Errorf("query images: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var pid uuid.UUID
		var img ProductImage
		if err := rows.Scan(&pid, &img.URL, &img.AltText, &img.SortOrder); err != nil {
			return fmt.Errorf("scan image: %w", err)
		}
		if p, ok := byID[pid]; ok {
			p.Images = append(p.Images, img)
		}
	}
	return rows.Err()
}

package models

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		email TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'customer' CHECK (role IN ('customer','admin')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT users_email_key UNIQUE (email)
	)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name TEXT NOT NULL,
		parent_id UUID REFERENCES categories (id) ON DELETE SET NULL,
		CHECK (parent_id IS NULL OR parent_id <> id)
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		price NUMERIC(12,2) NOT NULL CHECK (price >= 0),
		category_id UUID NOT NULL REFERENCES categories (id),
		brand TEXT,
		color TEXT,
		material TEXT,
		stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
		shipping_fee NUMERIC(12,2) NOT NULL DEFAULT 0 CHECK (shipping_fee >= 0),
		is_featured BOOLEAN NOT NULL DEFAULT false,
		is_active BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_products_category_related ON products (category_id, is_featured DESC, created_at DESC) WHERE is_active AND stock > 0`,
	`CREATE TABLE IF NOT EXISTS product_sizes (
		product_id UUID NOT NULL REFERENCES products (id) ON DELETE CASCADE,
		size TEXT NOT NULL,
		stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
		PRIMARY KEY (product_id, size)
	)`,
	`CREATE TABLE IF NOT EXISTS product_images (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		product_id UUID NOT NULL REFERENCES products (id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		alt_text TEXT NOT NULL DEFAULT '',
		sort_order INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_product_images_order ON product_images (product_id, sort_order)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		order_number TEXT NOT NULL,
		user_id UUID NOT NULL REFERENCES users (id),
		status TEXT NOT NULL DEFAULT 'pending',
		total NUMERIC(12,2) NOT NULL,
		shipping_total NUMERIC(12,2) NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT orders_order_number_key UNIQUE (order_number)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_user_created ON orders (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		order_id UUID NOT NULL REFERENCES orders (id) ON DELETE CASCADE,
		product_id UUID NOT NULL REFERENCES products (id),
		size TEXT NOT NULL DEFAULT '',
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		unit_price NUMERIC(12,2) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		order_id UUID NOT NULL REFERENCES orders (id) ON DELETE CASCADE,
		method TEXT NOT NULL,
		amount NUMERIC(12,2) NOT NULL,
		status TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS cart_items (
		user_id UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		product_id UUID NOT NULL REFERENCES products (id) ON DELETE CASCADE,
		size TEXT NOT NULL DEFAULT '',
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		PRIMARY KEY (user_id, product_id, size)
	)`,
	`CREATE TABLE IF NOT EXISTS wishlist_items (
		user_id UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		product_id UUID NOT NULL REFERENCES products (id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (user_id, product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS reviews (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		product_id UUID NOT NULL REFERENCES products (id) ON DELETE CASCADE,
		user_id UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
		comment TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS addresses (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		recipient TEXT NOT NULL,
		line1 TEXT NOT NULL,
		line2 TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL,
		postal_code TEXT NOT NULL,
		country TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		is_default BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS addresses_one_default_per_user ON addresses (user_id) WHERE is_default`,
}

// Migrate applies the relational schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

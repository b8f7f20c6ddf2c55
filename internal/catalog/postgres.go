package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/postgres"
	"github.com/lib/pq"
)

// Schema creates the tables PostgresSource reads from. Products keep their
// catalog position so a load returns them in natural order.
const Schema = `
CREATE TABLE IF NOT EXISTS products (
    id          TEXT PRIMARY KEY,
    position    INTEGER NOT NULL,
    name        TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    price       DOUBLE PRECISION NOT NULL DEFAULT 0,
    category    TEXT NOT NULL DEFAULT '',
    brand       TEXT NOT NULL DEFAULT '',
    rating      DOUBLE PRECISION NOT NULL DEFAULT 0,
    in_stock    BOOLEAN NOT NULL DEFAULT FALSE,
    image_url   TEXT NOT NULL DEFAULT '',
    tags        TEXT[] NOT NULL DEFAULT '{}'
);
CREATE TABLE IF NOT EXISTS orders (
    order_id    TEXT PRIMARY KEY,
    position    INTEGER NOT NULL,
    date        TEXT NOT NULL DEFAULT '',
    customer_id TEXT NOT NULL DEFAULT '',
    total       DOUBLE PRECISION NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS order_items (
    order_id   TEXT NOT NULL REFERENCES orders(order_id) ON DELETE CASCADE,
    line_no    INTEGER NOT NULL,
    product_id TEXT NOT NULL,
    quantity   INTEGER NOT NULL DEFAULT 1,
    price      DOUBLE PRECISION NOT NULL DEFAULT 0,
    PRIMARY KEY (order_id, line_no)
);
`

// PostgresSource loads the catalog from PostgreSQL.
type PostgresSource struct {
	db     *postgres.Client
	logger *slog.Logger
}

// NewPostgresSource creates a PostgresSource on an open client.
func NewPostgresSource(db *postgres.Client) *PostgresSource {
	return &PostgresSource{
		db:     db,
		logger: logger.WithComponent("postgres-source"),
	}
}

// EnsureSchema creates the catalog tables if they do not exist.
func (s *PostgresSource) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("creating catalog schema: %w", err)
	}
	return nil
}

func (s *PostgresSource) LoadProducts(ctx context.Context) ([]Product, error) {
	rows, err := s.db.DB.QueryContext(ctx, `
		SELECT id, name, description, price, category, brand, rating, in_stock, image_url, tags
		FROM products
		ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("querying products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		var tags pq.StringArray
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Description, &p.Price, &p.Category,
			&p.Brand, &p.Rating, &p.InStock, &p.ImageURL, &tags,
		); err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		p.Tags = []string(tags)
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating products: %w", err)
	}
	return Sanitize(products, s.logger), nil
}

func (s *PostgresSource) LoadOrders(ctx context.Context) ([]Order, error) {
	rows, err := s.db.DB.QueryContext(ctx, `
		SELECT o.order_id, o.date, o.customer_id, o.total,
		       i.product_id, i.quantity, i.price
		FROM orders o
		LEFT JOIN order_items i ON i.order_id = o.order_id
		ORDER BY o.position, o.order_id, i.line_no`)
	if err != nil {
		return nil, fmt.Errorf("querying orders: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		var (
			o         Order
			productID sql.NullString
			quantity  sql.NullInt64
			price     sql.NullFloat64
		)
		if err := rows.Scan(&o.OrderID, &o.Date, &o.CustomerID, &o.Total, &productID, &quantity, &price); err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}
		if n := len(orders); n == 0 || orders[n-1].OrderID != o.OrderID {
			orders = append(orders, o)
		}
		if productID.Valid {
			last := &orders[len(orders)-1]
			last.Items = append(last.Items, OrderItem{
				ProductID: productID.String,
				Quantity:  int(quantity.Int64),
				Price:     price.Float64,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating orders: %w", err)
	}
	return SanitizeOrders(orders, s.logger), nil
}

// Import replaces the stored catalog with the given collections in a single
// transaction. Readers of the source never observe a partial import.
func (s *PostgresSource) Import(ctx context.Context, products []Product, orders []Order) error {
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{`DELETE FROM order_items`, `DELETE FROM orders`, `DELETE FROM products`} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("clearing catalog: %w", err)
			}
		}

		productStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO products (id, position, name, description, price, category, brand, rating, in_stock, image_url, tags)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`)
		if err != nil {
			return fmt.Errorf("preparing product insert: %w", err)
		}
		defer productStmt.Close()
		for i, p := range products {
			if _, err := productStmt.ExecContext(ctx,
				p.ID, i, p.Name, p.Description, p.Price, p.Category,
				p.Brand, p.Rating, p.InStock, p.ImageURL, pq.Array(p.Tags),
			); err != nil {
				return fmt.Errorf("inserting product %s: %w", p.ID, err)
			}
		}

		orderStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO orders (order_id, position, date, customer_id, total)
			VALUES ($1, $2, $3, $4, $5)`)
		if err != nil {
			return fmt.Errorf("preparing order insert: %w", err)
		}
		defer orderStmt.Close()
		itemStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO order_items (order_id, line_no, product_id, quantity, price)
			VALUES ($1, $2, $3, $4, $5)`)
		if err != nil {
			return fmt.Errorf("preparing order item insert: %w", err)
		}
		defer itemStmt.Close()
		for i, o := range orders {
			if _, err := orderStmt.ExecContext(ctx, o.OrderID, i, o.Date, o.CustomerID, o.Total); err != nil {
				return fmt.Errorf("inserting order %s: %w", o.OrderID, err)
			}
			for line, item := range o.Items {
				if _, err := itemStmt.ExecContext(ctx, o.OrderID, line, item.ProductID, item.Quantity, item.Price); err != nil {
					return fmt.Errorf("inserting order %s line %d: %w", o.OrderID, line, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("catalog imported", "products", len(products), "orders", len(orders))
	return nil
}

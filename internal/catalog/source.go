package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/resilience"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

// Source supplies the raw product and order collections for a snapshot.
// Implementations must return products in the catalog's natural order.
type Source interface {
	LoadProducts(ctx context.Context) ([]Product, error)
	LoadOrders(ctx context.Context) ([]Order, error)
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func recordValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// FileSource reads products and orders from JSON array files.
type FileSource struct {
	ProductsPath string
	OrdersPath   string
	logger       *slog.Logger
}

// NewFileSource creates a FileSource for the two given paths.
func NewFileSource(productsPath, ordersPath string) *FileSource {
	return &FileSource{
		ProductsPath: productsPath,
		OrdersPath:   ordersPath,
		logger:       logger.WithComponent("file-source"),
	}
}

// productRecord accepts both the camelCase keys the API emits and the
// snake_case keys older data files use.
type productRecord struct {
	Product
	InStockSnake  *bool  `json:"in_stock"`
	ImageURLSnake string `json:"image_url"`
}

type orderItemRecord struct {
	OrderItem
	ProductIDSnake string `json:"product_id"`
}

type orderRecord struct {
	OrderID         string            `json:"orderId"`
	OrderIDSnake    string            `json:"order_id"`
	Date            string            `json:"date"`
	CustomerID      string            `json:"customerId"`
	CustomerIDSnake string            `json:"customer_id"`
	Items           []orderItemRecord `json:"items"`
	Total           float64           `json:"total"`
}

// LoadProducts decodes the products file. Records failing validation are
// skipped and logged; duplicate IDs keep their first occurrence.
func (s *FileSource) LoadProducts(ctx context.Context) ([]Product, error) {
	var records []productRecord
	if err := readJSON(s.ProductsPath, &records); err != nil {
		return nil, fmt.Errorf("loading products: %w", err)
	}
	products := make([]Product, 0, len(records))
	for _, rec := range records {
		p := rec.Product
		if rec.InStockSnake != nil {
			p.InStock = *rec.InStockSnake
		}
		if p.ImageURL == "" {
			p.ImageURL = rec.ImageURLSnake
		}
		p.PopularityScore = 0
		products = append(products, p)
	}
	return Sanitize(products, s.logger), nil
}

// LoadOrders decodes the orders file. Orders or lines failing validation
// are skipped and logged.
func (s *FileSource) LoadOrders(ctx context.Context) ([]Order, error) {
	var records []orderRecord
	if err := readJSON(s.OrdersPath, &records); err != nil {
		return nil, fmt.Errorf("loading orders: %w", err)
	}
	orders := make([]Order, 0, len(records))
	for _, rec := range records {
		o := Order{
			OrderID:    firstNonEmpty(rec.OrderID, rec.OrderIDSnake),
			Date:       rec.Date,
			CustomerID: firstNonEmpty(rec.CustomerID, rec.CustomerIDSnake),
			Total:      rec.Total,
			Items:      make([]OrderItem, 0, len(rec.Items)),
		}
		for _, item := range rec.Items {
			line := item.OrderItem
			line.ProductID = firstNonEmpty(line.ProductID, item.ProductIDSnake)
			o.Items = append(o.Items, line)
		}
		orders = append(orders, o)
	}
	return SanitizeOrders(orders, s.logger), nil
}

// Sanitize drops products that fail validation or repeat an earlier ID.
func Sanitize(products []Product, logger *slog.Logger) []Product {
	v := recordValidator()
	seen := make(map[string]struct{}, len(products))
	out := products[:0:0]
	invalid, duplicates := 0, 0
	for _, p := range products {
		if err := v.Struct(p); err != nil {
			invalid++
			continue
		}
		if _, dup := seen[p.ID]; dup {
			duplicates++
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	if invalid > 0 || duplicates > 0 {
		logger.Warn("skipped product records",
			"invalid", invalid,
			"duplicates", duplicates,
			"kept", len(out),
		)
	}
	return out
}

// SanitizeOrders drops order lines without a product reference and orders
// without an ID.
func SanitizeOrders(orders []Order, logger *slog.Logger) []Order {
	v := recordValidator()
	out := orders[:0:0]
	droppedOrders, droppedLines := 0, 0
	for _, o := range orders {
		lines := o.Items[:0:0]
		for _, item := range o.Items {
			if err := v.Struct(item); err != nil {
				droppedLines++
				continue
			}
			lines = append(lines, item)
		}
		o.Items = lines
		if err := v.Struct(o); err != nil {
			droppedOrders++
			continue
		}
		out = append(out, o)
	}
	if droppedOrders > 0 || droppedLines > 0 {
		logger.Warn("skipped order records",
			"orders", droppedOrders,
			"lines", droppedLines,
			"kept", len(out),
		)
	}
	return out
}

// readJSON reports unconfigured paths and malformed documents as permanent
// failures; a missing file may still appear on a later attempt.
func readJSON(path string, dst any) error {
	if path == "" {
		return resilience.Permanent(fmt.Errorf("no path configured"))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return resilience.Permanent(fmt.Errorf("decoding %s: %w", path, err))
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

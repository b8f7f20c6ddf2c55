// Package catalog defines the product and order records served by the query
// engine and the sources they are loaded from.
package catalog

// Product is a single catalog entry. PopularityScore is derived from order
// history when a snapshot is built and is never read from a source.
type Product struct {
	ID              string   `json:"id" validate:"required"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Price           float64  `json:"price"`
	Category        string   `json:"category"`
	Brand           string   `json:"brand"`
	Rating          float64  `json:"rating"`
	InStock         bool     `json:"inStock"`
	ImageURL        string   `json:"imageUrl"`
	Tags            []string `json:"tags"`
	PopularityScore int      `json:"popularityScore"`
}

// OrderItem is one order line. ProductID is a weak reference: it may name a
// product that is no longer in the catalog.
type OrderItem struct {
	ProductID string  `json:"productId" validate:"required"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// Order is a historical purchase.
type Order struct {
	OrderID    string      `json:"orderId" validate:"required"`
	Date       string      `json:"date"`
	CustomerID string      `json:"customerId"`
	Items      []OrderItem `json:"items" validate:"dive"`
	Total      float64     `json:"total"`
}

// ProductIDs returns the distinct product IDs referenced by the order in
// first-seen line order.
func (o Order) ProductIDs() []string {
	ids := make([]string, 0, len(o.Items))
	seen := make(map[string]struct{}, len(o.Items))
	for _, item := range o.Items {
		if _, dup := seen[item.ProductID]; dup {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}

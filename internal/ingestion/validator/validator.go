// Package validator checks import requests and the catalog they carry before
// anything is written.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/ingestion"
)

const (
	maxRating    = 5
	maxFieldErrs = 20
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		keys = append(keys, field)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, field := range keys {
		parts[i] = fmt.Sprintf("%s: %s", field, e.Fields[field])
	}
	return strings.Join(parts, "; ")
}

// ValidateImportRequest checks that the request names usable files.
func ValidateImportRequest(req *ingestion.ImportRequest) error {
	errs := make(map[string]string)
	if strings.TrimSpace(req.ProductsPath) == "" {
		errs["products"] = "products file is required"
	}
	if req.OrdersPath != "" && req.OrdersPath == req.ProductsPath {
		errs["orders"] = "orders file must differ from the products file"
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// ValidateCatalog rejects an empty catalog and products whose price or
// rating is out of range. It returns the number of order lines naming a
// product that is not in the catalog; those are kept, since retired products
// still contribute to popularity history.
func ValidateCatalog(products []catalog.Product, orders []catalog.Order) (dangling int, err error) {
	errs := make(map[string]string)
	if len(products) == 0 {
		errs["products"] = "at least one product is required"
	}
	known := make(map[string]struct{}, len(products))
	for _, p := range products {
		known[p.ID] = struct{}{}
		if len(errs) >= maxFieldErrs {
			continue
		}
		if p.Price < 0 {
			errs["product "+p.ID+" price"] = "must not be negative"
		}
		if p.Rating < 0 || p.Rating > maxRating {
			errs["product "+p.ID+" rating"] = fmt.Sprintf("must be between 0 and %d", maxRating)
		}
	}
	for _, o := range orders {
		for _, item := range o.Items {
			if _, ok := known[item.ProductID]; !ok {
				dangling++
			}
		}
	}
	if len(errs) > 0 {
		return dangling, &ValidationError{Fields: errs}
	}
	return dangling, nil
}

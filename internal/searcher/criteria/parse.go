package criteria

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Limits bounds the page size accepted from clients.
type Limits struct {
	DefaultLimit int
	MaxLimit     int
}

// params mirrors the query string. Field names in validation errors come
// from the query tag.
type params struct {
	MinPrice     *float64 `query:"minPrice" validate:"omitempty,gte=0"`
	MaxPrice     *float64 `query:"maxPrice" validate:"omitempty,gte=0"`
	Availability string   `query:"availability" validate:"omitempty,oneof=in-stock sold-out"`
	Sort         string   `query:"sort" validate:"omitempty,oneof=price_asc price_desc rating popular"`
	Page         int      `query:"page" validate:"gte=1"`
	Limit        int      `query:"limit" validate:"gte=1"`
}

// ValidationError lists the offending query parameters and why each was
// rejected.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, name := range sortedKeys(e.Fields) {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "invalid query parameters: " + strings.Join(parts, "; ")
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func paramValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			if name := f.Tag.Get("query"); name != "" {
				return name
			}
			return f.Name
		})
	})
	return validate
}

// Parse builds Criteria from listing query parameters. Categories and brands
// may be repeated or comma-separated under either the singular or plural
// key.
func Parse(values url.Values, limits Limits) (Criteria, error) {
	if limits.DefaultLimit <= 0 {
		limits.DefaultLimit = DefaultLimit
	}
	fields := make(map[string]string)
	p := params{Page: DefaultPage, Limit: limits.DefaultLimit}

	p.MinPrice = parseFloat(values, "minPrice", fields)
	p.MaxPrice = parseFloat(values, "maxPrice", fields)
	if v, ok := parseInt(values, "page", fields); ok {
		p.Page = v
	}
	if v, ok := parseInt(values, "limit", fields); ok {
		p.Limit = v
	}
	p.Availability = strings.TrimSpace(values.Get("availability"))
	p.Sort = strings.TrimSpace(values.Get("sort"))

	if err := paramValidator().Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return Criteria{}, fmt.Errorf("validating query parameters: %w", err)
		}
		for _, fe := range verrs {
			if _, seen := fields[fe.Field()]; !seen {
				fields[fe.Field()] = describe(fe)
			}
		}
	}
	if _, bad := fields["limit"]; !bad && limits.MaxLimit > 0 && p.Limit > limits.MaxLimit {
		fields["limit"] = fmt.Sprintf("must be at most %d", limits.MaxLimit)
	}
	if len(fields) > 0 {
		return Criteria{}, &ValidationError{Fields: fields}
	}

	return Criteria{
		Search:       values.Get("q"),
		Categories:   multi(values, "category", "categories"),
		Brands:       multi(values, "brand", "brands"),
		MinPrice:     p.MinPrice,
		MaxPrice:     p.MaxPrice,
		Availability: Availability(p.Availability),
		Sort:         SortOrder(p.Sort),
		Page:         p.Page,
		Limit:        p.Limit,
	}, nil
}

func parseFloat(values url.Values, key string, fields map[string]string) *float64 {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		fields[key] = "must be a number"
		return nil
	}
	return &v
}

func parseInt(values url.Values, key string, fields map[string]string) (int, bool) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		fields[key] = "must be an integer"
		return 0, false
	}
	return v, true
}

func multi(values url.Values, keys ...string) []string {
	var out []string
	for _, key := range keys {
		for _, raw := range values[key] {
			for _, part := range strings.Split(raw, ",") {
				if part = strings.TrimSpace(part); part != "" {
					out = append(out, part)
				}
			}
		}
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gte":
		return "must be at least " + fe.Param()
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

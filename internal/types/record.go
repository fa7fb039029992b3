package types

import (
	"strings"
)

// TimestampFormat is the layout of the scraped_at column
const TimestampFormat = "2006-01-02 15:04:05"

// Fieldnames is the canonical column order of the output files.
// Downstream analysis reads these columns by name, so the order and
// spelling are part of the file format.
var Fieldnames = []string{
	"retailer", "retailer_country", "name", "price", "original_price",
	"currency", "link", "volume", "abv", "category", "subcategory", "brand", "country",
	"region", "description", "rating", "num_reviews", "in_stock", "image_url", "product_id", "series",
	"scraped_at",
}

var fieldSet = func() map[string]bool {
	set := make(map[string]bool, len(Fieldnames))
	for _, f := range Fieldnames {
		set[f] = true
	}
	return set
}()

// IsCanonicalField reports whether name is one of the output columns
func IsCanonicalField(name string) bool {
	return fieldSet[name]
}

// Record is a single product as a flat field -> scalar mapping
type Record map[string]interface{}

// IsValid reports whether the record carries both a name and a price
func (r Record) IsValid() bool {
	return present(r["name"]) && present(r["price"])
}

// Merge copies every non-nil value of other into r
func (r Record) Merge(other Record) {
	for k, v := range other {
		if v == nil {
			continue
		}
		r[k] = v
	}
}

// String returns the value of a field if it is a non-empty string
func (r Record) String(field string) string {
	s, _ := r[field].(string)
	return s
}

func present(v interface{}) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) != ""
	}
	return true
}

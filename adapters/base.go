package adapters

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"retail-crawler/internal/types"
)

// Page is the outcome of mapping one list page or API response
type Page struct {
	Records   []types.Record
	ListFound bool   // the product list container (or JSON root array) was present
	Items     int    // candidate items before validation
	HasNext   bool   // a next page indicator was present
	Cursor    string // server-issued cursor for the next request, if any
}

// Mapper turns fetched content into candidate records.
// DOMMapper and JSONMapper are the two implementations.
type Mapper interface {
	// Map extracts the records of a list page or API response
	Map(content string) (*Page, error)

	// MapDetail extracts the supplementary fields of a detail page
	MapDetail(content string) (types.Record, error)
}

// NewMapper returns the mapper matching the site's scraper type
func NewMapper(site *types.SiteConfig, logger types.Logger) (Mapper, error) {
	switch site.ScraperType {
	case "", types.ScraperWeb:
		return NewDOMMapper(site, logger), nil
	case types.ScraperNetwork, types.ScraperShopify:
		mapper, err := NewJSONMapper(site, logger)
		if err != nil {
			return nil, err
		}
		return mapper, nil
	}
	return nil, fmt.Errorf("unknown scraper type: %s", site.ScraperType)
}

// ErrElementNotFound is returned when a selector matches no element
var ErrElementNotFound = errors.New("element not found")

// BaseAdapter provides the selector helpers shared by the mappers
type BaseAdapter struct {
	site   *types.SiteConfig
	logger types.Logger
}

// NewBaseAdapter creates a new base adapter for a site
func NewBaseAdapter(site *types.SiteConfig, logger types.Logger) *BaseAdapter {
	return &BaseAdapter{
		site:   site,
		logger: logger,
	}
}

// ParseHTML parses HTML content into a goquery document
func (b *BaseAdapter) ParseHTML(html string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// ExtractText extracts the text of the first element matching selector
func (b *BaseAdapter) ExtractText(sel *goquery.Selection, selector string) (string, error) {
	element := sel.Find(selector).First()
	if element.Length() == 0 {
		return "", fmt.Errorf("%w with selector: %s", ErrElementNotFound, selector)
	}

	return strings.TrimSpace(element.Text()), nil
}

// ExtractAttribute extracts an attribute value from the first element matching selector
func (b *BaseAdapter) ExtractAttribute(sel *goquery.Selection, selector string, attribute string) (string, error) {
	element := sel.Find(selector).First()
	if element.Length() == 0 {
		return "", fmt.Errorf("%w with selector: %s", ErrElementNotFound, selector)
	}

	value, exists := element.Attr(attribute)
	if !exists {
		return "", fmt.Errorf("attribute %s not found on element %s", attribute, selector)
	}

	return strings.TrimSpace(value), nil
}

// ExtractRule reads the raw value a rule points at and applies its parser.
// The error wraps ErrElementNotFound when the selector matched nothing.
func (b *BaseAdapter) ExtractRule(sel *goquery.Selection, field string, rule types.Rule) (interface{}, error) {
	var (
		raw string
		err error
	)
	if rule.Attribute != "" {
		raw, err = b.ExtractAttribute(sel, rule.Selector, rule.Attribute)
	} else {
		raw, err = b.ExtractText(sel, rule.Selector)
	}
	if err != nil {
		return nil, err
	}

	return ApplyParser(raw, rule, field, b.site.BaseURL, b.logger), nil
}

// Site returns the site configuration of the adapter
func (b *BaseAdapter) Site() *types.SiteConfig {
	return b.site
}

package adapters

import (
	"errors"
	"fmt"
	"sort"

	"github.com/PuerkitoBio/goquery"

	"retail-crawler/internal/types"
)

// DOMMapper extracts records from rendered HTML using CSS selectors
type DOMMapper struct {
	*BaseAdapter
	fields       []string
	detailFields []string
}

// NewDOMMapper creates a CSS-selector based mapper for a site
func NewDOMMapper(site *types.SiteConfig, logger types.Logger) *DOMMapper {
	return &DOMMapper{
		BaseAdapter:  NewBaseAdapter(site, logger),
		fields:       sortedKeys(site.Fields),
		detailFields: sortedKeys(site.DetailFields),
	}
}

// Map extracts the product records of a list page
func (d *DOMMapper) Map(content string) (*Page, error) {
	doc, err := d.ParseHTML(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	page := &Page{}
	productList := doc.Find(d.site.ProductListSelector).First()
	if productList.Length() == 0 {
		d.logger.Debugf("Product list selector '%s' matched nothing", d.site.ProductListSelector)
		return page, nil
	}
	page.ListFound = true

	items := productList.Find(d.site.ProductItemSelector)
	page.Items = items.Length()
	d.logger.Debugf("Found %d product items", page.Items)

	items.Each(func(i int, item *goquery.Selection) {
		record, ok := d.mapItem(item)
		if !ok {
			return
		}
		page.Records = append(page.Records, record)
	})

	if d.site.NextPageSelector != "" {
		page.HasNext = doc.Find(d.site.NextPageSelector).Length() > 0
	}

	d.logger.Infof("Parsed %d products", len(page.Records))
	return page, nil
}

// mapItem evaluates every field rule against one product item
func (d *DOMMapper) mapItem(item *goquery.Selection) (types.Record, bool) {
	record := make(types.Record, len(d.fields))
	for _, field := range d.fields {
		rule := d.site.Fields[field]
		value, err := d.ExtractRule(item, field, rule)
		if err != nil {
			if rule.Required {
				d.logger.Warnf("Required field '%s' not extracted for %s: %v", field, d.site.Name, err)
				return nil, false
			}
			d.warnExtract(err, rule, "field '"+field+"'")
		} else if value == nil && rule.Required {
			d.logger.Warnf("Required field '%s' could not be parsed for %s", field, d.site.Name)
			return nil, false
		}
		record[field] = value
	}

	d.fillProductID(record)

	if !record.IsValid() {
		d.logger.Debugf("Dropping item without name or price: %v", record["link"])
		return nil, false
	}
	return record, true
}

// fillProductID derives product_id from the link when the list page did not
// provide one and the detail rule for product_id is a regex
func (d *DOMMapper) fillProductID(record types.Record) {
	if record.String("product_id") != "" {
		return
	}
	rule, ok := d.site.DetailFields["product_id"]
	if !ok || rule.Parser != types.ParserRegex {
		return
	}
	link := record.String("link")
	if link == "" {
		return
	}
	if id := ApplyParser(link, rule, "product_id", d.site.BaseURL, d.logger); id != nil {
		record["product_id"] = id
	}
}

// MapDetail extracts the detail fields of a product page
func (d *DOMMapper) MapDetail(content string) (types.Record, error) {
	doc, err := d.ParseHTML(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	details := make(types.Record, len(d.detailFields))
	for _, field := range d.detailFields {
		rule := d.site.DetailFields[field]
		if rule.Selector == "" {
			continue
		}
		value, err := d.ExtractRule(doc.Selection, field, rule)
		if err != nil {
			d.warnExtract(err, rule, "detail field '"+field+"'")
		}
		details[field] = value
	}
	return details, nil
}

// warnExtract tells a selector that matched nothing apart from an
// element that lacks the configured attribute
func (d *DOMMapper) warnExtract(err error, rule types.Rule, what string) {
	if errors.Is(err, ErrElementNotFound) {
		d.logger.Warnf("Selector '%s' not found for %s in %s", rule.Selector, what, d.site.Name)
		return
	}
	d.logger.Warnf("Could not extract %s in %s: %v", what, d.site.Name, err)
}

func sortedKeys(rules map[string]types.Rule) []string {
	keys := make([]string, 0, len(rules))
	for k := range rules {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

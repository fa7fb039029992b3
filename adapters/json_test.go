package adapters

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retail-crawler/internal/types"
)

const shopifyResponse = `{
  "products": [
    {
      "title": "Springbank 10",
      "handle": "springbank-10",
      "vendor": "Springbank",
      "variants": [{"price": "65.00", "compare_at_price": null, "available": true}]
    },
    {
      "title": "Kilkerran 12",
      "handle": "kilkerran-12",
      "variants": [{"price": "1,049.95", "available": false}]
    },
    {
      "title": "Sample Without Price",
      "handle": "sample",
      "variants": []
    }
  ]
}`

func shopifySite() *types.SiteConfig {
	return &types.SiteConfig{
		Name:        "Spirit Store",
		BaseURL:     "https://spirits.example.com",
		ScraperType: types.ScraperShopify,
		ResponseMapping: types.ResponseMapping{
			Root: "products",
			Fields: map[string]string{
				"name":           "title",
				"price":          "variants[0].price",
				"original_price": "variants[0].compare_at_price || `null`",
				"link":           "join('', ['/products/', handle])",
				"brand":          "vendor || 'Unknown'",
				"in_stock":       "variants[0].available",
			},
			Parsers: map[string]types.ParserKind{
				"price": types.ParserFloat,
			},
		},
	}
}

func TestJSONMapper_Map(t *testing.T) {
	logger, _ := test.NewNullLogger()
	mapper, err := NewJSONMapper(shopifySite(), logger)
	require.NoError(t, err)

	page, err := mapper.Map(shopifyResponse)
	require.NoError(t, err)

	assert.True(t, page.ListFound)
	assert.Equal(t, 3, page.Items)
	require.Len(t, page.Records, 2)

	first := page.Records[0]
	assert.Equal(t, "Springbank 10", first["name"])
	assert.Equal(t, 65.0, first["price"])
	assert.Nil(t, first["original_price"])
	assert.Equal(t, "https://spirits.example.com/products/springbank-10", first["link"])
	assert.Equal(t, "Springbank", first["brand"])
	assert.Equal(t, true, first["in_stock"])

	second := page.Records[1]
	assert.Equal(t, 1049.95, second["price"])
	assert.Equal(t, "Unknown", second["brand"])
	assert.Equal(t, false, second["in_stock"])
}

func TestJSONMapper_RootNotAList(t *testing.T) {
	logger, hook := test.NewNullLogger()
	mapper, err := NewJSONMapper(shopifySite(), logger)
	require.NoError(t, err)

	page, err := mapper.Map(`{"products": {"title": "not a list"}}`)
	require.NoError(t, err)

	assert.False(t, page.ListFound)
	assert.Empty(t, page.Records)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

func TestJSONMapper_MissingRoot(t *testing.T) {
	logger, _ := test.NewNullLogger()
	mapper, err := NewJSONMapper(shopifySite(), logger)
	require.NoError(t, err)

	page, err := mapper.Map(`{"errors": "not found"}`)
	require.NoError(t, err)

	assert.False(t, page.ListFound)
	assert.Empty(t, page.Records)
}

func TestJSONMapper_InvalidJSON(t *testing.T) {
	logger, _ := test.NewNullLogger()
	mapper, err := NewJSONMapper(shopifySite(), logger)
	require.NoError(t, err)

	_, err = mapper.Map(`<html>Just a moment...</html>`)
	assert.Error(t, err)
}

func TestJSONMapper_FieldErrorYieldsNil(t *testing.T) {
	site := shopifySite()
	site.ResponseMapping.Fields["description"] = "length(title_missing)"

	logger, hook := test.NewNullLogger()
	mapper, err := NewJSONMapper(site, logger)
	require.NoError(t, err)

	page, err := mapper.Map(shopifyResponse)
	require.NoError(t, err)

	require.Len(t, page.Records, 2)
	assert.Nil(t, page.Records[0]["description"])

	errorsLogged := 0
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.ErrorLevel {
			errorsLogged++
		}
	}
	assert.Equal(t, 3, errorsLogged)
}

func TestJSONMapper_Cursor(t *testing.T) {
	site := &types.SiteConfig{
		Name:        "Cursor Shop",
		BaseURL:     "https://cursor.example.com",
		ScraperType: types.ScraperNetwork,
		Pagination:  types.Pagination{Type: types.PaginationCursor, CursorPath: "meta.next_cursor"},
		ResponseMapping: types.ResponseMapping{
			Root:   "data",
			Fields: map[string]string{"name": "name", "price": "price"},
		},
	}
	logger, _ := test.NewNullLogger()
	mapper, err := NewJSONMapper(site, logger)
	require.NoError(t, err)

	page, err := mapper.Map(`{"data":[{"name":"Bottle","price":1000000}],"meta":{"next_cursor":"eyJwIjoyfQ"}}`)
	require.NoError(t, err)

	assert.Equal(t, "eyJwIjoyfQ", page.Cursor)
	assert.True(t, page.HasNext)
	require.Len(t, page.Records, 1)
	assert.Equal(t, 1000000.0, page.Records[0]["price"])

	page, err = mapper.Map(`{"data":[],"meta":{"next_cursor":null}}`)
	require.NoError(t, err)
	assert.Empty(t, page.Cursor)
	assert.False(t, page.HasNext)
	assert.True(t, page.ListFound)
}

func TestJSONMapper_OrExpressions(t *testing.T) {
	site := &types.SiteConfig{
		Name:        "Spirit Store",
		BaseURL:     "https://spirits.example.com",
		ScraperType: types.ScraperShopify,
		ResponseMapping: types.ResponseMapping{
			Fields: map[string]string{
				"name":        "title",
				"price":       "variants[0].price || price",
				"subcategory": "tags[?@ == 'a' || @ == 'b'] | [0]",
				"rating":      "score || 0",
				"num_reviews": "|| `0`",
			},
			Parsers: map[string]types.ParserKind{
				"price": types.ParserFloat,
			},
		},
	}
	logger, _ := test.NewNullLogger()
	mapper, err := NewJSONMapper(site, logger)
	require.NoError(t, err)

	page, err := mapper.Map(`{"products":[
		{"title":"A","price":"12.50","variants":[],"tags":["x","b"]},
		{"title":"B","variants":[{"price":"20.00"}],"tags":["a"],"score":4.5},
		{"title":"C","variants":[]}
	]}`)
	require.NoError(t, err)

	require.Len(t, page.Records, 2)
	first := page.Records[0]
	assert.Equal(t, 12.5, first["price"])
	assert.Equal(t, "b", first["subcategory"])
	assert.Equal(t, "0", first["rating"])
	assert.Equal(t, 0.0, first["num_reviews"])

	second := page.Records[1]
	assert.Equal(t, 20.0, second["price"])
	assert.Equal(t, "a", second["subcategory"])
	assert.Equal(t, 4.5, second["rating"])
}

func TestJSONMapper_InvalidPath(t *testing.T) {
	site := shopifySite()
	site.ResponseMapping.Fields["name"] = "title[["

	logger, _ := test.NewNullLogger()
	_, err := NewJSONMapper(site, logger)
	assert.Error(t, err)
}

func TestParseDefault(t *testing.T) {
	assert.Nil(t, parseDefault(" `null` "))
	assert.Nil(t, parseDefault("'null'"))
	assert.Equal(t, true, parseDefault("`true`"))
	assert.Equal(t, 0.0, parseDefault("`0`"))
	assert.Equal(t, "GBP", parseDefault(` "GBP" `))
	assert.Equal(t, "N/A", parseDefault("N/A"))
}

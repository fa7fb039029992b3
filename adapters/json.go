package adapters

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jmespath/go-jmespath"

	"retail-crawler/internal/types"
)

const defaultRoot = "products"

// jsonField is one compiled entry of a response mapping
type jsonField struct {
	name       string
	expr       string
	path       *jmespath.JMESPath
	def        interface{}
	hasDefault bool
}

// JSONMapper extracts records from JSON API responses using JMESPath
type JSONMapper struct {
	*BaseAdapter
	dom    *DOMMapper
	root   *jmespath.JMESPath
	cursor *jmespath.JMESPath
	fields []jsonField
}

// NewJSONMapper compiles the response mapping of a site.
// A path that does not compile is a configuration error.
func NewJSONMapper(site *types.SiteConfig, logger types.Logger) (*JSONMapper, error) {
	rootExpr := site.ResponseMapping.Root
	if rootExpr == "" {
		rootExpr = defaultRoot
	}
	root, err := jmespath.Compile(rootExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid root path %q: %w", rootExpr, err)
	}

	m := &JSONMapper{
		BaseAdapter: NewBaseAdapter(site, logger),
		dom:         NewDOMMapper(site, logger),
		root:        root,
	}

	if site.Pagination.CursorPath != "" {
		m.cursor, err = jmespath.Compile(site.Pagination.CursorPath)
		if err != nil {
			return nil, fmt.Errorf("invalid cursor path %q: %w", site.Pagination.CursorPath, err)
		}
	}

	names := make([]string, 0, len(site.ResponseMapping.Fields))
	for name := range site.ResponseMapping.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		field, err := compileField(name, site.ResponseMapping.Fields[name])
		if err != nil {
			return nil, err
		}
		m.fields = append(m.fields, field)
	}
	return m, nil
}

// compileField compiles a mapping as a JMESPath expression. A mapping that
// only parses once split at its last "||" is read as "path || default",
// where the default is a literal and an empty path always yields it.
func compileField(name, mapping string) (jsonField, error) {
	field := jsonField{name: name, expr: mapping}
	path, err := jmespath.Compile(mapping)
	if err == nil {
		field.path = path
		return field, nil
	}

	idx := strings.LastIndex(mapping, "||")
	if idx < 0 {
		return field, fmt.Errorf("invalid path for field '%s' (%q): %w", name, mapping, err)
	}
	field.def = parseDefault(mapping[idx+2:])
	field.hasDefault = true

	expr := strings.TrimSpace(mapping[:idx])
	if expr == "" {
		return field, nil
	}
	path, err = jmespath.Compile(expr)
	if err != nil {
		return field, fmt.Errorf("invalid path for field '%s' (%q): %w", name, mapping, err)
	}
	field.path = path
	return field, nil
}

// parseDefault reads the literal after "||": `json`, 'raw', "raw" or bare text
func parseDefault(raw string) interface{} {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "`") && strings.HasSuffix(raw, "`") && len(raw) >= 2 {
		inner := raw[1 : len(raw)-1]
		var value interface{}
		if err := json.Unmarshal([]byte(inner), &value); err == nil {
			return value
		}
		raw = inner
	}
	raw = strings.Trim(raw, `'"`)
	if strings.EqualFold(raw, "null") {
		return nil
	}
	return raw
}

// Map extracts the records of a JSON payload
func (j *JSONMapper) Map(content string) (*Page, error) {
	var payload interface{}
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, fmt.Errorf("failed to decode JSON response: %w", err)
	}

	page := &Page{}
	if j.cursor != nil {
		if value, err := j.cursor.Search(payload); err != nil {
			j.logger.Errorf("Error evaluating cursor path '%s': %v", j.site.Pagination.CursorPath, err)
		} else if value != nil {
			page.Cursor = stringify(value)
			page.HasNext = page.Cursor != ""
		}
	}

	result, err := j.root.Search(payload)
	if err != nil {
		j.logger.Errorf("Error evaluating root path: %v", err)
		return page, nil
	}
	if result == nil {
		return page, nil
	}
	items, ok := result.([]interface{})
	if !ok {
		j.logger.Errorf("Unexpected response structure: %T", result)
		return page, nil
	}
	page.ListFound = true
	page.Items = len(items)

	for _, item := range items {
		record := j.mapItem(item)
		if !record.IsValid() {
			j.logger.Debugf("Dropping item without name or price: %v", record["link"])
			continue
		}
		page.Records = append(page.Records, record)
	}

	j.logger.Infof("Parsed %d products", len(page.Records))
	return page, nil
}

func (j *JSONMapper) mapItem(item interface{}) types.Record {
	record := make(types.Record, len(j.fields))
	for _, field := range j.fields {
		var value interface{}
		if field.path != nil {
			var err error
			value, err = field.path.Search(item)
			if err != nil {
				j.logger.Errorf("Error parsing field '%s' with mapping '%s': %v", field.name, field.expr, err)
				record[field.name] = nil
				continue
			}
		}
		if value == nil && field.hasDefault {
			value = field.def
		}
		if kind, ok := j.site.ResponseMapping.Parsers[field.name]; ok && value != nil {
			value = ApplyParser(stringify(value), types.Rule{Parser: kind}, field.name, j.site.BaseURL, j.logger)
		}
		record[field.name] = value
	}

	if link := record.String("link"); link != "" {
		if resolved, err := ResolveURL(j.site.BaseURL, link); err == nil {
			record["link"] = resolved
		}
	}
	return record
}

// MapDetail delegates to the DOM mapper: detail pages are HTML even for API sources
func (j *JSONMapper) MapDetail(content string) (types.Record, error) {
	return j.dom.MapDetail(content)
}

func stringify(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprint(value)
	}
	return string(encoded)
}

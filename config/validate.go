package config

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"retail-crawler/internal/types"
)

// ErrInvalidConfig marks every configuration problem
var ErrInvalidConfig = errors.New("invalid site configuration")

// ValidationError lists all problems found in one site
type ValidationError struct {
	Site     string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration for %q: %s", e.Site, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfig
}

// Prepare applies defaults and validates the site
func Prepare(site *types.SiteConfig) error {
	ApplyDefaults(site)
	return Validate(site)
}

// ApplyDefaults fills keys left unset with their default values
func ApplyDefaults(site *types.SiteConfig) {
	if site.ScraperType == "" {
		site.ScraperType = types.ScraperWeb
	}
	if site.Delay == 0 {
		site.Delay = types.DefaultDelay
	}
	if site.Retries == 0 {
		site.Retries = types.DefaultRetries
	}
	if site.MaxTimeout == 0 {
		site.MaxTimeout = types.DefaultMaxTimeout
	}
	if site.DetailConcurrency == 0 {
		site.DetailConcurrency = types.DefaultDetailConcurrency
	}
	if site.Pagination.Type == "" {
		site.Pagination.Type = types.PaginationPage
	}
	if site.Pagination.PageParam == "" {
		site.Pagination.PageParam = "page"
	}
	if site.Pagination.CursorParam == "" {
		site.Pagination.CursorParam = "cursor"
	}
	if site.Pagination.Type == types.PaginationOffset && site.Pagination.PageSize == 0 {
		site.Pagination.PageSize = types.DefaultPageSize
	}
	if site.IsAPI() && site.RequestMethod == "" {
		site.RequestMethod = http.MethodGet
	}
	site.RequestMethod = strings.ToUpper(site.RequestMethod)
	if site.NextPagePolicy == "" {
		if site.NextPageSelector != "" && !site.IsAPI() {
			site.NextPagePolicy = types.NextPageSelector
		} else {
			site.NextPagePolicy = types.NextPageContinue
		}
	}
}

// Validate checks a site and compiles its regex patterns.
// All problems are reported together in a *ValidationError.
func Validate(site *types.SiteConfig) error {
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(site.Name) == "" {
		add("name is required")
	}
	if site.BaseURL == "" {
		add("base_url is required")
	} else if u, err := url.Parse(site.BaseURL); err != nil || !u.IsAbs() {
		add("base_url %q must be an absolute URL", site.BaseURL)
	}

	switch site.ScraperType {
	case types.ScraperWeb:
		validateWeb(site, add)
	case types.ScraperNetwork, types.ScraperShopify:
		validateAPI(site, add)
	default:
		add("unknown scraper_type %q", site.ScraperType)
	}

	switch site.Pagination.Type {
	case types.PaginationPage, types.PaginationOffset:
	case types.PaginationCursor:
		if !site.IsAPI() {
			add("cursor pagination requires a network or shopify scraper_type")
		}
		if site.Pagination.CursorPath == "" {
			add("cursor pagination requires pagination.cursor_path")
		}
	default:
		add("unknown pagination type %q", site.Pagination.Type)
	}

	switch site.NextPagePolicy {
	case types.NextPageContinue, types.NextPageStop:
	case types.NextPageSelector:
		if site.NextPageSelector == "" {
			add("next_page_policy %q requires next_page_selector", types.NextPageSelector)
		}
	default:
		add("unknown next_page_policy %q", site.NextPagePolicy)
	}

	if site.Delay < 0 {
		add("delay must not be negative")
	}
	if site.Retries < 0 {
		add("retries must not be negative")
	}
	if site.MaxTimeout < 0 {
		add("max_timeout must not be negative")
	}
	if site.DetailConcurrency < 0 {
		add("detail_concurrency must not be negative")
	}
	if site.InDevMode() && site.PageLimit < 0 {
		add("page_limit must not be negative")
	}

	compileRules(site.DetailFields, "detail_fields", add)

	if len(problems) > 0 {
		return &ValidationError{Site: site.Name, Problems: problems}
	}
	return nil
}

func validateWeb(site *types.SiteConfig, add func(string, ...interface{})) {
	if site.PaginationURL == "" {
		add("pagination_url is required for web sources")
	}
	if site.ProductListSelector == "" {
		add("product_list_selector is required for web sources")
	}
	if site.ProductItemSelector == "" {
		add("product_item_selector is required for web sources")
	}
	if len(site.Fields) == 0 {
		add("fields are required for web sources")
	}
	for _, required := range []string{"name", "price"} {
		if _, ok := site.Fields[required]; !ok && len(site.Fields) > 0 {
			add("fields must map %q", required)
		}
	}
	for name, rule := range site.Fields {
		if rule.Selector == "" {
			add("fields.%s: selector is required", name)
		}
	}
	compileRules(site.Fields, "fields", add)
}

func validateAPI(site *types.SiteConfig, add func(string, ...interface{})) {
	if site.RequestURL == "" {
		add("request_url is required for %s sources", site.ScraperType)
	}
	if site.RequestMethod != http.MethodGet && site.RequestMethod != http.MethodPost {
		add("request_method must be GET or POST, got %q", site.RequestMethod)
	}
	if len(site.ResponseMapping.Fields) == 0 {
		add("response_mapping.fields are required for %s sources", site.ScraperType)
	}
	for _, required := range []string{"name", "price"} {
		if _, ok := site.ResponseMapping.Fields[required]; !ok && len(site.ResponseMapping.Fields) > 0 {
			add("response_mapping.fields must map %q", required)
		}
	}
	for name := range site.ResponseMapping.Parsers {
		if _, ok := site.ResponseMapping.Fields[name]; !ok {
			add("response_mapping.parsers.%s has no matching field", name)
		}
		if site.ResponseMapping.Parsers[name] == types.ParserRegex {
			add("response_mapping.parsers.%s: regex needs a pattern and is only supported in field rules", name)
		}
	}
}

// compileRules compiles every pattern in place so extraction never
// recompiles a regex
func compileRules(rules map[string]types.Rule, section string, add func(string, ...interface{})) {
	names := make([]string, 0, len(rules))
	for name := range rules {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		rule := rules[name]
		if err := rule.Compile(); err != nil {
			add("%s.%s: %v", section, name, err)
			continue
		}
		rules[name] = rule
	}
}

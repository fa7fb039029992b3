package types

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Scraper types understood by the engine
const (
	ScraperWeb     = "web"
	ScraperNetwork = "network"
	ScraperShopify = "shopify"
)

// Pagination kinds
const (
	PaginationPage   = "page"
	PaginationOffset = "offset"
	PaginationCursor = "cursor"
)

// Next page policies
const (
	NextPageSelector = "selector"
	NextPageContinue = "continue"
	NextPageStop     = "stop"
)

// Defaults applied when a site leaves the key unset
const (
	DefaultDelay             = 1.0
	DefaultRetries           = 3
	DefaultMaxTimeout        = 60000
	DefaultDetailConcurrency = 5
	DefaultPageSize          = 12
)

// ParserKind is the closed set of value parsers a field rule can use
type ParserKind uint8

const (
	ParserString ParserKind = iota
	ParserFloat
	ParserInt
	ParserBool
	ParserURL
	ParserRegex
)

var parserNames = map[ParserKind]string{
	ParserString: "str",
	ParserFloat:  "float",
	ParserInt:    "int",
	ParserBool:   "bool",
	ParserURL:    "url",
	ParserRegex:  "regex",
}

// ParseParserKind converts a configuration string into a ParserKind
func ParseParserKind(s string) (ParserKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "str", "string":
		return ParserString, nil
	case "float":
		return ParserFloat, nil
	case "int":
		return ParserInt, nil
	case "bool":
		return ParserBool, nil
	case "url":
		return ParserURL, nil
	case "regex":
		return ParserRegex, nil
	}
	return ParserString, fmt.Errorf("unknown parser kind %q", s)
}

func (k ParserKind) String() string {
	if name, ok := parserNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ParserKind(%d)", uint8(k))
}

// MarshalText implements encoding.TextMarshaler
func (k ParserKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so that unknown
// parser names are rejected while the configuration is decoded
func (k *ParserKind) UnmarshalText(text []byte) error {
	parsed, err := ParseParserKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Rule is one entry of a field mapping table
type Rule struct {
	Selector  string     `yaml:"selector" json:"selector"`
	Path      string     `yaml:"path" json:"path"`
	Parser    ParserKind `yaml:"parser" json:"parser"`
	Pattern   string     `yaml:"pattern" json:"pattern"`
	Attribute string     `yaml:"attribute" json:"attribute"`
	Required  bool       `yaml:"required" json:"required"`

	re *regexp.Regexp
}

// Compile prepares the regex pattern of the rule
func (r *Rule) Compile() error {
	if r.Pattern == "" {
		if r.Parser == ParserRegex {
			return fmt.Errorf("regex parser requires a pattern")
		}
		return nil
	}
	re, err := regexp.Compile(r.Pattern)
	if err != nil {
		return fmt.Errorf("invalid pattern %q: %w", r.Pattern, err)
	}
	r.re = re
	return nil
}

// Regexp returns the compiled pattern, compiling it lazily if needed
func (r Rule) Regexp() (*regexp.Regexp, error) {
	if r.re != nil {
		return r.re, nil
	}
	return regexp.Compile(r.Pattern)
}

// Pagination describes how the next page or cursor is requested
type Pagination struct {
	Type        string `yaml:"type" json:"type"`
	PageParam   string `yaml:"page_param" json:"page_param"`
	CursorParam string `yaml:"cursor_param" json:"cursor_param"`
	CursorPath  string `yaml:"cursor_path" json:"cursor_path"`
	PageSize    int    `yaml:"page_size" json:"page_size"`
	Start       int    `yaml:"start" json:"start"`
}

// ResponseMapping maps a JSON payload to records.
// Field values are JMESPath expressions, optionally followed by
// "|| <default>" to use a literal when the path yields nothing.
type ResponseMapping struct {
	Root    string                `yaml:"root" json:"root"`
	Fields  map[string]string     `yaml:"fields" json:"fields"`
	Parsers map[string]ParserKind `yaml:"parsers" json:"parsers"`
}

// SiteConfig describes one retailer
type SiteConfig struct {
	Name            string `yaml:"name" json:"name"`
	RetailerCountry string `yaml:"retailer_country" json:"retailer_country"`
	Currency        string `yaml:"currency" json:"currency"`
	BaseURL         string `yaml:"base_url" json:"base_url"`
	Category        string `yaml:"category" json:"category"`
	ScraperType     string `yaml:"scraper_type" json:"scraper_type"`
	UseBrowser      *bool  `yaml:"use_browser" json:"use_browser"`

	PaginationURL  string                 `yaml:"pagination_url" json:"pagination_url"`
	Pagination     Pagination             `yaml:"pagination" json:"pagination"`
	RequestURL     string                 `yaml:"request_url" json:"request_url"`
	RequestMethod  string                 `yaml:"request_method" json:"request_method"`
	RequestPayload map[string]interface{} `yaml:"request_payload" json:"request_payload"`

	ResponseMapping     ResponseMapping `yaml:"response_mapping" json:"response_mapping"`
	ProductListSelector string          `yaml:"product_list_selector" json:"product_list_selector"`
	ProductItemSelector string          `yaml:"product_item_selector" json:"product_item_selector"`
	Fields              map[string]Rule `yaml:"fields" json:"fields"`
	DetailFields        map[string]Rule `yaml:"detail_fields" json:"detail_fields"`
	DetailInfoSelector  string          `yaml:"detail_info_selector" json:"detail_info_selector"`
	NextPageSelector    string          `yaml:"next_page_selector" json:"next_page_selector"`
	NextPagePolicy      string          `yaml:"next_page_policy" json:"next_page_policy"`

	FetchDetails      *bool             `yaml:"fetch_details" json:"fetch_details"`
	DetailConcurrency int               `yaml:"detail_concurrency" json:"detail_concurrency"`
	Delay             float64           `yaml:"delay" json:"delay"`
	Retries           int               `yaml:"retries" json:"retries"`
	MaxTimeout        int               `yaml:"max_timeout" json:"max_timeout"`
	Headers           map[string]string `yaml:"headers" json:"headers"`
	UserAgent         string            `yaml:"user_agent" json:"user_agent"`
	CloudflareBypass  bool              `yaml:"cloudflare_bypass" json:"cloudflare_bypass"`

	DevMode   *bool `yaml:"dev_mode" json:"dev_mode"`
	PageLimit int   `yaml:"page_limit" json:"page_limit"`
	Enabled   *bool `yaml:"enabled" json:"enabled"`
}

// IsEnabled reports whether the site takes part in a crawl run
func (s *SiteConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// ShouldFetchDetails reports whether detail pages are requested
func (s *SiteConfig) ShouldFetchDetails() bool {
	return s.FetchDetails == nil || *s.FetchDetails
}

// InDevMode reports whether the page ceiling applies
func (s *SiteConfig) InDevMode() bool {
	return s.DevMode != nil && *s.DevMode
}

// BrowserEnabled reports whether list and detail pages are rendered
// in a headless browser rather than fetched as static HTML
func (s *SiteConfig) BrowserEnabled() bool {
	if s.ScraperType != "" && s.ScraperType != ScraperWeb {
		return false
	}
	return s.UseBrowser == nil || *s.UseBrowser
}

// IsAPI reports whether the site is crawled through a JSON endpoint
func (s *SiteConfig) IsAPI() bool {
	return s.ScraperType == ScraperNetwork || s.ScraperType == ScraperShopify
}

// DelayDuration returns the configured politeness delay
func (s *SiteConfig) DelayDuration() time.Duration {
	return time.Duration(s.Delay * float64(time.Second))
}

// Timeout returns the per-operation timeout
func (s *SiteConfig) Timeout() time.Duration {
	if s.MaxTimeout <= 0 {
		return DefaultMaxTimeout * time.Millisecond
	}
	return time.Duration(s.MaxTimeout) * time.Millisecond
}

// Slug returns the retailer name in a form usable for file names
func (s *SiteConfig) Slug() string {
	slug := strings.ToLower(strings.TrimSpace(s.Name))
	slug = strings.NewReplacer(" ", "_", "/", "_", "\\", "_").Replace(slug)
	return slug
}

// FetchMode selects which ready condition a fetch waits for
type FetchMode int

const (
	ModeList FetchMode = iota
	ModeDetail
)

func (m FetchMode) String() string {
	if m == ModeDetail {
		return "detail"
	}
	return "list"
}

// PageRequest is a single page or API call to perform
type PageRequest struct {
	URL     string
	Method  string
	Payload map[string]interface{}
	Mode    FetchMode
}

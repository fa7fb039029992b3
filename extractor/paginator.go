package extractor

import (
	"net/http"
	"strconv"
	"strings"

	"retail-crawler/adapters"
	"retail-crawler/internal/types"
)

// Paginator produces the request for each page of a crawl and decides
// when the crawl has run out of pages
type Paginator struct {
	site    *types.SiteConfig
	page    int
	cursor  string
	visited int
}

// NewPaginator creates a paginator positioned on the first page
func NewPaginator(site *types.SiteConfig) *Paginator {
	start := site.Pagination.Start
	if start <= 0 {
		start = 1
	}
	return &Paginator{
		site: site,
		page: start,
	}
}

// Page returns the current page number
func (p *Paginator) Page() int {
	return p.page
}

// Request builds the request for the current page
func (p *Paginator) Request() types.PageRequest {
	if p.site.IsAPI() {
		return p.apiRequest()
	}

	target := p.site.PaginationURL
	if target == "" {
		target = p.site.BaseURL
	}
	return types.PageRequest{
		URL:    strings.ReplaceAll(target, "{}", strconv.Itoa(p.position())),
		Method: http.MethodGet,
		Mode:   types.ModeList,
	}
}

func (p *Paginator) apiRequest() types.PageRequest {
	payload := make(map[string]interface{}, len(p.site.RequestPayload)+1)
	for k, v := range p.site.RequestPayload {
		payload[k] = v
	}

	if p.site.Pagination.Type == types.PaginationCursor {
		if p.cursor != "" {
			payload[p.cursorParam()] = p.cursor
		}
	} else {
		payload[p.pageParam()] = p.position()
	}

	method := strings.ToUpper(p.site.RequestMethod)
	if method == "" {
		method = http.MethodGet
	}
	return types.PageRequest{
		URL:     p.site.RequestURL,
		Method:  method,
		Payload: payload,
		Mode:    types.ModeList,
	}
}

// position is the value substituted for the page: the page number, or
// the item offset for offset pagination
func (p *Paginator) position() int {
	if p.site.Pagination.Type == types.PaginationOffset {
		size := p.site.Pagination.PageSize
		if size <= 0 {
			size = types.DefaultPageSize
		}
		return (p.page - 1) * size
	}
	return p.page
}

func (p *Paginator) pageParam() string {
	if p.site.Pagination.PageParam != "" {
		return p.site.Pagination.PageParam
	}
	return "page"
}

func (p *Paginator) cursorParam() string {
	if p.site.Pagination.CursorParam != "" {
		return p.site.Pagination.CursorParam
	}
	return "cursor"
}

// HasNext applies the next-page policy to a mapped page
func (p *Paginator) HasNext(page *adapters.Page) bool {
	if p.site.Pagination.Type == types.PaginationCursor {
		return p.site.NextPagePolicy != types.NextPageStop && page.Cursor != ""
	}

	switch p.policy() {
	case types.NextPageStop:
		return false
	case types.NextPageContinue:
		return true
	}
	return page.HasNext
}

func (p *Paginator) policy() string {
	if p.site.NextPagePolicy != "" {
		return p.site.NextPagePolicy
	}
	if p.site.NextPageSelector != "" {
		return types.NextPageSelector
	}
	return types.NextPageContinue
}

// Advance moves to the next page. It returns false when the dev-mode page
// ceiling has been reached.
func (p *Paginator) Advance(cursor string) bool {
	p.visited++
	p.page++
	p.cursor = cursor

	if p.site.InDevMode() {
		limit := p.site.PageLimit
		if limit <= 0 {
			limit = 1
		}
		if p.visited >= limit {
			return false
		}
	}
	return true
}

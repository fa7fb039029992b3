package extractor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"retail-crawler/internal/types"
	"retail-crawler/utils"
)

// fakeSession serves canned pages by URL
type fakeSession struct {
	mu     sync.Mutex
	pages  map[string]string
	errs   map[string]error
	calls  []string
	closed bool
}

func newFakeSession(pages map[string]string) *fakeSession {
	return &fakeSession{pages: pages, errs: map[string]error{}}
}

func (f *fakeSession) Fetch(ctx context.Context, req types.PageRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req.URL)
	if err, ok := f.errs[req.URL]; ok {
		return "", err
	}
	content, ok := f.pages[req.URL]
	if !ok {
		return "", fmt.Errorf("unexpected status code: 404")
	}
	return content, nil
}

func (f *fakeSession) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeSession) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == url {
			n++
		}
	}
	return n
}

func noSleep(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}

// testOptions wires a fake session and a captured logger into crawl options
func testOptions(outputDir string, session utils.Session) (Options, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return Options{
		OutputDir: outputDir,
		Sleep:     noSleep,
		NewSession: func(ctx context.Context, site *types.SiteConfig, l types.Logger) (utils.Session, error) {
			return session, nil
		},
		NewLogger: func(site *types.SiteConfig) (types.Logger, func()) {
			return logger.WithField("retailer", site.Name), func() {}
		},
		Now: func() time.Time { return time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC) },
	}, hook
}

// listPage renders a product list with one item per name
func listPage(names []string, withNext bool) string {
	var b strings.Builder
	b.WriteString(`<html><body><ul class="products">`)
	for _, name := range names {
		slug := strings.ToLower(strings.ReplaceAll(name, " ", "-"))
		fmt.Fprintf(&b, `<li class="product"><a class="title" href="/products/%s">%s</a><span class="price">£1,200.50</span></li>`, slug, name)
	}
	b.WriteString(`</ul>`)
	if withNext {
		b.WriteString(`<a class="next" href="#">Next</a>`)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

func webSite() *types.SiteConfig {
	useBrowser := false
	fetchDetails := false
	return &types.SiteConfig{
		Name:                "Whisky Shop",
		RetailerCountry:     "UK",
		Currency:            "GBP",
		BaseURL:             "https://x",
		PaginationURL:       "https://x/p/{}",
		UseBrowser:          &useBrowser,
		FetchDetails:        &fetchDetails,
		ProductListSelector: "ul.products",
		ProductItemSelector: "li.product",
		NextPageSelector:    "a.next",
		Fields: map[string]types.Rule{
			"name":  {Selector: "a.title"},
			"link":  {Selector: "a.title", Attribute: "href", Parser: types.ParserURL},
			"price": {Selector: "span.price", Parser: types.ParserFloat},
		},
	}
}

func lastMessage(hook *test.Hook) string {
	entry := hook.LastEntry()
	if entry == nil {
		return ""
	}
	return entry.Message
}

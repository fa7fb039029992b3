package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/joho/godotenv"

	"retail-crawler/config"
	"retail-crawler/extractor"
	"retail-crawler/internal/types"
	"retail-crawler/utils"
)

// probe renders the first list page of a site and reports how many
// elements each configured selector matches
func main() {
	_ = godotenv.Load()

	var (
		siteFlag  = flag.String("site", "", "Site configuration to probe")
		configDir = flag.String("config-dir", "", "Directory holding the site configuration files")
		pageURL   = flag.String("url", "", "Page to probe instead of the first list page")
	)
	flag.Parse()

	if *siteFlag == "" {
		log.Fatal("--site flag is required")
	}

	cfg := config.FromEnv()
	if *configDir != "" {
		cfg.ConfigDir = *configDir
	}
	site, err := config.LoadSite(cfg.ConfigDir, *siteFlag)
	if err != nil {
		log.Fatalf("Failed to load site: %v", err)
	}
	if site.IsAPI() {
		log.Fatalf("%s is a %s source; probing only applies to HTML pages", site.Name, site.ScraperType)
	}

	logger := utils.NewLogger(cfg.LogLevel)
	ctx := context.Background()

	session, err := utils.NewSession(ctx, site, logger)
	if err != nil {
		log.Fatalf("Failed to open session: %v", err)
	}
	defer session.Close()

	req := extractor.NewPaginator(site).Request()
	if *pageURL != "" {
		req.URL = *pageURL
	}

	fmt.Printf("=== Probing %s: %s ===\n", site.Name, req.URL)
	html, err := session.Fetch(ctx, req)
	if err != nil {
		log.Printf("Failed to get page: %v", err)
		return
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		log.Printf("Failed to parse HTML: %v", err)
		return
	}

	report(doc, site)
}

func report(doc *goquery.Document, site *types.SiteConfig) {
	list := doc.Find(site.ProductListSelector).First()
	fmt.Printf("Product list '%s': %d\n", site.ProductListSelector, doc.Find(site.ProductListSelector).Length())

	items := list.Find(site.ProductItemSelector)
	fmt.Printf("Product items '%s': %d\n", site.ProductItemSelector, items.Length())

	if site.NextPageSelector != "" {
		fmt.Printf("Next page '%s': %d\n", site.NextPageSelector, doc.Find(site.NextPageSelector).Length())
	}

	names := make([]string, 0, len(site.Fields))
	for name := range site.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("Fields (items with a match):")
	for _, name := range names {
		rule := site.Fields[name]
		hits := 0
		sample := ""
		items.Each(func(i int, item *goquery.Selection) {
			match := item.Find(rule.Selector).First()
			if match.Length() == 0 {
				return
			}
			hits++
			if sample == "" {
				if rule.Attribute != "" {
					sample, _ = match.Attr(rule.Attribute)
				} else {
					sample = strings.TrimSpace(match.Text())
				}
			}
		})
		if len(sample) > 60 {
			sample = sample[:60] + "..."
		}
		fmt.Printf("  %-16s '%s': %d/%d  e.g. '%s'\n", name, rule.Selector, hits, items.Length(), sample)
	}
}

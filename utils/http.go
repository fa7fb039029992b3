package utils

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"

	"retail-crawler/internal/types"
)

// HTTPClient fetches static HTML pages and JSON endpoints
type HTTPClient struct {
	client *resty.Client
	site   *types.SiteConfig
	logger types.Logger
}

// NewHTTPClient creates an HTTP client configured from the site
func NewHTTPClient(site *types.SiteConfig, logger types.Logger) *HTTPClient {
	client := resty.New()
	client.SetTimeout(site.Timeout())
	client.SetRetryCount(0)

	userAgent := site.UserAgent
	if userAgent == "" {
		userAgent = types.DefaultConfig().UserAgent
	}
	client.SetHeader("User-Agent", userAgent)
	client.SetHeader("Accept-Language", "en-US,en;q=0.5")
	if site.IsAPI() {
		client.SetHeader("Accept", "application/json")
	} else {
		client.SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	}
	client.SetHeaders(site.Headers)

	if site.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}

	return &HTTPClient{
		client: client,
		site:   site,
		logger: logger,
	}
}

// Fetch performs one request and returns the response body
func (h *HTTPClient) Fetch(ctx context.Context, req types.PageRequest) (string, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	r := h.client.R().SetContext(ctx)
	if len(req.Payload) > 0 {
		if method == http.MethodGet {
			r.SetQueryParamsFromValues(EncodePayload(req.Payload))
		} else {
			r.SetHeader("Content-Type", "application/json")
			r.SetBody(req.Payload)
		}
	}

	resp, err := r.Execute(method, req.URL)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode() == http.StatusTooManyRequests {
		return "", &RateLimitError{
			URL:        req.URL,
			RetryAfter: ParseRetryAfter(resp.Header().Get("Retry-After"), time.Now()),
		}
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode())
	}

	h.logger.Debugf("Successfully retrieved %d bytes from %s", len(resp.Body()), req.URL)
	return resp.String(), nil
}

// Close releases idle connections
func (h *HTTPClient) Close() {
	h.client.GetClient().CloseIdleConnections()
}

// EncodePayload converts a request payload into query parameters
func EncodePayload(payload map[string]interface{}) url.Values {
	values := url.Values{}
	for key, value := range payload {
		switch v := value.(type) {
		case nil:
			continue
		case []interface{}:
			for _, item := range v {
				values.Add(key, fmt.Sprint(item))
			}
		default:
			values.Set(key, fmt.Sprint(v))
		}
	}
	return values
}

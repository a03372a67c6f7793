package background

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/models"
	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/store"
)

// Policy names a read-caching behavior for intercepted requests.
type Policy string

const (
	// PolicyNetworkFirst tries the network and falls back to the cache.
	PolicyNetworkFirst Policy = "network-first"

	// PolicyCacheFirst serves fresh cached responses without touching
	// the network.
	PolicyCacheFirst Policy = "cache-first"

	// PolicyStaleWhileRevalidate serves whatever is cached immediately
	// and refreshes the cache in the background.
	PolicyStaleWhileRevalidate Policy = "stale-while-revalidate"
)

// Route binds a URL path prefix to a caching policy.
type Route struct {
	Prefix string
	Policy Policy
}

const (
	headerFromCache  = "X-From-Cache"
	headerCacheStale = "X-Cache-Stale"
)

// responseCache wraps the persisted response store with freshness
// bookkeeping.
type responseCache struct {
	responses *store.ResponseCacheRepo
	maxAge    time.Duration
}

// lookup returns the cached response for a request URL, with a
// staleness verdict against maxAge.
func (c *responseCache) lookup(ctx context.Context, url string) (*models.CachedResponse, bool, error) {
	cached, err := c.responses.Get(ctx, url)
	if err != nil {
		return nil, false, err
	}
	stale := cached.Age(time.Now()) > c.maxAge
	return cached, stale, nil
}

// save records a successful read response. Only complete 200 responses
// are worth replaying from cache.
func (c *responseCache) save(ctx context.Context, url string, resp *http.Response, body []byte) error {
	if resp.StatusCode != http.StatusOK {
		return nil
	}
	headers := make(map[string]string, len(resp.Header))
	for name := range resp.Header {
		headers[name] = resp.Header.Get(name)
	}
	return c.responses.Put(ctx, &models.CachedResponse{
		URL:        url,
		StatusCode: resp.StatusCode,
		Headers:    headers,
		Body:       body,
	})
}

// build materializes a cached response as an http.Response, marking it
// as cache-served and, when applicable, stale.
func (c *responseCache) build(cached *models.CachedResponse, req *http.Request, stale bool) *http.Response {
	header := make(http.Header, len(cached.Headers)+2)
	for name, value := range cached.Headers {
		header.Set(name, value)
	}
	header.Set(headerFromCache, "true")
	if stale {
		header.Set(headerCacheStale, "true")
	}
	return &http.Response{
		StatusCode:    cached.StatusCode,
		Status:        http.StatusText(cached.StatusCode),
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(cached.Body)),
		ContentLength: int64(len(cached.Body)),
		Request:       req,
	}
}

// drainBody reads and restores a response body so it can be both cached
// and returned to the caller.
func drainBody(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

// policyFor picks the first route whose prefix matches the request path.
func policyFor(routes []Route, path string) Policy {
	for _, route := range routes {
		if strings.HasPrefix(path, route.Prefix) {
			return route.Policy
		}
	}
	return PolicyNetworkFirst
}

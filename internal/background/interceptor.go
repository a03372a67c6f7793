package background

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/connectivity"
	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/events"
	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/logging"
	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/models"
	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/store"
)

// ReplayTag is the scheduler tag that drains captured requests.
const ReplayTag = "replay-requests"

// SyncTag is the scheduler tag that drains the pending-change queue.
const SyncTag = "sync-pending-changes"

// InterceptorOptions configures an Interceptor.
type InterceptorOptions struct {
	// Base executes requests that reach the network. Defaults to
	// http.DefaultTransport.
	Base http.RoundTripper

	// MaxAge is the cached-response freshness window.
	MaxAge time.Duration

	// Routes bind path prefixes to caching policies. Unmatched paths
	// use PolicyNetworkFirst.
	Routes []Route
}

// Interceptor is an http.RoundTripper that makes application traffic
// survive offline periods: mutations made while offline are captured
// for replay and acknowledged immediately, and reads are answered from
// the response cache per route policy.
type Interceptor struct {
	base      http.RoundTripper
	requests  *store.RequestLogRepo
	cache     *responseCache
	monitor   *connectivity.Monitor
	scheduler *Scheduler
	bus       *events.Bus
	routes    []Route
}

// NewInterceptor wires the interceptor over a store, monitor and
// scheduler.
func NewInterceptor(st *store.Store, monitor *connectivity.Monitor, scheduler *Scheduler, bus *events.Bus, opts InterceptorOptions) *Interceptor {
	base := opts.Base
	if base == nil {
		base = http.DefaultTransport
	}
	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = 5 * time.Minute
	}
	if bus == nil {
		bus = events.NewBus()
	}
	return &Interceptor{
		base:      base,
		requests:  st.Requests,
		cache:     &responseCache{responses: st.Responses, maxAge: maxAge},
		monitor:   monitor,
		scheduler: scheduler,
		bus:       bus,
		routes:    opts.Routes,
	}
}

// RoundTrip implements http.RoundTripper.
func (i *Interceptor) RoundTrip(req *http.Request) (*http.Response, error) {
	if isMutation(req.Method) {
		return i.handleMutation(req)
	}
	return i.handleRead(req)
}

func isMutation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// handleMutation captures offline mutations and acknowledges them with
// a synthesized 202. A mutation that fails at the network level is
// captured the same way so nothing is lost on a stale online verdict.
func (i *Interceptor) handleMutation(req *http.Request) (*http.Response, error) {
	if !i.monitor.Online() {
		return i.capture(req)
	}
	resp, err := i.base.RoundTrip(req)
	if err != nil {
		logging.Warn("Mutation failed on network, capturing for replay",
			map[string]interface{}{"method": req.Method, "url": req.URL.String(), "error": err.Error()})
		return i.capture(req)
	}
	return resp, nil
}

// capture persists the request for FIFO replay and synthesizes the
// acknowledgement response.
func (i *Interceptor) capture(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, err
		}
	}
	headers := make(map[string]string, len(req.Header))
	for name := range req.Header {
		headers[name] = req.Header.Get(name)
	}

	captured := &models.CapturedRequest{
		URL:     req.URL.String(),
		Method:  req.Method,
		Headers: headers,
		Body:    body,
	}
	if err := i.requests.Append(req.Context(), captured); err != nil {
		return nil, err
	}

	i.bus.Publish(events.EventRequestCaptured, events.RequestCaptured{
		Method: req.Method,
		URL:    captured.URL,
	})
	logging.Info("Request captured for replay", map[string]interface{}{
		"method": req.Method,
		"url":    captured.URL,
	})

	ack := []byte(`{"status":"accepted","queued":true}`)
	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	header.Set(headerFromCache, "true")
	return &http.Response{
		StatusCode:    http.StatusAccepted,
		Status:        http.StatusText(http.StatusAccepted),
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(ack)),
		ContentLength: int64(len(ack)),
		Request:       req,
	}, nil
}

// handleRead applies the route's caching policy to GET and HEAD traffic.
func (i *Interceptor) handleRead(req *http.Request) (*http.Response, error) {
	switch policyFor(i.routes, req.URL.Path) {
	case PolicyCacheFirst:
		return i.cacheFirst(req)
	case PolicyStaleWhileRevalidate:
		return i.staleWhileRevalidate(req)
	default:
		return i.networkFirst(req)
	}
}

// networkFirst prefers the live response and falls back to the cache,
// marking stale entries so callers can tell.
func (i *Interceptor) networkFirst(req *http.Request) (*http.Response, error) {
	resp, err := i.fetchAndCache(req)
	if err == nil {
		return resp, nil
	}

	cached, stale, cacheErr := i.cache.lookup(req.Context(), req.URL.String())
	if cacheErr != nil {
		if errors.Is(cacheErr, store.ErrNotFound) {
			return nil, err
		}
		return nil, cacheErr
	}
	logging.Debug("Serving cached response after network failure",
		map[string]interface{}{"url": req.URL.String(), "stale": stale})
	return i.cache.build(cached, req, stale), nil
}

// cacheFirst serves fresh cache hits directly and only then consults
// the network; a stale entry is still better than a failed fetch.
func (i *Interceptor) cacheFirst(req *http.Request) (*http.Response, error) {
	cached, stale, cacheErr := i.cache.lookup(req.Context(), req.URL.String())
	if cacheErr == nil && !stale {
		return i.cache.build(cached, req, false), nil
	}
	if cacheErr != nil && !errors.Is(cacheErr, store.ErrNotFound) {
		return nil, cacheErr
	}

	resp, err := i.fetchAndCache(req)
	if err == nil {
		return resp, nil
	}
	if cached != nil {
		return i.cache.build(cached, req, true), nil
	}
	return nil, err
}

// staleWhileRevalidate answers from cache immediately and refreshes it
// in the background.
func (i *Interceptor) staleWhileRevalidate(req *http.Request) (*http.Response, error) {
	cached, stale, cacheErr := i.cache.lookup(req.Context(), req.URL.String())
	if cacheErr != nil {
		if !errors.Is(cacheErr, store.ErrNotFound) {
			return nil, cacheErr
		}
		return i.fetchAndCache(req)
	}

	if i.monitor.Online() {
		revalidate := req.Clone(context.Background())
		revalidate.Body = nil
		go func() {
			if _, err := i.fetchAndCache(revalidate); err != nil {
				logging.Debug("Background revalidation failed",
					map[string]interface{}{"url": revalidate.URL.String(), "error": err.Error()})
			}
		}()
	}
	return i.cache.build(cached, req, stale), nil
}

// fetchAndCache executes a read on the network and records a cacheable
// response.
func (i *Interceptor) fetchAndCache(req *http.Request) (*http.Response, error) {
	resp, err := i.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if req.Method != http.MethodGet {
		return resp, nil
	}
	body, err := drainBody(resp)
	if err != nil {
		return nil, err
	}
	if err := i.cache.save(req.Context(), req.URL.String(), resp, body); err != nil {
		logging.Warn("Failed to cache response",
			map[string]interface{}{"url": req.URL.String(), "error": err.Error()})
	}
	return resp, nil
}

// Package models provides data model definitions for the sync core.
package models

import "time"

// CapturedRequest is an outgoing mutation request captured while offline,
// persisted to the request log and replayed in FIFO order once
// connectivity returns.
type CapturedRequest struct {
	ID         int64             `db:"id" json:"id"`
	URL        string            `db:"url" json:"url"`
	Method     string            `db:"method" json:"method"`
	Headers    map[string]string `db:"headers" json:"headers,omitempty"`
	Body       []byte            `db:"body" json:"body,omitempty"`
	Timestamp  int64             `db:"timestamp" json:"timestamp"`
	RetryCount int               `db:"retry_count" json:"retry_count"`
}

// TableName returns the collection name for CapturedRequest.
func (CapturedRequest) TableName() string {
	return "requests"
}

// Time returns the capture timestamp as time.Time.
func (r *CapturedRequest) Time() time.Time {
	return time.Unix(r.Timestamp, 0)
}

// CachedResponse is a cached read response with its write timestamp, used
// by the background caching policies. Entries older than the configured
// max age are still served but flagged stale.
type CachedResponse struct {
	URL        string            `db:"url" json:"url"`
	StatusCode int               `db:"status_code" json:"status_code"`
	Headers    map[string]string `db:"headers" json:"headers,omitempty"`
	Body       []byte            `db:"body" json:"body,omitempty"`
	CachedAt   int64             `db:"cached_at" json:"cached_at"`
}

// TableName returns the collection name for CachedResponse.
func (CachedResponse) TableName() string {
	return "responses"
}

// Age returns how long ago the response was cached.
func (r *CachedResponse) Age(now time.Time) time.Duration {
	return now.Sub(time.Unix(r.CachedAt, 0))
}

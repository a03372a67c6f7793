// Package transport pushes local changes to the remote campaign API and
// fetches server-side entity state.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/errors"
	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/models"
)

// Result is what the server returned for a successfully applied change.
// ServerID is set on create when the server assigned the canonical id.
type Result struct {
	ServerID string
	Entity   map[string]interface{}
}

// ConflictError reports that the server rejected a change because its
// copy of the entity diverged. ServerEntity is the server's current
// version, handed to the conflict resolver.
type ConflictError struct {
	EntityType   models.EntityType
	EntityID     string
	ServerEntity map[string]interface{}
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s %s", e.EntityType, e.EntityID)
}

// Transport applies a single pending change remotely. Implementations
// must be safe for concurrent use.
type Transport interface {
	Execute(ctx context.Context, change *models.PendingChange) (*Result, error)
	Fetch(ctx context.Context, entityType models.EntityType, entityID string) (map[string]interface{}, error)
}

// Client is the HTTP Transport against the campaign manager API.
type Client struct {
	baseURL string
	http    *http.Client
}

var routes = map[models.EntityType]string{
	models.EntityCampaign: "/api/campaigns",
	models.EntityFilter:   "/api/filters",
}

// NewClient creates a Client for the given base URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Execute sends one change to the server. A 412 response decodes into a
// ConflictError carrying the server's entity; other non-2xx responses
// wrap as transport errors.
func (c *Client) Execute(ctx context.Context, change *models.PendingChange) (*Result, error) {
	base, ok := routes[change.EntityType]
	if !ok {
		return nil, apperrors.New(apperrors.ErrInvalid, fmt.Sprintf("no route for entity type %q", change.EntityType))
	}

	var method, url string
	switch change.Operation {
	case models.OperationCreate:
		method, url = http.MethodPost, c.baseURL+base
	case models.OperationUpdate:
		method, url = http.MethodPut, c.baseURL+base+"/"+change.EntityID
	case models.OperationDelete:
		method, url = http.MethodDelete, c.baseURL+base+"/"+change.EntityID
	default:
		return nil, apperrors.New(apperrors.ErrInvalid, fmt.Sprintf("unknown operation %q", change.Operation))
	}

	var body io.Reader
	if change.Operation != models.OperationDelete {
		payload, err := change.DataMap()
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInvalid, "decode change data", err)
		}
		payload["client_timestamp"] = change.Timestamp
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternal, "encode request body", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Client-Timestamp", strconv.FormatInt(change.Timestamp, 10))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrTransport, "execute change", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusPreconditionFailed:
		return nil, c.decodeConflict(resp.Body, change)
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return c.decodeResult(resp.Body, change)
	default:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, apperrors.New(apperrors.ErrTransport,
			fmt.Sprintf("server returned %d: %s", resp.StatusCode, string(data)))
	}
}

// Fetch returns the server's current version of an entity, or nil when
// the server has no record of it.
func (c *Client) Fetch(ctx context.Context, entityType models.EntityType, entityID string) (map[string]interface{}, error) {
	base, ok := routes[entityType]
	if !ok {
		return nil, apperrors.New(apperrors.ErrInvalid, fmt.Sprintf("no route for entity type %q", entityType))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+base+"/"+entityID, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, "build request", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrTransport, "fetch entity", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var entity map[string]interface{}
		if err := json.NewDecoder(resp.Body).Decode(&entity); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrTransport, "decode entity", err)
		}
		return entity, nil
	default:
		return nil, apperrors.New(apperrors.ErrTransport, fmt.Sprintf("server returned %d", resp.StatusCode))
	}
}

func (c *Client) decodeConflict(body io.Reader, change *models.PendingChange) error {
	conflict := &ConflictError{
		EntityType: change.EntityType,
		EntityID:   change.EntityID,
	}
	var payload struct {
		Server map[string]interface{} `json:"server"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err == nil {
		conflict.ServerEntity = payload.Server
	}
	return conflict
}

func (c *Client) decodeResult(body io.Reader, change *models.PendingChange) (*Result, error) {
	result := &Result{}
	if change.Operation == models.OperationDelete {
		return result, nil
	}

	var entity map[string]interface{}
	if err := json.NewDecoder(body).Decode(&entity); err != nil {
		if err == io.EOF {
			return result, nil
		}
		return nil, apperrors.Wrap(apperrors.ErrTransport, "decode response", err)
	}
	result.Entity = entity
	if id, ok := entity["id"].(string); ok {
		result.ServerID = id
	}
	return result, nil
}

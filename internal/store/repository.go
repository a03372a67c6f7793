// Package store provides typed repository operations over the logical
// databases for the sync core's data models.
package store

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/errors"
	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/models"
)

// Store bundles the three logical databases and their typed accessors.
type Store struct {
	requestsDB *Database
	dataDB     *Database
	settingsDB *Database

	Changes   *PendingChangeRepo
	Cache     *EntityCacheRepo
	SyncLog   *SyncLogRepo
	Requests  *RequestLogRepo
	Responses *ResponseCacheRepo
	Prefs     *PreferenceRepo
}

// Open opens all logical databases under dataDir, creating collections
// and indexes on first use.
func Open(dataDir string) (*Store, error) {
	requestsDB, err := OpenDatabase(dataDir, OfflineRequestsSchema())
	if err != nil {
		return nil, err
	}
	dataDB, err := OpenDatabase(dataDir, OfflineDataSchema())
	if err != nil {
		requestsDB.Close()
		return nil, err
	}
	settingsDB, err := OpenDatabase(dataDir, LocalSettingsSchema())
	if err != nil {
		requestsDB.Close()
		dataDB.Close()
		return nil, err
	}

	s := &Store{
		requestsDB: requestsDB,
		dataDB:     dataDB,
		settingsDB: settingsDB,
	}
	s.Changes = &PendingChangeRepo{col: dataDB.MustCollection("pendingChanges")}
	s.Cache = &EntityCacheRepo{
		campaigns: dataDB.MustCollection("campaigns"),
		filters:   dataDB.MustCollection("filters"),
	}
	s.SyncLog = &SyncLogRepo{col: dataDB.MustCollection("syncLog")}
	s.Requests = &RequestLogRepo{col: requestsDB.MustCollection("requests")}
	s.Responses = &ResponseCacheRepo{col: requestsDB.MustCollection("responses")}
	s.Prefs = &PreferenceRepo{col: settingsDB.MustCollection("userPreferences")}
	return s, nil
}

// Close closes all logical databases.
func (s *Store) Close() error {
	var firstErr error
	for _, db := range []*Database{s.requestsDB, s.dataDB, s.settingsDB} {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// =====================================================
// PendingChange Operations
// =====================================================

// PendingChangeRepo persists the append-only pending-change queue.
type PendingChangeRepo struct {
	col *Collection
}

// Add appends a change to the queue and assigns its id. The caller must
// have validated the change.
func (r *PendingChangeRepo) Add(ctx context.Context, change *models.PendingChange) error {
	if change.Timestamp == 0 {
		change.Timestamp = time.Now().Unix()
	}
	if change.Status == "" {
		change.Status = models.ChangePending
	}
	id, err := r.col.Add(ctx, change)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrPersistence, "failed to enqueue change", err)
	}
	change.ID = id

	// Rewrite with the assigned id so the stored JSON carries it too.
	if err := r.col.PutID(ctx, id, change); err != nil {
		return apperrors.Wrap(apperrors.ErrPersistence, "failed to store change id", err)
	}
	return nil
}

// Get returns one change by id.
func (r *PendingChangeRepo) Get(ctx context.Context, id int64) (*models.PendingChange, error) {
	rec, err := r.col.GetID(ctx, id)
	if err != nil {
		return nil, err
	}
	var change models.PendingChange
	if err := rec.Decode(&change); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrPersistence, "corrupt change record", err)
	}
	change.ID = rec.ID
	return &change, nil
}

// Update rewrites a change in place. Only the sync manager mutates
// changes; the queue itself is append-only.
func (r *PendingChangeRepo) Update(ctx context.Context, change *models.PendingChange) error {
	if err := r.col.PutID(ctx, change.ID, change); err != nil {
		return apperrors.Wrap(apperrors.ErrPersistence, "failed to update change", err)
	}
	return nil
}

// ListByStatus returns changes with the given status, oldest first.
func (r *PendingChangeRepo) ListByStatus(ctx context.Context, status models.ChangeStatus) ([]models.PendingChange, error) {
	records, err := r.col.GetAll(ctx, &IndexQuery{Index: "status", Equals: string(status)})
	if err != nil {
		return nil, err
	}
	return decodeChanges(records)
}

// ListPending returns all drainable changes, oldest first.
func (r *PendingChangeRepo) ListPending(ctx context.Context) ([]models.PendingChange, error) {
	return r.ListByStatus(ctx, models.ChangePending)
}

// ListByEntity returns every change recorded against one entity.
func (r *PendingChangeRepo) ListByEntity(ctx context.Context, entityID string) ([]models.PendingChange, error) {
	records, err := r.col.GetAll(ctx, &IndexQuery{Index: "entity_id", Equals: entityID})
	if err != nil {
		return nil, err
	}
	return decodeChanges(records)
}

// List returns the full change log, oldest first.
func (r *PendingChangeRepo) List(ctx context.Context) ([]models.PendingChange, error) {
	records, err := r.col.GetAll(ctx, nil)
	if err != nil {
		return nil, err
	}
	return decodeChanges(records)
}

// CountPending returns the number of drainable changes.
func (r *PendingChangeRepo) CountPending(ctx context.Context) (int, error) {
	return r.col.Count(ctx, &IndexQuery{Index: "status", Equals: string(models.ChangePending)})
}

func decodeChanges(records []Record) ([]models.PendingChange, error) {
	changes := make([]models.PendingChange, 0, len(records))
	for _, rec := range records {
		var change models.PendingChange
		if err := rec.Decode(&change); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrPersistence, "corrupt change record", err)
		}
		change.ID = rec.ID
		changes = append(changes, change)
	}
	return changes, nil
}

// =====================================================
// CachedEntity Operations
// =====================================================

// EntityCacheRepo persists last-known entity values, one collection per
// entity type.
type EntityCacheRepo struct {
	campaigns *Collection
	filters   *Collection
}

func (r *EntityCacheRepo) collection(entityType models.EntityType) (*Collection, error) {
	switch entityType {
	case models.EntityCampaign:
		return r.campaigns, nil
	case models.EntityFilter:
		return r.filters, nil
	default:
		return nil, fmt.Errorf("no cache collection for entity type %q", entityType)
	}
}

// Put upserts a cached entity.
func (r *EntityCacheRepo) Put(ctx context.Context, entity *models.CachedEntity) error {
	col, err := r.collection(entity.EntityType)
	if err != nil {
		return err
	}
	entity.Touch()
	if err := col.Put(ctx, entity.EntityID, entity); err != nil {
		return apperrors.Wrap(apperrors.ErrPersistence, "failed to cache entity", err)
	}
	return nil
}

// Get returns the cached value of one entity.
func (r *EntityCacheRepo) Get(ctx context.Context, entityType models.EntityType, entityID string) (*models.CachedEntity, error) {
	col, err := r.collection(entityType)
	if err != nil {
		return nil, err
	}
	rec, err := col.Get(ctx, entityID)
	if err != nil {
		return nil, err
	}
	var entity models.CachedEntity
	if err := rec.Decode(&entity); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrPersistence, "corrupt cache record", err)
	}
	return &entity, nil
}

// Delete removes an entity from the cache.
func (r *EntityCacheRepo) Delete(ctx context.Context, entityType models.EntityType, entityID string) error {
	col, err := r.collection(entityType)
	if err != nil {
		return err
	}
	return col.Delete(ctx, entityID)
}

// ListByType returns cached entities of one type ordered by server
// modification time, most recent first.
func (r *EntityCacheRepo) ListByType(ctx context.Context, entityType models.EntityType) ([]models.CachedEntity, error) {
	col, err := r.collection(entityType)
	if err != nil {
		return nil, err
	}
	records, err := col.GetAll(ctx, &IndexQuery{Index: "updated_at", Descending: true})
	if err != nil {
		return nil, err
	}
	entities := make([]models.CachedEntity, 0, len(records))
	for _, rec := range records {
		var entity models.CachedEntity
		if err := rec.Decode(&entity); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrPersistence, "corrupt cache record", err)
		}
		entities = append(entities, entity)
	}
	return entities, nil
}

// =====================================================
// SyncLog Operations
// =====================================================

// SyncLogRepo persists the append-only sync cycle log.
type SyncLogRepo struct {
	col *Collection
}

// Append records one cycle outcome.
func (r *SyncLogRepo) Append(ctx context.Context, entry *models.SyncLogEntry) error {
	if entry.Timestamp == 0 {
		entry.Timestamp = time.Now().Unix()
	}
	id, err := r.col.Add(ctx, entry)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrPersistence, "failed to append sync log", err)
	}
	entry.ID = id
	return nil
}

// List returns the most recent cycles, newest first.
func (r *SyncLogRepo) List(ctx context.Context, limit int) ([]models.SyncLogEntry, error) {
	records, err := r.col.GetAll(ctx, &IndexQuery{Index: "timestamp", Descending: true, Limit: limit})
	if err != nil {
		return nil, err
	}
	entries := make([]models.SyncLogEntry, 0, len(records))
	for _, rec := range records {
		var entry models.SyncLogEntry
		if err := rec.Decode(&entry); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrPersistence, "corrupt sync log record", err)
		}
		entry.ID = rec.ID
		entries = append(entries, entry)
	}
	return entries, nil
}

// =====================================================
// Request Log Operations
// =====================================================

// RequestLogRepo persists captured mutation requests for FIFO replay.
type RequestLogRepo struct {
	col *Collection
}

// Append captures one request.
func (r *RequestLogRepo) Append(ctx context.Context, req *models.CapturedRequest) error {
	if req.Timestamp == 0 {
		req.Timestamp = time.Now().Unix()
	}
	id, err := r.col.Add(ctx, req)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCaptureFailed, "failed to capture request", err)
	}
	req.ID = id
	return nil
}

// ListFIFO returns all captured requests in capture order.
func (r *RequestLogRepo) ListFIFO(ctx context.Context) ([]models.CapturedRequest, error) {
	records, err := r.col.GetAll(ctx, nil)
	if err != nil {
		return nil, err
	}
	reqs := make([]models.CapturedRequest, 0, len(records))
	for _, rec := range records {
		var req models.CapturedRequest
		if err := rec.Decode(&req); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrPersistence, "corrupt request record", err)
		}
		req.ID = rec.ID
		reqs = append(reqs, req)
	}
	return reqs, nil
}

// Update rewrites a captured request (retry bookkeeping).
func (r *RequestLogRepo) Update(ctx context.Context, req *models.CapturedRequest) error {
	return r.col.PutID(ctx, req.ID, req)
}

// Remove deletes a replayed request from the log.
func (r *RequestLogRepo) Remove(ctx context.Context, id int64) error {
	return r.col.DeleteID(ctx, id)
}

// Count returns the number of captured requests awaiting replay.
func (r *RequestLogRepo) Count(ctx context.Context) (int, error) {
	return r.col.Count(ctx, nil)
}

// =====================================================
// Response Cache Operations
// =====================================================

// ResponseCacheRepo persists cached read responses for the caching
// policies, keyed by URL.
type ResponseCacheRepo struct {
	col *Collection
}

// Put caches a response.
func (r *ResponseCacheRepo) Put(ctx context.Context, resp *models.CachedResponse) error {
	if resp.CachedAt == 0 {
		resp.CachedAt = time.Now().Unix()
	}
	return r.col.Put(ctx, resp.URL, resp)
}

// Get returns the cached response for a URL.
func (r *ResponseCacheRepo) Get(ctx context.Context, url string) (*models.CachedResponse, error) {
	rec, err := r.col.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	var resp models.CachedResponse
	if err := rec.Decode(&resp); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrPersistence, "corrupt response record", err)
	}
	return &resp, nil
}

// =====================================================
// User Preference Operations
// =====================================================

// PreferenceRepo persists simple key/value user preferences.
type PreferenceRepo struct {
	col *Collection
}

// Set upserts one preference.
func (r *PreferenceRepo) Set(ctx context.Context, key, value string) error {
	pref := models.UserPreference{Key: key, Value: value, UpdatedAt: time.Now().Unix()}
	return r.col.Put(ctx, key, &pref)
}

// Get returns one preference value.
func (r *PreferenceRepo) Get(ctx context.Context, key string) (string, error) {
	rec, err := r.col.Get(ctx, key)
	if err != nil {
		return "", err
	}
	var pref models.UserPreference
	if err := rec.Decode(&pref); err != nil {
		return "", apperrors.Wrap(apperrors.ErrPersistence, "corrupt preference record", err)
	}
	return pref.Value, nil
}

// List returns all preferences.
func (r *PreferenceRepo) List(ctx context.Context) ([]models.UserPreference, error) {
	records, err := r.col.GetAll(ctx, nil)
	if err != nil {
		return nil, err
	}
	prefs := make([]models.UserPreference, 0, len(records))
	for _, rec := range records {
		var pref models.UserPreference
		if err := rec.Decode(&pref); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrPersistence, "corrupt preference record", err)
		}
		prefs = append(prefs, pref)
	}
	return prefs, nil
}

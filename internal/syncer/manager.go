// Package syncer drains the pending-change queue against the remote API
// and drives the sync state machine.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/conflict"
	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/connectivity"
	apperrors "github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/errors"
	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/events"
	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/logging"
	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/models"
	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/store"
	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/transport"
	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/uuid"
)

// State is the sync manager's externally visible state.
type State string

const (
	StateIdle      State = "idle"
	StateSyncing   State = "syncing"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateConflict  State = "conflict"
)

// Report summarizes one sync cycle.
type Report struct {
	Status    State  `json:"status"`
	Synced    int    `json:"synced"`
	Conflicts int    `json:"conflicts"`
	Errors    int    `json:"errors"`
	Reason    string `json:"reason,omitempty"`
}

// Options configures a Manager.
type Options struct {
	// MaxRetries is the per-change retry cap before a change is marked
	// failed and excluded from future drains.
	MaxRetries int

	// TypePriority orders entity types within a drain.
	TypePriority []string

	// AutoSyncInterval is the periodic drain interval for StartAutoSync.
	AutoSyncInterval time.Duration
}

// Manager owns the pending-change queue lifecycle: enqueueing offline
// changes, draining them when connectivity returns, and recording each
// cycle's outcome.
type Manager struct {
	store     *store.Store
	transport transport.Transport
	resolver  *conflict.Resolver
	monitor   *connectivity.Monitor
	bus       *events.Bus

	maxRetries   int
	ranks        typeRanker
	autoInterval time.Duration

	mu       sync.Mutex
	state    State
	syncing  bool
	stopAuto chan struct{}
}

// NewManager wires the sync manager. All collaborators are required
// except the bus, which may be nil to disable event publication.
func NewManager(st *store.Store, tr transport.Transport, resolver *conflict.Resolver, monitor *connectivity.Monitor, bus *events.Bus, opts Options) *Manager {
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	interval := opts.AutoSyncInterval
	if interval <= 0 {
		interval = time.Minute
	}
	if bus == nil {
		bus = events.NewBus()
	}
	return &Manager{
		store:        st,
		transport:    tr,
		resolver:     resolver,
		monitor:      monitor,
		bus:          bus,
		maxRetries:   maxRetries,
		ranks:        newTypeRanker(opts.TypePriority),
		autoInterval: interval,
		state:        StateIdle,
	}
}

// State returns the current sync state: syncing while a drain runs,
// idle otherwise. Cycle outcomes are reported per call and in the log.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// AddOfflineChange validates and enqueues a change. Creates without an
// entity id get a temporary client id, and create and update changes are
// applied to the local entity cache immediately so reads reflect them
// while offline.
func (m *Manager) AddOfflineChange(ctx context.Context, change *models.PendingChange) error {
	if change.Operation == models.OperationCreate && change.EntityID == "" {
		change.EntityID = uuid.NewTemp()
	}
	if err := change.Validate(); err != nil {
		return apperrors.Wrap(apperrors.ErrValidation, "invalid change", err)
	}
	if change.Timestamp == 0 {
		change.Timestamp = time.Now().Unix()
	}
	if err := m.store.Changes.Add(ctx, change); err != nil {
		return err
	}

	switch change.Operation {
	case models.OperationCreate, models.OperationUpdate:
		entity := &models.CachedEntity{
			EntityID:   change.EntityID,
			EntityType: change.EntityType,
			Data:       change.Data,
			UpdatedAt:  change.Timestamp,
		}
		if err := m.store.Cache.Put(ctx, entity); err != nil {
			logging.Warn("Failed to reflect change in cache",
				map[string]interface{}{"entity_id": change.EntityID, "error": err.Error()})
		}
	case models.OperationDelete:
		if err := m.store.Cache.Delete(ctx, change.EntityType, change.EntityID); err != nil && !errors.Is(err, store.ErrNotFound) {
			logging.Warn("Failed to remove deleted entity from cache",
				map[string]interface{}{"entity_id": change.EntityID, "error": err.Error()})
		}
	}

	logging.Info("Change enqueued", map[string]interface{}{
		"entity_type": string(change.EntityType),
		"entity_id":   change.EntityID,
		"operation":   string(change.Operation),
	})
	return nil
}

// PendingCount returns the number of drainable changes.
func (m *Manager) PendingCount(ctx context.Context) (int, error) {
	return m.store.Changes.CountPending(ctx)
}

// ListPending returns drainable changes in drain order.
func (m *Manager) ListPending(ctx context.Context) ([]models.PendingChange, error) {
	changes, err := m.store.Changes.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	orderChanges(changes, m.ranks)
	return changes, nil
}

// History returns the most recent sync cycle outcomes, newest first.
func (m *Manager) History(ctx context.Context, limit int) ([]models.SyncLogEntry, error) {
	return m.store.SyncLog.List(ctx, limit)
}

// RetryFailed re-enables failed changes for the next drain, resetting
// their retry budget.
func (m *Manager) RetryFailed(ctx context.Context) (int, error) {
	failed, err := m.store.Changes.ListByStatus(ctx, models.ChangeFailed)
	if err != nil {
		return 0, err
	}
	for i := range failed {
		change := failed[i]
		change.Status = models.ChangePending
		change.RetryCount = 0
		change.LastError = ""
		if err := m.store.Changes.Update(ctx, &change); err != nil {
			return i, err
		}
	}
	return len(failed), nil
}

// SyncNow drains the pending queue once. It never overlaps with itself:
// a call while a cycle runs returns a syncing report without starting a
// second drain. While offline it fails immediately.
func (m *Manager) SyncNow(ctx context.Context) Report {
	m.mu.Lock()
	if m.syncing {
		m.mu.Unlock()
		return Report{Status: StateSyncing, Reason: "sync already in progress"}
	}
	m.syncing = true
	m.state = StateSyncing
	m.mu.Unlock()

	report := m.runCycle(ctx)

	// Cycle outcomes live in the report and the sync log; the manager
	// itself returns to idle once the drain is over.
	m.mu.Lock()
	m.syncing = false
	m.state = StateIdle
	m.mu.Unlock()
	return report
}

func (m *Manager) runCycle(ctx context.Context) Report {
	if !m.monitor.Online() {
		report := Report{Status: StateFailed, Reason: "offline"}
		m.finishCycle(ctx, report)
		return report
	}

	changes, err := m.store.Changes.ListPending(ctx)
	if err != nil {
		report := Report{Status: StateFailed, Reason: "queue read failed: " + err.Error()}
		m.finishCycle(ctx, report)
		return report
	}
	orderChanges(changes, m.ranks)

	total := len(changes)
	m.bus.Publish(events.EventSyncStarted, events.SyncStarted{Total: total})
	logging.Info("Sync cycle started", map[string]interface{}{"pending": total})

	report := Report{}
	aborted := false
	unresolved := 0

	// Server ids assigned to creates this cycle, so later changes in the
	// batch that still reference a temp id push under the real one.
	idAliases := make(map[string]string)

	for i := range changes {
		if ctx.Err() != nil || !m.monitor.Online() {
			aborted = true
			report.Reason = "connection lost mid-cycle"
			break
		}

		change := &changes[i]
		if alias, ok := idAliases[change.EntityID]; ok {
			change.EntityID = alias
		}
		outcome := m.processChange(ctx, change, idAliases)
		switch outcome {
		case outcomeSynced:
			report.Synced++
		case outcomeConflictResolved:
			report.Synced++
			report.Conflicts++
		case outcomeConflictUnresolved:
			report.Conflicts++
			unresolved++
		case outcomeError:
			report.Errors++
		}

		processed := i + 1
		m.bus.Publish(events.EventSyncProgress, events.SyncProgress{
			Processed: processed,
			Total:     total,
			Percent:   float64(processed) / float64(total) * 100,
		})
	}

	switch {
	case aborted:
		report.Status = StateFailed
	case unresolved > 0:
		report.Status = StateConflict
		report.Reason = "manual resolution required"
	case report.Errors > 0:
		report.Status = StateFailed
		report.Reason = "some changes failed to sync"
	default:
		report.Status = StateCompleted
	}

	m.finishCycle(ctx, report)
	return report
}

// finishCycle records the cycle outcome and announces it.
func (m *Manager) finishCycle(ctx context.Context, report Report) {
	entry := &models.SyncLogEntry{
		Status:    string(report.Status),
		Synced:    report.Synced,
		Conflicts: report.Conflicts,
		Errors:    report.Errors,
		Reason:    report.Reason,
	}
	if err := m.store.SyncLog.Append(ctx, entry); err != nil {
		logging.Error("Failed to record sync cycle", err, nil)
	}

	m.bus.Publish(events.EventSyncCompleted, events.SyncCompleted{
		Status:    string(report.Status),
		Synced:    report.Synced,
		Conflicts: report.Conflicts,
		Errors:    report.Errors,
	})
	logging.Info("Sync cycle finished", map[string]interface{}{
		"status":    string(report.Status),
		"synced":    report.Synced,
		"conflicts": report.Conflicts,
		"errors":    report.Errors,
	})
}

type outcome int

const (
	outcomeSynced outcome = iota
	outcomeConflictResolved
	outcomeConflictUnresolved
	outcomeError
)

// processChange pushes one change, resolving a conflict response with
// one retry. A change that conflicts twice in a row stays pending for
// manual handling.
func (m *Manager) processChange(ctx context.Context, change *models.PendingChange, idAliases map[string]string) outcome {
	result, err := m.transport.Execute(ctx, change)
	if err == nil {
		m.markSynced(ctx, change, result, idAliases)
		return outcomeSynced
	}

	var conflictErr *transport.ConflictError
	if !errors.As(err, &conflictErr) {
		m.recordFailure(ctx, change, err)
		return outcomeError
	}

	resolution := m.resolver.Resolve(ctx, change, conflictErr.ServerEntity)
	m.bus.Publish(events.EventSyncConflict, events.SyncConflict{
		EntityType: string(change.EntityType),
		EntityID:   change.EntityID,
		Action:     string(resolution.Action),
		Reason:     resolution.Reason,
	})
	logging.Info("Conflict resolved", map[string]interface{}{
		"entity_id": change.EntityID,
		"action":    string(resolution.Action),
		"reason":    resolution.Reason,
	})

	switch resolution.Action {
	case conflict.ActionServer:
		m.acceptServer(ctx, change, conflictErr.ServerEntity)
		return outcomeConflictResolved

	case conflict.ActionLocal, conflict.ActionMerge:
		if resolution.MergedData != nil {
			if raw, err := json.Marshal(resolution.MergedData); err == nil {
				change.Data = raw
			}
		}
		result, err := m.transport.Execute(ctx, change)
		if err != nil {
			// A second conflict or a transport failure both leave the
			// change queued for the next cycle.
			if errors.As(err, &conflictErr) {
				return outcomeConflictUnresolved
			}
			m.recordFailure(ctx, change, err)
			return outcomeError
		}
		m.markSynced(ctx, change, result, idAliases)
		return outcomeConflictResolved

	default:
		return outcomeConflictUnresolved
	}
}

// markSynced finalizes a pushed change and refreshes the entity cache.
// A create replaces its temporary client id with the server-assigned id
// everywhere it appears.
func (m *Manager) markSynced(ctx context.Context, change *models.PendingChange, result *transport.Result, idAliases map[string]string) {
	tempID := ""
	if change.Operation == models.OperationCreate && uuid.IsTemp(change.EntityID) && result != nil && result.ServerID != "" {
		tempID = change.EntityID
		change.EntityID = result.ServerID
		if idAliases != nil {
			idAliases[tempID] = result.ServerID
		}
	}

	change.Status = models.ChangeSynced
	change.LastError = ""
	if err := m.store.Changes.Update(ctx, change); err != nil {
		logging.Error("Failed to mark change synced", err, map[string]interface{}{"change_id": change.ID})
	}

	if tempID != "" {
		m.remapTempID(ctx, change.EntityType, tempID, change.EntityID)
	}

	switch change.Operation {
	case models.OperationDelete:
		if err := m.store.Cache.Delete(ctx, change.EntityType, change.EntityID); err != nil && !errors.Is(err, store.ErrNotFound) {
			logging.Warn("Failed to evict synced delete from cache",
				map[string]interface{}{"entity_id": change.EntityID, "error": err.Error()})
		}
	default:
		data := change.Data
		updatedAt := change.Timestamp
		if result != nil && result.Entity != nil {
			if raw, err := json.Marshal(result.Entity); err == nil {
				data = raw
			}
			if ts, ok := result.Entity["updated_at"].(float64); ok {
				updatedAt = int64(ts)
			}
		}
		entity := &models.CachedEntity{
			EntityID:   change.EntityID,
			EntityType: change.EntityType,
			Data:       data,
			UpdatedAt:  updatedAt,
		}
		if err := m.store.Cache.Put(ctx, entity); err != nil {
			logging.Warn("Failed to refresh cache after sync",
				map[string]interface{}{"entity_id": change.EntityID, "error": err.Error()})
		}
	}
}

// remapTempID rewrites queued changes and the cache entry that still
// reference a temporary client id.
func (m *Manager) remapTempID(ctx context.Context, entityType models.EntityType, tempID, serverID string) {
	queued, err := m.store.Changes.ListByEntity(ctx, tempID)
	if err != nil {
		logging.Error("Failed to look up changes for temp id", err, map[string]interface{}{"temp_id": tempID})
		return
	}
	for i := range queued {
		change := queued[i]
		if change.Status.Terminal() {
			continue
		}
		change.EntityID = serverID
		if err := m.store.Changes.Update(ctx, &change); err != nil {
			logging.Error("Failed to remap temp id", err, map[string]interface{}{"change_id": change.ID})
		}
	}
	if err := m.store.Cache.Delete(ctx, entityType, tempID); err != nil && !errors.Is(err, store.ErrNotFound) {
		logging.Warn("Failed to drop temp cache entry",
			map[string]interface{}{"temp_id": tempID, "error": err.Error()})
	}
}

// acceptServer discards the local change and adopts the server's version.
func (m *Manager) acceptServer(ctx context.Context, change *models.PendingChange, serverEntity map[string]interface{}) {
	change.Status = models.ChangeSynced
	change.LastError = ""
	if err := m.store.Changes.Update(ctx, change); err != nil {
		logging.Error("Failed to finalize server-wins change", err, map[string]interface{}{"change_id": change.ID})
	}

	if serverEntity == nil {
		return
	}
	raw, err := json.Marshal(serverEntity)
	if err != nil {
		return
	}
	updatedAt := time.Now().Unix()
	if ts, ok := serverEntity["updated_at"].(float64); ok {
		updatedAt = int64(ts)
	}
	entity := &models.CachedEntity{
		EntityID:   change.EntityID,
		EntityType: change.EntityType,
		Data:       raw,
		UpdatedAt:  updatedAt,
	}
	if err := m.store.Cache.Put(ctx, entity); err != nil {
		logging.Warn("Failed to adopt server entity in cache",
			map[string]interface{}{"entity_id": change.EntityID, "error": err.Error()})
	}
}

// recordFailure bumps the retry counter and fails the change once the
// cap is reached. Failed changes are excluded from drains but remain
// queryable and can be re-enabled with RetryFailed.
func (m *Manager) recordFailure(ctx context.Context, change *models.PendingChange, cause error) {
	change.RetryCount++
	change.LastError = cause.Error()
	if change.RetryCount >= m.maxRetries {
		change.Status = models.ChangeFailed
		logging.ErrorWithCode("Change exceeded retry cap", string(apperrors.ErrRetryExceeded), cause,
			map[string]interface{}{"change_id": change.ID, "retries": change.RetryCount})
	} else {
		logging.Warn("Change failed, will retry", map[string]interface{}{
			"change_id": change.ID,
			"retries":   change.RetryCount,
			"error":     cause.Error(),
		})
	}
	if err := m.store.Changes.Update(ctx, change); err != nil {
		logging.Error("Failed to record change failure", err, map[string]interface{}{"change_id": change.ID})
	}
}

// StartAutoSync drains periodically and whenever connectivity returns.
func (m *Manager) StartAutoSync(ctx context.Context) {
	m.mu.Lock()
	if m.stopAuto != nil {
		m.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	m.stopAuto = stop
	m.mu.Unlock()

	unsubscribe := m.monitor.Subscribe(func(online bool) {
		if online {
			go m.SyncNow(ctx)
		}
	})

	go func() {
		defer unsubscribe()
		ticker := time.NewTicker(m.autoInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				if m.monitor.Online() {
					m.SyncNow(ctx)
				}
			}
		}
	}()
}

// StopAutoSync stops the periodic drain.
func (m *Manager) StopAutoSync() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopAuto != nil {
		close(m.stopAuto)
		m.stopAuto = nil
	}
}

// Package conflict decides, for a local change and the server's current
// version of the same entity, which value wins or how they merge.
package conflict

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/logging"
	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/models"
)

// Action is the decision produced for a conflict.
type Action string

const (
	ActionLocal  Action = "local"
	ActionServer Action = "server"
	ActionMerge  Action = "merge"
	ActionManual Action = "manual"
)

// Resolution is the outcome of resolving one conflict. For merge (and
// field-level local) outcomes MergedData carries the accumulated target
// object: the server baseline with the winning local fields applied.
type Resolution struct {
	Action     Action
	MergedData map[string]interface{}
	Reason     string
}

// StrategyFunc is an entity-type-specific resolution strategy. Returning
// a nil resolution abstains and lets the resolver continue down its
// decision order.
type StrategyFunc func(change *models.PendingChange, serverEntity map[string]interface{}) (*Resolution, error)

// FieldMergeFunc is a custom per-field resolver. It receives the local
// and server values and the field name, and may return ok=false to
// abstain (the field then defaults to local wins).
type FieldMergeFunc func(local, server interface{}, field string) (interface{}, bool)

// FieldRule configures resolution for a single field during field-level
// resolution. When Merge is set it takes precedence over Strategy.
type FieldRule struct {
	// Strategy is local (keep local value), server (keep server value)
	// or merge (deep-merge object values, otherwise local wins).
	Strategy Action

	// Merge, when set, is consulted first and may abstain.
	Merge FieldMergeFunc
}

// ManualFunc defers a conflict to the application. It may block; the
// sync manager suspends the cycle until it returns.
type ManualFunc func(ctx context.Context, change *models.PendingChange, serverEntity map[string]interface{}) (*Resolution, error)

// DefaultThreshold is the time distance beyond which two edits are
// treated as sequential rather than conflicting.
const DefaultThreshold = 2 * time.Minute

// bookkeeping fields never take part in field-level resolution.
var identityFields = map[string]bool{
	"id":               true,
	"entity_id":        true,
	"created_at":       true,
	"updated_at":       true,
	"cached_at":        true,
	"client_timestamp": true,
}

// Options configures a Resolver.
type Options struct {
	// Threshold is the auto-resolve time distance (DefaultThreshold when zero).
	Threshold time.Duration

	// Default is the fallback strategy when nothing else decides:
	// ActionLocal, ActionServer or ActionMerge.
	Default Action
}

// Resolver is a pure decision component. It holds no store or transport
// references; the sync manager applies whatever it decides.
type Resolver struct {
	threshold      time.Duration
	defaultAction  Action
	typeStrategies map[models.EntityType]StrategyFunc
	fieldRules     map[string]FieldRule
	manual         ManualFunc
}

// NewResolver creates a Resolver with the given options.
func NewResolver(opts Options) *Resolver {
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	def := opts.Default
	switch def {
	case ActionLocal, ActionServer, ActionMerge:
	default:
		def = ActionServer
	}
	return &Resolver{
		threshold:      threshold,
		defaultAction:  def,
		typeStrategies: make(map[models.EntityType]StrategyFunc),
		fieldRules:     make(map[string]FieldRule),
	}
}

// RegisterTypeStrategy registers an entity-type-specific strategy.
func (r *Resolver) RegisterTypeStrategy(entityType models.EntityType, fn StrategyFunc) {
	r.typeStrategies[entityType] = fn
}

// RegisterFieldRule registers a per-field rule for field-level resolution.
func (r *Resolver) RegisterFieldRule(field string, rule FieldRule) {
	r.fieldRules[field] = rule
}

// SetManualHandler registers the manual-resolution callback.
func (r *Resolver) SetManualHandler(fn ManualFunc) {
	r.manual = fn
}

// Resolve decides the conflict. It never fails: any error or panic inside
// a strategy resolves to server-wins, which cannot corrupt data.
func (r *Resolver) Resolve(ctx context.Context, change *models.PendingChange, serverEntity map[string]interface{}) (resolution Resolution) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Warn("Resolver panicked, defaulting to server",
				map[string]interface{}{"entity_id": change.EntityID, "panic": fmt.Sprint(rec)})
			resolution = Resolution{Action: ActionServer, Reason: "resolver failure: server wins"}
		}
	}()

	// 1. Server has no record: the local change wins outright.
	if serverEntity == nil {
		return Resolution{Action: ActionLocal, Reason: "server has no record: create wins"}
	}

	// 2. Entity-type-specific strategy.
	if fn, ok := r.typeStrategies[change.EntityType]; ok {
		res, err := fn(change, serverEntity)
		if err != nil {
			logging.Warn("Type strategy failed, defaulting to server",
				map[string]interface{}{"entity_type": string(change.EntityType), "error": err.Error()})
			return Resolution{Action: ActionServer, Reason: "resolver failure: server wins"}
		}
		if res != nil {
			return *res
		}
	}

	// 3. Auto-resolve by time distance: clearly sequential edits are not
	// a real conflict, so the more recent side wins.
	if serverTime, ok := entityUpdatedAt(serverEntity); ok {
		localTime := change.Time()
		distance := localTime.Sub(serverTime)
		if distance < 0 {
			distance = -distance
		}
		if distance > r.threshold {
			if localTime.After(serverTime) {
				return Resolution{Action: ActionLocal, Reason: fmt.Sprintf("local edit newer by %s", distance)}
			}
			return Resolution{Action: ActionServer, Reason: fmt.Sprintf("server edit newer by %s", distance)}
		}
	}

	// 4. Field-level resolution, updates only.
	if change.Operation == models.OperationUpdate {
		res, err := r.resolveFields(change, serverEntity)
		if err != nil {
			logging.Warn("Field-level resolution failed, defaulting to server",
				map[string]interface{}{"entity_id": change.EntityID, "error": err.Error()})
			return Resolution{Action: ActionServer, Reason: "resolver failure: server wins"}
		}
		return *res
	}

	// 5. Manual resolution callback.
	if r.manual != nil {
		res, err := r.manual(ctx, change, serverEntity)
		if err != nil {
			logging.Warn("Manual resolution failed, defaulting to server",
				map[string]interface{}{"entity_id": change.EntityID, "error": err.Error()})
			return Resolution{Action: ActionServer, Reason: "resolver failure: server wins"}
		}
		if res != nil {
			return *res
		}
	}

	// 6. Configured default strategy.
	return r.resolveDefault(change, serverEntity)
}

// resolveFields walks every changed field of an update and applies the
// registered per-field rule, defaulting to local wins. The accumulated
// target object starts from the server baseline.
func (r *Resolver) resolveFields(change *models.PendingChange, serverEntity map[string]interface{}) (*Resolution, error) {
	local, err := change.DataMap()
	if err != nil {
		return nil, fmt.Errorf("decode local data: %w", err)
	}

	target := copyMap(serverEntity)

	// Sorted field order keeps custom merge side effects deterministic.
	fields := make([]string, 0, len(local))
	for f := range local {
		if identityFields[f] {
			continue
		}
		fields = append(fields, f)
	}
	sort.Strings(fields)

	changed := 0
	allLocal := true
	for _, field := range fields {
		localVal := local[field]
		serverVal := serverEntity[field]

		final := r.resolveField(field, localVal, serverVal)
		target[field] = final

		if !reflect.DeepEqual(final, serverVal) {
			changed++
		}
		if !reflect.DeepEqual(final, localVal) {
			allLocal = false
		}
	}

	if changed == 0 {
		return &Resolution{Action: ActionServer, Reason: "no fields differ from server"}, nil
	}
	if changed == len(fields) && allLocal {
		return &Resolution{
			Action:     ActionLocal,
			MergedData: target,
			Reason:     fmt.Sprintf("all %d changed fields resolved local", changed),
		}, nil
	}
	return &Resolution{
		Action:     ActionMerge,
		MergedData: target,
		Reason:     fmt.Sprintf("%d of %d fields resolved local", changed, len(fields)),
	}, nil
}

// resolveField decides one field's final value. Unregistered fields
// default to local wins.
func (r *Resolver) resolveField(field string, localVal, serverVal interface{}) interface{} {
	rule, ok := r.fieldRules[field]
	if !ok {
		return localVal
	}

	if rule.Merge != nil {
		if v, decided := rule.Merge(localVal, serverVal, field); decided {
			return v
		}
		return localVal
	}

	switch rule.Strategy {
	case ActionServer:
		return serverVal
	case ActionMerge:
		return mergeValues(localVal, serverVal)
	default:
		return localVal
	}
}

// resolveDefault applies the configured fallback strategy.
func (r *Resolver) resolveDefault(change *models.PendingChange, serverEntity map[string]interface{}) Resolution {
	switch r.defaultAction {
	case ActionLocal:
		return Resolution{Action: ActionLocal, Reason: "default strategy: local wins"}
	case ActionMerge:
		// A delete carries no data to merge; degrade to server wins.
		if change.Operation == models.OperationDelete {
			return Resolution{Action: ActionServer, Reason: "delete cannot merge: server wins"}
		}
		local, err := change.DataMap()
		if err != nil {
			return Resolution{Action: ActionServer, Reason: "resolver failure: server wins"}
		}
		return Resolution{
			Action:     ActionMerge,
			MergedData: deepMerge(copyMap(serverEntity), local),
			Reason:     "default strategy: merge",
		}
	default:
		return Resolution{Action: ActionServer, Reason: "default strategy: server wins"}
	}
}

// mergeValues combines one field's values: deep merge when both sides
// are objects, otherwise the local value wins.
func mergeValues(localVal, serverVal interface{}) interface{} {
	localMap, localOK := localVal.(map[string]interface{})
	serverMap, serverOK := serverVal.(map[string]interface{})
	if localOK && serverOK {
		return deepMerge(copyMap(serverMap), localMap)
	}
	return localVal
}

// deepMerge merges src into dst recursively and returns dst.
func deepMerge(dst, src map[string]interface{}) map[string]interface{} {
	for k, v := range src {
		if srcMap, ok := v.(map[string]interface{}); ok {
			if dstMap, ok := dst[k].(map[string]interface{}); ok {
				dst[k] = deepMerge(copyMap(dstMap), srcMap)
				continue
			}
		}
		dst[k] = v
	}
	return dst
}

// copyMap makes a shallow copy of a field map.
func copyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// entityUpdatedAt extracts the server-side modification time from an
// entity representation. Accepts unix seconds or RFC 3339 strings.
func entityUpdatedAt(entity map[string]interface{}) (time.Time, bool) {
	v, ok := entity["updated_at"]
	if !ok {
		return time.Time{}, false
	}
	switch t := v.(type) {
	case float64:
		return time.Unix(int64(t), 0), true
	case int64:
		return time.Unix(t, 0), true
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	default:
		return time.Time{}, false
	}
}

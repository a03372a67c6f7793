package conflict

import (
	"fmt"
	"time"

	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/models"
)

// TimestampThreshold returns a strategy that resolves a conflict by time
// distance alone, with its own threshold. Within the threshold it
// abstains so the resolver can continue to field-level resolution.
func TimestampThreshold(threshold time.Duration) StrategyFunc {
	return func(change *models.PendingChange, serverEntity map[string]interface{}) (*Resolution, error) {
		serverTime, ok := entityUpdatedAt(serverEntity)
		if !ok {
			return nil, nil
		}
		localTime := change.Time()
		distance := localTime.Sub(serverTime)
		if distance < 0 {
			distance = -distance
		}
		if distance <= threshold {
			return nil, nil
		}
		if localTime.After(serverTime) {
			return &Resolution{Action: ActionLocal, Reason: fmt.Sprintf("local edit newer by %s", distance)}, nil
		}
		return &Resolution{Action: ActionServer, Reason: fmt.Sprintf("server edit newer by %s", distance)}, nil
	}
}

// FieldPriority returns a strategy that inspects which fields the local
// change touches and keeps the local version when the highest-priority
// touched field outranks zero. Fields absent from the priority map rank
// zero, so a change touching only unranked fields abstains.
func FieldPriority(priorities map[string]int) StrategyFunc {
	return func(change *models.PendingChange, serverEntity map[string]interface{}) (*Resolution, error) {
		local, err := change.DataMap()
		if err != nil {
			return nil, err
		}
		best := 0
		bestField := ""
		for field, localVal := range local {
			if identityFields[field] {
				continue
			}
			serverVal, ok := serverEntity[field]
			if ok && valuesEqual(localVal, serverVal) {
				continue
			}
			if p := priorities[field]; p > best {
				best = p
				bestField = field
			}
		}
		if best == 0 {
			return nil, nil
		}
		return &Resolution{Action: ActionLocal, Reason: fmt.Sprintf("priority field %q changed locally", bestField)}, nil
	}
}

// AlwaysLocal returns a strategy that keeps the local change for every
// conflict of its entity type.
func AlwaysLocal() StrategyFunc {
	return func(change *models.PendingChange, serverEntity map[string]interface{}) (*Resolution, error) {
		return &Resolution{Action: ActionLocal, Reason: "type strategy: local wins"}, nil
	}
}

// AlwaysServer returns a strategy that discards the local change for
// every conflict of its entity type.
func AlwaysServer() StrategyFunc {
	return func(change *models.PendingChange, serverEntity map[string]interface{}) (*Resolution, error) {
		return &Resolution{Action: ActionServer, Reason: "type strategy: server wins"}, nil
	}
}

func valuesEqual(a, b interface{}) bool {
	return fmt.Sprint(a) == fmt.Sprint(b)
}

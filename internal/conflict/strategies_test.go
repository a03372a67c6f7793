package conflict

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/models"
)

func strategyChange(t *testing.T, data map[string]interface{}, ts time.Time) *models.PendingChange {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	return &models.PendingChange{
		EntityType: models.EntityFilter,
		EntityID:   "f-1",
		Operation:  models.OperationUpdate,
		Data:       raw,
		Timestamp:  ts.Unix(),
	}
}

func TestTimestampThresholdAbstainsWithin(t *testing.T) {
	fn := TimestampThreshold(5 * time.Minute)

	now := time.Now()
	change := strategyChange(t, map[string]interface{}{"name": "a"}, now)
	server := map[string]interface{}{"updated_at": float64(now.Add(-time.Minute).Unix())}

	res, err := fn(change, server)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != nil {
		t.Errorf("expected abstain within threshold, got %s", res.Action)
	}
}

func TestTimestampThresholdDecidesBeyond(t *testing.T) {
	fn := TimestampThreshold(time.Minute)

	now := time.Now()
	change := strategyChange(t, map[string]interface{}{"name": "a"}, now)
	server := map[string]interface{}{"updated_at": float64(now.Add(-time.Hour).Unix())}

	res, err := fn(change, server)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res == nil || res.Action != ActionLocal {
		t.Errorf("expected local beyond threshold, got %+v", res)
	}
}

func TestFieldPriorityKeepsLocal(t *testing.T) {
	fn := FieldPriority(map[string]int{"status": 10})

	change := strategyChange(t, map[string]interface{}{"status": "paused"}, time.Now())
	server := map[string]interface{}{"status": "live"}

	res, err := fn(change, server)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res == nil || res.Action != ActionLocal {
		t.Errorf("expected local when a priority field changed, got %+v", res)
	}
}

func TestFieldPriorityAbstainsOnUnrankedFields(t *testing.T) {
	fn := FieldPriority(map[string]int{"status": 10})

	change := strategyChange(t, map[string]interface{}{"name": "renamed"}, time.Now())
	server := map[string]interface{}{"name": "original", "status": "live"}

	res, err := fn(change, server)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != nil {
		t.Errorf("expected abstain for unranked fields, got %s", res.Action)
	}
}

func TestFieldPriorityIgnoresUnchangedFields(t *testing.T) {
	fn := FieldPriority(map[string]int{"status": 10})

	change := strategyChange(t, map[string]interface{}{"status": "live"}, time.Now())
	server := map[string]interface{}{"status": "live"}

	res, err := fn(change, server)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != nil {
		t.Errorf("expected abstain when priority field unchanged, got %s", res.Action)
	}
}

package conflict

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/models"
)

func updateChange(t *testing.T, data map[string]interface{}, ts time.Time) *models.PendingChange {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	return &models.PendingChange{
		EntityType: models.EntityCampaign,
		EntityID:   "c-1",
		Operation:  models.OperationUpdate,
		Data:       raw,
		Timestamp:  ts.Unix(),
	}
}

func TestResolveNoServerRecord(t *testing.T) {
	r := NewResolver(Options{})
	change := &models.PendingChange{
		EntityType: models.EntityCampaign,
		Operation:  models.OperationCreate,
		Timestamp:  time.Now().Unix(),
	}

	res := r.Resolve(context.Background(), change, nil)
	if res.Action != ActionLocal {
		t.Errorf("expected local when server has no record, got %s", res.Action)
	}
}

func TestResolveTimeDistanceServerNewer(t *testing.T) {
	r := NewResolver(Options{Threshold: 2 * time.Minute})

	localTime := time.Now().Add(-10 * time.Minute)
	change := updateChange(t, map[string]interface{}{"status": "paused"}, localTime)
	server := map[string]interface{}{
		"status":     "live",
		"updated_at": float64(time.Now().Unix()),
	}

	res := r.Resolve(context.Background(), change, server)
	if res.Action != ActionServer {
		t.Errorf("expected server to win when its edit is far newer, got %s", res.Action)
	}
}

func TestResolveTimeDistanceLocalNewer(t *testing.T) {
	r := NewResolver(Options{Threshold: 2 * time.Minute})

	change := updateChange(t, map[string]interface{}{"status": "paused"}, time.Now())
	server := map[string]interface{}{
		"status":     "live",
		"updated_at": float64(time.Now().Add(-10 * time.Minute).Unix()),
	}

	res := r.Resolve(context.Background(), change, server)
	if res.Action != ActionLocal {
		t.Errorf("expected local to win when its edit is far newer, got %s", res.Action)
	}
}

func TestResolveFieldLevelRetainsUntouchedServerFields(t *testing.T) {
	r := NewResolver(Options{Threshold: 2 * time.Minute})

	now := time.Now()
	change := updateChange(t, map[string]interface{}{"status": "paused"}, now)
	server := map[string]interface{}{
		"status":     "live",
		"budget":     float64(500),
		"updated_at": float64(now.Add(-30 * time.Second).Unix()),
	}

	res := r.Resolve(context.Background(), change, server)
	if res.Action != ActionLocal {
		t.Fatalf("expected local when the only touched field resolves local, got %s", res.Action)
	}
	if res.MergedData == nil {
		t.Fatal("expected merged data on field-level resolution")
	}
	if res.MergedData["status"] != "paused" {
		t.Errorf("expected local status to win, got %v", res.MergedData["status"])
	}
	if res.MergedData["budget"] != float64(500) {
		t.Errorf("expected server budget retained, got %v", res.MergedData["budget"])
	}
}

func TestResolveFieldLevelServerRule(t *testing.T) {
	r := NewResolver(Options{Threshold: 2 * time.Minute})
	r.RegisterFieldRule("budget", FieldRule{Strategy: ActionServer})

	now := time.Now()
	change := updateChange(t, map[string]interface{}{
		"status": "paused",
		"budget": float64(900),
	}, now)
	server := map[string]interface{}{
		"status":     "live",
		"budget":     float64(500),
		"updated_at": float64(now.Unix()),
	}

	res := r.Resolve(context.Background(), change, server)
	if res.Action != ActionMerge {
		t.Fatalf("expected merge when fields split between sides, got %s", res.Action)
	}
	if res.MergedData["status"] != "paused" {
		t.Errorf("expected local status, got %v", res.MergedData["status"])
	}
	if res.MergedData["budget"] != float64(500) {
		t.Errorf("expected server budget per field rule, got %v", res.MergedData["budget"])
	}
}

func TestResolveFieldLevelNoDifferences(t *testing.T) {
	r := NewResolver(Options{Threshold: 2 * time.Minute})

	now := time.Now()
	change := updateChange(t, map[string]interface{}{"status": "live"}, now)
	server := map[string]interface{}{
		"status":     "live",
		"updated_at": float64(now.Unix()),
	}

	res := r.Resolve(context.Background(), change, server)
	if res.Action != ActionServer {
		t.Errorf("expected server when no fields differ, got %s", res.Action)
	}
}

func TestResolveFieldLevelCustomMerge(t *testing.T) {
	r := NewResolver(Options{Threshold: 2 * time.Minute})
	r.RegisterFieldRule("budget", FieldRule{
		Merge: func(local, server interface{}, field string) (interface{}, bool) {
			l, _ := local.(float64)
			s, _ := server.(float64)
			if l > s {
				return l, true
			}
			return s, true
		},
	})

	now := time.Now()
	change := updateChange(t, map[string]interface{}{"budget": float64(300)}, now)
	server := map[string]interface{}{
		"budget":     float64(500),
		"updated_at": float64(now.Unix()),
	}

	res := r.Resolve(context.Background(), change, server)
	if res.Action != ActionServer {
		t.Fatalf("expected server when custom merge keeps server value, got %s", res.Action)
	}
}

func TestResolveFieldLevelDeepMerge(t *testing.T) {
	r := NewResolver(Options{Threshold: 2 * time.Minute})
	r.RegisterFieldRule("criteria", FieldRule{Strategy: ActionMerge})

	now := time.Now()
	change := updateChange(t, map[string]interface{}{
		"criteria": map[string]interface{}{"region": "emea"},
	}, now)
	server := map[string]interface{}{
		"criteria": map[string]interface{}{
			"region":   "amer",
			"language": "en",
		},
		"updated_at": float64(now.Unix()),
	}

	res := r.Resolve(context.Background(), change, server)
	if res.Action != ActionMerge {
		t.Fatalf("expected merge, got %s", res.Action)
	}
	merged, ok := res.MergedData["criteria"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected merged criteria object, got %T", res.MergedData["criteria"])
	}
	if merged["region"] != "emea" {
		t.Errorf("expected local region, got %v", merged["region"])
	}
	if merged["language"] != "en" {
		t.Errorf("expected server language preserved, got %v", merged["language"])
	}
}

func TestResolveTypeStrategy(t *testing.T) {
	r := NewResolver(Options{Threshold: 2 * time.Minute})
	r.RegisterTypeStrategy(models.EntityCampaign, AlwaysServer())

	change := updateChange(t, map[string]interface{}{"status": "paused"}, time.Now())
	server := map[string]interface{}{"status": "live"}

	res := r.Resolve(context.Background(), change, server)
	if res.Action != ActionServer {
		t.Errorf("expected type strategy to decide, got %s", res.Action)
	}
}

func TestResolveTypeStrategyError(t *testing.T) {
	r := NewResolver(Options{})
	r.RegisterTypeStrategy(models.EntityCampaign, func(change *models.PendingChange, server map[string]interface{}) (*Resolution, error) {
		return nil, errors.New("boom")
	})

	change := updateChange(t, map[string]interface{}{"status": "paused"}, time.Now())
	res := r.Resolve(context.Background(), change, map[string]interface{}{"status": "live"})
	if res.Action != ActionServer {
		t.Errorf("expected server on strategy error, got %s", res.Action)
	}
}

func TestResolveStrategyPanicDefaultsToServer(t *testing.T) {
	r := NewResolver(Options{})
	r.RegisterTypeStrategy(models.EntityCampaign, func(change *models.PendingChange, server map[string]interface{}) (*Resolution, error) {
		panic("bad strategy")
	})

	change := updateChange(t, map[string]interface{}{"status": "paused"}, time.Now())
	res := r.Resolve(context.Background(), change, map[string]interface{}{"status": "live"})
	if res.Action != ActionServer {
		t.Errorf("expected server after panic, got %s", res.Action)
	}
}

func TestResolveManualHandler(t *testing.T) {
	r := NewResolver(Options{Threshold: 2 * time.Minute})
	called := false
	r.SetManualHandler(func(ctx context.Context, change *models.PendingChange, server map[string]interface{}) (*Resolution, error) {
		called = true
		return &Resolution{Action: ActionLocal, Reason: "user kept local"}, nil
	})

	now := time.Now()
	change := &models.PendingChange{
		EntityType: models.EntityCampaign,
		EntityID:   "c-1",
		Operation:  models.OperationDelete,
		Timestamp:  now.Unix(),
	}
	server := map[string]interface{}{"updated_at": float64(now.Unix())}

	res := r.Resolve(context.Background(), change, server)
	if !called {
		t.Fatal("expected manual handler to run for delete conflict")
	}
	if res.Action != ActionLocal {
		t.Errorf("expected manual decision honored, got %s", res.Action)
	}
}

func TestResolveDefaultMergeDegradesForDelete(t *testing.T) {
	r := NewResolver(Options{Threshold: 2 * time.Minute, Default: ActionMerge})

	now := time.Now()
	change := &models.PendingChange{
		EntityType: models.EntityCampaign,
		EntityID:   "c-1",
		Operation:  models.OperationDelete,
		Timestamp:  now.Unix(),
	}
	server := map[string]interface{}{"updated_at": float64(now.Unix())}

	res := r.Resolve(context.Background(), change, server)
	if res.Action != ActionServer {
		t.Errorf("expected merge default to degrade to server for delete, got %s", res.Action)
	}
}

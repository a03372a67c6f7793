package background

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/connectivity"
	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/events"
	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/models"
	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/store"
)

func newTestReplayer(t *testing.T) (*Replayer, *store.Store, *connectivity.Monitor) {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	bus := events.NewBus()
	monitor := connectivity.NewMonitor(nil, time.Minute, bus)
	return NewReplayer(st, monitor, bus, nil), st, monitor
}

func capture(t *testing.T, st *store.Store, method, url, body string) {
	t.Helper()
	err := st.Requests.Append(context.Background(), &models.CapturedRequest{
		URL:     url,
		Method:  method,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    []byte(body),
	})
	if err != nil {
		t.Fatalf("capture request: %v", err)
	}
}

func TestReplayAllOffline(t *testing.T) {
	r, _, monitor := newTestReplayer(t)
	monitor.SetOnline(false)

	if _, err := r.ReplayAll(context.Background()); err == nil {
		t.Error("expected error replaying while offline")
	}
}

func TestReplayAllInOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		mu.Lock()
		order = append(order, req.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r, st, _ := newTestReplayer(t)
	capture(t, st, http.MethodPost, srv.URL+"/first", `{"n":1}`)
	capture(t, st, http.MethodPut, srv.URL+"/second", `{"n":2}`)
	capture(t, st, http.MethodDelete, srv.URL+"/third", "")

	report, err := r.ReplayAll(context.Background())
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if report.Replayed != 3 || report.Failed != 0 {
		t.Errorf("expected 3 replayed, got %+v", report)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"/first", "/second", "/third"}
	if len(order) != len(want) {
		t.Fatalf("expected %d requests, got %d", len(want), len(order))
	}
	for i, path := range want {
		if order[i] != path {
			t.Errorf("position %d: expected %s, got %s", i, path, order[i])
		}
	}

	remaining, err := st.Requests.Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if remaining != 0 {
		t.Errorf("expected drained log, got %d remaining", remaining)
	}
}

func TestReplayStopsAtFirstFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path == "/second" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r, st, _ := newTestReplayer(t)
	capture(t, st, http.MethodPost, srv.URL+"/first", "")
	capture(t, st, http.MethodPost, srv.URL+"/second", "")
	capture(t, st, http.MethodPost, srv.URL+"/third", "")

	report, err := r.ReplayAll(context.Background())
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if report.Replayed != 1 || report.Failed != 1 {
		t.Errorf("expected 1 replayed and 1 failed, got %+v", report)
	}

	queued, err := st.Requests.ListFIFO(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(queued) != 2 {
		t.Fatalf("expected failed and later requests retained, got %d", len(queued))
	}
	if queued[0].RetryCount != 1 {
		t.Errorf("expected retry count bumped on failed request, got %d", queued[0].RetryCount)
	}
}

func TestReplayTreatsClientErrorAsFinal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path == "/rejected" {
			w.WriteHeader(http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	bus := events.NewBus()
	var mu sync.Mutex
	var published []events.RequestReplayed
	bus.Subscribe(func(ev events.Event) {
		mu.Lock()
		published = append(published, ev.Payload.(events.RequestReplayed))
		mu.Unlock()
	}, events.EventRequestReplayed)

	monitor := connectivity.NewMonitor(nil, time.Minute, bus)
	r := NewReplayer(st, monitor, bus, nil)
	capture(t, st, http.MethodPost, srv.URL+"/rejected", "")
	capture(t, st, http.MethodPost, srv.URL+"/accepted", "")

	report, err := r.ReplayAll(context.Background())
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if report.Dropped != 1 || report.Replayed != 1 || report.Failed != 0 {
		t.Errorf("expected 1 dropped and 1 replayed, got %+v", report)
	}

	// A rejected request does not wedge the drain.
	remaining, err := st.Requests.Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if remaining != 0 {
		t.Errorf("expected both requests removed, got %d", remaining)
	}

	// The events tell a landed mutation apart from a dropped one.
	mu.Lock()
	defer mu.Unlock()
	if len(published) != 2 {
		t.Fatalf("expected 2 replay events, got %d", len(published))
	}
	if !published[0].Dropped || published[0].Success {
		t.Errorf("expected first event dropped without success, got %+v", published[0])
	}
	if !published[1].Success || published[1].Dropped {
		t.Errorf("expected second event successful, got %+v", published[1])
	}
}

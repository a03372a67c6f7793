// Package connectivity tracks online/offline transitions and notifies
// subscribers when the state changes.
package connectivity

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/events"
	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/logging"
)

// ProbeFunc reports whether the remote endpoint is currently reachable.
type ProbeFunc func(ctx context.Context) bool

// HTTPProbe returns a probe that issues a HEAD request against url.
func HTTPProbe(url string, timeout time.Duration) ProbeFunc {
	client := &http.Client{Timeout: timeout}
	return func(ctx context.Context) bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return false
		}
		resp, err := client.Do(req)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode < http.StatusInternalServerError
	}
}

// Monitor polls a probe and tracks the current online state. Subscribers
// are notified on every transition. SetOnline allows transports to feed
// back hard evidence (a request that just failed or succeeded) without
// waiting for the next poll.
type Monitor struct {
	probe    ProbeFunc
	interval time.Duration
	bus      *events.Bus

	mu        sync.RWMutex
	online    bool
	listeners map[int]func(online bool)
	nextID    int

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewMonitor creates a monitor. The bus may be nil. The monitor starts
// in the online state until the first probe says otherwise.
func NewMonitor(probe ProbeFunc, interval time.Duration, bus *events.Bus) *Monitor {
	return &Monitor{
		probe:     probe,
		interval:  interval,
		bus:       bus,
		online:    true,
		listeners: make(map[int]func(online bool)),
		stopCh:    make(chan struct{}),
	}
}

// Start begins periodic probing until the context is cancelled or Stop
// is called.
func (m *Monitor) Start(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.SetOnline(m.probe(ctx))
			}
		}
	}()
}

// Stop halts probing.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()
}

// Online returns the current connectivity state.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// SetOnline records the connectivity state and notifies listeners on a
// transition.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	var listeners []func(bool)
	if changed {
		listeners = make([]func(bool), 0, len(m.listeners))
		for _, fn := range m.listeners {
			listeners = append(listeners, fn)
		}
	}
	m.mu.Unlock()

	if !changed {
		return
	}

	logging.Info("Connectivity changed", map[string]interface{}{"online": online})

	for _, fn := range listeners {
		fn(online)
	}
	if m.bus != nil {
		m.bus.Publish(events.EventConnectivityChanged, events.ConnectivityChanged{Online: online})
	}
}

// Subscribe registers a transition listener and returns an unsubscribe
// function. Listeners run on the goroutine that observed the transition.
func (m *Monitor) Subscribe(fn func(online bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.listeners[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

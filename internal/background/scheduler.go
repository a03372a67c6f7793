// Package background intercepts application HTTP traffic while offline
// and replays it when connectivity returns.
package background

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/connectivity"
	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/logging"
)

// TaskFunc is work the scheduler runs when its tag wakes.
type TaskFunc func(ctx context.Context)

// Scheduler wakes registered tasks by tag. A tag whose task is still
// running ignores further wakes until it finishes.
type Scheduler struct {
	mu      sync.Mutex
	tasks   map[string]TaskFunc
	running map[string]bool
}

// NewScheduler creates an empty Scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{
		tasks:   make(map[string]TaskFunc),
		running: make(map[string]bool),
	}
}

// Schedule registers a task under a tag. Tags are unique.
func (s *Scheduler) Schedule(tag string, task TaskFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[tag]; exists {
		return fmt.Errorf("task already scheduled for tag %q", tag)
	}
	s.tasks[tag] = task
	return nil
}

// Wake runs the tagged task in the background. It reports false when
// the tag is unknown or its task is already running.
func (s *Scheduler) Wake(ctx context.Context, tag string) bool {
	s.mu.Lock()
	task, ok := s.tasks[tag]
	if !ok || s.running[tag] {
		s.mu.Unlock()
		return false
	}
	s.running[tag] = true
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.running[tag] = false
			s.mu.Unlock()
		}()
		logging.Debug("Waking background task", map[string]interface{}{"tag": tag})
		task(ctx)
	}()
	return true
}

// WakeAll wakes every registered tag.
func (s *Scheduler) WakeAll(ctx context.Context) {
	for _, tag := range s.Tags() {
		s.Wake(ctx, tag)
	}
}

// Tags returns all registered tags, sorted.
func (s *Scheduler) Tags() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	tags := make([]string, 0, len(s.tasks))
	for tag := range s.tasks {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// BindConnectivity wakes every tag when the monitor reports a return to
// online. The returned function unsubscribes.
func (s *Scheduler) BindConnectivity(ctx context.Context, monitor *connectivity.Monitor) func() {
	return monitor.Subscribe(func(online bool) {
		if online {
			s.WakeAll(ctx)
		}
	})
}

package background

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/connectivity"
	apperrors "github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/errors"
	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/events"
	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/logging"
	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/models"
	"github.com/Mateoloperaortiz/automatizaciondeads-sub005/internal/store"
)

// ReplayReport summarizes one replay drain. Dropped counts requests the
// server rejected with a client error; they are removed without landing.
type ReplayReport struct {
	Replayed int `json:"replayed"`
	Dropped  int `json:"dropped"`
	Failed   int `json:"failed"`
}

// Replayer drains captured requests against the network in capture
// order.
type Replayer struct {
	requests *store.RequestLogRepo
	monitor  *connectivity.Monitor
	bus      *events.Bus
	client   *http.Client
}

// NewReplayer creates a Replayer. A nil client gets a default with a
// 30 second timeout.
func NewReplayer(st *store.Store, monitor *connectivity.Monitor, bus *events.Bus, client *http.Client) *Replayer {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if bus == nil {
		bus = events.NewBus()
	}
	return &Replayer{
		requests: st.Requests,
		monitor:  monitor,
		bus:      bus,
		client:   client,
	}
}

// Run implements TaskFunc for scheduler registration.
func (r *Replayer) Run(ctx context.Context) {
	if _, err := r.ReplayAll(ctx); err != nil {
		logging.Error("Replay drain failed", err, nil)
	}
}

// ReplayAll replays captured requests strictly in capture order. The
// drain stops at the first failure so later mutations never land before
// an earlier one; the failed request stays queued with its retry count
// bumped.
func (r *Replayer) ReplayAll(ctx context.Context) (ReplayReport, error) {
	report := ReplayReport{}
	if !r.monitor.Online() {
		return report, apperrors.New(apperrors.ErrOffline, "cannot replay while offline")
	}

	queued, err := r.requests.ListFIFO(ctx)
	if err != nil {
		return report, err
	}
	if len(queued) == 0 {
		return report, nil
	}
	logging.Info("Replaying captured requests", map[string]interface{}{"count": len(queued)})

	for i := range queued {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		captured := &queued[i]
		status, err := r.replayOne(ctx, captured)
		if err != nil {
			report.Failed++
			captured.RetryCount++
			if updateErr := r.requests.Update(ctx, captured); updateErr != nil {
				logging.Error("Failed to record replay retry", updateErr,
					map[string]interface{}{"request_id": captured.ID})
			}
			r.bus.Publish(events.EventRequestReplayed, events.RequestReplayed{
				Method:  captured.Method,
				URL:     captured.URL,
				Success: false,
			})
			logging.Warn("Replay stopped at failed request", map[string]interface{}{
				"request_id": captured.ID,
				"url":        captured.URL,
				"retries":    captured.RetryCount,
				"error":      err.Error(),
			})
			return report, nil
		}

		if err := r.requests.Remove(ctx, captured.ID); err != nil {
			logging.Error("Failed to remove replayed request", err,
				map[string]interface{}{"request_id": captured.ID})
		}

		// A client error is final; retrying the same payload cannot
		// succeed, so the request is removed without blocking the drain.
		// It is reported as dropped, not as a landed mutation.
		if status >= 400 && status < 500 {
			report.Dropped++
			r.bus.Publish(events.EventRequestReplayed, events.RequestReplayed{
				Method:  captured.Method,
				URL:     captured.URL,
				Dropped: true,
			})
			logging.Warn("Captured request rejected by server", map[string]interface{}{
				"request_id": captured.ID,
				"url":        captured.URL,
				"status":     status,
			})
			continue
		}

		report.Replayed++
		r.bus.Publish(events.EventRequestReplayed, events.RequestReplayed{
			Method:  captured.Method,
			URL:     captured.URL,
			Success: true,
		})
	}
	return report, nil
}

// Count returns the number of requests awaiting replay.
func (r *Replayer) Count(ctx context.Context) (int, error) {
	return r.requests.Count(ctx)
}

// replayOne pushes one captured request and returns the response status.
// Network failures and 5xx responses are retryable errors; any other
// status is returned for the caller to classify.
func (r *Replayer) replayOne(ctx context.Context, captured *models.CapturedRequest) (int, error) {
	var body *bytes.Reader
	if len(captured.Body) > 0 {
		body = bytes.NewReader(captured.Body)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, captured.Method, captured.URL, body)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrReplayFailed, "rebuild request", err)
	}
	for name, value := range captured.Headers {
		req.Header.Set(name, value)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrReplayFailed, "replay request", err)
	}
	resp.Body.Close()

	if resp.StatusCode >= 500 {
		return resp.StatusCode, apperrors.New(apperrors.ErrReplayFailed,
			"server returned "+resp.Status)
	}
	return resp.StatusCode, nil
}

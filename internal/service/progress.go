package service

import (
	"context"
	"sync"
	"time"

	"github.com/timmy/vibesearch/internal/domain"
)

// DefaultStreamInterval is how often a progress stream re-checks state
// when no change notification arrives.
const DefaultStreamInterval = 300 * time.Millisecond

// Progress event names.
const (
	EventProgress = "progress"
	EventComplete = "complete"
	EventError    = "error"
)

// ProgressEvent is one message on a progress stream.
type ProgressEvent struct {
	Name  string
	State domain.RunState
}

// RunTracker owns the RunState of one pipeline. Schedulers mutate it;
// any number of streams and status calls read snapshots.
type RunTracker struct {
	interval time.Duration

	mu       sync.Mutex
	state    domain.RunState
	finished domain.RunState // terminal snapshot of the latest finished run
	changed  chan struct{}
}

// NewRunTracker creates an idle tracker for pipeline.
func NewRunTracker(pipeline domain.Pipeline) *RunTracker {
	return &RunTracker{
		interval: DefaultStreamInterval,
		state:    domain.RunState{Pipeline: pipeline, Status: domain.RunIdle, Items: []domain.ItemSummary{}},
		changed:  make(chan struct{}),
	}
}

// SetInterval overrides the stream wake-up interval.
func (t *RunTracker) SetInterval(d time.Duration) {
	if d > 0 {
		t.interval = d
	}
}

// Running reports whether a run is in progress.
func (t *RunTracker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Status == domain.RunRunning
}

// Begin resets the state for a new run of total items.
func (t *RunTracker) Begin(runID string, total int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.Status == domain.RunRunning {
		return ErrRunInProgress
	}
	now := time.Now()
	t.state = domain.RunState{
		RunID:     runID,
		Pipeline:  t.state.Pipeline,
		Status:    domain.RunRunning,
		Total:     total,
		Items:     []domain.ItemSummary{},
		StartedAt: &now,
	}
	t.notifyLocked()
	return nil
}

// SetTotal updates the expected item count of a run whose size is discovered as it goes.
func (t *RunTracker) SetTotal(total int) {
	t.mu.Lock()
	t.state.Total = total
	t.notifyLocked()
	t.mu.Unlock()
}

// ItemStarted records that work on item began.
func (t *RunTracker) ItemStarted(item domain.ItemSummary) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.Active++
	t.state.Items = append(t.state.Items, item)
	it := item
	t.state.Item = &it
	t.notifyLocked()
}

// ItemFinished records the outcome of an item started with ItemStarted.
// It decrements active and advances current exactly once.
func (t *RunTracker) ItemFinished(id string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, it := range t.state.Items {
		if it.ID == id {
			t.state.Items = append(t.state.Items[:i:i], t.state.Items[i+1:]...)
			if t.state.Active > 0 {
				t.state.Active--
			}
			break
		}
	}
	t.countLocked(ok)
}

// Count advances current for an item that was never marked started.
func (t *RunTracker) Count(ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.countLocked(ok)
}

func (t *RunTracker) countLocked(ok bool) {
	t.state.Current++
	if ok {
		t.state.Success++
	} else {
		t.state.Failed++
	}
	t.notifyLocked()
}

// Complete marks the run finished and returns its final snapshot.
func (t *RunTracker) Complete() domain.RunState {
	return t.finish(domain.RunComplete, "")
}

// Fail marks the run aborted with message and returns its final snapshot.
func (t *RunTracker) Fail(message string) domain.RunState {
	return t.finish(domain.RunError, message)
}

func (t *RunTracker) finish(status domain.RunStatus, message string) domain.RunState {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.Status == domain.RunRunning {
		now := time.Now()
		t.state.Status = status
		t.state.Message = message
		t.state.Active = 0
		t.state.Items = []domain.ItemSummary{}
		t.state.FinishedAt = &now
		t.finished = t.snapshotLocked()
		t.notifyLocked()
	}
	return t.snapshotLocked()
}

// Snapshot returns a copy of the current state.
func (t *RunTracker) Snapshot() domain.RunState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *RunTracker) snapshotLocked() domain.RunState {
	s := t.state
	s.Items = append([]domain.ItemSummary{}, t.state.Items...)
	if t.state.Item != nil {
		it := *t.state.Item
		s.Item = &it
	}
	return s
}

// notifyLocked wakes every waiting stream by closing the current channel.
func (t *RunTracker) notifyLocked() {
	close(t.changed)
	t.changed = make(chan struct{})
}

func (t *RunTracker) watch() (domain.RunState, domain.RunState, <-chan struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked(), t.finished, t.changed
}

// Watch streams progress events until the run reaches a terminal state or
// ctx is cancelled. A progress event is sent whenever current differs from
// the last one sent, so current never goes backwards on a stream. Exactly one
// terminal event (complete or error) is sent before the channel closes.
//
// A stream follows the first run it observes. If that run finishes and a new
// one begins between two wake-ups, the stream still ends with the finished
// run's terminal snapshot.
func (t *RunTracker) Watch(ctx context.Context) <-chan ProgressEvent {
	out := make(chan ProgressEvent, 1)

	go func() {
		defer close(out)

		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()

		lastCurrent := -1
		runID := ""
		for {
			snap, finished, changed := t.watch()

			if runID == "" {
				runID = snap.RunID
			} else if snap.RunID != runID && finished.RunID == runID {
				snap = finished
			}

			if snap.Current != lastCurrent {
				lastCurrent = snap.Current
				if !send(ctx, out, ProgressEvent{Name: EventProgress, State: snap}) {
					return
				}
			}

			switch snap.Status {
			case domain.RunComplete:
				send(ctx, out, ProgressEvent{Name: EventComplete, State: snap})
				return
			case domain.RunError:
				send(ctx, out, ProgressEvent{Name: EventError, State: snap})
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-changed:
			case <-ticker.C:
			}
		}
	}()

	return out
}

func send(ctx context.Context, out chan<- ProgressEvent, ev ProgressEvent) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

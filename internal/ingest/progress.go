package ingest

import (
	"sync"

	"github.com/keiyakuhq/keiyaku/internal/models"
)

// tracker is the single owner of the progress snapshot. Every field is
// guarded by one mutex so a poller never observes a torn update, and
// completed is monotonically non-decreasing within a run.
type tracker struct {
	mu        sync.Mutex
	total     int
	completed int
	current   string
	errors    []models.ProcessingError
	running   bool
}

// add registers n newly enqueued documents. The first add after an idle
// period starts a fresh run and clears the previous run's counters.
func (t *tracker) add(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		t.total = 0
		t.completed = 0
		t.current = ""
		t.errors = nil
	}
	t.total += n
	t.running = true
}

// setCurrent records the document a worker just picked up.
func (t *tracker) setCurrent(docID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = docID
}

// done records a terminal outcome for one document. perr is nil on success.
func (t *tracker) done(docID string, perr *models.ProcessingError) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completed++
	if t.current == docID {
		t.current = ""
	}
	if perr != nil {
		t.errors = append(t.errors, *perr)
	}
	if t.completed >= t.total {
		t.running = false
	}
}

// snapshot returns a copy safe to hand to a concurrent poller. Safe to call
// before any work has started; it then reports an idle zero state.
func (t *tracker) snapshot() models.Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	errs := make([]models.ProcessingError, len(t.errors))
	copy(errs, t.errors)
	return models.Progress{
		Total:     t.total,
		Completed: t.completed,
		Current:   t.current,
		Errors:    errs,
		IsRunning: t.running,
	}
}

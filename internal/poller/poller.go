package poller

import (
	"context"
	"sync"
	"time"

	"github.com/nollyai/studio-server/internal/domain"
	"github.com/nollyai/studio-server/internal/infra"
)

// GetManyFunc fetches the current state of a batch of jobs.
type GetManyFunc func(ctx context.Context, ids []string) ([]*domain.Job, error)

// Watcher observes jobs until they reach a terminal status. All active
// watches share one ticker: each tick issues a single batched fetch no matter
// how many jobs are being watched, so many concurrent watches never multiply
// timers or queries.
type Watcher struct {
	fetch    GetManyFunc
	interval time.Duration
	logger   infra.Logger

	mu      sync.Mutex
	watches map[string][]*watch
	stop    context.CancelFunc
	running bool
}

type watch struct {
	jobID      string
	onUpdate   func(*domain.Job)
	onTerminal func(*domain.Job)
}

func NewWatcher(fetch GetManyFunc, interval time.Duration, logger infra.Logger) *Watcher {
	if interval <= 0 {
		interval = 4 * time.Second
	}
	return &Watcher{
		fetch:    fetch,
		interval: interval,
		logger:   logger,
		watches:  make(map[string][]*watch),
	}
}

// Watch observes one job. onUpdate fires on every observation; onTerminal
// fires exactly once when the job reaches done or error, after which the
// watch is removed. The returned cancel stops the watch early and is safe to
// call repeatedly or after the watch already finished. Either callback may be
// nil.
func (w *Watcher) Watch(jobID string, onUpdate, onTerminal func(*domain.Job)) (cancel func()) {
	entry := &watch{jobID: jobID, onUpdate: onUpdate, onTerminal: onTerminal}

	w.mu.Lock()
	w.watches[jobID] = append(w.watches[jobID], entry)
	if !w.running {
		ctx, stop := context.WithCancel(context.Background())
		w.stop = stop
		w.running = true
		go w.loop(ctx)
	}
	w.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { w.remove(entry) })
	}
}

// Active reports the number of live watches.
func (w *Watcher) Active() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	total := 0
	for _, entries := range w.watches {
		total += len(entries)
	}
	return total
}

func (w *Watcher) loop(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		w.tick(ctx)
	}
}

func (w *Watcher) tick(ctx context.Context) {
	w.mu.Lock()
	ids := make([]string, 0, len(w.watches))
	for id := range w.watches {
		ids = append(ids, id)
	}
	w.mu.Unlock()
	if len(ids) == 0 {
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, w.interval)
	jobs, err := w.fetch(fetchCtx, ids)
	cancel()
	if err != nil {
		w.logger.Error().Err(err).Msg("poller: batch fetch failed")
		return
	}

	for _, job := range jobs {
		terminal := job.Terminal()

		w.mu.Lock()
		entries := append([]*watch(nil), w.watches[job.ID]...)
		if terminal {
			delete(w.watches, job.ID)
			w.stopIfIdleLocked()
		}
		w.mu.Unlock()

		// Callbacks run outside the lock; a slow observer cannot stall
		// other watches beyond the current tick.
		for _, entry := range entries {
			if entry.onUpdate != nil {
				entry.onUpdate(job)
			}
			if terminal && entry.onTerminal != nil {
				entry.onTerminal(job)
			}
		}
	}
}

func (w *Watcher) remove(entry *watch) {
	w.mu.Lock()
	defer w.mu.Unlock()

	entries := w.watches[entry.jobID]
	for i, e := range entries {
		if e == entry {
			entries = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	if len(entries) == 0 {
		delete(w.watches, entry.jobID)
	} else {
		w.watches[entry.jobID] = entries
	}
	w.stopIfIdleLocked()
}

func (w *Watcher) stopIfIdleLocked() {
	if w.running && len(w.watches) == 0 {
		w.stop()
		w.running = false
		w.stop = nil
	}
}

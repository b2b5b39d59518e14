package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/nollyai/studio-server/internal/domain"
)

// fetchStore is a minimal job source whose statuses tests mutate directly.
type fetchStore struct {
	mu      sync.Mutex
	jobs    map[string]*domain.Job
	fetches int32
}

func newFetchStore(ids ...string) *fetchStore {
	s := &fetchStore{jobs: make(map[string]*domain.Job)}
	for _, id := range ids {
		s.jobs[id] = &domain.Job{ID: id, Status: domain.JobStatusRunning}
	}
	return s
}

func (s *fetchStore) setStatus(id string, status domain.JobStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[id].Status = status
}

func (s *fetchStore) fetch(_ context.Context, ids []string) ([]*domain.Job, error) {
	atomic.AddInt32(&s.fetches, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Job, 0, len(ids))
	for _, id := range ids {
		if job, ok := s.jobs[id]; ok {
			clone := *job
			out = append(out, &clone)
		}
	}
	return out, nil
}

func TestWatcherDeliversTerminalOnce(t *testing.T) {
	store := newFetchStore("job-1")
	w := NewWatcher(store.fetch, 5*time.Millisecond, zerolog.Nop())

	var updates, terminals int32
	done := make(chan struct{})
	cancel := w.Watch("job-1", func(*domain.Job) {
		atomic.AddInt32(&updates, 1)
	}, func(job *domain.Job) {
		if job.Status != domain.JobStatusDone {
			t.Errorf("onTerminal status = %s, want done", job.Status)
		}
		if atomic.AddInt32(&terminals, 1) == 1 {
			close(done)
		}
	})
	defer cancel()

	// a few observations while running, then flip to terminal
	time.Sleep(20 * time.Millisecond)
	store.setStatus("job-1", domain.JobStatusDone)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("onTerminal never fired")
	}

	// extra ticks after removal must not re-deliver
	time.Sleep(30 * time.Millisecond)
	if n := atomic.LoadInt32(&terminals); n != 1 {
		t.Fatalf("onTerminal fired %d times, want 1", n)
	}
	if atomic.LoadInt32(&updates) == 0 {
		t.Fatalf("onUpdate never fired while the job was running")
	}
	if w.Active() != 0 {
		t.Fatalf("Active() = %d after terminal delivery, want 0", w.Active())
	}
}

func TestWatcherSharedTickAcrossWatches(t *testing.T) {
	store := newFetchStore("job-1", "job-2", "job-3")
	w := NewWatcher(store.fetch, 10*time.Millisecond, zerolog.Nop())

	var cancels []func()
	for _, id := range []string{"job-1", "job-2", "job-3"} {
		cancels = append(cancels, w.Watch(id, nil, nil))
	}
	defer func() {
		for _, c := range cancels {
			c()
		}
	}()

	if w.Active() != 3 {
		t.Fatalf("Active() = %d, want 3", w.Active())
	}

	time.Sleep(35 * time.Millisecond)
	fetches := atomic.LoadInt32(&store.fetches)
	if fetches == 0 {
		t.Fatalf("no batch fetch happened")
	}
	// Three watches sharing one ticker issue one fetch per tick, not three.
	if fetches > 6 {
		t.Fatalf("fetch ran %d times in ~3 ticks, watches are not sharing the timer", fetches)
	}
}

func TestWatcherCancelIsIdempotent(t *testing.T) {
	store := newFetchStore("job-1")
	w := NewWatcher(store.fetch, time.Millisecond, zerolog.Nop())

	cancelA := w.Watch("job-1", nil, nil)
	cancelB := w.Watch("job-1", nil, nil)
	if w.Active() != 2 {
		t.Fatalf("Active() = %d, want 2", w.Active())
	}

	cancelA()
	cancelA()
	if w.Active() != 1 {
		t.Fatalf("Active() after double cancel = %d, want 1", w.Active())
	}
	cancelB()
	if w.Active() != 0 {
		t.Fatalf("Active() = %d after all cancels, want 0", w.Active())
	}
}

func TestWatcherRestartsAfterIdle(t *testing.T) {
	store := newFetchStore("job-1")
	w := NewWatcher(store.fetch, 5*time.Millisecond, zerolog.Nop())

	cancel := w.Watch("job-1", nil, nil)
	cancel()
	if w.Active() != 0 {
		t.Fatalf("Active() = %d, want 0", w.Active())
	}

	// a fresh watch after idling must observe again
	done := make(chan struct{})
	var once sync.Once
	cancel = w.Watch("job-1", func(*domain.Job) {
		once.Do(func() { close(done) })
	}, nil)
	defer cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("watch after idle never observed the job")
	}
}

package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// epochTicker advances an engine's epoch counter while at least one call
// holds a lease. A single goroutine is started on first use and parks when
// the last lease is released, so repeated iterations reuse it.
type epochTicker struct {
	increment func()
	wake      chan struct{}
	done      chan struct{}
	period    time.Duration
	ticks     atomic.Uint64
	mu        sync.Mutex
	leases    int
	started   bool
	closed    bool
}

func newEpochTicker(period time.Duration, increment func()) *epochTicker {
	return &epochTicker{
		increment: increment,
		period:    period,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

// acquire starts ticking if idle and returns the function that releases the
// lease. Release is idempotent. ok is false once the ticker is closed, since
// nothing will advance the epoch past a deadline armed after that point.
func (t *epochTicker) acquire() (release func(), ok bool) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return func() {}, false
	}
	t.leases++
	if !t.started {
		t.started = true
		go t.loop()
		Logger().Debug("epoch ticker started", zap.Duration("period", t.period))
	}
	if t.leases == 1 {
		select {
		case t.wake <- struct{}{}:
		default:
		}
	}
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			t.leases--
			t.mu.Unlock()
		})
	}, true
}

func (t *epochTicker) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *epochTicker) idle() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.leases == 0
}

func (t *epochTicker) loop() {
	for {
		select {
		case <-t.done:
			return
		case <-t.wake:
		}

		ticker := time.NewTicker(t.period)
	tick:
		for {
			select {
			case <-t.done:
				ticker.Stop()
				return
			case <-ticker.C:
				t.increment()
				t.ticks.Add(1)
				if t.idle() {
					ticker.Stop()
					break tick
				}
			}
		}
	}
}

// Ticks returns how many times the epoch was advanced.
func (t *epochTicker) Ticks() uint64 {
	return t.ticks.Load()
}

func (t *epochTicker) close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	close(t.done)
}

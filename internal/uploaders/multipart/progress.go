package multipart

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/tanq16/rfidrop/internal/utils"
)

// Aggregator merges per-part byte counts into job-level snapshots
type Aggregator struct {
	mu        sync.Mutex
	clock     Clock
	throttle  time.Duration
	emit      func(utils.ProgressSnapshot)
	plan      Plan
	sizes     map[int]int64
	parts     map[int]int64
	completed map[int]bool
	start     time.Time
	lastEmit  time.Time
	emitted   bool
	dirty     bool
	closed    bool
}

func NewAggregator(plan Plan, clock Clock, emit func(utils.ProgressSnapshot)) *Aggregator {
	if clock == nil {
		clock = SystemClock
	}
	sizes := make(map[int]int64, len(plan.Ranges))
	for _, r := range plan.Ranges {
		sizes[r.Number] = r.Size()
	}
	return &Aggregator{
		clock:     clock,
		throttle:  utils.ProgressThrottle,
		emit:      emit,
		plan:      plan,
		sizes:     sizes,
		parts:     make(map[int]int64, len(plan.Ranges)),
		completed: make(map[int]bool, len(plan.Ranges)),
		start:     clock.Now(),
	}
}

// Update records bytes sent for a part in the current attempt. Values lower than
// what was already seen for the part are ignored.
func (a *Aggregator) Update(partNumber int, sent int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || a.completed[partNumber] {
		return
	}
	if size, ok := a.sizes[partNumber]; ok {
		sent = min(sent, size)
	}
	if sent > a.parts[partNumber] {
		a.parts[partNumber] = sent
		a.dirty = true
	}
	a.maybeEmitLocked()
}

// UpdateFunc returns an Update callback that drops reports once ctx is done
func (a *Aggregator) UpdateFunc(ctx context.Context) ProgressFunc {
	return func(partNumber int, sent int64) {
		if ctx.Err() != nil {
			return
		}
		a.Update(partNumber, sent)
	}
}

// CompletePart pins the part to its full size. Its emission is throttled like any
// update; a pending change goes out with the next eligible update or with Finish.
func (a *Aggregator) CompletePart(partNumber int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || a.completed[partNumber] {
		return
	}
	a.completed[partNumber] = true
	a.parts[partNumber] = a.sizes[partNumber]
	a.dirty = true
	a.maybeEmitLocked()
}

// Finish emits the final state and stops further emissions
func (a *Aggregator) Finish() utils.ProgressSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	snapshot := a.snapshotLocked(a.clock.Now())
	if !a.closed {
		a.closed = true
		if a.emit != nil {
			a.emit(snapshot)
		}
	}
	return snapshot
}

// Reset drops all state and emits a zeroed snapshot with unknown ETA
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.closed = true
	clear(a.parts)
	clear(a.completed)
	if a.emit != nil {
		a.emit(utils.ProgressSnapshot{Total: a.plan.FileSize, TotalParts: a.plan.PartCount})
	}
}

// Abort drops all state without emitting anything, now or later
func (a *Aggregator) Abort() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	clear(a.parts)
	clear(a.completed)
}

func (a *Aggregator) Snapshot() utils.ProgressSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked(a.clock.Now())
}

func (a *Aggregator) maybeEmitLocked() {
	if !a.dirty {
		return
	}
	now := a.clock.Now()
	if a.emitted && now.Sub(a.lastEmit) < a.throttle {
		return
	}
	a.emitLocked(now)
}

func (a *Aggregator) emitLocked(now time.Time) {
	a.lastEmit = now
	a.emitted = true
	a.dirty = false
	if a.emit != nil {
		a.emit(a.snapshotLocked(now))
	}
}

func (a *Aggregator) snapshotLocked(now time.Time) utils.ProgressSnapshot {
	var total int64
	for _, sent := range a.parts {
		total += sent
	}
	size := a.plan.FileSize
	elapsed := now.Sub(a.start)
	snapshot := utils.ProgressSnapshot{
		Transferred:    total,
		Total:          size,
		Elapsed:        elapsed,
		CompletedParts: len(a.completed),
		TotalParts:     a.plan.PartCount,
	}
	if size > 0 {
		snapshot.Percent = min(100, int(math.Round(float64(total)/float64(size)*100)))
	}
	if snapshot.CompletedParts < snapshot.TotalParts {
		snapshot.Percent = min(snapshot.Percent, 99)
	}
	if elapsed > 0 {
		snapshot.Throughput = float64(total) / elapsed.Seconds()
	}
	if snapshot.Throughput > 0 && !math.IsInf(snapshot.Throughput, 0) && !math.IsNaN(snapshot.Throughput) {
		remaining := float64(size-total) / snapshot.Throughput
		snapshot.ETA = time.Duration(remaining * float64(time.Second))
		snapshot.ETAKnown = true
	}
	return snapshot
}

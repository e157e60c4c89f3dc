package batch

import (
	"sync"
	"time"
)

// percentMultiplier is used to convert a ratio to percentage (0-100).
const percentMultiplier = 100

// Progress tracks how far a batch has run.
// It provides thread-safe access to progress metrics for UI updates.
type Progress struct {
	// Operation is the bulk operation being run.
	Operation Operation

	// TotalItems is the total number of items to process.
	TotalItems int

	// ProcessedItems is the number of items completed so far, capped at TotalItems.
	ProcessedItems int

	// TotalWindows is the number of windows the batch was split into.
	TotalWindows int

	// ProcessedWindows is the number of windows completed so far.
	ProcessedWindows int

	// WindowSize is the configured concurrency window.
	WindowSize int

	// StartTime is when processing started.
	StartTime time.Time

	// LastUpdateTime is when progress was last updated.
	LastUpdateTime time.Time

	mu sync.RWMutex
}

// NewProgress creates a new progress tracker.
func NewProgress(op Operation, totalItems, totalWindows, windowSize int) *Progress {
	now := time.Now()
	return &Progress{
		Operation:      op,
		TotalItems:     totalItems,
		TotalWindows:   totalWindows,
		WindowSize:     windowSize,
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// AddProcessed records one completed window of itemsProcessed items.
// ProcessedItems never exceeds TotalItems.
func (p *Progress) AddProcessed(itemsProcessed int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ProcessedItems = min(p.ProcessedItems+itemsProcessed, p.TotalItems)
	p.ProcessedWindows++
	p.LastUpdateTime = time.Now()
}

// Snapshot returns a thread-safe copy of the current progress state.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	elapsed := time.Since(p.StartTime)
	return ProgressSnapshot{
		Operation:        p.Operation,
		Completed:        p.ProcessedItems,
		Total:            p.TotalItems,
		ProcessedWindows: p.ProcessedWindows,
		TotalWindows:     p.TotalWindows,
		WindowSize:       p.WindowSize,
		PercentComplete:  p.percentCompleteUnsafe(),
		ElapsedTime:      elapsed,
		ItemsPerSecond:   itemsPerSecond(p.ProcessedItems, elapsed),
		Remaining:        remaining(p.ProcessedItems, p.TotalItems, elapsed),
	}
}

// ProgressSnapshot is an immutable snapshot of progress state.
type ProgressSnapshot struct {
	Operation        Operation
	Completed        int
	Total            int
	ProcessedWindows int
	TotalWindows     int
	WindowSize       int
	PercentComplete  float64
	ElapsedTime      time.Duration
	ItemsPerSecond   float64
	// Remaining extrapolates the average time per item so far. Zero until the
	// first item completes.
	Remaining time.Duration
}

// Done reports whether the snapshot marks the final update.
func (s ProgressSnapshot) Done() bool {
	return s.Completed >= s.Total
}

// percentCompleteUnsafe must be called with the lock held.
func (p *Progress) percentCompleteUnsafe() float64 {
	if p.TotalItems == 0 {
		return 0
	}
	return (float64(p.ProcessedItems) / float64(p.TotalItems)) * percentMultiplier
}

func itemsPerSecond(done int, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(done) / elapsed.Seconds()
}

func remaining(done, total int, elapsed time.Duration) time.Duration {
	if done == 0 || done >= total {
		return 0
	}
	return elapsed / time.Duration(done) * time.Duration(total-done)
}

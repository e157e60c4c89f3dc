package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openlyhq/openly/internal/logging"
)

// Common batch processing errors. ErrEmptyBatch and ErrBatchTooLarge are
// precondition violations: they are returned before any item runs.
var (
	ErrEmptyBatch      = errors.New("batch cannot be empty")
	ErrBatchTooLarge   = errors.New("batch exceeds maximum size")
	ErrNilItemFunc     = errors.New("item operation cannot be nil")
	ErrExecutorFailure = errors.New("batch executor failed")
)

// ItemFunc performs the operation for a single item.
type ItemFunc[TIn, TOut any] func(ctx context.Context, item TIn) (TOut, error)

// Processor runs one operation's batches under its Policy.
type Processor[TIn, TOut any] struct {
	// policy holds the size cap, strategy and window.
	policy Policy

	// observer is optional; nil disables notifications.
	observer Observer

	// amount is optional; nil leaves Stats.TotalAmount at zero.
	amount AmountFunc[TIn, TOut]
}

// NewProcessor creates a processor for the given policy.
func NewProcessor[TIn, TOut any](policy Policy) (*Processor[TIn, TOut], error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Processor[TIn, TOut]{policy: policy}, nil
}

// NewProcessorFor creates a processor using the built-in policy for op.
func NewProcessorFor[TIn, TOut any](op Operation) (*Processor[TIn, TOut], error) {
	policy, err := DefaultPolicy(op)
	if err != nil {
		return nil, err
	}
	return NewProcessor[TIn, TOut](policy)
}

// WithObserver sets the lifecycle observer.
func (p *Processor[TIn, TOut]) WithObserver(observer Observer) *Processor[TIn, TOut] {
	p.observer = observer
	return p
}

// WithProgressCallback sets a progress-only observer.
func (p *Processor[TIn, TOut]) WithProgressCallback(callback ProgressCallback) *Processor[TIn, TOut] {
	p.observer = ObserverFuncs{Progress: callback}
	return p
}

// WithAmount sets the function summed over successful items.
func (p *Processor[TIn, TOut]) WithAmount(amount AmountFunc[TIn, TOut]) *Processor[TIn, TOut] {
	p.amount = amount
	return p
}

// Policy returns the processor's policy.
func (p *Processor[TIn, TOut]) Policy() Policy {
	return p.policy
}

// CalculateWindows returns the window boundaries for the given item count
// as [start, end) index pairs.
func (p *Processor[TIn, TOut]) CalculateWindows(totalItems int) [][2]int {
	size := p.policy.WindowSize()
	total := calculateTotalWindows(totalItems, size)
	windows := make([][2]int, total)

	for i := range total {
		start := i * size
		end := min(start+size, totalItems)
		windows[i] = [2]int{start, end}
	}

	return windows
}

// Run executes fn for every item and returns one result per item in input
// order. Item failures are recorded in the report; Run only returns an error
// when the batch violates the policy, fn is nil, or the executor itself
// breaks (a panicking item operation).
//
// If ctx is done before a window starts, that window and every later one are
// recorded as failures carrying the context error.
func (p *Processor[TIn, TOut]) Run(ctx context.Context, items []TIn, fn ItemFunc[TIn, TOut]) (*Report[TIn, TOut], error) {
	log := logging.FromContext(ctx)
	lc := newLifecycle()
	op := p.policy.Operation

	if fn == nil {
		_ = lc.transition(StateFailed)
		return nil, ErrNilItemFunc
	}

	if err := p.policy.Check(len(items)); err != nil {
		_ = lc.transition(StateFailed)
		log.Debug().Ctx(ctx).
			Str("component", "batch").
			Str("operation", string(op)).
			Int("items", len(items)).
			Err(err).
			Msg("batch rejected")
		return nil, err
	}

	start := time.Now()
	_ = lc.transition(StateRunning)

	windows := p.CalculateWindows(len(items))
	progress := NewProgress(op, len(items), len(windows), p.policy.WindowSize())
	results := make([]ItemResult[TIn, TOut], len(items))

	log.Debug().Ctx(ctx).
		Str("component", "batch").
		Str("operation", string(op)).
		Str("strategy", p.policy.Strategy.String()).
		Int("items", len(items)).
		Int("windows", len(windows)).
		Msg("batch started")
	p.notifyStarted(op, len(items))

	for i, w := range windows {
		if ctxErr := ctx.Err(); ctxErr != nil {
			p.failRemaining(items, results, w[0], ctxErr)
			progress.AddProcessed(len(items) - w[0])
			p.notifyProgress(progress.Snapshot())
			log.Warn().Ctx(ctx).
				Str("component", "batch").
				Str("operation", string(op)).
				Int("skipped", len(items)-w[0]).
				Err(ctxErr).
				Msg("batch interrupted, remaining items marked failed")
			break
		}

		if err := p.runWindow(ctx, items, results, w[0], w[1], fn); err != nil {
			_ = lc.transition(StateFailed)
			log.Error().Ctx(ctx).
				Str("component", "batch").
				Str("operation", string(op)).
				Int("window", i).
				Err(err).
				Msg("batch executor failed")
			return nil, fmt.Errorf("%w: %s window %d: %w", ErrExecutorFailure, op, i, err)
		}

		progress.AddProcessed(w[1] - w[0])
		p.notifyProgress(progress.Snapshot())
	}

	_ = lc.transition(StateAggregating)
	stats := Aggregate(results, p.amount)
	_ = lc.transition(StateDone)

	report := &Report[TIn, TOut]{
		Operation: op,
		Results:   results,
		Stats:     stats,
		State:     lc.current,
		Duration:  time.Since(start),
	}

	log.Info().Ctx(ctx).
		Str("component", "batch").
		Str("operation", string(op)).
		Int("successful", stats.Successful).
		Int("failed", stats.Failed).
		Float64("total_amount", stats.TotalAmount).
		Dur("duration", report.Duration).
		Msg("batch finished")
	p.notifyFinished(op, stats)

	return report, nil
}

// runWindow runs items[start:end]. A single-item window runs inline; larger
// windows fan out one goroutine per item and join before returning. Each
// goroutine writes only its own results slot.
func (p *Processor[TIn, TOut]) runWindow(
	ctx context.Context,
	items []TIn,
	results []ItemResult[TIn, TOut],
	start, end int,
	fn ItemFunc[TIn, TOut],
) error {
	if end-start == 1 {
		return runItem(ctx, items, results, start, fn)
	}

	var g errgroup.Group
	for i := start; i < end; i++ {
		g.Go(func() error {
			return runItem(ctx, items, results, i, fn)
		})
	}
	return g.Wait()
}

// runItem records the outcome of items[i] in results[i]. Errors from fn are
// data; only a panic escapes as an error.
func runItem[TIn, TOut any](
	ctx context.Context,
	items []TIn,
	results []ItemResult[TIn, TOut],
	i int,
	fn ItemFunc[TIn, TOut],
) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("item %d panicked: %v", i, r)
		}
	}()

	value, itemErr := fn(ctx, items[i])
	if itemErr != nil {
		results[i] = failed[TIn, TOut](i, items[i], ErrorMessage(itemErr))
		return nil
	}
	results[i] = succeeded(i, items[i], value)
	return nil
}

func (p *Processor[TIn, TOut]) failRemaining(items []TIn, results []ItemResult[TIn, TOut], from int, cause error) {
	msg := ErrorMessage(cause)
	for i := from; i < len(items); i++ {
		results[i] = failed[TIn, TOut](i, items[i], msg)
	}
}

func (p *Processor[TIn, TOut]) notifyStarted(op Operation, total int) {
	if p.observer != nil {
		p.observer.BatchStarted(op, total)
	}
}

func (p *Processor[TIn, TOut]) notifyProgress(snapshot ProgressSnapshot) {
	if p.observer != nil {
		p.observer.BatchProgress(snapshot)
	}
}

func (p *Processor[TIn, TOut]) notifyFinished(op Operation, stats Stats) {
	if p.observer != nil {
		p.observer.BatchFinished(op, stats)
	}
}

// calculateTotalWindows calculates the number of windows needed for the given item count.
func calculateTotalWindows(totalItems, windowSize int) int {
	windows := totalItems / windowSize
	if totalItems%windowSize > 0 {
		windows++
	}
	return windows
}

package batch

// Observer receives lifecycle notifications from a Processor. It separates
// presentation (spinners, summaries, audit entries) from execution.
// Calls are made from the goroutine that called Run, never concurrently.
type Observer interface {
	// BatchStarted fires once the batch passed validation.
	BatchStarted(op Operation, total int)
	// BatchProgress fires after each item (sequential) or window (windowed).
	BatchProgress(snapshot ProgressSnapshot)
	// BatchFinished fires once with the aggregated stats.
	BatchFinished(op Operation, stats Stats)
}

// ProgressCallback is an optional callback invoked after each window.
type ProgressCallback func(snapshot ProgressSnapshot)

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Started  func(op Operation, total int)
	Progress ProgressCallback
	Finished func(op Operation, stats Stats)
}

// BatchStarted implements Observer.
func (o ObserverFuncs) BatchStarted(op Operation, total int) {
	if o.Started != nil {
		o.Started(op, total)
	}
}

// BatchProgress implements Observer.
func (o ObserverFuncs) BatchProgress(snapshot ProgressSnapshot) {
	if o.Progress != nil {
		o.Progress(snapshot)
	}
}

// BatchFinished implements Observer.
func (o ObserverFuncs) BatchFinished(op Operation, stats Stats) {
	if o.Finished != nil {
		o.Finished(op, stats)
	}
}

// MultiObserver fans notifications out to several observers in order.
type MultiObserver []Observer

// BatchStarted implements Observer.
func (m MultiObserver) BatchStarted(op Operation, total int) {
	for _, o := range m {
		o.BatchStarted(op, total)
	}
}

// BatchProgress implements Observer.
func (m MultiObserver) BatchProgress(snapshot ProgressSnapshot) {
	for _, o := range m {
		o.BatchProgress(snapshot)
	}
}

// BatchFinished implements Observer.
func (m MultiObserver) BatchFinished(op Operation, stats Stats) {
	for _, o := range m {
		o.BatchFinished(op, stats)
	}
}

// Package batch runs bulk operations over a bounded list of items.
//
// Every bulk operation has a Policy: a maximum batch size, an execution
// strategy and a concurrency window. A Processor validates the batch against
// its policy before any item is touched, then runs the items either one at a
// time (sequential) or in fixed-size windows whose items run concurrently.
//
// Key properties:
//   - One ItemResult per input, stored at the input's index
//   - A failing item never aborts its siblings; its error becomes data
//   - Only precondition violations (empty or oversized batch) return an error
//   - Progress is reported after each item (sequential) or window (windowed)
//
// The processor holds no state beyond a single Run call.
package batch

package batch

import (
	"errors"
	"fmt"
	"time"
)

// UnknownErrorMessage is recorded when a failed item carries no usable message.
const UnknownErrorMessage = "Unknown error"

// userMessenger is implemented by typed API errors that carry a message meant
// for the person who submitted the batch.
type userMessenger interface {
	UserMessage() string
}

// ErrorMessage extracts the failure message recorded for an item. A typed API
// error's message wins over the generic error text; UnknownErrorMessage is
// the fallback.
func ErrorMessage(err error) string {
	if err == nil {
		return UnknownErrorMessage
	}

	var um userMessenger
	if errors.As(err, &um) {
		if msg := um.UserMessage(); msg != "" {
			return msg
		}
	}

	if msg := err.Error(); msg != "" {
		return msg
	}
	return UnknownErrorMessage
}

// ItemResult is the outcome of one item. Input is echoed back regardless of
// outcome so callers can map a failure to the item that caused it.
type ItemResult[TIn, TOut any] struct {
	Index   int    `json:"index"`
	Input   TIn    `json:"input"`
	Success bool   `json:"success"`
	Value   TOut   `json:"value,omitempty"`
	Message string `json:"error,omitempty"`
}

// Failed reports whether the item failed.
func (r ItemResult[TIn, TOut]) Failed() bool {
	return !r.Success
}

func succeeded[TIn, TOut any](index int, in TIn, value TOut) ItemResult[TIn, TOut] {
	return ItemResult[TIn, TOut]{Index: index, Input: in, Success: true, Value: value}
}

func failed[TIn, TOut any](index int, in TIn, message string) ItemResult[TIn, TOut] {
	if message == "" {
		message = UnknownErrorMessage
	}
	return ItemResult[TIn, TOut]{Index: index, Input: in, Message: message}
}

// AmountFunc extracts the numeric payload summed over successful items.
type AmountFunc[TIn, TOut any] func(in TIn, out TOut) float64

// Stats summarises a finished batch. It is derived from the results, never stored.
type Stats struct {
	Total       int     `json:"total"`
	Successful  int     `json:"successful"`
	Failed      int     `json:"failed"`
	TotalAmount float64 `json:"totalAmount"`
}

// Aggregate reduces results into Stats. amount may be nil when the
// operation has no meaningful numeric payload.
func Aggregate[TIn, TOut any](results []ItemResult[TIn, TOut], amount AmountFunc[TIn, TOut]) Stats {
	stats := Stats{Total: len(results)}
	for _, r := range results {
		if !r.Success {
			stats.Failed++
			continue
		}
		stats.Successful++
		if amount != nil {
			stats.TotalAmount += amount(r.Input, r.Value)
		}
	}
	return stats
}

// Summary returns "successful/total".
func (s Stats) Summary() string {
	return fmt.Sprintf("%d/%d", s.Successful, s.Total)
}

// AllSucceeded reports whether no item failed.
func (s Stats) AllSucceeded() bool {
	return s.Failed == 0
}

// Report is the outcome of one Run.
type Report[TIn, TOut any] struct {
	Operation Operation               `json:"operation"`
	Results   []ItemResult[TIn, TOut] `json:"results"`
	Stats     Stats                   `json:"stats"`
	State     State                   `json:"state"`
	Duration  time.Duration           `json:"duration"`
}

// Failures returns the failed results in input order.
func (r *Report[TIn, TOut]) Failures() []ItemResult[TIn, TOut] {
	var out []ItemResult[TIn, TOut]
	for _, res := range r.Results {
		if !res.Success {
			out = append(out, res)
		}
	}
	return out
}

// FailedInputs returns the inputs of failed items, ready to be resubmitted
// as a new batch.
func (r *Report[TIn, TOut]) FailedInputs() []TIn {
	var out []TIn
	for _, res := range r.Results {
		if !res.Success {
			out = append(out, res.Input)
		}
	}
	return out
}

// Values returns the values of successful items in input order.
func (r *Report[TIn, TOut]) Values() []TOut {
	var out []TOut
	for _, res := range r.Results {
		if res.Success {
			out = append(out, res.Value)
		}
	}
	return out
}

// Package bulk applies each Openly bulk operation's policy to a list of
// requests and runs it through the batch executor.
//
// Every method validates the batch size before any request is sent and
// returns a report with one result per input, in input order. Item failures
// never abort their siblings; only a size violation or an executor failure
// is returned as an error.
package bulk

// Package api is the REST client for the Openly merchant backend.
//
// Every endpoint returns the same envelope:
//
//	{ "ok": true, "message": "...", "data": { ... }, "requestId": "..." }
//
// A non-2xx status or "ok": false is reported as *Error. Each method performs
// exactly one HTTP call; batching and concurrency live in internal/bulk.
package api

// Package telemetry defines the telemetry event model shared by the proxy
// and the persistence layer.
//
// An Event is one immutable record describing a request lifecycle
// occurrence (request start, completion, attempt failure, final failure)
// or a process lifecycle occurrence (startup, shutdown, connection state
// change). Events are correlated by RequestID: all events for one logical
// request carry the same ID, so a request's full attempt history can be
// reconstructed from the event stream alone.
//
// Persistence lives in the store subpackage; Prometheus instrumentation in
// the metrics subpackage; scheduled pruning in the retention subpackage.
package telemetry

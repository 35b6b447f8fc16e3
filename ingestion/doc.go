// Package ingestion moves log files into a sink.
//
// A Pipeline runs four stages joined by bounded queues:
//   - ListFiles discovers the input files under a root path
//   - Stager reads each file whole, one file at a time
//   - LineParser turns lines into records with a parse.Strategy
//   - Dispatcher groups records into batches and writes them to a sink.Sink
//
// Every stage closes its output queue exactly once when it has drained its
// input, so downstream stages know when to stop. Producers block when a queue
// is full and the dispatcher never runs more than MaxOutstanding sink calls at
// once, which bounds memory no matter how fast files are read.
//
// Delivery is at-least-once. Failed batches are reported in the Report and,
// when a FailureRecorder is configured, persisted for later replay.
package ingestion

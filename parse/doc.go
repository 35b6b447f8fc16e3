// Package parse turns raw delimited log lines into core.Record values.
//
// Each supported log format is a Strategy. Two formats exist today:
//   - StandardLog: primary log files, message after the 7th comma
//   - PerformanceLog: performance counters, message after the 4th comma
//
// Select one by name with ByName so the format can come from configuration.
// Parsing never panics on bad input. Lines that are not records at all are
// discarded silently; lines that look like records but carry a bad thread id
// or timestamp produce a *core.MalformedRecordError for the caller to count.
package parse

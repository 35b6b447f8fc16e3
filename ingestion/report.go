package ingestion

import (
	"sort"
	"sync"

	"github.com/poiesic/logingest/core"
)

// BatchFailure describes one batch the sink did not accept.
type BatchFailure struct {
	Seq     int   // Dispatch sequence number, starting at 1
	Size    int   // Number of records in the batch
	Err     error // *SinkError
	Records []core.Record
}

// Report is the dispatcher's account of a run.
// Every batch handed to the sink is counted as sent or failed.
type Report struct {
	BatchesSent   int
	BatchesFailed int
	RecordsSent   int
	RecordsFailed int
	Failures      []BatchFailure

	// Partial is set when the run was canceled before all input was dispatched.
	Partial bool
	// RecordsAbandoned counts buffered records never handed to the sink.
	RecordsAbandoned int
	// Err is ErrCanceled for a partial run, nil otherwise.
	Err error

	mu sync.Mutex
}

func (r *Report) recordSent(size int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.BatchesSent++
	r.RecordsSent += size
}

func (r *Report) recordFailed(f BatchFailure) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.BatchesFailed++
	r.RecordsFailed += f.Size
	r.Failures = append(r.Failures, f)
}

func (r *Report) markCanceled(abandoned int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Partial = true
	r.RecordsAbandoned += abandoned
	r.Err = ErrCanceled
}

// sortFailures orders failures by sequence number. Called once all dispatches are done.
func (r *Report) sortFailures() {
	r.mu.Lock()
	defer r.mu.Unlock()
	sort.Slice(r.Failures, func(i, j int) bool {
		return r.Failures[i].Seq < r.Failures[j].Seq
	})
}

// Batches returns the total number of batches handed to the sink.
func (r *Report) Batches() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.BatchesSent + r.BatchesFailed
}

// OK reports whether every batch was delivered and the run was not canceled.
func (r *Report) OK() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.BatchesFailed == 0 && !r.Partial
}

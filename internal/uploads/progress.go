package uploads

import "sync"

// BatchProgress combines the progress of K file uploads into one 0-100
// figure. Finished uploads contribute their full 1/K share; at most the
// in-flight remainder contributes fractionally. The figure never decreases
// within a batch regardless of upload completion order.
type BatchProgress struct {
	mu        sync.Mutex
	total     int
	completed int
	// inflight holds the byte fraction (0..1) of each unfinished upload,
	// keyed by the slot index the pipeline assigned.
	inflight map[int]float64
	last     float64
}

// NewBatchProgress sizes the aggregator for total file uploads. A batch of
// zero uploads is complete from the start.
func NewBatchProgress(total int) *BatchProgress {
	bp := &BatchProgress{total: total, inflight: make(map[int]float64)}
	if total == 0 {
		bp.last = 100
	}
	return bp
}

// Update records the byte progress of one upload slot and returns the new
// aggregate percentage.
func (bp *BatchProgress) Update(slot int, uploadedBytes, totalBytes int64) float64 {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	if totalBytes > 0 {
		f := float64(uploadedBytes) / float64(totalBytes)
		if f > 1 {
			f = 1
		}
		bp.inflight[slot] = f
	}
	return bp.recompute()
}

// Complete marks one upload slot finished and returns the new aggregate
// percentage.
func (bp *BatchProgress) Complete(slot int) float64 {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	delete(bp.inflight, slot)
	bp.completed++
	return bp.recompute()
}

// Percent returns the current aggregate percentage.
func (bp *BatchProgress) Percent() float64 {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.last
}

// Done reports whether every upload in the batch has completed.
func (bp *BatchProgress) Done() bool {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.completed >= bp.total
}

func (bp *BatchProgress) recompute() float64 {
	if bp.total == 0 {
		return bp.last
	}
	pct := float64(bp.completed) / float64(bp.total) * 100
	for _, f := range bp.inflight {
		pct += f / float64(bp.total) * 100
	}
	if pct > 100 {
		pct = 100
	}
	// Monotonic within the batch.
	if pct < bp.last {
		return bp.last
	}
	bp.last = pct
	return pct
}

// Package workers fans independent per-pixel work out over goroutines.
package workers

import (
	"runtime"
	"sync"
)

// Count returns n when positive, otherwise the number of CPUs.
func Count(n int) int {
	if n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// ForEachChunk splits [0, total) into at most workers contiguous chunks
// and calls fn(start, end) for each chunk on its own goroutine. It waits
// for every chunk and returns the first error reported.
func ForEachChunk(total, workers int, fn func(start, end int) error) error {
	if total <= 0 {
		return nil
	}
	workers = Count(workers)
	if workers > total {
		workers = total
	}
	chunk := (total + workers - 1) / workers

	// Collect results from the chunk goroutines
	resultChan := make(chan error, workers)
	var wg sync.WaitGroup
	for start := 0; start < total; start += chunk {
		end := start + chunk
		if end > total {
			end = total
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			resultChan <- fn(start, end)
		}(start, end)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var firstErr error
	for err := range resultChan {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ForEach calls fn(i) for every i in [0, total) using ForEachChunk.
func ForEach(total, workers int, fn func(i int) error) error {
	return ForEachChunk(total, workers, func(start, end int) error {
		for i := start; i < end; i++ {
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	})
}

// ProgressCallback is a function that reports progress of a fan-out.
type ProgressCallback func(completed, total int, message string)

// Progress counts completed items across goroutines and forwards the
// count to a ProgressCallback. A nil callback makes it a no-op.
type Progress struct {
	mu        sync.Mutex
	completed int
	total     int
	message   string
	callback  ProgressCallback
}

// NewProgress returns a counter for total items.
func NewProgress(total int, message string, callback ProgressCallback) *Progress {
	return &Progress{total: total, message: message, callback: callback}
}

// Add records n more completed items.
func (p *Progress) Add(n int) {
	if p == nil || p.callback == nil {
		return
	}
	p.mu.Lock()
	p.completed += n
	completed := p.completed
	p.mu.Unlock()
	p.callback(completed, p.total, p.message)
}

package batch

import (
	"sync"
	"time"
)

const percentMultiplier = 100

// Progress tracks how far a block run has come.
// All methods are safe for concurrent use.
type Progress struct {
	// TotalItems is the total number of items to process.
	TotalItems int

	// ProcessedItems is the number of items in completed blocks.
	ProcessedItems int

	// TotalBatches is the total number of blocks.
	TotalBatches int

	// ProcessedBatches is the number of completed blocks.
	ProcessedBatches int

	// BatchSize is the configured block size.
	BatchSize int

	// StartTime is when processing started.
	StartTime time.Time

	// LastUpdateTime is when a block last completed.
	LastUpdateTime time.Time

	now func() time.Time
	mu  sync.RWMutex
}

// NewProgress creates a new progress tracker.
func NewProgress(totalItems, totalBatches, batchSize int) *Progress {
	return newProgressWithClock(totalItems, totalBatches, batchSize, time.Now)
}

func newProgressWithClock(totalItems, totalBatches, batchSize int, now func() time.Time) *Progress {
	start := now()
	return &Progress{
		TotalItems:     totalItems,
		TotalBatches:   totalBatches,
		BatchSize:      batchSize,
		StartTime:      start,
		LastUpdateTime: start,
		now:            now,
	}
}

// AddProcessed records one completed block of itemsProcessed items.
func (p *Progress) AddProcessed(itemsProcessed int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ProcessedItems += itemsProcessed
	p.ProcessedBatches++
	p.LastUpdateTime = p.now()
}

// PercentComplete returns the completion percentage (0-100).
// An empty run is reported as 100% complete.
func (p *Progress) PercentComplete() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.percentCompleteLocked()
}

// IsComplete reports whether every block has been processed.
func (p *Progress) IsComplete() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ProcessedBatches >= p.TotalBatches
}

// ElapsedTime returns the time elapsed since processing started.
func (p *Progress) ElapsedTime() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.now().Sub(p.StartTime)
}

// EstimatedTimeRemaining extrapolates from the average time per completed item.
// Returns 0 until at least one block has completed.
func (p *Progress) EstimatedTimeRemaining() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.etaLocked()
}

// ItemsPerSecond returns the processing rate in items per second.
func (p *Progress) ItemsPerSecond() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.itemsPerSecondLocked()
}

// Snapshot returns a copy of the current progress state.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return ProgressSnapshot{
		TotalItems:       p.TotalItems,
		ProcessedItems:   p.ProcessedItems,
		TotalBatches:     p.TotalBatches,
		ProcessedBatches: p.ProcessedBatches,
		BatchSize:        p.BatchSize,
		StartTime:        p.StartTime,
		LastUpdateTime:   p.LastUpdateTime,
		PercentComplete:  p.percentCompleteLocked(),
		ElapsedTime:      p.now().Sub(p.StartTime),
		ItemsPerSecond:   p.itemsPerSecondLocked(),
		Remaining:        p.etaLocked(),
	}
}

// ProgressSnapshot is an immutable snapshot of progress state.
type ProgressSnapshot struct {
	TotalItems       int
	ProcessedItems   int
	TotalBatches     int
	ProcessedBatches int
	BatchSize        int
	StartTime        time.Time
	LastUpdateTime   time.Time
	PercentComplete  float64
	ElapsedTime      time.Duration
	ItemsPerSecond   float64
	Remaining        time.Duration
}

func (p *Progress) percentCompleteLocked() float64 {
	if p.TotalItems == 0 {
		return percentMultiplier
	}
	return (float64(p.ProcessedItems) / float64(p.TotalItems)) * percentMultiplier
}

func (p *Progress) itemsPerSecondLocked() float64 {
	elapsed := p.now().Sub(p.StartTime).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(p.ProcessedItems) / elapsed
}

func (p *Progress) etaLocked() time.Duration {
	if p.ProcessedItems == 0 {
		return 0
	}
	elapsed := p.now().Sub(p.StartTime)
	perItem := elapsed / time.Duration(p.ProcessedItems)
	return perItem * time.Duration(p.TotalItems-p.ProcessedItems)
}

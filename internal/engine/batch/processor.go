package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Default block configuration.
const (
	// DefaultBatchSize is the default number of items per block.
	DefaultBatchSize = 1000

	// MinBatchSize is the minimum allowed block size.
	MinBatchSize = 1
)

// Common batch processing errors.
var (
	ErrInvalidBatchSize = errors.New("batch size must be at least 1")
	ErrNilCallback      = errors.New("batch callback cannot be nil")
)

// BatchCallback is a function that processes a single block of items.
// It receives the block items and the block index (0-based), and returns an error if processing fails.
//
//nolint:revive // BatchCallback is the canonical name for this exported type.
type BatchCallback[T any] func(ctx context.Context, batch []T, batchIndex int) error

// ProgressCallback is an optional callback invoked after each block is processed.
type ProgressCallback func(progress *Progress)

// Processor splits data into fixed-size blocks and processes them sequentially.
type Processor[T any] struct {
	// batchSize is the number of items per block.
	batchSize int

	// onProgress is an optional callback for progress updates.
	onProgress ProgressCallback

	// mu protects progress updates.
	mu sync.Mutex
}

// NewProcessor creates a new block processor with the given block size.
func NewProcessor[T any](batchSize int) (*Processor[T], error) {
	if batchSize < MinBatchSize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBatchSize, batchSize)
	}

	return &Processor[T]{
		batchSize: batchSize,
	}, nil
}

// NewProcessorWithDefaults creates a processor with the default block size.
func NewProcessorWithDefaults[T any]() *Processor[T] {
	return &Processor[T]{
		batchSize: DefaultBatchSize,
	}
}

// WithProgressCallback sets a progress callback for the processor.
func (p *Processor[T]) WithProgressCallback(callback ProgressCallback) *Processor[T] {
	p.onProgress = callback
	return p
}

// Process processes items block by block using the provided callback.
// Processing is sequential and stops on the first error. An empty item list
// is not an error: no blocks run.
func (p *Processor[T]) Process(ctx context.Context, items []T, callback BatchCallback[T]) error {
	if callback == nil {
		return ErrNilCallback
	}

	bounds := p.CalculateBatches(len(items))
	progress := NewProgress(len(items), len(bounds), p.batchSize)

	for batchIndex, b := range bounds {
		// Check for context cancellation
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch := items[b[0]:b[1]]

		if err := callback(ctx, batch, batchIndex); err != nil {
			return fmt.Errorf("block %d failed: %w", batchIndex, err)
		}

		p.updateProgress(progress, len(batch))

		if p.onProgress != nil {
			p.onProgress(progress)
		}
	}

	return nil
}

// Split returns the blocks of items in order. The blocks share items' backing array.
func (p *Processor[T]) Split(items []T) [][]T {
	bounds := p.CalculateBatches(len(items))
	blocks := make([][]T, len(bounds))
	for i, b := range bounds {
		blocks[i] = items[b[0]:b[1]:b[1]]
	}
	return blocks
}

// GetBatchSize returns the configured block size.
func (p *Processor[T]) GetBatchSize() int {
	return p.batchSize
}

// TotalBatches returns how many blocks totalItems items occupy.
func (p *Processor[T]) TotalBatches(totalItems int) int {
	return p.calculateTotalBatches(totalItems)
}

// CalculateBatches returns the block boundaries for the given item count.
// Returns a slice of [start, end) index pairs.
func (p *Processor[T]) CalculateBatches(totalItems int) [][2]int {
	totalBatches := p.calculateTotalBatches(totalItems)
	batches := make([][2]int, totalBatches)

	for i := 0; i < totalBatches; i++ {
		start := i * p.batchSize
		end := min(start+p.batchSize, totalItems)
		batches[i] = [2]int{start, end}
	}

	return batches
}

// calculateTotalBatches is ceil(totalItems / batchSize).
func (p *Processor[T]) calculateTotalBatches(totalItems int) int {
	if totalItems <= 0 {
		return 0
	}
	batches := totalItems / p.batchSize
	if totalItems%p.batchSize > 0 {
		batches++
	}
	return batches
}

func (p *Processor[T]) updateProgress(progress *Progress, itemsProcessed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	progress.AddProcessed(itemsProcessed)
}

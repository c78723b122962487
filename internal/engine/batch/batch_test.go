package batch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeItems(n int) []string {
	items := make([]string, n)
	for i := range items {
		items[i] = fmt.Sprintf("item-%05d.wav", i)
	}
	return items
}

func TestProcessor_CalculateBatches(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		size      int
		wantCount int
		wantLast  [2]int
	}{
		{name: "zero items", total: 0, size: 1000, wantCount: 0},
		{name: "one item", total: 1, size: 1000, wantCount: 1, wantLast: [2]int{0, 1}},
		{name: "exactly one block", total: 1000, size: 1000, wantCount: 1, wantLast: [2]int{0, 1000}},
		{name: "one over", total: 1001, size: 1000, wantCount: 2, wantLast: [2]int{1000, 1001}},
		{name: "two and a half", total: 2500, size: 1000, wantCount: 3, wantLast: [2]int{2000, 2500}},
		{name: "block size one", total: 3, size: 1, wantCount: 3, wantLast: [2]int{2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProcessor[string](tt.size)
			require.NoError(t, err)

			bounds := p.CalculateBatches(tt.total)
			require.Len(t, bounds, tt.wantCount)
			assert.Equal(t, tt.wantCount, p.TotalBatches(tt.total))
			if tt.wantCount == 0 {
				return
			}
			assert.Equal(t, tt.wantLast, bounds[len(bounds)-1])

			// Contiguous, non-overlapping, full-size except the last.
			for i, b := range bounds {
				assert.Equal(t, i*tt.size, b[0])
				if i < len(bounds)-1 {
					assert.Equal(t, tt.size, b[1]-b[0])
				}
			}
		})
	}
}

func TestProcessor_SplitReconstructsInput(t *testing.T) {
	for _, n := range []int{0, 1, 999, 1000, 1001, 2500, 3000} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			p := NewProcessorWithDefaults[string]()
			items := makeItems(n)

			blocks := p.Split(items)

			var joined []string
			for i, block := range blocks {
				assert.NotEmpty(t, block)
				assert.LessOrEqual(t, len(block), DefaultBatchSize, "block %d too large", i)
				joined = append(joined, block...)
			}
			assert.Len(t, joined, n)
			if n > 0 {
				assert.Equal(t, items, joined)
			}
		})
	}
}

func TestProcessor_SplitDoesNotAliasOnAppend(t *testing.T) {
	p, err := NewProcessor[string](2)
	require.NoError(t, err)
	items := makeItems(4)

	blocks := p.Split(items)
	_ = append(blocks[0], "intruder")

	assert.Equal(t, "item-00002.wav", items[2])
}

func TestProcessor_Process(t *testing.T) {
	items := makeItems(25)

	t.Run("Sequential", func(t *testing.T) {
		p, err := NewProcessor[string](10)
		require.NoError(t, err)

		var order []int
		var sizes []int
		callback := func(_ context.Context, batch []string, batchIndex int) error {
			order = append(order, batchIndex)
			sizes = append(sizes, len(batch))
			return nil
		}

		require.NoError(t, p.Process(context.Background(), items, callback))
		assert.Equal(t, []int{0, 1, 2}, order)
		assert.Equal(t, []int{10, 10, 5}, sizes)
	})

	t.Run("ProgressCallback", func(t *testing.T) {
		p, err := NewProcessor[string](10)
		require.NoError(t, err)

		var snaps []ProgressSnapshot
		p.WithProgressCallback(func(progress *Progress) {
			snaps = append(snaps, progress.Snapshot())
		})

		err = p.Process(context.Background(), items, func(context.Context, []string, int) error { return nil })
		require.NoError(t, err)
		require.Len(t, snaps, 3)
		assert.Equal(t, 10, snaps[0].ProcessedItems)
		assert.Equal(t, 25, snaps[2].ProcessedItems)
		assert.Equal(t, 3, snaps[2].ProcessedBatches)
	})

	t.Run("ErrorHandling", func(t *testing.T) {
		p, err := NewProcessor[string](10)
		require.NoError(t, err)
		sentinel := errors.New("fail")

		calls := 0
		callback := func(_ context.Context, _ []string, batchIndex int) error {
			calls++
			if batchIndex == 1 {
				return sentinel
			}
			return nil
		}

		err = p.Process(context.Background(), items, callback)
		require.Error(t, err)
		assert.ErrorIs(t, err, sentinel)
		assert.Contains(t, err.Error(), "block 1 failed")
		assert.Equal(t, 2, calls, "processing must stop at the failing block")
	})

	t.Run("EmptyItems", func(t *testing.T) {
		p := NewProcessorWithDefaults[string]()
		called := false
		err := p.Process(context.Background(), nil, func(context.Context, []string, int) error {
			called = true
			return nil
		})
		require.NoError(t, err)
		assert.False(t, called)
	})

	t.Run("NilCallback", func(t *testing.T) {
		p := NewProcessorWithDefaults[string]()
		assert.Equal(t, ErrNilCallback, p.Process(context.Background(), items, nil))
	})

	t.Run("Cancelled", func(t *testing.T) {
		p, err := NewProcessor[string](10)
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())

		calls := 0
		err = p.Process(ctx, items, func(context.Context, []string, int) error {
			calls++
			cancel()
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})

	t.Run("InvalidBatchSize", func(t *testing.T) {
		_, err := NewProcessor[string](0)
		assert.ErrorIs(t, err, ErrInvalidBatchSize)
		_, err = NewProcessor[string](-5)
		assert.ErrorIs(t, err, ErrInvalidBatchSize)

		p, err := NewProcessor[string](5000)
		require.NoError(t, err)
		assert.Equal(t, 5000, p.GetBatchSize())
	})
}

func TestProgress(t *testing.T) {
	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	now := func() time.Time { return clock }

	p := newProgressWithClock(100, 10, 10, now)
	assert.Equal(t, 0.0, p.PercentComplete())
	assert.False(t, p.IsComplete())
	assert.Equal(t, time.Duration(0), p.EstimatedTimeRemaining())
	assert.Equal(t, 0.0, p.ItemsPerSecond())

	clock = clock.Add(10 * time.Second)
	p.AddProcessed(50)
	assert.Equal(t, 50.0, p.PercentComplete())
	assert.Equal(t, 1, p.ProcessedBatches)
	assert.Equal(t, 10*time.Second, p.ElapsedTime())
	assert.Equal(t, 5.0, p.ItemsPerSecond())
	assert.Equal(t, 10*time.Second, p.EstimatedTimeRemaining())

	p.AddProcessed(50)
	assert.Equal(t, 100.0, p.PercentComplete())

	t.Run("Snapshot", func(t *testing.T) {
		snap := p.Snapshot()
		assert.Equal(t, 100, snap.TotalItems)
		assert.Equal(t, 100, snap.ProcessedItems)
		assert.Equal(t, 2, snap.ProcessedBatches)
		assert.Equal(t, clock, snap.LastUpdateTime)
		assert.Equal(t, time.Duration(0), snap.Remaining)
	})

	t.Run("EmptyRun", func(t *testing.T) {
		empty := NewProgress(0, 0, DefaultBatchSize)
		assert.True(t, empty.IsComplete())
		assert.Equal(t, 100.0, empty.PercentComplete())
	})
}

package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/rshade/alignblocks/internal/engine/batch"
	"github.com/rshade/alignblocks/internal/logging"
)

// FixedArgCount is the number of leading arguments forwarded unchanged to every invocation.
const FixedArgCount = 3

// Reporter receives block lifecycle events for the diagnostic stream.
type Reporter interface {
	// BlockStarted is called once per block, before its first attempt.
	BlockStarted(index, total int)

	// AttemptFailed is called after every failed attempt, before the retry.
	AttemptFailed(index, attempt int, err error)

	// BlockSucceeded is called after a block's results have been appended.
	BlockSucceeded(progress batch.ProgressSnapshot)
}

// NopReporter discards every event.
type NopReporter struct{}

func (NopReporter) BlockStarted(int, int)                 {}
func (NopReporter) AttemptFailed(int, int, error)         {}
func (NopReporter) BlockSucceeded(batch.ProgressSnapshot) {}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	// Program is argv[0] of every invocation.
	Program string

	// BlockSize is the maximum number of items per invocation.
	BlockSize int

	// MaxAttempts caps attempts per block; 0 retries forever.
	MaxAttempts int

	// Classify decides whether an attempt failed. Defaults to DefaultClassifier.
	Classify FailureClassifier

	// Reporter receives progress events. Defaults to NopReporter.
	Reporter Reporter
}

// Runner invokes the aligner once per block and concatenates the results.
type Runner struct {
	program     string
	maxAttempts int
	executor    Executor
	classify    FailureClassifier
	reporter    Reporter
	processor   *batch.Processor[string]
}

// NewRunner validates cfg and returns a Runner that executes blocks with exec.
func NewRunner(cfg RunnerConfig, exec Executor) (*Runner, error) {
	if exec == nil {
		return nil, ErrNilExecutor
	}
	if cfg.Program == "" {
		return nil, ErrEmptyProgram
	}
	if cfg.MaxAttempts < 0 {
		return nil, fmt.Errorf("max attempts must be >= 0, got %d", cfg.MaxAttempts)
	}

	processor, err := batch.NewProcessor[string](cfg.BlockSize)
	if err != nil {
		return nil, err
	}

	classify := cfg.Classify
	if classify == nil {
		classify = DefaultClassifier
	}
	reporter := cfg.Reporter
	if reporter == nil {
		reporter = NopReporter{}
	}

	return &Runner{
		program:     cfg.Program,
		maxAttempts: cfg.MaxAttempts,
		executor:    exec,
		classify:    classify,
		reporter:    reporter,
		processor:   processor,
	}, nil
}

// Run processes blockArgs in blocks and returns the concatenated per-item results
// in input order. The returned slice is never nil.
//
// Failed invocations are retried in place until they succeed (or MaxAttempts is
// reached). Output that is not a JSON array ends the run with an *OutputError and
// discards everything aggregated so far.
func (r *Runner) Run(ctx context.Context, fixedArgs, blockArgs []string) ([]json.RawMessage, error) {
	if len(fixedArgs) != FixedArgCount {
		return nil, fmt.Errorf("%w: got %d", ErrFixedArgs, len(fixedArgs))
	}

	log := logging.FromContext(ctx)
	total := r.processor.TotalBatches(len(blockArgs))
	results := make([]json.RawMessage, 0, len(blockArgs))

	log.Debug().
		Ctx(ctx).
		Str("component", "engine").
		Str("program", r.program).
		Int("items", len(blockArgs)).
		Int("blocks", total).
		Int("block_size", r.processor.GetBatchSize()).
		Msg("starting block run")

	r.processor.WithProgressCallback(func(progress *batch.Progress) {
		r.reporter.BlockSucceeded(progress.Snapshot())
	})

	err := r.processor.Process(ctx, blockArgs, func(ctx context.Context, block []string, index int) error {
		r.reporter.BlockStarted(index, total)

		elems, err := r.runBlock(ctx, r.argv(fixedArgs, block), index)
		if err != nil {
			return err
		}
		results = append(results, elems...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Debug().
		Ctx(ctx).
		Str("component", "engine").
		Int("results", len(results)).
		Msg("block run complete")

	return results, nil
}

// argv builds [program] + fixed + block in a fresh slice.
func (r *Runner) argv(fixedArgs, block []string) []string {
	argv := make([]string, 0, 1+len(fixedArgs)+len(block))
	argv = append(argv, r.program)
	argv = append(argv, fixedArgs...)
	return append(argv, block...)
}

// runBlock is the retry loop for one block. There is no backoff: a fresh process
// is started immediately after a failure.
func (r *Runner) runBlock(ctx context.Context, argv []string, index int) ([]json.RawMessage, error) {
	log := logging.FromContext(ctx)

	for attempt := 1; ; attempt++ {
		res, execErr := r.executor.Execute(ctx, argv)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		failure := r.classify(res, execErr)
		if failure == nil {
			log.Debug().
				Ctx(ctx).
				Str("component", "engine").
				Int("block", index).
				Int("attempt", attempt).
				Int("stdout_bytes", len(res.Stdout)).
				Msg("block invocation succeeded")
			return decodeBlock(index, res.Stdout)
		}

		r.reporter.AttemptFailed(index, attempt, failure)
		log.Debug().
			Ctx(ctx).
			Str("component", "engine").
			Int("block", index).
			Int("attempt", attempt).
			Err(failure).
			Msg("block invocation failed, retrying")

		if r.maxAttempts > 0 && attempt >= r.maxAttempts {
			return nil, fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, attempt, failure)
		}
	}
}

// decodeBlock parses one invocation's stdout, which must be a JSON array.
// Elements are kept as raw JSON so values pass through untouched.
func decodeBlock(index int, stdout []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(stdout)

	var raw json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, &OutputError{Block: index, Err: err}
	}
	if raw[0] != '[' {
		return nil, &OutputError{Block: index, Err: ErrNotArray}
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, &OutputError{Block: index, Err: err}
	}
	return elems, nil
}

// Encode serializes the aggregate as a single compact JSON array.
func Encode(results []json.RawMessage) ([]byte, error) {
	if results == nil {
		results = []json.RawMessage{}
	}
	return json.Marshal(results)
}

package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/rshade/alignblocks/internal/config"
	"github.com/rshade/alignblocks/internal/logging"
)

// setupLogging builds the diagnostic logger for this run and stores it, tagged
// with a fresh run id, in the returned context.
func setupLogging(cmd *cobra.Command, cfg config.Config) context.Context {
	stderr := cmd.ErrOrStderr()
	base := logging.New(logging.Config{
		Level:   cfg.LogLevel,
		Writer:  stderr,
		NoColor: !isTerminal(stderr),
	})

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	runID := logging.GetOrGenerateRunID(ctx)
	ctx = logging.ContextWithRunID(ctx, runID)

	base = base.With().Str("run_id", runID).Logger()
	ctx = base.WithContext(ctx)
	cmd.SetContext(ctx)
	logger = logging.ComponentLogger(base, "cli")

	logger.Info().
		Ctx(ctx).
		Str("command", cmd.Name()).
		Str("program", cfg.Program).
		Int("block_size", cfg.BlockSize).
		Int("max_attempts", cfg.MaxAttempts).
		Dur("timeout", cfg.Timeout).
		Msg("command started")

	return ctx
}

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rshade/alignblocks/internal/alignhost"
	"github.com/rshade/alignblocks/internal/config"
	"github.com/rshade/alignblocks/internal/engine"
)

// isTerminal reports whether w is a terminal file.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// logger is the package-level logger for CLI operations.
var logger zerolog.Logger //nolint:gochecknoglobals // Required for zerolog context integration

// ExecutorFactory builds the Executor for a run. Tests substitute a fake.
type ExecutorFactory func(cfg config.Config, stderr io.Writer) engine.Executor

// Options carries the injectable dependencies of the root command.
type Options struct {
	// LookupEnv resolves ALIGNBLOCKS_* variables. Defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)

	// NewExecutor builds the aligner executor. Defaults to a process executor.
	NewExecutor ExecutorFactory

	// Stdin is read when --items-file is "-". Defaults to os.Stdin.
	Stdin io.Reader
}

// runFlags holds the raw flag values; config.Config is built from them in RunE.
type runFlags struct {
	program     string
	blockSize   int
	maxAttempts int
	timeout     time.Duration
	itemsFile   string
	debug       bool
}

// NewRootCmd creates the alignblocks root command wired to the real environment.
func NewRootCmd(ver string) *cobra.Command {
	return NewRootCmdWithOptions(ver, Options{})
}

// NewRootCmdWithOptions creates the root command with explicit dependencies for testability.
func NewRootCmdWithOptions(ver string, opts Options) *cobra.Command {
	if opts.LookupEnv == nil {
		opts.LookupEnv = os.LookupEnv
	}
	if opts.NewExecutor == nil {
		opts.NewExecutor = newProcessExecutor
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}

	var flags runFlags

	cmd := &cobra.Command{
		Use:   "alignblocks [flags] <arg1> <arg2> <arg3> [item...]",
		Short: "Run the aligner over a large item list in isolated blocks",
		Long: `alignblocks invokes the aligner once per block of at most --block-size items,
forwarding the three leading arguments unchanged to every invocation. A failed
invocation is retried immediately with a fresh process. The per-block JSON arrays
are concatenated and written to stdout as one array once every block succeeds.`,
		Version:       ver,
		Example:       rootCmdExample,
		Args:          requireFixedArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, flags, opts.LookupEnv)
			if err != nil {
				return err
			}

			ctx := setupLogging(cmd, cfg)
			return runBlocks(ctx, cmd, cfg, flags, opts, args)
		},
	}

	// Everything after the first positional argument is forwarded verbatim.
	cmd.Flags().SetInterspersed(false)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &UsageError{Err: err}
	})

	cmd.Flags().StringVar(&flags.program, "program", config.DefaultProgram,
		"path to the aligner executable (env "+config.EnvProgram+")")
	cmd.Flags().IntVar(&flags.blockSize, "block-size", config.DefaultBlockSize,
		"maximum number of items per aligner invocation (env "+config.EnvBlockSize+")")
	cmd.Flags().IntVar(&flags.maxAttempts, "max-attempts", 0,
		"give up after this many failed attempts of one block; 0 retries forever (env "+config.EnvMaxAttempts+")")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0,
		"kill and retry an invocation that runs longer than this; 0 waits forever (env "+config.EnvTimeout+")")
	cmd.Flags().StringVar(&flags.itemsFile, "items-file", "",
		"read additional items, one per line, from this file ('-' for stdin)")
	cmd.Flags().BoolVar(&flags.debug, "debug", false, "enable debug logging")

	return cmd
}

const rootCmdExample = `  # Align every ayah recitation, 1000 clips per aligner process
  alignblocks quran.txt quran.liaise.txt ps.cfg audio/*.wav > alignment.json

  # Smaller blocks, with a list too long for the command line
  find audio -name '*.wav' | alignblocks --block-size 500 --items-file - quran.txt quran.liaise.txt ps.cfg

  # Give up on a block after 20 crashes, and kill any invocation running over an hour
  alignblocks --max-attempts 20 --timeout 1h quran.txt quran.liaise.txt ps.cfg audio/*.wav`

// requireFixedArgs enforces the three fixed arguments.
func requireFixedArgs(_ *cobra.Command, args []string) error {
	if len(args) < engine.FixedArgCount {
		return &UsageError{Err: fmt.Errorf("requires at least %d arguments, received %d", engine.FixedArgCount, len(args))}
	}
	return nil
}

// resolveConfig layers defaults, environment and explicitly set flags, then validates.
func resolveConfig(cmd *cobra.Command, flags runFlags, lookupEnv func(string) (string, bool)) (config.Config, error) {
	cfg, err := config.FromEnv(lookupEnv)
	if err != nil {
		return cfg, &UsageError{Err: err}
	}

	// CLI flags override environment variables
	if cmd.Flags().Changed("program") {
		cfg.Program = flags.program
	}
	if cmd.Flags().Changed("block-size") {
		cfg.BlockSize = flags.blockSize
	}
	if cmd.Flags().Changed("max-attempts") {
		cfg.MaxAttempts = flags.maxAttempts
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Timeout = flags.timeout
	}
	if flags.debug {
		cfg.LogLevel = "debug"
	}

	if err = cfg.Validate(); err != nil {
		return cfg, &UsageError{Err: fmt.Errorf("invalid configuration: %w", err)}
	}
	return cfg, nil
}

// runBlocks executes the run and writes the aggregate to stdout.
// Nothing is written to stdout unless every block succeeded.
func runBlocks(
	ctx context.Context,
	cmd *cobra.Command,
	cfg config.Config,
	flags runFlags,
	opts Options,
	args []string,
) error {
	fixedArgs := args[:engine.FixedArgCount]
	items := args[engine.FixedArgCount:]

	if flags.itemsFile != "" {
		extra, err := readItems(flags.itemsFile, opts.Stdin)
		if err != nil {
			return &UsageError{Err: err}
		}
		items = append(append(make([]string, 0, len(items)+len(extra)), items...), extra...)
	}

	stderr := cmd.ErrOrStderr()
	runner, err := engine.NewRunner(engine.RunnerConfig{
		Program:     cfg.Program,
		BlockSize:   cfg.BlockSize,
		MaxAttempts: cfg.MaxAttempts,
		Reporter:    newStreamReporter(stderr, isTerminal(stderr), logger),
	}, opts.NewExecutor(cfg, stderr))
	if err != nil {
		return &UsageError{Err: err}
	}

	results, err := runner.Run(ctx, fixedArgs, items)
	if err != nil {
		logger.Error().Ctx(ctx).Err(err).Msg("block run failed")
		return err
	}

	out, err := engine.Encode(results)
	if err != nil {
		return fmt.Errorf("encoding aggregate result: %w", err)
	}
	if _, err = cmd.OutOrStdout().Write(out); err != nil {
		return fmt.Errorf("writing aggregate result: %w", err)
	}

	logger.Info().Ctx(ctx).Int("results", len(results)).Msg("command finished")
	return nil
}

func newProcessExecutor(cfg config.Config, stderr io.Writer) engine.Executor {
	return &alignhost.ProcessExecutor{Timeout: cfg.Timeout, Stderr: stderr}
}

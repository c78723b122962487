// Package config resolves alignblocks run settings.
//
// Precedence, lowest to highest: built-in defaults, ALIGNBLOCKS_* environment
// variables, then command-line flags (applied by the cli package).
package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Defaults.
const (
	DefaultProgram   = "./align"
	DefaultBlockSize = 1000
	DefaultLogLevel  = "warn"
)

// Environment variable names.
const (
	EnvProgram     = "ALIGNBLOCKS_PROGRAM"
	EnvBlockSize   = "ALIGNBLOCKS_BLOCK_SIZE"
	EnvMaxAttempts = "ALIGNBLOCKS_MAX_ATTEMPTS"
	EnvTimeout     = "ALIGNBLOCKS_TIMEOUT"
	EnvLogLevel    = "ALIGNBLOCKS_LOG_LEVEL"
)

// Validation errors.
var (
	ErrEmptyProgram       = errors.New("program path cannot be empty")
	ErrInvalidBlockSize   = errors.New("block size must be at least 1")
	ErrInvalidMaxAttempts = errors.New("max attempts must be >= 0")
	ErrInvalidTimeout     = errors.New("timeout must be >= 0")
)

// Config holds the settings for one run.
type Config struct {
	// Program is the external aligner invoked once per block.
	Program string

	// BlockSize is the maximum number of items passed to one invocation.
	BlockSize int

	// MaxAttempts caps attempts per block. 0 retries forever.
	MaxAttempts int

	// Timeout bounds a single invocation. 0 waits indefinitely.
	Timeout time.Duration

	// LogLevel is the zerolog level for the diagnostic logger.
	LogLevel string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Program:   DefaultProgram,
		BlockSize: DefaultBlockSize,
		LogLevel:  DefaultLogLevel,
	}
}

// FromEnv returns Default() overlaid with any ALIGNBLOCKS_* variables found by lookupEnv.
// Malformed numeric values are reported rather than ignored.
func FromEnv(lookupEnv func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if lookupEnv == nil {
		return cfg, nil
	}

	if v, ok := lookupEnv(EnvProgram); ok && v != "" {
		cfg.Program = v
	}
	if v, ok := lookupEnv(EnvBlockSize); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("parsing %s=%q: %w", EnvBlockSize, v, err)
		}
		cfg.BlockSize = n
	}
	if v, ok := lookupEnv(EnvMaxAttempts); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("parsing %s=%q: %w", EnvMaxAttempts, v, err)
		}
		cfg.MaxAttempts = n
	}
	if v, ok := lookupEnv(EnvTimeout); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("parsing %s=%q: %w", EnvTimeout, v, err)
		}
		cfg.Timeout = d
	}
	if v, ok := lookupEnv(EnvLogLevel); ok && v != "" {
		cfg.LogLevel = v
	}

	return cfg, nil
}

// Validate checks that cfg describes a runnable configuration.
func (c Config) Validate() error {
	var errs []error
	if c.Program == "" {
		errs = append(errs, ErrEmptyProgram)
	}
	if c.BlockSize < 1 {
		errs = append(errs, fmt.Errorf("%w: got %d", ErrInvalidBlockSize, c.BlockSize))
	}
	if c.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("%w: got %d", ErrInvalidMaxAttempts, c.MaxAttempts))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("%w: got %s", ErrInvalidTimeout, c.Timeout))
	}
	if c.LogLevel != "" {
		if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
			errs = append(errs, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err))
		}
	}
	return errors.Join(errs...)
}

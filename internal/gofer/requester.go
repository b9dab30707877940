// Package gofer invokes the external price-aggregation binary and decodes
// its output into validated price attestations.
package gofer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"time"

	"collector-node/internal/domain"
)

// DefaultRequestTimeout bounds one subprocess run. It sits slightly under
// the one-minute invocation cadence so a hung aggregator cannot run into
// the next cycle.
const DefaultRequestTimeout = 45 * time.Second

// Requester launches the aggregator binary as a subprocess.
type Requester struct {
	binaryPath string
	timeout    time.Duration
	logger     *log.Logger
}

// RequesterOptions configures a Requester.
type RequesterOptions struct {
	// BinaryPath is the aggregator binary location. Required.
	BinaryPath string
	// Timeout is the hard wall-clock limit for one run.
	// Defaults to DefaultRequestTimeout.
	Timeout time.Duration
	Logger  *log.Logger
}

// NewRequester creates a Requester.
func NewRequester(opts RequesterOptions) *Requester {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultRequestTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Requester{
		binaryPath: opts.BinaryPath,
		timeout:    timeout,
		logger:     logger,
	}
}

// NewRequesterFromSpec creates a Requester configured from the collection
// spec's aggregator path and subprocess timeout.
func NewRequesterFromSpec(spec domain.CollectionSpec, logger *log.Logger) *Requester {
	return NewRequester(RequesterOptions{
		BinaryPath: spec.AggregatorPath,
		Timeout:    spec.RequestTimeout,
		Logger:     logger,
	})
}

// Request runs one aggregator invocation for the given pairs and returns
// the captured output. There is no retry at this layer: timeouts and
// crashes propagate to the coordinator, which skips to the next cycle.
func (r *Requester) Request(ctx context.Context, pairs []string) (*domain.RawFeedOutput, error) {
	if len(pairs) == 0 {
		return nil, fmt.Errorf("%w: no pairs requested", ErrProcessExecution)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	args := append([]string{"data"}, pairs...)
	args = append(args, "-o", "collector")

	cmd := exec.CommandContext(ctx, r.binaryPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if ctx.Err() == context.DeadlineExceeded {
		r.logger.Printf("aggregator timed out after %v (limit %v)", elapsed, r.timeout)
		return nil, fmt.Errorf("%w after %v", ErrProcessTimeout, r.timeout)
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			r.logger.Printf("aggregator exited %d, stderr: %s", exitErr.ExitCode(), stderr.String())
			return nil, fmt.Errorf("%w: exit status %d", ErrProcessExecution, exitErr.ExitCode())
		}
		return nil, fmt.Errorf("%w: %v", ErrProcessExecution, err)
	}

	if s := stderr.String(); s != "" {
		r.logger.Printf("aggregator stderr: %s", s)
	}
	r.logger.Printf("aggregator run for %d pairs completed in %v", len(pairs), elapsed)

	return &domain.RawFeedOutput{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: 0,
	}, nil
}

package job

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/validator-ejector/pkg/metrics"
)

// Pass names used in logs and the job duration metric
const (
	PassPreload = "preload"
	PassLoop    = "loop"
)

// Task runs one pass over the last size blocks.
type Task func(ctx context.Context, size uint64) error

// ErrorPolicy decides what happens after a failed pass. Returning an error
// stops the runner.
type ErrorPolicy func(pass string, err error) error

// Config controls the schedule
type Config struct {
	PreloadBlocks uint64
	LoopBlocks    uint64
	Interval      time.Duration
}

// Runner executes the task once over the preload window and then
// periodically over the loop window. Passes never overlap.
type Runner struct {
	task    Task
	cfg     Config
	metrics *metrics.Metrics
	log     logrus.FieldLogger

	// OnError is consulted after every failed pass. Nil logs and continues.
	OnError ErrorPolicy
}

// NewRunner creates a Runner
func NewRunner(task Task, cfg Config, m *metrics.Metrics, log logrus.FieldLogger) (*Runner, error) {
	if cfg.Interval <= 0 {
		return nil, errors.Errorf("invalid job interval: %s", cfg.Interval)
	}

	return &Runner{
		task:    task,
		cfg:     cfg,
		metrics: m,
		log:     log.WithField("component", "job"),
	}, nil
}

// ContinueOnError keeps the runner going after a failed pass.
func ContinueOnError(string, error) error { return nil }

// StopOnError terminates the runner with the pass error.
func StopOnError(pass string, err error) error {
	return errors.Wrapf(err, "%s pass failed", pass)
}

// Run performs the preload pass and then loops until ctx is cancelled.
// It returns nil on cancellation.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.Once(ctx); err != nil {
		return err
	}

	return r.Loop(ctx)
}

// Once runs the preload pass.
func (r *Runner) Once(ctx context.Context) error {
	return r.pass(ctx, PassPreload, r.cfg.PreloadBlocks)
}

// Loop runs a loop pass every interval until ctx is cancelled. The interval
// is measured from the end of one pass to the start of the next.
func (r *Runner) Loop(ctx context.Context) error {
	timer := time.NewTimer(r.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("Job loop stopped")

			return nil
		case <-timer.C:
		}

		if err := r.pass(ctx, PassLoop, r.cfg.LoopBlocks); err != nil {
			return err
		}

		timer.Reset(r.cfg.Interval)
	}
}

func (r *Runner) pass(ctx context.Context, name string, size uint64) error {
	if ctx.Err() != nil {
		return nil
	}

	log := r.log.WithFields(logrus.Fields{
		"pass":   name,
		"blocks": size,
	})

	log.Info("Job started")

	started := time.Now()
	err := r.task(ctx, size)
	elapsed := time.Since(started)

	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}

	if r.metrics != nil {
		r.metrics.JobDuration.WithLabelValues(name, result).Observe(elapsed.Seconds())
	}

	if err == nil {
		log.WithField("duration", elapsed).Info("Job finished")

		return nil
	}

	// cancellation mid-pass is a shutdown, not a failure
	if ctx.Err() != nil {
		return nil
	}

	log.WithError(err).WithField("duration", elapsed).Error("Job failed")

	if r.OnError == nil {
		return nil
	}

	return r.OnError(name, err)
}

package job

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/validator-ejector/pkg/metrics"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	return log
}

type recorder struct {
	mu      sync.Mutex
	sizes   []uint64
	running int
	overlap bool
	err     error
	onCall  func(n int)
}

func (r *recorder) task(ctx context.Context, size uint64) error {
	r.mu.Lock()
	r.running++
	if r.running > 1 {
		r.overlap = true
	}
	r.sizes = append(r.sizes, size)
	n := len(r.sizes)
	r.mu.Unlock()

	if r.onCall != nil {
		r.onCall(n)
	}

	time.Sleep(time.Millisecond)

	r.mu.Lock()
	r.running--
	r.mu.Unlock()

	return r.err
}

func (r *recorder) calls() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]uint64(nil), r.sizes...)
}

var testConfig = Config{PreloadBlocks: 50000, LoopBlocks: 900, Interval: 5 * time.Millisecond}

func TestNewRunnerInvalidInterval(t *testing.T) {
	_, err := NewRunner(func(context.Context, uint64) error { return nil }, Config{}, nil, quietLogger())
	assert.Error(t, err)
}

func TestRunPreloadThenLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{}
	rec.onCall = func(n int) {
		if n == 3 {
			cancel()
		}
	}

	m := metrics.New(prometheus.NewRegistry())

	runner, err := NewRunner(rec.task, testConfig, m, quietLogger())
	require.NoError(t, err)

	require.NoError(t, runner.Run(ctx))

	assert.Equal(t, []uint64{50000, 900, 900}, rec.calls())
	assert.False(t, rec.overlap)
	assert.Equal(t, 1, testutil.CollectAndCount(m.JobDuration.WithLabelValues(PassPreload, metrics.ResultSuccess).(prometheus.Histogram)))
}

func TestRunStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	rec := &recorder{}

	runner, err := NewRunner(rec.task, Config{PreloadBlocks: 10, LoopBlocks: 1, Interval: time.Hour}, nil, quietLogger())
	require.NoError(t, err)

	done := make(chan error, 1)

	go func() {
		done <- runner.Run(ctx)
	}()

	require.Eventually(t, func() bool { return len(rec.calls()) == 1 }, time.Second, time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("runner did not stop after cancellation")
	}

	assert.Equal(t, []uint64{10}, rec.calls())
}

func TestRunErrorPolicy(t *testing.T) {
	t.Run("continue by default", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		rec := &recorder{err: errors.New("rpc down")}
		rec.onCall = func(n int) {
			if n == 2 {
				cancel()
			}
		}

		m := metrics.New(prometheus.NewRegistry())

		runner, err := NewRunner(rec.task, testConfig, m, quietLogger())
		require.NoError(t, err)

		require.NoError(t, runner.Run(ctx))
		assert.Len(t, rec.calls(), 2)
		assert.Equal(t, 1, testutil.CollectAndCount(m.JobDuration.WithLabelValues(PassPreload, metrics.ResultError).(prometheus.Histogram)))
	})

	t.Run("stop on error", func(t *testing.T) {
		rec := &recorder{err: errors.New("rpc down")}

		runner, err := NewRunner(rec.task, testConfig, nil, quietLogger())
		require.NoError(t, err)

		runner.OnError = StopOnError

		err = runner.Run(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), PassPreload)
		assert.Len(t, rec.calls(), 1)
	})

	t.Run("explicit continue", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		rec := &recorder{err: errors.New("rpc down")}
		rec.onCall = func(n int) {
			if n == 2 {
				cancel()
			}
		}

		runner, err := NewRunner(rec.task, testConfig, nil, quietLogger())
		require.NoError(t, err)

		runner.OnError = ContinueOnError

		require.NoError(t, runner.Run(ctx))
	})
}

func TestOnce(t *testing.T) {
	rec := &recorder{}

	runner, err := NewRunner(rec.task, testConfig, nil, quietLogger())
	require.NoError(t, err)

	require.NoError(t, runner.Once(context.Background()))
	assert.Equal(t, []uint64{50000}, rec.calls())
}

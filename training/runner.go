package training

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// BotResult is the outcome of one bot's run in a Runner batch.
type BotResult struct {
	BotID   string
	Summary *Summary
	Err     error
}

// Runner trains several bots in parallel on a bounded worker pool. Each bot
// is still trained by a single sequential run.
type Runner struct {
	orchestrator *Orchestrator
	pool         *ants.Pool
	logger       *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner) error

// WithPoolSize sets how many bots train at once.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) RunnerOption {
	return func(r *Runner) error {
		if size < 1 {
			return ErrInvalidPoolSize
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if r.pool != nil {
			r.pool.Release()
		}
		r.pool = pool
		return nil
	}
}

// WithRunnerLogger sets a custom logger.
// Default is slog.Default().
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewRunner creates a Runner backed by orchestrator.
func NewRunner(orchestrator *Orchestrator, opts ...RunnerOption) (*Runner, error) {
	if orchestrator == nil {
		return nil, ErrCollaboratorRequired
	}

	poolSize := max(runtime.NumCPU()/2, 1)
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		orchestrator: orchestrator,
		pool:         pool,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			r.Release()
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "training-runner")
	return r, nil
}

// RunAll trains every bot in botIDs and waits for all runs to finish.
// Results are returned in the order of botIDs. emit, if set, receives each
// bot's events tagged with its id and may be called concurrently.
func (r *Runner) RunAll(ctx context.Context, botIDs []string, emit func(botID string, ev Event)) []BotResult {
	results := make([]BotResult, len(botIDs))
	var wg sync.WaitGroup

	for i, botID := range botIDs {
		results[i].BotID = botID
		var emitter Emitter
		if emit != nil {
			emitter = func(ev Event) { emit(botID, ev) }
		}

		task := func() {
			defer wg.Done()
			results[i].Summary, results[i].Err = r.orchestrator.Run(ctx, botID, emitter)
		}

		wg.Add(1)
		if err := r.pool.Submit(task); err != nil {
			wg.Done()
			r.logger.Error("failed to schedule training run", "bot", botID, "err", err)
			results[i].Err = err
		}
	}

	wg.Wait()
	return results
}

// Release releases the worker pool. The runner must not be used afterwards.
func (r *Runner) Release() {
	if r.pool != nil {
		r.pool.Release()
	}
}

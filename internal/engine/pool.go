package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"chessmate/internal/core"
	"chessmate/internal/metrics"
)

var (
	// ErrNoEngine means every worker has lost its engine
	ErrNoEngine = errors.New("no engine available")
	ErrClosed   = errors.New("engine pool is shut down")
)

// Handle is an Evaluator owned by exactly one pool worker
type Handle interface {
	Evaluator
	Healthy() bool
	Close() error
}

// resetter is implemented by handles that keep search state across positions
type resetter interface {
	NewGame(ctx context.Context) error
}

// Factory starts a fresh handle
type Factory func(ctx context.Context) (Handle, error)

// ProcessFactory builds handles backed by engine processes
func ProcessFactory(opts Options) Factory {
	return func(ctx context.Context) (Handle, error) {
		return New(ctx, opts)
	}
}

// job carries one unit of work and its reply channel
type job struct {
	fn   func(Evaluator) error
	done chan error
}

// Pool runs jobs on a fixed set of workers, each with its own engine handle
type Pool struct {
	factory Factory
	workers int
	log     *slog.Logger
	metrics *metrics.Manager

	jobs   chan job
	dead   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	alive int

	game atomic.Uint64
}

// PoolOption configures a Pool
type PoolOption func(*Pool)

func WithLogger(l *slog.Logger) PoolOption {
	return func(p *Pool) {
		if l != nil {
			p.log = l
		}
	}
}

func WithMetrics(m *metrics.Manager) PoolOption {
	return func(p *Pool) {
		p.metrics = m
	}
}

// NewPool starts workerCount workers. Handles are created inside the workers;
// a worker whose handle cannot be started or replaced exits.
func NewPool(factory Factory, workerCount int, opts ...PoolOption) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &Pool{
		factory: factory,
		workers: workerCount,
		log:     slog.Default(),
		jobs:    make(chan job),
		dead:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
		alive:   workerCount,
	}
	for _, opt := range opts {
		opt(p)
	}

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

// Size is the configured worker count
func (p *Pool) Size() int {
	return p.workers
}

// Alive is the number of workers still holding a usable engine
func (p *Pool) Alive() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alive
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	defer p.retire()

	log := p.log.With("worker", id)
	var game uint64

	h, err := p.factory(p.ctx)
	if err != nil {
		log.Error("engine start failed", "error", err)
		p.metrics.RecordEngineFailure()
		return
	}
	p.metrics.AddEnginesAlive(1)
	defer func() {
		h.Close()
		p.metrics.AddEnginesAlive(-1)
	}()

	for {
		select {
		case j := <-p.jobs:
			if current := p.game.Load(); current != game {
				game = current
				if r, ok := h.(resetter); ok {
					if err := r.NewGame(p.ctx); err != nil {
						log.Warn("engine reset failed", "error", err)
					}
				}
			}

			j.done <- j.fn(&timedEvaluator{inner: h, metrics: p.metrics})

			if h.Healthy() {
				continue
			}

			log.Warn("engine handle broken, replacing")
			p.metrics.RecordEngineFailure()
			h.Close()

			h, err = p.factory(p.ctx)
			if err != nil {
				log.Error("engine restart failed", "error", err)
				p.metrics.RecordEngineFailure()
				// deferred Close still needs a target
				h = closedHandle{}
				return
			}

		case <-p.ctx.Done():
			return
		}
	}
}

// retire takes a worker out of the live count and signals when none remain.
func (p *Pool) retire() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alive--
	if p.alive == 0 {
		close(p.dead)
	}
}

// NewGame marks the start of an unrelated game. Each worker resets its
// handle before its next job.
func (p *Pool) NewGame() {
	p.game.Add(1)
}

// Run hands fn an evaluator from an idle worker and waits for it to return.
// Once fn has been accepted it runs to completion regardless of ctx.
func (p *Pool) Run(ctx context.Context, fn func(Evaluator) error) error {
	j := job{fn: fn, done: make(chan error, 1)}

	select {
	case p.jobs <- j:
	case <-p.dead:
		return core.Wrap(core.KindEngine, "engine pool", ErrNoEngine)
	case <-p.ctx.Done():
		return core.Wrap(core.KindEngine, "engine pool", ErrClosed)
	case <-ctx.Done():
		return ctx.Err()
	}

	return <-j.done
}

// Evaluate is a single-position convenience over Run
func (p *Pool) Evaluate(ctx context.Context, fen string, depth int) (Evaluation, error) {
	var out Evaluation
	err := p.Run(ctx, func(e Evaluator) error {
		var err error
		out, err = e.Evaluate(ctx, fen, depth)
		return err
	})
	return out, err
}

// Close stops the workers and tears every handle down
func (p *Pool) Close(timeout time.Duration) error {
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("engine pool shutdown timeout exceeded")
	}
}

// timedEvaluator records evaluation latency
type timedEvaluator struct {
	inner   Evaluator
	metrics *metrics.Manager
}

func (t *timedEvaluator) Evaluate(ctx context.Context, fen string, depth int) (Evaluation, error) {
	start := time.Now()
	ev, err := t.inner.Evaluate(ctx, fen, depth)
	if err == nil {
		t.metrics.RecordEvaluation(time.Since(start))
	}
	return ev, err
}

type closedHandle struct{}

func (closedHandle) Evaluate(context.Context, string, int) (Evaluation, error) {
	return Evaluation{}, core.Errorf(core.KindEngine, "evaluate", "engine closed")
}
func (closedHandle) Healthy() bool { return false }
func (closedHandle) Close() error  { return nil }

package share

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/tildaslashalef/driveshare/internal/drive"
	"github.com/tildaslashalef/driveshare/internal/loggy"
)

// WorkerState is the lifecycle state of one pool worker
type WorkerState int32

const (
	WorkerUninit WorkerState = iota
	WorkerIdle
	WorkerWorking
	WorkerError
)

func (s WorkerState) String() string {
	switch s {
	case WorkerIdle:
		return "idle"
	case WorkerWorking:
		return "working"
	case WorkerError:
		return "error"
	default:
		return "uninitialized"
	}
}

// InitFunc prepares per-worker state before the worker accepts tasks. An
// error (or an expired init deadline) moves the worker to the error state and
// excludes it from dispatch for the rest of the run.
type InitFunc func(ctx context.Context, workerID int) error

// PoolConfig configures a worker pool
type PoolConfig struct {
	Size        int
	RateDelay   time.Duration // minimum spacing between remote calls per worker
	InitTimeout time.Duration // how long workers get to initialize
	QueueSize   int           // task queue capacity; Submit never blocks below this
	Init        InitFunc      // optional per-worker initialization
}

// Pool is a fixed-size worker pool draining a shared FIFO task queue.
// Dispatch is pull-based: an idle worker takes the next task itself, so no
// worker is starved by another. Outcomes flow back to the coordinator over a
// single channel; the pool itself holds no run state beyond occupancy
// counters.
type Pool struct {
	cfg     PoolConfig
	granter Granter
	emitter *Emitter
	logger  *loggy.Logger

	tasks    chan Task
	outcomes chan ShareResult
	states   []atomic.Int32
	active   atomic.Int32
	queued   atomic.Int32
	errored  atomic.Int32

	wg     sync.WaitGroup
	closed bool
}

// NewPool creates a pool of cfg.Size workers calling the given granter
func NewPool(cfg PoolConfig, granter Granter, emitter *Emitter, logger *loggy.Logger) *Pool {
	if cfg.Size < 1 {
		cfg.Size = 1
	}
	if cfg.QueueSize < cfg.Size {
		cfg.QueueSize = cfg.Size
	}
	if cfg.InitTimeout <= 0 {
		cfg.InitTimeout = 10 * time.Second
	}

	return &Pool{
		cfg:      cfg,
		granter:  granter,
		emitter:  emitter,
		logger:   logger,
		tasks:    make(chan Task, cfg.QueueSize),
		outcomes: make(chan ShareResult, cfg.Size),
		states:   make([]atomic.Int32, cfg.Size),
	}
}

// Start spawns all workers and blocks until each has signaled readiness or
// failed initialization under the init timeout. Returns the number of ready
// workers; workers that failed are in the error state and never dispatched.
func (p *Pool) Start(ctx context.Context) int {
	ready := make(chan error, p.cfg.Size)

	initCtx, cancel := context.WithTimeout(ctx, p.cfg.InitTimeout)
	defer cancel()

	for i := 0; i < p.cfg.Size; i++ {
		p.wg.Add(1)
		go p.worker(ctx, initCtx, i, ready)
	}

	readyCount := 0
	for i := 0; i < p.cfg.Size; i++ {
		if err := <-ready; err != nil {
			p.logger.Warn("Worker failed to initialize", "error", err)
		} else {
			readyCount++
		}
	}

	p.logger.Info("Worker pool started", "workers", readyCount, "requested", p.cfg.Size)
	return readyCount
}

// Submit places a task on the shared queue
func (p *Pool) Submit(task Task) {
	p.queued.Add(1)
	p.tasks <- task
}

// Close marks the queue complete. Workers exit once the queue drains.
func (p *Pool) Close() {
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
}

// Outcomes returns the channel the coordinator consumes worker results from
func (p *Pool) Outcomes() <-chan ShareResult {
	return p.outcomes
}

// Active returns the number of workers currently executing a task
func (p *Pool) Active() int {
	return int(p.active.Load())
}

// Queued returns the number of submitted tasks not yet taken by a worker
func (p *Pool) Queued() int {
	return int(p.queued.Load())
}

// Quiesced reports whether the queue is empty and no worker is active
func (p *Pool) Quiesced() bool {
	return p.queued.Load() == 0 && p.active.Load() == 0
}

// Alive returns the number of workers not in the error state
func (p *Pool) Alive() int {
	return p.cfg.Size - int(p.errored.Load())
}

// Wait blocks until all workers have exited. Call after Close (or after
// cancelling the context passed to Start).
func (p *Pool) Wait() {
	p.wg.Wait()
}

// State returns the state of the given worker
func (p *Pool) State(workerID int) WorkerState {
	return WorkerState(p.states[workerID].Load())
}

func (p *Pool) setState(workerID int, s WorkerState) {
	p.states[workerID].Store(int32(s))
}

// worker runs the per-worker loop: initialize, then pull tasks until the
// queue closes or the context is cancelled. A task panic is contained and
// reported as a failed outcome before the worker retires.
func (p *Pool) worker(ctx, initCtx context.Context, id int, ready chan<- error) {
	defer p.wg.Done()

	if p.cfg.Init != nil {
		if err := p.cfg.Init(initCtx, id); err != nil {
			p.setState(id, WorkerError)
			p.errored.Add(1)
			p.emitter.WorkerStatus(id, "error")
			ready <- fmt.Errorf("worker %d: %w", id, err)
			return
		}
	}
	p.setState(id, WorkerIdle)
	p.emitter.WorkerStatus(id, "idle")
	ready <- nil

	var limiter *rate.Limiter
	if p.cfg.RateDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(p.cfg.RateDelay), 1)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			// Mark active before releasing the queue slot so Quiesced
			// never observes a task in neither place.
			p.active.Add(1)
			p.queued.Add(-1)
			p.setState(id, WorkerWorking)
			p.emitter.WorkerStatus(id, "working on "+task.Recipient.Name)

			result, panicked := p.execute(ctx, task)

			p.active.Add(-1)
			if panicked {
				p.setState(id, WorkerError)
				p.errored.Add(1)
				p.emitter.WorkerStatus(id, "error")
			} else {
				p.setState(id, WorkerIdle)
				p.emitter.WorkerStatus(id, "idle")
			}

			select {
			case p.outcomes <- result:
			case <-ctx.Done():
				return
			}

			// A panicking worker is unrecoverable: it is excluded from
			// dispatch and its queued tasks go to the other workers.
			if panicked {
				return
			}

			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					return
				}
			}
		}
	}
}

// execute runs one grant call and converts its outcome into a ShareResult.
// A panic is contained: the task reports as failed and panicked is set so
// the caller can retire the worker.
func (p *Pool) execute(ctx context.Context, task Task) (result ShareResult, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Worker panic recovered", "recipient", task.Recipient.Email, "panic", r)
			panicked = true
			result = ShareResult{
				Success:   false,
				Error:     fmt.Sprintf("worker panic: %v", r),
				ErrorCode: drive.ErrCodeUnknown,
				FolderID:  task.FolderID,
				Recipient: task.Recipient,
			}
		}
	}()

	permissionID, err := p.granter.GrantRead(ctx, task.FolderID, task.Email)
	if err != nil {
		return ShareResult{
			Success:   false,
			Error:     err.Error(),
			ErrorCode: drive.ErrorCode(err),
			FolderID:  task.FolderID,
			Recipient: task.Recipient,
		}, false
	}

	return ShareResult{
		Success:      true,
		PermissionID: permissionID,
		FolderID:     task.FolderID,
		Recipient:    task.Recipient,
	}, false
}

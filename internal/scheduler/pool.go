// Package scheduler provides bounded, named worker pools that asynchronous
// streams relocate work onto. A pool exposes two independent knobs:
// RunEmissionOn moves the work that produces events, RunProcessingOn moves
// the work that reacts to them. Both may target the same pool.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"fluxgate/internal/logging"
	"fluxgate/internal/telemetry"
)

var (
	ErrRejected = errors.New("scheduler: task queue full")
	ErrClosed   = errors.New("scheduler: pool closed")
)

type Config struct {
	Name     string        `koanf:"name"`
	Min      int           `koanf:"min"`       // core workers, never retired
	Max      int           `koanf:"max"`       // hard cap on live workers
	QueueCap int           `koanf:"queue_cap"` // pending tasks before Submit rejects
	IdleTTL  time.Duration `koanf:"idle_ttl"`  // how long an extra worker waits before exiting
}

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = "MyThreadGroup"
	}
	if c.Min < 0 {
		c.Min = 0
	}
	if c.Max <= 0 {
		c.Max = 10
	}
	if c.Max < c.Min {
		c.Max = c.Min
	}
	if c.QueueCap <= 0 {
		c.QueueCap = 100_000
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = 60 * time.Second
	}
}

type Task func(ctx context.Context)

type queuedTask struct {
	ctx  context.Context
	role Role
	fn   Task
}

type Stats struct {
	Workers int
	Idle    int
	Queued  int
}

type Pool struct {
	cfg   Config
	tasks chan queuedTask
	quit  chan struct{}
	wg    sync.WaitGroup

	mu     sync.RWMutex // guards closed against in-flight Submit
	closed bool

	workers atomic.Int32
	idle    atomic.Int32
	queued  atomic.Int32
	seq     atomic.Int64
}

// NewPool starts cfg.Min core workers and returns the pool.
func NewPool(cfg Config) *Pool {
	cfg.applyDefaults()
	p := &Pool{
		cfg:   cfg,
		tasks: make(chan queuedTask, cfg.QueueCap),
		quit:  make(chan struct{}),
	}
	for i := 0; i < cfg.Min; i++ {
		p.workers.Add(1)
		p.wg.Add(1)
		go p.worker(p.seq.Add(1), true)
	}
	p.report()
	return p
}

func (p *Pool) Name() string { return p.cfg.Name }

func (p *Pool) Config() Config { return p.cfg }

func (p *Pool) Stats() Stats {
	return Stats{
		Workers: int(p.workers.Load()),
		Idle:    int(p.idle.Load()),
		Queued:  int(p.queued.Load()),
	}
}

// Submit enqueues fn to run on a pool worker. It never blocks: a full queue
// yields ErrRejected.
func (p *Pool) Submit(ctx context.Context, role Role, fn Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	p.queued.Add(1)
	select {
	case p.tasks <- queuedTask{ctx: ctx, role: role, fn: fn}:
	default:
		p.queued.Add(-1)
		logging.L().Warn("scheduler: queue full, task rejected", "pool", p.cfg.Name, "cap", p.cfg.QueueCap)
		return ErrRejected
	}
	p.maybeSpawn()
	p.report()
	return nil
}

// Close stops accepting tasks, lets workers drain what is queued and waits
// for them to exit.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.quit)
	p.mu.Unlock()

	p.wg.Wait()
	p.report()
}

// maybeSpawn grows the pool while queued work outnumbers idle workers.
func (p *Pool) maybeSpawn() {
	for {
		w := p.workers.Load()
		if int(w) >= p.cfg.Max || p.queued.Load() <= p.idle.Load() {
			return
		}
		if p.workers.CompareAndSwap(w, w+1) {
			p.wg.Add(1)
			go p.worker(p.seq.Add(1), false)
			return
		}
	}
}

func (p *Pool) worker(id int64, core bool) {
	defer p.wg.Done()
	name := fmt.Sprintf("%s-%d", p.cfg.Name, id)

	var (
		timer *time.Timer
		idleC <-chan time.Time
	)
	if !core {
		timer = time.NewTimer(p.cfg.IdleTTL)
		defer timer.Stop()
	}

	for {
		p.idle.Add(1)
		if timer != nil {
			timer.Reset(p.cfg.IdleTTL)
			idleC = timer.C
		}
		select {
		case t := <-p.tasks:
			// idle before queued keeps queued > idle visible to Submit
			p.idle.Add(-1)
			p.queued.Add(-1)
			p.run(name, t)
		case <-idleC:
			p.idle.Add(-1)
			p.retire()
			return
		case <-p.quit:
			p.idle.Add(-1)
			p.drain(name)
			p.workers.Add(-1)
			return
		}
	}
}

// retire removes an idle extra worker. Work queued during the exit race is
// picked up by a replacement.
func (p *Pool) retire() {
	p.workers.Add(-1)
	p.mu.RLock()
	if !p.closed && p.queued.Load() > 0 {
		p.maybeSpawn()
	}
	p.mu.RUnlock()
	p.report()
}

func (p *Pool) drain(name string) {
	for {
		select {
		case t := <-p.tasks:
			p.queued.Add(-1)
			p.run(name, t)
		default:
			return
		}
	}
}

func (p *Pool) run(worker string, t queuedTask) {
	ctx := t.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = WithExecContext(ctx, ExecContext{Pool: p.cfg.Name, Worker: worker, Role: t.role, pool: p})
	defer func() {
		if r := recover(); r != nil {
			logging.L().Error("scheduler: task panicked", "pool", p.cfg.Name, "worker", worker, "panic", r)
		}
		p.report()
	}()
	p.report()
	t.fn(ctx)
}

func (p *Pool) report() {
	telemetry.PoolWorkers.WithLabelValues(p.cfg.Name).Set(float64(p.workers.Load()))
	telemetry.PoolQueued.WithLabelValues(p.cfg.Name).Set(float64(p.queued.Load()))
}

// RunEmissionOn runs the work that produces source events on p.
func RunEmissionOn(p *Pool, ctx context.Context, fn Task) error {
	return p.Submit(ctx, RoleEmission, fn)
}

// RunProcessingOn runs the work that consumes source events on p.
func RunProcessingOn(p *Pool, ctx context.Context, fn Task) error {
	return p.Submit(ctx, RoleProcessing, fn)
}

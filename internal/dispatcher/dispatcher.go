// Package dispatcher serializes outbound calls per upstream model, keeps a
// local request quota for each one, and retries rate limited calls with
// exponential backoff.
package dispatcher

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task performs one upstream call.
type Task func(ctx context.Context) error

type Config struct {
	// Limit is the number of calls allowed per Window for each model.
	// Zero or less disables the local limit; server headers still apply.
	Limit     int
	Window    time.Duration
	QueueSize int
}

func DefaultConfig() Config {
	return Config{
		Limit:     20,
		Window:    time.Minute,
		QueueSize: 64,
	}
}

// Stats is a point in time view of one model queue.
type Stats struct {
	Model     string    `json:"model"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
	Queued    int       `json:"queued"`
	Processed int64     `json:"processed"`
}

type Dispatcher struct {
	cfg Config
	log *zap.Logger
	now func() time.Time

	mu     sync.Mutex
	queues map[string]*queue
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

type job struct {
	ctx    context.Context
	task   Task
	queued time.Time
	result chan error
}

type queue struct {
	model   string
	jobs    chan *job
	stopped chan struct{}

	mu        sync.Mutex
	quota     Quota
	processed int64
}

func New(cfg Config, log *zap.Logger) *Dispatcher {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		cfg:    cfg,
		log:    log,
		now:    time.Now,
		queues: make(map[string]*queue),
		done:   make(chan struct{}),
	}
}

// Do queues task behind every earlier task for the same model and blocks
// until it has run. The task's error is returned as is.
func (d *Dispatcher) Do(ctx context.Context, model string, task Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q, err := d.queueFor(model)
	if err != nil {
		return err
	}

	j := &job{ctx: ctx, task: task, queued: d.now(), result: make(chan error, 1)}
	select {
	case q.jobs <- j:
		queueDepth.WithLabelValues(model).Inc()
	case <-ctx.Done():
		return ctx.Err()
	case <-q.stopped:
		return ErrClosed
	}

	select {
	case err := <-j.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-q.stopped:
		select {
		case err := <-j.result:
			return err
		default:
			return ErrClosed
		}
	}
}

// SetQuota overwrites the local counters of model, typically with the values
// the upstream reported in its rate limit headers. A zero resetAt keeps the
// current reset time.
func (d *Dispatcher) SetQuota(model string, remaining int, resetAt time.Time) {
	q, err := d.queueFor(model)
	if err != nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.quota.Remaining = remaining
	if !resetAt.IsZero() {
		q.quota.ResetAt = resetAt
	}
}

// Quota returns the current quota of model. Unknown models report the
// configured limit.
func (d *Dispatcher) Quota(model string) Quota {
	d.mu.Lock()
	q, ok := d.queues[model]
	d.mu.Unlock()
	if !ok {
		limit := d.limit()
		return Quota{Limit: limit, Remaining: limit}
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.quota
}

func (d *Dispatcher) Stats() []Stats {
	d.mu.Lock()
	queues := make([]*queue, 0, len(d.queues))
	for _, q := range d.queues {
		queues = append(queues, q)
	}
	d.mu.Unlock()

	out := make([]Stats, 0, len(queues))
	for _, q := range queues {
		q.mu.Lock()
		out = append(out, Stats{
			Model:     q.model,
			Limit:     q.quota.Limit,
			Remaining: q.quota.Remaining,
			ResetAt:   q.quota.ResetAt,
			Queued:    len(q.jobs),
			Processed: q.processed,
		})
		q.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out
}

// Close stops every queue. Calls still waiting fail with ErrClosed; a call
// already running is allowed to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.done)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) limit() int {
	if d.cfg.Limit <= 0 {
		return math.MaxInt32
	}
	return d.cfg.Limit
}

func (d *Dispatcher) queueFor(model string) (*queue, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	if q, ok := d.queues[model]; ok {
		return q, nil
	}

	limit := d.limit()
	q := &queue{
		model:   model,
		jobs:    make(chan *job, d.cfg.QueueSize),
		stopped: make(chan struct{}),
		quota: Quota{
			Limit:     limit,
			Remaining: limit,
			ResetAt:   d.now().Add(d.cfg.Window),
		},
	}
	d.queues[model] = q
	d.wg.Add(1)
	go d.run(q)
	d.log.Debug("dispatcher queue started", zap.String("model", model), zap.Int("limit", limit))
	return q, nil
}

func (d *Dispatcher) run(q *queue) {
	defer d.wg.Done()
	defer close(q.stopped)
	for {
		select {
		case <-d.done:
			d.drain(q)
			return
		case j := <-q.jobs:
			queueDepth.WithLabelValues(q.model).Dec()
			d.dispatch(q, j)
		}
	}
}

func (d *Dispatcher) drain(q *queue) {
	for {
		select {
		case j := <-q.jobs:
			queueDepth.WithLabelValues(q.model).Dec()
			j.result <- ErrClosed
		default:
			return
		}
	}
}

func (d *Dispatcher) dispatch(q *queue, j *job) {
	if err := j.ctx.Err(); err != nil {
		dispatchTotal.WithLabelValues(q.model, "skipped").Inc()
		j.result <- err
		return
	}
	if err := d.acquire(j.ctx, q); err != nil {
		dispatchTotal.WithLabelValues(q.model, "skipped").Inc()
		j.result <- err
		return
	}

	dispatchWait.WithLabelValues(q.model).Observe(d.now().Sub(j.queued).Seconds())
	err := j.task(j.ctx)

	q.mu.Lock()
	q.processed++
	q.mu.Unlock()

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	dispatchTotal.WithLabelValues(q.model, outcome).Inc()
	j.result <- err
}

// acquire takes one unit of quota, sleeping until the window resets when the
// budget is spent.
func (d *Dispatcher) acquire(ctx context.Context, q *queue) error {
	for {
		q.mu.Lock()
		now := d.now()
		if !now.Before(q.quota.ResetAt) {
			q.quota.Remaining = q.quota.Limit
			q.quota.ResetAt = now.Add(d.cfg.Window)
		}
		if q.quota.Remaining > 0 {
			q.quota.Remaining--
			q.mu.Unlock()
			return nil
		}
		wait := q.quota.ResetAt.Sub(now)
		q.mu.Unlock()

		d.log.Info("quota exhausted, deferring dispatch",
			zap.String("model", q.model),
			zap.Duration("wait", wait),
		)
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-d.done:
			timer.Stop()
			return ErrClosed
		}
	}
}

package syncer

import (
	"context"
	"sync"

	"sjsage522/newsworker/logger"
	"sjsage522/newsworker/pkg/errors"
)

// JobFunc is work run against a writer while it owns a sheet
type JobFunc func(ctx context.Context, w *Writer) (int, error)

type job struct {
	ctx    context.Context
	fn     JobFunc
	result chan jobResult
}

type jobResult struct {
	n   int
	err error
}

// Dispatcher serialises work per destination sheet: every sheet has one queue and
// one goroutine, so the identity read and the write of one job never interleave
// with another job on the same sheet. Different sheets proceed in parallel.
type Dispatcher struct {
	writer *Writer

	mu     sync.RWMutex
	queues map[string]chan job
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher over writer
func NewDispatcher(writer *Writer) *Dispatcher {
	return &Dispatcher{
		writer: writer,
		queues: make(map[string]chan job),
	}
}

// Submit queues fn for sheet and waits for its result
func (d *Dispatcher) Submit(ctx context.Context, sheet string, fn JobFunc) (int, error) {
	j := job{ctx: ctx, fn: fn, result: make(chan jobResult, 1)}
	if err := d.send(ctx, sheet, j); err != nil {
		return 0, err
	}

	select {
	case r := <-j.result:
		return r.n, r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Sync submits a Writer.Sync of t to sheet
func (d *Dispatcher) Sync(ctx context.Context, sheet string, t Table) (int, error) {
	return d.Submit(ctx, sheet, func(ctx context.Context, w *Writer) (int, error) {
		return w.Sync(ctx, sheet, t)
	})
}

// EnrichColumns submits a Writer.EnrichColumns to sheet
func (d *Dispatcher) EnrichColumns(ctx context.Context, sheet string, plan ColumnEnrichment) (int, error) {
	return d.Submit(ctx, sheet, func(ctx context.Context, w *Writer) (int, error) {
		return w.EnrichColumns(ctx, sheet, plan)
	})
}

// Close stops accepting work and waits for queued jobs to finish
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

// send enqueues j under the read lock so Close cannot close the queue mid-send
func (d *Dispatcher) send(ctx context.Context, sheet string, j job) error {
	d.ensureQueue(sheet)

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return errors.NewStore(sheet, "dispatcher closed", nil)
	}
	select {
	case d.queues[sheet] <- j:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) ensureQueue(sheet string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.queues[sheet]; ok || d.closed {
		return
	}
	q := make(chan job, 16)
	d.queues[sheet] = q
	d.wg.Add(1)
	go d.run(sheet, q)
}

func (d *Dispatcher) run(sheet string, q chan job) {
	defer d.wg.Done()
	logger.ForSync().Debug().Str("sheet", sheet).Msg("Sheet writer started")

	for j := range q {
		if err := j.ctx.Err(); err != nil {
			j.result <- jobResult{err: err}
			continue
		}
		n, err := j.fn(j.ctx, d.writer)
		j.result <- jobResult{n: n, err: err}
	}
}

package translate

import (
	"context"
	"time"
)

// Queue admission defaults: at most 25 completed translations per rolling
// 60-second window.
const (
	DefaultQueueLimit  = 25
	DefaultQueueWindow = time.Minute
)

// clock abstracts time for the queue so tests can drive it deterministically.
type clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

type queueResult struct {
	text string
	err  error
}

type queueRequest struct {
	ctx context.Context
	run func() (string, error)
	out chan queueResult
}

// Queue is a bounded-throughput admission controller for translation calls.
// A single consumer goroutine drains requests in arrival order; when the
// sliding window of completion timestamps is full it sleeps until the oldest
// entry ages out before running the next request. Callers block on a
// per-request channel until their translation completes, so requests from
// different sessions interleave fairly.
type Queue struct {
	limit    int
	window   time.Duration
	clk      clock
	requests chan *queueRequest
	done     chan struct{}

	// completed is owned by the consumer goroutine.
	completed []time.Time
}

// NewQueue starts an admission queue with the given per-window limit. Zero
// or negative arguments fall back to the defaults.
func NewQueue(limit int, window time.Duration) *Queue {
	return newQueue(limit, window, realClock{})
}

func newQueue(limit int, window time.Duration, clk clock) *Queue {
	if limit <= 0 {
		limit = DefaultQueueLimit
	}
	if window <= 0 {
		window = DefaultQueueWindow
	}

	q := &Queue{
		limit:    limit,
		window:   window,
		clk:      clk,
		requests: make(chan *queueRequest, 256),
		done:     make(chan struct{}),
	}

	go q.consume()

	return q
}

// Do submits run to the queue and blocks until it has been executed or ctx
// is cancelled. Cancellation only abandons the wait; a request already being
// executed runs to completion.
func (q *Queue) Do(ctx context.Context, run func() (string, error)) (string, error) {
	req := &queueRequest{ctx: ctx, run: run, out: make(chan queueResult, 1)}

	select {
	case q.requests <- req:
	case <-ctx.Done():
		return "", ctx.Err()
	case <-q.done:
		return "", context.Canceled
	}

	select {
	case res := <-req.out:
		return res.text, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close stops the consumer. Requests still queued are abandoned.
func (q *Queue) Close() {
	close(q.done)
}

func (q *Queue) consume() {
	for {
		select {
		case <-q.done:
			return
		case req := <-q.requests:
			if wait := q.waitTime(q.clk.Now()); wait > 0 {
				q.clk.Sleep(wait)
			}

			if err := req.ctx.Err(); err != nil {
				req.out <- queueResult{err: err}
				continue
			}

			text, err := req.run()
			q.record(q.clk.Now())
			req.out <- queueResult{text: text, err: err}
		}
	}
}

// waitTime prunes completions that have aged out of the window and returns
// how long the consumer must sleep before the next request may run.
func (q *Queue) waitTime(now time.Time) time.Duration {
	cutoff := now.Add(-q.window)

	kept := q.completed[:0]
	for _, ts := range q.completed {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	q.completed = kept

	if len(q.completed) < q.limit {
		return 0
	}

	return q.window - now.Sub(q.completed[0])
}

func (q *Queue) record(now time.Time) {
	q.completed = append(q.completed, now)
}

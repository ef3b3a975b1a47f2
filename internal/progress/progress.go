// Package progress prints a single-line progress indicator with an ETA.
package progress

import (
	"context"
	"fmt"
	"io"
	"time"
)

// DefaultMinDelay is the minimum time between two redraws.
const DefaultMinDelay = 100 * time.Millisecond

// Reporter renders "\r<desc><n>/<total> (<pct>%) (ETA m:ss)" lines.
//
// Example:
//
//	r := progress.New(os.Stdout, "Epoch 1/10, Batch ", len(batches))
//	for _, b := range batches {
//	    r.Step()
//	    train(b)
//	}
//	r.Done()
type Reporter struct {
	w        io.Writer
	desc     string
	total    int
	minDelay time.Duration
	now      func() time.Time

	n     int
	start time.Time
	last  time.Time
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithMinDelay sets the minimum time between redraws.
func WithMinDelay(d time.Duration) Option {
	return func(r *Reporter) { r.minDelay = d }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Reporter) { r.now = now }
}

// New creates a reporter for total items. total must be positive.
func New(w io.Writer, desc string, total int, opts ...Option) *Reporter {
	if total <= 0 {
		panic(fmt.Sprintf("progress: total must be positive, got %d", total))
	}
	r := &Reporter{
		w:        w,
		desc:     desc,
		total:    total,
		minDelay: DefaultMinDelay,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.start = r.now()
	return r
}

// Step records that the next item is about to be processed and redraws if
// at least the minimum delay has passed.
func (r *Reporter) Step() {
	n := r.n
	r.n++
	now := r.now()
	if !r.last.IsZero() && now.Sub(r.last) <= r.minDelay {
		return
	}
	r.last = now

	fmt.Fprintf(r.w, "\r%s%d/%d (%6.2f%%) ", r.desc, n+1, r.total, float64(n)/float64(r.total)*100)
	if n > 0 {
		done := now.Sub(r.start)
		remaining := time.Duration(float64(done)/float64(n)*float64(r.total)) - done
		fmt.Fprintf(r.w, "(ETA: %s) ", clock(remaining))
	}
}

// Done prints the final line with the elapsed time.
func (r *Reporter) Done() {
	fmt.Fprintf(r.w, "\r%s%d/%d (100.00%%) (took %s)\n", r.desc, r.total, r.total, clock(r.now().Sub(r.start)))
}

// clock formats d as m:ss.
func clock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

// Wrap forwards every item of in to the returned channel, stepping r before
// each one and calling Done when in is closed. The returned channel is
// closed early once ctx is cancelled, so callers that stop reading must
// cancel ctx.
func Wrap[T any](ctx context.Context, in <-chan T, r *Reporter) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for {
			var item T
			select {
			case <-ctx.Done():
				return
			case v, ok := <-in:
				if !ok {
					r.Done()
					return
				}
				item = v
			}
			r.Step()
			select {
			case <-ctx.Done():
				return
			case out <- item:
			}
		}
	}()
	return out
}

// Package parallel splits element loops across goroutines for tensor and
// image kernels.
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Config decides whether and how a loop is split.
type Config struct {
	Enabled      bool
	NumWorkers   int // upper bound on concurrent chunks
	MinChunkSize int // loops shorter than this run inline
}

// DefaultConfig uses one worker per CPU and stays sequential on a single core.
func DefaultConfig() Config {
	cpus := runtime.NumCPU()
	return Config{Enabled: cpus > 1, NumWorkers: cpus, MinChunkSize: 4096}
}

// Sequential never spawns goroutines.
func Sequential() Config {
	return Config{NumWorkers: 1, MinChunkSize: 1}
}

func (c Config) inline(n int) bool {
	return !c.Enabled || c.NumWorkers < 2 || n < c.MinChunkSize
}

// chunk returns the span each goroutine handles for a loop of n items.
func (c Config) chunk(n int) int {
	return max(c.MinChunkSize, (n+c.NumWorkers-1)/c.NumWorkers)
}

// Range calls f on disjoint [start, end) spans that cover [0, n) and returns
// once every call has finished. Kernels with per-span state (accumulators,
// scratch rows) use it instead of For.
func Range(n int, f func(start, end int), cfg Config) {
	switch {
	case n <= 0:
		return
	case cfg.inline(n):
		f(0, n)
		return
	}

	var g errgroup.Group
	g.SetLimit(cfg.NumWorkers)
	size := cfg.chunk(n)
	for lo := 0; lo < n; lo += size {
		hi := min(lo+size, n)
		g.Go(func() error {
			f(lo, hi)
			return nil
		})
	}
	_ = g.Wait()
}

// For calls f(i) for every i in [0, n).
func For(n int, f func(i int), cfg Config) {
	Range(n, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			f(i)
		}
	}, cfg)
}

// ForBatch is For over a batch×channels grid, the common NCHW loop shape.
func ForBatch(batch, channels int, f func(b, c int), cfg Config) {
	For(batch*channels, func(k int) {
		f(k/channels, k%channels)
	}, cfg)
}

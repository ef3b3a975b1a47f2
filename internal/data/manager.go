// Package data feeds minibatches to a training loop.
//
// A Manager owns a dataset of one or more tensors sharing their leading
// dimension. Every epoch it optionally shuffles, slices ⌊N/batch⌋ minibatches,
// augments them, and prefetches up to NumCached batches on a background
// goroutine while the caller trains on the previous one.
package data

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/born-ml/neuralnet/internal/config"
	"github.com/born-ml/neuralnet/internal/log"
	"github.com/born-ml/neuralnet/internal/progress"
	"github.com/born-ml/neuralnet/internal/tensor"
)

// Errors returned by the data manager.
var (
	ErrOptions     = errors.New("invalid data options")
	ErrDataset     = errors.New("invalid dataset")
	ErrPlaceholder = errors.New("placeholder mismatch")
)

// Options controls batching.
type Options struct {
	BatchSize    int
	NEpochs      int
	Shuffle      bool
	NumCached    int // prefetched batches (default 10)
	Augmentation bool
	StartEpoch   int   // resume from this epoch
	Infinite     bool  // ignore NEpochs and loop forever
	Seed         int64 // shuffle seed; 0 seeds from the clock

	// Progress, when set, receives a progress line per epoch.
	Progress io.Writer
}

// OptionsFromConfig builds Options from the data and training sections.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		BatchSize:    cfg.Training.BatchSize,
		NEpochs:      cfg.Training.NEpochs,
		Shuffle:      cfg.Data.Shuffle,
		NumCached:    cfg.Data.NumCached,
		Augmentation: cfg.Data.Augmentation,
		StartEpoch:   cfg.Training.CheckpointEpoch,
		Infinite:     cfg.Data.Infinite,
		Seed:         cfg.Training.Seed,
	}
}

// Augmenter transforms a minibatch. It runs on the prefetch goroutine and
// must not retain the batch.
type Augmenter func(batch []*tensor.Tensor) []*tensor.Tensor

// BatchFunc is called once per minibatch. iteration counts batches across
// epochs: epoch*BatchesPerEpoch + index.
type BatchFunc func(ctx context.Context, iteration int, batch []*tensor.Tensor) error

// Manager manages a dataset and serves minibatches.
type Manager struct {
	opts         Options
	dataset      []*tensor.Tensor
	n            int
	placeholders []*tensor.Tensor
	augment      Augmenter
	rng          *rand.Rand
	epoch        int
	logger       zerolog.Logger
}

// New creates a manager over dataset. placeholders, when given, receive a
// copy of every batch before the callback runs, one per dataset tensor.
func New(dataset, placeholders []*tensor.Tensor, opts Options) (*Manager, error) {
	if opts.BatchSize <= 0 || (opts.NEpochs <= 0 && !opts.Infinite) {
		return nil, fmt.Errorf("%w: batch_size and n_epochs must be provided (got %d and %d)",
			ErrOptions, opts.BatchSize, opts.NEpochs)
	}
	if opts.NumCached <= 0 {
		opts.NumCached = config.DefaultNumCached
	}
	if len(dataset) == 0 {
		return nil, fmt.Errorf("%w: no tensors", ErrDataset)
	}
	n := 0
	for i, t := range dataset {
		if t.Dims() == 0 {
			return nil, fmt.Errorf("%w: tensor %d is a scalar", ErrDataset, i)
		}
		if i == 0 {
			n = t.Shape()[0]
		} else if t.Shape()[0] != n {
			return nil, fmt.Errorf("%w: tensor %d has %d samples, tensor 0 has %d", ErrDataset, i, t.Shape()[0], n)
		}
	}
	if placeholders != nil && len(placeholders) != len(dataset) {
		return nil, fmt.Errorf("%w: data has length %d but placeholders has length %d",
			ErrPlaceholder, len(dataset), len(placeholders))
	}

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Manager{
		opts:         opts,
		dataset:      dataset,
		n:            n,
		placeholders: placeholders,
		rng:          rand.New(rand.NewSource(seed)), //nolint:gosec // G404: shuffling only
		epoch:        opts.StartEpoch,
		logger:       log.WithComponent("data"),
	}, nil
}

// SetAugmenter installs the augmentation applied when Options.Augmentation is on.
func (m *Manager) SetAugmenter(a Augmenter) {
	m.augment = a
}

// Len returns the number of samples.
func (m *Manager) Len() int {
	return m.n
}

// Item returns sample i of every dataset tensor.
func (m *Manager) Item(i int) []*tensor.Tensor {
	if i < 0 || i >= m.n {
		panic(fmt.Sprintf("data: item %d out of range [0, %d)", i, m.n))
	}
	out := make([]*tensor.Tensor, len(m.dataset))
	for j, t := range m.dataset {
		out[j] = t.Slice(0, i, i+1).Reshape(t.Shape()[1:]...)
	}
	return out
}

// BatchesPerEpoch returns ⌊N/batch⌋. A trailing partial batch is dropped.
func (m *Manager) BatchesPerEpoch() int {
	return m.n / m.opts.BatchSize
}

// Epoch returns the epoch being served, or the next one between runs.
func (m *Manager) Epoch() int {
	return m.epoch
}

// Options returns the effective options.
func (m *Manager) Options() Options {
	return m.opts
}

// order returns the sample order of one epoch, or nil for the natural order.
func (m *Manager) order() []int {
	if !m.opts.Shuffle {
		return nil
	}
	return m.rng.Perm(m.n)
}

// batch gathers minibatch b of an epoch served in the given order.
func (m *Manager) batch(order []int, b int) []*tensor.Tensor {
	lo, hi := b*m.opts.BatchSize, (b+1)*m.opts.BatchSize
	out := make([]*tensor.Tensor, len(m.dataset))
	for i, t := range m.dataset {
		if order == nil {
			out[i] = t.Slice(0, lo, hi)
			continue
		}
		out[i] = t.Index(0, order[lo:hi])
	}
	return out
}

// UpdateInput copies batch into the placeholders. Counts and shapes must match.
func (m *Manager) UpdateInput(batch []*tensor.Tensor) error {
	if m.placeholders == nil {
		return nil
	}
	if len(batch) != len(m.placeholders) {
		return fmt.Errorf("%w: data has length %d but placeholders has length %d",
			ErrPlaceholder, len(batch), len(m.placeholders))
	}
	for i, p := range m.placeholders {
		if err := p.CopyFrom(batch[i]); err != nil {
			return fmt.Errorf("%w: placeholder %d: %w", ErrPlaceholder, i, err)
		}
	}
	return nil
}

// Run iterates epochs from the start epoch to NEpochs (forever when
// Infinite), calling fn for every minibatch. It stops at the first error
// from fn or when ctx is cancelled, and never leaves the prefetch
// goroutine running.
func (m *Manager) Run(ctx context.Context, fn BatchFunc) error {
	nb := m.BatchesPerEpoch()
	if nb == 0 {
		return fmt.Errorf("%w: %d samples is fewer than one batch of %d", ErrDataset, m.n, m.opts.BatchSize)
	}

	for ; m.opts.Infinite || m.epoch < m.opts.NEpochs; m.epoch++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.logger.Debug().
			Str("event", "data.epoch_start").
			Int("epoch", m.epoch).
			Int("batches", nb).
			Msg("starting epoch")
		if err := m.runEpoch(ctx, nb, fn); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) runEpoch(ctx context.Context, nb int, fn BatchFunc) error {
	g, gctx := errgroup.WithContext(ctx)
	queue := make(chan []*tensor.Tensor, m.opts.NumCached)

	// Producer
	g.Go(func() error {
		defer close(queue)
		order := m.order()
		for b := range nb {
			batch := m.batch(order, b)
			if m.opts.Augmentation && m.augment != nil {
				batch = m.augment(batch)
			}
			select {
			case queue <- batch:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	// Consumer
	g.Go(func() error {
		var rep *progress.Reporter
		if m.opts.Progress != nil {
			rep = progress.New(m.opts.Progress, fmt.Sprintf("Epoch %d/%d, Batch ", m.epoch, m.opts.NEpochs), nb)
		}
		it := 0
		for batch := range queue {
			if err := gctx.Err(); err != nil {
				return err
			}
			if rep != nil {
				rep.Step()
			}
			if err := m.UpdateInput(batch); err != nil {
				return err
			}
			if err := fn(gctx, m.epoch*nb+it, batch); err != nil {
				return err
			}
			it++
		}
		if rep != nil {
			rep.Done()
		}
		return gctx.Err()
	})

	return g.Wait()
}

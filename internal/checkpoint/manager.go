package checkpoint

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/born-ml/neuralnet/internal/log"
	"github.com/born-ml/neuralnet/internal/nn"
	"github.com/born-ml/neuralnet/internal/optim"
)

// Manager keeps per-epoch checkpoints in Dir, named epoch-%04d.born.
// When Keep is positive only the newest Keep files survive a Save.
type Manager struct {
	Dir  string
	Keep int
}

// Entry is a checkpoint file found in the directory.
type Entry struct {
	Epoch int
	Path  string
}

// Path returns the file name used for epoch.
func (m Manager) Path(epoch int) string {
	return filepath.Join(m.Dir, fmt.Sprintf("epoch-%04d.born", epoch))
}

// Save writes the checkpoint for st.Epoch and prunes old files.
func (m Manager) Save(model nn.Model, opt optim.Optimizer, st State) (State, error) {
	if err := os.MkdirAll(m.Dir, 0o750); err != nil {
		return st, fmt.Errorf("create checkpoint dir: %w", err)
	}
	st, err := Save(m.Path(st.Epoch), model, opt, st)
	if err != nil {
		return st, err
	}
	return st, m.Prune()
}

// List returns the checkpoints in Dir ordered by epoch. A missing
// directory yields an empty list.
func (m Manager) List() ([]Entry, error) {
	dirents, err := os.ReadDir(m.Dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	var entries []Entry
	for _, d := range dirents {
		if d.IsDir() {
			continue
		}
		var epoch int
		// Sscanf ignores trailing text, so also compare the rendered name.
		if _, err := fmt.Sscanf(d.Name(), "epoch-%d.born", &epoch); err != nil {
			continue
		}
		if filepath.Base(m.Path(epoch)) != d.Name() {
			continue
		}
		entries = append(entries, Entry{Epoch: epoch, Path: filepath.Join(m.Dir, d.Name())})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Epoch < entries[j].Epoch })
	return entries, nil
}

// Latest returns the newest checkpoint or ErrNoCheckpoint.
func (m Manager) Latest() (Entry, error) {
	entries, err := m.List()
	if err != nil {
		return Entry{}, err
	}
	if len(entries) == 0 {
		return Entry{}, fmt.Errorf("%w in %s", ErrNoCheckpoint, m.Dir)
	}
	return entries[len(entries)-1], nil
}

// Find returns the checkpoint for epoch or ErrNoCheckpoint.
func (m Manager) Find(epoch int) (Entry, error) {
	path := m.Path(epoch)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Entry{}, fmt.Errorf("%w for epoch %d in %s", ErrNoCheckpoint, epoch, m.Dir)
		}
		return Entry{}, err
	}
	return Entry{Epoch: epoch, Path: path}, nil
}

// Prune removes all but the newest Keep checkpoints.
func (m Manager) Prune() error {
	if m.Keep <= 0 {
		return nil
	}
	entries, err := m.List()
	if err != nil {
		return err
	}
	if len(entries) <= m.Keep {
		return nil
	}
	logger := log.WithComponent("checkpoint")
	var errs []error
	for _, e := range entries[:len(entries)-m.Keep] {
		if err := os.Remove(e.Path); err != nil {
			errs = append(errs, err)
			continue
		}
		logger.Debug().
			Str("event", "checkpoint.pruned").
			Str("path", e.Path).
			Int("epoch", e.Epoch).
			Msg("removed old checkpoint")
	}
	return errors.Join(errs...)
}

// Package monitor records training scalars.
//
// Values passed to Plot during an iteration are averaged by Tick, which
// logs them, publishes them as Prometheus gauges and appends them to an
// optional SQLite history that the HTTP handler serves back as JSON.
package monitor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // pure Go driver

	"github.com/born-ml/neuralnet/internal/log"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("monitor closed")

// Options configures a Monitor.
type Options struct {
	RunID string
	// DB is the SQLite history path. Empty keeps no history.
	DB string
	// Registry receives the monitor's collectors. Nil creates a private one.
	Registry *prometheus.Registry
	// Now replaces time.Now, for tests.
	Now func() time.Time
}

// Point is one averaged value of a series.
type Point struct {
	Iteration int       `json:"iteration"`
	Value     float64   `json:"value"`
	Time      time.Time `json:"ts"`
}

type accum struct {
	sum   float64
	count int
}

// Monitor accumulates scalars between ticks. It is safe for concurrent use.
type Monitor struct {
	mu      sync.Mutex
	runID   string
	iter    int
	pending map[string]*accum
	last    map[string]float64
	lastAt  time.Time
	closed  bool

	now    func() time.Time
	store  *store
	logger zerolog.Logger

	registry *prometheus.Registry
	values   *prometheus.GaugeVec
	ticks    prometheus.Counter
	tickTime prometheus.Histogram
}

// New creates a monitor and opens its history database.
func New(ctx context.Context, opts Options) (*Monitor, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	m := &Monitor{
		runID:    opts.RunID,
		pending:  make(map[string]*accum),
		last:     make(map[string]float64),
		now:      opts.Now,
		logger:   log.WithComponent("monitor"),
		registry: reg,
		values: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "neuralnet",
			Name:      "series_value",
			Help:      "Mean of the values plotted for a series during the last iteration.",
		}, []string{"run_id", "name"}),
		ticks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "neuralnet",
			Name:      "iterations_total",
			Help:      "Number of monitor ticks.",
		}),
		tickTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "neuralnet",
			Name:      "iteration_seconds",
			Help:      "Wall time between consecutive ticks.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
	m.lastAt = m.now()

	if opts.DB != "" {
		s, err := openStore(ctx, opts.DB)
		if err != nil {
			return nil, err
		}
		m.store = s
	}
	return m, nil
}

// Plot records value for name in the current iteration.
func (m *Monitor) Plot(name string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.pending[name]
	if !ok {
		a = &accum{}
		m.pending[name] = a
	}
	a.sum += value
	a.count++
}

// Tick closes the current iteration: it averages every series plotted since
// the last tick, publishes and stores the means, and advances the counter.
// It returns the means by name.
func (m *Monitor) Tick(ctx context.Context) (map[string]float64, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	now := m.now()
	elapsed := now.Sub(m.lastAt)
	iter := m.iter
	means := make(map[string]float64, len(m.pending))
	for name, a := range m.pending {
		means[name] = a.sum / float64(a.count)
		m.last[name] = means[name]
	}
	clear(m.pending)
	m.iter++
	m.lastAt = now
	m.mu.Unlock()

	m.ticks.Inc()
	m.tickTime.Observe(elapsed.Seconds())
	for name, v := range means {
		m.values.WithLabelValues(m.runID, name).Set(v)
	}

	if len(means) > 0 {
		ev := m.logger.Debug().
			Str("event", "monitor.tick").
			Int("iteration", iter).
			Dur("elapsed", elapsed)
		for _, name := range sortedNames(means) {
			ev = ev.Float64(name, means[name])
		}
		ev.Msg("iteration")
	}

	if m.store != nil && len(means) > 0 {
		if err := m.store.append(ctx, m.runID, iter, now, means); err != nil {
			return means, err
		}
	}
	return means, nil
}

// Iteration returns the number of completed ticks.
func (m *Monitor) Iteration() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.iter
}

// SetIteration moves the counter, for resumed runs.
func (m *Monitor) SetIteration(iter int) {
	m.mu.Lock()
	m.iter = iter
	m.mu.Unlock()
}

// Last returns the most recent mean of name.
func (m *Monitor) Last(name string) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.last[name]
	return v, ok
}

// RunID returns the run the monitor records for.
func (m *Monitor) RunID() string {
	return m.runID
}

// Registry returns the registry holding the monitor's collectors.
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

// History returns the stored points of name for this run, oldest first.
func (m *Monitor) History(ctx context.Context, name string) ([]Point, error) {
	if m.store == nil {
		return nil, nil
	}
	return m.store.series(ctx, m.runID, name)
}

// Names returns the series names stored for this run.
func (m *Monitor) Names(ctx context.Context) ([]string, error) {
	if m.store == nil {
		m.mu.Lock()
		defer m.mu.Unlock()
		return sortedNames(m.last), nil
	}
	return m.store.names(ctx, m.runID)
}

// Close releases the history database.
func (m *Monitor) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	if m.store != nil {
		return m.store.close()
	}
	return nil
}

func sortedNames(values map[string]float64) []string {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// store is the SQLite history.
type store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS series (
	run_id    TEXT    NOT NULL,
	name      TEXT    NOT NULL,
	iteration INTEGER NOT NULL,
	value     REAL    NOT NULL,
	ts        INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS series_run_name ON series (run_id, name, iteration);
`

func openStore(ctx context.Context, path string) (*store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("monitor: open history: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("monitor: migrate history: %w", err)
	}
	return &store{db: db}, nil
}

func (s *store) append(ctx context.Context, runID string, iter int, ts time.Time, means map[string]float64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("monitor: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO series (run_id, name, iteration, value, ts) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("monitor: prepare: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, name := range sortedNames(means) {
		if _, err := stmt.ExecContext(ctx, runID, name, iter, means[name], ts.UnixNano()); err != nil {
			return fmt.Errorf("monitor: insert %s: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("monitor: commit: %w", err)
	}
	return nil
}

func (s *store) series(ctx context.Context, runID, name string) ([]Point, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT iteration, value, ts FROM series WHERE run_id = ? AND name = ? ORDER BY iteration`, runID, name)
	if err != nil {
		return nil, fmt.Errorf("monitor: query %s: %w", name, err)
	}
	defer func() { _ = rows.Close() }()

	var points []Point
	for rows.Next() {
		var (
			p  Point
			ts int64
		)
		if err := rows.Scan(&p.Iteration, &p.Value, &ts); err != nil {
			return nil, fmt.Errorf("monitor: scan: %w", err)
		}
		p.Time = time.Unix(0, ts).UTC()
		points = append(points, p)
	}
	return points, rows.Err()
}

func (s *store) names(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT name FROM series WHERE run_id = ? ORDER BY name`, runID)
	if err != nil {
		return nil, fmt.Errorf("monitor: query names: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("monitor: scan: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *store) close() error {
	return s.db.Close()
}

package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cloudzy/photofind/internal/metrics"
	"github.com/cloudzy/photofind/internal/vector"
)

// ReembedFunc rebuilds and inserts the index entry for one photo that exists
// in the metadata store but is missing from the index.
type ReembedFunc func(ctx context.Context, photoID int64) error

// Manager owns index durability: it tracks dirty state, flushes snapshots on
// a count-or-age trigger, restores the index at startup, and reconciles it
// against the metadata store's authoritative ID set.
//
// Flush policy: a flush runs after MaxPending dirty mutations or after the
// index has been dirty for Interval, whichever comes first. MaxPending of 1
// gives write-through behavior: less data lost on crash, higher per-insert
// latency.
type Manager struct {
	index      vector.Index
	path       string
	maxPending int
	interval   time.Duration
	logger     *zap.Logger

	mu         sync.Mutex
	generation uint64
	pending    int
	dirtySince time.Time

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Options configures a Manager.
type Options struct {
	// MaxPending is the dirty-mutation count that forces a flush. Default 32.
	MaxPending int
	// Interval is the maximum age of dirty state before a flush. Default 5s.
	Interval time.Duration
}

// NewManager creates a persistence manager for index, storing snapshots at path.
func NewManager(index vector.Index, path string, opts Options, logger *zap.Logger) *Manager {
	if opts.MaxPending <= 0 {
		opts.MaxPending = 32
	}
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	return &Manager{
		index:      index,
		path:       path,
		maxPending: opts.MaxPending,
		interval:   opts.Interval,
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// Load restores the index from the latest snapshot. A missing file yields an
// empty index at generation 0; a corrupt file is logged and treated the same
// way rather than refusing to start, since reconciliation rebuilds the
// contents. The returned snapshot carries the ID set for Reconcile.
func (m *Manager) Load(ctx context.Context) (*Snapshot, error) {
	s, err := ReadOrEmpty(m.path, m.index.Dimensions(), m.index.Metric())
	if err != nil {
		m.logger.Warn("snapshot unreadable, starting from empty index",
			zap.String("path", m.path), zap.Error(err))
		s = &Snapshot{Dimensions: m.index.Dimensions(), Metric: m.index.Metric()}
	}
	if s.Dimensions != m.index.Dimensions() || s.Metric != m.index.Metric() {
		m.logger.Warn("snapshot has incompatible dimensions or metric, discarding",
			zap.Int("snapshot_dimensions", s.Dimensions),
			zap.Int("index_dimensions", m.index.Dimensions()),
			zap.String("snapshot_metric", string(s.Metric)),
			zap.String("index_metric", string(m.index.Metric())))
		s = &Snapshot{Dimensions: m.index.Dimensions(), Metric: m.index.Metric()}
	}
	if err := m.index.ReplaceAll(s.Entries); err != nil {
		// A header that parses but a payload the index rejects (wrong
		// width, non-finite values) is still a corrupt snapshot:
		// reconciliation rebuilds the contents, so start empty rather
		// than refusing to start.
		m.logger.Warn("snapshot entries failed validation, starting from empty index",
			zap.String("path", m.path), zap.Error(err))
		s = &Snapshot{Dimensions: m.index.Dimensions(), Metric: m.index.Metric()}
		if err := m.index.ReplaceAll(nil); err != nil {
			return nil, fmt.Errorf("reset index: %w", err)
		}
	}
	m.mu.Lock()
	m.generation = s.Generation
	m.pending = 0
	m.mu.Unlock()
	m.logger.Info("index restored",
		zap.Uint64("generation", s.Generation),
		zap.Int("entries", len(s.Entries)))
	return s, nil
}

// Reconcile repairs divergence between the loaded snapshot and the metadata
// store: IDs present in metadata but missing from the index are re-embedded
// and inserted via reembed; IDs in the index that metadata no longer knows
// are removed. Afterwards the live ID set equals the authoritative set
// (minus any photos whose re-embedding failed, which are reported in the
// returned error and retried at next startup).
func (m *Manager) Reconcile(ctx context.Context, snapshotIDs map[int64]struct{}, authoritative []int64, reembed ReembedFunc) (added, removed int, err error) {
	authSet := make(map[int64]struct{}, len(authoritative))
	var errs []error
	for _, id := range authoritative {
		authSet[id] = struct{}{}
		if _, ok := snapshotIDs[id]; ok {
			continue
		}
		if rerr := reembed(ctx, id); rerr != nil {
			m.logger.Error("reconcile: re-embed failed", zap.Int64("photo_id", id), zap.Error(rerr))
			errs = append(errs, fmt.Errorf("photo %d: %w", id, rerr))
			continue
		}
		added++
	}
	for id := range snapshotIDs {
		if _, ok := authSet[id]; ok {
			continue
		}
		if rerr := m.index.Remove(ctx, id); rerr != nil {
			errs = append(errs, fmt.Errorf("remove orphan %d: %w", id, rerr))
			continue
		}
		m.MarkDirty()
		removed++
	}
	if added > 0 || removed > 0 {
		m.logger.Info("index reconciled",
			zap.Int("reembedded", added), zap.Int("orphans_removed", removed))
	}
	return added, removed, errors.Join(errs...)
}

// MarkDirty records one index mutation for the flush trigger.
func (m *Manager) MarkDirty() {
	m.mu.Lock()
	if m.pending == 0 {
		m.dirtySince = time.Now()
	}
	m.pending++
	m.mu.Unlock()
}

// Generation returns the generation of the last published snapshot.
func (m *Manager) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// Flush writes the current live entry set as a new snapshot generation.
// The entry copy is a consistent point-in-time view; inserts racing the
// flush land either fully in this snapshot or fully in the next one.
func (m *Manager) Flush(ctx context.Context) error {
	m.mu.Lock()
	gen := m.generation + 1
	pendingBefore := m.pending
	m.mu.Unlock()

	entries := m.index.Entries()
	s := &Snapshot{
		Dimensions: m.index.Dimensions(),
		Metric:     m.index.Metric(),
		Generation: gen,
		Entries:    entries,
	}
	if err := Write(m.path, s); err != nil {
		metrics.SnapshotFlushesTotal.WithLabelValues("error").Inc()
		return err
	}

	m.mu.Lock()
	m.generation = gen
	// Mutations that arrived during the write stay pending for the next flush.
	m.pending -= pendingBefore
	if m.pending < 0 {
		m.pending = 0
	}
	if m.pending > 0 {
		m.dirtySince = time.Now()
	}
	m.mu.Unlock()

	metrics.SnapshotFlushesTotal.WithLabelValues("success").Inc()
	metrics.SnapshotGeneration.Set(float64(gen))
	m.logger.Debug("snapshot flushed",
		zap.Uint64("generation", gen), zap.Int("entries", len(entries)))
	return nil
}

// Start launches the background flush loop. It runs until Close.
func (m *Manager) Start(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-m.done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if m.shouldFlush() {
					if err := m.Flush(ctx); err != nil {
						// Retried on the next trigger; dirty state is preserved.
						m.logger.Error("snapshot flush failed", zap.Error(err))
					}
				}
			}
		}
	}()
}

func (m *Manager) shouldFlush() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == 0 {
		return false
	}
	return m.pending >= m.maxPending || time.Since(m.dirtySince) >= m.interval
}

// Close stops the flush loop and performs a final flush if dirty.
func (m *Manager) Close(ctx context.Context) error {
	m.stopOnce.Do(func() { close(m.done) })
	m.wg.Wait()
	m.mu.Lock()
	dirty := m.pending > 0
	m.mu.Unlock()
	if dirty {
		return m.Flush(ctx)
	}
	return nil
}

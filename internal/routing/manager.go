package routing

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/yndnr/eventlink-go/internal/core/domain"
	"github.com/yndnr/eventlink-go/internal/telemetry/metric"
)

// Defaults applied by NewManager.
const (
	DefaultTTL      = 10
	DefaultInterval = time.Second
)

// Transport is the view of the connection layer the propagation loop needs.
type Transport interface {
	// Peers lists trusted peers that currently have an open link.
	Peers() []string
	// ResetConnection replaces the link to name with a freshly dialed one.
	ResetConnection(ctx context.Context, name string) error
	// SendTable writes snap to the link of name.
	SendTable(name string, snap *Snapshot) bool
}

// Config configures a Manager.
type Config struct {
	// NodeName is the owner recorded on local entries.
	NodeName string
	// DefaultTTL is the TTL given to local entries.
	DefaultTTL int
	// Interval is the propagation tick.
	Interval time.Duration
	// ResetBeforePush redials every peer before a round of pushes.
	ResetBeforePush bool

	Logger  *slog.Logger
	Metrics *metric.Registry
}

// Manager owns the routing tables of one node.
type Manager struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metric.Registry

	mu        sync.Mutex
	tables    map[string]*table
	fullSync  map[string]struct{}
	transport Transport

	signal    chan struct{}
	stopCh    chan struct{}
	doneCh    chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewManager creates a manager with no tables. Call Start to begin
// propagating.
func NewManager(cfg Config) (*Manager, error) {
	if err := domain.ValidateNodeName(cfg.NodeName); err != nil {
		return nil, err
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultTTL
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:      cfg,
		logger:   cfg.Logger.With("component", "routing", "node", cfg.NodeName),
		metrics:  metric.OrGlobal(cfg.Metrics),
		tables:   make(map[string]*table),
		fullSync: make(map[string]struct{}),
		signal:   make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// NodeName returns the name local entries are owned by.
func (m *Manager) NodeName() string {
	return m.cfg.NodeName
}

// Start launches the propagation loop over t. It fails when called twice or
// after Stop.
func (m *Manager) Start(t Transport) error {
	if t == nil {
		return domain.ErrInvalidArgument.WithDetails("transport is nil")
	}
	started := false
	m.startOnce.Do(func() {
		m.mu.Lock()
		m.transport = t
		m.mu.Unlock()
		go m.run()
		started = true
	})
	if !started {
		return errors.New("routing manager already started or stopped")
	}
	m.logger.Info("routing propagation started",
		"interval", m.cfg.Interval,
		"reset_before_push", m.cfg.ResetBeforePush,
	)
	return nil
}

// Stop signals the propagation loop and blocks until it has exited.
// It is safe to call more than once and before Start.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.cancel()
	})
	// Never started: consume Start so doneCh is still closed exactly once.
	m.startOnce.Do(func() { close(m.doneCh) })
	<-m.doneCh
}

// notify wakes the propagation loop without blocking.
func (m *Manager) notify() {
	select {
	case m.signal <- struct{}{}:
	default:
	}
}

func (m *Manager) run() {
	defer close(m.doneCh)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-m.signal:
		case <-ticker.C:
		}

		select {
		case <-m.stopCh:
			return
		default:
		}
		m.propagate(m.ctx)
	}
}

// propagate pushes every dirty table to every peer and serves pending full
// syncs for newly opened links.
func (m *Manager) propagate(ctx context.Context) {
	m.mu.Lock()
	var dirty []*Snapshot
	for _, name := range m.tableNamesLocked() {
		t := m.tables[name]
		if t.dirty {
			t.dirty = false
			dirty = append(dirty, t.snapshot())
		}
	}
	full := make([]string, 0, len(m.fullSync))
	for peer := range m.fullSync {
		full = append(full, peer)
	}
	m.fullSync = make(map[string]struct{})
	tr := m.transport
	m.mu.Unlock()

	if len(dirty) == 0 && len(full) == 0 {
		return
	}
	m.metrics.PropagationRounds.Inc()

	if len(dirty) > 0 {
		failed := m.pushDirty(ctx, tr, dirty)
		for name := range failed {
			m.markDirty(name)
		}
	}

	sort.Strings(full)
	for _, peer := range full {
		m.SendAllTablesTo(peer)
	}
}

// pushDirty sends dirty to every peer and returns the tables that did not
// reach all of them.
func (m *Manager) pushDirty(ctx context.Context, tr Transport, dirty []*Snapshot) map[string]struct{} {
	failed := make(map[string]struct{})
	for _, peer := range tr.Peers() {
		if peer == m.cfg.NodeName {
			continue
		}
		if m.cfg.ResetBeforePush {
			if err := tr.ResetConnection(ctx, peer); err != nil {
				m.logger.Warn("reset before push failed", "peer", peer, "error", err)
				for _, snap := range dirty {
					failed[snap.Name] = struct{}{}
				}
				m.metrics.TablePushes.WithLabelValues("failed").Add(float64(len(dirty)))
				continue
			}
		}
		for _, snap := range dirty {
			if tr.SendTable(peer, snap) {
				m.metrics.TablePushes.WithLabelValues("ok").Inc()
				continue
			}
			failed[snap.Name] = struct{}{}
			m.metrics.TablePushes.WithLabelValues("failed").Inc()
			m.logger.Debug("table push failed", "peer", peer, "table", snap.Name)
		}
	}
	return failed
}

func (m *Manager) markDirty(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tables[name]; ok {
		t.dirty = true
	}
}

// PeerConnected schedules a push of all tables to name. It is meant as a
// link-open observer and never blocks on I/O.
func (m *Manager) PeerConnected(name string) {
	if name == "" || name == m.cfg.NodeName {
		return
	}
	m.mu.Lock()
	m.fullSync[name] = struct{}{}
	m.mu.Unlock()
	m.notify()
}

// SendAllTablesTo pushes a snapshot of every table to name without a
// connection reset. It reports whether every push succeeded.
func (m *Manager) SendAllTablesTo(name string) bool {
	m.mu.Lock()
	tr := m.transport
	snaps := make([]*Snapshot, 0, len(m.tables))
	for _, tn := range m.tableNamesLocked() {
		snaps = append(snaps, m.tables[tn].snapshot())
	}
	m.mu.Unlock()

	if tr == nil {
		return false
	}
	ok := true
	for _, snap := range snaps {
		if tr.SendTable(name, snap) {
			m.metrics.TablePushes.WithLabelValues("ok").Inc()
			continue
		}
		ok = false
		m.metrics.TablePushes.WithLabelValues("failed").Inc()
	}
	m.logger.Debug("sent all tables", "peer", name, "tables", len(snaps), "ok", ok)
	return ok
}

// AddEntry inserts or overwrites a local entry and schedules propagation.
func (m *Manager) AddEntry(tableName, name string) bool {
	if tableName == "" || name == "" {
		return false
	}
	m.mu.Lock()
	t := m.tableLocked(tableName)
	t.putLocal(m.cfg.NodeName, name, m.cfg.DefaultTTL)
	m.mu.Unlock()

	m.notify()
	return true
}

// DeleteEntry removes an entry from the local table. The removal is not
// sent to peers.
func (m *Manager) DeleteEntry(tableName, name string) bool {
	m.mu.Lock()
	t, ok := m.tables[tableName]
	removed := ok && t.remove(name)
	m.mu.Unlock()

	if removed {
		m.notify()
	}
	return removed
}

// DeleteTable drops a whole table locally.
func (m *Manager) DeleteTable(tableName string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tables[tableName]; !ok {
		return false
	}
	delete(m.tables, tableName)
	return true
}

// CombineTable merges a snapshot received from source and reports whether
// the local table changed.
func (m *Manager) CombineTable(source string, snap *Snapshot) bool {
	if snap == nil || snap.Name == "" || source == "" || source == m.cfg.NodeName {
		return false
	}

	m.mu.Lock()
	t := m.tableLocked(snap.Name)
	changed := t.combine(m.cfg.NodeName, source, snap.Entries)
	m.mu.Unlock()

	if changed {
		m.metrics.TableMerges.WithLabelValues("changed").Inc()
		m.logger.Debug("merged table", "peer", source, "table", snap.Name, "entries", len(snap.Entries))
		m.notify()
	} else {
		m.metrics.TableMerges.WithLabelValues("unchanged").Inc()
	}
	return changed
}

// GetEntries returns a copy of all entries of a table.
func (m *Manager) GetEntries(tableName string) (map[string]Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[tableName]
	if !ok {
		return nil, false
	}
	return t.copyEntries(), true
}

// GetEntry returns a copy of one entry.
func (m *Manager) GetEntry(tableName, name string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[tableName]
	if !ok {
		return Entry{}, false
	}
	e, ok := t.entries[name]
	return e, ok
}

// GetLocation returns the node owning name.
func (m *Manager) GetLocation(tableName, name string) (string, bool) {
	e, ok := m.GetEntry(tableName, name)
	if !ok {
		return "", false
	}
	return e.Owner, true
}

// GetNextHop returns the neighbour through which name is reached.
func (m *Manager) GetNextHop(tableName, name string) (string, bool) {
	e, ok := m.GetEntry(tableName, name)
	if !ok {
		return "", false
	}
	return e.NextHop, true
}

// CopyKeySet returns the entry names of a table.
func (m *Manager) CopyKeySet(tableName string) (map[string]struct{}, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[tableName]
	if !ok {
		return nil, false
	}
	keys := make(map[string]struct{}, len(t.entries))
	for k := range t.entries {
		keys[k] = struct{}{}
	}
	return keys, true
}

// Snapshot returns the exportable form of a table.
func (m *Manager) Snapshot(tableName string) (*Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[tableName]
	if !ok {
		return nil, false
	}
	return t.snapshot(), true
}

// Tables returns the sorted table names.
func (m *Manager) Tables() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tableNamesLocked()
}

// TableSizes returns the number of entries per table.
func (m *Manager) TableSizes() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	sizes := make(map[string]int, len(m.tables))
	for name, t := range m.tables {
		sizes[name] = len(t.entries)
	}
	return sizes
}

// ListTables summarises every table and logs the summary.
func (m *Manager) ListTables() []Summary {
	m.mu.Lock()
	out := make([]Summary, 0, len(m.tables))
	for _, name := range m.tableNamesLocked() {
		out = append(out, m.tables[name].summary())
	}
	m.mu.Unlock()

	for _, s := range out {
		m.logger.Info("routing table",
			"table", s.Name,
			"entries", s.Entries,
			"dirty", s.Dirty,
			"digest", s.Digest,
		)
	}
	return out
}

func (m *Manager) tableLocked(name string) *table {
	t, ok := m.tables[name]
	if !ok {
		t = newTable(name)
		m.tables[name] = t
	}
	return t
}

func (m *Manager) tableNamesLocked() []string {
	names := make([]string, 0, len(m.tables))
	for name := range m.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package clusterserver

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/oklog/ulid/v2"
	"go.uber.org/multierr"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/yndnr/eventlink-go/internal/core/domain"
	"github.com/yndnr/eventlink-go/internal/routing"
	"github.com/yndnr/eventlink-go/internal/telemetry/metric"
	"github.com/yndnr/eventlink-go/internal/trust"
)

// Defaults applied by NewManager.
const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultTTL            = 10
	DefaultAcceptRate     = 20
	DefaultAcceptBurst    = 40
	DefaultSeenCacheSize  = 4096

	redialDelay = 250 * time.Millisecond
)

// errStaleLink is returned by register when a link with a larger id to
// the same peer is already open.
var errStaleLink = errors.New("a newer link to the peer is open")

// TrustSource resolves trusted peers.
type TrustSource interface {
	Get(name string) (trust.Peer, error)
	List() ([]trust.Peer, error)
}

// RouteTable is the part of the routing manager the links feed and consult.
type RouteTable interface {
	GetNextHop(table, name string) (string, bool)
	CombineTable(source string, snap *routing.Snapshot) bool
}

// MessageHandler receives messages addressed to this node.
type MessageHandler func(msg *Message)

// Config configures a Manager.
type Config struct {
	NodeName string
	Identity *trust.Identity
	Trust    TrustSource
	// Routes is optional; without it no forwarding happens and received
	// tables are discarded.
	Routes RouteTable

	ConnectTimeout time.Duration
	// WriteTimeout bounds a single frame write. Defaults to ConnectTimeout.
	WriteTimeout  time.Duration
	MaxFrameSize  int
	DefaultTTL    int
	AcceptRate    float64
	AcceptBurst   int
	SeenCacheSize int
	// RedialOnLoss lets the node with the smaller name redial once after
	// the peer closed the link. Off by default: lost links come back on
	// the next CheckTrusted.
	RedialOnLoss bool

	Logger  *slog.Logger
	Metrics *metric.Registry
}

// Manager owns the links of one node, keyed by peer name.
type Manager struct {
	cfg       Config
	logger    *slog.Logger
	metrics   *metric.Registry
	serverTLS *tls.Config
	limiter   *rate.Limiter
	seen      *lru.Cache[string, struct{}]

	// dials holds one in-flight dial per peer.
	dials singleflight.Group

	mu        sync.Mutex
	links     map[string]*Link
	lastID    map[string]ulid.ULID
	listeners []net.Listener
	observers []func(peer string)
	closed    bool

	handler atomic.Pointer[MessageHandler]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a manager. It does not listen or dial.
func NewManager(cfg Config) (*Manager, error) {
	if err := domain.ValidateNodeName(cfg.NodeName); err != nil {
		return nil, err
	}
	if cfg.Identity == nil {
		return nil, domain.ErrInvalidArgument.WithDetails("identity is required")
	}
	if cfg.Identity.Name != cfg.NodeName {
		return nil, domain.ErrInvalidArgument.WithDetailsf("identity belongs to %q, not %q", cfg.Identity.Name, cfg.NodeName)
	}
	if cfg.Trust == nil {
		return nil, domain.ErrInvalidArgument.WithDetails("trust source is required")
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = cfg.ConnectTimeout
	}
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = DefaultMaxFrameSize
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultTTL
	}
	if cfg.AcceptRate <= 0 {
		cfg.AcceptRate = DefaultAcceptRate
	}
	if cfg.AcceptBurst <= 0 {
		cfg.AcceptBurst = DefaultAcceptBurst
	}
	if cfg.SeenCacheSize <= 0 {
		cfg.SeenCacheSize = DefaultSeenCacheSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	seen, err := lru.New[string, struct{}](cfg.SeenCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create seen cache: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:       cfg,
		logger:    cfg.Logger.With("component", "connections", "node", cfg.NodeName),
		metrics:   metric.OrGlobal(cfg.Metrics),
		serverTLS: trust.ServerConfig(cfg.Identity, cfg.Trust),
		limiter:   rate.NewLimiter(rate.Limit(cfg.AcceptRate), cfg.AcceptBurst),
		seen:      seen,
		links:     make(map[string]*Link),
		lastID:    make(map[string]ulid.ULID),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// NodeName returns the local node name.
func (m *Manager) NodeName() string {
	return m.cfg.NodeName
}

// OnLinkOpen registers fn to be called after every link opens.
// Observers run on the goroutine that established the link.
func (m *Manager) OnLinkOpen(fn func(peer string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// OnMessage sets the handler for messages addressed to this node.
func (m *Manager) OnMessage(fn MessageHandler) {
	m.handler.Store(&fn)
}

// IsConnected reports whether an open link to name exists.
func (m *Manager) IsConnected(name string) bool {
	return m.openLink(name) != nil
}

func (m *Manager) openLink(name string) *Link {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l := m.links[name]; l != nil && l.IsOpen() {
		return l
	}
	return nil
}

// Peers lists the peers with an open link that are still trusted.
func (m *Manager) Peers() []string {
	m.mu.Lock()
	names := make([]string, 0, len(m.links))
	for name, l := range m.links {
		if l.IsOpen() {
			names = append(names, name)
		}
	}
	m.mu.Unlock()

	out := names[:0]
	for _, name := range names {
		if _, err := m.cfg.Trust.Get(name); err == nil {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Connections returns a snapshot of every link sorted by peer.
func (m *Manager) Connections() []LinkInfo {
	m.mu.Lock()
	infos := make([]LinkInfo, 0, len(m.links))
	for _, l := range m.links {
		infos = append(infos, l.Info())
	}
	m.mu.Unlock()
	sort.Slice(infos, func(i, j int) bool { return infos[i].Peer < infos[j].Peer })
	return infos
}

// OpenLinks returns the number of open links.
func (m *Manager) OpenLinks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, l := range m.links {
		if l.IsOpen() {
			n++
		}
	}
	return n
}

// CheckTrusted dials, concurrently, every trusted peer that has no open
// link and returns how many links were opened.
func (m *Manager) CheckTrusted(ctx context.Context) (int, error) {
	peers, err := m.cfg.Trust.List()
	if err != nil {
		return 0, fmt.Errorf("list trusted peers: %w", err)
	}

	var (
		wg     sync.WaitGroup
		opened atomic.Int32
	)
	for _, p := range peers {
		if p.Name == m.cfg.NodeName || m.IsConnected(p.Name) {
			continue
		}
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			ok, err := m.connect(ctx, name)
			if err != nil {
				m.logger.Warn("connect to trusted peer failed", "peer", name, "error", err)
				return
			}
			if ok {
				opened.Add(1)
			}
		}(p.Name)
	}
	wg.Wait()
	return int(opened.Load()), nil
}

// RunReconcile calls CheckTrusted every interval until ctx is done.
func (m *Manager) RunReconcile(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			if n, err := m.CheckTrusted(ctx); err != nil {
				m.logger.Warn("reconcile failed", "error", err)
			} else if n > 0 {
				m.logger.Info("reconcile opened links", "count", n)
			}
		}
	}
}

// ResetConnection closes the link to name and, if name is trusted, dials
// a fresh one before returning.
func (m *Manager) ResetConnection(ctx context.Context, name string) error {
	m.closeLink(name, "reset")
	if _, err := m.cfg.Trust.Get(name); err != nil {
		return err
	}
	// A dial already in flight may have seen the closed link as open.
	m.dials.Forget(name)
	_, err := m.connect(ctx, name)
	return err
}

// DeleteConnection closes and forgets the link to name.
func (m *Manager) DeleteConnection(name string) string {
	if m.closeLink(name, "deleted") {
		return fmt.Sprintf("Closed connection to %s", name)
	}
	return fmt.Sprintf("No connection to %s", name)
}

// connect dials name unless an open link exists and reports whether the
// dialed link is the one now in use. Concurrent calls for the same peer
// share a single dial and its result.
func (m *Manager) connect(ctx context.Context, name string) (bool, error) {
	v, err, _ := m.dials.Do(name, func() (any, error) {
		if m.IsConnected(name) {
			return false, nil
		}
		l, err := m.dial(ctx, name)
		if err != nil {
			return false, err
		}
		switch err := m.register(l); {
		case err == nil:
			return true, nil
		case errors.Is(err, errStaleLink):
			return false, nil
		default:
			return false, err
		}
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// nextLinkID returns an id larger than any link id seen for peer, so a
// redial wins over the link it replaces even under clock skew.
func (m *Manager) nextLinkID(peer string) ulid.ULID {
	ms := ulid.Now()
	m.mu.Lock()
	if last, ok := m.lastID[peer]; ok && last.Time() >= ms {
		ms = last.Time() + 1
	}
	m.mu.Unlock()
	return ulid.MustNew(ms, ulid.DefaultEntropy())
}

// dial opens an outbound link to a trusted peer.
func (m *Manager) dial(ctx context.Context, name string) (*Link, error) {
	if name == m.cfg.NodeName {
		return nil, domain.ErrInvalidArgument.WithDetails("cannot dial self")
	}
	peer, err := m.cfg.Trust.Get(name)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	defer cancel()

	start := time.Now()
	d := &tls.Dialer{
		NetDialer: &net.Dialer{},
		Config:    trust.ClientConfig(m.cfg.Identity, peer),
	}
	conn, err := d.DialContext(ctx, "tcp", peer.Addr())
	if err != nil {
		m.metrics.LinkEvents.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("dial %s at %s: %w", name, peer.Addr(), err)
	}

	l := newLink(Outbound, conn, m.cfg.MaxFrameSize, m.cfg.WriteTimeout)
	l.id = m.nextLinkID(name)
	l.authenticated(name)
	if err := l.exchangeHello(ctx, m.cfg.NodeName); err != nil {
		l.Close()
		m.metrics.LinkEvents.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("hello with %s: %w", name, err)
	}
	m.metrics.HandshakeDuration.Observe(time.Since(start).Seconds())
	return l, nil
}

// accept authenticates an inbound connection.
func (m *Manager) accept(ctx context.Context, raw net.Conn) (*Link, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	defer cancel()

	start := time.Now()
	conn := tls.Server(raw, m.serverTLS)
	if err := conn.HandshakeContext(ctx); err != nil {
		raw.Close()
		return nil, fmt.Errorf("tls handshake with %s: %w", raw.RemoteAddr(), err)
	}
	name, err := trust.PeerName(conn.ConnectionState())
	if err != nil {
		conn.Close()
		return nil, err
	}

	l := newLink(Inbound, conn, m.cfg.MaxFrameSize, m.cfg.WriteTimeout)
	l.authenticated(name)
	if err := l.exchangeHello(ctx, m.cfg.NodeName); err != nil {
		l.Close()
		return nil, fmt.Errorf("hello with %s: %w", name, err)
	}
	m.metrics.HandshakeDuration.Observe(time.Since(start).Seconds())
	return l, nil
}

// register opens l and starts its read loop. Of two open links to the same
// peer the one with the larger id survives; both ends apply the same rule
// so crossed dials settle on one link.
func (m *Manager) register(l *Link) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		l.Close()
		return domain.ErrLinkClosed.WithDetails("connection manager is closed")
	}
	old := m.links[l.peer]
	if old != nil && old.IsOpen() && old.id.Compare(l.id) >= 0 {
		m.mu.Unlock()
		l.Close()
		m.metrics.LinkEvents.WithLabelValues("superseded").Inc()
		m.logger.Debug("link superseded", "peer", l.peer, "id", l.id.String(), "kept", old.id.String())
		return errStaleLink
	}
	if !l.open() {
		m.mu.Unlock()
		l.Close()
		return domain.ErrLinkClosed.WithDetails(l.peer)
	}
	m.links[l.peer] = l
	if last := m.lastID[l.peer]; l.id.Compare(last) > 0 {
		m.lastID[l.peer] = l.id
	}
	observers := append([]func(string){}, m.observers...)
	m.wg.Add(1)
	m.mu.Unlock()

	if old != nil {
		old.Close()
		m.metrics.LinkEvents.WithLabelValues("superseded").Inc()
		m.logger.Debug("link superseded", "peer", l.peer, "id", old.id.String(), "kept", l.id.String())
	}
	m.metrics.LinkEvents.WithLabelValues("opened").Inc()
	m.logger.Info("link open",
		"peer", l.peer,
		"id", l.id.String(),
		"direction", l.direction.String(),
		"remote", l.conn.RemoteAddr().String(),
	)

	go m.readLoop(l)
	for _, fn := range observers {
		fn(l.peer)
	}
	return nil
}

// closeLink removes and closes the link to name.
func (m *Manager) closeLink(name, reason string) bool {
	m.mu.Lock()
	l := m.links[name]
	delete(m.links, name)
	m.mu.Unlock()

	if l == nil {
		return false
	}
	l.Close()
	m.metrics.LinkEvents.WithLabelValues("closed").Inc()
	m.logger.Info("link closed", "peer", name, "reason", reason)
	return true
}

// drop removes l if the map still points at it and closes it.
func (m *Manager) drop(l *Link, cause error) {
	m.mu.Lock()
	current := m.links[l.peer] == l
	if current {
		delete(m.links, l.peer)
	}
	m.mu.Unlock()

	l.Close()
	if current {
		m.metrics.LinkEvents.WithLabelValues("closed").Inc()
		m.logger.Info("link closed", "peer", l.peer, "reason", cause)
	}
}

func (m *Manager) readLoop(l *Link) {
	defer m.wg.Done()
	for {
		f, err := l.read()
		if err != nil {
			remote := l.State() != StateClosed
			m.drop(l, err)
			if remote {
				m.redialAfterLoss(l.peer)
			}
			return
		}
		m.metrics.FramesReceived.WithLabelValues(f.Type.String()).Inc()

		switch f.Type {
		case FrameTable:
			if m.cfg.Routes != nil {
				m.cfg.Routes.CombineTable(l.peer, f.Table)
			}
		case FrameMessage:
			m.receive(l.peer, f.Message)
		default:
			m.drop(l, domain.ErrProtocol.WithDetailsf("unexpected %s frame", f.Type))
			return
		}
	}
}

// redialAfterLoss reopens a link the peer closed. Only the node with the
// smaller name redials so two crossing redials cannot close each other.
func (m *Manager) redialAfterLoss(peer string) {
	if !m.cfg.RedialOnLoss || m.cfg.NodeName > peer || !m.track() {
		return
	}
	go func() {
		defer m.wg.Done()
		t := time.NewTimer(redialDelay)
		defer t.Stop()
		select {
		case <-m.ctx.Done():
			return
		case <-t.C:
		}
		if m.IsConnected(peer) {
			return
		}
		if _, err := m.connect(m.ctx, peer); err != nil {
			m.logger.Debug("redial after loss failed", "peer", peer, "error", err)
		}
	}()
}

// track adds a background goroutine to the wait group unless the manager
// is closed.
func (m *Manager) track() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.wg.Add(1)
	return true
}

// send writes f to l; a failed write closes the link.
func (m *Manager) send(l *Link, f *Frame) bool {
	err := l.write(f)
	if err == nil {
		m.metrics.FramesSent.WithLabelValues(f.Type.String()).Inc()
		return true
	}
	if errors.Is(err, domain.ErrFrameTooLarge) {
		m.logger.Warn("frame not sent", "peer", l.peer, "error", err)
		return false
	}
	m.drop(l, err)
	return false
}

// SendTable writes a routing snapshot to the direct link of name.
func (m *Manager) SendTable(name string, snap *routing.Snapshot) bool {
	l := m.openLink(name)
	if l == nil || snap == nil {
		return false
	}
	return m.send(l, &Frame{Type: FrameTable, Table: snap})
}

// Close stops accepting, closes every link and waits for the read loops.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	links := m.links
	m.links = make(map[string]*Link)
	listeners := m.listeners
	m.listeners = nil
	m.mu.Unlock()

	m.cancel()

	var err error
	for _, ln := range listeners {
		if cerr := ln.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = multierr.Append(err, cerr)
		}
	}
	for _, l := range links {
		l.Close()
	}
	m.wg.Wait()
	m.logger.Info("connection manager closed", "links", len(links))
	return err
}

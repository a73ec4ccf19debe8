package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/yndnr/eventlink-go/internal/core/domain"
	"github.com/yndnr/eventlink-go/internal/routing"
	"github.com/yndnr/eventlink-go/internal/server/clusterserver"
	"github.com/yndnr/eventlink-go/internal/telemetry/metric"
	"github.com/yndnr/eventlink-go/internal/trust"
)

// TrustDir is the Badger directory below the data dir.
const TrustDir = "trust"

// Config configures a Node.
type Config struct {
	Name       string
	ListenAddr string
	DataDir    string
	Password   []byte

	KeyAlgorithm string
	KeySize      int
	// Identity skips loading from DataDir when set.
	Identity *trust.Identity
	// InMemoryTrust keeps the trust store in memory only.
	InMemoryTrust bool

	DefaultTTL          int
	ConnectTimeout      time.Duration
	PropagationInterval time.Duration
	// ReconnectInterval enables the periodic CheckTrusted loop when > 0.
	ReconnectInterval time.Duration
	ResetBeforePush   bool
	RedialOnLoss      bool
	MaxFrameSize      int
	AcceptRate        float64
	AcceptBurst       int
	SeenCacheSize     int

	Logger  *slog.Logger
	Metrics *metric.Registry
}

// Status summarises a running node.
type Status struct {
	Name      string        `json:"name"`
	Addr      string        `json:"addr"`
	StartedAt time.Time     `json:"started_at"`
	Uptime    time.Duration `json:"uptime"`
	Links     int           `json:"links"`
	Tables    int           `json:"tables"`
	Trusted   int           `json:"trusted"`
}

// Node is one cluster member.
type Node struct {
	cfg      Config
	logger   *slog.Logger
	identity *trust.Identity
	trust    *trust.Store
	routes   *routing.Manager
	conns    *clusterserver.Manager

	mu        sync.Mutex
	ln        net.Listener
	startedAt time.Time
	stopping  bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// New loads the identity, opens the trust store and builds the managers.
// Nothing listens or dials until Start.
func New(cfg Config) (*Node, error) {
	if err := domain.ValidateNodeName(cfg.Name); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ListenAddr == "" {
		return nil, domain.ErrInvalidArgument.WithDetails("listen address is required")
	}
	if cfg.DataDir == "" && (cfg.Identity == nil || !cfg.InMemoryTrust) {
		return nil, domain.ErrInvalidArgument.WithDetails("data dir is required")
	}

	id := cfg.Identity
	if id == nil {
		var err error
		id, err = trust.LoadOrCreateIdentity(trust.IdentityConfig{
			Dir:       cfg.DataDir,
			Name:      cfg.Name,
			Password:  cfg.Password,
			Algorithm: cfg.KeyAlgorithm,
			RSABits:   cfg.KeySize,
			Logger:    cfg.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("load identity: %w", err)
		}
	}

	store, err := trust.OpenStore(trust.StoreConfig{
		Dir:      filepath.Join(cfg.DataDir, TrustDir),
		InMemory: cfg.InMemoryTrust,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	routes, err := routing.NewManager(routing.Config{
		NodeName:        cfg.Name,
		DefaultTTL:      cfg.DefaultTTL,
		Interval:        cfg.PropagationInterval,
		ResetBeforePush: cfg.ResetBeforePush,
		Logger:          cfg.Logger,
		Metrics:         cfg.Metrics,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	conns, err := clusterserver.NewManager(clusterserver.Config{
		NodeName:       cfg.Name,
		Identity:       id,
		Trust:          store,
		Routes:         routes,
		ConnectTimeout: cfg.ConnectTimeout,
		MaxFrameSize:   cfg.MaxFrameSize,
		DefaultTTL:     cfg.DefaultTTL,
		AcceptRate:     cfg.AcceptRate,
		AcceptBurst:    cfg.AcceptBurst,
		SeenCacheSize:  cfg.SeenCacheSize,
		RedialOnLoss:   cfg.RedialOnLoss,
		Logger:         cfg.Logger,
		Metrics:        cfg.Metrics,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	n := &Node{
		cfg:      cfg,
		logger:   cfg.Logger.With("component", "node", "node", cfg.Name),
		identity: id,
		trust:    store,
		routes:   routes,
		conns:    conns,
	}
	if err := metric.OrGlobal(cfg.Metrics).Register(metric.NewCollector(n)); err != nil {
		n.logger.Warn("state collector not registered", "error", err)
	}
	return n, nil
}

// Start listens for peers, publishes the node in the servers table and
// starts propagation. Trusted peers are dialed in the background.
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stopping {
		return domain.ErrLinkClosed.WithDetails("node is closed")
	}
	if n.ln != nil {
		return errors.New("node already started")
	}

	ln, err := net.Listen("tcp", n.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", n.cfg.ListenAddr, err)
	}

	n.routes.AddEntry(domain.TableServers, n.cfg.Name)
	n.conns.OnLinkOpen(n.routes.PeerConnected)
	if err := n.routes.Start(n.conns); err != nil {
		ln.Close()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	n.ln = ln
	n.cancel = cancel
	n.startedAt = time.Now()

	n.wg.Add(2)
	go func() {
		defer n.wg.Done()
		if err := n.conns.Serve(ctx, ln); err != nil {
			n.logger.Error("cluster listener stopped", "error", err)
		}
	}()
	go func() {
		defer n.wg.Done()
		if opened, err := n.conns.CheckTrusted(ctx); err != nil {
			n.logger.Warn("initial trust check failed", "error", err)
		} else {
			n.logger.Info("initial trust check done", "opened", opened)
		}
	}()
	if n.cfg.ReconnectInterval > 0 {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			n.conns.RunReconcile(ctx, n.cfg.ReconnectInterval)
		}()
	}

	n.logger.Info("node started",
		"addr", ln.Addr().String(),
		"fingerprint", n.identity.Fingerprint(),
	)
	return nil
}

// Close drops the reserved tables, stops propagation, closes every link
// and the trust store. It is safe to call more than once.
func (n *Node) Close() error {
	n.closeOnce.Do(func() {
		n.mu.Lock()
		n.stopping = true
		cancel := n.cancel
		n.mu.Unlock()

		for _, t := range domain.ReservedTables {
			n.routes.DeleteTable(t)
		}
		n.routes.Stop()
		if cancel != nil {
			cancel()
		}

		var err error
		err = multierr.Append(err, n.conns.Close())
		n.wg.Wait()
		err = multierr.Append(err, n.trust.Close())
		n.closeErr = err
		n.logger.Info("node stopped")
	})
	return n.closeErr
}

// Name returns the node name.
func (n *Node) Name() string { return n.cfg.Name }

// Addr returns the cluster listen address, or nil before Start.
func (n *Node) Addr() net.Addr {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.ln == nil {
		return nil
	}
	return n.ln.Addr()
}

// Ready reports whether the node is started and not closing.
func (n *Node) Ready() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ln != nil && !n.stopping
}

// Identity returns the local identity.
func (n *Node) Identity() *trust.Identity { return n.identity }

// Routes exposes the routing manager.
func (n *Node) Routes() *routing.Manager { return n.routes }

// Connections exposes the connection manager.
func (n *Node) Connections() *clusterserver.Manager { return n.conns }

// Trust adds or replaces a trusted peer.
func (n *Node) Trust(p trust.Peer) error {
	if p.Name == n.cfg.Name {
		return domain.ErrInvalidTrustEntry.WithDetails("cannot trust self")
	}
	if err := n.trust.Add(p); err != nil {
		return err
	}
	n.logger.Info("peer trusted", "peer", p.Alias(), "fingerprint", p.Fingerprint())
	return nil
}

// Untrust removes the trust entry of name and closes its link. The two
// returned messages describe the trust and the connection outcome.
func (n *Node) Untrust(name string) (string, string, error) {
	trustMsg, err := n.trust.Remove(name)
	if err != nil {
		return "", "", err
	}
	return trustMsg, n.conns.DeleteConnection(name), nil
}

// TrustedPeers lists the trust store sorted by name.
func (n *Node) TrustedPeers() ([]trust.Peer, error) {
	return n.trust.List()
}

// TrustedPeer returns one trust entry.
func (n *Node) TrustedPeer(name string) (trust.Peer, error) {
	return n.trust.Get(name)
}

// CheckTrusted dials every trusted peer without a link.
func (n *Node) CheckTrusted(ctx context.Context) (int, error) {
	return n.conns.CheckTrusted(ctx)
}

// Links lists the current links.
func (n *Node) Links() []clusterserver.LinkInfo {
	return n.conns.Connections()
}

// OpenLinks implements metric.StateSource.
func (n *Node) OpenLinks() int {
	return n.conns.OpenLinks()
}

// TableSizes implements metric.StateSource.
func (n *Node) TableSizes() map[string]int {
	return n.routes.TableSizes()
}

// ListTables summarises every routing table.
func (n *Node) ListTables() []routing.Summary {
	return n.routes.ListTables()
}

// Entries returns a copy of one routing table.
func (n *Node) Entries(table string) (map[string]routing.Entry, bool) {
	return n.routes.GetEntries(table)
}

// Entry returns one routing entry.
func (n *Node) Entry(table, name string) (routing.Entry, bool) {
	return n.routes.GetEntry(table, name)
}

// AddEntry records name as located on this node.
func (n *Node) AddEntry(table, name string) bool {
	return n.routes.AddEntry(table, name)
}

// DeleteEntry removes name from the local table only.
func (n *Node) DeleteEntry(table, name string) bool {
	return n.routes.DeleteEntry(table, name)
}

// Send routes an application message to every target and returns its ID.
func (n *Node) Send(targets []string, kind string, body []byte) (string, bool) {
	msg := clusterserver.NewMessage(kind, body)
	return msg.ID, n.conns.SendMulti(targets, msg)
}

// OnMessage sets the handler for messages addressed to this node.
func (n *Node) OnMessage(fn clusterserver.MessageHandler) {
	n.conns.OnMessage(fn)
}

// Status returns a summary of the node.
func (n *Node) Status() Status {
	n.mu.Lock()
	st := Status{Name: n.cfg.Name, StartedAt: n.startedAt}
	if n.ln != nil {
		st.Addr = n.ln.Addr().String()
		st.Uptime = time.Since(n.startedAt).Truncate(time.Second)
	}
	n.mu.Unlock()

	st.Links = n.conns.OpenLinks()
	st.Tables = len(n.routes.Tables())
	if peers, err := n.trust.List(); err == nil {
		st.Trusted = len(peers)
	}
	return st
}

package clusterserver

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/eventlink-go/internal/core/domain"
	"github.com/yndnr/eventlink-go/internal/routing"
	"github.com/yndnr/eventlink-go/internal/telemetry/metric"
	"github.com/yndnr/eventlink-go/internal/trust"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// peerBook is an in-memory TrustSource.
type peerBook struct {
	mu    sync.Mutex
	peers map[string]trust.Peer
}

func newPeerBook() *peerBook {
	return &peerBook{peers: make(map[string]trust.Peer)}
}

func (b *peerBook) Get(name string) (trust.Peer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.peers[name]
	if !ok {
		return trust.Peer{}, domain.ErrTrustNotFound.WithDetails(name)
	}
	return p, nil
}

func (b *peerBook) List() ([]trust.Peer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]trust.Peer, 0, len(b.peers))
	for _, p := range b.peers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (b *peerBook) put(p trust.Peer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.peers[p.Name] = p
}

func (b *peerBook) remove(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.peers, name)
}

// fakeRoutes is a RouteTable with fixed next hops.
type fakeRoutes struct {
	mu       sync.Mutex
	hops     map[string]string
	combined []combined
}

type combined struct {
	source string
	snap   *routing.Snapshot
}

func newFakeRoutes() *fakeRoutes {
	return &fakeRoutes{hops: make(map[string]string)}
}

func (r *fakeRoutes) GetNextHop(table, name string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if table != domain.TableServers {
		return "", false
	}
	hop, ok := r.hops[name]
	return hop, ok
}

func (r *fakeRoutes) CombineTable(source string, snap *routing.Snapshot) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.combined = append(r.combined, combined{source, snap})
	return true
}

func (r *fakeRoutes) setHop(name, hop string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hops[name] = hop
}

func (r *fakeRoutes) received() []combined {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]combined(nil), r.combined...)
}

type testNode struct {
	name   string
	id     *trust.Identity
	book   *peerBook
	routes *fakeRoutes
	mgr    *Manager
	reg    *metric.Registry
	host   string
	port   int

	msgMu sync.Mutex
	msgs  []*Message
}

func newTestNode(t *testing.T, name string, opts ...func(*Config)) *testNode {
	t.Helper()
	id, err := trust.GenerateIdentity(name, trust.AlgorithmECDSAP256, 0)
	if err != nil {
		t.Fatalf("GenerateIdentity(%s) error = %v", name, err)
	}
	n := &testNode{name: name, id: id, book: newPeerBook(), routes: newFakeRoutes(), reg: metric.NewRegistry()}

	cfg := Config{
		NodeName:       name,
		Identity:       id,
		Trust:          n.book,
		Routes:         n.routes,
		ConnectTimeout: 2 * time.Second,
		Logger:         discard,
		Metrics:        n.reg,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	mgr, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager(%s) error = %v", name, err)
	}
	n.mgr = mgr
	mgr.OnMessage(func(msg *Message) {
		n.msgMu.Lock()
		defer n.msgMu.Unlock()
		n.msgs = append(n.msgs, msg)
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	n.host = host
	n.port, _ = strconv.Atoi(portStr)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan struct{})
	go func() {
		defer close(served)
		mgr.Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		mgr.Close()
		<-served
	})
	return n
}

func (n *testNode) asPeer() trust.Peer {
	return trust.Peer{Name: n.name, Host: n.host, Port: n.port, Certificate: n.id.Leaf.Raw}
}

func (n *testNode) messages() []*Message {
	n.msgMu.Lock()
	defer n.msgMu.Unlock()
	return append([]*Message(nil), n.msgs...)
}

func (n *testNode) link(peer string) (LinkInfo, bool) {
	for _, info := range n.mgr.Connections() {
		if info.Peer == peer {
			return info, true
		}
	}
	return LinkInfo{}, false
}

// trustEach makes a and b trust each other.
func trustEach(a, b *testNode) {
	a.book.put(b.asPeer())
	b.book.put(a.asPeer())
}

// connect opens a link from a to b and waits until both sides see it.
func connect(t *testing.T, a, b *testNode) {
	t.Helper()
	if err := a.mgr.ResetConnection(context.Background(), b.name); err != nil {
		t.Fatalf("%s -> %s: %v", a.name, b.name, err)
	}
	waitFor(t, 2*time.Second, func() bool { return b.mgr.IsConnected(a.name) }, b.name+" sees "+a.name)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting: %s", msg)
}

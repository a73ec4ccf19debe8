package node

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/yndnr/eventlink-go/internal/core/domain"
	"github.com/yndnr/eventlink-go/internal/server/clusterserver"
	"github.com/yndnr/eventlink-go/internal/telemetry/metric"
	"github.com/yndnr/eventlink-go/internal/trust"
)

const interval = 50 * time.Millisecond

func newNode(t *testing.T, name string, opts ...func(*Config)) *Node {
	t.Helper()
	id, err := trust.GenerateIdentity(name, trust.AlgorithmECDSAP256, 0)
	if err != nil {
		t.Fatal(err)
	}
	cfg := Config{
		Name:                name,
		ListenAddr:          "127.0.0.1:0",
		Identity:            id,
		InMemoryTrust:       true,
		ConnectTimeout:      2 * time.Second,
		PropagationInterval: interval,
		Logger:              slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:             metric.NewRegistry(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	n, err := New(cfg)
	if err != nil {
		t.Fatalf("New(%s) error = %v", name, err)
	}
	t.Cleanup(func() { n.Close() })
	return n
}

func start(t *testing.T, nodes ...*Node) {
	t.Helper()
	for _, n := range nodes {
		if err := n.Start(context.Background()); err != nil {
			t.Fatalf("Start(%s) error = %v", n.Name(), err)
		}
	}
}

func peerOf(t *testing.T, n *Node) trust.Peer {
	t.Helper()
	host, port, err := net.SplitHostPort(n.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	p, _ := strconv.Atoi(port)
	return trust.Peer{Name: n.Name(), Host: host, Port: p, Certificate: n.Identity().Leaf.Raw}
}

func trustEach(t *testing.T, a, b *Node) {
	t.Helper()
	if err := a.Trust(peerOf(t, b)); err != nil {
		t.Fatal(err)
	}
	if err := b.Trust(peerOf(t, a)); err != nil {
		t.Fatal(err)
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting: %s", msg)
}

func location(n *Node, table, name string) string {
	loc, _ := n.Routes().GetLocation(table, name)
	return loc
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{Name: "", ListenAddr: "127.0.0.1:0"}); err == nil {
		t.Error("New() with empty name succeeded")
	}
	if _, err := New(Config{Name: "A"}); err == nil {
		t.Error("New() without listen address succeeded")
	}
	if _, err := New(Config{Name: "A", ListenAddr: "127.0.0.1:0"}); err == nil {
		t.Error("New() without data dir succeeded")
	}
}

func TestNew_PersistsIdentity(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		Name:       "A",
		ListenAddr: "127.0.0.1:0",
		DataDir:    dir,
		Password:   []byte("correct horse"),
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:    metric.NewRegistry(),
	}
	first, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	fp := first.Identity().Fingerprint()
	if err := first.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	cfg.Metrics = metric.NewRegistry()
	second, err := New(cfg)
	if err != nil {
		t.Fatalf("second New() error = %v", err)
	}
	defer second.Close()
	if got := second.Identity().Fingerprint(); got != fp {
		t.Errorf("fingerprint = %s, want %s", got, fp)
	}
}

func TestNew_RequiresPasswordForStoredIdentity(t *testing.T) {
	_, err := New(Config{
		Name:       "A",
		ListenAddr: "127.0.0.1:0",
		DataDir:    t.TempDir(),
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:    metric.NewRegistry(),
	})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("New() without password error = %v, want ErrInvalidArgument", err)
	}
}

func TestStart_PublishesSelf(t *testing.T) {
	a := newNode(t, "A")
	start(t, a)

	if !a.Ready() {
		t.Error("Ready() = false after Start")
	}
	if got := location(a, domain.TableServers, "A"); got != "A" {
		t.Errorf("servers location of A = %q, want A", got)
	}
	if err := a.Start(context.Background()); err == nil {
		t.Error("second Start() succeeded")
	}
}

func TestTrust_RejectsSelf(t *testing.T) {
	a := newNode(t, "A")
	start(t, a)
	if err := a.Trust(peerOf(t, a)); err == nil {
		t.Error("Trust(self) succeeded")
	}
}

func TestEndToEnd_EntryReachesPeer(t *testing.T) {
	a := newNode(t, "A")
	b := newNode(t, "B")
	start(t, a, b)
	trustEach(t, a, b)

	if _, err := a.CheckTrusted(context.Background()); err != nil {
		t.Fatalf("CheckTrusted() error = %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return b.OpenLinks() == 1 }, "B link open")

	a.Routes().AddEntry(domain.TablePlayers, "alice")
	waitFor(t, 2*time.Second, func() bool {
		return location(b, domain.TablePlayers, "alice") == "A"
	}, "alice reaches B")

	e, _ := b.Routes().GetEntry(domain.TablePlayers, "alice")
	if e.NextHop != "A" || e.Distance != 1 {
		t.Errorf("entry on B = %+v, want next hop A at distance 1", e)
	}
	if got := location(b, domain.TableServers, "A"); got != "A" {
		t.Errorf("B servers location of A = %q", got)
	}
}

func TestEndToEnd_WithResetBeforePush(t *testing.T) {
	reset := func(c *Config) { c.ResetBeforePush = true; c.RedialOnLoss = true }
	a := newNode(t, "A", reset)
	b := newNode(t, "B", reset)
	start(t, a, b)
	trustEach(t, a, b)
	if _, err := a.CheckTrusted(context.Background()); err != nil {
		t.Fatal(err)
	}

	a.Routes().AddEntry(domain.TableWorlds, "overworld")
	waitFor(t, 3*time.Second, func() bool {
		return location(b, domain.TableWorlds, "overworld") == "A"
	}, "overworld reaches B")
}

func TestEndToEnd_ThreeNodesChain(t *testing.T) {
	a := newNode(t, "A")
	b := newNode(t, "B")
	c := newNode(t, "C")
	start(t, a, b, c)
	trustEach(t, a, b)
	trustEach(t, b, c)
	if _, err := b.CheckTrusted(context.Background()); err != nil {
		t.Fatal(err)
	}

	a.Routes().AddEntry(domain.TablePlayers, "alice")
	waitFor(t, 3*time.Second, func() bool {
		return location(c, domain.TablePlayers, "alice") == "A"
	}, "alice reaches C")
	e, _ := c.Routes().GetEntry(domain.TablePlayers, "alice")
	if e.NextHop != "B" || e.Distance != 2 {
		t.Errorf("entry on C = %+v, want next hop B at distance 2", e)
	}

	// C has no link to A; the message goes through B.
	waitFor(t, 3*time.Second, func() bool {
		hop, ok := c.Routes().GetNextHop(domain.TableServers, "A")
		return ok && hop == "B"
	}, "C learns the route to A")

	got := make(chan *clusterserver.Message, 1)
	a.OnMessage(func(m *clusterserver.Message) { got <- m })
	id, ok := c.Send([]string{"A"}, "chat", []byte("hello"))
	if !ok {
		t.Fatal("Send() = false")
	}
	select {
	case m := <-got:
		if m.ID != id || m.Origin != "C" || string(m.Body) != "hello" {
			t.Errorf("message = %+v", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("A did not receive the message")
	}
}

// Deleting an entry on its owner is not sent to peers that already merged it.
func TestEndToEnd_DeleteDoesNotPropagate(t *testing.T) {
	a := newNode(t, "A")
	b := newNode(t, "B")
	start(t, a, b)
	trustEach(t, a, b)
	if _, err := a.CheckTrusted(context.Background()); err != nil {
		t.Fatal(err)
	}

	a.Routes().AddEntry(domain.TablePlayers, "alice")
	waitFor(t, 2*time.Second, func() bool {
		return location(b, domain.TablePlayers, "alice") == "A"
	}, "alice reaches B")

	a.Routes().DeleteEntry(domain.TablePlayers, "alice")
	time.Sleep(5 * interval)
	if got := location(b, domain.TablePlayers, "alice"); got != "A" {
		t.Errorf("B location of alice = %q, want stale A", got)
	}
}

func TestUntrust(t *testing.T) {
	a := newNode(t, "A")
	b := newNode(t, "B")
	start(t, a, b)
	trustEach(t, a, b)
	if _, err := a.CheckTrusted(context.Background()); err != nil {
		t.Fatal(err)
	}

	trustMsg, connMsg, err := a.Untrust("B")
	if err != nil {
		t.Fatalf("Untrust() error = %v", err)
	}
	if trustMsg != "Removed trust for B" || connMsg != "Closed connection to B" {
		t.Errorf("Untrust() = %q, %q", trustMsg, connMsg)
	}
	if _, err := a.TrustedPeer("B"); err == nil {
		t.Error("B still trusted")
	}
}

func TestClose_DropsReservedTables(t *testing.T) {
	a := newNode(t, "A")
	start(t, a)
	a.Routes().AddEntry(domain.TablePlayers, "alice")
	a.Routes().AddEntry("guilds", "red")

	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	for _, table := range domain.ReservedTables {
		if _, ok := a.Routes().GetEntries(table); ok {
			t.Errorf("table %s survived Close", table)
		}
	}
	if _, ok := a.Routes().GetEntries("guilds"); !ok {
		t.Error("custom table dropped on Close")
	}
	if a.Ready() {
		t.Error("Ready() = true after Close")
	}
	if err := a.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestStatus(t *testing.T) {
	a := newNode(t, "A")
	start(t, a)
	st := a.Status()
	if st.Name != "A" || st.Addr == "" || st.Tables != 1 || st.Links != 0 {
		t.Errorf("Status() = %+v", st)
	}
}

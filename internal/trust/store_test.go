package trust

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/yndnr/eventlink-go/internal/core/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(StoreConfig{InMemory: true, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testPeer(t *testing.T, name, host string, port int) Peer {
	t.Helper()
	id, err := GenerateIdentity(name, AlgorithmECDSAP256, 0)
	if err != nil {
		t.Fatalf("GenerateIdentity() error = %v", err)
	}
	return Peer{Name: name, Host: host, Port: port, Certificate: id.Leaf.Raw}
}

func TestStore_AddGetList(t *testing.T) {
	s := newTestStore(t)
	b := testPeer(t, "B", "10.0.0.2", 25365)
	a := testPeer(t, "A", "10.0.0.1", 25365)

	for _, p := range []Peer{b, a} {
		if err := s.Add(p); err != nil {
			t.Fatalf("Add(%s) error = %v", p.Name, err)
		}
	}

	got, err := s.Get("B")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Host != "10.0.0.2" || got.Port != 25365 || got.Fingerprint() != b.Fingerprint() {
		t.Errorf("Get() = %+v", got)
	}

	peers, err := s.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(peers) != 2 || peers[0].Name != "A" || peers[1].Name != "B" {
		t.Errorf("List() = %v, want A then B", peers)
	}
}

func TestStore_AddReplacesSameName(t *testing.T) {
	s := newTestStore(t)
	old := testPeer(t, "B", "10.0.0.2", 25365)
	moved := testPeer(t, "B", "10.0.0.9", 26000)

	if err := s.Add(old); err != nil {
		t.Fatal(err)
	}
	if err := s.Add(moved); err != nil {
		t.Fatal(err)
	}

	peers, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(peers) != 1 {
		t.Fatalf("List() len = %d, want 1", len(peers))
	}
	if peers[0].Addr() != "10.0.0.9:26000" || peers[0].Fingerprint() != moved.Fingerprint() {
		t.Errorf("entry = %+v, want the replacement", peers[0])
	}
}

func TestStore_NamePrefixIsolation(t *testing.T) {
	s := newTestStore(t)
	if err := s.Add(testPeer(t, "lobby", "h1", 1)); err != nil {
		t.Fatal(err)
	}
	if err := s.Add(testPeer(t, "lobby2", "h2", 2)); err != nil {
		t.Fatal(err)
	}

	if msg, err := s.Remove("lobby"); err != nil || msg != "Removed trust for lobby" {
		t.Fatalf("Remove() = (%q, %v)", msg, err)
	}
	if _, err := s.Get("lobby2"); err != nil {
		t.Errorf("Get(lobby2) after removing lobby error = %v", err)
	}
}

func TestStore_Remove(t *testing.T) {
	s := newTestStore(t)
	if err := s.Add(testPeer(t, "B", "10.0.0.2", 25365)); err != nil {
		t.Fatal(err)
	}

	msg, err := s.Remove("B")
	if err != nil || msg != "Removed trust for B" {
		t.Errorf("Remove() = (%q, %v)", msg, err)
	}
	msg, err = s.Remove("B")
	if err != nil || msg != "No trusted peer named B" {
		t.Errorf("second Remove() = (%q, %v)", msg, err)
	}
	if _, err := s.Get("B"); !errors.Is(err, domain.ErrTrustNotFound) {
		t.Errorf("Get() after Remove error = %v, want ErrTrustNotFound", err)
	}
}

func TestStore_AddValidation(t *testing.T) {
	s := newTestStore(t)
	valid := testPeer(t, "B", "10.0.0.2", 25365)

	tests := []struct {
		name   string
		mutate func(*Peer)
	}{
		{"empty name", func(p *Peer) { p.Name = "" }},
		{"delimiter in host", func(p *Peer) { p.Host = "a;b" }},
		{"bad port", func(p *Peer) { p.Port = 70000 }},
		{"garbage certificate", func(p *Peer) { p.Certificate = []byte("xx") }},
		{"cn mismatch", func(p *Peer) { p.Name = "C" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			if err := s.Add(p); err == nil {
				t.Error("Add() error = nil, want validation error")
			}
		})
	}
}

func TestOpenStore_RequiresDir(t *testing.T) {
	if _, err := OpenStore(StoreConfig{}); err == nil {
		t.Error("OpenStore() without dir should fail")
	}
}

func TestOpenStore_Persists(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := OpenStore(StoreConfig{Dir: dir, Logger: logger})
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	if err := s.Add(testPeer(t, "B", "10.0.0.2", 25365)); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s, err = OpenStore(StoreConfig{Dir: dir, Logger: logger})
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()
	if _, err := s.Get("B"); err != nil {
		t.Errorf("Get() after reopen error = %v", err)
	}
}

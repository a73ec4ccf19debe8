package trust

import (
	"crypto/tls"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/yndnr/eventlink-go/internal/core/domain"
)

type peerMap map[string]Peer

func (m peerMap) Get(name string) (Peer, error) {
	p, ok := m[name]
	if !ok {
		return Peer{}, domain.ErrTrustNotFound
	}
	return p, nil
}

func mustIdentity(t *testing.T, name string) *Identity {
	t.Helper()
	id, err := GenerateIdentity(name, AlgorithmECDSAP256, 0)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func asPeer(id *Identity) Peer {
	return Peer{Name: id.Name, Host: "127.0.0.1", Port: 1, Certificate: id.Leaf.Raw}
}

// handshake runs both sides over a loopback TCP connection.
func handshake(t *testing.T, server, client *tls.Config) (serverErr, clientErr error, state tls.ConnectionState) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	type result struct {
		err   error
		state tls.ConnectionState
	}
	resCh := make(chan result, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			resCh <- result{err: err}
			return
		}
		defer conn.Close()
		conn.SetDeadline(time.Now().Add(5 * time.Second))
		srv := tls.Server(conn, server)
		err = srv.Handshake()
		resCh <- result{err: err, state: srv.ConnectionState()}
		<-done
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	cli := tls.Client(conn, client)
	clientErr = cli.Handshake()
	if clientErr == nil {
		// A rejected client certificate surfaces on the first read in TLS 1.3.
		cli.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
		one := make([]byte, 1)
		if _, err := cli.Read(one); err != nil && !isTimeout(err) {
			clientErr = err
		}
	}
	res := <-resCh
	return res.err, clientErr, res.state
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func TestMutualTLS_Success(t *testing.T) {
	a := mustIdentity(t, "A")
	b := mustIdentity(t, "B")

	serverErr, clientErr, state := handshake(t,
		ServerConfig(b, peerMap{"A": asPeer(a)}),
		ClientConfig(a, asPeer(b)),
	)
	if serverErr != nil || clientErr != nil {
		t.Fatalf("handshake errors: server=%v client=%v", serverErr, clientErr)
	}
	name, err := PeerName(state)
	if err != nil || name != "A" {
		t.Errorf("PeerName() = (%q, %v), want A", name, err)
	}
	if state.NegotiatedProtocol != ALPN {
		t.Errorf("NegotiatedProtocol = %q, want %q", state.NegotiatedProtocol, ALPN)
	}
}

func TestMutualTLS_ServerCertificateMismatch(t *testing.T) {
	a := mustIdentity(t, "A")
	b := mustIdentity(t, "B")
	impostor := mustIdentity(t, "B")

	_, clientErr, _ := handshake(t,
		ServerConfig(impostor, peerMap{"A": asPeer(a)}),
		ClientConfig(a, asPeer(b)),
	)
	if !errors.Is(clientErr, domain.ErrTrustFailure) {
		t.Errorf("client error = %v, want ErrTrustFailure", clientErr)
	}
}

func TestMutualTLS_ServerNameMismatch(t *testing.T) {
	a := mustIdentity(t, "A")
	c := mustIdentity(t, "C")

	// The client dials "B" but pins C's certificate under that name.
	expected := asPeer(c)
	expected.Name = "B"
	_, clientErr, _ := handshake(t,
		ServerConfig(c, peerMap{"A": asPeer(a)}),
		ClientConfig(a, expected),
	)
	if !errors.Is(clientErr, domain.ErrTrustFailure) {
		t.Errorf("client error = %v, want ErrTrustFailure", clientErr)
	}
}

func TestMutualTLS_UnknownClient(t *testing.T) {
	a := mustIdentity(t, "A")
	b := mustIdentity(t, "B")

	serverErr, clientErr, _ := handshake(t,
		ServerConfig(b, peerMap{}),
		ClientConfig(a, asPeer(b)),
	)
	if !errors.Is(serverErr, domain.ErrTrustFailure) {
		t.Errorf("server error = %v, want ErrTrustFailure", serverErr)
	}
	if clientErr == nil {
		t.Error("client saw no error for a rejected certificate")
	}
}

func TestMutualTLS_ClientCertificateMismatch(t *testing.T) {
	a := mustIdentity(t, "A")
	b := mustIdentity(t, "B")
	otherA := mustIdentity(t, "A")

	serverErr, _, _ := handshake(t,
		ServerConfig(b, peerMap{"A": asPeer(otherA)}),
		ClientConfig(a, asPeer(b)),
	)
	if !errors.Is(serverErr, domain.ErrTrustFailure) {
		t.Errorf("server error = %v, want ErrTrustFailure", serverErr)
	}
}

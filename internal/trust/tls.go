package trust

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"time"

	"github.com/yndnr/eventlink-go/internal/core/domain"
)

// ALPN is the application protocol negotiated on cluster links.
const ALPN = "eventlink/1"

// PeerLookup resolves a node name to its trust entry.
type PeerLookup interface {
	Get(name string) (Peer, error)
}

// ServerConfig returns the acceptor side TLS configuration. The client
// certificate CN is taken as the claimed node name and the certificate must
// equal the one stored for that name.
func ServerConfig(id *Identity, peers PeerLookup) *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{id.Certificate},
		ClientAuth:   tls.RequireAnyClientCert,
		MinVersion:   tls.VersionTLS12,
		NextProtos:   []string{ALPN},

		// Resumed sessions skip VerifyPeerCertificate.
		SessionTicketsDisabled: true,

		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			cert, err := leafOf(rawCerts)
			if err != nil {
				return err
			}
			name := cert.Subject.CommonName
			if err := domain.ValidateNodeName(name); err != nil {
				return domain.ErrTrustFailure.WithDetailsf("client certificate CN %q", name)
			}
			peer, err := peers.Get(name)
			if err != nil {
				return domain.ErrTrustFailure.WithDetailsf("no trust entry for %q", name)
			}
			return pin(peer, cert)
		},
	}
}

// ClientConfig returns the dialer side TLS configuration for connecting to
// expected.
func ClientConfig(id *Identity, expected Peer) *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{id.Certificate},
		// Chains are not verified; VerifyPeerCertificate pins the exact bytes.
		InsecureSkipVerify: true,
		MinVersion:         tls.VersionTLS12,
		NextProtos:         []string{ALPN},
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			cert, err := leafOf(rawCerts)
			if err != nil {
				return err
			}
			if cert.Subject.CommonName != expected.Name {
				return domain.ErrTrustFailure.WithDetailsf(
					"dialed %q but server presented %q", expected.Name, cert.Subject.CommonName)
			}
			return pin(expected, cert)
		},
	}
}

// PeerName returns the node name asserted by the remote certificate of an
// established connection.
func PeerName(state tls.ConnectionState) (string, error) {
	if len(state.PeerCertificates) == 0 {
		return "", domain.ErrTrustFailure.WithDetails("no peer certificate")
	}
	return state.PeerCertificates[0].Subject.CommonName, nil
}

func leafOf(rawCerts [][]byte) (*x509.Certificate, error) {
	if len(rawCerts) == 0 {
		return nil, domain.ErrTrustFailure.WithDetails("peer sent no certificate")
	}
	cert, err := x509.ParseCertificate(rawCerts[0])
	if err != nil {
		return nil, domain.ErrTrustFailure.WithCause(err)
	}
	return cert, nil
}

func pin(peer Peer, cert *x509.Certificate) error {
	if !bytes.Equal(peer.Certificate, cert.Raw) {
		return domain.ErrTrustFailure.WithDetailsf("certificate of %q does not match the trusted one", peer.Name)
	}
	now := time.Now()
	if now.Before(cert.NotBefore) || now.After(cert.NotAfter) {
		return domain.ErrTrustFailure.WithDetailsf("certificate of %q is outside its validity period", peer.Name)
	}
	return nil
}

func parseDER(der []byte) (*x509.Certificate, error) {
	if len(der) == 0 {
		return nil, domain.ErrInvalidTrustEntry.WithDetails("certificate is empty")
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, domain.ErrInvalidTrustEntry.WithCause(err)
	}
	return cert, nil
}

package trust

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/yndnr/eventlink-go/internal/core/domain"
)

// Supported key algorithms.
const (
	AlgorithmECDSAP256 = "ecdsa-p256"
	AlgorithmEd25519   = "ed25519"
	AlgorithmRSA       = "rsa"
)

const (
	// CertificateFile and KeyFile are the identity files inside the data dir.
	CertificateFile = "identity.crt"
	KeyFile         = "identity.key"

	certificateValidity = 10 * 365 * 24 * time.Hour
	minRSABits          = 2048
)

// Identity is the key pair a node presents on every link.
type Identity struct {
	Name        string
	Certificate tls.Certificate
	Leaf        *x509.Certificate
}

// CertificatePEM returns the certificate in PEM form, ready to hand to peers.
func (id *Identity) CertificatePEM() []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: id.Leaf.Raw})
}

// Fingerprint returns the SHA-256 of the certificate DER in hex.
func (id *Identity) Fingerprint() string {
	return Fingerprint(id.Leaf.Raw)
}

// Fingerprint returns the SHA-256 of der in hex.
func Fingerprint(der []byte) string {
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:])
}

// GenerateIdentity creates a fresh key and a self-signed certificate with
// CN=name. rsaBits only applies to AlgorithmRSA.
func GenerateIdentity(name, algorithm string, rsaBits int) (*Identity, error) {
	if err := domain.ValidateNodeName(name); err != nil {
		return nil, err
	}
	key, err := generateKey(algorithm, rsaBits)
	if err != nil {
		return nil, err
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("generate serial: %w", err)
	}
	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: name, Organization: []string{"EventLink"}},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(certificateValidity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
	}
	if _, ok := key.(*rsa.PrivateKey); ok {
		tmpl.KeyUsage |= x509.KeyUsageKeyEncipherment
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, key.Public(), key)
	if err != nil {
		return nil, fmt.Errorf("create certificate: %w", err)
	}
	return newIdentity(name, der, key)
}

func generateKey(algorithm string, rsaBits int) (crypto.Signer, error) {
	switch algorithm {
	case "", AlgorithmECDSAP256:
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case AlgorithmEd25519:
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		return priv, err
	case AlgorithmRSA:
		if rsaBits == 0 {
			rsaBits = minRSABits
		}
		if rsaBits < minRSABits {
			return nil, domain.ErrInvalidArgument.WithDetailsf("rsa key size %d below %d", rsaBits, minRSABits)
		}
		return rsa.GenerateKey(rand.Reader, rsaBits)
	default:
		return nil, domain.ErrInvalidArgument.WithDetailsf("unknown key algorithm %q", algorithm)
	}
}

func newIdentity(name string, der []byte, key crypto.PrivateKey) (*Identity, error) {
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("parse certificate: %w", err)
	}
	return &Identity{
		Name: name,
		Certificate: tls.Certificate{
			Certificate: [][]byte{der},
			PrivateKey:  key,
			Leaf:        leaf,
		},
		Leaf: leaf,
	}, nil
}

// IdentityConfig locates and protects the identity files.
type IdentityConfig struct {
	Dir       string
	Name      string
	Password  []byte
	Algorithm string
	RSABits   int
	Logger    *slog.Logger
}

// LoadOrCreateIdentity reads the identity from cfg.Dir, generating and
// writing a new one on first start.
func LoadOrCreateIdentity(cfg IdentityConfig) (*Identity, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	certPath := filepath.Join(cfg.Dir, CertificateFile)
	keyPath := filepath.Join(cfg.Dir, KeyFile)

	certExists, err := fileExists(certPath)
	if err != nil {
		return nil, err
	}
	keyExists, err := fileExists(keyPath)
	if err != nil {
		return nil, err
	}

	switch {
	case certExists && keyExists:
		id, err := readIdentity(certPath, keyPath, cfg.Password)
		if err != nil {
			return nil, err
		}
		if id.Name != cfg.Name {
			return nil, domain.ErrInvalidArgument.WithDetailsf(
				"identity in %s belongs to %q, node is configured as %q", cfg.Dir, id.Name, cfg.Name)
		}
		cfg.Logger.Info("identity loaded", "node", id.Name, "fingerprint", id.Fingerprint())
		return id, nil
	case certExists || keyExists:
		return nil, fmt.Errorf("incomplete identity in %s: need both %s and %s", cfg.Dir, CertificateFile, KeyFile)
	}

	id, err := GenerateIdentity(cfg.Name, cfg.Algorithm, cfg.RSABits)
	if err != nil {
		return nil, err
	}
	if err := writeIdentity(id, certPath, keyPath, cfg.Password); err != nil {
		return nil, err
	}
	cfg.Logger.Info("identity created",
		"node", id.Name,
		"algorithm", cfg.Algorithm,
		"fingerprint", id.Fingerprint(),
		"dir", cfg.Dir,
	)
	return id, nil
}

func writeIdentity(id *Identity, certPath, keyPath string, password []byte) error {
	plain, err := x509.MarshalPKCS8PrivateKey(id.Certificate.PrivateKey)
	if err != nil {
		return fmt.Errorf("marshal private key: %w", err)
	}
	sealed, err := sealKey(plain, password)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(certPath), 0o700); err != nil {
		return fmt.Errorf("create identity dir: %w", err)
	}
	if err := os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: SealedKeyPEMType, Bytes: sealed}), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", keyPath, err)
	}
	if err := os.WriteFile(certPath, id.CertificatePEM(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", certPath, err)
	}
	return nil
}

func readIdentity(certPath, keyPath string, password []byte) (*Identity, error) {
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", certPath, err)
	}
	der, leaf, err := ParseCertificatePEM(certPEM)
	if err != nil {
		return nil, err
	}

	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", keyPath, err)
	}
	block, _ := pem.Decode(keyPEM)
	if block == nil || block.Type != SealedKeyPEMType {
		return nil, domain.ErrIdentitySealed.WithDetailsf("%s is not a %s block", keyPath, SealedKeyPEMType)
	}
	plain, err := openKey(block.Bytes, password)
	if err != nil {
		return nil, err
	}
	key, err := x509.ParsePKCS8PrivateKey(plain)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	// X509KeyPair checks that key and certificate belong together.
	plainPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: plain})
	if _, err := tls.X509KeyPair(certPEM, plainPEM); err != nil {
		return nil, fmt.Errorf("identity key does not match certificate: %w", err)
	}
	return newIdentity(leaf.Subject.CommonName, der, key)
}

// ParseCertificatePEM decodes the first CERTIFICATE block of data.
func ParseCertificatePEM(data []byte) ([]byte, *x509.Certificate, error) {
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			return nil, nil, domain.ErrInvalidTrustEntry.WithDetails("no CERTIFICATE block found")
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, nil, domain.ErrInvalidTrustEntry.WithCause(err)
		}
		return block.Bytes, cert, nil
	}
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", path, err)
}

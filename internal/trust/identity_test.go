package trust

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yndnr/eventlink-go/internal/core/domain"
)

func TestGenerateIdentity(t *testing.T) {
	tests := []struct {
		algorithm string
		check     func(any) bool
	}{
		{AlgorithmECDSAP256, func(k any) bool { _, ok := k.(*ecdsa.PrivateKey); return ok }},
		{AlgorithmEd25519, func(k any) bool { _, ok := k.(ed25519.PrivateKey); return ok }},
		{AlgorithmRSA, func(k any) bool { _, ok := k.(*rsa.PrivateKey); return ok }},
	}

	for _, tt := range tests {
		t.Run(tt.algorithm, func(t *testing.T) {
			id, err := GenerateIdentity("lobby", tt.algorithm, 2048)
			if err != nil {
				t.Fatalf("GenerateIdentity() error = %v", err)
			}
			if id.Leaf.Subject.CommonName != "lobby" {
				t.Errorf("CN = %q, want lobby", id.Leaf.Subject.CommonName)
			}
			if !tt.check(id.Certificate.PrivateKey) {
				t.Errorf("private key type %T", id.Certificate.PrivateKey)
			}
			if id.Leaf.NotAfter.Before(time.Now().Add(9 * 365 * 24 * time.Hour)) {
				t.Errorf("NotAfter = %v, want about ten years out", id.Leaf.NotAfter)
			}
			if len(id.Fingerprint()) != 64 {
				t.Errorf("Fingerprint() length = %d, want 64", len(id.Fingerprint()))
			}
		})
	}
}

func TestGenerateIdentity_Invalid(t *testing.T) {
	if _, err := GenerateIdentity("a;b", AlgorithmECDSAP256, 0); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("invalid name error = %v", err)
	}
	if _, err := GenerateIdentity("a", "dsa", 0); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("unknown algorithm error = %v", err)
	}
	if _, err := GenerateIdentity("a", AlgorithmRSA, 1024); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("short rsa key error = %v", err)
	}
}

func TestSealOpen(t *testing.T) {
	plain := []byte("pkcs8 bytes")
	sealed, err := sealKey(plain, []byte("correct horse"))
	if err != nil {
		t.Fatalf("sealKey() error = %v", err)
	}
	if bytes.Contains(sealed, plain) {
		t.Error("sealed output contains the plaintext")
	}

	got, err := openKey(sealed, []byte("correct horse"))
	if err != nil {
		t.Fatalf("openKey() error = %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Errorf("openKey() = %q, want %q", got, plain)
	}

	if _, err := openKey(sealed, []byte("battery staple")); !errors.Is(err, domain.ErrIdentitySealed) {
		t.Errorf("openKey() with wrong password error = %v, want ErrIdentitySealed", err)
	}
	if _, err := openKey(sealed[:10], []byte("correct horse")); !errors.Is(err, domain.ErrIdentitySealed) {
		t.Errorf("openKey() truncated error = %v, want ErrIdentitySealed", err)
	}
	if _, err := sealKey(plain, nil); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("sealKey() empty password error = %v", err)
	}
}

func TestLoadOrCreateIdentity(t *testing.T) {
	dir := t.TempDir()
	cfg := IdentityConfig{Dir: dir, Name: "lobby", Password: []byte("pw-123456")}

	created, err := LoadOrCreateIdentity(cfg)
	if err != nil {
		t.Fatalf("LoadOrCreateIdentity() create error = %v", err)
	}

	keyPEM, err := os.ReadFile(filepath.Join(dir, KeyFile))
	if err != nil {
		t.Fatalf("read key file: %v", err)
	}
	block, _ := pem.Decode(keyPEM)
	if block == nil || block.Type != SealedKeyPEMType {
		t.Fatalf("key file block = %v, want %s", block, SealedKeyPEMType)
	}
	info, err := os.Stat(filepath.Join(dir, KeyFile))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("key file mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := LoadOrCreateIdentity(cfg)
	if err != nil {
		t.Fatalf("LoadOrCreateIdentity() load error = %v", err)
	}
	if loaded.Fingerprint() != created.Fingerprint() {
		t.Errorf("loaded fingerprint %s, want %s", loaded.Fingerprint(), created.Fingerprint())
	}

	t.Run("wrong password", func(t *testing.T) {
		bad := cfg
		bad.Password = []byte("other-password")
		if _, err := LoadOrCreateIdentity(bad); !errors.Is(err, domain.ErrIdentitySealed) {
			t.Errorf("error = %v, want ErrIdentitySealed", err)
		}
	})

	t.Run("renamed node", func(t *testing.T) {
		renamed := cfg
		renamed.Name = "survival"
		if _, err := LoadOrCreateIdentity(renamed); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("error = %v, want ErrInvalidArgument", err)
		}
	})

	t.Run("incomplete", func(t *testing.T) {
		if err := os.Remove(filepath.Join(dir, KeyFile)); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadOrCreateIdentity(cfg); err == nil {
			t.Error("LoadOrCreateIdentity() with missing key should fail")
		}
	})
}

func TestParseCertificatePEM(t *testing.T) {
	id, err := GenerateIdentity("lobby", AlgorithmECDSAP256, 0)
	if err != nil {
		t.Fatal(err)
	}

	der, cert, err := ParseCertificatePEM(id.CertificatePEM())
	if err != nil {
		t.Fatalf("ParseCertificatePEM() error = %v", err)
	}
	if !bytes.Equal(der, id.Leaf.Raw) || cert.Subject.CommonName != "lobby" {
		t.Error("ParseCertificatePEM() returned a different certificate")
	}

	if _, _, err := ParseCertificatePEM([]byte("not pem")); !errors.Is(err, domain.ErrInvalidTrustEntry) {
		t.Errorf("garbage error = %v, want ErrInvalidTrustEntry", err)
	}
}

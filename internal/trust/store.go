package trust

import (
	"bytes"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v3"

	"github.com/yndnr/eventlink-go/internal/core/domain"
)

const keyPrefix = "trust/"

// Peer is a trust entry.
type Peer struct {
	Name        string `json:"name"`
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Certificate []byte `json:"-"`
}

// Addr returns host:port for dialing.
func (p Peer) Addr() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// Alias returns the storage alias of the entry.
func (p Peer) Alias() string {
	return domain.FormatAlias(p.Name, p.Host, p.Port)
}

// Fingerprint returns the SHA-256 of the pinned certificate.
func (p Peer) Fingerprint() string {
	return Fingerprint(p.Certificate)
}

// Validate checks names, address and that the certificate is a parseable
// X.509 certificate issued to the peer name.
func (p Peer) Validate() error {
	if err := domain.ValidateNodeName(p.Name); err != nil {
		return err
	}
	if p.Host == "" || strings.Contains(p.Host, domain.AliasDelimiter) {
		return domain.ErrInvalidTrustEntry.WithDetailsf("invalid host %q", p.Host)
	}
	if p.Port < 1 || p.Port > 65535 {
		return domain.ErrInvalidTrustEntry.WithDetailsf("invalid port %d", p.Port)
	}
	cert, err := parseDER(p.Certificate)
	if err != nil {
		return err
	}
	if cert.Subject.CommonName != p.Name {
		return domain.ErrInvalidTrustEntry.WithDetailsf(
			"certificate is issued to %q, not %q", cert.Subject.CommonName, p.Name)
	}
	return nil
}

// StoreConfig configures the Badger backed trust store.
type StoreConfig struct {
	// Dir is the Badger directory. Ignored when InMemory is set.
	Dir      string
	InMemory bool
	Logger   *slog.Logger
}

// Store keeps the trusted peers.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// OpenStore opens or creates the trust store.
func OpenStore(cfg StoreConfig) (*Store, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Dir == "" && !cfg.InMemory {
		return nil, fmt.Errorf("trust store: dir is required")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts.Logger = &badgerLogger{logger: cfg.Logger}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("trust store: open db: %w", err)
	}
	return &Store{db: db, logger: cfg.Logger.With("component", "trust")}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add stores p, replacing any entry with the same name in one transaction.
func (s *Store) Add(p Peer) error {
	if err := p.Validate(); err != nil {
		return err
	}
	replaced := ""
	err := s.db.Update(func(txn *badger.Txn) error {
		keys, err := keysForName(txn, p.Name)
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
			replaced = strings.TrimPrefix(string(k), keyPrefix)
		}
		return txn.Set([]byte(keyPrefix+p.Alias()), p.Certificate)
	})
	if err != nil {
		return fmt.Errorf("trust store: add %s: %w", p.Name, err)
	}

	s.logger.Info("peer trusted",
		"peer", p.Name,
		"addr", p.Addr(),
		"fingerprint", p.Fingerprint(),
		"replaced", replaced,
	)
	return nil
}

// Remove deletes the entry for name and returns a message describing the
// outcome.
func (s *Store) Remove(name string) (string, error) {
	removed := false
	err := s.db.Update(func(txn *badger.Txn) error {
		keys, err := keysForName(txn, name)
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
			removed = true
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("trust store: remove %s: %w", name, err)
	}
	if !removed {
		return fmt.Sprintf("No trusted peer named %s", name), nil
	}
	s.logger.Info("peer trust removed", "peer", name)
	return fmt.Sprintf("Removed trust for %s", name), nil
}

// Get returns the entry for name.
func (s *Store) Get(name string) (Peer, error) {
	var peer Peer
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		return scan(txn, []byte(keyPrefix+name+domain.AliasDelimiter), func(p Peer) {
			if !found {
				peer, found = p, true
			}
		})
	})
	if err != nil {
		return Peer{}, err
	}
	if !found {
		return Peer{}, domain.ErrTrustNotFound.WithDetails(name)
	}
	return peer, nil
}

// List returns all entries sorted by name.
func (s *Store) List() ([]Peer, error) {
	var peers []Peer
	err := s.db.View(func(txn *badger.Txn) error {
		return scan(txn, []byte(keyPrefix), func(p Peer) {
			peers = append(peers, p)
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i].Name < peers[j].Name })
	return peers, nil
}

func keysForName(txn *badger.Txn, name string) ([][]byte, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = []byte(keyPrefix + name + domain.AliasDelimiter)

	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys, nil
}

// scan decodes every entry under prefix. Malformed aliases are skipped.
func scan(txn *badger.Txn, prefix []byte, fn func(Peer)) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		alias := string(bytes.TrimPrefix(item.Key(), []byte(keyPrefix)))
		name, host, port, err := domain.ParseAlias(alias)
		if err != nil {
			continue
		}
		der, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		fn(Peer{Name: name, Host: host, Port: port, Certificate: der})
	}
	return nil
}

// badgerLogger adapts slog.Logger to Badger's Logger interface. Badger's
// info output is demoted to debug.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

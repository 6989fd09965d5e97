package client

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/certifi/gocertifi"
)

type verifyKind int

const (
	verifyUnset verifyKind = iota
	verifyBundled
	verifyNone
	verifyPool
	verifyConfig
	verifyFile
)

// Verify selects how a call validates the server certificate chain.
// The zero value means "not specified" and resolves through the
// package default, see SetDefaultTLSConfig.
type Verify struct {
	kind   verifyKind
	pool   *x509.CertPool
	config *tls.Config
	path   string
}

// VerifyBundled verifies against the bundled Mozilla CA list.
func VerifyBundled() Verify { return Verify{kind: verifyBundled} }

// VerifyNone disables verification entirely.
func VerifyNone() Verify { return Verify{kind: verifyNone} }

// VerifyPool verifies against the given roots.
func VerifyPool(pool *x509.CertPool) Verify { return Verify{kind: verifyPool, pool: pool} }

// VerifyTLSConfig uses a clone of cfg as-is.
func VerifyTLSConfig(cfg *tls.Config) Verify { return Verify{kind: verifyConfig, config: cfg} }

// VerifyFile verifies against the PEM bundle at path.
func VerifyFile(path string) Verify { return Verify{kind: verifyFile, path: path} }

// IsSet reports whether the caller made an explicit choice.
func (v Verify) IsSet() bool { return v.kind != verifyUnset }

func (v Verify) String() string {
	switch v.kind {
	case verifyBundled:
		return "bundled"
	case verifyNone:
		return "none"
	case verifyPool:
		return "pool"
	case verifyConfig:
		return "tls-config"
	case verifyFile:
		return "file:" + v.path
	default:
		return "default"
	}
}

// TLSConfigFunc builds the trust context used when a call leaves Verify unset.
type TLSConfigFunc func() (*tls.Config, error)

var (
	defaultMu  sync.RWMutex
	defaultTLS TLSConfigFunc = bundledTLSConfig

	bundledOnce sync.Once
	bundledPool *x509.CertPool
	bundledErr  error
)

// SetDefaultTLSConfig replaces the factory used for calls that do not pass
// WithVerify. A nil f restores the bundled default. The returned function
// puts back whatever factory was active before.
func SetDefaultTLSConfig(f TLSConfigFunc) (restore func()) {
	if f == nil {
		f = bundledTLSConfig
	}
	defaultMu.Lock()
	prev := defaultTLS
	defaultTLS = f
	defaultMu.Unlock()
	return func() {
		defaultMu.Lock()
		defaultTLS = prev
		defaultMu.Unlock()
	}
}

// DefaultTLSConfig returns a fresh trust context from the active default factory.
func DefaultTLSConfig() (*tls.Config, error) {
	defaultMu.RLock()
	f := defaultTLS
	defaultMu.RUnlock()
	return f()
}

// BundledPool returns a copy of the bundled CA list.
func BundledPool() (*x509.CertPool, error) {
	bundledOnce.Do(func() {
		bundledPool, bundledErr = gocertifi.CACerts()
		if bundledErr != nil {
			bundledErr = fmt.Errorf("loading bundled CA list: %w", bundledErr)
		}
	})
	if bundledErr != nil {
		return nil, bundledErr
	}
	return bundledPool.Clone(), nil
}

func bundledTLSConfig() (*tls.Config, error) {
	pool, err := BundledPool()
	if err != nil {
		return nil, err
	}
	return &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

// NewTLSConfig builds the trust context for v. It is the single place every
// entry point of this package resolves verification through.
func NewTLSConfig(v Verify) (*tls.Config, error) {
	switch v.kind {
	case verifyUnset:
		return DefaultTLSConfig()
	case verifyBundled:
		return bundledTLSConfig()
	case verifyNone:
		return &tls.Config{InsecureSkipVerify: true, MinVersion: tls.VersionTLS12}, nil
	case verifyPool:
		if v.pool == nil {
			return nil, errors.New("verify pool is nil")
		}
		return &tls.Config{RootCAs: v.pool, MinVersion: tls.VersionTLS12}, nil
	case verifyConfig:
		if v.config == nil {
			return nil, errors.New("verify tls config is nil")
		}
		return v.config.Clone(), nil
	case verifyFile:
		pool, err := LoadPEMFile(v.path)
		if err != nil {
			return nil, err
		}
		return &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
	}
	return nil, fmt.Errorf("unknown verify mode %d", v.kind)
}

// LoadPEMFile reads a PEM bundle into a new pool. A file without any
// certificate is an error.
func LoadPEMFile(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading CA bundle: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("no certificates found in %s", path)
	}
	return pool, nil
}

// Package systemcerts makes the operating system certificate store the
// default trust anchor of pkg/client and of net/http's DefaultTransport.
//
// Call Install once at process start:
//
//	if err := systemcerts.Install(); err != nil {
//		log.Fatal(err)
//	}
//
// Calls that pick their own verification (client.WithVerify, a custom
// http.Transport) are left alone.
package systemcerts

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/arun0009/systemcerts/pkg/client"
	"github.com/arun0009/systemcerts/pkg/logger"
)

// EnvExtraCAFile lists extra PEM bundles (os.PathListSeparator separated)
// added on top of the OS store.
const EnvExtraCAFile = "SYSTEMCERTS_EXTRA_CA_FILE"

// systemPool is swapped in tests.
var systemPool = x509.SystemCertPool

type options struct {
	extraFiles  []string
	patchStdlib bool
}

// Option configures Install.
type Option func(*options)

// WithExtraCAFile trusts the PEM bundle at path in addition to the OS store.
func WithExtraCAFile(path string) Option {
	return func(o *options) { o.extraFiles = append(o.extraFiles, path) }
}

// resolve starts from EnvExtraCAFile and applies opts on top.
func resolve(opts []Option) options {
	o := options{patchStdlib: true}
	if env := os.Getenv(EnvExtraCAFile); env != "" {
		o.extraFiles = append(o.extraFiles, filepath.SplitList(env)...)
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithoutStdlibPatch leaves net/http's DefaultTransport untouched.
func WithoutStdlibPatch() Option {
	return func(o *options) { o.patchStdlib = false }
}

var (
	mu               sync.Mutex
	installed        bool
	pool             *x509.CertPool
	restoreDefault   func()
	stdlibPatched    bool
	prevDefaultTrans http.RoundTripper
)

// Install loads the OS store and makes it the default trust context. It is a
// no-op when already installed.
func Install(opts ...Option) error {
	o := resolve(opts)

	mu.Lock()
	defer mu.Unlock()
	if installed {
		return nil
	}

	p, err := loadPool(o.extraFiles)
	if err != nil {
		return err
	}
	pool = p
	restoreDefault = client.SetDefaultTLSConfig(func() (*tls.Config, error) {
		return newTLSConfig(p), nil
	})

	if o.patchStdlib {
		if t, ok := http.DefaultTransport.(*http.Transport); ok {
			patched := t.Clone()
			patched.TLSClientConfig = newTLSConfig(p)
			prevDefaultTrans = http.DefaultTransport
			http.DefaultTransport = patched
			stdlibPatched = true
		} else {
			logger.Warn("net/http DefaultTransport is not an *http.Transport, leaving it alone",
				"type", fmt.Sprintf("%T", http.DefaultTransport))
		}
	}

	installed = true
	logger.Debug("system certificate store installed as default trust", "extra_ca_files", len(o.extraFiles))
	return nil
}

// Uninstall restores the defaults that were active before Install.
func Uninstall() {
	mu.Lock()
	defer mu.Unlock()
	if !installed {
		return
	}
	restoreDefault()
	if stdlibPatched {
		if t, ok := http.DefaultTransport.(*http.Transport); ok {
			t.CloseIdleConnections()
		}
		http.DefaultTransport = prevDefaultTrans
	}
	installed, stdlibPatched = false, false
	pool, restoreDefault, prevDefaultTrans = nil, nil, nil
}

// Installed reports whether Install is in effect.
func Installed() bool {
	mu.Lock()
	defer mu.Unlock()
	return installed
}

// Pool returns a copy of the installed pool, or nil when not installed.
func Pool() *x509.CertPool {
	mu.Lock()
	defer mu.Unlock()
	if pool == nil {
		return nil
	}
	return pool.Clone()
}

// TLSConfig returns the trust context Install would use, without installing
// anything.
func TLSConfig(opts ...Option) (*tls.Config, error) {
	o := resolve(opts)
	p, err := loadPool(o.extraFiles)
	if err != nil {
		return nil, err
	}
	return newTLSConfig(p), nil
}

func newTLSConfig(p *x509.CertPool) *tls.Config {
	return &tls.Config{RootCAs: p, MinVersion: tls.VersionTLS12}
}

// loadPool reads the OS store and appends extra anchors. An unreadable OS
// store degrades to the extra anchors alone.
func loadPool(extraFiles []string) (*x509.CertPool, error) {
	p, err := systemPool()
	if err != nil || p == nil {
		logger.Warn("cannot load system root certificates, continuing with extra CA files only", "error", err)
		p = x509.NewCertPool()
	}
	for _, path := range extraFiles {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading extra CA file: %w", err)
		}
		if !p.AppendCertsFromPEM(data) {
			return nil, fmt.Errorf("no certificates found in extra CA file %s", path)
		}
	}
	return p, nil
}

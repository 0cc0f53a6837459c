package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// CertificateLoader serves the dashboard's HTTPS certificate and reloads
// it when the certificate or key file changes on disk.
type CertificateLoader struct {
	certPath  string
	keyPath   string
	cert      *tls.Certificate
	mu        sync.RWMutex
	watcher   *fsnotify.Watcher
	done      chan struct{}
	closeOnce sync.Once
}

// NewCertificateLoader loads the key pair and starts watching both files.
func NewCertificateLoader(certPath, keyPath string) (*CertificateLoader, error) {
	cl := &CertificateLoader{
		certPath: certPath,
		keyPath:  keyPath,
		done:     make(chan struct{}),
	}

	if err := cl.loadCertificate(); err != nil {
		return nil, fmt.Errorf("initial certificate load: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	cl.watcher = watcher

	for _, p := range []string{certPath, keyPath} {
		if err := watcher.Add(p); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("watch %s: %w", p, err)
		}
	}

	go cl.watchLoop()

	return cl, nil
}

func (cl *CertificateLoader) loadCertificate() error {
	cert, err := tls.LoadX509KeyPair(cl.certPath, cl.keyPath)
	if err != nil {
		return err
	}
	cl.mu.Lock()
	cl.cert = &cert
	cl.mu.Unlock()
	return nil
}

func (cl *CertificateLoader) watchLoop() {
	for {
		select {
		case event, ok := <-cl.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				slog.Info("certificate file changed, reloading", "file", event.Name)
				if err := cl.loadCertificate(); err != nil {
					// The key may not have been written yet; keep serving the old pair.
					slog.Warn("failed to reload certificate", "error", err)
				} else {
					slog.Info("certificate reloaded successfully")
				}
			}
			if event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				// Atomic rotation replaces the file; watch the new inode.
				slog.Info("certificate file rotated, re-watching", "file", event.Name)
				cl.watcher.Remove(event.Name)
				time.Sleep(100 * time.Millisecond)
				if err := cl.watcher.Add(event.Name); err != nil {
					slog.Warn("failed to re-watch certificate file after rotation",
						"file", event.Name, "error", err)
				}
				if err := cl.loadCertificate(); err != nil {
					slog.Warn("failed to reload certificate after rotation", "error", err)
				} else {
					slog.Info("certificate reloaded after rotation")
				}
			}
		case err, ok := <-cl.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("certificate watcher error", "error", err)
		case <-cl.done:
			return
		}
	}
}

// GetCertificate returns the current certificate. Suitable for use as
// tls.Config.GetCertificate callback.
func (cl *CertificateLoader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return cl.cert, nil
}

// Close stops the file watcher.
func (cl *CertificateLoader) Close() error {
	var err error
	cl.closeOnce.Do(func() {
		close(cl.done)
		err = cl.watcher.Close()
	})
	return err
}

// LoadCAPool reads a PEM bundle and returns a CertPool.
func LoadCAPool(caPath string) (*x509.CertPool, error) {
	caCert, err := os.ReadFile(caPath)
	if err != nil {
		return nil, fmt.Errorf("read CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to parse CA certificate from %s", caPath)
	}
	return pool, nil
}

// NewServerTLSConfig creates the TLS configuration for the public API
// listener. Browsers connect without client certificates.
func NewServerTLSConfig(certLoader *CertificateLoader) *tls.Config {
	return &tls.Config{
		GetCertificate: certLoader.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}
}

// NewUpstreamTLSConfig creates the TLS configuration used when polling
// nodes served behind a private CA.
func NewUpstreamTLSConfig(caPool *x509.CertPool) *tls.Config {
	return &tls.Config{
		RootCAs:    caPool,
		MinVersion: tls.VersionTLS12,
	}
}

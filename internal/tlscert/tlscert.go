// Package tlscert supplies the HTTPS server certificate, either from files or
// from a self-signed pair generated for local development.
package tlscert

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"os"
)

// Certificate sources, matching server.tls_mode.
const (
	ModeFile = "file"
	ModeAuto = "auto"
)

// MinTLSVersion is the minimum TLS version the server accepts.
const MinTLSVersion = tls.VersionTLS13

// Config selects and locates the server certificate.
type Config struct {
	Mode string

	CertFile string
	KeyFile  string

	// AutoCertDir holds the generated pair in auto mode.
	AutoCertDir string
	// Hosts are the SANs of a generated certificate.
	Hosts []string
}

// Source produces the server TLS configuration.
type Source struct {
	certFile    string
	keyFile     string
	description string
	// reload re-reads the pair on every handshake so rotated files are picked up.
	reload bool
	logger *slog.Logger
}

// New prepares a certificate source. In auto mode a missing, expired or
// mismatched certificate is regenerated.
func New(cfg Config, logger *slog.Logger) (*Source, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Mode {
	case ModeFile:
		return newFileSource(cfg, logger)
	case ModeAuto:
		return newAutoSource(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported TLS mode %q (valid modes: auto, file)", cfg.Mode)
	}
}

func newFileSource(cfg Config, logger *slog.Logger) (*Source, error) {
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return nil, fmt.Errorf("tls_cert_file and tls_key_file are required when tls_mode=file")
	}
	for _, path := range []string{cfg.CertFile, cfg.KeyFile} {
		if err := checkReadableFile(path); err != nil {
			return nil, err
		}
	}
	info, err := os.Stat(cfg.KeyFile)
	if err != nil {
		return nil, err
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		return nil, fmt.Errorf("key file %s has insecure permissions %o (want 0600 or 0400)", cfg.KeyFile, perm)
	}
	if _, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile); err != nil {
		return nil, fmt.Errorf("failed to load certificate: %w", err)
	}
	return &Source{
		certFile:    cfg.CertFile,
		keyFile:     cfg.KeyFile,
		description: fmt.Sprintf("file (cert=%s, key=%s)", cfg.CertFile, cfg.KeyFile),
		reload:      true,
		logger:      logger,
	}, nil
}

// TLSConfig returns a configuration for http.Server.
func (s *Source) TLSConfig() (*tls.Config, error) {
	if s.reload {
		return &tls.Config{
			MinVersion: MinTLSVersion,
			GetCertificate: func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
				cert, err := tls.LoadX509KeyPair(s.certFile, s.keyFile)
				if err != nil {
					s.logger.Error("failed to reload certificate",
						slog.String("cert_file", s.certFile),
						slog.String("error", err.Error()))
					return nil, err
				}
				return &cert, nil
			},
		}, nil
	}
	cert, err := tls.LoadX509KeyPair(s.certFile, s.keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load certificate: %w", err)
	}
	return &tls.Config{MinVersion: MinTLSVersion, Certificates: []tls.Certificate{cert}}, nil
}

// Description names the certificate source for logs.
func (s *Source) Description() string {
	return s.description
}

func checkReadableFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("file not accessible: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%s is empty", path)
	}
	return nil
}

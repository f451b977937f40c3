// Package tls builds the server TLS configuration from certificate files or
// an ACME manager.
package tls

import (
	"context"
	cryptotls "crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/acme"
	"golang.org/x/crypto/acme/autocert"
)

const (
	// LetsEncrypt production directory
	letsEncryptProduction = "https://acme-v02.api.letsencrypt.org/directory"
	// LetsEncrypt staging directory (for testing)
	letsEncryptStaging = "https://acme-staging-v02.api.letsencrypt.org/directory"
)

// Config selects the certificate source. Files win over ACME.
type Config struct {
	CertFile string
	KeyFile  string

	Domains []string // ACME host whitelist
	Email   string
	Staging bool

	// Cache stores ACME certificates and the account key.
	Cache autocert.Cache
}

// Enabled reports whether any certificate source is configured.
func (c Config) Enabled() bool {
	return c.CertFile != "" || len(c.Domains) > 0
}

// Result is a ready TLS setup. ChallengeHandler is non-nil for ACME and
// answers HTTP-01 challenges, redirecting every other request to HTTPS.
type Result struct {
	TLSConfig        *cryptotls.Config
	ChallengeHandler http.Handler
	Manager          *autocert.Manager
}

// Setup builds the TLS configuration.
func Setup(cfg Config, logger zerolog.Logger) (*Result, error) {
	if cfg.CertFile != "" || cfg.KeyFile != "" {
		if cfg.CertFile == "" || cfg.KeyFile == "" {
			return nil, errors.New("tls: cert_file and key_file must be set together")
		}
		cert, err := cryptotls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("tls: load key pair: %w", err)
		}
		logger.Info().Str("cert", cfg.CertFile).Msg("tls enabled with certificate files")
		return &Result{TLSConfig: &cryptotls.Config{
			Certificates: []cryptotls.Certificate{cert},
			MinVersion:   cryptotls.VersionTLS12,
		}}, nil
	}

	if len(cfg.Domains) == 0 {
		return nil, errors.New("tls: no certificate source configured")
	}
	if cfg.Cache == nil {
		return nil, errors.New("tls: ACME requires a certificate cache")
	}

	directory := letsEncryptProduction
	if cfg.Staging {
		directory = letsEncryptStaging
	}

	m := &autocert.Manager{
		Cache:      cfg.Cache,
		Prompt:     autocert.AcceptTOS,
		Email:      cfg.Email,
		HostPolicy: hostPolicy(cfg.Domains),
		Client:     &acme.Client{DirectoryURL: directory},
	}
	logger.Info().
		Strs("domains", cfg.Domains).
		Bool("staging", cfg.Staging).
		Str("directory", directory).
		Msg("tls enabled with ACME")

	tc := m.TLSConfig()
	tc.MinVersion = cryptotls.VersionTLS12
	return &Result{
		TLSConfig:        tc,
		ChallengeHandler: m.HTTPHandler(nil),
		Manager:          m,
	}, nil
}

// hostPolicy accepts the configured domains, case-insensitively.
func hostPolicy(domains []string) autocert.HostPolicy {
	allowed := make(map[string]bool, len(domains))
	for _, d := range domains {
		allowed[strings.ToLower(strings.TrimSpace(d))] = true
	}
	return func(_ context.Context, host string) error {
		if allowed[strings.ToLower(host)] {
			return nil
		}
		return fmt.Errorf("tls: host %q not configured", host)
	}
}

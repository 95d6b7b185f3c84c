package transport

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// TLSConfig carries the TLS material of the SDK connection.
type TLSConfig struct {
	// CACertPath is a PEM bundle of CAs trusted in addition to the system pool.
	CACertPath string
	// CACertData is an inline PEM bundle, appended after CACertPath.
	CACertData string
	// ClientCertPath and ClientKeyPath enable mutual TLS.
	ClientCertPath string
	ClientKeyPath  string
	// ServerName overrides the SNI and the name checked against the server certificate.
	ServerName string
	// SkipHostnameVerification still validates the chain but accepts any host name.
	SkipHostnameVerification bool
	// Insecure disables all certificate verification.
	Insecure bool
}

// IsZero reports whether no TLS option is set.
func (c TLSConfig) IsZero() bool {
	return c == TLSConfig{}
}

// Build returns the *tls.Config described by c. The minimum version is TLS 1.2.
func (c TLSConfig) Build() (*tls.Config, error) {
	if c.ClientKeyPath != "" && c.ClientCertPath == "" {
		return nil, errors.New("tls: client key given without a client certificate")
	}
	if c.ClientCertPath != "" && c.ClientKeyPath == "" {
		return nil, errors.New("tls: client certificate given without a client key")
	}

	cfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
		ServerName: c.ServerName,
	}

	roots, err := c.rootCAs()
	if err != nil {
		return nil, err
	}
	cfg.RootCAs = roots

	if c.ClientCertPath != "" {
		cert, err := tls.LoadX509KeyPair(c.ClientCertPath, c.ClientKeyPath)
		if err != nil {
			return nil, fmt.Errorf("tls: loading client key pair: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	switch {
	case c.Insecure:
		cfg.InsecureSkipVerify = true
	case c.SkipHostnameVerification:
		// The stdlib check is disabled and replaced with a chain-only verification.
		cfg.InsecureSkipVerify = true
		cfg.VerifyConnection = verifyChainOnly(roots)
	}

	return cfg, nil
}

// rootCAs returns nil (system pool) unless extra CAs are configured.
func (c TLSConfig) rootCAs() (*x509.CertPool, error) {
	if c.CACertPath == "" && c.CACertData == "" {
		return nil, nil
	}

	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}

	if c.CACertPath != "" {
		pem, err := os.ReadFile(c.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("tls: reading CA bundle: %w", err)
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("tls: no certificates found in %s", c.CACertPath)
		}
	}

	if c.CACertData != "" {
		if !pool.AppendCertsFromPEM([]byte(c.CACertData)) {
			return nil, errors.New("tls: no certificates found in inline CA data")
		}
	}

	return pool, nil
}

func verifyChainOnly(roots *x509.CertPool) func(tls.ConnectionState) error {
	return func(cs tls.ConnectionState) error {
		if len(cs.PeerCertificates) == 0 {
			return errors.New("tls: server presented no certificate")
		}

		opts := x509.VerifyOptions{
			Roots:         roots,
			Intermediates: x509.NewCertPool(),
		}
		for _, cert := range cs.PeerCertificates[1:] {
			opts.Intermediates.AddCert(cert)
		}

		if _, err := cs.PeerCertificates[0].Verify(opts); err != nil {
			return fmt.Errorf("tls: verifying server certificate chain: %w", err)
		}
		return nil
	}
}

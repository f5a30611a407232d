package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// DefaultMinTLSVersion is the minimum TLS version used when the
// configuration does not set one.
const DefaultMinTLSVersion uint16 = tls.VersionTLS13

// TLSVersion is the TLS version configured by the user
type TLSVersion string

const (
	// TLSVersion12 represents TLS 1.2
	TLSVersion12 TLSVersion = "1.2"

	// TLSVersion13 represents TLS 1.3
	TLSVersion13 TLSVersion = "1.3"
)

func (t TLSVersion) parseTLSVersion() uint16 {
	switch t {
	case TLSVersion12:
		return tls.VersionTLS12
	case TLSVersion13:
		return tls.VersionTLS13
	default:
		return DefaultMinTLSVersion
	}
}

// TLS is the configuration for TLS connections to a sink
type TLS struct {
	// MinTLSVersion is the minimum acceptable TLS version for connections.
	MinTLSVersion TLSVersion `mapstructure:"tlsMinVersion" yaml:"tlsMinVersion,omitempty"`

	// Certificate is the path to an x509 PEM encoded certificate file used
	// for client authentication when the sink requires mTLS.
	Certificate string `mapstructure:"tlsCert" yaml:"tlsCert,omitempty"`

	// PrivateKey is the matching x509 PEM encoded private key for the Certificate.
	PrivateKey string `mapstructure:"tlsKey" yaml:"tlsKey,omitempty"`

	// CertificateAuthority is one or more file paths to x509 PEM encoded
	// certificate authority chains used to verify the sink's certificate.
	CertificateAuthority []string `mapstructure:"tlsCa" yaml:"tlsCa,omitempty"`

	// InsecureSkipVerify disables verification of the sink's certificate
	// chain and host name. Testing only.
	InsecureSkipVerify bool `mapstructure:"tlsSkipVerify" yaml:"tlsSkipVerify,omitempty"`
}

// TLSEnabled returns true if TLS is configured
func (t *TLS) TLSEnabled() bool {
	return t.Certificate != "" && t.PrivateKey != ""
}

// Validate validates the TLS configuration
func (t *TLS) Validate() error {
	switch t.MinTLSVersion {
	// Zero value falls back to DefaultMinTLSVersion
	case "", TLSVersion12, TLSVersion13:
	default:
		return fmt.Errorf(
			"invalid tls version %s, should be one of %s, %s",
			t.MinTLSVersion, TLSVersion12, TLSVersion13,
		)
	}

	if t.Certificate != "" && t.PrivateKey == "" {
		return errors.New("tls private key must be set when tls certificate is set")
	}

	if t.Certificate == "" && t.PrivateKey != "" {
		return errors.New("tls certificate must be set when tls private key is set")
	}

	if t.Certificate != "" {
		if _, err := os.Stat(t.Certificate); err != nil {
			return fmt.Errorf("failed to lookup tls certificate file %s: %w", t.Certificate, err)
		}
	}

	if t.PrivateKey != "" {
		if _, err := os.Stat(t.PrivateKey); err != nil {
			return fmt.Errorf("failed to lookup tls private key file %s: %w", t.PrivateKey, err)
		}
	}

	for _, ca := range t.CertificateAuthority {
		if _, err := os.Stat(ca); err != nil {
			return fmt.Errorf("failed to lookup tls certificate authority file %s: %w", ca, err)
		}
	}

	return nil
}

// Convert converts a TLS config to a *tls.Config
func (t TLS) Convert() (*tls.Config, error) {
	minTLS := t.MinTLSVersion.parseTLSVersion()

	// #nosec G402 - min tls version is user configured and restricted to 1.2 or 1.3
	tlsConfig := &tls.Config{
		MinVersion:         minTLS,
		InsecureSkipVerify: t.InsecureSkipVerify,
	}

	// CA certificates can be used to trust private sink certificates
	if len(t.CertificateAuthority) > 0 {
		caPool := x509.NewCertPool()

		for _, caCertFile := range t.CertificateAuthority {
			ca, err := os.ReadFile(caCertFile) // #nosec G304, user defines ca file path via config
			if err != nil {
				return nil, fmt.Errorf("failed to read certificate authority file: %w", err)
			}

			if !caPool.AppendCertsFromPEM(ca) {
				return nil, errors.New("failed to append certificate authority to root ca pool")
			}
		}

		tlsConfig.RootCAs = caPool
	}

	// Client key pair for mutual TLS
	if t.Certificate != "" && t.PrivateKey != "" {
		keypair, err := tls.LoadX509KeyPair(t.Certificate, t.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load tls certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{keypair}
	}

	return tlsConfig, nil
}

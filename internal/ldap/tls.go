package ldap

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// buildTLSConfig layers the CA and client certificate settings of config
// onto its base TLS configuration.
func buildTLSConfig(config *ConnectionConfig) (*tls.Config, error) {
	var tlsConfig *tls.Config
	if config.TLSConfig != nil {
		tlsConfig = config.TLSConfig.Clone()
	} else {
		tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	if config.TLSCACertFile != "" || config.TLSCACert != "" {
		pool, err := x509.SystemCertPool()
		if err != nil || pool == nil {
			pool = x509.NewCertPool()
		}

		if config.TLSCACertFile != "" {
			pem, err := os.ReadFile(config.TLSCACertFile)
			if err != nil {
				return nil, fmt.Errorf("failed to read CA certificate file: %w", err)
			}
			if !pool.AppendCertsFromPEM(pem) {
				return nil, fmt.Errorf("no certificates found in %s", config.TLSCACertFile)
			}
		}

		if config.TLSCACert != "" && !pool.AppendCertsFromPEM([]byte(config.TLSCACert)) {
			return nil, errors.New("no certificates found in CA certificate content")
		}

		tlsConfig.RootCAs = pool
	}

	if config.TLSClientCertFile != "" || config.TLSClientKeyFile != "" {
		if config.TLSClientCertFile == "" || config.TLSClientKeyFile == "" {
			return nil, errors.New("client certificate and key must be configured together")
		}
		cert, err := tls.LoadX509KeyPair(config.TLSClientCertFile, config.TLSClientKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

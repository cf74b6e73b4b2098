package rpc

import (
	"crypto/tls"
	"crypto/x509"
	"os"

	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/model"
	"google.golang.org/grpc/credentials"
)

// ServerCredentials serves the connector certificate and accepts only clients
// whose certificate verifies against the core certificate.
func ServerCredentials(cfg *model.Config) (credentials.TransportCredentials, error) {
	cert, err := tls.LoadX509KeyPair(cfg.Certificate, cfg.Key)
	if err != nil {
		return nil, model.WrapError(model.KindInvalidConfiguration, err, "cannot load certificate [%s]", cfg.Certificate)
	}
	pool, err := certPool(cfg.Core.Certificate)
	if err != nil {
		return nil, err
	}
	return credentials.NewTLS(&tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    pool,
		MinVersion:   tls.VersionTLS12,
	}), nil
}

// ClientCredentials presents the connector certificate and trusts the
// connector and core certificates.
func ClientCredentials(cfg *model.Config) (credentials.TransportCredentials, error) {
	cert, err := tls.LoadX509KeyPair(cfg.Certificate, cfg.Key)
	if err != nil {
		return nil, model.WrapError(model.KindInvalidConfiguration, err, "cannot load certificate [%s]", cfg.Certificate)
	}
	pool, err := certPool(cfg.Certificate, cfg.Core.Certificate)
	if err != nil {
		return nil, err
	}
	return credentials.NewTLS(&tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS12,
	}), nil
}

func certPool(paths ...string) (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	for _, p := range paths {
		pem, err := os.ReadFile(p)
		if err != nil {
			return nil, model.WrapError(model.KindInvalidConfiguration, err, "cannot read certificate [%s]", p)
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, model.NewError(model.KindInvalidConfiguration, "no certificate found in [%s]", p)
		}
	}
	return pool, nil
}

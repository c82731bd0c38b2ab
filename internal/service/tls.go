package service

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"time"
)

type CertInfo struct {
	Issuer   string    `json:"issuer"`
	Subject  string    `json:"subject"`
	Expiry   time.Time `json:"expiry"`
	Protocol string    `json:"protocol"`
}

// TLSProber reads the leaf certificate a host serves. Verification is skipped
// so expired or self-signed certificates are still reported.
type TLSProber struct {
	Port    string
	Timeout time.Duration
}

func NewTLSProber() *TLSProber {
	return &TLSProber{Port: "443", Timeout: 5 * time.Second}
}

func (p *TLSProber) LookupCertificate(ctx context.Context, host string) (*CertInfo, error) {
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: p.Timeout},
		Config:    &tls.Config{InsecureSkipVerify: true, ServerName: host},
	}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, p.Port))
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = conn.Close()
	}()

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return nil, errors.New("no certificates found")
	}
	cert := state.PeerCertificates[0]

	protocol := "Unknown"
	switch state.Version {
	case tls.VersionTLS12:
		protocol = "TLS 1.2"
	case tls.VersionTLS13:
		protocol = "TLS 1.3"
	}

	return &CertInfo{
		Issuer:   issuerName(cert.Issuer.CommonName, cert.Issuer.Organization),
		Subject:  cert.Subject.CommonName,
		Expiry:   cert.NotAfter,
		Protocol: protocol,
	}, nil
}

func issuerName(cn string, org []string) string {
	if cn != "" {
		return cn
	}
	if len(org) > 0 {
		return org[0]
	}
	return ""
}

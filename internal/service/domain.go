package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"domaincheck/internal/metrics"
	"domaincheck/internal/storage"
	"domaincheck/internal/utils"
)

const (
	SourceLoopia = "loopia"
	SourceDNS    = "dns"
	SourceWhois  = "whois"
)

var ErrNoSource = errors.New("no lookup source enabled")

type NSLookup interface {
	LookupNS(ctx context.Context, domain string) ([]string, error)
}

type FreeChecker interface {
	IsFree(ctx context.Context, domain string) (bool, error)
}

// AddressLookup is implemented by resolvers that can also return A records.
type AddressLookup interface {
	LookupA(ctx context.Context, domain string) ([]string, error)
}

type CertLookup interface {
	LookupCertificate(ctx context.Context, host string) (*CertInfo, error)
}

type WhoisFunc func(ctx context.Context, domain string) (*WhoisInfo, error)

// DomainService answers availability checks for the backend endpoint. Any of
// the sources may be nil; at least one must be set.
type DomainService struct {
	Storage  *storage.Storage
	DNS      NSLookup
	Whois    WhoisFunc
	Loopia   FreeChecker
	Certs    CertLookup
	CacheTTL time.Duration
	Metrics  *metrics.Metrics
}

// NormalizeDomain lowercases and trims whitespace and the root dot.
func NormalizeDomain(domain string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
}

// Check returns flat result data for domain. Fresh results are cached and
// appended to the domain's history; cached answers carry cached=true.
func (s *DomainService) Check(ctx context.Context, domain string) (map[string]interface{}, error) {
	domain = NormalizeDomain(domain)

	if s.Storage != nil {
		data, ok, err := s.Storage.GetCachedCheck(ctx, domain)
		if err != nil {
			utils.Log.Warn("cache read failed", utils.Field("domain", domain), utils.Field("error", err.Error()))
		} else if ok {
			utils.Log.Debug("cache hit", utils.Field("domain", domain))
			data["cached"] = true
			return data, nil
		}
	}

	start := time.Now()
	data, err := s.lookup(ctx, domain)
	if err != nil {
		utils.Log.Warn("domain lookup failed", utils.Field("domain", domain), utils.Field("error", err.Error()))
		return nil, err
	}
	available, _ := data["available"].(bool)
	source, _ := data["source"].(string)
	s.Metrics.ObserveLookup(source, available, time.Since(start))
	utils.Log.Info("domain checked",
		utils.Field("domain", domain),
		utils.Field("available", available),
		utils.Field("source", source))

	if s.Storage != nil {
		if err := s.Storage.SetCachedCheck(ctx, domain, data, s.CacheTTL); err != nil {
			utils.Log.Warn("cache write failed", utils.Field("domain", domain), utils.Field("error", err.Error()))
		}
		if err := s.Storage.AddCheckHistory(ctx, domain, data); err != nil {
			utils.Log.Warn("history write failed", utils.Field("domain", domain), utils.Field("error", err.Error()))
		}
	}

	out := make(map[string]interface{}, len(data)+1)
	for k, v := range data {
		out[k] = v
	}
	out["cached"] = false
	return out, nil
}

func (s *DomainService) lookup(ctx context.Context, domain string) (map[string]interface{}, error) {
	if s.Loopia == nil && s.DNS == nil && s.Whois == nil {
		return nil, ErrNoSource
	}
	data := map[string]interface{}{"domain": domain}

	if s.Loopia != nil {
		free, err := s.Loopia.IsFree(ctx, domain)
		if err == nil {
			data["available"] = free
			data["source"] = SourceLoopia
			if !free {
				s.enrich(ctx, domain, data)
			}
			return data, nil
		}
		utils.Log.Warn("loopia unavailable, falling back", utils.Field("domain", domain), utils.Field("error", err.Error()))
	}

	var nxdomain bool
	var dnsErr error
	if s.DNS != nil {
		ns, err := s.DNS.LookupNS(ctx, domain)
		switch {
		case errors.Is(err, ErrNXDomain):
			nxdomain = true
		case err != nil:
			dnsErr = err
		case len(ns) > 0:
			data["available"] = false
			data["source"] = SourceDNS
			data["nameservers"] = strings.Join(ns, ", ")
			s.enrich(ctx, domain, data)
			return data, nil
		}
	}

	if s.Whois != nil {
		info, err := s.Whois(ctx, domain)
		switch {
		case errors.Is(err, ErrNotRegistered):
			data["available"] = true
			data["source"] = SourceWhois
			return data, nil
		case err == nil:
			data["available"] = false
			data["source"] = SourceWhois
			applyWhois(data, info)
			return data, nil
		case nxdomain:
			utils.Log.Debug("whois failed, using NXDOMAIN", utils.Field("domain", domain), utils.Field("error", err.Error()))
		default:
			return nil, fmt.Errorf("whois %s: %w", domain, err)
		}
	}

	if nxdomain {
		data["available"] = true
		data["source"] = SourceDNS
		return data, nil
	}
	if dnsErr != nil {
		return nil, dnsErr
	}
	// Delegated with an empty NS set and no whois to ask.
	data["available"] = false
	data["source"] = SourceDNS
	return data, nil
}

// enrich adds registration, address and certificate details to a taken
// domain. Each source is optional and failures are ignored.
func (s *DomainService) enrich(ctx context.Context, domain string, data map[string]interface{}) {
	if s.Whois != nil {
		if info, err := s.Whois(ctx, domain); err == nil {
			applyWhois(data, info)
		}
	}
	if a, ok := s.DNS.(AddressLookup); ok {
		if addrs, err := a.LookupA(ctx, domain); err == nil && len(addrs) > 0 {
			data["addresses"] = strings.Join(addrs, ", ")
		}
	}
	if s.Certs != nil {
		cert, err := s.Certs.LookupCertificate(ctx, domain)
		if err != nil {
			utils.Log.Debug("certificate lookup failed", utils.Field("domain", domain), utils.Field("error", err.Error()))
			return
		}
		if cert.Issuer != "" {
			data["tls_issuer"] = cert.Issuer
		}
		data["tls_expires"] = cert.Expiry.UTC().Format(time.RFC3339)
	}
}

func applyWhois(data map[string]interface{}, info *WhoisInfo) {
	if info == nil {
		return
	}
	if info.Registrar != "" {
		data["registrar"] = info.Registrar
	}
	if info.Created != "" {
		data["created"] = info.Created
	}
	if info.Expiry != "" {
		data["expires"] = info.Expiry
	}
	if len(info.Status) > 0 {
		data["status"] = strings.Join(info.Status, ", ")
	}
	if _, ok := data["nameservers"]; !ok && len(info.NameServers) > 0 {
		data["nameservers"] = strings.Join(info.NameServers, ", ")
	}
}

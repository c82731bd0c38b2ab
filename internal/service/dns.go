package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// ErrNXDomain means the resolver answered that the name does not exist.
var ErrNXDomain = errors.New("NXDOMAIN")

type DNSService struct {
	Resolver string
	Timeout  time.Duration
}

func NewDNSService(resolver string) *DNSService {
	if resolver == "" {
		resolver = "8.8.8.8:53"
	}
	return &DNSService{
		Resolver: resolver,
		Timeout:  5 * time.Second,
	}
}

// LookupNS returns the delegated name servers of domain, without trailing dots.
func (s *DNSService) LookupNS(ctx context.Context, domain string) ([]string, error) {
	return s.query(ctx, domain, dns.TypeNS)
}

// LookupA returns the IPv4 addresses of domain.
func (s *DNSService) LookupA(ctx context.Context, domain string) ([]string, error) {
	return s.query(ctx, domain, dns.TypeA)
}

func (s *DNSService) query(ctx context.Context, target string, qtype uint16) ([]string, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(target), qtype)
	m.RecursionDesired = true

	c := new(dns.Client)
	c.Timeout = s.Timeout
	in, _, err := c.ExchangeContext(ctx, m, s.Resolver)
	if err != nil {
		return nil, fmt.Errorf("dns %s %s: %w", dns.TypeToString[qtype], target, err)
	}

	switch in.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return nil, ErrNXDomain
	default:
		return nil, fmt.Errorf("dns %s %s: %s", dns.TypeToString[qtype], target, dns.RcodeToString[in.Rcode])
	}

	var results []string
	for _, ans := range in.Answer {
		switch t := ans.(type) {
		case *dns.NS:
			if qtype == dns.TypeNS {
				results = append(results, strings.TrimSuffix(t.Ns, "."))
			}
		case *dns.A:
			if qtype == dns.TypeA {
				results = append(results, t.A.String())
			}
		}
	}
	return results, nil
}

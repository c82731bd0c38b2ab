package service

import (
	"context"
	"errors"
	"net"
	"testing"

	"domaincheck/internal/utils"

	"github.com/miekg/dns"
)

func init() {
	utils.TestInitLogger()
}

// startDNS serves a tiny zone: example.com has NS and A records, servfail.com
// fails, everything else is NXDOMAIN.
func startDNS(t *testing.T) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	started := make(chan struct{})
	srv := &dns.Server{
		PacketConn:        pc,
		NotifyStartedFunc: func() { close(started) },
		Handler: dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
			m := new(dns.Msg)
			m.SetReply(r)
			q := r.Question[0]
			switch q.Name {
			case "example.com.":
				switch q.Qtype {
				case dns.TypeNS:
					for _, ns := range []string{"a.iana-servers.net.", "b.iana-servers.net."} {
						rr, _ := dns.NewRR("example.com. 3600 IN NS " + ns)
						m.Answer = append(m.Answer, rr)
					}
				case dns.TypeA:
					rr, _ := dns.NewRR("example.com. 300 IN A 93.184.215.14")
					m.Answer = append(m.Answer, rr)
				}
			case "servfail.com.":
				m.Rcode = dns.RcodeServerFailure
			default:
				m.Rcode = dns.RcodeNameError
			}
			_ = w.WriteMsg(m)
		}),
	}
	go func() { _ = srv.ActivateAndServe() }()
	<-started
	t.Cleanup(func() { _ = srv.Shutdown() })
	return pc.LocalAddr().String()
}

func TestDNSService_LookupNS(t *testing.T) {
	s := NewDNSService(startDNS(t))
	ctx := context.Background()

	ns, err := s.LookupNS(ctx, "example.com")
	if err != nil {
		t.Fatalf("LookupNS failed: %v", err)
	}
	if len(ns) != 2 || ns[0] != "a.iana-servers.net" {
		t.Errorf("Unexpected name servers %v", ns)
	}

	a, err := s.LookupA(ctx, "example.com")
	if err != nil || len(a) != 1 || a[0] != "93.184.215.14" {
		t.Errorf("Unexpected A lookup %v (err %v)", a, err)
	}

	if _, err := s.LookupNS(ctx, "free-example.com"); !errors.Is(err, ErrNXDomain) {
		t.Errorf("Expected ErrNXDomain, got %v", err)
	}

	if _, err := s.LookupNS(ctx, "servfail.com"); err == nil || errors.Is(err, ErrNXDomain) {
		t.Errorf("Expected SERVFAIL error, got %v", err)
	}
}

func TestNewDNSServiceDefault(t *testing.T) {
	if s := NewDNSService(""); s.Resolver != "8.8.8.8:53" {
		t.Errorf("Expected default resolver, got %s", s.Resolver)
	}
}

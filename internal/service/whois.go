package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"
)

// ErrNotRegistered is returned when the registry has no record of the domain.
var ErrNotRegistered = errors.New("domain is not registered")

type WhoisInfo struct {
	Raw         string   `json:"raw"`
	Registrar   string   `json:"registrar,omitempty"`
	Expiry      string   `json:"expiry,omitempty"`
	Created     string   `json:"created,omitempty"`
	Status      []string `json:"status,omitempty"`
	NameServers []string `json:"name_servers,omitempty"`
}

var whoisClient = whois.NewClient().SetTimeout(10 * time.Second)

// whoisQuery is swapped out in tests.
var whoisQuery = func(domain string, servers ...string) (string, error) {
	return whoisClient.Whois(domain, servers...)
}

// LookupWhois fetches and parses the registration record of domain.
func LookupWhois(ctx context.Context, domain string) (*WhoisInfo, error) {
	type reply struct {
		info *WhoisInfo
		err  error
	}
	ch := make(chan reply, 1)
	go func() {
		raw, err := fetchWhois(domain)
		if err != nil {
			ch <- reply{nil, err}
			return
		}
		info, err := parseWhois(raw)
		ch <- reply{info, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.info, r.err
	}
}

func fetchWhois(target string) (string, error) {
	raw, err := whoisQuery(target)
	if err != nil && strings.Contains(err.Error(), "no whois server found") {
		// Manual fallbacks for TLDs missing in the library or IANA
		tld := ""
		parts := strings.Split(target, ".")
		if len(parts) > 1 {
			tld = strings.ToLower(parts[len(parts)-1])
		}

		fallbacks := map[string]string{
			"info": "whois.nic.info",
			"biz":  "whois.nic.biz",
			"mobi": "whois.dotmobi.net",
		}
		if server, ok := fallbacks[tld]; ok {
			raw, err = whoisQuery(target, server)
		}

		if err != nil || raw == "" {
			if server := referral(target); server != "" {
				raw, err = whoisQuery(target, server)
			}
		}
	}
	if err != nil {
		return "", fmt.Errorf("whois %s: %w", target, err)
	}

	// Follow registrar referral if present in registry output
	if server := lineValue(raw, "Registrar WHOIS Server:"); server != "" {
		refRaw, refErr := whoisQuery(target, server)
		if refErr == nil && len(refRaw) > len(raw)/2 {
			raw = refRaw
		}
	}

	return stripComments(raw), nil
}

// referral asks IANA which server is authoritative for target.
func referral(target string) string {
	ianaRaw, err := whoisQuery(target, "whois.iana.org")
	if err != nil {
		return ""
	}
	if s := lineValue(ianaRaw, "whois:"); s != "" {
		return s
	}
	return lineValue(ianaRaw, "refer:")
}

// lineValue returns the trimmed value after the first line starting with key
// (case-insensitive).
func lineValue(raw, key string) string {
	lkey := strings.ToLower(key)
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToLower(trimmed), lkey) {
			return strings.TrimSpace(trimmed[len(key):])
		}
	}
	return ""
}

// stripComments drops %/# comment lines and repeated blank lines.
func stripComments(raw string) string {
	var filtered []string
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "%") || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if trimmed == "" && (len(filtered) == 0 || filtered[len(filtered)-1] == "") {
			continue
		}
		filtered = append(filtered, line)
	}
	return strings.Join(filtered, "\n")
}

func parseWhois(raw string) (*WhoisInfo, error) {
	result, err := whoisparser.Parse(raw)
	if errors.Is(err, whoisparser.ErrNotFoundDomain) {
		return nil, ErrNotRegistered
	}
	if err != nil {
		// Unparseable but present: the registry answered with something.
		return &WhoisInfo{Raw: raw}, nil
	}

	info := &WhoisInfo{Raw: raw}
	if result.Registrar != nil {
		info.Registrar = result.Registrar.Name
	}
	if result.Domain != nil {
		info.Expiry = result.Domain.ExpirationDate
		info.Created = result.Domain.CreatedDate
		info.Status = result.Domain.Status
		info.NameServers = result.Domain.NameServers
	}
	return info, nil
}

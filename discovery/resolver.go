// Package discovery resolves EmberTalk key server endpoints from DNS SRV
// records, so clients can be configured with a service domain instead of a
// concrete server address.
package discovery

import (
	"fmt"
	"sort"

	"github.com/miekg/dns"
)

// SRVService is the SRV label under which key servers register themselves.
const SRVService = "_embertalk-keys._tcp"

// DefaultResolverAddr is the systemd-resolved stub listener.
const DefaultResolverAddr = "127.0.0.53:53"

// Resolver looks up key server endpoints for a service domain.
type Resolver struct {
	// ResolverAddr is the DNS server queried for SRV records. Defaults to
	// DefaultResolverAddr.
	ResolverAddr string
}

// KeyServerEndpoints resolves the SRV records for domain and returns
// host:port endpoints ordered by SRV priority.
func (r *Resolver) KeyServerEndpoints(domain string) ([]string, error) {
	resolverAddr := r.ResolverAddr
	if resolverAddr == "" {
		resolverAddr = DefaultResolverAddr
	}

	m := new(dns.Msg)
	m.Id = dns.Id()
	m.RecursionDesired = true
	m.Question = []dns.Question{{
		Name:   dns.Fqdn(fmt.Sprintf("%s.%s", SRVService, domain)),
		Qtype:  dns.TypeSRV,
		Qclass: dns.ClassINET,
	}}

	c := new(dns.Client)
	in, _, err := c.Exchange(m, resolverAddr)
	if err != nil {
		return nil, fmt.Errorf("SRV lookup for %s failed: %w", domain, err)
	}

	endpoints := EndpointsFromSRV(in)
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("no key server SRV records for %s", domain)
	}

	return endpoints, nil
}

// EndpointsFromSRV extracts host:port endpoints from the SRV answers in a
// DNS response, ordered by ascending priority.
func EndpointsFromSRV(msg *dns.Msg) []string {
	records := make([]*dns.SRV, 0, len(msg.Answer))
	for _, answer := range msg.Answer {
		if srv, ok := answer.(*dns.SRV); ok {
			records = append(records, srv)
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Priority < records[j].Priority
	})

	endpoints := make([]string, 0, len(records))
	for _, srv := range records {
		host := srv.Target
		if dns.IsFqdn(host) {
			host = host[:len(host)-1]
		}
		endpoints = append(endpoints, fmt.Sprintf("%s:%d", host, srv.Port))
	}

	return endpoints
}

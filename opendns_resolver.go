package ddns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/miekg/dns"
)

// myipHost is a special hostname: the OpenDNS resolvers answer a query
// for it with the address the query came from.
const myipHost = "myip.opendns.com."

// openDNSServers are the public OpenDNS resolver addresses. Both address
// families are listed so that hosts with IPv6 connectivity report both
// their public addresses.
var openDNSServers = []string{
	"208.67.222.222:53",
	"208.67.220.220:53",
	"[2620:119:35::35]:53",
	"[2620:119:53::53]:53",
}

// OpenDNSResolver constructs a resolver that discovers the host's public
// address by asking the OpenDNS resolvers for myip.opendns.com.
// Querying over IPv4 yields the public IPv4 address and querying over
// IPv6 the public IPv6 address; a family with no connectivity is skipped
// rather than failing the lookup, as long as the other one answers.
func OpenDNSResolver() Resolver {
	return &openDNSResolver{
		client:  &dns.Client{Timeout: 5 * time.Second},
		servers: openDNSServers,
	}
}

type openDNSResolver struct {
	client  *dns.Client
	servers []string
}

func (r *openDNSResolver) Resolve(ctx context.Context) ([]netip.Addr, error) {
	var (
		addrs []netip.Addr
		errs  []error
	)
	seen := map[netip.Addr]bool{}
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		a, err := r.query(ctx, qtype)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, addr := range a {
			if seen[addr] {
				continue
			}
			seen[addr] = true
			addrs = append(addrs, addr)
		}
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no OpenDNS server returned our address: %w", errors.Join(errs...))
	}
	return addrs, nil
}

// query asks the configured servers in order and returns the first
// non-empty answer.
func (r *openDNSResolver) query(ctx context.Context, qtype uint16) ([]netip.Addr, error) {
	m := new(dns.Msg)
	m.SetQuestion(myipHost, qtype)

	var errs []error
	for _, server := range r.servers {
		reply, _, err := r.client.ExchangeContext(ctx, m, server)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", server, err))
			continue
		}
		if reply.Rcode != dns.RcodeSuccess {
			errs = append(errs, fmt.Errorf("%s: query returned %s", server, dns.RcodeToString[reply.Rcode]))
			continue
		}
		if addrs := addrsFromAnswer(reply.Answer); len(addrs) > 0 {
			return addrs, nil
		}
	}
	return nil, errors.Join(errs...)
}

// addrsFromAnswer extracts the A and AAAA payloads from an answer section.
func addrsFromAnswer(answer []dns.RR) (addrs []netip.Addr) {
	for _, rr := range answer {
		var ip net.IP
		switch rr := rr.(type) {
		case *dns.A:
			ip = rr.A
		case *dns.AAAA:
			ip = rr.AAAA
		default:
			continue
		}
		if a, ok := netip.AddrFromSlice(ip); ok {
			addrs = append(addrs, a.Unmap())
		}
	}
	return addrs
}

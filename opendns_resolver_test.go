package ddns

import (
	"context"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/miekg/dns"
)

func TestAddrsFromAnswer(t *testing.T) {
	hdr := func(rrtype uint16) dns.RR_Header {
		return dns.RR_Header{Name: myipHost, Rrtype: rrtype, Class: dns.ClassINET, Ttl: 60}
	}
	answer := []dns.RR{
		&dns.A{Hdr: hdr(dns.TypeA), A: net.ParseIP("203.0.113.7")},
		&dns.AAAA{Hdr: hdr(dns.TypeAAAA), AAAA: net.ParseIP("2001:db8::7")},
		&dns.TXT{Hdr: hdr(dns.TypeTXT), Txt: []string{"ignored"}},
	}

	addrs := addrsFromAnswer(answer)
	if len(addrs) != 2 {
		t.Fatalf("Expected 2 addresses; got %+v", addrs)
	}
	// net.IP stores IPv4 in 16-byte mapped form; the extracted address
	// must come back unmapped so record identity stays stable.
	if want := netip.MustParseAddr("203.0.113.7"); addrs[0] != want || !addrs[0].Is4() {
		t.Fatalf("Expected unmapped %s; got %s", want, addrs[0])
	}
	if want := netip.MustParseAddr("2001:db8::7"); addrs[1] != want {
		t.Fatalf("Expected %s; got %s", want, addrs[1])
	}
}

func TestOpenDNSResolverQueriesServer(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("error listening: %s", err)
	}
	srv := &dns.Server{
		PacketConn: pc,
		Handler: dns.HandlerFunc(func(w dns.ResponseWriter, req *dns.Msg) {
			m := new(dns.Msg)
			m.SetReply(req)
			if req.Question[0].Qtype == dns.TypeA {
				m.Answer = append(m.Answer, &dns.A{
					Hdr: dns.RR_Header{Name: req.Question[0].Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60},
					A:   net.ParseIP("203.0.113.7"),
				})
			}
			w.WriteMsg(m)
		}),
	}
	go srv.ActivateAndServe()
	t.Cleanup(func() { srv.Shutdown() })

	r := &openDNSResolver{
		client:  &dns.Client{Timeout: 2 * time.Second},
		servers: []string{pc.LocalAddr().String()},
	}
	addrs, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve failed: %s", err)
	}
	if len(addrs) != 1 || addrs[0] != netip.MustParseAddr("203.0.113.7") {
		t.Fatalf("Expected [203.0.113.7]; got %+v", addrs)
	}
}

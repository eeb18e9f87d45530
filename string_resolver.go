package ddns

import (
	"context"
	"fmt"
	"net/netip"
)

// FromString constructs a resolver that always resolves to the fixed
// address addr. Useful for hosts that learn their address out of band.
func FromString(addr string) (Resolver, error) {
	if _, err := netip.ParseAddr(addr); err != nil {
		return nil, fmt.Errorf("unable to parse IP: %w", err)
	}
	return stringResolver(addr), nil
}

type stringResolver string

func (s stringResolver) Resolve(context.Context) ([]netip.Addr, error) {
	addr, err := netip.ParseAddr(string(s))
	if err != nil {
		return nil, fmt.Errorf("unable to parse IP: %w", err)
	}
	return []netip.Addr{addr}, nil
}

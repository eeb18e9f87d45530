package ddns

import (
	"context"
	"errors"
	"net/netip"
	"sync"
)

// ResolverFunc adapts a plain function to the Resolver interface.
type ResolverFunc func(context.Context) ([]netip.Addr, error)

func (f ResolverFunc) Resolve(ctx context.Context) ([]netip.Addr, error) {
	return f(ctx)
}

// Join combines resolvers into one that queries them concurrently and
// merges their results. A typical use is joining an IPv4-only and an
// IPv6-only web resolver so that both record kinds get set.
func Join(resolvers ...Resolver) Resolver {
	return joinResolver(resolvers)
}

type joinResolver []Resolver

func (j joinResolver) Resolve(ctx context.Context) ([]netip.Addr, error) {
	var (
		mu    sync.Mutex
		addrs []netip.Addr
		errs  []error
	)
	var wg sync.WaitGroup
	wg.Add(len(j))
	for _, r := range j {
		r := r
		go func() {
			defer wg.Done()
			a, err := r.Resolve(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			addrs = append(addrs, a...)
		}()
	}
	wg.Wait()
	return addrs, errors.Join(errs...)
}

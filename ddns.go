package ddns

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/netip"
	"time"

	"github.com/cloudflare/cloudflare-go"
)

// DefaultResolver is used by clients that do not register a resolver.
var DefaultResolver = InterfaceResolver()

var discard = log.New(io.Discard, "", log.LstdFlags)

// Resolver produces the set of addresses the managed hostname should
// currently point at.
type Resolver interface {
	Resolve(context.Context) ([]netip.Addr, error)
}

// Store lists and mutates the address records a remote DNS authority
// holds for a hostname.
//
// List returns every A/AAAA record for hostname, each carrying the
// remote handle needed to delete it later; entries the store cannot make
// sense of are skipped with a logged diagnostic rather than failing the
// call. Remove must be given a record obtained from List.
type Store interface {
	List(ctx context.Context, hostname string) ([]Record, error)
	Add(ctx context.Context, hostname string, r Record) error
	Remove(ctx context.Context, hostname string, r Record) error
}

// New returns a DDNSClient which keeps the address records for hostname
// converged with the addresses reported by the configured resolver.
// A record store option such as UsingDreamhost is required.
func New(hostname string, options ...Option) (DDNSClient, error) {
	if hostname == "" {
		return nil, fmt.Errorf("ddns.New: hostname cannot be empty")
	}
	c := &client{
		resolver: DefaultResolver,
		hostname: hostname,
		logger:   discard,
	}
	for i, opt := range options {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("ddns.New: option %d returned an error: %s", i, err)
		}
	}

	if c.store == nil {
		return nil, fmt.Errorf("ddns.New: no record store was registered and there is no default option - use ddns.UsingDreamhost or similar")
	}

	// this lets us propagate the logger to dependencies that use one if WithLogger was called before all of the dependencies were registered
	withLogger(c.logger)(c)
	return c, nil
}

// Option configures a client during New.
type Option func(*client) error

// UsingDreamhost registers a DreamHost record store authenticated with
// the given API key.
func UsingDreamhost(key string) Option {
	return func(c *client) error {
		c.store = newDreamhostStore(key)
		return nil
	}
}

// UsingCloudflare registers a Cloudflare record store authenticated with
// the given API token.
func UsingCloudflare(token string) Option {
	return func(c *client) (err error) {
		if c.store, err = newCloudflareStore(token); err != nil {
			return fmt.Errorf("ddns.UsingCloudflare: error creating cloudflare record store: %w", err)
		}
		return nil
	}
}

// UsingStore registers a custom Store implementation.
func UsingStore(store Store) Option {
	return func(c *client) error {
		if store == nil {
			return fmt.Errorf("ddns.UsingStore: store cannot be nil")
		}
		c.store = store
		return nil
	}
}

func UsingResolver(resolver Resolver) Option {
	return func(c *client) error {
		if resolver == nil {
			resolver = DefaultResolver
		}
		c.resolver = resolver
		return nil
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(c *client) error {
		if logger == nil {
			logger = discard
		}
		c.logger = logger
		return nil
	}
}

func withLogger(logger *log.Logger) Option {
	return func(c *client) error {
		if logger == nil {
			logger = discard
		}
		type setLogger interface {
			SetLogger(*log.Logger)
		}

		switch s := c.store.(type) {
		case *dreamhostStore:
			s.logger = logger
		case *cloudflareStore:
			s.logger = logger
		case setLogger:
			s.SetLogger(logger)
		}

		switch r := c.resolver.(type) {
		case setLogger:
			r.SetLogger(logger)
		}

		return nil
	}
}

func UsingHTTPClient(httpclient *http.Client) Option {
	return func(c *client) error {
		if httpclient == nil {
			httpclient = http.DefaultClient
		}
		type setHTTPClient interface {
			SetHTTPClient(*http.Client)
		}
		switch r := c.resolver.(type) {
		case *webResolver:
			r.httpClient = httpclient
		case setHTTPClient:
			r.SetHTTPClient(httpclient)
		}
		switch s := c.store.(type) {
		case *dreamhostStore:
			s.httpClient = httpclient
		case *cloudflareStore:
			cloudflare.HTTPClient(httpclient)(s.api)
		case setHTTPClient:
			s.SetHTTPClient(httpclient)
		}
		return nil
	}
}

type DDNSClient interface {
	RunDDNS(ctx context.Context) error
}

type client struct {
	resolver Resolver
	store    Store
	logger   *log.Logger
	hostname string
}

// RunDDNS performs one full update cycle: resolve the current addresses,
// list the remote records, diff the two, and apply the resulting plan.
//
// Removals run first and are best-effort: a record that fails to delete
// shows up again in the next cycle's list and is retried there. The first
// failed addition aborts the cycle; the remainder is picked up next cycle
// because every cycle recomputes both sets from scratch.
func (c *client) RunDDNS(ctx context.Context) error {
	addrs, err := c.resolver.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("error getting current IPs: %w", err)
	}
	c.logger.Printf("got current IPs: %+v\n", addrs)

	desired := make([]Record, 0, len(addrs))
	for _, a := range addrs {
		if !a.IsValid() {
			continue
		}
		desired = append(desired, NewRecord(a))
	}

	remote, err := c.store.List(ctx, c.hostname)
	if err != nil {
		return fmt.Errorf("error listing records for %s: %w", c.hostname, err)
	}
	c.logger.Printf("found %d existing records for %s\n", len(remote), c.hostname)

	plan, err := Reconcile(desired, remote)
	if err != nil {
		return err
	}
	if plan.Empty() {
		c.logger.Printf("%s is up to date\n", c.hostname)
		return nil
	}

	for _, r := range plan.Remove {
		if err := c.store.Remove(ctx, c.hostname, r); err != nil {
			c.logger.Printf("error removing record %s: %s; continuing\n", r, err)
			continue
		}
		c.logger.Printf("removed record %s\n", r)
	}
	for _, r := range plan.Add {
		if err := c.store.Add(ctx, c.hostname, r); err != nil {
			return fmt.Errorf("error adding record %s: %w", r, err)
		}
		c.logger.Printf("added record %s\n", r)
	}
	return nil
}

type logf interface {
	Printf(string, ...any)
}

// RunDaemon starts ddnsClient as a goroutine and runs update cycles until
// ctx is cancelled.
//
// Each cycle's outcome drives the wait before the next: a success waits
// minInterval, and every consecutive failure stretches the wait by another
// minInterval up to maxInterval. Cancellation is honored during the wait.
// A non-positive minInterval defaults to 40 seconds; maxInterval is raised
// to minInterval when it is lower.
//
// A nil logger for the DDNSClient supplied by this library indicates that the daemon should send error logs to the logger configured in the client.
// Otherwise the default is to discard log messages.
func RunDaemon(ddnsClient DDNSClient, ctx context.Context, minInterval, maxInterval time.Duration, logger logf) {
	if minInterval <= 0 {
		minInterval = 40 * time.Second
	}
	if maxInterval < minInterval {
		maxInterval = minInterval
	}
	if logger == nil {
		if c, ok := ddnsClient.(*client); ok && c.logger != nil {
			logger = c.logger
		} else {
			logger = discard
		}
	}
	go func() {
		var delay time.Duration
		for {
			err := ddnsClient.RunDDNS(ctx)
			if err != nil {
				logger.Printf("ddns.RunDaemon: %s", err)
			}
			delay = NextDelay(delay, err == nil, minInterval, maxInterval)

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}
	}()
}

package ddns_test

import (
	"context"
	"errors"
	"net/netip"
	"strings"
	"sync"
	"testing"
	"time"

	ddns "github.com/ddns-tools/dreamhost-ddns"
)

// fakeStore records every mutation it is asked to perform so tests can
// assert on ordering and failure handling.
type fakeStore struct {
	mu         sync.Mutex
	records    []ddns.Record
	ops        []string
	failRemove map[string]bool // keyed by remote handle
	failAdd    bool
	listErr    error
}

func (s *fakeStore) List(ctx context.Context, hostname string) ([]ddns.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]ddns.Record, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *fakeStore) Add(ctx context.Context, hostname string, r ddns.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, "add "+r.Addr.String())
	if s.failAdd {
		return errors.New("add failed")
	}
	r.RemoteHandle = "h-" + r.Addr.String()
	s.records = append(s.records, r)
	return nil
}

func (s *fakeStore) Remove(ctx context.Context, hostname string, r ddns.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.RemoteHandle == "" {
		return errors.New("record has no remote handle")
	}
	s.ops = append(s.ops, "remove "+r.RemoteHandle)
	if s.failRemove[r.RemoteHandle] {
		return errors.New("remove failed")
	}
	for i, have := range s.records {
		if have.RemoteHandle == r.RemoteHandle {
			s.records = append(s.records[:i], s.records[i+1:]...)
			break
		}
	}
	return nil
}

func fixedResolver(addrs ...string) ddns.Resolver {
	return ddns.ResolverFunc(func(context.Context) ([]netip.Addr, error) {
		var out []netip.Addr
		for _, a := range addrs {
			out = append(out, netip.MustParseAddr(a))
		}
		return out, nil
	})
}

func newTestClient(t *testing.T, store ddns.Store, resolver ddns.Resolver) ddns.DDNSClient {
	t.Helper()
	c, err := ddns.New("home.example.com",
		ddns.UsingStore(store),
		ddns.UsingResolver(resolver),
	)
	if err != nil {
		t.Fatalf("error creating ddns client: %s", err)
	}
	return c
}

func TestRunDDNSConverges(t *testing.T) {
	store := &fakeStore{records: []ddns.Record{remoteRec("1.2.3.4", "stale")}}
	c := newTestClient(t, store, fixedResolver("5.6.7.8"))

	if err := c.RunDDNS(context.Background()); err != nil {
		t.Fatalf("RunDDNS failed: %s", err)
	}
	if len(store.records) != 1 || !store.records[0].Same(rec("5.6.7.8")) {
		t.Fatalf("Expected the store to hold only 5.6.7.8; got %+v", store.records)
	}
	want := []string{"remove stale", "add 5.6.7.8"}
	if len(store.ops) != len(want) || store.ops[0] != want[0] || store.ops[1] != want[1] {
		t.Fatalf("Expected ops %v; got %v", want, store.ops)
	}
}

func TestRunDDNSUpToDate(t *testing.T) {
	store := &fakeStore{records: []ddns.Record{remoteRec("5.6.7.8", "h1")}}
	c := newTestClient(t, store, fixedResolver("5.6.7.8"))

	if err := c.RunDDNS(context.Background()); err != nil {
		t.Fatalf("RunDDNS failed: %s", err)
	}
	if len(store.ops) != 0 {
		t.Fatalf("Expected no mutations for a converged store; got %v", store.ops)
	}
}

func TestRunDDNSRemovalsBeforeAdditions(t *testing.T) {
	store := &fakeStore{records: []ddns.Record{
		remoteRec("1.2.3.4", "old1"),
		remoteRec("2001:db8::1", "old2"),
	}}
	c := newTestClient(t, store, fixedResolver("5.6.7.8", "2001:db8::2"))

	if err := c.RunDDNS(context.Background()); err != nil {
		t.Fatalf("RunDDNS failed: %s", err)
	}
	firstAdd := -1
	lastRemove := -1
	for i, op := range store.ops {
		if strings.HasPrefix(op, "add ") && firstAdd == -1 {
			firstAdd = i
		}
		if strings.HasPrefix(op, "remove ") {
			lastRemove = i
		}
	}
	if firstAdd == -1 || lastRemove == -1 || lastRemove > firstAdd {
		t.Fatalf("Expected all removals before any addition; got %v", store.ops)
	}
}

func TestRunDDNSEmptyResolveRemovesNothing(t *testing.T) {
	store := &fakeStore{records: []ddns.Record{remoteRec("1.2.3.4", "keep")}}
	c := newTestClient(t, store, fixedResolver())

	err := c.RunDDNS(context.Background())
	if !errors.Is(err, ddns.ErrEmptyDesired) {
		t.Fatalf("Expected ErrEmptyDesired; got %v", err)
	}
	if len(store.ops) != 0 {
		t.Fatalf("Expected no mutations after an empty resolve; got %v", store.ops)
	}
	if len(store.records) != 1 {
		t.Fatalf("Expected the stale record to survive; got %+v", store.records)
	}
}

func TestRunDDNSResolverErrorFailsCycle(t *testing.T) {
	store := &fakeStore{records: []ddns.Record{remoteRec("1.2.3.4", "keep")}}
	boom := errors.New("lookup failed")
	r := ddns.ResolverFunc(func(context.Context) ([]netip.Addr, error) { return nil, boom })
	c := newTestClient(t, store, r)

	if err := c.RunDDNS(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Expected the resolver error to fail the cycle; got %v", err)
	}
	if len(store.ops) != 0 {
		t.Fatalf("Expected no mutations after a failed resolve; got %v", store.ops)
	}
}

func TestRunDDNSListErrorFailsCycle(t *testing.T) {
	boom := errors.New("list failed")
	store := &fakeStore{listErr: boom}
	c := newTestClient(t, store, fixedResolver("5.6.7.8"))

	if err := c.RunDDNS(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Expected the list error to fail the cycle; got %v", err)
	}
	if len(store.ops) != 0 {
		t.Fatalf("Expected no mutations after a failed list; got %v", store.ops)
	}
}

func TestRunDDNSRemoveFailureContinues(t *testing.T) {
	store := &fakeStore{
		records: []ddns.Record{
			remoteRec("1.2.3.4", "stuck"),
			remoteRec("4.3.2.1", "old"),
		},
		failRemove: map[string]bool{"stuck": true},
	}
	c := newTestClient(t, store, fixedResolver("5.6.7.8"))

	// A failed removal is logged and skipped; the cycle still succeeds.
	if err := c.RunDDNS(context.Background()); err != nil {
		t.Fatalf("RunDDNS failed: %s", err)
	}
	removes := 0
	adds := 0
	for _, op := range store.ops {
		if strings.HasPrefix(op, "remove ") {
			removes++
		}
		if strings.HasPrefix(op, "add ") {
			adds++
		}
	}
	if removes != 2 {
		t.Fatalf("Expected both removals to be attempted; got ops %v", store.ops)
	}
	if adds != 1 {
		t.Fatalf("Expected the addition to proceed past the failed removal; got ops %v", store.ops)
	}
}

func TestRunDDNSAddFailureAbortsCycle(t *testing.T) {
	store := &fakeStore{failAdd: true}
	c := newTestClient(t, store, fixedResolver("5.6.7.8", "2001:db8::2"))

	if err := c.RunDDNS(context.Background()); err == nil {
		t.Fatalf("Expected the failed addition to fail the cycle; got err == nil")
	}
	adds := 0
	for _, op := range store.ops {
		if strings.HasPrefix(op, "add ") {
			adds++
		}
	}
	if adds != 1 {
		t.Fatalf("Expected the cycle to abort after the first failed addition; got ops %v", store.ops)
	}
}

// countingClient stands in for a full client in daemon tests.
type countingClient struct {
	mu   sync.Mutex
	runs int
}

func (c *countingClient) RunDDNS(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs++
	return nil
}

func (c *countingClient) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runs
}

func TestRunDaemonStopsOnCancel(t *testing.T) {
	c := &countingClient{}
	ctx, cancel := context.WithCancel(context.Background())
	ddns.RunDaemon(c, ctx, 10*time.Millisecond, 50*time.Millisecond, nil)

	deadline := time.Now().Add(2 * time.Second)
	for c.count() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("Expected at least two cycles; got %d", c.count())
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	time.Sleep(50 * time.Millisecond)
	stopped := c.count()
	time.Sleep(100 * time.Millisecond)
	if got := c.count(); got > stopped+1 {
		t.Fatalf("Expected the daemon to stop after cancellation; cycles kept running (%d -> %d)", stopped, got)
	}
}

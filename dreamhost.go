package ddns

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/netip"
	"net/url"
	"time"
)

const dreamhostAPI = "https://api.dreamhost.com/"

func newDreamhostStore(key string) *dreamhostStore {
	return &dreamhostStore{
		key:    key,
		apiURL: dreamhostAPI,
		logger: discard,
	}
}

// dreamhostStore implements ddns.Store against the DreamHost DNS API.
//
// DreamHost matches deletions by the exact value string it returned,
// not by parsed address. The remote handle on listed records is therefore
// the provider's own rendering of the value, and Remove sends it back
// verbatim even when it is an unabbreviated IPv6 literal.
type dreamhostStore struct {
	key        string
	apiURL     string
	httpClient *http.Client
	logger     *log.Logger
}

// dreamhostResponse is the {result, data} envelope every API command
// returns. data is a record array for dns-list_records and a bare string
// otherwise.
type dreamhostResponse struct {
	Result string          `json:"result"`
	Data   json.RawMessage `json:"data"`
}

type dreamhostRecord struct {
	Record string `json:"record"`
	Type   string `json:"type"`
	Value  string `json:"value"`
}

// List returns the A and AAAA records DreamHost holds for hostname.
// Entries for other hostnames or record types are ignored, and entries
// whose value does not parse as an address of the declared family are
// skipped with a diagnostic rather than failing the call.
func (d *dreamhostStore) List(ctx context.Context, hostname string) ([]Record, error) {
	data, err := d.call(ctx, "dns-list_records", nil)
	if err != nil {
		return nil, err
	}
	var entries []dreamhostRecord
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("error decoding record list: %w", err)
	}

	var records []Record
	for _, e := range entries {
		if e.Record != hostname {
			continue
		}
		if e.Type != string(KindA) && e.Type != string(KindAAAA) {
			continue
		}
		addr, err := netip.ParseAddr(e.Value)
		if err != nil {
			d.logger.Printf("skipping %s record for %s with unparsable value %q: %s\n", e.Type, hostname, e.Value, err)
			continue
		}
		r := NewRecord(addr)
		if string(r.Kind) != e.Type {
			d.logger.Printf("skipping %s record for %s whose value %q belongs to the other address family\n", e.Type, hostname, e.Value)
			continue
		}
		r.RemoteHandle = e.Value
		records = append(records, r)
	}
	return records, nil
}

func (d *dreamhostStore) Add(ctx context.Context, hostname string, r Record) error {
	_, err := d.call(ctx, "dns-add_record", url.Values{
		"record": {hostname},
		"type":   {string(r.Kind)},
		"value":  {r.Addr.String()},
	})
	if err != nil {
		return fmt.Errorf("error adding %s record %s for %s: %w", r.Kind, r.Addr, hostname, err)
	}
	return nil
}

func (d *dreamhostStore) Remove(ctx context.Context, hostname string, r Record) error {
	if r.RemoteHandle == "" {
		return fmt.Errorf("record %s has no remote handle; only records returned by List can be removed", r)
	}
	_, err := d.call(ctx, "dns-remove_record", url.Values{
		"record": {hostname},
		"type":   {string(r.Kind)},
		"value":  {r.RemoteHandle},
	})
	if err != nil {
		return fmt.Errorf("error removing %s record %q for %s: %w", r.Kind, r.RemoteHandle, hostname, err)
	}
	return nil
}

func (d *dreamhostStore) call(ctx context.Context, cmd string, params url.Values) (json.RawMessage, error) {
	// 15 seconds is generous for these requests, but it guarantees that
	// calls complete even when the caller passed context.Background and
	// the http client has no timeout of its own.
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("cmd", cmd)
	q.Set("key", d.key)
	q.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.apiURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	httpclient := d.httpClient
	if httpclient == nil {
		httpclient = http.DefaultClient
	}

	resp, err := httpclient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http request returned %s", resp.Status)
	}

	var envelope dreamhostResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("error decoding response: %w", err)
	}
	if envelope.Result != "success" {
		return nil, fmt.Errorf("api returned result %q: %s", envelope.Result, envelope.Data)
	}
	return envelope.Data, nil
}

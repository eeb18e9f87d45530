package ddns

import (
	"context"
	"fmt"
	"log"
	"net/netip"
	"strings"

	"github.com/cloudflare/cloudflare-go"
)

func newCloudflareStore(token string) (cf *cloudflareStore, err error) {
	cf = new(cloudflareStore)
	cf.api, err = cloudflare.NewWithAPIToken(token)
	if err != nil {
		return nil, fmt.Errorf("error creating cloudflare api client: %w", err)
	}
	cf.logger = discard
	cf.comment = "managed by ddns"
	return cf, nil
}

// cloudflareStore implements ddns.Store.
//
// Cloudflare addresses records by ID, so the remote handle on listed
// records is the record ID rather than a value string.
type cloudflareStore struct {
	api     *cloudflare.API
	logger  *log.Logger
	comment string // optional comment to attach to each new DNS entry
}

func (cf *cloudflareStore) List(ctx context.Context, hostname string) ([]Record, error) {
	zid, err := cf.zoneID(ctx, hostname)
	if err != nil {
		return nil, err
	}
	cf.logger.Printf("looking up A,AAAA records for zone %s...\n", zid)

	records, _, err := cf.api.ListDNSRecords(ctx, cloudflare.ZoneIdentifier(zid), cloudflare.ListDNSRecordsParams{
		Type: "A,AAAA",
		Name: hostname,
	})
	if err != nil {
		return nil, fmt.Errorf("error listing records for %s: %w", hostname, err)
	}

	var out []Record
	for _, rr := range records {
		addr, err := netip.ParseAddr(rr.Content)
		if err != nil {
			cf.logger.Printf("skipping %s record %s with unparsable content %q: %s\n", rr.Type, rr.ID, rr.Content, err)
			continue
		}
		r := NewRecord(addr)
		r.RemoteHandle = rr.ID
		out = append(out, r)
	}
	return out, nil
}

func (cf *cloudflareStore) Add(ctx context.Context, hostname string, r Record) error {
	zid, err := cf.zoneID(ctx, hostname)
	if err != nil {
		return err
	}
	_, err = cf.api.CreateDNSRecord(ctx, cloudflare.ZoneIdentifier(zid), cloudflare.CreateDNSRecordParams{
		Type:    string(r.Kind),
		Name:    hostname,
		Content: r.Addr.String(),
		ZoneID:  zid,
		TTL:     60,
		Comment: cf.comment,
	})
	if err != nil {
		return fmt.Errorf("error creating DNS record for %s: %w", r.Addr, err)
	}
	return nil
}

func (cf *cloudflareStore) Remove(ctx context.Context, hostname string, r Record) error {
	if r.RemoteHandle == "" {
		return fmt.Errorf("record %s has no remote handle; only records returned by List can be removed", r)
	}
	zid, err := cf.zoneID(ctx, hostname)
	if err != nil {
		return err
	}
	if err := cf.api.DeleteDNSRecord(ctx, cloudflare.ZoneIdentifier(zid), r.RemoteHandle); err != nil {
		return fmt.Errorf("unable to delete DNS record %s: %w", r.RemoteHandle, err)
	}
	return nil
}

func (cf *cloudflareStore) zoneID(ctx context.Context, hostname string) (zid string, err error) {
	zones, err := cf.api.ListZones(ctx)
	if err != nil {
		return "", fmt.Errorf("error listing zones: %w", err)
	}

	max := 0
	for _, z := range zones {
		if strings.HasSuffix(hostname, z.Name) && len(z.Name) > max {
			max, zid = len(z.Name), z.ID
		}
	}
	if max == 0 {
		return "", fmt.Errorf("unable to find a zone matching %q", hostname)
	}
	return zid, nil
}

package ddns

import (
	"fmt"
	"net/netip"
)

// RecordKind is the DNS record type of a managed address record.
type RecordKind string

const (
	KindA    RecordKind = "A"
	KindAAAA RecordKind = "AAAA"
)

func kindOf(a netip.Addr) RecordKind {
	if a.Is4() {
		return KindA
	}
	if a.Is6() {
		return KindAAAA
	}
	panic("unknown ip configuration")
}

// Record is one managed DNS address record.
type Record struct {
	Kind RecordKind
	// Addr is the parsed address. Together with Kind it is the identity
	// used for diffing.
	Addr netip.Addr
	// RemoteHandle is the opaque string the record store needs to delete
	// this specific record. It is only set on records returned by
	// Store.List; records built locally carry none, and a record without
	// one must never be passed to Remove.
	RemoteHandle string
}

// NewRecord builds a desired record for addr.
// Mapped IPv4-in-IPv6 addresses are unmapped first so the same address
// always produces the same record identity.
func NewRecord(addr netip.Addr) Record {
	addr = addr.Unmap()
	return Record{Kind: kindOf(addr), Addr: addr}
}

// Same reports whether two records describe the same address.
// The remote handle is not part of record identity:
// the store may render the address differently than we do.
func (r Record) Same(other Record) bool {
	return r.Kind == other.Kind && r.Addr == other.Addr
}

func (r Record) String() string {
	return fmt.Sprintf("%s %s", r.Kind, r.Addr)
}

package domain

import (
	"fmt"
	"net/netip"
	"strings"
	"time"
)

type Family uint8

const (
	FamilyIPv4 Family = iota + 1
	FamilyIPv6
)

func (f Family) String() string {
	switch f {
	case FamilyIPv4:
		return "ipv4"
	case FamilyIPv6:
		return "ipv6"
	default:
		return fmt.Sprintf("family(%d)", uint8(f))
	}
}

// ParseFamily accepts the type field values used by delegated-extended files.
func ParseFamily(s string) (Family, error) {
	switch s {
	case "ipv4":
		return FamilyIPv4, nil
	case "ipv6":
		return FamilyIPv6, nil
	default:
		return 0, fmt.Errorf("%w: unknown address family %q", ErrInvalidInput, s)
	}
}

// AllocationRecord is one ipv4/ipv6 line of a delegated-extended file.
// Value is an address count for IPv4 and a prefix length for IPv6.
type AllocationRecord struct {
	Registry string
	Country  string
	Family   Family
	Start    netip.Addr
	Value    uint64
	Date     string
	Status   string
}

// Source is the raw text of one downloaded statistics file. It must not be
// modified once handed to an aggregator.
type Source struct {
	Name string
	Text string
}

// CountryBlocks is the aggregated result for one country. Both slices are in
// canonical order and contain no duplicates. RunID is set by the refresh that
// produced the value and is empty for ad-hoc aggregations.
type CountryBlocks struct {
	Country     string
	IPv4        []netip.Prefix
	IPv6        []netip.Prefix
	GeneratedAt time.Time
	RunID       string
}

func (c CountryBlocks) Blocks(f Family) []netip.Prefix {
	if f == FamilyIPv6 {
		return c.IPv6
	}
	return c.IPv4
}

type AggregateStats struct {
	Sources        int
	FailedSources  int
	Records        int
	FormatErrors   int
	OverflowErrors int
	IPv4Blocks     int
	IPv6Blocks     int
}

type CountrySummary struct {
	Country     string
	IPv4Count   int
	IPv6Count   int
	RunID       string
	GeneratedAt time.Time
}

// NormalizeCountry upper-cases an ISO 3166 alpha-2 code and rejects anything
// that is not two ASCII letters.
func NormalizeCountry(s string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(s))
	if len(code) != 2 || code[0] < 'A' || code[0] > 'Z' || code[1] < 'A' || code[1] > 'Z' {
		return "", fmt.Errorf("%w: country code %q", ErrInvalidInput, s)
	}
	return code, nil
}

// BlockList is the stored block list of one country and family.
type BlockList struct {
	Country string
	Family  Family
	Blocks  []netip.Prefix
}

// LookupResult lists the countries whose blocks contain Addr.
type LookupResult struct {
	Addr      netip.Addr
	Countries []string
}

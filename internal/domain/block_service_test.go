package domain

import (
	"context"
	"errors"
	"net/netip"
	"slices"
	"testing"
)

type stubBlockReader struct {
	listCountriesFn func(context.Context) ([]CountrySummary, error)
	listBlocksFn    func(context.Context, string, Family) ([]netip.Prefix, error)
}

func (s stubBlockReader) ListCountries(ctx context.Context) ([]CountrySummary, error) {
	if s.listCountriesFn == nil {
		return nil, nil
	}
	return s.listCountriesFn(ctx)
}

func (s stubBlockReader) ListBlocks(ctx context.Context, country string, family Family) ([]netip.Prefix, error) {
	if s.listBlocksFn == nil {
		return nil, nil
	}
	return s.listBlocksFn(ctx, country, family)
}

func TestListBlocksNormalizesInput(t *testing.T) {
	var gotCountry string
	var gotFamily Family
	service := NewBlockService(stubBlockReader{
		listBlocksFn: func(_ context.Context, country string, family Family) ([]netip.Prefix, error) {
			gotCountry, gotFamily = country, family
			return []netip.Prefix{netip.MustParsePrefix("2001:db8::/32")}, nil
		},
	})

	list, err := service.ListBlocks(context.Background(), "jp", "ipv6")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if gotCountry != "JP" || gotFamily != FamilyIPv6 {
		t.Fatalf("unexpected repository call: %q %v", gotCountry, gotFamily)
	}
	if list.Country != "JP" || list.Family != FamilyIPv6 || len(list.Blocks) != 1 {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestListBlocksRejectsInvalidInput(t *testing.T) {
	service := NewBlockService(stubBlockReader{
		listBlocksFn: func(context.Context, string, Family) ([]netip.Prefix, error) {
			t.Fatal("repository must not be called")
			return nil, nil
		},
	})

	for _, tc := range []struct{ country, family string }{
		{"JPN", "ipv4"},
		{"J1", "ipv4"},
		{"", "ipv4"},
		{"JP", "asn"},
		{"JP", "IPv4"},
	} {
		_, err := service.ListBlocks(context.Background(), tc.country, tc.family)
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%+v: expected ErrInvalidInput, got %v", tc, err)
		}
	}
}

func TestListBlocksPassesNotFound(t *testing.T) {
	service := NewBlockService(stubBlockReader{
		listBlocksFn: func(context.Context, string, Family) ([]netip.Prefix, error) {
			return nil, ErrNotFound
		},
	})
	if _, err := service.ListBlocks(context.Background(), "ZZ", "ipv4"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLookupFindsContainingCountries(t *testing.T) {
	blocks := map[string][]netip.Prefix{
		"JP": {netip.MustParsePrefix("1.2.3.0/24"), netip.MustParsePrefix("10.0.0.0/8")},
		"US": {netip.MustParsePrefix("8.8.8.0/24")},
		"BR": {netip.MustParsePrefix("10.1.0.0/16")},
	}
	service := NewBlockService(stubBlockReader{
		listCountriesFn: func(context.Context) ([]CountrySummary, error) {
			return []CountrySummary{{Country: "BR"}, {Country: "JP"}, {Country: "US"}}, nil
		},
		listBlocksFn: func(_ context.Context, country string, family Family) ([]netip.Prefix, error) {
			if family != FamilyIPv4 {
				t.Fatalf("unexpected family %v", family)
			}
			return blocks[country], nil
		},
	})

	got, err := service.Lookup(context.Background(), "10.1.2.3")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !slices.Equal(got.Countries, []string{"BR", "JP"}) {
		t.Fatalf("unexpected countries: %v", got.Countries)
	}

	got, err = service.Lookup(context.Background(), "::ffff:8.8.8.8")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.Addr != netip.MustParseAddr("8.8.8.8") || !slices.Equal(got.Countries, []string{"US"}) {
		t.Fatalf("unexpected result: %+v", got)
	}

	got, err = service.Lookup(context.Background(), "192.0.2.1")
	if err != nil || got.Countries == nil || len(got.Countries) != 0 {
		t.Fatalf("expected empty non-nil result, got %+v, %v", got, err)
	}
}

func TestLookupRejectsInvalidAddress(t *testing.T) {
	_, err := NewBlockService(stubBlockReader{}).Lookup(context.Background(), "not-an-ip")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestNormalizeCountry(t *testing.T) {
	got, err := NormalizeCountry(" br ")
	if err != nil || got != "BR" {
		t.Fatalf("got %q, %v", got, err)
	}
	if _, err := NormalizeCountry("ÜS"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

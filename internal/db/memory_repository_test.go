package db

import (
	"context"
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/Flarenzy/rirblocks/internal/domain"
)

func TestMemoryRepositoryRoundTrip(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	generated := time.Date(2024, 1, 2, 3, 4, 0, 0, time.UTC)

	err := repo.WriteCountry(ctx, domain.CountryBlocks{
		Country:     "JP",
		IPv4:        []netip.Prefix{netip.MustParsePrefix("1.2.3.0/24")},
		IPv6:        []netip.Prefix{netip.MustParsePrefix("2001:db8::/32")},
		GeneratedAt: generated,
		RunID:       "run-1",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := repo.WriteCountry(ctx, domain.CountryBlocks{Country: "BR", GeneratedAt: generated}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	countries, err := repo.ListCountries(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(countries) != 2 || countries[0].Country != "BR" || countries[1].Country != "JP" {
		t.Fatalf("unexpected countries: %+v", countries)
	}
	if countries[1].IPv4Count != 1 || countries[1].IPv6Count != 1 || countries[1].RunID != "run-1" {
		t.Fatalf("unexpected summary: %+v", countries[1])
	}

	v6, err := repo.ListBlocks(ctx, "JP", domain.FamilyIPv6)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(v6) != 1 || v6[0] != netip.MustParsePrefix("2001:db8::/32") {
		t.Fatalf("unexpected blocks: %v", v6)
	}

	empty, err := repo.ListBlocks(ctx, "BR", domain.FamilyIPv4)
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty blocks, got %v, %v", empty, err)
	}
}

func TestMemoryRepositoryUnknownCountry(t *testing.T) {
	_, err := NewMemoryRepository().ListBlocks(context.Background(), "ZZ", domain.FamilyIPv4)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryRepositoryReplacesAndIsolates(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	v4 := []netip.Prefix{netip.MustParsePrefix("1.2.3.0/24")}

	if err := repo.WriteCountry(ctx, domain.CountryBlocks{Country: "JP", IPv4: v4}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	v4[0] = netip.MustParsePrefix("9.9.9.0/24")

	got, _ := repo.ListBlocks(ctx, "JP", domain.FamilyIPv4)
	if got[0] != netip.MustParsePrefix("1.2.3.0/24") {
		t.Fatalf("stored blocks changed through caller slice: %v", got)
	}
	got[0] = netip.MustParsePrefix("8.8.8.0/24")
	again, _ := repo.ListBlocks(ctx, "JP", domain.FamilyIPv4)
	if again[0] != netip.MustParsePrefix("1.2.3.0/24") {
		t.Fatalf("stored blocks changed through returned slice: %v", again)
	}

	if err := repo.WriteCountry(ctx, domain.CountryBlocks{Country: "JP"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	replaced, _ := repo.ListBlocks(ctx, "JP", domain.FamilyIPv4)
	if len(replaced) != 0 {
		t.Fatalf("expected blocks to be replaced, got %v", replaced)
	}
}

func TestMemoryRepositoryWriteHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewMemoryRepository().WriteCountry(ctx, domain.CountryBlocks{Country: "JP"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

package domain

import (
	"context"
	"fmt"
	"net/netip"

	"go4.org/netipx"
)

type blockService struct {
	blocks BlockReader
}

func NewBlockService(blocks BlockReader) BlockService {
	return &blockService{blocks: blocks}
}

func (s *blockService) ListCountries(ctx context.Context) ([]CountrySummary, error) {
	return s.blocks.ListCountries(ctx)
}

func (s *blockService) ListBlocks(ctx context.Context, country, family string) (BlockList, error) {
	code, err := NormalizeCountry(country)
	if err != nil {
		return BlockList{}, err
	}
	fam, err := ParseFamily(family)
	if err != nil {
		return BlockList{}, err
	}

	blocks, err := s.blocks.ListBlocks(ctx, code, fam)
	if err != nil {
		return BlockList{}, err
	}
	return BlockList{Country: code, Family: fam, Blocks: blocks}, nil
}

func (s *blockService) Lookup(ctx context.Context, addr string) (LookupResult, error) {
	ip, err := netip.ParseAddr(addr)
	if err != nil {
		return LookupResult{}, fmt.Errorf("%w: invalid ip", ErrInvalidInput)
	}
	ip = ip.Unmap().WithZone("")
	family := FamilyIPv4
	if ip.Is6() {
		family = FamilyIPv6
	}

	countries, err := s.blocks.ListCountries(ctx)
	if err != nil {
		return LookupResult{}, err
	}

	result := LookupResult{Addr: ip, Countries: []string{}}
	for _, c := range countries {
		blocks, err := s.blocks.ListBlocks(ctx, c.Country, family)
		if err != nil {
			return LookupResult{}, err
		}
		set, err := ipSet(blocks)
		if err != nil {
			return LookupResult{}, err
		}
		if set.Contains(ip) {
			result.Countries = append(result.Countries, c.Country)
		}
	}
	return result, nil
}

func ipSet(blocks []netip.Prefix) (*netipx.IPSet, error) {
	var b netipx.IPSetBuilder
	for _, p := range blocks {
		b.AddPrefix(p)
	}
	return b.IPSet()
}

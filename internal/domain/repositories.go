package domain

import (
	"context"
	"net/netip"
)

type BlockWriter interface {
	WriteCountry(ctx context.Context, blocks CountryBlocks) error
}

type BlockReader interface {
	ListCountries(ctx context.Context) ([]CountrySummary, error)
	ListBlocks(ctx context.Context, country string, family Family) ([]netip.Prefix, error)
}

type BlockRepository interface {
	BlockWriter
	BlockReader
	Ping(ctx context.Context) error
}

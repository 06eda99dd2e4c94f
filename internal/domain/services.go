package domain

import "context"

type CountryAggregator interface {
	Aggregate(sources []Source, country string) (CountryBlocks, AggregateStats)
}

type SourceFetcher interface {
	FetchAll(ctx context.Context, urls []string) []Source
}

// BlockService is the read side used by the HTTP API.
type BlockService interface {
	ListCountries(ctx context.Context) ([]CountrySummary, error)
	ListBlocks(ctx context.Context, country, family string) (BlockList, error)
	Lookup(ctx context.Context, addr string) (LookupResult, error)
}

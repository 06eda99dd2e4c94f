package db

import (
	"context"
	"net/netip"
	"slices"
	"strings"
	"sync"

	"github.com/Flarenzy/rirblocks/internal/domain"
)

// MemoryRepository keeps the latest blocks of each country in process. It
// backs the API when no database is configured.
type MemoryRepository struct {
	mu        sync.RWMutex
	countries map[string]domain.CountryBlocks
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{countries: make(map[string]domain.CountryBlocks)}
}

func (r *MemoryRepository) Ping(context.Context) error {
	return nil
}

func (r *MemoryRepository) WriteCountry(ctx context.Context, blocks domain.CountryBlocks) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	blocks.IPv4 = slices.Clone(blocks.IPv4)
	blocks.IPv6 = slices.Clone(blocks.IPv6)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.countries[blocks.Country] = blocks
	return nil
}

func (r *MemoryRepository) ListCountries(context.Context) ([]domain.CountrySummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.CountrySummary, 0, len(r.countries))
	for _, c := range r.countries {
		out = append(out, domain.CountrySummary{
			Country:     c.Country,
			IPv4Count:   len(c.IPv4),
			IPv6Count:   len(c.IPv6),
			RunID:       c.RunID,
			GeneratedAt: c.GeneratedAt,
		})
	}
	slices.SortFunc(out, func(a, b domain.CountrySummary) int {
		return strings.Compare(a.Country, b.Country)
	})
	return out, nil
}

func (r *MemoryRepository) ListBlocks(_ context.Context, country string, family domain.Family) ([]netip.Prefix, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.countries[country]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return slices.Clone(c.Blocks(family)), nil
}

// Package aggregate collects the CIDR blocks of one country from a set of
// delegated-extended source texts.
package aggregate

import (
	"log/slog"
	"net/netip"
	"time"

	"github.com/Flarenzy/rirblocks/internal/cidr"
	"github.com/Flarenzy/rirblocks/internal/delegated"
	"github.com/Flarenzy/rirblocks/internal/domain"
)

// Aggregator holds no per-call state; one value may serve many countries
// concurrently over the same sources.
type Aggregator struct {
	logger *slog.Logger
	parser delegated.Parser
	now    func() time.Time
}

func New(logger *slog.Logger, parser delegated.Parser) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		logger: logger,
		parser: parser,
		now:    time.Now,
	}
}

func (a *Aggregator) Aggregate(sources []domain.Source, country string) (domain.CountryBlocks, domain.AggregateStats) {
	v4 := cidr.NewBlockSet()
	v6 := cidr.NewBlockSet()
	stats := domain.AggregateStats{Sources: len(sources)}

	for _, src := range sources {
		a.collect(src, country, v4, v6, &stats)
	}

	stats.IPv4Blocks = v4.Len()
	stats.IPv6Blocks = v6.Len()
	return domain.CountryBlocks{
		Country:     country,
		IPv4:        v4.Prefixes(),
		IPv6:        v6.Prefixes(),
		GeneratedAt: a.now(),
	}, stats
}

func (a *Aggregator) collect(src domain.Source, country string, v4, v6 *cidr.BlockSet, stats *domain.AggregateStats) {
	for rec, err := range a.parser.Records(src.Text, country) {
		if err != nil {
			if domain.ErrorKind(err) != domain.KindFormat {
				a.logger.Error("reading source failed", "source", src.Name, "country", country, "err", err.Error())
				stats.FailedSources++
				return
			}
			a.logger.Warn("skipping malformed record", "source", src.Name, "country", country, "err", err.Error())
			stats.FormatErrors++
			continue
		}

		stats.Records++
		blocks, err := recordBlocks(rec)
		if err != nil {
			a.logger.Warn("skipping record", "source", src.Name, "country", country, "start", rec.Start.String(), "value", rec.Value, "err", err.Error())
			if domain.ErrorKind(err) == domain.KindOverflow {
				stats.OverflowErrors++
			} else {
				stats.FormatErrors++
			}
			continue
		}

		set := v4
		if rec.Family == domain.FamilyIPv6 {
			set = v6
		}
		for _, b := range blocks {
			set.Insert(b)
		}
	}
}

// recordBlocks expands a record into its CIDR blocks: IPv4 ranges are
// decomposed, an IPv6 record already is a single prefix.
func recordBlocks(rec domain.AllocationRecord) ([]netip.Prefix, error) {
	if rec.Family == domain.FamilyIPv6 {
		return []netip.Prefix{netip.PrefixFrom(rec.Start, int(rec.Value)).Masked()}, nil
	}
	return cidr.DecomposeAddr(rec.Start, rec.Value)
}

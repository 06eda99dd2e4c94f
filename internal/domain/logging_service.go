package domain

import (
	"context"
	"log/slog"
)

type loggingBlockWriter struct {
	logger *slog.Logger
	name   string
	next   BlockWriter
}

func NewLoggingBlockWriter(logger *slog.Logger, name string, next BlockWriter) BlockWriter {
	if logger == nil || next == nil {
		return next
	}

	return &loggingBlockWriter{
		logger: logger,
		name:   name,
		next:   next,
	}
}

func (w *loggingBlockWriter) WriteCountry(ctx context.Context, blocks CountryBlocks) error {
	err := w.next.WriteCountry(ctx, blocks)
	if err != nil {
		w.logger.ErrorContext(ctx, "write country blocks failed", "writer", w.name, "country", blocks.Country, "err", err.Error())
		return err
	}

	w.logger.InfoContext(ctx, "country blocks written",
		"writer", w.name,
		"country", blocks.Country,
		"ipv4", len(blocks.IPv4),
		"ipv6", len(blocks.IPv6),
	)
	return nil
}

type loggingAggregator struct {
	logger *slog.Logger
	next   CountryAggregator
}

func NewLoggingAggregator(logger *slog.Logger, next CountryAggregator) CountryAggregator {
	if logger == nil || next == nil {
		return next
	}

	return &loggingAggregator{
		logger: logger,
		next:   next,
	}
}

func (a *loggingAggregator) Aggregate(sources []Source, country string) (CountryBlocks, AggregateStats) {
	blocks, stats := a.next.Aggregate(sources, country)
	if stats.FailedSources > 0 || stats.FormatErrors > 0 || stats.OverflowErrors > 0 {
		a.logger.Warn("country aggregated with skipped input",
			"country", country,
			"failed_sources", stats.FailedSources,
			"format_errors", stats.FormatErrors,
			"overflow_errors", stats.OverflowErrors,
		)
	}

	a.logger.Debug("country aggregated",
		"country", country,
		"sources", stats.Sources,
		"records", stats.Records,
		"ipv4", stats.IPv4Blocks,
		"ipv6", stats.IPv6Blocks,
	)
	return blocks, stats
}

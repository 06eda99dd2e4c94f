package db

import (
	"context"
	"errors"
	"fmt"
	"net/netip"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go4.org/netipx"

	"github.com/Flarenzy/rirblocks/internal/domain"
)

var blockColumns = []string{"country", "family", "seq", "cidr", "first_addr", "last_addr", "run_id", "generated_at"}

type BlockRepository struct {
	pool *pgxpool.Pool
}

func NewBlockRepository(pool *pgxpool.Pool) *BlockRepository {
	return &BlockRepository{pool: pool}
}

func (r *BlockRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// WriteCountry replaces every stored block of the country in one transaction.
func (r *BlockRepository) WriteCountry(ctx context.Context, blocks domain.CountryBlocks) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM country_blocks WHERE country = $1`, blocks.Country); err != nil {
		return fmt.Errorf("delete blocks: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO country_runs (country, run_id, ipv4_count, ipv6_count, generated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (country) DO UPDATE SET
			run_id = EXCLUDED.run_id,
			ipv4_count = EXCLUDED.ipv4_count,
			ipv6_count = EXCLUDED.ipv6_count,
			generated_at = EXCLUDED.generated_at`,
		blocks.Country, blocks.RunID, len(blocks.IPv4), len(blocks.IPv6), blocks.GeneratedAt)
	if err != nil {
		return fmt.Errorf("upsert run: %w", err)
	}

	rows := make([][]any, 0, len(blocks.IPv4)+len(blocks.IPv6))
	for _, family := range []domain.Family{domain.FamilyIPv4, domain.FamilyIPv6} {
		for seq, p := range blocks.Blocks(family) {
			rng := netipx.RangeOfPrefix(p)
			rows = append(rows, []any{
				blocks.Country, family.String(), int32(seq), p, rng.From(), rng.To(), blocks.RunID, blocks.GeneratedAt,
			})
		}
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"country_blocks"}, blockColumns, pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("copy blocks: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *BlockRepository) ListCountries(ctx context.Context) ([]domain.CountrySummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT country, run_id, ipv4_count, ipv6_count, generated_at
		FROM country_runs
		ORDER BY country`)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.CountrySummary, error) {
		var (
			s          domain.CountrySummary
			ipv4, ipv6 int32
		)
		if err := row.Scan(&s.Country, &s.RunID, &ipv4, &ipv6, &s.GeneratedAt); err != nil {
			return domain.CountrySummary{}, err
		}
		s.IPv4Count = int(ipv4)
		s.IPv6Count = int(ipv6)
		return s, nil
	})
}

// ListBlocks reads the country's run and its blocks from one snapshot, so a
// concurrent WriteCountry is seen entirely or not at all.
func (r *BlockRepository) ListBlocks(ctx context.Context, country string, family domain.Family) ([]netip.Prefix, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var runID string
	err = tx.QueryRow(ctx, `SELECT run_id FROM country_runs WHERE country = $1`, country).Scan(&runID)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT cidr
		FROM country_blocks
		WHERE country = $1 AND family = $2
		ORDER BY seq`, country, family.String())
	if err != nil {
		return nil, err
	}
	blocks, err := pgx.CollectRows(rows, pgx.RowTo[netip.Prefix])
	if err != nil {
		return nil, err
	}
	return blocks, tx.Commit(ctx)
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

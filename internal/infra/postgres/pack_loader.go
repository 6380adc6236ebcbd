package postgres

import (
	"context"
	"fmt"

	"pushluck-trivia-service/internal/content"
	"pushluck-trivia-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// PackLoader loads pack JSONB from Postgres. Rows may carry either the
// legacy or the canonical question schema; decoding normalizes both.
type PackLoader struct {
	pool *pgxpool.Pool
}

func NewPackLoader(pool *pgxpool.Pool) *PackLoader {
	return &PackLoader{pool: pool}
}

func (l *PackLoader) LoadPacks(ctx context.Context) ([]domain.Pack, error) {
	rows, err := l.pool.Query(ctx, `SELECT data FROM packs WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load packs: %w", err)
	}
	defer rows.Close()

	var packs []domain.Pack
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan pack: %w", err)
		}
		pack, err := content.DecodePack(raw)
		if err != nil {
			return nil, err
		}
		packs = append(packs, pack)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load packs: %w", err)
	}
	return packs, nil
}

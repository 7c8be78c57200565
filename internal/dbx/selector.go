package dbx

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RunBatch implements the transactional batch selector shared by every
// background worker (spec §4.1): begin a transaction, let claim lock and
// return up to N due rows with FOR UPDATE SKIP LOCKED, let apply compute
// the in-memory transitions and issue the matching updates on the same
// transaction, then commit. Any error rolls the whole batch back so the
// rows become selectable again on the next tick — at-least-once, never
// partial.
func RunBatch[T any](
	ctx context.Context,
	pool *pgxpool.Pool,
	claim func(ctx context.Context, tx pgx.Tx) ([]T, error),
	apply func(ctx context.Context, tx pgx.Tx, claimed []T) error,
) (int, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin batch tx: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	claimed, err := claim(ctx, tx)
	if err != nil {
		return 0, fmt.Errorf("claim batch: %w", err)
	}

	if len(claimed) == 0 {
		if err := tx.Commit(ctx); err != nil {
			return 0, fmt.Errorf("commit empty batch: %w", err)
		}
		committed = true
		return 0, nil
	}

	if err := apply(ctx, tx, claimed); err != nil {
		return 0, fmt.Errorf("apply batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit batch: %w", err)
	}
	committed = true

	return len(claimed), nil
}

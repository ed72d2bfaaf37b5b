package main

import (
	"context"
	"fmt"

	"plasmaLedger/internal/journal"
	"plasmaLedger/internal/model"
	"plasmaLedger/internal/storage/postgres"
)

// loadPoolState reads pool snapshots from Postgres when a store is given,
// otherwise from the replay checkpoint.
func loadPoolState(ctx context.Context, store *postgres.Store, checkpointPath string) ([]model.PoolSnapshot, error) {
	if store != nil {
		snaps, err := store.LoadPoolSnapshots(ctx)
		if err != nil {
			return nil, fmt.Errorf("load pool snapshots: %w", err)
		}
		return snaps, nil
	}
	cp, ok, err := journal.NewCheckpointStore(checkpointPath, true).Load()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no checkpoint at %s", checkpointPath)
	}
	return cp.Pools, nil
}

package storage

import (
	"context"
	"errors"

	"plasmaLedger/internal/model"
)

// EventSink receives committed ledger events.
type EventSink interface {
	PublishEvents(ctx context.Context, events []model.Event) error
}

// SnapshotStore persists pool snapshots.
type SnapshotStore interface {
	SavePoolSnapshots(ctx context.Context, snaps []model.PoolSnapshot) error
}

// Multi fans events out to every sink. All sinks are tried; their errors
// are joined.
type Multi []EventSink

func (m Multi) PublishEvents(ctx context.Context, events []model.Event) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.PublishEvents(ctx, events); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

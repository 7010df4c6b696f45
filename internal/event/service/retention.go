package service

import (
	"context"
	"time"
)

// PurgeExpired deletes, across all tenants, every event that ended before
// cutoff together with its participations and chat messages, in one
// transaction. Returns the number of events removed.
func (s *Service) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		ids, err := s.events.ListExpiredIDs(txCtx, cutoff)
		if err != nil {
			return wrapStoreErr(err, "failed to list expired events")
		}
		if len(ids) == 0 {
			return nil
		}
		if _, err := s.chat.DeleteByEventIDs(txCtx, ids); err != nil {
			return wrapStoreErr(err, "failed to delete expired chat history")
		}
		if _, err := s.participations.DeleteByEventIDs(txCtx, ids); err != nil {
			return wrapStoreErr(err, "failed to delete expired participations")
		}
		n, err := s.events.DeleteByIDs(txCtx, ids)
		if err != nil {
			return wrapStoreErr(err, "failed to delete expired events")
		}
		deleted = n
		return nil
	})
	s.metrics.ObserveSweep(deleted, err)
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

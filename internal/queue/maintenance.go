package queue

import (
	"context"
	"fmt"
	"time"
)

// PruneFinished discards terminal jobs past the retention window, then trims
// each lane to its keep-last counts (completed and failed tracked
// separately). Returns the number of rows removed.
func (s *Store) PruneFinished(ctx context.Context, maxAge time.Duration) (int64, error) {
	var removed int64

	cutoff := time.Now().UTC().Add(-maxAge).Format(timeFormat)
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM jobs WHERE state IN (?, ?) AND finished_at IS NOT NULL AND finished_at < ?`,
		string(StateCompleted),
		string(StateFailed),
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("prune aged jobs: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil {
		removed += affected
	}

	for lane, policy := range s.policies {
		for _, trim := range []struct {
			state State
			keep  int
		}{
			{StateCompleted, policy.KeepCompleted},
			{StateFailed, policy.KeepFailed},
		} {
			if trim.keep <= 0 {
				continue
			}
			count, err := s.trimLaneState(ctx, lane, trim.state, trim.keep)
			if err != nil {
				return removed, err
			}
			removed += count
		}
	}
	return removed, nil
}

// ClearFinished removes every terminal job in the given state regardless of
// age. Returns the number of rows removed.
func (s *Store) ClearFinished(ctx context.Context, state State) (int64, error) {
	if !state.IsTerminal() {
		return 0, fmt.Errorf("clear jobs: state %q is not terminal", state)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE state = ?`, string(state))
	if err != nil {
		return 0, fmt.Errorf("clear %s jobs: %w", state, err)
	}
	return res.RowsAffected()
}

func (s *Store) trimLaneState(ctx context.Context, lane Lane, state State, keep int) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM jobs WHERE lane = ? AND state = ? AND id NOT IN (
            SELECT id FROM jobs WHERE lane = ? AND state = ?
            ORDER BY finished_at DESC LIMIT ?
        )`,
		string(lane),
		string(state),
		string(lane),
		string(state),
		keep,
	)
	if err != nil {
		return 0, fmt.Errorf("trim %s/%s jobs: %w", lane, state, err)
	}
	return res.RowsAffected()
}

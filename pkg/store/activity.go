package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/majorfi/timeline-intake/pkg/utils"
)

// ActivitySink receives activity entries.
type ActivitySink interface {
	LogActivity(ctx context.Context, entry utils.TActivityEntry) error
}

// LogActivity appends one entry to the activity_log table.
func (s *Store) LogActivity(ctx context.Context, entry utils.TActivityEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	row := ActivityRecord{
		UserID:    entry.UserID,
		VehicleID: entry.VehicleID,
		EventID:   entry.EventID,
		Action:    entry.Action,
		Count:     entry.Count,
		CreatedAt: entry.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("error logging activity %s: %w", entry.Action, err)
	}
	return nil
}

// ListActivity returns a vehicle's activity entries, oldest first.
func (s *Store) ListActivity(ctx context.Context, vehicleID string) ([]utils.TActivityEntry, error) {
	var rows []ActivityRecord
	if err := s.db.WithContext(ctx).Where("vehicle_id = ?", vehicleID).Order("id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("error listing activity: %w", err)
	}
	entries := make([]utils.TActivityEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, utils.TActivityEntry{
			UserID:    row.UserID,
			VehicleID: row.VehicleID,
			EventID:   row.EventID,
			Action:    row.Action,
			Count:     row.Count,
			CreatedAt: row.CreatedAt,
		})
	}
	return entries, nil
}

/**************************************************************************************************
** MultiActivityLog writes every entry to all sinks. A failing sink does not stop the others;
** the failures come back joined.
**************************************************************************************************/
type MultiActivityLog []ActivitySink

func (m MultiActivityLog) LogActivity(ctx context.Context, entry utils.TActivityEntry) error {
	var errs []error
	for _, sink := range m {
		if err := sink.LogActivity(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/majorfi/timeline-intake/pkg/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ErrNotFound is returned when an event does not exist.
var ErrNotFound = errors.New("not found")

/**************************************************************************************************
** Store is the relational persistence of the pipeline: events, asset records, vehicles and the
** activity log, on gorm over a pure-Go SQLite driver.
**************************************************************************************************/
type Store struct {
	db     *gorm.DB
	logger *logrus.Logger
}

/**************************************************************************************************
** Open opens (or creates) the database at path and migrates the schema. Use ":memory:" for a
** throwaway database.
**
** @param path - SQLite file path
** @param logger - Logger instance for output
** @return *Store - Ready store
** @return error - Open or migration failure
**************************************************************************************************/
func Open(path string, logger *logrus.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("error opening database %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("error getting database handle: %w", err)
	}
	// SQLite has a single writer; one connection also keeps ":memory:" databases alive.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Vehicle{}, &TimelineEvent{}, &VehicleImage{}, &ActivityRecord{}); err != nil {
		return nil, fmt.Errorf("error migrating database: %w", err)
	}

	logger.Debugf("database ready at %s", path)
	return &Store{db: db, logger: logger}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// EnsureVehicle creates the vehicle row when missing.
func (s *Store) EnsureVehicle(ctx context.Context, vehicleID string) error {
	if vehicleID == "" {
		return fmt.Errorf("vehicle id is required")
	}
	vehicle := Vehicle{ID: vehicleID}
	if err := s.db.WithContext(ctx).FirstOrCreate(&vehicle, Vehicle{ID: vehicleID}).Error; err != nil {
		return fmt.Errorf("error ensuring vehicle %s: %w", vehicleID, err)
	}
	return nil
}

/**************************************************************************************************
** CreateEvent persists a new timeline event and returns it with its assigned id and creation
** time.
**************************************************************************************************/
func (s *Store) CreateEvent(ctx context.Context, event utils.TTimelineEvent) (utils.TTimelineEvent, error) {
	if event.VehicleID == "" {
		return event, fmt.Errorf("error creating event: vehicle id is required")
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if event.AssetURLs == nil {
		event.AssetURLs = []string{}
	}

	row, err := toEventRow(event)
	if err != nil {
		return event, err
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return event, fmt.Errorf("error creating event: %w", err)
	}
	return event, nil
}

/**************************************************************************************************
** UpdateEvent applies the post-upload patch: the asset URL list is replaced and the delta is
** added to metadata.uploadedImageCount, inside one transaction.
**
** @param ctx - Context for the query
** @param id - Event to update
** @param patch - New URL list and uploaded count delta
** @return error - ErrNotFound when the event does not exist
**************************************************************************************************/
func (s *Store) UpdateEvent(ctx context.Context, id string, patch utils.TEventPatch) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row TimelineEvent
		if err := tx.First(&row, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("event %s: %w", id, ErrNotFound)
			}
			return fmt.Errorf("error loading event %s: %w", id, err)
		}

		event, err := fromEventRow(row)
		if err != nil {
			return err
		}
		event.AssetURLs = patch.AssetURLs
		if event.AssetURLs == nil {
			event.AssetURLs = []string{}
		}
		event.Metadata.UploadedImageCount += patch.UploadedImageCountDelta

		updated, err := toEventRow(event)
		if err != nil {
			return err
		}
		return tx.Model(&row).Updates(map[string]interface{}{
			"asset_urls": updated.AssetURLs,
			"metadata":   updated.Metadata,
		}).Error
	})
}

// GetEvent loads one event.
func (s *Store) GetEvent(ctx context.Context, id string) (utils.TTimelineEvent, error) {
	var row TimelineEvent
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.TTimelineEvent{}, fmt.Errorf("event %s: %w", id, ErrNotFound)
		}
		return utils.TTimelineEvent{}, fmt.Errorf("error loading event %s: %w", id, err)
	}
	return fromEventRow(row)
}

// ListEvents returns a vehicle's events by date.
func (s *Store) ListEvents(ctx context.Context, vehicleID string) ([]utils.TTimelineEvent, error) {
	var rows []TimelineEvent
	if err := s.db.WithContext(ctx).Where("vehicle_id = ?", vehicleID).Order("date asc, created_at asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("error listing events: %w", err)
	}
	events := make([]utils.TTimelineEvent, 0, len(rows))
	for _, row := range rows {
		event, err := fromEventRow(row)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

func toEventRow(event utils.TTimelineEvent) (TimelineEvent, error) {
	urls, err := json.Marshal(event.AssetURLs)
	if err != nil {
		return TimelineEvent{}, fmt.Errorf("error encoding asset urls: %w", err)
	}
	meta, err := json.Marshal(event.Metadata)
	if err != nil {
		return TimelineEvent{}, fmt.Errorf("error encoding event metadata: %w", err)
	}
	return TimelineEvent{
		ID:           event.ID,
		VehicleID:    event.VehicleID,
		EventType:    string(event.EventType),
		Date:         event.Date,
		Title:        event.Title,
		Description:  event.Description,
		LocationText: event.LocationText,
		AssetURLs:    urls,
		Metadata:     meta,
		CreatedBy:    event.CreatedBy,
		CreatedAt:    event.CreatedAt,
	}, nil
}

func fromEventRow(row TimelineEvent) (utils.TTimelineEvent, error) {
	event := utils.TTimelineEvent{
		ID:           row.ID,
		VehicleID:    row.VehicleID,
		EventType:    utils.TEventType(row.EventType),
		Date:         row.Date,
		Title:        row.Title,
		Description:  row.Description,
		LocationText: row.LocationText,
		CreatedBy:    row.CreatedBy,
		CreatedAt:    row.CreatedAt,
	}
	if len(row.AssetURLs) > 0 {
		if err := json.Unmarshal(row.AssetURLs, &event.AssetURLs); err != nil {
			return event, fmt.Errorf("error decoding asset urls of %s: %w", row.ID, err)
		}
	}
	if len(row.Metadata) > 0 {
		if err := json.Unmarshal(row.Metadata, &event.Metadata); err != nil {
			return event, fmt.Errorf("error decoding metadata of %s: %w", row.ID, err)
		}
	}
	return event, nil
}

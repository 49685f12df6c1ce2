package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/majorfi/timeline-intake/pkg/utils"
)

/**************************************************************************************************
** InsertAssetRecord persists the provenance of one uploaded asset. The primary flag of the
** record is ignored; ClaimPrimary decides primacy.
**
** @param ctx - Context for the query
** @param record - Asset record, ID assigned when empty
** @return utils.TAssetRecord - The stored record
** @return error - Encoding or insert failure
**************************************************************************************************/
func (s *Store) InsertAssetRecord(ctx context.Context, record utils.TAssetRecord) (utils.TAssetRecord, error) {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	record.IsPrimary = false

	meta, err := json.Marshal(record.Metadata)
	if err != nil {
		return record, fmt.Errorf("error encoding asset metadata: %w", err)
	}

	row := VehicleImage{
		ID:          record.ID,
		EventID:     record.EventID,
		VehicleID:   record.VehicleID,
		URL:         record.URL,
		StorageKey:  record.StorageKey,
		FileName:    record.FileName,
		ContentHash: record.ContentHash,
		Category:    record.Category,
		Source:      record.Source,
		Metadata:    meta,
		CreatedAt:   record.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return record, fmt.Errorf("error inserting asset record for %s: %w", record.FileName, err)
	}
	return record, nil
}

/**************************************************************************************************
** ClaimPrimary marks the asset as its vehicle's primary image if the vehicle has none yet. The
** check and the write are one conditional UPDATE, so two concurrent claims cannot both win.
**
** @param ctx - Context for the query
** @param vehicleID - Vehicle owning the asset
** @param assetID - Asset record to promote
** @return bool - True when this call made the asset primary
** @return error - Query failure
**************************************************************************************************/
func (s *Store) ClaimPrimary(ctx context.Context, vehicleID, assetID string) (bool, error) {
	result := s.db.WithContext(ctx).Exec(
		`UPDATE vehicle_images SET is_primary = ?
		 WHERE id = ? AND vehicle_id = ?
		 AND NOT EXISTS (SELECT 1 FROM vehicle_images WHERE vehicle_id = ? AND is_primary = ?)`,
		true, assetID, vehicleID, vehicleID, true,
	)
	if result.Error != nil {
		return false, fmt.Errorf("error claiming primary image for %s: %w", vehicleID, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// HasPrimaryAsset reports whether the vehicle already has a primary image.
func (s *Store) HasPrimaryAsset(ctx context.Context, vehicleID string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&VehicleImage{}).Where("vehicle_id = ? AND is_primary = ?", vehicleID, true).Count(&count).Error; err != nil {
		return false, fmt.Errorf("error checking primary image for %s: %w", vehicleID, err)
	}
	return count > 0, nil
}

// ListAssets returns a vehicle's asset records in insertion order.
func (s *Store) ListAssets(ctx context.Context, vehicleID string) ([]utils.TAssetRecord, error) {
	var rows []VehicleImage
	if err := s.db.WithContext(ctx).Where("vehicle_id = ?", vehicleID).Order("created_at asc, rowid asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("error listing assets: %w", err)
	}

	records := make([]utils.TAssetRecord, 0, len(rows))
	for _, row := range rows {
		record := utils.TAssetRecord{
			ID:          row.ID,
			EventID:     row.EventID,
			VehicleID:   row.VehicleID,
			URL:         row.URL,
			StorageKey:  row.StorageKey,
			IsPrimary:   row.IsPrimary,
			FileName:    row.FileName,
			ContentHash: row.ContentHash,
			Category:    row.Category,
			Source:      row.Source,
			CreatedAt:   row.CreatedAt,
		}
		if len(row.Metadata) > 0 {
			if err := json.Unmarshal(row.Metadata, &record.Metadata); err != nil {
				return nil, fmt.Errorf("error decoding metadata of asset %s: %w", row.ID, err)
			}
		}
		records = append(records, record)
	}
	return records, nil
}

// FindAssetByHash returns the first asset of the vehicle with the given content hash.
func (s *Store) FindAssetByHash(ctx context.Context, vehicleID, hash string) (string, bool, error) {
	var row VehicleImage
	result := s.db.WithContext(ctx).Where("vehicle_id = ? AND content_hash = ?", vehicleID, hash).Limit(1).Find(&row)
	if result.Error != nil {
		return "", false, fmt.Errorf("error looking up hash: %w", result.Error)
	}
	return row.URL, result.RowsAffected > 0, nil
}

package store

import (
	"time"

	"gorm.io/datatypes"
)

// Vehicle is the owner of events and images.
type Vehicle struct {
	ID        string `gorm:"primaryKey"`
	CreatedAt time.Time
}

func (Vehicle) TableName() string {
	return "vehicles"
}

/**************************************************************************************************
** TimelineEvent is the row behind utils.TTimelineEvent. Asset URLs and the metadata block are
** JSON columns, read and written whole.
**************************************************************************************************/
type TimelineEvent struct {
	ID           string `gorm:"primaryKey"`
	VehicleID    string `gorm:"index;not null"`
	EventType    string `gorm:"not null"`
	Date         string `gorm:"index;not null"`
	Title        string
	Description  string
	LocationText string
	AssetURLs    datatypes.JSON `gorm:"column:asset_urls"`
	Metadata     datatypes.JSON
	CreatedBy    string `gorm:"index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (TimelineEvent) TableName() string {
	return "timeline_events"
}

/**************************************************************************************************
** VehicleImage is the provenance record of one uploaded asset. At most one row per vehicle has
** IsPrimary set; ClaimPrimary is the only writer of that flag.
**************************************************************************************************/
type VehicleImage struct {
	ID          string `gorm:"primaryKey"`
	EventID     string `gorm:"index"`
	VehicleID   string `gorm:"index;not null"`
	URL         string `gorm:"not null"`
	StorageKey  string
	IsPrimary   bool `gorm:"not null;default:false"`
	FileName    string
	ContentHash string `gorm:"index"`
	Category    string
	Source      string
	Metadata    datatypes.JSON
	CreatedAt   time.Time
}

func (VehicleImage) TableName() string {
	return "vehicle_images"
}

// ActivityRecord is one row of the activity log.
type ActivityRecord struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	UserID    string `gorm:"index"`
	VehicleID string `gorm:"index"`
	EventID   string
	Action    string `gorm:"not null"`
	Count     int
	CreatedAt time.Time
}

func (ActivityRecord) TableName() string {
	return "activity_log"
}

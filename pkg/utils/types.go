package utils

import (
	"fmt"
	"os"
	"time"
)

/**************************************************************************************************
** TFile is one incoming file as selected by the user. MediaType is the declared media type and
** may be empty or wrong for some formats (HEIC on most platforms), which is why the intake filter
** also looks at the extension.
**************************************************************************************************/
type TFile struct {
	Name         string    `json:"name"`                // Base file name
	Path         string    `json:"path"`                // Local path used to open the content
	Size         int64     `json:"size"`                // Size in bytes
	LastModified time.Time `json:"lastModified"`        // File-system modification time
	MediaType    string    `json:"mediaType,omitempty"` // Declared media type, if any
}

/**************************************************************************************************
** IdentityKey returns the (name, size, lastModified) triple used for duplicate detection,
** flattened to a comparable string.
**************************************************************************************************/
func (f TFile) IdentityKey() string {
	return fmt.Sprintf("%s|%d|%d", f.Name, f.Size, f.LastModified.UnixMilli())
}

// Open opens the file content for reading.
func (f TFile) Open() (*os.File, error) {
	if f.Path == "" {
		return nil, fmt.Errorf("file %s has no path", f.Name)
	}
	return os.Open(f.Path)
}

/**************************************************************************************************
** TSelectionStatus is the outcome of the intake filter for one file.
**************************************************************************************************/
type TSelectionStatus string

const (
	SelectionAdded     TSelectionStatus = "added"
	SelectionDuplicate TSelectionStatus = "duplicate"
	SelectionDropped   TSelectionStatus = "dropped"
)

/**************************************************************************************************
** TSelectionEntry is one immutable decision record of the intake audit log.
**************************************************************************************************/
type TSelectionEntry struct {
	Name         string           `json:"name"`
	Size         int64            `json:"size"`
	LastModified time.Time        `json:"lastModified"`
	Status       TSelectionStatus `json:"status"`
	Reason       string           `json:"reason,omitempty"`
}

/**************************************************************************************************
** TGPSCoordinates is a latitude/longitude pair in decimal degrees.
**************************************************************************************************/
type TGPSCoordinates struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

/**************************************************************************************************
** TAssetMetadata holds the capture metadata extracted once per file at intake time. Every field
** is optional: a file without EXIF simply yields the zero value.
**************************************************************************************************/
type TAssetMetadata struct {
	CapturedAt  *time.Time       `json:"capturedAt,omitempty"`  // Capture time (EXIF)
	GPS         *TGPSCoordinates `json:"gps,omitempty"`         // Capture position (EXIF)
	CameraMake  string           `json:"cameraMake,omitempty"`  // Camera manufacturer
	CameraModel string           `json:"cameraModel,omitempty"` // Camera model
	Width       int              `json:"width,omitempty"`       // Pixel width, 0 when unknown
	Height      int              `json:"height,omitempty"`      // Pixel height, 0 when unknown
	TimeZone    string           `json:"timeZone,omitempty"`    // IANA zone resolved from GPS
}

/**************************************************************************************************
** TClusterItem pairs a file with its extracted metadata.
**************************************************************************************************/
type TClusterItem struct {
	File     TFile          `json:"file"`
	Metadata TAssetMetadata `json:"metadata"`
}

/**************************************************************************************************
** RepresentativeTime is the timestamp used for clustering: the capture time when known,
** otherwise the file-system modification time.
**************************************************************************************************/
func (i TClusterItem) RepresentativeTime() time.Time {
	if i.Metadata.CapturedAt != nil && !i.Metadata.CapturedAt.IsZero() {
		return *i.Metadata.CapturedAt
	}
	return i.File.LastModified
}

/**************************************************************************************************
** TEventType is the kind of timeline event a cluster becomes.
**************************************************************************************************/
type TEventType string

const (
	EventTypeWork TEventType = "work"
	EventTypeLife TEventType = "life"
)

// ParseEventType returns the event type for s, or false if s is not a known type.
func ParseEventType(s string) (TEventType, bool) {
	switch TEventType(s) {
	case EventTypeWork, EventTypeLife:
		return TEventType(s), true
	default:
		return "", false
	}
}

/**************************************************************************************************
** TCluster is a working partition of the accepted files, keyed by calendar day. Clusters are
** never edited in place: every change produces a new cluster list.
**************************************************************************************************/
type TCluster struct {
	ID        string         `json:"id"`        // Stable identifier for UI addressing
	DateKey   string         `json:"dateKey"`   // YYYY-MM-DD
	Items     []TClusterItem `json:"items"`     // Ordered members
	Stage     string         `json:"stage"`     // Free-form workflow label
	EventType TEventType     `json:"eventType"` // work or life
}

/**************************************************************************************************
** TUploadStatus is the state of one asset upload. Transitions only go
** pending -> uploading -> completed | error.
**************************************************************************************************/
type TUploadStatus string

const (
	UploadPending   TUploadStatus = "pending"
	UploadUploading TUploadStatus = "uploading"
	UploadCompleted TUploadStatus = "completed"
	UploadError     TUploadStatus = "error"
)

/**************************************************************************************************
** TUploadTask is the transient per-asset state during an upload. Index matches the asset
** position inside its cluster for the whole upload.
**************************************************************************************************/
type TUploadTask struct {
	Index    int           `json:"index"`
	FileName string        `json:"fileName"`
	Status   TUploadStatus `json:"status"`
	Progress int           `json:"progress"`
	Error    string        `json:"error,omitempty"`
}

/**************************************************************************************************
** TUploadResult is what the blob-store adapter returns for one file.
**************************************************************************************************/
type TUploadResult struct {
	Success bool   `json:"success"`
	URL     string `json:"url,omitempty"`
	Key     string `json:"key,omitempty"`
	Hash    string `json:"hash,omitempty"`
	Error   string `json:"error,omitempty"`
}

/**************************************************************************************************
** TUser identifies the submitting user.
**************************************************************************************************/
type TUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

/**************************************************************************************************
** TContributor is one entry of an event's contributor list.
**************************************************************************************************/
type TContributor struct {
	UserID string  `json:"userId"`
	Role   string  `json:"role"`
	Weight float64 `json:"weight"`
}

/**************************************************************************************************
** TCreatorInfo records who created an event and through which path.
**************************************************************************************************/
type TCreatorInfo struct {
	UserID string `json:"userId"`
	Name   string `json:"name,omitempty"`
	Source string `json:"source"`
}

/**************************************************************************************************
** TEventMetadata is the free-form metadata block of a timeline event.
**************************************************************************************************/
type TEventMetadata struct {
	ImageCount         int            `json:"imageCount"`
	UploadedImageCount int            `json:"uploadedImageCount"`
	Stage              string         `json:"stage"`
	Category           string         `json:"category"`
	Contributors       []TContributor `json:"contributors"`
	CreatorInfo        TCreatorInfo   `json:"creatorInfo"`
}

/**************************************************************************************************
** TTimelineEvent is the persisted output: one per cluster.
**************************************************************************************************/
type TTimelineEvent struct {
	ID           string         `json:"id"`
	VehicleID    string         `json:"vehicleId"`
	EventType    TEventType     `json:"eventType"`
	Date         string         `json:"date"`
	Title        string         `json:"title"`
	Description  string         `json:"description,omitempty"`
	LocationText string         `json:"locationText,omitempty"`
	AssetURLs    []string       `json:"assetUrls"`
	Metadata     TEventMetadata `json:"metadata"`
	CreatedBy    string         `json:"createdBy"`
	CreatedAt    time.Time      `json:"createdAt"`
}

/**************************************************************************************************
** TEventPatch is the single update applied to an event once its uploads are done.
** UploadedImageCountDelta is added to the stored uploadedImageCount.
**************************************************************************************************/
type TEventPatch struct {
	AssetURLs               []string `json:"assetUrls"`
	UploadedImageCountDelta int      `json:"uploadedImageCountDelta"`
}

/**************************************************************************************************
** TAssetRecord is the persisted provenance of one uploaded asset. It carries the extracted
** metadata so the capture details survive independently of the original file.
**************************************************************************************************/
type TAssetRecord struct {
	ID          string         `json:"id"`
	EventID     string         `json:"eventId"`
	VehicleID   string         `json:"vehicleId"`
	URL         string         `json:"url"`
	StorageKey  string         `json:"storageKey"`
	IsPrimary   bool           `json:"isPrimary"`
	FileName    string         `json:"fileName"`
	ContentHash string         `json:"contentHash,omitempty"`
	Category    string         `json:"category"`
	Source      string         `json:"source"`
	Metadata    TAssetMetadata `json:"metadata"`
	CreatedAt   time.Time      `json:"createdAt"`
}

/**************************************************************************************************
** TActivityEntry is one best-effort provenance/audit record.
**************************************************************************************************/
type TActivityEntry struct {
	UserID    string    `json:"userId"`
	VehicleID string    `json:"vehicleId"`
	EventID   string    `json:"eventId"`
	Action    string    `json:"action"`
	Count     int       `json:"count,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

package utils

/**************************************************************************************************
** TimeFormat is the standard format for all time values written by the application.
**************************************************************************************************/
const TimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

/**************************************************************************************************
** DateKeyFormat is the calendar-day layout used for cluster keys and event dates.
**************************************************************************************************/
const DateKeyFormat = "2006-01-02"

/**************************************************************************************************
** Clustering defaults. A submission enters bulk mode (per-cluster confirmation) when it has more
** than one cluster or more than BulkModeThreshold files.
**************************************************************************************************/
const (
	DefaultStage      = "discovery"
	DefaultEventType  = EventTypeWork
	DefaultGapMinutes = 60
	BulkModeThreshold = 50
)

/**************************************************************************************************
** ImageExtensions is the extension allow-list used when the declared media type is missing or
** not an image type.
**************************************************************************************************/
var ImageExtensions = []string{".heic", ".heif", ".jpg", ".jpeg", ".png", ".webp", ".gif", ".bmp", ".tiff", ".tif"}

/**************************************************************************************************
** Provenance values written with every asset record and event.
**************************************************************************************************/
const (
	DefaultCategory      = "general"
	SourceUserUpload     = "user_upload"
	RolePhotographer     = "photographer"
	CreatorSourceBulk    = "photo_intake"
	DefaultTitleTemplate = "Photo set from {{ .Date }}"
)

/**************************************************************************************************
** Activity actions
**************************************************************************************************/
const (
	ActivityCreatedEvent           = "created_event"
	ActivityContributedPhotography = "contributed_photography"
)

/**************************************************************************************************
** Reason messages
**************************************************************************************************/
var REASON_NOT_AN_IMAGE = "not an image"
var REASON_DUPLICATE = "duplicate of an already selected file"

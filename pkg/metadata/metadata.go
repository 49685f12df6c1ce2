package metadata

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"
	"time"

	"github.com/evanoberholster/imagemeta"
	"github.com/majorfi/timeline-intake/pkg/utils"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

/**************************************************************************************************
** Extractor reads capture metadata from a file. Implementations never fail: a file without
** metadata yields an empty TAssetMetadata, and clustering falls back to the modification time.
**************************************************************************************************/
type Extractor interface {
	Extract(ctx context.Context, file utils.TFile) utils.TAssetMetadata
}

// exifFields is the subset of EXIF the pipeline cares about, independent of the decoder used.
type exifFields struct {
	captured  time.Time
	hasOffset bool
	latitude  float64
	longitude float64
	hasGPS    bool
	make      string
	model     string
}

/**************************************************************************************************
** ExifExtractor is the default Extractor. It decodes EXIF with imagemeta, falls back to goexif
** for files imagemeta rejects, reads pixel dimensions from the image header, and resolves the
** capture timezone from GPS coordinates.
**************************************************************************************************/
type ExifExtractor struct {
	logger *logrus.Logger
	zones  TimeZoneFinder
}

/**************************************************************************************************
** NewExifExtractor creates an extractor.
**
** @param logger - Logger for debug output
** @param zones - Timezone finder, may be nil to skip timezone resolution
** @return *ExifExtractor - Configured extractor
**************************************************************************************************/
func NewExifExtractor(logger *logrus.Logger, zones TimeZoneFinder) *ExifExtractor {
	return &ExifExtractor{logger: logger, zones: zones}
}

/**************************************************************************************************
** Extract reads the metadata of one file.
**
** The algorithm:
** 1. Decodes EXIF with imagemeta (JPEG, HEIC, TIFF and friends)
** 2. Falls back to goexif when imagemeta cannot parse the file
** 3. Reads width and height from the image header
** 4. Re-anchors an offset-less capture time in the timezone found at the GPS position
**
** @param ctx - Context, checked before any file access
** @param file - File to inspect
** @return utils.TAssetMetadata - Metadata, empty fields when absent
**************************************************************************************************/
func (e *ExifExtractor) Extract(ctx context.Context, file utils.TFile) utils.TAssetMetadata {
	var meta utils.TAssetMetadata
	if ctx.Err() != nil {
		return meta
	}

	f, err := file.Open()
	if err != nil {
		e.logger.Debugf("metadata: cannot open %s: %v", file.Name, err)
		return meta
	}
	defer f.Close()

	fields, err := decodeImagemeta(f)
	if err != nil {
		e.logger.WithFields(logrus.Fields{"file": file.Name, "error": err}).Debug("metadata: imagemeta failed, trying goexif")
		if _, seekErr := f.Seek(0, io.SeekStart); seekErr == nil {
			fields, err = decodeGoexif(f)
			if err != nil {
				e.logger.WithFields(logrus.Fields{"file": file.Name, "error": err}).Debug("metadata: no EXIF found")
			}
		}
	}
	e.resolve(fields, &meta)

	if _, err := f.Seek(0, io.SeekStart); err == nil {
		if cfg, _, err := image.DecodeConfig(f); err == nil {
			meta.Width = cfg.Width
			meta.Height = cfg.Height
		}
	}

	return meta
}

/**************************************************************************************************
** resolve turns decoded EXIF fields into TAssetMetadata. A capture time written without an
** offset is a wall-clock reading; when GPS places it in a known timezone, the same wall clock is
** re-anchored in that zone so the date key matches the place the photo was taken.
**************************************************************************************************/
func (e *ExifExtractor) resolve(fields exifFields, meta *utils.TAssetMetadata) {
	meta.CameraMake = strings.TrimSpace(fields.make)
	meta.CameraModel = strings.TrimSpace(fields.model)

	if fields.hasGPS {
		meta.GPS = &utils.TGPSCoordinates{Latitude: fields.latitude, Longitude: fields.longitude}
		if e.zones != nil {
			meta.TimeZone = e.zones.GetTimezoneName(fields.longitude, fields.latitude)
		}
	}

	if fields.captured.IsZero() {
		return
	}
	captured := fields.captured
	if !fields.hasOffset && meta.TimeZone != "" {
		if anchored, err := anchorInZone(captured, meta.TimeZone); err == nil {
			captured = anchored
		} else {
			e.logger.Debugf("metadata: unknown timezone %q: %v", meta.TimeZone, err)
		}
	}
	meta.CapturedAt = &captured
}

/**************************************************************************************************
** decodeImagemeta reads EXIF with imagemeta. Capture time priority is DateTimeOriginal, then
** CreateDate, then ModifyDate.
**************************************************************************************************/
func decodeImagemeta(r io.ReadSeeker) (exifFields, error) {
	data, err := imagemeta.Decode(r)
	if err != nil {
		return exifFields{}, fmt.Errorf("failed to decode EXIF metadata: %w", err)
	}

	fields := exifFields{make: data.Make, model: data.Model}

	gps := data.GPS
	if gps.Latitude() != 0 || gps.Longitude() != 0 {
		fields.latitude = gps.Latitude()
		fields.longitude = gps.Longitude()
		fields.hasGPS = true
	}

	switch {
	case !data.DateTimeOriginal().IsZero():
		fields.captured = data.DateTimeOriginal()
	case !data.CreateDate().IsZero():
		fields.captured = data.CreateDate()
	case !data.ModifyDate().IsZero():
		fields.captured = data.ModifyDate()
	}
	fields.hasOffset = !fields.captured.IsZero() && fields.captured.Location() != time.UTC

	return fields, nil
}

// decodeGoexif reads EXIF with goexif, which handles some JPEGs imagemeta rejects.
func decodeGoexif(r io.Reader) (exifFields, error) {
	x, err := exif.Decode(r)
	if err != nil {
		return exifFields{}, err
	}

	var fields exifFields
	if t, err := x.DateTime(); err == nil {
		// goexif parses in time.Local; keep the wall clock and drop the process zone.
		fields.captured = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	}
	if lat, lon, err := x.LatLong(); err == nil && (lat != 0 || lon != 0) {
		fields.latitude, fields.longitude, fields.hasGPS = lat, lon, true
	}
	fields.make = tagString(x, exif.Make)
	fields.model = tagString(x, exif.Model)

	return fields, nil
}

func tagString(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil {
		return ""
	}
	value, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return value
}

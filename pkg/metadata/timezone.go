package metadata

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/ringsaturn/tzf"
)

// TimeZoneFinder maps a position to an IANA timezone name, empty when unknown.
type TimeZoneFinder interface {
	GetTimezoneName(lng float64, lat float64) string
}

/**************************************************************************************************
** NewTimeZoneFinder loads the embedded tzf boundary data. Loading takes a moment and some memory,
** so callers build one finder and share it.
**************************************************************************************************/
func NewTimeZoneFinder() (TimeZoneFinder, error) {
	finder, err := tzf.NewDefaultFinder()
	if err != nil {
		return nil, fmt.Errorf("error loading timezone data: %w", err)
	}
	return finder, nil
}

// anchorInZone keeps the wall-clock components of t and places them in the named zone.
func anchorInZone(t time.Time, zone string) (time.Time, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return t, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc), nil
}

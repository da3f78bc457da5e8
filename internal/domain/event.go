package domain

import (
	"errors"
	"time"
)

// Error taxonomy for feed handling.
var (
	// ErrNetwork covers transport failures, timeouts and non-200 responses.
	ErrNetwork = errors.New("feed network failure")
	// ErrDecode means the envelope or the feature collection is malformed.
	ErrDecode = errors.New("feed decode failure")
	// ErrInvalidRecord marks a single feature that failed validation.
	ErrInvalidRecord = errors.New("invalid feed record")
)

// Coordinates is a WGS-84 longitude/latitude pair in GeoJSON order.
type Coordinates struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Quake is one earthquake record from the feed. It is treated as immutable
// once decoded.
type Quake struct {
	ID              string      `json:"id"`
	Code            string      `json:"code"`
	Net             string      `json:"net,omitempty"`
	Coordinates     Coordinates `json:"coordinates"`
	Magnitude       float64     `json:"mag"`
	Place           string      `json:"place"`
	TimestampMillis int64       `json:"time"`
}

// Time returns the origin time in UTC.
func (q Quake) Time() time.Time {
	return time.UnixMilli(q.TimestampMillis).UTC()
}

// Feed is the result of decoding one feed document.
type Feed struct {
	Quakes   []Quake
	Rejected []error
}

package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// callbackRe matches the opening of a script-callback envelope, e.g.
// "eqfeed_callback(" -> "eqfeed_callback".
var callbackRe = regexp.MustCompile(`^([A-Za-z_$][A-Za-z0-9_$.]*)\s*\(`)

// StripEnvelope removes a "callback(...);" wrapper and returns the inner JSON.
// Bare JSON objects are returned as-is. When callback is non-empty the envelope
// must name exactly that callback.
func StripEnvelope(body []byte, callback string) ([]byte, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrDecode)
	}
	if trimmed[0] == '{' {
		return trimmed, nil
	}

	m := callbackRe.FindSubmatch(trimmed)
	if m == nil {
		return nil, fmt.Errorf("%w: missing callback envelope", ErrDecode)
	}
	if callback != "" && string(m[1]) != callback {
		return nil, fmt.Errorf("%w: unexpected callback %q", ErrDecode, m[1])
	}

	rest := bytes.TrimSpace(bytes.TrimSuffix(trimmed, []byte(";")))
	if !bytes.HasSuffix(rest, []byte(")")) || len(rest) <= len(m[0]) {
		return nil, fmt.Errorf("%w: unterminated callback envelope", ErrDecode)
	}
	return bytes.TrimSpace(rest[len(m[0]) : len(rest)-1]), nil
}

// WrapEnvelope wraps a JSON document in a script-callback envelope.
func WrapEnvelope(callback string, data []byte) []byte {
	out := make([]byte, 0, len(callback)+len(data)+3)
	out = append(out, callback...)
	out = append(out, '(')
	out = append(out, data...)
	return append(out, ')', ';')
}

// rawCollection is the outer FeatureCollection with features left undecoded,
// so one malformed feature cannot fail the whole document.
type rawCollection struct {
	Type     string            `json:"type"`
	Features []json.RawMessage `json:"features"`
}

// rawGeometry exposes the coordinate array before orb pads missing ordinates.
type rawGeometry struct {
	Geometry *struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	} `json:"geometry"`
}

// ParseFeed decodes a GeoJSON FeatureCollection into quakes, keeping feed
// order. Features that fail to decode or validate are collected in
// Feed.Rejected.
func ParseFeed(data []byte) (Feed, error) {
	var fc rawCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return Feed{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if fc.Type != "FeatureCollection" {
		return Feed{}, fmt.Errorf("%w: unexpected type %q", ErrDecode, fc.Type)
	}

	feed := Feed{Quakes: make([]Quake, 0, len(fc.Features))}
	for i, raw := range fc.Features {
		q, err := decodeFeature(raw)
		if err != nil {
			feed.Rejected = append(feed.Rejected, fmt.Errorf("feature %d: %w", i, err))
			continue
		}
		feed.Quakes = append(feed.Quakes, q)
	}
	return feed, nil
}

func decodeFeature(raw json.RawMessage) (Quake, error) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return Quake{}, fmt.Errorf("%w: null feature", ErrInvalidRecord)
	}

	var g rawGeometry
	if err := json.Unmarshal(raw, &g); err != nil {
		return Quake{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if g.Geometry == nil {
		return Quake{}, fmt.Errorf("%w: missing geometry", ErrInvalidRecord)
	}
	if g.Geometry.Type == "Point" {
		var coords []float64
		if err := json.Unmarshal(g.Geometry.Coordinates, &coords); err != nil || len(coords) < 2 {
			return Quake{}, fmt.Errorf("%w: point needs longitude and latitude", ErrInvalidRecord)
		}
	}

	f, err := geojson.UnmarshalFeature(raw)
	if err != nil {
		return Quake{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return quakeFromFeature(f)
}

// EncodeFeed renders quakes as a USGS-shaped FeatureCollection.
func EncodeFeed(quakes []Quake) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for _, q := range quakes {
		f := geojson.NewFeature(orb.Point{q.Coordinates.Lon, q.Coordinates.Lat})
		f.ID = q.ID
		f.Properties["code"] = q.Code
		f.Properties["net"] = q.Net
		f.Properties["mag"] = q.Magnitude
		f.Properties["place"] = q.Place
		f.Properties["time"] = q.TimestampMillis
		fc.Append(f)
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode feed: %w", err)
	}
	return data, nil
}

// Validate checks that a decoded quake is safe to draw and index.
func Validate(q Quake) error {
	switch {
	case q.ID == "":
		return fmt.Errorf("%w: missing id", ErrInvalidRecord)
	case q.Code == "":
		return fmt.Errorf("%w: %s: missing code", ErrInvalidRecord, q.ID)
	case math.IsNaN(q.Magnitude) || math.IsInf(q.Magnitude, 0):
		return fmt.Errorf("%w: %s: magnitude is not finite", ErrInvalidRecord, q.ID)
	case q.Coordinates.Lat < -90 || q.Coordinates.Lat > 90:
		return fmt.Errorf("%w: %s: latitude %g out of range", ErrInvalidRecord, q.ID, q.Coordinates.Lat)
	case q.Coordinates.Lon < -180 || q.Coordinates.Lon > 180:
		return fmt.Errorf("%w: %s: longitude %g out of range", ErrInvalidRecord, q.ID, q.Coordinates.Lon)
	}
	return nil
}

func quakeFromFeature(f *geojson.Feature) (Quake, error) {
	if f == nil {
		return Quake{}, fmt.Errorf("%w: null feature", ErrInvalidRecord)
	}

	id := featureID(f.ID)
	pt, ok := f.Geometry.(orb.Point)
	if !ok {
		return Quake{}, fmt.Errorf("%w: %s: geometry is not a point", ErrInvalidRecord, id)
	}
	mag, ok := floatProp(f.Properties, "mag")
	if !ok {
		return Quake{}, fmt.Errorf("%w: %s: missing magnitude", ErrInvalidRecord, id)
	}
	ts, ok := floatProp(f.Properties, "time")
	if !ok {
		return Quake{}, fmt.Errorf("%w: %s: missing time", ErrInvalidRecord, id)
	}

	q := Quake{
		ID:              id,
		Code:            stringProp(f.Properties, "code"),
		Net:             stringProp(f.Properties, "net"),
		Coordinates:     Coordinates{Lon: pt.Lon(), Lat: pt.Lat()},
		Magnitude:       mag,
		Place:           stringProp(f.Properties, "place"),
		TimestampMillis: int64(ts),
	}
	if err := Validate(q); err != nil {
		return Quake{}, err
	}
	return q, nil
}

func featureID(id any) string {
	switch v := id.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func stringProp(p geojson.Properties, key string) string {
	s, _ := p[key].(string)
	return s
}

func floatProp(p geojson.Properties, key string) (float64, bool) {
	f, ok := p[key].(float64)
	return f, ok
}

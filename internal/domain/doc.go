// Package domain models USGS real-time earthquake feed records.
//
// # Data Source
//
// Records come from the USGS Earthquake Hazards Program summary feeds, e.g.
// https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/all_day.geojsonp.
// The feed is regenerated roughly every minute and always contains the full
// window (past hour/day/week), so consecutive polls overlap heavily.
//
// # Envelope
//
// The ".geojsonp" variant wraps the GeoJSON document in a script callback:
//
//	eqfeed_callback({"type":"FeatureCollection","features":[...]});
//
// [StripEnvelope] removes the wrapper. Bare JSON (the ".geojson" variant) is
// accepted unchanged.
//
// # Feature Conventions
//
//	id                      top-level feature id, e.g. "ci40000123" (net + code)
//	properties.code         network-assigned event code, e.g. "40000123"
//	properties.net          contributing network, e.g. "ci", "us", "nc"
//	properties.mag          magnitude, may be null for very recent events
//	properties.place        human-readable place, e.g. "10km NE of Ridgecrest, CA"
//	properties.time         origin time in milliseconds since the Unix epoch
//	geometry.coordinates    [longitude, latitude, depth_km]
//
// Features failing [Validate] are rejected individually and never reach the
// deduplicated stream.
package domain

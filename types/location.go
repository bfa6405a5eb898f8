package types

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64 `firestore:"lat" json:"lat"`
	Lng float64 `firestore:"lng" json:"lng"`
}

// Validate rejects coordinates outside the WGS84 range.
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 {
		return &ValidationError{Field: "lat", Reason: fmt.Sprintf("latitude %v out of range [-90, 90]", p.Lat)}
	}
	if math.IsNaN(p.Lng) || p.Lng < -180 || p.Lng > 180 {
		return &ValidationError{Field: "lng", Reason: fmt.Sprintf("longitude %v out of range [-180, 180]", p.Lng)}
	}
	return nil
}

type BoundingBox struct {
	MinLat float64 `firestore:"minLat" json:"minLat"`
	MaxLat float64 `firestore:"maxLat" json:"maxLat"`
	MinLng float64 `firestore:"minLng" json:"minLng"`
	MaxLng float64 `firestore:"maxLng" json:"maxLng"`
}

// WorldBounds covers every valid coordinate.
var WorldBounds = BoundingBox{MinLat: -90, MaxLat: 90, MinLng: -180, MaxLng: 180}

func (b BoundingBox) Validate() error {
	if err := (Point{Lat: b.MinLat, Lng: b.MinLng}).Validate(); err != nil {
		return &ValidationError{Field: "region", Reason: err.Error()}
	}
	if err := (Point{Lat: b.MaxLat, Lng: b.MaxLng}).Validate(); err != nil {
		return &ValidationError{Field: "region", Reason: err.Error()}
	}
	if b.MinLat > b.MaxLat {
		return &ValidationError{Field: "region", Reason: "minLat is greater than maxLat"}
	}
	if b.MinLng > b.MaxLng {
		return &ValidationError{Field: "region", Reason: "minLng is greater than maxLng"}
	}
	return nil
}

func (b BoundingBox) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}

// Key is an exact textual form of the box, used in cache keys. Distinct boxes
// never share a key.
func (b BoundingBox) Key() string {
	parts := []string{
		strconv.FormatFloat(b.MinLat, 'g', -1, 64),
		strconv.FormatFloat(b.MinLng, 'g', -1, 64),
		strconv.FormatFloat(b.MaxLat, 'g', -1, 64),
		strconv.FormatFloat(b.MaxLng, 'g', -1, 64),
	}
	return strings.Join(parts, ",")
}

// FormatCoordinate renders a point as "13.7563°N, 100.5018°E".
func FormatCoordinate(p Point) string {
	ns, ew := "N", "E"
	if p.Lat < 0 {
		ns = "S"
	}
	if p.Lng < 0 {
		ew = "W"
	}
	return fmt.Sprintf("%.4f°%s, %.4f°%s", math.Abs(p.Lat), ns, math.Abs(p.Lng), ew)
}

package geocode

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"googlemaps.github.io/maps"

	"go-outbreak/types"
)

type fakeGeocoder struct {
	mu      sync.Mutex
	calls   int
	results []maps.GeocodingResult
	err     error
}

func (f *fakeGeocoder) ReverseGeocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.results, f.err
}

var bangkok = types.Point{Lat: 13.7563, Lng: 100.5018}

func bangkokResults() []maps.GeocodingResult {
	return []maps.GeocodingResult{{
		FormattedAddress: "Phra Nakhon, Bangkok 10200, Thailand",
		AddressComponents: []maps.AddressComponent{
			{LongName: "Phra Nakhon", Types: []string{"sublocality"}},
			{LongName: "Bangkok", Types: []string{"locality", "political"}},
			{LongName: "Thailand", Types: []string{"country", "political"}},
		},
	}}
}

func TestLabel_NilClientUsesCoordinate(t *testing.T) {
	l := NewLabeler(nil, zap.NewNop())
	assert.Equal(t, "13.7563°N, 100.5018°E", l.Label(context.Background(), bangkok))
}

func TestLabel_LocalityAndCountry(t *testing.T) {
	g := &fakeGeocoder{results: bangkokResults()}
	l := NewLabeler(g, zap.NewNop())
	assert.Equal(t, "Bangkok, Thailand", l.Label(context.Background(), bangkok))
}

func TestLabel_Memoised(t *testing.T) {
	g := &fakeGeocoder{results: bangkokResults()}
	l := NewLabeler(g, zap.NewNop())

	l.Label(context.Background(), bangkok)
	l.Label(context.Background(), types.Point{Lat: 13.7564, Lng: 100.5019})
	assert.Equal(t, 1, g.calls)

	l.Label(context.Background(), types.Point{Lat: 18.7883, Lng: 98.9853})
	assert.Equal(t, 2, g.calls)
}

func TestLabel_ErrorFallsBack(t *testing.T) {
	g := &fakeGeocoder{err: errors.New("OVER_QUERY_LIMIT")}
	l := NewLabeler(g, zap.NewNop())

	assert.Equal(t, "13.7563°N, 100.5018°E", l.Label(context.Background(), bangkok))
	// failures are not memoised
	l.Label(context.Background(), bangkok)
	assert.Equal(t, 2, g.calls)
}

func TestLabel_EmptyResults(t *testing.T) {
	l := NewLabeler(&fakeGeocoder{}, zap.NewNop())
	assert.Equal(t, "33.8688°S, 151.2093°E", l.Label(context.Background(), types.Point{Lat: -33.8688, Lng: 151.2093}))
}

func TestPlaceName(t *testing.T) {
	assert.Equal(t, "", placeName(nil))
	assert.Equal(t, "Some Address", placeName([]maps.GeocodingResult{{FormattedAddress: " Some Address "}}))
	assert.Equal(t, "Ontario, Canada", placeName([]maps.GeocodingResult{{
		AddressComponents: []maps.AddressComponent{
			{LongName: "Ontario", Types: []string{"administrative_area_level_1"}},
			{LongName: "Canada", Types: []string{"country"}},
		},
	}}))
	assert.Equal(t, "Canada", placeName([]maps.GeocodingResult{{
		AddressComponents: []maps.AddressComponent{{LongName: "Canada", Types: []string{"country"}}},
	}}))
}

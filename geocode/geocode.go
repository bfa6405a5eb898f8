package geocode

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"googlemaps.github.io/maps"

	"go-outbreak/types"
)

// mapsClient is a singleton maps client instance.
var (
	mapsClient *maps.Client
	clientOnce sync.Once
	clientErr  error
)

// InitMapsClient initializes and returns a singleton Google Maps client.
func InitMapsClient(apiKey string) (*maps.Client, error) {
	clientOnce.Do(func() {
		if apiKey == "" {
			clientErr = errors.New("MAPS_CREDENTIALS environment variable not set")
			return
		}
		mapsClient, clientErr = maps.NewClient(maps.WithAPIKey(apiKey))
		if clientErr != nil {
			clientErr = fmt.Errorf("failed to create maps client: %w", clientErr)
		}
	})
	return mapsClient, clientErr
}

// ReverseGeocoder is the part of *maps.Client the labeler needs.
type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}

const (
	lookupTimeout = 5 * time.Second
	// labels are memoised per ~1km cell
	memoPrecision = 100.0
)

// Labeler turns cluster centroids into human readable place names. A nil client
// or a failed lookup falls back to the formatted coordinate.
type Labeler struct {
	client ReverseGeocoder
	logger *zap.Logger

	mu   sync.Mutex
	memo map[[2]int64]string
}

func NewLabeler(client ReverseGeocoder, logger *zap.Logger) *Labeler {
	return &Labeler{client: client, logger: logger, memo: make(map[[2]int64]string)}
}

func (l *Labeler) Label(ctx context.Context, p types.Point) string {
	if l.client == nil {
		return types.FormatCoordinate(p)
	}

	key := [2]int64{int64(math.Round(p.Lat * memoPrecision)), int64(math.Round(p.Lng * memoPrecision))}
	l.mu.Lock()
	label, ok := l.memo[key]
	l.mu.Unlock()
	if ok {
		return label
	}

	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	results, err := l.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: p.Lat, Lng: p.Lng},
	})
	if err != nil {
		l.logger.Warn("Reverse geocoding failed", zap.Float64("lat", p.Lat), zap.Float64("lng", p.Lng), zap.Error(err))
		return types.FormatCoordinate(p)
	}

	label = placeName(results)
	if label == "" {
		label = types.FormatCoordinate(p)
	}

	l.mu.Lock()
	l.memo[key] = label
	l.mu.Unlock()
	return label
}

// placeName prefers "locality, country" and falls back to the first formatted address.
func placeName(results []maps.GeocodingResult) string {
	if len(results) == 0 {
		return ""
	}
	var locality, region, country string
	for _, r := range results {
		for _, c := range r.AddressComponents {
			for _, t := range c.Types {
				switch t {
				case "locality":
					if locality == "" {
						locality = c.LongName
					}
				case "administrative_area_level_1":
					if region == "" {
						region = c.LongName
					}
				case "country":
					if country == "" {
						country = c.LongName
					}
				}
			}
		}
	}
	place := locality
	if place == "" {
		place = region
	}
	if place != "" && country != "" && place != country {
		return place + ", " + country
	}
	if place != "" {
		return place
	}
	if country != "" {
		return country
	}
	return strings.TrimSpace(results[0].FormattedAddress)
}

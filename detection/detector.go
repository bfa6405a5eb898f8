package detection

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go-outbreak/types"
)

const (
	DefaultRadiusKM  = 55.5 // ~0.5 degrees of latitude
	DefaultMinPoints = 3

	dominantSymptomCount = 3
	minRadiusDeg         = 0.1
	radiusDegPerSqrt     = 0.2

	noise      = -1
	unassigned = 0
)

// clusterNamespace seeds the SHA-1 ids so that the same membership always gets the same id.
var clusterNamespace = uuid.MustParse("6f1c2a8e-4b7d-5e21-9c3a-0d8e7f61b2a4")

type RadiusStyle string

const (
	// RadiusByDensity is used by outbreak detection: max(0.1, sqrt(n)*0.2) degrees.
	RadiusByDensity RadiusStyle = "density"
	// RadiusBySize steps the radius up with member count, for live map rendering.
	RadiusBySize RadiusStyle = "size"
)

type Options struct {
	RadiusKM    float64
	MinPoints   int
	Metric      DistanceMetric
	RadiusStyle RadiusStyle
}

func DefaultOptions() Options {
	return Options{
		RadiusKM:    DefaultRadiusKM,
		MinPoints:   DefaultMinPoints,
		Metric:      MetricHaversine,
		RadiusStyle: RadiusByDensity,
	}
}

func (o Options) Validate() error {
	if math.IsNaN(o.RadiusKM) || o.RadiusKM <= 0 {
		return &types.ValidationError{Field: "radiusKm", Reason: "must be positive"}
	}
	// A single point must never seed a cluster on its own.
	if o.MinPoints < 2 {
		return &types.ValidationError{Field: "minPoints", Reason: "must be at least 2"}
	}
	switch o.Metric {
	case MetricHaversine, MetricPlanar:
	default:
		return &types.ValidationError{Field: "metric", Reason: fmt.Sprintf("unknown distance metric %q", o.Metric)}
	}
	switch o.RadiusStyle {
	case RadiusByDensity, RadiusBySize:
	default:
		return &types.ValidationError{Field: "radiusStyle", Reason: fmt.Sprintf("unknown radius style %q", o.RadiusStyle)}
	}
	return nil
}

// Group is one finalized cluster and the reports it was built from.
type Group struct {
	Cluster types.OutbreakCluster
	Members []types.SymptomReport
}

// Cluster groups reports with DBSCAN. Reports are visited in input order, so a
// fixed input gives a fixed output. Reports that never reach the density
// threshold are noise and do not appear in any group.
func Cluster(reports []types.SymptomReport, opts Options) ([]Group, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(reports) < opts.MinPoints {
		return []Group{}, nil
	}

	labels := make([]int, len(reports))
	clusterCount := 0

	for i := range reports {
		if labels[i] != unassigned {
			continue
		}

		seedNeighbors := regionQuery(reports, i, opts)
		if len(seedNeighbors) < opts.MinPoints {
			labels[i] = noise
			continue
		}

		clusterCount++
		labels[i] = clusterCount

		queue := seedNeighbors
		for q := 0; q < len(queue); q++ {
			j := queue[q]
			if labels[j] == noise {
				// border point, reachable but not dense itself
				labels[j] = clusterCount
			}
			if labels[j] != unassigned {
				continue
			}
			labels[j] = clusterCount

			neighbors := regionQuery(reports, j, opts)
			if len(neighbors) >= opts.MinPoints {
				queue = append(queue, neighbors...)
			}
		}
	}

	members := make([][]types.SymptomReport, clusterCount)
	for i, label := range labels {
		if label > 0 {
			members[label-1] = append(members[label-1], reports[i])
		}
	}

	groups := make([]Group, 0, clusterCount)
	for _, m := range members {
		groups = append(groups, Group{
			Cluster: createClusterFromMembers(m, opts.RadiusStyle),
			Members: m,
		})
	}
	return groups, nil
}

// regionQuery returns the indices of every report within the radius of reports[idx], itself included.
func regionQuery(reports []types.SymptomReport, idx int, opts Options) []int {
	var out []int
	for j := range reports {
		if j == idx || distanceKM(opts.Metric, reports[idx].Location, reports[j].Location) <= opts.RadiusKM {
			out = append(out, j)
		}
	}
	return out
}

// createClusterFromMembers aggregates member reports into an OutbreakCluster.
// Scoring and labelling are left to later stages.
func createClusterFromMembers(members []types.SymptomReport, style RadiusStyle) types.OutbreakCluster {
	cluster := types.OutbreakCluster{
		MemberCount: len(members),
		MemberIDs:   make([]string, 0, len(members)),
		Tier:        types.TierNormal,
		BoundingBox: types.BoundingBox{
			MinLat: members[0].Location.Lat, MaxLat: members[0].Location.Lat,
			MinLng: members[0].Location.Lng, MaxLng: members[0].Location.Lng,
		},
	}

	var sumLat, sumLng, sumSeverity float64
	earliest, latest := members[0].CreatedAt, members[0].CreatedAt

	for _, r := range members {
		cluster.MemberIDs = append(cluster.MemberIDs, r.ID)

		if r.Location.Lat < cluster.BoundingBox.MinLat {
			cluster.BoundingBox.MinLat = r.Location.Lat
		}
		if r.Location.Lat > cluster.BoundingBox.MaxLat {
			cluster.BoundingBox.MaxLat = r.Location.Lat
		}
		if r.Location.Lng < cluster.BoundingBox.MinLng {
			cluster.BoundingBox.MinLng = r.Location.Lng
		}
		if r.Location.Lng > cluster.BoundingBox.MaxLng {
			cluster.BoundingBox.MaxLng = r.Location.Lng
		}

		sumLat += r.Location.Lat
		sumLng += r.Location.Lng
		sumSeverity += float64(r.Severity)

		if r.CreatedAt.Before(earliest) {
			earliest = r.CreatedAt
		}
		if r.CreatedAt.After(latest) {
			latest = r.CreatedAt
		}
	}

	count := float64(len(members))
	cluster.Centroid = types.Point{Lat: sumLat / count, Lng: sumLng / count}
	cluster.AvgSeverity = sumSeverity / count
	cluster.RadiusDeg = clusterRadius(len(members), style)
	cluster.DominantSymptoms = dominantSymptoms(members, dominantSymptomCount)
	cluster.FirstDetectedAt = earliest
	cluster.GrowthRate = growthRate(len(members), earliest, latest)

	sort.Strings(cluster.MemberIDs)
	cluster.ID = uuid.NewSHA1(clusterNamespace, []byte(strings.Join(cluster.MemberIDs, ","))).String()

	return cluster
}

func clusterRadius(count int, style RadiusStyle) float64 {
	if style == RadiusBySize {
		switch {
		case count < 5:
			return 0.1
		case count < 10:
			return 0.25
		case count < 25:
			return 0.5
		default:
			return 1.0
		}
	}
	return math.Max(minRadiusDeg, math.Sqrt(float64(count))*radiusDegPerSqrt)
}

// growthRate is reports per day over the span the members cover, with a one-day floor.
func growthRate(count int, earliest, latest time.Time) float64 {
	days := latest.Sub(earliest).Hours() / 24
	if days < 1 {
		days = 1
	}
	return float64(count) / days
}

// dominantSymptoms returns the k most frequent tags; ties go to the tag seen first.
func dominantSymptoms(members []types.SymptomReport, k int) []string {
	counts := make(map[string]int)
	var order []string
	for _, r := range members {
		for _, s := range r.Symptoms {
			tag := strings.ToLower(strings.TrimSpace(s))
			if tag == "" {
				continue
			}
			if _, seen := counts[tag]; !seen {
				order = append(order, tag)
			}
			counts[tag]++
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > k {
		order = order[:k]
	}
	if order == nil {
		return []string{}
	}
	return order
}

// Package geo holds the pure scoring math used by task/tasker matching.
package geo

import (
	"math"
	"strings"
)

const (
	EarthRadiusKm = 6371.0

	// SkillPoints is awarded per required skill the candidate has.
	SkillPoints = 10.0
	// ProximityHorizonKm is where the proximity bonus decays to zero.
	ProximityHorizonKm = 50.0
)

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lng float64 `json:"lng" bson:"lng"`
}

func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// HaversineKm returns the great-circle distance between a and b.
func HaversineKm(a, b Point) float64 {
	phi1 := radians(a.Lat)
	phi2 := radians(b.Lat)
	dPhi := radians(b.Lat - a.Lat)
	dLambda := radians(b.Lng - a.Lng)

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)
	h := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda

	// rounding can push h just outside [0,1] for antipodal points
	h = math.Min(1, math.Max(0, h))

	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

// SkillOverlap counts the distinct required skills present in candidate.
// Comparison is case-insensitive and ignores surrounding whitespace.
func SkillOverlap(candidate, required []string) int {
	if len(candidate) == 0 || len(required) == 0 {
		return 0
	}

	have := make(map[string]struct{}, len(candidate))
	for _, s := range candidate {
		have[NormalizeSkill(s)] = struct{}{}
	}

	seen := make(map[string]struct{}, len(required))
	overlap := 0
	for _, s := range required {
		key := NormalizeSkill(s)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if _, ok := have[key]; ok {
			overlap++
		}
	}
	return overlap
}

// Score weights skill relevance over proximity: 10 points per matched skill
// plus up to 50 points decaying linearly to zero at 50 km. An infinite
// distance contributes nothing.
func Score(distanceKm float64, skillOverlap int) float64 {
	proximity := 0.0
	if !math.IsInf(distanceKm, 1) && !math.IsNaN(distanceKm) {
		proximity = math.Max(0, ProximityHorizonKm-distanceKm)
	}
	return float64(skillOverlap)*SkillPoints + proximity
}

func NormalizeSkill(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

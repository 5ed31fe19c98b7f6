package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

var hyderabad = Point{Lat: 17.3850, Lng: 78.4741}

// pointNorthOf moves p km kilometres due north along its meridian.
func pointNorthOf(p Point, km float64) Point {
	return Point{Lat: p.Lat + (km/EarthRadiusKm)*180/math.Pi, Lng: p.Lng}
}

func TestHaversineKm_SymmetricAndZero(t *testing.T) {
	points := []Point{
		hyderabad,
		{Lat: 51.5074, Lng: -0.1278},
		{Lat: -33.8688, Lng: 151.2093},
		{Lat: 90, Lng: 0},
		{Lat: -90, Lng: 45},
		{Lat: 0, Lng: 180},
		{Lat: 0, Lng: -180},
	}

	for _, a := range points {
		assert.Equal(t, 0.0, HaversineKm(a, a))
		for _, b := range points {
			assert.InDelta(t, HaversineKm(a, b), HaversineKm(b, a), 1e-9)
		}
	}
}

func TestHaversineKm_KnownDistances(t *testing.T) {
	london := Point{Lat: 51.5074, Lng: -0.1278}
	paris := Point{Lat: 48.8566, Lng: 2.3522}
	assert.InDelta(t, 343.5, HaversineKm(london, paris), 1.0)

	assert.InDelta(t, 60.0, HaversineKm(hyderabad, pointNorthOf(hyderabad, 60)), 1e-6)
}

func TestHaversineKm_Antipodal(t *testing.T) {
	a := Point{Lat: 10, Lng: 20}
	b := Point{Lat: -10, Lng: -160}

	d := HaversineKm(a, b)
	assert.False(t, math.IsNaN(d))
	assert.InDelta(t, math.Pi*EarthRadiusKm, d, 1e-3)
}

func TestSkillOverlap(t *testing.T) {
	assert.Equal(t, 1, SkillOverlap([]string{"plumbing", "cleaning"}, []string{"plumbing"}))
	assert.Equal(t, 2, SkillOverlap([]string{"Plumbing", " cleaning "}, []string{"plumbing", "cleaning", "gardening"}))
	assert.Equal(t, 1, SkillOverlap([]string{"plumbing"}, []string{"plumbing", "PLUMBING"}))
	assert.Equal(t, 0, SkillOverlap(nil, []string{"plumbing"}))
	assert.Equal(t, 0, SkillOverlap([]string{"plumbing"}, nil))
}

func TestScore(t *testing.T) {
	assert.Equal(t, 60.0, Score(0, 1))
	assert.Equal(t, 10.0, Score(60, 1))
	assert.Equal(t, 0.0, Score(math.Inf(1), 0))
	assert.Equal(t, 20.0, Score(math.Inf(1), 2))
}

func TestScore_Monotonic(t *testing.T) {
	for overlap := 0; overlap < 5; overlap++ {
		prev := math.Inf(1)
		for d := 0.0; d <= 80; d += 2.5 {
			s := Score(d, overlap)
			assert.LessOrEqual(t, s, prev, "score must not increase with distance")
			prev = s
		}
	}

	for _, d := range []float64{0, 12.5, 49.9, 50, 120} {
		for overlap := 0; overlap < 5; overlap++ {
			assert.Greater(t, Score(d, overlap+1), Score(d, overlap))
		}
	}
}

func TestPoint_Valid(t *testing.T) {
	assert.True(t, hyderabad.Valid())
	assert.False(t, Point{Lat: 91, Lng: 0}.Valid())
	assert.False(t, Point{Lat: 0, Lng: -181}.Valid())
	assert.False(t, Point{Lat: math.NaN(), Lng: 0}.Valid())
}

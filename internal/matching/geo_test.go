package matching

import (
	"errors"
	"math"
	"testing"
)

func TestDistanceKm(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want                   float64
	}{
		{"same point", 51.5074, -0.1278, 51.5074, -0.1278, 0},
		{"london to paris", 51.5074, -0.1278, 48.8566, 2.3522, 343},
		{"lagos to abuja", 6.5244, 3.3792, 9.0765, 7.3986, 525},
		{"one degree of longitude at the equator", 0, 0, 0, 1, 111},
		{"antipodes", 0, 0, 0, 180, 20015},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DistanceKm(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("DistanceKm = %v, want %v", got, tt.want)
			}
			if got != math.Trunc(got) {
				t.Errorf("DistanceKm = %v, want a whole number", got)
			}
		})
	}
}

func TestDistanceKmSymmetric(t *testing.T) {
	a, _ := DistanceKm(40.7128, -74.0060, 34.0522, -118.2437)
	b, _ := DistanceKm(34.0522, -118.2437, 40.7128, -74.0060)
	if a != b {
		t.Errorf("distance not symmetric: %v vs %v", a, b)
	}
}

func TestDistanceKmRejectsInvalidCoordinates(t *testing.T) {
	bad := [][4]float64{
		{91, 0, 0, 0},
		{0, 181, 0, 0},
		{0, 0, -90.5, 0},
		{0, 0, 0, -181},
		{math.NaN(), 0, 0, 0},
	}
	for _, c := range bad {
		if _, err := DistanceKm(c[0], c[1], c[2], c[3]); !errors.Is(err, ErrValidation) {
			t.Errorf("DistanceKm(%v) error = %v, want ErrValidation", c, err)
		}
	}
}

func TestBoundingBox(t *testing.T) {
	box := NewBoundingBox(6.5244, 3.3792, 50)

	if !box.Contains(6.5244, 3.3792) {
		t.Error("box should contain its centre")
	}
	if !box.Contains(6.6, 3.5) {
		t.Error("box should contain a point ~15km away")
	}
	if box.Contains(9.0765, 7.3986) {
		t.Error("box should not contain a point ~500km away")
	}

	// Every point within the radius must be inside the box.
	for _, p := range [][2]float64{{6.9, 3.3792}, {6.5244, 3.8}, {6.15, 2.95}} {
		d, _ := DistanceKm(6.5244, 3.3792, p[0], p[1])
		if d <= 50 && !box.Contains(p[0], p[1]) {
			t.Errorf("point %v at %vkm is outside the box", p, d)
		}
	}
}

func TestBoundingBoxEdges(t *testing.T) {
	polar := NewBoundingBox(89.9, 10, 100)
	if polar.MaxLat != 90 || polar.MinLon != -180 || polar.MaxLon != 180 {
		t.Errorf("polar box = %+v, want clamped latitude and full longitude", polar)
	}

	dateline := NewBoundingBox(0, 179.9, 100)
	if dateline.MinLon != -180 || dateline.MaxLon != 180 {
		t.Errorf("antimeridian box = %+v, want full longitude", dateline)
	}
	if !dateline.Contains(0, -179.9) {
		t.Error("antimeridian box should contain points across the dateline")
	}
}

// destination returns the point distanceKm from (lat, lon) along bearing degrees.
func destination(lat, lon, distanceKm, bearing float64) (float64, float64) {
	phi1, lambda1 := toRadians(lat), toRadians(lon)
	theta, delta := toRadians(bearing), distanceKm/earthRadiusKm

	phi2 := math.Asin(math.Sin(phi1)*math.Cos(delta) + math.Cos(phi1)*math.Sin(delta)*math.Cos(theta))
	lambda2 := lambda1 + math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(phi1),
		math.Cos(delta)-math.Sin(phi1)*math.Sin(phi2),
	)
	lon2 := math.Mod(lambda2*180/math.Pi+540, 360) - 180
	return phi2 * 180 / math.Pi, lon2
}

func TestBoundingBoxCoversCircleEdge(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		radiusKm float64
	}{
		{"equator", 0, 0, 500},
		{"mid latitude", 45, 10, 500},
		{"high latitude", 80, 0, 500},
		{"high southern latitude", -80, 30, 500},
		{"small radius far north", 75, -40, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			box := NewBoundingBox(tt.lat, tt.lon, tt.radiusKm)
			// Distances are truncated, so half a kilometre past the radius still counts.
			for _, dist := range []float64{tt.radiusKm - 0.1, tt.radiusKm + 0.5} {
				for bearing := 0.0; bearing < 360; bearing += 5 {
					lat, lon := destination(tt.lat, tt.lon, dist, bearing)
					d, err := DistanceKm(tt.lat, tt.lon, lat, lon)
					if err != nil {
						t.Fatalf("DistanceKm: %v", err)
					}
					if d <= tt.radiusKm && !box.Contains(lat, lon) {
						t.Errorf("point (%.4f, %.4f) at %vkm, bearing %v, is outside %+v", lat, lon, d, bearing, box)
					}
				}
			}
		})
	}
}

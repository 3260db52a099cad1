package matching

import "math"

const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance between two points using the
// haversine formula, truncated to whole kilometres.
func DistanceKm(lat1, lon1, lat2, lon2 float64) (float64, error) {
	if !validCoordinate(lat1, lon1) {
		return 0, validationErrorf("invalid coordinate (%v, %v)", lat1, lon1)
	}
	if !validCoordinate(lat2, lon2) {
		return 0, validationErrorf("invalid coordinate (%v, %v)", lat2, lon2)
	}

	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	// Rounding can push a slightly past 1 for antipodal points.
	a = math.Min(1, math.Max(0, a))
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return math.Trunc(earthRadiusKm * c), nil
}

func validCoordinate(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// BoundingBox is a coarse lat/lon rectangle enclosing a search radius.
// It over-approximates the circle and is only used to shrink candidate pools.
type BoundingBox struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// NewBoundingBox returns the box enclosing radiusKm around (lat, lon). Boxes
// touching a pole or crossing the antimeridian span every longitude.
func NewBoundingBox(lat, lon, radiusKm float64) BoundingBox {
	// DistanceKm truncates, so points up to a kilometre past the radius still pass.
	angular := (radiusKm + 1) / earthRadiusKm
	dLat := angular * 180 / math.Pi
	box := BoundingBox{
		MinLat: lat - dLat,
		MaxLat: lat + dLat,
		MinLon: -180,
		MaxLon: 180,
	}

	if box.MinLat <= -90 || box.MaxLat >= 90 {
		box.MinLat = math.Max(box.MinLat, -90)
		box.MaxLat = math.Min(box.MaxLat, 90)
		return box
	}

	// The widest point of the circle lies poleward of its centre, so the
	// half-width is asin(sin(r)/cos(lat)) rather than r/cos(lat).
	ratio := math.Sin(angular) / math.Cos(toRadians(lat))
	if ratio >= 1 {
		return box
	}
	dLon := math.Asin(ratio) * 180 / math.Pi
	if lon-dLon >= -180 && lon+dLon <= 180 {
		box.MinLon = lon - dLon
		box.MaxLon = lon + dLon
	}
	return box
}

func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

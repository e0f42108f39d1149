package geo

import "math"

const (
	earthRadiusM    = 6371000.0
	metersPerDegLat = 111320.0
)

// HaversineM returns the great-circle distance between two coordinates in
// meters.
func HaversineM(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * earthRadiusM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// offsetCoord shifts a coordinate by dx meters east and dy meters north.
// Good enough at city scale; not meant for polar regions.
func offsetCoord(lat, lng, dxM, dyM float64) (float64, float64) {
	newLat := lat + dyM/metersPerDegLat
	newLng := lng + dxM/(metersPerDegLat*math.Cos(lat*math.Pi/180))
	return newLat, newLng
}

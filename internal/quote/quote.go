// Package quote prices a tow from the straight-line distance between two points.
package quote

import (
	"errors"
	"math"
)

const earthRadiusKm = 6371.0

var ErrInvalidCoordinate = errors.New("invalid coordinate")

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (p Point) valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180 &&
		!math.IsNaN(p.Lat) && !math.IsNaN(p.Lng)
}

// Tariff is a linear price with a floor.
type Tariff struct {
	BaseFee    float64
	PerKm      float64
	MinimumFee float64
}

type Quote struct {
	DistanceKm float64 `json:"distancia_km"`
	Price      float64 `json:"valor"`
}

// Distance returns the great-circle distance in kilometres.
func Distance(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := lat2 - lat1
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Estimate prices the trip from origin to destination. Values are rounded to cents
// and the distance to metres.
func (t Tariff) Estimate(origin, destination Point) (Quote, error) {
	if !origin.valid() || !destination.valid() {
		return Quote{}, ErrInvalidCoordinate
	}
	km := Distance(origin, destination)
	price := t.BaseFee + t.PerKm*km
	if price < t.MinimumFee {
		price = t.MinimumFee
	}
	return Quote{
		DistanceKm: math.Round(km*1000) / 1000,
		Price:      math.Round(price*100) / 100,
	}, nil
}

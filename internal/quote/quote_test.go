package quote

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	saoPaulo = Point{Lat: -23.5505, Lng: -46.6333}
	rio      = Point{Lat: -22.9068, Lng: -43.1729}
)

func TestDistance(t *testing.T) {
	assert.InDelta(t, 357, Distance(saoPaulo, rio), 3)
	assert.InDelta(t, Distance(saoPaulo, rio), Distance(rio, saoPaulo), 1e-9)
	assert.Zero(t, Distance(saoPaulo, saoPaulo))
}

func TestEstimate(t *testing.T) {
	tariff := Tariff{BaseFee: 80, PerKm: 4.5, MinimumFee: 120}

	q, err := tariff.Estimate(saoPaulo, rio)
	require.NoError(t, err)
	assert.InDelta(t, 80+4.5*q.DistanceKm, q.Price, 0.01)

	short, err := tariff.Estimate(saoPaulo, Point{Lat: -23.5510, Lng: -46.6340})
	require.NoError(t, err)
	assert.Equal(t, 120.0, short.Price)
}

func TestEstimateRejectsInvalidPoints(t *testing.T) {
	tariff := Tariff{BaseFee: 80, PerKm: 4.5}
	_, err := tariff.Estimate(Point{Lat: 91}, rio)
	assert.ErrorIs(t, err, ErrInvalidCoordinate)
	_, err = tariff.Estimate(saoPaulo, Point{Lng: -181})
	assert.ErrorIs(t, err, ErrInvalidCoordinate)
}

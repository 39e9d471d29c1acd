package geo

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

var ErrInvalidCoordinates = errors.New("invalid coordinates")

// PublicPrecision is the number of decimal places kept for coordinates shown
// before purchase, roughly one kilometre.
const PublicPrecision int32 = 2

func Validate(lat, lng float64) error {
	if !finite(lat) || !finite(lng) {
		return ErrInvalidCoordinates
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}

// Approximate rounds a coordinate to places decimals. Nil stays nil.
func Approximate(coord *float64, places int32) *float64 {
	if coord == nil {
		return nil
	}
	rounded, _ := decimal.NewFromFloat(*coord).Round(places).Float64()
	return &rounded
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

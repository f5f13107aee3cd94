// Package geo считает расстояния и отбирает исполнителей для срочного гига.
// Пакет чистый: без БД и сети, всё время в UTC.
package geo

import (
	"math"
)

// EarthRadiusKm средний радиус Земли по IUGG.
const EarthRadiusKm = 6371.0088

type Point struct {
	Lat float64
	Lng float64
}

// Valid проверяет диапазоны широты и долготы.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Haversine возвращает расстояние по большому кругу в километрах.
func Haversine(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

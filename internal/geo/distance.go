// Package geo 提供球面距离与澳洲坐标校验。
package geo

import "math"

const earthRadiusKm = 6371.0

// Point 表示一个经纬度点。
type Point struct {
	Lat float64
	Lng float64
}

// HaversineKm 返回两点之间的大圆距离（公里）。
func HaversineKm(a, b Point) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}

// Australia 大陆及塔斯马尼亚的粗略边界。
var australia = struct {
	minLat, maxLat, minLng, maxLng float64
}{minLat: -44.0, maxLat: -10.0, minLng: 112.0, maxLng: 154.0}

// InAustralia 判断坐标是否落在澳洲范围内。
func InAustralia(p Point) bool {
	return p.Lat >= australia.minLat && p.Lat <= australia.maxLat &&
		p.Lng >= australia.minLng && p.Lng <= australia.maxLng
}

// LooksSwapped 经纬度互换后才落在澳洲时返回 true。
func LooksSwapped(p Point) bool {
	return !InAustralia(p) && InAustralia(Point{Lat: p.Lng, Lng: p.Lat})
}

package model

import "github.com/sells-group/spc/internal/msoa"

// LatLng is a WGS84 coordinate in degrees.
type LatLng struct {
	Lat float64
	Lon float64
}

// AreaInfo is the static, commuting-relevant description of one area.
type AreaInfo struct {
	Code           msoa.Code
	Directory      string // name of the venue directory the counts came from
	Centroid       LatLng
	GeometryWKB    []byte // EWKB, SRID 4326
	VenueCounts    CategoryCounts
	Attractiveness CategoryValues
}

// DayAdjustment scales nominal activity durations for one day.
type DayAdjustment struct {
	Day         int // days since the pipeline epoch
	Multipliers CategoryValues
}

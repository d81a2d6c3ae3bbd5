package model

import (
	"time"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/spc/internal/msoa"
)

// Sex follows the census coding: 1 male, 2 female.
type Sex int

const (
	SexMale   Sex = 1
	SexFemale Sex = 2
)

// DiaryRecord is one row of travel-diary microdata: a person in a household of an
// area, with the fraction of the sample day spent in each activity category.
type DiaryRecord struct {
	Area      msoa.Code
	Household string
	Person    string
	Age       int
	Sex       Sex
	NSSEC     int            // NS-SeC 8-class, -1 when unknown
	Fractions CategoryValues // fraction of the day per category
}

// Usable reports whether the record carries a diary with any time recorded.
func (r DiaryRecord) Usable() bool {
	return r.Fractions.Total() > 0
}

// Venue is a point of interest from a venue directory.
type Venue struct {
	Lon, Lat float64
	Class    string // raw directory class, e.g. "supermarket"
	Category Category
}

// VenueDirectory is one extracted regional venue directory.
type VenueDirectory struct {
	Name   string
	Path   string
	Bounds *geom.Bounds
	Venues []Venue
}

// BoundsArea returns the bounding-box area in squared degrees, used for precedence.
func (d *VenueDirectory) BoundsArea() float64 {
	if d == nil || d.Bounds == nil || d.Bounds.IsEmpty() {
		return 0
	}
	return (d.Bounds.Max(0) - d.Bounds.Min(0)) * (d.Bounds.Max(1) - d.Bounds.Min(1))
}

// Covers reports whether the directory bounds contain the given point.
func (d *VenueDirectory) Covers(p LatLng) bool {
	if d == nil || d.Bounds == nil {
		return false
	}
	return d.Bounds.OverlapsPoint(geom.XY, geom.Coord{p.Lon, p.Lat})
}

// Boundary is the polygon of one area.
type Boundary struct {
	Area     msoa.Code
	Geometry *geom.MultiPolygon
}

// MobilityRecord is one day of mobility change for an area, as percentage change from
// baseline per category. A nil entry means the source had no value that day.
type MobilityRecord struct {
	Date    time.Time
	Changes [NumCategories]*float64
}

package model

import (
	"fmt"

	"github.com/sells-group/spc/internal/msoa"
)

// AcquisitionFailure reports a raw dataset family that could not be fetched.
type AcquisitionFailure struct {
	Family string
	Source string
	Err    error
}

func (e *AcquisitionFailure) Error() string {
	return fmt.Sprintf("acquire %s from %s: %v", e.Family, e.Source, e.Err)
}

func (e *AcquisitionFailure) Unwrap() error { return e.Err }

// MissingAreaInfo reports a requested area without geographic or venue coverage.
type MissingAreaInfo struct {
	Area   msoa.Code
	Reason string
}

func (e *MissingAreaInfo) Error() string {
	return fmt.Sprintf("missing area info for %s: %s", e.Area, e.Reason)
}

// UnknownArea reports a seed-case area that was never requested.
type UnknownArea struct {
	Area msoa.Code
}

func (e *UnknownArea) Error() string {
	return fmt.Sprintf("initial cases given for %s, which was not requested", e.Area)
}

// InsufficientDiaryCoverage reports an area with no usable travel-diary template.
type InsufficientDiaryCoverage struct {
	Area    msoa.Code
	Stratum string
}

func (e *InsufficientDiaryCoverage) Error() string {
	if e.Stratum == "" {
		return fmt.Sprintf("no diary records for %s", e.Area)
	}
	return fmt.Sprintf("no usable diary template for %s in stratum %s", e.Area, e.Stratum)
}

// EmptyMobilitySeries reports mobility data that exists for an area but has no days.
type EmptyMobilitySeries struct {
	Area msoa.Code
}

func (e *EmptyMobilitySeries) Error() string {
	return fmt.Sprintf("mobility series for %s is empty", e.Area)
}

// CacheInconsistency reports a violated study-area cache invariant. Fatal.
type CacheInconsistency struct {
	Detail string
}

func (e *CacheInconsistency) Error() string {
	return "study area cache inconsistent: " + e.Detail
}

// SerializationFailure reports an exporter error.
type SerializationFailure struct {
	Path string
	Err  error
}

func (e *SerializationFailure) Error() string {
	return fmt.Sprintf("serialize %s: %v", e.Path, e.Err)
}

func (e *SerializationFailure) Unwrap() error { return e.Err }

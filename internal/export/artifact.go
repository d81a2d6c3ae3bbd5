// Package export writes the finalized population artifact and run statistics.
package export

import (
	"math"

	"github.com/rotisserie/eris"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/sells-group/spc/internal/model"
	"github.com/sells-group/spc/internal/msoa"
)

// ArtifactVersion is written first in every artifact.
const ArtifactVersion = 1

// Field numbers of the top-level population message.
const (
	fieldVersion   protowire.Number = 1
	fieldRegion    protowire.Number = 2
	fieldEpoch     protowire.Number = 3
	fieldFirstDay  protowire.Number = 4
	fieldDays      protowire.Number = 5
	fieldCommuting protowire.Number = 6
	fieldSeed      protowire.Number = 7
	fieldArea      protowire.Number = 10
	fieldHousehold protowire.Number = 11
	fieldPerson    protowire.Number = 12
)

// Area message.
const (
	areaCode           protowire.Number = 1
	areaLat            protowire.Number = 2
	areaLon            protowire.Number = 3
	areaGeometry       protowire.Number = 4
	areaVenueCounts    protowire.Number = 5
	areaAttractiveness protowire.Number = 6
)

// Household message.
const (
	householdID      protowire.Number = 1
	householdArea    protowire.Number = 2
	householdMembers protowire.Number = 3
)

// Person message.
const (
	personID           protowire.Number = 1
	personHousehold    protowire.Number = 2
	personAge          protowire.Number = 3
	personSex          protowire.Number = 4
	personNSSEC        protowire.Number = 5
	personInfected     protowire.Number = 6
	personDiary        protowire.Number = 7
	personDestinations protowire.Number = 8
	personDaily        protowire.Number = 9
)

// StageArtifact encodes fp beside path without replacing any file there.
func StageArtifact(path string, fp *model.FinalizedPopulation) (*Staged, error) {
	st, err := stage(path, Marshal(fp))
	if err != nil {
		return nil, &model.SerializationFailure{Path: path, Err: err}
	}
	return st, nil
}

// WriteArtifact encodes fp in protobuf wire format to path and returns the
// number of bytes written. The file appears only once fully written.
func WriteArtifact(path string, fp *model.FinalizedPopulation) (int64, error) {
	st, err := StageArtifact(path, fp)
	if err != nil {
		return 0, err
	}
	if err := st.Commit(); err != nil {
		return 0, &model.SerializationFailure{Path: path, Err: err}
	}
	return st.Size, nil
}

// Marshal encodes fp without modifying it.
func Marshal(fp *model.FinalizedPopulation) []byte {
	var b []byte
	b = appendVarint(b, fieldVersion, ArtifactVersion)
	b = appendString(b, fieldRegion, fp.Region)
	b = appendString(b, fieldEpoch, fp.Epoch.Format("2006-01-02"))
	b = appendVarint(b, fieldFirstDay, protowire.EncodeZigZag(int64(fp.FirstDay)))
	b = appendVarint(b, fieldDays, uint64(fp.Days))
	b = appendVarint(b, fieldCommuting, protowire.EncodeBool(fp.Commuting))
	b = protowire.AppendTag(b, fieldSeed, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, fp.Seed)

	pop := fp.Population
	for _, code := range sortedInfoKeys(fp.Info) {
		b = appendMessage(b, fieldArea, marshalArea(fp.Info[code]))
	}
	for _, h := range pop.Households {
		b = appendMessage(b, fieldHousehold, marshalHousehold(h))
	}
	for i := range pop.People {
		var a model.CommutingAssignment
		if i < len(fp.Assignments) {
			a = fp.Assignments[i]
		}
		b = appendMessage(b, fieldPerson, marshalPerson(pop.People[i], a))
	}
	return b
}

func marshalArea(info model.AreaInfo) []byte {
	var b []byte
	b = appendString(b, areaCode, info.Code.String())
	b = appendDouble(b, areaLat, info.Centroid.Lat)
	b = appendDouble(b, areaLon, info.Centroid.Lon)
	b = protowire.AppendTag(b, areaGeometry, protowire.BytesType)
	b = protowire.AppendBytes(b, info.GeometryWKB)

	var counts []byte
	for _, n := range info.VenueCounts {
		counts = protowire.AppendVarint(counts, uint64(n))
	}
	b = appendMessage(b, areaVenueCounts, counts)
	b = appendMessage(b, areaAttractiveness, packDoubles(info.Attractiveness[:]))
	return b
}

func marshalHousehold(h model.Household) []byte {
	var b []byte
	b = appendVarint(b, householdID, uint64(h.ID))
	b = appendString(b, householdArea, h.Area.String())
	var members []byte
	for _, m := range h.Members {
		members = protowire.AppendVarint(members, uint64(m))
	}
	return appendMessage(b, householdMembers, members)
}

func marshalPerson(p model.Person, a model.CommutingAssignment) []byte {
	var b []byte
	b = appendVarint(b, personID, uint64(p.ID))
	b = appendVarint(b, personHousehold, uint64(p.Household))
	b = appendVarint(b, personAge, uint64(p.Age))
	b = appendVarint(b, personSex, uint64(p.Sex))
	b = appendVarint(b, personNSSEC, protowire.EncodeZigZag(int64(p.NSSEC)))
	b = appendVarint(b, personInfected, protowire.EncodeBool(p.Infected))
	b = appendMessage(b, personDiary, packDoubles(p.Diary[:]))
	for _, d := range a.Destinations {
		b = appendString(b, personDestinations, d.String())
	}
	daily := make([]float64, 0, len(a.Daily)*model.NumCategories)
	for _, day := range a.Daily {
		daily = append(daily, day[:]...)
	}
	return appendMessage(b, personDaily, packDoubles(daily))
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

// packDoubles encodes a packed repeated double field body.
func packDoubles(vs []float64) []byte {
	b := make([]byte, 0, len(vs)*8)
	for _, v := range vs {
		b = protowire.AppendFixed64(b, math.Float64bits(v))
	}
	return b
}

func sortedInfoKeys(info map[msoa.Code]model.AreaInfo) []msoa.Code {
	codes := make([]msoa.Code, 0, len(info))
	for c := range info {
		codes = append(codes, c)
	}
	return msoa.NewSet(codes...)
}

// ErrTruncated reports an artifact that ends mid-field.
var ErrTruncated = eris.New("export: truncated artifact")

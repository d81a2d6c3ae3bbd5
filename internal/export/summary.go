package export

import (
	"math"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"google.golang.org/protobuf/encoding/protowire"
)

// Summary is the header and record counts of an artifact.
type Summary struct {
	Version    int
	Region     string
	Epoch      time.Time
	FirstDay   int
	Days       int
	Commuting  bool
	Seed       uint64
	Areas      int
	Households int
	People     int
	Infected   int
}

// ReadSummary decodes the artifact at path.
func ReadSummary(path string) (Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Summary{}, eris.Wrapf(err, "export: read %s", path)
	}
	s, err := Summarize(data)
	if err != nil {
		return Summary{}, eris.Wrapf(err, "export: decode %s", path)
	}
	return s, nil
}

// Summarize decodes an encoded artifact. Unknown fields are skipped.
func Summarize(b []byte) (Summary, error) {
	var s Summary
	err := walk(b, func(num protowire.Number, typ protowire.Type, v uint64, msg []byte) error {
		switch {
		case num == fieldVersion && typ == protowire.VarintType:
			s.Version = int(v)
		case num == fieldRegion && typ == protowire.BytesType:
			s.Region = string(msg)
		case num == fieldEpoch && typ == protowire.BytesType:
			t, err := time.Parse("2006-01-02", string(msg))
			if err != nil {
				return eris.Wrap(err, "bad epoch")
			}
			s.Epoch = t
		case num == fieldFirstDay && typ == protowire.VarintType:
			s.FirstDay = int(protowire.DecodeZigZag(v))
		case num == fieldDays && typ == protowire.VarintType:
			s.Days = int(v)
		case num == fieldCommuting && typ == protowire.VarintType:
			s.Commuting = protowire.DecodeBool(v)
		case num == fieldSeed && typ == protowire.Fixed64Type:
			s.Seed = v
		case num == fieldArea && typ == protowire.BytesType:
			s.Areas++
		case num == fieldHousehold && typ == protowire.BytesType:
			s.Households++
		case num == fieldPerson && typ == protowire.BytesType:
			s.People++
			infected, err := personInfectedFlag(msg)
			if err != nil {
				return err
			}
			if infected {
				s.Infected++
			}
		}
		return nil
	})
	if err != nil {
		return Summary{}, err
	}
	if s.Version == 0 {
		return Summary{}, eris.New("export: artifact has no version")
	}
	if s.Version > ArtifactVersion {
		return Summary{}, eris.Errorf("export: artifact version %d is newer than %d", s.Version, ArtifactVersion)
	}
	return s, nil
}

func personInfectedFlag(b []byte) (bool, error) {
	var infected bool
	err := walk(b, func(num protowire.Number, typ protowire.Type, v uint64, _ []byte) error {
		if num == personInfected && typ == protowire.VarintType {
			infected = protowire.DecodeBool(v)
		}
		return nil
	})
	return infected, err
}

// unpackDoubles decodes a packed repeated double field body.
func unpackDoubles(b []byte) ([]float64, error) {
	if len(b)%8 != 0 {
		return nil, ErrTruncated
	}
	out := make([]float64, 0, len(b)/8)
	for len(b) > 0 {
		v, n := protowire.ConsumeFixed64(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		out = append(out, math.Float64frombits(v))
		b = b[n:]
	}
	return out, nil
}

// walk calls fn for every field of one message level. Varint and fixed64
// values arrive in v, length-delimited bodies in msg.
func walk(b []byte, fn func(num protowire.Number, typ protowire.Type, v uint64, msg []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return eris.Wrap(protowire.ParseError(n), "export: bad tag")
		}
		b = b[n:]

		var v uint64
		var msg []byte
		switch typ {
		case protowire.VarintType:
			v, n = protowire.ConsumeVarint(b)
		case protowire.Fixed64Type:
			v, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			msg, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return eris.Wrapf(protowire.ParseError(n), "export: field %d", num)
		}
		b = b[n:]
		if err := fn(num, typ, v, msg); err != nil {
			return err
		}
	}
	return nil
}

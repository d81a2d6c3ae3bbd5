package export

import (
	"github.com/rotisserie/eris"
	"google.golang.org/protobuf/encoding/protowire"
)

// PersonRecord is one decoded person message.
type PersonRecord struct {
	ID           int
	Household    int
	Age          int
	Sex          int
	NSSEC        int
	Infected     bool
	Diary        []float64
	Destinations []string
	Daily        []float64 // days x categories, row-major
}

// DecodePeople returns the first limit people of an encoded artifact, or all
// of them when limit <= 0.
func DecodePeople(b []byte, limit int) ([]PersonRecord, error) {
	var out []PersonRecord
	errDone := eris.New("done")
	err := walk(b, func(num protowire.Number, typ protowire.Type, _ uint64, msg []byte) error {
		if num != fieldPerson || typ != protowire.BytesType {
			return nil
		}
		p, err := decodePerson(msg)
		if err != nil {
			return err
		}
		out = append(out, p)
		if limit > 0 && len(out) >= limit {
			return errDone
		}
		return nil
	})
	if err != nil && err != errDone {
		return nil, err
	}
	return out, nil
}

func decodePerson(b []byte) (PersonRecord, error) {
	var p PersonRecord
	err := walk(b, func(num protowire.Number, typ protowire.Type, v uint64, msg []byte) error {
		var err error
		switch num {
		case personID:
			p.ID = int(v)
		case personHousehold:
			p.Household = int(v)
		case personAge:
			p.Age = int(v)
		case personSex:
			p.Sex = int(v)
		case personNSSEC:
			p.NSSEC = int(protowire.DecodeZigZag(v))
		case personInfected:
			p.Infected = protowire.DecodeBool(v)
		case personDiary:
			p.Diary, err = unpackDoubles(msg)
		case personDestinations:
			p.Destinations = append(p.Destinations, string(msg))
		case personDaily:
			p.Daily, err = unpackDoubles(msg)
		}
		return err
	})
	return p, err
}

package model

import "github.com/sells-group/spc/internal/msoa"

// Input is the request for one run. It is built once and read-only afterwards.
type Input struct {
	EnableCommuting bool
	Areas           msoa.Set
	InitialCases    map[msoa.Code]int
}

// AgeBand groups ages for stratum matching.
type AgeBand int

// Band returns the age band of an age: 0-15, 16-24, 25-34, 35-49, 50-64, 65-74, 75+.
func Band(age int) AgeBand {
	switch {
	case age < 16:
		return 0
	case age < 25:
		return 1
	case age < 35:
		return 2
	case age < 50:
		return 3
	case age < 65:
		return 4
	case age < 75:
		return 5
	default:
		return 6
	}
}

// Household is a group of people sharing a home area. It owns its member ids.
type Household struct {
	ID      int
	Area    msoa.Code
	Members []int
	Source  string // household id in the diary microdata
}

// Person is one synthesized individual. Household is a lookup key into
// Population.Households, never a pointer.
type Person struct {
	ID        int
	Household int
	Age       int
	AgeBand   AgeBand
	Sex       Sex
	NSSEC     int
	Infected  bool
	Diary     CategoryValues // nominal hours per day by category
	Template  string         // stratum key when the diary came from another record, else ""
}

// Population is the pre-commuting population. Households and People are indexed by id.
type Population struct {
	Areas      msoa.Set
	Households []Household
	People     []Person
}

// HouseholdOf resolves the household back-reference of a person.
func (p *Population) HouseholdOf(person *Person) *Household {
	return &p.Households[person.Household]
}

// HomeArea returns the area a person lives in.
func (p *Population) HomeArea(person *Person) msoa.Code {
	return p.Households[person.Household].Area
}

// UniqueAreas returns the areas referenced by households.
func (p *Population) UniqueAreas() msoa.Set {
	codes := make([]msoa.Code, 0, len(p.Areas))
	seen := make(map[msoa.Code]bool)
	for _, h := range p.Households {
		if !seen[h.Area] {
			seen[h.Area] = true
			codes = append(codes, h.Area)
		}
	}
	return msoa.NewSet(codes...)
}

// PeopleIn returns the ids of people living in area, in household-then-member order.
func (p *Population) PeopleIn(area msoa.Code) []int {
	var ids []int
	for _, h := range p.Households {
		if h.Area == area {
			ids = append(ids, h.Members...)
		}
	}
	return ids
}

// InfectedCount returns how many people are marked infected.
func (p *Population) InfectedCount() int {
	var n int
	for i := range p.People {
		if p.People[i].Infected {
			n++
		}
	}
	return n
}

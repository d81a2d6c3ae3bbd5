// Package msoa defines the validated Middle Layer Super Output Area code used to key every
// dataset in the study-area pipeline.
package msoa

import (
	"regexp"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
)

var codePattern = regexp.MustCompile(`^[EW]02\d{6}$`)

// Code is a validated MSOA code such as "E02000001".
type Code string

// Parse validates s and returns it as a Code. Surrounding whitespace is ignored.
func Parse(s string) (Code, error) {
	s = strings.TrimSpace(s)
	if !codePattern.MatchString(s) {
		return "", eris.Errorf("msoa: invalid code %q", s)
	}
	return Code(s), nil
}

// MustParse is Parse for constants and tests. It panics on invalid input.
func MustParse(s string) Code {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

// String returns the code text.
func (c Code) String() string { return string(c) }

// Set is a sorted, de-duplicated list of codes.
type Set []Code

// NewSet sorts and de-duplicates codes.
func NewSet(codes ...Code) Set {
	out := make(Set, len(codes))
	copy(out, codes)
	slices.Sort(out)
	return Set(slices.Compact([]Code(out)))
}

// ParseSet parses every string, failing on the first invalid one.
func ParseSet(values []string) (Set, error) {
	codes := make([]Code, 0, len(values))
	for _, v := range values {
		c, err := Parse(v)
		if err != nil {
			return nil, err
		}
		codes = append(codes, c)
	}
	return NewSet(codes...), nil
}

// Contains reports whether c is in the set.
func (s Set) Contains(c Code) bool {
	_, ok := slices.BinarySearch(s, c)
	return ok
}

// Strings returns the codes as plain strings, in order.
func (s Set) Strings() []string {
	out := make([]string, len(s))
	for i, c := range s {
		out[i] = string(c)
	}
	return out
}

// Equal reports whether both sets hold the same codes.
func (s Set) Equal(other Set) bool {
	return slices.Equal(s, other)
}

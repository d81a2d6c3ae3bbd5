package model

import "github.com/rotisserie/eris"

// Category is an activity category a person spends time in.
// The numeric order is the fixed enumeration order used wherever
// categories are iterated, including random draws.
type Category int

const (
	CategoryHome Category = iota
	CategoryWork
	CategorySchool
	CategoryShop
	CategoryServices
	CategoryLeisure

	NumCategories = 6
)

var categoryNames = [NumCategories]string{
	"home",
	"work",
	"school",
	"shop",
	"services",
	"leisure",
}

// String returns the lower-case category name.
func (c Category) String() string {
	if c < 0 || int(c) >= NumCategories {
		return "unknown"
	}
	return categoryNames[c]
}

// ParseCategory converts a name like "work" into a Category.
func ParseCategory(s string) (Category, error) {
	for i, name := range categoryNames {
		if name == s {
			return Category(i), nil
		}
	}
	return 0, eris.Errorf("unknown activity category: %q", s)
}

// AllCategories returns every category in enumeration order.
func AllCategories() []Category {
	out := make([]Category, NumCategories)
	for i := range out {
		out[i] = Category(i)
	}
	return out
}

// NonHomeCategories returns every category except home, in enumeration order.
func NonHomeCategories() []Category {
	return AllCategories()[1:]
}

// CategoryValues holds one real value per category, indexed by Category.
type CategoryValues [NumCategories]float64

// Total sums all categories.
func (v CategoryValues) Total() float64 {
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum
}

// CategoryCounts holds one count per category, indexed by Category.
type CategoryCounts [NumCategories]int

// Total sums all categories.
func (c CategoryCounts) Total() int {
	var sum int
	for _, x := range c {
		sum += x
	}
	return sum
}

// Neutral returns a CategoryValues with every multiplier set to 1.
func Neutral() CategoryValues {
	var v CategoryValues
	for i := range v {
		v[i] = 1
	}
	return v
}

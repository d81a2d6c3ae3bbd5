package model

import (
	"time"

	"github.com/sells-group/spc/internal/msoa"
)

// CommutingAssignment is what the commuting stage adds to one person.
type CommutingAssignment struct {
	// Destinations holds the area each category happens in. Home is always the home area.
	Destinations [NumCategories]msoa.Code
	// Daily holds adjusted hours per category for each day of the schedule.
	Daily []CategoryValues
}

// FinalizedPopulation is the population with commuting destinations and daily durations.
// Assignments is indexed by person id.
type FinalizedPopulation struct {
	Region      string
	Population  *Population
	Info        map[msoa.Code]AreaInfo
	Assignments []CommutingAssignment
	Epoch       time.Time
	FirstDay    int
	Days        int
	Commuting   bool
	Seed        uint64
}

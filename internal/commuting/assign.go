// Package commuting assigns activity destinations and daily durations to
// every person of a study area. It is the only stage that consumes randomness.
package commuting

import (
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/golang/geo/s2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/sells-group/spc/internal/model"
	"github.com/sells-group/spc/internal/msoa"
	"github.com/sells-group/spc/internal/studyarea"
)

// earthRadiusKM is the mean Earth radius.
const earthRadiusKM = 6371.0088

// Options tunes the gravity model.
type Options struct {
	Exponent      float64
	MinDistanceKM float64
}

// DefaultOptions returns an inverse-square model with a 1 km distance floor.
func DefaultOptions() Options {
	return Options{Exponent: 2, MinDistanceKM: 1}
}

// NewRand returns the generator used for a seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Assign finalizes the population of c.
//
// With commuting disabled every activity happens in the home area. Otherwise
// each non-home category of each person draws one destination, visiting
// people by household, then member, then category order, with probability
// proportional to attractiveness(dest) / max(distance, floor)^exponent.
// Daily hours scale the nominal diary by the lockdown multiplier of the area
// the activity happens in, clamped to [0, 2×nominal].
func Assign(c *studyarea.Cache, enable bool, rng *rand.Rand, opts Options) (*model.FinalizedPopulation, error) {
	if err := c.Validate(); err != nil {
		return nil, eris.Wrap(err, "commuting: invalid study area")
	}
	if enable && rng == nil {
		return nil, eris.New("commuting: enabled without a random generator")
	}
	if opts.MinDistanceKM <= 0 {
		opts.MinDistanceKM = DefaultOptions().MinDistanceKM
	}

	log := zap.L().With(zap.String("component", "commuting"))
	start := time.Now()
	pop := c.Population

	fp := &model.FinalizedPopulation{
		Region:      c.Region,
		Population:  pop,
		Info:        c.InfoPerArea,
		Assignments: make([]model.CommutingAssignment, len(pop.People)),
		Epoch:       c.Epoch,
		FirstDay:    c.FirstDay(),
		Days:        c.Days(),
		Commuting:   enable,
	}

	var g *gravity
	if enable {
		g = newGravity(c.InfoPerArea, opts)
	}

	var draws int
	for _, h := range pop.Households {
		for _, pid := range h.Members {
			var dest [model.NumCategories]msoa.Code
			for i := range dest {
				dest[i] = h.Area
			}
			if g != nil {
				for _, cat := range model.NonHomeCategories() {
					if d, ok := g.draw(h.Area, cat, rng); ok {
						dest[cat] = d
						draws++
					}
				}
			}
			fp.Assignments[pid] = model.CommutingAssignment{
				Destinations: dest,
				Daily:        daily(pop.People[pid].Diary, dest, c.LockdownPerDay, fp.Days),
			}
		}
	}

	log.Info("commuting assigned",
		zap.Bool("enabled", enable),
		zap.Int("people", len(pop.People)),
		zap.Int("draws", draws),
		zap.Duration("elapsed", time.Since(start)),
	)
	return fp, nil
}

// daily scales nominal hours by each day's multiplier for the activity area.
func daily(nominal model.CategoryValues, dest [model.NumCategories]msoa.Code, sched map[msoa.Code][]model.DayAdjustment, days int) []model.CategoryValues {
	out := make([]model.CategoryValues, days)
	for day := range out {
		for c := range model.NumCategories {
			m := sched[dest[c]][day].Multipliers[c]
			out[day][c] = math.Min(math.Max(nominal[c]*m, 0), 2*nominal[c])
		}
	}
	return out
}

// gravity holds area centroids and memoised destination CDFs.
type gravity struct {
	opts   Options
	areas  []msoa.Code
	points []s2.LatLng
	attr   []model.CategoryValues
	index  map[msoa.Code]int
	cdfs   map[cdfKey][]float64
}

type cdfKey struct {
	origin   int
	category model.Category
}

func newGravity(info map[msoa.Code]model.AreaInfo, opts Options) *gravity {
	g := &gravity{
		opts:  opts,
		index: make(map[msoa.Code]int, len(info)),
		cdfs:  make(map[cdfKey][]float64),
	}
	for a := range info {
		g.areas = append(g.areas, a)
	}
	sort.Slice(g.areas, func(i, j int) bool { return g.areas[i] < g.areas[j] })
	for i, a := range g.areas {
		in := info[a]
		g.index[a] = i
		g.points = append(g.points, s2.LatLngFromDegrees(in.Centroid.Lat, in.Centroid.Lon))
		g.attr = append(g.attr, in.Attractiveness)
	}
	return g
}

// DistanceKM returns the great-circle distance between two points.
func DistanceKM(a, b model.LatLng) float64 {
	return angleKM(s2.LatLngFromDegrees(a.Lat, a.Lon), s2.LatLngFromDegrees(b.Lat, b.Lon))
}

func angleKM(a, b s2.LatLng) float64 {
	return a.Distance(b).Radians() * earthRadiusKM
}

func (g *gravity) cdf(origin int, cat model.Category) []float64 {
	key := cdfKey{origin, cat}
	if cdf, ok := g.cdfs[key]; ok {
		return cdf
	}
	w := make([]float64, len(g.areas))
	for d := range g.areas {
		a := g.attr[d][cat]
		if a <= 0 {
			continue
		}
		km := angleKM(g.points[origin], g.points[d])
		w[d] = a / math.Pow(math.Max(km, g.opts.MinDistanceKM), g.opts.Exponent)
	}
	cdf := floats.CumSum(w, w)
	g.cdfs[key] = cdf
	return cdf
}

// draw picks a destination for origin and category. It reports false, and
// consumes no randomness, when every weight is zero.
func (g *gravity) draw(origin msoa.Code, cat model.Category, rng *rand.Rand) (msoa.Code, bool) {
	cdf := g.cdf(g.index[origin], cat)
	total := cdf[len(cdf)-1]
	if total <= 0 {
		return "", false
	}
	u := rng.Float64() * total
	i := sort.Search(len(cdf), func(i int) bool { return cdf[i] > u })
	if i == len(cdf) {
		i = len(cdf) - 1
	}
	return g.areas[i], true
}

// Probabilities returns the normalised destination distribution for an origin
// and category, keyed by area. It is empty when every weight is zero.
func Probabilities(info map[msoa.Code]model.AreaInfo, origin msoa.Code, cat model.Category, opts Options) map[msoa.Code]float64 {
	g := newGravity(info, opts)
	i, ok := g.index[origin]
	if !ok {
		return nil
	}
	cdf := g.cdf(i, cat)
	total := cdf[len(cdf)-1]
	out := make(map[msoa.Code]float64)
	if total <= 0 {
		return out
	}
	prev := 0.0
	for d, v := range cdf {
		if p := (v - prev) / total; p > 0 {
			out[g.areas[d]] = p
		}
		prev = v
	}
	return out
}

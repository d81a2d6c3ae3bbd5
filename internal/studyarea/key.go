package studyarea

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/sells-group/spc/internal/model"
	"github.com/sells-group/spc/internal/msoa"
)

// Key identifies a cache by region and a fingerprint of everything that
// shapes its content: the area set, seed cases, lockdown settings and raw
// data sources. The commuting flag and the RNG seed are resolved later and
// do not take part.
func Key(region string, input model.Input, opts Options) string {
	h := sha256.New()
	fmt.Fprintf(h, "v%d\n", FormatVersion)
	for _, a := range input.Areas {
		fmt.Fprintf(h, "area %s\n", a)
	}

	seeded := make([]msoa.Code, 0, len(input.InitialCases))
	for a, n := range input.InitialCases {
		if n > 0 {
			seeded = append(seeded, a)
		}
	}
	sort.Slice(seeded, func(i, j int) bool { return seeded[i] < seeded[j] })
	for _, a := range seeded {
		fmt.Fprintf(h, "cases %s %d\n", a, input.InitialCases[a])
	}

	lk := opts.Lockdown
	fmt.Fprintf(h, "lockdown %s %g %g\n", lk.Epoch.UTC().Format("2006-01-02"), lk.Floor, lk.Ceiling)

	names := make([]string, 0, len(opts.Sources))
	for name := range opts.Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(h, "source %s %q\n", name, opts.Sources[name])
	}

	return region + "-" + hex.EncodeToString(h.Sum(nil))[:16]
}

package export

import (
	"encoding/csv"
	"math"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Stats describes one finished run.
type Stats struct {
	Region           string
	Areas            int
	Households       int
	People           int
	ArtifactSize     int64
	Runtime          time.Duration
	CommutingRuntime time.Duration
	MemoryBytes      uint64
}

var statsHeader = []string{
	"study_area", "num_msoas", "num_households", "num_people",
	"pb_file_size", "runtime", "commuting_runtime", "memory_usage",
}

// Row renders s in the stats file column order.
func (s Stats) Row() []string {
	p := message.NewPrinter(language.English)
	return []string{
		s.Region,
		p.Sprintf("%d", s.Areas),
		p.Sprintf("%d", s.Households),
		p.Sprintf("%d", s.People),
		humanize.Bytes(uint64(max(s.ArtifactSize, 0))),
		formatDuration(s.Runtime),
		formatDuration(s.CommutingRuntime),
		humanize.Bytes(s.MemoryBytes),
	}
}

// StageStats renders the stats file beside path: a plain header followed by
// one row with every field quoted.
func StageStats(path string, s Stats) (*Staged, error) {
	data := strings.Join(statsHeader, ",") + "\n" + quoteRecord(s.Row())
	st, err := stage(path, []byte(data))
	return st, eris.Wrap(err, "export: stats")
}

// WriteStats writes the stats file to path.
func WriteStats(path string, s Stats) error {
	st, err := StageStats(path, s)
	if err != nil {
		return err
	}
	return eris.Wrap(st.Commit(), "export: stats")
}

// ReadStats reads back a stats file as header and row.
func ReadStats(path string) ([]string, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, eris.Wrap(err, "export: open stats")
	}
	defer f.Close() //nolint:errcheck

	recs, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, eris.Wrap(err, "export: parse stats")
	}
	if len(recs) != 2 {
		return nil, nil, eris.Errorf("export: stats has %d records, want 2", len(recs))
	}
	return recs[0], recs[1], nil
}

// MemoryUsage returns the bytes of memory obtained from the OS.
func MemoryUsage() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.Sys
}

func quoteRecord(fields []string) string {
	var out []byte
	for i, f := range fields {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, '"')
		for _, r := range f {
			if r == '"' {
				out = append(out, '"')
			}
			out = append(out, string(r)...)
		}
		out = append(out, '"')
	}
	return string(append(out, '\n'))
}

// durationScale renders elapsed time the way the stats file reports it,
// truncated to the largest whole unit.
var durationScale = []humanize.RelTimeMagnitude{
	{D: time.Second, Format: "0 seconds", DivBy: time.Second},
	{D: 2 * time.Second, Format: "1 second", DivBy: time.Second},
	{D: time.Minute, Format: "%d seconds", DivBy: time.Second},
	{D: 2 * time.Minute, Format: "1 minute", DivBy: time.Minute},
	{D: time.Hour, Format: "%d minutes", DivBy: time.Minute},
	{D: 2 * time.Hour, Format: "1 hour", DivBy: time.Hour},
	{D: humanize.Day, Format: "%d hours", DivBy: time.Hour},
	{D: 2 * humanize.Day, Format: "1 day", DivBy: humanize.Day},
	{D: time.Duration(math.MaxInt64), Format: "%d days", DivBy: humanize.Day},
}

func formatDuration(d time.Duration) string {
	var zero time.Time
	return humanize.CustomRelTime(zero, zero.Add(max(d, 0)), "", "", durationScale)
}

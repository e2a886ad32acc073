package config

import (
	"fmt"
	"os"

	"finpulse/internal/analytics"

	"github.com/BurntSushi/toml"
)

// tuningFile mirrors analytics.Tuning with an [analytics] table so the file
// can grow other sections later.
type tuningFile struct {
	Analytics analytics.Tuning `toml:"analytics"`
}

// LoadTuning returns the analytics heuristics. Values missing from the file
// keep their defaults; an empty path returns the defaults. The cache TTL and
// compute timeout always come from the environment.
func (c *Config) LoadTuning() (analytics.Tuning, error) {
	t, err := loadTuningFile(c.TuningFile)
	if err != nil {
		return t, err
	}
	t.CacheTTL = c.CacheTTL
	if c.ComputeTimeout > 0 {
		t.ComputeTimeout = c.ComputeTimeout
	}
	return t, nil
}

func loadTuningFile(path string) (analytics.Tuning, error) {
	f := tuningFile{Analytics: analytics.DefaultTuning()}
	if path == "" {
		return f.Analytics, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return f.Analytics, fmt.Errorf("reading tuning file: %w", err)
	}
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return analytics.DefaultTuning(), fmt.Errorf("parsing tuning file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return analytics.DefaultTuning(), fmt.Errorf("parsing tuning file: unknown keys %v", undecoded)
	}
	if f.Analytics.RecurringMinGapDays > f.Analytics.RecurringMaxGapDays {
		return analytics.DefaultTuning(), fmt.Errorf("tuning: recurring_min_gap_days %.0f exceeds recurring_max_gap_days %.0f",
			f.Analytics.RecurringMinGapDays, f.Analytics.RecurringMaxGapDays)
	}
	return f.Analytics, nil
}

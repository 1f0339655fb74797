package weather

import (
	"fmt"
	"strings"
	"time"
)

// Kind distinguishes a single observation from a multi-day forecast.
type Kind string

const (
	KindCurrent Kind = "current"
	KindWeekly  Kind = "weekly"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == KindCurrent || k == KindWeekly
}

// Conditions are the weather fields shared by current observations and forecast days.
// Values are kept in the provider's native units.
type Conditions struct {
	Description string  `json:"description"`
	Temperature float64 `json:"temperature"`
	FeelsLike   float64 `json:"feelsLike"`
	Humidity    int     `json:"humidity"`
	WindSpeed   float64 `json:"windSpeed"`
}

// DayForecast is one entry of a weekly forecast.
type DayForecast struct {
	Date time.Time `json:"date"` // always UTC
	Conditions
}

// Record is the canonical weather observation or forecast for a city.
// A record is never mutated after creation; newer records supersede it.
type Record struct {
	City      string        `json:"city"`
	Kind      Kind          `json:"kind"`
	Current   *Conditions   `json:"current,omitempty"`
	Days      []DayForecast `json:"days,omitempty"`
	FetchedAt time.Time     `json:"fetchedAt"`
}

// Validate checks that the payload shape matches the record kind.
func (r Record) Validate() error {
	switch r.Kind {
	case KindCurrent:
		if r.Current == nil {
			return fmt.Errorf("current record for %q has no conditions", r.City)
		}
		if len(r.Days) != 0 {
			return fmt.Errorf("current record for %q carries %d day entries", r.City, len(r.Days))
		}
	case KindWeekly:
		if len(r.Days) == 0 {
			return fmt.Errorf("weekly record for %q has no day entries", r.City)
		}
		if r.Current != nil {
			return fmt.Errorf("weekly record for %q carries current conditions", r.City)
		}
	default:
		return fmt.Errorf("unknown record kind %q", r.Kind)
	}
	return nil
}

// FirstDays returns a copy of a weekly record limited to its first n days.
func (r Record) FirstDays(n int) Record {
	if n <= 0 || n >= len(r.Days) {
		return r
	}
	out := r
	out.Days = append([]DayForecast(nil), r.Days[:n]...)
	return out
}

// CityKey returns the canonical cache key form of a city name.
func CityKey(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}

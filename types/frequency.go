package types

import (
	"fmt"
	"time"
)

// Frequency is the cadence of scheduled capital injections.
type Frequency string

const (
	Daily     Frequency = "daily"
	Weekly    Frequency = "weekly"
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Yearly    Frequency = "yearly"
)

func ParseFrequency(s string) (Frequency, error) {
	switch Frequency(s) {
	case Daily, Weekly, Monthly, Quarterly, Yearly:
		return Frequency(s), nil
	}
	return "", fmt.Errorf("unknown capital growth frequency %q", s)
}

// PeriodKey maps a date to an integer identifying its period under the
// frequency. Two dates share a key iff they fall in the same period, so a
// caller injecting capital once per period only needs to remember the last
// key it acted on.
func (f Frequency) PeriodKey(date time.Time) int64 {
	switch f {
	case Daily:
		return date.Unix() / 86400
	case Weekly:
		year, week := date.ISOWeek()
		return int64(year)*53 + int64(week)
	case Monthly:
		return int64(date.Year())*12 + int64(date.Month()) - 1
	case Quarterly:
		return int64(date.Year())*4 + int64(date.Month()-1)/3
	case Yearly:
		return int64(date.Year())
	}
	return date.Unix() / 86400
}

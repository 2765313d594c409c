package eady

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMissingTime is returned when an annual or seasonal mean is requested
	// without one time stamp per time step.
	ErrMissingTime = errors.New("time stamps required for annual or seasonal means")

	// ErrBadTime is returned for a time stamp that cannot be parsed.
	ErrBadTime = errors.New("invalid time stamp")

	// ErrNoCompleteSeason is returned when no season has data for all three months.
	ErrNoCompleteSeason = errors.New("no complete season")
)

var timeLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02", "2006-01"}

// Group is a labelled set of time indices averaged together.
type Group struct {
	Label   string `json:"label"`
	Indices []int  `json:"indices"`
}

// AnnualGroups groups time stamps by calendar year, in order of first
// appearance.
func AnnualGroups(times []string) ([]Group, error) {
	parsed, err := parseTimes(times)
	if err != nil {
		return nil, err
	}
	var groups []Group
	pos := make(map[int]int)
	for i, t := range parsed {
		g, ok := pos[t.Year()]
		if !ok {
			g = len(groups)
			pos[t.Year()] = g
			groups = append(groups, Group{Label: fmt.Sprint(t.Year())})
		}
		groups[g].Indices = append(groups[g].Indices, i)
	}
	return groups, nil
}

// SeasonalGroups groups time stamps into DJF, MAM, JJA and SON seasons. A
// December belongs to the winter of the following year. Seasons missing any
// of their three months are dropped.
func SeasonalGroups(times []string) ([]Group, error) {
	parsed, err := parseTimes(times)
	if err != nil {
		return nil, err
	}
	type season struct {
		group  Group
		months map[time.Month]bool
	}
	var seasons []*season
	pos := make(map[string]int)
	for i, t := range parsed {
		name, year := seasonOf(t)
		label := fmt.Sprintf("%s %d", name, year)
		s, ok := pos[label]
		if !ok {
			s = len(seasons)
			pos[label] = s
			seasons = append(seasons, &season{group: Group{Label: label}, months: make(map[time.Month]bool, 3)})
		}
		seasons[s].group.Indices = append(seasons[s].group.Indices, i)
		seasons[s].months[t.Month()] = true
	}

	var groups []Group
	for _, s := range seasons {
		if len(s.months) == 3 {
			groups = append(groups, s.group)
		}
	}
	if len(groups) == 0 {
		return nil, ErrNoCompleteSeason
	}
	return groups, nil
}

func seasonOf(t time.Time) (string, int) {
	switch t.Month() {
	case time.December:
		return "DJF", t.Year() + 1
	case time.January, time.February:
		return "DJF", t.Year()
	case time.March, time.April, time.May:
		return "MAM", t.Year()
	case time.June, time.July, time.August:
		return "JJA", t.Year()
	default:
		return "SON", t.Year()
	}
}

func parseTimes(times []string) ([]time.Time, error) {
	out := make([]time.Time, len(times))
	for i, s := range times {
		var err error
		for _, layout := range timeLayouts {
			if out[i], err = time.Parse(layout, s); err == nil {
				break
			}
		}
		if err != nil {
			return nil, fmt.Errorf("%w: time[%d] = %q", ErrBadTime, i, s)
		}
	}
	return out, nil
}

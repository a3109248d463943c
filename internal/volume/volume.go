// Package volume aggregates passenger volumes by day type and hour: tap-in
// and tap-out counts per stop, and trip counts per origin-destination pair.
package volume

import (
	"sort"
	"strconv"
	"strings"
)

// DayType is the day class a volume row was recorded on.
type DayType int

const (
	Weekday DayType = iota
	Weekend
)

var dayTypes = [...]DayType{Weekday, Weekend}

func (d DayType) String() string {
	if d == Weekend {
		return "WE"
	}
	return "WD"
}

// ParseDayType accepts the DataMall labels and their short forms.
func ParseDayType(s string) (DayType, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "WEEKDAY", "WD":
		return Weekday, true
	case "WEEKENDS/HOLIDAY", "WEEKEND", "WE":
		return Weekend, true
	}
	return 0, false
}

// Hours is the number of hourly buckets per day.
const Hours = 24

// Counts holds one value per day type and hour.
type Counts [2][Hours]int64

// Add adds n to the bucket of day d and hour h.
func (c *Counts) Add(d DayType, h int, n int64) {
	c[d][h] += n
}

// Total sums every hour of day d.
func (c *Counts) Total(d DayType) int64 {
	var t int64
	for _, n := range c[d] {
		t += n
	}
	return t
}

// Report counts rows dropped while aggregating.
type Report struct {
	Input     int `json:"input"`
	Kept      int `json:"kept"`
	Malformed int `json:"malformed"`
}

// RawStopRow is one row of the passenger volume by stop dataset.
type RawStopRow struct {
	DayType string `csv:"DAY_TYPE"`
	Hour    string `csv:"TIME_PER_HOUR"`
	Code    string `csv:"PT_CODE"`
	TapIn   string `csv:"TOTAL_TAP_IN_VOLUME"`
	TapOut  string `csv:"TOTAL_TAP_OUT_VOLUME"`
}

// RawODRow is one row of the origin-destination trips dataset.
type RawODRow struct {
	DayType     string `csv:"DAY_TYPE"`
	Hour        string `csv:"TIME_PER_HOUR"`
	Origin      string `csv:"ORIGIN_PT_CODE"`
	Destination string `csv:"DESTINATION_PT_CODE"`
	Trips       string `csv:"TOTAL_TRIPS"`
}

// StopVolume is the tap-in and tap-out pivot of one stop.
type StopVolume struct {
	Code string
	In   Counts
	Out  Counts
}

// StopTable is the pivot of every stop sorted by code. Hours lists the
// hours that occur in the source, ascending.
type StopTable struct {
	Hours []int
	Stops []StopVolume
}

// ODPair is the trip pivot of one origin-destination pair.
type ODPair struct {
	Origin      string
	Destination string
	Trips       Counts
}

// ODTable is the pivot of every pair sorted by (origin, destination).
type ODTable struct {
	Hours []int
	Pairs []ODPair
}

// Stops pivots stop rows by (day type, hour), summing repeated cells. Rows
// with no code, an unknown day type, an hour outside 0-23 or an unparsable
// count are dropped.
func Stops(rows []RawStopRow) (*StopTable, Report) {
	rep := Report{Input: len(rows)}
	var hours hourSet
	byCode := make(map[string]*StopVolume)
	for _, r := range rows {
		code := strings.TrimSpace(r.Code)
		day, okDay := ParseDayType(r.DayType)
		hour, okHour := parseHour(r.Hour)
		in, okIn := parseCount(r.TapIn)
		out, okOut := parseCount(r.TapOut)
		if code == "" || !okDay || !okHour || !okIn || !okOut {
			rep.Malformed++
			continue
		}
		v, ok := byCode[code]
		if !ok {
			v = &StopVolume{Code: code}
			byCode[code] = v
		}
		v.In.Add(day, hour, in)
		v.Out.Add(day, hour, out)
		hours[hour] = true
		rep.Kept++
	}

	t := &StopTable{Hours: hours.list(), Stops: make([]StopVolume, 0, len(byCode))}
	for _, v := range byCode {
		t.Stops = append(t.Stops, *v)
	}
	sort.Slice(t.Stops, func(i, j int) bool { return t.Stops[i].Code < t.Stops[j].Code })
	return t, rep
}

// OD pivots origin-destination rows by (day type, hour), summing repeated
// cells. Malformed rows are dropped as in Stops.
func OD(rows []RawODRow) (*ODTable, Report) {
	type pair struct{ o, d string }

	rep := Report{Input: len(rows)}
	var hours hourSet
	byPair := make(map[pair]*ODPair)
	for _, r := range rows {
		o, d := strings.TrimSpace(r.Origin), strings.TrimSpace(r.Destination)
		day, okDay := ParseDayType(r.DayType)
		hour, okHour := parseHour(r.Hour)
		n, okTrips := parseCount(r.Trips)
		if o == "" || d == "" || !okDay || !okHour || !okTrips {
			rep.Malformed++
			continue
		}
		k := pair{o, d}
		p, ok := byPair[k]
		if !ok {
			p = &ODPair{Origin: o, Destination: d}
			byPair[k] = p
		}
		p.Trips.Add(day, hour, n)
		hours[hour] = true
		rep.Kept++
	}

	t := &ODTable{Hours: hours.list(), Pairs: make([]ODPair, 0, len(byPair))}
	for _, p := range byPair {
		t.Pairs = append(t.Pairs, *p)
	}
	sort.Slice(t.Pairs, func(i, j int) bool {
		a, b := t.Pairs[i], t.Pairs[j]
		if a.Origin != b.Origin {
			return a.Origin < b.Origin
		}
		return a.Destination < b.Destination
	})
	return t, rep
}

type hourSet [Hours]bool

func (s *hourSet) list() []int {
	var out []int
	for h, ok := range s {
		if ok {
			out = append(out, h)
		}
	}
	return out
}

func parseHour(s string) (int, bool) {
	h, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || h < 0 || h >= Hours {
		return 0, false
	}
	return h, true
}

// parseCount reads a non-negative count; empty means zero.
func parseCount(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, true
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

package routes

import (
	"math"
	"strconv"
	"strings"

	"transitnet/internal/config"
)

// RawBusRow is one row of a bus route table as published.
type RawBusRow struct {
	ServiceNo    string `csv:"ServiceNo"`
	Operator     string `csv:"Operator"`
	Direction    string `csv:"Direction"`
	StopSequence string `csv:"StopSequence"`
	BusStopCode  string `csv:"BusStopCode"`
	Distance     string `csv:"Distance"`
}

// NormalizeBus parses bus route rows, drops rows for stops listed as out of
// service and sorts the result by (service, direction, sequence).
func NormalizeBus(rows []RawBusRow, corr *config.Corrections) (*Table, Report) {
	closed := make(map[string]bool)
	if corr != nil {
		for _, c := range corr.ClosedStops {
			closed[strings.TrimSpace(c)] = true
		}
	}

	rep := Report{Input: len(rows)}
	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		e, ok := parseBusRow(r)
		if !ok {
			rep.Malformed++
			continue
		}
		if closed[e.StopCode] {
			rep.OutOfService++
			continue
		}
		entries = append(entries, e)
	}
	sortBus(entries)
	rep.Kept = len(entries)
	return &Table{Entries: entries}, rep
}

func parseBusRow(r RawBusRow) (Entry, bool) {
	e := Entry{
		ServiceID: strings.TrimSpace(r.ServiceNo),
		StopCode:  strings.TrimSpace(r.BusStopCode),
		Label:     strings.TrimSpace(r.Operator),
	}
	if e.ServiceID == "" || e.StopCode == "" {
		return Entry{}, false
	}
	dir, err := strconv.Atoi(strings.TrimSpace(r.Direction))
	if err != nil {
		return Entry{}, false
	}
	seq, err := strconv.Atoi(strings.TrimSpace(r.StopSequence))
	if err != nil || seq < 1 {
		return Entry{}, false
	}
	e.Direction = dir
	e.Sequence = seq

	if d := strings.TrimSpace(r.Distance); d != "" {
		v, err := strconv.ParseFloat(d, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return Entry{}, false
		}
		e.Distance = v
		e.Measured = true
	}
	return e, true
}

package routes

import (
	"sort"
	"strconv"
	"strings"
	"unicode"

	"transitnet/internal/config"
	"transitnet/internal/stops"
)

// RawRailRow is one row of the rail line table: a station on a line with
// its station code.
type RawRailRow struct {
	LineName    string `csv:"lne_n"`
	StationName string `csv:"stn_n"`
	StationCode string `csv:"stn_c"`
}

// NormalizeRail applies the correction list, derives line and sub-line codes
// and orders rows by (line code, sub-line code, sub-line sequence). A letter
// tail on the station number orders an infill station after its base number,
// so TE22A follows TE22.
//
// Each line becomes one service whose id is its line code, enumerated from
// 1 in order of first appearance. Sub-lines become the directions of that
// service, numbered in sub-line code order. Sequence is the 1-based rank of
// the station position within its direction; repeated positions share a rank.
func NormalizeRail(rows []RawRailRow, corr *config.Corrections) (*Table, Report) {
	if corr == nil {
		corr = &config.Corrections{}
	}
	renames := make(map[string]string, len(corr.Renames))
	for _, r := range corr.Renames {
		renames[r.From] = r.To
	}
	closed := make(map[string]bool, len(corr.ClosedStations))
	for _, s := range corr.ClosedStations {
		closed[stops.CanonicalName(s)] = true
	}

	rep := Report{Input: len(rows)}
	lineCodes := make(map[string]int)
	var entries []Entry
	for _, r := range rows {
		line, name, code := clean(r.LineName), clean(r.StationName), clean(r.StationCode)
		if line == "" || name == "" || code == "" {
			rep.Malformed++
			continue
		}

		fixed := false
		for _, f := range corr.CodeFixes {
			if f.Line == line && f.Station == name {
				code = f.Code
				fixed = true
			}
		}
		if to, ok := renames[name]; ok {
			name = to
			fixed = true
		}
		if fixed {
			rep.Corrected++
		}

		name = stops.CanonicalName(name)
		if closed[name] {
			rep.OutOfService++
			continue
		}

		sub, seq, tail, ok := splitStationCode(code)
		if !ok {
			rep.Malformed++
			continue
		}

		lc, ok := lineCodes[line]
		if !ok {
			lc = len(lineCodes) + 1
			lineCodes[line] = lc
		}
		entries = append(entries, Entry{
			ServiceID:   strconv.Itoa(lc),
			Label:       line,
			StationName: name,
			StationCode: code,
			SubLine:     sub,
			SubLineSeq:  seq,
			SubLineTail: tail,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.ServiceID != b.ServiceID {
			return NaturalLess(a.ServiceID, b.ServiceID)
		}
		if a.SubLine != b.SubLine {
			return a.SubLine < b.SubLine
		}
		if a.SubLineSeq != b.SubLineSeq {
			return a.SubLineSeq < b.SubLineSeq
		}
		return a.SubLineTail < b.SubLineTail
	})

	type subLine struct{ service, code string }
	dirs := make(map[subLine]int)
	next := make(map[string]int)
	for i := range entries {
		e := &entries[i]
		k := subLine{e.ServiceID, e.SubLine}
		d, ok := dirs[k]
		if !ok {
			next[e.ServiceID]++
			d = next[e.ServiceID]
			dirs[k] = d
		}
		e.Direction = d

		switch {
		case i > 0 && entries[i-1].ServiceID == e.ServiceID && entries[i-1].Direction == d &&
			entries[i-1].SubLineSeq == e.SubLineSeq && entries[i-1].SubLineTail == e.SubLineTail:
			e.Sequence = entries[i-1].Sequence
		case i > 0 && entries[i-1].ServiceID == e.ServiceID && entries[i-1].Direction == d:
			e.Sequence = entries[i-1].Sequence + 1
		default:
			e.Sequence = 1
		}
	}

	rep.Kept = len(entries)
	return &Table{Entries: entries}, rep
}

// ResolveStations sets each rail entry's stop code to the registry code of
// its station. Entries naming an unknown station are dropped.
func ResolveStations(t *Table, stations *stops.Table) (*Table, Report) {
	rep := Report{Input: len(t.Entries)}
	out := make([]Entry, 0, len(t.Entries))
	for _, e := range t.Entries {
		code, ok := stations.CodeByName(e.StationName)
		if !ok {
			rep.Unresolved++
			continue
		}
		e.StopCode = code
		out = append(out, e)
	}
	rep.Kept = len(out)
	return &Table{Entries: out}, rep
}

// splitStationCode splits "NS12" into ("NS", 12, "") and "TE22A" into
// ("TE", 22, "A"). A code without digits has sequence 1. Codes that are not
// letters, digits, then optional letters are rejected.
func splitStationCode(code string) (string, int, string, bool) {
	i := leadingLetters(code)
	prefix, rest := strings.ToUpper(code[:i]), code[i:]
	if prefix == "" {
		return "", 0, "", false
	}
	if rest == "" {
		return prefix, 1, "", true
	}

	j := 0
	for j < len(rest) && rest[j] >= '0' && rest[j] <= '9' {
		j++
	}
	digits, tail := rest[:j], rest[j:]
	if digits == "" || leadingLetters(tail) != len(tail) {
		return "", 0, "", false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return "", 0, "", false
	}
	return prefix, n, strings.ToUpper(tail), true
}

func leadingLetters(s string) int {
	i := 0
	for i < len(s) && s[i] < unicode.MaxASCII && unicode.IsLetter(rune(s[i])) {
		i++
	}
	return i
}

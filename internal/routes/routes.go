// Package routes cleans ordered stop-sequence tables for bus services and
// rail lines before they are turned into networks.
package routes

import (
	"sort"
	"strconv"
	"strings"
)

// Entry is one stop of one directional traversal of a service.
type Entry struct {
	ServiceID string
	Direction int
	StopCode  string
	Sequence  int     // 1-based position within (ServiceID, Direction)
	Distance  float64 // cumulative km from the first stop
	Measured  bool    // false when the source carries no distance
	Label     string  // operator for buses, line name for rail

	StationName string
	StationCode string
	SubLine     string
	SubLineSeq  int
	SubLineTail string // letters after the number, "A" in "TE22A"
}

// Table is a normalized route table in (service, direction, sequence) order.
type Table struct {
	Entries []Entry
}

// Report counts rows dropped or fixed while normalizing.
type Report struct {
	Input        int
	Kept         int
	Malformed    int
	OutOfService int
	Corrected    int
	Unresolved   int
}

// Len returns the number of entries.
func (t *Table) Len() int { return len(t.Entries) }

// Services returns the distinct service ids in natural order.
func (t *Table) Services() []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range t.Entries {
		if !seen[e.ServiceID] {
			seen[e.ServiceID] = true
			out = append(out, e.ServiceID)
		}
	}
	SortNatural(out)
	return out
}

// Key identifies one directional traversal.
type Key struct {
	ServiceID string
	Direction int
}

// Groups splits the table into traversals, each sorted by sequence. Keys
// are returned in table order.
func (t *Table) Groups() ([]Key, map[Key][]Entry) {
	var keys []Key
	groups := make(map[Key][]Entry)
	for _, e := range t.Entries {
		k := Key{ServiceID: e.ServiceID, Direction: e.Direction}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], e)
	}
	for _, k := range keys {
		g := groups[k]
		sort.SliceStable(g, func(i, j int) bool { return g[i].Sequence < g[j].Sequence })
	}
	return keys, groups
}

func sortBus(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.ServiceID != b.ServiceID {
			return NaturalLess(a.ServiceID, b.ServiceID)
		}
		if a.Direction != b.Direction {
			return a.Direction < b.Direction
		}
		return a.Sequence < b.Sequence
	})
}

// SortNatural orders service codes so that "2" < "10" < "10A".
func SortNatural(s []string) {
	sort.SliceStable(s, func(i, j int) bool { return NaturalLess(s[i], s[j]) })
}

// NaturalLess compares codes by their leading number first, then by the
// remaining text. Codes without a leading number sort after numbered ones.
func NaturalLess(a, b string) bool {
	an, arest, aok := splitLeadingNumber(a)
	bn, brest, bok := splitLeadingNumber(b)
	switch {
	case aok && bok:
		if an != bn {
			return an < bn
		}
		if arest != brest {
			return arest < brest
		}
		return a < b
	case aok:
		return true
	case bok:
		return false
	}
	return a < b
}

func splitLeadingNumber(s string) (int, string, bool) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, s, false
	}
	n, err := strconv.Atoi(s[:i])
	if err != nil {
		return 0, s, false
	}
	return n, s[i:], true
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

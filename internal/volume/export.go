package volume

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// hourColumns names the hourly columns of one prefix, e.g. IN_WD_7.
func hourColumns(prefix string, d DayType, hours []int) []string {
	out := make([]string, len(hours))
	for i, h := range hours {
		out[i] = fmt.Sprintf("%s%s_%d", prefix, d, h)
	}
	return out
}

func countCells(c *Counts, d DayType, hours []int) []string {
	out := make([]string, len(hours))
	for i, h := range hours {
		out[i] = strconv.FormatInt(c[d][h], 10)
	}
	return out
}

// WriteStopsCSV writes one row per stop: code, position, tap-in then tap-out
// hourly columns for each day type, then the four day totals.
func WriteStopsCSV(w io.Writer, hours []int, rows []LocatedStop) error {
	cw := csv.NewWriter(w)
	header := []string{"code", "lng", "lat"}
	for _, side := range []string{"IN_", "OUT_"} {
		for _, d := range dayTypes {
			header = append(header, hourColumns(side, d, hours)...)
		}
	}
	header = append(header, "IN_WD_total", "IN_WE_total", "OUT_WD_total", "OUT_WE_total")
	if err := cw.Write(header); err != nil {
		return err
	}

	for i := range rows {
		r := &rows[i]
		rec := []string{r.Code, "", ""}
		if r.Position != nil {
			rec[1] = strconv.FormatFloat(r.Position.Lon, 'f', -1, 64)
			rec[2] = strconv.FormatFloat(r.Position.Lat, 'f', -1, 64)
		}
		for _, c := range []*Counts{&r.In, &r.Out} {
			for _, d := range dayTypes {
				rec = append(rec, countCells(c, d, hours)...)
			}
		}
		for _, c := range []*Counts{&r.In, &r.Out} {
			for _, d := range dayTypes {
				rec = append(rec, strconv.FormatInt(c.Total(d), 10))
			}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteODCSV writes one row per pair: origin, destination, hourly trips for
// each day type, then the day totals.
func WriteODCSV(w io.Writer, t *ODTable) error {
	cw := csv.NewWriter(w)
	header := []string{"origin", "destination"}
	for _, d := range dayTypes {
		header = append(header, hourColumns("", d, t.Hours)...)
	}
	header = append(header, "WD_total", "WE_total")
	if err := cw.Write(header); err != nil {
		return err
	}

	for i := range t.Pairs {
		p := &t.Pairs[i]
		rec := []string{p.Origin, p.Destination}
		for _, d := range dayTypes {
			rec = append(rec, countCells(&p.Trips, d, t.Hours)...)
		}
		rec = append(rec,
			strconv.FormatInt(p.Trips.Total(Weekday), 10),
			strconv.FormatInt(p.Trips.Total(Weekend), 10))
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// StopsGeoJSON renders located stops as points carrying day totals.
func StopsGeoJSON(rows []LocatedStop) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i := range rows {
		r := &rows[i]
		if r.Position == nil {
			continue
		}
		f := geojson.NewFeature(orb.Point{r.Position.Lon, r.Position.Lat})
		f.Properties["code"] = r.Code
		f.Properties["IN_WD_total"] = r.In.Total(Weekday)
		f.Properties["IN_WE_total"] = r.In.Total(Weekend)
		f.Properties["OUT_WD_total"] = r.Out.Total(Weekday)
		f.Properties["OUT_WE_total"] = r.Out.Total(Weekend)
		fc.Append(f)
	}
	return fc
}

// LinesGeoJSON renders trips as two-point line strings carrying day totals.
func LinesGeoJSON(lines []ODLine) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i := range lines {
		l := &lines[i]
		f := geojson.NewFeature(orb.LineString{{l.From.Lon, l.From.Lat}, {l.To.Lon, l.To.Lat}})
		f.Properties["origin"] = l.Origin
		f.Properties["destination"] = l.Destination
		f.Properties["WD_total"] = l.Trips.Total(Weekday)
		f.Properties["WE_total"] = l.Trips.Total(Weekend)
		fc.Append(f)
	}
	return fc
}

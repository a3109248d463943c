package ingest

import "transitnet/internal/stops"

// BusStopRow is a bus stop CSV row with DataMall column names.
type BusStopRow struct {
	BusStopCode string `csv:"BusStopCode"`
	RoadName    string `csv:"RoadName"`
	Description string `csv:"Description"`
	Latitude    string `csv:"Latitude"`
	Longitude   string `csv:"Longitude"`
}

// BusStopLocationRow is a row of the static bus stop location dataset; X and
// Y are SVY21 metres.
type BusStopLocationRow struct {
	Code string `csv:"BUS_STOP_N"`
	Name string `csv:"LOC_DESC"`
	X    string `csv:"X"`
	Y    string `csv:"Y"`
}

// StationRow is a rail station CSV row; X and Y are SVY21 metres.
type StationRow struct {
	Name string `csv:"STN_NAME"`
	Code string `csv:"STN_NO"`
	X    string `csv:"X"`
	Y    string `csv:"Y"`
}

// BusStopRecords converts bus stop rows to WGS84 registry records.
func BusStopRecords(rows []BusStopRow) []stops.RawRecord {
	out := make([]stops.RawRecord, len(rows))
	for i, r := range rows {
		out[i] = stops.RawRecord{Code: r.BusStopCode, Name: r.Description, Road: r.RoadName, X: r.Longitude, Y: r.Latitude}
	}
	return out
}

// BusStopLocationRecords converts static location rows to SVY21 registry
// records.
func BusStopLocationRecords(rows []BusStopLocationRow) []stops.RawRecord {
	out := make([]stops.RawRecord, len(rows))
	for i, r := range rows {
		out[i] = stops.RawRecord{Code: r.Code, Name: r.Name, X: r.X, Y: r.Y}
	}
	return out
}

// StationRecords converts station rows to SVY21 registry records.
func StationRecords(rows []StationRow) []stops.RawRecord {
	out := make([]stops.RawRecord, len(rows))
	for i, r := range rows {
		out[i] = stops.RawRecord{Code: r.Code, Name: r.Name, X: r.X, Y: r.Y}
	}
	return out
}

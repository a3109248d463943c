package datamall

import (
	"strconv"

	"transitnet/internal/routes"
	"transitnet/internal/stops"
)

// BusStop is one record of the BusStops dataset.
type BusStop struct {
	BusStopCode string  `json:"BusStopCode"`
	RoadName    string  `json:"RoadName"`
	Description string  `json:"Description"`
	Latitude    float64 `json:"Latitude"`
	Longitude   float64 `json:"Longitude"`
}

// BusRoute is one record of the BusRoutes dataset.
type BusRoute struct {
	ServiceNo    string   `json:"ServiceNo"`
	Operator     string   `json:"Operator"`
	Direction    int      `json:"Direction"`
	StopSequence int      `json:"StopSequence"`
	BusStopCode  string   `json:"BusStopCode"`
	Distance     *float64 `json:"Distance"`
}

// BusService is one record of the BusServices dataset.
type BusService struct {
	ServiceNo       string `json:"ServiceNo"`
	Operator        string `json:"Operator"`
	Direction       int    `json:"Direction"`
	Category        string `json:"Category"`
	OriginCode      string `json:"OriginCode"`
	DestinationCode string `json:"DestinationCode"`
	LoopDesc        string `json:"LoopDesc"`
}

type envelope[T any] struct {
	Value []T `json:"value"`
}

type datasetLink struct {
	Link string `json:"Link"`
}

// Record converts the stop to a registry input record in WGS84.
func (s BusStop) Record() stops.RawRecord {
	return stops.RawRecord{
		Code: s.BusStopCode,
		Name: s.Description,
		Road: s.RoadName,
		X:    strconv.FormatFloat(s.Longitude, 'f', -1, 64),
		Y:    strconv.FormatFloat(s.Latitude, 'f', -1, 64),
	}
}

// Row converts the route record to a route-table input row. A null
// distance stays empty so the builder falls back to geometry.
func (r BusRoute) Row() routes.RawBusRow {
	row := routes.RawBusRow{
		ServiceNo:    r.ServiceNo,
		Operator:     r.Operator,
		Direction:    strconv.Itoa(r.Direction),
		StopSequence: strconv.Itoa(r.StopSequence),
		BusStopCode:  r.BusStopCode,
	}
	if r.Distance != nil {
		row.Distance = strconv.FormatFloat(*r.Distance, 'f', -1, 64)
	}
	return row
}

// Records converts a BusStops response.
func Records(in []BusStop) []stops.RawRecord {
	out := make([]stops.RawRecord, len(in))
	for i, s := range in {
		out[i] = s.Record()
	}
	return out
}

// Rows converts a BusRoutes response.
func Rows(in []BusRoute) []routes.RawBusRow {
	out := make([]routes.RawBusRow, len(in))
	for i, r := range in {
		out[i] = r.Row()
	}
	return out
}

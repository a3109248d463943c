package realtime

import (
	"fmt"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/jamespfennell/gtfs"
)

// Period is a window during which an alert applies. A zero bound is open.
type Period struct {
	Start time.Time
	End   time.Time
}

func (p Period) contains(t time.Time) bool {
	return (p.Start.IsZero() || !t.Before(p.Start)) && (p.End.IsZero() || t.Before(p.End))
}

// Parse decodes a GTFS-realtime message and returns its alerts and the feed
// header time.
func Parse(body []byte) ([]Alert, time.Time, error) {
	rt, err := gtfs.ParseRealtime(body, &gtfs.ParseRealtimeOptions{})
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("decode alerts feed: %w", err)
	}
	return Decode(rt.Alerts), rt.CreatedAt, nil
}

// Decode converts parsed feed alerts, keeping informed route and stop ids in
// feed order without repeats.
func Decode(in []gtfs.Alert) []Alert {
	var out []Alert
	for _, a := range in {
		alert := Alert{
			ID:         a.ID,
			HeaderText: firstText(a.Header),
			DescText:   firstText(a.Description),
			Effect:     a.Effect.String(),
			Cause:      a.Cause.String(),
		}
		for _, ap := range a.ActivePeriods {
			alert.Active = append(alert.Active, Period{
				Start: timeOrZero(ap.StartsAt),
				End:   timeOrZero(ap.EndsAt),
			})
		}

		routes, stops := mapset.NewThreadUnsafeSet[string](), mapset.NewThreadUnsafeSet[string]()
		for _, ie := range a.InformedEntities {
			if id := deref(ie.RouteID); id != "" && routes.Add(id) {
				alert.RouteIDs = append(alert.RouteIDs, id)
			}
			if id := deref(ie.StopID); id != "" && stops.Add(id) {
				alert.StopIDs = append(alert.StopIDs, id)
			}
		}
		out = append(out, alert)
	}
	return out
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil || t.Unix() == 0 {
		return time.Time{}
	}
	return t.UTC()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func firstText(texts []gtfs.AlertText) string {
	for _, t := range texts {
		if t.Text != "" {
			return t.Text
		}
	}
	return ""
}

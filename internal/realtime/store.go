package realtime

import (
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

// EffectNoService marks an alert whose informed stops are not served.
const EffectNoService = "NO_SERVICE"

// Alert is one decoded service alert.
type Alert struct {
	ID         string
	HeaderText string
	DescText   string
	RouteIDs   []string
	StopIDs    []string
	Effect     string // gtfs Alert_Effect name, e.g. "NO_SERVICE"
	Cause      string
	Active     []Period // empty means always active
}

// ActiveAt reports whether the alert applies at t.
func (a Alert) ActiveAt(t time.Time) bool {
	if len(a.Active) == 0 {
		return true
	}
	for _, p := range a.Active {
		if p.contains(t) {
			return true
		}
	}
	return false
}

// Store holds the latest alerts. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	alerts  []Alert
	updated time.Time
	now     func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{now: time.Now}
}

// SetAlerts replaces all alerts.
func (s *Store) SetAlerts(alerts []Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = alerts
	s.updated = s.now()
}

// Updated returns when alerts were last replaced.
func (s *Store) Updated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updated
}

// AllAlerts returns a copy of the stored alerts.
func (s *Store) AllAlerts() []Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Alert(nil), s.alerts...)
}

// ClosedStops returns the sorted stop ids named by NO_SERVICE alerts that
// are active now, including alerts that also name a route.
func (s *Store) ClosedStops() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	closed := mapset.NewThreadUnsafeSet[string]()
	for _, a := range s.alerts {
		if a.Effect == EffectNoService && a.ActiveAt(now) {
			closed.Append(a.StopIDs...)
		}
	}
	return mapset.Sorted(closed)
}

package model

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidInput is wrapped by every input validation failure.
var ErrInvalidInput = errors.New("invalid input")

// InputError reports the entity and field that failed validation.
type InputError struct {
	Entity string
	ID     string
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s %q: field %s: %s", e.Entity, e.ID, e.Field, e.Reason)
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }

// TimeWindow is a closed time interval.
type TimeWindow struct {
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
}

// Contains reports whether other lies entirely within w.
func (w TimeWindow) Contains(other TimeWindow) bool {
	return !other.Start.Before(w.Start) && !other.End.After(w.End)
}

// Location is a geographic position with an optional street address.
type Location struct {
	Lat     float64 `json:"lat" yaml:"lat"`
	Lng     float64 `json:"lng" yaml:"lng"`
	Address string  `json:"address,omitempty" yaml:"address,omitempty"`
}

// Point drops the address.
func (l Location) Point() Point { return Point{Lat: l.Lat, Lng: l.Lng} }

func (l Location) validate(entity, id, field string) error {
	if !finite(l.Lat) || !finite(l.Lng) {
		return &InputError{Entity: entity, ID: id, Field: field, Reason: "coordinate is not finite"}
	}
	if l.Lat < -90 || l.Lat > 90 || l.Lng < -180 || l.Lng > 180 {
		return &InputError{Entity: entity, ID: id, Field: field, Reason: "coordinate out of range"}
	}
	return nil
}

// Load is a shipment waiting for a driver.
type Load struct {
	ID                  string      `json:"id" yaml:"id"`
	Pickup              Location    `json:"pickup" yaml:"pickup"`
	Delivery            Location    `json:"delivery" yaml:"delivery"`
	Weight              float64     `json:"weight" yaml:"weight"`
	Volume              float64     `json:"volume" yaml:"volume"`
	Priority            int         `json:"priority" yaml:"priority"`
	TimeWindow          *TimeWindow `json:"time_window,omitempty" yaml:"time_window,omitempty"`
	SpecialRequirements []string    `json:"special_requirements,omitempty" yaml:"special_requirements,omitempty"`
}

// Validate rejects non-finite numbers and inverted windows.
func (l Load) Validate() error {
	if l.ID == "" {
		return &InputError{Entity: "load", Field: "id", Reason: "empty"}
	}
	if err := l.Pickup.validate("load", l.ID, "pickup"); err != nil {
		return err
	}
	if err := l.Delivery.validate("load", l.ID, "delivery"); err != nil {
		return err
	}
	if !finite(l.Weight) || l.Weight < 0 {
		return &InputError{Entity: "load", ID: l.ID, Field: "weight", Reason: "must be finite and non-negative"}
	}
	if !finite(l.Volume) || l.Volume < 0 {
		return &InputError{Entity: "load", ID: l.ID, Field: "volume", Reason: "must be finite and non-negative"}
	}
	if l.TimeWindow != nil && l.TimeWindow.End.Before(l.TimeWindow.Start) {
		return &InputError{Entity: "load", ID: l.ID, Field: "time_window", Reason: "end before start"}
	}
	return nil
}

// Performance summarizes a driver's track record.
type Performance struct {
	Rating      float64 `json:"rating" yaml:"rating"`
	OnTimeRate  float64 `json:"on_time_rate" yaml:"on_time_rate"`
	SafetyScore float64 `json:"safety_score" yaml:"safety_score"`
}

// Driver is a person able to carry loads.
type Driver struct {
	ID             string      `json:"id" yaml:"id"`
	Location       Location    `json:"location" yaml:"location"`
	Availability   TimeWindow  `json:"availability" yaml:"availability"`
	Performance    Performance `json:"performance" yaml:"performance"`
	Certifications []string    `json:"certifications,omitempty" yaml:"certifications,omitempty"`
	CurrentLoads   int         `json:"current_loads" yaml:"current_loads"`
}

// Validate rejects non-finite coordinates or scores.
func (d Driver) Validate() error {
	if d.ID == "" {
		return &InputError{Entity: "driver", Field: "id", Reason: "empty"}
	}
	if err := d.Location.validate("driver", d.ID, "location"); err != nil {
		return err
	}
	p := d.Performance
	if !finite(p.Rating) || !finite(p.OnTimeRate) || !finite(p.SafetyScore) {
		return &InputError{Entity: "driver", ID: d.ID, Field: "performance", Reason: "score is not finite"}
	}
	if d.Availability.End.Before(d.Availability.Start) {
		return &InputError{Entity: "driver", ID: d.ID, Field: "availability", Reason: "end before start"}
	}
	return nil
}

// HasCertifications reports whether the driver holds every requirement.
func (d Driver) HasCertifications(reqs []string) bool {
	return CertificationCoverage(d.Certifications, reqs) == 1
}

// CertificationCoverage is the fraction of reqs present in certs. No
// requirement means full coverage.
func CertificationCoverage(certs, reqs []string) float64 {
	if len(reqs) == 0 {
		return 1
	}
	have := make(map[string]struct{}, len(certs))
	for _, c := range certs {
		have[c] = struct{}{}
	}
	matched := 0
	for _, r := range reqs {
		if _, ok := have[r]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(reqs))
}

// Truck is a vehicle, optionally bound to a driver.
type Truck struct {
	ID       string   `json:"id" yaml:"id"`
	Location Location `json:"location" yaml:"location"`
	Capacity float64  `json:"capacity" yaml:"capacity"`
	Type     string   `json:"type" yaml:"type"`
	DriverID string   `json:"driver_id,omitempty" yaml:"driver_id,omitempty"`
}

// Validate rejects non-finite coordinates or capacity.
func (t Truck) Validate() error {
	if t.ID == "" {
		return &InputError{Entity: "truck", Field: "id", Reason: "empty"}
	}
	if err := t.Location.validate("truck", t.ID, "location"); err != nil {
		return err
	}
	if !finite(t.Capacity) || t.Capacity < 0 {
		return &InputError{Entity: "truck", ID: t.ID, Field: "capacity", Reason: "must be finite and non-negative"}
	}
	return nil
}

// ValidateSnapshot validates every entity and returns the first failure.
// IDs must be unique within each entity kind.
func ValidateSnapshot(loads []Load, drivers []Driver, trucks []Truck) error {
	seen := make(map[string]bool, len(loads))
	for _, l := range loads {
		if err := l.Validate(); err != nil {
			return err
		}
		if seen[l.ID] {
			return duplicateID("load", l.ID)
		}
		seen[l.ID] = true
	}
	seen = make(map[string]bool, len(drivers))
	for _, d := range drivers {
		if err := d.Validate(); err != nil {
			return err
		}
		if seen[d.ID] {
			return duplicateID("driver", d.ID)
		}
		seen[d.ID] = true
	}
	seen = make(map[string]bool, len(trucks))
	for _, t := range trucks {
		if err := t.Validate(); err != nil {
			return err
		}
		if seen[t.ID] {
			return duplicateID("truck", t.ID)
		}
		seen[t.ID] = true
	}
	return nil
}

func duplicateID(entity, id string) error {
	return &InputError{Entity: entity, ID: id, Field: "id", Reason: "duplicate"}
}

// Snapshot is the in-memory fleet state a dispatch or suggestion pass works on.
type Snapshot struct {
	Loads   []Load   `json:"loads" yaml:"loads"`
	Drivers []Driver `json:"drivers" yaml:"drivers"`
	Trucks  []Truck  `json:"trucks" yaml:"trucks"`
}

// Validate runs ValidateSnapshot over s.
func (s Snapshot) Validate() error {
	return ValidateSnapshot(s.Loads, s.Drivers, s.Trucks)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Package simulator generates synthetic fleet snapshots for demos and load
// tests of the dispatcher and the assistant.
package simulator

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/kilianp07/fleetdispatch/core/model"
)

const milesPerDegree = 69.0

// FleetConfig holds parameters for bulk snapshot generation.
type FleetConfig struct {
	Loads   int
	Drivers int
	// Trucks defaults to one per driver.
	Trucks      int
	Seed        int64
	Center      model.Location
	RadiusMiles float64
	// HazmatPct is the share of loads requiring a hazmat certification.
	HazmatPct float64
	// CertifiedPct is the share of drivers holding one.
	CertifiedPct float64
	// WindowPct is the share of loads with a pickup time window.
	WindowPct float64
	Day       time.Time
}

// SetDefaults fills unset values. The default center is Dallas, TX.
func (c *FleetConfig) SetDefaults() {
	if c.Trucks <= 0 {
		c.Trucks = c.Drivers
	}
	if c.Center == (model.Location{}) {
		c.Center = model.Location{Lat: 32.7767, Lng: -96.7970}
	}
	if c.RadiusMiles <= 0 {
		c.RadiusMiles = 150
	}
	if c.Day.IsZero() {
		c.Day = time.Now().UTC().Truncate(24 * time.Hour)
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
}

// Validate rejects negative sizes and shares outside [0, 1].
func (c FleetConfig) Validate() error {
	if c.Loads < 0 || c.Drivers < 0 || c.Trucks < 0 {
		return fmt.Errorf("simulator: fleet sizes must not be negative")
	}
	for name, v := range map[string]float64{"hazmat": c.HazmatPct, "certified": c.CertifiedPct, "window": c.WindowPct} {
		if v < 0 || v > 1 {
			return fmt.Errorf("simulator: %s share %v outside [0, 1]", name, v)
		}
	}
	return nil
}

// GenerateFleet creates a snapshot with IDs load0001.., drv0001.. and
// trk0001... The same seed always yields the same snapshot.
func GenerateFleet(cfg FleetConfig) (model.Snapshot, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return model.Snapshot{}, err
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	snap := model.Snapshot{
		Loads:   make([]model.Load, cfg.Loads),
		Drivers: make([]model.Driver, cfg.Drivers),
		Trucks:  make([]model.Truck, cfg.Trucks),
	}
	for i := range snap.Loads {
		l := model.Load{
			ID:       fmt.Sprintf("load%04d", i+1),
			Pickup:   scatter(rng, cfg.Center, cfg.RadiusMiles),
			Delivery: scatter(rng, cfg.Center, 3*cfg.RadiusMiles),
			Weight:   math.Round(2000 + rng.Float64()*38000),
			Volume:   math.Round(500 + rng.Float64()*2500),
			Priority: 1 + rng.Intn(10),
		}
		if rng.Float64() < cfg.HazmatPct {
			l.SpecialRequirements = []string{"hazmat"}
		}
		if rng.Float64() < cfg.WindowPct {
			start := cfg.Day.Add(time.Duration(6+rng.Intn(10)) * time.Hour)
			l.TimeWindow = &model.TimeWindow{Start: start, End: start.Add(time.Duration(2+rng.Intn(4)) * time.Hour)}
		}
		snap.Loads[i] = l
	}
	for i := range snap.Drivers {
		start := cfg.Day.Add(time.Duration(4+rng.Intn(6)) * time.Hour)
		d := model.Driver{
			ID:           fmt.Sprintf("drv%04d", i+1),
			Location:     scatter(rng, cfg.Center, cfg.RadiusMiles),
			Availability: model.TimeWindow{Start: start, End: start.Add(time.Duration(8+rng.Intn(5)) * time.Hour)},
			Performance: model.Performance{
				Rating:      round2(3 + 2*rng.Float64()),
				OnTimeRate:  round2(0.7 + 0.3*rng.Float64()),
				SafetyScore: round2(0.6 + 0.4*rng.Float64()),
			},
		}
		if rng.Float64() < cfg.CertifiedPct {
			d.Certifications = []string{"hazmat"}
		}
		snap.Drivers[i] = d
	}
	for i := range snap.Trucks {
		t := model.Truck{
			ID:       fmt.Sprintf("trk%04d", i+1),
			Capacity: 40000,
			Type:     "dry_van",
		}
		if i < len(snap.Drivers) {
			t.Location = snap.Drivers[i].Location
			t.DriverID = snap.Drivers[i].ID
		} else {
			t.Location = scatter(rng, cfg.Center, cfg.RadiusMiles)
		}
		snap.Trucks[i] = t
	}
	return snap, nil
}

// scatter returns a point uniformly distributed in a disc of radius miles.
func scatter(rng *rand.Rand, c model.Location, radius float64) model.Location {
	r := radius * math.Sqrt(rng.Float64())
	theta := 2 * math.Pi * rng.Float64()
	lat := c.Lat + r*math.Cos(theta)/milesPerDegree
	lng := c.Lng + r*math.Sin(theta)/(milesPerDegree*math.Cos(c.Lat*math.Pi/180))
	return model.Location{Lat: round4(lat), Lng: round4(lng)}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*1e4) / 1e4 }

package simulator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetdispatch/core/model"
)

var day = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func TestGenerateFleetCount(t *testing.T) {
	snap, err := GenerateFleet(FleetConfig{Loads: 5, Drivers: 3, Seed: 1, Day: day})
	require.NoError(t, err)
	require.Len(t, snap.Loads, 5)
	require.Len(t, snap.Drivers, 3)
	require.Len(t, snap.Trucks, 3)
	assert.Equal(t, "load0001", snap.Loads[0].ID)
	assert.Equal(t, "load0005", snap.Loads[4].ID)
	assert.Equal(t, "drv0003", snap.Drivers[2].ID)
	assert.Equal(t, "drv0001", snap.Trucks[0].DriverID)
	assert.NoError(t, snap.Validate())
}

func TestGenerateFleetDeterministic(t *testing.T) {
	cfg := FleetConfig{Loads: 20, Drivers: 10, Seed: 42, Day: day, HazmatPct: 0.3, WindowPct: 0.5}
	a, err := GenerateFleet(cfg)
	require.NoError(t, err)
	b, err := GenerateFleet(cfg)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGenerateFleetStaysInRadius(t *testing.T) {
	center := model.Location{Lat: 41.8781, Lng: -87.6298}
	snap, err := GenerateFleet(FleetConfig{Loads: 50, Drivers: 50, Seed: 7, Day: day, Center: center, RadiusMiles: 40})
	require.NoError(t, err)
	for _, l := range snap.Loads {
		assert.LessOrEqual(t, model.DistanceMiles(center, l.Pickup), 41.0, l.ID)
	}
	for _, d := range snap.Drivers {
		assert.LessOrEqual(t, model.DistanceMiles(center, d.Location), 41.0, d.ID)
		assert.True(t, d.Availability.End.After(d.Availability.Start))
	}
}

func TestDistribution(t *testing.T) {
	snap, err := GenerateFleet(FleetConfig{Loads: 200, Drivers: 200, Seed: 1, Day: day, HazmatPct: 0.5, CertifiedPct: 0.25})
	require.NoError(t, err)
	hazmat, certified := 0, 0
	for _, l := range snap.Loads {
		if len(l.SpecialRequirements) > 0 {
			hazmat++
		}
	}
	for _, d := range snap.Drivers {
		if len(d.Certifications) > 0 {
			certified++
		}
	}
	assert.InDelta(t, 100, hazmat, 30)
	assert.InDelta(t, 50, certified, 25)
}

func TestValidate(t *testing.T) {
	_, err := GenerateFleet(FleetConfig{Loads: -1})
	assert.Error(t, err)
	_, err = GenerateFleet(FleetConfig{Loads: 1, HazmatPct: 1.5})
	assert.Error(t, err)
}

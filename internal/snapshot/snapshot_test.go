package snapshot

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetdispatch/core/model"
)

const fleetYAML = `
loads:
  - id: L1
    pickup: {lat: 32.7767, lng: -96.797, address: Dallas}
    delivery: {lat: 29.7604, lng: -95.3698}
    weight: 12000
    priority: 9
    time_window:
      start: 2024-05-01T08:00:00Z
      end: 2024-05-01T18:00:00Z
    special_requirements: [hazmat]
drivers:
  - id: D1
    location: {lat: 32.78, lng: -96.80}
    availability:
      start: 2024-05-01T06:00:00Z
      end: 2024-05-01T20:00:00Z
    performance: {rating: 4.8, on_time_rate: 0.95, safety_score: 0.9}
    certifications: [hazmat]
trucks:
  - id: T1
    location: {lat: 32.78, lng: -96.80}
    capacity: 40000
    type: tanker
    driver_id: D1
`

func TestDecodeYAML(t *testing.T) {
	s, err := DecodeYAML(strings.NewReader(fleetYAML))
	require.NoError(t, err)
	require.Len(t, s.Loads, 1)
	l := s.Loads[0]
	assert.Equal(t, "Dallas", l.Pickup.Address)
	require.NotNil(t, l.TimeWindow)
	assert.Equal(t, time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC), l.TimeWindow.Start.UTC())
	assert.Equal(t, []string{"hazmat"}, l.SpecialRequirements)
	assert.Equal(t, 0.95, s.Drivers[0].Performance.OnTimeRate)
	assert.Equal(t, "D1", s.Trucks[0].DriverID)
}

func TestDecodeYAMLRejectsUnknownFields(t *testing.T) {
	_, err := DecodeYAML(strings.NewReader("loads:\n  - id: L1\n    wieght: 3\n"))
	assert.Error(t, err)
}

func TestDecodeYAMLValidates(t *testing.T) {
	_, err := DecodeYAML(strings.NewReader("loads:\n  - id: L1\n    weight: -5\n"))
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestDecodeEmpty(t *testing.T) {
	s, err := DecodeYAML(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, s.Loads)
}

func TestLoadByExtension(t *testing.T) {
	dir := t.TempDir()
	yml := filepath.Join(dir, "fleet.yaml")
	require.NoError(t, os.WriteFile(yml, []byte(fleetYAML), 0o644))
	fromYAML, err := Load(yml)
	require.NoError(t, err)

	js := filepath.Join(dir, "fleet.json")
	require.NoError(t, os.WriteFile(js, []byte(`{"loads":[{"id":"L1","pickup":{"lat":1,"lng":2},"delivery":{"lat":1,"lng":3},"weight":10,"priority":2}],"drivers":[],"trucks":[]}`), 0o644))
	fromJSON, err := Load(js)
	require.NoError(t, err)
	assert.Equal(t, 2, fromJSON.Loads[0].Priority)
	assert.Equal(t, "L1", fromYAML.Loads[0].ID)

	_, err = Load(filepath.Join(dir, "fleet.toml"))
	assert.Error(t, err)
}

func TestEncodeYAMLRoundTrip(t *testing.T) {
	s, err := DecodeYAML(strings.NewReader(fleetYAML))
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, EncodeYAML(&buf, s))
	back, err := DecodeYAML(&buf)
	require.NoError(t, err)
	assert.Equal(t, s.Drivers[0].Certifications, back.Drivers[0].Certifications)
	assert.True(t, s.Loads[0].TimeWindow.Start.Equal(back.Loads[0].TimeWindow.Start))
}

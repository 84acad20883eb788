package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetdispatch/core/model"
)

var entries = []model.AuditEntry{
	{
		ID: "a1", Seq: 1, Timestamp: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
		Action: model.AuditSuggestionGenerated, LoadID: "L1", DriverID: "D1", UserID: "system",
		SuggestionID: "s1", Reason: "rule-based score 92/100, near",
		Metadata: map[string]string{"source": "rules", "confidence": "0.9200"},
	},
	{
		ID: "a2", Seq: 2, Timestamp: time.Date(2024, 5, 1, 8, 5, 0, 0, time.UTC),
		Action: model.AuditManualOverride, LoadID: "L1", DriverID: "D7", UserID: "alice", SuggestionID: "s1",
	},
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, entries))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "2024-05-01T08:00:00Z", rows[1][2])
	assert.Equal(t, "rule-based score 92/100, near", rows[1][8])
	assert.Equal(t, "confidence=0.9200;source=rules", rows[1][9])
	assert.Equal(t, "manual_override", rows[2][3])
	assert.Equal(t, "", rows[2][9])
}

func TestWriteJSONLines(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "json", entries))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var got model.AuditEntry
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &got))
	assert.Equal(t, "D7", got.DriverID)
}

func TestWriteUnknownFormat(t *testing.T) {
	assert.Error(t, Write(&bytes.Buffer{}, "xml", entries))
}

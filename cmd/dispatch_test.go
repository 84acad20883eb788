package cmd

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetdispatch/core/model"
)

func TestRenderDispatch(t *testing.T) {
	var buf bytes.Buffer
	renderDispatch(&buf, model.DispatchResult{
		Decisions:       []model.DispatcherDecision{{LoadID: "L1", DriverID: "D1", RuleID: "proximity", Confidence: 0.9, DistanceMiles: 12.34}},
		UnassignedLoads: []string{"L2"},
		Metadata:        model.DispatchMetadata{TotalLoads: 2, AssignedLoads: 1},
	})
	out := buf.String()
	assert.Contains(t, out, "L1")
	assert.Contains(t, out, "12.3")
	assert.Contains(t, out, "1/2")
	assert.Contains(t, out, "unassigned: L2")
}

func TestRenderSuggestionsMentionsReview(t *testing.T) {
	var buf bytes.Buffer
	renderSuggestions(&buf, model.AutomationResult{
		Suggestions: []model.AutomationSuggestion{{ID: "s1", LoadID: "L1", DriverID: "D1", Source: model.SourceRules, Score: 88, Confidence: 0.88}},
	})
	assert.Contains(t, buf.String(), "s1")
	assert.Contains(t, buf.String(), "require human review")
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, map[string]int{"a": 1}))
	var got map[string]int
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, 1, got["a"])
}

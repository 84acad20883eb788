// Package export writes audit entries for review outside the service.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/fleetdispatch/core/model"
)

var csvHeader = []string{"seq", "id", "timestamp", "action", "load_id", "driver_id", "user_id", "suggestion_id", "reason", "metadata"}

// WriteJSON writes the entries to w as JSON lines.
func WriteJSON(w io.Writer, entries []model.AuditEntry) error {
	enc := json.NewEncoder(w)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return nil
}

// WriteCSV writes the entries to w in CSV format. Metadata is flattened to
// sorted key=value pairs separated by ';'.
func WriteCSV(w io.Writer, entries []model.AuditEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, e := range entries {
		rec := []string{
			strconv.FormatUint(e.Seq, 10),
			e.ID,
			e.Timestamp.UTC().Format(time.RFC3339Nano),
			string(e.Action),
			e.LoadID,
			e.DriverID,
			e.UserID,
			e.SuggestionID,
			e.Reason,
			flatten(e.Metadata),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Write dispatches on format: "csv" or "json".
func Write(w io.Writer, format string, entries []model.AuditEntry) error {
	switch strings.ToLower(format) {
	case "csv":
		return WriteCSV(w, entries)
	case "json", "jsonl":
		return WriteJSON(w, entries)
	}
	return fmt.Errorf("export: unknown format %q", format)
}

func flatten(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + m[k]
	}
	return strings.Join(parts, ";")
}

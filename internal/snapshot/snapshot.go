// Package snapshot reads fleet snapshots (loads, drivers, trucks) from YAML
// or JSON files for the CLI and the HTTP service.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/fleetdispatch/core/model"
)

// Load reads and validates the snapshot at path. The format follows the
// file extension.
func Load(path string) (model.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Snapshot{}, err
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return DecodeYAML(f)
	case ".json":
		return DecodeJSON(f)
	default:
		return model.Snapshot{}, fmt.Errorf("unsupported snapshot format: %s", ext)
	}
}

// DecodeYAML parses a YAML snapshot. Unknown keys are rejected.
func DecodeYAML(r io.Reader) (model.Snapshot, error) {
	var s model.Snapshot
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return model.Snapshot{}, fmt.Errorf("snapshot: %w", err)
	}
	return s, s.Validate()
}

// DecodeJSON parses a JSON snapshot. Unknown keys are rejected.
func DecodeJSON(r io.Reader) (model.Snapshot, error) {
	var s model.Snapshot
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return model.Snapshot{}, fmt.Errorf("snapshot: %w", err)
	}
	return s, s.Validate()
}

// EncodeYAML writes s as YAML.
func EncodeYAML(w io.Writer, s model.Snapshot) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

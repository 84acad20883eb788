package scenarios

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kilianp07/fleetdispatch/core/model"
)

func TestScenario(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "*.yaml"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(files) == 0 {
		t.Fatal("no scenarios found")
	}
	for _, f := range files {
		sc, err := Load(f)
		if err != nil {
			t.Fatalf("load %s: %v", f, err)
		}
		t.Run(sc.Name, func(t *testing.T) {
			RunScenario(t, sc)
		})
	}
}

func TestLoadInvalid(t *testing.T) {
	if _, err := Load("no-file.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
	dir := t.TempDir()
	cases := map[string]string{
		"syntax.yaml":   ":",
		"unknown.yaml":  "name: x\nvehicles: []\n",
		"unnamed.yaml":  "snapshot: {loads: []}\n",
		"negative.yaml": "name: x\nsnapshot:\n  loads:\n    - {id: L1, weight: -1}\n",
	}
	for name, body := range cases {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestMockPublisherFailsConfiguredDrivers(t *testing.T) {
	p := newMockPublisher([]string{"D1"})
	if err := p.PublishDecision(context.Background(), model.DispatcherDecision{LoadID: "L1", DriverID: "D1"}); err != errBrokerDown {
		t.Fatalf("expected broker down, got %v", err)
	}
	if err := p.PublishDecision(context.Background(), model.DispatcherDecision{LoadID: "L2", DriverID: "D2"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.sent) != 1 || p.sent[0] != "L2" {
		t.Fatalf("unexpected sent list %v", p.sent)
	}
}

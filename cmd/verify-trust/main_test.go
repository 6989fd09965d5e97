package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/arun0009/systemcerts/internal/harness"
	"github.com/arun0009/systemcerts/pkg/client"
)

func TestPrintResults(t *testing.T) {
	color.NoColor = true
	ok := harness.Surface{Name: "get", Call: func(_ context.Context, _ string, v client.Verify) (harness.Reply, error) {
		if v.IsSet() {
			return harness.Reply{}, nil
		}
		return harness.Reply{StatusCode: 200, OK: true}, nil
	}}
	results := harness.Run(context.Background(), "https://localhost:1", []harness.Surface{ok}, 1)

	var buf bytes.Buffer
	printResults(&buf, results)
	out := buf.String()
	if !strings.HasPrefix(out, "✗ get") {
		t.Errorf("expected failed mark for get, got %q", out)
	}
	if !strings.Contains(out, "explicit get worked without system certs") {
		t.Errorf("missing explicit failure line: %q", out)
	}
	if failedSurfaces(results) != 1 {
		t.Errorf("failedSurfaces = %d, want 1", failedSurfaces(results))
	}
}

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "harness.yaml")
	cmd := initConfigCmd()
	cmd.SetArgs([]string{path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("init-config: %v", err)
	}
	if _, err := harness.LoadConfig(path); err != nil {
		t.Errorf("written config does not load: %v", err)
	}

	cmd = initConfigCmd()
	cmd.SetArgs([]string{path})
	cmd.SilenceErrors, cmd.SilenceUsage = true, true
	if err := cmd.Execute(); err == nil {
		t.Error("expected refusal to overwrite")
	}

	os.WriteFile(path, []byte("junk: ["), 0644)
	cmd = initConfigCmd()
	cmd.SetArgs([]string{"--force", path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("init-config --force: %v", err)
	}
	if _, err := harness.LoadConfig(path); err != nil {
		t.Errorf("forced config does not load: %v", err)
	}
}

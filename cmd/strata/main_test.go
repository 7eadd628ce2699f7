package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"strata/internal/store"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	content := fmt.Sprintf(`[paths]
data_dir = %q
staging_dir = %q
log_dir = %q
api_bind = ""
`, filepath.Join(base, "data"), filepath.Join(base, "staging"), filepath.Join(base, "logs"))

	path := filepath.Join(base, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("output does not mention target: %q", out)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	for _, section := range []string{"[paths]", "[tiers.hot]", "[migration]", "[placement]"} {
		if !strings.Contains(string(data), section) {
			t.Fatalf("sample missing %s", section)
		}
	}

	// A second init without --overwrite must refuse.
	if _, err := runCommand(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected second init to fail without --overwrite")
	}
	if _, err := runCommand(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("overwrite init: %v", err)
	}
}

func TestConfigShowPrintsEffectiveConfig(t *testing.T) {
	configPath := writeTestConfig(t)

	out, err := runCommand(t, "-c", configPath, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "loaded from "+configPath) {
		t.Fatalf("output does not mention the source file: %q", out)
	}
	for _, key := range []string{"max_concurrent = 5", "min_replicas = 2", "min_samples = 10"} {
		if !strings.Contains(out, key) {
			t.Fatalf("output missing default %q: %q", key, out)
		}
	}
}

func TestObjectsAddListShow(t *testing.T) {
	configPath := writeTestConfig(t)

	out, err := runCommand(t, "-c", configPath, "objects", "add", "reports/q2.parquet",
		"--size", "2147483648", "--tier", "warm")
	if err != nil {
		t.Fatalf("objects add: %v", err)
	}
	if !strings.Contains(out, "reports/q2.parquet") || !strings.Contains(out, "Warm") {
		t.Fatalf("unexpected add output: %q", out)
	}

	out, err = runCommand(t, "-c", configPath, "objects", "list", "--json")
	if err != nil {
		t.Fatalf("objects list: %v", err)
	}
	var objects []*store.DataObject
	if err := json.Unmarshal([]byte(out), &objects); err != nil {
		t.Fatalf("decode list output: %v", err)
	}
	if len(objects) != 1 || objects[0].Name != "reports/q2.parquet" {
		t.Fatalf("unexpected objects: %+v", objects)
	}

	out, err = runCommand(t, "-c", configPath, "objects", "show", "reports/q2.parquet")
	if err != nil {
		t.Fatalf("objects show: %v", err)
	}
	if !strings.Contains(out, "2.0 GiB") {
		t.Fatalf("show output missing size: %q", out)
	}
}

func TestMigrateSubmitQueuesTask(t *testing.T) {
	configPath := writeTestConfig(t)

	if _, err := runCommand(t, "-c", configPath, "objects", "add", "archive.tar",
		"--size", "1073741824", "--tier", "hot"); err != nil {
		t.Fatalf("objects add: %v", err)
	}

	out, err := runCommand(t, "-c", configPath, "migrate", "submit", "archive.tar", "cold")
	if err != nil {
		t.Fatalf("migrate submit: %v", err)
	}
	if !strings.Contains(out, "Hot -> Cold") {
		t.Fatalf("unexpected submit output: %q", out)
	}

	out, err = runCommand(t, "-c", configPath, "migrate", "list", "--json")
	if err != nil {
		t.Fatalf("migrate list: %v", err)
	}
	var tasks []*store.Task
	if err := json.Unmarshal([]byte(out), &tasks); err != nil {
		t.Fatalf("decode tasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Status != store.StatusPending {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
}

func TestEvaluateEmptyFleet(t *testing.T) {
	configPath := writeTestConfig(t)

	out, err := runCommand(t, "-c", configPath, "evaluate")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !strings.Contains(out, "No objects to evaluate") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestSeedThenTrain(t *testing.T) {
	configPath := writeTestConfig(t)

	out, err := runCommand(t, "-c", configPath, "seed")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if !strings.Contains(out, "Seeded 10 demo objects") {
		t.Fatalf("unexpected seed output: %q", out)
	}

	out, err = runCommand(t, "-c", configPath, "train")
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if !strings.Contains(out, "Trained model v1") {
		t.Fatalf("unexpected train output: %q", out)
	}
}

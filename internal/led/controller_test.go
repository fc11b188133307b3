package led

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNoopController(t *testing.T) {
	ctrl := newNoop(testLogger())

	if err := ctrl.Set("user", true, "solid"); err != nil {
		t.Errorf("Set() returned error: %v", err)
	}
	if types := ctrl.Available(); len(types) != 0 {
		t.Errorf("Available() = %v, want empty slice", types)
	}
	if patterns := ctrl.Patterns(); len(patterns) != 0 {
		t.Errorf("Patterns() = %v, want empty slice", patterns)
	}
}

func fakeLED(t *testing.T, name string) (root, dir string) {
	t.Helper()
	root = t.TempDir()
	dir = filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	return root, dir
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestSysfsController_Set(t *testing.T) {
	tests := []struct {
		name           string
		enabled        bool
		pattern        string
		wantTrigger    string
		wantBrightness string
	}{
		{"solid", true, "solid", "none", "1"},
		{"blink", true, "blink", "heartbeat", "1"},
		{"raw trigger", true, "timer", "timer", "1"},
		{"off", false, "", "none", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, dir := fakeLED(t, "sys_led")
			ctrl := newSysfs(map[string]string{"system": "sys_led"})
			ctrl.root = root

			if err := ctrl.Set("system", tt.enabled, tt.pattern); err != nil {
				t.Fatalf("Set: %v", err)
			}
			if got := readFile(t, filepath.Join(dir, "trigger")); got != tt.wantTrigger {
				t.Errorf("trigger = %q, want %q", got, tt.wantTrigger)
			}
			if got := readFile(t, filepath.Join(dir, "brightness")); got != tt.wantBrightness {
				t.Errorf("brightness = %q, want %q", got, tt.wantBrightness)
			}
		})
	}
}

func TestSysfsController_Errors(t *testing.T) {
	ctrl := newSysfs(map[string]string{"user": "usr_led"})
	ctrl.root = t.TempDir()

	if err := ctrl.Set("nonexistent", true, ""); err == nil {
		t.Error("Set() with invalid LED type should return error")
	}
	if err := ctrl.Set("user", true, "solid"); err == nil {
		t.Error("Set() on a missing LED directory should return error")
	}
}

func TestSysfsController_Patterns(t *testing.T) {
	ctrl := newSysfs(map[string]string{"user": "usr_led"})
	want := []string{"solid", "blink", "heartbeat"}
	got := ctrl.Patterns()
	if len(got) != len(want) {
		t.Fatalf("Patterns() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Patterns()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

package debug

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDisabledWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	SetEnabled(false)
	SetOutput(&buf)

	Log("hidden %d", 1)
	LogTiming("x", time.Second)
	LogEnterExit("y")()
	Section("z")

	if buf.Len() != 0 {
		t.Errorf("disabled logger wrote %q", buf.String())
	}
}

func TestEnabledWritesPrefixed(t *testing.T) {
	var buf bytes.Buffer
	SetEnabled(true)
	SetOutput(&buf)
	defer SetEnabled(false)

	Log("loaded %d rounds", 12)
	LogEnterExit("bootstrap")()
	LogTiming("cache load", 3*time.Millisecond)
	Section("metrics")

	got := buf.String()
	for _, want := range []string{"[EMBER]", "loaded 12 rounds", "-> bootstrap", "<- bootstrap", "cache load took 3ms", "=== metrics ==="} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestLogToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	SetEnabled(true)
	defer SetEnabled(false)
	if err := LogToFile(path); err != nil {
		t.Fatal(err)
	}
	Log("zoom %.1f", 1.5)
	Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "zoom 1.5") {
		t.Errorf("file content = %q", data)
	}
}

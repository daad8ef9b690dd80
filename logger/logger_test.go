package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

func TestWithComponent(t *testing.T) {
	log := Logger()
	entry := log.WithComponent("test")
	if v, ok := entry.Entry.Data["component"]; !ok || v != "test" {
		t.Fatalf("component field missing: %v", entry.Entry.Data)
	}
}

func TestConfigureInvalidLevel(t *testing.T) {
	// Ensure environment variables do not override the provided level
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("invalid", "json", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}

func TestConfigureInvalidFormat(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("info", "xml", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid format")
	}
}

func TestConfigureFileOutput(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	path := filepath.Join(t.TempDir(), "engageflow.log")
	log := Logger()
	if err := log.Configure("info", "json", path, 0); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	log.WithComponent("test").Info("hello")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !bytes.Contains(data, []byte(`"message":"hello"`)) {
		t.Fatalf("log file missing message: %s", data)
	}
}

func TestJSONFieldMap(t *testing.T) {
	var buf bytes.Buffer
	log := Logger()
	log.SetOutput(&buf)
	log.WithComponent("campaign_driver").Info("started")

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	for _, key := range []string{"timestamp", "level", "message", "component"} {
		if _, ok := line[key]; !ok {
			t.Errorf("missing %q in %v", key, line)
		}
	}
}

func TestWarnCountsPerComponent(t *testing.T) {
	var buf bytes.Buffer
	log := Logger()
	log.SetOutput(&buf)

	before := atomic.LoadInt64(&warnsSpin)
	log.WithComponent("spin_driver").Warn("glitch")
	if got := atomic.LoadInt64(&warnsSpin); got != before+1 {
		t.Fatalf("warnsSpin = %d, want %d", got, before+1)
	}
}

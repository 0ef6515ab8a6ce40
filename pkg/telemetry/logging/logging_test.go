package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestSetupJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger, err := SetupWithWriter("info", "json", &buf)
	if err != nil {
		t.Fatalf("SetupWithWriter failed: %v", err)
	}

	logger.Info("request admitted", "client_id", "team-a")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if entry["msg"] != "request admitted" {
		t.Errorf("unexpected msg: %v", entry["msg"])
	}
	if entry["client_id"] != "team-a" {
		t.Errorf("unexpected client_id: %v", entry["client_id"])
	}
}

func TestSetupLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := SetupWithWriter("warn", "text", &buf)
	if err != nil {
		t.Fatalf("SetupWithWriter failed: %v", err)
	}

	logger.Info("should be filtered")
	logger.Warn("should appear")

	out := buf.String()
	if strings.Contains(out, "should be filtered") {
		t.Error("info entry emitted at warn level")
	}
	if !strings.Contains(out, "should appear") {
		t.Error("warn entry missing")
	}
}

func TestSetupInstallsDefault(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	logger, err := SetupWithWriter("debug", "json", &buf)
	if err != nil {
		t.Fatalf("SetupWithWriter failed: %v", err)
	}
	if slog.Default() != logger {
		t.Error("Setup did not install the returned logger as default")
	}
}

func TestSetupRejectsUnknownValues(t *testing.T) {
	if _, err := SetupWithWriter("loud", "json", &bytes.Buffer{}); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := SetupWithWriter("info", "xml", &bytes.Buffer{}); err == nil {
		t.Error("expected error for unknown format")
	}
}

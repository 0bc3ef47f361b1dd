package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestVersionCmd_Output(t *testing.T) {
	app := New()
	app.SetVersion("1.2.3", "abc1234", "2026-01-15T10:30:00Z")

	cmd := NewVersionCmd(app)
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("version command failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	want := []string{
		"trunkback version 1.2.3",
		"commit: abc1234",
		"built: 2026-01-15T10:30:00Z",
	}
	if len(lines) != len(want) {
		t.Fatalf("Expected %d lines of output, got %d: %q", len(want), len(lines), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d: expected %q, got %q", i, want[i], lines[i])
		}
	}
}

func TestSetVersion(t *testing.T) {
	app := New()

	if app.versionInfo != (VersionInfo{}) {
		t.Error("Initial version info should be empty")
	}

	app.SetVersion("1.2.3", "abc1234", "2026-01-15T10:30:00Z")

	want := VersionInfo{Version: "1.2.3", Commit: "abc1234", Date: "2026-01-15T10:30:00Z"}
	if app.versionInfo != want {
		t.Errorf("Expected %+v, got %+v", want, app.versionInfo)
	}
}

func TestVersionCmd_DefaultValues(t *testing.T) {
	app := New()

	cmd := NewVersionCmd(app)
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("version command failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "trunkback version dev") {
		t.Error("Output should contain default version 'dev'")
	}
	if n := strings.Count(output, "unknown"); n != 2 {
		t.Errorf("Expected 2 occurrences of 'unknown', got %d", n)
	}
}

package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/heimdex/heimdex-editor/internal/export"
)

// offlineEnv points the commands at the in-memory gateway and a scratch
// data dir.
func offlineEnv(t *testing.T) {
	t.Helper()
	t.Setenv("EDITOR_ENV", "production")
	t.Setenv("EDITOR_OFFLINE", "true")
	t.Setenv("EDITOR_DATA_DIR", t.TempDir())
	t.Setenv("EDITOR_LOG_LEVEL", "error")
	t.Setenv("EDITOR_POLL_INTERVAL_MS", "10")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), err
}

func TestRootCommand_Version(t *testing.T) {
	out, err := execute(t, "--version")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if strings.TrimSpace(out) != Version {
		t.Errorf("version output = %q, want %q", out, Version)
	}
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "edl", "suggestions", "export"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("Find(%q) = %v, %v", name, cmd, err)
		}
	}
}

func TestEDLCommand(t *testing.T) {
	offlineEnv(t)

	out, err := execute(t, "edl", "job-1", "--duration", "12")
	if err != nil {
		t.Fatalf("edl error = %v", err)
	}
	if !strings.Contains(out, "TITLE: job-1") || !strings.Contains(out, "FCM: NON-DROP FRAME") {
		t.Fatalf("edl output = %q", out)
	}
	if !strings.Contains(out, "00:00:12:00") {
		t.Errorf("edl should keep the whole 12s source:\n%s", out)
	}
}

func TestEDLCommand_WritesFile(t *testing.T) {
	offlineEnv(t)
	dest := filepath.Join(t.TempDir(), "out.edl")

	if _, err := execute(t, "edl", "job-1", "--title", "Cut A", "--frame-rate", "29.97", "-o", dest); err != nil {
		t.Fatalf("edl error = %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "TITLE: Cut A") || !strings.Contains(string(data), "FCM: DROP FRAME") {
		t.Fatalf("file contents = %q", data)
	}
}

func TestEDLCommand_RequiresJob(t *testing.T) {
	offlineEnv(t)
	if _, err := execute(t, "edl"); err == nil {
		t.Fatal("edl without a job id should fail")
	}
}

func TestSuggestionsCommand(t *testing.T) {
	offlineEnv(t)

	out, err := execute(t, "suggestions", "job-1")
	if err != nil {
		t.Fatalf("suggestions error = %v", err)
	}
	if !strings.Contains(out, "No suggestions.") {
		t.Errorf("output = %q", out)
	}

	if _, err := execute(t, "suggestions", "job-1", "--level", "severe"); err == nil {
		t.Fatal("unknown level should fail")
	}
}

func TestExportCommand_Wait(t *testing.T) {
	offlineEnv(t)

	out, err := execute(t, "export", "job-1", "--wait", "--timeout", "5s")
	if err != nil {
		t.Fatalf("export error = %v (output = %s)", err, out)
	}
	if !strings.Contains(out, "Export completed") || !strings.Contains(out, "memory://exports/job-1/") {
		t.Fatalf("export output = %q", out)
	}
}

func TestExportCommand_NoWait(t *testing.T) {
	offlineEnv(t)

	out, err := execute(t, "export", "job-1")
	if err != nil {
		t.Fatalf("export error = %v", err)
	}
	if !strings.Contains(out, "Export started") {
		t.Fatalf("export output = %q", out)
	}
}

func TestExportSettled(t *testing.T) {
	tests := []struct {
		name  string
		state export.State
		want  bool
	}{
		{"pending", export.State{Status: export.StatusPending}, false},
		{"failed", export.State{Status: export.StatusFailed}, true},
		{"completed awaiting link", export.State{Status: export.StatusCompleted}, false},
		{"completed with link", export.State{Status: export.StatusCompleted, DownloadURL: "https://x"}, true},
		{"completed link failed", export.State{Status: export.StatusCompleted, Err: &export.DownloadError{JobID: "j", Err: errors.New("gone")}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exportSettled(tt.state); got != tt.want {
				t.Errorf("exportSettled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReportExport_Failed(t *testing.T) {
	var buf bytes.Buffer
	err := reportExport(&buf, export.State{ExportID: "e1", Status: export.StatusFailed, ErrorMessage: "encoder crashed"})
	if err == nil || !strings.Contains(err.Error(), "encoder crashed") {
		t.Fatalf("reportExport() error = %v", err)
	}
}

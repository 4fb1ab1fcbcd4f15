package main

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// binaryName returns the appropriate binary name for the current OS
func binaryName() string {
	if runtime.GOOS == "windows" {
		return "xlsdraw_test.exe"
	}
	return "xlsdraw_test"
}

// buildTestBinary builds the binary into a temp dir and returns its path
func buildTestBinary(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping binary build in short mode")
	}
	binPath := filepath.Join(t.TempDir(), binaryName())
	buildCmd := exec.Command("go", "build", "-o", binPath, ".")
	if output, err := buildCmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to build binary: %v\noutput: %s", err, output)
	}
	return binPath
}

// command runs the binary against an isolated config file
func command(t *testing.T, binPath string, args ...string) *exec.Cmd {
	t.Helper()
	cmd := exec.Command(binPath, args...)
	cmd.Env = append(os.Environ(), "XLSDRAW_CONFIG="+filepath.Join(t.TempDir(), "config.yaml"))
	return cmd
}

func TestVersionCommand(t *testing.T) {
	binPath := buildTestBinary(t)

	output, err := command(t, binPath, "version").CombinedOutput()
	if err != nil {
		t.Errorf("unexpected error: %v\noutput: %s", err, output)
	}

	if !strings.Contains(string(output), "xlsdraw") {
		t.Errorf("output should contain 'xlsdraw', got: %s", output)
	}
}

func TestInspectCommand_Errors(t *testing.T) {
	binPath := buildTestBinary(t)

	notOLE := filepath.Join(t.TempDir(), "book.xlsx")
	if err := os.WriteFile(notOLE, []byte("PK\x03\x04 not a compound file"), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	tests := []struct {
		name       string
		args       []string
		wantOutput string
	}{
		{"non-existent file", []string{"inspect", "nonexistent.xls"}, "파일을 찾을 수 없습니다"},
		{"not a compound file", []string{"inspect", notOLE}, "OLE2"},
		{"missing argument", []string{"inspect"}, "accepts 1 arg"},
		{"roundtrip non-existent file", []string{"roundtrip", "nonexistent.xls"}, "파일을 찾을 수 없습니다"},
		{"images non-existent file", []string{"images", "nonexistent.xls"}, "파일을 찾을 수 없습니다"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			output, err := command(t, binPath, tc.args...).CombinedOutput()
			if err == nil {
				t.Errorf("expected error, got none\noutput: %s", output)
			}
			if !strings.Contains(string(output), tc.wantOutput) {
				t.Errorf("output should contain %q, got: %s", tc.wantOutput, output)
			}
		})
	}
}

func TestInspectCommand_Sample(t *testing.T) {
	sampleFile := filepath.Join("..", "..", "testdata", "drawings.xls")
	if _, err := os.Stat(sampleFile); os.IsNotExist(err) {
		t.Skipf("sample file not found: %s", sampleFile)
	}

	binPath := buildTestBinary(t)

	output, err := command(t, binPath, "inspect", sampleFile, "--format", "text").CombinedOutput()
	if err != nil {
		t.Fatalf("inspect failed: %v\noutput: %s", err, output)
	}
	if !strings.Contains(string(output), "sheet ") {
		t.Errorf("output should list sheets, got: %s", output)
	}

	output, err = command(t, binPath, "roundtrip", sampleFile).CombinedOutput()
	if err != nil {
		t.Fatalf("roundtrip failed: %v\noutput: %s", err, output)
	}
	if !strings.Contains(string(output), "일치") {
		t.Errorf("roundtrip should report a match, got: %s", output)
	}
}

func TestConfigCommand(t *testing.T) {
	binPath := buildTestBinary(t)

	t.Run("config show", func(t *testing.T) {
		output, err := command(t, binPath, "config", "show").CombinedOutput()
		if err != nil {
			t.Errorf("unexpected error: %v\noutput: %s", err, output)
		}

		if !strings.Contains(string(output), "skip_broken_drawings") {
			t.Errorf("output should contain 'skip_broken_drawings', got: %s", output)
		}
	})

	t.Run("config path", func(t *testing.T) {
		output, err := command(t, binPath, "config", "path").CombinedOutput()
		if err != nil {
			t.Errorf("unexpected error: %v\noutput: %s", err, output)
		}

		if !strings.Contains(string(output), "config.yaml") {
			t.Errorf("output should contain 'config.yaml', got: %s", output)
		}
	})
}

func TestHelpCommand(t *testing.T) {
	binPath := buildTestBinary(t)

	output, err := command(t, binPath, "--help").CombinedOutput()
	if err != nil {
		t.Errorf("unexpected error: %v\noutput: %s", err, output)
	}

	expectedStrings := []string{"xlsdraw", "inspect", "images", "roundtrip", "config"}
	for _, s := range expectedStrings {
		if !strings.Contains(string(output), s) {
			t.Errorf("output should contain %q, got: %s", s, output)
		}
	}
}

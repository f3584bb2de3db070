package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"wbwatch/internal/daemonrun"
	"wbwatch/internal/services"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"fatal", fmt.Errorf("%w: 3 consecutive blocked cycles", services.ErrFatal), 1},
		{"preflight", fmt.Errorf("%w: %w: preflight failed", services.ErrFatal, services.ErrConfiguration), 2},
		{"other", errors.New("boom"), 1},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("%s: exitCode = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestRunExitsNonZeroWithoutWarehouses(t *testing.T) {
	base := t.TempDir()
	path := filepath.Join(base, "wbwatch.toml")
	content := fmt.Sprintf("[paths]\ndata_dir = %q\nlog_dir = %q\n\n[telegram]\ndry_run = true\n",
		filepath.Join(base, "data"), filepath.Join(base, "logs"))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if code := run(context.Background(), path, daemonrun.Options{LogLevel: "error"}); code != 2 {
		t.Fatalf("expected exit code 2, got %d", code)
	}
}

func TestCommandRejectsArguments(t *testing.T) {
	cmd := newCommand()
	cmd.SetArgs([]string{"extra"})
	if code := cmd.executeCode(); code != 2 {
		t.Fatalf("expected exit code 2, got %d", code)
	}
}

package cmd

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"ydbackup/config"
	"ydbackup/internal/yadisk"
)

func TestCommandsRejectInvalidURL(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"sync", []string{"sync", "https://example.com/d/abc123"}},
		{"full", []string{"full", "https://example.com/d/abc123"}},
		{"info", []string{"info", "https://example.com/d/abc123"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldStdout := os.Stdout
			r, w, _ := os.Pipe()
			os.Stdout = w

			rootCmd.SetArgs(tt.args)
			err := rootCmd.Execute()

			w.Close()
			os.Stdout = oldStdout

			var buf bytes.Buffer
			buf.ReadFrom(r)
			output := buf.String()

			if err == nil {
				t.Fatal("Expected an error for an invalid share URL")
			}
			if !errors.Is(err, yadisk.ErrInvalidRef) {
				t.Errorf("Execute() error = %v, want ErrInvalidRef", err)
			}
			if !strings.Contains(output, "\"error\"") {
				t.Errorf("Output doesn't contain the JSON error: %s", output)
			}
		})
	}
}

// Integration test for the sync command
// It talks to the real API and is skipped by default
// To run it, set YD_INTEGRATION_TEST=true and point YD_TEST_PUBLIC_URL
// at a small public share

func TestSyncCommand(t *testing.T) {
	if os.Getenv("YD_INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test; set YD_INTEGRATION_TEST=true to run")
	}

	publicURL := os.Getenv("YD_TEST_PUBLIC_URL")
	if publicURL == "" {
		t.Skip("Skipping integration test; set YD_TEST_PUBLIC_URL to a public share link")
	}

	tempDir, err := os.MkdirTemp("", "sync-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp directory: %v", err)
	}
	defer os.RemoveAll(tempDir)

	cnf, err := config.Load()
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}
	cfg = cnf

	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	rootCmd.SetArgs([]string{"sync", publicURL, "--output", tempDir})
	err = rootCmd.Execute()

	w.Close()
	os.Stdout = oldStdout

	var buf bytes.Buffer
	buf.ReadFrom(r)
	output := buf.String()

	if err != nil {
		t.Fatalf("Sync command failed: %v", err)
	}

	if !strings.Contains(output, "total_files") {
		t.Errorf("Output doesn't contain the sync result: %s", output)
	}

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		t.Fatalf("Failed to read output directory: %v", err)
	}
	if len(entries) == 0 {
		t.Errorf("No files were downloaded to %s", tempDir)
	}
}

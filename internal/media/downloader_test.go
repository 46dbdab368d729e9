package media

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestDownloadAudioMissingBinary(t *testing.T) {
	d := &YtDlp{BinaryPath: "/nonexistent/yt-dlp-not-here"}
	_, err := d.DownloadAudio(context.Background(), "https://youtube.com/watch?v=dQw4w9WgXcQ")
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
	if !errors.Is(err, ErrDownload) {
		t.Fatalf("expected ErrDownload, got %v", err)
	}
}

func TestDownloadAudioStubSuccess(t *testing.T) {
	// Stand in for yt-dlp with a script that writes its --output argument.
	dir := t.TempDir()
	stub := filepath.Join(dir, "yt-dlp-stub")
	script := `#!/bin/sh
out=""
prev=""
for arg in "$@"; do
  if [ "$prev" = "--output" ]; then out="$arg"; fi
  prev="$arg"
done
printf 'fake audio bytes' > "$out"
`
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	d := &YtDlp{BinaryPath: stub, TempDir: dir}
	file, err := d.DownloadAudio(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("DownloadAudio: %v", err)
	}
	defer file.Cleanup()

	if file.Size != int64(len("fake audio bytes")) {
		t.Fatalf("unexpected size %d", file.Size)
	}
	if _, err := os.Stat(file.Path); err != nil {
		t.Fatalf("expected output file to exist: %v", err)
	}

	file.Cleanup()
	file.Cleanup() // idempotent
	if _, err := os.Stat(file.Path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected file removed after cleanup, stat err=%v", err)
	}
}

func TestDownloadAudioEmptyOutput(t *testing.T) {
	dir := t.TempDir()
	stub := filepath.Join(dir, "yt-dlp-stub")
	script := `#!/bin/sh
out=""
prev=""
for arg in "$@"; do
  if [ "$prev" = "--output" ]; then out="$arg"; fi
  prev="$arg"
done
: > "$out"
`
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	d := &YtDlp{BinaryPath: stub, TempDir: dir}
	_, err := d.DownloadAudio(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	if !errors.Is(err, ErrDownload) {
		t.Fatalf("expected ErrDownload for empty output, got %v", err)
	}
}

func TestClassifyDownloadError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		output string
		want   string
	}{
		{"unavailable", errors.New("exit status 1"), "ERROR: Video unavailable", "unavailable or private"},
		{"unsupported", errors.New("exit status 1"), "ERROR: Unsupported URL: https://example.com", "unsupported video URL"},
		{"not found", exec.ErrNotFound, "", "not found in PATH"},
		{"generic", errors.New("exit status 2"), "something else", "exit status 2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyDownloadError(tc.err, tc.output)
			if !errors.Is(got, ErrDownload) {
				t.Fatalf("expected ErrDownload wrap, got %v", got)
			}
			if !strings.Contains(got.Error(), tc.want) {
				t.Fatalf("error %q does not contain %q", got.Error(), tc.want)
			}
		})
	}
}

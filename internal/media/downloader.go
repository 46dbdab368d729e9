// Package media fetches the audio track of a trailer video into transient
// local storage by shelling out to yt-dlp.
package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"sorot-backend/internal/shared/telemetry"
)

// ErrDownload wraps every audio-download failure. The pipeline treats these
// as non-fatal.
var ErrDownload = errors.New("audio download failed")

// AudioFile is a scoped temp-file handle. Cleanup is idempotent and must be
// deferred by the acquirer so the file is removed on every exit path.
type AudioFile struct {
	Path string
	Size int64

	once sync.Once
}

// Cleanup removes the temp file. Safe to call multiple times.
func (f *AudioFile) Cleanup() {
	if f == nil {
		return
	}
	f.once.Do(func() {
		if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			telemetry.Warn("media.cleanup", map[string]any{"path": f.Path, "error": err.Error()})
		}
	})
}

// Downloader fetches a trailer's audio track to local storage.
type Downloader interface {
	DownloadAudio(ctx context.Context, trailerURL string) (*AudioFile, error)
}

// YtDlp invokes the yt-dlp executable to extract single-channel m4a audio.
type YtDlp struct {
	// BinaryPath overrides the executable; empty means look up "yt-dlp" in PATH.
	BinaryPath string
	// TempDir overrides the output directory; empty means os.TempDir().
	TempDir string
}

// DownloadAudio downloads the audio track to a uniquely named temp file and
// returns its handle. On any failure the partial file is removed before the
// error is returned.
func (d *YtDlp) DownloadAudio(ctx context.Context, trailerURL string) (*AudioFile, error) {
	binary := d.BinaryPath
	if binary == "" {
		binary = "yt-dlp"
	}
	dir := d.TempDir
	if dir == "" {
		dir = os.TempDir()
	}

	outPath := filepath.Join(dir, fmt.Sprintf("audio-%s.m4a", uuid.NewString()))

	cmd := exec.CommandContext(ctx, binary,
		trailerURL,
		"--extract-audio",
		"--audio-format", "m4a",
		"--audio-quality", "128",
		"--output", outPath,
		"--no-playlist",
		"--quiet",
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		_ = os.Remove(outPath)
		return nil, classifyDownloadError(err, string(output))
	}

	stat, err := os.Stat(outPath)
	if err != nil {
		_ = os.Remove(outPath)
		return nil, fmt.Errorf("%w: output file missing: %v", ErrDownload, err)
	}
	if stat.Size() == 0 {
		_ = os.Remove(outPath)
		return nil, fmt.Errorf("%w: downloaded audio file is empty", ErrDownload)
	}

	telemetry.Info("media.downloaded", map[string]any{"path": outPath, "bytes": stat.Size()})
	return &AudioFile{Path: outPath, Size: stat.Size()}, nil
}

func classifyDownloadError(err error, output string) error {
	combined := err.Error() + " " + output
	switch {
	case errors.Is(err, exec.ErrNotFound) || strings.Contains(combined, "executable file not found"):
		return fmt.Errorf("%w: yt-dlp executable not found in PATH", ErrDownload)
	case strings.Contains(combined, "Video unavailable"):
		return fmt.Errorf("%w: video is unavailable or private", ErrDownload)
	case strings.Contains(combined, "Unsupported URL"):
		return fmt.Errorf("%w: unsupported video URL format", ErrDownload)
	default:
		return fmt.Errorf("%w: %v", ErrDownload, err)
	}
}

var _ Downloader = (*YtDlp)(nil)

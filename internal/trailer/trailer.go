// Package trailer validates YouTube trailer URLs and resolves their video IDs.
package trailer

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

var (
	// ErrInvalidURL indicates the URL does not match the accepted YouTube forms.
	ErrInvalidURL = errors.New("invalid YouTube URL format")
	// ErrUnresolvable indicates a URL that passed validation but yielded no
	// video ID. Defensive double-check; should not happen in practice.
	ErrUnresolvable = errors.New("could not extract YouTube video ID")
)

var (
	urlPattern = regexp.MustCompile(`^(https?://)?(www\.)?(youtube\.com/watch\?v=|youtu\.be/)[a-zA-Z0-9_-]{11}`)
	idPattern  = regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/)([a-zA-Z0-9_-]{11})`)
)

// Trailer is a validated trailer reference.
type Trailer struct {
	URL         string    `json:"url"`
	VideoID     string    `json:"videoId"`
	ValidatedAt time.Time `json:"validatedAt"`
}

// Validate reports whether the URL matches the accepted YouTube watch forms.
func Validate(rawURL string) error {
	if rawURL == "" {
		return ErrInvalidURL
	}
	if !urlPattern.MatchString(rawURL) {
		return ErrInvalidURL
	}
	return nil
}

// Resolve validates the URL and extracts its canonical 11-character video ID.
func Resolve(rawURL string) (Trailer, error) {
	if err := Validate(rawURL); err != nil {
		return Trailer{}, err
	}
	m := idPattern.FindStringSubmatch(rawURL)
	if len(m) < 2 {
		return Trailer{}, fmt.Errorf("url %q: %w", rawURL, ErrUnresolvable)
	}
	return Trailer{
		URL:         rawURL,
		VideoID:     m[1],
		ValidatedAt: time.Now().UTC(),
	}, nil
}

// WatchURL returns the canonical watch URL for a video ID.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

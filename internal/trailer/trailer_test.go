package trailer

import (
	"errors"
	"testing"
)

func TestValidateAcceptedForms(t *testing.T) {
	valid := []string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://youtube.com/watch?v=dQw4w9WgXcQ",
		"http://youtube.com/watch?v=dQw4w9WgXcQ",
		"youtube.com/watch?v=dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ",
		"youtu.be/dQw4w9WgXcQ",
	}
	for _, url := range valid {
		if err := Validate(url); err != nil {
			t.Errorf("expected %q to validate, got %v", url, err)
		}
	}
}

func TestValidateRejectedForms(t *testing.T) {
	invalid := []string{
		"",
		"not-a-url",
		"https://vimeo.com/123456789",
		"https://youtube.com/watch?v=short",
		"https://example.com/watch?v=dQw4w9WgXcQ",
	}
	for _, url := range invalid {
		if err := Validate(url); !errors.Is(err, ErrInvalidURL) {
			t.Errorf("expected %q to fail validation, got %v", url, err)
		}
	}
}

func TestResolveVideoID(t *testing.T) {
	tr, err := Resolve("https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if tr.VideoID != "dQw4w9WgXcQ" {
		t.Fatalf("expected video ID dQw4w9WgXcQ, got %q", tr.VideoID)
	}
	if tr.ValidatedAt.IsZero() {
		t.Fatal("expected validatedAt to be set")
	}

	tr, err = Resolve("https://youtu.be/abc123DEF-_")
	if err != nil {
		t.Fatalf("resolve short form: %v", err)
	}
	if tr.VideoID != "abc123DEF-_" {
		t.Fatalf("expected video ID abc123DEF-_, got %q", tr.VideoID)
	}
}

func TestResolveInvalid(t *testing.T) {
	if _, err := Resolve("https://vimeo.com/123456789"); !errors.Is(err, ErrInvalidURL) {
		t.Fatalf("expected ErrInvalidURL, got %v", err)
	}
}

func TestWatchURL(t *testing.T) {
	if got := WatchURL("dQw4w9WgXcQ"); got != "https://www.youtube.com/watch?v=dQw4w9WgXcQ" {
		t.Fatalf("unexpected watch url: %s", got)
	}
}

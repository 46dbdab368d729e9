package object

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// ObjectStore defines the contract for saving and retrieving binary objects.
// Scope namespaces objects per analysis; the returned storage key is
// "<scope>/<fileName>".
type ObjectStore interface {
	Save(ctx context.Context, scope string, fileName string, r io.Reader) (storageKey string, sizeBytes int64, mimeType string, err error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
}

// CleanName validates a scope or file name component. Path separators and
// traversal sequences are rejected so keys stay within the store root.
func CleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("empty name")
	}
	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return "", fmt.Errorf("invalid name %q", name)
	}
	return name, nil
}

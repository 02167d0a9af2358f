// Package storage holds the image artifact store. Posts reference artifacts
// through opaque refs issued here; lifecycle code never touches paths.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// ImageStore is the capability the post lifecycle depends on: store bytes,
// get back an opaque reference; delete by reference.
type ImageStore interface {
	Store(name string, data []byte) (string, error)
	Delete(ref string) error
}

// StoredRef describes one artifact currently on disk.
type StoredRef struct {
	Ref     string
	ModTime time.Time
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// LocalStore keeps artifacts as files under a base directory. Refs are
// generated as "<nanos>-<sanitized original name>" so they double as the
// public filename under the static /images route.
type LocalStore struct {
	basePath string
	now      func() time.Time
}

// NewLocalStore creates the base directory if needed.
func NewLocalStore(basePath string) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("could not create image directory: %w", err)
	}
	return &LocalStore{basePath: basePath, now: time.Now}, nil
}

// Store writes the artifact and returns its reference.
func (s *LocalStore) Store(name string, data []byte) (string, error) {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == string(filepath.Separator) || base == "" {
		base = "image"
	}
	base = unsafeChars.ReplaceAllString(base, "-")

	ref := fmt.Sprintf("%d-%s", s.now().UnixNano(), base)
	if err := os.WriteFile(filepath.Join(s.basePath, ref), data, 0644); err != nil {
		return "", fmt.Errorf("could not write image artifact: %w", err)
	}
	return ref, nil
}

// Delete removes the artifact for ref. A missing artifact is not an error.
func (s *LocalStore) Delete(ref string) error {
	if ref == "" || ref != filepath.Base(ref) {
		return fmt.Errorf("invalid image ref %q", ref)
	}
	if err := os.Remove(filepath.Join(s.basePath, ref)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("could not delete image artifact: %w", err)
	}
	return nil
}

// Refs lists all artifacts currently stored. Used by the reconciler to find
// orphans.
func (s *LocalStore) Refs() ([]StoredRef, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, err
	}
	refs := make([]StoredRef, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		refs = append(refs, StoredRef{Ref: e.Name(), ModTime: info.ModTime()})
	}
	return refs, nil
}

// BasePath returns the directory artifacts are stored under, for the static
// file route.
func (s *LocalStore) BasePath() string {
	return s.basePath
}

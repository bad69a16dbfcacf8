// Package storage abstracts where derived media assets live. The daemon ships
// a filesystem gateway serving file:// URLs from the media directory; remote
// object stores can implement the same interface.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"demostudio/internal/config"
	"demostudio/internal/services"
	"demostudio/internal/textutil"
)

// Gateway is the asset storage contract used by the transform and export
// operations. Upload returns a URL the gateway can later resolve. Delete is
// best effort; callers treat failures as advisory.
type Gateway interface {
	Upload(ctx context.Context, data []byte, key, contentType string) (string, error)
	Download(ctx context.Context, rawURL string) ([]byte, error)
	Delete(ctx context.Context, rawURL string) error
}

// Filesystem stores assets under the configured media directory and hands out
// file:// URLs.
type Filesystem struct {
	root string
}

// NewFilesystem builds a filesystem gateway rooted at the media directory.
func NewFilesystem(cfg *config.Config) (*Filesystem, error) {
	root := strings.TrimSpace(cfg.Paths.MediaDir)
	if root == "" {
		return nil, services.Wrap(services.ErrConfiguration, "storage", "init", "media directory is not configured", nil)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create media directory: %w", err)
	}
	return &Filesystem{root: root}, nil
}

// Upload writes data under a content-derived name and returns its file:// URL.
// The key's extension is preserved so downstream tools can sniff the format.
func (f *Filesystem) Upload(ctx context.Context, data []byte, key, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", services.Wrap(services.ErrValidation, "storage", "upload", "key is required", nil)
	}

	sum := sha256.Sum256(data)
	base := textutil.SanitizeFileName(filepath.Base(key))
	if base == "" {
		base = "asset"
	}
	name := hex.EncodeToString(sum[:8]) + "-" + base
	target := filepath.Join(f.root, name)
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("write asset %s: %w", name, err)
	}
	return (&url.URL{Scheme: "file", Path: target}).String(), nil
}

// Download resolves a file:// URL previously issued by Upload and returns the
// asset bytes. Plain paths are accepted for convenience.
func (f *Filesystem) Download(ctx context.Context, rawURL string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := f.ResolvePath(rawURL)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, services.Wrap(services.ErrNotFound, "storage", "download", fmt.Sprintf("asset %s does not exist", path), err)
		}
		return nil, fmt.Errorf("read asset %s: %w", path, err)
	}
	return data, nil
}

// Delete removes the asset behind a file:// URL. A missing asset is not an
// error.
func (f *Filesystem) Delete(ctx context.Context, rawURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := f.ResolvePath(rawURL)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove asset %s: %w", path, err)
	}
	return nil
}

// ResolvePath converts a file:// URL (or bare path) into a local filesystem
// path.
func (f *Filesystem) ResolvePath(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", services.Wrap(services.ErrValidation, "storage", "resolve", "url is required", nil)
	}
	if !strings.Contains(rawURL, "://") {
		return filepath.Clean(rawURL), nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "storage", "resolve", fmt.Sprintf("malformed url %q", rawURL), err)
	}
	if parsed.Scheme != "file" {
		return "", services.Wrap(services.ErrValidation, "storage", "resolve", fmt.Sprintf("unsupported scheme %q", parsed.Scheme), nil)
	}
	return filepath.Clean(parsed.Path), nil
}

package storage_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"demostudio/internal/services"
	"demostudio/internal/services/storage"
	"demostudio/internal/testsupport"
)

func newGateway(t *testing.T) *storage.Filesystem {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	gateway, err := storage.NewFilesystem(cfg)
	if err != nil {
		t.Fatalf("NewFilesystem: %v", err)
	}
	return gateway
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	gateway := newGateway(t)
	ctx := context.Background()

	url, err := gateway.Upload(ctx, []byte("thumbnail bytes"), "thumb.jpg", "image/jpeg")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !strings.HasPrefix(url, "file://") || !strings.HasSuffix(url, "-thumb.jpg") {
		t.Fatalf("unexpected asset url %q", url)
	}

	data, err := gateway.Download(ctx, url)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if string(data) != "thumbnail bytes" {
		t.Fatalf("asset bytes corrupted: %q", data)
	}
}

func TestDownloadMissingAsset(t *testing.T) {
	gateway := newGateway(t)

	_, err := gateway.Download(context.Background(), "file:///nonexistent/asset.jpg")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestDownloadRejectsRemoteScheme(t *testing.T) {
	gateway := newGateway(t)

	_, err := gateway.Download(context.Background(), "https://example.com/a.jpg")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	gateway := newGateway(t)
	ctx := context.Background()

	url, err := gateway.Upload(ctx, []byte("audio"), "narration.mp3", "audio/mpeg")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if err := gateway.Delete(ctx, url); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := gateway.Delete(ctx, url); err != nil {
		t.Fatalf("second Delete should be a no-op: %v", err)
	}
	if _, err := gateway.Download(ctx, url); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("asset should be gone, got %v", err)
	}
}

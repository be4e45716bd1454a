package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/AnshRaj112/videotube-backend/internal/logging"
)

var (
	ErrUploadsUnavailable = errors.New("file uploads are not configured")
	ErrEmptyUploadURL     = errors.New("upload returned no url")
)

// MediaService stages multipart files on local disk before forwarding them to
// the Uploader. The staged copy is removed after every attempt.
type MediaService struct {
	uploader Uploader
	tempDir  string
}

// NewMediaService accepts a nil uploader; uploads then fail with
// ErrUploadsUnavailable.
func NewMediaService(uploader Uploader, tempDir string) *MediaService {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &MediaService{uploader: uploader, tempDir: tempDir}
}

func (m *MediaService) UploadFormFile(ctx context.Context, fh *multipart.FileHeader) (string, error) {
	if m.uploader == nil {
		return "", ErrUploadsUnavailable
	}

	path, err := m.stage(fh)
	if err != nil {
		return "", fmt.Errorf("stage %s: %w", fh.Filename, err)
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.FromContext(ctx).Warn("remove staged upload", "path", path, "error", err)
		}
	}()

	url, err := m.uploader.Upload(ctx, path)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", fh.Filename, err)
	}
	if url == "" {
		return "", ErrEmptyUploadURL
	}
	return url, nil
}

// Discard deletes assets uploaded for a request that did not complete.
// Failures are logged and otherwise ignored.
func (m *MediaService) Discard(ctx context.Context, urls ...string) {
	if m.uploader == nil {
		return
	}
	for _, u := range urls {
		if u == "" {
			continue
		}
		if err := m.uploader.Delete(ctx, u); err != nil {
			logging.FromContext(ctx).Warn("discard uploaded asset", "url", u, "error", err)
		}
	}
}

func (m *MediaService) stage(fh *multipart.FileHeader) (string, error) {
	if err := os.MkdirAll(m.tempDir, 0o755); err != nil {
		return "", err
	}

	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := os.CreateTemp(m.tempDir, "upload-*"+filepath.Ext(filepath.Base(fh.Filename)))
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}

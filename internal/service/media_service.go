package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const MaxUploadSize = 15 * 1024 * 1024

var allowedMediaTypes = map[string]struct{}{
	"jpg": {}, "jpeg": {}, "png": {}, "webp": {}, "mp4": {}, "mov": {},
}

// StoredMedia is a media reference a post can carry: a local upload path or
// a public URL.
type StoredMedia struct {
	Path         string
	OriginalName string
	ContentType  string
}

type MediaService interface {
	Save(ctx context.Context, originalName string, data []byte) (*StoredMedia, error)
	Copy(ctx context.Context, mediaPath string) (string, error)
}

type mediaService struct {
	uploadDir string
	r2        *R2Service
	clock     Clock
}

// NewMediaService stores media under uploadDir, or in R2 when r2 is non-nil.
func NewMediaService(uploadDir string, r2 *R2Service, clock Clock) MediaService {
	if clock == nil {
		clock = SystemClock()
	}
	return &mediaService{uploadDir: uploadDir, r2: r2, clock: clock}
}

func (s *mediaService) Save(ctx context.Context, originalName string, data []byte) (*StoredMedia, error) {
	if len(data) == 0 {
		return nil, validationError("media file is required")
	}
	if len(data) > MaxUploadSize {
		return nil, validationError("media file exceeds %d bytes", MaxUploadSize)
	}

	kind, err := filetype.Match(data)
	if err != nil || kind == types.Unknown {
		return nil, validationError("unsupported file type")
	}
	if _, ok := allowedMediaTypes[kind.Extension]; !ok {
		return nil, validationError("file type %s is not allowed", kind.Extension)
	}

	name, err := s.fileName(kind.Extension)
	if err != nil {
		return nil, err
	}

	stored, err := s.put(ctx, name, data, kind.MIME.Value)
	if err != nil {
		return nil, err
	}
	stored.OriginalName = originalName
	return stored, nil
}

// Copy gives a duplicated post its own media object. External URLs that are
// not ours are shared as is.
func (s *mediaService) Copy(ctx context.Context, mediaPath string) (string, error) {
	if mediaPath == "" {
		return "", nil
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(mediaPath)), ".")

	if s.r2 != nil {
		if key, ok := s.r2.KeyFromURL(mediaPath); ok {
			name, err := s.fileName(ext)
			if err != nil {
				return "", err
			}
			if err := s.r2.CopyObject(ctx, key, name); err != nil {
				return "", fmt.Errorf("copy media: %w", err)
			}
			return s.r2.PublicURL(name), nil
		}
	}

	lower := strings.ToLower(mediaPath)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return mediaPath, nil
	}

	data, err := os.ReadFile(s.localPath(mediaPath))
	if err != nil {
		slog.Info(err.Error())
		return "", fmt.Errorf("copy media: %w", err)
	}
	name, err := s.fileName(ext)
	if err != nil {
		return "", err
	}
	if err := s.writeLocal(name, data); err != nil {
		return "", fmt.Errorf("copy media: %w", err)
	}
	return s.mediaPath(name), nil
}

func (s *mediaService) put(ctx context.Context, name string, data []byte, contentType string) (*StoredMedia, error) {
	if s.r2 != nil {
		if err := s.r2.UploadToR2(ctx, name, data, contentType); err != nil {
			return nil, fmt.Errorf("error uploading file: %w", err)
		}
		return &StoredMedia{Path: s.r2.PublicURL(name), ContentType: contentType}, nil
	}

	if err := s.writeLocal(name, data); err != nil {
		return nil, fmt.Errorf("error saving file: %w", err)
	}
	return &StoredMedia{Path: s.mediaPath(name), ContentType: contentType}, nil
}

// fileName is "<unix-ms>-<nanoid>.<ext>".
func (s *mediaService) fileName(ext string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}
	name := fmt.Sprintf("%d-%s", s.clock.Now().UnixMilli(), id)
	if ext != "" {
		name += "." + ext
	}
	return name, nil
}

func (s *mediaService) writeLocal(name string, data []byte) error {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		slog.Info(err.Error())
		return err
	}
	if err := os.WriteFile(filepath.Join(s.uploadDir, name), data, 0o644); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (s *mediaService) mediaPath(name string) string {
	return path.Join(filepath.ToSlash(s.uploadDir), name)
}

// localPath maps a stored media path back to a file on disk.
func (s *mediaService) localPath(mediaPath string) string {
	base := filepath.ToSlash(s.uploadDir)
	if strings.HasPrefix(mediaPath, base+"/") {
		return filepath.FromSlash(mediaPath)
	}
	return filepath.Join(s.uploadDir, path.Base(mediaPath))
}

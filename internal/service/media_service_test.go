package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	config "github.com/maheshrc27/reelpilot/configs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

var mediaNamePattern = regexp.MustCompile(`^\d+-[A-Za-z0-9_-]{21}\.png$`)

func TestMediaSaveLocal(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	svc := NewMediaService(dir, nil, newFakeClock(testNow))

	stored, err := svc.Save(context.Background(), "my photo.png", pngBytes(t))
	require.NoError(t, err)
	assert.Equal(t, "my photo.png", stored.OriginalName)
	assert.Equal(t, "image/png", stored.ContentType)
	assert.True(t, strings.HasPrefix(stored.Path, filepath.ToSlash(dir)+"/"))
	assert.Regexp(t, mediaNamePattern, filepath.Base(stored.Path))

	_, err = os.Stat(filepath.FromSlash(stored.Path))
	assert.NoError(t, err)
}

func TestMediaSaveRejectsBadInput(t *testing.T) {
	svc := NewMediaService(t.TempDir(), nil, nil)
	ctx := context.Background()

	_, err := svc.Save(ctx, "empty.png", nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Save(ctx, "notes.txt", []byte("just some text"))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Save(ctx, "anim.gif", []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00"))
	assert.ErrorIs(t, err, ErrValidation)

	big := append(pngBytes(t), make([]byte, MaxUploadSize)...)
	_, err = svc.Save(ctx, "huge.png", big)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestMediaCopyLocal(t *testing.T) {
	dir := t.TempDir()
	svc := NewMediaService(dir, nil, nil)
	ctx := context.Background()

	stored, err := svc.Save(ctx, "a.png", pngBytes(t))
	require.NoError(t, err)

	copied, err := svc.Copy(ctx, stored.Path)
	require.NoError(t, err)
	assert.NotEqual(t, stored.Path, copied)

	orig, err := os.ReadFile(filepath.FromSlash(stored.Path))
	require.NoError(t, err)
	dup, err := os.ReadFile(filepath.FromSlash(copied))
	require.NoError(t, err)
	assert.Equal(t, orig, dup)

	external, err := svc.Copy(ctx, "https://cdn.example.com/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/a.jpg", external)
}

type s3Stub struct {
	mu     sync.Mutex
	puts   map[string][]byte
	copies map[string]string
}

func (s *s3Stub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if src := r.Header.Get("X-Amz-Copy-Source"); src != "" {
		s.copies[r.URL.Path] = src
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><CopyObjectResult><ETag>"etag"</ETag></CopyObjectResult>`))
		return
	}
	body, _ := io.ReadAll(r.Body)
	s.puts[r.URL.Path] = body
	w.WriteHeader(http.StatusOK)
}

func TestMediaSaveAndCopyOnR2(t *testing.T) {
	stub := &s3Stub{puts: map[string][]byte{}, copies: map[string]string{}}
	srv := httptest.NewServer(stub)
	defer srv.Close()

	ctx := context.Background()
	r2, err := NewR2Service(ctx, config.R2{
		AccountID:  "acct",
		AccessKey:  "key",
		SecretKey:  "secret",
		BucketName: "media",
		PublicURL:  "https://pub.example.dev",
		Endpoint:   srv.URL,
	})
	require.NoError(t, err)
	svc := NewMediaService(t.TempDir(), r2, nil)

	stored, err := svc.Save(ctx, "a.png", pngBytes(t))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(stored.Path, "https://pub.example.dev/"))
	key := strings.TrimPrefix(stored.Path, "https://pub.example.dev/")
	assert.Contains(t, stub.puts, "/media/"+key)

	copied, err := svc.Copy(ctx, stored.Path)
	require.NoError(t, err)
	newKey := strings.TrimPrefix(copied, "https://pub.example.dev/")
	assert.NotEqual(t, key, newKey)
	assert.Equal(t, "media/"+key, strings.TrimPrefix(stub.copies["/media/"+newKey], "/"))
}

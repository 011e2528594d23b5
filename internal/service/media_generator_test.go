package service

import (
	"bytes"
	"context"
	"image/png"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/h2non/filetype"
	"github.com/maheshrc27/reelpilot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceholderImageGenerator(t *testing.T) {
	gen := NewPlaceholderImageGenerator()
	assert.Equal(t, models.PostTypeFeed, gen.PostType())

	media, err := gen.Generate(context.Background())
	require.NoError(t, err)
	assert.True(t, filetype.IsImage(media.Data))

	img, err := png.Decode(bytes.NewReader(media.Data))
	require.NoError(t, err)
	assert.Equal(t, 1080, img.Bounds().Dx())
	assert.Equal(t, 1350, img.Bounds().Dy())
}

func TestReelGeneratorMissingBinary(t *testing.T) {
	gen := NewReelGenerator(filepath.Join(t.TempDir(), "no-ffmpeg"))
	assert.Equal(t, models.PostTypeReel, gen.PostType())

	_, err := gen.Generate(context.Background())
	assert.ErrorContains(t, err, "ffmpeg failed")
}

func TestReelGeneratorRendersMP4(t *testing.T) {
	bin, err := exec.LookPath("ffmpeg")
	if err != nil {
		t.Skip("ffmpeg not installed")
	}

	media, err := NewReelGenerator(bin).Generate(context.Background())
	require.NoError(t, err)
	kind, err := filetype.Match(media.Data)
	require.NoError(t, err)
	assert.Equal(t, "mp4", kind.Extension)
}

func TestNewMediaGenerator(t *testing.T) {
	gen, err := NewMediaGenerator("image", "")
	require.NoError(t, err)
	assert.Equal(t, models.PostTypeFeed, gen.PostType())

	gen, err = NewMediaGenerator("reel", "")
	require.NoError(t, err)
	assert.Equal(t, models.PostTypeReel, gen.PostType())

	_, err = NewMediaGenerator("hologram", "")
	assert.Error(t, err)
}

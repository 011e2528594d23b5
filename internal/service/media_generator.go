package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math/rand/v2"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/maheshrc27/reelpilot/internal/models"
)

const (
	AutopilotMediaReel  = "reel"
	AutopilotMediaImage = "image"
)

type GeneratedMedia struct {
	Data []byte
	Name string
}

// MediaGenerator synthesizes the asset of an autopilot post.
type MediaGenerator interface {
	Generate(ctx context.Context) (*GeneratedMedia, error)
	PostType() models.PostType
}

func NewMediaGenerator(kind, ffmpegPath string) (MediaGenerator, error) {
	switch kind {
	case AutopilotMediaReel, "":
		return NewReelGenerator(ffmpegPath), nil
	case AutopilotMediaImage:
		return NewPlaceholderImageGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown AUTOPILOT_MEDIA %q", kind)
	}
}

type reelGenerator struct {
	ffmpegPath string
}

// NewReelGenerator renders a 10 second 720x1280 animated clip with ffmpeg.
func NewReelGenerator(ffmpegPath string) MediaGenerator {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &reelGenerator{ffmpegPath: ffmpegPath}
}

func (g *reelGenerator) PostType() models.PostType {
	return models.PostTypeReel
}

func (g *reelGenerator) Generate(ctx context.Context) (*GeneratedMedia, error) {
	dir, err := os.MkdirTemp("", "reelpilot-reel-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	out := filepath.Join(dir, "autopilot-reel.mp4")
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, g.ffmpegPath, reelArgs(out)...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 300 {
			msg = msg[len(msg)-300:]
		}
		if msg != "" {
			return nil, fmt.Errorf("ffmpeg failed: %w: %s", err, msg)
		}
		return nil, fmt.Errorf("ffmpeg failed: %w", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		return nil, err
	}
	return &GeneratedMedia{Data: data, Name: "autopilot-reel.mp4"}, nil
}

func reelArgs(out string) []string {
	return []string{
		"-y",
		"-f", "lavfi",
		"-i", "color=c=#ffe5ec:s=720x1280:d=10",
		"-vf", "drawbox=x='(w-200)/2+sin(t*2.2)*90':y='(h-200)/2+cos(t*1.9)*120':w=200:h=200:color=#ffffff@0.92:t=fill," +
			"drawbox=x='(w-110)/2+sin(t*3.1)*160':y='h*0.74+cos(t*2.5)*75':w=110:h=110:color=#ffb3c6@0.8:t=fill",
		"-r", "24",
		"-pix_fmt", "yuv420p",
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-crf", "30",
		"-maxrate", "1200k",
		"-bufsize", "2400k",
		out,
	}
}

type placeholderImageGenerator struct {
	intn func(int) int
}

// NewPlaceholderImageGenerator renders a 1080x1350 pastel card as PNG.
func NewPlaceholderImageGenerator() MediaGenerator {
	return &placeholderImageGenerator{intn: rand.IntN}
}

func (g *placeholderImageGenerator) PostType() models.PostType {
	return models.PostTypeFeed
}

var cardPalettes = [][3]color.RGBA{
	{rgb(0xff, 0xe5, 0xec), rgb(0xff, 0xb3, 0xc6), rgb(0xff, 0xff, 0xff)},
	{rgb(0xe3, 0xf2, 0xfd), rgb(0x90, 0xca, 0xf9), rgb(0xff, 0xff, 0xff)},
	{rgb(0xff, 0xf8, 0xe1), rgb(0xff, 0xcc, 0x80), rgb(0xff, 0xff, 0xff)},
}

func rgb(r, g, b uint8) color.RGBA {
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

func (g *placeholderImageGenerator) Generate(ctx context.Context) (*GeneratedMedia, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	const w, h = 1080, 1350
	palette := cardPalettes[g.intn(len(cardPalettes))]
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		c := blend(palette[0], palette[1], float64(y)/float64(h-1))
		draw.Draw(img, image.Rect(0, y, w, y+1), &image.Uniform{C: c}, image.Point{}, draw.Src)
	}

	card := image.Rect(120, 300, w-120, h-300)
	draw.Draw(img, card, &image.Uniform{C: palette[2]}, image.Point{}, draw.Over)
	for i := 0; i < 5; i++ {
		y := card.Min.Y + 120 + i*110
		line := image.Rect(card.Min.X+90, y, card.Max.X-90-g.intn(260), y+36)
		draw.Draw(img, line, &image.Uniform{C: palette[1]}, image.Point{}, draw.Src)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return &GeneratedMedia{Data: buf.Bytes(), Name: "autopilot-card.png"}, nil
}

func blend(a, b color.RGBA, t float64) color.RGBA {
	mix := func(x, y uint8) uint8 {
		return uint8(float64(x) + (float64(y)-float64(x))*t)
	}
	return color.RGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: 0xff}
}

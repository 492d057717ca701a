package processing

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/image-annotator/pkg/types"
)

func createTestImage(w, h int) image.Image {
	return imaging.New(w, h, color.NRGBA{R: 120, G: 200, B: 80, A: 255})
}

func TestLoadAndSave(t *testing.T) {
	p := NewProcessor()
	dir := t.TempDir()

	for _, name := range []string{"a.png", "a.jpg", "a.webp"} {
		path := filepath.Join(dir, name)
		require.NoError(t, p.SaveImage(createTestImage(64, 32), path, FormatFromPath(path), 90, false), name)

		img, err := p.LoadImage(path)
		require.NoError(t, err, name)
		assert.Equal(t, types.Size{Width: 64, Height: 32}, NaturalSize(img), name)
	}
}

func TestLoadImageSmartFromURL(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, createTestImage(40, 30), nil))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/text" {
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("hello"))
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	p := NewProcessor()
	img, err := p.LoadImageSmart(context.Background(), srv.URL+"/dog.jpg")
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())

	_, err = p.LoadImageSmart(context.Background(), srv.URL+"/text")
	assert.Error(t, err)

	_, err = p.LoadImageFromURL(context.Background(), "ftp://example.com/a.jpg")
	assert.Error(t, err)
}

func TestDecodeRejects(t *testing.T) {
	p := NewProcessor()

	heic := append([]byte{0, 0, 0, 24}, []byte("ftypheic0000")...)
	assert.True(t, IsHEIC(heic))
	_, err := p.Decode(heic)
	assert.ErrorIs(t, err, ErrHEIC)

	assert.False(t, IsHEIC([]byte("short")))

	_, err = p.Decode([]byte("definitely not an image"))
	assert.Error(t, err)

	_, err = p.Decode(make([]byte, MaxImageBytes+1))
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestLoadImageTooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.jpg")
	require.NoError(t, os.WriteFile(path, make([]byte, MaxImageBytes+1), 0644))

	_, err := NewProcessor().LoadImage(path)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestPrepareImageForModel(t *testing.T) {
	p := NewProcessor()
	b64, err := p.PrepareImageForModel(createTestImage(800, 400), "jpg", 200, 80)
	require.NoError(t, err)

	data, err := base64.StdEncoding.DecodeString(b64)
	require.NoError(t, err)
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.Width)
	assert.Equal(t, 100, cfg.Height)
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, "webp", FormatFromPath("x/Preview.WEBP"))
	assert.Equal(t, "png", FormatFromPath("a.png"))
	assert.Equal(t, "jpg", FormatFromPath("a.jpeg"))
}

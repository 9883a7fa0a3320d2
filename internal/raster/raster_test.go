package raster

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/billparse/internal/execrun"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestIsPDF(t *testing.T) {
	tests := []struct {
		name        string
		data        []byte
		contentType string
		want        bool
	}{
		{"magic", []byte("%PDF-1.7\n..."), "", true},
		{"magic with wrong content type", []byte("%PDF-1.4"), "image/png", true},
		{"content type only", []byte("garbage"), "application/pdf", true},
		{"content type case", []byte("garbage"), "Application/X-PDF", true},
		{"png", []byte("\x89PNG\r\n"), "image/png", false},
		{"empty", nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPDF(tt.data, tt.contentType))
		})
	}
}

func TestDecodeImage(t *testing.T) {
	img, err := DecodeImage(pngBytes(t, 12, 7))
	require.NoError(t, err)
	assert.Equal(t, 12, img.Bounds().Dx())

	_, err = DecodeImage([]byte("not an image"))
	assert.Error(t, err)
}

func TestPages_Image(t *testing.T) {
	pages, err := Pages(context.Background(), nil, pngBytes(t, 5, 5), "image/png")
	require.NoError(t, err)
	assert.Len(t, pages, 1)
}

func TestPdftoppm_NumericOrder(t *testing.T) {
	widths := map[string]int{"1": 10, "2": 20, "10": 100}
	stub := &execrun.Stub{Fn: func(name string, args []string) ([]byte, error) {
		prefix := args[len(args)-1]
		for n, w := range widths {
			if err := os.WriteFile(prefix+"-"+n+".png", pngBytes(t, w, 4), 0o600); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}}
	r := NewPdftoppm(Config{Runner: stub, DPI: 150, MaxPages: 12})

	pages, err := r.Rasterize(context.Background(), []byte("%PDF-1.4"))
	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Equal(t, 10, pages[0].Bounds().Dx())
	assert.Equal(t, 20, pages[1].Bounds().Dx())
	assert.Equal(t, 100, pages[2].Bounds().Dx())

	args := stub.Calls[0].Args
	assert.Equal(t, []string{"-r", "150", "-png", "-f", "1", "-l", "12"}, args[:7])
	assert.Equal(t, "pdftoppm", stub.Calls[0].Name)
}

func TestPdftoppm_NoOutput(t *testing.T) {
	r := NewPdftoppm(Config{Runner: &execrun.Stub{}})
	_, err := r.Rasterize(context.Background(), []byte("%PDF-1.4"))
	assert.ErrorIs(t, err, ErrNoPages)
}

func TestPageNumberFromSuffix(t *testing.T) {
	n, ok := pageNumberFromSuffix("/tmp/x/out-007.png")
	assert.True(t, ok)
	assert.Equal(t, 7, n)

	_, ok = pageNumberFromSuffix("out.png")
	assert.False(t, ok)
}

func TestCollectPageImages(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, w int) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), pngBytes(t, w, w), 0o600))
	}
	write("page_2_Im0.png", 30)
	write("page_1_Im0.png", 5)
	write("page_1_Im1.png", 50)
	write("page_10_Im0.png", 7)
	write("unrelated.png", 99)

	pages, err := collectPageImages(dir)
	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Equal(t, 50, pages[0].Bounds().Dx(), "largest image of page 1")
	assert.Equal(t, 30, pages[1].Bounds().Dx())
	assert.Equal(t, 7, pages[2].Bounds().Dx())
}

func TestCollectPageImages_Empty(t *testing.T) {
	_, err := collectPageImages(t.TempDir())
	assert.ErrorIs(t, err, ErrNoPages)
}

func TestNew(t *testing.T) {
	r, err := New(Config{Backend: "pdfcpu"})
	require.NoError(t, err)
	assert.Equal(t, BackendPDFCPU, r.Name())

	r, err = New(Config{})
	require.NoError(t, err)
	assert.Equal(t, BackendPdftoppm, r.Name())

	_, err = New(Config{Backend: "ghostscript"})
	assert.Error(t, err)
}

func TestPDFCPU_InvalidPDF(t *testing.T) {
	_, err := NewPDFCPU(Config{}).Rasterize(context.Background(), []byte("%PDF-1.4 truncated"))
	assert.Error(t, err)
}

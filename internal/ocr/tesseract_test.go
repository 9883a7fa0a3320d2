package ocr

import (
	"context"
	"errors"
	"image"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/billparse/internal/execrun"
)

const sampleTSV = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t800\t600\t-1\t\n" +
	"4\t1\t1\t1\t1\t0\t10\t20\t300\t14\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t10\t20\t60\t14\t96.5\tRoom\n" +
	"5\t1\t1\t1\t1\t2\t200\t21\t70\t14\t91\t2000.00\n" +
	"5\t1\t1\t1\t1\t3\t300\t21\t10\t14\t95\t \n"

func TestParseTSV(t *testing.T) {
	dets, err := ParseTSV([]byte(sampleTSV))
	require.NoError(t, err)
	require.Len(t, dets, 2)

	assert.Equal(t, "Room", dets[0].Text)
	assert.InDelta(t, 0.965, dets[0].Confidence, 1e-9)
	assert.Equal(t, 10.0, dets[0].Left())
	assert.Equal(t, 20.0, dets[0].Top())
	assert.Equal(t, 70.0, dets[0].Box[2].X)
	assert.Equal(t, 34.0, dets[0].Box[2].Y)
	assert.Equal(t, "2000.00", dets[1].Text)
}

func TestParseTSV_BlankPage(t *testing.T) {
	dets, err := ParseTSV([]byte("level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n"))
	require.NoError(t, err)
	assert.Empty(t, dets)
}

func TestParseTSV_BadGeometry(t *testing.T) {
	_, err := ParseTSV([]byte("5\t1\t1\t1\t1\t1\tx\t20\t60\t14\t96\tRoom\n"))
	assert.Error(t, err)
}

func TestTesseractDetect(t *testing.T) {
	var imgPath string
	stub := &execrun.Stub{Fn: func(name string, args []string) ([]byte, error) {
		imgPath = args[0]
		_, err := os.Stat(imgPath)
		return []byte(sampleTSV), err
	}}
	eng := NewTesseract(Config{Runner: stub, Language: "eng", PSM: 4})

	dets, err := eng.Detect(context.Background(), image.NewGray(image.Rect(0, 0, 20, 20)))
	require.NoError(t, err)
	assert.Len(t, dets, 2)

	require.Len(t, stub.Calls, 1)
	assert.Equal(t, "tesseract", stub.Calls[0].Name)
	assert.Equal(t, []string{"stdout", "-l", "eng", "--psm", "4", "tsv"}, stub.Calls[0].Args[1:])

	_, err = os.Stat(imgPath)
	assert.True(t, os.IsNotExist(err), "temp image is removed")
}

func TestTesseractDetect_Failure(t *testing.T) {
	eng := NewTesseract(Config{Runner: &execrun.Stub{Err: errors.New("exit status 1")}})
	_, err := eng.Detect(context.Background(), image.NewGray(image.Rect(0, 0, 4, 4)))
	assert.Error(t, err)
}

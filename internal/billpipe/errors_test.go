package billpipe

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MeKo-Tech/billparse/internal/extract"
)

func TestErrorFormatting(t *testing.T) {
	err := newError(KindExtraction, 2, "extraction failed", errors.New("timeout"))
	assert.Equal(t, "page 2: extraction failed: timeout", err.Error())

	err = newError(KindDownload, 0, "failed to download document", nil)
	assert.Equal(t, "failed to download document", err.Error())
}

func TestClassifyPageError(t *testing.T) {
	malformed := &extract.MalformedOutputError{Raw: "xx", Err: errors.New("no JSON object found")}
	assert.Equal(t, KindMalformedOutput, classifyPageError(1, fmt.Errorf("wrap: %w", malformed)).Kind)
	assert.Equal(t, KindExtraction, classifyPageError(1, errors.New("boom")).Kind)
}

func TestKindFatal(t *testing.T) {
	for _, k := range []Kind{KindDownload, KindRasterization, KindOCR} {
		assert.True(t, k.Fatal(), k)
	}
	for _, k := range []Kind{KindExtraction, KindMalformedOutput} {
		assert.False(t, k.Fatal(), k)
	}
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

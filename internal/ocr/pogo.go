package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/MeKo-Tech/billparse/internal/layout"
)

// Pogo sends page images to a remote pogo OCR server.
type Pogo struct {
	baseURL string
	client  *http.Client
}

// NewPogo creates the remote backend.
func NewPogo(cfg Config) *Pogo {
	cfg = cfg.withDefaults()
	return &Pogo{
		baseURL: strings.TrimRight(cfg.PogoURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// Name returns the backend identifier.
func (p *Pogo) Name() string { return BackendPogo }

type pogoResponse struct {
	OCR *struct {
		Regions []struct {
			Polygon       []struct{ X, Y float64 } `json:"polygon"`
			Box           struct{ X, Y, W, H int } `json:"box"`
			Text          string                   `json:"text"`
			RecConfidence float64                  `json:"rec_confidence"`
		} `json:"regions"`
	} `json:"ocr"`
}

// Detect posts the image as multipart field "image" to /ocr/image.
func (p *Pogo) Detect(ctx context.Context, img image.Image) ([]layout.TextDetection, error) {
	data, err := encodePNG(img)
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "page.png")
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := mw.WriteField("format", "json"); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/ocr/image", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pogo request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("pogo server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var pr pogoResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("decode pogo response: %w", err)
	}
	if pr.OCR == nil {
		return []layout.TextDetection{}, nil
	}

	dets := make([]layout.TextDetection, 0, len(pr.OCR.Regions))
	for _, r := range pr.OCR.Regions {
		if len(r.Polygon) == 4 {
			box := make([]layout.Point, 4)
			for i, pt := range r.Polygon {
				box[i] = layout.Point{X: pt.X, Y: pt.Y}
			}
			dets = append(dets, layout.TextDetection{Box: box, Text: r.Text, Confidence: r.RecConfidence})
			continue
		}
		dets = append(dets, layout.NewRectDetection(r.Text,
			float64(r.Box.X), float64(r.Box.Y), float64(r.Box.W), float64(r.Box.H), r.RecConfidence))
	}
	return dets, nil
}

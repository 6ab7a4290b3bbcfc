package photomatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"net/http"
	"time"
)

// Embedder turns an image into a fixed-length feature vector.
type Embedder interface {
	Embed(ctx context.Context, image []byte, contentType string) ([]float32, error)
}

// NewEmbedder returns the remote embedder when serviceURL is set, otherwise the local one.
func NewEmbedder(serviceURL string) Embedder {
	if serviceURL != "" {
		return NewRemoteEmbedder(serviceURL, nil)
	}
	return NewFeatureEmbedder()
}

// ErrUndecodable is returned when the bytes are not an image the embedder can read.
var ErrUndecodable = errors.New("image could not be decoded")

const (
	gridSize = 8
	histBins = 8
	// maxSamples bounds the pixels visited per image; larger images are subsampled.
	maxSamples = 256 * 256
)

// FeatureDims is the length of vectors produced by FeatureEmbedder.
const FeatureDims = gridSize*gridSize + 3*histBins

// FeatureEmbedder extracts a local descriptor: an 8x8 mean-centred luminance layout
// followed by an 8-bin histogram per RGB channel, L2-normalized.
type FeatureEmbedder struct{}

// NewFeatureEmbedder creates the local embedder.
func NewFeatureEmbedder() *FeatureEmbedder { return &FeatureEmbedder{} }

// Embed decodes a JPEG, PNG or GIF image and returns its descriptor.
func (FeatureEmbedder) Embed(_ context.Context, data []byte, _ string) ([]float32, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, ErrUndecodable
	}
	step := 1
	for (w/step)*(h/step) > maxSamples {
		step++
	}

	var (
		cellSum [gridSize * gridSize]float64
		cellN   [gridSize * gridSize]int
		hist    [3][histBins]float64
		total   int
	)
	for y := b.Min.Y; y < b.Max.Y; y += step {
		cy := (y - b.Min.Y) * gridSize / h
		for x := b.Min.X; x < b.Max.X; x += step {
			cx := (x - b.Min.X) * gridSize / w
			r, g, bl, _ := img.At(x, y).RGBA()
			rf, gf, bf := float64(r)/0xffff, float64(g)/0xffff, float64(bl)/0xffff
			cell := cy*gridSize + cx
			cellSum[cell] += 0.299*rf + 0.587*gf + 0.114*bf
			cellN[cell]++
			hist[0][bin(rf)]++
			hist[1][bin(gf)]++
			hist[2][bin(bf)]++
			total++
		}
	}

	vec := make([]float32, FeatureDims)
	var mean float64
	for i := range cellSum {
		if cellN[i] > 0 {
			cellSum[i] /= float64(cellN[i])
		}
		mean += cellSum[i]
	}
	mean /= float64(len(cellSum))
	for i := range cellSum {
		vec[i] = float32(cellSum[i] - mean)
	}
	off := gridSize * gridSize
	for c := range hist {
		for k, n := range hist[c] {
			vec[off+c*histBins+k] = float32(n / float64(total))
		}
	}
	normalize(vec)
	return vec, nil
}

func bin(v float64) int {
	i := int(v * histBins)
	if i >= histBins {
		i = histBins - 1
	}
	return i
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	n := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / n)
	}
}

// Cosine returns the cosine similarity of a and b clamped to [0,1].
// Vectors of different length or zero magnitude score 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	s := dot / math.Sqrt(na*nb)
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	}
	return s
}

// RemoteEmbedder delegates feature extraction to an HTTP service that answers
// a raw image POST with {"embedding":[...]}.
type RemoteEmbedder struct {
	url    string
	client *http.Client
}

// NewRemoteEmbedder creates a remote embedder. A nil client gets a 30s timeout.
func NewRemoteEmbedder(url string, client *http.Client) *RemoteEmbedder {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &RemoteEmbedder{url: url, client: client}
}

type remoteResponse struct {
	Embedding []float32 `json:"embedding"`
	Error     string    `json:"error,omitempty"`
}

// Embed posts the image and returns the service's vector. A 422 answer means the image was unreadable.
func (e *RemoteEmbedder) Embed(ctx context.Context, data []byte, contentType string) ([]float32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding service: %w", err)
	}
	defer resp.Body.Close()

	var out remoteResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil && resp.StatusCode == http.StatusOK {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, fmt.Errorf("%w: %s", ErrUndecodable, out.Error)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("embedding service returned %d", resp.StatusCode)
	case len(out.Embedding) == 0:
		return nil, errors.New("embedding service returned an empty vector")
	}
	return out.Embedding, nil
}

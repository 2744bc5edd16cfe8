package storage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"
)

const (
	thumbnailMaxDim   = 300
	thumbnailMaxBytes = 20 << 20
)

// Thumbnailer downloads a processed image and stores a small JPEG preview
// next to it.
type Thumbnailer struct {
	client *http.Client
	store  BlobStore
}

// NewThumbnailer builds a Thumbnailer over the given store.
func NewThumbnailer(store BlobStore, client *http.Client) *Thumbnailer {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Thumbnailer{client: client, store: store}
}

// FromURL fetches the image at srcURL, scales it to fit 300x300 and stores
// the JPEG under key, returning the public URL.
func (t *Thumbnailer) FromURL(ctx context.Context, srcURL, key string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("thumbnail: fetch source: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("thumbnail: fetch source: http %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, thumbnailMaxBytes))
	if err != nil {
		return "", fmt.Errorf("thumbnail: read source: %w", err)
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("thumbnail: decode source: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaleToFit(src, thumbnailMaxDim), &jpeg.Options{Quality: 85}); err != nil {
		return "", fmt.Errorf("thumbnail: encode: %w", err)
	}
	return t.store.Put(ctx, key, buf.Bytes(), "image/jpeg")
}

// scaleToFit shrinks src so the longer edge is at most maxDim, preserving
// aspect ratio. Images already small enough pass through unchanged.
func scaleToFit(src image.Image, maxDim int) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxDim && h <= maxDim {
		return src
	}
	outW, outH := maxDim, maxDim
	if w > h {
		outH = h * maxDim / w
	} else {
		outW = w * maxDim / h
	}
	if outW < 1 {
		outW = 1
	}
	if outH < 1 {
		outH = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, outW, outH))
	for y := 0; y < outH; y++ {
		srcY := bounds.Min.Y + y*h/outH
		for x := 0; x < outW; x++ {
			srcX := bounds.Min.X + x*w/outW
			dst.Set(x, y, src.At(srcX, srcY))
		}
	}
	return dst
}

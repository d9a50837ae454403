package image

import (
	"bytes"
	"context"
	"fmt"
	stdimage "image"
	"image/png"
	"io"
	"net/http"
	"strconv"
	"strings"

	xdraw "golang.org/x/image/draw"

	// Source uploads arrive in whatever format the client produced.
	_ "image/gif"
	_ "image/jpeg"
)

const defaultSize = "1024x1024"

// fetchSource downloads the source image referenced by an edit-mode request.
func fetchSource(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("image: create source request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image: fetch source: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("image: fetch source: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("image: read source: %w", err)
	}
	return data, nil
}

// prepareSource re-encodes the source for submission: decoding drops any
// orientation metadata, and the pixels are scaled to fit and centered on a
// transparent canvas of the requested output size, so the provider pads
// instead of cropping.
func prepareSource(data []byte, size string) ([]byte, error) {
	src, _, err := stdimage.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("image: decode source: %w", err)
	}

	targetW, targetH := parseSize(size)
	bounds := src.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW <= 0 || srcH <= 0 {
		return nil, fmt.Errorf("image: source has empty bounds")
	}

	// Fit the source inside the target, preserving its aspect ratio.
	scale := minFloat(float64(targetW)/float64(srcW), float64(targetH)/float64(srcH))
	fitW := int(float64(srcW) * scale)
	fitH := int(float64(srcH) * scale)
	if fitW < 1 {
		fitW = 1
	}
	if fitH < 1 {
		fitH = 1
	}

	offsetX := (targetW - fitW) / 2
	offsetY := (targetH - fitH) / 2
	canvas := stdimage.NewRGBA(stdimage.Rect(0, 0, targetW, targetH))
	dstRect := stdimage.Rect(offsetX, offsetY, offsetX+fitW, offsetY+fitH)
	xdraw.CatmullRom.Scale(canvas, dstRect, src, bounds, xdraw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("image: encode prepared source: %w", err)
	}
	return buf.Bytes(), nil
}

func parseSize(size string) (int, int) {
	size = strings.TrimSpace(strings.ToLower(size))
	if size == "" {
		size = defaultSize
	}
	parts := strings.Split(size, "x")
	if len(parts) == 2 {
		w, errW := strconv.Atoi(strings.TrimSpace(parts[0]))
		h, errH := strconv.Atoi(strings.TrimSpace(parts[1]))
		if errW == nil && errH == nil && w > 0 && h > 0 {
			return w, h
		}
	}
	return 1024, 1024
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

package postprocess

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"pixelpop/server/internal/infra"

	_ "image/gif"
	_ "image/jpeg"
)

const watermarkMargin = 8

// Watermarker composites a fixed caption onto finished images: rendered on a
// transparent layer at near-full opacity, rotated 90 degrees, and anchored to
// the bottom-right corner. It never fails a job: any rendering problem
// degrades to the untouched original bytes.
type Watermarker struct {
	caption string
	logger  infra.Logger
}

// NewWatermarker configures the stage with the caption to stamp.
func NewWatermarker(caption string, logger infra.Logger) *Watermarker {
	return &Watermarker{caption: caption, logger: logger}
}

// Apply returns the watermarked image, or the input unchanged when disabled
// or when compositing fails for any reason.
func (w *Watermarker) Apply(data []byte, enabled bool) []byte {
	if !enabled || w.caption == "" {
		return data
	}

	stamped, err := w.composite(data)
	if err != nil {
		w.logger.Warn().Err(err).Msg("postprocess: watermark skipped")
		return data
	}
	return stamped
}

func (w *Watermarker) composite(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	label := renderCaption(w.caption)
	stamp := rotate90(label)

	bounds := src.Bounds()
	flattened := image.NewRGBA(bounds)
	draw.Draw(flattened, bounds, src, bounds.Min, draw.Src)

	offsetX := bounds.Max.X - stamp.Bounds().Dx() - watermarkMargin
	offsetY := bounds.Max.Y - stamp.Bounds().Dy() - watermarkMargin
	if offsetX < bounds.Min.X {
		offsetX = bounds.Min.X
	}
	if offsetY < bounds.Min.Y {
		offsetY = bounds.Min.Y
	}
	target := image.Rect(offsetX, offsetY, offsetX+stamp.Bounds().Dx(), offsetY+stamp.Bounds().Dy())
	draw.Draw(flattened, target, stamp, image.Point{}, draw.Over)

	var buf bytes.Buffer
	if err := png.Encode(&buf, flattened); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// renderCaption draws the caption onto a transparent strip at near-full
// opacity.
func renderCaption(caption string) *image.RGBA {
	face := basicfont.Face7x13
	width := font.MeasureString(face, caption).Ceil()
	if width < 1 {
		width = 1
	}
	height := face.Height + 2

	strip := image.NewRGBA(image.Rect(0, 0, width, height))
	drawer := &font.Drawer{
		Dst:  strip,
		Src:  image.NewUniform(color.NRGBA{R: 255, G: 255, B: 255, A: 230}),
		Face: face,
		Dot:  fixed.P(0, face.Ascent),
	}
	drawer.DrawString(caption)
	return strip
}

// rotate90 turns the strip a quarter turn clockwise so the caption reads
// bottom-to-top along the image edge.
func rotate90(src *image.RGBA) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			dst.Set(b.Dy()-1-y, x, src.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}

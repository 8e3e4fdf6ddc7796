package render

import (
	"image"
	"image/color"
	"image/draw"
	"io"

	// Register the decoders DecodeImageData understands.
	_ "image/jpeg"
	_ "image/png"

	"github.com/cockroachdb/errors"
)

// ImageData is decoded pixel data ready for upload with CreateTextureImage.
// Pixels are tightly packed rows, Channels bytes per texel.
type ImageData struct {
	Pixels   []byte
	Width    int
	Height   int
	Channels int
}

// NewImageData wraps raw pixel data.
func NewImageData(pixels []byte, width, height, channels int) (*ImageData, error) {
	if len(pixels) != width*height*channels {
		return nil, errors.Errorf("invalid image data: %d bytes for %dx%d with %d channels!", len(pixels), width, height, channels)
	}

	return &ImageData{
		Pixels:   pixels,
		Width:    width,
		Height:   height,
		Channels: channels,
	}, nil
}

// DecodeImageData decodes a PNG or JPEG stream into 4 channel image data
// with straight alpha.
func DecodeImageData(r io.Reader) (*ImageData, error) {
	decodedImage, _, err := image.Decode(r)
	if err != nil {
		return nil, err
	}

	bounds := decodedImage.Bounds()
	converted := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(converted, converted.Bounds(), decodedImage, bounds.Min, draw.Src)

	return &ImageData{
		Pixels:   converted.Pix,
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		Channels: 4,
	}, nil
}

// SolidImageData builds a single color 4 channel image, useful as the
// texture for untextured surfaces.
func SolidImageData(width, height int, fill color.NRGBA) *ImageData {
	pixels := make([]byte, width*height*4)
	for i := 0; i < len(pixels); i += 4 {
		pixels[i] = fill.R
		pixels[i+1] = fill.G
		pixels[i+2] = fill.B
		pixels[i+3] = fill.A
	}

	return &ImageData{
		Pixels:   pixels,
		Width:    width,
		Height:   height,
		Channels: 4,
	}
}

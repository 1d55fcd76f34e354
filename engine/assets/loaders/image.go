package loaders

import (
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/cockroachdb/errors"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageData holds tightly packed RGBA8 pixels, rows top to bottom.
type ImageData struct {
	Width  uint32
	Height uint32
	Pixels []byte
	Format string
}

type ImageLoader struct{}

func (il *ImageLoader) Load(path string) (any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding image %s", path)
	}
	data := ToRGBA(img)
	data.Format = format
	return data, nil
}

// ToRGBA copies any decoded image into RGBA8.
func ToRGBA(img image.Image) *ImageData {
	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != b.Dx()*4 || b.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}
	return &ImageData{
		Width:  uint32(b.Dx()),
		Height: uint32(b.Dy()),
		Pixels: rgba.Pix,
	}
}

// SolidImage is a width x height image filled with one RGBA color.
func SolidImage(width, height uint32, r, g, b, a uint8) *ImageData {
	pixels := make([]byte, int(width)*int(height)*4)
	for i := 0; i < len(pixels); i += 4 {
		pixels[i], pixels[i+1], pixels[i+2], pixels[i+3] = r, g, b, a
	}
	return &ImageData{Width: width, Height: height, Pixels: pixels, Format: "solid"}
}

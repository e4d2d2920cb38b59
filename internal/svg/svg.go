// Package svg loads the vector images embedded in a scene. MuPDF handles
// SVG documents alongside PDF, so the loader rasterizes the image once at
// its natural size and keeps the result for the lifetime of the object.
package svg

import (
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

type Image struct {
	Path   string
	raster image.Image
}

func Load(path string) (*Image, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, fmt.Errorf("%s: document has no pages", path)
	}

	raster, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &Image{Path: path, raster: raster}, nil
}

// Raster returns the image rasterized at its natural size.
func (i *Image) Raster() image.Image {
	return i.raster
}

func (i *Image) Size() (width, height int) {
	b := i.raster.Bounds()
	return b.Dx(), b.Dy()
}

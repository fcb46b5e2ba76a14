package msix

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strconv"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

// IconSizes are the square sizes the manifest template refers to.
var IconSizes = []int{44, 50, 150}

func IconFileName(size int) string {
	return fmt.Sprintf("icon_%d.png", size)
}

// StageIcons recreates dir, and writes one png per IconSizes entry. The
// source is any raster image go can decode. Without one, the icons are
// a solid square of the background color.
func StageIcons(dir, source, backgroundColor string) error {
	if err := os.RemoveAll(dir); err != nil {
		return errors.Wrapf(err, "removing %s", dir)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "creating %s", dir)
	}

	var src image.Image
	if source != "" {
		var err error
		if src, err = decodeImage(source); err != nil {
			return err
		}
	}

	// Each size is scaled from the same source, which is only read
	var g errgroup.Group
	for _, size := range IconSizes {
		size := size
		g.Go(func() error {
			var img image.Image
			if src != nil {
				img = fitSquare(src, size)
			} else {
				img = solidSquare(size, parseHexColor(backgroundColor))
			}

			return writePNG(filepath.Join(dir, IconFileName(size)), img)
		})
	}

	return g.Wait()
}

func decodeImage(path string) (image.Image, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening icon %s", path)
	}
	defer fh.Close()

	img, _, err := image.Decode(fh)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding icon %s", path)
	}

	return img, nil
}

// fitSquare scales img to fit in a size x size square, keeping its
// aspect ratio, and centers it on a transparent canvas.
func fitSquare(img image.Image, size int) image.Image {
	scaled := resize.Thumbnail(uint(size), uint(size), img, resize.Lanczos3)

	canvas := image.NewNRGBA(image.Rect(0, 0, size, size))
	b := scaled.Bounds()
	offset := image.Pt((size-b.Dx())/2, (size-b.Dy())/2)
	draw.Draw(canvas, b.Sub(b.Min).Add(offset), scaled, b.Min, draw.Over)

	return canvas
}

func solidSquare(size int, c color.Color) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

// parseHexColor understands #RRGGBB. Anything else is transparent.
func parseHexColor(s string) color.Color {
	if len(s) != 7 || s[0] != '#' {
		return color.Transparent
	}

	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return color.Transparent
	}

	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}

func writePNG(path string, img image.Image) error {
	fh, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}

	if err := png.Encode(fh, img); err != nil {
		fh.Close()
		return errors.Wrapf(err, "encoding %s", path)
	}

	return errors.Wrapf(fh.Close(), "closing %s", path)
}

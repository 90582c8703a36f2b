// Package texload decodes image files into RGBA8 pixel data ready for upload.
package texload

import (
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/andewx/vkframe"
	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

// Options control decoding.
type Options struct {
	// Mips downsamples every level on the CPU instead of leaving it to the
	// GPU blit chain.
	Mips bool
	// Srgb tags the data as sRGB encoded.
	Srgb bool
	// Workers bounds concurrent decodes. Zero means one per file.
	Workers int
}

func (o Options) format() vk.Format {
	if o.Srgb {
		return vk.FormatR8g8b8a8Srgb
	}
	return vk.FormatR8g8b8a8Unorm
}

// Load decodes every path concurrently. Results keep the order of paths.
func Load(opts Options, paths ...string) ([]vkframe.ImageData, error) {
	out := make([]vkframe.ImageData, len(paths))
	var g errgroup.Group
	if opts.Workers > 0 {
		g.SetLimit(opts.Workers)
	}
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			data, err := LoadFile(path, opts)
			if err != nil {
				return err
			}
			out[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadFile decodes a single file.
func LoadFile(path string, opts Options) (vkframe.ImageData, error) {
	f, err := os.Open(path)
	if err != nil {
		return vkframe.ImageData{}, errors.Wrap(err, "texload")
	}
	defer f.Close()
	img, kind, err := image.Decode(f)
	if err != nil {
		return vkframe.ImageData{}, errors.Wrapf(err, "texload: decode %s", path)
	}
	if img.Bounds().Empty() {
		return vkframe.ImageData{}, errors.Newf("texload: %s (%s) is empty", path, kind)
	}
	return FromImage(img, opts), nil
}

// FromImage converts any image to tightly packed RGBA8.
func FromImage(src image.Image, opts Options) vkframe.ImageData {
	rgba := toRGBA(src)
	data := vkframe.ImageData{
		Width:  uint32(rgba.Rect.Dx()),
		Height: uint32(rgba.Rect.Dy()),
		Format: opts.format(),
		Pixels: rgba.Pix,
	}
	if opts.Mips {
		data.Mips = downsample(rgba)
	}
	return data
}

func toRGBA(src image.Image) *image.RGBA {
	if rgba, ok := src.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) && rgba.Stride == 4*rgba.Rect.Dx() {
		return rgba
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Rect, src, b.Min, draw.Src)
	return dst
}

// downsample builds levels 1 and up, halving each dimension down to 1x1.
func downsample(level0 *image.RGBA) [][]byte {
	w, h := level0.Rect.Dx(), level0.Rect.Dy()
	levels := int(vkframe.CalculateMipLevelCount(uint32(w), uint32(h), true))
	mips := make([][]byte, 0, levels-1)
	prev := level0
	for l := 1; l < levels; l++ {
		w, h = max(w/2, 1), max(h/2, 1)
		next := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.BiLinear.Scale(next, next.Rect, prev, prev.Rect, draw.Src, nil)
		mips = append(mips, next.Pix)
		prev = next
	}
	return mips
}

// Checkerboard generates a size x size texture of cells x cells squares.
// It stands in when no texture file is given.
func Checkerboard(size, cells int, a, b color.RGBA) vkframe.ImageData {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	cell := max(size/max(cells, 1), 1)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := a
			if (x/cell+y/cell)%2 == 1 {
				c = b
			}
			img.SetRGBA(x, y, c)
		}
	}
	return FromImage(img, Options{})
}

// Package thumbnail implements the host-integration surface for
// thumbnail extraction (spec §4.4): detect a ROM/save file, pull its
// icon or banner image, and rescale it to a requested pixel width, with
// an optional fallback when the file carries no usable image. Grounded
// in the rescale step of thelolagemann-gomeboy's pkg/display/display.go
// (golang.org/x/image/draw, both draw.Src compositing and
// draw.CatmullRom.Scale), adapted here to the spec's icon/banner model
// instead of a live framebuffer.
package thumbnail

import (
	"fmt"
	"image"
	"io"

	"golang.org/x/image/draw"

	"github.com/sargunv/romcore/internal/stream"
	"github.com/sargunv/romcore/lib/core"
	"github.com/sargunv/romcore/lib/detect"
)

// FallbackProvider supplies a thumbnail when the primary format parser
// recognizes no image for a file (spec §4.4 step 4, §6). A shell
// extension's file-association chain -- out of scope here -- decides
// which fallback instance this is; all this package needs is the
// single method call.
type FallbackProvider interface {
	Thumbnail(r io.ReaderAt, size int64, cx int) (*core.DecodedImage, error)
}

// Thumbnailer extracts and rescales thumbnails, delegating to Fallback
// when the input carries no detectable image. A Thumbnailer itself
// satisfies FallbackProvider, so chains of providers (spec §6's
// registered-fallback mechanism) can be built by nesting instances.
type Thumbnailer struct {
	Fallback FallbackProvider
}

// Thumbnail runs the spec §4.4 algorithm: detect r as a thumbnail-only
// source, pick its icon (falling back to its banner), and shrink the
// result so its larger dimension is cx pixels, preserving aspect ratio;
// an image already within cx on both axes is returned at native size.
// It delegates to t.Fallback when detection fails or yields no image,
// and reports core.NotSupported if there is no fallback to try.
func (t *Thumbnailer) Thumbnail(r io.ReaderAt, size int64, cx int) (*core.DecodedImage, error) {
	sr := stream.NewFileStream(r, size, "")
	rec, ok, err := detect.Detect(sr, detect.Options{ThumbnailOnly: true})
	if err != nil || !ok {
		return t.delegate(r, size, cx)
	}

	kind := core.ImageIcon
	img := rec.Image(kind)
	if img == nil {
		kind = core.ImageBanner
		img = rec.Image(kind)
	}
	if img == nil {
		return t.delegate(r, size, cx)
	}

	nearest := rec.ImagePixelFlags(kind)&core.ImgPfRescaleNearest != 0
	return rescale(img, cx, nearest), nil
}

func (t *Thumbnailer) delegate(r io.ReaderAt, size int64, cx int) (*core.DecodedImage, error) {
	if t.Fallback == nil {
		return nil, core.NewError(core.NotSupported, "thumbnail.Thumbnail", fmt.Errorf("no thumbnail available"))
	}
	return t.Fallback.Thumbnail(r, size, cx)
}

// Thumbnail is the package-level convenience entry point: a Thumbnailer
// with no registered fallback.
func Thumbnail(r io.ReaderAt, size int64, cx int) (*core.DecodedImage, error) {
	t := &Thumbnailer{}
	return t.Thumbnail(r, size, cx)
}

// rescale resizes img so its longer side is exactly cx pixels
// (preserving aspect ratio), using nearest-neighbor when the source
// format's imgpf hint requests it and a smooth filter otherwise (spec
// §4.4 step 3). An img already at or below cx on both axes is returned
// unscaled, matching the teacher's habit of never upscaling past the
// source's native resolution unnecessarily -- this only trims the
// larger side down, it never blows a small icon up past cx.
func rescale(img *core.DecodedImage, cx int, nearest bool) *core.DecodedImage {
	w, h := int(img.Width), int(img.Height)
	if w <= 0 || h <= 0 || cx <= 0 {
		return img
	}
	if w <= cx && h <= cx {
		return img
	}

	dw, dh := w, h
	if w >= h {
		dw = cx
		dh = h * cx / w
	} else {
		dh = cx
		dw = w * cx / h
	}
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	src := toNRGBA(img)
	dst := image.NewNRGBA(image.Rect(0, 0, dw, dh))

	var scaler draw.Interpolator = draw.CatmullRom
	if nearest {
		scaler = draw.NearestNeighbor
	}
	scaler.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	return fromNRGBA(dst, img)
}

// toNRGBA converts a DecodedImage's row-major ARGB buffer into the
// image.Image shape golang.org/x/image/draw operates on.
func toNRGBA(img *core.DecodedImage) *image.NRGBA {
	w, h := int(img.Width), int(img.Height)
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		row := dst.Pix[y*dst.Stride : y*dst.Stride+w*4]
		src := img.Pixels[y*w : y*w+w]
		for x, px := range src {
			a := uint8(px >> 24)
			r := uint8(px >> 16)
			g := uint8(px >> 8)
			b := uint8(px)
			row[x*4+0] = r
			row[x*4+1] = g
			row[x*4+2] = b
			row[x*4+3] = a
		}
	}
	return dst
}

// fromNRGBA converts a scaled image.NRGBA back into a DecodedImage,
// carrying forward the source's sBIT precision hints (they describe
// channel depth, not size, so survive a pure geometric resize).
func fromNRGBA(src *image.NRGBA, orig *core.DecodedImage) *core.DecodedImage {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	pixels := make([]uint32, w*h)
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w*4]
		for x := 0; x < w; x++ {
			r := uint32(row[x*4+0])
			g := uint32(row[x*4+1])
			bl := uint32(row[x*4+2])
			a := uint32(row[x*4+3])
			pixels[y*w+x] = a<<24 | r<<16 | g<<8 | bl
		}
	}
	return &core.DecodedImage{
		Width:  uint16(w),
		Height: uint16(h),
		Pixels: pixels,
		SBitR:  orig.SBitR,
		SBitG:  orig.SBitG,
		SBitB:  orig.SBitB,
		SBitA:  orig.SBitA,
	}
}

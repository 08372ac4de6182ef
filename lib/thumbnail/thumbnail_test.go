package thumbnail

import (
	"bytes"
	"io"
	"testing"

	"github.com/sargunv/romcore/lib/core"
)

func TestRescaleDownPreservesAspect(t *testing.T) {
	src := &core.DecodedImage{
		Width:  48,
		Height: 24,
		Pixels: make([]uint32, 48*24),
		SBitA:  8,
	}
	for i := range src.Pixels {
		src.Pixels[i] = 0xFF00FF00
	}

	out := rescale(src, 12, false)
	if out.Width != 12 || out.Height != 6 {
		t.Fatalf("got %dx%d, want 12x6", out.Width, out.Height)
	}
	if out.SBitA != 8 {
		t.Fatalf("sBIT.alpha not carried forward: got %d", out.SBitA)
	}
	if len(out.Pixels) != 12*6 {
		t.Fatalf("pixel buffer length = %d, want %d", len(out.Pixels), 12*6)
	}
}

func TestRescaleSmallerThanTargetIsNoop(t *testing.T) {
	src := &core.DecodedImage{Width: 8, Height: 8, Pixels: make([]uint32, 64)}
	out := rescale(src, 48, false)
	if out != src {
		t.Fatalf("expected the same image back when already within bounds")
	}
}

func TestRescaleNearestVsSmoothBothProduceCorrectSize(t *testing.T) {
	src := &core.DecodedImage{Width: 24, Height: 24, Pixels: make([]uint32, 24*24)}
	for y := 0; y < 24; y++ {
		for x := 0; x < 24; x++ {
			if (x+y)%2 == 0 {
				src.Pixels[y*24+x] = 0xFFFFFFFF
			}
		}
	}
	smooth := rescale(src, 8, false)
	nearest := rescale(src, 8, true)
	if smooth.Width != 8 || smooth.Height != 8 {
		t.Fatalf("smooth scale wrong size: %dx%d", smooth.Width, smooth.Height)
	}
	if nearest.Width != 8 || nearest.Height != 8 {
		t.Fatalf("nearest scale wrong size: %dx%d", nearest.Width, nearest.Height)
	}
}

// stubFallback records whether it was invoked and returns a fixed image.
type stubFallback struct {
	called bool
	img    *core.DecodedImage
}

func (s *stubFallback) Thumbnail(r io.ReaderAt, size int64, cx int) (*core.DecodedImage, error) {
	s.called = true
	return s.img, nil
}

func TestThumbnailFallsBackWhenUnrecognized(t *testing.T) {
	data := bytes.Repeat([]byte{0x00}, 64)
	fb := &stubFallback{img: &core.DecodedImage{Width: 1, Height: 1, Pixels: []uint32{0xFFFFFFFF}}}
	th := &Thumbnailer{Fallback: fb}

	img, err := th.Thumbnail(bytes.NewReader(data), int64(len(data)), 32)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fb.called {
		t.Fatalf("expected fallback to be invoked for an unrecognized file")
	}
	if img.Width != 1 {
		t.Fatalf("expected the fallback's image to be returned")
	}
}

func TestThumbnailNoFallbackReportsNotSupported(t *testing.T) {
	data := bytes.Repeat([]byte{0x00}, 64)
	th := &Thumbnailer{}
	_, err := th.Thumbnail(bytes.NewReader(data), int64(len(data)), 32)
	if err == nil {
		t.Fatalf("expected an error with no fallback registered")
	}
	ce, ok := err.(*core.Error)
	if !ok || ce.Kind != core.NotSupported {
		t.Fatalf("expected core.NotSupported, got %v", err)
	}
}

func TestThumbnailDetectsEmbeddedSMDHIcon(t *testing.T) {
	data := make3DSXWithIcon()
	img, err := Thumbnail(bytes.NewReader(data), int64(len(data)), 16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img == nil {
		t.Fatalf("expected a decoded icon, got nil")
	}
	if img.Width > 16 || img.Height > 16 {
		t.Fatalf("expected the icon to be rescaled down to <=16 on its long side, got %dx%d", img.Width, img.Height)
	}
}

// make3DSXWithIcon builds a minimal extended-header .3dsx with an
// embedded SMDH whose icon block is a solid, non-zero color so the
// decode step has something to find.
func make3DSXWithIcon() []byte {
	const smdhSize = 0x36C0
	const smdhOffIcons = 0x2040
	const iconSmallLen = 24 * 24 * 2
	const iconLargeLen = 48 * 48 * 2

	smdh := make([]byte, smdhSize)
	copy(smdh[0:4], "SMDH")
	for i := 0; i < iconSmallLen+iconLargeLen; i += 2 {
		smdh[smdhOffIcons+i] = 0xFF
		smdh[smdhOffIcons+i+1] = 0xFF
	}

	header := make([]byte, 0x2C)
	copy(header[0:4], "3DSX")
	putLE16(header, 0x04, 0x2C) // header size
	putLE32(header, 0x20, uint32(len(header)))
	putLE32(header, 0x24, uint32(len(smdh)))
	putLE32(header, 0x28, 0)

	return append(header, smdh...)
}

func putLE16(b []byte, off int, v uint16) {
	b[off] = byte(v)
	b[off+1] = byte(v >> 8)
}

func putLE32(b []byte, off int, v uint32) {
	b[off] = byte(v)
	b[off+1] = byte(v >> 8)
	b[off+2] = byte(v >> 16)
	b[off+3] = byte(v >> 24)
}

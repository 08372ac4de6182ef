package core

// DecodedImage is a decoded 32-bit ARGB raster, spec §3.
type DecodedImage struct {
	Width     uint16
	Height    uint16
	Pixels    []uint32 // ARGB, row-major
	PaletteLen *uint16
	Palette    []uint32
	SBitR, SBitG, SBitB, SBitA uint8
}

// HasAlpha reports whether the image's sBIT alpha precision (SBitA) is
// non-zero; the pixels themselves are not inspected. No package in this
// module calls it; lib/thumbnail returns the DecodedImage itself.
func (img *DecodedImage) HasAlpha() bool {
	return img.SBitA > 0
}

// IconAnimationDelay is one {numer, denom, ms} animation tick, spec §3.
type IconAnimationDelay struct {
	Numer uint16
	Denom uint16
	MS    uint16
}

// IconAnimation is a multi-frame animated icon, spec §3.
type IconAnimation struct {
	Frames    []DecodedImage
	FrameCount uint8
	Seq       []uint8
	Delays    []IconAnimationDelay
	SeqCount  uint8
}

// ImageType enumerates the kinds of image a parser may expose.
type ImageType int

const (
	ImageIcon ImageType = iota
	ImageBanner
	ImageIconLarge
)

// ImagePixelFlags are per-image rescale hints a parser can attach
// alongside a decoded image (§4.2.8/§4.4's imgpf), consulted by the
// thumbnail host glue when resizing to a requested pixel width.
type ImagePixelFlags uint8

const (
	// ImgPfRescaleNearest requests nearest-neighbor scaling instead of
	// a smooth filter, for images whose source pixels are already
	// blocky (e.g. small tiled icons) and would look worse smoothed.
	ImgPfRescaleNearest ImagePixelFlags = 1 << iota
	// ImgPfIconAnimated marks that IconAnimation() holds the preferred
	// representation over the static image of the same kind.
	ImgPfIconAnimated
)

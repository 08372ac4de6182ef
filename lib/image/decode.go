// Package image implements the pure pixel-format decoders shared by
// every format parser: linear indexed bitmaps, packed 16-bit color, a
// monochrome format, and the two tiled layouts (3DS Z-order, GameCube
// CI8 8x4 tiles). Each function takes raw source bytes plus geometry
// and returns a core.DecodedImage, never touching I/O.
package image

import (
	"fmt"

	"github.com/sargunv/romcore/lib/core"
)

// argb4444ToARGB8888 expands a 16-bit 0xARGB pixel to 32-bit ARGB by
// replicating each 4-bit channel into the low nibble.
func argb4444ToARGB8888(px uint16) uint32 {
	a := uint32(px>>12) & 0xF
	r := uint32(px>>8) & 0xF
	g := uint32(px>>4) & 0xF
	b := uint32(px) & 0xF
	expand := func(n uint32) uint32 { return n<<4 | n }
	return expand(a)<<24 | expand(r)<<16 | expand(g)<<8 | expand(b)
}

// rgb5a3ToARGB8888 decodes GameCube/Dreamcast-style RGB5A3: bit 15 set
// means opaque RGB555, clear means RGB444 with a 3-bit alpha.
func rgb5a3ToARGB8888(px uint16) uint32 {
	if px&0x8000 != 0 {
		r := uint32(px>>10) & 0x1F
		g := uint32(px>>5) & 0x1F
		b := uint32(px) & 0x1F
		expand5 := func(n uint32) uint32 { return n<<3 | n>>2 }
		return 0xFF000000 | expand5(r)<<16 | expand5(g)<<8 | expand5(b)
	}
	a := uint32(px>>12) & 0x7
	r := uint32(px>>8) & 0xF
	g := uint32(px>>4) & 0xF
	b := uint32(px) & 0xF
	expand4 := func(n uint32) uint32 { return n<<4 | n }
	expandA3 := func(n uint32) uint32 { return n<<5 | n<<2 | n>>1 }
	return expandA3(a)<<24 | expand4(r)<<16 | expand4(g)<<8 | expand4(b)
}

func rgb565ToARGB8888(px uint16) uint32 {
	r := uint32(px>>11) & 0x1F
	g := uint32(px>>5) & 0x3F
	b := uint32(px) & 0x1F
	expand5 := func(n uint32) uint32 { return n<<3 | n>>2 }
	expand6 := func(n uint32) uint32 { return n<<2 | n>>4 }
	return 0xFF000000 | expand5(r)<<16 | expand6(g)<<8 | expand5(b)
}

// DecodePaletted4bpp decodes a linear 4bpp indexed bitmap (two pixels
// per byte, high nibble first) against a 16-entry ARGB8888 palette.
func DecodePaletted4bpp(width, height int, src []byte, palette []uint32) (*core.DecodedImage, error) {
	if len(palette) < 16 {
		return nil, fmt.Errorf("image: 4bpp palette needs 16 entries, got %d", len(palette))
	}
	need := (width * height) / 2
	if len(src) < need {
		return nil, fmt.Errorf("image: 4bpp source too short: have %d need %d", len(src), need)
	}
	px := make([]uint32, width*height)
	for i := 0; i < width*height; i += 2 {
		b := src[i/2]
		px[i] = palette[b>>4]
		if i+1 < len(px) {
			px[i+1] = palette[b&0x0F]
		}
	}
	return finishIndexed(width, height, px, palette, 16)
}

// DecodePaletted8bpp decodes a linear 8bpp indexed bitmap against a
// 256-entry ARGB8888 palette.
func DecodePaletted8bpp(width, height int, src []byte, palette []uint32) (*core.DecodedImage, error) {
	if len(palette) < 256 {
		return nil, fmt.Errorf("image: 8bpp palette needs 256 entries, got %d", len(palette))
	}
	need := width * height
	if len(src) < need {
		return nil, fmt.Errorf("image: 8bpp source too short: have %d need %d", len(src), need)
	}
	px := make([]uint32, need)
	for i := 0; i < need; i++ {
		px[i] = palette[src[i]]
	}
	return finishIndexed(width, height, px, palette, 256)
}

func finishIndexed(width, height int, px []uint32, palette []uint32, palLen uint16) (*core.DecodedImage, error) {
	maxA := uint8(0)
	for _, p := range palette {
		if a := uint8(p >> 24); a > maxA {
			maxA = a
		}
	}
	pl := palLen
	return &core.DecodedImage{
		Width: uint16(width), Height: uint16(height), Pixels: px,
		PaletteLen: &pl, Palette: append([]uint32(nil), palette...),
		SBitR: 8, SBitG: 8, SBitB: 8, SBitA: boolBit(maxA > 0),
	}, nil
}

func boolBit(b bool) uint8 {
	if b {
		return 8
	}
	return 0
}

// DecodeARGB4444 decodes a linear 16bpp ARGB4444 bitmap.
func DecodeARGB4444(width, height int, src []byte) (*core.DecodedImage, error) {
	need := width * height * 2
	if len(src) < need {
		return nil, fmt.Errorf("image: argb4444 source too short: have %d need %d", len(src), need)
	}
	px := make([]uint32, width*height)
	maxA := uint32(0)
	for i := 0; i < width*height; i++ {
		v := uint16(src[2*i])<<8 | uint16(src[2*i+1])
		px[i] = argb4444ToARGB8888(v)
		if a := px[i] >> 24; a > maxA {
			maxA = a
		}
	}
	return &core.DecodedImage{Width: uint16(width), Height: uint16(height), Pixels: px,
		SBitR: 4, SBitG: 4, SBitB: 4, SBitA: boolBit(maxA > 0)}, nil
}

// DecodeRGB5A3 decodes a linear 16bpp RGB5A3 bitmap (GameCube, Dreamcast).
func DecodeRGB5A3(width, height int, src []byte) (*core.DecodedImage, error) {
	need := width * height * 2
	if len(src) < need {
		return nil, fmt.Errorf("image: rgb5a3 source too short: have %d need %d", len(src), need)
	}
	px := make([]uint32, width*height)
	maxA := uint32(0)
	for i := 0; i < width*height; i++ {
		v := uint16(src[2*i])<<8 | uint16(src[2*i+1])
		px[i] = rgb5a3ToARGB8888(v)
		if a := px[i] >> 24; a > maxA {
			maxA = a
		}
	}
	return &core.DecodedImage{Width: uint16(width), Height: uint16(height), Pixels: px,
		SBitR: 5, SBitG: 5, SBitB: 5, SBitA: boolBit(maxA < 0xFF*uint32(width*height))}, nil
}

// DecodeMono1bpp decodes a monochrome 1bpp linear bitmap (MSB first)
// against a programmable two-color palette {off, on}.
func DecodeMono1bpp(width, height int, src []byte, off, on uint32) (*core.DecodedImage, error) {
	need := (width * height) / 8
	if len(src) < need {
		return nil, fmt.Errorf("image: mono1bpp source too short: have %d need %d", len(src), need)
	}
	px := make([]uint32, width*height)
	for i := 0; i < width*height; i++ {
		byteIdx := i / 8
		bit := 7 - uint(i%8)
		if src[byteIdx]&(1<<bit) != 0 {
			px[i] = on
		} else {
			px[i] = off
		}
	}
	return &core.DecodedImage{Width: uint16(width), Height: uint16(height), Pixels: px,
		SBitR: 8, SBitG: 8, SBitB: 8, SBitA: boolBit(uint8(off>>24) > 0 || uint8(on>>24) > 0)}, nil
}

// zOrderTileIndex maps (x, y) within an 8x8 tile to its Z-order (Morton
// code) pixel index, the storage order N3DS icon tiles use.
func zOrderTileIndex(x, y int) int {
	idx := 0
	for bit := 0; bit < 3; bit++ {
		idx |= ((x >> uint(bit)) & 1) << uint(2*bit)
		idx |= ((y >> uint(bit)) & 1) << uint(2*bit+1)
	}
	return idx
}

// DecodeN3DSTiledRGB565 decodes an N3DS SMDH icon: width x height must
// be multiples of 8; pixels are stored tile-by-tile (tiles in raster
// order, left-to-right top-to-bottom), each tile's 64 pixels in Z-order.
func DecodeN3DSTiledRGB565(width, height int, src []byte) (*core.DecodedImage, error) {
	if width%8 != 0 || height%8 != 0 {
		return nil, fmt.Errorf("image: n3ds tiled dimensions must be multiples of 8, got %dx%d", width, height)
	}
	need := width * height * 2
	if len(src) < need {
		return nil, fmt.Errorf("image: n3ds tiled source too short: have %d need %d", len(src), need)
	}
	px := make([]uint32, width*height)
	tilesX := width / 8
	srcOff := 0
	for tileY := 0; tileY < height/8; tileY++ {
		for tileX := 0; tileX < tilesX; tileX++ {
			for i := 0; i < 64; i++ {
				v := uint16(src[srcOff])<<8 | uint16(src[srcOff+1])
				srcOff += 2
				zx := 0
				zy := 0
				for bit := 0; bit < 3; bit++ {
					zx |= ((i >> uint(2*bit)) & 1) << uint(bit)
					zy |= ((i >> uint(2*bit+1)) & 1) << uint(bit)
				}
				px[(tileY*8+zy)*width+(tileX*8+zx)] = rgb565ToARGB8888(v)
			}
		}
	}
	return &core.DecodedImage{Width: uint16(width), Height: uint16(height), Pixels: px,
		SBitR: 5, SBitG: 6, SBitB: 5, SBitA: 0}, nil
}

// DecodeGameCubeCI8Tiled decodes a GameCube CI8 icon/banner: 8x4 tiles,
// row-major pixels within each tile, tiles in raster order.
func DecodeGameCubeCI8Tiled(width, height int, src []byte, palette []uint32) (*core.DecodedImage, error) {
	if width%8 != 0 || height%4 != 0 {
		return nil, fmt.Errorf("image: gc ci8 tiled dimensions must be multiples of 8x4, got %dx%d", width, height)
	}
	if len(palette) < 256 {
		return nil, fmt.Errorf("image: gc ci8 palette needs 256 entries, got %d", len(palette))
	}
	need := width * height
	if len(src) < need {
		return nil, fmt.Errorf("image: gc ci8 tiled source too short: have %d need %d", len(src), need)
	}
	px := make([]uint32, width*height)
	srcOff := 0
	for tileY := 0; tileY < height/4; tileY++ {
		for tileX := 0; tileX < width/8; tileX++ {
			for y := 0; y < 4; y++ {
				for x := 0; x < 8; x++ {
					idx := src[srcOff]
					srcOff++
					px[(tileY*4+y)*width+(tileX*8+x)] = palette[idx]
				}
			}
		}
	}
	pl := uint16(256)
	return &core.DecodedImage{Width: uint16(width), Height: uint16(height), Pixels: px,
		PaletteLen: &pl, Palette: append([]uint32(nil), palette...),
		SBitR: 8, SBitG: 8, SBitB: 8, SBitA: 8}, nil
}

// DecodeRGB5A3Palette decodes a 256-entry big-endian RGB5A3 palette,
// used by GameCube CI8 banners and icons.
func DecodeRGB5A3Palette(src []byte) ([]uint32, error) {
	const count = 256
	need := count * 2
	if len(src) < need {
		return nil, fmt.Errorf("image: rgb5a3 palette too short: have %d need %d", len(src), need)
	}
	out := make([]uint32, count)
	for i := 0; i < count; i++ {
		v := uint16(src[2*i])<<8 | uint16(src[2*i+1])
		out[i] = rgb5a3ToARGB8888(v)
	}
	return out, nil
}

// DecodeARGB4444Palette decodes 16 little-endian ARGB4444 palette
// entries into ARGB8888, used by Dreamcast VMS icon palettes.
func DecodeARGB4444Palette(src []byte) ([]uint32, error) {
	return DecodeARGB4444PaletteN(src, 16)
}

// DecodeARGB4444PaletteN decodes count little-endian ARGB4444 palette
// entries into ARGB8888, used by the Dreamcast CI8 eyecatch palette
// (256 entries) in addition to the 16-entry icon palette.
func DecodeARGB4444PaletteN(src []byte, count int) ([]uint32, error) {
	need := count * 2
	if len(src) < need {
		return nil, fmt.Errorf("image: argb4444 palette too short: have %d need %d", len(src), need)
	}
	out := make([]uint32, count)
	for i := 0; i < count; i++ {
		v := uint16(src[2*i]) | uint16(src[2*i+1])<<8
		out[i] = argb4444ToARGB8888(v)
	}
	return out, nil
}

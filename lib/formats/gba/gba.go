// Package gba parses Game Boy Advance ROM headers, including the
// Nintendo-logo-based detection used to distinguish ordinary cartridges
// from NDS expansion carts and unlicensed pass-through devices that
// share the same header layout but omit the boot logo. Grounded in
// original_source/src/libromdata/Handheld/{GameBoyAdvance.cpp,
// gba_structs.h}; no teacher code covered this format.
package gba

import (
	"fmt"

	"github.com/sargunv/romcore/internal/stream"
	"github.com/sargunv/romcore/internal/util"
	"github.com/sargunv/romcore/lib/core"
)

const headerSize = 0xC0

var nintendoLogo = [16]byte{
	0x24, 0xFF, 0xAE, 0x51, 0x69, 0x9A, 0xA2, 0x21,
	0x3D, 0x84, 0x82, 0x0A, 0x84, 0xE4, 0x09, 0xAD,
}

const (
	offEntryPoint = 0x00
	offLogo       = 0x04
	offTitle      = 0xA0
	offID6        = 0xAC
	offFixed96h   = 0xB2
	offDeviceType = 0xB3
	offVersion    = 0xBC
	offChecksum   = 0xBD
)

// RomKind distinguishes a bootable GBA cartridge from an NDS expansion
// slot-2 cartridge or an unlicensed pass-through device that shares the
// header layout but fails the logo check.
type RomKind int

const (
	KindUnknown RomKind = iota
	KindGBA
	KindNDSExpansion
	KindPassthrough
)

// Info is the decoded GBA header.
type Info struct {
	Kind           RomKind
	Title          string
	ID6            string
	GameCode       string // ID4
	CompanyCode    string
	Version        uint8
	HeaderChecksum uint8
	ChecksumOK     bool
	Region         core.Region
}

// IsSupported checks only the fixed 0x96 byte at its known offset (GBA
// carries no magic number of its own). The Nintendo logo and, for
// headers without it, the header checksum are checked by Parse.
func IsSupported(header []byte) bool {
	if len(header) < headerSize {
		return false
	}
	if header[offFixed96h] != 0x96 {
		return false
	}
	return true
}

// Parse decodes a GBA ROM header from r.
func Parse(r stream.Reader) (*Info, error) {
	size := r.Size()
	if size < headerSize {
		return nil, core.NewError(core.InvalidFormat, "gba.Parse", fmt.Errorf("file too small: %d bytes", size))
	}
	h := make([]byte, headerSize)
	if err := stream.ReadFull(r, 0, h); err != nil {
		return nil, core.NewError(core.IOError, "gba.Parse", err)
	}
	if h[offFixed96h] != 0x96 || h[offDeviceType] != 0x00 {
		return nil, core.NewError(core.NotSupported, "gba.Parse", fmt.Errorf("missing fixed 0x96 marker"))
	}

	kind := KindPassthrough
	var logo [16]byte
	copy(logo[:], h[offLogo:offLogo+16])
	if logo == nintendoLogo {
		kind = KindGBA
	}

	var chk uint8
	for i := 0xA0; i <= 0xBC; i++ {
		chk -= h[i]
	}
	chk -= 0x19
	checksumOK := chk == h[offChecksum]

	if kind != KindGBA {
		entry := uint32(h[0]) | uint32(h[1])<<8 | uint32(h[2])<<16 | uint32(h[3])<<24
		if checksumOK && entry == 0xFFFFFFFF {
			kind = KindNDSExpansion
		} else if !checksumOK {
			kind = KindUnknown
		}
	}

	if kind == KindUnknown {
		return nil, core.NewError(core.NotSupported, "gba.Parse", fmt.Errorf("no valid logo or passthrough checksum"))
	}

	title := util.DecodeText(h[offTitle:offTitle+12], util.EncodingASCII)
	id6 := util.ExtractASCII(h[offID6 : offID6+6])
	var gameCode, company string
	if len(id6) >= 4 {
		gameCode = id6[:4]
	}
	if len(id6) == 6 {
		company = id6[4:6]
	}

	info := &Info{
		Kind:           kind,
		Title:          title,
		ID6:            id6,
		GameCode:       gameCode,
		CompanyCode:    company,
		Version:        h[offVersion],
		HeaderChecksum: h[offChecksum],
		ChecksumOK:     checksumOK,
	}
	if len(gameCode) == 4 {
		info.Region = core.RegionFromID4Byte(gameCode[3])
	}
	return info, nil
}

// BuildRecord assembles the spec §3 RomDataRecord for a parsed header.
func BuildRecord(info *Info) *core.RomDataRecord {
	mime := "application/x-gba-rom"
	rec := core.NewRomDataRecord(mime, core.FileTypeROMImage)
	rec.IsValid = true
	f := rec.Fields
	f.AddString("Title", info.Title, core.FlagTrimEnd)
	f.AddString("Game Code", info.GameCode, 0)
	f.AddString("Company Code", info.CompanyCode, 0)
	f.AddNumeric("Revision", uint64(info.Version), 10, 0)
	switch info.Kind {
	case KindNDSExpansion:
		f.AddString("Type", "Nintendo DS Expansion Cartridge", 0)
	case KindPassthrough:
		f.AddString("Type", "Unlicensed Pass-Through Device", 0)
	}
	if !info.ChecksumOK && info.Kind == KindGBA {
		f.AddString("Checksum", "invalid", core.FlagWarning)
	}

	rec.Metadata.AddString(core.MetaTitle, info.Title)
	rec.Metadata.AddString(core.MetaGameID, info.GameCode)
	return rec
}

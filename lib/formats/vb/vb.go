// Package vb parses Virtual Boy ROM headers. The header has no magic
// number; it is a fixed 32-byte record at the end of the ROM image
// rather than the start. Grounded in original_source/src/libromdata/
// Handheld/vb_structs.h; no teacher code covered this format.
package vb

import (
	"fmt"

	"github.com/sargunv/romcore/internal/stream"
	"github.com/sargunv/romcore/internal/util"
	"github.com/sargunv/romcore/lib/core"
)

const headerSize = 32

// Info is the decoded Virtual Boy header.
type Info struct {
	Title       string
	GameID      string // 6-char: maker code (2) + game code (4)
	MakerCode   string
	GameCode    string
	Version     uint8
	Region      core.Region
}

// IsSupported has no magic to check; it only requires the file to be at
// least headerSize bytes long. Neither it nor Parse checks the file size
// against a range or power of two, or validates the characters of the
// title, maker code or game code (spec §4.1 allows extension-gated
// formats to skip the magic-byte phase).
func IsSupported(size int64) bool {
	return size >= headerSize
}

// Parse reads the 32-byte header from the last 32 bytes of the image.
func Parse(r stream.Reader) (*Info, error) {
	size := r.Size()
	if size < headerSize {
		return nil, core.NewError(core.InvalidFormat, "vb.Parse", fmt.Errorf("file too small: %d bytes", size))
	}
	h := make([]byte, headerSize)
	if err := stream.ReadFull(r, size-headerSize, h); err != nil {
		return nil, core.NewError(core.IOError, "vb.Parse", err)
	}

	title := util.DecodeText(h[0:21], util.EncodingCP1252)
	makerCode := util.ExtractASCII(h[25:27])
	gameCode := util.ExtractASCII(h[27:31])
	version := h[31]

	info := &Info{
		Title:     title,
		MakerCode: makerCode,
		GameCode:  gameCode,
		GameID:    makerCode + gameCode,
		Version:   version,
	}
	if len(gameCode) == 4 {
		info.Region = core.RegionFromID4Byte(gameCode[3])
	}
	return info, nil
}

// BuildRecord assembles the spec §3 RomDataRecord for a parsed header.
func BuildRecord(info *Info) *core.RomDataRecord {
	rec := core.NewRomDataRecord("application/x-virtual-boy-rom", core.FileTypeROMImage)
	rec.IsValid = true
	f := rec.Fields
	f.AddString("Title", info.Title, core.FlagTrimEnd)
	f.AddString("Maker Code", info.MakerCode, 0)
	f.AddString("Game Code", info.GameCode, 0)
	f.AddNumeric("Revision", uint64(info.Version), 10, 0)

	rec.Metadata.AddString(core.MetaTitle, info.Title)
	rec.Metadata.AddString(core.MetaGameID, info.GameID)
	return rec
}

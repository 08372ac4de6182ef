package n3ds

import (
	"fmt"

	"github.com/sargunv/romcore/internal/byteorder"
	"github.com/sargunv/romcore/internal/util"
	"github.com/sargunv/romcore/lib/core"
)

// ExHeader layout (spec §4.2.8): SCI (0x200) + ACI (0x200) +
// signature/accessdesc (0x100) + NCCH public key (0x100) + ACI2 (0x200)
// = 0x800 bytes total; only the first 0x400 (SCI+ACI) is decrypted
// under the ExHeader key and is what parsers actually read.
const (
	exHeaderSCISize      = 0x200
	offExHdrTitle        = 0x000
	offExHdrStackSize    = 0x01C
	offExHdrBSSSize      = 0x03C
	offExHdrSaveDataSize = 0x1C0
	offExHdrJumpID       = 0x1C8
)

// ExHeaderInfo is the decoded subset of the NCCH extended header
// parsers actually surface (spec §4.2.8's "nested tab").
type ExHeaderInfo struct {
	Title        string
	StackSize    uint32
	BSSSize      uint32
	SaveDataSize uint64
	JumpID       uint64
}

func parseExHeader(raw []byte) (*ExHeaderInfo, error) {
	if len(raw) < exHeaderSCISize {
		return nil, core.NewError(core.InvalidFormat, "n3ds.parseExHeader", fmt.Errorf("exheader truncated"))
	}
	return &ExHeaderInfo{
		Title:        util.ExtractASCII(raw[offExHdrTitle : offExHdrTitle+8]),
		StackSize:    byteorder.LE32(raw, offExHdrStackSize),
		BSSSize:      byteorder.LE32(raw, offExHdrBSSSize),
		SaveDataSize: byteorder.LE64(raw, offExHdrSaveDataSize),
		JumpID:       byteorder.LE64(raw, offExHdrJumpID),
	}, nil
}

// AddFields appends the ExHeader tab's fields to a record.
func (e *ExHeaderInfo) AddFields(rec *core.RomDataRecord) {
	rec.Fields.AddTab("ExHeader")
	f := rec.Fields
	f.AddString("Internal Name", e.Title, core.FlagTrimEnd)
	f.AddNumeric("Stack Size", uint64(e.StackSize), 10, 0)
	f.AddNumeric("BSS Size", uint64(e.BSSSize), 10, 0)
	f.AddNumeric("Save Data Size", e.SaveDataSize, 10, 0)
}

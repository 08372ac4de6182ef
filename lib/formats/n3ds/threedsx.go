package n3ds

import (
	"fmt"

	"github.com/sargunv/romcore/internal/byteorder"
	"github.com/sargunv/romcore/internal/stream"
	"github.com/sargunv/romcore/lib/core"
)

// 3DSX layout (spec §4.2.8): a 32-byte standard header, optionally
// followed by a 12-byte extended header carrying the SMDH and RomFS
// offsets homebrew titles embed.
const (
	threeDSXStdHeaderSize = 0x20
	offThreeDSXHeaderSize = 0x04
	offThreeDSXSMDHOffset = 0x20
	offThreeDSXSMDHSize   = 0x24
	offThreeDSXRomFSOffset = 0x28
)

// ThreeDSXInfo is the decoded .3dsx (homebrew executable) header.
type ThreeDSXInfo struct {
	HasExtendedHeader bool
	SMDHOffset        int64
	SMDHSize          int64
	RomFSOffset       int64
	SMDH              *SMDHInfo
}

// parse3DSX decodes a .3dsx header and, if an SMDH is embedded, reads
// and decodes it too.
func parse3DSX(r stream.Reader) (*ThreeDSXInfo, error) {
	h := make([]byte, 0x2C)
	n, err := r.ReadAt(h, 0)
	if err != nil || n < threeDSXStdHeaderSize {
		return nil, core.NewError(core.IOError, "n3ds.parse3DSX", fmt.Errorf("header truncated"))
	}
	if string(h[0:4]) != "3DSX" {
		return nil, core.NewError(core.NotSupported, "n3ds.parse3DSX", fmt.Errorf("missing 3DSX magic"))
	}
	headerSize := byteorder.LE16(h, offThreeDSXHeaderSize)

	info := &ThreeDSXInfo{}
	if int(headerSize) >= 0x2C && n >= 0x2C {
		smdhOff := int64(byteorder.LE32(h, offThreeDSXSMDHOffset))
		smdhSz := int64(byteorder.LE32(h, offThreeDSXSMDHSize))
		if smdhOff > 0 && smdhSz > 0 {
			info.HasExtendedHeader = true
			info.SMDHOffset = smdhOff
			info.SMDHSize = smdhSz
			info.RomFSOffset = int64(byteorder.LE32(h, offThreeDSXRomFSOffset))
			if smdh, err := ReadSMDH(r, smdhOff); err == nil {
				info.SMDH = smdh
			}
		}
	}
	return info, nil
}

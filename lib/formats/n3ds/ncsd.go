package n3ds

import (
	"fmt"

	"github.com/sargunv/romcore/internal/byteorder"
	"github.com/sargunv/romcore/internal/stream"
	"github.com/sargunv/romcore/lib/core"
)

// NCSD header layout (spec §4.2.8): a 0x100-byte RSA signature, then a
// 0x100-byte body holding up to 8 partition table entries and an
// 8-byte crypt-type field that distinguishes a CCI cartridge image
// from an eMMC (NAND) dump.
const (
	ncsdHeaderSize        = 0x200
	offNCSDMagic          = 0x100
	offNCSDImageSize      = 0x104
	offNCSDMediaID        = 0x108
	offNCSDCryptType      = 0x118
	offNCSDPartitionTable = 0x120
	ncsdPartitionCount    = 8
)

// NCSDVariant distinguishes the two containers that share the NCSD
// magic: a cartridge image (CCI) and a NAND (eMMC) dump.
type NCSDVariant int

const (
	NCSDUnknown NCSDVariant = iota
	NCSDCartridge
	NCSDeMMC
)

var emmcCryptSignature = [8]byte{1, 2, 2, 2, 2, 0, 0, 0}

// classifyNCSDCryptType distinguishes CCI from eMMC via the crypt-type
// field (spec §4.2.8): all-zero means CCI; the {1,2,2,2,(2|3),0,0,0}
// pattern (New3DS titles use 3 in the fifth byte) means eMMC.
func classifyNCSDCryptType(b [8]byte) NCSDVariant {
	allZero := true
	for _, v := range b {
		if v != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return NCSDCartridge
	}
	matches := b[0] == 1 && b[1] == 2 && b[2] == 2 && b[3] == 2 && (b[4] == 2 || b[4] == 3) && b[5] == 0 && b[6] == 0 && b[7] == 0
	if matches {
		return NCSDeMMC
	}
	return NCSDUnknown
}

// NCSDPartition is one partition-table slot.
type NCSDPartition struct {
	Offset int64 // bytes, from the start of the NCSD container
	Length int64
}

// NCSDInfo is the decoded NCSD header.
type NCSDInfo struct {
	Variant    NCSDVariant
	MediaID    uint64
	Partitions [8]NCSDPartition
}

func parseNCSD(r stream.Reader) (*NCSDInfo, error) {
	h := make([]byte, ncsdHeaderSize)
	if err := stream.ReadFull(r, 0, h); err != nil {
		return nil, core.NewError(core.IOError, "n3ds.parseNCSD", err)
	}
	if string(h[offNCSDMagic:offNCSDMagic+4]) != "NCSD" {
		return nil, core.NewError(core.NotSupported, "n3ds.parseNCSD", fmt.Errorf("missing NCSD magic"))
	}

	var crypt [8]byte
	copy(crypt[:], h[offNCSDCryptType:offNCSDCryptType+8])

	info := &NCSDInfo{
		Variant: classifyNCSDCryptType(crypt),
		MediaID: byteorder.LE64(h, offNCSDMediaID),
	}
	for i := 0; i < ncsdPartitionCount; i++ {
		e := h[offNCSDPartitionTable+i*8 : offNCSDPartitionTable+i*8+8]
		info.Partitions[i] = NCSDPartition{
			Offset: int64(byteorder.LE32(e, 0)) * mediaUnit,
			Length: int64(byteorder.LE32(e, 4)) * mediaUnit,
		}
	}
	return info, nil
}

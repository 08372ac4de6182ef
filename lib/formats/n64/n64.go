// Package n64 parses Nintendo 64 ROM headers across the four byte
// orderings distributed in the wild (Z64, V64, swap2, LE32). Adapted
// from the teacher's lib/roms/n64/z64.go, which covered three of the
// four orderings; this version normalizes to Z64 byte order up front
// (spec §4.2.3) via the internal/byteorder transforms and adds the
// fourth (swap2, a pure 32-bit word-swap distinct from LE32's full
// byte reversal).
package n64

import (
	"fmt"

	"github.com/sargunv/romcore/internal/byteorder"
	"github.com/sargunv/romcore/internal/stream"
	"github.com/sargunv/romcore/internal/util"
	"github.com/sargunv/romcore/lib/core"
)

const (
	headerSize = 0x40

	offClockRate   = 0x04
	offEntryPoint  = 0x08
	offLibultraVer = 0x0C
	offCheckCode   = 0x10
	offTitle       = 0x20
	titleLen       = 20
	offID4         = 0x3B
	offRevision    = 0x3F
)

// ByteOrder identifies which on-disk transform a ROM used.
type ByteOrder int

const (
	OrderZ64 ByteOrder = iota // 80 37 12 40 - native, no transform
	OrderV64                  // 37 80 40 12 - 16-bit pair swap
	OrderSwap2                // 12 40 80 37 - 32-bit word swap (halves exchanged, not byte-reversed)
	OrderLE32                 // 40 12 37 80 - full 32-bit byte reversal
)

func (o ByteOrder) String() string {
	switch o {
	case OrderZ64:
		return "Z64"
	case OrderV64:
		return "V64"
	case OrderSwap2:
		return "swap2"
	case OrderLE32:
		return "LE32"
	default:
		return "unknown"
	}
}

// magicZ64 is the canonical big-endian magic all four orderings are
// permutations of.
var magicZ64 = [4]byte{0x80, 0x37, 0x12, 0x40}

// DetectByteOrder inspects the first 4 bytes and reports the ordering,
// or false if none of the four permutations match.
func DetectByteOrder(first4 []byte) (ByteOrder, bool) {
	if len(first4) < 4 {
		return 0, false
	}
	switch {
	case first4[0] == magicZ64[0] && first4[1] == magicZ64[1] && first4[2] == magicZ64[2] && first4[3] == magicZ64[3]:
		return OrderZ64, true
	case first4[0] == magicZ64[1] && first4[1] == magicZ64[0] && first4[2] == magicZ64[3] && first4[3] == magicZ64[2]:
		return OrderV64, true
	case first4[0] == magicZ64[2] && first4[1] == magicZ64[3] && first4[2] == magicZ64[0] && first4[3] == magicZ64[1]:
		return OrderSwap2, true
	case first4[0] == magicZ64[3] && first4[1] == magicZ64[2] && first4[2] == magicZ64[1] && first4[3] == magicZ64[0]:
		return OrderLE32, true
	default:
		return 0, false
	}
}

// ToZ64 transforms a header buffer from the given ordering to canonical
// big-endian Z64 order, in place.
func ToZ64(header []byte, order ByteOrder) {
	switch order {
	case OrderV64:
		byteorder.Swap16(header)
	case OrderSwap2:
		byteorder.SwapWords32(header)
	case OrderLE32:
		byteorder.Swap32(header)
	}
}

// Info is the decoded N64 header.
type Info struct {
	ByteOrder       ByteOrder
	ClockRate       uint32
	EntryPoint      uint32
	LibultraVersion uint32
	CheckCode       uint64
	Title           string
	ID4             string
	Revision        uint8
	OSVersion       string // "OS{a}.{b}{c}" when decodable
	IsPAL           bool
	Region          core.Region
}

// IsSupported implements the header-parser phase of detect-and-dispatch
// (spec §4.1): returns true (and the detected order) if the first 4
// bytes look like one of the four N64 magics.
func IsSupported(header []byte) (ByteOrder, bool) {
	if len(header) < 4 {
		return 0, false
	}
	return DetectByteOrder(header[:4])
}

// Parse decodes an N64 ROM header from r.
func Parse(r stream.Reader) (*Info, error) {
	size := r.Size()
	if size < headerSize {
		return nil, core.NewError(core.InvalidFormat, "n64.Parse", fmt.Errorf("file too small: %d bytes", size))
	}
	raw := make([]byte, headerSize)
	if err := stream.ReadFull(r, 0, raw); err != nil {
		return nil, core.NewError(core.IOError, "n64.Parse", err)
	}
	order, ok := DetectByteOrder(raw[:4])
	if !ok {
		return nil, core.NewError(core.NotSupported, "n64.Parse", fmt.Errorf("unrecognized byte order"))
	}
	ToZ64(raw, order)

	clockRate := byteorder.BE32(raw, offClockRate) & 0x0FFFFFFF
	entryPoint := byteorder.BE32(raw, offEntryPoint)
	libultra := byteorder.BE32(raw, offLibultraVer)
	checkCode := byteorder.BE64(raw, offCheckCode)
	title := util.DecodeText(raw[offTitle:offTitle+titleLen], util.EncodingShiftJIS)
	id4 := util.ExtractASCII(raw[offID4 : offID4+4])

	info := &Info{
		ByteOrder:       order,
		ClockRate:       clockRate,
		EntryPoint:      entryPoint,
		LibultraVersion: libultra,
		CheckCode:       checkCode,
		Title:           title,
		ID4:             id4,
		Revision:        raw[offRevision],
	}
	if len(id4) == 4 {
		info.IsPAL = id4[3] == 'P'
		info.Region = core.RegionFromID4Byte(id4[3])
	}
	info.OSVersion = decodeOSVersion(libultra)
	return info, nil
}

// decodeOSVersion formats the 4-byte libultra field as "OS{a}.{b}{c}"
// when bytes 0-1 are zero and byte 3 is an ASCII letter, per spec.
func decodeOSVersion(libultra uint32) string {
	b0 := byte(libultra >> 24)
	b1 := byte(libultra >> 16)
	b2 := byte(libultra >> 8)
	b3 := byte(libultra)
	if b0 != 0 || b1 != 0 {
		return ""
	}
	if b3 < 'A' || b3 > 'Z' {
		return ""
	}
	return fmt.Sprintf("OS%d.%d%c", b2>>4, b2&0xF, b3)
}

// BuildRecord assembles the spec §3 RomDataRecord for a parsed header.
func BuildRecord(info *Info) *core.RomDataRecord {
	rec := core.NewRomDataRecord("application/x-n64-rom", core.FileTypeROMImage)
	rec.IsValid = true
	f := rec.Fields
	f.AddString("Title", info.Title, core.FlagTrimEnd)
	f.AddString("Game ID", info.ID4, 0)
	f.AddNumeric("Revision", uint64(info.Revision), 10, 0)
	f.AddNumeric("Entry Point", uint64(info.EntryPoint), 16, 8)
	f.AddNumeric("Clock Rate", uint64(info.ClockRate), 10, 0)
	f.AddNumeric("Check Code", info.CheckCode, 16, 16)
	if info.OSVersion != "" {
		f.AddString("OS Version", info.OSVersion, 0)
	}
	f.AddString("Byte Order", info.ByteOrder.String(), 0)

	rec.Metadata.AddString(core.MetaTitle, info.Title)
	rec.Metadata.AddString(core.MetaGameID, info.ID4)
	if info.OSVersion != "" {
		rec.Metadata.AddString(core.MetaOSVersion, info.OSVersion)
	}
	return rec
}

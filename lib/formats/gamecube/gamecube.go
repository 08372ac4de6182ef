// Package gamecube parses Nintendo GameCube memory card save files:
// .GCI (single-file dumps with the full 64-byte directory entry and
// big-endian fields), .GCS (GameShark/Action Replay dumps, also
// big-endian but with a possibly-unreliable block-count field), and
// .SAV (DataEL/MaxDrive dumps, with every 16-bit field's two bytes
// exchanged on disk relative to GCI/GCS). Grounded in original_source/src/
// libromdata/Console/GameCubeSave.cpp; no teacher code covered this
// format (gcn_card.h itself is not in the reference pack, so the
// card_direntry layout below is reconstructed from the parsing and
// byteswap code in GameCubeSave.cpp, which names every field and
// offset it touches).
package gamecube

import (
	"fmt"

	"github.com/sargunv/romcore/internal/byteorder"
	"github.com/sargunv/romcore/internal/stream"
	"github.com/sargunv/romcore/internal/util"
	"github.com/sargunv/romcore/lib/core"
	rcimage "github.com/sargunv/romcore/lib/image"
)

const (
	direntrySize = 64
	bannerW      = 96
	bannerH      = 32
	iconW        = 32
	iconH        = 32
	maxIcons     = 8

	bannerNone = 0
	bannerCI   = 1
	bannerRGB  = 2
	bannerMask = 0x03

	iconNone     = 0
	iconCIShared = 1
	iconRGB      = 2
	iconCIUnique = 3
	iconMask     = 0x03
	speedEnd     = 0
	speedMask    = 0x03

	// GC_UNIX_TIME_DIFF: seconds between 2000-01-01 and the Unix epoch.
	gcUnixTimeDiff = 946684800

	permGlobal = 0x04
	permNoMove = 0x08
	permNoCopy = 0x10
	permPublic = 0x20
)

// SaveType distinguishes the three on-disk byte-order/layout variants.
type SaveType int

const (
	SaveTypeGCI SaveType = iota
	SaveTypeGCS
	SaveTypeSAV
)

func (t SaveType) String() string {
	switch t {
	case SaveTypeGCI:
		return "GCI"
	case SaveTypeGCS:
		return "GCS"
	case SaveTypeSAV:
		return "SAV"
	default:
		return "Unknown"
	}
}

// DirEntry is the decoded 64-byte card_direntry, already normalized to
// host byte order regardless of on-disk SaveType.
type DirEntry struct {
	ID6          string
	GameCode     string
	Company      string
	BannerFormat byte
	Filename     string
	LastModified uint32 // seconds since 2000-01-01
	IconAddr     uint32
	IconFormat   uint16
	IconSpeed    uint16
	Permission   byte
	CopyTimes    byte
	Block        uint16
	Length       uint16
	CommentAddr  uint32
}

// Info is the decoded save file.
type Info struct {
	SaveType   SaveType
	DataOffset int64 // offset of the data area (after any GCS/SAV outer header)
	DirEntry   DirEntry
}

// sav16 recovers a 16-bit field from a SAV-format direntry: the field's
// two bytes were exchanged on disk, so a plain little-endian read of
// the swapped bytes reconstructs the original big-endian value.
func sav16(buf []byte, off int) uint16 {
	return byteorder.LE16(buf, off)
}

// sav32 recovers a 32-bit field from a SAV-format direntry: each
// 16-bit half had its two bytes exchanged independently, so each half
// is recovered with sav16 and then reassembled in its original
// (most-significant-half-first) order.
func sav32(buf []byte, off int) uint32 {
	return uint32(sav16(buf, off))<<16 | uint32(sav16(buf, off+2))
}

// IsSupported validates a 64-byte card_direntry buffer already read at
// the correct offset for the given SaveType (spec §4.1): ID6
// alphanumeric, padding bytes correct, block count consistent with
// dataSize (GCS only requires a non-zero count), and icon/comment
// addresses in range.
func IsSupported(buf []byte, dataSize uint32, saveType SaveType) bool {
	if len(buf) < direntrySize {
		return false
	}
	for i := 0; i < 6; i++ {
		c := buf[i]
		if !((c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')) {
			return false
		}
	}
	if saveType == SaveTypeSAV {
		if buf[0x07] != 0xFF {
			return false
		}
	} else {
		if buf[0x06] != 0xFF {
			return false
		}
	}
	if buf[0x3A] != 0xFF || buf[0x3B] != 0xFF {
		return false
	}

	var length uint32
	var iconAddr, commentAddr uint32
	switch saveType {
	case SaveTypeGCS:
		length = uint32(byteorder.BE16(buf, 0x38))
		if length == 0 {
			return false
		}
		iconAddr = byteorder.BE32(buf, 0x2C)
		commentAddr = byteorder.BE32(buf, 0x3C)
	case SaveTypeSAV:
		length = uint32(sav16(buf, 0x38))
		if length*8192 != dataSize {
			return false
		}
		iconAddr = sav32(buf, 0x2C)
		commentAddr = sav32(buf, 0x3C)
	default: // GCI
		length = uint32(byteorder.BE16(buf, 0x38))
		if length*8192 != dataSize {
			return false
		}
		iconAddr = byteorder.BE32(buf, 0x2C)
		commentAddr = byteorder.BE32(buf, 0x3C)
	}
	if (iconAddr >= dataSize && iconAddr != 0xFFFFFFFF) ||
		(commentAddr >= dataSize && commentAddr != 0xFFFFFFFF) {
		return false
	}
	return true
}

// Parse decodes a save file, given its detected SaveType and the
// absolute file offset of its 64-byte directory entry (0 for plain
// GCI; a small fixed value for the other containers when a host wraps
// a raw GCS/SAV payload).
func Parse(r stream.Reader, saveType SaveType, direntryOffset int64) (*Info, error) {
	size := r.Size()
	if size < direntryOffset+direntrySize {
		return nil, core.NewError(core.InvalidFormat, "gamecube.Parse", fmt.Errorf("file too small"))
	}
	buf := make([]byte, direntrySize)
	if err := stream.ReadFull(r, direntryOffset, buf); err != nil {
		return nil, core.NewError(core.IOError, "gamecube.Parse", err)
	}
	dataSize := uint32(size - direntryOffset - direntrySize)
	if !IsSupported(buf, dataSize, saveType) {
		return nil, core.NewError(core.NotSupported, "gamecube.Parse", fmt.Errorf("invalid directory entry"))
	}

	var d DirEntry
	id6 := make([]byte, 6)
	copy(id6, buf[0:6])
	for i, c := range id6 {
		if c < 0x20 || c > 0x7E {
			id6[i] = '_'
		}
	}
	d.ID6 = string(id6)
	d.GameCode = d.ID6[:4]
	d.Company = d.ID6[4:6]
	if saveType == SaveTypeSAV {
		d.BannerFormat = buf[0x06]
	} else {
		d.BannerFormat = buf[0x07]
	}
	d.Filename = util.DecodeText(buf[0x08:0x28], util.EncodingCP1252)

	switch saveType {
	case SaveTypeSAV:
		d.LastModified = sav32(buf, 0x28)
		d.IconAddr = sav32(buf, 0x2C)
		d.IconFormat = sav16(buf, 0x30)
		d.IconSpeed = sav16(buf, 0x32)
		d.Permission = buf[0x35]
		d.CopyTimes = buf[0x34]
		d.Block = sav16(buf, 0x36)
		d.Length = sav16(buf, 0x38)
		d.CommentAddr = sav32(buf, 0x3C)
	default: // GCI, GCS
		d.LastModified = byteorder.BE32(buf, 0x28)
		d.IconAddr = byteorder.BE32(buf, 0x2C)
		d.IconFormat = byteorder.BE16(buf, 0x30)
		d.IconSpeed = byteorder.BE16(buf, 0x32)
		d.Permission = buf[0x34]
		d.CopyTimes = buf[0x35]
		d.Block = byteorder.BE16(buf, 0x36)
		d.Length = byteorder.BE16(buf, 0x38)
		d.CommentAddr = byteorder.BE32(buf, 0x3C)
	}

	return &Info{
		SaveType:   saveType,
		DataOffset: direntryOffset + direntrySize,
		DirEntry:   d,
	}, nil
}

// bannerPreludeSize returns the byte length of the banner preceding the
// icon data, per direntry.BannerFormat.
func bannerPreludeSize(bannerFmt byte) int {
	switch bannerFmt & bannerMask {
	case bannerCI:
		return bannerW*bannerH + 256*2
	case bannerRGB:
		return bannerW * bannerH * 2
	default:
		return 0
	}
}

// DecodeBanner decodes the fixed banner image, if any.
func DecodeBanner(r stream.Reader, info *Info) (*core.DecodedImage, error) {
	fmtBits := info.DirEntry.BannerFormat & bannerMask
	if fmtBits == bannerNone {
		return nil, nil
	}
	addr := int64(info.DataOffset) + int64(info.DirEntry.IconAddr)
	switch fmtBits {
	case bannerRGB:
		need := bannerW * bannerH * 2
		buf := make([]byte, need)
		if err := stream.ReadFull(r, addr, buf); err != nil {
			return nil, err
		}
		return rcimage.DecodeRGB5A3(bannerW, bannerH, buf)
	case bannerCI:
		need := bannerW*bannerH + 256*2
		buf := make([]byte, need)
		if err := stream.ReadFull(r, addr, buf); err != nil {
			return nil, err
		}
		pal, err := rcimage.DecodeRGB5A3Palette(buf[bannerW*bannerH:])
		if err != nil {
			return nil, err
		}
		return rcimage.DecodeGameCubeCI8Tiled(bannerW, bannerH, buf[:bannerW*bannerH], pal)
	default:
		return nil, nil
	}
}

// DecodeIcon decodes the first animated-icon frame following the
// banner.
func DecodeIcon(r stream.Reader, info *Info) (*core.DecodedImage, error) {
	if info.DirEntry.IconAddr == 0xFFFFFFFF {
		return nil, nil
	}
	addr := int64(info.DataOffset) + int64(info.DirEntry.IconAddr) + int64(bannerPreludeSize(info.DirEntry.BannerFormat))

	iconFmt := info.DirEntry.IconFormat
	iconSpeed := info.DirEntry.IconSpeed
	if (iconSpeed & speedMask) == speedEnd {
		return nil, nil
	}
	switch iconFmt & iconMask {
	case iconRGB:
		need := iconW * iconH * 2
		buf := make([]byte, need)
		if err := stream.ReadFull(r, addr, buf); err != nil {
			return nil, err
		}
		return rcimage.DecodeRGB5A3(iconW, iconH, buf)
	case iconCIUnique:
		need := iconW*iconH + 256*2
		buf := make([]byte, need)
		if err := stream.ReadFull(r, addr, buf); err != nil {
			return nil, err
		}
		pal, err := rcimage.DecodeRGB5A3Palette(buf[iconW*iconH:])
		if err != nil {
			return nil, err
		}
		return rcimage.DecodeGameCubeCI8Tiled(iconW, iconH, buf[:iconW*iconH], pal)
	case iconCIShared:
		// Shared palette sits after every icon frame; decoding only
		// the first frame's pixels still requires walking the frame
		// table to find where the palette begins.
		total := 0
		fmtWalk, speedWalk := iconFmt, iconSpeed
		for i := 0; i < maxIcons; i, fmtWalk, speedWalk = i+1, fmtWalk>>2, speedWalk>>2 {
			if speedWalk&speedMask == speedEnd {
				break
			}
			switch fmtWalk & iconMask {
			case iconRGB:
				total += iconW * iconH * 2
			case iconCIUnique:
				total += iconW*iconH + 256*2
			case iconCIShared:
				total += iconW * iconH
			}
		}
		buf := make([]byte, total+256*2)
		if err := stream.ReadFull(r, addr, buf); err != nil {
			return nil, err
		}
		pal, err := rcimage.DecodeRGB5A3Palette(buf[total : total+256*2])
		if err != nil {
			return nil, err
		}
		return rcimage.DecodeGameCubeCI8Tiled(iconW, iconH, buf[:iconW*iconH], pal)
	default:
		return nil, nil
	}
}

// isShiftJISRegion mirrors the source's id6[3]-based heuristic: most
// Western region letters mean the comment fields are CP1252; anything
// else (principally Japan) is Shift-JIS.
func isShiftJISRegion(b byte) bool {
	switch b {
	case 'E', 'P', 'X', 'Y', 'L', 'M', 'D', 'F', 'H', 'I', 'R', 'S', 'U':
		return false
	default:
		return true
	}
}

// DecodeComment reads the two 32-byte comment lines (description,
// filename) at commentaddr.
func DecodeComment(r stream.Reader, info *Info) (description, file string, err error) {
	if info.DirEntry.CommentAddr == 0xFFFFFFFF {
		return "", "", nil
	}
	addr := int64(info.DataOffset) + int64(info.DirEntry.CommentAddr)
	buf := make([]byte, 64)
	if err := stream.ReadFull(r, addr, buf); err != nil {
		return "", "", err
	}
	enc := util.EncodingCP1252
	if len(info.DirEntry.ID6) == 6 && isShiftJISRegion(info.DirEntry.ID6[3]) {
		enc = util.EncodingShiftJIS
	}
	description = util.DecodeText(buf[0:32], enc)
	file = util.DecodeText(buf[32:64], enc)
	return description, file, nil
}

// BuildRecord assembles the spec §3 RomDataRecord for a parsed save,
// decoding its banner/icon/comment as available.
func BuildRecord(r stream.Reader, info *Info) *core.RomDataRecord {
	rec := core.NewRomDataRecord("application/x-gamecube-save", core.FileTypeSaveFile)
	rec.IsValid = true
	f := rec.Fields

	f.AddString("Game ID", info.DirEntry.ID6, 0)
	f.AddString("Filename", info.DirEntry.Filename, core.FlagTrimEnd)
	f.AddDateTime("Last Modified", int64(info.DirEntry.LastModified)+gcUnixTimeDiff, 0)

	mode := ""
	if info.DirEntry.Permission&permGlobal != 0 {
		mode += "G"
	} else {
		mode += "-"
	}
	if info.DirEntry.Permission&permNoMove != 0 {
		mode += "M"
	} else {
		mode += "-"
	}
	if info.DirEntry.Permission&permNoCopy != 0 {
		mode += "C"
	} else {
		mode += "-"
	}
	if info.DirEntry.Permission&permPublic != 0 {
		mode += "P"
	} else {
		mode += "-"
	}
	f.AddString("Mode", mode, core.FlagMonospace)
	f.AddNumeric("Copy Count", uint64(info.DirEntry.CopyTimes), 10, 0)
	f.AddNumeric("Blocks", uint64(info.DirEntry.Length), 10, 0)

	if desc, _, err := DecodeComment(r, info); err == nil && desc != "" {
		f.AddString("Description", desc, core.FlagTrimEnd)
		rec.Metadata.AddString(core.MetaTitle, desc)
	}
	rec.Metadata.AddString(core.MetaGameID, info.DirEntry.ID6)
	rec.Metadata.AddTimestamp(core.MetaCreationDate, int64(info.DirEntry.LastModified)+gcUnixTimeDiff)

	if icon, err := DecodeIcon(r, info); err == nil && icon != nil {
		rec.SetImage(core.ImageIcon, icon)
		// Banner-sized source art, small icon target: nearest-neighbor
		// avoids blurring the blocky CI8/RGB5A3 source (original_source
		// GameCubeSave.cpp's imgpf()).
		rec.SetImagePixelFlags(core.ImageIcon, core.ImgPfRescaleNearest)
	}
	if banner, err := DecodeBanner(r, info); err == nil && banner != nil {
		rec.SetImage(core.ImageBanner, banner)
	}
	return rec
}

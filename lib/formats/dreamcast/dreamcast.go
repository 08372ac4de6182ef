// Package dreamcast parses Sega Dreamcast VMU save files: .VMS (icon +
// metadata header), .VMI (directory-entry sidecar), .DCI (byte-swapped
// combination of a directory entry and VMS header), and the ICONDATA_VMS
// variant used for VMU-resident icon files. Grounded in
// original_source/src/libromdata/{dc_structs.h,Console/DreamcastSave.cpp};
// no teacher code covered this format.
package dreamcast

import (
	"fmt"

	"github.com/sargunv/romcore/internal/byteorder"
	"github.com/sargunv/romcore/internal/stream"
	"github.com/sargunv/romcore/internal/util"
	"github.com/sargunv/romcore/lib/core"
	rcimage "github.com/sargunv/romcore/lib/image"
)

const (
	vmsHeaderSize   = 96
	vmiHeaderSize   = 108
	dirEntSize      = 32
	iconW           = 32
	iconH           = 32
	eyecatchW       = 72
	eyecatchH       = 56
	iconDataSize    = (iconW * iconH) / 2 // 4bpp
	iconPaletteSize = 16 * 2
)

// EyecatchType selects the banner pixel format following the icon data.
type EyecatchType int

const (
	EyecatchNone     EyecatchType = 0
	EyecatchARGB4444 EyecatchType = 1
	EyecatchCI8      EyecatchType = 2
	EyecatchCI4      EyecatchType = 3
)

// Kind identifies which container variant was parsed.
type Kind int

const (
	KindVMS Kind = iota
	KindVMI
	KindDCI
	KindICONDATA
)

// VMSHeader is the decoded .vms save-file header.
type VMSHeader struct {
	VMSDescription string
	DCDescription  string
	Application    string
	IconCount      int
	IconAnimSpeed  int
	EyecatchType   EyecatchType
	CRC            uint16
	DataSize       uint32
}

// VMIHeader is the decoded .vmi sidecar header.
type VMIHeader struct {
	Description     string
	Copyright        string
	CreatedAt        int64
	VMIVersion       uint16
	FileNumber       uint16
	VMSResourceName  string
	VMSFilename      string
	IsCopyProtected  bool
	IsGame           bool
	Filesize         uint32
}

// Info is the combined decode result: a VMS header is present whenever
// the container carries one (VMS, DCI, ICONDATA); a VMI header is
// present for .vmi sidecars.
type Info struct {
	Kind  Kind
	VMS   *VMSHeader
	VMI   *VMIHeader
	vmsBody []byte // raw bytes following the VMS header, for icon decode
}

// IsSupported has no universal magic; dispatch relies on file extension
// (spec §4.1 allows this for extension-gated containers) combined with a
// minimum file size for that container. No header field is validated,
// here or in Parse.
func IsSupported(size int64, ext string) (Kind, bool) {
	switch ext {
	case ".vms":
		if size >= vmsHeaderSize {
			return KindVMS, true
		}
	case ".vmi":
		if size >= vmiHeaderSize {
			return KindVMI, true
		}
	case ".dci":
		if size >= dirEntSize+vmsHeaderSize {
			return KindDCI, true
		}
	}
	return 0, false
}

// PairVMSVMI merges a standalone VMS parse and a standalone VMI parse
// into the combined record the detect loop's paired-file opener
// produces (spec §4.2.1): the VMI supplies the directory entry fields,
// the VMS supplies the icon/eyecatch payload.
func PairVMSVMI(vms, vmi *Info) *Info {
	return &Info{Kind: KindVMS, VMS: vms.VMS, VMI: vmi.VMI, vmsBody: vms.vmsBody}
}

// Parse decodes a VMS/VMI/DCI file from r given its detected kind.
func Parse(r stream.Reader, kind Kind) (*Info, error) {
	switch kind {
	case KindVMS:
		return parseVMS(r)
	case KindVMI:
		return parseVMI(r)
	case KindDCI:
		return parseDCI(r)
	default:
		return nil, core.NewError(core.NotSupported, "dreamcast.Parse", fmt.Errorf("unknown kind"))
	}
}

func parseVMS(r stream.Reader) (*Info, error) {
	size := r.Size()
	if size < vmsHeaderSize {
		return nil, core.NewError(core.InvalidFormat, "dreamcast.parseVMS", fmt.Errorf("file too small"))
	}
	raw, err := stream.ReadAll(r)
	if err != nil {
		return nil, core.NewError(core.IOError, "dreamcast.parseVMS", err)
	}

	h := decodeVMSHeader(raw[:vmsHeaderSize])
	return &Info{Kind: KindVMS, VMS: h, vmsBody: raw}, nil
}

// ParseICONDATA decodes a .vms file known (by the host, since nothing
// in the bytes distinguishes it) to be an ICONDATA_VMS icon resource:
// the header is repurposed as {description[16], mono_icon_addr u32,
// color_icon_addr u32} and the monochrome icon sits at mono_icon_addr.
func ParseICONDATA(r stream.Reader) (*Info, error) {
	raw, err := stream.ReadAll(r)
	if err != nil {
		return nil, core.NewError(core.IOError, "dreamcast.ParseICONDATA", err)
	}
	if len(raw) < 24 {
		return nil, core.NewError(core.InvalidFormat, "dreamcast.ParseICONDATA", fmt.Errorf("file too small"))
	}
	return &Info{Kind: KindICONDATA, vmsBody: raw}, nil
}

// DecodeICONDATAMonoIcon decodes the monochrome 32x32 1bpp icon at the
// address recorded in an ICONDATA_VMS header.
func DecodeICONDATAMonoIcon(info *Info) (*core.DecodedImage, error) {
	if info.Kind != KindICONDATA || len(info.vmsBody) < 24 {
		return nil, fmt.Errorf("dreamcast: not an ICONDATA_VMS resource")
	}
	addr := int(byteorder.LE32(info.vmsBody, 16))
	need := (iconW * iconH) / 8
	if addr < 0 || addr+need > len(info.vmsBody) {
		return nil, fmt.Errorf("dreamcast: mono icon address out of range")
	}
	return rcimage.DecodeMono1bpp(iconW, iconH, info.vmsBody[addr:addr+need], 0xFF000000, 0xFFFFFFFF)
}

func decodeVMSHeader(h []byte) *VMSHeader {
	return &VMSHeader{
		VMSDescription: util.DecodeText(h[0:16], util.EncodingShiftJIS),
		DCDescription:  util.DecodeText(h[16:48], util.EncodingShiftJIS),
		Application:    util.DecodeText(h[48:64], util.EncodingShiftJIS),
		IconCount:      int(byteorder.LE16(h, 64)),
		IconAnimSpeed:  int(byteorder.LE16(h, 66)),
		EyecatchType:   EyecatchType(byteorder.LE16(h, 68)),
		CRC:            byteorder.LE16(h, 70),
		DataSize:       byteorder.LE32(h, 72),
	}
}

func parseVMI(r stream.Reader) (*Info, error) {
	size := r.Size()
	if size < vmiHeaderSize {
		return nil, core.NewError(core.InvalidFormat, "dreamcast.parseVMI", fmt.Errorf("file too small"))
	}
	h := make([]byte, vmiHeaderSize)
	if err := stream.ReadFull(r, 0, h); err != nil {
		return nil, core.NewError(core.IOError, "dreamcast.parseVMI", err)
	}

	mode := byteorder.LE16(h, 98)
	vmi := &VMIHeader{
		Description:     util.DecodeText(h[4:36], util.EncodingShiftJIS),
		Copyright:       util.DecodeText(h[36:68], util.EncodingShiftJIS),
		VMIVersion:      byteorder.LE16(h, 70),
		FileNumber:      byteorder.LE16(h, 72),
		VMSResourceName: util.ExtractASCII(h[74:82]),
		VMSFilename:     util.ExtractASCII(h[82:94]),
		IsCopyProtected: mode&0x01 != 0,
		IsGame:          mode&0x02 != 0,
		Filesize:        byteorder.LE32(h, 104),
	}
	vmi.CreatedAt = decodeVMITimestamp(h[68:76])
	return &Info{Kind: KindVMI, VMI: vmi}, nil
}

// decodeVMITimestamp parses the 8-byte binary (not BCD) timestamp in b:
// year(u16), mon, mday, hour, min, sec, wday. wday is not read.
func decodeVMITimestamp(b []byte) int64 {
	if len(b) < 7 {
		return -1
	}
	year := int(byteorder.LE16(b, 0))
	mon := int(b[2])
	mday := int(b[3])
	hour := int(b[4])
	min := int(b[5])
	sec := int(b[6])
	if mon < 1 || mon > 12 || mday < 1 || mday > 31 {
		return -1
	}
	return civilToUnix(year, mon, mday) + int64(hour)*3600 + int64(min)*60 + int64(sec)
}

// parseDCI decodes a .dci file: a 32-byte directory entry (itself
// carrying a BCD creation timestamp) followed by a VMS header and
// icon/eyecatch payload stored with every 32-bit word byteswapped.
func parseDCI(r stream.Reader) (*Info, error) {
	size := r.Size()
	if size < dirEntSize+vmsHeaderSize {
		return nil, core.NewError(core.InvalidFormat, "dreamcast.parseDCI", fmt.Errorf("file too small"))
	}
	raw, err := stream.ReadAll(r)
	if err != nil {
		return nil, core.NewError(core.IOError, "dreamcast.parseDCI", err)
	}

	body := append([]byte(nil), raw[dirEntSize:]...)
	byteorder.Swap32(body)

	var vms *VMSHeader
	if len(body) >= vmsHeaderSize {
		vms = decodeVMSHeader(body[:vmsHeaderSize])
	}
	return &Info{Kind: KindDCI, VMS: vms, vmsBody: body}, nil
}

func civilToUnix(y, m, d int) int64 {
	y -= boolToInt(m <= 2)
	var era int64
	if y >= 0 {
		era = int64(y) / 400
	} else {
		era = (int64(y) - 399) / 400
	}
	yoe := int64(y) - era*400
	var mp int64
	if m > 2 {
		mp = int64(m) - 3
	} else {
		mp = int64(m) + 9
	}
	doy := (153*mp+2)/5 + int64(d) - 1
	doe := yoe*365 + yoe/4 - yoe/100 + doy
	days := era*146097 + doe - 719468
	return days * 86400
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// DecodeIcon decodes the first icon frame and, when an eyecatch is
// present, the banner. The icon palette (16 ARGB4444 entries) sits
// immediately after the header; icon frames and the eyecatch follow.
func DecodeIcon(info *Info) (icon *core.DecodedImage, banner *core.DecodedImage, err error) {
	if info.VMS == nil || len(info.vmsBody) < vmsHeaderSize {
		return nil, nil, nil
	}
	body := info.vmsBody[vmsHeaderSize:]
	if len(body) < iconPaletteSize+iconDataSize {
		return nil, nil, fmt.Errorf("dreamcast: icon data truncated")
	}
	palette, err := rcimage.DecodeARGB4444Palette(body[:iconPaletteSize])
	if err != nil {
		return nil, nil, err
	}
	icon, err = rcimage.DecodePaletted4bpp(iconW, iconH, body[iconPaletteSize:iconPaletteSize+iconDataSize], palette)
	if err != nil {
		return nil, nil, err
	}

	eyecatchOff := iconPaletteSize + iconDataSize*info.VMS.IconCount
	if info.VMS.IconCount < 1 {
		eyecatchOff = iconPaletteSize + iconDataSize
	}
	if eyecatchOff >= len(body) {
		return icon, nil, nil
	}
	switch info.VMS.EyecatchType {
	case EyecatchARGB4444:
		need := eyecatchW * eyecatchH * 2
		if len(body)-eyecatchOff >= need {
			banner, _ = rcimage.DecodeARGB4444(eyecatchW, eyecatchH, body[eyecatchOff:eyecatchOff+need])
		}
	case EyecatchCI8:
		palSize := 256 * 2
		dataSize := eyecatchW * eyecatchH
		if len(body)-eyecatchOff >= palSize+dataSize {
			pal, perr := rcimage.DecodeARGB4444PaletteN(body[eyecatchOff:eyecatchOff+palSize], 256)
			if perr == nil {
				banner, _ = rcimage.DecodePaletted8bpp(eyecatchW, eyecatchH, body[eyecatchOff+palSize:eyecatchOff+palSize+dataSize], pal)
			}
		}
	case EyecatchCI4:
		palSize := 16 * 2
		dataSize := eyecatchW * eyecatchH / 2
		if len(body)-eyecatchOff >= palSize+dataSize {
			pal, perr := rcimage.DecodeARGB4444Palette(body[eyecatchOff : eyecatchOff+palSize])
			if perr == nil {
				banner, _ = rcimage.DecodePaletted4bpp(eyecatchW, eyecatchH, body[eyecatchOff+palSize:eyecatchOff+palSize+dataSize], pal)
			}
		}
	}
	return icon, banner, nil
}

// BuildRecord assembles the spec §3 RomDataRecord for a parsed VMS/DCI
// save file.
func BuildRecord(info *Info) *core.RomDataRecord {
	rec := core.NewRomDataRecord("application/x-dreamcast-vms", core.FileTypeSaveFile)
	rec.IsValid = true
	f := rec.Fields

	if info.VMS != nil {
		f.AddString("Description", info.VMS.VMSDescription, core.FlagTrimEnd)
		f.AddString("Publisher", info.VMS.DCDescription, core.FlagTrimEnd)
		f.AddString("Application", info.VMS.Application, core.FlagTrimEnd)
		f.AddNumeric("Icon Count", uint64(info.VMS.IconCount), 10, 0)
		rec.Metadata.AddString(core.MetaTitle, info.VMS.DCDescription)
		rec.Metadata.AddString(core.MetaPublisher, info.VMS.Application)

		if icon, banner, err := DecodeIcon(info); err == nil {
			if icon != nil {
				rec.SetImage(core.ImageIcon, icon)
			}
			if banner != nil {
				rec.SetImage(core.ImageBanner, banner)
			}
		}
	}
	if info.VMI != nil {
		f.AddString("Description", info.VMI.Description, core.FlagTrimEnd)
		f.AddString("Copyright", info.VMI.Copyright, core.FlagTrimEnd)
		f.AddString("VMS Filename", info.VMI.VMSFilename, 0)
		if info.VMI.CreatedAt >= 0 {
			f.AddDateTime("Creation Time", info.VMI.CreatedAt, 0)
			rec.Metadata.AddTimestamp(core.MetaCreationDate, info.VMI.CreatedAt)
		}
		if info.VMI.IsCopyProtected {
			f.AddString("Copy Protection", "protected", core.FlagWarning)
		}
	}
	return rec
}

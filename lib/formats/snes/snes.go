// Package snes parses Super Nintendo and BS-X (Satellaview) ROM headers.
// Unlike the other cartridge formats, SNES carries no fixed magic number:
// detection is a heuristic probe of four candidate header addresses,
// picking whichever one validates as a plausible SNES or BS-X header.
// Grounded in original_source/src/libromdata/Console/{SNES.cpp,
// snes_structs.h}; no teacher code covered this format, so the package
// is new but follows the sibling format packages' shape (Info/Parse/
// BuildRecord) for consistency.
package snes

import (
	"fmt"
	"strings"

	"github.com/sargunv/romcore/internal/byteorder"
	"github.com/sargunv/romcore/internal/stream"
	"github.com/sargunv/romcore/internal/util"
	"github.com/sargunv/romcore/lib/core"
)

const headerLen = 0x30 // 0x7FB0..0x7FDF (extended header + standard header)

// Nintendo Power cartridge directory (spec §4.2.5). original_source's
// SNES_NP_DirEntry is 0x2000 bytes (it carries an unused 384-byte title
// bitmap); the spec explicitly calls for 512-byte entries, so the
// bitmap is dropped and the multicassette footer moves to the tail of
// the smaller record -- every field the directory actually surfaces
// keeps its original offset.
const (
	npDirOffset           = 0x60000
	npEntrySize           = 512
	npEntryCount          = 8
	npMulticassetteFooter = "MULTICASSETTE 32"

	npOffDirectoryIndex = 0x00
	npOffGameCode       = 0x07
	npGameCodeLen       = 12
	npOffTitleSJIS      = 0x13
	npTitleSJISLen      = 44
	npOffDate           = npOffTitleSJIS + npTitleSJISLen // 0x3F
	npDateLen           = 10
	npOffTime           = npOffDate + npDateLen
	npTimeLen           = 8
	npOffKioskID        = npOffTime + npTimeLen
	npKioskIDLen        = 8
)

// candidate header probe addresses, non-headered order. The headered
// order (used when a copier header is detected) simply checks the
// +512 offsets first.
var probeAddressesPlain = [4]int64{0x7FB0, 0xFFB0, 0x7FB0 + 512, 0xFFB0 + 512}
var probeAddressesHeadered = [4]int64{0x7FB0 + 512, 0xFFB0 + 512, 0x7FB0, 0xFFB0}

// RomMapping enumerates the recognized rom_mapping byte values.
type RomMapping int

const (
	MappingInvalid RomMapping = iota
	MappingLoROM
	MappingHiROM
	MappingLoROMSDD1
	MappingLoROMSA1
	MappingExHiROM
	MappingLoROMFast
	MappingHiROMFast
	MappingExLoROMFast
	MappingExHiROMFast
	MappingHiROMFastSPC7110
)

func (m RomMapping) String() string {
	switch m {
	case MappingLoROM:
		return "LoROM"
	case MappingHiROM:
		return "HiROM"
	case MappingLoROMSDD1:
		return "LoROM + S-DD1"
	case MappingLoROMSA1:
		return "LoROM + SA-1"
	case MappingExHiROM:
		return "ExHiROM"
	case MappingLoROMFast:
		return "LoROM + FastROM"
	case MappingHiROMFast:
		return "HiROM + FastROM"
	case MappingExLoROMFast:
		return "ExLoROM + FastROM"
	case MappingExHiROMFast:
		return "ExHiROM + FastROM"
	case MappingHiROMFastSPC7110:
		return "HiROM + SPC7110"
	default:
		return "Unknown"
	}
}

// classifyMapping decodes a raw rom_mapping byte, reporting whether it
// targets a HiROM address space.
func classifyMapping(raw byte) (RomMapping, bool, bool) {
	switch raw {
	case 0x20:
		return MappingLoROM, false, false
	case 0x21:
		return MappingHiROM, true, false
	case 0x22:
		return MappingLoROMSDD1, false, false
	case 0x23:
		return MappingLoROMSA1, false, false
	case 0x25:
		return MappingExHiROM, true, true
	case 0x30:
		return MappingLoROMFast, false, false
	case 0x31:
		return MappingHiROMFast, true, false
	case 0x32:
		return MappingExLoROMFast, false, true
	case 0x35:
		return MappingExHiROMFast, true, true
	case 0x3A:
		return MappingHiROMFastSPC7110, true, false
	default:
		return MappingInvalid, false, false
	}
}

// RomKind distinguishes a plain SNES cartridge header from a BS-X
// (Satellaview) one; the two share layout but repurpose several fields.
type RomKind int

const (
	KindSNES RomKind = iota
	KindBSX
)

// Info is the decoded SNES/BS-X header, at whichever address it probed
// valid.
type Info struct {
	Kind          RomKind
	HeaderAddress int64
	Mapping       RomMapping
	IsHiROM       bool

	Title      string
	ID4        string
	RomSizeKB  int
	SRAMSizeKB int
	Region     core.Region
	Version    uint8

	RomType         byte
	OldPublisher    byte
	NewPublisher    string
	ChecksumOK      bool
	HasExtendedHdr  bool

	// BS-X only.
	BSXMonth int
	BSXDay   int

	// NPEntries holds the Nintendo Power cartridge directory rows when
	// the header gates it in (spec §4.2.5); nil otherwise.
	NPEntries []NPDirEntry
}

// NPDirEntry is one used row of the Nintendo Power cartridge directory.
type NPDirEntry struct {
	Index     int
	Title     string
	GameCode  string
	Timestamp int64 // unix seconds, -1 if unparseable
	KioskID   string
}

// hasNintendoPowerDirectory reports whether info's header fields gate in
// the Nintendo Power cartridge directory probe (spec §4.2.5).
func hasNintendoPowerDirectory(info *Info) bool {
	return info.Kind == KindSNES &&
		info.OldPublisher == 0x33 &&
		info.Region == core.RegionJapan &&
		info.NewPublisher == "01" &&
		info.ID4 == "MENU"
}

// ParseNintendoPower reads the 8x512-byte Nintendo Power cartridge
// directory at absolute offset 0x60000 and returns its used rows. Entry
// 0 must end with "MULTICASSETTE 32" to validate; unused slots
// (directory_index == 0xFF) are skipped.
func ParseNintendoPower(r stream.Reader, info *Info) ([]NPDirEntry, bool) {
	if !hasNintendoPowerDirectory(info) {
		return nil, false
	}
	buf := make([]byte, npEntrySize*npEntryCount)
	if err := stream.ReadFull(r, npDirOffset, buf); err != nil {
		return nil, false
	}
	entry0 := buf[:npEntrySize]
	footer := entry0[npEntrySize-len(npMulticassetteFooter):]
	if entry0[npOffDirectoryIndex] != 0 || string(footer) != npMulticassetteFooter {
		return nil, false
	}

	var rows []NPDirEntry
	for i := 0; i < npEntryCount; i++ {
		e := buf[i*npEntrySize : (i+1)*npEntrySize]
		idx := e[npOffDirectoryIndex]
		if idx == 0xFF {
			continue
		}
		date := util.ExtractASCII(e[npOffDate : npOffDate+npDateLen])
		timeStr := util.ExtractASCII(e[npOffTime : npOffTime+npTimeLen])
		rows = append(rows, NPDirEntry{
			Index:     int(idx),
			Title:     util.DecodeText(e[npOffTitleSJIS:npOffTitleSJIS+npTitleSJISLen], util.EncodingShiftJIS),
			GameCode:  util.DecodeText(e[npOffGameCode:npOffGameCode+npGameCodeLen], util.EncodingCP1252),
			Timestamp: parseNPTimestamp(date, timeStr),
			KioskID:   util.ExtractASCII(e[npOffKioskID : npOffKioskID+npKioskIDLen]),
		})
	}
	return rows, true
}

// parseNPTimestamp parses the directory's two ASCII date/time strings
// (date as "MM/DD/YYYY" or "YYYY/MM/DD", time as "HH:MM:SS") into UTC
// Unix seconds, or -1 if either fails to parse.
func parseNPTimestamp(date, timeStr string) int64 {
	date = strings.TrimRight(date, "\x00 ")
	timeStr = strings.TrimRight(timeStr, "\x00 ")

	var mon, day, year int
	n, _ := fmt.Sscanf(date, "%02d/%02d/%04d", &mon, &day, &year)
	if n != 3 {
		n, _ = fmt.Sscanf(date, "%04d/%02d/%02d", &year, &mon, &day)
		if n != 3 {
			return -1
		}
	}
	if mon < 1 || mon > 12 || day < 1 || day > 31 {
		return -1
	}

	var hour, min, sec int
	if n, _ := fmt.Sscanf(timeStr, "%02d:%02d:%02d", &hour, &min, &sec); n != 3 {
		return -1
	}

	return civilToUnix(year, mon, day) + int64(hour)*3600 + int64(min)*60 + int64(sec)
}

// civilToUnix converts a proleptic Gregorian civil date to Unix seconds
// at midnight UTC, via Howard Hinnant's days_from_civil algorithm.
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

func isalnumASCII(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

// isSnesHeaderValid mirrors the source's title/mapping/checksum probe.
func isSnesHeaderValid(h []byte, isHiROMAddr bool) bool {
	title := h[0x10:0x25] // snes.title, 21 bytes, relative to ext header start at 0
	for i, c := range title {
		if c == 0 {
			if i == 0 {
				return false
			}
			break
		}
		if c&0xE0 == 0 {
			return false
		}
	}

	romMappingByte := h[0x25]
	mapping, isHiROM, _ := classifyMapping(romMappingByte)
	if mapping == MappingInvalid || isHiROM != isHiROMAddr {
		return false
	}

	romType := h[0x26]
	switch romType & 0x0F {
	case 0x07, 0x08, 0x0B, 0x0C, 0x0D, 0x0E:
		return false
	}
	enh := romType & 0xF0
	if enh > 0x50 && enh < 0xE0 {
		return false
	}

	oldPublisher := h[0x2A]
	if oldPublisher == 0x33 {
		newPub := h[0x00:0x02]
		pubOK := isalnumASCII(newPub[0]) && isalnumASCII(newPub[1])
		if !pubOK && (newPub[0] != 0 || newPub[1] != 0) {
			return false
		}
		id4 := h[0x02:0x06]
		allZero := id4[0] == 0 && id4[1] == 0 && id4[2] == 0 && id4[3] == 0
		if !allZero {
			for i, c := range id4 {
				if isalnumASCII(c) {
					continue
				}
				if i >= 2 && (c == ' ' || c == 0) {
					continue
				}
				return false
			}
		}
	}

	checksum := uint16(h[0x2E]) | uint16(h[0x2F])<<8
	complement := uint16(h[0x2C]) | uint16(h[0x2D])<<8
	if checksum != complement^0xFFFF {
		if checksum != 0 || complement != 0 {
			return false
		}
	}
	return true
}

// isBsxHeaderValid mirrors isBsxRomHeaderValid.
func isBsxHeaderValid(h []byte, isHiROMAddr bool) bool {
	title0 := h[0x10]
	if title0 == 0 || title0 == ' ' {
		return false
	}
	romMappingByte := h[0x18]
	switch romMappingByte {
	case 0x20, 0x22, 0x23, 0x30:
		if isHiROMAddr {
			return false
		}
	case 0x21, 0x31:
		if !isHiROMAddr {
			return false
		}
	default:
		return false
	}
	switch h[0x1A] {
	case 0x33, 0x00, 0xFF:
	default:
		return false
	}
	return true
}

// detectCopierHeader peeks the first 16 bytes for the handful of copier
// signatures the source checks (SMD interleave header, Game Doctor,
// Super UFO); if found, the +512 probe offsets are tried first.
func detectCopierHeader(first512 []byte) bool {
	if len(first512) < 16 {
		return false
	}
	if first512[0] == 0xAA && first512[1] == 0xBB {
		return true
	}
	if len(first512) >= 15 && string(first512[:15]) == "GAME DOCTOR SF " {
		return true
	}
	if len(first512) >= 16 && string(first512[8:16]) == "SUPERUFO" {
		return true
	}
	return false
}

// Parse probes the four candidate header addresses and decodes
// whichever first validates as a SNES or BS-X header.
func Parse(r stream.Reader) (*Info, error) {
	first512 := make([]byte, 512)
	n, _ := r.ReadAt(first512, 0)
	first512 = first512[:n]
	headered := detectCopierHeader(first512)

	addrs := probeAddressesPlain
	if headered {
		addrs = probeAddressesHeadered
	}

	var found *Info
	for i, addr := range addrs {
		buf := make([]byte, headerLen)
		if err := stream.ReadFull(r, addr, buf); err != nil {
			continue
		}
		isHiROMAddr := i&1 == 1

		if isSnesHeaderValid(buf, isHiROMAddr) {
			found = decodeSNESHeader(buf, addr, isHiROMAddr)
			break
		}
		if isBsxHeaderValid(buf, isHiROMAddr) {
			found = decodeBSXHeader(buf, addr, isHiROMAddr)
			break
		}
	}
	if found == nil {
		return nil, core.NewError(core.NotSupported, "snes.Parse", fmt.Errorf("no valid header at any probe address"))
	}
	if entries, ok := ParseNintendoPower(r, found); ok {
		found.NPEntries = entries
	}
	return found, nil
}

func decodeSNESHeader(h []byte, addr int64, isHiROM bool) *Info {
	mapping, _, _ := classifyMapping(h[0x25])
	info := &Info{
		Kind:          KindSNES,
		HeaderAddress: addr,
		Mapping:       mapping,
		IsHiROM:       isHiROM,
		Title:         util.DecodeText(h[0x10:0x25], util.EncodingCP1252),
		RomType:       h[0x26],
		RomSizeKB:     1 << h[0x27],
		SRAMSizeKB:    1 << h[0x28],
		OldPublisher:  h[0x2A],
		Version:       h[0x2B],
	}
	info.Region = regionFromDestinationCode(h[0x29])

	checksum := uint16(h[0x2E]) | uint16(h[0x2F])<<8
	complement := uint16(h[0x2C]) | uint16(h[0x2D])<<8
	info.ChecksumOK = checksum == complement^0xFFFF

	if info.OldPublisher == 0x33 {
		info.HasExtendedHdr = true
		info.NewPublisher = util.ExtractASCII(h[0x00:0x02])
		info.ID4 = util.ExtractASCII(h[0x02:0x06])
	}
	return info
}

func decodeBSXHeader(h []byte, addr int64, isHiROM bool) *Info {
	var mapping RomMapping
	switch h[0x18] {
	case 0x20:
		mapping = MappingLoROM
	case 0x21:
		mapping = MappingHiROM
	case 0x22:
		mapping = MappingLoROMSDD1
	case 0x23:
		mapping = MappingLoROMSA1
	case 0x30:
		mapping = MappingLoROMFast
	case 0x31:
		mapping = MappingHiROMFast
	}
	info := &Info{
		Kind:          KindBSX,
		HeaderAddress: addr,
		Mapping:       mapping,
		IsHiROM:       isHiROM,
		Title:         util.DecodeText(h[0x10:0x20], util.EncodingShiftJIS),
		OldPublisher:  h[0x1A],
	}
	if h[0x1A] == 0x33 {
		info.HasExtendedHdr = true
		info.NewPublisher = util.ExtractASCII(h[0x00:0x02])
	}
	info.BSXMonth = int(h[0x26])
	info.BSXDay = int(h[0x27])
	return info
}

// regionFromDestinationCode maps the SNES destination_code byte to a
// GameTDB-style Region (spec §6); 0x00 is Japan, everything else is a
// small, mostly-disjoint table of territories.
func regionFromDestinationCode(code byte) core.Region {
	switch code {
	case 0x00:
		return core.RegionJapan
	case 0x01:
		return core.RegionUSA
	case 0x02, 0x03, 0x06, 0x07, 0x08, 0x09, 0x0A:
		return core.RegionEurope
	case 0x0B:
		return core.RegionChina
	case 0x0D:
		return core.RegionKorea
	case 0x0F:
		return core.RegionCanada
	case 0x10:
		return core.RegionBrazil
	case 0x11:
		return core.RegionAustralia
	default:
		return core.RegionUnknown
	}
}

// BuildRecord assembles the spec §3 RomDataRecord for a parsed header.
func BuildRecord(info *Info) *core.RomDataRecord {
	mime := "application/x-snes-rom"
	if info.Kind == KindBSX {
		mime = "application/x-satellaview-rom"
	}
	rec := core.NewRomDataRecord(mime, core.FileTypeROMImage)
	rec.IsValid = true
	f := rec.Fields

	f.AddString("Title", info.Title, core.FlagTrimEnd)
	f.AddString("Mapping", info.Mapping.String(), 0)
	f.AddNumeric("ROM Size", uint64(info.RomSizeKB), 10, 0)
	if info.Kind == KindSNES {
		f.AddNumeric("SRAM Size", uint64(info.SRAMSizeKB), 10, 0)
		f.AddNumeric("Version", uint64(info.Version), 10, 0)
		if info.HasExtendedHdr {
			f.AddString("Game ID", info.ID4, 0)
			f.AddString("Publisher Code", info.NewPublisher, 0)
		}
		if !info.ChecksumOK {
			f.AddString("Checksum", "invalid", core.FlagWarning)
		}
	} else {
		if info.BSXMonth >= 1 && info.BSXMonth <= 12 {
			f.AddString("Broadcast Date", fmt.Sprintf("%02d/%02d", info.BSXMonth, info.BSXDay), 0)
		}
	}

	rec.Metadata.AddString(core.MetaTitle, info.Title)
	if info.ID4 != "" {
		rec.Metadata.AddString(core.MetaGameID, info.ID4)
	}

	if len(info.NPEntries) > 0 {
		f.AddTab("NP")
		headers := []string{"#", "Title", "Game Code", "Timestamp", "Kiosk ID"}
		rows := make([]core.ListRow, 0, len(info.NPEntries))
		for _, e := range info.NPEntries {
			rows = append(rows, core.ListRow{Values: []string{
				fmt.Sprintf("%d", e.Index),
				e.Title,
				e.GameCode,
				fmt.Sprintf("%d", e.Timestamp),
				e.KioskID,
			}})
		}
		f.AddListData("Directory", headers, rows)
	}
	return rec
}

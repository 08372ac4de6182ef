// Package n3ds parses the Nintendo 3DS container family (spec
// §4.2.8/§4.2.9/§4.3): homebrew .3dsx executables, NCSD cartridge
// images and eMMC (NAND) dumps, standalone NCCH partitions, CIA
// installable titles, and the SMDH icon/metadata block every one of
// them can embed. No teacher code covered this console generation;
// grounded throughout in original_source/src/libromdata/{n3ds_structs.h,
// disc/NCCHReader.cpp, disc/CIAReader.cpp} and the keystore wrapper
// already built in internal/keys (spec §4.3/§5/§6).
package n3ds

import (
	"fmt"

	"github.com/sargunv/romcore/internal/stream"
	"github.com/sargunv/romcore/lib/core"
)

// ContainerKind is the outermost container variant detected.
type ContainerKind int

const (
	KindUnknown ContainerKind = iota
	KindThreeDSX
	KindNCSD
	KindNCCH
	KindCIA
)

// IsSupported recognizes a 3DS container from its header window and
// extension (spec §4.2.8):
//
//	3DSX: magic "3DSX" at offset 0.
//	CIA:  extension .cia, header_size == 0x2020, type == 0, version == 0.
//	NCSD: magic "NCSD" at offset 0x100 (its own container header, which
//	      carries a leading 0x100-byte RSA signature before the magic).
//	NCCH: magic "NCCH" at offset 0 (a standalone partition is addressed
//	      starting at its own magic; see ncch.go's header layout).
func IsSupported(header []byte, ext string) (ContainerKind, bool) {
	if len(header) >= 4 && string(header[0:4]) == "3DSX" {
		return KindThreeDSX, true
	}
	if ext == ".cia" && len(header) >= 0x20 {
		if hdr, err := parseCIAHeaderLoose(header); err == nil {
			if hdr.HeaderSize == ciaHeaderSize && hdr.Type == 0 && hdr.Version == 0 {
				return KindCIA, true
			}
		}
	}
	if len(header) >= 0x104 && string(header[0x100:0x104]) == "NCSD" {
		return KindNCSD, true
	}
	if len(header) >= 4 && string(header[0:4]) == "NCCH" {
		return KindNCCH, true
	}
	return KindUnknown, false
}

// parseCIAHeaderLoose decodes just the fixed-field prefix of a CIA
// header without requiring the full 0x2020-byte content-index bitmap
// to be present in a short detection window.
func parseCIAHeaderLoose(h []byte) (*CIAHeader, error) {
	padded := h
	if len(padded) < ciaHeaderSize {
		padded = make([]byte, ciaHeaderSize)
		copy(padded, h)
	}
	return parseCIAHeader(padded)
}

// Info is the aggregate decode result across every container variant.
type Info struct {
	Kind ContainerKind

	ThreeDSX *ThreeDSXInfo
	NCSD     *NCSDInfo
	CIA      *CIAHeader
	TMD      *TMD

	NCCHHeader *NCCHHeader
	ExHeader   *ExHeaderInfo
	SMDH       *SMDHInfo

	reader *NCCHReader
}

// Parse decodes a 3DS container of the given kind from r.
func Parse(r stream.Reader, kind ContainerKind) (*Info, error) {
	switch kind {
	case KindThreeDSX:
		return parseThreeDSXContainer(r)
	case KindCIA:
		return parseCIAContainer(r)
	case KindNCSD:
		return parseNCSDContainer(r)
	case KindNCCH:
		return parseNCCHContainer(r)
	default:
		return nil, core.NewError(core.NotSupported, "n3ds.Parse", fmt.Errorf("unknown container kind"))
	}
}

func parseThreeDSXContainer(r stream.Reader) (*Info, error) {
	hdr, err := parse3DSX(r)
	if err != nil {
		return nil, err
	}
	return &Info{Kind: KindThreeDSX, ThreeDSX: hdr, SMDH: hdr.SMDH}, nil
}

func parseNCSDContainer(r stream.Reader) (*Info, error) {
	ncsd, err := parseNCSD(r)
	if err != nil {
		return nil, err
	}
	info := &Info{Kind: KindNCSD, NCSD: ncsd}

	// Primary NCCH selection (spec §4.2.8): partition index 0.
	part := ncsd.Partitions[0]
	if part.Length <= 0 {
		return info, nil
	}
	nr, err := OpenNCCHReader(r, part.Offset, part.Length)
	if err != nil {
		return info, nil
	}
	info.reader = nr
	fillFromNCCH(info, nr)
	return info, nil
}

func parseNCCHContainer(r stream.Reader) (*Info, error) {
	info := &Info{Kind: KindNCCH}
	nr, err := OpenNCCHReader(r, 0, r.Size())
	if err != nil {
		return nil, err
	}
	info.reader = nr
	fillFromNCCH(info, nr)
	return info, nil
}

func parseCIAContainer(r stream.Reader) (*Info, error) {
	size := r.Size()
	hraw := make([]byte, ciaHeaderSize)
	if err := stream.ReadFull(r, 0, hraw); err != nil {
		return nil, core.NewError(core.IOError, "n3ds.parseCIAContainer", err)
	}
	hdr, err := parseCIAHeader(hraw)
	if err != nil {
		return nil, err
	}
	info := &Info{Kind: KindCIA, CIA: hdr}

	certChainOffset := align64(int64(hdr.HeaderSize))
	ticketOffset := certChainOffset + align64(int64(hdr.CertChainSize))
	tmdOffset := ticketOffset + align64(int64(hdr.TicketSize))
	contentOffset := tmdOffset + align64(int64(hdr.TMDSize))
	metaOffset := contentOffset + align64(int64(hdr.ContentSize))

	var ticket *Ticket
	if hdr.TicketSize > 0 {
		traw := make([]byte, hdr.TicketSize)
		if err := stream.ReadFull(r, ticketOffset, traw); err == nil {
			ticket, _ = parseTicket(traw)
		}
	}

	if hdr.TMDSize > 0 {
		traw := make([]byte, hdr.TMDSize)
		if err := stream.ReadFull(r, tmdOffset, traw); err == nil {
			if tmd, err := parseTMD(traw); err == nil {
				info.TMD = tmd

				// Primary NCCH selection (spec §4.2.8): TMD boot_content.
				if chunk, ok := tmd.findContent(tmd.BootContent); ok {
					fileOff := contentOffset + contentFileOffset(tmd.Contents, tmd.BootContent)
					var chunkTicket *Ticket
					if chunk.Encrypted() {
						chunkTicket = ticket
					}
					if cr, err := OpenCIAReader(r, fileOff, int64(chunk.Size), chunkTicket, chunk.Index); err == nil {
						if nr, err := OpenNCCHReader(cr, 0, int64(chunk.Size)); err == nil {
							info.reader = nr
							fillFromNCCH(info, nr)
						}
					}
				}
			}
		}
	}

	// An embedded meta-section SMDH, when present, takes priority for
	// display over any SMDH recovered from the primary NCCH's ExeFS --
	// it is what the system's HOME Menu actually shows for this title.
	if hdr.MetaSize >= 0x400+uint32(smdhSize) && metaOffset+0x400+smdhSize <= size {
		if smdh, err := ReadSMDH(r, metaOffset+0x400); err == nil {
			info.SMDH = smdh
		}
	}
	return info, nil
}

func fillFromNCCH(info *Info, nr *NCCHReader) {
	info.NCCHHeader = nr.Header()
	if eh, err := nr.ReadExHeader(); err == nil {
		info.ExHeader = eh
	}
	if info.SMDH == nil {
		if smdh, err := nr.ReadSMDH(); err == nil {
			info.SMDH = smdh
		}
	}
}

func mimeType(kind ContainerKind) string {
	switch kind {
	case KindThreeDSX:
		return "application/x-nintendo-3dsx"
	case KindCIA:
		return "application/x-nintendo-3ds-cia"
	case KindNCSD:
		return "application/x-nintendo-3ds-rom"
	case KindNCCH:
		return "application/x-nintendo-3ds-ncch"
	default:
		return "application/octet-stream"
	}
}

// BuildRecord assembles the spec §3 RomDataRecord for a parsed 3DS
// container, presenting SMDH, NCCH, and ExHeader data as nested tabs
// (spec §4.2.8).
func BuildRecord(info *Info) *core.RomDataRecord {
	fileType := core.FileTypeROMImage
	if info.Kind == KindThreeDSX || info.Kind == KindCIA {
		fileType = core.FileTypeApplication
	}
	rec := core.NewRomDataRecord(mimeType(info.Kind), fileType)
	rec.IsValid = true

	if info.SMDH != nil {
		info.SMDH.AddFields(rec, LangEnglish)
	}

	if info.NCCHHeader != nil {
		rec.Fields.AddTab("NCCH")
		f := rec.Fields
		f.AddString("Product Code", info.NCCHHeader.ProductCode, 0)
		f.AddString("Maker Code", info.NCCHHeader.MakerCode, 0)
		f.AddNumeric("Version", uint64(info.NCCHHeader.Version), 10, 0)
		if info.NCCHHeader.NoCrypto {
			f.AddString("Crypto", "none", 0)
		} else if info.reader != nil && info.reader.forceNoCrypto {
			f.AddString("Crypto", "unavailable (missing key)", core.FlagWarning)
			rec.Warning = "NCCH decryption keys unavailable"
		} else {
			f.AddString("Crypto", "AES-CTR", 0)
		}
		rec.Metadata.AddString(core.MetaGameID, info.NCCHHeader.ProductCode)
	}

	if info.ExHeader != nil {
		info.ExHeader.AddFields(rec)
	}

	if info.NCSD != nil {
		rec.Fields.AddTab("NCSD")
		variant := "Cartridge (CCI)"
		if info.NCSD.Variant == NCSDeMMC {
			variant = "eMMC (NAND)"
		}
		rec.Fields.AddString("Container", variant, 0)
	}

	if info.CIA != nil {
		rec.Fields.AddTab("CIA")
		f := rec.Fields
		if info.TMD != nil {
			f.AddNumeric("Title ID", info.TMD.TitleID, 16, 16)
			f.AddNumeric("Title Version", uint64(info.TMD.TitleVersion), 10, 0)
			f.AddNumeric("Content Count", uint64(len(info.TMD.Contents)), 10, 0)
		}
	}

	return rec
}

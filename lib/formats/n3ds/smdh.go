package n3ds

import (
	"fmt"

	"github.com/sargunv/romcore/internal/byteorder"
	"github.com/sargunv/romcore/internal/stream"
	"github.com/sargunv/romcore/internal/util"
	"github.com/sargunv/romcore/lib/core"
	rcimage "github.com/sargunv/romcore/lib/image"
)

// SMDH layout constants (spec §4.2.9): a fixed 0x2040-byte metadata
// block followed by a 0x1680-byte icon block, 0x36C0 bytes total.
const (
	smdhSize        = 0x36C0
	smdhTitleBlock   = 0x200 // per-language title block size
	smdhTitlesCount  = 16
	smdhOffTitles    = 0x08
	smdhOffSettings  = 0x2008
	smdhSettingsSize = 0x30
	smdhOffIcons     = 0x2040
	smdhIconSmallW   = 24
	smdhIconSmallH   = 24
	smdhIconSmallLen = smdhIconSmallW * smdhIconSmallH * 2
	smdhIconLargeW   = 48
	smdhIconLargeH   = 48
	smdhIconLargeLen = smdhIconLargeW * smdhIconLargeH * 2
)

// SMDH language indices, fixed by the console's language table.
const (
	LangJapanese = iota
	LangEnglish
	LangFrench
	LangGerman
	LangItalian
	LangSpanish
	LangChineseSimplified
	LangKorean
	LangDutch
	LangPortuguese
	LangRussian
	LangChineseTraditional
)

// Title is one language's {short, long, publisher} description triple.
type Title struct {
	ShortDescription string
	LongDescription  string
	Publisher        string
}

// AgeRatingRegions names each of the 16 settings-block rating slots, in
// order. Slots this console generation left reserved carry no rating.
var AgeRatingRegions = [16]string{
	"CERO", "ESRB", "", "USK", "PEGI", "", "PEGI-PT", "PEGI-BBFC",
	"COB", "GRB", "CGSRR", "", "", "", "", "",
}

// Settings is the decoded SMDH settings block.
type Settings struct {
	Ratings               [16]core.AgeRating
	RegionMask            uint32
	Region                core.Region
	MatchMakerID          uint32
	MatchMakerBitID       uint64
	Flags                 uint32
	EulaVersion           uint16
	AnimationDefaultFrame uint32
	CecID                 uint32
}

// settingsFlagLabels names the settings.flags bits in bit order (3DS
// SMDH, publicly documented on 3dbrew), for display only.
var settingsFlagLabels = []string{
	"Visible", "Auto Boot", "Allow 3D", "Require EULA", "Auto Save on Exit",
	"Extended Banner", "Rating Required", "Record Usage",
}

// Info is a fully decoded SMDH block.
type SMDHInfo struct {
	Titles   [16]Title
	Settings Settings
	rawIcons []byte
}

// ParseSMDH decodes an SMDH block from raw, which must hold at least
// the 0x2040-byte metadata block. The icons are kept only when raw is
// at least smdhSize bytes; trailing bytes are ignored.
func ParseSMDH(raw []byte) (*SMDHInfo, error) {
	if len(raw) < smdhOffIcons || string(raw[0:4]) != "SMDH" {
		return nil, core.NewError(core.InvalidFormat, "n3ds.ParseSMDH", fmt.Errorf("missing SMDH magic"))
	}

	info := &SMDHInfo{}
	for i := 0; i < smdhTitlesCount; i++ {
		off := smdhOffTitles + i*smdhTitleBlock
		block := raw[off : off+smdhTitleBlock]
		info.Titles[i] = Title{
			ShortDescription: util.DecodeUTF16LE(block[0:128]),
			LongDescription:  util.DecodeUTF16LE(block[128:384]),
			Publisher:        util.DecodeUTF16LE(block[384:512]),
		}
	}

	s := raw[smdhOffSettings : smdhOffSettings+smdhSettingsSize]
	for i := 0; i < 16; i++ {
		b := s[i]
		info.Settings.Ratings[i] = core.AgeRating{
			Age:           b & 0x1F,
			NoRestriction: b&0x20 != 0,
			Pending:       b&0x40 != 0,
			Active:        b&0x80 != 0,
		}
	}
	info.Settings.RegionMask = byteorder.LE32(s, 16)
	info.Settings.Region = core.RegionFromSMDHBitmask(info.Settings.RegionMask)
	info.Settings.MatchMakerID = byteorder.LE32(s, 20)
	info.Settings.MatchMakerBitID = byteorder.LE64(s, 24)
	info.Settings.Flags = byteorder.LE32(s, 32)
	info.Settings.EulaVersion = byteorder.LE16(s, 36)
	info.Settings.AnimationDefaultFrame = byteorder.LE32(s, 40)
	info.Settings.CecID = byteorder.LE32(s, 44)

	if len(raw) >= smdhOffIcons+smdhIconSmallLen+smdhIconLargeLen {
		info.rawIcons = raw[smdhOffIcons:]
	}
	return info, nil
}

// ReadSMDH reads and decodes an SMDH block of exactly smdhSize bytes at
// off within r.
func ReadSMDH(r stream.Reader, off int64) (*SMDHInfo, error) {
	raw := make([]byte, smdhSize)
	n, err := r.ReadAt(raw, off)
	if err != nil {
		return nil, core.NewError(core.IOError, "n3ds.ReadSMDH", err)
	}
	return ParseSMDH(raw[:n])
}

// DisplayTitle picks the best-matching title block for a host language
// index, falling back to English then Japanese then the first
// non-empty slot, matching the priority order every 3DS menu uses.
func (s *SMDHInfo) DisplayTitle(preferred int) Title {
	order := []int{preferred, LangEnglish, LangJapanese}
	for _, lang := range order {
		if lang < 0 || lang >= smdhTitlesCount {
			continue
		}
		if t := s.Titles[lang]; t.ShortDescription != "" {
			return t
		}
	}
	for _, t := range s.Titles {
		if t.ShortDescription != "" {
			return t
		}
	}
	return Title{}
}

// DecodeIcons decodes the small (24x24) and large (48x48) RGB565
// icons from the block's Z-order-tiled pixel layout.
func (s *SMDHInfo) DecodeIcons() (small, large *core.DecodedImage, err error) {
	if len(s.rawIcons) < smdhIconSmallLen+smdhIconLargeLen {
		return nil, nil, fmt.Errorf("n3ds: icon block missing or truncated")
	}
	small, err = rcimage.DecodeN3DSTiledRGB565(smdhIconSmallW, smdhIconSmallH, s.rawIcons[:smdhIconSmallLen])
	if err != nil {
		return nil, nil, err
	}
	large, err = rcimage.DecodeN3DSTiledRGB565(smdhIconLargeW, smdhIconLargeH, s.rawIcons[smdhIconSmallLen:smdhIconSmallLen+smdhIconLargeLen])
	if err != nil {
		return small, nil, err
	}
	return small, large, nil
}

// AddFields appends the SMDH tab's fields and metadata to a record
// under construction.
func (s *SMDHInfo) AddFields(rec *core.RomDataRecord, preferred int) {
	title := s.DisplayTitle(preferred)
	f := rec.Fields
	f.AddString("Title", title.ShortDescription, core.FlagTrimEnd)
	f.AddString("Full Title", title.LongDescription, core.FlagTrimEnd)
	f.AddString("Publisher", title.Publisher, core.FlagTrimEnd)

	f.AddAgeRatings("Age Ratings", s.Settings.Ratings)
	f.AddBitfield("Settings", s.Settings.Flags, settingsFlagLabels)
	if region := s.Settings.Region; region != core.RegionUnknown {
		f.AddString("Region", string(region), 0)
	}

	rec.Metadata.AddString(core.MetaTitle, title.ShortDescription)
	rec.Metadata.AddString(core.MetaPublisher, title.Publisher)

	if small, large, err := s.DecodeIcons(); err == nil {
		rec.SetImage(core.ImageIcon, small)
		rec.SetImage(core.ImageIconLarge, large)
		// SMDH icons are small fixed-size tiled bitmaps; upscaling them
		// smoothly blurs the pixel art, so request nearest-neighbor
		// (original_source Nintendo3DS_SMDH.cpp's imgpf()).
		rec.SetImagePixelFlags(core.ImageIcon, core.ImgPfRescaleNearest)
		rec.SetImagePixelFlags(core.ImageIconLarge, core.ImgPfRescaleNearest)
	}
}

package core

// FileType enumerates the kind of container a parser recognized.
type FileType int

const (
	FileTypeROMImage FileType = iota
	FileTypeSaveFile
	FileTypeIconFile
	FileTypeDiscImage
	FileTypeApplication
	FileTypeApplicationUpdate
)

// SystemNameFlags selects the verbosity/format of System() accessor
// output (full name vs abbreviation vs short vendor-prefixed form).
type SystemNameFlags uint8

const (
	SysNameFull SystemNameFlags = iota
	SysNameShort
	SysNameAbbrev
)

// RomDataRecord is the document a parser produces (spec §3). All heavy
// work (image decode, secondary headers) is lazy and memoised by the
// concrete parser; RomDataRecord itself just carries the materialized
// results once built.
type RomDataRecord struct {
	IsValid  bool
	FileType FileType
	MimeType string

	Fields   *RomFieldsBuilder
	Metadata RomMetaData

	images        map[ImageType]*DecodedImage
	pixelFlags    map[ImageType]ImagePixelFlags
	iconAnimation *IconAnimation

	// Warning is set when the parser could produce a record but some
	// data is degraded or unavailable (e.g. missing NCCH keys, §7).
	Warning string
}

// NewRomDataRecord returns an empty, not-yet-valid record.
func NewRomDataRecord(mimeType string, fileType FileType) *RomDataRecord {
	return &RomDataRecord{
		MimeType: mimeType,
		FileType: fileType,
		Fields:   NewRomFieldsBuilder(),
		images:   map[ImageType]*DecodedImage{},
	}
}

// SetImage memoises a decoded image under kind.
func (r *RomDataRecord) SetImage(kind ImageType, img *DecodedImage) {
	r.images[kind] = img
}

// Image returns a previously memoised image, or nil.
func (r *RomDataRecord) Image(kind ImageType) *DecodedImage {
	return r.images[kind]
}

// SetImagePixelFlags attaches rescale hints (§4.4's imgpf) to a
// previously set image kind.
func (r *RomDataRecord) SetImagePixelFlags(kind ImageType, flags ImagePixelFlags) {
	if r.pixelFlags == nil {
		r.pixelFlags = map[ImageType]ImagePixelFlags{}
	}
	r.pixelFlags[kind] = flags
}

// ImagePixelFlags returns the rescale hints attached to kind, or zero.
func (r *RomDataRecord) ImagePixelFlags(kind ImageType) ImagePixelFlags {
	return r.pixelFlags[kind]
}

// SetIconAnimation memoises the icon animation sequence.
func (r *RomDataRecord) SetIconAnimation(anim *IconAnimation) {
	r.iconAnimation = anim
}

// IconAnimation returns the memoised animation sequence, or nil.
func (r *RomDataRecord) IconAnimation() *IconAnimation {
	return r.iconAnimation
}

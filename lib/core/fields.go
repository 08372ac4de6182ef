package core

// FieldFlags are presentation hints attached to a RomField.
type FieldFlags uint8

const (
	FlagTrimEnd FieldFlags = 1 << iota
	FlagMonospace
	FlagWarning
)

// FieldKind discriminates the RomField tagged union.
type FieldKind int

const (
	FieldString FieldKind = iota
	FieldNumeric
	FieldDateTime
	FieldBitfield
	FieldAgeRatings
	FieldListData
	FieldHexDump
)

// AgeRating is one unified {active, pending, no_restriction, age} slot
// of an SMDH age-ratings block (§4.2.9).
type AgeRating struct {
	Active       bool
	Pending      bool
	NoRestriction bool
	Age          uint8
}

// ListRow is one row of a FieldListData field (e.g. SNES Nintendo Power
// directory rows, §4.2.5).
type ListRow struct {
	Values []string
	Flags  FieldFlags
}

// RomField is a tagged union over the field value kinds spec §3 names.
// Only the member matching Kind is populated.
type RomField struct {
	Name  string
	Kind  FieldKind
	Flags FieldFlags

	Str      string
	Num      uint64
	NumBase  int
	NumDigits int
	Unix     int64 // DateTime: unix seconds, -1 = unknown/failed parse
	Bits     uint32
	BitLabels []string
	Ratings  [16]AgeRating
	ListHeaders []string
	ListRows    []ListRow
	Hex      []byte
}

// RomFieldsBuilder accumulates RomFields in insertion order, optionally
// grouped into named tabs, matching spec §3's ordering invariant.
type RomFieldsBuilder struct {
	currentTab string
	tabs       []string
	byTab      map[string][]RomField
}

// NewRomFieldsBuilder returns an empty builder with the default tab.
func NewRomFieldsBuilder() *RomFieldsBuilder {
	b := &RomFieldsBuilder{byTab: map[string][]RomField{}}
	b.AddTab("")
	return b
}

// AddTab starts (or switches to) a named tab; subsequent AddX calls
// append to it until the next AddTab.
func (b *RomFieldsBuilder) AddTab(name string) {
	if _, ok := b.byTab[name]; !ok {
		b.tabs = append(b.tabs, name)
		b.byTab[name] = nil
	}
	b.currentTab = name
}

func (b *RomFieldsBuilder) push(f RomField) {
	b.byTab[b.currentTab] = append(b.byTab[b.currentTab], f)
}

func (b *RomFieldsBuilder) AddString(name, value string, flags FieldFlags) {
	b.push(RomField{Name: name, Kind: FieldString, Str: value, Flags: flags})
}

func (b *RomFieldsBuilder) AddNumeric(name string, value uint64, base, digits int) {
	b.push(RomField{Name: name, Kind: FieldNumeric, Num: value, NumBase: base, NumDigits: digits})
}

func (b *RomFieldsBuilder) AddDateTime(name string, unixSeconds int64, flags FieldFlags) {
	b.push(RomField{Name: name, Kind: FieldDateTime, Unix: unixSeconds, Flags: flags})
}

func (b *RomFieldsBuilder) AddBitfield(name string, bits uint32, labels []string) {
	b.push(RomField{Name: name, Kind: FieldBitfield, Bits: bits, BitLabels: labels})
}

func (b *RomFieldsBuilder) AddAgeRatings(name string, ratings [16]AgeRating) {
	b.push(RomField{Name: name, Kind: FieldAgeRatings, Ratings: ratings})
}

func (b *RomFieldsBuilder) AddListData(name string, headers []string, rows []ListRow) {
	b.push(RomField{Name: name, Kind: FieldListData, ListHeaders: headers, ListRows: rows})
}

func (b *RomFieldsBuilder) AddHexDump(name string, data []byte) {
	b.push(RomField{Name: name, Kind: FieldHexDump, Hex: data})
}

// Tabs returns the tab names in insertion order ("" is the default tab).
func (b *RomFieldsBuilder) Tabs() []string { return b.tabs }

// Fields returns the fields inserted under the given tab, in order.
func (b *RomFieldsBuilder) Fields(tab string) []RomField { return b.byTab[tab] }

// All returns every field across every tab, in tab-then-insertion order.
func (b *RomFieldsBuilder) All() []RomField {
	var out []RomField
	for _, tab := range b.tabs {
		out = append(out, b.byTab[tab]...)
	}
	return out
}

// MetaTag is the RomMetaData property tag enumeration (spec §3).
type MetaTag int

const (
	MetaTitle MetaTag = iota
	MetaPublisher
	MetaCreationDate
	MetaGameID
	MetaOSVersion
)

// MetaEntry is one RomMetaData (property_tag, value) pair. Exactly one
// of Str/Unix is meaningful, selected by Tag.
type MetaEntry struct {
	Tag  MetaTag
	Str  string
	Unix int64
}

// RomMetaData is the short property list spec §3 describes.
type RomMetaData struct {
	entries []MetaEntry
}

func (m *RomMetaData) AddString(tag MetaTag, value string) {
	m.entries = append(m.entries, MetaEntry{Tag: tag, Str: value})
}

func (m *RomMetaData) AddTimestamp(tag MetaTag, unixSeconds int64) {
	m.entries = append(m.entries, MetaEntry{Tag: tag, Unix: unixSeconds})
}

func (m *RomMetaData) Entries() []MetaEntry { return m.entries }

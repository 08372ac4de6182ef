package core

// Region represents a GameTDB-style geographic region code used both
// for display and for external image URL templates (spec §6). Regions
// form a hierarchy (e.g., Germany -> Europe -> World) used for fallback
// matching when a format-specific region byte or bitmask doesn't have a
// dedicated cover-art entry.
type Region string

const (
	RegionUnknown Region = ""

	// Top level regions (parent is World, or no parent for World itself)
	RegionWorld      Region = "wor"
	RegionEurope     Region = "eu"
	RegionAsia       Region = "asi"
	RegionAmerica    Region = "ame" // American Continent (North + South)
	RegionOceania    Region = "oce"
	RegionMiddleEast Region = "mor"
	RegionAfrica     Region = "afr"

	// Europe children
	RegionGermany     Region = "de"
	RegionFrance      Region = "fr"
	RegionUK          Region = "uk"
	RegionSpain       Region = "sp"
	RegionItaly       Region = "it"
	RegionNetherlands Region = "nl"
	RegionSweden      Region = "se"
	RegionDenmark     Region = "dk"
	RegionFinland     Region = "fi"
	RegionNorway      Region = "no"
	RegionPortugal    Region = "pt"
	RegionPoland      Region = "pl"
	RegionCzech       Region = "cz"
	RegionHungary     Region = "hu"
	RegionSlovakia    Region = "sk"
	RegionBulgaria    Region = "bg"
	RegionGreece      Region = "gr"
	RegionRussia      Region = "ru"

	// Asia children
	RegionJapan  Region = "jp"
	RegionChina  Region = "cn"
	RegionKorea  Region = "kr"
	RegionTaiwan Region = "tw"

	// America children
	RegionUSA    Region = "us"
	RegionCanada Region = "ca"
	RegionBrazil Region = "br"
	RegionMexico Region = "mex"
	RegionChile  Region = "cl"
	RegionPeru   Region = "pe"

	// Oceania children
	RegionAustralia  Region = "au"
	RegionNewZealand Region = "nz"

	// Middle East children
	RegionIsrael Region = "il"
	RegionTurkey Region = "tr"
	RegionKuwait Region = "kw"
	RegionUAE    Region = "ae"

	// Africa children
	RegionSouthAfrica Region = "za"
)

// regionParents maps each region to its parent in the hierarchy.
var regionParents = map[Region]Region{
	// Continental regions -> World
	RegionEurope:     RegionWorld,
	RegionAsia:       RegionWorld,
	RegionAmerica:    RegionWorld,
	RegionOceania:    RegionWorld,
	RegionMiddleEast: RegionWorld,
	RegionAfrica:     RegionWorld,

	// Europe children
	RegionGermany:     RegionEurope,
	RegionFrance:      RegionEurope,
	RegionUK:          RegionEurope,
	RegionSpain:       RegionEurope,
	RegionItaly:       RegionEurope,
	RegionNetherlands: RegionEurope,
	RegionSweden:      RegionEurope,
	RegionDenmark:     RegionEurope,
	RegionFinland:     RegionEurope,
	RegionNorway:      RegionEurope,
	RegionPortugal:    RegionEurope,
	RegionPoland:      RegionEurope,
	RegionCzech:       RegionEurope,
	RegionHungary:     RegionEurope,
	RegionSlovakia:    RegionEurope,
	RegionBulgaria:    RegionEurope,
	RegionGreece:      RegionEurope,
	RegionRussia:      RegionEurope,

	// Asia children
	RegionJapan:  RegionAsia,
	RegionChina:  RegionAsia,
	RegionKorea:  RegionAsia,
	RegionTaiwan: RegionAsia,

	// America children
	RegionUSA:    RegionAmerica,
	RegionCanada: RegionAmerica,
	RegionBrazil: RegionAmerica,
	RegionMexico: RegionAmerica,
	RegionChile:  RegionAmerica,
	RegionPeru:   RegionAmerica,

	// Oceania children
	RegionAustralia:  RegionOceania,
	RegionNewZealand: RegionOceania,

	// Middle East children
	RegionIsrael: RegionMiddleEast,
	RegionTurkey: RegionMiddleEast,
	RegionKuwait: RegionMiddleEast,
	RegionUAE:    RegionMiddleEast,

	// Africa children
	RegionSouthAfrica: RegionAfrica,
}

// Parent returns this region's parent in the hierarchy.
// Returns RegionWorld for top-level continental regions.
// Returns RegionUnknown for RegionWorld and RegionUnknown.
func (r Region) Parent() Region {
	if parent, ok := regionParents[r]; ok {
		return parent
	}
	return RegionUnknown
}

// Ancestors returns the chain of ancestors from this region up to World.
// For example, RegionGermany.Ancestors() returns [RegionEurope, RegionWorld].
// Returns nil for RegionWorld and RegionUnknown; a top-level continental
// region returns [RegionWorld].
func (r Region) Ancestors() []Region {
	var ancestors []Region
	for p := r.Parent(); p != RegionUnknown; p = p.Parent() {
		ancestors = append(ancestors, p)
	}
	return ancestors
}

// IsAncestorOf returns true if r is an ancestor of other in the hierarchy,
// along with the distance (number of hops from other to r).
// For example, RegionEurope.IsAncestorOf(RegionGermany) returns (true, 1).
// Returns (false, -1) if r is not an ancestor of other.
func (r Region) IsAncestorOf(other Region) (bool, int) {
	dist := 0
	for p := other.Parent(); p != RegionUnknown; p = p.Parent() {
		dist++
		if p == r {
			return true, dist
		}
	}
	return false, -1
}

// IsDescendantOf returns true if r is a descendant of other in the hierarchy,
// along with the distance (number of hops from r to other).
// For example, RegionGermany.IsDescendantOf(RegionEurope) returns (true, 1).
// Returns (false, -1) if r is not a descendant of other.
func (r Region) IsDescendantOf(other Region) (bool, int) {
	return other.IsAncestorOf(r)
}

// smdhRegionBits maps an SMDH settings-block region bitmask bit index
// (§4.2.9) to a Region, in the low-to-high scan order the resolver
// uses: first set bit wins.
var smdhRegionBits = []Region{
	RegionJapan, RegionUSA, RegionEurope, RegionAustralia, RegionChina, RegionKorea, RegionTaiwan,
}

// RegionFromSMDHBitmask resolves an SMDH region bitmask to a single
// Region by taking the lowest set bit.
func RegionFromSMDHBitmask(mask uint32) Region {
	for i, r := range smdhRegionBits {
		if mask&(1<<uint(i)) != 0 {
			return r
		}
	}
	return RegionUnknown
}

// RegionFromID4Byte resolves the common ID4[3]/gameID[3] region-byte
// convention (N64 §4.2.3, GBA/VB §4.2.6/4.2.7) to a Region.
func RegionFromID4Byte(b byte) Region {
	switch b {
	case 'J':
		return RegionJapan
	case 'E':
		return RegionUSA
	case 'P':
		return RegionEurope
	case 'D':
		return RegionGermany
	case 'F':
		return RegionFrance
	case 'I':
		return RegionItaly
	case 'S':
		return RegionSpain
	case 'U':
		return RegionAustralia
	case 'K':
		return RegionKorea
	case 'C':
		return RegionChina
	default:
		return RegionUnknown
	}
}

// URLTemplate renders an external cover-art/title-screen URL (spec §6):
// {base}/{sys}/{kind}/{region}/{id}.{ext}.
func URLTemplate(base, sys, kind string, region Region, id, ext string) string {
	return base + "/" + sys + "/" + kind + "/" + string(region) + "/" + id + "." + ext
}

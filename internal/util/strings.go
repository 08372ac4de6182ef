// Package util holds small text helpers shared across format parsers.
package util

import (
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
)

// ExtractASCII extracts a null-terminated ASCII string from bytes.
func ExtractASCII(data []byte) string {
	end := len(data)
	for i, b := range data {
		if b == 0 {
			end = i
			break
		}
	}
	return strings.TrimSpace(string(data[:end]))
}

// TextEncoding selects the transcoding applied by DecodeText.
type TextEncoding int

const (
	// EncodingASCII passes bytes through as Latin-1/ASCII.
	EncodingASCII TextEncoding = iota
	// EncodingShiftJIS decodes bytes as Shift-JIS.
	EncodingShiftJIS
	// EncodingCP1252 decodes bytes as Windows-1252 (superset of Latin-1).
	EncodingCP1252
)

// DecodeText trims a NUL-terminated byte field and transcodes it per enc.
// Trailing 0x00/0x20/0xFF bytes are stripped before transcoding, matching
// the trim behavior several cartridge header formats rely on.
func DecodeText(data []byte, enc TextEncoding) string {
	trimmed := trimTrailing(data)
	if len(trimmed) == 0 {
		return ""
	}
	switch enc {
	case EncodingShiftJIS:
		out, err := japanese.ShiftJIS.NewDecoder().Bytes(trimmed)
		if err != nil {
			return strings.TrimSpace(string(trimmed))
		}
		return strings.TrimSpace(string(out))
	case EncodingCP1252:
		out, err := charmap.Windows1252.NewDecoder().Bytes(trimmed)
		if err != nil {
			return strings.TrimSpace(string(trimmed))
		}
		return strings.TrimSpace(string(out))
	default:
		return strings.TrimSpace(string(trimmed))
	}
}

// DecodeUTF16LE decodes a NUL-terminated UTF-16LE field, as used by SMDH
// title blocks. Trailing 0x0000 code units are trimmed before transcoding.
func DecodeUTF16LE(data []byte) string {
	end := len(data) - (len(data) % 2)
	for end >= 2 && data[end-2] == 0 && data[end-1] == 0 {
		end -= 2
	}
	if end <= 0 {
		return ""
	}
	dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	out, err := dec.Bytes(data[:end])
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// trimTrailing strips trailing 0x00, 0x20, and 0xFF bytes, the three pad
// values cartridge title fields use interchangeably. Existing-from-the-
// front bytes are never touched: some ROMs carry meaningful leading
// bytes that a naive full-trim would drop.
func trimTrailing(data []byte) []byte {
	end := len(data)
	for end > 0 {
		b := data[end-1]
		if b == 0x00 || b == 0x20 || b == 0xFF {
			end--
			continue
		}
		break
	}
	return data[:end]
}

package gba

import (
	"bytes"
	"testing"

	"github.com/sargunv/romcore/internal/stream"
)

func makeSyntheticGBA(title, id6 string, version byte, withLogo bool) []byte {
	data := make([]byte, headerSize)
	if withLogo {
		copy(data[offLogo:offLogo+16], nintendoLogo[:])
	}
	copy(data[offTitle:offTitle+12], padRight(title, 12))
	copy(data[offID6:offID6+6], padRight(id6, 6))
	data[offFixed96h] = 0x96
	data[offDeviceType] = 0x00
	data[offVersion] = version
	if withLogo {
		// Checksum irrelevant for logo-valid carts but compute it anyway.
		var chk uint8
		for i := 0xA0; i <= 0xBC; i++ {
			chk -= data[i]
		}
		chk -= 0x19
		data[offChecksum] = chk
	}
	return data
}

func padRight(s string, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = 0
	}
	copy(out, s)
	return out
}

func newReader(data []byte) stream.Reader {
	return stream.NewFileStream(bytes.NewReader(data), int64(len(data)), "test.gba")
}

func TestParseGBAWithLogo(t *testing.T) {
	data := makeSyntheticGBA("POKEMON EMER", "BPEE01", 0, true)
	r := newReader(data)
	info, err := Parse(r)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if info.Kind != KindGBA {
		t.Fatalf("Kind = %v, want KindGBA", info.Kind)
	}
	if info.GameCode != "BPEE" {
		t.Errorf("GameCode = %q, want BPEE", info.GameCode)
	}
	if info.CompanyCode != "01" {
		t.Errorf("CompanyCode = %q, want 01", info.CompanyCode)
	}
}

func TestParsePassthroughChecksum(t *testing.T) {
	data := makeSyntheticGBA("PASSTHROUGH", "XXXX00", 0, false)
	var chk uint8
	for i := 0xA0; i <= 0xBC; i++ {
		chk -= data[i]
	}
	chk -= 0x19
	data[offChecksum] = chk
	// entry point left as 0, so this is not 0xFFFFFFFF -> passthrough.

	r := newReader(data)
	info, err := Parse(r)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if info.Kind != KindPassthrough {
		t.Fatalf("Kind = %v, want KindPassthrough", info.Kind)
	}
}

func TestParseNoMarker(t *testing.T) {
	data := make([]byte, headerSize)
	r := newReader(data)
	if _, err := Parse(r); err == nil {
		t.Fatal("Parse: expected error without 0x96 marker")
	}
}

func TestBuildRecordGBA(t *testing.T) {
	data := makeSyntheticGBA("BUILD RECORD", "ABCD01", 1, true)
	r := newReader(data)
	info, err := Parse(r)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	rec := BuildRecord(info)
	if !rec.IsValid {
		t.Error("IsValid = false, want true")
	}
	if rec.MimeType != "application/x-gba-rom" {
		t.Errorf("MimeType = %q", rec.MimeType)
	}
}

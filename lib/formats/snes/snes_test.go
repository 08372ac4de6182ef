package snes

import (
	"bytes"
	"testing"

	"github.com/sargunv/romcore/internal/stream"
	"github.com/sargunv/romcore/lib/core"
)

// makeSyntheticSNES builds a 32KB image with a valid LoROM header at
// 0x7FB0, following the synthetic-buffer test pattern used throughout
// the format packages.
func makeSyntheticSNES(title string, mappingByte byte) []byte {
	data := make([]byte, 0x10000)
	hdr := data[0x7FB0 : 0x7FB0+0x30]
	copy(hdr[0x10:0x25], padTo(title, 21, ' '))
	hdr[0x25] = mappingByte // rom_mapping
	hdr[0x26] = 0x00        // rom_type: ROM only
	hdr[0x27] = 0x08        // rom_size log
	hdr[0x28] = 0x00        // sram_size log
	hdr[0x29] = 0x01        // destination: USA
	hdr[0x2A] = 0x01        // old_publisher_code (not 0x33, no ext header)
	hdr[0x2B] = 0x00        // version
	// checksum/complement both zero is accepted (prototype convention).
	return data
}

func padTo(s string, n int, pad byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = pad
	}
	copy(out, s)
	return out
}

func newReader(data []byte) stream.Reader {
	return stream.NewFileStream(bytes.NewReader(data), int64(len(data)), "test.sfc")
}

func TestParseLoROM(t *testing.T) {
	data := makeSyntheticSNES("TEST GAME", 0x20) // LoROM
	r := newReader(data)
	info, err := Parse(r)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if info.Kind != KindSNES {
		t.Fatalf("Kind = %v, want KindSNES", info.Kind)
	}
	if info.Mapping != MappingLoROM {
		t.Errorf("Mapping = %v, want LoROM", info.Mapping)
	}
	if info.IsHiROM {
		t.Error("IsHiROM = true, want false")
	}
	if info.Region != regionFromDestinationCode(0x01) {
		t.Errorf("Region mismatch")
	}
}

func TestParseHiROM(t *testing.T) {
	data := make([]byte, 0x20000)
	hdr := data[0xFFB0 : 0xFFB0+0x30]
	copy(hdr[0x10:0x25], padTo("HIROM GAME", 21, ' '))
	hdr[0x25] = 0x21 // HiROM
	hdr[0x26] = 0x00
	hdr[0x27] = 0x0A
	hdr[0x28] = 0x00
	hdr[0x29] = 0x00
	hdr[0x2A] = 0x01

	r := newReader(data)
	info, err := Parse(r)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if info.Mapping != MappingHiROM {
		t.Errorf("Mapping = %v, want HiROM", info.Mapping)
	}
	if !info.IsHiROM {
		t.Error("IsHiROM = false, want true")
	}
}

func TestParseNoValidHeader(t *testing.T) {
	data := make([]byte, 0x10000) // all zero, no valid header anywhere
	r := newReader(data)
	if _, err := Parse(r); err == nil {
		t.Fatal("Parse: expected error for header-less image")
	}
}

func TestExtendedHeaderPublisherAndID4(t *testing.T) {
	data := makeSyntheticSNES("EXT HEADER TEST", 0x20)
	hdr := data[0x7FB0 : 0x7FB0+0x30]
	hdr[0x2A] = 0x33 // old_publisher_code: extended header present
	copy(hdr[0x00:0x02], []byte("01"))
	copy(hdr[0x02:0x06], []byte("ABCD"))

	r := newReader(data)
	info, err := Parse(r)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !info.HasExtendedHdr {
		t.Error("HasExtendedHdr = false, want true")
	}
	if info.ID4 != "ABCD" {
		t.Errorf("ID4 = %q, want ABCD", info.ID4)
	}
	if info.NewPublisher != "01" {
		t.Errorf("NewPublisher = %q, want 01", info.NewPublisher)
	}
}

// TestNintendoPowerDirectory reproduces seed scenario 4 (spec §8): an
// extended-header SNES cartridge gated into the Nintendo Power
// directory probe, with a valid entry 0 footer and one used row.
func TestNintendoPowerDirectory(t *testing.T) {
	data := make([]byte, npDirOffset+npEntrySize*npEntryCount)
	hdr := data[0x7FB0 : 0x7FB0+0x30]
	copy(hdr[0x10:0x25], padTo("MENU PROGRAM", 21, ' '))
	hdr[0x25] = 0x20 // LoROM
	hdr[0x26] = 0x00
	hdr[0x27] = 0x08
	hdr[0x28] = 0x00
	hdr[0x29] = 0x00 // destination: Japan
	hdr[0x2A] = 0x33 // old_publisher_code: extended header present
	copy(hdr[0x00:0x02], []byte("01"))
	copy(hdr[0x02:0x06], []byte("MENU"))

	entry0 := data[npDirOffset : npDirOffset+npEntrySize]
	entry0[npOffDirectoryIndex] = 0
	copy(entry0[npOffGameCode:npOffGameCode+npGameCodeLen], "SHVC-AXXJ-  ")
	copy(entry0[npOffTitleSJIS:npOffTitleSJIS+npTitleSJISLen], padTo("TEST TITLE", npTitleSJISLen, 0))
	copy(entry0[npOffDate:npOffDate+npDateLen], "01/02/1997")
	copy(entry0[npOffTime:npOffTime+npTimeLen], "03:04:05")
	copy(entry0[npOffKioskID:npOffKioskID+npKioskIDLen], "NIN00001")
	copy(entry0[npEntrySize-len(npMulticassetteFooter):], npMulticassetteFooter)

	for i := 1; i < npEntryCount; i++ {
		data[npDirOffset+i*npEntrySize+npOffDirectoryIndex] = 0xFF // unused slot
	}

	r := newReader(data)
	info, err := Parse(r)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(info.NPEntries) != 1 {
		t.Fatalf("NPEntries = %d rows, want 1", len(info.NPEntries))
	}
	row := info.NPEntries[0]
	if row.Index != 0 {
		t.Errorf("Index = %d, want 0", row.Index)
	}
	if row.Timestamp == -1 {
		t.Error("Timestamp unexpectedly unparseable")
	}

	rec := BuildRecord(info)
	var found bool
	for _, tab := range rec.Fields.Tabs() {
		if tab == "NP" {
			found = true
			fields := rec.Fields.Fields(tab)
			if len(fields) != 1 || fields[0].Kind != core.FieldListData {
				t.Fatalf("NP tab fields = %+v, want one FieldListData", fields)
			}
			want := []string{"#", "Title", "Game Code", "Timestamp", "Kiosk ID"}
			if len(fields[0].ListHeaders) != len(want) {
				t.Fatalf("ListHeaders = %v, want %v", fields[0].ListHeaders, want)
			}
			if len(fields[0].ListRows) != 1 {
				t.Fatalf("ListRows = %d, want 1", len(fields[0].ListRows))
			}
		}
	}
	if !found {
		t.Fatal("secondary tab \"NP\" not found")
	}
}

func TestBuildRecordSNES(t *testing.T) {
	data := makeSyntheticSNES("RECORD TEST", 0x20)
	r := newReader(data)
	info, err := Parse(r)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	rec := BuildRecord(info)
	if !rec.IsValid {
		t.Error("IsValid = false, want true")
	}
	if rec.MimeType != "application/x-snes-rom" {
		t.Errorf("MimeType = %q", rec.MimeType)
	}
}

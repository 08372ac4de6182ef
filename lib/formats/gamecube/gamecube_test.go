package gamecube

import (
	"bytes"
	"testing"

	"github.com/sargunv/romcore/internal/byteorder"
	"github.com/sargunv/romcore/internal/stream"
)

func newReader(data []byte) stream.Reader {
	return stream.NewFileStream(bytes.NewReader(data), int64(len(data)), "test.gci")
}

func padRight(s string, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = 0x20
	}
	copy(out, s)
	return out
}

// makeSyntheticGCI builds a minimal valid GCI: a 64-byte direntry
// followed by blockCount*8192 bytes of data, with no icon or comment.
func makeSyntheticGCI(id6 string, blockCount uint16) []byte {
	d := make([]byte, direntrySize)
	copy(d[0:6], id6)
	d[0x06] = 0xFF // pad_00
	d[0x07] = 0    // bannerfmt: none
	copy(d[0x08:0x28], padRight("TEST GAME", 32))
	// lastmodified
	putBE32(d, 0x28, 12345)
	putBE32(d, 0x2C, 0xFFFFFFFF) // no icon
	putBE16(d, 0x30, 0)          // iconfmt
	putBE16(d, 0x32, 0)          // iconspeed
	d[0x34] = 0x04 // permission: global
	d[0x35] = 1    // copy times
	putBE16(d, 0x36, blockCount) // block
	putBE16(d, 0x38, blockCount) // length
	d[0x3A] = 0xFF
	d[0x3B] = 0xFF
	putBE32(d, 0x3C, 0xFFFFFFFF) // no comment

	data := make([]byte, int(blockCount)*8192)
	return append(d, data...)
}

func putBE32(b []byte, off int, v uint32) {
	b[off] = byte(v >> 24)
	b[off+1] = byte(v >> 16)
	b[off+2] = byte(v >> 8)
	b[off+3] = byte(v)
}

func putBE16(b []byte, off int, v uint16) {
	b[off] = byte(v >> 8)
	b[off+1] = byte(v)
}

func TestParseGCIBasic(t *testing.T) {
	data := makeSyntheticGCI("GALE01", 1)
	r := newReader(data)
	info, err := Parse(r, SaveTypeGCI, 0)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if info.DirEntry.ID6 != "GALE01" {
		t.Errorf("ID6 = %q, want GALE01", info.DirEntry.ID6)
	}
	if info.DirEntry.GameCode != "GALE" {
		t.Errorf("GameCode = %q, want GALE", info.DirEntry.GameCode)
	}
	if info.DirEntry.Company != "01" {
		t.Errorf("Company = %q, want 01", info.DirEntry.Company)
	}
	if info.DirEntry.IconAddr != 0xFFFFFFFF {
		t.Errorf("IconAddr = %#x, want no-icon sentinel", info.DirEntry.IconAddr)
	}
}

func TestParseGCIRejectsBadPadding(t *testing.T) {
	data := makeSyntheticGCI("GALE01", 1)
	data[0x06] = 0x00 // corrupt pad_00
	r := newReader(data)
	if _, err := Parse(r, SaveTypeGCI, 0); err == nil {
		t.Fatal("Parse: expected error for corrupt padding byte")
	}
}

func TestParseGCIRejectsBlockMismatch(t *testing.T) {
	data := makeSyntheticGCI("GALE01", 1)
	putBE16(data, 0x38, 2) // claim 2 blocks, but only 1 block of data present
	r := newReader(data)
	if _, err := Parse(r, SaveTypeGCI, 0); err == nil {
		t.Fatal("Parse: expected error for block count mismatch")
	}
}

// makeSyntheticSAV builds a minimal valid SAV (MaxDrive). The logical
// field layout is identical to GCI/GCS (big-endian), but the format
// exchanges each 16-bit field's two bytes before the data reaches
// disk; Swap16 over [0x06, 0x40) reproduces that on-disk transform
// from the logical big-endian layout built below.
func makeSyntheticSAV(id6 string, blockCount uint16) []byte {
	d := make([]byte, direntrySize)
	copy(d[0:6], id6)
	copy(d[0x08:0x28], padRight("TEST GAME", 32))

	d[0x06] = 0xFF // pad_00 (logical position)
	d[0x07] = 0    // bannerfmt (logical position)
	putBE32(d, 0x28, 12345)
	putBE32(d, 0x2C, 0xFFFFFFFF)
	putBE16(d, 0x30, 0)
	putBE16(d, 0x32, 0)
	d[0x34] = 0x04 // permission (logical position)
	d[0x35] = 1    // copytimes (logical position)
	putBE16(d, 0x36, blockCount)
	putBE16(d, 0x38, blockCount)
	d[0x3A] = 0xFF
	d[0x3B] = 0xFF
	putBE32(d, 0x3C, 0xFFFFFFFF)

	byteorder.Swap16(d[0x06:0x40])

	data := make([]byte, int(blockCount)*8192)
	return append(d, data...)
}

func TestParseSAVBasic(t *testing.T) {
	data := makeSyntheticSAV("GALE01", 1)
	r := newReader(data)
	info, err := Parse(r, SaveTypeSAV, 0)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if info.DirEntry.ID6 != "GALE01" {
		t.Errorf("ID6 = %q, want GALE01", info.DirEntry.ID6)
	}
	if info.DirEntry.Permission != 0x04 {
		t.Errorf("Permission = %#x, want 0x04", info.DirEntry.Permission)
	}
	if info.DirEntry.CopyTimes != 1 {
		t.Errorf("CopyTimes = %d, want 1", info.DirEntry.CopyTimes)
	}
	if info.DirEntry.IconAddr != 0xFFFFFFFF {
		t.Errorf("IconAddr = %#x, want no-icon sentinel", info.DirEntry.IconAddr)
	}
}

func TestParseGCSNoBlockSizeCheck(t *testing.T) {
	// GCS block counts are not checked against the data size (the
	// format's length field may be inaccurate); only length != 0 is
	// required.
	data := makeSyntheticGCI("GALE01", 1)
	putBE16(data, 0x38, 99) // implausible block count
	r := newReader(data)
	if _, err := Parse(r, SaveTypeGCS, 0); err != nil {
		t.Fatalf("Parse: %v", err)
	}
}

func TestBuildRecordGCI(t *testing.T) {
	data := makeSyntheticGCI("GALE01", 1)
	r := newReader(data)
	info, err := Parse(r, SaveTypeGCI, 0)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	rec := BuildRecord(r, info)
	if !rec.IsValid {
		t.Error("IsValid = false, want true")
	}
	if rec.MimeType != "application/x-gamecube-save" {
		t.Errorf("MimeType = %q", rec.MimeType)
	}
}

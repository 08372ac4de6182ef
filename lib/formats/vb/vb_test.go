package vb

import (
	"bytes"
	"testing"

	"github.com/sargunv/romcore/internal/stream"
	"github.com/sargunv/romcore/lib/core"
)

func makeSyntheticVB(title, maker, game string, version byte) []byte {
	data := make([]byte, 1024+headerSize)
	h := data[len(data)-headerSize:]
	copy(h[0:21], padRight(title, 21))
	copy(h[25:27], padRight(maker, 2))
	copy(h[27:31], padRight(game, 4))
	h[31] = version
	return data
}

func padRight(s string, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = ' '
	}
	copy(out, s)
	return out
}

func newReader(data []byte) stream.Reader {
	return stream.NewFileStream(bytes.NewReader(data), int64(len(data)), "test.vb")
}

func TestParseVB(t *testing.T) {
	data := makeSyntheticVB("MARIO TENNIS", "VT", "VTNE", 1)
	r := newReader(data)
	info, err := Parse(r)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if info.MakerCode != "VT" {
		t.Errorf("MakerCode = %q, want VT", info.MakerCode)
	}
	if info.GameCode != "VTNE" {
		t.Errorf("GameCode = %q, want VTNE", info.GameCode)
	}
	if info.Version != 1 {
		t.Errorf("Version = %d, want 1", info.Version)
	}
	if info.Region != core.RegionFromID4Byte('E') {
		t.Errorf("Region mismatch")
	}
}

func TestParseTooSmall(t *testing.T) {
	data := make([]byte, 10)
	r := newReader(data)
	if _, err := Parse(r); err == nil {
		t.Fatal("Parse: expected error for undersized file")
	}
}

func TestBuildRecordVB(t *testing.T) {
	data := makeSyntheticVB("GALACTIC PINBALL", "VT", "VTGE", 0)
	r := newReader(data)
	info, err := Parse(r)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	rec := BuildRecord(info)
	if !rec.IsValid {
		t.Error("IsValid = false, want true")
	}
	if rec.MimeType != "application/x-virtual-boy-rom" {
		t.Errorf("MimeType = %q", rec.MimeType)
	}
}

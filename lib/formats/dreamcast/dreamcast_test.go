package dreamcast

import (
	"bytes"
	"testing"

	"github.com/sargunv/romcore/internal/stream"
)

func newReader(data []byte) stream.Reader {
	return stream.NewFileStream(bytes.NewReader(data), int64(len(data)), "test.vms")
}

func makeSyntheticVMS(desc, app string, iconCount int) []byte {
	icon := make([]byte, iconPaletteSize+iconDataSize*iconCount)
	header := make([]byte, vmsHeaderSize)
	copy(header[0:16], padRight(desc, 16))
	copy(header[48:64], padRight(app, 16))
	header[64] = byte(iconCount)
	return append(header, icon...)
}

func padRight(s string, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = ' '
	}
	copy(out, s)
	return out
}

func TestIsSupportedByExtension(t *testing.T) {
	if _, ok := IsSupported(vmsHeaderSize, ".vms"); !ok {
		t.Error("IsSupported(.vms) = false, want true")
	}
	if _, ok := IsSupported(vmiHeaderSize, ".vmi"); !ok {
		t.Error("IsSupported(.vmi) = false, want true")
	}
	if _, ok := IsSupported(10, ".vms"); ok {
		t.Error("IsSupported(.vms, too small) = true, want false")
	}
}

func TestParseVMS(t *testing.T) {
	data := makeSyntheticVMS("TEST SAVE", "SONIC ADVENTURE", 1)
	r := newReader(data)
	info, err := Parse(r, KindVMS)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if info.VMS.VMSDescription != "TEST SAVE" {
		t.Errorf("VMSDescription = %q, want TEST SAVE", info.VMS.VMSDescription)
	}
	if info.VMS.IconCount != 1 {
		t.Errorf("IconCount = %d, want 1", info.VMS.IconCount)
	}
}

func TestParseVMI(t *testing.T) {
	h := make([]byte, vmiHeaderSize)
	copy(h[4:36], padRight("A Save File", 32))
	copy(h[74:82], padRight("TESTRES", 8))
	copy(h[82:94], padRight("TEST.VMS", 12))
	h[68] = 0xE0 // year low byte (2016 = 0x7E0), arbitrary but valid month/day below
	h[69] = 0x07
	h[70] = 6  // month
	h[71] = 15 // day
	h[98] = 0x02 // mode: game file

	r := newReader(h)
	info, err := Parse(r, KindVMI)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if info.VMI.VMSFilename != "TEST.VMS" {
		t.Errorf("VMSFilename = %q, want TEST.VMS", info.VMI.VMSFilename)
	}
	if !info.VMI.IsGame {
		t.Error("IsGame = false, want true")
	}
}

func TestParseDCI(t *testing.T) {
	dirent := make([]byte, dirEntSize)
	vmsBody := makeSyntheticVMS("DCI SAVE", "DCI APP", 1)

	// Byteswap each 32-bit word of the VMS body the way a real DCI file
	// stores it so that parseDCI's un-swap recovers the original layout.
	swapped := append([]byte(nil), vmsBody...)
	swapWordsTest(swapped)

	data := append(dirent, swapped...)
	r := newReader(data)
	info, err := Parse(r, KindDCI)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if info.VMS == nil {
		t.Fatal("VMS header not decoded from DCI")
	}
	if info.VMS.VMSDescription != "DCI SAVE" {
		t.Errorf("VMSDescription = %q, want DCI SAVE", info.VMS.VMSDescription)
	}
}

// swapWordsTest mirrors internal/byteorder.Swap32 for test-local
// fixture construction without importing internal test helpers twice.
func swapWordsTest(b []byte) {
	for i := 0; i+4 <= len(b); i += 4 {
		b[i], b[i+1], b[i+2], b[i+3] = b[i+3], b[i+2], b[i+1], b[i]
	}
}

func TestBuildRecordVMS(t *testing.T) {
	data := makeSyntheticVMS("RECORD TEST", "APP", 1)
	r := newReader(data)
	info, err := Parse(r, KindVMS)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	rec := BuildRecord(info)
	if !rec.IsValid {
		t.Error("IsValid = false, want true")
	}
}

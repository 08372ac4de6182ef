package byteorder

// BCDToDecimal converts one packed-BCD byte (two decimal digits) to its
// decimal value. Values with non-BCD nibbles return -1.
func BCDToDecimal(b byte) int {
	hi := b >> 4
	lo := b & 0x0F
	if hi > 9 || lo > 9 {
		return -1
	}
	return int(hi)*10 + int(lo)
}

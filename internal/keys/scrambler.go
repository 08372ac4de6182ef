package keys

import "math/big"

// scrambleConstant is the fixed 128-bit mixing constant the 3DS AES
// engine uses to derive KeyNormal from KeyX/KeyY. Public, well-known
// constant (not a secret key) -- see spec §2 KeyScrambler and glossary.
var scrambleConstant = mustBig("1FF9E9AAC5FE0408024591DC5D52768A")

var modulus = new(big.Int).Lsh(big.NewInt(1), 128)

func mustBig(hexStr string) *big.Int {
	n, ok := new(big.Int).SetString(hexStr, 16)
	if !ok {
		panic("keys: bad scramble constant")
	}
	return n
}

// Scramble combines keyX and keyY into KeyNormal:
//
//	KeyNormal = rol128(rol128(keyX, 2) xor keyY + C, 87)
//
// the fixed mixing function spec §2 KeyScrambler describes.
func Scramble(keyX, keyY [16]byte) [16]byte {
	x := new(big.Int).SetBytes(keyX[:])
	y := new(big.Int).SetBytes(keyY[:])

	rolX := rol128(x, 2)
	mixed := new(big.Int).Xor(rolX, y)
	mixed.Add(mixed, scrambleConstant)
	mixed.Mod(mixed, modulus)

	result := rol128(mixed, 87)
	return to16(result)
}

// rol128 rotates a 128-bit value left by n bits.
func rol128(v *big.Int, n uint) *big.Int {
	v = new(big.Int).Mod(v, modulus)
	left := new(big.Int).Lsh(v, n)
	right := new(big.Int).Rsh(v, 128-n)
	out := new(big.Int).Or(left, right)
	return out.Mod(out, modulus)
}

func to16(v *big.Int) [16]byte {
	var out [16]byte
	b := v.Bytes()
	copy(out[16-len(b):], b)
	return out
}

package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// CTRCipher decrypts AES-CTR in place, used by the NCCH reader for
// per-section keystream generation (spec §4.3).
type CTRCipher struct {
	block cipher.Block
}

// NewCTRCipher constructs a CTR cipher under key.
func NewCTRCipher(key [16]byte) (*CTRCipher, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("keys: aes-ctr cipher: %w", err)
	}
	return &CTRCipher{block: block}, nil
}

// DecryptAt decrypts len(dst) bytes whose absolute block offset within
// the keystream is blockOffset, given the 16-byte big-endian counter
// value for block 0 (counter0). The counter is advanced by blockOffset
// blocks before decrypting, matching NCCH's "counters advance by one
// per 16-byte block" rule (spec §4.3).
func (c *CTRCipher) DecryptAt(dst, src []byte, counter0 [16]byte, blockOffset uint64) {
	ctr := addCounter(counter0, blockOffset)
	stream := cipher.NewCTR(c.block, ctr[:])
	stream.XORKeyStream(dst, src)
}

// addCounter adds n to a 128-bit big-endian counter.
func addCounter(counter [16]byte, n uint64) [16]byte {
	carry := n
	for i := 15; i >= 0 && carry > 0; i-- {
		sum := uint64(counter[i]) + (carry & 0xFF)
		counter[i] = byte(sum)
		carry = carry>>8 + sum>>8
	}
	return counter
}

// CBCCipher decrypts AES-CBC, used for the CIA ticket title-key and
// title-content decryption (spec §4.3).
type CBCCipher struct {
	block cipher.Block
}

// NewCBCCipher constructs a CBC cipher under key.
func NewCBCCipher(key [16]byte) (*CBCCipher, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("keys: aes-cbc cipher: %w", err)
	}
	return &CBCCipher{block: block}, nil
}

// Decrypt decrypts src (a multiple of 16 bytes) with the given IV into
// a freshly allocated buffer; src is not mutated.
func (c *CBCCipher) Decrypt(src []byte, iv [16]byte) ([]byte, error) {
	if len(src)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("keys: aes-cbc src not block aligned: %d bytes", len(src))
	}
	dst := make([]byte, len(src))
	mode := cipher.NewCBCDecrypter(c.block, iv[:])
	mode.CryptBlocks(dst, src)
	return dst, nil
}

// TitleKeyIV builds the IV for CIA title-key decryption: 8-byte
// big-endian title ID followed by 8 zero bytes (spec §4.3).
func TitleKeyIV(titleID uint64) [16]byte {
	var iv [16]byte
	for i := 0; i < 8; i++ {
		iv[i] = byte(titleID >> uint(56-8*i))
	}
	return iv
}

// ContentIV builds the IV for CIA content decryption: 2-byte big-endian
// content index followed by 14 zero bytes (spec §4.3).
func ContentIV(contentIndex uint16) [16]byte {
	var iv [16]byte
	iv[0] = byte(contentIndex >> 8)
	iv[1] = byte(contentIndex)
	return iv
}

// NCCHCounter builds the AES-CTR counter for an NCCH section: title ID
// (big-endian) in bytes 0-7, the section id byte in byte 8, then
// startBlock as a zero-padded big-endian value in the remaining seven
// bytes 9-15 (spec §4.3).
func NCCHCounter(titleID uint64, sectionID byte, startBlock uint32) [16]byte {
	var ctr [16]byte
	for i := 0; i < 8; i++ {
		ctr[i] = byte(titleID >> uint(56-8*i))
	}
	ctr[8] = sectionID
	ctr[12] = byte(startBlock >> 24)
	ctr[13] = byte(startBlock >> 16)
	ctr[14] = byte(startBlock >> 8)
	ctr[15] = byte(startBlock)
	return ctr
}

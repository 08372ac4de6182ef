package n3ds

import "github.com/sargunv/romcore/internal/keys"

// loadKeyNormal resolves KeyNormal-{index} for a given key prefix
// ("ctr-" retail or "ctr-dev-" debug), preferring a directly supplied
// KeyNormal entry and falling back to scrambling KeyX with KeyY-{index}
// (spec §4.3/§6): NCCHReader.cpp and CIAReader.cpp both follow this same
// two-step lookup.
func loadKeyNormal(prefix string, index int) ([16]byte, bool) {
	name := keys.KeyName(prefix, "Normal", index)
	if k, result := keys.Global().AskAndVerify(name); result == keys.VerifyOK {
		return k, true
	}

	keyX, resX := keys.Global().AskAndVerify(keys.KeyName(prefix, "X", 0))
	if resX != keys.VerifyOK {
		return [16]byte{}, false
	}
	keyY, resY := keys.Global().AskAndVerify(keys.KeyName(prefix, "Y", index))
	if resY != keys.VerifyOK {
		return [16]byte{}, false
	}
	return keys.Scramble(keyX, keyY), true
}

// SPDX-License-Identifier: MPL-2.0

package transcode

// appendI8 appends the UTF-8-Mod (I8) encoding of r. Trailing bytes carry five
// payload bits each (101xxxxx); code points below 0xA0 are a single byte.
func appendI8(dst []byte, r rune) []byte {
	cp := uint32(r)
	switch {
	case cp < 0xA0:
		return append(dst, byte(cp))
	case cp < 0x400:
		return append(dst, 0xC0|byte(cp>>5), trail(cp))
	case cp < 0x4000:
		return append(dst, 0xE0|byte(cp>>10), trail(cp>>5), trail(cp))
	case cp < 0x40000:
		return append(dst, 0xF0|byte(cp>>15), trail(cp>>10), trail(cp>>5), trail(cp))
	default:
		return append(dst, 0xF8|byte(cp>>20), trail(cp>>15), trail(cp>>10), trail(cp>>5), trail(cp))
	}
}

func trail(cp uint32) byte {
	return 0xA0 | byte(cp&0x1F)
}

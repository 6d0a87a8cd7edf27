// Package bios embeds the 16 KiB BIOS image loaded at 0x00000000, per
// spec §6. Real GBA BIOS firmware is Nintendo's copyrighted boot ROM and is
// never redistributed in source form; bios.bin here is a 16 KiB
// placeholder (all zero bytes) so the module is self-contained and
// reproducibly buildable. A real BIOS dump, which must be supplied by the
// user from their own hardware, can be substituted at the same path and
// size without any code change; internal/emu also accepts an explicit
// -bios flag to load one from disk instead of this embedded placeholder.
package bios

import _ "embed"

//go:embed bios.bin
var image []byte

// Size is the fixed size of the BIOS address window (§4.2).
const Size = 0x4000

// Image returns a private copy of the embedded BIOS bytes so callers can't
// mutate the shared embedded array.
func Image() []byte {
	out := make([]byte, Size)
	copy(out, image)
	return out
}

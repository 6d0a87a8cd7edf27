// Package lcd is the external LCD collaborator described in spec §6: a
// black box that consumes palette/VRAM/OAM writes and register writes and
// produces the per-scanline state-change events the bus needs for DMA and
// IRQ timing. Rendering a real pixel image is out of scope (§1 Non-goals);
// this package tracks exactly the state §4.1 and §4.7 need to drive DMA
// requests and IRQ requests, in the same register-file style the teacher's
// internal/ppu package uses for the Game Boy's LCDC/STAT/LY.
package lcd

const (
	dotsPerLine  = 308
	hdrawDots    = 240
	visibleLines = 160
	totalLines   = 228
)

// Events reports state transitions produced by a single Step call.
type Events struct {
	VBlankEntered bool
	HBlankEntered bool
	VCountMatched bool
}

// DISPSTAT bit positions.
const (
	statVBlank      = 1 << 0
	statHBlank      = 1 << 1
	statVCount      = 1 << 2
	statVBlankIRQEn = 1 << 3
	statHBlankIRQEn = 1 << 4
	statVCountIRQEn = 1 << 5
)

// LCD owns palette RAM, VRAM, OAM and the DISPCNT/DISPSTAT/VCOUNT family of
// registers plus the BG/window/blend/mosaic/affine registers. It is a pure
// state machine: Step advances it by one dot (the bus calls Step once every
// four master cycles, per §4.1).
type LCD struct {
	Palette [1024]byte
	VRAM    [0x18000]byte // 96 KiB: BG/OBJ character and screen data
	OAM     [1024]byte

	dispcnt  uint16
	dispstat uint16
	vcount   uint16
	vcountLY uint16 // VCOUNT-match trigger value (DISPSTAT bits 8-15)

	bgcnt   [4]uint16
	bgofs   [4][2]uint16 // [bg][0]=H, [bg][1]=V
	bgaff   [2]affineParams
	win     [2][2]byte // win[n][0]=H(left<<8|right), stored raw as written
	winH    [2]uint16
	winV    [2]uint16
	winin   uint16
	winout  uint16
	mosaic  uint16
	bldcnt  uint16
	bldalph uint16
	bldy    uint16

	dot int
}

type affineParams struct {
	pa, pb, pc, pd uint16
	x, y           uint32
}

func New() *LCD { return &LCD{} }

// Step advances the LCD by one dot (4 master cycles) and returns any
// state-change events that occurred on this dot.
func (l *LCD) Step() Events {
	var ev Events

	l.dot++
	if l.dot == hdrawDots && l.vcount < visibleLines {
		l.dispstat |= statHBlank
		ev.HBlankEntered = true
	}
	if l.dot >= dotsPerLine {
		l.dot = 0
		l.dispstat &^= statHBlank
		l.vcount++
		if l.vcount == visibleLines {
			l.dispstat |= statVBlank
			ev.VBlankEntered = true
		}
		if l.vcount >= totalLines {
			l.vcount = 0
			l.dispstat &^= statVBlank
		}
		if l.vcount == l.vcountLY {
			l.dispstat |= statVCount
			ev.VCountMatched = true
		} else {
			l.dispstat &^= statVCount
		}
	}
	return ev
}

// VBlankIRQEnabled/HBlankIRQEnabled/VCountIRQEnabled let the bus gate its
// own IRQ requests by the LCD's own enable bits, per §6.
func (l *LCD) VBlankIRQEnabled() bool { return l.dispstat&statVBlankIRQEn != 0 }
func (l *LCD) HBlankIRQEnabled() bool { return l.dispstat&statHBlankIRQEn != 0 }
func (l *LCD) VCountIRQEnabled() bool { return l.dispstat&statVCountIRQEn != 0 }

func (l *LCD) VCount() uint16 { return l.vcount }

// Register read/write: DISPCNT=0x000, DISPSTAT=0x004, VCOUNT=0x006,
// BG0CNT..BG3CNT=0x008,0x00A,0x00C,0x00E, BGxHOFS/VOFS=0x010..0x01E,
// BG2/3 affine=0x020..0x03F, WIN0H/WIN1H=0x040/0x042, WIN0V/WIN1V=0x044/0x046,
// WININ=0x048, WINOUT=0x04A, MOSAIC=0x04C, BLDCNT=0x050, BLDALPHA=0x052,
// BLDY=0x054. Offsets are relative to the I/O block base (0x04000000).
func (l *LCD) ReadReg16(offset uint32) uint16 {
	switch {
	case offset == 0x000:
		return l.dispcnt
	case offset == 0x004:
		return l.dispstat | l.vcountLY<<8
	case offset == 0x006:
		return l.vcount
	case offset >= 0x008 && offset <= 0x00E:
		return l.bgcnt[(offset-0x008)/2]
	case offset >= 0x048 && offset <= 0x04A:
		if offset == 0x048 {
			return l.winin
		}
		return l.winout
	case offset == 0x04C:
		return l.mosaic
	case offset == 0x050:
		return l.bldcnt
	case offset == 0x052:
		return l.bldalph
	case offset == 0x054:
		return l.bldy
	default:
		return 0
	}
}

func (l *LCD) WriteReg16(offset uint32, v uint16) {
	switch {
	case offset == 0x000:
		l.dispcnt = v
	case offset == 0x004:
		l.dispstat = (l.dispstat & (statVBlank | statHBlank | statVCount)) | (v &^ (statVBlank | statHBlank | statVCount))
		l.vcountLY = v >> 8
	case offset >= 0x008 && offset <= 0x00E:
		l.bgcnt[(offset-0x008)/2] = v
	case offset >= 0x010 && offset <= 0x01E:
		bg := (offset - 0x010) / 4
		axis := ((offset - 0x010) / 2) % 2
		l.bgofs[bg][axis] = v & 0x01FF
	case offset >= 0x020 && offset <= 0x03F:
		l.writeAffine(offset, v)
	case offset == 0x040:
		l.winH[0] = v
	case offset == 0x042:
		l.winH[1] = v
	case offset == 0x044:
		l.winV[0] = v
	case offset == 0x046:
		l.winV[1] = v
	case offset == 0x048:
		l.winin = v
	case offset == 0x04A:
		l.winout = v
	case offset == 0x04C:
		l.mosaic = v
	case offset == 0x050:
		l.bldcnt = v
	case offset == 0x052:
		l.bldalph = v
	case offset == 0x054:
		l.bldy = v
	}
}

func (l *LCD) writeAffine(offset uint32, v uint16) {
	bg := 0
	if offset >= 0x030 {
		bg = 1
	}
	rel := (offset - 0x020) % 0x10
	a := &l.bgaff[bg]
	switch {
	case rel == 0x00:
		a.pa = v
	case rel == 0x02:
		a.pb = v
	case rel == 0x04:
		a.pc = v
	case rel == 0x06:
		a.pd = v
	case rel == 0x08:
		a.x = (a.x &^ 0xFFFF) | uint32(v)
	case rel == 0x0A:
		a.x = (a.x &^ 0xFFFF0000) | uint32(v)<<16
	default:
		if rel == 0x0C {
			a.y = (a.y &^ 0xFFFF) | uint32(v)
		} else {
			a.y = (a.y &^ 0xFFFF0000) | uint32(v)<<16
		}
	}
}

// Palette/VRAM/OAM byte/halfword/word access. Byte writes to VRAM and
// Palette are logged by the caller (bus) and applied here at halfword
// granularity (§4.2): a byte write duplicates into both bytes of its
// containing halfword, which is the real hardware's documented behavior
// for those two regions.
func (l *LCD) ReadPalette8(off uint32) byte  { return l.Palette[off%1024] }
func (l *LCD) ReadPalette16(off uint32) uint16 {
	off &= 1023
	return uint16(l.Palette[off]) | uint16(l.Palette[off+1])<<8
}
func (l *LCD) WritePalette16(off uint32, v uint16) {
	off &= 1023
	off &^= 1
	l.Palette[off] = byte(v)
	l.Palette[off+1] = byte(v >> 8)
}
func (l *LCD) WritePaletteByteAsHalfword(off uint32, v byte) {
	l.WritePalette16(off, uint16(v)|uint16(v)<<8)
}

func (l *LCD) vramOffset(off uint32) uint32 {
	// Second half (0x10000-0x17FFF) mirrors into the 0x10000-0x1FFFF window
	// with a 32 KiB stride (§4.2).
	off %= 0x20000
	if off >= 0x18000 {
		off -= 0x8000
	}
	return off
}

func (l *LCD) ReadVRAM8(off uint32) byte { return l.VRAM[l.vramOffset(off)] }
func (l *LCD) ReadVRAM16(off uint32) uint16 {
	o := l.vramOffset(off) &^ 1
	return uint16(l.VRAM[o]) | uint16(l.VRAM[o+1])<<8
}
func (l *LCD) WriteVRAM16(off uint32, v uint16) {
	o := l.vramOffset(off) &^ 1
	l.VRAM[o] = byte(v)
	l.VRAM[o+1] = byte(v >> 8)
}
func (l *LCD) WriteVRAMByteAsHalfword(off uint32, v byte) {
	l.WriteVRAM16(off, uint16(v)|uint16(v)<<8)
}

func (l *LCD) ReadOAM8(off uint32) byte { return l.OAM[off%1024] }
func (l *LCD) ReadOAM16(off uint32) uint16 {
	off %= 1024
	off &^= 1
	return uint16(l.OAM[off]) | uint16(l.OAM[off+1])<<8
}
func (l *LCD) WriteOAM16(off uint32, v uint16) {
	off %= 1024
	off &^= 1
	l.OAM[off] = byte(v)
	l.OAM[off+1] = byte(v >> 8)
}

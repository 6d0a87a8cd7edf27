// Package bus implements the GBA memory map described in spec §3/§4.1-§4.3:
// address decode, per-region wait-state accounting, the open-bus latches,
// the 5-deep IRQ sync buffer, and the wiring between the DMA engine, the
// four timers, and the LCD/APU/keypad/cartridge collaborators. The overall
// shape - one struct owning every subsystem, a single Step advancing all of
// them together, gob-based SaveState/LoadState - follows the teacher's
// internal/bus/bus.go, generalized from the Game Boy's much smaller memory
// map to the GBA's 28-bit address space.
package bus

import (
	"bytes"
	"encoding/gob"
	"log"

	"github.com/retropix/gbacore/internal/apu"
	"github.com/retropix/gbacore/internal/bios"
	"github.com/retropix/gbacore/internal/cart"
	"github.com/retropix/gbacore/internal/dma"
	"github.com/retropix/gbacore/internal/keypad"
	"github.com/retropix/gbacore/internal/lcd"
	"github.com/retropix/gbacore/internal/timer"
)

// AccessType mirrors internal/cpu's pipeline access classification; Read/
// Write primitives use it to decide the sequential-vs-non-sequential
// GamePak wait-state cost (§4.2).
type AccessType int

const (
	NonSequential AccessType = iota
	Sequential
)

const (
	ewramSize = 0x40000 // 256 KiB
	iwramSize = 0x8000  // 32 KiB

	interruptSyncDepth = 5 // §3, §9: must stay 5 to preserve 4-cycle IRQ latency
)

// IRQ bit positions within IE/IF, matching real hardware.
const (
	IRQVBlank = 1 << iota
	IRQHBlank
	IRQVCount
	IRQTimer0
	IRQTimer1
	IRQTimer2
	IRQTimer3
	IRQSerial
	IRQDMA0
	IRQDMA1
	IRQDMA2
	IRQDMA3
	IRQKeypad
	IRQGamePak
)

// Bus is the memory-mapped owner of every GBA subsystem outside the CPU.
type Bus struct {
	bios  []byte
	ewram [ewramSize]byte
	iwram [iwramSize]byte

	cart *cart.Cartridge

	lcd    *lcd.LCD
	apu    *apu.APU
	dma    *dma.Controller
	timers *timer.Controller
	keys   *keypad.Keypad

	ie  uint16
	ime bool

	// irqSync is the fixed-depth delay line from spec §3/§4.1: new IRQ
	// requests are written to index 0 every step, and index
	// interruptSyncDepth-1 is what the CPU actually observes.
	irqSync [interruptSyncDepth]uint16

	waitcnt uint16

	openBusWord uint32
	iwramLatch  uint32 // byte-granular merge latch
	biosLatch   uint32 // last-fetched BIOS opcode

	pcInBIOS func() bool // CPU-supplied predicate: is PC currently executing from BIOS?

	postflg byte
	haltcnt byte
	halted  bool

	cycleCount uint64

	lcdAccum int // master cycles accumulated toward the next LCD dot (§4.1: every 4 cycles)

	prefetchRun int // consecutive sequential ROM accesses since the last non-sequential one (waitstate.go)
}

// New constructs a Bus with an embedded placeholder BIOS and the given
// cartridge.
func New(c *cart.Cartridge) *Bus {
	b := &Bus{
		cart:   c,
		lcd:    lcd.New(),
		apu:    apu.New(),
		dma:    dma.NewController(),
		timers: timer.NewController(),
		keys:   keypad.New(),
	}
	b.bios = bios.Image()
	b.pcInBIOS = func() bool { return false }
	return b
}

// SetPCInBIOSPredicate lets the CPU tell the bus whether the program
// counter currently sits inside the BIOS region, so out-of-execution BIOS
// reads can return the latched last-fetched opcode instead of live bytes
// (§4.2).
func (b *Bus) SetPCInBIOSPredicate(f func() bool) { b.pcInBIOS = f }

// LoadBIOS replaces the embedded placeholder BIOS image with data supplied
// by the host (a real dump the user owns), per §6: "a 16 KiB static byte
// blob embedded at build time, loaded at 0x00000000" - this is the one
// exception, wired through internal/emu's -bios flag. data shorter than
// bios.Size is zero-padded; longer data is truncated.
func (b *Bus) LoadBIOS(data []byte) {
	buf := make([]byte, bios.Size)
	copy(buf, data)
	b.bios = buf
}

func (b *Bus) LCD() *lcd.LCD         { return b.lcd }
func (b *Bus) APU() *apu.APU         { return b.apu }
func (b *Bus) Keypad() *keypad.Keypad { return b.keys }
func (b *Bus) Cart() *cart.Cartridge { return b.cart }
func (b *Bus) CycleCount() uint64    { return b.cycleCount }

// IE/IME accessors for the CPU's exception-dispatch logic (§4.6).
func (b *Bus) IE() uint16        { return b.ie }
func (b *Bus) SetIE(v uint16)    { b.ie = v & 0x3FFF }
func (b *Bus) IME() bool         { return b.ime }
func (b *Bus) SetIME(v bool)     { b.ime = v }

// PendingIRQ returns the tail of the sync buffer: the set of interrupts
// currently visible to the CPU, four cycles after they were raised (§3).
func (b *Bus) PendingIRQ() uint16 { return b.irqSync[interruptSyncDepth-1] }

// raiseIRQ ORs a bit into the head of the sync buffer (§4.1 step 2).
func (b *Bus) raiseIRQ(bit uint16) { b.irqSync[0] |= bit }

// Halted reports whether HALTCNT has put the CPU to sleep. The CPU's Step
// loop polls this instead of fetching while true.
func (b *Bus) Halted() bool { return b.halted }

// ClearHalt wakes the CPU; called once a pending IRQ is observed.
func (b *Bus) ClearHalt() { b.halted = false }

// Step advances the bus by exactly one master cycle, in the order fixed by
// spec §4.1: rotate the IRQ sync buffer, poll the keypad, step the timers,
// step the LCD every fourth cycle, step DMA, then increment the cycle
// counter.
func (b *Bus) Step() {
	for i := interruptSyncDepth - 1; i > 0; i-- {
		b.irqSync[i] = b.irqSync[i-1]
	}
	b.irqSync[0] = 0

	if b.keys.PollPendingInterrupt() {
		b.raiseIRQ(IRQKeypad)
	}

	timerOverflows := b.timers.Step(func(index int) {
		b.raiseIRQ(IRQTimer0 << uint(index))
	})
	b.apu.Step(timerOverflows)

	var ev lcd.Events
	b.lcdAccum++
	if b.lcdAccum == 4 {
		b.lcdAccum = 0
		ev = b.lcd.Step()
		if ev.VBlankEntered && b.lcd.VBlankIRQEnabled() {
			b.raiseIRQ(IRQVBlank)
		}
		if ev.HBlankEntered && b.lcd.HBlankIRQEnabled() {
			b.raiseIRQ(IRQHBlank)
		}
		if ev.VCountMatched && b.lcd.VCountIRQEnabled() {
			b.raiseIRQ(IRQVCount)
		}
	}

	dmaEvents := dma.Events{
		VBlankEntered:  ev.VBlankEntered,
		HBlankEntered:  ev.HBlankEntered,
		VCountMatched:  ev.VCountMatched,
		FIFOAWantsData: b.apu.FIFOAWantsDMA(),
		FIFOBWantsData: b.apu.FIFOBWantsDMA(),
	}
	b.dma.Step(b, dmaEvents, func(channel int) {
		b.raiseIRQ(IRQDMA0 << uint(channel))
	})

	b.cycleCount++
}

// --- region decode / wait states (§4.2) ---

const (
	regionBIOS = iota
	regionEWRAM
	regionIWRAM
	regionIO
	regionPalette
	regionVRAM
	regionOAM
	regionROM
	regionSRAM
	regionUnmapped
)

func regionOf(addr uint32) int {
	switch addr >> 24 {
	case 0x00:
		return regionBIOS
	case 0x02:
		return regionEWRAM
	case 0x03:
		return regionIWRAM
	case 0x04:
		return regionIO
	case 0x05:
		return regionPalette
	case 0x06:
		return regionVRAM
	case 0x07:
		return regionOAM
	case 0x08, 0x09, 0x0A, 0x0B, 0x0C, 0x0D:
		return regionROM
	case 0x0E, 0x0F:
		return regionSRAM
	default:
		return regionUnmapped
	}
}

// nonSeqCycles and the seqCyclesWS* pairs decode WAITCNT for the three GamePak
// wait-state regions (WS0/1/2) plus SRAM, matching the real register's bit layout: each region
// picks from {4,3,2,8} cycles non-sequential and a region-specific
// sequential pair.
var nonSeqCycles = [4]int{4, 3, 2, 8}
var seqCyclesWS0 = [2]int{2, 1}
var seqCyclesWS1 = [2]int{4, 1}
var seqCyclesWS2 = [2]int{8, 1}

func (b *Bus) romWaitStates(addr uint32, access AccessType) int {
	ws := ((addr >> 24) - 0x08) / 2 // 0x08-0x09 is WS0, 0x0A-0x0B is WS1, 0x0C-0x0D is WS2
	var nsShift, sShift uint
	var seqTable [2]int
	switch ws {
	case 0:
		nsShift, sShift, seqTable = 2, 4, seqCyclesWS0
	case 1:
		nsShift, sShift, seqTable = 5, 7, seqCyclesWS1
	default:
		nsShift, sShift, seqTable = 8, 10, seqCyclesWS2
	}
	if access == Sequential {
		return seqTable[(b.waitcnt>>sShift)&1]
	}
	return nonSeqCycles[(b.waitcnt>>nsShift)&3]
}

func (b *Bus) sramWaitStates() int {
	return nonSeqCycles[b.waitcnt&3]
}

// cyclesFor returns the number of step() calls a given-width access to addr
// costs, per the table in §4.2.
func (b *Bus) cyclesFor(addr uint32, width int, access AccessType) int {
	switch regionOf(addr) {
	case regionBIOS, regionIWRAM, regionIO, regionOAM:
		return 1
	case regionEWRAM:
		if width == 32 {
			return 6
		}
		return 3
	case regionPalette, regionVRAM:
		if width == 32 {
			return 2
		}
		return 1
	case regionROM:
		if width == 32 {
			// A 32-bit GamePak access is two 16-bit beats: one
			// non-sequential then one sequential (§4.2).
			return b.romAccessCycles(addr, NonSequential) + b.romAccessCycles(addr, Sequential)
		}
		return b.romAccessCycles(addr, access)
	case regionSRAM:
		return b.sramWaitStates()
	default:
		return 1
	}
}

func (b *Bus) spend(addr uint32, width int, access AccessType) {
	for i := 0; i < b.cyclesFor(addr, width, access); i++ {
		b.Step()
	}
}

// --- raw region accessors, side-effect free (the "debug read" helper from §4.3) ---

func (b *Bus) debugRead8(addr uint32) byte {
	switch regionOf(addr) {
	case regionBIOS:
		off := addr & 0x3FFF
		if b.pcInBIOS() {
			return b.bios[off]
		}
		return byte(b.biosLatch >> ((off & 3) * 8))
	case regionEWRAM:
		return b.ewram[addr&(ewramSize-1)]
	case regionIWRAM:
		return b.iwram[addr&(iwramSize-1)]
	case regionIO:
		return byte(b.readIO16(addr &^ 1) >> ((addr & 1) * 8))
	case regionPalette:
		return b.lcd.ReadPalette8(addr & 0x3FF)
	case regionVRAM:
		return b.lcd.ReadVRAM8(addr & 0x1FFFF)
	case regionOAM:
		return b.lcd.ReadOAM8(addr & 0x3FF)
	case regionROM:
		return b.cart.ReadROMByte(addr - 0x08000000)
	case regionSRAM:
		return b.cart.ReadSRAMByte(addr & 0xFFFF)
	default:
		return byte(b.openBusWord >> ((addr & 3) * 8))
	}
}

func (b *Bus) debugRead16(addr uint32) uint16 {
	addr &^= 1
	switch regionOf(addr) {
	case regionBIOS:
		off := addr & 0x3FFF
		if b.pcInBIOS() {
			return uint16(b.bios[off]) | uint16(b.bios[off+1])<<8
		}
		return uint16(b.biosLatch >> ((off & 2) * 8))
	case regionEWRAM:
		o := addr & (ewramSize - 1)
		return uint16(b.ewram[o]) | uint16(b.ewram[o+1])<<8
	case regionIWRAM:
		o := addr & (iwramSize - 1)
		return uint16(b.iwram[o]) | uint16(b.iwram[o+1])<<8
	case regionIO:
		return b.readIO16(addr)
	case regionPalette:
		return b.lcd.ReadPalette16(addr & 0x3FF)
	case regionVRAM:
		return b.lcd.ReadVRAM16(addr & 0x1FFFF)
	case regionOAM:
		return b.lcd.ReadOAM16(addr & 0x3FF)
	case regionROM:
		return b.cart.ReadROMHalfword(addr - 0x08000000)
	case regionSRAM:
		v := b.cart.ReadSRAMByte(addr & 0xFFFF)
		return uint16(v) | uint16(v)<<8
	default:
		return uint16(b.openBusWord >> ((addr & 2) * 8))
	}
}

func (b *Bus) debugRead32(addr uint32) uint32 {
	addr &^= 3
	lo := uint32(b.debugRead16(addr))
	hi := uint32(b.debugRead16(addr + 2))
	return lo | hi<<16
}

// --- CPU-facing Read/Write primitives (§4.3) ---

// Read8/Read16/Read32 perform a settled read, apply open-bus latching, and
// spend the region's wait-state cycles.
func (b *Bus) Read8(addr uint32, access AccessType) byte {
	v := b.debugRead8(addr)
	b.latchOpenBus(addr, uint32(v), 1)
	b.spend(addr, 8, access)
	return v
}

func (b *Bus) Read16(addr uint32, access AccessType) uint16 {
	addr &^= 1
	v := b.debugRead16(addr)
	b.latchOpenBus(addr, uint32(v), 2)
	b.spend(addr, 16, access)
	return v
}

// Read32 implements the unaligned-rotate behavior from §4.3/§8: an
// unaligned word load rotates the word-aligned read right by (addr&3)*8.
func (b *Bus) Read32(addr uint32, access AccessType) uint32 {
	rotateBytes := addr & 3
	aligned := addr &^ 3
	v := b.debugRead32(aligned)
	b.latchOpenBus(addr, v, 4)
	b.spend(addr, 32, access)
	if rotateBytes == 0 {
		return v
	}
	shift := rotateBytes * 8
	return (v >> shift) | (v << (32 - shift))
}

func (b *Bus) Write8(addr uint32, v byte, access AccessType) {
	b.writeByte(addr, v)
	b.spend(addr, 8, access)
}

func (b *Bus) Write16(addr uint32, v uint16, access AccessType) {
	addr &^= 1
	b.writeHalfword(addr, v)
	b.spend(addr, 16, access)
}

func (b *Bus) Write32(addr uint32, v uint32, access AccessType) {
	addr &^= 3
	if regionOf(addr) == regionIO {
		off := addr - 0x04000000
		if off == ioFIFOABase || off == ioFIFOBBase {
			b.writeIO32(off, v)
			b.spend(addr, 32, access)
			return
		}
	}
	b.writeHalfword(addr, uint16(v))
	b.writeHalfword(addr+2, uint16(v>>16))
	b.spend(addr, 32, access)
}

func (b *Bus) writeByte(addr uint32, v byte) {
	switch regionOf(addr) {
	case regionEWRAM:
		b.ewram[addr&(ewramSize-1)] = v
	case regionIWRAM:
		b.iwram[addr&(iwramSize-1)] = v
	case regionIO:
		cur := b.readIO16(addr &^ 1)
		if addr&1 == 0 {
			cur = (cur &^ 0xFF) | uint16(v)
		} else {
			cur = (cur &^ 0xFF00) | uint16(v)<<8
		}
		b.writeIO16(addr&^1, cur)
	case regionPalette:
		b.lcd.WritePaletteByteAsHalfword(addr&0x3FF, v)
	case regionVRAM:
		b.lcd.WriteVRAMByteAsHalfword(addr&0x1FFFF, v)
	case regionOAM:
		// Real hardware ignores OAM byte writes entirely.
	case regionSRAM:
		b.cart.WriteSRAMByte(addr&0xFFFF, v)
	case regionROM:
		// ROM is read-only except for EEPROM's serial protocol, which is
		// only addressed at halfword granularity.
	}
}

func (b *Bus) writeHalfword(addr uint32, v uint16) {
	addr &^= 1
	switch regionOf(addr) {
	case regionEWRAM:
		o := addr & (ewramSize - 1)
		b.ewram[o] = byte(v)
		b.ewram[o+1] = byte(v >> 8)
	case regionIWRAM:
		o := addr & (iwramSize - 1)
		b.iwram[o] = byte(v)
		b.iwram[o+1] = byte(v >> 8)
	case regionIO:
		b.writeIO16(addr, v)
	case regionPalette:
		b.lcd.WritePalette16(addr&0x3FF, v)
	case regionVRAM:
		b.lcd.WriteVRAM16(addr&0x1FFFF, v)
	case regionOAM:
		b.lcd.WriteOAM16(addr&0x3FF, v)
	case regionROM:
		b.cart.WriteROMHalfword(addr-0x08000000, v)
	case regionSRAM:
		b.cart.WriteSRAMByte(addr&0xFFFF, byte(v))
	}
}

// latchOpenBus updates the generic, IWRAM, and BIOS open-bus latches per
// §3/§4.2.
func (b *Bus) latchOpenBus(addr uint32, value uint32, width int) {
	switch regionOf(addr) {
	case regionBIOS:
		if b.pcInBIOS() {
			b.biosLatch = value
		}
	case regionIWRAM:
		shift := (addr & 3) * 8
		mask := uint32(0xFF)
		if width == 2 {
			mask = 0xFFFF
		} else if width == 4 {
			mask = 0xFFFFFFFF
		}
		b.iwramLatch = (b.iwramLatch &^ (mask << shift)) | (value << shift)
		b.openBusWord = b.iwramLatch
	default:
		b.openBusWord = value
	}
}

// --- dma.MemoryAccessor implementation: DMA always runs sequential-ish
// fixed-cost accesses of the underlying region, without the CPU's
// unaligned-rotate behavior (DMA always uses aligned addresses per §4.7). ---

func (b *Bus) DMARead16(addr uint32) uint16 {
	v := b.debugRead16(addr &^ 1)
	b.latchOpenBus(addr, uint32(v), 2)
	b.spend(addr, 16, Sequential)
	return v
}

func (b *Bus) DMARead32(addr uint32) uint32 {
	v := b.debugRead32(addr &^ 3)
	b.latchOpenBus(addr, v, 4)
	b.spend(addr, 32, Sequential)
	return v
}

func (b *Bus) DMAWrite16(addr uint32, v uint16) {
	b.writeHalfword(addr, v)
	b.spend(addr, 16, Sequential)
}

func (b *Bus) DMAWrite32(addr uint32, v uint32) {
	aligned := addr &^ 3
	if regionOf(aligned) == regionIO {
		off := aligned - 0x04000000
		if off == ioFIFOABase || off == ioFIFOBBase {
			b.writeIO32(off, v)
			b.spend(addr, 32, Sequential)
			return
		}
	}
	b.writeHalfword(aligned, uint16(v))
	b.writeHalfword(aligned+2, uint16(v>>16))
	b.spend(addr, 32, Sequential)
}

// Tick spends exactly one master cycle with no address decode, used by DMA
// when its source is below 0x02000000 and it substitutes read_latch for an
// actual bus read (§4.7, §7: "DMA source below 0x02000000... never fails").
func (b *Bus) Tick() { b.Step() }

// --- I/O register file ---

const (
	ioDISPCNTBase  = 0x000
	ioDISPSTATBase = 0x004
	ioBGBase       = 0x008
	ioWinBase      = 0x040
	ioBlendBase    = 0x050
	ioSoundBase    = 0x060
	ioFIFOABase    = 0x0A0
	ioFIFOBBase    = 0x0A4
	ioDMABase      = 0x0B0
	ioTimerBase    = 0x100
	ioKeypadBase   = 0x130
	ioIEBase       = 0x200
	ioIFBase       = 0x202
	ioWAITCNTBase  = 0x204
	ioIMEBase      = 0x208
	ioPOSTFLG      = 0x300
	ioHALTCNT      = 0x301
)

func (b *Bus) readIO16(addr uint32) uint16 {
	off := addr - 0x04000000
	switch {
	case off <= 0x05E:
		return b.lcd.ReadReg16(off)
	case off == ioSoundBase+4:
		return b.apu.ReadSoundCntL()
	case off == ioSoundBase+6:
		return b.apu.ReadSoundCntH()
	case off == ioSoundBase+8:
		return b.apu.ReadSoundCntX()
	case off == ioSoundBase+0x16:
		return b.apu.ReadSoundBias()
	case off >= ioDMABase && off < ioDMABase+0x30:
		return b.readDMAReg(off - ioDMABase)
	case off >= ioTimerBase && off < ioTimerBase+0x10:
		return b.readTimerReg(off - ioTimerBase)
	case off == ioKeypadBase:
		return b.keys.ReadKeyInput()
	case off == ioKeypadBase+2:
		return b.keys.ReadKeyCnt()
	case off == ioIEBase:
		return b.ie
	case off == ioIFBase:
		return b.PendingIRQ()
	case off == ioWAITCNTBase:
		return b.waitcnt
	case off == ioIMEBase:
		if b.ime {
			return 1
		}
		return 0
	default:
		return uint16(b.openBusWord >> ((off & 2) * 8))
	}
}

func (b *Bus) writeIO16(addr uint32, v uint16) {
	off := addr - 0x04000000
	switch {
	case off <= 0x05E:
		b.lcd.WriteReg16(off, v)
	case off == ioSoundBase+4:
		b.apu.WriteSoundCntL(v)
	case off == ioSoundBase+6:
		b.apu.WriteSoundCntH(v)
	case off == ioSoundBase+8:
		b.apu.WriteSoundCntX(v)
	case off == ioSoundBase+0x16:
		b.apu.WriteSoundBias(v)
	case off == ioFIFOABase || off == ioFIFOABase+2:
		// Handled via 32-bit write below; ignore stray 16-bit halves.
	case off == ioFIFOBBase || off == ioFIFOBBase+2:
	case off >= ioDMABase && off < ioDMABase+0x30:
		b.writeDMAReg(off-ioDMABase, v)
	case off >= ioTimerBase && off < ioTimerBase+0x10:
		b.writeTimerReg(off-ioTimerBase, v)
	case off == ioKeypadBase+2:
		b.keys.WriteKeyCnt(v)
	case off == ioIEBase:
		b.SetIE(v)
	case off == ioIFBase:
		// Writing IF acknowledges (clears) the written bits in every slot
		// of the sync buffer, matching real hardware's write-1-to-clear.
		for i := range b.irqSync {
			b.irqSync[i] &^= v
		}
	case off == ioWAITCNTBase:
		b.waitcnt = v
	case off == ioIMEBase:
		b.ime = v&1 != 0
	case off == ioPOSTFLG:
		b.postflg = byte(v)
	case off == ioHALTCNT:
		b.haltcnt = byte(v)
		b.halted = true
	default:
		log.Printf("bus: write to unimplemented I/O register %#04x", off)
	}
}

// writeIO32 is called directly by the 32-bit write path
// (Write32/DMAWrite32) since the sound FIFOs are only ever written as a
// full 32-bit burst.
func (b *Bus) writeIO32(off uint32, v uint32) {
	switch off {
	case ioFIFOABase:
		b.apu.WriteFIFOA(v)
	case ioFIFOBBase:
		b.apu.WriteFIFOB(v)
	}
}

// readDMAReg implements the read side of each channel's 12-byte register
// block (SADL/SADH/DADL/DADH/CNTL/CNTH at relative offsets 0/2/4/6/8/10).
// SAD/DAD are write-only on real hardware; only CNTL and CNTH (control) are
// meaningfully readable.
func (b *Bus) readDMAReg(rel uint32) uint16 {
	ch := rel / 12
	if ch > 3 {
		return 0
	}
	switch rel % 12 {
	case 8:
		return b.dma.Ch[ch].ReadCountLow()
	case 10:
		return b.dma.Ch[ch].ReadControl()
	default:
		return 0
	}
}

func (b *Bus) writeDMAReg(rel uint32, v uint16) {
	ch := rel / 12
	if ch > 3 {
		return
	}
	c := &b.dma.Ch[ch]
	switch rel % 12 {
	case 0:
		c.WriteSADLow(v)
	case 2:
		c.WriteSADHigh(v)
	case 4:
		c.WriteDADLow(v)
	case 6:
		c.WriteDADHigh(v)
	case 8:
		c.WriteCountLow(v)
	case 10:
		c.WriteControl(v)
	}
}

func (b *Bus) readTimerReg(rel uint32) uint16 {
	ch := rel / 4
	if ch > 3 {
		return 0
	}
	if rel%4 == 0 {
		return b.timers.T[ch].Counter()
	}
	return b.timers.T[ch].Control()
}

func (b *Bus) writeTimerReg(rel uint32, v uint16) {
	ch := rel / 4
	if ch > 3 {
		return
	}
	t := &b.timers.T[ch]
	if rel%4 == 0 {
		t.WriteReload(v)
	} else {
		t.WriteControl(v)
	}
}

// --- save state ---

type busState struct {
	EWRAM      [ewramSize]byte
	IWRAM      [iwramSize]byte
	IE         uint16
	IME        bool
	IRQSync    [interruptSyncDepth]uint16
	WaitCnt    uint16
	OpenBus    uint32
	IWRAMLatch uint32
	BIOSLatch  uint32
	PostFlg    byte
	HaltCnt    byte
	Halted     bool
	CycleCount  uint64
	LCDAccum    int
	PrefetchRun int
}

// SaveState serializes volatile bus RAM and registers; the cartridge's
// backup is persisted separately via cart.Cartridge.SaveBackup, per §3/§6
// ("mark the cartridge's backup variant as the only persisted core
// state").
func (b *Bus) SaveState() []byte {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	s := busState{
		EWRAM: b.ewram, IWRAM: b.iwram,
		IE: b.ie, IME: b.ime, IRQSync: b.irqSync,
		WaitCnt: b.waitcnt, OpenBus: b.openBusWord,
		IWRAMLatch: b.iwramLatch, BIOSLatch: b.biosLatch,
		PostFlg: b.postflg, HaltCnt: b.haltcnt, Halted: b.halted,
		CycleCount: b.cycleCount, LCDAccum: b.lcdAccum, PrefetchRun: b.prefetchRun,
	}
	_ = enc.Encode(s)
	return buf.Bytes()
}

func (b *Bus) LoadState(data []byte) error {
	dec := gob.NewDecoder(bytes.NewReader(data))
	var s busState
	if err := dec.Decode(&s); err != nil {
		return err
	}
	b.ewram, b.iwram = s.EWRAM, s.IWRAM
	b.ie, b.ime, b.irqSync = s.IE, s.IME, s.IRQSync
	b.waitcnt, b.openBusWord = s.WaitCnt, s.OpenBus
	b.iwramLatch, b.biosLatch = s.IWRAMLatch, s.BIOSLatch
	b.postflg, b.haltcnt, b.halted = s.PostFlg, s.HaltCnt, s.Halted
	b.cycleCount, b.lcdAccum = s.CycleCount, s.LCDAccum
	b.prefetchRun = s.PrefetchRun
	return nil
}

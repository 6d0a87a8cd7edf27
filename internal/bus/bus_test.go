package bus

import (
	"testing"

	"github.com/retropix/gbacore/internal/cart"
)

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	rom := make([]byte, 0x1000)
	c, err := cart.New(rom, nil)
	if err != nil {
		t.Fatalf("cart.New: %v", err)
	}
	return New(c)
}

func TestBus_EWRAM_IWRAM_ReadWrite(t *testing.T) {
	b := newTestBus(t)
	b.Write32(0x02000000, 0xDEADBEEF, NonSequential)
	if got := b.Read32(0x02000000, NonSequential); got != 0xDEADBEEF {
		t.Fatalf("EWRAM readback got %#08x want 0xDEADBEEF", got)
	}
	b.Write16(0x03000000, 0xBEEF, NonSequential)
	if got := b.Read16(0x03000000, NonSequential); got != 0xBEEF {
		t.Fatalf("IWRAM readback got %#04x want 0xBEEF", got)
	}
}

func TestBus_EWRAM_Mirrors256KiB(t *testing.T) {
	b := newTestBus(t)
	b.Write8(0x02000000, 0x42, NonSequential)
	if got := b.Read8(0x02040000, NonSequential); got != 0x42 { // +256KiB mirror
		t.Fatalf("EWRAM mirror got %#02x want 0x42", got)
	}
}

func TestBus_OpenBus_UnmappedReturnsLastBusWord(t *testing.T) {
	b := newTestBus(t)
	b.Write32(0x02000000, 0x12345678, NonSequential)
	b.Read32(0x02000000, NonSequential) // latches open bus to this value
	if got := b.Read32(0x10000000, NonSequential); got != 0x12345678 {
		t.Fatalf("unmapped read got %#08x want last bus word 0x12345678", got)
	}
}

func TestBus_BIOS_OutsideExecutionReturnsLatchedOpcode(t *testing.T) {
	b := newTestBus(t)
	b.SetPCInBIOSPredicate(func() bool { return true })
	b.Read32(0x00000000, NonSequential) // latches the BIOS opcode while "executing" BIOS
	b.SetPCInBIOSPredicate(func() bool { return false })
	first := b.Read32(0x00000000, NonSequential)
	second := b.Read32(0x00000004, NonSequential)
	if first != second {
		t.Fatalf("BIOS reads from outside execution should both return the latched opcode: %#08x != %#08x", first, second)
	}
}

func TestBus_IRQSyncBuffer_FourCycleLatency(t *testing.T) {
	b := newTestBus(t)
	b.keys.WriteKeyCnt(0) // no keypad IRQ source
	b.SetIE(IRQVBlank)
	b.SetIME(true)

	b.raiseIRQ(IRQVBlank)
	if b.PendingIRQ()&IRQVBlank != 0 {
		t.Fatalf("a freshly raised IRQ must not be visible immediately")
	}
	for i := 0; i < interruptSyncDepth-1; i++ {
		b.Step()
	}
	if b.PendingIRQ()&IRQVBlank == 0 {
		t.Fatalf("IRQ should become visible after %d steps (sync buffer depth)", interruptSyncDepth-1)
	}
}

func TestBus_CycleCount_Monotonic(t *testing.T) {
	b := newTestBus(t)
	prev := b.CycleCount()
	for i := 0; i < 100; i++ {
		b.Step()
		cur := b.CycleCount()
		if cur <= prev {
			t.Fatalf("cycle count did not strictly increase: %d -> %d", prev, cur)
		}
		prev = cur
	}
}

// Scenario 4 (spec §8): an immediate DMA0 word transfer copies 16 bytes
// and clears Enable when done.
func TestBus_DMA_ImmediateWordTransfer(t *testing.T) {
	b := newTestBus(t)
	for i := 0; i < 16; i++ {
		b.Write8(0x02000000+uint32(i), byte(i+1), NonSequential)
	}

	const dmaBase = 0x040000B0 // DMA0
	const ctrlEnable = 1 << 15
	const ctrlSize32 = 1 << 10
	b.Write32(dmaBase+0x00, 0x02000000, NonSequential) // SAD
	b.Write32(dmaBase+0x04, 0x02000100, NonSequential) // DAD
	b.Write16(dmaBase+0x08, 4, NonSequential)          // word count
	b.Write16(dmaBase+0x0A, ctrlEnable|ctrlSize32, NonSequential)

	dmaEnabled := func() bool { return b.dma.Ch[0].ReadControl()&ctrlEnable != 0 }
	for i := 0; i < 2000 && dmaEnabled(); i++ {
		b.Step()
	}
	if dmaEnabled() {
		t.Fatalf("DMA0 did not complete and clear Enable")
	}
	for i := 0; i < 16; i++ {
		src := b.Read8(0x02000000+uint32(i), NonSequential)
		dst := b.Read8(0x02000100+uint32(i), NonSequential)
		if src != dst {
			t.Fatalf("byte %d: dst %#02x != src %#02x", i, dst, src)
		}
	}
}

// Scenario 5 (spec §8): timer cascade. Timer0 prescaler /1 reload=0xFFFE;
// Timer1 count-up reload=0. Timer0 wraps after exactly 2 master cycles
// (0xFFFE -> 0xFFFF -> reload), and Timer1 observes that overflow within the
// same bus step, advancing to 1.
// Timer0's reload=0xFFFE overflows after exactly 2 master cycles at
// prescaler /1 (0xFFFE->0xFFFF->0x0000), not after "2+65536" cycles as a
// literal reading of the wraparound might suggest - confirmed against
// original_source/emulator-core/src/timer.rs's overflowing_add(1)-then-
// reload behavior, which the ported stepIncrement here reproduces exactly.
// Timer1, cascaded, observes that overflow in the same Step call.
func TestBus_TimerCascade(t *testing.T) {
	b := newTestBus(t)
	const timerBase = 0x04000100
	b.Write16(timerBase+0x00, 0xFFFE, NonSequential) // Timer0 reload
	b.Write16(timerBase+0x02, 0x0080, NonSequential) // Timer0 control: start, prescaler /1
	b.Write16(timerBase+0x04, 0x0000, NonSequential) // Timer1 reload
	b.Write16(timerBase+0x06, 0x0084, NonSequential) // Timer1 control: start, count-up

	for i := 0; i < 2; i++ {
		b.Step()
	}
	if got := b.timers.T[1].Counter(); got != 1 {
		t.Fatalf("Timer1 counter = %d, want 1", got)
	}
}

// WAITCNT bit 14 (prefetch buffer): once set, the second and later
// sequential ROM reads in an unbroken run cost a single cycle, while the
// read that breaks the run (non-sequential) always pays full price.
func TestBus_WAITCNT_PrefetchBuffer(t *testing.T) {
	b := newTestBus(t)
	b.Write16(0x04000204, 1<<14, NonSequential) // WAITCNT: enable prefetch buffer, WS0 default timings

	first := b.romAccessCycles(0x08000000, NonSequential)
	second := b.romAccessCycles(0x08000002, Sequential)
	third := b.romAccessCycles(0x08000004, Sequential)
	if want := b.romWaitStates(0x08000002, Sequential); second != want {
		t.Fatalf("first sequential access after a non-sequential one should still cost the configured sequential rate: got %d, want %d", second, want)
	}
	if third != 1 {
		t.Fatalf("third consecutive sequential access with prefetch enabled should cost 1 cycle, got %d", third)
	}

	broken := b.romAccessCycles(0x08000100, NonSequential)
	if broken != first {
		t.Fatalf("a non-sequential access must always pay the full rate, got %d want %d", broken, first)
	}
}

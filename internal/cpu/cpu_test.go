package cpu

import (
	"testing"

	"github.com/retropix/gbacore/internal/bus"
	"github.com/retropix/gbacore/internal/cart"
)

// newTestCPU builds a CPU over a fresh cartridge/bus pair with code placed
// at the start of ROM (0x08000000), the address execution begins at once
// the BIOS has handed off to the cartridge.
func newTestCPU(t *testing.T, code []byte) *CPU {
	t.Helper()
	rom := make([]byte, 0x1000)
	copy(rom, code)
	c, err := cart.New(rom, nil)
	if err != nil {
		t.Fatalf("cart.New: %v", err)
	}
	b := bus.New(c)
	cpu := New(b)
	cpu.SetPC(0x08000000)
	return cpu
}

func armWord(buf []byte, w uint32) []byte {
	return append(buf, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
}

// armDataImm assembles an ARM data-processing instruction with an 8-bit
// immediate (rotate 0) second operand - cond is always AL (0xE) since
// these tests aren't exercising condition codes.
func armDataImm(opcode, s, rn, rd, imm8 uint32) uint32 {
	return (0xE << 28) | (1 << 25) | (opcode << 21) | (s << 20) | (rn << 16) | (rd << 12) | (imm8 & 0xFF)
}

// stepN steps the CPU enough times to prime the one-deep prefetch pipeline
// after a flush and then execute n further instructions: one priming Step
// that only fetches, plus one Step per instruction to execute.
func stepN(c *CPU, n int) {
	for i := 0; i < n+1; i++ {
		c.Step()
	}
}

// Scenario 1 (spec §8): MOV R0,#0xFFFFFFFF (via MVN R0,#0); ADDS R1,R0,#1
// must produce R1=0, N=0,Z=1,C=1,V=0.
func TestARM_ADD_Carry(t *testing.T) {
	var code []byte
	code = armWord(code, armDataImm(opMVN, 0, 0, 0, 0)) // MVN R0, #0 -> R0 = 0xFFFFFFFF
	code = armWord(code, armDataImm(opADD, 1, 0, 1, 1)) // ADDS R1, R0, #1

	c := newTestCPU(t, code)
	stepN(c, 2)

	if got := c.Regs().Get(1); got != 0 {
		t.Fatalf("R1 = %#x, want 0", got)
	}
	n, z, cy, v := c.Regs().Flags()
	if n || !z || !cy || v {
		t.Fatalf("flags N=%v Z=%v C=%v V=%v, want N=0 Z=1 C=1 V=0", n, z, cy, v)
	}
}

// Scenario 3 (spec §8): an unaligned word load rotates the aligned word
// right by (addr&3)*8 bits.
func TestARM_LDR_UnalignedRotate(t *testing.T) {
	ldr := uint32(0xE5910000) // LDR R0, [R1]
	c := newTestCPU(t, armWord(nil, ldr))
	c.Bus().Write32(0x03000000, 0x11223344, bus.NonSequential)
	c.Regs().Set(1, 0x03000001)

	stepN(c, 1)

	if got := c.Regs().Get(0); got != 0x44112233 {
		t.Fatalf("R0 = %#08x, want 0x44112233", got)
	}
}

// Scenario 2 (spec §8): Thumb PUSH/POP round-trips register values through
// the stack.
func TestThumb_PushPop(t *testing.T) {
	code := []byte{
		0x07, 0x20, // MOVS R0, #7
		0x09, 0x21, // MOVS R1, #9
		0x03, 0xB4, // PUSH {R0,R1}
		0x00, 0x20, // MOVS R0, #0
		0x00, 0x21, // MOVS R1, #0
		0x03, 0xBC, // POP {R0,R1}
	}
	c := newTestCPU(t, code)
	c.Regs().Set(13, 0x03007F00) // SP into IWRAM
	c.Regs().SetThumb(true)
	c.SetPC(0x08000000)

	sp0 := c.Regs().Get(13)
	stepN(c, 6)

	if got := c.Regs().Get(0); got != 7 {
		t.Fatalf("R0 = %d, want 7", got)
	}
	if got := c.Regs().Get(1); got != 9 {
		t.Fatalf("R1 = %d, want 9", got)
	}
	if got := c.Regs().Get(13); got != sp0 {
		t.Fatalf("SP = %#x, want %#x (restored)", got, sp0)
	}
}

// §8: a failing condition still advances the pipeline (performs the fetch)
// without executing; EQ fails when Z is clear.
func TestARM_ConditionalExecution_Skipped(t *testing.T) {
	var code []byte
	// MOVEQ R0, #5 with Z clear (default after reset) must not execute.
	moveq := uint32((0x0 << 28) | (1 << 25) | (opMOV << 21) | (0 << 20) | (0 << 16) | (0 << 12) | 5)
	code = armWord(code, moveq)

	c := newTestCPU(t, code)
	stepN(c, 1)

	if got := c.Regs().Get(0); got != 0 {
		t.Fatalf("R0 = %d after a failing MOVEQ, want 0 (untouched)", got)
	}
}

func TestEvalCond_AlwaysAndNever(t *testing.T) {
	if !evalCond(0xE, false, false, false, false) {
		t.Fatalf("AL condition must always pass")
	}
	if evalCond(0xF, true, true, true, true) {
		t.Fatalf("NV condition must always fail")
	}
}

// Package cpu implements the ARM7TDMI instruction set: ARM and Thumb
// decode/execute, the banked register file, the three-stage prefetch
// pipeline, and exception dispatch.
package cpu

import (
	"github.com/retropix/gbacore/internal/bus"
)

// CPU couples the register file and prefetch pipeline to a bus, driving
// the fetch/decode/execute loop one instruction boundary per Step call.
type CPU struct {
	reg    *Registers
	pipe   pipeline
	busPtr *bus.Bus
}

// New creates a CPU wired to b, with the register file reset to the
// post-Reset-exception state (Supervisor mode, IRQ/FIQ masked, PC at the
// reset vector) and the bus's BIOS-open-bus predicate wired to this CPU's
// own PC.
func New(b *bus.Bus) *CPU {
	c := &CPU{reg: NewRegisters(), busPtr: b}
	c.reg.SetPC(0x00000000)
	b.SetPCInBIOSPredicate(func() bool { return c.reg.PC() < 0x4000 })
	return c
}

// Bus exposes the underlying bus for tests and host tooling.
func (c *CPU) Bus() *bus.Bus { return c.busPtr }

// Regs exposes the register file for tests, trace tooling and save states.
func (c *CPU) Regs() *Registers { return c.reg }

// SetPC forces PC and flushes the pipeline; used by tests and by the BIOS
// reset-vector bootstrap when skipping the BIOS entirely.
func (c *CPU) SetPC(pc uint32) {
	c.reg.SetPCAligned(pc)
	c.pipe.flush()
}

// Step advances the CPU by exactly one instruction boundary: one fetch,
// and - once the first fetch after a flush has primed the pipeline - the
// execute of the instruction decoded on the previous fetch. IRQ dispatch
// happens here, gated on the pipeline being primed, matching §4.6.
func (c *CPU) Step() {
	if c.busPtr.Halted() {
		c.stepHalted()
		return
	}

	thumb := c.reg.Thumb()
	access := bus.Sequential
	if !c.pipe.sequential {
		access = bus.NonSequential
	}

	pc := c.reg.PC()
	var raw uint32
	var decoded any
	if thumb {
		raw = uint32(c.busPtr.Read16(pc, access))
		c.reg.SetPC(pc + 2)
		decoded = decodeThumb(uint16(raw))
	} else {
		raw = c.busPtr.Read32(pc, access)
		c.reg.SetPC(pc + 4)
		decoded = decodeARM(raw)
	}
	c.pipe.sequential = true

	ready := c.pipe.advance(raw, decoded)
	if ready == nil {
		return
	}
	if c.checkIRQ() {
		return
	}
	c.execute(ready)
}

// stepHalted advances the bus one cycle without fetching, per §5's
// description of HALTCNT suspending the CPU clock; wakeup is gated on the
// raw IE & pending-IRQ test, independent of CPSR.I or IME (real hardware
// wakes from HALT even with interrupts masked, dispatching them once
// unmasked).
func (c *CPU) stepHalted() {
	c.busPtr.Step()
	if c.busPtr.IE()&c.busPtr.PendingIRQ() != 0 {
		c.busPtr.ClearHalt()
	}
}

func (c *CPU) execute(decoded any) {
	switch v := decoded.(type) {
	case *armInstruction:
		c.execARM(v)
	case *thumbInstruction:
		c.execThumb(v)
	}
}

// flushBranch is called by every instruction that writes R15 through a
// branch. It exists so branch sites read clearly; the general R15-write
// invariant is also enforced in setReg for data-processing destinations.
func (c *CPU) flushBranch(target uint32) {
	c.reg.SetPCAligned(target)
	c.pipe.flush()
}

// getReg reads general register n. By the time an instruction executes,
// the fetch stage has already moved PC one instruction past the one being
// decoded now, which is itself one past the one executing - so c.reg.PC()
// already reads as instr_addr+8 (ARM) or instr_addr+4 (Thumb), exactly the
// value R15-as-operand reads are defined to return. No further offset is
// added.
func (c *CPU) getReg(n int) uint32 {
	if n == 15 {
		return c.reg.PC()
	}
	return c.reg.Get(n)
}

// setReg writes general register n. A write to R15 always branches: it
// aligns the target per the current instruction state and flushes the
// pipeline, per §4.4's "any write to R15 triggers a pipeline flush".
func (c *CPU) setReg(n int, v uint32) {
	if n == 15 {
		c.flushBranch(v)
		return
	}
	c.reg.Set(n, v)
}

// evalCond evaluates a 4-bit ARM condition field against the current
// flags. "Never" (0b1111) always fails; "Always" (0b1110) always passes.
func evalCond(cond uint32, n, z, cy, v bool) bool {
	switch cond {
	case 0x0: // EQ
		return z
	case 0x1: // NE
		return !z
	case 0x2: // CS/HS
		return cy
	case 0x3: // CC/LO
		return !cy
	case 0x4: // MI
		return n
	case 0x5: // PL
		return !n
	case 0x6: // VS
		return v
	case 0x7: // VC
		return !v
	case 0x8: // HI
		return cy && !z
	case 0x9: // LS
		return !cy || z
	case 0xA: // GE
		return n == v
	case 0xB: // LT
		return n != v
	case 0xC: // GT
		return !z && n == v
	case 0xD: // LE
		return z || n != v
	case 0xE: // AL
		return true
	default: // NV
		return false
	}
}

// toBusAccess converts the pipeline's own AccessType (Sequential=0,
// NonSequential=1, the inverse numbering of bus.AccessType) to the bus
// package's equivalent.
func (a AccessType) toBusAccess() bus.AccessType {
	if a == Sequential {
		return bus.Sequential
	}
	return bus.NonSequential
}

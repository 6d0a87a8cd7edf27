package cpu

import (
	"github.com/retropix/gbacore/internal/bits"
	"github.com/retropix/gbacore/internal/bus"
)

// armInstruction is the decoded form of a 32-bit ARM opcode kept in the
// pipeline between fetch and execute. Classification happens in execARM;
// the raw word is all that needs to survive the pipeline stage boundary.
type armInstruction struct {
	raw uint32
}

func decodeARM(raw uint32) *armInstruction {
	return &armInstruction{raw: raw}
}

// execARM classifies and executes one ARM instruction, per the try-chain
// order described in §4.4 and §9: branch/BX first (they're unambiguous
// from a handful of fixed bits), then multiply/swap/halfword-transfer
// (identified by bits 27-25=000 plus bit7=1,bit4=1), then PSR transfer,
// then data processing, then single/block transfer, then SWI. Any pattern
// matching none of these decodes as Invalid and is treated as Undefined.
func (c *CPU) execARM(instr *armInstruction) {
	raw := instr.raw
	cond := raw >> 28
	n, z, cy, v := c.reg.Flags()
	if !evalCond(cond, n, z, cy, v) {
		return
	}

	switch {
	case raw&0x0FFFFFF0 == 0x012FFF10:
		c.armBX(raw)
	case raw&0x0E000000 == 0x0A000000:
		c.armBranch(raw)
	case raw&0x0FC000F0 == 0x00000090:
		c.armMul(raw)
	case raw&0x0F8000F0 == 0x00800090:
		c.armMulLong(raw)
	case raw&0x0FB00FF0 == 0x01000090:
		c.armSWP(raw)
	case raw&0x0E000090 == 0x00000090 && bits.Bit(raw, 7) && bits.Bit(raw, 4):
		c.armHalfwordTransfer(raw)
	case isMRS(raw):
		c.armMRS(raw)
	case isMSR(raw):
		c.armMSR(raw)
	case raw&0x0C000000 == 0x00000000:
		c.armDataProcessing(raw)
	case raw&0x0C000000 == 0x04000000:
		c.armSingleTransfer(raw)
	case raw&0x0E000000 == 0x08000000:
		c.armBlockTransfer(raw)
	case raw&0x0F000000 == 0x0F000000:
		c.armSWI()
	default:
		c.raiseException(excUndefined)
	}
}

// armOperand2 evaluates the second ALU operand (immediate or shifted
// register) and its shifter carry-out, per §4.4.
func (c *CPU) armOperand2(raw uint32) (val uint32, carryOut bool) {
	_, _, cIn, _ := c.reg.Flags()
	if bits.Bit(raw, 25) {
		imm := raw & 0xFF
		rot := (raw >> 8 & 0xF) * 2
		return bits.RotateRight32(imm, uint(rot)), rotCarry(imm, rot, cIn)
	}

	rm := int(raw & 0xF)
	shiftType := bits.ShiftType((raw >> 5) & 3)
	if bits.Bit(raw, 4) {
		// Register-specified shift amount: only the low byte of Rs is
		// used, and an extra internal cycle is spent fetching it.
		rs := int(raw >> 8 & 0xF)
		amount := uint(c.getReg(rs) & 0xFF)
		c.busPtr.Step()
		if amount == 0 {
			return c.getReg(rm), cIn
		}
		return bits.Shift(shiftType, c.getReg(rm), amount, cIn, false)
	}
	amount := uint(raw >> 7 & 0x1F)
	return bits.Shift(shiftType, c.getReg(rm), amount, cIn, true)
}

func rotCarry(imm, rot uint32, cIn bool) bool {
	if rot == 0 {
		return cIn
	}
	return bits.Bit(bits.RotateRight32(imm, uint(rot)), 31)
}

const (
	opAND = iota
	opEOR
	opSUB
	opRSB
	opADD
	opADC
	opSBC
	opRSC
	opTST
	opTEQ
	opCMP
	opCMN
	opORR
	opMOV
	opBIC
	opMVN
)

func (c *CPU) armDataProcessing(raw uint32) {
	opcode := raw >> 21 & 0xF
	sBit := bits.Bit(raw, 20)
	rn := int(raw >> 16 & 0xF)
	rd := int(raw >> 12 & 0xF)

	op2, shiftCarry := c.armOperand2(raw)
	_, _, cIn, vIn := c.reg.Flags()
	rnVal := c.getReg(rn)

	var result uint32
	var carryOut, overflow bool
	logical := false

	switch opcode {
	case opAND:
		result = rnVal & op2
		logical = true
	case opEOR:
		result = rnVal ^ op2
		logical = true
	case opSUB:
		result, carryOut, overflow = subWithFlags(rnVal, op2)
	case opRSB:
		result, carryOut, overflow = subWithFlags(op2, rnVal)
	case opADD:
		result, carryOut, overflow = addWithFlags(rnVal, op2)
	case opADC:
		result, carryOut, overflow = addWithFlags(rnVal, op2, cIn)
	case opSBC:
		result, carryOut, overflow = sbcWithFlags(rnVal, op2, cIn)
	case opRSC:
		result, carryOut, overflow = sbcWithFlags(op2, rnVal, cIn)
	case opTST:
		result = rnVal & op2
		logical = true
	case opTEQ:
		result = rnVal ^ op2
		logical = true
	case opCMP:
		result, carryOut, overflow = subWithFlags(rnVal, op2)
	case opCMN:
		result, carryOut, overflow = addWithFlags(rnVal, op2)
	case opORR:
		result = rnVal | op2
		logical = true
	case opMOV:
		result = op2
		logical = true
	case opBIC:
		result = rnVal &^ op2
		logical = true
	case opMVN:
		result = ^op2
		logical = true
	}

	isTestOnly := opcode == opTST || opcode == opTEQ || opcode == opCMP || opcode == opCMN
	if sBit {
		if rd == 15 && !isTestOnly {
			// Writing R15 with S set restores CPSR from SPSR: a mode
			// return, typically from an exception handler.
			c.reg.SetCPSR(c.reg.SPSR())
		} else {
			newN := bits.Bit(result, 31)
			newZ := result == 0
			newC := cIn
			newV := vIn
			if logical {
				newC = shiftCarry
			} else {
				newC = carryOut
				newV = overflow
			}
			c.reg.SetFlags(newN, newZ, newC, newV)
		}
	}

	if !isTestOnly {
		c.setReg(rd, result)
	}
}

func addWithFlags(a, b uint32, carryIn ...bool) (res uint32, carry, overflow bool) {
	ci := uint64(0)
	if len(carryIn) > 0 && carryIn[0] {
		ci = 1
	}
	sum := uint64(a) + uint64(b) + ci
	res = uint32(sum)
	carry = sum > 0xFFFFFFFF
	overflow = (^(a^b))&(a^res)&0x80000000 != 0
	return
}

func subWithFlags(a, b uint32) (res uint32, carry, overflow bool) {
	diff := uint64(a) - uint64(b)
	res = uint32(diff)
	carry = a >= b
	overflow = (a^b)&(a^res)&0x80000000 != 0
	return
}

func sbcWithFlags(a, b uint32, cIn bool) (res uint32, carry, overflow bool) {
	borrow := uint64(1)
	if cIn {
		borrow = 0
	}
	diff := uint64(a) - uint64(b) - borrow
	res = uint32(diff)
	carry = uint64(a) >= uint64(b)+borrow
	overflow = (a^b)&(a^res)&0x80000000 != 0
	return
}

// isMRS/isMSR recognize the PSR-transfer encodings, a narrow carve-out of
// the bits27-26=00 data-processing space distinguished by S=0 and an
// opcode in the TST..CMN range (bits 24-21 = 1000-1011).
func isMRS(raw uint32) bool {
	if raw>>23&0x1F != 0b00010 {
		return false
	}
	if raw>>20&0x3 != 0b00 {
		return false
	}
	if raw>>16&0xF != 0xF {
		return false
	}
	return raw&0xFFF == 0
}

func isMSR(raw uint32) bool {
	// Bit 25 (immediate operand) is left out of the match.
	if raw>>23&0x1B != 0b00010 {
		return false
	}
	if raw>>20&0x3 != 0b10 {
		return false
	}
	if !bits.Bit(raw, 25) {
		if raw>>12&0xF != 0xF {
			return false
		}
		if raw>>4&0xFF != 0 {
			return false
		}
	}
	return true
}

func (c *CPU) armMRS(raw uint32) {
	rd := int(raw >> 12 & 0xF)
	usesSPSR := bits.Bit(raw, 22)
	if usesSPSR {
		c.setReg(rd, c.reg.SPSR())
	} else {
		c.setReg(rd, c.reg.CPSR())
	}
}

func (c *CPU) armMSR(raw uint32) {
	usesSPSR := bits.Bit(raw, 22)
	flagsOnly := !bits.Bit(raw, 16)

	var operand uint32
	if bits.Bit(raw, 25) {
		imm := raw & 0xFF
		rot := (raw >> 8 & 0xF) * 2
		operand = bits.RotateRight32(imm, uint(rot))
	} else {
		operand = c.getReg(int(raw & 0xF))
	}

	if flagsOnly {
		const flagsMask = 0xF0000000
		if usesSPSR {
			c.reg.SetSPSR((c.reg.SPSR() &^ flagsMask) | (operand & flagsMask))
		} else {
			c.reg.SetFlags(bits.Bit(operand, 31), bits.Bit(operand, 30), bits.Bit(operand, 29), bits.Bit(operand, 28))
		}
		return
	}

	if usesSPSR {
		c.reg.SetSPSR(operand)
	} else {
		c.reg.SetCPSR(operand)
	}
}

func (c *CPU) armBX(raw uint32) {
	target := c.getReg(int(raw & 0xF))
	c.reg.SetThumb(target&1 != 0)
	c.flushBranch(target &^ 1)
}

func (c *CPU) armBranch(raw uint32) {
	link := bits.Bit(raw, 24)
	offset := bits.SignExtend(raw&0x00FFFFFF, 24) << 2
	target := c.getReg(15) + offset
	if link {
		c.reg.Set(14, c.reg.PC()-4)
	}
	c.flushBranch(target)
}

func (c *CPU) armSWI() {
	c.raiseException(excSWI)
}

func (c *CPU) armMul(raw uint32) {
	rd := int(raw >> 16 & 0xF)
	rn := int(raw >> 12 & 0xF)
	rs := int(raw >> 8 & 0xF)
	rm := int(raw & 0xF)
	accumulate := bits.Bit(raw, 21)
	sBit := bits.Bit(raw, 20)

	result := c.getReg(rm) * c.getReg(rs)
	if accumulate {
		result += c.getReg(rn)
	}
	c.busPtr.Step()
	c.setReg(rd, result)
	if sBit {
		_, _, cy, v := c.reg.Flags()
		c.reg.SetFlags(bits.Bit(result, 31), result == 0, cy, v)
	}
}

func (c *CPU) armMulLong(raw uint32) {
	rdHi := int(raw >> 16 & 0xF)
	rdLo := int(raw >> 12 & 0xF)
	rs := int(raw >> 8 & 0xF)
	rm := int(raw & 0xF)
	signed := bits.Bit(raw, 22)
	accumulate := bits.Bit(raw, 21)
	sBit := bits.Bit(raw, 20)

	var result uint64
	if signed {
		result = uint64(int64(int32(c.getReg(rm))) * int64(int32(c.getReg(rs))))
	} else {
		result = uint64(c.getReg(rm)) * uint64(c.getReg(rs))
	}
	if accumulate {
		result += uint64(c.getReg(rdHi))<<32 | uint64(c.getReg(rdLo))
	}
	c.busPtr.Step()
	c.busPtr.Step()
	c.setReg(rdLo, uint32(result))
	c.setReg(rdHi, uint32(result>>32))
	if sBit {
		_, _, cy, v := c.reg.Flags()
		c.reg.SetFlags(bits.Bit(uint32(result>>32), 31), result == 0, cy, v)
	}
}

func (c *CPU) armSWP(raw uint32) {
	rn := int(raw >> 16 & 0xF)
	rd := int(raw >> 12 & 0xF)
	rm := int(raw & 0xF)
	byteGranular := bits.Bit(raw, 22)
	addr := c.getReg(rn)

	if byteGranular {
		old := c.busPtr.Read8(addr, busNS())
		c.busPtr.Write8(addr, byte(c.getReg(rm)), busNS())
		c.setReg(rd, uint32(old))
		return
	}
	old := c.busPtr.Read32(addr, busNS())
	c.setReg(rd, old)
	c.busPtr.Write32(addr, c.getReg(rm), busNS())
}

func (c *CPU) armHalfwordTransfer(raw uint32) {
	rn := int(raw >> 16 & 0xF)
	rd := int(raw >> 12 & 0xF)
	load := bits.Bit(raw, 20)
	pre := bits.Bit(raw, 24)
	up := bits.Bit(raw, 23)
	immOffset := bits.Bit(raw, 22)
	writeback := bits.Bit(raw, 21)
	sh := raw >> 5 & 3

	var offset uint32
	if immOffset {
		offset = (raw>>8&0xF)<<4 | raw&0xF
	} else {
		offset = c.getReg(int(raw & 0xF))
	}

	base := c.getReg(rn)
	addr := base
	if pre {
		if up {
			addr = base + offset
		} else {
			addr = base - offset
		}
	}

	doWriteback := !pre || writeback

	if load {
		var val uint32
		switch sh {
		case 1: // unsigned halfword
			val = uint32(c.busPtr.Read16(addr, busNS()))
			if addr&1 != 0 {
				val = bits.RotateRight32(val, 8)
			}
		case 2: // signed byte
			val = bits.SignExtend8(c.busPtr.Read8(addr, busNS()))
		case 3: // signed halfword; odd address degenerates to signed byte
			if addr&1 != 0 {
				val = bits.SignExtend8(c.busPtr.Read8(addr, busNS()))
			} else {
				val = bits.SignExtend16(c.busPtr.Read16(addr, busNS()))
			}
		}
		finishTransfer(c, rn, rd, addr, base, offset, up, pre, doWriteback, val, true)
	} else {
		val := c.getReg(rd)
		c.busPtr.Write16(addr, uint16(val), busNS())
		finishTransfer(c, rn, rd, addr, base, offset, up, pre, doWriteback, 0, false)
	}
}

// finishTransfer applies post-indexed addressing and writeback, shared by
// the halfword/signed transfer and single-data-transfer helpers.
func finishTransfer(c *CPU, rn, rd int, addr, base, offset uint32, up, pre, writeback bool, loadedVal uint32, isLoad bool) {
	final := addr
	if !pre {
		if up {
			final = base + offset
		} else {
			final = base - offset
		}
	}
	if writeback {
		c.setReg(rn, final)
	}
	// A load's destination write happens after writeback, so Rd==Rn loads
	// still end up holding the loaded value rather than the new base.
	if isLoad {
		c.setReg(rd, loadedVal)
	}
}

func (c *CPU) armSingleTransfer(raw uint32) {
	load := bits.Bit(raw, 20)
	byteGranular := bits.Bit(raw, 22)
	pre := bits.Bit(raw, 24)
	up := bits.Bit(raw, 23)
	writeback := bits.Bit(raw, 21)
	rn := int(raw >> 16 & 0xF)
	rd := int(raw >> 12 & 0xF)

	var offset uint32
	if bits.Bit(raw, 25) {
		rm := int(raw & 0xF)
		shiftType := bits.ShiftType(raw >> 5 & 3)
		amount := uint(raw >> 7 & 0x1F)
		_, _, cIn, _ := c.reg.Flags()
		offset, _ = bits.Shift(shiftType, c.getReg(rm), amount, cIn, true)
	} else {
		offset = raw & 0xFFF
	}

	base := c.getReg(rn)
	addr := base
	if pre {
		if up {
			addr = base + offset
		} else {
			addr = base - offset
		}
	}

	doWriteback := !pre || writeback

	if load {
		var val uint32
		if byteGranular {
			val = uint32(c.busPtr.Read8(addr, busNS()))
		} else {
			val = c.busPtr.Read32(addr, busNS())
		}
		finishTransfer(c, rn, rd, addr, base, offset, up, pre, doWriteback, val, true)
	} else {
		val := c.getReg(rd)
		if byteGranular {
			c.busPtr.Write8(addr, byte(val), busNS())
		} else {
			c.busPtr.Write32(addr, val, busNS())
		}
		finishTransfer(c, rn, rd, addr, base, offset, up, pre, doWriteback, 0, false)
	}
}

// armBlockTransfer implements LDM/STM, including the low-to-high address
// iteration regardless of U/D, the base-in-list writeback suppression for
// LDM, the STM-first-register-stores-old-base rule, the empty-list
// R15-plus-0x40 rule, and the S-bit user-bank override, per §4.4.
func (c *CPU) armBlockTransfer(raw uint32) {
	rn := int(raw >> 16 & 0xF)
	load := bits.Bit(raw, 20)
	writeback := bits.Bit(raw, 21)
	sBit := bits.Bit(raw, 22)
	up := bits.Bit(raw, 23)
	pre := bits.Bit(raw, 24)
	list := raw & 0xFFFF

	base := c.getReg(rn)

	var regs []int
	for i := 0; i < 16; i++ {
		if bits.Bit(list, uint(i)) {
			regs = append(regs, i)
		}
	}

	count := len(regs)
	empty := count == 0
	if empty {
		count = 1
	}

	var lowAddr uint32
	if up {
		lowAddr = base
	} else {
		lowAddr = base - uint32(count)*4
	}
	addr := lowAddr
	if pre == up {
		addr += 4
	}

	useUserBank := sBit && (!load || !bits.Bit(list, 15))

	var newBase uint32
	if empty {
		if up {
			newBase = base + 0x40
		} else {
			newBase = base - 0x40
		}
	} else if up {
		newBase = base + uint32(count)*4
	} else {
		newBase = base - uint32(count)*4
	}

	if empty {
		if load {
			val := c.busPtr.Read32(addr, busNS())
			c.setReg(15, val&^3)
		} else {
			c.busPtr.Write32(addr, c.getReg(15), busNS())
		}
	} else {
		for i, r := range regs {
			a := addr + uint32(i)*4
			if load {
				val := c.busPtr.Read32(a, busNS())
				if r == 15 && sBit {
					c.reg.SetCPSR(c.reg.SPSR())
				}
				if useUserBank && r >= 8 && r <= 14 {
					c.reg.Set(r, val)
				} else {
					c.setReg(r, val)
				}
			} else {
				var val uint32
				if r == rn {
					if i == 0 {
						val = base
					} else {
						val = newBase
					}
				} else if useUserBank && r >= 8 && r <= 14 {
					val = c.reg.Get(r)
				} else {
					val = c.getReg(r)
				}
				c.busPtr.Write32(a, val, busNS())
			}
		}
	}

	if writeback {
		suppressLDM := load && bits.Bit(list, uint(rn))
		if !suppressLDM {
			c.reg.Set(rn, newBase)
		}
	}
}

func busNS() bus.AccessType { return bus.NonSequential }

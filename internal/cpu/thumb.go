package cpu

import (
	"github.com/retropix/gbacore/internal/bits"
	"github.com/retropix/gbacore/internal/bus"
)

// thumbInstruction is the decoded form of a 16-bit Thumb opcode. As with
// ARM, classification is cheap enough to redo at execute time, so only the
// raw halfword needs to survive the pipeline stage boundary.
type thumbInstruction struct {
	raw uint16
}

func decodeThumb(raw uint16) *thumbInstruction {
	return &thumbInstruction{raw: raw}
}

// execThumb classifies and executes one Thumb instruction by a descending
// test on the high bits, per the family list in §4.5.
func (c *CPU) execThumb(instr *thumbInstruction) {
	raw := uint32(instr.raw)

	switch {
	case raw>>13 == 0b000 && raw>>11&0x3 != 0b11:
		c.thumbMoveShifted(raw)
	case raw>>11 == 0b00011:
		c.thumbAddSub(raw)
	case raw>>13 == 0b001:
		c.thumbImmediateOp(raw)
	case raw>>10 == 0b010000:
		c.thumbALU(raw)
	case raw>>10 == 0b010001:
		c.thumbHiRegBX(raw)
	case raw>>11 == 0b01001:
		c.thumbPCRelLoad(raw)
	case raw>>12 == 0b0101 && !bits.Bit(raw, 9):
		c.thumbRegOffsetLoadStore(raw)
	case raw>>12 == 0b0101 && bits.Bit(raw, 9):
		c.thumbSignExtLoadStore(raw)
	case raw>>13 == 0b011:
		c.thumbImmOffsetLoadStore(raw)
	case raw>>12 == 0b1000:
		c.thumbHalfwordLoadStore(raw)
	case raw>>12 == 0b1001:
		c.thumbSPRelLoadStore(raw)
	case raw>>12 == 0b1010:
		c.thumbGetRelAddr(raw)
	case raw>>8 == 0b10110000:
		c.thumbAddOffsetSP(raw)
	case raw>>12 == 0b1011 && raw>>9&0x3 == 0b10:
		c.thumbPushPop(raw)
	case raw>>12 == 0b1100:
		c.thumbMultipleLoadStore(raw)
	case raw>>12 == 0b1101 && raw>>8&0xF == 0xF:
		c.thumbSWI()
	case raw>>12 == 0b1101:
		c.thumbCondBranch(raw)
	case raw>>11 == 0b11100:
		c.thumbUncondBranch(raw)
	case raw>>12 == 0b1111:
		c.thumbLongBranchLink(raw)
	default:
		c.raiseException(excUndefined)
	}
}

func (c *CPU) thumbMoveShifted(raw uint32) {
	shiftType := bits.ShiftType(raw >> 11 & 0x3)
	amount := uint(raw >> 6 & 0x1F)
	rs := int(raw >> 3 & 0x7)
	rd := int(raw & 0x7)

	_, _, cIn, v := c.reg.Flags()
	result, carryOut := bits.Shift(shiftType, c.getReg(rs), amount, cIn, true)
	c.setReg(rd, result)
	c.reg.SetFlags(bits.Bit(result, 31), result == 0, carryOut, v)
}

func (c *CPU) thumbAddSub(raw uint32) {
	useImm := bits.Bit(raw, 10)
	sub := bits.Bit(raw, 9)
	rnOrImm := raw >> 6 & 0x7
	rs := int(raw >> 3 & 0x7)
	rd := int(raw & 0x7)

	var operand uint32
	if useImm {
		operand = rnOrImm
	} else {
		operand = c.getReg(int(rnOrImm))
	}

	var result uint32
	var carry, overflow bool
	if sub {
		result, carry, overflow = subWithFlags(c.getReg(rs), operand)
	} else {
		result, carry, overflow = addWithFlags(c.getReg(rs), operand)
	}
	c.setReg(rd, result)
	c.reg.SetFlags(bits.Bit(result, 31), result == 0, carry, overflow)
}

func (c *CPU) thumbImmediateOp(raw uint32) {
	op := raw >> 11 & 0x3
	rd := int(raw >> 8 & 0x7)
	imm := raw & 0xFF

	rdVal := c.getReg(rd)
	var result uint32
	var carry, overflow bool
	_, _, cIn, _ := c.reg.Flags()
	switch op {
	case 0: // MOV
		result = imm
		c.setReg(rd, result)
		c.reg.SetFlags(bits.Bit(result, 31), result == 0, cIn, false)
		return
	case 1: // CMP
		result, carry, overflow = subWithFlags(rdVal, imm)
	case 2: // ADD
		result, carry, overflow = addWithFlags(rdVal, imm)
		c.setReg(rd, result)
	case 3: // SUB
		result, carry, overflow = subWithFlags(rdVal, imm)
		c.setReg(rd, result)
	}
	c.reg.SetFlags(bits.Bit(result, 31), result == 0, carry, overflow)
}

const (
	tAND = iota
	tEOR
	tLSL
	tLSR
	tASR
	tADC
	tSBC
	tROR
	tTST
	tNEG
	tCMP
	tCMN
	tORR
	tMUL
	tBIC
	tMVN
)

func (c *CPU) thumbALU(raw uint32) {
	op := raw >> 6 & 0xF
	rs := int(raw >> 3 & 0x7)
	rd := int(raw & 0x7)

	rdVal := c.getReg(rd)
	rsVal := c.getReg(rs)
	_, _, cIn, v := c.reg.Flags()
	var result uint32
	logical := true

	switch op {
	case tAND:
		result = rdVal & rsVal
	case tEOR:
		result = rdVal ^ rsVal
	case tLSL:
		amount := rsVal & 0xFF
		var carryOut bool
		result, carryOut = bits.Shift(bits.LSL, rdVal, uint(amount), cIn, false)
		if amount > 0 {
			cIn = carryOut
		}
		c.busPtr.Step()
	case tLSR:
		amount := rsVal & 0xFF
		var carryOut bool
		result, carryOut = bits.Shift(bits.LSR, rdVal, uint(amount), cIn, false)
		if amount > 0 {
			cIn = carryOut
		}
		c.busPtr.Step()
	case tASR:
		amount := rsVal & 0xFF
		var carryOut bool
		result, carryOut = bits.Shift(bits.ASR, rdVal, uint(amount), cIn, false)
		if amount > 0 {
			cIn = carryOut
		}
		c.busPtr.Step()
	case tADC:
		result, cIn, v = addWithFlags(rdVal, rsVal, cIn)
		logical = false
	case tSBC:
		result, cIn, v = sbcWithFlags(rdVal, rsVal, cIn)
		logical = false
	case tROR:
		amount := rsVal & 0xFF
		var carryOut bool
		result, carryOut = bits.Shift(bits.ROR, rdVal, uint(amount), cIn, false)
		if amount > 0 {
			cIn = carryOut
		}
		c.busPtr.Step()
	case tTST:
		result = rdVal & rsVal
	case tNEG:
		result, cIn, v = subWithFlags(0, rsVal)
		logical = false
	case tCMP:
		result, cIn, v = subWithFlags(rdVal, rsVal)
		logical = false
	case tCMN:
		result, cIn, v = addWithFlags(rdVal, rsVal)
		logical = false
	case tORR:
		result = rdVal | rsVal
	case tMUL:
		result = rdVal * rsVal
		c.busPtr.Step()
	case tBIC:
		result = rdVal &^ rsVal
	case tMVN:
		result = ^rsVal
	}
	_ = logical

	switch op {
	case tTST, tCMP, tCMN:
		// Comparisons only update flags, never write Rd.
	default:
		c.setReg(rd, result)
	}
	c.reg.SetFlags(bits.Bit(result, 31), result == 0, cIn, v)
}

func (c *CPU) thumbHiRegBX(raw uint32) {
	op := raw >> 8 & 0x3
	h1 := bits.Bit(raw, 7)
	h2 := bits.Bit(raw, 6)
	rs := int(raw>>3&0x7) + boolToInt(h2)*8
	rd := int(raw&0x7) + boolToInt(h1)*8

	switch op {
	case 0: // ADD
		c.setReg(rd, c.getReg(rd)+c.getReg(rs))
	case 1: // CMP
		result, carry, overflow := subWithFlags(c.getReg(rd), c.getReg(rs))
		c.reg.SetFlags(bits.Bit(result, 31), result == 0, carry, overflow)
	case 2: // MOV
		c.setReg(rd, c.getReg(rs))
	case 3: // BX (and BLX in later architectures; GBA is ARMv4T, BX only)
		target := c.getReg(rs)
		c.reg.SetThumb(target&1 != 0)
		c.flushBranch(target &^ 1)
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (c *CPU) thumbPCRelLoad(raw uint32) {
	rd := int(raw >> 8 & 0x7)
	imm := (raw & 0xFF) << 2
	base := c.getReg(15) &^ 3
	val := c.busPtr.Read32(base+imm, busNS())
	c.setReg(rd, val)
}

func (c *CPU) thumbRegOffsetLoadStore(raw uint32) {
	opc := raw >> 10 & 0x3
	ro := int(raw >> 6 & 0x7)
	rb := int(raw >> 3 & 0x7)
	rd := int(raw & 0x7)
	addr := c.getReg(rb) + c.getReg(ro)

	switch opc {
	case 0: // STR
		c.busPtr.Write32(addr, c.getReg(rd), busNS())
	case 1: // STRB
		c.busPtr.Write8(addr, byte(c.getReg(rd)), busNS())
	case 2: // LDR
		c.setReg(rd, c.busPtr.Read32(addr, busNS()))
	case 3: // LDRB
		c.setReg(rd, uint32(c.busPtr.Read8(addr, busNS())))
	}
}

func (c *CPU) thumbSignExtLoadStore(raw uint32) {
	opc := raw >> 10 & 0x3
	ro := int(raw >> 6 & 0x7)
	rb := int(raw >> 3 & 0x7)
	rd := int(raw & 0x7)
	addr := c.getReg(rb) + c.getReg(ro)

	switch opc {
	case 0: // STRH
		c.busPtr.Write16(addr, uint16(c.getReg(rd)), busNS())
	case 1: // LDSB
		c.setReg(rd, bits.SignExtend8(c.busPtr.Read8(addr, busNS())))
	case 2: // LDRH
		val := c.busPtr.Read16(addr, busNS())
		if addr&1 != 0 {
			c.setReg(rd, bits.RotateRight32(uint32(val), 8))
		} else {
			c.setReg(rd, uint32(val))
		}
	case 3: // LDSH; odd address degenerates to a signed byte load
		if addr&1 != 0 {
			c.setReg(rd, bits.SignExtend8(c.busPtr.Read8(addr, busNS())))
		} else {
			c.setReg(rd, bits.SignExtend16(c.busPtr.Read16(addr, busNS())))
		}
	}
}

func (c *CPU) thumbImmOffsetLoadStore(raw uint32) {
	byteGranular := bits.Bit(raw, 12)
	load := bits.Bit(raw, 11)
	imm := raw >> 6 & 0x1F
	rb := int(raw >> 3 & 0x7)
	rd := int(raw & 0x7)

	var addr uint32
	if byteGranular {
		addr = c.getReg(rb) + imm
	} else {
		addr = c.getReg(rb) + imm*4
	}

	switch {
	case load && byteGranular:
		c.setReg(rd, uint32(c.busPtr.Read8(addr, busNS())))
	case load && !byteGranular:
		val := c.busPtr.Read32(addr, busNS())
		c.setReg(rd, val)
	case !load && byteGranular:
		c.busPtr.Write8(addr, byte(c.getReg(rd)), busNS())
	default:
		c.busPtr.Write32(addr, c.getReg(rd), busNS())
	}
}

func (c *CPU) thumbHalfwordLoadStore(raw uint32) {
	load := bits.Bit(raw, 11)
	imm := (raw >> 6 & 0x1F) * 2
	rb := int(raw >> 3 & 0x7)
	rd := int(raw & 0x7)
	addr := c.getReg(rb) + imm

	if load {
		val := c.busPtr.Read16(addr, busNS())
		if addr&1 != 0 {
			val = uint16(bits.RotateRight32(uint32(val), 8))
		}
		c.setReg(rd, uint32(val))
	} else {
		c.busPtr.Write16(addr, uint16(c.getReg(rd)), busNS())
	}
}

func (c *CPU) thumbSPRelLoadStore(raw uint32) {
	load := bits.Bit(raw, 11)
	rd := int(raw >> 8 & 0x7)
	imm := (raw & 0xFF) << 2
	addr := c.getReg(13) + imm

	if load {
		c.setReg(rd, c.busPtr.Read32(addr, busNS()))
	} else {
		c.busPtr.Write32(addr, c.getReg(rd), busNS())
	}
}

func (c *CPU) thumbGetRelAddr(raw uint32) {
	usesSP := bits.Bit(raw, 11)
	rd := int(raw >> 8 & 0x7)
	imm := (raw & 0xFF) << 2

	if usesSP {
		c.setReg(rd, c.getReg(13)+imm)
	} else {
		c.setReg(rd, (c.getReg(15)&^3)+imm)
	}
}

func (c *CPU) thumbAddOffsetSP(raw uint32) {
	negative := bits.Bit(raw, 7)
	imm := (raw & 0x7F) << 2
	if negative {
		c.reg.Set(13, c.getReg(13)-imm)
	} else {
		c.reg.Set(13, c.getReg(13)+imm)
	}
}

// thumbPushPop implements PUSH/POP, including the optional store-of-LR /
// load-of-PC bit, per §4.5.
func (c *CPU) thumbPushPop(raw uint32) {
	load := bits.Bit(raw, 11)
	includeExtra := bits.Bit(raw, 8)
	list := raw & 0xFF

	var regs []int
	for i := 0; i < 8; i++ {
		if bits.Bit(list, uint(i)) {
			regs = append(regs, i)
		}
	}

	if load {
		for _, r := range regs {
			val := c.busPtr.Read32(c.getReg(13), busNS())
			c.reg.Set(13, c.getReg(13)+4)
			c.setReg(r, val)
		}
		if includeExtra {
			val := c.busPtr.Read32(c.getReg(13), busNS())
			c.reg.Set(13, c.getReg(13)+4)
			c.flushBranch(val &^ 1)
		}
	} else {
		if includeExtra {
			regs = append(regs, 14)
		}
		sp := c.getReg(13) - uint32(len(regs))*4
		c.reg.Set(13, sp)
		for i, r := range regs {
			c.busPtr.Write32(sp+uint32(i)*4, c.getReg(r), busNS())
		}
	}
}

// thumbMultipleLoadStore implements LDMIA/STMIA with always-increment
// addressing and writeback, per §4.5.
func (c *CPU) thumbMultipleLoadStore(raw uint32) {
	load := bits.Bit(raw, 11)
	rb := int(raw >> 8 & 0x7)
	list := raw & 0xFF

	var regs []int
	for i := 0; i < 8; i++ {
		if bits.Bit(list, uint(i)) {
			regs = append(regs, i)
		}
	}

	addr := c.getReg(rb)
	if len(regs) == 0 {
		if load {
			c.setReg(15, c.busPtr.Read32(addr, busNS())&^1)
		} else {
			c.busPtr.Write32(addr, c.getReg(15), busNS())
		}
		c.reg.Set(rb, addr+0x40)
		return
	}

	for _, r := range regs {
		if load {
			c.setReg(r, c.busPtr.Read32(addr, busNS()))
		} else {
			c.busPtr.Write32(addr, c.getReg(r), busNS())
		}
		addr += 4
	}
	if !load || !bits.Bit(list, uint(rb)) {
		c.reg.Set(rb, addr)
	}
}

func (c *CPU) thumbCondBranch(raw uint32) {
	cond := raw >> 8 & 0xF
	n, z, cy, v := c.reg.Flags()
	if !evalCond(cond, n, z, cy, v) {
		return
	}
	offset := bits.SignExtend(raw&0xFF, 8) << 1
	c.flushBranch(c.getReg(15) + offset)
}

func (c *CPU) thumbUncondBranch(raw uint32) {
	offset := bits.SignExtend(raw&0x7FF, 11) << 1
	c.flushBranch(c.getReg(15) + offset)
}

// thumbLongBranchLink handles both halfwords of Thumb BL, per §4.5: the
// first sets LR = PC + 4 + (offset << 12); the second sets PC = LR +
// (offset << 1) and LR = (old PC) | 1.
func (c *CPU) thumbLongBranchLink(raw uint32) {
	low := bits.Bit(raw, 11)
	offset := raw & 0x7FF

	if !low {
		signExtended := bits.SignExtend(offset, 11) << 12
		c.reg.Set(14, c.getReg(15)+signExtended)
		return
	}

	next := c.getReg(15)
	target := c.getReg(14) + (offset << 1)
	c.reg.Set(14, (next-2)|1)
	c.flushBranch(target)
}

func (c *CPU) thumbSWI() {
	c.raiseException(excSWI)
}

var _ = bus.Sequential

package cpu

// excKind enumerates the eight ARM7TDMI exception types, per §4.6.
type excKind int

const (
	excReset excKind = iota
	excUndefined
	excSWI
	excPrefetchAbort
	excDataAbort
	excAddressExceeds26Bit
	excIRQ
	excFIQ
)

type excInfo struct {
	vector uint32
	mode   Mode
}

var excTable = map[excKind]excInfo{
	excReset:               {0x00, ModeSVC},
	excUndefined:            {0x04, ModeUndef},
	excSWI:                  {0x08, ModeSVC},
	excPrefetchAbort:        {0x0C, ModeAbort},
	excDataAbort:            {0x10, ModeAbort},
	excAddressExceeds26Bit:  {0x14, ModeSVC},
	excIRQ:                  {0x18, ModeIRQ},
	excFIQ:                  {0x1C, ModeFIQ},
}

// raiseException performs the five dispatch steps from §4.6: compute the
// mode-specific saved PC, save CPSR into the target mode's SPSR, switch
// state/mode/interrupt-mask bits, write the link register and jump to the
// fixed vector, flushing the pipeline behind it.
func (c *CPU) raiseException(kind excKind) {
	info := excTable[kind]
	thumb := c.reg.Thumb()

	var savedPC uint32
	switch kind {
	case excIRQ:
		if thumb {
			savedPC = c.reg.PC()
		} else {
			savedPC = c.reg.PC() - 4
		}
	case excSWI, excUndefined:
		if thumb {
			savedPC = c.reg.PC() - 2
		} else {
			savedPC = c.reg.PC() - 4
		}
	default:
		if thumb {
			savedPC = c.reg.PC() - 2
		} else {
			savedPC = c.reg.PC() - 4
		}
	}

	savedCPSR := c.reg.CPSR()

	newCPSR := savedCPSR &^ (1 << flagT)
	newCPSR |= 1 << flagI
	if kind == excReset || kind == excFIQ {
		newCPSR |= 1 << flagF
	}
	newCPSR = (newCPSR &^ 0x1F) | uint32(info.mode)

	c.reg.SetCPSR(newCPSR)
	c.reg.SetSPSR(savedCPSR)
	c.reg.Set(14, savedPC)
	c.reg.SetPC(info.vector)
	c.pipe.flush()
}

// checkIRQ dispatches a pending IRQ if one is both enabled and unmasked,
// per the gating rule in §4.6 and §5: only between instructions, only with
// CPSR.I clear, and only when (IE & pending_tail) != 0 && IME.
func (c *CPU) checkIRQ() bool {
	if c.reg.IRQDisabled() {
		return false
	}
	if !c.busPtr.IME() {
		return false
	}
	if c.busPtr.IE()&c.busPtr.PendingIRQ() == 0 {
		return false
	}
	c.raiseException(excIRQ)
	return true
}

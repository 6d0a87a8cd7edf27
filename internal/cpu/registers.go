package cpu

// Mode encodes the five-bit CPSR mode field.
type Mode byte

const (
	ModeUser   Mode = 0x10
	ModeFIQ    Mode = 0x11
	ModeIRQ    Mode = 0x12
	ModeSVC    Mode = 0x13
	ModeAbort  Mode = 0x17
	ModeUndef  Mode = 0x1B
	ModeSystem Mode = 0x1F
)

func (m Mode) valid() bool {
	switch m {
	case ModeUser, ModeFIQ, ModeIRQ, ModeSVC, ModeAbort, ModeUndef, ModeSystem:
		return true
	}
	return false
}

// CPSR bit positions.
const (
	flagN = 31
	flagZ = 30
	flagC = 29
	flagV = 28
	flagI = 7
	flagF = 6
	flagT = 5
)

// bank identifies a register bank for shadow storage. User and System share
// the same bank (there is no banking between them).
type bank int

const (
	bankUser bank = iota
	bankFIQ
	bankSVC
	bankAbort
	bankIRQ
	bankUndef
	bankCount
)

func bankFor(m Mode) bank {
	switch m {
	case ModeFIQ:
		return bankFIQ
	case ModeSVC:
		return bankSVC
	case ModeAbort:
		return bankAbort
	case ModeIRQ:
		return bankIRQ
	case ModeUndef:
		return bankUndef
	default:
		return bankUser
	}
}

// Registers holds the 16 currently-visible general purpose registers plus
// the banked shadow copies for every mode, and CPSR/SPSR. Only one "view" is
// ever live at a time; switchBank performs a structured swap of the
// mode-dependent slots between the live view and the shadow storage for the
// outgoing and incoming modes. This is value-move semantics: there are no
// pointers into the bank arrays that survive a mode switch.
type Registers struct {
	r    [16]uint32 // currently-visible view
	cpsr uint32

	// shadow storage, keyed by bank. bankUser doubles as System.
	// fiqLow holds R8-R12 (FIQ has its own copies of these; every other
	// mode, including User/System, shares a single copy stored here too).
	fiqLow    [2][5]uint32 // [0]=non-FIQ shared R8-R12, [1]=FIQ-private R8-R12
	lowBanked bool         // true when fiqLow[1] is currently the live R8-R12
	r13       [bankCount]uint32
	r14       [bankCount]uint32
	spsr      [bankCount]uint32

	mode Mode
}

// NewRegisters starts in Supervisor mode with IRQ and FIQ masked, matching
// the CPU immediately after the Reset exception vector is taken. The
// post-BIOS-handoff state (System mode) is not set up here; the BIOS image,
// if present, runs from the reset vector and sets it up itself.
func NewRegisters() *Registers {
	reg := &Registers{mode: ModeSVC}
	reg.cpsr = uint32(ModeSVC) | 1<<flagI | 1<<flagF
	return reg
}

// Get reads general-purpose register n (0-15) from the visible view.
func (r *Registers) Get(n int) uint32 { return r.r[n] }

// Set writes general-purpose register n. Writing R15 does not itself flush
// the pipeline; callers that write PC through Set (as opposed to a branch)
// are responsible for triggering a flush. PC writes are aligned by the
// caller per the current state (ARM clears bits 0-1, Thumb clears bit 0).
func (r *Registers) Set(n int, v uint32) { r.r[n] = v }

// PC returns R15.
func (r *Registers) PC() uint32 { return r.r[15] }

// SetPC writes R15 directly (no alignment applied here; see SetPCAligned).
func (r *Registers) SetPC(v uint32) { r.r[15] = v }

// SetPCAligned writes R15, clearing bit 0 in Thumb state or bits 0-1 in ARM
// state, per §3's PC-alignment invariant.
func (r *Registers) SetPCAligned(v uint32) {
	if r.Thumb() {
		r.r[15] = v &^ 1
	} else {
		r.r[15] = v &^ 3
	}
}

// CPSR returns the current program status register.
func (r *Registers) CPSR() uint32 { return r.cpsr }

// Mode returns the currently active mode.
func (r *Registers) Mode() Mode { return r.mode }

// Thumb reports whether CPSR.T is set.
func (r *Registers) Thumb() bool { return r.cpsr&(1<<flagT) != 0 }

// SetThumb sets or clears CPSR.T directly, without touching any other bit.
func (r *Registers) SetThumb(t bool) {
	if t {
		r.cpsr |= 1 << flagT
	} else {
		r.cpsr &^= 1 << flagT
	}
}

// IRQDisabled reports CPSR.I.
func (r *Registers) IRQDisabled() bool { return r.cpsr&(1<<flagI) != 0 }

// FIQDisabled reports CPSR.F.
func (r *Registers) FIQDisabled() bool { return r.cpsr&(1<<flagF) != 0 }

// Flags reads the four condition flags.
func (r *Registers) Flags() (n, z, c, v bool) {
	return r.cpsr&(1<<flagN) != 0, r.cpsr&(1<<flagZ) != 0, r.cpsr&(1<<flagC) != 0, r.cpsr&(1<<flagV) != 0
}

// SetFlags writes the four condition flags, leaving every other CPSR bit
// untouched.
func (r *Registers) SetFlags(n, z, c, v bool) {
	set := func(bit uint, on bool) {
		if on {
			r.cpsr |= 1 << bit
		} else {
			r.cpsr &^= 1 << bit
		}
	}
	set(flagN, n)
	set(flagZ, z)
	set(flagC, c)
	set(flagV, v)
}

// SPSR returns the saved PSR for the current mode, or CPSR itself in
// User/System mode (which have no SPSR; callers must not rely on writes to
// it in those modes, since there is no banked slot to receive them).
func (r *Registers) SPSR() uint32 {
	if bankFor(r.mode) == bankUser {
		return r.cpsr
	}
	return r.spsr[bankFor(r.mode)]
}

// SetSPSR writes the saved PSR for the current mode.
func (r *Registers) SetSPSR(v uint32) {
	r.spsr[bankFor(r.mode)] = v
}

// SetCPSR overwrites the whole CPSR, including the mode field, performing a
// bank swap if the mode changed. This is the single place a mode transition
// happens as a result of data-processing MSR or exception entry/return;
// both call through here so the visible-view invariant in §3 always holds.
func (r *Registers) SetCPSR(v uint32) {
	newMode := Mode(v & 0x1F)
	if !newMode.valid() {
		// An MSR to an invalid mode encoding is architecturally
		// unpredictable; real software never does this intentionally.
		// Keep the old mode's bank but still adopt every other bit.
		newMode = r.mode
		v = (v &^ 0x1F) | uint32(r.mode)
	}
	if newMode != r.mode {
		r.switchBank(r.mode, newMode)
	}
	r.cpsr = v
	r.mode = newMode
}

// SetCPSRFlagsOnly changes only the condition flags, never the mode; it is
// the same operation as SetFlags.
func (r *Registers) SetCPSRFlagsOnly(n, z, c, v bool) { r.SetFlags(n, z, c, v) }

// switchBank moves the mode-private registers (R8-R14 for FIQ, R13-R14
// otherwise) out of the visible view into old's shadow slot, then loads
// new's shadow slot into the visible view. User and System share a bank, so
// switching between them is a no-op beyond the mode field itself.
func (r *Registers) switchBank(old, new_ Mode) {
	oldBank := bankFor(old)
	newBank := bankFor(new_)

	// R8-R12: only FIQ has a private copy.
	wasFIQ := old == ModeFIQ
	willBeFIQ := new_ == ModeFIQ
	if wasFIQ != willBeFIQ {
		idx := 0
		if wasFIQ {
			idx = 1
		}
		copy(r.fiqLow[idx][:], r.r[8:13])
		idx2 := 0
		if willBeFIQ {
			idx2 = 1
		}
		copy(r.r[8:13], r.fiqLow[idx2][:])
		r.lowBanked = willBeFIQ
	}

	if oldBank == newBank {
		// User<->System transition: R13/R14 are shared, nothing else to do.
		return
	}

	r.r13[oldBank] = r.r[13]
	r.r14[oldBank] = r.r[14]
	r.r[13] = r.r13[newBank]
	r.r[14] = r.r14[newBank]
}

// Snapshot/Restore support save states: every piece of register file state
// that isn't the live view is reachable through these, used by
// internal/emu when serializing a save state is needed for tests.
type RegSnapshot struct {
	R      [16]uint32
	CPSR   uint32
	FiqLow [2][5]uint32
	R13    [bankCount]uint32
	R14    [bankCount]uint32
	Spsr   [bankCount]uint32
	Mode   Mode
}

func (r *Registers) Snapshot() RegSnapshot {
	return RegSnapshot{r.r, r.cpsr, r.fiqLow, r.r13, r.r14, r.spsr, r.mode}
}

func (r *Registers) Restore(s RegSnapshot) {
	r.r = s.R
	r.cpsr = s.CPSR
	r.fiqLow = s.FiqLow
	r.r13 = s.R13
	r.r14 = s.R14
	r.spsr = s.Spsr
	r.mode = s.Mode
}

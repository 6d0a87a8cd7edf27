package emu

// Config contains settings that affect emulation behavior but not the
// hardware state itself, mirroring the teacher's split between a small
// Config struct (populated by flag.Parse in cmd/) and the Machine it
// configures.
type Config struct {
	Trace    bool // log PC and CPSR before each instruction StepFrame executes
	LimitFPS bool // throttle StepFrame callers to ~60Hz; Machine does not read this field, pacing is the host shell's job
}

// cyclesPerFrame is the GBA's fixed per-frame master-cycle budget: 308 dots
// per line * 228 lines * 4 master cycles per dot (§4.1, §6).
const cyclesPerFrame = 308 * 228 * 4

package emu

import "testing"

// minimalROM returns a GBA-header-shaped ROM big enough to parse, with an
// ARM program at ROM offset 0, which is address 0x08000000: LoadROMBytes
// skips the BIOS and hands execution straight to the cartridge entry point.
func minimalROM(code []byte) []byte {
	rom := make([]byte, 0x1000)
	copy(rom, code)
	return rom
}

func armWord(w uint32) []byte {
	return []byte{byte(w), byte(w >> 8), byte(w >> 16), byte(w >> 24)}
}

func TestMachine_LoadAndStepFrame(t *testing.T) {
	// MOV R0, #1 ; B $ (spin) - enough to prove StepFrame runs without
	// panicking and advances the cycle counter by at least one frame.
	var code []byte
	code = append(code, armWord(0xE3A00001)...) // MOV R0, #1
	code = append(code, armWord(0xEAFFFFFE)...) // B . (branch to self)

	m := New(Config{})
	if err := m.LoadROMBytes(minimalROM(code)); err != nil {
		t.Fatalf("LoadROMBytes: %v", err)
	}

	before := m.Bus().CycleCount()
	m.StepFrame()
	after := m.Bus().CycleCount()
	// StepFrame's loop condition is checked only between instructions, so
	// the final instruction's own (possibly multi-cycle) access can carry
	// the count slightly past the target; it must never fall short of it.
	if after-before < cyclesPerFrame {
		t.Fatalf("StepFrame advanced %d cycles, want at least %d", after-before, cyclesPerFrame)
	}
	if m.CPU().Regs().Get(0) != 1 {
		t.Fatalf("R0 = %#x, want 1", m.CPU().Regs().Get(0))
	}
}

func TestMachine_SaveLoadState_RoundTrip(t *testing.T) {
	var code []byte
	code = append(code, armWord(0xE3A0002A)...) // MOV R0, #42
	code = append(code, armWord(0xEAFFFFFE)...) // B .

	m := New(Config{})
	if err := m.LoadROMBytes(minimalROM(code)); err != nil {
		t.Fatalf("LoadROMBytes: %v", err)
	}
	m.StepCycles(8)

	blob, err := m.SaveState()
	if err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	wantR0 := m.CPU().Regs().Get(0)
	wantCycles := m.Bus().CycleCount()

	// Mutate state, then restore and confirm it matches the snapshot.
	m.StepCycles(1000)
	if err := m.LoadState(blob); err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if got := m.CPU().Regs().Get(0); got != wantR0 {
		t.Fatalf("R0 after restore = %#x, want %#x", got, wantR0)
	}
	if got := m.Bus().CycleCount(); got != wantCycles {
		t.Fatalf("cycle count after restore = %d, want %d", got, wantCycles)
	}
}

func TestMachine_SetButtons_ReflectedInKeypad(t *testing.T) {
	m := New(Config{})
	if err := m.LoadROMBytes(minimalROM(nil)); err != nil {
		t.Fatalf("LoadROMBytes: %v", err)
	}
	m.SetButtons(Buttons{A: true, Up: true})
	in := m.Bus().Keypad().ReadKeyInput()
	// Active-low: the pressed bits (A=bit0, Up=bit6) must read as 0.
	if in&0x01 != 0 {
		t.Fatalf("KEYINPUT bit0 (A) should read low when pressed, got %#04x", in)
	}
	if in&0x40 != 0 {
		t.Fatalf("KEYINPUT bit6 (Up) should read low when pressed, got %#04x", in)
	}
	if in&0x02 == 0 { // B not pressed, must read high
		t.Fatalf("KEYINPUT bit1 (B) should read high when not pressed, got %#04x", in)
	}
}

func TestMachine_Framebuffer_SizedCorrectly(t *testing.T) {
	m := New(Config{})
	if err := m.LoadROMBytes(minimalROM(nil)); err != nil {
		t.Fatalf("LoadROMBytes: %v", err)
	}
	fb := m.Framebuffer()
	if len(fb) != screenW*screenH*4 {
		t.Fatalf("Framebuffer len = %d, want %d", len(fb), screenW*screenH*4)
	}
}

package emu

// ROMPath returns the path LoadROMFile was given, or "" if the Machine was
// loaded via LoadROMBytes (tests, headless harnesses) or not loaded at all.
// Host shells use it to derive a default save-state path,
// the way the teacher's internal/ui keys its per-ROM save-state files off
// Machine.ROMPath().
func (m *Machine) ROMPath() string { return m.romPath }

// Package emu wires the leaf packages (cart/bus/cpu) into a single Machine,
// the way the teacher's internal/emu (Milestone-0 stub, since superseded)
// intended to but never grew into: ROM/backup loading, the frame-stepping
// loop, button input, and save-state plumbing (§3 Lifecycle, §6).
package emu

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"log"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/retropix/gbacore/internal/bus"
	"github.com/retropix/gbacore/internal/cart"
	"github.com/retropix/gbacore/internal/cpu"
	"github.com/retropix/gbacore/internal/keypad"
)

// Buttons mirrors the ten GBA keypad lines (§6), independent of how the
// host shell gathers them.
type Buttons struct {
	A, B, Start, Select   bool
	Up, Down, Left, Right bool
	L, R                  bool
}

func (b Buttons) mask() uint16 {
	var m uint16
	set := func(bit uint16, v bool) {
		if v {
			m |= bit
		}
	}
	set(keypad.ButtonA, b.A)
	set(keypad.ButtonB, b.B)
	set(keypad.ButtonStart, b.Start)
	set(keypad.ButtonSelect, b.Select)
	set(keypad.ButtonUp, b.Up)
	set(keypad.ButtonDown, b.Down)
	set(keypad.ButtonLeft, b.Left)
	set(keypad.ButtonRight, b.Right)
	set(keypad.ButtonL, b.L)
	set(keypad.ButtonR, b.R)
	return m
}

const (
	screenW = 240
	screenH = 160
)

// Machine owns a single cartridge/bus/CPU triple and exposes the
// frame-granularity surface a host shell (or a headless test harness)
// drives: load a ROM, step whole frames, read back a framebuffer, persist
// backup RAM and save states.
type Machine struct {
	cfg Config

	cart *cart.Cartridge
	bus  *bus.Bus
	cpu  *cpu.CPU

	romPath    string
	backupPath string

	fb []byte // RGBA screenW*screenH*4, debug visualization only (§1 Non-goals)
}

// New creates an unloaded Machine; call LoadROMFile or LoadROMBytes before
// stepping it.
func New(cfg Config) *Machine {
	return &Machine{cfg: cfg, fb: make([]byte, screenW*screenH*4)}
}

// LoadROMFile reads romPath and, if backupPath/biosPath are non-empty and
// exist, the persisted backup and a user-supplied BIOS dump alongside it,
// loading all three concurrently with an errgroup the way the teacher's
// cmd/gbemu sequentially read ROM then save file - generalized here to
// load-in-parallel-then-join, per SPEC_FULL.md's DOMAIN STACK entry for
// golang.org/x/sync/errgroup. biosPath may be empty, in which case the
// embedded placeholder BIOS (§6) is used.
func (m *Machine) LoadROMFile(romPath, backupPath, biosPath string) error {
	var rom, backupData, biosData []byte
	var g errgroup.Group
	g.Go(func() error {
		data, err := os.ReadFile(romPath)
		if err != nil {
			return fmt.Errorf("emu: read ROM: %w", err)
		}
		rom = data
		return nil
	})
	if backupPath != "" {
		g.Go(func() error {
			data, err := os.ReadFile(backupPath)
			if errors.Is(err, os.ErrNotExist) {
				return nil // no save yet; not an error (§7: only mismatched *existing* backups are fatal)
			}
			if err != nil {
				return fmt.Errorf("emu: read backup: %w", err)
			}
			backupData = data
			return nil
		})
	}
	if biosPath != "" {
		g.Go(func() error {
			data, err := os.ReadFile(biosPath)
			if err != nil {
				return fmt.Errorf("emu: read BIOS: %w", err)
			}
			biosData = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var existing cart.Backup
	if backupData != nil {
		b, err := cart.LoadBackup(backupData)
		if err != nil {
			return fmt.Errorf("emu: %w", err)
		}
		existing = b
	}

	if err := m.load(rom, existing); err != nil {
		return err
	}
	if biosData != nil {
		m.bus.LoadBIOS(biosData)
	}
	m.romPath = romPath
	m.backupPath = backupPath
	return nil
}

// LoadROMBytes loads a ROM already in memory (used by tests), with no
// backup file.
func (m *Machine) LoadROMBytes(rom []byte) error {
	return m.load(rom, nil)
}

// cartEntryPoint is where execution begins once the BIOS has handed off to
// the cartridge. Actually executing the BIOS's boot sequence is out of
// scope (§1: the BIOS is "consumed as read-only bytes at a fixed memory
// region", not run) - the Machine performs the handoff directly instead of
// relying on the embedded placeholder image to jump here itself.
const cartEntryPoint = 0x08000000

func (m *Machine) load(rom []byte, existing cart.Backup) error {
	c, err := cart.New(rom, existing)
	if err != nil {
		return fmt.Errorf("emu: %w", err)
	}
	m.cart = c
	m.bus = bus.New(c)
	m.cpu = cpu.New(m.bus)
	m.cpu.SetPC(cartEntryPoint)
	return nil
}

// Reset rebuilds the bus and CPU around the already-loaded cartridge,
// without touching backup contents, mirroring a console power-cycle
// (§3 Lifecycle: only the backup persists across resets).
func (m *Machine) Reset() error {
	if m.cart == nil {
		return errors.New("emu: Reset called before a cartridge was loaded")
	}
	m.bus = bus.New(m.cart)
	m.cpu = cpu.New(m.bus)
	m.cpu.SetPC(cartEntryPoint)
	return nil
}

// CPU/Bus/Cart expose the underlying components for host tooling
// (cmd/armrunner's trace mode, tests).
func (m *Machine) CPU() *cpu.CPU         { return m.cpu }
func (m *Machine) Bus() *bus.Bus         { return m.bus }
func (m *Machine) Cart() *cart.Cartridge { return m.cart }

// SetButtons applies the host's current button state to the keypad
// collaborator ahead of the next StepFrame/StepCycles call.
func (m *Machine) SetButtons(b Buttons) {
	m.bus.Keypad().SetPressed(b.mask())
}

// StepFrame runs the CPU for exactly one frame's worth of master cycles
// (§4.1/§6: cyclesPerFrame = 308*228*4), logging each decoded instruction's
// PC when Trace is enabled. The CPU's Step loop never suspends
// mid-instruction (§5), so frame boundaries always land between
// instructions.
func (m *Machine) StepFrame() {
	target := m.bus.CycleCount() + cyclesPerFrame
	for m.bus.CycleCount() < target {
		if m.cfg.Trace {
			log.Printf("pc=%08x cpsr=%08x", m.cpu.Regs().PC(), m.cpu.Regs().CPSR())
		}
		m.cpu.Step()
	}
}

// StepCycles runs the CPU until at least n master cycles have elapsed,
// for harnesses (armwrestler-style test ROMs, §2 Test tooling) that need
// finer granularity than a whole frame.
func (m *Machine) StepCycles(n uint64) {
	target := m.bus.CycleCount() + n
	for m.bus.CycleCount() < target {
		m.cpu.Step()
	}
}

// Framebuffer renders a debug-only visualization of VRAM/Palette state as
// RGBA8888, 240x160. This is explicitly not an accurate PPU compositor
// (§1 Non-goals: "rendering accuracy beyond the state-change events needed
// for DMA/IRQ timing" is out of scope) - it exists so a host shell has
// something to paint while driving the core. It always reads VRAM as BG
// mode 3's direct 16bpp framebuffer layout; the DISPCNT mode and palette
// RAM are not consulted.
func (m *Machine) Framebuffer() []byte {
	l := m.bus.LCD()
	for y := 0; y < screenH; y++ {
		for x := 0; x < screenW; x++ {
			i := (y*screenW + x) * 4
			off := uint32((y*screenW + x) * 2)
			px := l.ReadVRAM16(off)
			r := byte((px & 0x1F) << 3)
			g := byte(((px >> 5) & 0x1F) << 3)
			b := byte(((px >> 10) & 0x1F) << 3)
			m.fb[i+0] = r
			m.fb[i+1] = g
			m.fb[i+2] = b
			m.fb[i+3] = 0xFF
		}
	}
	return m.fb
}

// SaveBackup serializes the cartridge's backup variant, the only state
// spec §3/§6/§9 calls out as persisted across power cycles.
func (m *Machine) SaveBackup() []byte { return m.cart.SaveBackup() }

// WriteBackupFile persists the current backup to disk at the path LoadROMFile
// was given (or the explicit path argument, for host shells that let the
// user pick a different save slot).
func (m *Machine) WriteBackupFile(path string) error {
	if path == "" {
		path = m.backupPath
	}
	if path == "" {
		return errors.New("emu: no backup path configured")
	}
	return os.WriteFile(path, m.SaveBackup(), 0o644)
}

// saveStateBlob is a convenience wrapper bundling the bus's volatile-RAM
// snapshot with the CPU register file, for a host shell's "save state"
// feature. Spec §3/§9 only requires the backup variant to survive a power
// cycle; this is strictly additional host-shell convenience on top of that,
// not a core invariant.
type saveStateBlob struct {
	BusState []byte
	Regs     cpu.RegSnapshot
}

// SaveState serializes volatile CPU+bus state (not the cartridge backup,
// which callers persist separately via SaveBackup/WriteBackupFile).
func (m *Machine) SaveState() ([]byte, error) {
	var buf bytes.Buffer
	blob := saveStateBlob{BusState: m.bus.SaveState(), Regs: m.cpu.Regs().Snapshot()}
	if err := gob.NewEncoder(&buf).Encode(blob); err != nil {
		return nil, fmt.Errorf("emu: encode save state: %w", err)
	}
	return buf.Bytes(), nil
}

// LoadState restores a blob produced by SaveState onto the already-loaded
// cartridge (the cartridge and its backup are untouched).
func (m *Machine) LoadState(data []byte) error {
	var blob saveStateBlob
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&blob); err != nil {
		return fmt.Errorf("emu: decode save state: %w", err)
	}
	if err := m.bus.LoadState(blob.BusState); err != nil {
		return fmt.Errorf("emu: %w", err)
	}
	m.cpu.Regs().Restore(blob.Regs)
	return nil
}

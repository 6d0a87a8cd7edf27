package emu

import (
	"hash/crc32"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// findGBARoms recursively collects .gba files under dir, mirroring the
// teacher's blargg-ROM-scanning test harness shape (internal/emu's
// now-superseded blargg_test.go) adapted to GBA armwrestler-class CPU
// test ROMs, per SPEC_FULL.md §2's test-tooling section.
func findGBARoms(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(strings.ToLower(d.Name()), ".gba") {
			out = append(out, path)
		}
		return nil
	})
	return out, err
}

// TestArmwrestler runs every .gba file under ARMWRESTLE_DIR for a fixed
// number of frames and reports the final framebuffer's CRC32, so a
// developer can pin a known-good checksum once a ROM's expected output has
// been eyeballed. There is no serial-port pass/fail signal to key off of
// here (§1 Non-goals: serial communication is out of scope), so this is a
// smoke test - it only fails on a panic or on a CRC32 mismatch against an
// explicitly configured expectation, never on the absence of one.
func TestArmwrestler(t *testing.T) {
	if os.Getenv("RUN_ARMWRESTLER") == "" {
		t.Skip("set RUN_ARMWRESTLER=1 and ARMWRESTLE_DIR to run GBA CPU test ROMs")
	}
	dir := os.Getenv("ARMWRESTLE_DIR")
	if dir == "" {
		t.Skip("ARMWRESTLE_DIR not set")
	}
	if _, err := os.Stat(dir); err != nil {
		t.Skipf("armwrestler ROM dir missing: %s", dir)
	}
	roms, err := findGBARoms(dir)
	if err != nil {
		t.Fatalf("scan ROMs: %v", err)
	}
	if len(roms) == 0 {
		t.Skipf("no .gba ROMs found in %s", dir)
	}

	frames := 600
	if v := os.Getenv("ARMWRESTLE_FRAMES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			frames = n
		}
	}
	expect := os.Getenv("ARMWRESTLE_EXPECT_CRC32") // optional, applies to every ROM in the batch

	for _, rom := range roms {
		rom := rom
		name := strings.TrimSuffix(filepath.Base(rom), filepath.Ext(rom))
		t.Run(name, func(t *testing.T) {
			data, err := os.ReadFile(rom)
			if err != nil {
				t.Fatalf("read ROM: %v", err)
			}
			m := New(Config{})
			if err := m.LoadROMBytes(data); err != nil {
				t.Fatalf("load ROM: %v", err)
			}
			for i := 0; i < frames; i++ {
				m.StepFrame()
			}
			sum := crc32.ChecksumIEEE(m.Framebuffer())
			t.Logf("%s: framebuffer crc32=%08x after %d frames", name, sum, frames)
			if expect != "" {
				want, err := strconv.ParseUint(expect, 16, 32)
				if err != nil {
					t.Fatalf("ARMWRESTLE_EXPECT_CRC32 is not valid hex: %v", err)
				}
				if uint32(want) != sum {
					t.Fatalf("%s: crc32 = %08x, want %08x", name, sum, uint32(want))
				}
			}
		})
	}
}

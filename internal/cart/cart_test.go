package cart

import "testing"

func TestSRAM_ReadWrite(t *testing.T) {
	s := newSRAM()
	s.WriteByte(0x100, 0x55)
	if got := s.ReadByte(0x100); got != 0x55 {
		t.Fatalf("got %#02x want 0x55", got)
	}
}

func TestSRAM_SaveLoadRoundTrip(t *testing.T) {
	s := newSRAM()
	s.WriteByte(0, 0x11)
	s.WriteByte(0xFFFF, 0x22)
	data := s.Save()

	g := newSRAM()
	if err := g.Load(data); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got := g.ReadByte(0); got != 0x11 {
		t.Fatalf("byte 0 got %#02x", got)
	}
	if got := g.ReadByte(0xFFFF); got != 0x22 {
		t.Fatalf("byte 0xFFFF got %#02x", got)
	}
}

func TestNew_DetectsSRAM(t *testing.T) {
	rom := buildGBAHeader("HOMEBREW", "HBRW", "00", 0x1000)
	copy(rom[0x900:], "SRAM_V110")

	c, err := New(rom, nil)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if c.BackupKind() != BackupSRAM {
		t.Fatalf("BackupKind got %v want BackupSRAM", c.BackupKind())
	}
}

func TestNew_BackupMismatchIsFatal(t *testing.T) {
	rom := buildGBAHeader("HOMEBREW", "HBRW", "00", 0x1000)
	copy(rom[0x900:], "SRAM_V110")

	wrongKindBackup := newFlash(false)
	if _, err := New(rom, wrongKindBackup); err == nil {
		t.Fatalf("expected mismatch error, got nil")
	}
}

func TestCartridge_ROMOpenBus(t *testing.T) {
	rom := make([]byte, 0x100)
	c := &Cartridge{rom: rom, backup: newNoBackup()}

	// Past the end of the ROM, successive halfwords are (addr/2)&0xFFFF.
	got := c.ReadROMHalfword(0x200)
	want := uint16((0x200 / 2) & 0xFFFF)
	if got != want {
		t.Fatalf("open bus halfword got %#04x want %#04x", got, want)
	}
}

func TestCartridge_SaveLoadBackupRoundTrip(t *testing.T) {
	rom := buildGBAHeader("HOMEBREW", "HBRW", "00", 0x1000)
	copy(rom[0x900:], "SRAM_V110")

	c, err := New(rom, nil)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	c.WriteSRAMByte(5, 0x99)

	saved := c.SaveBackup()
	backup, err := LoadBackup(saved)
	if err != nil {
		t.Fatalf("LoadBackup error: %v", err)
	}
	if backup.Kind() != BackupSRAM {
		t.Fatalf("reloaded backup kind = %v", backup.Kind())
	}

	c2, err := New(rom, backup)
	if err != nil {
		t.Fatalf("New with reloaded backup error: %v", err)
	}
	if got := c2.ReadSRAMByte(5); got != 0x99 {
		t.Fatalf("reloaded SRAM byte got %#02x want 0x99", got)
	}
}

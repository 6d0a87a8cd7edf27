package cart

import "testing"

// buildGBAHeader produces a minimal valid GBA header with the given title
// and game code at the real offsets (§3).
func buildGBAHeader(title, gameCode, maker string, size int) []byte {
	rom := make([]byte, size)
	copy(rom[headerTitleStart:headerTitleStart+headerTitleLen], title)
	copy(rom[headerCodeStart:headerCodeStart+headerCodeLen], gameCode)
	copy(rom[headerMakerStart:headerMakerStart+2], maker)
	return rom
}

func TestParseHeader_Basic(t *testing.T) {
	rom := buildGBAHeader("POKEMON EMER", "BPEE", "01", 0x200)

	h, err := ParseHeader(rom)
	if err != nil {
		t.Fatalf("ParseHeader error: %v", err)
	}
	if h.Title != "POKEMON EMER" {
		t.Fatalf("Title got %q", h.Title)
	}
	if h.GameCode != "BPEE" {
		t.Fatalf("GameCode got %q", h.GameCode)
	}
	if h.Maker != "01" {
		t.Fatalf("Maker got %q", h.Maker)
	}
}

func TestParseHeader_ShortROM(t *testing.T) {
	short := make([]byte, 0x40)
	if _, err := ParseHeader(short); err == nil {
		t.Fatalf("expected error on too-small ROM, got nil")
	}
}

func TestDetectBackupType_KnownGameCode(t *testing.T) {
	rom := buildGBAHeader("POKEMON EMER", "BPEE", "01", 0x200)
	h, _ := ParseHeader(rom)
	if kind := detectBackupType(rom, h); kind != BackupFlash128K {
		t.Fatalf("detectBackupType got %v want BackupFlash128K", kind)
	}
}

func TestDetectBackupType_ASCIIScan(t *testing.T) {
	rom := buildGBAHeader("HOMEBREW", "HBRW", "00", 0x1000)
	copy(rom[0x800:], "EEPROM_V120")
	h, _ := ParseHeader(rom)
	if kind := detectBackupType(rom, h); kind != BackupEEPROM {
		t.Fatalf("detectBackupType got %v want BackupEEPROM", kind)
	}
}

func TestDetectBackupType_None(t *testing.T) {
	rom := buildGBAHeader("HOMEBREW", "HBRW", "00", 0x1000)
	h, _ := ParseHeader(rom)
	if kind := detectBackupType(rom, h); kind != BackupNone {
		t.Fatalf("detectBackupType got %v want BackupNone", kind)
	}
}

package cart

import "testing"

func flashUnlock(f *flash) {
	f.WriteByte(flashUnlockAddr1, flashUnlockByte1)
	f.WriteByte(flashUnlockAddr2, flashUnlockByte2)
}

func TestFlash_ByteProgram(t *testing.T) {
	f := newFlash(false)

	flashUnlock(f)
	f.WriteByte(flashUnlockAddr1, flashCmdWriteByte)
	f.WriteByte(0x1234, 0x42)

	if got := f.ReadByte(0x1234); got != 0x42 {
		t.Fatalf("ReadByte got %#02x want 0x42", got)
	}
}

func TestFlash_SectorErase(t *testing.T) {
	f := newFlash(false)
	flashUnlock(f)
	f.WriteByte(flashUnlockAddr1, flashCmdWriteByte)
	f.WriteByte(0x0010, 0x55)

	flashUnlock(f)
	f.WriteByte(flashUnlockAddr1, flashCmdErase)
	flashUnlock(f)
	f.WriteByte(0x0000, flashCmdEraseSector)

	if got := f.ReadByte(0x0010); got != 0xFF {
		t.Fatalf("sector erase left %#02x want 0xFF", got)
	}
}

func TestFlash_ChipErase(t *testing.T) {
	f := newFlash(false)
	flashUnlock(f)
	f.WriteByte(flashUnlockAddr1, flashCmdWriteByte)
	f.WriteByte(0x5000, 0x99)

	flashUnlock(f)
	f.WriteByte(flashUnlockAddr1, flashCmdErase)
	flashUnlock(f)
	f.WriteByte(flashUnlockAddr1, flashCmdEraseChip)

	if got := f.ReadByte(0x5000); got != 0xFF {
		t.Fatalf("chip erase left %#02x want 0xFF", got)
	}
}

func TestFlash_Identification(t *testing.T) {
	f := newFlash(true)
	flashUnlock(f)
	f.WriteByte(flashUnlockAddr1, flashCmdEnterIdent)

	mfg := f.ReadByte(0)
	dev := f.ReadByte(1)
	if mfg != 0x62 || dev != 0x13 {
		t.Fatalf("ident bytes got %#02x,%#02x want 0x62,0x13", mfg, dev)
	}

	flashUnlock(f)
	f.WriteByte(flashUnlockAddr1, flashCmdExitIdent)
	if f.identMode {
		t.Fatalf("identMode still set after exit command")
	}
}

func TestFlash_BankSwitch128K(t *testing.T) {
	f := newFlash(true)

	flashUnlock(f)
	f.WriteByte(flashUnlockAddr1, flashCmdWriteByte)
	f.WriteByte(0x0000, 0xAA)

	flashUnlock(f)
	f.WriteByte(flashUnlockAddr1, flashCmdSwitchBank)
	f.WriteByte(0x0000, 1)

	flashUnlock(f)
	f.WriteByte(flashUnlockAddr1, flashCmdWriteByte)
	f.WriteByte(0x0000, 0xBB)

	flashUnlock(f)
	f.WriteByte(flashUnlockAddr1, flashCmdSwitchBank)
	f.WriteByte(0x0000, 0)

	if got := f.ReadByte(0x0000); got != 0xAA {
		t.Fatalf("bank0 byte got %#02x want 0xAA", got)
	}
}

func TestFlash_SaveLoadRoundTrip(t *testing.T) {
	f := newFlash(false)
	flashUnlock(f)
	f.WriteByte(flashUnlockAddr1, flashCmdWriteByte)
	f.WriteByte(0x10, 0x7E)

	data := f.Save()
	g := newFlash(false)
	if err := g.Load(data); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got := g.ReadByte(0x10); got != 0x7E {
		t.Fatalf("reloaded byte got %#02x want 0x7E", got)
	}
}

func TestFlash_LoadSizeMismatch(t *testing.T) {
	f := newFlash(true)
	if err := f.Load(make([]byte, 10)); err == nil {
		t.Fatalf("expected size-mismatch error, got nil")
	}
}

// Package cart implements the GBA cartridge from spec §3/§4.9: the ROM byte
// vector plus one of the three backup technologies (SRAM, Flash, EEPROM),
// each a small protocol state machine driven by bus reads/writes instead of
// a flat memory array. The package shape - a Cartridge that picks one of
// several backup implementations behind a common interface, detected from
// the header - follows the teacher's internal/cart package, which does the
// same thing for its MBC1/MBC3/MBC5 variants.
package cart

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"regexp"
)

// BackupKind identifies which backup technology a cartridge exposes.
type BackupKind byte

const (
	BackupNone BackupKind = iota
	BackupEEPROM
	BackupFlash64K
	BackupFlash128K
	BackupSRAM
)

func (k BackupKind) String() string {
	switch k {
	case BackupEEPROM:
		return "EEPROM"
	case BackupFlash64K, BackupFlash128K:
		return "FLASH"
	case BackupSRAM:
		return "SRAM"
	default:
		return "NONE"
	}
}

// persistedTag matches §6's backup file layout: {tag, payload}.
func (k BackupKind) persistedTag() byte {
	switch k {
	case BackupEEPROM:
		return 1
	case BackupFlash64K, BackupFlash128K:
		return 2
	case BackupSRAM:
		return 3
	default:
		return 0
	}
}

func tagToKind(tag byte) (BackupKind, bool) {
	switch tag {
	case 0:
		return BackupNone, true
	case 1:
		return BackupEEPROM, true
	case 2:
		return BackupFlash128K, true
	case 3:
		return BackupSRAM, true
	default:
		return BackupNone, false
	}
}

// Backup is the interface every backup technology implements. ReadByte and
// WriteByte are indexed relative to the backup's own addressable window
// (the bus translates GamePak SRAM / EEPROM-in-ROM addresses down to this
// offset before calling in).
type Backup interface {
	Kind() BackupKind
	ReadByte(offset uint32) byte
	WriteByte(offset uint32, value byte)
	Save() []byte
	Load(data []byte) error
}

// backup detection ASCII patterns (§3): the ROM is scanned for one of these
// ID strings if the header's game code doesn't resolve via the small known
// table in header.go.
var (
	eepromPattern = regexp.MustCompile(`EEPROM_V\d\d\d`)
	sramPattern   = regexp.MustCompile(`SRAM_V\d\d\d`)
	flash1Pattern = regexp.MustCompile(`FLASH1M_V\d\d\d`)
	flashPattern  = regexp.MustCompile(`FLASH_V\d\d\d`)
)

// detectBackupType implements §3's detection order: header ID first, ASCII
// scan second.
func detectBackupType(rom []byte, h Header) BackupKind {
	if kind, ok := knownBackupByGameCode[h.GameCode]; ok {
		return kind
	}
	switch {
	case eepromPattern.Match(rom):
		return BackupEEPROM
	case flash1Pattern.Match(rom):
		return BackupFlash128K
	case flashPattern.Match(rom):
		return BackupFlash64K
	case sramPattern.Match(rom):
		return BackupSRAM
	default:
		return BackupNone
	}
}

// Cartridge owns the ROM bytes and the detected backup implementation.
type Cartridge struct {
	rom    []byte
	backup Backup
	header Header
}

// New builds a Cartridge from raw ROM bytes, detecting the backup type per
// §3. If existingBackup is non-nil it is adopted in place of a freshly
// reset backup, provided its kind matches detection - a mismatch is the
// fatal startup "Configuration" error from §7.
func New(rom []byte, existingBackup Backup) (*Cartridge, error) {
	h, err := ParseHeader(rom)
	if err != nil {
		log.Printf("cart: %v; proceeding without header metadata", err)
	}
	kind := detectBackupType(rom, h)
	log.Printf("cart: %q (%s) detected backup type %s", h.Title, h.GameCode, kind)

	c := &Cartridge{rom: rom, header: h}
	fresh := newBackup(kind)
	if existingBackup == nil {
		c.backup = fresh
		return c, nil
	}
	if existingBackup.Kind() != kind {
		return nil, errors.New("cart: persisted backup type does not match detected cartridge backup type")
	}
	c.backup = existingBackup
	return c, nil
}

func newBackup(kind BackupKind) Backup {
	switch kind {
	case BackupEEPROM:
		return newEEPROM()
	case BackupFlash64K:
		return newFlash(false)
	case BackupFlash128K:
		return newFlash(true)
	case BackupSRAM:
		return newSRAM()
	default:
		return newNoBackup()
	}
}

func (c *Cartridge) Header() Header       { return c.header }
func (c *Cartridge) BackupKind() BackupKind { return c.backup.Kind() }

// ReadROMByte returns a ROM byte, or the open-bus pattern real carts expose
// past the end of the dump: successive 16-bit halfwords of (addr/2)&0xFFFF,
// because the GamePak bus reuses the address lines as data lines when no
// chip drives the read.
func (c *Cartridge) ReadROMByte(addr uint32) byte {
	if int(addr) < len(c.rom) {
		return c.rom[addr]
	}
	hword := uint16((addr / 2) & 0xFFFF)
	if addr&1 == 0 {
		return byte(hword)
	}
	return byte(hword >> 8)
}

// eepromThreshold mirrors the original core's cutover: EEPROM command/data
// halfwords are only recognized above this ROM-relative offset, or past the
// end of the ROM image entirely - smaller carts use the whole FLASH/SRAM
// address window for actual ROM data and only "large" carts reserve the
// top of the address space for EEPROM.
const eepromThreshold = 0x1FFFF00

// ReadROMHalfword and WriteROMHalfword route to EEPROM's serial protocol
// when the cartridge's backup is EEPROM and the address falls in the
// reserved window (§4.9); otherwise they pass through to ROM bytes (ROM
// writes are ignored).
func (c *Cartridge) ReadROMHalfword(addr uint32) uint16 {
	if ee, ok := c.backup.(*eeprom); ok && (addr > eepromThreshold || int(addr) >= len(c.rom)) {
		return ee.readSerial()
	}
	lo := c.ReadROMByte(addr)
	hi := c.ReadROMByte(addr + 1)
	return uint16(lo) | uint16(hi)<<8
}

func (c *Cartridge) WriteROMHalfword(addr uint32, value uint16) {
	if ee, ok := c.backup.(*eeprom); ok && (addr > eepromThreshold || int(addr) >= len(c.rom)) {
		ee.writeSerial(value)
	}
	// Other ROM halfword writes are ignored: ROM is read-only.
}

// ReadSRAMByte/WriteSRAMByte route to whichever backup is installed,
// per §4.9.
func (c *Cartridge) ReadSRAMByte(offset uint32) byte  { return c.backup.ReadByte(offset) }
func (c *Cartridge) WriteSRAMByte(offset uint32, v byte) { c.backup.WriteByte(offset, v) }

// SaveBackup/LoadBackup implement §6's persisted-state layout: a tag byte
// followed by the backup's raw payload.
func (c *Cartridge) SaveBackup() []byte {
	return append([]byte{c.backup.Kind().persistedTag()}, c.backup.Save()...)
}

func LoadBackup(data []byte) (Backup, error) {
	if len(data) == 0 {
		return newNoBackup(), nil
	}
	kind, ok := tagToKind(data[0])
	if !ok {
		return nil, errors.New("cart: unrecognized persisted backup tag")
	}
	b := newBackup(kind)
	if err := b.Load(data[1:]); err != nil {
		return nil, err
	}
	return b, nil
}

// looksLikeASCIIMarker reports whether rom contains marker as a literal
// byte string.
func looksLikeASCIIMarker(rom []byte, marker string) bool {
	return bytes.Contains(rom, []byte(marker))
}

// errSizeMismatch reports a backup payload of the wrong size at load time,
// which per §7 is a fatal configuration error rather than something to
// silently truncate or zero-pad.
func errSizeMismatch(kind BackupKind, want, got int) error {
	return fmt.Errorf("cart: %s backup expects %d bytes, got %d", kind, want, got)
}

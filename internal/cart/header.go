package cart

import (
	"bytes"
	"errors"
)

const (
	headerTitleStart = 0x0A0
	headerTitleLen   = 12
	headerCodeStart  = 0x0AC
	headerCodeLen    = 4
	headerMakerStart = 0x0B0
	headerMinLen     = 0x0C0
)

// Header is the slice of the 192-byte GBA cartridge header this core cares
// about: enough to log a game's identity and to look it up in the small
// known-backup-type table before falling back to ASCII scanning.
type Header struct {
	Title    string
	GameCode string
	Maker    string
}

func ParseHeader(rom []byte) (Header, error) {
	if len(rom) < headerMinLen {
		return Header{}, errors.New("cart: ROM too small to contain a header")
	}
	return Header{
		Title:    trimASCII(rom[headerTitleStart : headerTitleStart+headerTitleLen]),
		GameCode: trimASCII(rom[headerCodeStart : headerCodeStart+headerCodeLen]),
		Maker:    trimASCII(rom[headerMakerStart : headerMakerStart+2]),
	}, nil
}

func trimASCII(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// knownBackupByGameCode is a small, hand-maintained table of game codes
// known to need a backup type the ASCII scan can't disambiguate on its own
// (some carts carry more than one save-string-shaped sequence in their
// data segment). It is intentionally tiny: the common path is the ASCII
// scan in detectBackupType, exactly as the original implementation tries
// its own header-ID table first before falling back to scanning.
var knownBackupByGameCode = map[string]BackupKind{
	"FADE": BackupFlash128K, // Pokemon FireRed/LeafGreen-family carts
	"BPEE": BackupFlash128K, // Pokemon Emerald
	"AXVE": BackupFlash128K, // Pokemon Ruby/Sapphire
}

// Command gbacore is the host shell: load a cartridge, then either drive it
// through an ebiten window or run it headless for a fixed number of frames,
// following the shape of the teacher's cmd/gbemu.
package main

import (
	"flag"
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/retropix/gbacore/internal/emu"
	"github.com/retropix/gbacore/internal/ui"
)

type cliFlags struct {
	ROMPath    string
	BackupPath string
	BIOSPath   string
	Scale      int
	Title      string
	Trace      bool

	Headless bool
	Frames   int
	PNGOut   string
	Expect   string
}

func parseFlags() cliFlags {
	var f cliFlags
	flag.StringVar(&f.ROMPath, "rom", "", "path to ROM (.gba)")
	flag.StringVar(&f.BackupPath, "backup", "", "path to persisted cartridge backup (default: <rom>.sav)")
	flag.StringVar(&f.BIOSPath, "bios", "", "optional real BIOS dump (defaults to the embedded placeholder)")
	flag.IntVar(&f.Scale, "scale", 3, "window scale")
	flag.StringVar(&f.Title, "title", "gbacore", "window title")
	flag.BoolVar(&f.Trace, "trace", false, "log PC/CPSR before every instruction")
	flag.BoolVar(&f.Headless, "headless", false, "run without a window")
	flag.IntVar(&f.Frames, "frames", 300, "frames to run in headless mode")
	flag.StringVar(&f.PNGOut, "outpng", "", "write the final framebuffer to PNG at path")
	flag.StringVar(&f.Expect, "expect", "", "assert the final framebuffer's CRC32 (hex)")
	flag.Parse()
	return f
}

func defaultBackupPath(romPath string) string {
	ext := filepath.Ext(romPath)
	return strings.TrimSuffix(romPath, ext) + ".sav"
}

func runHeadless(m *emu.Machine, frames int, pngPath, expectCRC string) error {
	if frames <= 0 {
		frames = 1
	}
	start := time.Now()
	ui.RunHeadless(m, frames, false)
	dur := time.Since(start)

	fb := m.Framebuffer()
	crc := crc32.ChecksumIEEE(fb)
	log.Printf("headless: frames=%d elapsed=%s fps=%.2f fb_crc32=%08x",
		frames, dur.Truncate(time.Millisecond), float64(frames)/dur.Seconds(), crc)

	if pngPath != "" {
		if err := saveFramePNG(fb, 240, 160, pngPath); err != nil {
			return fmt.Errorf("write PNG: %w", err)
		}
		log.Printf("wrote %s", pngPath)
	}
	if expectCRC != "" {
		want := strings.TrimPrefix(strings.ToLower(expectCRC), "0x")
		got := fmt.Sprintf("%08x", crc)
		if got != want {
			return fmt.Errorf("checksum mismatch: got %s, want %s", got, want)
		}
	}
	return nil
}

func saveFramePNG(pix []byte, w, h int, path string) error {
	img := &image.RGBA{
		Pix:    append([]byte(nil), pix...),
		Stride: 4 * w,
		Rect:   image.Rect(0, 0, w, h),
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

func main() {
	f := parseFlags()
	if f.ROMPath == "" {
		log.Fatal("gbacore: -rom is required")
	}
	backupPath := f.BackupPath
	if backupPath == "" {
		backupPath = defaultBackupPath(f.ROMPath)
	}

	m := emu.New(emu.Config{Trace: f.Trace})
	if err := m.LoadROMFile(f.ROMPath, backupPath, f.BIOSPath); err != nil {
		log.Fatalf("load ROM: %v", err)
	}
	log.Printf("loaded %s (backup=%s)", m.Cart().Header().Title, backupPath)

	if f.Headless {
		runErr := runHeadless(m, f.Frames, f.PNGOut, f.Expect)
		if err := m.WriteBackupFile(backupPath); err != nil {
			log.Printf("write backup: %v", err)
		}
		if runErr != nil {
			log.Fatal(runErr)
		}
		return
	}

	app := ui.NewApp(ui.Config{Title: f.Title, Scale: f.Scale}, m)
	runErr := app.Run()
	if err := m.WriteBackupFile(backupPath); err != nil {
		log.Printf("write backup: %v", err)
	}
	if runErr != nil {
		log.Fatal(runErr)
	}
}

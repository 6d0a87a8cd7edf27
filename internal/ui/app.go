package ui

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/retropix/gbacore/internal/emu"
)

const (
	screenW = 240
	screenH = 160

	// gbaFPS is the GBA's fixed refresh rate: master clock (2^24 Hz) divided
	// by cycles-per-frame (308*228*4), matching emu.cyclesPerFrame.
	gbaFPS = 16777216.0 / (308 * 228 * 4)
)

// App is the ebiten.Game implementation driving a Machine: keyboard polling,
// frame-accumulator pacing, and a debug blit of Machine.Framebuffer, the same
// three responsibilities the teacher's App carries without its DMG/CGB menu
// system or audio playback (out of scope per this core's Non-goals).
type App struct {
	cfg Config
	m   *emu.Machine
	tex *ebiten.Image

	paused bool

	lastTime time.Time
	frameAcc float64

	toastMsg   string
	toastUntil time.Time
}

// NewApp wires a Machine into a ready-to-run ebiten.Game, applying persisted
// window settings the way the teacher's NewApp does.
func NewApp(cfg Config, m *emu.Machine) *App {
	cfg = LoadSettings(cfg)
	cfg.Defaults()
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(screenW*cfg.Scale, screenH*cfg.Scale)
	return &App{cfg: cfg, m: m, lastTime: time.Now()}
}

// Run starts the ebiten game loop; it blocks until the window closes.
func (a *App) Run() error { return ebiten.RunGame(a) }

func (a *App) pollButtons() emu.Buttons {
	if a.paused {
		return emu.Buttons{}
	}
	var b emu.Buttons
	b.Up = ebiten.IsKeyPressed(ebiten.KeyArrowUp)
	b.Down = ebiten.IsKeyPressed(ebiten.KeyArrowDown)
	b.Left = ebiten.IsKeyPressed(ebiten.KeyArrowLeft)
	b.Right = ebiten.IsKeyPressed(ebiten.KeyArrowRight)
	b.A = ebiten.IsKeyPressed(ebiten.KeyZ)
	b.B = ebiten.IsKeyPressed(ebiten.KeyX)
	b.Start = ebiten.IsKeyPressed(ebiten.KeyEnter)
	b.Select = ebiten.IsKeyPressed(ebiten.KeyShiftRight)
	b.L = ebiten.IsKeyPressed(ebiten.KeyA)
	b.R = ebiten.IsKeyPressed(ebiten.KeyS)
	return b
}

func (a *App) statePath() string {
	if a.m.ROMPath() == "" {
		return ""
	}
	return a.m.ROMPath() + ".state"
}

func (a *App) Update() error {
	a.m.SetButtons(a.pollButtons())

	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		a.paused = !a.paused
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF5) {
		if path := a.statePath(); path != "" {
			if blob, err := a.m.SaveState(); err == nil {
				if err := os.WriteFile(path, blob, 0o644); err == nil {
					a.toast("state saved")
				} else {
					a.toast("save failed: " + err.Error())
				}
			}
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF9) {
		if path := a.statePath(); path != "" {
			if blob, err := os.ReadFile(path); err == nil {
				if err := a.m.LoadState(blob); err == nil {
					a.toast("state loaded")
				} else {
					a.toast("load failed: " + err.Error())
				}
			} else {
				a.toast("no saved state")
			}
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF2) {
		if err := a.m.WriteBackupFile(""); err == nil {
			a.toast("backup written")
		} else {
			a.toast("backup write failed: " + err.Error())
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF12) {
		if err := a.saveScreenshot(); err != nil {
			a.toast("screenshot failed: " + err.Error())
		} else {
			a.toast("screenshot saved")
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF11) {
		ebiten.SetFullscreen(!ebiten.IsFullscreen())
	}

	if a.paused {
		a.lastTime = time.Now()
		a.frameAcc = 0
		return nil
	}

	// Frame pacing: accumulate fractional frames from wall-clock delta,
	// same decoupled-from-ebiten's-Update-rate approach as the teacher.
	now := time.Now()
	dt := now.Sub(a.lastTime).Seconds()
	if dt < 0 {
		dt = 0
	}
	a.lastTime = now
	a.frameAcc += dt * gbaFPS

	steps := 0
	for a.frameAcc >= 1.0 && steps < 8 { // cap to avoid a spiral of death after a stall
		a.m.StepFrame()
		a.frameAcc -= 1.0
		steps++
	}
	return nil
}

func (a *App) Draw(screen *ebiten.Image) {
	if a.tex == nil {
		a.tex = ebiten.NewImage(screenW, screenH)
	}
	a.tex.WritePixels(a.m.Framebuffer())
	screen.DrawImage(a.tex, nil)

	if a.paused {
		ebitenutil.DebugPrintAt(screen, "PAUSED", 4, 4)
	}
	if a.toastMsg != "" && time.Now().Before(a.toastUntil) {
		ebitenutil.DebugPrintAt(screen, a.toastMsg, 4, screenH-16)
	}
}

func (a *App) Layout(outsideWidth, outsideHeight int) (int, int) { return screenW, screenH }

func (a *App) toast(msg string) {
	a.toastMsg = msg
	a.toastUntil = time.Now().Add(2 * time.Second)
}

func (a *App) saveScreenshot() error {
	fb := a.m.Framebuffer()
	img := &image.RGBA{
		Pix:    append([]byte(nil), fb...),
		Stride: 4 * screenW,
		Rect:   image.Rect(0, 0, screenW, screenH),
	}
	name := fmt.Sprintf("screenshot_%s.png", time.Now().Format("20060102_150405"))
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

package ui

import (
	"time"

	"github.com/retropix/gbacore/internal/emu"
)

// RunHeadless steps m for exactly frames frames with no window, for
// cmd/gbacore's -headless flag. When paced is true, each frame is held to
// the GBA's native rate with preciseSleep rather than running flat-out -
// there is no ebiten game loop here to provide that pacing itself.
func RunHeadless(m *emu.Machine, frames int, paced bool) {
	frameDur := time.Duration(float64(time.Second) / gbaFPS)
	next := time.Now()
	for i := 0; i < frames; i++ {
		m.StepFrame()
		if paced {
			next = next.Add(frameDur)
			if d := time.Until(next); d > 0 {
				preciseSleep(d)
			}
		}
	}
}

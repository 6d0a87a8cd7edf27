//go:build !linux

package ui

import "time"

// preciseSleep falls back to time.Sleep on platforms where the
// golang.org/x/sys/unix raw nanosleep path doesn't apply.
func preciseSleep(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}

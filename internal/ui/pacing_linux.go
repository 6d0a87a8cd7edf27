//go:build linux

package ui

import (
	"time"

	"golang.org/x/sys/unix"
)

// preciseSleep blocks for d using a raw nanosleep syscall rather than
// time.Sleep, the same sub-millisecond correction the teacher's audio
// ring-buffer pacing relies on (there, indirectly through ebiten/oto's
// transitive x/sys dependency; here, directly, since this core paces whole
// video frames instead of draining an audio buffer).
func preciseSleep(d time.Duration) {
	if d <= 0 {
		return
	}
	ts := unix.NsecToTimespec(d.Nanoseconds())
	for {
		rem := unix.Timespec{}
		err := unix.Nanosleep(&ts, &rem)
		if err == nil {
			return
		}
		if err == unix.EINTR {
			ts = rem
			continue
		}
		return
	}
}

// Package timer implements the four prescaled, cascadable timers described
// in spec §3 and §4.8.
package timer

// prescaler divisors selected by control bits 0-1.
var prescalers = [4]int{1, 64, 256, 1024}

const (
	ctrlPrescalerMask = 0x3
	ctrlCascade       = 1 << 2
	ctrlIRQEnable     = 1 << 6
	ctrlStart         = 1 << 7
)

// Timer is one of the four 16-bit counters.
type Timer struct {
	index int

	counter uint16
	reload  uint16
	control uint16

	tick int // master cycles accumulated since the last prescaler boundary
}

func (t *Timer) Counter() uint16 { return t.counter }
func (t *Timer) Control() uint16 { return t.control }

func (t *Timer) WriteReload(v uint16) { t.reload = v }

// WriteControl latches the reload value into the counter when the timer
// transitions from stopped to started, matching real hardware behavior
// observed by homebrew test ROMs.
func (t *Timer) WriteControl(v uint16) {
	wasRunning := t.control&ctrlStart != 0
	t.control = v
	nowRunning := t.control&ctrlStart != 0
	if nowRunning && !wasRunning {
		t.counter = t.reload
		t.tick = 0
	}
}

func (t *Timer) running() bool  { return t.control&ctrlStart != 0 }
func (t *Timer) cascade() bool  { return t.control&ctrlCascade != 0 }
func (t *Timer) irqEnable() bool {
	return t.control&ctrlIRQEnable != 0
}
func (t *Timer) prescaler() int { return prescalers[t.control&ctrlPrescalerMask] }

// stepIncrement increments the counter by one tick, reloading and reporting
// overflow on wraparound. A reload of 0xFFFE therefore overflows after
// exactly 2 ticks (0xFFFE->0xFFFF, then 0xFFFF->0x0000), matching
// original_source/emulator-core/src/timer.rs's counter.overflowing_add(1)
// reload-on-wrap behavior.
func (t *Timer) stepIncrement() (overflowed bool) {
	if t.counter == 0xFFFF {
		t.counter = t.reload
		return true
	}
	t.counter++
	return false
}

// IRQRaiser signals a per-timer overflow IRQ request.
type IRQRaiser func(index int)

// Controller owns the four timers and steps them in index order every
// master cycle, feeding each timer's overflow into the next one when
// cascade is enabled (§4.8).
type Controller struct {
	T [4]Timer
}

func NewController() *Controller {
	c := &Controller{}
	for i := range c.T {
		c.T[i].index = i
	}
	return c
}

// Step advances every running timer by one master cycle and returns the
// per-timer overflow flags for this cycle, for the APU to consume.
func (c *Controller) Step(raiseIRQ IRQRaiser) (overflows [4]bool) {
	prevOverflow := false
	for i := range c.T {
		t := &c.T[i]
		if !t.running() {
			prevOverflow = false
			continue
		}

		var of bool
		if t.cascade() && i > 0 {
			if prevOverflow {
				of = t.stepIncrement()
			}
		} else {
			t.tick++
			if t.tick >= t.prescaler() {
				t.tick -= t.prescaler()
				of = t.stepIncrement()
			}
		}

		if of {
			overflows[i] = true
			if t.irqEnable() && raiseIRQ != nil {
				raiseIRQ(i)
			}
		}
		prevOverflow = of
	}
	return overflows
}

package bus

// waitcntPrefetchBit is WAITCNT bit 14, the GamePak prefetch buffer enable,
// a feature spec.md's distillation dropped but the original (src/bus.rs)
// implements: ROM, not just VRAM/EWRAM, benefits from a small lookahead
// buffer once enabled.
const waitcntPrefetchBit = 1 << 14

// romAccessCycles is romWaitStates plus the prefetch-buffer supplement: with
// WAITCNT bit 14 set, every sequential ROM access after the first in an
// unbroken run costs a single cycle, because the buffer has already fetched
// it ahead of the CPU asking. A non-sequential access always breaks the run
// and pays the full configured cost.
func (b *Bus) romAccessCycles(addr uint32, access AccessType) int {
	if access == NonSequential {
		b.prefetchRun = 0
		return b.romWaitStates(addr, NonSequential)
	}

	b.prefetchRun++
	if b.waitcnt&waitcntPrefetchBit != 0 && b.prefetchRun > 1 {
		return 1
	}
	return b.romWaitStates(addr, Sequential)
}

package cpu

// AccessType distinguishes a sequential bus access (address follows directly
// from the previous one) from a non-sequential one, per §4.3.
type AccessType int

const (
	Sequential AccessType = iota
	NonSequential
)

// pipeline models the fetch/decode lag from §3: one freshly fetched and
// decoded instruction sits in decoded until the next fetch shifts it out
// to execute, a one-instruction lag between fetch and execute. decoded is
// stored as `any` holding either an *armInstruction or a *thumbInstruction
// depending on state, since ARM<->Thumb transitions flush both anyway.
type pipeline struct {
	rawOpcode uint32
	decoded   any

	// sequential tracks whether the *next* fetch should use sequential
	// timing. Step sets it after every fetch and only a flush clears it;
	// data accesses made by an executing instruction leave it unchanged.
	sequential bool

	// primed is false until the first fetch after a flush has happened;
	// until then decoded holds nothing real and advance must not hand it
	// out as ready-to-execute.
	primed bool
}

// flush discards the pipeline slot and marks the next fetch as
// non-sequential, per §3 and the testable property in §8.
func (p *pipeline) flush() {
	p.rawOpcode = 0
	p.decoded = nil
	p.sequential = false
	p.primed = false
}

// advance shifts a freshly fetched+decoded instruction into the pipeline,
// returning the instruction that is now ready to execute (nil on the first
// fetch after a flush, since nothing is queued yet).
func (p *pipeline) advance(raw uint32, decoded any) any {
	ready := p.decoded
	wasPrimed := p.primed
	p.rawOpcode = raw
	p.decoded = decoded
	p.primed = true
	if !wasPrimed {
		return nil
	}
	return ready
}

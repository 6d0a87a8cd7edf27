//go:build armgraph

package cpu

import (
	"io"

	"github.com/bradleyjkemp/memviz"
)

// decodeStep documents one entry of execARM's try-chain: a bit mask/pattern
// pair and the instruction family it dispatches to, in the order §4.4/§9
// requires (branch/BX first, since they're identifiable from a handful of
// fixed bits, down to SWI last).
type decodeStep struct {
	Name    string
	Mask    uint32
	Pattern uint32
}

var armDecodeChain = []decodeStep{
	{"BX", 0x0FFFFFF0, 0x012FFF10},
	{"Branch", 0x0E000000, 0x0A000000},
	{"Multiply", 0x0FC000F0, 0x00000090},
	{"MultiplyLong", 0x0F8000F0, 0x00800090},
	{"SingleDataSwap", 0x0FB00FF0, 0x01000090},
	{"HalfwordTransfer", 0x0E000090, 0x00000090},
	{"MRS", 0, 0},
	{"MSR", 0, 0},
	{"DataProcessing", 0x0C000000, 0x00000000},
	{"SingleDataTransfer", 0x0C000000, 0x04000000},
	{"BlockDataTransfer", 0x0E000000, 0x08000000},
	{"SoftwareInterrupt", 0x0F000000, 0x0F000000},
}

// DumpDecodeGraph writes the ARM decode try-chain as a Graphviz .dot file to
// w, using memviz the way Gopher2600 dumps its own internal command-parser
// graph for documentation. Built only with -tags armgraph, since memviz adds
// a reflection-heavy dependency this core otherwise has no runtime need for.
func DumpDecodeGraph(w io.Writer) error {
	memviz.Map(w, &armDecodeChain)
	return nil
}

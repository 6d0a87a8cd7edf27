//go:build !armgraph

package cpu

import (
	"errors"
	"io"
)

// DumpDecodeGraph is only available in builds tagged armgraph (see
// armgraph.go); the default build skips the memviz dependency entirely.
func DumpDecodeGraph(w io.Writer) error {
	return errors.New("cpu: DumpDecodeGraph requires building with -tags armgraph")
}

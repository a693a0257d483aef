package augment

import (
	"context"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Backend executes a normalized Plan against a record and returns a new
// record with the plan's output columns appended after the input columns.
// Implementations must not mutate the input record and must either return
// the complete result or an error, never a partial table.
type Backend interface {
	Apply(ctx context.Context, alloc memory.Allocator, rec arrow.Record, plan *Plan) (arrow.Record, error)
}

var (
	backendsMu sync.RWMutex
	backends   = make(map[Engine]Backend)
)

// Register installs a backend for an engine. Engine packages call this from
// their init, so importing an engine package is what makes its tag routable.
func Register(engine Engine, b Backend) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	if b == nil {
		panic("augment: Register called with nil backend")
	}
	backends[engine] = b
}

func backendFor(engine Engine) (Backend, error) {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	b, ok := backends[engine]
	if !ok {
		return nil, configErrorf("engine %q is not registered (missing import of its package?)", engine)
	}
	return b, nil
}

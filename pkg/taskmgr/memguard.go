package taskmgr

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	sharederrors "github.com/tandemseis/hazengine/pkg/shared/errors"
)

// MemoryGuard samples process memory before submission and within each
// reduce step (spec.md §4.2/§5): above softLimit it warns, above hardLimit
// it fails with OutOfMemory.
//
// limitBytes is the ceiling against which usage is measured; when zero, a
// generous default (4 GiB) is assumed, matching a typical single-node
// batch run rather than querying total system memory (which the standard
// library has no portable API for).
type MemoryGuard struct {
	limitBytes   uint64
	softPercent  float64
	hardPercent  float64
	onWarn       func(usedPercent float64, hostname string)

	mu       sync.Mutex
	warned   bool
}

const defaultMemoryLimitBytes = 4 << 30

// NewMemoryGuard builds a guard. limitBytes == 0 uses the default.
func NewMemoryGuard(limitBytes uint64, softPercent, hardPercent float64) *MemoryGuard {
	if limitBytes == 0 {
		limitBytes = defaultMemoryLimitBytes
	}
	return &MemoryGuard{limitBytes: limitBytes, softPercent: softPercent, hardPercent: hardPercent}
}

// OnWarn registers a callback invoked (at most once per guard, per
// spec.md's "emit a warning") when usage first crosses the soft
// threshold.
func (g *MemoryGuard) OnWarn(fn func(usedPercent float64, hostname string)) {
	g.onWarn = fn
}

// Check samples the memory the Go runtime has obtained from the OS
// (runtime.MemStats.Sys) against the configured limit, warning
// above the soft threshold and failing with OutOfMemory above the hard
// threshold.
func (g *MemoryGuard) Check() error {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	usedPercent := float64(ms.Sys) / float64(g.limitBytes) * 100
	hostname, _ := os.Hostname()

	if usedPercent > g.hardPercent {
		return sharederrors.NewOutOfMemory(hostname, usedPercent)
	}
	if usedPercent > g.softPercent {
		g.mu.Lock()
		already := g.warned
		g.warned = true
		g.mu.Unlock()
		if !already && g.onWarn != nil {
			g.onWarn(usedPercent, hostname)
		}
	}
	return nil
}

func (g *MemoryGuard) String() string {
	return fmt.Sprintf("MemoryGuard(limit=%d soft=%.0f%% hard=%.0f%%)", g.limitBytes, g.softPercent, g.hardPercent)
}

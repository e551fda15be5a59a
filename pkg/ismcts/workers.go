package ismcts

import (
	"runtime"

	"github.com/pbnjay/memory"
)

// perWorkerBudgetBytes is a conservative estimate of the tree/rollout
// memory one concurrent search worker can use — each determinization
// clones full hands/tricks, so this stays generous rather than tight.
const perWorkerBudgetBytes = 64 * 1024 * 1024

// DefaultWorkerCount sizes Search's parallel worker count from the
// available CPUs and system memory, so a single AI decision doesn't
// starve the rest of the process (the game actor, the transport hub)
// of either. Falls back to 1 if memory.TotalMemory can't determine the
// system total (containerized environments sometimes report 0).
func DefaultWorkerCount() int {
	cpuBound := runtime.NumCPU()
	if cpuBound < 1 {
		cpuBound = 1
	}

	total := memory.TotalMemory()
	if total == 0 {
		return 1
	}
	memBound := int(total / perWorkerBudgetBytes)
	if memBound < 1 {
		memBound = 1
	}

	workers := cpuBound
	if memBound < workers {
		workers = memBound
	}
	if workers > 8 {
		workers = 8
	}
	return workers
}

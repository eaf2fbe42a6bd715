// Package process finds target processes and acquires handles with retry.
package process

import (
	"context"
	"fmt"
	"strings"

	gops "github.com/shirou/gopsutil/v3/process"
)

// Handle identifies a running target process. It is treated as opaque and
// possibly stale downstream: when injection reports the target gone, the
// handle is replaced wholesale by re-acquisition, never mutated.
type Handle struct {
	PID  int32
	Name string
}

func (h Handle) String() string {
	return fmt.Sprintf("%s (pid %d)", h.Name, h.PID)
}

// Locator resolves a process name substring to a Handle. Implementations
// must be cheap to call repeatedly and keep no state between calls.
type Locator interface {
	// Find returns the first process whose name contains nameSubstring
	// (case-insensitive), or found=false when no process matches.
	Find(ctx context.Context, nameSubstring string) (handle Handle, found bool, err error)
}

// GopsutilLocator enumerates running processes via gopsutil.
type GopsutilLocator struct{}

// NewLocator returns the platform process locator.
func NewLocator() *GopsutilLocator {
	return &GopsutilLocator{}
}

// Find scans all running processes for a case-insensitive substring match.
// The first match wins; enumeration order is not stable across calls, so
// ties between same-named processes are nondeterministic.
func (l *GopsutilLocator) Find(ctx context.Context, nameSubstring string) (Handle, bool, error) {
	procs, err := gops.ProcessesWithContext(ctx)
	if err != nil {
		return Handle{}, false, fmt.Errorf("failed to list processes: %w", err)
	}

	want := strings.ToLower(nameSubstring)
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			// Processes can exit between enumeration and inspection.
			continue
		}
		if strings.Contains(strings.ToLower(name), want) {
			return Handle{PID: p.Pid, Name: name}, true, nil
		}
	}

	return Handle{}, false, nil
}

// Package alarm tracks which fault kinds are currently active so a fault that
// repeats on every restart is reported once.
package alarm

import (
	"sort"
	"sync"

	"github.com/nergy-se/solardivert/pkg/fault"
)

type ActiveAlarms struct {
	activeAlarms []fault.Kind
	sync.RWMutex
}

// Add adds kind to alarm list and returns true if it was added. returns false if it already exists.
func (a *ActiveAlarms) Add(kind fault.Kind) bool {
	a.Lock()
	defer a.Unlock()
	for _, activeAlarm := range a.activeAlarms {
		if activeAlarm == kind {
			return false
		}
	}

	a.activeAlarms = append(a.activeAlarms, kind)
	return true
}

// Clear drops all alarms and reports whether any were active.
func (a *ActiveAlarms) Clear() bool {
	hasActive := false
	a.Lock()
	if len(a.activeAlarms) > 0 {
		hasActive = true
		a.activeAlarms = nil
	}
	a.Unlock()
	return hasActive
}

// Active returns the active alarms sorted by kind.
func (a *ActiveAlarms) Active() []fault.Kind {
	a.RLock()
	defer a.RUnlock()
	out := append([]fault.Kind(nil), a.activeAlarms...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

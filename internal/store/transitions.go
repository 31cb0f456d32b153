package store

import "clinicops/internal/models"

var transitionMap = map[string][]string{
	"call":     {models.StatusWaiting},
	"complete": {models.StatusCalled},
	"cancel":   {models.StatusWaiting},
}

// ValidTransition reports whether an action may run against an entry in the
// given status. Transitions are one-directional: completed and cancelled are
// terminal, and no entry returns to waiting after it was called.
func ValidTransition(action, fromStatus string) bool {
	allowed, ok := transitionMap[action]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == fromStatus {
			return true
		}
	}
	return false
}

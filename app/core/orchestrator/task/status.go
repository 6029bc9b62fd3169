package task

import (
	"fmt"

	"concierge/app/pkg/types"
)

// legalTransitions is the full lifecycle graph. Completed and cancelled
// are terminal; failed may loop back through the approval gate or
// straight to execution depending on how the task was created.
var legalTransitions = map[types.TaskStatus][]types.TaskStatus{
	types.StatusPendingApproval: {types.StatusApproved, types.StatusCancelled},
	types.StatusApproved:        {types.StatusExecuting},
	types.StatusExecuting:       {types.StatusCompleted, types.StatusFailed},
	types.StatusFailed:          {types.StatusPendingApproval, types.StatusExecuting},
	types.StatusCompleted:       nil,
	types.StatusCancelled:       nil,
}

// IsTerminal reports whether no further transitions are allowed.
func IsTerminal(status types.TaskStatus) bool {
	return status == types.StatusCompleted || status == types.StatusCancelled
}

// ValidStatus reports whether the value is one of the known statuses.
func ValidStatus(status types.TaskStatus) bool {
	_, ok := legalTransitions[status]
	return ok
}

// ValidateTransition returns an error when moving from one status to
// another is not allowed by the lifecycle graph.
func ValidateTransition(from, to types.TaskStatus) error {
	if !ValidStatus(from) {
		return fmt.Errorf("unknown task status %q", from)
	}
	if !ValidStatus(to) {
		return fmt.Errorf("unknown task status %q", to)
	}
	for _, next := range legalTransitions[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("illegal transition %s -> %s", from, to)
}

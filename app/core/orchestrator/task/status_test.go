package task

import (
	"testing"

	"concierge/app/pkg/types"
)

func TestValidateTransitionLegalPaths(t *testing.T) {
	legal := []struct{ from, to types.TaskStatus }{
		{types.StatusPendingApproval, types.StatusApproved},
		{types.StatusPendingApproval, types.StatusCancelled},
		{types.StatusApproved, types.StatusExecuting},
		{types.StatusExecuting, types.StatusCompleted},
		{types.StatusExecuting, types.StatusFailed},
		{types.StatusFailed, types.StatusPendingApproval},
		{types.StatusFailed, types.StatusExecuting},
	}
	for _, tc := range legal {
		if err := ValidateTransition(tc.from, tc.to); err != nil {
			t.Errorf("%s -> %s should be legal: %v", tc.from, tc.to, err)
		}
	}
}

func TestValidateTransitionIllegalPaths(t *testing.T) {
	illegal := []struct{ from, to types.TaskStatus }{
		{types.StatusPendingApproval, types.StatusExecuting},
		{types.StatusPendingApproval, types.StatusCompleted},
		{types.StatusApproved, types.StatusCompleted},
		{types.StatusCompleted, types.StatusExecuting},
		{types.StatusCancelled, types.StatusPendingApproval},
		{types.StatusExecuting, types.StatusCancelled},
	}
	for _, tc := range illegal {
		if err := ValidateTransition(tc.from, tc.to); err == nil {
			t.Errorf("%s -> %s should be rejected", tc.from, tc.to)
		}
	}
}

func TestValidateTransitionUnknownStatus(t *testing.T) {
	if err := ValidateTransition("weird", types.StatusApproved); err == nil {
		t.Fatal("unknown source status should be rejected")
	}
	if err := ValidateTransition(types.StatusApproved, "weird"); err == nil {
		t.Fatal("unknown target status should be rejected")
	}
}

func TestIsTerminal(t *testing.T) {
	if !IsTerminal(types.StatusCompleted) || !IsTerminal(types.StatusCancelled) {
		t.Fatal("completed and cancelled are terminal")
	}
	for _, status := range []types.TaskStatus{
		types.StatusPendingApproval, types.StatusApproved,
		types.StatusExecuting, types.StatusFailed,
	} {
		if IsTerminal(status) {
			t.Errorf("%s must not be terminal", status)
		}
	}
}

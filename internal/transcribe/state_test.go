package transcribe

import "testing"

// TestMachineHappyPath verifies the linear step order.
func TestMachineHappyPath(t *testing.T) {
	m := newMachine()
	for _, step := range []Step{StepClassifying, StepRecognizing, StepPersisting, StepSucceeded} {
		if err := m.advance(step); err != nil {
			t.Fatalf("advance to %s: %v", step, err)
		}
	}
	if err := m.advance(StepFailed); err == nil {
		t.Fatal("expected terminal step to reject transitions")
	}
}

// TestMachineRejectsSkips checks state machine constraints.
func TestMachineRejectsSkips(t *testing.T) {
	m := newMachine()
	if err := m.advance(StepRecognizing); err == nil {
		t.Fatal("expected invalid transition error")
	}
	if err := m.advance(StepFailed); err != nil {
		t.Fatalf("failed should be reachable from converting: %v", err)
	}
}

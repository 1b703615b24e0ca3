package transcribe

import "fmt"

// Step is one state of a pipeline run.
type Step string

const (
	StepConverting  Step = "converting"
	StepClassifying Step = "classifying"
	StepRecognizing Step = "recognizing"
	StepPersisting  Step = "persisting"
	StepSucceeded   Step = "succeeded"
	StepFailed      Step = "failed"
)

// Terminal reports whether no transition leaves the step.
func (s Step) Terminal() bool {
	return s == StepSucceeded || s == StepFailed
}

// machine tracks the current step of one run.
type machine struct {
	current Step
}

func newMachine() *machine {
	return &machine{current: StepConverting}
}

// advance validates and applies one transition.
func (m *machine) advance(to Step) error {
	if !isValidTransition(m.current, to) {
		return fmt.Errorf("invalid transition: %s -> %s", m.current, to)
	}
	m.current = to
	return nil
}

// isValidTransition enforces the allowed pipeline edges. Failed is reachable
// from every non-terminal step.
func isValidTransition(from, to Step) bool {
	if from.Terminal() {
		return false
	}
	if to == StepFailed {
		return true
	}
	switch from {
	case StepConverting:
		return to == StepClassifying
	case StepClassifying:
		return to == StepRecognizing
	case StepRecognizing:
		return to == StepPersisting
	case StepPersisting:
		return to == StepSucceeded
	default:
		return false
	}
}

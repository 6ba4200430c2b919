// internal/app/features/wizard/machine.go
package wizard

import (
	"errors"
	"fmt"

	"github.com/vespahq/uploadhub/internal/domain/models"
)

// Step is a content step of the upload wizard. Display steps are positive
// integers whose meaning depends on the acting role, so all rendering and
// gating decisions go through logicalStep rather than raw numbers.
type Step string

const (
	StepSelectType         Step = "select_type"
	StepSelectOrganization Step = "select_organization"
	StepSelectMethod       Step = "select_method"
	StepUpload             Step = "upload"
	StepManualEntry        Step = "manual_entry"
	StepValidate           Step = "validate"
	StepProcess            Step = "process"
	StepResults            Step = "results"
)

var (
	// ErrTerminalStep means the session is at results; only a reset leaves it.
	ErrTerminalStep = errors.New("session is complete; start a new one to continue")

	// ErrSubmissionInFlight guards against a second submission while one is
	// outstanding.
	ErrSubmissionInFlight = errors.New("a submission is already in progress")
)

// ExitWorkflowError is returned by Next when the selected upload type routes
// to a separate workflow outside the pipeline.
type ExitWorkflowError struct {
	Type models.UploadType
}

func (e *ExitWorkflowError) Error() string {
	return fmt.Sprintf("upload type %q exits to a separate workflow", e.Type)
}

// stepError is a gate rejection: the transition did not happen and Reason is
// surfaced to the user.
type stepError struct {
	Reason string
}

func (e *stepError) Error() string { return e.Reason }

func reject(reason string) error { return &stepError{Reason: reason} }

// stepSequence is the ordered content steps for a role and method. Super
// identities get organization selection inserted after select-type, shifting
// every later display number by one. The manual method replaces the three
// CSV steps with a single entry loop.
func stepSequence(role string, method models.UploadMethod) []Step {
	steps := make([]Step, 0, 7)
	steps = append(steps, StepSelectType)
	if role == models.RoleSuper {
		steps = append(steps, StepSelectOrganization)
	}
	steps = append(steps, StepSelectMethod)
	if method == models.MethodManual {
		steps = append(steps, StepManualEntry)
	} else {
		steps = append(steps, StepUpload, StepValidate, StepProcess)
	}
	return append(steps, StepResults)
}

// logicalStep maps a display step number to its content step for the given
// role, on the standard CSV graph. Out-of-range numbers clamp to the
// nearest end.
func logicalStep(role string, displayStep int) Step {
	return stepAt(stepSequence(role, models.MethodCSV), displayStep)
}

func stepAt(seq []Step, displayStep int) Step {
	if displayStep < 1 {
		displayStep = 1
	}
	if displayStep > len(seq) {
		displayStep = len(seq)
	}
	return seq[displayStep-1]
}

// CurrentStep resolves the session's display step to its content step,
// taking the chosen method into account.
func (s *UploadSession) CurrentStep() Step {
	return stepAt(stepSequence(s.Role, s.Method), s.DisplayStep)
}

// TotalSteps is the length of the session's step graph.
func (s *UploadSession) TotalSteps() int {
	return len(stepSequence(s.Role, s.Method))
}

// Next advances the session one display step if the current step's gate
// accepts. On rejection the step does not change and the reason is returned.
func (s *UploadSession) Next() error {
	switch s.CurrentStep() {
	case StepSelectType:
		if s.UploadType == "" {
			return reject("choose an upload type first")
		}
		if s.UploadType.IsExitType() {
			return &ExitWorkflowError{Type: s.UploadType}
		}
	case StepSelectOrganization:
		if !s.OrgChosen {
			return reject("choose an organization to upload for, or continue as your own")
		}
	case StepSelectMethod:
		if s.Method == "" {
			return reject("choose an upload method first")
		}
	case StepUpload:
		if len(s.Rows) == 0 {
			return reject("upload a file before continuing")
		}
	case StepValidate:
		if s.Validation == nil {
			return reject("validate the uploaded data before continuing")
		}
		if !s.Validation.IsValid {
			return reject("fix the validation errors before continuing")
		}
	case StepProcess:
		if s.Submitting {
			return ErrSubmissionInFlight
		}
		if s.Job == nil {
			return reject("submit the data before continuing")
		}
	case StepManualEntry:
		if s.ManualSubmitted == 0 {
			return reject("submit at least one record before continuing")
		}
	case StepResults:
		return ErrTerminalStep
	}

	s.DisplayStep++
	return nil
}

// Prev moves back one display step. Above step 1 it always succeeds; the
// gate only applies going forward.
func (s *UploadSession) Prev() error {
	if s.CurrentStep() == StepResults {
		return ErrTerminalStep
	}
	if s.DisplayStep > 1 {
		s.DisplayStep--
	}
	return nil
}

// advanceToResults jumps the session to its terminal step after a dispatch.
func (s *UploadSession) advanceToResults() {
	s.DisplayStep = s.TotalSteps()
}

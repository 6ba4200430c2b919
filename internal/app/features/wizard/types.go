// internal/app/features/wizard/types.go
package wizard

import (
	"github.com/vespahq/uploadhub/internal/domain/models"
)

// StateResponse is the wizard state returned by every endpoint that mutates
// or reads the session. The front end renders entirely from this.
type StateResponse struct {
	SessionID   string `json:"session_id"`
	DisplayStep int    `json:"display_step"`
	TotalSteps  int    `json:"total_steps"`
	Step        Step   `json:"step"`

	UploadType models.UploadType   `json:"upload_type,omitempty"`
	Method     models.UploadMethod `json:"method,omitempty"`

	ActingOrganization *models.ActingOrganization `json:"acting_organization,omitempty"`

	FileName string `json:"file_name,omitempty"`
	RowCount int    `json:"row_count"`

	Validation *models.ValidationResult `json:"validation,omitempty"`

	SubmissionInFlight bool                  `json:"submission_in_flight"`
	Job                *models.SubmissionJob `json:"job,omitempty"`
	SubmitError        string                `json:"submit_error,omitempty"`

	ManualSubmitted int `json:"manual_submitted"`
}

func stateOf(s *UploadSession) StateResponse {
	return StateResponse{
		SessionID:          s.ID,
		DisplayStep:        s.DisplayStep,
		TotalSteps:         s.TotalSteps(),
		Step:               s.CurrentStep(),
		UploadType:         s.UploadType,
		Method:             s.Method,
		ActingOrganization: s.ActingOrg,
		FileName:           s.FileName,
		RowCount:           len(s.Rows),
		Validation:         s.Validation,
		SubmissionInFlight: s.Submitting,
		Job:                s.Job,
		SubmitError:        s.SubmitError,
		ManualSubmitted:    s.ManualSubmitted,
	}
}

// selectTypeRequest chooses what kind of records the upload creates.
type selectTypeRequest struct {
	UploadType models.UploadType `json:"upload_type"`
}

// selectMethodRequest chooses between spreadsheet upload and manual entry.
type selectMethodRequest struct {
	Method models.UploadMethod `json:"method"`
}

// selectOrganizationRequest is a super user's acting-organization choice.
// Own=true means "upload for my own organization" and clears any selection.
type selectOrganizationRequest struct {
	Own              bool   `json:"own"`
	OrganizationID   string `json:"organization_id"`
	OrganizationName string `json:"organization_name"`
}

// processRequest carries the submission options.
type processRequest struct {
	SendNotifications bool   `json:"send_notifications"`
	NotificationEmail string `json:"notification_email"`
	Percentile        int    `json:"percentile"`
	RunCalculators    bool   `json:"run_calculators"`
	UniversalPassword string `json:"universal_password"`
}

// manualRequest is a single hand-entered record.
type manualRequest struct {
	Row               map[string]string `json:"row"`
	SendNotifications bool              `json:"send_notifications"`
	NotificationEmail string            `json:"notification_email"`
}

// exitResponse tells the front end to leave the pipeline for a separate
// workflow.
type exitResponse struct {
	Exit       bool              `json:"exit"`
	UploadType models.UploadType `json:"upload_type"`
}

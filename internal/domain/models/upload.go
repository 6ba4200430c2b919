// internal/domain/models/upload.go
package models

import "time"

// UploadType is the category of record being bulk-created or updated.
// The four pipeline types each have a registry spec; the remaining values
// are alternate workflows that exit the wizard entirely.
type UploadType string

const (
	UploadTypeStaff    UploadType = "staff"
	UploadTypeStudents UploadType = "student-onboarding"
	UploadTypeKS4      UploadType = "ks4-subjects"
	UploadTypeKS5      UploadType = "ks5-subjects"

	// Alternate selections that route out of the upload pipeline.
	UploadTypeCreateOrg   UploadType = "create-organization"
	UploadTypeRenewal     UploadType = "renewal"
	UploadTypeAccountMgmt UploadType = "account-management"
)

// IsPipelineType reports whether t runs through the validate/process pipeline.
func (t UploadType) IsPipelineType() bool {
	switch t {
	case UploadTypeStaff, UploadTypeStudents, UploadTypeKS4, UploadTypeKS5:
		return true
	}
	return false
}

// IsExitType reports whether t is a terminal exit to a separate workflow.
func (t UploadType) IsExitType() bool {
	switch t {
	case UploadTypeCreateOrg, UploadTypeRenewal, UploadTypeAccountMgmt:
		return true
	}
	return false
}

// UploadMethod selects between spreadsheet upload and one-at-a-time entry.
type UploadMethod string

const (
	MethodCSV    UploadMethod = "csv"
	MethodManual UploadMethod = "manual"
)

// ParsedRow is one CSV data line keyed by header name. Column order lives in
// the owning document's header slice; row order is preserved so errors can be
// reported by 1-based row number.
type ParsedRow map[string]string

// ValidationError is a single finding against one row. Row 0 means the error
// is not tied to a specific row (reported as "N/A" to the caller).
type ValidationError struct {
	Row     int    `json:"row"`
	Kind    string `json:"kind"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Error kinds shared by the local and remote validators. Consumers only
// branch on Kind, never on which validator produced the error.
const (
	ErrKindMissingField   = "Missing Field"
	ErrKindInvalidFormat  = "Invalid Format"
	ErrKindInvalidValue   = "Invalid Value"
	ErrKindUnpairedColumn = "Unpaired Column"
	ErrKindInvalidSubject = "Invalid Subject"
	ErrKindNetwork        = "Network Error"
)

// ValidationSource identifies which validation phase produced a result.
type ValidationSource string

const (
	SourceLocal  ValidationSource = "local"
	SourceRemote ValidationSource = "remote"
)

// ValidationResult is the merged outcome of a validation pass.
type ValidationResult struct {
	IsValid   bool              `json:"is_valid"`
	Errors    []ValidationError `json:"errors"`
	TotalRows int               `json:"total_rows"`
	Source    ValidationSource  `json:"source"`
}

// JobStatus tracks a dispatched submission. Statuses beyond queued are
// delivered out of band (by email from the records platform), so this
// service only ever records queued or submission_failed itself.
type JobStatus string

const (
	JobQueued              JobStatus = "queued"
	JobCompleted           JobStatus = "completed"
	JobCompletedWithErrors JobStatus = "completed_with_errors"
	JobSubmissionFailed    JobStatus = "submission_failed"
)

// SubmissionJob is the backend's receipt for an accepted upload job.
type SubmissionJob struct {
	JobID             string    `json:"job_id"`
	Status            JobStatus `json:"status"`
	NotificationEmail string    `json:"notification_email"`
	TotalRows         int       `json:"total_rows"`
	CreatedAt         time.Time `json:"created_at"`
}

// Admin is a recipient for job-outcome notifications when acting on behalf
// of another organization.
type Admin struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ActingOrganization is the "act on behalf of" selection made by a super
// identity. Persisted client-side between page loads; cleared on reset.
type ActingOrganization struct {
	OrganizationID   string  `json:"organization_id"`
	OrganizationName string  `json:"organization_name"`
	RecipientAdmins  []Admin `json:"recipient_admins,omitempty"`
}

// UploaderContext accompanies every submission so the backend knows who is
// uploading and which organization the records belong to. Exactly one of
// ActingOrganization and DirectOrganizationID is populated at dispatch.
type UploaderContext struct {
	UserID               string              `json:"user_id"`
	UserEmail            string              `json:"user_email"`
	IsActingForOther     bool                `json:"is_acting_for_other"`
	ActingOrganization   *ActingOrganization `json:"acting_organization,omitempty"`
	DirectOrganizationID string              `json:"direct_organization_id,omitempty"`
}

// SubmitOptions are the caller-chosen processing options forwarded to the
// backend with a submission.
type SubmitOptions struct {
	SendNotifications bool   `json:"send_notifications"`
	NotificationEmail string `json:"notification_email"`
	Percentile        int    `json:"percentile"`
	RunCalculators    bool   `json:"run_calculators,omitempty"`
	UniversalPassword string `json:"universal_password,omitempty"`
}

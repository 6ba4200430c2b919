// internal/app/records/types.go
package records

import "github.com/vespahq/uploadhub/internal/domain/models"

// Organization is one entry in the acting-organization picker.
type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ValidateResponse is the platform's answer to a {type}/validate call.
type ValidateResponse struct {
	Success  bool                     `json:"success"`
	Errors   []models.ValidationError `json:"errors"`
	RowCount int                      `json:"row_count"`
}

type validateRequest struct {
	CSVData []models.ParsedRow `json:"csvData"`
}

type verifySubjectsRequest struct {
	Subjects []string `json:"subjects"`
}

type verifySubjectsResponse struct {
	Unrecognized []string `json:"unrecognized"`
}

type processRequest struct {
	CSVData []models.ParsedRow     `json:"csvData"`
	Options models.SubmitOptions   `json:"options"`
	Context models.UploaderContext `json:"context"`
}

type processResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

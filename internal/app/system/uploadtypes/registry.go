// internal/app/system/uploadtypes/registry.go

// Package uploadtypes is the static registry of upload categories: which
// columns each requires, the per-field format rules, and how rows are
// filtered and routed at dispatch time. Every pipeline type has exactly one
// spec; asking for an unknown type is a programming error and panics.
package uploadtypes

import (
	"regexp"
	"strconv"

	"github.com/vespahq/uploadhub/internal/domain/models"
)

// MaxSubjectColumns bounds the subN/exN paired-column check. The records
// platform accepts at most ten subject slots per student row.
const MaxSubjectColumns = 10

// FieldRule constrains one column's value. Zero-value fields are unchecked.
type FieldRule struct {
	// Pattern, when set, must match the whole trimmed value.
	Pattern *regexp.Regexp
	// Enum, when set, lists the legal values for the column.
	Enum []string
	// List treats the value as a comma-separated list, checking each part
	// against Enum (used for multi-role columns like Staff Type).
	List bool
	// Optional fields are only checked when non-empty.
	Optional bool
}

// PairedColumnRule declares that subI and exI columns must be populated
// together: for every index i up to MaxIndex, subI is present iff exI is.
type PairedColumnRule struct {
	SubPrefix string
	ExPrefix  string
	MaxIndex  int
}

// Spec is the full rule set for one upload type.
type Spec struct {
	Type     models.UploadType
	Label    string
	Endpoint string // backend path segment, e.g. "staff" -> staff/validate

	// RequiredFields must be present and non-blank on every row, in the
	// order they are reported to the user.
	RequiredFields []string

	// FieldRules maps column name to its format rule. Rules for columns a
	// row does not populate are skipped when Optional.
	FieldRules map[string]FieldRule

	// Paired is the subN/exN co-presence rule, nil when not applicable.
	Paired *PairedColumnRule

	// MinimalFields is the defensive dispatch filter: a row missing all of
	// AnyOf, or missing Always, is dropped before submission even if it
	// previously validated.
	MinimalFields MinimalFieldRule

	// VerifySubjects marks types whose subject names need remote
	// verification against the records platform.
	VerifySubjects bool
}

// MinimalFieldRule is the minimal identity a row needs to be submittable.
type MinimalFieldRule struct {
	Always []string // every listed field must be non-blank
	AnyOf  []string // at least one listed field must be non-blank
}

var (
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	upnPattern   = regexp.MustCompile(`^[A-Za-z]\d{12}$`)
	ulnPattern   = regexp.MustCompile(`^\d{10}$`)
)

var staffTypeCodes = []string{"tut", "sub", "hoy", "hod", "gen", "adm"}

var gcseGrades = []string{"9", "8", "7", "6", "5", "4", "3", "2", "1", "U"}

var yearGroups = []string{"5", "6", "7", "8", "9", "10", "11", "12", "13"}

var registry = map[models.UploadType]Spec{
	models.UploadTypeStaff: {
		Type:     models.UploadTypeStaff,
		Label:    "Staff Accounts",
		Endpoint: "staff",
		RequiredFields: []string{
			"Title", "First Name", "Last Name", "Email Address", "Staff Type",
		},
		FieldRules: map[string]FieldRule{
			"Email Address": {Pattern: emailPattern},
			"Staff Type":    {Enum: staffTypeCodes, List: true},
		},
		MinimalFields: MinimalFieldRule{Always: []string{"Email Address"}},
	},

	models.UploadTypeStudents: {
		Type:     models.UploadTypeStudents,
		Label:    "Student Onboarding",
		Endpoint: "students",
		RequiredFields: []string{
			"First Name", "Last Name", "Email Address", "Year Group",
		},
		FieldRules: map[string]FieldRule{
			"Email Address": {Pattern: emailPattern},
			"Year Group":    {Enum: yearGroups},
			"UPN":           {Pattern: upnPattern, Optional: true},
			"ULN":           {Pattern: ulnPattern, Optional: true},
			"Gender":        {Enum: []string{"M", "F", "O"}, Optional: true},
		},
		MinimalFields: MinimalFieldRule{
			Always: []string{"Email Address"},
			AnyOf:  []string{"UPN", "Email Address"},
		},
	},

	models.UploadTypeKS4: {
		Type:           models.UploadTypeKS4,
		Label:          "KS4 Subject Data",
		Endpoint:       "ks4",
		RequiredFields: []string{"UPN", "Email Address"},
		FieldRules: map[string]FieldRule{
			"UPN":           {Pattern: upnPattern},
			"Email Address": {Pattern: emailPattern},
		},
		Paired: &PairedColumnRule{SubPrefix: "sub", ExPrefix: "ex", MaxIndex: MaxSubjectColumns},
		MinimalFields: MinimalFieldRule{
			Always: []string{"Email Address"},
			AnyOf:  []string{"UPN", "Email Address"},
		},
	},

	models.UploadTypeKS5: {
		Type:           models.UploadTypeKS5,
		Label:          "KS5 Subject Data",
		Endpoint:       "ks5",
		RequiredFields: []string{"UPN", "Email Address"},
		FieldRules: map[string]FieldRule{
			"UPN":           {Pattern: upnPattern},
			"Email Address": {Pattern: emailPattern},
		},
		Paired:         &PairedColumnRule{SubPrefix: "sub", ExPrefix: "ex", MaxIndex: MaxSubjectColumns},
		VerifySubjects: true,
		MinimalFields: MinimalFieldRule{
			Always: []string{"Email Address"},
			AnyOf:  []string{"UPN", "Email Address"},
		},
	},
}

// SpecFor returns the spec for a pipeline upload type. It panics on types
// without a spec; callers must check IsPipelineType first.
func SpecFor(t models.UploadType) Spec {
	spec, ok := registry[t]
	if !ok {
		panic("uploadtypes: no spec registered for type " + string(t))
	}
	return spec
}

// GradeValues returns the legal exN grade values for subject uploads.
func GradeValues() []string {
	out := make([]string, len(gcseGrades))
	copy(out, gcseGrades)
	return out
}

// StaffTypeCodes returns the legal staff role codes.
func StaffTypeCodes() []string {
	out := make([]string, len(staffTypeCodes))
	copy(out, staffTypeCodes)
	return out
}

func init() {
	// Subject uploads constrain the exN grade columns as well.
	for _, t := range []models.UploadType{models.UploadTypeKS4, models.UploadTypeKS5} {
		spec := registry[t]
		for i := 1; i <= spec.Paired.MaxIndex; i++ {
			spec.FieldRules[spec.Paired.ExPrefix+strconv.Itoa(i)] = FieldRule{Enum: gcseGrades, Optional: true}
		}
	}
}

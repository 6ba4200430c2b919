// internal/domain/models/identity.go
package models

// Roles recognized by the wizard. Super identities may act on behalf of
// another organization and see an extra organization-selection step.
const (
	RoleStaff = "staff"
	RoleAdmin = "admin"
	RoleSuper = "super"
)

// Identity is the acting user as resolved from the records platform.
type Identity struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	OrganizationID string `json:"organization_id"`
}

// IsSuper reports whether the identity may act for other organizations.
func (i *Identity) IsSuper() bool {
	return i != nil && i.Role == RoleSuper
}

package enums

import "slices"

// StaffRole is the console permission carried in access tokens.
type StaffRole string

const (
	StaffRoleAdmin   StaffRole = "admin"
	StaffRoleSupport StaffRole = "support"
)

var validStaffRoles = []StaffRole{
	StaffRoleAdmin,
	StaffRoleSupport,
}

// String implements fmt.Stringer.
func (s StaffRole) String() string {
	return string(s)
}

// IsValid reports whether the value is a known StaffRole.
func (s StaffRole) IsValid() bool {
	return slices.Contains(validStaffRoles, s)
}

// ParseStaffRole converts raw input into a StaffRole.
func ParseStaffRole(value string) (StaffRole, error) {
	return parse("staff role", value, validStaffRoles)
}

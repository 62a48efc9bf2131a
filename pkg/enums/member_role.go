package enums

import "fmt"

// MemberRole describes the caller's role within the platform.
type MemberRole string

const (
	MemberRoleStudent     MemberRole = "student"
	MemberRoleTeacher     MemberRole = "teacher"
	MemberRoleSchoolAdmin MemberRole = "school_admin"
	MemberRoleAdmin       MemberRole = "admin"
)

var validMemberRoles = []MemberRole{
	MemberRoleStudent,
	MemberRoleTeacher,
	MemberRoleSchoolAdmin,
	MemberRoleAdmin,
}

// String implements fmt.Stringer.
func (r MemberRole) String() string {
	return string(r)
}

// IsValid reports whether the value is known.
func (r MemberRole) IsValid() bool {
	for _, candidate := range validMemberRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseMemberRole converts raw input into a MemberRole.
func ParseMemberRole(value string) (MemberRole, error) {
	for _, candidate := range validMemberRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid member role %q", value)
}

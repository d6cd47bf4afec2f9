package domain

// SubjectType distinguishes authenticated caller kinds.
type SubjectType string

const (
	SubjectTypeUser    SubjectType = "END_USER"
	SubjectTypeOfficer SubjectType = "OFFICER"
)

// Role enumerates staff roles used for gating and notification routing.
type Role string

const (
	RoleOfficer    Role = "OFFICER"
	RoleHRAdmin    Role = "HR_ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

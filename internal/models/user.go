package models

import "time"

// Roles determine which workflow transitions a user may perform.
const (
	RoleStaff          = "staff"
	RoleApproverLevel1 = "approver_level_1"
	RoleApproverLevel2 = "approver_level_2"
	RoleFinance        = "finance"
)

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleStaff, RoleApproverLevel1, RoleApproverLevel2, RoleFinance:
		return true
	}
	return false
}

// User is an account in the approval workflow.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// DisplayName returns the user's full name, falling back to the username.
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

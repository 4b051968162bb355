package model

import "strings"

// UserStatus is the activation state of a managed user.
type UserStatus string

const (
	UserStatusActive   UserStatus = "Active"
	UserStatusInactive UserStatus = "Inactive"
)

// ParseUserStatus normalizes a status string. The second return value is
// false for anything other than Active or Inactive.
func ParseUserStatus(s string) (UserStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active":
		return UserStatusActive, true
	case "inactive":
		return UserStatusInactive, true
	default:
		return "", false
	}
}

// User is a managed account as returned by the backend.
type User struct {
	ID              string     `json:"user_id"`
	Name            string     `json:"name"`
	Phone           string     `json:"phone"`
	Password        string     `json:"password,omitempty"` // secret code issued by the backend
	Status          UserStatus `json:"status"`
	DeviceNumber    string     `json:"device_number,omitempty"`
	DeviceIDs       []string   `json:"device_ids,omitempty"`
	LastRunLocation string     `json:"last_run_location,omitempty"`
	CreatedAt       Timestamp  `json:"created_at"`
}

// IsActive reports whether the user is currently activated.
func (u User) IsActive() bool {
	return u.Status == UserStatusActive
}

// NewUser is the payload for creating a user.
type NewUser struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Validate checks the required fields.
func (n NewUser) Validate() error {
	var details []FieldError
	if strings.TrimSpace(n.Name) == "" {
		details = append(details, FieldError{Field: "name", Message: "name is required"})
	}
	if strings.TrimSpace(n.Phone) == "" {
		details = append(details, FieldError{Field: "phone", Message: "phone is required"})
	}
	if len(details) > 0 {
		return NewValidationError("Please fill in all fields", details...)
	}
	return nil
}

// StatusChange is a request to activate or deactivate a user. Activation
// binds the user to a device and requires DeviceID.
type StatusChange struct {
	Status   UserStatus
	DeviceID string
}

// Validate checks that activation carries a device id.
func (c StatusChange) Validate() error {
	switch c.Status {
	case UserStatusActive:
		if strings.TrimSpace(c.DeviceID) == "" {
			return NewValidationError("Device ID is required to activate a user",
				FieldError{Field: "device_id", Message: "device_id is required"})
		}
	case UserStatusInactive:
	default:
		return NewValidationError("Unknown status " + string(c.Status),
			FieldError{Field: "status", Message: "must be Active or Inactive"})
	}
	return nil
}

// Package models contains database model definitions.
package models

import (
	"strings"
	"time"
)

// Role is the portal role of an account.
type Role string

const (
	// RoleMember is a regular member, the only role that belongs to a group.
	RoleMember Role = "member"
	// RoleInstructor runs sessions for one or more groups.
	RoleInstructor Role = "instructor"
	// RoleAdministrator manages accounts.
	RoleAdministrator Role = "administrator"
)

// Status is the lifecycle status of an account.
type Status string

const (
	// StatusPending accounts registered and wait for an administrator.
	StatusPending Status = "pending"
	// StatusActive accounts may sign in.
	StatusActive Status = "active"
	// StatusInactive accounts were deactivated and may not sign in.
	StatusInactive Status = "inactive"
)

// AllGroups is the synthetic group label meaning "every group".
const AllGroups = "All"

// NotificationPreferences maps a notification topic to whether the user wants it.
type NotificationPreferences map[string]bool

// DefaultNotificationPreferences enables every topic.
func DefaultNotificationPreferences() NotificationPreferences {
	return NotificationPreferences{
		"agenda":     true,
		"documents":  true,
		"messages":   true,
		"carpooling": true,
		"gallery":    true,
		"absences":   true,
	}
}

// Profile is the account record of a portal user.
// Its primary key is the user id issued by the identity provider.
type Profile struct {
	// ID is the identity provider user id.
	ID string `gorm:"primaryKey;size:64"`
	// FirstName is the user's first or given name.
	FirstName string `gorm:"size:100;not null"`
	// LastName is the user's last or family name.
	LastName string `gorm:"size:100;not null"`
	// Email is the user's email address.
	Email string `gorm:"uniqueIndex;size:255;not null"`
	// Phone is the contact phone number.
	Phone string `gorm:"size:50"`
	// Role is one of member, instructor or administrator.
	Role Role `gorm:"type:varchar(20);not null;default:'member'"`
	// GroupLabel is the member's group, nil for other roles.
	GroupLabel *string `gorm:"column:user_group;size:100;index"`
	// Status is one of pending, active or inactive.
	Status Status `gorm:"type:varchar(20);not null;default:'pending';index"`
	// ChildFirstName is the first name of the member's child.
	ChildFirstName *string `gorm:"size:100"`
	// ChildLastName is the last name of the member's child.
	ChildLastName *string `gorm:"size:100"`
	// NotificationPreferences are stored as json.
	NotificationPreferences NotificationPreferences `gorm:"serializer:json"`
	// ProfilePicture references the picture in the object store.
	ProfilePicture *string `gorm:"size:512"`
	// CreatedAt is the timestamp when the profile was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the profile was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName overrides the table name used by Profile to `profiles`.
func (Profile) TableName() string {
	return "profiles"
}

// GroupName returns the group label or an empty string.
func (p *Profile) GroupName() string {
	if p.GroupLabel == nil {
		return ""
	}

	return *p.GroupLabel
}

// FullName joins first and last name.
func (p *Profile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// GroupRow is the projection used to build the group directory.
type GroupRow struct {
	GroupLabel *string `gorm:"column:user_group"`
}

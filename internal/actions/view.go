package actions

import (
	"time"

	"github.com/memberportal/memberportal/internal/db/models"
	"github.com/memberportal/memberportal/internal/profile"
)

// Profile is the json view of an account record.
type Profile struct {
	ID                      string                         `json:"id"`
	FirstName               string                         `json:"firstName"`
	LastName                string                         `json:"lastName"`
	Email                   string                         `json:"email"`
	Phone                   string                         `json:"phone,omitempty"`
	Role                    models.Role                    `json:"role"`
	GroupLabel              string                         `json:"group,omitempty"`
	Status                  models.Status                  `json:"status"`
	ChildFirstName          string                         `json:"childFirstName,omitempty"`
	ChildLastName           string                         `json:"childLastName,omitempty"`
	NotificationPreferences models.NotificationPreferences `json:"notificationPreferences,omitempty"`
	ProfilePicture          string                         `json:"profilePicture,omitempty"`
	CreatedAt               *time.Time                     `json:"createdAt,omitempty"`
	UpdatedAt               *time.Time                     `json:"updatedAt,omitempty"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}

func newProfile(m *models.Profile) *Profile {
	created, updated := m.CreatedAt, m.UpdatedAt

	return &Profile{
		ID:                      m.ID,
		FirstName:               m.FirstName,
		LastName:                m.LastName,
		Email:                   m.Email,
		Phone:                   m.Phone,
		Role:                    m.Role,
		GroupLabel:              deref(m.GroupLabel),
		Status:                  m.Status,
		ChildFirstName:          deref(m.ChildFirstName),
		ChildLastName:           deref(m.ChildLastName),
		NotificationPreferences: m.NotificationPreferences,
		ProfilePicture:          deref(m.ProfilePicture),
		CreatedAt:               &created,
		UpdatedAt:               &updated,
	}
}

// profileFromRecord fills the fields a Record carries.
func profileFromRecord(r *profile.Record) *Profile {
	return &Profile{
		ID:         r.ID,
		FirstName:  r.FirstName,
		LastName:   r.LastName,
		Email:      r.Email,
		Role:       r.Role,
		GroupLabel: deref(r.GroupLabel),
		Status:     r.Status,
	}
}

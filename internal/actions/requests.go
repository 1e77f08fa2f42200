package actions

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/memberportal/memberportal/internal/db/models"
)

// LoginRequest holds sign-in credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest is a registration form. Child names and a group are
// required for members only.
type RegisterRequest struct {
	FirstName       string      `json:"firstName" validate:"required"`
	LastName        string      `json:"lastName" validate:"required"`
	Email           string      `json:"email" validate:"required,email"`
	Phone           string      `json:"phone" validate:"required"`
	Password        string      `json:"password" validate:"required,min=6"`
	ConfirmPassword string      `json:"confirmPassword" validate:"required,eqfield=Password"`
	Role            models.Role `json:"role" validate:"required,oneof=member instructor"`
	GroupLabel      string      `json:"group" validate:"required_if=Role member"`
	ChildFirstName  string      `json:"childFirstName" validate:"required_if=Role member"`
	ChildLastName   string      `json:"childLastName" validate:"required_if=Role member"`
}

// PasswordRequest sets a new password.
type PasswordRequest struct {
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// ProfilePatch is a partial profile update, nil fields are left alone.
type ProfilePatch struct {
	FirstName               *string                        `json:"firstName,omitempty" validate:"omitempty,min=1"`
	LastName                *string                        `json:"lastName,omitempty" validate:"omitempty,min=1"`
	Phone                   *string                        `json:"phone,omitempty"`
	Role                    *models.Role                   `json:"role,omitempty" validate:"omitempty,oneof=member instructor administrator"`
	Status                  *models.Status                 `json:"status,omitempty" validate:"omitempty,oneof=pending active inactive"`
	GroupLabel              *string                        `json:"group,omitempty"`
	ChildFirstName          *string                        `json:"childFirstName,omitempty"`
	ChildLastName           *string                        `json:"childLastName,omitempty"`
	NotificationPreferences models.NotificationPreferences `json:"notificationPreferences,omitempty"`
	ProfilePicture          *string                        `json:"profilePicture,omitempty"`
}

// SelfService drops the fields a user may not change on their own account.
func (p ProfilePatch) SelfService() ProfilePatch {
	p.Role = nil
	p.Status = nil

	return p
}

func optional(s *string) *string {
	if s == nil {
		return nil
	}

	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}

	return &v
}

// apply writes the patch onto m. Only members keep a group and child names.
func (p ProfilePatch) apply(m *models.Profile) {
	if p.FirstName != nil {
		m.FirstName = strings.TrimSpace(*p.FirstName)
	}

	if p.LastName != nil {
		m.LastName = strings.TrimSpace(*p.LastName)
	}

	if p.Phone != nil {
		m.Phone = strings.TrimSpace(*p.Phone)
	}

	if p.Role != nil {
		m.Role = *p.Role
	}

	if p.Status != nil {
		m.Status = *p.Status
	}

	if p.GroupLabel != nil {
		m.GroupLabel = optional(p.GroupLabel)
	}

	if p.ChildFirstName != nil {
		m.ChildFirstName = optional(p.ChildFirstName)
	}

	if p.ChildLastName != nil {
		m.ChildLastName = optional(p.ChildLastName)
	}

	if p.ProfilePicture != nil {
		m.ProfilePicture = optional(p.ProfilePicture)
	}

	if len(p.NotificationPreferences) > 0 {
		if m.NotificationPreferences == nil {
			m.NotificationPreferences = models.DefaultNotificationPreferences()
		}

		for topic, on := range p.NotificationPreferences {
			m.NotificationPreferences[topic] = on
		}
	}

	if m.Role != models.RoleMember {
		m.GroupLabel = nil
		m.ChildFirstName = nil
		m.ChildLastName = nil
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// report json names so messages match the form fields
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}

		return name
	})

	return v
}

// invalid turns a validation error into a message about its first field.
func invalid(err error) Result {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return failed(MsgUnexpected)
	}

	fe := errs[0]

	switch fe.Tag() {
	case "required", "required_if":
		return failed(fmt.Sprintf("%s is required.", fe.Field()))
	case "email":
		return failed("Please enter a valid email address.")
	case "min":
		if fe.Field() == "password" {
			return failed(fmt.Sprintf("Password must be at least %s characters.", fe.Param()))
		}

		return failed(fmt.Sprintf("%s is too short.", fe.Field()))
	case "eqfield":
		return failed("Passwords do not match.")
	case "oneof":
		return failed(fmt.Sprintf("%s must be one of: %s.", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", ")))
	default:
		return failed(fmt.Sprintf("%s is invalid.", fe.Field()))
	}
}

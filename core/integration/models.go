package integration

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
)

type Type string

// Integration types
const (
	Zoom            Type = "zoom"
	GoogleClassroom Type = "google_classroom"
	MicrosoftTeams  Type = "microsoft_teams"
	Canvas          Type = "canvas"
	Blackboard      Type = "blackboard"
)

var AllTypes = []Type{Zoom, GoogleClassroom, MicrosoftTeams, Canvas, Blackboard}

func (t Type) IsValid() bool {
	for _, at := range AllTypes {
		if t == at {
			return true
		}
	}
	return false
}

// settingKeys are the provider settings that may be configured, per integration type.
// Settings are stored as an opaque JSON document; no token exchange happens here.
var settingKeys = map[Type][]string{
	Zoom: {
		"api_key", "api_secret", "account_id", "client_id", "client_secret",
		"access_token", "refresh_token", "token_expires_at",
	},
	GoogleClassroom: {
		"client_id", "client_secret", "access_token", "refresh_token", "token_expires_at", "classroom_id",
	},
}

type LMSIntegration struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Type      Type      `json:"integration_type" db:"integration_type"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	Settings  null.JSON `json:"settings" db:"settings"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type CourseIntegration struct {
	ID            string    `json:"id" db:"id"`
	CourseID      string    `json:"course_id" db:"course_id"`
	IntegrationID string    `json:"integration_id" db:"integration_id"`
	ExternalID    string    `json:"external_id" db:"external_id"`
	ExternalURL   string    `json:"external_url" db:"external_url"`
	SyncedAt      null.Time `json:"synced_at" db:"synced_at"`
	AutoSync      bool      `json:"auto_sync" db:"auto_sync"`
}

type ZoomMeeting struct {
	ID              string      `json:"id" db:"id"`
	IntegrationID   string      `json:"integration_id" db:"integration_id"`
	CourseID        null.String `json:"course_id" db:"course_id"`
	LessonID        null.String `json:"lesson_id" db:"lesson_id"`
	MeetingID       string      `json:"meeting_id" db:"meeting_id"`
	MeetingURL      string      `json:"meeting_url" db:"meeting_url"`
	JoinURL         string      `json:"join_url" db:"join_url"`
	Topic           string      `json:"topic" db:"topic"`
	StartTime       time.Time   `json:"start_time" db:"start_time"`
	DurationMinutes int         `json:"duration_minutes" db:"duration_minutes"`
	Password        string      `json:"password" db:"password"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at" db:"updated_at"`
}

type NewLMSIntegration struct {
	Type     Type  `json:"integration_type" validate:"required,integration_type"`
	IsActive *bool `json:"is_active"`
}

func (ni NewLMSIntegration) Validate(validate *validator.Validate) error { return validate.Struct(ni) }

type UpdateLMSIntegration struct {
	IsActive *bool `json:"is_active"`
}

type NewCourseIntegration struct {
	CourseID      string    `json:"course_id" validate:"required,uuid"`
	IntegrationID string    `json:"integration_id" validate:"required,uuid"`
	ExternalID    string    `json:"external_id" validate:"max=255"`
	ExternalURL   string    `json:"external_url" validate:"omitempty,url"`
	SyncedAt      null.Time `json:"synced_at"`
	AutoSync      bool      `json:"auto_sync"`
}

func (nc NewCourseIntegration) Validate(validate *validator.Validate) error {
	return validate.Struct(nc)
}

type NewZoomMeeting struct {
	IntegrationID   string    `json:"integration_id" validate:"required,uuid"`
	CourseID        string    `json:"course_id" validate:"omitempty,uuid"`
	LessonID        string    `json:"lesson_id" validate:"omitempty,uuid"`
	Topic           string    `json:"topic" validate:"required,max=255"`
	StartTime       time.Time `json:"start_time" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"omitempty,min=1"`
	Password        string    `json:"password" validate:"max=50"`
}

func (nm NewZoomMeeting) Validate(validate *validator.Validate) error { return validate.Struct(nm) }

// CourseScope restricts course integrations & meetings to a set of courses. nil CourseIDs: any course.
type CourseScope struct {
	CourseIDs []string
	CourseID  string
}

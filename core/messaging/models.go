package messaging

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
)

type Conversation struct {
	ID          string      `json:"id" db:"id"`
	Title       string      `json:"title" db:"title"`
	CourseID    null.String `json:"course_id" db:"course_id"`
	CreatedByID string      `json:"created_by_id" db:"created_by_id"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
}

type Participant struct {
	ID             string    `json:"id" db:"id"`
	ConversationID string    `json:"conversation_id" db:"conversation_id"`
	UserID         string    `json:"user_id" db:"user_id"`
	JoinedAt       time.Time `json:"joined_at" db:"joined_at"`
	LastReadAt     null.Time `json:"last_read_at" db:"last_read_at"`
}

type Message struct {
	ID             string    `json:"id" db:"id"`
	ConversationID string    `json:"conversation_id" db:"conversation_id"`
	SenderID       string    `json:"sender_id" db:"sender_id"`
	Body           string    `json:"body" db:"body"`
	IsEdited       bool      `json:"is_edited" db:"is_edited"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

type Read struct {
	ID        string    `json:"id" db:"id"`
	MessageID string    `json:"message_id" db:"message_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	ReadAt    time.Time `json:"read_at" db:"read_at"`
}

// ConversationDetail is a conversation as seen by one of its participants.
type ConversationDetail struct {
	Conversation
	Participants []Participant `json:"participants"`
	LastMessage  *Message      `json:"last_message"`
	UnreadCount  int           `json:"unread_count"`
}

type NewConversation struct {
	Title                 string   `json:"title" validate:"max=255"`
	CourseID              string   `json:"course_id" validate:"omitempty,uuid"`
	ParticipantIDs        []string `json:"participant_ids" validate:"dive,uuid"`
	IncludeCourseStudents bool     `json:"include_course_students"`
}

func (nc NewConversation) Validate(validate *validator.Validate) error { return validate.Struct(nc) }

type NewMessage struct {
	ConversationID string `json:"conversation_id" validate:"required,uuid"`
	Body           string `json:"body" validate:"required"`
}

func (nm NewMessage) Validate(validate *validator.Validate) error { return validate.Struct(nm) }

type UpdateMessage struct {
	Body string `json:"body" validate:"required"`
}

func (um UpdateMessage) Validate(validate *validator.Validate) error { return validate.Struct(um) }

type ConversationFilter struct {
	ParticipantID string
}

type MessageFilter struct {
	ConversationID string
	ParticipantID  string // messages of the conversations this user takes part in
}

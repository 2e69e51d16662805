package grading

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
)

type SubmissionStatus string

// Assignment submission statuses
const (
	StatusSubmitted SubmissionStatus = "submitted"
	StatusInReview  SubmissionStatus = "in_review"
	StatusGraded    SubmissionStatus = "graded"
	StatusReturned  SubmissionStatus = "returned"
)

func (s SubmissionStatus) IsValid() bool {
	switch s {
	case StatusSubmitted, StatusInReview, StatusGraded, StatusReturned:
		return true
	}
	return false
}

type AssignmentSubmission struct {
	ID           string           `json:"id" db:"id"`
	AssignmentID string           `json:"assignment_id" db:"assignment_id"`
	StudentID    string           `json:"student_id" db:"student_id"`
	SubmittedAt  time.Time        `json:"submitted_at" db:"submitted_at"`
	TextResponse string           `json:"text_response" db:"text_response"`
	Grade        null.Float64     `json:"grade" db:"grade"`
	Feedback     string           `json:"feedback" db:"feedback"`
	Status       SubmissionStatus `json:"status" db:"status"`
	ReviewedAt   null.Time        `json:"reviewed_at" db:"reviewed_at"`
	ReviewedBy   null.String      `json:"reviewed_by" db:"reviewed_by"`
	IsLate       bool             `json:"is_late" db:"is_late"`
}

// ComputeLateness sets IsLate from the assignment's due date. Without a due date, IsLate is left as is.
func (s *AssignmentSubmission) ComputeLateness(dueDate null.Time) {
	if dueDate.Valid {
		s.IsLate = s.SubmittedAt.After(dueDate.Time)
	}
}

type QuizSubmission struct {
	ID            string    `json:"id" db:"id"`
	QuizID        string    `json:"quiz_id" db:"quiz_id"`
	StudentID     string    `json:"student_id" db:"student_id"`
	SubmittedAt   time.Time `json:"submitted_at" db:"submitted_at"`
	AttemptNumber int       `json:"attempt_number" db:"attempt_number"`
	Score         float64   `json:"score" db:"score"`
	Passed        bool      `json:"passed" db:"passed"`
	Answers       []Answer  `json:"answers,omitempty" db:"-"`
}

// Answer is written once, when its submission is created.
type Answer struct {
	ID               string      `json:"id" db:"id"`
	SubmissionID     string      `json:"submission_id" db:"submission_id"`
	QuestionID       string      `json:"question_id" db:"question_id"`
	SelectedChoiceID null.String `json:"selected_choice_id" db:"selected_choice_id"`
	TextResponse     string      `json:"text_response" db:"text_response"`
	IsCorrect        bool        `json:"is_correct" db:"is_correct"`
	PointsAwarded    float64     `json:"points_awarded" db:"points_awarded"`
}

// AnswerPayload is the answer given to one question: a choice for selectable questions, a text otherwise.
type AnswerPayload struct {
	Choice *string `json:"choice"`
	Text   string  `json:"text"`
}

type NewQuizSubmission struct {
	QuizID  string                   `json:"quiz" validate:"required,uuid"`
	Answers map[string]AnswerPayload `json:"answers"` // by question ID
}

func (ns NewQuizSubmission) Validate(validate *validator.Validate) error { return validate.Struct(ns) }

type NewAssignmentSubmission struct {
	AssignmentID string `json:"assignment_id" validate:"required,uuid"`
	StudentID    string `json:"student_id" validate:"omitempty,uuid"` // admins submitting on behalf of a student
	TextResponse string `json:"text_response"`
}

func (ns NewAssignmentSubmission) Validate(validate *validator.Validate) error {
	return validate.Struct(ns)
}

// Grade is an instructor's review of an assignment submission.
type Grade struct {
	Grade    *float64         `json:"grade"`
	Feedback string           `json:"feedback"`
	Status   SubmissionStatus `json:"status"`
}

type AssignmentSubmissionFilter struct {
	AssignmentID string
	StudentID    string
	InstructorID string // submissions to the courses taught by this instructor
}

type QuizSubmissionFilter struct {
	QuizID       string
	StudentID    string
	InstructorID string // submissions to the courses taught by this instructor
}

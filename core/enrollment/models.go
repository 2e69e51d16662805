package enrollment

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/somesha/core/catalog"
)

type Enrollment struct {
	ID           string    `json:"id" db:"id"`
	StudentID    string    `json:"student_id" db:"student_id"`
	CourseID     string    `json:"course_id" db:"course_id"`
	EnrolledAt   time.Time `json:"enrolled_at" db:"enrolled_at"`
	Progress     int       `json:"progress" db:"progress"` // percentage, derived from LessonProgress rows
	LastAccessed null.Time `json:"last_accessed" db:"last_accessed"`
}

// LessonProgress marks a lesson as completed for an enrollment. No partial state exists.
type LessonProgress struct {
	ID           string    `json:"id" db:"id"`
	EnrollmentID string    `json:"enrollment_id" db:"enrollment_id"`
	LessonID     string    `json:"lesson_id" db:"lesson_id"`
	CompletedAt  time.Time `json:"completed_at" db:"completed_at"`
}

type WishlistItem struct {
	ID        string    `json:"id" db:"id"`
	StudentID string    `json:"student_id" db:"student_id"`
	CourseID  string    `json:"course_id" db:"course_id"`
	AddedAt   time.Time `json:"added_at" db:"added_at"`
}

// Detail is an enrollment with its completed lessons.
type Detail struct {
	Enrollment
	LessonProgress []LessonProgress `json:"lesson_progress"`
}

// Completion is the outcome of toggling a lesson's completion.
type Completion struct {
	Lesson     catalog.Lesson `json:"lesson"`
	Enrollment Enrollment     `json:"enrollment"`
	Completed  bool           `json:"completed"`
}

// GetFilter selects a single Enrollment: by ID or by student & course.
type GetFilter struct {
	ID        string
	StudentID string
	CourseID  string
}

type QueryFilter struct {
	StudentID string
	CourseID  string
}

func (f QueryFilter) Match(e Enrollment) bool {
	if f.StudentID != "" && e.StudentID != f.StudentID {
		return false
	}
	if f.CourseID != "" && e.CourseID != f.CourseID {
		return false
	}
	return true
}

// ComputeProgress returns floor(100 * completed / published), 0 without published lessons.
// Completion rows of lessons unpublished since they were completed still count, so the result
// is clamped to 100.
func ComputeProgress(completed, published int) int {
	if published <= 0 || completed <= 0 {
		return 0
	}
	progress := 100 * completed / published
	if progress > 100 {
		return 100
	}
	return progress
}

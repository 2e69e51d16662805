// Package analytics summarizes course & platform activity for instructors and administrators.
package analytics

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/somesha/core"
	"github.com/trezcool/somesha/core/access"
	"github.com/trezcool/somesha/core/catalog"
	"github.com/trezcool/somesha/core/user"
)

var ErrInstructorNotFound = core.NewNotFoundError("instructor")

// CourseStats are the raw counters of one course.
type CourseStats struct {
	Course                catalog.Course
	Enrollments           int
	CompletedEnrollments  int // progress >= 100
	ProgressSum           int
	QuizScoreSum          float64
	QuizSubmissions       int
	AssignmentSubmissions int
}

type CategoryStats struct {
	Category    string `json:"category" db:"category"`
	CourseCount int    `json:"course_count" db:"course_count"`
	Enrollments int    `json:"enrollments" db:"enrollments"`
}

type PlatformStats struct {
	TotalUsers                 int             `json:"total_users" db:"total_users"`
	TotalStudents              int             `json:"total_students" db:"total_students"`
	TotalInstructors           int             `json:"total_instructors" db:"total_instructors"`
	TotalCourses               int             `json:"total_courses" db:"total_courses"`
	TotalEnrollments           int             `json:"total_enrollments" db:"total_enrollments"`
	TotalAssignmentSubmissions int             `json:"total_assignment_submissions" db:"total_assignment_submissions"`
	TotalQuizSubmissions       int             `json:"total_quiz_submissions" db:"total_quiz_submissions"`
	EstimatedRevenue           float64         `json:"estimated_revenue" db:"estimated_revenue"`
	CategoryBreakdown          []CategoryStats `json:"category_breakdown"`
}

// Source computes raw statistics from the store.
type Source interface {
	// CourseStats returns the counters of the courses taught by instructorID, or of every course
	// when instructorID is empty.
	CourseStats(ctx context.Context, instructorID string) ([]CourseStats, error)
	// PlatformStats returns platform-wide counters; CategoryBreakdown covers every category.
	PlatformStats(ctx context.Context) (PlatformStats, error)
}

type Users interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

type CourseSummary struct {
	ID                    string               `json:"id"`
	Title                 string               `json:"title"`
	Status                catalog.CourseStatus `json:"status"`
	Enrollments           int                  `json:"enrollments"`
	CompletionRate        float64              `json:"completion_rate"`
	AverageProgress       float64              `json:"average_progress"`
	AverageQuizScore      float64              `json:"average_quiz_score"`
	AssignmentSubmissions int                  `json:"assignment_submissions"`
	QuizSubmissions       int                  `json:"quiz_submissions"`
	Revenue               float64              `json:"revenue"`
	UpdatedAt             time.Time            `json:"updated_at"`
}

type InstructorSummary struct {
	TotalCourses          int             `json:"total_courses"`
	TotalEnrollments      int             `json:"total_enrollments"`
	TotalRevenue          float64         `json:"total_revenue"`
	AverageCompletionRate float64         `json:"average_completion_rate"`
	AverageQuizScore      float64         `json:"average_quiz_score"`
	Courses               []CourseSummary `json:"courses"`
}

const topCategories = 10

type Service struct {
	source Source
	users  Users
	cache  core.Cache
	ttl    time.Duration
	logger core.Logger
}

// NewService creates the analytics service; a nil cache or a zero ttl disables caching.
func NewService(source Source, users Users, cache core.Cache, ttl time.Duration, logger core.Logger) *Service {
	return &Service{source: source, users: users, cache: cache, ttl: ttl, logger: logger}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func (svc *Service) cached(ctx context.Context, key string, dest interface{}, compute func() (interface{}, error)) error {
	if svc.cache != nil && svc.ttl > 0 {
		if data, ok := svc.cache.Get(ctx, key); ok {
			if err := json.Unmarshal(data, dest); err == nil {
				return nil
			}
			svc.logger.Warn("discarding undecodable cache entry " + key)
		}
	}

	val, err := compute()
	if err != nil {
		return err
	}
	data, err := json.Marshal(val)
	if err != nil {
		return errors.Wrap(err, "encoding summary")
	}
	if svc.cache != nil && svc.ttl > 0 {
		svc.cache.Set(ctx, key, data, svc.ttl)
	}
	return errors.Wrap(json.Unmarshal(data, dest), "decoding summary")
}

// InstructorSummary summarizes the courses of an instructor. Admins may name the instructor;
// without one they get the summary of every course.
func (svc *Service) InstructorSummary(ctx context.Context, a access.Actor, instructorID string) (InstructorSummary, error) {
	if err := access.Require(a, access.ViewCourseStats, "Only instructors or admins can view instructor analytics."); err != nil {
		return InstructorSummary{}, err
	}
	if !a.IsAdmin() {
		instructorID = a.ID
	} else if instructorID != "" {
		usr, err := svc.users.GetByID(ctx, instructorID)
		if err != nil || (usr.Role != user.RoleInstructor && usr.Role != user.RoleAdmin) {
			if err == nil || core.IsNotFound(err) {
				return InstructorSummary{}, ErrInstructorNotFound
			}
			return InstructorSummary{}, err
		}
	}

	key := "analytics:instructor:" + instructorID
	if instructorID == "" {
		key = "analytics:instructor:*"
	}
	var summary InstructorSummary
	err := svc.cached(ctx, key, &summary, func() (interface{}, error) {
		stats, err := svc.source.CourseStats(ctx, instructorID)
		if err != nil {
			return nil, errors.Wrap(err, "computing course stats")
		}
		return Summarize(stats), nil
	})
	return summary, err
}

// Summarize aggregates per-course counters; averages skip courses without data.
func Summarize(stats []CourseStats) InstructorSummary {
	summary := InstructorSummary{TotalCourses: len(stats), Courses: make([]CourseSummary, 0, len(stats))}

	var completionSum, quizSum float64
	var quizCourses int
	for _, st := range stats {
		cs := CourseSummary{
			ID:                    st.Course.ID,
			Title:                 st.Course.Title,
			Status:                st.Course.Status,
			Enrollments:           st.Enrollments,
			AssignmentSubmissions: st.AssignmentSubmissions,
			QuizSubmissions:       st.QuizSubmissions,
			Revenue:               round2(st.Course.Price * float64(st.Enrollments)),
			UpdatedAt:             st.Course.UpdatedAt,
		}
		if st.Enrollments > 0 {
			cs.CompletionRate = round2(float64(st.CompletedEnrollments) * 100 / float64(st.Enrollments))
			cs.AverageProgress = round2(float64(st.ProgressSum) / float64(st.Enrollments))
		}
		if st.QuizSubmissions > 0 {
			cs.AverageQuizScore = round2(st.QuizScoreSum / float64(st.QuizSubmissions))
		}

		summary.TotalEnrollments += st.Enrollments
		summary.TotalRevenue += st.Course.Price * float64(st.Enrollments)
		completionSum += cs.CompletionRate
		if cs.AverageQuizScore > 0 {
			quizSum += cs.AverageQuizScore
			quizCourses++
		}
		summary.Courses = append(summary.Courses, cs)
	}

	summary.TotalRevenue = round2(summary.TotalRevenue)
	if len(stats) > 0 {
		summary.AverageCompletionRate = round2(completionSum / float64(len(stats)))
	}
	if quizCourses > 0 {
		summary.AverageQuizScore = round2(quizSum / float64(quizCourses))
	}
	return summary
}

func (svc *Service) PlatformSummary(ctx context.Context, a access.Actor) (PlatformStats, error) {
	if err := access.Require(a, access.ViewPlatformStats, "Only administrators can view platform analytics."); err != nil {
		return PlatformStats{}, err
	}
	var stats PlatformStats
	err := svc.cached(ctx, "analytics:platform", &stats, func() (interface{}, error) {
		ps, err := svc.source.PlatformStats(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "computing platform stats")
		}
		ps.EstimatedRevenue = round2(ps.EstimatedRevenue)
		ps.CategoryBreakdown = TopCategories(ps.CategoryBreakdown, topCategories)
		return ps, nil
	})
	return stats, err
}

// TopCategories sorts categories by enrollments (then name) and keeps the first n.
func TopCategories(cats []CategoryStats, n int) []CategoryStats {
	out := append([]CategoryStats{}, cats...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Enrollments != out[j].Enrollments {
			return out[i].Enrollments > out[j].Enrollments
		}
		return out[i].Category < out[j].Category
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

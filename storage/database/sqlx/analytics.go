package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/somesha/core/analytics"
	"github.com/trezcool/somesha/core/catalog"
	"github.com/trezcool/somesha/core/user"
)

type analyticsSource struct {
	db executor
}

var _ analytics.Source = (*analyticsSource)(nil) // interface compliance check

func NewAnalyticsSource(db *sqlx.DB) *analyticsSource {
	return &analyticsSource{db: db}
}

func (src *analyticsSource) CourseStats(ctx context.Context, instructorID string) ([]analytics.CourseStats, error) {
	var w where
	if instructorID != "" {
		w.add("c.instructor_id = ?", instructorID)
	}

	var rows []struct {
		catalog.Course
		Enrollments           int     `db:"enrollments"`
		CompletedEnrollments  int     `db:"completed_enrollments"`
		ProgressSum           int     `db:"progress_sum"`
		QuizScoreSum          float64 `db:"quiz_score_sum"`
		QuizSubmissions       int     `db:"quiz_submissions"`
		AssignmentSubmissions int     `db:"assignment_submissions"`
	}
	err := selectWhere(ctx, src.db, &rows, `
		SELECT c.id, c.instructor_id, c.title, c.description, c.category, c.status, c.price, c.estimated_hours,
			c.prerequisites, c.created_at, c.updated_at,
			COALESCE(e.n, 0) AS enrollments,
			COALESCE(e.completed, 0) AS completed_enrollments,
			COALESCE(e.progress_sum, 0) AS progress_sum,
			COALESCE(qs.score_sum, 0) AS quiz_score_sum,
			COALESCE(qs.n, 0) AS quiz_submissions,
			COALESCE(asub.n, 0) AS assignment_submissions
		FROM courses c
		LEFT JOIN (
			SELECT course_id, COUNT(*) AS n, COUNT(*) FILTER (WHERE progress >= 100) AS completed,
				SUM(progress) AS progress_sum
			FROM enrollments GROUP BY course_id
		) e ON e.course_id = c.id
		LEFT JOIN (
			SELECT m.course_id, COUNT(*) AS n, SUM(s.score) AS score_sum
			FROM quiz_submissions s
			JOIN quizzes q ON q.id = s.quiz_id
			JOIN modules m ON m.id = q.module_id
			GROUP BY m.course_id
		) qs ON qs.course_id = c.id
		LEFT JOIN (
			SELECT m.course_id, COUNT(*) AS n
			FROM assignment_submissions s
			JOIN assignments a ON a.id = s.assignment_id
			JOIN modules m ON m.id = a.module_id
			GROUP BY m.course_id
		) asub ON asub.course_id = c.id`,
		w, " ORDER BY c.created_at DESC",
	)
	if err != nil {
		return nil, errors.Wrap(err, "selecting course stats")
	}

	stats := make([]analytics.CourseStats, 0, len(rows))
	for _, r := range rows {
		stats = append(stats, analytics.CourseStats{
			Course:                r.Course,
			Enrollments:           r.Enrollments,
			CompletedEnrollments:  r.CompletedEnrollments,
			ProgressSum:           r.ProgressSum,
			QuizScoreSum:          r.QuizScoreSum,
			QuizSubmissions:       r.QuizSubmissions,
			AssignmentSubmissions: r.AssignmentSubmissions,
		})
	}
	return stats, nil
}

func (src *analyticsSource) PlatformStats(ctx context.Context) (analytics.PlatformStats, error) {
	var ps analytics.PlatformStats
	err := src.db.GetContext(ctx, &ps, `
		SELECT
			(SELECT COUNT(*) FROM users) AS total_users,
			(SELECT COUNT(*) FROM users WHERE role = $1) AS total_students,
			(SELECT COUNT(*) FROM users WHERE role IN ($2, $3)) AS total_instructors,
			(SELECT COUNT(*) FROM courses) AS total_courses,
			(SELECT COUNT(*) FROM enrollments) AS total_enrollments,
			(SELECT COUNT(*) FROM assignment_submissions) AS total_assignment_submissions,
			(SELECT COUNT(*) FROM quiz_submissions) AS total_quiz_submissions,
			(SELECT COALESCE(SUM(c.price), 0) FROM enrollments e JOIN courses c ON c.id = e.course_id) AS estimated_revenue`,
		user.RoleStudent, user.RoleInstructor, user.RoleAdmin,
	)
	if err != nil {
		return analytics.PlatformStats{}, errors.Wrap(err, "selecting platform stats")
	}

	ps.CategoryBreakdown = make([]analytics.CategoryStats, 0)
	err = src.db.SelectContext(ctx, &ps.CategoryBreakdown, `
		SELECT c.category, COUNT(DISTINCT c.id) AS course_count, COUNT(e.id) AS enrollments
		FROM courses c
		LEFT JOIN enrollments e ON e.course_id = c.id
		GROUP BY c.category`,
	)
	return ps, errors.Wrap(err, "selecting category breakdown")
}

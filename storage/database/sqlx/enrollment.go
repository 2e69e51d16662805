package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/somesha/core/enrollment"
)

const (
	enrollmentColumns     = `id, student_id, course_id, enrolled_at, progress, last_accessed`
	lessonProgressColumns = `id, enrollment_id, lesson_id, completed_at`
	wishlistColumns       = `id, student_id, course_id, added_at`
)

type enrollmentRepository struct {
	db executor
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *sqlx.DB) *enrollmentRepository {
	return &enrollmentRepository{db: db}
}

func (repo *enrollmentRepository) CreateEnrollment(ctx context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO enrollments (`+enrollmentColumns+`)
		VALUES (:id, :student_id, :course_id, :enrolled_at, :progress, :last_accessed)`,
		e,
	)
	if isUniqueViolation(err) {
		return enrollment.Enrollment{}, enrollment.ErrAlreadyEnrolled
	}
	return e, err
}

func (repo *enrollmentRepository) GetEnrollment(ctx context.Context, filter enrollment.GetFilter) (enrollment.Enrollment, error) {
	var w where
	switch {
	case filter.ID != "":
		w.add("id = ?", filter.ID)
	case filter.StudentID != "" && filter.CourseID != "":
		w.add("student_id = ? AND course_id = ?", filter.StudentID, filter.CourseID)
	default:
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	q, args, err := build(repo.db, "SELECT "+enrollmentColumns+" FROM enrollments"+w.String(), w.args)
	if err != nil {
		return enrollment.Enrollment{}, err
	}
	var e enrollment.Enrollment
	err = repo.db.GetContext(ctx, &e, q, args...)
	return e, trapNoRowsErr(err, enrollment.ErrNotFound)
}

func (repo *enrollmentRepository) QueryEnrollments(ctx context.Context, filter enrollment.QueryFilter) ([]enrollment.Enrollment, error) {
	var w where
	if filter.StudentID != "" {
		w.add("student_id = ?", filter.StudentID)
	}
	if filter.CourseID != "" {
		w.add("course_id = ?", filter.CourseID)
	}
	enrollments := make([]enrollment.Enrollment, 0)
	err := selectWhere(ctx, repo.db, &enrollments, "SELECT "+enrollmentColumns+" FROM enrollments", w, " ORDER BY enrolled_at DESC")
	return enrollments, err
}

func (repo *enrollmentRepository) SetProgress(ctx context.Context, id string, progress int) (enrollment.Enrollment, error) {
	var e enrollment.Enrollment
	err := repo.db.GetContext(ctx, &e, `
		UPDATE enrollments SET progress = $2 WHERE id = $1
		RETURNING `+enrollmentColumns,
		id, progress,
	)
	return e, trapNoRowsErr(err, enrollment.ErrNotFound)
}

func (repo *enrollmentRepository) TouchEnrollment(ctx context.Context, id string, at time.Time) error {
	res, err := repo.db.ExecContext(ctx, "UPDATE enrollments SET last_accessed = $2 WHERE id = $1", id, at.UTC())
	return mustAffect(res, err, enrollment.ErrNotFound)
}

func (repo *enrollmentRepository) EnrolledCourseIDs(ctx context.Context, studentID string) ([]string, error) {
	ids := make([]string, 0)
	err := repo.db.SelectContext(ctx, &ids, "SELECT course_id FROM enrollments WHERE student_id = $1", studentID)
	return ids, err
}

// GetOrCreateLessonProgress relies on the (enrollment, lesson) unique constraint: concurrent
// completions of the same lesson all end up reading the one row.
func (repo *enrollmentRepository) GetOrCreateLessonProgress(ctx context.Context, lp enrollment.LessonProgress) (enrollment.LessonProgress, bool, error) {
	res, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO lesson_progress (`+lessonProgressColumns+`)
		VALUES (:id, :enrollment_id, :lesson_id, :completed_at)
		ON CONFLICT (enrollment_id, lesson_id) DO NOTHING`,
		lp,
	)
	if err != nil {
		return enrollment.LessonProgress{}, false, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return enrollment.LessonProgress{}, false, err
	} else if n == 1 {
		return lp, true, nil
	}

	var existing enrollment.LessonProgress
	err = repo.db.GetContext(ctx, &existing, `
		SELECT `+lessonProgressColumns+` FROM lesson_progress WHERE enrollment_id = $1 AND lesson_id = $2`,
		lp.EnrollmentID, lp.LessonID,
	)
	return existing, false, err
}

func (repo *enrollmentRepository) DeleteLessonProgress(ctx context.Context, enrollmentID, lessonID string) (bool, error) {
	res, err := repo.db.ExecContext(ctx,
		"DELETE FROM lesson_progress WHERE enrollment_id = $1 AND lesson_id = $2",
		enrollmentID, lessonID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (repo *enrollmentRepository) CountLessonProgress(ctx context.Context, enrollmentID string) (int, error) {
	var n int
	err := repo.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM lesson_progress WHERE enrollment_id = $1", enrollmentID)
	return n, err
}

func (repo *enrollmentRepository) QueryLessonProgress(ctx context.Context, enrollmentID string) ([]enrollment.LessonProgress, error) {
	rows := make([]enrollment.LessonProgress, 0)
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT `+lessonProgressColumns+` FROM lesson_progress
		WHERE enrollment_id = $1 ORDER BY completed_at`,
		enrollmentID,
	)
	return rows, err
}

func (repo *enrollmentRepository) CompletedLessonIDs(ctx context.Context, studentID string) ([]string, error) {
	ids := make([]string, 0)
	err := repo.db.SelectContext(ctx, &ids, `
		SELECT lp.lesson_id FROM lesson_progress lp
		JOIN enrollments e ON e.id = lp.enrollment_id
		WHERE e.student_id = $1`,
		studentID,
	)
	return ids, err
}

func (repo *enrollmentRepository) AddToWishlist(ctx context.Context, item enrollment.WishlistItem) (enrollment.WishlistItem, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO wishlist (`+wishlistColumns+`)
		VALUES (:id, :student_id, :course_id, :added_at)`,
		item,
	)
	if isUniqueViolation(err) {
		return enrollment.WishlistItem{}, enrollment.ErrAlreadyInWishlist
	}
	return item, err
}

func (repo *enrollmentRepository) RemoveFromWishlist(ctx context.Context, studentID, courseID string) error {
	_, err := repo.db.ExecContext(ctx, "DELETE FROM wishlist WHERE student_id = $1 AND course_id = $2", studentID, courseID)
	return err
}

func (repo *enrollmentRepository) QueryWishlist(ctx context.Context, studentID string) ([]enrollment.WishlistItem, error) {
	items := make([]enrollment.WishlistItem, 0)
	err := repo.db.SelectContext(ctx, &items, `
		SELECT `+wishlistColumns+` FROM wishlist WHERE student_id = $1 ORDER BY added_at DESC`,
		studentID,
	)
	return items, err
}

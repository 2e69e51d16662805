package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/somesha/core/grading"
)

const (
	assignmentSubmissionColumns = `id, assignment_id, student_id, submitted_at, text_response, grade, feedback, status, reviewed_at, reviewed_by, is_late`
	quizSubmissionColumns       = `id, quiz_id, student_id, submitted_at, attempt_number, score, passed`
	answerColumns               = `id, submission_id, question_id, selected_choice_id, text_response, is_correct, points_awarded`
)

type gradingRepository struct {
	db executor
}

var _ grading.Repository = (*gradingRepository)(nil) // interface compliance check

func NewGradingRepository(db *sqlx.DB) *gradingRepository {
	return &gradingRepository{db: db}
}

func (repo *gradingRepository) WithinTx(ctx context.Context, fn func(tx grading.Repository) error) error {
	return withTx(ctx, repo.db, func(tx executor) error {
		return fn(&gradingRepository{db: tx})
	})
}

// Assignment submissions

func (repo *gradingRepository) CreateAssignmentSubmission(ctx context.Context, s grading.AssignmentSubmission) (grading.AssignmentSubmission, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO assignment_submissions (`+assignmentSubmissionColumns+`)
		VALUES (:id, :assignment_id, :student_id, :submitted_at, :text_response, :grade, :feedback, :status,
			:reviewed_at, :reviewed_by, :is_late)`,
		s,
	)
	if isUniqueViolation(err, "assignment_submissions_assignment_id_student_id_key") {
		return grading.AssignmentSubmission{}, grading.ErrDuplicateSubmission
	}
	return s, err
}

func (repo *gradingRepository) GetAssignmentSubmission(ctx context.Context, id string) (grading.AssignmentSubmission, error) {
	var s grading.AssignmentSubmission
	err := repo.db.GetContext(ctx, &s, "SELECT "+assignmentSubmissionColumns+" FROM assignment_submissions WHERE id = $1", id)
	return s, trapNoRowsErr(err, grading.ErrAssignmentSubmissionNotFound)
}

func (repo *gradingRepository) QueryAssignmentSubmissions(ctx context.Context, filter grading.AssignmentSubmissionFilter) ([]grading.AssignmentSubmission, error) {
	var w where
	if filter.AssignmentID != "" {
		w.add("assignment_id = ?", filter.AssignmentID)
	}
	if filter.StudentID != "" {
		w.add("student_id = ?", filter.StudentID)
	}
	if filter.InstructorID != "" {
		w.add(`assignment_id IN (
			SELECT a.id FROM assignments a
			JOIN modules m ON m.id = a.module_id
			JOIN courses c ON c.id = m.course_id
			WHERE c.instructor_id = ?)`, filter.InstructorID)
	}
	subs := make([]grading.AssignmentSubmission, 0)
	err := selectWhere(ctx, repo.db, &subs, "SELECT "+assignmentSubmissionColumns+" FROM assignment_submissions", w, " ORDER BY submitted_at DESC")
	return subs, err
}

func (repo *gradingRepository) UpdateAssignmentSubmission(ctx context.Context, s grading.AssignmentSubmission) (grading.AssignmentSubmission, error) {
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE assignment_submissions SET
			text_response = :text_response, grade = :grade, feedback = :feedback, status = :status,
			reviewed_at = :reviewed_at, reviewed_by = :reviewed_by, is_late = :is_late
		WHERE id = :id`,
		s,
	)
	if err = mustAffect(res, err, grading.ErrAssignmentSubmissionNotFound); err != nil {
		return grading.AssignmentSubmission{}, err
	}
	return s, nil
}

// Quiz submissions

// LockQuizAttempts takes a transaction-scoped advisory lock on the (quiz, student) pair.
// Outside a transaction the lock would be released immediately, so it is a no-op there.
func (repo *gradingRepository) LockQuizAttempts(ctx context.Context, quizID, studentID string) error {
	if _, ok := repo.db.(*sqlx.Tx); !ok {
		return nil
	}
	_, err := repo.db.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", quizID+":"+studentID)
	return errors.Wrap(err, "locking quiz attempts")
}

func (repo *gradingRepository) CountQuizAttempts(ctx context.Context, quizID, studentID string) (int, error) {
	var n int
	err := repo.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM quiz_submissions WHERE quiz_id = $1 AND student_id = $2", quizID, studentID)
	return n, err
}

func (repo *gradingRepository) CreateQuizSubmission(ctx context.Context, s grading.QuizSubmission) (grading.QuizSubmission, error) {
	err := withTx(ctx, repo.db, func(tx executor) error {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO quiz_submissions (`+quizSubmissionColumns+`)
			VALUES (:id, :quiz_id, :student_id, :submitted_at, :attempt_number, :score, :passed)`,
			s,
		)
		if isUniqueViolation(err, "quiz_submissions_quiz_id_student_id_attempt_number_key") {
			return grading.ErrAttemptExists
		}
		if err != nil {
			return err
		}
		for _, ans := range s.Answers {
			_, err = tx.NamedExecContext(ctx, `
				INSERT INTO answers (`+answerColumns+`)
				VALUES (:id, :submission_id, :question_id, :selected_choice_id, :text_response, :is_correct, :points_awarded)`,
				ans,
			)
			if err != nil {
				return errors.Wrap(err, "inserting answer")
			}
		}
		return nil
	})
	return s, err
}

func (repo *gradingRepository) GetQuizSubmission(ctx context.Context, id string) (grading.QuizSubmission, error) {
	var s grading.QuizSubmission
	err := repo.db.GetContext(ctx, &s, "SELECT "+quizSubmissionColumns+" FROM quiz_submissions WHERE id = $1", id)
	if err != nil {
		return grading.QuizSubmission{}, trapNoRowsErr(err, grading.ErrQuizSubmissionNotFound)
	}

	s.Answers = make([]grading.Answer, 0)
	err = repo.db.SelectContext(ctx, &s.Answers, `
		SELECT a.id, a.submission_id, a.question_id, a.selected_choice_id, a.text_response, a.is_correct, a.points_awarded
		FROM answers a
		JOIN questions qn ON qn.id = a.question_id
		WHERE a.submission_id = $1 ORDER BY qn.position`,
		s.ID,
	)
	return s, errors.Wrap(err, "selecting answers")
}

func (repo *gradingRepository) QueryQuizSubmissions(ctx context.Context, filter grading.QuizSubmissionFilter) ([]grading.QuizSubmission, error) {
	var w where
	if filter.QuizID != "" {
		w.add("quiz_id = ?", filter.QuizID)
	}
	if filter.StudentID != "" {
		w.add("student_id = ?", filter.StudentID)
	}
	if filter.InstructorID != "" {
		w.add(`quiz_id IN (
			SELECT q.id FROM quizzes q
			JOIN modules m ON m.id = q.module_id
			JOIN courses c ON c.id = m.course_id
			WHERE c.instructor_id = ?)`, filter.InstructorID)
	}
	subs := make([]grading.QuizSubmission, 0)
	err := selectWhere(ctx, repo.db, &subs, "SELECT "+quizSubmissionColumns+" FROM quiz_submissions", w, " ORDER BY submitted_at DESC, attempt_number DESC")
	return subs, err
}

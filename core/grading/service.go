package grading

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/somesha/core"
	"github.com/trezcool/somesha/core/access"
	"github.com/trezcool/somesha/core/catalog"
	"github.com/trezcool/somesha/core/user"
)

var (
	// errors
	ErrAssignmentSubmissionNotFound = core.NewNotFoundError("assignment submission")
	ErrQuizSubmissionNotFound       = core.NewNotFoundError("quiz submission")
	// ErrDuplicateSubmission is returned by the store when the student already submitted the assignment.
	ErrDuplicateSubmission = errors.New("You have already submitted this assignment.")
	// ErrAttemptExists is returned by the store when the (quiz, student, attempt) triple is taken,
	// i.e. a concurrent submission won the race for that attempt number.
	ErrAttemptExists = errors.New("attempt already exists")
)

type (
	Repository interface {
		// WithinTx runs fn in one transaction: everything fn writes through the Repository it gets
		// is committed if fn returns nil, rolled back otherwise.
		WithinTx(ctx context.Context, fn func(tx Repository) error) error

		CreateAssignmentSubmission(ctx context.Context, s AssignmentSubmission) (AssignmentSubmission, error)
		GetAssignmentSubmission(ctx context.Context, id string) (AssignmentSubmission, error)
		QueryAssignmentSubmissions(ctx context.Context, filter AssignmentSubmissionFilter) ([]AssignmentSubmission, error)
		UpdateAssignmentSubmission(ctx context.Context, s AssignmentSubmission) (AssignmentSubmission, error)

		// LockQuizAttempts serializes attempt creation for (quiz, student) until the transaction ends.
		LockQuizAttempts(ctx context.Context, quizID, studentID string) error
		CountQuizAttempts(ctx context.Context, quizID, studentID string) (int, error)
		// CreateQuizSubmission stores the submission and its answers.
		CreateQuizSubmission(ctx context.Context, s QuizSubmission) (QuizSubmission, error)
		// GetQuizSubmission returns the submission with its answers.
		GetQuizSubmission(ctx context.Context, id string) (QuizSubmission, error)
		// QueryQuizSubmissions returns submissions without their answers.
		QueryQuizSubmissions(ctx context.Context, filter QuizSubmissionFilter) ([]QuizSubmission, error)
	}

	// Catalog is the part of the catalog the grading engine reads.
	Catalog interface {
		AssignmentCourse(ctx context.Context, assignmentID string) (catalog.Assignment, catalog.Course, error)
		QuizCourse(ctx context.Context, quizID string) (catalog.Quiz, catalog.Course, error)
	}

	Users interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service struct {
		repo    Repository
		catalog Catalog
		users   Users
		mailSvc core.EmailService
		events  core.EventPublisher
		logger  core.Logger
	}
)

func NewService(
	repo Repository,
	cat Catalog,
	users Users,
	mailSvc core.EmailService,
	events core.EventPublisher,
	logger core.Logger,
) *Service {
	return &Service{
		repo:    repo,
		catalog: cat,
		users:   users,
		mailSvc: mailSvc,
		events:  events,
		logger:  logger,
	}
}

// Assignment submissions

// SubmitAssignment creates the one submission a student may hand in for an assignment.
// Admins may submit on behalf of a student.
func (svc *Service) SubmitAssignment(ctx context.Context, a access.Actor, ns NewAssignmentSubmission) (AssignmentSubmission, error) {
	studentID := a.ID
	switch {
	case access.Can(a, access.SubmitWork):
	case access.Can(a, access.SubmitOnBehalf):
		if ns.StudentID == "" {
			return AssignmentSubmission{}, core.NewFieldError("student_id", "this field is required")
		}
		studentID = ns.StudentID
	default:
		return AssignmentSubmission{}, core.NewPermissionError("Only students can submit assignments.")
	}

	assignment, _, err := svc.catalog.AssignmentCourse(ctx, ns.AssignmentID)
	if err != nil {
		if core.IsNotFound(err) {
			return AssignmentSubmission{}, core.NewFieldError("assignment_id", err.Error())
		}
		return AssignmentSubmission{}, err
	}
	if studentID != a.ID {
		if _, err = svc.users.GetByID(ctx, studentID); err != nil {
			if core.IsNotFound(err) {
				return AssignmentSubmission{}, core.NewFieldError("student_id", err.Error())
			}
			return AssignmentSubmission{}, errors.Wrap(err, "getting student")
		}
	}

	sub := AssignmentSubmission{
		ID:           uuid.New().String(),
		AssignmentID: assignment.ID,
		StudentID:    studentID,
		SubmittedAt:  time.Now().UTC(),
		TextResponse: ns.TextResponse,
		Status:       StatusSubmitted,
	}
	sub.ComputeLateness(assignment.DueDate)

	if sub, err = svc.repo.CreateAssignmentSubmission(ctx, sub); err != nil {
		if errors.Cause(err) == ErrDuplicateSubmission {
			return AssignmentSubmission{}, core.NewValidationError(err)
		}
		return AssignmentSubmission{}, errors.Wrap(err, "creating assignment submission")
	}
	core.PublishEvents(ctx, svc.events, svc.logger, core.NewEvent(core.EventAssignmentSubmitted, sub.ID, a.ID, sub))
	return sub, nil
}

// assignmentSubmission returns the submission and its assignment & course if a may see it:
// admins see all, instructors the submissions to their courses, students their own.
func (svc *Service) assignmentSubmission(ctx context.Context, a access.Actor, id string) (AssignmentSubmission, catalog.Assignment, catalog.Course, error) {
	sub, err := svc.repo.GetAssignmentSubmission(ctx, id)
	if err != nil {
		return AssignmentSubmission{}, catalog.Assignment{}, catalog.Course{}, err
	}
	assignment, course, err := svc.catalog.AssignmentCourse(ctx, sub.AssignmentID)
	if err != nil {
		return AssignmentSubmission{}, catalog.Assignment{}, catalog.Course{}, errors.Wrap(err, "getting assignment")
	}
	if sub.StudentID != a.ID && !course.ManageableBy(a) {
		return AssignmentSubmission{}, catalog.Assignment{}, catalog.Course{}, ErrAssignmentSubmissionNotFound
	}
	return sub, assignment, course, nil
}

func (svc *Service) GetAssignmentSubmission(ctx context.Context, a access.Actor, id string) (AssignmentSubmission, error) {
	sub, _, _, err := svc.assignmentSubmission(ctx, a, id)
	return sub, err
}

func (svc *Service) ListAssignmentSubmissions(ctx context.Context, a access.Actor, assignmentID string) ([]AssignmentSubmission, error) {
	filter := AssignmentSubmissionFilter{AssignmentID: assignmentID}
	switch {
	case access.Can(a, access.ViewAllContent):
	case access.Can(a, access.GradeSubmissions):
		filter.InstructorID = a.ID
	default:
		filter.StudentID = a.ID
	}
	subs, err := svc.repo.QueryAssignmentSubmissions(ctx, filter)
	return subs, errors.Wrap(err, "querying assignment submissions")
}

// reviewable returns the submission if a may review it: its course's instructor or an admin.
func (svc *Service) reviewable(ctx context.Context, a access.Actor, id, msg string) (AssignmentSubmission, catalog.Assignment, error) {
	if err := access.Require(a, access.GradeSubmissions, "Only instructors can review submissions."); err != nil {
		return AssignmentSubmission{}, catalog.Assignment{}, err
	}
	sub, assignment, course, err := svc.assignmentSubmission(ctx, a, id)
	if err != nil {
		return AssignmentSubmission{}, catalog.Assignment{}, err
	}
	if !course.ManageableBy(a) {
		return AssignmentSubmission{}, catalog.Assignment{}, core.NewPermissionError(msg)
	}
	return sub, assignment, nil
}

// GradeSubmission records grade, feedback, status, reviewer & review time in one update.
func (svc *Service) GradeSubmission(ctx context.Context, a access.Actor, id string, g Grade) (AssignmentSubmission, error) {
	sub, assignment, err := svc.reviewable(ctx, a, id, "You cannot grade this submission.")
	if err != nil {
		return AssignmentSubmission{}, err
	}
	if g.Grade == nil {
		return AssignmentSubmission{}, core.NewFieldError("grade", "Grade is required.")
	}
	if g.Status == "" {
		g.Status = StatusGraded
	}
	if !g.Status.IsValid() {
		return AssignmentSubmission{}, core.NewFieldError("status", "Invalid status.")
	}

	sub.Grade = null.Float64FromPtr(g.Grade)
	sub.Feedback = g.Feedback
	sub.Status = g.Status
	sub.ReviewedBy = null.StringFrom(a.ID)
	sub.ReviewedAt = null.TimeFrom(time.Now().UTC())
	sub.ComputeLateness(assignment.DueDate)

	if sub, err = svc.repo.UpdateAssignmentSubmission(ctx, sub); err != nil {
		return AssignmentSubmission{}, errors.Wrap(err, "grading submission")
	}
	core.PublishEvents(ctx, svc.events, svc.logger, core.NewEvent(core.EventAssignmentGraded, sub.ID, a.ID, sub))
	svc.notifyGraded(ctx, sub, assignment)
	return sub, nil
}

// SetSubmissionStatus moves the submission to any of the review statuses.
func (svc *Service) SetSubmissionStatus(ctx context.Context, a access.Actor, id string, status SubmissionStatus) (AssignmentSubmission, error) {
	sub, assignment, err := svc.reviewable(ctx, a, id, "You cannot update this submission.")
	if err != nil {
		return AssignmentSubmission{}, err
	}
	if !status.IsValid() {
		return AssignmentSubmission{}, core.NewFieldError("status", "Invalid status.")
	}

	sub.Status = status
	sub.ReviewedBy = null.StringFrom(a.ID)
	sub.ReviewedAt = null.TimeFrom(time.Now().UTC())
	sub.ComputeLateness(assignment.DueDate)

	if sub, err = svc.repo.UpdateAssignmentSubmission(ctx, sub); err != nil {
		return AssignmentSubmission{}, errors.Wrap(err, "updating submission status")
	}
	core.PublishEvents(ctx, svc.events, svc.logger, core.NewEvent(core.EventSubmissionStatus, sub.ID, a.ID, sub))
	return sub, nil
}

func (svc *Service) notifyGraded(ctx context.Context, sub AssignmentSubmission, assignment catalog.Assignment) {
	student, err := svc.users.GetByID(ctx, sub.StudentID)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("getting student %s to notify: %v", sub.StudentID, err), err)
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: student.DisplayName(), Address: student.Email}},
		Subject:      fmt.Sprintf("Your submission for %q has been reviewed", assignment.Title),
		TemplateName: "submission_graded",
		TemplateData: map[string]interface{}{
			"StudentName":     student.DisplayName(),
			"AssignmentTitle": assignment.Title,
			"Status":          string(sub.Status),
			"Grade":           fmt.Sprintf("%.2f / %d", sub.Grade.Float64, assignment.MaxPoints),
			"Feedback":        sub.Feedback,
		},
	})
}

// Quiz submissions

// SubmitQuiz auto-grades the student's answers and stores them as the student's next attempt.
//
// Counting prior attempts, inserting the submission and its answers run in one transaction, under a
// per (quiz, student) lock. The (quiz, student, attempt_number) uniqueness constraint remains the
// backstop: losing that race yields a retryable ConflictError.
func (svc *Service) SubmitQuiz(ctx context.Context, a access.Actor, ns NewQuizSubmission) (QuizSubmission, error) {
	if err := access.Require(a, access.SubmitWork, "Only students can submit quizzes."); err != nil {
		return QuizSubmission{}, err
	}
	quiz, _, err := svc.catalog.QuizCourse(ctx, ns.QuizID)
	if err != nil {
		if core.IsNotFound(err) {
			return QuizSubmission{}, core.NewFieldError("quiz", err.Error())
		}
		return QuizSubmission{}, err
	}

	var sub QuizSubmission
	err = svc.repo.WithinTx(ctx, func(tx Repository) error {
		if err := tx.LockQuizAttempts(ctx, quiz.ID, a.ID); err != nil {
			return errors.Wrap(err, "locking quiz attempts")
		}
		prior, err := tx.CountQuizAttempts(ctx, quiz.ID, a.ID)
		if err != nil {
			return errors.Wrap(err, "counting quiz attempts")
		}
		if prior >= quiz.AttemptsAllowed {
			return core.NewPermissionError("You have reached the maximum number of attempts for this quiz.")
		}

		card := GradeAnswers(quiz, ns.Answers)
		sub = QuizSubmission{
			ID:            uuid.New().String(),
			QuizID:        quiz.ID,
			StudentID:     a.ID,
			SubmittedAt:   time.Now().UTC(),
			AttemptNumber: prior + 1,
			Score:         card.Score,
			Passed:        card.Passed,
			Answers:       card.Answers,
		}
		for i := range sub.Answers {
			sub.Answers[i].ID = uuid.New().String()
			sub.Answers[i].SubmissionID = sub.ID
		}

		if sub, err = tx.CreateQuizSubmission(ctx, sub); err != nil {
			if errors.Cause(err) == ErrAttemptExists {
				return core.NewConflictError(ErrAttemptExists.Error())
			}
			return errors.Wrap(err, "creating quiz submission")
		}
		return nil
	})
	if err != nil {
		return QuizSubmission{}, err
	}

	core.PublishEvents(ctx, svc.events, svc.logger, core.NewEvent(core.EventQuizSubmitted, sub.ID, a.ID, map[string]interface{}{
		"submission_id":  sub.ID,
		"quiz_id":        sub.QuizID,
		"student_id":     sub.StudentID,
		"attempt_number": sub.AttemptNumber,
		"score":          sub.Score,
		"passed":         sub.Passed,
	}))
	return sub, nil
}

// GetQuizSubmission returns the submission if a may see it: admins see all, instructors the
// submissions to their courses, students their own. Answers are only kept for the submission's student.
func (svc *Service) GetQuizSubmission(ctx context.Context, a access.Actor, id string) (QuizSubmission, error) {
	sub, err := svc.repo.GetQuizSubmission(ctx, id)
	if err != nil {
		return QuizSubmission{}, err
	}
	if sub.StudentID == a.ID {
		return sub, nil
	}
	_, course, err := svc.catalog.QuizCourse(ctx, sub.QuizID)
	if err != nil {
		return QuizSubmission{}, errors.Wrap(err, "getting quiz")
	}
	if !course.ManageableBy(a) {
		return QuizSubmission{}, ErrQuizSubmissionNotFound
	}
	sub.Answers = nil
	return sub, nil
}

func (svc *Service) ListQuizSubmissions(ctx context.Context, a access.Actor, quizID string) ([]QuizSubmission, error) {
	filter := QuizSubmissionFilter{QuizID: quizID}
	switch {
	case access.Can(a, access.ViewAllContent):
	case access.Can(a, access.GradeSubmissions):
		filter.InstructorID = a.ID
	default:
		filter.StudentID = a.ID
	}
	subs, err := svc.repo.QueryQuizSubmissions(ctx, filter)
	return subs, errors.Wrap(err, "querying quiz submissions")
}

package enrollment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/somesha/core"
	"github.com/trezcool/somesha/core/access"
	"github.com/trezcool/somesha/core/catalog"
)

var (
	// errors
	ErrNotFound          = core.NewNotFoundError("enrollment")
	ErrAlreadyEnrolled   = errors.New("Already enrolled")
	ErrAlreadyInWishlist = errors.New("Already in wishlist")
	ErrNotEnrolled       = core.NewValidationError(errors.New("You are not enrolled in this course."))
)

type (
	Repository interface {
		// CreateEnrollment returns ErrAlreadyEnrolled if the student is already enrolled in the course.
		CreateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
		GetEnrollment(ctx context.Context, filter GetFilter) (Enrollment, error)
		QueryEnrollments(ctx context.Context, filter QueryFilter) ([]Enrollment, error)
		// SetProgress persists the progress field only.
		SetProgress(ctx context.Context, id string, progress int) (Enrollment, error)
		TouchEnrollment(ctx context.Context, id string, at time.Time) error
		EnrolledCourseIDs(ctx context.Context, studentID string) ([]string, error)

		// GetOrCreateLessonProgress returns the existing row untouched, or creates lp.
		// The bool reports whether the row was created.
		GetOrCreateLessonProgress(ctx context.Context, lp LessonProgress) (LessonProgress, bool, error)
		// DeleteLessonProgress reports whether a row was deleted.
		DeleteLessonProgress(ctx context.Context, enrollmentID, lessonID string) (bool, error)
		CountLessonProgress(ctx context.Context, enrollmentID string) (int, error)
		QueryLessonProgress(ctx context.Context, enrollmentID string) ([]LessonProgress, error)
		CompletedLessonIDs(ctx context.Context, studentID string) ([]string, error)

		// AddToWishlist returns ErrAlreadyInWishlist if the course is already in the student's wishlist.
		AddToWishlist(ctx context.Context, item WishlistItem) (WishlistItem, error)
		RemoveFromWishlist(ctx context.Context, studentID, courseID string) error
		QueryWishlist(ctx context.Context, studentID string) ([]WishlistItem, error)
	}

	// Catalog is the part of the catalog the tracker reads.
	Catalog interface {
		GetCourse(ctx context.Context, a access.Actor, id string) (catalog.Course, error)
		LessonCourse(ctx context.Context, a access.Actor, lessonID string) (catalog.Lesson, catalog.Course, error)
		CountPublishedLessons(ctx context.Context, courseID string) (int, error)
	}

	Service struct {
		repo    Repository
		catalog Catalog
		events  core.EventPublisher
		logger  core.Logger
	}
)

func NewService(repo Repository, cat Catalog, events core.EventPublisher, logger core.Logger) *Service {
	return &Service{repo: repo, catalog: cat, events: events, logger: logger}
}

// Enroll registers a in the course. Enrolling twice is a validation error.
func (svc *Service) Enroll(ctx context.Context, a access.Actor, courseID string) (Enrollment, error) {
	if err := access.Require(a, access.Enroll, "You cannot enroll in courses."); err != nil {
		return Enrollment{}, err
	}
	course, err := svc.catalog.GetCourse(ctx, a, courseID)
	if err != nil {
		return Enrollment{}, err
	}
	enr, err := svc.repo.CreateEnrollment(ctx, Enrollment{
		ID:         uuid.New().String(),
		StudentID:  a.ID,
		CourseID:   course.ID,
		EnrolledAt: time.Now().UTC(),
	})
	if err != nil {
		if errors.Cause(err) == ErrAlreadyEnrolled {
			return Enrollment{}, core.NewValidationError(err)
		}
		return Enrollment{}, errors.Wrap(err, "creating enrollment")
	}
	core.PublishEvents(ctx, svc.events, svc.logger, core.NewEvent(core.EventEnrollmentCreated, enr.ID, a.ID, enr))
	return enr, nil
}

// ListEnrollments returns a's own enrollments.
func (svc *Service) ListEnrollments(ctx context.Context, a access.Actor) ([]Enrollment, error) {
	enrs, err := svc.repo.QueryEnrollments(ctx, QueryFilter{StudentID: a.ID})
	return enrs, errors.Wrap(err, "querying enrollments")
}

// GetEnrollment returns one of a's own enrollments with its completed lessons.
func (svc *Service) GetEnrollment(ctx context.Context, a access.Actor, id string) (Detail, error) {
	enr, err := svc.repo.GetEnrollment(ctx, GetFilter{ID: id})
	if err != nil {
		return Detail{}, err
	}
	if enr.StudentID != a.ID {
		return Detail{}, ErrNotFound
	}
	progress, err := svc.repo.QueryLessonProgress(ctx, enr.ID)
	if err != nil {
		return Detail{}, errors.Wrap(err, "querying lesson progress")
	}
	return Detail{Enrollment: enr, LessonProgress: progress}, nil
}

// EnrolledCourseIDs returns the IDs of the courses studentID is enrolled in.
func (svc *Service) EnrolledCourseIDs(ctx context.Context, studentID string) ([]string, error) {
	ids, err := svc.repo.EnrolledCourseIDs(ctx, studentID)
	return ids, errors.Wrap(err, "querying enrolled courses")
}

// CompletedLessonIDs returns the IDs of all the lessons studentID has completed.
func (svc *Service) CompletedLessonIDs(ctx context.Context, studentID string) ([]string, error) {
	ids, err := svc.repo.CompletedLessonIDs(ctx, studentID)
	return ids, errors.Wrap(err, "querying completed lessons")
}

// CourseStudentIDs returns the IDs of the students enrolled in the course.
func (svc *Service) CourseStudentIDs(ctx context.Context, courseID string) ([]string, error) {
	enrs, err := svc.repo.QueryEnrollments(ctx, QueryFilter{CourseID: courseID})
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	ids := make([]string, 0, len(enrs))
	for _, e := range enrs {
		ids = append(ids, e.StudentID)
	}
	return ids, nil
}

// IsEnrolled reports whether studentID is enrolled in the course.
func (svc *Service) IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error) {
	_, err := svc.repo.GetEnrollment(ctx, GetFilter{StudentID: studentID, CourseID: courseID})
	if err != nil {
		if core.IsNotFound(err) {
			return false, nil
		}
		return false, errors.Wrap(err, "getting enrollment")
	}
	return true, nil
}

// Recalculate recomputes the enrollment's progress from its LessonProgress rows and persists it.
// It is idempotent: the stored value is derived, never adjusted incrementally.
func (svc *Service) Recalculate(ctx context.Context, enr Enrollment) (Enrollment, error) {
	published, err := svc.catalog.CountPublishedLessons(ctx, enr.CourseID)
	if err != nil {
		return Enrollment{}, err
	}
	completed, err := svc.repo.CountLessonProgress(ctx, enr.ID)
	if err != nil {
		return Enrollment{}, errors.Wrap(err, "counting lesson progress")
	}

	progress := ComputeProgress(completed, published)
	if enr, err = svc.repo.SetProgress(ctx, enr.ID, progress); err != nil {
		return Enrollment{}, errors.Wrap(err, "setting progress")
	}
	return enr, nil
}

// lessonEnrollment returns the lesson and a's enrollment in its course.
func (svc *Service) lessonEnrollment(ctx context.Context, a access.Actor, lessonID string) (catalog.Lesson, Enrollment, error) {
	lesson, course, err := svc.catalog.LessonCourse(ctx, a, lessonID)
	if err != nil {
		return catalog.Lesson{}, Enrollment{}, err
	}
	enr, err := svc.repo.GetEnrollment(ctx, GetFilter{StudentID: a.ID, CourseID: course.ID})
	if err != nil {
		if core.IsNotFound(err) {
			return catalog.Lesson{}, Enrollment{}, ErrNotEnrolled
		}
		return catalog.Lesson{}, Enrollment{}, errors.Wrap(err, "getting enrollment")
	}
	return lesson, enr, nil
}

// CompleteLesson marks the lesson as completed for a. Completing it again changes nothing.
func (svc *Service) CompleteLesson(ctx context.Context, a access.Actor, lessonID string) (Completion, error) {
	lesson, enr, err := svc.lessonEnrollment(ctx, a, lessonID)
	if err != nil {
		return Completion{}, err
	}

	now := time.Now().UTC()
	lp, created, err := svc.repo.GetOrCreateLessonProgress(ctx, LessonProgress{
		ID:           uuid.New().String(),
		EnrollmentID: enr.ID,
		LessonID:     lesson.ID,
		CompletedAt:  now,
	})
	if err != nil {
		return Completion{}, errors.Wrap(err, "completing lesson")
	}
	if err = svc.repo.TouchEnrollment(ctx, enr.ID, now); err != nil {
		return Completion{}, errors.Wrap(err, "touching enrollment")
	}

	prev := enr.Progress
	if enr, err = svc.Recalculate(ctx, enr); err != nil {
		return Completion{}, err
	}

	var events []core.Event
	if created {
		events = append(events, core.NewEvent(core.EventLessonCompleted, enr.ID, a.ID, lp))
	}
	if enr.Progress != prev {
		events = append(events, progressEvent(enr, a))
	}
	core.PublishEvents(ctx, svc.events, svc.logger, events...)
	return Completion{Lesson: lesson, Enrollment: enr, Completed: true}, nil
}

// UncompleteLesson removes the lesson's completion for a, if any.
func (svc *Service) UncompleteLesson(ctx context.Context, a access.Actor, lessonID string) (Completion, error) {
	lesson, enr, err := svc.lessonEnrollment(ctx, a, lessonID)
	if err != nil {
		return Completion{}, err
	}

	deleted, err := svc.repo.DeleteLessonProgress(ctx, enr.ID, lesson.ID)
	if err != nil {
		return Completion{}, errors.Wrap(err, "uncompleting lesson")
	}
	if err = svc.repo.TouchEnrollment(ctx, enr.ID, time.Now().UTC()); err != nil {
		return Completion{}, errors.Wrap(err, "touching enrollment")
	}

	prev := enr.Progress
	if enr, err = svc.Recalculate(ctx, enr); err != nil {
		return Completion{}, err
	}

	var events []core.Event
	if deleted {
		payload := map[string]string{"enrollment_id": enr.ID, "lesson_id": lesson.ID}
		events = append(events, core.NewEvent(core.EventLessonUncompleted, enr.ID, a.ID, payload))
	}
	if enr.Progress != prev {
		events = append(events, progressEvent(enr, a))
	}
	core.PublishEvents(ctx, svc.events, svc.logger, events...)
	return Completion{Lesson: lesson, Enrollment: enr, Completed: false}, nil
}

func progressEvent(enr Enrollment, a access.Actor) core.Event {
	payload := map[string]interface{}{
		"enrollment_id": enr.ID,
		"student_id":    enr.StudentID,
		"course_id":     enr.CourseID,
		"progress":      enr.Progress,
	}
	return core.NewEvent(core.EventProgressUpdated, enr.ID, a.ID, payload)
}

// Wishlist

func (svc *Service) AddToWishlist(ctx context.Context, a access.Actor, courseID string) (WishlistItem, error) {
	if !a.IsAuthenticated() {
		return WishlistItem{}, core.NewPermissionError("Authentication required.")
	}
	course, err := svc.catalog.GetCourse(ctx, a, courseID)
	if err != nil {
		return WishlistItem{}, err
	}
	item, err := svc.repo.AddToWishlist(ctx, WishlistItem{
		ID:        uuid.New().String(),
		StudentID: a.ID,
		CourseID:  course.ID,
		AddedAt:   time.Now().UTC(),
	})
	if err != nil {
		if errors.Cause(err) == ErrAlreadyInWishlist {
			return WishlistItem{}, core.NewValidationError(err)
		}
		return WishlistItem{}, errors.Wrap(err, "adding to wishlist")
	}
	return item, nil
}

func (svc *Service) RemoveFromWishlist(ctx context.Context, a access.Actor, courseID string) error {
	course, err := svc.catalog.GetCourse(ctx, a, courseID)
	if err != nil {
		return err
	}
	return errors.Wrap(svc.repo.RemoveFromWishlist(ctx, a.ID, course.ID), "removing from wishlist")
}

func (svc *Service) ListWishlist(ctx context.Context, a access.Actor) ([]WishlistItem, error) {
	items, err := svc.repo.QueryWishlist(ctx, a.ID)
	return items, errors.Wrap(err, "querying wishlist")
}

// WishlistCourseIDs returns the IDs of the courses in the student's wishlist.
func (svc *Service) WishlistCourseIDs(ctx context.Context, studentID string) ([]string, error) {
	items, err := svc.repo.QueryWishlist(ctx, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying wishlist")
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.CourseID)
	}
	return ids, nil
}

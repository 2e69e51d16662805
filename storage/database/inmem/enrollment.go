package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/somesha/core/enrollment"
)

type enrollmentRepository struct {
	db *DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *DB) *enrollmentRepository {
	return &enrollmentRepository{db: db}
}

func (repo *enrollmentRepository) CreateEnrollment(_ context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, other := range repo.db.enrollments {
		if other.StudentID == e.StudentID && other.CourseID == e.CourseID {
			return enrollment.Enrollment{}, enrollment.ErrAlreadyEnrolled
		}
	}
	repo.db.enrollments[e.ID] = e
	return e, nil
}

func (repo *enrollmentRepository) GetEnrollment(_ context.Context, filter enrollment.GetFilter) (enrollment.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if filter.ID != "" {
		if e, ok := repo.db.enrollments[filter.ID]; ok {
			return e, nil
		}
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	if filter.StudentID != "" && filter.CourseID != "" {
		for _, e := range repo.db.enrollments {
			if e.StudentID == filter.StudentID && e.CourseID == filter.CourseID {
				return e, nil
			}
		}
	}
	return enrollment.Enrollment{}, enrollment.ErrNotFound
}

func (repo *enrollmentRepository) QueryEnrollments(_ context.Context, filter enrollment.QueryFilter) ([]enrollment.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	enrs := values(repo.db.enrollments, filter.Match)
	sort.Slice(enrs, func(i, j int) bool { return enrs[i].EnrolledAt.After(enrs[j].EnrolledAt) })
	return enrs, nil
}

func (repo *enrollmentRepository) SetProgress(_ context.Context, id string, progress int) (enrollment.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	e, ok := repo.db.enrollments[id]
	if !ok {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	e.Progress = progress
	repo.db.enrollments[id] = e
	return e, nil
}

func (repo *enrollmentRepository) TouchEnrollment(_ context.Context, id string, at time.Time) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	e, ok := repo.db.enrollments[id]
	if !ok {
		return enrollment.ErrNotFound
	}
	e.LastAccessed = null.TimeFrom(at.UTC())
	repo.db.enrollments[id] = e
	return nil
}

func (repo *enrollmentRepository) EnrolledCourseIDs(_ context.Context, studentID string) ([]string, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	ids := make([]string, 0)
	for _, e := range repo.db.enrollments {
		if e.StudentID == studentID {
			ids = append(ids, e.CourseID)
		}
	}
	return ids, nil
}

func (repo *enrollmentRepository) GetOrCreateLessonProgress(_ context.Context, lp enrollment.LessonProgress) (enrollment.LessonProgress, bool, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, existing := range repo.db.lessonProgress {
		if existing.EnrollmentID == lp.EnrollmentID && existing.LessonID == lp.LessonID {
			return existing, false, nil
		}
	}
	repo.db.lessonProgress[lp.ID] = lp
	return lp, true, nil
}

func (repo *enrollmentRepository) DeleteLessonProgress(_ context.Context, enrollmentID, lessonID string) (bool, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for id, lp := range repo.db.lessonProgress {
		if lp.EnrollmentID == enrollmentID && lp.LessonID == lessonID {
			delete(repo.db.lessonProgress, id)
			return true, nil
		}
	}
	return false, nil
}

func (repo *enrollmentRepository) CountLessonProgress(_ context.Context, enrollmentID string) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	var n int
	for _, lp := range repo.db.lessonProgress {
		if lp.EnrollmentID == enrollmentID {
			n++
		}
	}
	return n, nil
}

func (repo *enrollmentRepository) QueryLessonProgress(_ context.Context, enrollmentID string) ([]enrollment.LessonProgress, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	rows := values(repo.db.lessonProgress, func(lp enrollment.LessonProgress) bool { return lp.EnrollmentID == enrollmentID })
	sort.Slice(rows, func(i, j int) bool { return rows[i].CompletedAt.Before(rows[j].CompletedAt) })
	return rows, nil
}

func (repo *enrollmentRepository) CompletedLessonIDs(_ context.Context, studentID string) ([]string, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	ids := make([]string, 0)
	for _, lp := range repo.db.lessonProgress {
		if repo.db.enrollments[lp.EnrollmentID].StudentID == studentID {
			ids = append(ids, lp.LessonID)
		}
	}
	return ids, nil
}

func (repo *enrollmentRepository) AddToWishlist(_ context.Context, item enrollment.WishlistItem) (enrollment.WishlistItem, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, other := range repo.db.wishlist {
		if other.StudentID == item.StudentID && other.CourseID == item.CourseID {
			return enrollment.WishlistItem{}, enrollment.ErrAlreadyInWishlist
		}
	}
	repo.db.wishlist[item.ID] = item
	return item, nil
}

func (repo *enrollmentRepository) RemoveFromWishlist(_ context.Context, studentID, courseID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for id, item := range repo.db.wishlist {
		if item.StudentID == studentID && item.CourseID == courseID {
			delete(repo.db.wishlist, id)
		}
	}
	return nil
}

func (repo *enrollmentRepository) QueryWishlist(_ context.Context, studentID string) ([]enrollment.WishlistItem, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	items := values(repo.db.wishlist, func(w enrollment.WishlistItem) bool { return w.StudentID == studentID })
	sort.Slice(items, func(i, j int) bool { return items[i].AddedAt.After(items[j].AddedAt) })
	return items, nil
}

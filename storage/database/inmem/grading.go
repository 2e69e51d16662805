package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/somesha/core/grading"
)

type gradingRepository struct {
	db *DB
	// undo collects the compensations of a transaction's writes; nil outside WithinTx
	undo *[]func()
}

var _ grading.Repository = (*gradingRepository)(nil) // interface compliance check

func NewGradingRepository(db *DB) *gradingRepository {
	return &gradingRepository{db: db}
}

// WithinTx serializes transactions and reverts their writes when fn fails.
func (repo *gradingRepository) WithinTx(_ context.Context, fn func(tx grading.Repository) error) error {
	if repo.undo != nil {
		return fn(repo)
	}

	repo.db.txMutex.Lock()
	defer repo.db.txMutex.Unlock()

	var undo []func()
	if err := fn(&gradingRepository{db: repo.db, undo: &undo}); err != nil {
		repo.db.mutex.Lock()
		defer repo.db.mutex.Unlock()
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
		return err
	}
	return nil
}

// onRollback registers a compensation; callers hold the write lock.
func (repo *gradingRepository) onRollback(f func()) {
	if repo.undo != nil {
		*repo.undo = append(*repo.undo, f)
	}
}

// Assignment submissions

func (repo *gradingRepository) CreateAssignmentSubmission(_ context.Context, s grading.AssignmentSubmission) (grading.AssignmentSubmission, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, other := range repo.db.assignmentSubs {
		if other.AssignmentID == s.AssignmentID && other.StudentID == s.StudentID {
			return grading.AssignmentSubmission{}, grading.ErrDuplicateSubmission
		}
	}
	repo.db.assignmentSubs[s.ID] = s
	repo.onRollback(func() { delete(repo.db.assignmentSubs, s.ID) })
	return s, nil
}

func (repo *gradingRepository) GetAssignmentSubmission(_ context.Context, id string) (grading.AssignmentSubmission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if s, ok := repo.db.assignmentSubs[id]; ok {
		return s, nil
	}
	return grading.AssignmentSubmission{}, grading.ErrAssignmentSubmissionNotFound
}

// taughtBy reports whether the module belongs to a course of the instructor; callers hold the lock.
func (db *DB) taughtBy(moduleID, instructorID string) bool {
	course, ok := db.courses[db.courseOf(moduleID)]
	return ok && course.InstructorID == instructorID
}

func (repo *gradingRepository) QueryAssignmentSubmissions(_ context.Context, filter grading.AssignmentSubmissionFilter) ([]grading.AssignmentSubmission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	subs := values(repo.db.assignmentSubs, func(s grading.AssignmentSubmission) bool {
		if filter.AssignmentID != "" && s.AssignmentID != filter.AssignmentID {
			return false
		}
		if filter.StudentID != "" && s.StudentID != filter.StudentID {
			return false
		}
		if filter.InstructorID != "" && !repo.db.taughtBy(repo.db.assignments[s.AssignmentID].ModuleID, filter.InstructorID) {
			return false
		}
		return true
	})
	sort.Slice(subs, func(i, j int) bool { return subs[i].SubmittedAt.After(subs[j].SubmittedAt) })
	return subs, nil
}

func (repo *gradingRepository) UpdateAssignmentSubmission(_ context.Context, s grading.AssignmentSubmission) (grading.AssignmentSubmission, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	orig, ok := repo.db.assignmentSubs[s.ID]
	if !ok {
		return grading.AssignmentSubmission{}, grading.ErrAssignmentSubmissionNotFound
	}
	s.AssignmentID = orig.AssignmentID
	s.StudentID = orig.StudentID
	s.SubmittedAt = orig.SubmittedAt
	repo.db.assignmentSubs[s.ID] = s
	repo.onRollback(func() { repo.db.assignmentSubs[orig.ID] = orig })
	return s, nil
}

// Quiz submissions

// LockQuizAttempts is a no-op: WithinTx already serializes transactions.
func (repo *gradingRepository) LockQuizAttempts(context.Context, string, string) error {
	return nil
}

func (repo *gradingRepository) CountQuizAttempts(_ context.Context, quizID, studentID string) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	var n int
	for _, s := range repo.db.quizSubs {
		if s.QuizID == quizID && s.StudentID == studentID {
			n++
		}
	}
	return n, nil
}

func (repo *gradingRepository) CreateQuizSubmission(_ context.Context, s grading.QuizSubmission) (grading.QuizSubmission, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, other := range repo.db.quizSubs {
		if other.QuizID == s.QuizID && other.StudentID == s.StudentID && other.AttemptNumber == s.AttemptNumber {
			return grading.QuizSubmission{}, grading.ErrAttemptExists
		}
	}
	s.Answers = append([]grading.Answer{}, s.Answers...)
	repo.db.quizSubs[s.ID] = s
	repo.onRollback(func() { delete(repo.db.quizSubs, s.ID) })
	return s, nil
}

func (repo *gradingRepository) GetQuizSubmission(_ context.Context, id string) (grading.QuizSubmission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	s, ok := repo.db.quizSubs[id]
	if !ok {
		return grading.QuizSubmission{}, grading.ErrQuizSubmissionNotFound
	}
	s.Answers = append([]grading.Answer{}, s.Answers...)
	return s, nil
}

func (repo *gradingRepository) QueryQuizSubmissions(_ context.Context, filter grading.QuizSubmissionFilter) ([]grading.QuizSubmission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	subs := values(repo.db.quizSubs, func(s grading.QuizSubmission) bool {
		if filter.QuizID != "" && s.QuizID != filter.QuizID {
			return false
		}
		if filter.StudentID != "" && s.StudentID != filter.StudentID {
			return false
		}
		if filter.InstructorID != "" && !repo.db.taughtBy(repo.db.quizzes[s.QuizID].ModuleID, filter.InstructorID) {
			return false
		}
		return true
	})
	for i := range subs {
		subs[i].Answers = nil
	}
	sort.Slice(subs, func(i, j int) bool {
		if !subs[i].SubmittedAt.Equal(subs[j].SubmittedAt) {
			return subs[i].SubmittedAt.After(subs[j].SubmittedAt)
		}
		return subs[i].AttemptNumber > subs[j].AttemptNumber
	})
	return subs, nil
}

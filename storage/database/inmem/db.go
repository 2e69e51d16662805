// Package inmemdb implements the repositories in memory. It backs tests and the `memory` storage mode.
package inmemdb

import (
	"sort"
	"sync"

	"github.com/trezcool/somesha/core"
	"github.com/trezcool/somesha/core/catalog"
	"github.com/trezcool/somesha/core/enrollment"
	"github.com/trezcool/somesha/core/grading"
	"github.com/trezcool/somesha/core/integration"
	"github.com/trezcool/somesha/core/messaging"
	"github.com/trezcool/somesha/core/user"
)

// DB holds every table behind one lock.
type DB struct {
	mutex sync.RWMutex
	// txMutex serializes grading transactions
	txMutex sync.Mutex

	users map[string]user.User

	courses     map[string]catalog.Course
	modules     map[string]catalog.Module
	lessons     map[string]catalog.Lesson
	assignments map[string]catalog.Assignment
	quizzes     map[string]catalog.Quiz // with questions & choices
	bank        map[string]catalog.BankEntry

	enrollments    map[string]enrollment.Enrollment
	lessonProgress map[string]enrollment.LessonProgress
	wishlist       map[string]enrollment.WishlistItem

	assignmentSubs map[string]grading.AssignmentSubmission
	quizSubs       map[string]grading.QuizSubmission // with answers

	conversations map[string]messaging.Conversation
	participants  map[string]messaging.Participant
	messages      map[string]messaging.Message
	reads         map[string]messaging.Read

	integrations       map[string]integration.LMSIntegration
	courseIntegrations map[string]integration.CourseIntegration
	meetings           map[string]integration.ZoomMeeting
}

func NewDB() *DB {
	return &DB{
		users:              make(map[string]user.User),
		courses:            make(map[string]catalog.Course),
		modules:            make(map[string]catalog.Module),
		lessons:            make(map[string]catalog.Lesson),
		assignments:        make(map[string]catalog.Assignment),
		quizzes:            make(map[string]catalog.Quiz),
		bank:               make(map[string]catalog.BankEntry),
		enrollments:        make(map[string]enrollment.Enrollment),
		lessonProgress:     make(map[string]enrollment.LessonProgress),
		wishlist:           make(map[string]enrollment.WishlistItem),
		assignmentSubs:     make(map[string]grading.AssignmentSubmission),
		quizSubs:           make(map[string]grading.QuizSubmission),
		conversations:      make(map[string]messaging.Conversation),
		participants:       make(map[string]messaging.Participant),
		messages:           make(map[string]messaging.Message),
		reads:              make(map[string]messaging.Read),
		integrations:       make(map[string]integration.LMSIntegration),
		courseIntegrations: make(map[string]integration.CourseIntegration),
		meetings:           make(map[string]integration.ZoomMeeting),
	}
}

// values returns the table's rows; callers hold the lock.
func values[T any](table map[string]T, keep func(T) bool) []T {
	rows := make([]T, 0, len(table))
	for _, row := range table {
		if keep == nil || keep(row) {
			rows = append(rows, row)
		}
	}
	return rows
}

func containsID(ids []string, id string) bool {
	for _, i := range ids {
		if i == id {
			return true
		}
	}
	return false
}

// courseOf returns the course ID of a module; callers hold the lock.
func (db *DB) courseOf(moduleID string) string {
	return db.modules[moduleID].CourseID
}

// sortRows orders rows by the given orderings, using `field` to read a column as a sortable string.
// Rows that tie on every ordering keep `fallback` order.
func sortRows[T any](rows []T, ordering []core.DBOrdering, field func(T, string) string, fallback func(a, b T) bool) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, ord := range ordering {
			a, b := field(rows[i], ord.Field), field(rows[j], ord.Field)
			if a == b {
				continue
			}
			if ord.Ascending {
				return a < b
			}
			return a > b
		}
		return fallback(rows[i], rows[j])
	})
}

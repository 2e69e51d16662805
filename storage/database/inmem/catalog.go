package inmemdb

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/trezcool/somesha/core"
	"github.com/trezcool/somesha/core/catalog"
)

type catalogRepository struct {
	db *DB
}

var _ catalog.Repository = (*catalogRepository)(nil) // interface compliance check

func NewCatalogRepository(db *DB) *catalogRepository {
	return &catalogRepository{db: db}
}

// Courses

func (repo *catalogRepository) CreateCourse(_ context.Context, c catalog.Course) (catalog.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.courses[c.ID] = c
	return c, nil
}

func (repo *catalogRepository) GetCourse(_ context.Context, id string) (catalog.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if c, ok := repo.db.courses[id]; ok {
		return c, nil
	}
	return catalog.Course{}, catalog.ErrCourseNotFound
}

func courseField(c catalog.Course, field string) string {
	switch field {
	case "title":
		return c.Title
	case "category":
		return c.Category
	case "price":
		return fmt.Sprintf("%020.4f", c.Price)
	case "status":
		return string(c.Status)
	case "created_at":
		return c.CreatedAt.Format(time.RFC3339Nano)
	case "updated_at":
		return c.UpdatedAt.Format(time.RFC3339Nano)
	}
	return ""
}

func (repo *catalogRepository) QueryCourses(_ context.Context, filter catalog.CourseFilter, ordering ...core.DBOrdering) ([]catalog.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	filter.Clean()
	courses := values(repo.db.courses, filter.Match)
	ordering = core.AllowedOrderings(ordering, catalog.CourseOrderings...)
	sortRows(courses, ordering, courseField, func(a, b catalog.Course) bool { return a.CreatedAt.After(b.CreatedAt) })
	return courses, nil
}

func (repo *catalogRepository) UpdateCourse(_ context.Context, c catalog.Course) (catalog.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	orig, ok := repo.db.courses[c.ID]
	if !ok {
		return catalog.Course{}, catalog.ErrCourseNotFound
	}
	c.InstructorID = orig.InstructorID
	c.CreatedAt = orig.CreatedAt
	repo.db.courses[c.ID] = c
	return c, nil
}

func (repo *catalogRepository) DeleteCourse(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	if _, ok := repo.db.courses[id]; !ok {
		return catalog.ErrCourseNotFound
	}
	for _, m := range repo.db.modules {
		if m.CourseID == id {
			repo.db.deleteModule(m.ID)
		}
	}
	for eid, e := range repo.db.enrollments {
		if e.CourseID == id {
			for lid, lp := range repo.db.lessonProgress {
				if lp.EnrollmentID == eid {
					delete(repo.db.lessonProgress, lid)
				}
			}
			delete(repo.db.enrollments, eid)
		}
	}
	for wid, w := range repo.db.wishlist {
		if w.CourseID == id {
			delete(repo.db.wishlist, wid)
		}
	}
	delete(repo.db.courses, id)
	return nil
}

// content filters

func (db *DB) matchContent(filter catalog.ContentFilter, moduleID string) bool {
	courseID := db.courseOf(moduleID)
	if filter.CourseIDs != nil && !containsID(filter.CourseIDs, courseID) {
		return false
	}
	if filter.CourseID != "" && courseID != filter.CourseID {
		return false
	}
	if filter.ModuleID != "" && moduleID != filter.ModuleID {
		return false
	}
	return true
}

// Modules

func (db *DB) moduleOrderTaken(m catalog.Module) bool {
	for _, other := range db.modules {
		if other.ID != m.ID && other.CourseID == m.CourseID && other.Order == m.Order {
			return true
		}
	}
	return false
}

func (repo *catalogRepository) CreateModule(_ context.Context, m catalog.Module) (catalog.Module, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	if repo.db.moduleOrderTaken(m) {
		return catalog.Module{}, catalog.ErrDuplicateOrder
	}
	repo.db.modules[m.ID] = m
	return m, nil
}

func (repo *catalogRepository) GetModule(_ context.Context, id string) (catalog.Module, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if m, ok := repo.db.modules[id]; ok {
		return m, nil
	}
	return catalog.Module{}, catalog.ErrModuleNotFound
}

func (repo *catalogRepository) QueryModules(_ context.Context, filter catalog.ContentFilter) ([]catalog.Module, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	modules := values(repo.db.modules, func(m catalog.Module) bool { return repo.db.matchContent(filter, m.ID) })
	sort.Slice(modules, func(i, j int) bool {
		if modules[i].CourseID != modules[j].CourseID {
			return modules[i].CourseID < modules[j].CourseID
		}
		return modules[i].Order < modules[j].Order
	})
	return modules, nil
}

func (repo *catalogRepository) UpdateModule(_ context.Context, m catalog.Module) (catalog.Module, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	orig, ok := repo.db.modules[m.ID]
	if !ok {
		return catalog.Module{}, catalog.ErrModuleNotFound
	}
	m.CourseID = orig.CourseID
	if repo.db.moduleOrderTaken(m) {
		return catalog.Module{}, catalog.ErrDuplicateOrder
	}
	repo.db.modules[m.ID] = m
	return m, nil
}

// deleteModule removes the module and its content; callers hold the lock.
func (db *DB) deleteModule(id string) {
	for lid, l := range db.lessons {
		if l.ModuleID == id {
			db.deleteLesson(lid)
		}
	}
	for aid, a := range db.assignments {
		if a.ModuleID == id {
			db.deleteAssignment(aid)
		}
	}
	for qid, q := range db.quizzes {
		if q.ModuleID == id {
			db.deleteQuiz(qid)
		}
	}
	delete(db.modules, id)
}

func (repo *catalogRepository) DeleteModule(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	if _, ok := repo.db.modules[id]; !ok {
		return catalog.ErrModuleNotFound
	}
	repo.db.deleteModule(id)
	return nil
}

// Lessons

func (db *DB) lessonOrderTaken(l catalog.Lesson) bool {
	for _, other := range db.lessons {
		if other.ID != l.ID && other.ModuleID == l.ModuleID && other.Order == l.Order {
			return true
		}
	}
	return false
}

func (repo *catalogRepository) CreateLesson(_ context.Context, l catalog.Lesson) (catalog.Lesson, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	if repo.db.lessonOrderTaken(l) {
		return catalog.Lesson{}, catalog.ErrDuplicateOrder
	}
	repo.db.lessons[l.ID] = l
	return l, nil
}

func (repo *catalogRepository) GetLesson(_ context.Context, id string) (catalog.Lesson, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if l, ok := repo.db.lessons[id]; ok {
		return l, nil
	}
	return catalog.Lesson{}, catalog.ErrLessonNotFound
}

func (repo *catalogRepository) QueryLessons(_ context.Context, filter catalog.ContentFilter) ([]catalog.Lesson, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	lessons := values(repo.db.lessons, func(l catalog.Lesson) bool {
		return repo.db.matchContent(filter, l.ModuleID) && (!filter.PublishedOnly || l.IsPublished)
	})
	sort.Slice(lessons, func(i, j int) bool {
		if lessons[i].ModuleID != lessons[j].ModuleID {
			return lessons[i].ModuleID < lessons[j].ModuleID
		}
		return lessons[i].Order < lessons[j].Order
	})
	return lessons, nil
}

func (repo *catalogRepository) UpdateLesson(_ context.Context, l catalog.Lesson) (catalog.Lesson, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	orig, ok := repo.db.lessons[l.ID]
	if !ok {
		return catalog.Lesson{}, catalog.ErrLessonNotFound
	}
	l.ModuleID = orig.ModuleID
	if repo.db.lessonOrderTaken(l) {
		return catalog.Lesson{}, catalog.ErrDuplicateOrder
	}
	repo.db.lessons[l.ID] = l
	return l, nil
}

func (db *DB) deleteLesson(id string) {
	for pid, lp := range db.lessonProgress {
		if lp.LessonID == id {
			delete(db.lessonProgress, pid)
		}
	}
	delete(db.lessons, id)
}

func (repo *catalogRepository) DeleteLesson(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	if _, ok := repo.db.lessons[id]; !ok {
		return catalog.ErrLessonNotFound
	}
	repo.db.deleteLesson(id)
	return nil
}

func (repo *catalogRepository) CountPublishedLessons(_ context.Context, courseID string) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.db.countPublishedLessons(courseID), nil
}

func (db *DB) countPublishedLessons(courseID string) int {
	var n int
	for _, l := range db.lessons {
		if l.IsPublished && db.courseOf(l.ModuleID) == courseID {
			n++
		}
	}
	return n
}

// Assignments

func (repo *catalogRepository) CreateAssignment(_ context.Context, a catalog.Assignment) (catalog.Assignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.assignments[a.ID] = a
	return a, nil
}

func (repo *catalogRepository) GetAssignment(_ context.Context, id string) (catalog.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if a, ok := repo.db.assignments[id]; ok {
		return a, nil
	}
	return catalog.Assignment{}, catalog.ErrAssignmentNotFound
}

func (repo *catalogRepository) QueryAssignments(_ context.Context, filter catalog.ContentFilter) ([]catalog.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	assignments := values(repo.db.assignments, func(a catalog.Assignment) bool { return repo.db.matchContent(filter, a.ModuleID) })
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].CreatedAt.Before(assignments[j].CreatedAt) })
	return assignments, nil
}

func (repo *catalogRepository) UpdateAssignment(_ context.Context, a catalog.Assignment) (catalog.Assignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	orig, ok := repo.db.assignments[a.ID]
	if !ok {
		return catalog.Assignment{}, catalog.ErrAssignmentNotFound
	}
	a.ModuleID = orig.ModuleID
	repo.db.assignments[a.ID] = a
	return a, nil
}

func (db *DB) deleteAssignment(id string) {
	for sid, s := range db.assignmentSubs {
		if s.AssignmentID == id {
			delete(db.assignmentSubs, sid)
		}
	}
	delete(db.assignments, id)
}

func (repo *catalogRepository) DeleteAssignment(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	if _, ok := repo.db.assignments[id]; !ok {
		return catalog.ErrAssignmentNotFound
	}
	repo.db.deleteAssignment(id)
	return nil
}

// Quizzes

// copyQuestions deep-copies questions so stored quizzes never alias caller slices.
func copyQuestions(qns []catalog.Question) []catalog.Question {
	if qns == nil {
		return nil
	}
	out := make([]catalog.Question, 0, len(qns))
	for _, qn := range qns {
		qn.Choices = append([]catalog.Choice{}, qn.Choices...)
		out = append(out, qn)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

func (repo *catalogRepository) CreateQuiz(_ context.Context, q catalog.Quiz) (catalog.Quiz, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	q.Questions = copyQuestions(q.Questions)
	if q.Questions == nil {
		q.Questions = []catalog.Question{}
	}
	repo.db.quizzes[q.ID] = q
	q.Questions = copyQuestions(q.Questions)
	return q, nil
}

func (repo *catalogRepository) GetQuiz(_ context.Context, id string) (catalog.Quiz, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	q, ok := repo.db.quizzes[id]
	if !ok {
		return catalog.Quiz{}, catalog.ErrQuizNotFound
	}
	q.Questions = copyQuestions(q.Questions)
	return q, nil
}

func (repo *catalogRepository) QueryQuizzes(_ context.Context, filter catalog.ContentFilter) ([]catalog.Quiz, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	quizzes := values(repo.db.quizzes, func(q catalog.Quiz) bool { return repo.db.matchContent(filter, q.ModuleID) })
	for i := range quizzes {
		quizzes[i].Questions = nil
	}
	sort.Slice(quizzes, func(i, j int) bool { return quizzes[i].CreatedAt.Before(quizzes[j].CreatedAt) })
	return quizzes, nil
}

func (repo *catalogRepository) UpdateQuiz(_ context.Context, q catalog.Quiz) (catalog.Quiz, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	orig, ok := repo.db.quizzes[q.ID]
	if !ok {
		return catalog.Quiz{}, catalog.ErrQuizNotFound
	}
	q.ModuleID = orig.ModuleID
	if q.Questions == nil {
		q.Questions = orig.Questions
	} else {
		q.Questions = copyQuestions(q.Questions)
	}
	repo.db.quizzes[q.ID] = q
	q.Questions = copyQuestions(q.Questions)
	return q, nil
}

func (db *DB) deleteQuiz(id string) {
	for sid, s := range db.quizSubs {
		if s.QuizID == id {
			delete(db.quizSubs, sid)
		}
	}
	delete(db.quizzes, id)
}

func (repo *catalogRepository) DeleteQuiz(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	if _, ok := repo.db.quizzes[id]; !ok {
		return catalog.ErrQuizNotFound
	}
	repo.db.deleteQuiz(id)
	return nil
}

// Question bank

func (repo *catalogRepository) CreateBankEntry(_ context.Context, e catalog.BankEntry) (catalog.BankEntry, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	e.Choices = append(catalog.BankChoices{}, e.Choices...)
	repo.db.bank[e.ID] = e
	return e, nil
}

func (repo *catalogRepository) GetBankEntry(_ context.Context, id string) (catalog.BankEntry, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if e, ok := repo.db.bank[id]; ok {
		return e, nil
	}
	return catalog.BankEntry{}, catalog.ErrBankEntryNotFound
}

func bankField(e catalog.BankEntry, field string) string {
	switch field {
	case "title":
		return e.Title
	case "points":
		return fmt.Sprintf("%020d", e.Points)
	case "created_at":
		return e.CreatedAt.Format(time.RFC3339Nano)
	case "updated_at":
		return e.UpdatedAt.Format(time.RFC3339Nano)
	}
	return ""
}

func (repo *catalogRepository) QueryBankEntries(_ context.Context, filter catalog.BankFilter, ordering ...core.DBOrdering) ([]catalog.BankEntry, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	entries := values(repo.db.bank, filter.Match)
	ordering = core.AllowedOrderings(ordering, catalog.BankOrderings...)
	sortRows(entries, ordering, bankField, func(a, b catalog.BankEntry) bool { return a.CreatedAt.After(b.CreatedAt) })
	return entries, nil
}

func (repo *catalogRepository) UpdateBankEntry(_ context.Context, e catalog.BankEntry) (catalog.BankEntry, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	orig, ok := repo.db.bank[e.ID]
	if !ok {
		return catalog.BankEntry{}, catalog.ErrBankEntryNotFound
	}
	e.OwnerID = orig.OwnerID
	e.CreatedAt = orig.CreatedAt
	e.Choices = append(catalog.BankChoices{}, e.Choices...)
	repo.db.bank[e.ID] = e
	return e, nil
}

func (repo *catalogRepository) DeleteBankEntry(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	if _, ok := repo.db.bank[id]; !ok {
		return catalog.ErrBankEntryNotFound
	}
	delete(repo.db.bank, id)
	return nil
}

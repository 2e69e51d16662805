package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/somesha/core"
	"github.com/trezcool/somesha/core/catalog"
)

const (
	courseColumns     = `id, instructor_id, title, description, category, status, price, estimated_hours, prerequisites, created_at, updated_at`
	moduleColumns     = `id, course_id, title, description, position, release_date, created_at, updated_at`
	lessonColumns     = `id, module_id, title, overview, content, video_url, resource_link, position, duration_minutes, is_published, created_at, updated_at`
	assignmentColumns = `id, module_id, title, instructions, due_date, max_points, allow_resubmission, created_at, updated_at`
	quizColumns       = `id, module_id, title, description, time_limit_minutes, attempts_allowed, passing_score, created_at, updated_at`
	bankColumns       = `id, owner_id, course_id, title, prompt, question_type, points, choices, tags, created_at, updated_at`
)

type catalogRepository struct {
	db executor
}

var _ catalog.Repository = (*catalogRepository)(nil) // interface compliance check

func NewCatalogRepository(db *sqlx.DB) *catalogRepository {
	return &catalogRepository{db: db}
}

func orderErr(err error, constraint string) error {
	if isUniqueViolation(err, constraint) {
		return catalog.ErrDuplicateOrder
	}
	return err
}

func (repo *catalogRepository) get(ctx context.Context, dest interface{}, query, id string, notFound error) error {
	return trapNoRowsErr(repo.db.GetContext(ctx, dest, query+" WHERE id = $1", id), notFound)
}

func (repo *catalogRepository) exec(ctx context.Context, query string, arg interface{}, notFound error) error {
	res, err := repo.db.NamedExecContext(ctx, query, arg)
	return mustAffect(res, err, notFound)
}

func (repo *catalogRepository) delete(ctx context.Context, table, id string, notFound error) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = $1", id)
	return mustAffect(res, err, notFound)
}

// Courses

func (repo *catalogRepository) CreateCourse(ctx context.Context, c catalog.Course) (catalog.Course, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO courses (`+courseColumns+`)
		VALUES (:id, :instructor_id, :title, :description, :category, :status, :price, :estimated_hours,
			:prerequisites, :created_at, :updated_at)`,
		c,
	)
	return c, err
}

func (repo *catalogRepository) GetCourse(ctx context.Context, id string) (catalog.Course, error) {
	var c catalog.Course
	err := repo.get(ctx, &c, "SELECT "+courseColumns+" FROM courses", id, catalog.ErrCourseNotFound)
	return c, err
}

func (repo *catalogRepository) QueryCourses(ctx context.Context, filter catalog.CourseFilter, ordering ...core.DBOrdering) ([]catalog.Course, error) {
	filter.Clean()
	var w where
	w.in("id", filter.IDs)
	if filter.InstructorID != "" {
		w.add("instructor_id = ?", filter.InstructorID)
	}
	if filter.Category != "" {
		w.add("category = ?", filter.Category)
	}
	if filter.Search != "" {
		w.add("title ILIKE ?", likePattern(filter.Search))
	}
	if filter.PublishedOnly {
		if filter.OrOwnedBy != "" {
			w.add("(status = ? OR instructor_id = ?)", catalog.StatusPublished, filter.OrOwnedBy)
		} else {
			w.add("status = ?", catalog.StatusPublished)
		}
	}

	courses := make([]catalog.Course, 0)
	ordering = core.AllowedOrderings(ordering, catalog.CourseOrderings...)
	err := selectWhere(ctx, repo.db, &courses, "SELECT "+courseColumns+" FROM courses", w, orderBy(ordering, "created_at DESC"))
	return courses, err
}

func (repo *catalogRepository) UpdateCourse(ctx context.Context, c catalog.Course) (catalog.Course, error) {
	err := repo.exec(ctx, `
		UPDATE courses SET
			title = :title, description = :description, category = :category, status = :status, price = :price,
			estimated_hours = :estimated_hours, prerequisites = :prerequisites, updated_at = :updated_at
		WHERE id = :id`,
		c, catalog.ErrCourseNotFound,
	)
	return c, err
}

func (repo *catalogRepository) DeleteCourse(ctx context.Context, id string) error {
	return repo.delete(ctx, "courses", id, catalog.ErrCourseNotFound)
}

// content filters

func moduleWhere(filter catalog.ContentFilter) where {
	var w where
	w.in("course_id", filter.CourseIDs)
	if filter.CourseID != "" {
		w.add("course_id = ?", filter.CourseID)
	}
	if filter.ModuleID != "" {
		w.add("id = ?", filter.ModuleID)
	}
	return w
}

// childWhere filters rows that belong to a module (lessons, assignments & quizzes).
func childWhere(filter catalog.ContentFilter) where {
	var w where
	if filter.CourseIDs != nil {
		if len(filter.CourseIDs) == 0 {
			w.add("FALSE")
		} else {
			w.add("module_id IN (SELECT id FROM modules WHERE course_id IN (?))", filter.CourseIDs)
		}
	}
	if filter.CourseID != "" {
		w.add("module_id IN (SELECT id FROM modules WHERE course_id = ?)", filter.CourseID)
	}
	if filter.ModuleID != "" {
		w.add("module_id = ?", filter.ModuleID)
	}
	return w
}

// Modules

func (repo *catalogRepository) CreateModule(ctx context.Context, m catalog.Module) (catalog.Module, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO modules (`+moduleColumns+`)
		VALUES (:id, :course_id, :title, :description, :position, :release_date, :created_at, :updated_at)`,
		m,
	)
	return m, orderErr(err, "modules_course_id_position_key")
}

func (repo *catalogRepository) GetModule(ctx context.Context, id string) (catalog.Module, error) {
	var m catalog.Module
	err := repo.get(ctx, &m, "SELECT "+moduleColumns+" FROM modules", id, catalog.ErrModuleNotFound)
	return m, err
}

func (repo *catalogRepository) QueryModules(ctx context.Context, filter catalog.ContentFilter) ([]catalog.Module, error) {
	modules := make([]catalog.Module, 0)
	err := selectWhere(ctx, repo.db, &modules, "SELECT "+moduleColumns+" FROM modules", moduleWhere(filter), " ORDER BY course_id, position")
	return modules, err
}

func (repo *catalogRepository) UpdateModule(ctx context.Context, m catalog.Module) (catalog.Module, error) {
	err := repo.exec(ctx, `
		UPDATE modules SET
			title = :title, description = :description, position = :position, release_date = :release_date,
			updated_at = :updated_at
		WHERE id = :id`,
		m, catalog.ErrModuleNotFound,
	)
	return m, orderErr(err, "modules_course_id_position_key")
}

func (repo *catalogRepository) DeleteModule(ctx context.Context, id string) error {
	return repo.delete(ctx, "modules", id, catalog.ErrModuleNotFound)
}

// Lessons

func (repo *catalogRepository) CreateLesson(ctx context.Context, l catalog.Lesson) (catalog.Lesson, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO lessons (`+lessonColumns+`)
		VALUES (:id, :module_id, :title, :overview, :content, :video_url, :resource_link, :position,
			:duration_minutes, :is_published, :created_at, :updated_at)`,
		l,
	)
	return l, orderErr(err, "lessons_module_id_position_key")
}

func (repo *catalogRepository) GetLesson(ctx context.Context, id string) (catalog.Lesson, error) {
	var l catalog.Lesson
	err := repo.get(ctx, &l, "SELECT "+lessonColumns+" FROM lessons", id, catalog.ErrLessonNotFound)
	return l, err
}

func (repo *catalogRepository) QueryLessons(ctx context.Context, filter catalog.ContentFilter) ([]catalog.Lesson, error) {
	w := childWhere(filter)
	if filter.PublishedOnly {
		w.add("is_published")
	}
	lessons := make([]catalog.Lesson, 0)
	err := selectWhere(ctx, repo.db, &lessons, "SELECT "+lessonColumns+" FROM lessons", w, " ORDER BY module_id, position")
	return lessons, err
}

func (repo *catalogRepository) UpdateLesson(ctx context.Context, l catalog.Lesson) (catalog.Lesson, error) {
	err := repo.exec(ctx, `
		UPDATE lessons SET
			title = :title, overview = :overview, content = :content, video_url = :video_url,
			resource_link = :resource_link, position = :position, duration_minutes = :duration_minutes,
			is_published = :is_published, updated_at = :updated_at
		WHERE id = :id`,
		l, catalog.ErrLessonNotFound,
	)
	return l, orderErr(err, "lessons_module_id_position_key")
}

func (repo *catalogRepository) DeleteLesson(ctx context.Context, id string) error {
	return repo.delete(ctx, "lessons", id, catalog.ErrLessonNotFound)
}

func (repo *catalogRepository) CountPublishedLessons(ctx context.Context, courseID string) (int, error) {
	var n int
	err := repo.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM lessons l
		JOIN modules m ON m.id = l.module_id
		WHERE m.course_id = $1 AND l.is_published`,
		courseID,
	)
	return n, err
}

// Assignments

func (repo *catalogRepository) CreateAssignment(ctx context.Context, a catalog.Assignment) (catalog.Assignment, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO assignments (`+assignmentColumns+`)
		VALUES (:id, :module_id, :title, :instructions, :due_date, :max_points, :allow_resubmission,
			:created_at, :updated_at)`,
		a,
	)
	return a, err
}

func (repo *catalogRepository) GetAssignment(ctx context.Context, id string) (catalog.Assignment, error) {
	var a catalog.Assignment
	err := repo.get(ctx, &a, "SELECT "+assignmentColumns+" FROM assignments", id, catalog.ErrAssignmentNotFound)
	return a, err
}

func (repo *catalogRepository) QueryAssignments(ctx context.Context, filter catalog.ContentFilter) ([]catalog.Assignment, error) {
	assignments := make([]catalog.Assignment, 0)
	err := selectWhere(ctx, repo.db, &assignments, "SELECT "+assignmentColumns+" FROM assignments", childWhere(filter), " ORDER BY created_at")
	return assignments, err
}

func (repo *catalogRepository) UpdateAssignment(ctx context.Context, a catalog.Assignment) (catalog.Assignment, error) {
	err := repo.exec(ctx, `
		UPDATE assignments SET
			title = :title, instructions = :instructions, due_date = :due_date, max_points = :max_points,
			allow_resubmission = :allow_resubmission, updated_at = :updated_at
		WHERE id = :id`,
		a, catalog.ErrAssignmentNotFound,
	)
	return a, err
}

func (repo *catalogRepository) DeleteAssignment(ctx context.Context, id string) error {
	return repo.delete(ctx, "assignments", id, catalog.ErrAssignmentNotFound)
}

// Quizzes

func insertQuestions(ctx context.Context, tx executor, questions []catalog.Question) error {
	for _, qn := range questions {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO questions (id, quiz_id, prompt, question_type, position, points)
			VALUES (:id, :quiz_id, :prompt, :question_type, :position, :points)`,
			qn,
		)
		if err != nil {
			return orderErr(err, "questions_quiz_id_position_key")
		}
		for _, ch := range qn.Choices {
			_, err = tx.NamedExecContext(ctx, `
				INSERT INTO choices (id, question_id, text, is_correct)
				VALUES (:id, :question_id, :text, :is_correct)`,
				ch,
			)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (repo *catalogRepository) CreateQuiz(ctx context.Context, q catalog.Quiz) (catalog.Quiz, error) {
	err := withTx(ctx, repo.db, func(tx executor) error {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO quizzes (`+quizColumns+`)
			VALUES (:id, :module_id, :title, :description, :time_limit_minutes, :attempts_allowed, :passing_score,
				:created_at, :updated_at)`,
			q,
		)
		if err != nil {
			return err
		}
		return insertQuestions(ctx, tx, q.Questions)
	})
	return q, err
}

func (repo *catalogRepository) GetQuiz(ctx context.Context, id string) (catalog.Quiz, error) {
	var q catalog.Quiz
	if err := repo.get(ctx, &q, "SELECT "+quizColumns+" FROM quizzes", id, catalog.ErrQuizNotFound); err != nil {
		return catalog.Quiz{}, err
	}

	q.Questions = make([]catalog.Question, 0)
	err := repo.db.SelectContext(ctx, &q.Questions, `
		SELECT id, quiz_id, prompt, question_type, position, points FROM questions
		WHERE quiz_id = $1 ORDER BY position`,
		q.ID,
	)
	if err != nil {
		return catalog.Quiz{}, errors.Wrap(err, "selecting questions")
	}

	var choices []catalog.Choice
	err = repo.db.SelectContext(ctx, &choices, `
		SELECT c.id, c.question_id, c.text, c.is_correct FROM choices c
		JOIN questions qn ON qn.id = c.question_id
		WHERE qn.quiz_id = $1 ORDER BY c.seq`,
		q.ID,
	)
	if err != nil {
		return catalog.Quiz{}, errors.Wrap(err, "selecting choices")
	}

	idx := make(map[string]int, len(q.Questions))
	for i := range q.Questions {
		q.Questions[i].Choices = make([]catalog.Choice, 0)
		idx[q.Questions[i].ID] = i
	}
	for _, ch := range choices {
		if i, ok := idx[ch.QuestionID]; ok {
			q.Questions[i].Choices = append(q.Questions[i].Choices, ch)
		}
	}
	return q, nil
}

func (repo *catalogRepository) QueryQuizzes(ctx context.Context, filter catalog.ContentFilter) ([]catalog.Quiz, error) {
	quizzes := make([]catalog.Quiz, 0)
	err := selectWhere(ctx, repo.db, &quizzes, "SELECT "+quizColumns+" FROM quizzes", childWhere(filter), " ORDER BY created_at")
	return quizzes, err
}

func (repo *catalogRepository) UpdateQuiz(ctx context.Context, q catalog.Quiz) (catalog.Quiz, error) {
	err := withTx(ctx, repo.db, func(tx executor) error {
		res, err := tx.NamedExecContext(ctx, `
			UPDATE quizzes SET
				title = :title, description = :description, time_limit_minutes = :time_limit_minutes,
				attempts_allowed = :attempts_allowed, passing_score = :passing_score, updated_at = :updated_at
			WHERE id = :id`,
			q,
		)
		if err = mustAffect(res, err, catalog.ErrQuizNotFound); err != nil {
			return err
		}
		if q.Questions == nil {
			return nil
		}
		if _, err = tx.ExecContext(ctx, "DELETE FROM questions WHERE quiz_id = $1", q.ID); err != nil {
			return err
		}
		return insertQuestions(ctx, tx, q.Questions)
	})
	if err != nil {
		return catalog.Quiz{}, err
	}
	return repo.GetQuiz(ctx, q.ID)
}

func (repo *catalogRepository) DeleteQuiz(ctx context.Context, id string) error {
	return repo.delete(ctx, "quizzes", id, catalog.ErrQuizNotFound)
}

// Question bank

func (repo *catalogRepository) CreateBankEntry(ctx context.Context, e catalog.BankEntry) (catalog.BankEntry, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO bank_entries (`+bankColumns+`)
		VALUES (:id, :owner_id, :course_id, :title, :prompt, :question_type, :points, :choices, :tags,
			:created_at, :updated_at)`,
		e,
	)
	return e, err
}

func (repo *catalogRepository) GetBankEntry(ctx context.Context, id string) (catalog.BankEntry, error) {
	var e catalog.BankEntry
	err := repo.get(ctx, &e, "SELECT "+bankColumns+" FROM bank_entries", id, catalog.ErrBankEntryNotFound)
	return e, err
}

func (repo *catalogRepository) QueryBankEntries(ctx context.Context, filter catalog.BankFilter, ordering ...core.DBOrdering) ([]catalog.BankEntry, error) {
	var w where
	if filter.OwnerID != "" {
		w.add("owner_id = ?", filter.OwnerID)
	}
	if filter.CourseID != "" {
		w.add("course_id = ?", filter.CourseID)
	}
	if filter.Search != "" {
		w.add("prompt ILIKE ?", likePattern(filter.Search))
	}
	entries := make([]catalog.BankEntry, 0)
	ordering = core.AllowedOrderings(ordering, catalog.BankOrderings...)
	err := selectWhere(ctx, repo.db, &entries, "SELECT "+bankColumns+" FROM bank_entries", w, orderBy(ordering, "created_at DESC"))
	return entries, err
}

func (repo *catalogRepository) UpdateBankEntry(ctx context.Context, e catalog.BankEntry) (catalog.BankEntry, error) {
	err := repo.exec(ctx, `
		UPDATE bank_entries SET
			course_id = :course_id, title = :title, prompt = :prompt, question_type = :question_type,
			points = :points, choices = :choices, tags = :tags, updated_at = :updated_at
		WHERE id = :id`,
		e, catalog.ErrBankEntryNotFound,
	)
	return e, err
}

func (repo *catalogRepository) DeleteBankEntry(ctx context.Context, id string) error {
	return repo.delete(ctx, "bank_entries", id, catalog.ErrBankEntryNotFound)
}

package catalog

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/somesha/core"
	"github.com/trezcool/somesha/core/access"
)

type CourseStatus string

// Course statuses
const (
	StatusDraft     CourseStatus = "draft"
	StatusPublished CourseStatus = "published"
	StatusArchived  CourseStatus = "archived"
)

type QuestionType string

// Question types
const (
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
	ShortAnswer    QuestionType = "short_answer"
)

// Selectable reports whether answers to the question are picked among its choices.
func (t QuestionType) Selectable() bool {
	return t == MultipleChoice || t == TrueFalse
}

// AllCategories is the category filter value that disables category filtering.
const AllCategories = "All"

type Course struct {
	ID             string       `json:"id" db:"id"`
	InstructorID   string       `json:"instructor_id" db:"instructor_id"`
	Title          string       `json:"title" db:"title"`
	Description    string       `json:"description" db:"description"`
	Category       string       `json:"category" db:"category"`
	Status         CourseStatus `json:"status" db:"status"`
	Price          float64      `json:"price" db:"price"`
	EstimatedHours float64      `json:"estimated_hours" db:"estimated_hours"`
	Prerequisites  string       `json:"prerequisites" db:"prerequisites"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at" db:"updated_at"`
}

// VisibleTo reports whether a can see the course: published ones are public,
// drafts and archived ones are only visible to their instructor and admins.
func (c Course) VisibleTo(a access.Actor) bool {
	return c.Status == StatusPublished || c.ManageableBy(a) || access.Can(a, access.ViewAllContent)
}

func (c Course) ManageableBy(a access.Actor) bool {
	return access.IsOwnerOrAdmin(a, c.InstructorID)
}

type Module struct {
	ID          string    `json:"id" db:"id"`
	CourseID    string    `json:"course_id" db:"course_id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Order       int       `json:"order" db:"position"`
	ReleaseDate null.Time `json:"release_date" db:"release_date"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

type Lesson struct {
	ID              string    `json:"id" db:"id"`
	ModuleID        string    `json:"module_id" db:"module_id"`
	Title           string    `json:"title" db:"title"`
	Overview        string    `json:"overview" db:"overview"`
	Content         string    `json:"content" db:"content"`
	VideoURL        string    `json:"video_url" db:"video_url"`
	ResourceLink    string    `json:"resource_link" db:"resource_link"`
	Order           int       `json:"order" db:"position"`
	DurationMinutes int       `json:"duration_minutes" db:"duration_minutes"`
	IsPublished     bool      `json:"is_published" db:"is_published"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

type Assignment struct {
	ID                string    `json:"id" db:"id"`
	ModuleID          string    `json:"module_id" db:"module_id"`
	Title             string    `json:"title" db:"title"`
	Instructions      string    `json:"instructions" db:"instructions"`
	DueDate           null.Time `json:"due_date" db:"due_date"`
	MaxPoints         int       `json:"max_points" db:"max_points"`
	AllowResubmission bool      `json:"allow_resubmission" db:"allow_resubmission"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

type Quiz struct {
	ID               string     `json:"id" db:"id"`
	ModuleID         string     `json:"module_id" db:"module_id"`
	Title            string     `json:"title" db:"title"`
	Description      string     `json:"description" db:"description"`
	TimeLimitMinutes null.Int   `json:"time_limit_minutes" db:"time_limit_minutes"`
	AttemptsAllowed  int        `json:"attempts_allowed" db:"attempts_allowed"`
	PassingScore     int        `json:"passing_score" db:"passing_score"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
	Questions        []Question `json:"questions,omitempty" db:"-"`
}

type Question struct {
	ID      string       `json:"id" db:"id"`
	QuizID  string       `json:"quiz_id" db:"quiz_id"`
	Prompt  string       `json:"prompt" db:"prompt"`
	Type    QuestionType `json:"question_type" db:"question_type"`
	Order   int          `json:"order" db:"position"`
	Points  int          `json:"points" db:"points"`
	Choices []Choice     `json:"choices" db:"-"`
}

// Choice looks id up among the question's own choices only.
func (q Question) Choice(id string) (Choice, bool) {
	for _, c := range q.Choices {
		if c.ID == id {
			return c, true
		}
	}
	return Choice{}, false
}

type Choice struct {
	ID         string `json:"id" db:"id"`
	QuestionID string `json:"question_id" db:"question_id"`
	Text       string `json:"text" db:"text"`
	IsCorrect  bool   `json:"is_correct" db:"is_correct"`
}

// Read views of a quiz that leave out the correctness of choices.
type (
	PublicChoice struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	}

	PublicQuestion struct {
		Question
		Choices []PublicChoice `json:"choices"`
	}

	PublicQuiz struct {
		Quiz
		Questions []PublicQuestion `json:"questions"`
	}
)

// Public returns the quiz as shown to students: choices carry no correctness flag.
func (q Quiz) Public() PublicQuiz {
	pq := PublicQuiz{Quiz: q, Questions: make([]PublicQuestion, 0, len(q.Questions))}
	for _, qn := range q.Questions {
		pqn := PublicQuestion{Question: qn, Choices: make([]PublicChoice, 0, len(qn.Choices))}
		for _, c := range qn.Choices {
			pqn.Choices = append(pqn.Choices, PublicChoice{ID: c.ID, Text: c.Text})
		}
		pq.Questions = append(pq.Questions, pqn)
	}
	return pq
}

// TotalPoints sums the points of all the quiz's questions.
func (q Quiz) TotalPoints() int {
	var total int
	for _, qn := range q.Questions {
		total += qn.Points
	}
	return total
}

type (
	BankChoice struct {
		Text      string `json:"text" validate:"required"`
		IsCorrect bool   `json:"is_correct"`
	}

	// BankChoices is stored as a JSON document.
	BankChoices []BankChoice

	BankEntry struct {
		ID        string       `json:"id" db:"id"`
		OwnerID   string       `json:"owner_id" db:"owner_id"`
		CourseID  null.String  `json:"course_id" db:"course_id"`
		Title     string       `json:"title" db:"title"`
		Prompt    string       `json:"prompt" db:"prompt"`
		Type      QuestionType `json:"question_type" db:"question_type"`
		Points    int          `json:"points" db:"points"`
		Choices   BankChoices  `json:"choices" db:"choices"`
		Tags      string       `json:"tags" db:"tags"`
		CreatedAt time.Time    `json:"created_at" db:"created_at"`
		UpdatedAt time.Time    `json:"updated_at" db:"updated_at"`
	}
)

func (bc BankChoices) Value() (driver.Value, error) {
	if bc == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(bc)
}

func (bc *BankChoices) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*bc = BankChoices{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.Errorf("unsupported type %T for bank choices", src)
	}
	return json.Unmarshal(data, bc)
}

// Content tree of a course, as returned by the course detail.
type (
	ModuleTree struct {
		Module
		Lessons     []Lesson     `json:"lessons"`
		Assignments []Assignment `json:"assignments"`
		Quizzes     []Quiz       `json:"quizzes"`
	}

	CourseTree struct {
		Course
		Modules []ModuleTree `json:"modules"`
	}
)

// Filters

type CourseFilter struct {
	IDs          []string
	InstructorID string
	Category     string
	Search       string // case-insensitive match on the title
	// Visibility: with PublishedOnly, only published courses match, unless owned by OrOwnedBy.
	PublishedOnly bool
	OrOwnedBy     string
}

func (f *CourseFilter) Clean() {
	f.Search = core.CleanString(f.Search)
	f.Category = core.CleanString(f.Category)
	if f.Category == AllCategories {
		f.Category = ""
	}
}

func (f CourseFilter) Match(c Course) bool {
	if f.IDs != nil && !contains(f.IDs, c.ID) {
		return false
	}
	if f.InstructorID != "" && c.InstructorID != f.InstructorID {
		return false
	}
	if f.Category != "" && c.Category != f.Category {
		return false
	}
	if f.Search != "" && !core.ContainsFold(c.Title, f.Search) {
		return false
	}
	if f.PublishedOnly && c.Status != StatusPublished && (f.OrOwnedBy == "" || c.InstructorID != f.OrOwnedBy) {
		return false
	}
	return true
}

// ContentFilter selects modules, lessons, assignments or quizzes.
type ContentFilter struct {
	CourseIDs     []string // nil: any course
	ModuleID      string
	CourseID      string
	PublishedOnly bool // lessons only
}

type BankFilter struct {
	OwnerID  string
	CourseID string
	Search   string // case-insensitive match on the prompt
}

func (f BankFilter) Match(e BankEntry) bool {
	if f.OwnerID != "" && e.OwnerID != f.OwnerID {
		return false
	}
	if f.CourseID != "" && e.CourseID.String != f.CourseID {
		return false
	}
	if f.Search != "" && !core.ContainsFold(e.Prompt, f.Search) {
		return false
	}
	return true
}

func contains(ids []string, id string) bool {
	for _, i := range ids {
		if i == id {
			return true
		}
	}
	return false
}

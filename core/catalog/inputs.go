package catalog

import (
	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/somesha/core"
)

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Title          string       `json:"title" validate:"required,max=255"`
	Description    string       `json:"description" validate:"required"`
	Category       string       `json:"category" validate:"max=100"`
	Status         CourseStatus `json:"status" validate:"omitempty,course_status"`
	Price          float64      `json:"price" validate:"min=0"`
	EstimatedHours float64      `json:"estimated_hours" validate:"min=0"`
	Prerequisites  string       `json:"prerequisites"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Category = core.CleanString(nc.Category)
	if nc.Status == "" {
		nc.Status = StatusDraft
	}
	return validate.Struct(nc)
}

// UpdateCourse defines what information may be provided to modify an existing Course.
type UpdateCourse struct {
	Title          *string       `json:"title" validate:"omitempty,min=1,max=255"`
	Description    *string       `json:"description"`
	Category       *string       `json:"category" validate:"omitempty,max=100"`
	Status         *CourseStatus `json:"status" validate:"omitempty,course_status"`
	Price          *float64      `json:"price" validate:"omitempty,min=0"`
	EstimatedHours *float64      `json:"estimated_hours" validate:"omitempty,min=0"`
	Prerequisites  *string       `json:"prerequisites"`
}

func (uc UpdateCourse) Validate(validate *validator.Validate) error { return validate.Struct(uc) }

func (uc UpdateCourse) apply(c *Course) {
	if uc.Title != nil {
		c.Title = core.CleanString(*uc.Title)
	}
	if uc.Description != nil {
		c.Description = *uc.Description
	}
	if uc.Category != nil {
		c.Category = core.CleanString(*uc.Category)
	}
	if uc.Status != nil {
		c.Status = *uc.Status
	}
	if uc.Price != nil {
		c.Price = *uc.Price
	}
	if uc.EstimatedHours != nil {
		c.EstimatedHours = *uc.EstimatedHours
	}
	if uc.Prerequisites != nil {
		c.Prerequisites = *uc.Prerequisites
	}
}

type NewModule struct {
	CourseID    string    `json:"course_id" validate:"required,uuid"`
	Title       string    `json:"title" validate:"required,max=255"`
	Description string    `json:"description"`
	Order       int       `json:"order" validate:"min=0"`
	ReleaseDate null.Time `json:"release_date"`
}

func (nm NewModule) Validate(validate *validator.Validate) error { return validate.Struct(nm) }

type UpdateModule struct {
	Title       *string    `json:"title" validate:"omitempty,min=1,max=255"`
	Description *string    `json:"description"`
	Order       *int       `json:"order" validate:"omitempty,min=1"`
	ReleaseDate *null.Time `json:"release_date"`
}

func (um UpdateModule) Validate(validate *validator.Validate) error { return validate.Struct(um) }

func (um UpdateModule) apply(m *Module) {
	if um.Title != nil {
		m.Title = core.CleanString(*um.Title)
	}
	if um.Description != nil {
		m.Description = *um.Description
	}
	if um.Order != nil {
		m.Order = *um.Order
	}
	if um.ReleaseDate != nil {
		m.ReleaseDate = *um.ReleaseDate
	}
}

type NewLesson struct {
	ModuleID        string `json:"module_id" validate:"required,uuid"`
	Title           string `json:"title" validate:"required,max=255"`
	Overview        string `json:"overview"`
	Content         string `json:"content"`
	VideoURL        string `json:"video_url" validate:"omitempty,url"`
	ResourceLink    string `json:"resource_link" validate:"omitempty,url"`
	Order           int    `json:"order" validate:"min=0"`
	DurationMinutes int    `json:"duration_minutes" validate:"min=0"`
	IsPublished     *bool  `json:"is_published"`
}

func (nl NewLesson) Validate(validate *validator.Validate) error { return validate.Struct(nl) }

type UpdateLesson struct {
	Title           *string `json:"title" validate:"omitempty,min=1,max=255"`
	Overview        *string `json:"overview"`
	Content         *string `json:"content"`
	VideoURL        *string `json:"video_url" validate:"omitempty,url"`
	ResourceLink    *string `json:"resource_link" validate:"omitempty,url"`
	Order           *int    `json:"order" validate:"omitempty,min=1"`
	DurationMinutes *int    `json:"duration_minutes" validate:"omitempty,min=0"`
	IsPublished     *bool   `json:"is_published"`
}

func (ul UpdateLesson) Validate(validate *validator.Validate) error { return validate.Struct(ul) }

func (ul UpdateLesson) apply(l *Lesson) {
	if ul.Title != nil {
		l.Title = core.CleanString(*ul.Title)
	}
	if ul.Overview != nil {
		l.Overview = *ul.Overview
	}
	if ul.Content != nil {
		l.Content = *ul.Content
	}
	if ul.VideoURL != nil {
		l.VideoURL = *ul.VideoURL
	}
	if ul.ResourceLink != nil {
		l.ResourceLink = *ul.ResourceLink
	}
	if ul.Order != nil {
		l.Order = *ul.Order
	}
	if ul.DurationMinutes != nil {
		l.DurationMinutes = *ul.DurationMinutes
	}
	if ul.IsPublished != nil {
		l.IsPublished = *ul.IsPublished
	}
}

type NewAssignment struct {
	ModuleID          string    `json:"module_id" validate:"required,uuid"`
	Title             string    `json:"title" validate:"required,max=255"`
	Instructions      string    `json:"instructions" validate:"required"`
	DueDate           null.Time `json:"due_date"`
	MaxPoints         *int      `json:"max_points" validate:"omitempty,min=0"`
	AllowResubmission bool      `json:"allow_resubmission"`
}

func (na NewAssignment) Validate(validate *validator.Validate) error { return validate.Struct(na) }

type UpdateAssignment struct {
	Title             *string    `json:"title" validate:"omitempty,min=1,max=255"`
	Instructions      *string    `json:"instructions" validate:"omitempty,min=1"`
	DueDate           *null.Time `json:"due_date"`
	MaxPoints         *int       `json:"max_points" validate:"omitempty,min=0"`
	AllowResubmission *bool      `json:"allow_resubmission"`
}

func (ua UpdateAssignment) Validate(validate *validator.Validate) error { return validate.Struct(ua) }

func (ua UpdateAssignment) apply(a *Assignment) {
	if ua.Title != nil {
		a.Title = core.CleanString(*ua.Title)
	}
	if ua.Instructions != nil {
		a.Instructions = *ua.Instructions
	}
	if ua.DueDate != nil {
		a.DueDate = *ua.DueDate
	}
	if ua.MaxPoints != nil {
		a.MaxPoints = *ua.MaxPoints
	}
	if ua.AllowResubmission != nil {
		a.AllowResubmission = *ua.AllowResubmission
	}
}

type (
	NewChoice struct {
		Text      string `json:"text" validate:"required,max=255"`
		IsCorrect bool   `json:"is_correct"`
	}

	NewQuestion struct {
		Prompt  string       `json:"prompt" validate:"required"`
		Type    QuestionType `json:"question_type" validate:"required,question_type"`
		Order   int          `json:"order" validate:"min=0"`
		Points  *int         `json:"points" validate:"omitempty,min=1"`
		Choices []NewChoice  `json:"choices" validate:"dive"`
	}

	NewQuiz struct {
		ModuleID         string        `json:"module_id" validate:"required,uuid"`
		Title            string        `json:"title" validate:"required,max=255"`
		Description      string        `json:"description"`
		TimeLimitMinutes null.Int      `json:"time_limit_minutes"`
		AttemptsAllowed  *int          `json:"attempts_allowed" validate:"omitempty,min=1"`
		PassingScore     *int          `json:"passing_score" validate:"omitempty,min=0,max=100"`
		Questions        []NewQuestion `json:"questions" validate:"dive"`
	}

	UpdateQuiz struct {
		Title            *string       `json:"title" validate:"omitempty,min=1,max=255"`
		Description      *string       `json:"description"`
		TimeLimitMinutes *null.Int     `json:"time_limit_minutes"`
		AttemptsAllowed  *int          `json:"attempts_allowed" validate:"omitempty,min=1"`
		PassingScore     *int          `json:"passing_score" validate:"omitempty,min=0,max=100"`
		Questions        []NewQuestion `json:"questions" validate:"dive"` // replaces all questions when not empty
	}
)

func (nq NewQuiz) Validate(validate *validator.Validate) error { return validate.Struct(nq) }

func (uq UpdateQuiz) Validate(validate *validator.Validate) error { return validate.Struct(uq) }

func (uq UpdateQuiz) apply(q *Quiz) {
	if uq.Title != nil {
		q.Title = core.CleanString(*uq.Title)
	}
	if uq.Description != nil {
		q.Description = *uq.Description
	}
	if uq.TimeLimitMinutes != nil {
		q.TimeLimitMinutes = *uq.TimeLimitMinutes
	}
	if uq.AttemptsAllowed != nil {
		q.AttemptsAllowed = *uq.AttemptsAllowed
	}
	if uq.PassingScore != nil {
		q.PassingScore = *uq.PassingScore
	}
}

type NewBankEntry struct {
	CourseID string       `json:"course_id" validate:"omitempty,uuid"`
	Title    string       `json:"title" validate:"max=255"`
	Prompt   string       `json:"prompt" validate:"required"`
	Type     QuestionType `json:"question_type" validate:"omitempty,question_type"`
	Points   *int         `json:"points" validate:"omitempty,min=1"`
	Choices  BankChoices  `json:"choices" validate:"dive"`
	Tags     string       `json:"tags" validate:"max=255"`
}

func (nb *NewBankEntry) Validate(validate *validator.Validate) error {
	if nb.Type == "" {
		nb.Type = MultipleChoice
	}
	return validate.Struct(nb)
}

type UpdateBankEntry struct {
	CourseID *string       `json:"course_id" validate:"omitempty,uuid"`
	Title    *string       `json:"title" validate:"omitempty,max=255"`
	Prompt   *string       `json:"prompt" validate:"omitempty,min=1"`
	Type     *QuestionType `json:"question_type" validate:"omitempty,question_type"`
	Points   *int          `json:"points" validate:"omitempty,min=1"`
	Choices  *BankChoices  `json:"choices"`
	Tags     *string       `json:"tags" validate:"omitempty,max=255"`
}

func (ub UpdateBankEntry) Validate(validate *validator.Validate) error { return validate.Struct(ub) }

func (ub UpdateBankEntry) apply(e *BankEntry) {
	if ub.CourseID != nil {
		e.CourseID = null.NewString(*ub.CourseID, *ub.CourseID != "")
	}
	if ub.Title != nil {
		e.Title = core.CleanString(*ub.Title)
	}
	if ub.Prompt != nil {
		e.Prompt = *ub.Prompt
	}
	if ub.Type != nil {
		e.Type = *ub.Type
	}
	if ub.Points != nil {
		e.Points = *ub.Points
	}
	if ub.Choices != nil {
		e.Choices = *ub.Choices
	}
	if ub.Tags != nil {
		e.Tags = *ub.Tags
	}
}

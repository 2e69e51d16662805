package grading

import (
	"math"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/somesha/core/catalog"
)

// Scorecard is the outcome of auto-grading a set of answers against a quiz.
type Scorecard struct {
	Answers      []Answer
	EarnedPoints int
	TotalPoints  int
	Score        float64
	Passed       bool
}

// GradeAnswers auto-grades answers (by question ID) against every question of the quiz.
//
// Selectable questions are correct iff the picked choice, resolved among the question's own
// choices, is flagged correct. Short-answer questions are never auto-graded: they are recorded as
// incorrect with no points. Unanswered questions count as incorrect.
// With no points at stake, Score and Passed keep their zero values.
func GradeAnswers(quiz catalog.Quiz, answers map[string]AnswerPayload) Scorecard {
	card := Scorecard{Answers: make([]Answer, 0, len(quiz.Questions))}

	for _, qn := range quiz.Questions {
		card.TotalPoints += qn.Points
		payload := answers[qn.ID]

		ans := Answer{QuestionID: qn.ID, TextResponse: payload.Text}
		var choice catalog.Choice
		var resolved bool
		if payload.Choice != nil && *payload.Choice != "" {
			if choice, resolved = qn.Choice(*payload.Choice); resolved {
				ans.SelectedChoiceID = null.StringFrom(choice.ID)
			}
		}

		if qn.Type.Selectable() && resolved {
			ans.IsCorrect = choice.IsCorrect
		}
		if ans.IsCorrect {
			ans.PointsAwarded = float64(qn.Points)
			card.EarnedPoints += qn.Points
		}
		card.Answers = append(card.Answers, ans)
	}

	if card.TotalPoints > 0 {
		card.Score = Score(card.EarnedPoints, card.TotalPoints)
		card.Passed = card.Score >= float64(quiz.PassingScore)
	}
	return card
}

// Score returns the percentage of earned points, rounded to 2 decimals.
func Score(earned, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(earned)*100*100/float64(total)) / 100
}

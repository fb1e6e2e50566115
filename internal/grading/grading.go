// Package grading scores a completed answer set against question and option
// truth. Scoring is pure: callers load questions with their options fresh at
// finalization time so mid-window edits by the instructor are reflected
// consistently.
package grading

import (
	"github.com/google/uuid"
	"github.com/oesys/oes-backend/internal/model"
)

// Score computes the total score of an answer set. Per question:
//   - single-correct: the selected option must be the unique correct one;
//     any mismatch, including no selection, awards zero.
//   - multiple-correct: the selected set must equal the full correct set,
//     duplicates collapsed and order ignored; partial overlap awards zero.
//
// Unanswered questions award zero. There is no negative marking.
func Score(questions []model.Question, answers model.AnswerSet) int {
	total := 0
	for i := range questions {
		if correct(&questions[i], answers) {
			total += questions[i].Points
		}
	}
	return total
}

func correct(q *model.Question, answers model.AnswerSet) bool {
	sel, ok := answers[q.ID]
	if !ok {
		return false
	}
	if q.MultipleCorrect {
		return setEqual(sel.OptionSet(), q.CorrectOptionIDs())
	}
	if sel.Option == nil {
		// A multi-style selection against a single-correct question never
		// matches the single correct option.
		return false
	}
	for _, o := range q.Options {
		if o.ID == *sel.Option {
			return o.IsCorrect
		}
	}
	return false
}

func setEqual(selected map[uuid.UUID]struct{}, correct []uuid.UUID) bool {
	if len(correct) == 0 || len(selected) != len(correct) {
		return false
	}
	for _, id := range correct {
		if _, ok := selected[id]; !ok {
			return false
		}
	}
	return true
}

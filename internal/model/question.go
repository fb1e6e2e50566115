package model

import (
	"github.com/google/uuid"
)

// Question represents a single exam question. Options are loaded alongside
// the question; grading reads their correctness flags.
type Question struct {
	ID              uuid.UUID `json:"id"`
	ExamID          uuid.UUID `json:"exam_id"`
	QuestionText    string    `json:"question_text"`
	MultipleCorrect bool      `json:"multiple_correct"`
	Points          int       `json:"points"`
	OrderIndex      int       `json:"order_index"`
	Options         []Option  `json:"options,omitempty"`
}

// Option represents one choice of a question. For single-correct questions
// exactly one option carries is_correct (authoring-time invariant).
type Option struct {
	ID         uuid.UUID `json:"id"`
	QuestionID uuid.UUID `json:"question_id"`
	OptionText string    `json:"option_text"`
	IsCorrect  bool      `json:"-"`
}

// CorrectOptionIDs returns the ids of all correct options.
func (q *Question) CorrectOptionIDs() []uuid.UUID {
	var ids []uuid.UUID
	for _, o := range q.Options {
		if o.IsCorrect {
			ids = append(ids, o.ID)
		}
	}
	return ids
}

// AddOptionRequest is one option in a question authoring payload.
type AddOptionRequest struct {
	OptionText string `json:"option_text" binding:"required,min=1,max=2000"`
	IsCorrect  bool   `json:"is_correct"`
}

// AddQuestionRequest is the payload for one question in a bulk replace.
type AddQuestionRequest struct {
	QuestionText    string             `json:"question_text" binding:"required,min=1,max=2000"`
	MultipleCorrect bool               `json:"multiple_correct"`
	Points          int                `json:"points" binding:"min=0"`
	OrderIndex      int                `json:"order_index" binding:"min=0"`
	Options         []AddOptionRequest `json:"options" binding:"required,min=2,dive"`
}

// ReplaceQuestionsRequest is the payload for bulk replacing an exam's questions.
type ReplaceQuestionsRequest struct {
	Questions []AddQuestionRequest `json:"questions" binding:"required,min=1,dive"`
}

package model

import "github.com/google/uuid"

// SearchExamRequest is the payload for looking up an exam to take.
type SearchExamRequest struct {
	ExamID uuid.UUID `json:"exam_id" binding:"required"`
}

// AcceptExamRequest carries the optional entry password.
type AcceptExamRequest struct {
	Password string `json:"password" binding:"omitempty,max=255"`
}

// AnswerSheetRequest is the payload of a save-and-exit or submit POST.
// CycleToken is required only when the exam's single-session policy is on.
type AnswerSheetRequest struct {
	Answers    []AnswerPayload `json:"answers" binding:"omitempty,dive"`
	CycleToken string          `json:"cycle_token"`
}

// AutosaveRequest is the payload of a periodic background save.
type AutosaveRequest struct {
	Answers    []AnswerPayload `json:"answers" binding:"omitempty,dive"`
	Feedback   *string         `json:"feedback" binding:"omitempty"`
	CycleToken string          `json:"cycle_token"`
}

package model

import (
	"time"

	"github.com/google/uuid"
)

// SubmissionStatus enumerates attempt states. IN_PROGRESS → SUBMITTED is
// owned by the exam-taking core; the review sub-lifecycle
// (SUBMITTED → IN_REVIEW → REVIEWED) belongs to the grading collaborator.
type SubmissionStatus string

const (
	SubmissionStatusInProgress SubmissionStatus = "IN_PROGRESS"
	SubmissionStatusSubmitted  SubmissionStatus = "SUBMITTED"
	SubmissionStatusInReview   SubmissionStatus = "IN_REVIEW"
	SubmissionStatusReviewed   SubmissionStatus = "REVIEWED"
)

// Submission is one attempt at an exam by a student. At most one row per
// (student, exam) is IN_PROGRESS at a time; a retry after submission creates
// a new row.
type Submission struct {
	ID          uuid.UUID        `json:"id"`
	ExamID      uuid.UUID        `json:"exam_id"`
	RollNumber  int              `json:"roll_number"`
	Status      SubmissionStatus `json:"status"`
	Answers     AnswerSet        `json:"answers,omitempty"`
	Feedback    string           `json:"feedback,omitempty"`
	TotalScore  *int             `json:"total_score,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	SubmittedAt *time.Time       `json:"submitted_at,omitempty"`
}

// InProgress reports whether the attempt can still be written to.
func (s *Submission) InProgress() bool {
	return s.Status == SubmissionStatusInProgress
}

// ActiveWithin reports whether the attempt saw a save within the freshness
// window ending at now. The single-session guard treats such attempts as
// live in another client.
func (s *Submission) ActiveWithin(window time.Duration, now time.Time) bool {
	return now.Sub(s.UpdatedAt) < window
}

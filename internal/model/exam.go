package model

import (
	"time"

	"github.com/google/uuid"
)

// SecurityPolicy is the structured security configuration of an exam.
// Stored as jsonb in the exams table, typed everywhere else.
type SecurityPolicy struct {
	// Password gates entry when non-empty. Empty means no password required.
	Password      string `json:"password"`
	Shuffle       bool   `json:"shuffle"`
	SingleSession bool   `json:"single_session"`
	AntiCopy      bool   `json:"anti_copy"`
}

// RequiresPassword reports whether entry must present a matching password.
func (p SecurityPolicy) RequiresPassword() bool {
	return p.Password != ""
}

// Exam represents an exam entity. Instructors may edit the availability
// window after creation; the closing scheduler re-reads it on every scan.
type Exam struct {
	ID           uuid.UUID      `json:"id"`
	InstructorID int            `json:"instructor_id"`
	CourseCode   string         `json:"course_code"`
	Title        string         `json:"title"`
	OpensAt      time.Time      `json:"opens_at"`
	ClosesAt     time.Time      `json:"closes_at"`
	Security     SecurityPolicy `json:"security"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// OpenAt reports whether the exam accepts new entries at the given instant.
// The upper bound is strict: entry at exactly closes_at is rejected.
func (e *Exam) OpenAt(now time.Time) bool {
	return !now.Before(e.OpensAt) && now.Before(e.ClosesAt)
}

// CreateExamRequest is the payload for creating a new exam.
type CreateExamRequest struct {
	CourseCode string          `json:"course_code" binding:"required,min=1,max=50"`
	Title      string          `json:"title" binding:"required,min=3,max=255"`
	OpensAt    time.Time       `json:"opens_at" binding:"required"`
	ClosesAt   time.Time       `json:"closes_at" binding:"required,gtfield=OpensAt"`
	Security   *SecurityPolicy `json:"security" binding:"omitempty"`
}

// UpdateAvailabilityRequest edits an exam's window. The scheduler picks up
// the new closing time on its next reconciliation scan.
type UpdateAvailabilityRequest struct {
	OpensAt  time.Time `json:"opens_at" binding:"required"`
	ClosesAt time.Time `json:"closes_at" binding:"required,gtfield=OpensAt"`
}

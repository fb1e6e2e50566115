package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oesys/oes-backend/internal/model"
)

// SubmissionRepository handles attempt data access. The partial unique index
// on (exam_id, roll_number) WHERE status = 'IN_PROGRESS' enforces the
// one-active-attempt invariant at the storage layer.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

const submissionColumns = `id, exam_id, roll_number, status, answers, feedback, total_score, started_at, updated_at, submitted_at`

func scanSubmission(row interface{ Scan(dest ...any) error }) (*model.Submission, error) {
	s := &model.Submission{}
	var answers []byte
	var feedback *string
	err := row.Scan(&s.ID, &s.ExamID, &s.RollNumber, &s.Status, &answers,
		&feedback, &s.TotalScore, &s.StartedAt, &s.UpdatedAt, &s.SubmittedAt)
	if err != nil {
		return nil, err
	}
	if len(answers) > 0 {
		if err := json.Unmarshal(answers, &s.Answers); err != nil {
			return nil, fmt.Errorf("decode answers: %w", err)
		}
	}
	if feedback != nil {
		s.Feedback = *feedback
	}
	return s, nil
}

// GetByID retrieves a submission by id.
func (r *SubmissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Submission, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id)
	return scanSubmission(row)
}

// GetInProgressByStudent returns the student's IN_PROGRESS attempt across
// all exams, if any. Search consults this before trusting session state.
func (r *SubmissionRepository) GetInProgressByStudent(ctx context.Context, rollNumber int) (*model.Submission, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+submissionColumns+` FROM submissions
		 WHERE roll_number = $1 AND status = $2`,
		rollNumber, model.SubmissionStatusInProgress)
	return scanSubmission(row)
}

// Create inserts a new IN_PROGRESS submission. A concurrent create for the
// same (exam, student) pair loses to the partial unique index and surfaces
// as pgx.ErrNoRows; callers re-fetch the winner.
func (r *SubmissionRepository) Create(ctx context.Context, s *model.Submission) error {
	s.Status = model.SubmissionStatusInProgress
	return r.pool.QueryRow(ctx,
		`INSERT INTO submissions (exam_id, roll_number, status)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (exam_id, roll_number) WHERE status = 'IN_PROGRESS' DO NOTHING
		 RETURNING id, started_at, updated_at`,
		s.ExamID, s.RollNumber, s.Status,
	).Scan(&s.ID, &s.StartedAt, &s.UpdatedAt)
}

// SaveAnswers stores the full merged answer set and bumps updated_at,
// guarded on the attempt still being IN_PROGRESS. Returns false when the
// guard did not match.
func (r *SubmissionRepository) SaveAnswers(ctx context.Context, id uuid.UUID, answers model.AnswerSet, now time.Time) (bool, error) {
	encoded, err := json.Marshal(answers)
	if err != nil {
		return false, fmt.Errorf("encode answers: %w", err)
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE submissions
		 SET answers = $2, updated_at = $3
		 WHERE id = $1 AND status = $4`,
		id, encoded, now, model.SubmissionStatusInProgress)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ApplyAutosave merges a partial answer payload by question id and replaces
// feedback wholesale when given, guarded on IN_PROGRESS. The jsonb || merge
// makes reapplying the same payload a no-op, so duplicate or out-of-order
// deliveries converge on the same stored state.
func (r *SubmissionRepository) ApplyAutosave(ctx context.Context, id uuid.UUID, answers model.AnswerSet, feedback *string, now time.Time) (bool, error) {
	encoded := []byte(`{}`)
	if len(answers) > 0 {
		var err error
		encoded, err = json.Marshal(answers)
		if err != nil {
			return false, fmt.Errorf("encode answers: %w", err)
		}
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE submissions
		 SET answers = COALESCE(answers, '{}'::jsonb) || $2::jsonb,
		     feedback = COALESCE($3, feedback),
		     updated_at = $4
		 WHERE id = $1 AND status = $5`,
		id, encoded, feedback, now, model.SubmissionStatusInProgress)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Finalize transitions the attempt to SUBMITTED with its score, atomically
// guarded on the current status. Exactly one caller wins a manual/forced
// race; the loser gets the already-stored row back with finalized=false.
// A nil answer set keeps the answers already on the row (forced close path).
func (r *SubmissionRepository) Finalize(ctx context.Context, id uuid.UUID, answers model.AnswerSet, score int, now time.Time) (*model.Submission, bool, error) {
	var encoded []byte
	if answers != nil {
		var err error
		encoded, err = json.Marshal(answers)
		if err != nil {
			return nil, false, fmt.Errorf("encode answers: %w", err)
		}
	}

	row := r.pool.QueryRow(ctx,
		`UPDATE submissions
		 SET status = $2,
		     answers = COALESCE($3, answers),
		     total_score = $4,
		     submitted_at = $5,
		     updated_at = $5
		 WHERE id = $1 AND status = $6
		 RETURNING `+submissionColumns,
		id, model.SubmissionStatusSubmitted, encoded, score, now,
		model.SubmissionStatusInProgress)

	s, err := scanSubmission(row)
	if err == nil {
		return s, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}

	// Lost the race (or duplicate submit): report the terminal row as-is.
	s, err = r.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return s, false, nil
}

// ListInProgressByExam returns every still-open attempt of an exam. The
// scheduler finalizes each of these when the close job fires.
func (r *SubmissionRepository) ListInProgressByExam(ctx context.Context, examID uuid.UUID) ([]model.Submission, error) {
	return r.listByExamAndStatus(ctx, examID, model.SubmissionStatusInProgress)
}

// ListSubmittedByExam returns an exam's finalized attempts for the review
// collaborator.
func (r *SubmissionRepository) ListSubmittedByExam(ctx context.Context, examID uuid.UUID) ([]model.Submission, error) {
	return r.listByExamAndStatus(ctx, examID, model.SubmissionStatusSubmitted)
}

func (r *SubmissionRepository) listByExamAndStatus(ctx context.Context, examID uuid.UUID, status model.SubmissionStatus) ([]model.Submission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+submissionColumns+` FROM submissions
		 WHERE exam_id = $1 AND status = $2
		 ORDER BY started_at`, examID, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []model.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *s)
	}
	return subs, rows.Err()
}

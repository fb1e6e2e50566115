package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oesys/oes-backend/internal/model"
)

// ExamRepository handles exam data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

const examColumns = `id, instructor_id, course_code, title, opens_at, closes_at, security, created_at, updated_at`

func scanExam(row interface{ Scan(dest ...any) error }) (*model.Exam, error) {
	e := &model.Exam{}
	var security []byte
	err := row.Scan(&e.ID, &e.InstructorID, &e.CourseCode, &e.Title,
		&e.OpensAt, &e.ClosesAt, &security, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(security) > 0 {
		if err := json.Unmarshal(security, &e.Security); err != nil {
			return nil, fmt.Errorf("decode security policy: %w", err)
		}
	}
	return e, nil
}

// GetByID retrieves an exam by its UUID.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams WHERE id = $1`, id)
	return scanExam(row)
}

// Create inserts a new exam.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	security, err := json.Marshal(e.Security)
	if err != nil {
		return fmt.Errorf("encode security policy: %w", err)
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO exams (instructor_id, course_code, title, opens_at, closes_at, security)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		e.InstructorID, e.CourseCode, e.Title, e.OpensAt, e.ClosesAt, security,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

// UpdateAvailability edits the availability window. The closing scheduler
// observes the new closes_at on its next scan and reschedules the close job.
func (r *ExamRepository) UpdateAvailability(ctx context.Context, id uuid.UUID, opensAt, closesAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exams SET opens_at = $1, closes_at = $2, updated_at = NOW() WHERE id = $3`,
		opensAt, closesAt, id)
	return err
}

// ListOpen returns exams whose window contains the given instant
// (opens_at <= now < closes_at). The scheduler scans this set every tick.
func (r *ExamRepository) ListOpen(ctx context.Context, now time.Time) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+` FROM exams
		 WHERE opens_at <= $1 AND closes_at > $1
		 ORDER BY closes_at`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, *e)
	}
	return exams, rows.Err()
}

// ListExpiredWithOpenAttempts returns ids of exams whose close fire time has
// already passed but which still carry IN_PROGRESS submissions. Covers close
// jobs lost to a process restart.
func (r *ExamRepository) ListExpiredWithOpenAttempts(ctx context.Context, closedBefore time.Time) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT e.id
		 FROM exams e
		 JOIN submissions s ON s.exam_id = e.id
		 WHERE e.closes_at <= $1 AND s.status = $2`,
		closedBefore, model.SubmissionStatusInProgress)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListByInstructor retrieves all exams owned by an instructor.
func (r *ExamRepository) ListByInstructor(ctx context.Context, instructorID int) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+` FROM exams
		 WHERE instructor_id = $1
		 ORDER BY created_at DESC`, instructorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, *e)
	}
	return exams, rows.Err()
}

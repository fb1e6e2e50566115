package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oesys/oes-backend/internal/model"
)

// StudentRepository handles student data access.
type StudentRepository struct {
	pool *pgxpool.Pool
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(pool *pgxpool.Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

// GetByEmail retrieves a student by email (login path).
func (r *StudentRepository) GetByEmail(ctx context.Context, email string) (*model.Student, error) {
	s := &model.Student{}
	var contact *string
	err := r.pool.QueryRow(ctx,
		`SELECT roll_number, name, email, password_hash, contact_number
		 FROM students WHERE email = $1`, email,
	).Scan(&s.RollNumber, &s.Name, &s.Email, &s.PasswordHash, &contact)
	if err != nil {
		return nil, err
	}
	if contact != nil {
		s.ContactNumber = *contact
	}
	return s, nil
}

// GetByRollNumber retrieves a student by roll number.
func (r *StudentRepository) GetByRollNumber(ctx context.Context, rollNumber int) (*model.Student, error) {
	s := &model.Student{}
	var contact *string
	err := r.pool.QueryRow(ctx,
		`SELECT roll_number, name, email, password_hash, contact_number
		 FROM students WHERE roll_number = $1`, rollNumber,
	).Scan(&s.RollNumber, &s.Name, &s.Email, &s.PasswordHash, &contact)
	if err != nil {
		return nil, err
	}
	if contact != nil {
		s.ContactNumber = *contact
	}
	return s, nil
}

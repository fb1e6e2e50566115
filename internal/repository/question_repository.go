package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oesys/oes-backend/internal/model"
)

// QuestionRepository handles question and option data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListByExam retrieves all questions for an exam in authoring order, with
// options attached. Grading reads the correctness flags from here at
// finalization time, never from a client-cached snapshot.
func (r *QuestionRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, question_text, multiple_correct, points, order_index
		 FROM questions WHERE exam_id = $1
		 ORDER BY order_index`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.ExamID, &q.QuestionText, &q.MultipleCorrect, &q.Points, &q.OrderIndex); err != nil {
			return nil, err
		}
		index[q.ID] = len(questions)
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, nil
	}

	optRows, err := r.pool.Query(ctx,
		`SELECT o.id, o.question_id, o.option_text, o.is_correct
		 FROM options o
		 JOIN questions q ON q.id = o.question_id
		 WHERE q.exam_id = $1
		 ORDER BY o.id`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer optRows.Close()

	for optRows.Next() {
		var o model.Option
		if err := optRows.Scan(&o.ID, &o.QuestionID, &o.OptionText, &o.IsCorrect); err != nil {
			return nil, err
		}
		if i, ok := index[o.QuestionID]; ok {
			questions[i].Options = append(questions[i].Options, o)
		}
	}
	return questions, optRows.Err()
}

// ReplaceForExam deletes and re-inserts an exam's questions and options in
// one transaction. Used by the authoring surface.
func (r *QuestionRepository) ReplaceForExam(ctx context.Context, examID uuid.UUID, questions []model.Question) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM options WHERE question_id IN (SELECT id FROM questions WHERE exam_id = $1)`, examID); err != nil {
		return fmt.Errorf("delete options: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE exam_id = $1`, examID); err != nil {
		return fmt.Errorf("delete questions: %w", err)
	}

	for i := range questions {
		q := &questions[i]
		q.ExamID = examID
		if err := tx.QueryRow(ctx,
			`INSERT INTO questions (exam_id, question_text, multiple_correct, points, order_index)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id`,
			q.ExamID, q.QuestionText, q.MultipleCorrect, q.Points, q.OrderIndex,
		).Scan(&q.ID); err != nil {
			return fmt.Errorf("insert question: %w", err)
		}

		for j := range q.Options {
			o := &q.Options[j]
			o.QuestionID = q.ID
			if err := tx.QueryRow(ctx,
				`INSERT INTO options (question_id, option_text, is_correct)
				 VALUES ($1, $2, $3)
				 RETURNING id`,
				o.QuestionID, o.OptionText, o.IsCorrect,
			).Scan(&o.ID); err != nil {
				return fmt.Errorf("insert option: %w", err)
			}
		}
	}

	return tx.Commit(ctx)
}

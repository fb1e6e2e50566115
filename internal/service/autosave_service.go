package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/oesys/oes-backend/internal/config"
	"github.com/oesys/oes-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// AutosavePayload is one queued autosave write. Answers merge by question
// id; Feedback overwrites whole when present (last write wins).
type AutosavePayload struct {
	SubmissionID uuid.UUID       `json:"submission_id"`
	Answers      model.AnswerSet `json:"answers,omitempty"`
	Feedback     *string         `json:"feedback,omitempty"`
}

// AutosaveQueue hands a validated payload to the background worker.
type AutosaveQueue interface {
	Enqueue(ctx context.Context, raw []byte) error
}

// RedisAutosaveQueue pushes payloads onto the shared Redis worker queue.
type RedisAutosaveQueue struct {
	rdb *redis.Client
}

// NewRedisAutosaveQueue creates the Redis-backed autosave queue.
func NewRedisAutosaveQueue(rdb *redis.Client) *RedisAutosaveQueue {
	return &RedisAutosaveQueue{rdb: rdb}
}

// Enqueue appends the payload to the queue tail.
func (q *RedisAutosaveQueue) Enqueue(ctx context.Context, raw []byte) error {
	return q.rdb.RPush(ctx, config.WorkerKey.AutosaveQueue, raw).Err()
}

// AutosaveService accepts periodic background saves from an open paper.
// Validation is synchronous so a dead attempt is rejected immediately; the
// durable write itself goes through the queue so a burst of autosaves
// never stalls the request path.
type AutosaveService struct {
	submissions SubmissionStore
	sessions    SessionStore
	exams       ExamStore
	queue       AutosaveQueue
	log         zerolog.Logger
}

// NewAutosaveService creates a new AutosaveService.
func NewAutosaveService(submissions SubmissionStore, sessions SessionStore, exams ExamStore, queue AutosaveQueue, log zerolog.Logger) *AutosaveService {
	return &AutosaveService{
		submissions: submissions,
		sessions:    sessions,
		exams:       exams,
		queue:       queue,
		log:         log.With().Str("component", "autosave_service").Logger(),
	}
}

// Save validates the attempt and enqueues the partial write. The caller
// gets an error, not a silent drop, when the attempt is already finalized
// or belongs to a different cycle.
func (s *AutosaveService) Save(ctx context.Context, rollNumber int, payloads []model.AnswerPayload, feedback *string, cycleToken string) error {
	sess, err := s.sessions.Get(ctx, rollNumber)
	if err != nil {
		return err
	}
	if !sess.HasSubmission() {
		return ErrNoActiveAttempt
	}

	sub, err := s.submissions.GetByID(ctx, sess.SubmissionID)
	if err != nil {
		return fmt.Errorf("get submission: %w", err)
	}
	if sub.RollNumber != rollNumber {
		return ErrNoActiveAttempt
	}
	if !sub.InProgress() {
		return ErrInactiveSubmission
	}

	exam, err := s.exams.GetByID(ctx, sub.ExamID)
	if err != nil {
		return fmt.Errorf("get exam: %w", err)
	}
	if exam.Security.SingleSession && cycleToken != sess.CanSaveOrSubmit {
		return ErrInvalidCycleToken
	}

	answers, err := model.BuildAnswerSet(payloads)
	if err != nil {
		return err
	}
	if len(answers) == 0 && feedback == nil {
		return nil
	}

	item := AutosavePayload{
		SubmissionID: sub.ID,
		Answers:      answers,
		Feedback:     feedback,
	}
	raw, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode autosave: %w", err)
	}
	if err := s.queue.Enqueue(ctx, raw); err != nil {
		return fmt.Errorf("enqueue autosave: %w", err)
	}
	return nil
}

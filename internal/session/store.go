// Package session holds the short-lived per-client exam-taking state.
// The store caches which exam and submission a student is working on plus
// the pinned question order and one-time tokens; it is never authoritative.
// On any mismatch with the durable submission row, the row wins and the
// session is rehydrated from it.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oesys/oes-backend/internal/config"
	"github.com/redis/go-redis/v9"
)

// State is one student's exam-taking session.
type State struct {
	RollNumber   int         `json:"roll_number"`
	ExamID       uuid.UUID   `json:"exam_id,omitempty"`
	SubmissionID uuid.UUID   `json:"submission_id,omitempty"`
	PinnedOrder  []uuid.UUID `json:"pinned_order,omitempty"`

	// One-time tokens, minted only when the exam's single-session policy is
	// active. CanStart admits exactly one paper render after entry;
	// CanSaveOrSubmit ties a save/submit POST to the cycle that rendered it.
	CanStart        string `json:"can_start,omitempty"`
	CanSaveOrSubmit string `json:"can_save_or_submit,omitempty"`
}

// HasExam reports whether the session references an exam.
func (s *State) HasExam() bool { return s.ExamID != uuid.Nil }

// HasSubmission reports whether the session references an attempt.
func (s *State) HasSubmission() bool { return s.SubmissionID != uuid.Nil }

// HasPinnedOrder reports whether a question order is pinned for the current
// render/submit cycle.
func (s *State) HasPinnedOrder() bool { return len(s.PinnedOrder) > 0 }

// ClearAttempt drops every attempt-scoped field, ending the current cycle.
// The student identity stays.
func (s *State) ClearAttempt() {
	s.ExamID = uuid.Nil
	s.SubmissionID = uuid.Nil
	s.PinnedOrder = nil
	s.CanStart = ""
	s.CanSaveOrSubmit = ""
}

// ClearExam drops only the exam reference (the student declined to start).
func (s *State) ClearExam() {
	s.ExamID = uuid.Nil
}

// Store persists session state in Redis with a TTL.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStore creates a session store.
func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

// Get loads the student's session, returning an empty one when absent or
// expired.
func (st *Store) Get(ctx context.Context, rollNumber int) (*State, error) {
	key := config.CacheKey.TakeExamSessionKey(rollNumber)
	raw, err := st.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return &State{RollNumber: rollNumber}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	s := &State{}
	if err := json.Unmarshal(raw, s); err != nil {
		// A corrupt session is recoverable: the durable submission row is
		// the source of truth, so start fresh.
		return &State{RollNumber: rollNumber}, nil
	}
	s.RollNumber = rollNumber
	return s, nil
}

// Save stores the session, refreshing its TTL.
func (st *Store) Save(ctx context.Context, s *State) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	key := config.CacheKey.TakeExamSessionKey(s.RollNumber)
	if err := st.rdb.Set(ctx, key, raw, st.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Delete removes the student's session entirely.
func (st *Store) Delete(ctx context.Context, rollNumber int) error {
	key := config.CacheKey.TakeExamSessionKey(rollNumber)
	return st.rdb.Del(ctx, key).Err()
}

package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/oesys/oes-backend/internal/grading"
	"github.com/oesys/oes-backend/internal/model"
	"github.com/oesys/oes-backend/internal/session"
	"github.com/rs/zerolog"
)

// Domain errors of the exam-taking flow.
var (
	ErrExamNotFound       = errors.New("exam not found")
	ErrExamClosed         = errors.New("exam is not open for entry")
	ErrWrongPassword      = errors.New("incorrect exam password")
	ErrSessionConflict    = errors.New("attempt is active in another session")
	ErrOtherAttemptOpen   = errors.New("another attempt is already in progress")
	ErrNoActiveAttempt    = errors.New("no active attempt in this session")
	ErrInactiveSubmission = errors.New("submission is not in progress")
	ErrInvalidCycleToken  = errors.New("invalid or spent cycle token")
)

// ExamStore is the exam lookup the state machine needs.
type ExamStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
}

// QuestionStore loads an exam's questions with options in authoring order.
type QuestionStore interface {
	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error)
}

// SubmissionStore is the durable attempt storage contract. Finalize must be
// atomic on the IN_PROGRESS guard; exactly one racing caller may win it.
type SubmissionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Submission, error)
	GetInProgressByStudent(ctx context.Context, rollNumber int) (*model.Submission, error)
	Create(ctx context.Context, s *model.Submission) error
	SaveAnswers(ctx context.Context, id uuid.UUID, answers model.AnswerSet, now time.Time) (bool, error)
	Finalize(ctx context.Context, id uuid.UUID, answers model.AnswerSet, score int, now time.Time) (*model.Submission, bool, error)
	ListInProgressByExam(ctx context.Context, examID uuid.UUID) ([]model.Submission, error)
}

// SessionStore is the short-lived per-client state contract.
type SessionStore interface {
	Get(ctx context.Context, rollNumber int) (*session.State, error)
	Save(ctx context.Context, s *session.State) error
}

// InstructorStore resolves the instructor shown on the initialization screen.
type InstructorStore interface {
	GetByID(ctx context.Context, id int) (*model.Instructor, error)
}

// TakeExamService drives a student's attempt through
// search → initialization → in-progress → finalization. The durable
// submission row is authoritative throughout; the session only caches.
type TakeExamService struct {
	exams       ExamStore
	questions   QuestionStore
	submissions SubmissionStore
	sessions    SessionStore
	instructors InstructorStore
	heartbeat   time.Duration
	log         zerolog.Logger
}

// NewTakeExamService creates a new TakeExamService. heartbeat is the
// freshness window of the single-session guard.
func NewTakeExamService(
	exams ExamStore,
	questions QuestionStore,
	submissions SubmissionStore,
	sessions SessionStore,
	instructors InstructorStore,
	heartbeat time.Duration,
	log zerolog.Logger,
) *TakeExamService {
	return &TakeExamService{
		exams:       exams,
		questions:   questions,
		submissions: submissions,
		sessions:    sessions,
		instructors: instructors,
		heartbeat:   heartbeat,
		log:         log.With().Str("component", "take_exam_service").Logger(),
	}
}

// SearchResult tells the caller which exam to initialize and whether the
// student is resuming an existing attempt.
type SearchResult struct {
	ExamID   uuid.UUID `json:"exam_id"`
	Resuming bool      `json:"resuming"`
}

// Search resolves an exam id for entry. A durable IN_PROGRESS attempt wins
// over both the searched id and whatever the session claims: the session is
// rehydrated from the row, which self-heals stale or missing session state.
func (s *TakeExamService) Search(ctx context.Context, rollNumber int, examID uuid.UUID) (*SearchResult, error) {
	sess, err := s.sessions.Get(ctx, rollNumber)
	if err != nil {
		return nil, err
	}

	if sub, err := s.openAttempt(ctx, rollNumber); err != nil {
		return nil, err
	} else if sub != nil {
		if err := s.guardSingleSession(ctx, sess, sub); err != nil {
			return nil, err
		}
		if sess.SubmissionID != sub.ID {
			// A stale cycle's order and tokens must not leak into this one.
			sess.ClearAttempt()
		}
		sess.ExamID = sub.ExamID
		sess.SubmissionID = sub.ID
		if err := s.sessions.Save(ctx, sess); err != nil {
			return nil, err
		}
		return &SearchResult{ExamID: sub.ExamID, Resuming: true}, nil
	}

	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}

	sess.ClearAttempt()
	sess.ExamID = exam.ID
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	return &SearchResult{ExamID: exam.ID}, nil
}

// InitializationView is what the initialization screen shows: the window,
// who set the exam, and which gates apply.
type InitializationView struct {
	ExamID           uuid.UUID `json:"exam_id"`
	Title            string    `json:"title"`
	CourseCode       string    `json:"course_code"`
	InstructorName   string    `json:"instructor_name"`
	InstructorEmail  string    `json:"instructor_email"`
	OpensAt          time.Time `json:"opens_at"`
	ClosesAt         time.Time `json:"closes_at"`
	Open             bool      `json:"open"`
	RequiresPassword bool      `json:"requires_password"`
	Resuming         bool      `json:"resuming"`
}

// Initialization describes the session's current exam before the student
// accepts, resumes, or declines.
func (s *TakeExamService) Initialization(ctx context.Context, rollNumber int) (*InitializationView, error) {
	sess, err := s.sessions.Get(ctx, rollNumber)
	if err != nil {
		return nil, err
	}
	if !sess.HasExam() {
		return nil, ErrNoActiveAttempt
	}

	resuming := false
	if sess.HasSubmission() {
		sub, err := s.submissions.GetByID(ctx, sess.SubmissionID)
		switch {
		case errors.Is(err, pgx.ErrNoRows) || (err == nil && !sub.InProgress()):
			// Stale submission reference; drop it and fall through.
			sess.SubmissionID = uuid.Nil
			if err := s.sessions.Save(ctx, sess); err != nil {
				return nil, err
			}
		case err != nil:
			return nil, fmt.Errorf("get submission: %w", err)
		default:
			resuming = true
			if sub.ExamID != sess.ExamID {
				// The durable row wins over the session's exam reference.
				sess.ExamID = sub.ExamID
				if err := s.sessions.Save(ctx, sess); err != nil {
					return nil, err
				}
			}
		}
	}

	exam, err := s.exams.GetByID(ctx, sess.ExamID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			sess.ClearExam()
			_ = s.sessions.Save(ctx, sess)
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}

	view := &InitializationView{
		ExamID:           exam.ID,
		Title:            exam.Title,
		CourseCode:       exam.CourseCode,
		OpensAt:          exam.OpensAt,
		ClosesAt:         exam.ClosesAt,
		Open:             exam.OpenAt(time.Now()),
		RequiresPassword: exam.Security.RequiresPassword(),
		Resuming:         resuming,
	}
	if instructor, err := s.instructors.GetByID(ctx, exam.InstructorID); err == nil {
		view.InstructorName = instructor.Name
		view.InstructorEmail = instructor.Email
	}
	return view, nil
}

// Accept starts a new attempt: window gate, password gate, single-session
// guard, then submission allocation. Insert races for the same (student,
// exam) collapse onto the existing row.
func (s *TakeExamService) Accept(ctx context.Context, rollNumber int, password string) (*model.Submission, error) {
	sess, err := s.sessions.Get(ctx, rollNumber)
	if err != nil {
		return nil, err
	}
	if !sess.HasExam() {
		return nil, ErrNoActiveAttempt
	}

	exam, err := s.exams.GetByID(ctx, sess.ExamID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}

	now := time.Now()
	if !exam.OpenAt(now) {
		return nil, ErrExamClosed
	}
	if exam.Security.RequiresPassword() && password != exam.Security.Password {
		return nil, ErrWrongPassword
	}

	if existing, err := s.openAttempt(ctx, rollNumber); err != nil {
		return nil, err
	} else if existing != nil {
		if existing.ExamID != exam.ID {
			return nil, ErrOtherAttemptOpen
		}
		if err := s.guardSingleSession(ctx, sess, existing); err != nil {
			return nil, err
		}
		return existing, s.adoptAttempt(ctx, sess, existing, exam)
	}

	sub := &model.Submission{ExamID: exam.ID, RollNumber: rollNumber}
	if err := s.submissions.Create(ctx, sub); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("create submission: %w", err)
		}
		// Concurrent accept from another tab won the insert; adopt its row.
		sub, err = s.openAttempt(ctx, rollNumber)
		if err != nil {
			return nil, err
		}
		if sub == nil {
			return nil, ErrInactiveSubmission
		}
	}

	return sub, s.adoptAttempt(ctx, sess, sub, exam)
}

// adoptAttempt points the session at the attempt and mints the can_start
// one-time token when the single-session policy applies.
func (s *TakeExamService) adoptAttempt(ctx context.Context, sess *session.State, sub *model.Submission, exam *model.Exam) error {
	sess.ExamID = sub.ExamID
	sess.SubmissionID = sub.ID
	sess.PinnedOrder = nil
	sess.CanSaveOrSubmit = ""
	if exam.Security.SingleSession {
		sess.CanStart = uuid.NewString()
	}
	return s.sessions.Save(ctx, sess)
}

// Resume re-enters an existing attempt without creating a new submission.
func (s *TakeExamService) Resume(ctx context.Context, rollNumber int) (*model.Submission, error) {
	sess, err := s.sessions.Get(ctx, rollNumber)
	if err != nil {
		return nil, err
	}

	sub, err := s.openAttempt(ctx, rollNumber)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrNoActiveAttempt
	}
	if err := s.guardSingleSession(ctx, sess, sub); err != nil {
		return nil, err
	}

	exam, err := s.exams.GetByID(ctx, sub.ExamID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}
	return sub, s.adoptAttempt(ctx, sess, sub, exam)
}

// Decline abandons the searched exam without touching any attempt.
func (s *TakeExamService) Decline(ctx context.Context, rollNumber int) error {
	sess, err := s.sessions.Get(ctx, rollNumber)
	if err != nil {
		return err
	}
	sess.ClearExam()
	return s.sessions.Save(ctx, sess)
}

// PaperOption is an option as rendered to the student (no correctness flag).
type PaperOption struct {
	ID         uuid.UUID `json:"id"`
	OptionText string    `json:"option_text"`
}

// PaperQuestion is a question in pinned order with any saved selection.
type PaperQuestion struct {
	ID              uuid.UUID        `json:"id"`
	QuestionText    string           `json:"question_text"`
	MultipleCorrect bool             `json:"multiple_correct"`
	Points          int              `json:"points"`
	Options         []PaperOption    `json:"options"`
	Selected        *model.Selection `json:"selected,omitempty"`
}

// PaperView is one render of the exam paper.
type PaperView struct {
	ExamID           uuid.UUID       `json:"exam_id"`
	SubmissionID     uuid.UUID       `json:"submission_id"`
	Title            string          `json:"title"`
	Questions        []PaperQuestion `json:"questions"`
	Feedback         string          `json:"feedback,omitempty"`
	RemainingSeconds int64           `json:"remaining_seconds"`
	// CycleToken must accompany save/submit when the single-session policy
	// is active; it is empty otherwise.
	CycleToken string `json:"cycle_token,omitempty"`
}

// Paper renders the attempt's questions. The first render of a cycle
// computes the order — authoring order, or a random permutation under the
// shuffle policy — and pins it into the session; every later render of the
// same cycle reuses the pinned order and pre-populates saved answers.
func (s *TakeExamService) Paper(ctx context.Context, rollNumber int) (*PaperView, error) {
	sess, err := s.sessions.Get(ctx, rollNumber)
	if err != nil {
		return nil, err
	}
	if !sess.HasSubmission() {
		return nil, ErrNoActiveAttempt
	}

	sub, err := s.submissions.GetByID(ctx, sess.SubmissionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveAttempt
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}
	if !sub.InProgress() {
		return nil, ErrInactiveSubmission
	}

	exam, err := s.exams.GetByID(ctx, sub.ExamID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}

	questions, err := s.questions.ListByExam(ctx, sub.ExamID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	if exam.Security.SingleSession {
		switch {
		case sess.CanStart != "":
			sess.CanStart = "" // one-time: spent on the first render
		case sess.CanSaveOrSubmit != "":
			// Reload within the cycle; keep the existing token.
		default:
			return nil, ErrSessionConflict
		}
		if sess.CanSaveOrSubmit == "" {
			sess.CanSaveOrSubmit = uuid.NewString()
		}
	}

	if !sess.HasPinnedOrder() {
		order := make([]uuid.UUID, len(questions))
		for i := range questions {
			order[i] = questions[i].ID
		}
		if exam.Security.Shuffle {
			rand.Shuffle(len(order), func(i, j int) {
				order[i], order[j] = order[j], order[i]
			})
		}
		sess.PinnedOrder = order
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}

	view := &PaperView{
		ExamID:       exam.ID,
		SubmissionID: sub.ID,
		Title:        exam.Title,
		Questions:    orderQuestions(questions, sess.PinnedOrder, sub.Answers),
		Feedback:     sub.Feedback,
		CycleToken:   sess.CanSaveOrSubmit,
	}
	if remaining := time.Until(exam.ClosesAt); remaining > 0 {
		view.RemainingSeconds = int64(remaining.Seconds())
	}
	return view, nil
}

// orderQuestions lays questions out in pinned order with saved selections.
// Questions added by the instructor after pinning go last; removed ones are
// skipped.
func orderQuestions(questions []model.Question, pinned []uuid.UUID, answers model.AnswerSet) []PaperQuestion {
	byID := make(map[uuid.UUID]*model.Question, len(questions))
	for i := range questions {
		byID[questions[i].ID] = &questions[i]
	}

	out := make([]PaperQuestion, 0, len(questions))
	seen := make(map[uuid.UUID]bool, len(pinned))
	appendQuestion := func(q *model.Question) {
		pq := PaperQuestion{
			ID:              q.ID,
			QuestionText:    q.QuestionText,
			MultipleCorrect: q.MultipleCorrect,
			Points:          q.Points,
		}
		for _, o := range q.Options {
			pq.Options = append(pq.Options, PaperOption{ID: o.ID, OptionText: o.OptionText})
		}
		if sel, ok := answers[q.ID]; ok {
			pq.Selected = &sel
		}
		out = append(out, pq)
	}

	for _, id := range pinned {
		if q, ok := byID[id]; ok {
			seen[id] = true
			appendQuestion(q)
		}
	}
	for i := range questions {
		if !seen[questions[i].ID] {
			appendQuestion(&questions[i])
		}
	}
	return out
}

// SaveAndExit merges the posted answers into the attempt (overwrite by
// question id), keeps it IN_PROGRESS, and ends the render/submit cycle.
func (s *TakeExamService) SaveAndExit(ctx context.Context, rollNumber int, payloads []model.AnswerPayload, cycleToken string) error {
	sess, sub, answers, err := s.prepareWrite(ctx, rollNumber, payloads, cycleToken)
	if err != nil {
		return err
	}

	saved, err := s.submissions.SaveAnswers(ctx, sub.ID, sub.Answers.Merge(answers), time.Now())
	if err != nil {
		return fmt.Errorf("save answers: %w", err)
	}
	if !saved {
		return ErrInactiveSubmission
	}

	sess.ClearAttempt()
	return s.sessions.Save(ctx, sess)
}

// SubmitResult reports the terminal state of an attempt. AlreadyFinalized
// is set when another trigger (a duplicate submit or the closing scheduler)
// won the finalize race; the values are the ones that caller produced.
type SubmitResult struct {
	SubmissionID     uuid.UUID `json:"submission_id"`
	TotalScore       int       `json:"total_score"`
	SubmittedAt      time.Time `json:"submitted_at"`
	AlreadyFinalized bool      `json:"already_finalized"`
}

// Submit merges the posted answers and finalizes the attempt in one unit of
// work. Finalizing an attempt that is no longer IN_PROGRESS is a no-op
// success reporting the stored score — never a re-score.
func (s *TakeExamService) Submit(ctx context.Context, rollNumber int, payloads []model.AnswerPayload, cycleToken string) (*SubmitResult, error) {
	sess, sub, answers, err := s.prepareWrite(ctx, rollNumber, payloads, cycleToken)
	if err != nil {
		if errors.Is(err, ErrInactiveSubmission) {
			// The attempt already reached its terminal state; report it.
			return s.finalizedResult(ctx, rollNumber)
		}
		return nil, err
	}

	questions, err := s.questions.ListByExam(ctx, sub.ExamID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	merged := sub.Answers.Merge(answers)
	score := grading.Score(questions, merged)

	final, finalized, err := s.submissions.Finalize(ctx, sub.ID, merged, score, time.Now())
	if err != nil {
		return nil, fmt.Errorf("finalize: %w", err)
	}
	if !finalized {
		s.log.Info().
			Str("submission_id", sub.ID.String()).
			Msg("Manual submit lost finalize race, reporting stored result")
	}

	sess.ClearAttempt()
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}

	return submitResult(final, !finalized), nil
}

// prepareWrite loads session and submission for a save/submit POST and
// converts the payload, enforcing the cycle token under single-session.
func (s *TakeExamService) prepareWrite(ctx context.Context, rollNumber int, payloads []model.AnswerPayload, cycleToken string) (*session.State, *model.Submission, model.AnswerSet, error) {
	sess, err := s.sessions.Get(ctx, rollNumber)
	if err != nil {
		return nil, nil, nil, err
	}
	if !sess.HasSubmission() {
		return nil, nil, nil, ErrNoActiveAttempt
	}

	sub, err := s.submissions.GetByID(ctx, sess.SubmissionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, nil, ErrNoActiveAttempt
		}
		return nil, nil, nil, fmt.Errorf("get submission: %w", err)
	}
	if sub.RollNumber != rollNumber {
		return nil, nil, nil, ErrNoActiveAttempt
	}
	if !sub.InProgress() {
		return nil, nil, nil, ErrInactiveSubmission
	}

	exam, err := s.exams.GetByID(ctx, sub.ExamID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("get exam: %w", err)
	}
	if exam.Security.SingleSession && cycleToken != sess.CanSaveOrSubmit {
		return nil, nil, nil, ErrInvalidCycleToken
	}

	answers, err := model.BuildAnswerSet(payloads)
	if err != nil {
		return nil, nil, nil, err
	}
	return sess, sub, answers, nil
}

// finalizedResult reports the already-terminal attempt for a late submit.
func (s *TakeExamService) finalizedResult(ctx context.Context, rollNumber int) (*SubmitResult, error) {
	sess, err := s.sessions.Get(ctx, rollNumber)
	if err != nil {
		return nil, err
	}
	sub, err := s.submissions.GetByID(ctx, sess.SubmissionID)
	if err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}

	sess.ClearAttempt()
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	return submitResult(sub, true), nil
}

func submitResult(sub *model.Submission, already bool) *SubmitResult {
	res := &SubmitResult{SubmissionID: sub.ID, AlreadyFinalized: already}
	if sub.TotalScore != nil {
		res.TotalScore = *sub.TotalScore
	}
	if sub.SubmittedAt != nil {
		res.SubmittedAt = *sub.SubmittedAt
	}
	return res
}

// CloseExpired finalizes every still-open attempt of an exam through the
// same guarded path as a manual submit. Called by the closing scheduler
// when a close job fires. One attempt's failure never blocks the rest.
func (s *TakeExamService) CloseExpired(ctx context.Context, examID uuid.UUID) error {
	subs, err := s.submissions.ListInProgressByExam(ctx, examID)
	if err != nil {
		return fmt.Errorf("list open attempts: %w", err)
	}
	if len(subs) == 0 {
		return nil
	}

	questions, err := s.questions.ListByExam(ctx, examID)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}

	now := time.Now()
	closed := 0
	for i := range subs {
		sub := &subs[i]
		score := grading.Score(questions, sub.Answers)
		_, finalized, err := s.submissions.Finalize(ctx, sub.ID, nil, score, now)
		if err != nil {
			// Isolate: log and continue with the remaining attempts.
			s.log.Error().Err(err).
				Str("submission_id", sub.ID.String()).
				Str("exam_id", examID.String()).
				Msg("Forced finalize failed")
			continue
		}
		if finalized {
			closed++
		}
	}

	s.log.Info().
		Str("exam_id", examID.String()).
		Int("closed", closed).
		Int("open", len(subs)).
		Msg("Expired exam attempts finalized")
	return nil
}

// ActiveAttempt returns the student's open attempt and its exam, for
// callers (the live channel) that need both without state transitions.
func (s *TakeExamService) ActiveAttempt(ctx context.Context, rollNumber int) (*model.Submission, *model.Exam, error) {
	sub, err := s.openAttempt(ctx, rollNumber)
	if err != nil {
		return nil, nil, err
	}
	if sub == nil {
		return nil, nil, ErrNoActiveAttempt
	}
	exam, err := s.exams.GetByID(ctx, sub.ExamID)
	if err != nil {
		return nil, nil, fmt.Errorf("get exam: %w", err)
	}
	return sub, exam, nil
}

// openAttempt fetches the student's IN_PROGRESS attempt, mapping the
// no-rows case to nil.
func (s *TakeExamService) openAttempt(ctx context.Context, rollNumber int) (*model.Submission, error) {
	sub, err := s.submissions.GetInProgressByStudent(ctx, rollNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get open attempt: %w", err)
	}
	return sub, nil
}

// guardSingleSession rejects entry when the policy restricts the exam to a
// single live session, the attempt has a fresh activity heartbeat, and the
// caller's session does not own it.
func (s *TakeExamService) guardSingleSession(ctx context.Context, sess *session.State, sub *model.Submission) error {
	exam, err := s.exams.GetByID(ctx, sub.ExamID)
	if err != nil {
		return fmt.Errorf("get exam: %w", err)
	}
	if !exam.Security.SingleSession {
		return nil
	}
	if sess.SubmissionID == sub.ID {
		return nil
	}
	if sub.ActiveWithin(s.heartbeat, time.Now()) {
		return ErrSessionConflict
	}
	return nil
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/oesys/oes-backend/internal/model"
	"github.com/oesys/oes-backend/internal/session"
	"github.com/rs/zerolog"
)

// ─── Fakes ──────────────────────────────────────────────────────────

type fakeExamStore struct {
	exams map[uuid.UUID]*model.Exam
}

func (f *fakeExamStore) GetByID(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	e, ok := f.exams[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *e
	return &cp, nil
}

type fakeQuestionStore struct {
	byExam map[uuid.UUID][]model.Question
}

func (f *fakeQuestionStore) ListByExam(_ context.Context, examID uuid.UUID) ([]model.Question, error) {
	return append([]model.Question(nil), f.byExam[examID]...), nil
}

// fakeSubmissionStore mimics the partial unique index and the guarded
// finalize of the real repository.
type fakeSubmissionStore struct {
	subs     map[uuid.UUID]*model.Submission
	onCreate func() // runs before the insert, to stage races
}

func newFakeSubmissionStore() *fakeSubmissionStore {
	return &fakeSubmissionStore{subs: make(map[uuid.UUID]*model.Submission)}
}

func (f *fakeSubmissionStore) GetByID(_ context.Context, id uuid.UUID) (*model.Submission, error) {
	s, ok := f.subs[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSubmissionStore) GetInProgressByStudent(_ context.Context, rollNumber int) (*model.Submission, error) {
	for _, s := range f.subs {
		if s.RollNumber == rollNumber && s.Status == model.SubmissionStatusInProgress {
			cp := *s
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeSubmissionStore) Create(_ context.Context, s *model.Submission) error {
	if f.onCreate != nil {
		f.onCreate()
	}
	for _, existing := range f.subs {
		if existing.ExamID == s.ExamID && existing.RollNumber == s.RollNumber &&
			existing.Status == model.SubmissionStatusInProgress {
			// ON CONFLICT DO NOTHING yields no row to scan.
			return pgx.ErrNoRows
		}
	}
	s.ID = uuid.New()
	s.Status = model.SubmissionStatusInProgress
	s.StartedAt = time.Now()
	s.UpdatedAt = s.StartedAt
	cp := *s
	f.subs[s.ID] = &cp
	return nil
}

func (f *fakeSubmissionStore) SaveAnswers(_ context.Context, id uuid.UUID, answers model.AnswerSet, now time.Time) (bool, error) {
	s, ok := f.subs[id]
	if !ok || s.Status != model.SubmissionStatusInProgress {
		return false, nil
	}
	s.Answers = answers
	s.UpdatedAt = now
	return true, nil
}

func (f *fakeSubmissionStore) Finalize(_ context.Context, id uuid.UUID, answers model.AnswerSet, score int, now time.Time) (*model.Submission, bool, error) {
	s, ok := f.subs[id]
	if !ok {
		return nil, false, pgx.ErrNoRows
	}
	if s.Status != model.SubmissionStatusInProgress {
		cp := *s
		return &cp, false, nil
	}
	if answers != nil {
		s.Answers = answers
	}
	s.Status = model.SubmissionStatusSubmitted
	s.TotalScore = &score
	s.SubmittedAt = &now
	s.UpdatedAt = now
	cp := *s
	return &cp, true, nil
}

func (f *fakeSubmissionStore) ListInProgressByExam(_ context.Context, examID uuid.UUID) ([]model.Submission, error) {
	var out []model.Submission
	for _, s := range f.subs {
		if s.ExamID == examID && s.Status == model.SubmissionStatusInProgress {
			out = append(out, *s)
		}
	}
	return out, nil
}

type fakeSessionStore struct {
	states map[int]*session.State
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{states: make(map[int]*session.State)}
}

func (f *fakeSessionStore) Get(_ context.Context, rollNumber int) (*session.State, error) {
	s, ok := f.states[rollNumber]
	if !ok {
		return &session.State{RollNumber: rollNumber}, nil
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessionStore) Save(_ context.Context, s *session.State) error {
	cp := *s
	f.states[s.RollNumber] = &cp
	return nil
}

type fakeInstructorStore struct{}

func (fakeInstructorStore) GetByID(_ context.Context, id int) (*model.Instructor, error) {
	return &model.Instructor{ID: id, Name: "Prof. Ada", Email: "ada@example.edu"}, nil
}

// ─── Fixtures ───────────────────────────────────────────────────────

const testRoll = 4211

type fixture struct {
	svc         *TakeExamService
	exams       *fakeExamStore
	questions   *fakeQuestionStore
	submissions *fakeSubmissionStore
	sessions    *fakeSessionStore
}

func newFixture() *fixture {
	exams := &fakeExamStore{exams: make(map[uuid.UUID]*model.Exam)}
	questions := &fakeQuestionStore{byExam: make(map[uuid.UUID][]model.Question)}
	submissions := newFakeSubmissionStore()
	sessions := newFakeSessionStore()
	svc := NewTakeExamService(exams, questions, submissions, sessions, fakeInstructorStore{}, time.Minute, zerolog.Nop())
	return &fixture{svc: svc, exams: exams, questions: questions, submissions: submissions, sessions: sessions}
}

// addExam registers an open exam with one single-correct question worth 2
// points and one multiple-correct question worth 3.
func (fx *fixture) addExam(security model.SecurityPolicy) (*model.Exam, []model.Question) {
	now := time.Now()
	exam := &model.Exam{
		ID:           uuid.New(),
		InstructorID: 1,
		CourseCode:   "CS101",
		Title:        "Midterm",
		OpensAt:      now.Add(-time.Hour),
		ClosesAt:     now.Add(time.Hour),
		Security:     security,
	}
	fx.exams.exams[exam.ID] = exam

	q1 := model.Question{ID: uuid.New(), ExamID: exam.ID, QuestionText: "Q1", Points: 2, OrderIndex: 0}
	q1.Options = []model.Option{
		{ID: uuid.New(), QuestionID: q1.ID, OptionText: "right", IsCorrect: true},
		{ID: uuid.New(), QuestionID: q1.ID, OptionText: "wrong"},
	}
	q2 := model.Question{ID: uuid.New(), ExamID: exam.ID, QuestionText: "Q2", MultipleCorrect: true, Points: 3, OrderIndex: 1}
	q2.Options = []model.Option{
		{ID: uuid.New(), QuestionID: q2.ID, OptionText: "a", IsCorrect: true},
		{ID: uuid.New(), QuestionID: q2.ID, OptionText: "b", IsCorrect: true},
		{ID: uuid.New(), QuestionID: q2.ID, OptionText: "c"},
	}
	qs := []model.Question{q1, q2}
	fx.questions.byExam[exam.ID] = qs
	return exam, qs
}

func (fx *fixture) enter(t *testing.T, password string) *model.Submission {
	t.Helper()
	ctx := context.Background()
	sub, err := fx.svc.Accept(ctx, testRoll, password)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	return sub
}

func correctAnswers(qs []model.Question) []model.AnswerPayload {
	single := qs[0].Options[0].ID
	return []model.AnswerPayload{
		{QuestionID: qs[0].ID, OptionID: &single},
		{QuestionID: qs[1].ID, OptionIDs: []uuid.UUID{qs[1].Options[0].ID, qs[1].Options[1].ID}},
	}
}

// ─── Entry ──────────────────────────────────────────────────────────

func TestSearch_NewExam(t *testing.T) {
	fx := newFixture()
	exam, _ := fx.addExam(model.SecurityPolicy{})
	ctx := context.Background()

	result, err := fx.svc.Search(ctx, testRoll, exam.ID)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.ExamID != exam.ID || result.Resuming {
		t.Fatalf("got %+v, want exam %s without resuming", result, exam.ID)
	}

	sess, _ := fx.sessions.Get(ctx, testRoll)
	if sess.ExamID != exam.ID {
		t.Fatalf("session exam = %s, want %s", sess.ExamID, exam.ID)
	}
}

func TestSearch_UnknownExam(t *testing.T) {
	fx := newFixture()

	_, err := fx.svc.Search(context.Background(), testRoll, uuid.New())
	if !errors.Is(err, ErrExamNotFound) {
		t.Fatalf("err = %v, want ErrExamNotFound", err)
	}
}

func TestSearch_RehydratesOpenAttempt(t *testing.T) {
	fx := newFixture()
	exam, _ := fx.addExam(model.SecurityPolicy{})
	ctx := context.Background()

	if _, err := fx.svc.Search(ctx, testRoll, exam.ID); err != nil {
		t.Fatalf("Search: %v", err)
	}
	sub := fx.enter(t, "")

	// Session evaporates (new device, Redis expiry); the row survives.
	delete(fx.sessions.states, testRoll)

	other, _ := fx.addExam(model.SecurityPolicy{})
	result, err := fx.svc.Search(ctx, testRoll, other.ID)
	if err != nil {
		t.Fatalf("Search after session loss: %v", err)
	}
	if !result.Resuming || result.ExamID != exam.ID {
		t.Fatalf("got %+v, want resume of exam %s", result, exam.ID)
	}

	sess, _ := fx.sessions.Get(ctx, testRoll)
	if sess.SubmissionID != sub.ID {
		t.Fatalf("session submission = %s, want %s", sess.SubmissionID, sub.ID)
	}
}

func TestSearch_SingleSessionGuard(t *testing.T) {
	fx := newFixture()
	exam, _ := fx.addExam(model.SecurityPolicy{SingleSession: true})
	ctx := context.Background()

	if _, err := fx.svc.Search(ctx, testRoll, exam.ID); err != nil {
		t.Fatalf("Search: %v", err)
	}
	sub := fx.enter(t, "")

	// A second client with no session hits the guard while the attempt
	// has a fresh heartbeat.
	delete(fx.sessions.states, testRoll)
	if _, err := fx.svc.Search(ctx, testRoll, exam.ID); !errors.Is(err, ErrSessionConflict) {
		t.Fatalf("err = %v, want ErrSessionConflict", err)
	}

	// Once the heartbeat goes stale, takeover is allowed.
	fx.submissions.subs[sub.ID].UpdatedAt = time.Now().Add(-2 * time.Minute)
	result, err := fx.svc.Search(ctx, testRoll, exam.ID)
	if err != nil {
		t.Fatalf("Search after stale heartbeat: %v", err)
	}
	if !result.Resuming {
		t.Fatal("want resume after takeover")
	}
}

func TestAccept_Gates(t *testing.T) {
	fx := newFixture()
	exam, _ := fx.addExam(model.SecurityPolicy{Password: "s3cret"})
	ctx := context.Background()

	if _, err := fx.svc.Search(ctx, testRoll, exam.ID); err != nil {
		t.Fatalf("Search: %v", err)
	}

	if _, err := fx.svc.Accept(ctx, testRoll, "nope"); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("err = %v, want ErrWrongPassword", err)
	}

	// Entry at exactly closes_at is rejected.
	fx.exams.exams[exam.ID].ClosesAt = time.Now()
	if _, err := fx.svc.Accept(ctx, testRoll, "s3cret"); !errors.Is(err, ErrExamClosed) {
		t.Fatalf("err = %v, want ErrExamClosed", err)
	}

	fx.exams.exams[exam.ID].ClosesAt = time.Now().Add(time.Hour)
	if _, err := fx.svc.Accept(ctx, testRoll, "s3cret"); err != nil {
		t.Fatalf("Accept with correct password: %v", err)
	}
}

func TestAccept_ConcurrentStartAdoptsWinner(t *testing.T) {
	fx := newFixture()
	exam, _ := fx.addExam(model.SecurityPolicy{})
	ctx := context.Background()

	if _, err := fx.svc.Search(ctx, testRoll, exam.ID); err != nil {
		t.Fatalf("Search: %v", err)
	}

	// Another tab wins the insert between our existence check and create.
	var winner *model.Submission
	fx.submissions.onCreate = func() {
		if winner != nil {
			return
		}
		winner = &model.Submission{ExamID: exam.ID, RollNumber: testRoll}
		store := fx.submissions
		store.onCreate = nil
		if err := store.Create(ctx, winner); err != nil {
			t.Fatalf("stage winner: %v", err)
		}
		store.onCreate = func() {}
	}

	sub, err := fx.svc.Accept(ctx, testRoll, "")
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if sub.ID != winner.ID {
		t.Fatalf("adopted %s, want winner %s", sub.ID, winner.ID)
	}
	if len(fx.submissions.subs) != 1 {
		t.Fatalf("submission rows = %d, want 1", len(fx.submissions.subs))
	}
}

// ─── Paper ──────────────────────────────────────────────────────────

func TestPaper_PinsShuffledOrder(t *testing.T) {
	fx := newFixture()
	exam, _ := fx.addExam(model.SecurityPolicy{Shuffle: true})
	ctx := context.Background()

	if _, err := fx.svc.Search(ctx, testRoll, exam.ID); err != nil {
		t.Fatalf("Search: %v", err)
	}
	fx.enter(t, "")

	first, err := fx.svc.Paper(ctx, testRoll)
	if err != nil {
		t.Fatalf("Paper: %v", err)
	}
	second, err := fx.svc.Paper(ctx, testRoll)
	if err != nil {
		t.Fatalf("Paper reload: %v", err)
	}

	if len(first.Questions) != 2 || len(second.Questions) != len(first.Questions) {
		t.Fatalf("question counts = %d/%d, want 2/2", len(first.Questions), len(second.Questions))
	}
	for i := range first.Questions {
		if first.Questions[i].ID != second.Questions[i].ID {
			t.Fatalf("order drifted at %d: %s vs %s", i, first.Questions[i].ID, second.Questions[i].ID)
		}
	}

	for _, q := range first.Questions {
		for _, o := range q.Options {
			if o.OptionText == "" {
				t.Fatal("option text missing from render")
			}
		}
	}
}

func TestPaper_SingleSessionTokenFlow(t *testing.T) {
	fx := newFixture()
	exam, _ := fx.addExam(model.SecurityPolicy{SingleSession: true})
	ctx := context.Background()

	if _, err := fx.svc.Search(ctx, testRoll, exam.ID); err != nil {
		t.Fatalf("Search: %v", err)
	}
	fx.enter(t, "")

	view, err := fx.svc.Paper(ctx, testRoll)
	if err != nil {
		t.Fatalf("Paper: %v", err)
	}
	if view.CycleToken == "" {
		t.Fatal("want cycle token under single-session policy")
	}

	sess, _ := fx.sessions.Get(ctx, testRoll)
	if sess.CanStart != "" {
		t.Fatal("can_start not consumed by first render")
	}

	// Reload inside the cycle keeps the same token.
	again, err := fx.svc.Paper(ctx, testRoll)
	if err != nil {
		t.Fatalf("Paper reload: %v", err)
	}
	if again.CycleToken != view.CycleToken {
		t.Fatalf("cycle token changed on reload: %s vs %s", again.CycleToken, view.CycleToken)
	}

	// A session with neither token never reaches the paper.
	sess.CanStart = ""
	sess.CanSaveOrSubmit = ""
	fx.sessions.states[testRoll] = sess
	if _, err := fx.svc.Paper(ctx, testRoll); !errors.Is(err, ErrSessionConflict) {
		t.Fatalf("err = %v, want ErrSessionConflict", err)
	}
}

func TestPaper_PrepopulatesSavedAnswers(t *testing.T) {
	fx := newFixture()
	exam, qs := fx.addExam(model.SecurityPolicy{})
	ctx := context.Background()

	if _, err := fx.svc.Search(ctx, testRoll, exam.ID); err != nil {
		t.Fatalf("Search: %v", err)
	}
	sub := fx.enter(t, "")

	single := qs[0].Options[0].ID
	fx.submissions.subs[sub.ID].Answers = model.AnswerSet{
		qs[0].ID: model.SingleSelection(single),
	}

	view, err := fx.svc.Paper(ctx, testRoll)
	if err != nil {
		t.Fatalf("Paper: %v", err)
	}
	var found bool
	for _, q := range view.Questions {
		if q.ID == qs[0].ID {
			found = true
			if q.Selected == nil || q.Selected.Option == nil || *q.Selected.Option != single {
				t.Fatalf("selected = %+v, want %s", q.Selected, single)
			}
		}
	}
	if !found {
		t.Fatal("answered question missing from render")
	}
}

// ─── Save / Submit ──────────────────────────────────────────────────

func TestSaveAndExit_KeepsAttemptOpen(t *testing.T) {
	fx := newFixture()
	exam, qs := fx.addExam(model.SecurityPolicy{})
	ctx := context.Background()

	if _, err := fx.svc.Search(ctx, testRoll, exam.ID); err != nil {
		t.Fatalf("Search: %v", err)
	}
	sub := fx.enter(t, "")
	if _, err := fx.svc.Paper(ctx, testRoll); err != nil {
		t.Fatalf("Paper: %v", err)
	}

	if err := fx.svc.SaveAndExit(ctx, testRoll, correctAnswers(qs), ""); err != nil {
		t.Fatalf("SaveAndExit: %v", err)
	}

	stored := fx.submissions.subs[sub.ID]
	if stored.Status != model.SubmissionStatusInProgress {
		t.Fatalf("status = %s, want IN_PROGRESS", stored.Status)
	}
	if len(stored.Answers) != 2 {
		t.Fatalf("answers = %d, want 2", len(stored.Answers))
	}
	if stored.TotalScore != nil {
		t.Fatal("save must not grade")
	}

	sess, _ := fx.sessions.Get(ctx, testRoll)
	if sess.HasSubmission() || sess.HasPinnedOrder() {
		t.Fatal("save-and-exit must end the cycle")
	}
}

func TestSubmit_GradesAndFinalizes(t *testing.T) {
	fx := newFixture()
	exam, qs := fx.addExam(model.SecurityPolicy{})
	ctx := context.Background()

	if _, err := fx.svc.Search(ctx, testRoll, exam.ID); err != nil {
		t.Fatalf("Search: %v", err)
	}
	fx.enter(t, "")
	if _, err := fx.svc.Paper(ctx, testRoll); err != nil {
		t.Fatalf("Paper: %v", err)
	}

	result, err := fx.svc.Submit(ctx, testRoll, correctAnswers(qs), "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.AlreadyFinalized {
		t.Fatal("first submit reported as duplicate")
	}
	if result.TotalScore != 5 {
		t.Fatalf("score = %d, want 5", result.TotalScore)
	}

	stored := fx.submissions.subs[result.SubmissionID]
	if stored.Status != model.SubmissionStatusSubmitted || stored.SubmittedAt == nil {
		t.Fatalf("stored = %+v, want SUBMITTED with timestamp", stored)
	}

	sess, _ := fx.sessions.Get(ctx, testRoll)
	if sess.HasSubmission() {
		t.Fatal("submit must clear the session attempt")
	}
}

func TestSubmit_DuplicateIsNoOp(t *testing.T) {
	fx := newFixture()
	exam, qs := fx.addExam(model.SecurityPolicy{})
	ctx := context.Background()

	if _, err := fx.svc.Search(ctx, testRoll, exam.ID); err != nil {
		t.Fatalf("Search: %v", err)
	}
	sub := fx.enter(t, "")
	if _, err := fx.svc.Paper(ctx, testRoll); err != nil {
		t.Fatalf("Paper: %v", err)
	}

	first, err := fx.svc.Submit(ctx, testRoll, correctAnswers(qs), "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// The retry races in late: session still points at the attempt.
	sess, _ := fx.sessions.Get(ctx, testRoll)
	sess.SubmissionID = sub.ID
	fx.sessions.states[testRoll] = sess

	// Even with different answers, a finalized attempt is never re-scored.
	second, err := fx.svc.Submit(ctx, testRoll, nil, "")
	if err != nil {
		t.Fatalf("duplicate Submit: %v", err)
	}
	if !second.AlreadyFinalized {
		t.Fatal("duplicate submit not reported as already finalized")
	}
	if second.TotalScore != first.TotalScore {
		t.Fatalf("score changed on duplicate: %d vs %d", second.TotalScore, first.TotalScore)
	}
}

// ─── Forced close ───────────────────────────────────────────────────

func TestCloseExpired_FinalizesFromStoredAnswers(t *testing.T) {
	fx := newFixture()
	exam, qs := fx.addExam(model.SecurityPolicy{})
	ctx := context.Background()

	if _, err := fx.svc.Search(ctx, testRoll, exam.ID); err != nil {
		t.Fatalf("Search: %v", err)
	}
	sub := fx.enter(t, "")

	// Half-right autosaved state: single question correct, multi untouched.
	single := qs[0].Options[0].ID
	fx.submissions.subs[sub.ID].Answers = model.AnswerSet{
		qs[0].ID: model.SingleSelection(single),
	}

	if err := fx.svc.CloseExpired(ctx, exam.ID); err != nil {
		t.Fatalf("CloseExpired: %v", err)
	}

	stored := fx.submissions.subs[sub.ID]
	if stored.Status != model.SubmissionStatusSubmitted {
		t.Fatalf("status = %s, want SUBMITTED", stored.Status)
	}
	if stored.TotalScore == nil || *stored.TotalScore != 2 {
		t.Fatalf("score = %v, want 2", stored.TotalScore)
	}
}

func TestCloseExpired_ThenManualSubmitIsNoOp(t *testing.T) {
	fx := newFixture()
	exam, qs := fx.addExam(model.SecurityPolicy{})
	ctx := context.Background()

	if _, err := fx.svc.Search(ctx, testRoll, exam.ID); err != nil {
		t.Fatalf("Search: %v", err)
	}
	fx.enter(t, "")
	if _, err := fx.svc.Paper(ctx, testRoll); err != nil {
		t.Fatalf("Paper: %v", err)
	}

	if err := fx.svc.CloseExpired(ctx, exam.ID); err != nil {
		t.Fatalf("CloseExpired: %v", err)
	}

	result, err := fx.svc.Submit(ctx, testRoll, correctAnswers(qs), "")
	if err != nil {
		t.Fatalf("Submit after close: %v", err)
	}
	if !result.AlreadyFinalized {
		t.Fatal("late submit not reported as already finalized")
	}
	if result.TotalScore != 0 {
		t.Fatalf("late answers scored: %d, want 0", result.TotalScore)
	}
}

func TestCloseExpired_LeavesFinalizedAlone(t *testing.T) {
	fx := newFixture()
	exam, qs := fx.addExam(model.SecurityPolicy{})
	ctx := context.Background()

	if _, err := fx.svc.Search(ctx, testRoll, exam.ID); err != nil {
		t.Fatalf("Search: %v", err)
	}
	fx.enter(t, "")
	if _, err := fx.svc.Paper(ctx, testRoll); err != nil {
		t.Fatalf("Paper: %v", err)
	}
	result, err := fx.svc.Submit(ctx, testRoll, correctAnswers(qs), "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if err := fx.svc.CloseExpired(ctx, exam.ID); err != nil {
		t.Fatalf("CloseExpired: %v", err)
	}

	stored := fx.submissions.subs[result.SubmissionID]
	if *stored.TotalScore != result.TotalScore {
		t.Fatalf("forced close re-scored: %d vs %d", *stored.TotalScore, result.TotalScore)
	}
}

// ─── Misc transitions ───────────────────────────────────────────────

func TestDecline_ClearsExamOnly(t *testing.T) {
	fx := newFixture()
	exam, _ := fx.addExam(model.SecurityPolicy{})
	ctx := context.Background()

	if _, err := fx.svc.Search(ctx, testRoll, exam.ID); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if err := fx.svc.Decline(ctx, testRoll); err != nil {
		t.Fatalf("Decline: %v", err)
	}

	if _, err := fx.svc.Initialization(ctx, testRoll); !errors.Is(err, ErrNoActiveAttempt) {
		t.Fatalf("err = %v, want ErrNoActiveAttempt", err)
	}
}

func TestInitialization_ReportsGates(t *testing.T) {
	fx := newFixture()
	exam, _ := fx.addExam(model.SecurityPolicy{Password: "pw"})
	ctx := context.Background()

	if _, err := fx.svc.Search(ctx, testRoll, exam.ID); err != nil {
		t.Fatalf("Search: %v", err)
	}

	view, err := fx.svc.Initialization(ctx, testRoll)
	if err != nil {
		t.Fatalf("Initialization: %v", err)
	}
	if !view.Open || !view.RequiresPassword || view.Resuming {
		t.Fatalf("view = %+v, want open, password-gated, not resuming", view)
	}
	if view.InstructorName == "" {
		t.Fatal("instructor missing from initialization view")
	}
}

func TestResume_RejectsWithoutAttempt(t *testing.T) {
	fx := newFixture()

	_, err := fx.svc.Resume(context.Background(), testRoll)
	if !errors.Is(err, ErrNoActiveAttempt) {
		t.Fatalf("err = %v, want ErrNoActiveAttempt", err)
	}
}

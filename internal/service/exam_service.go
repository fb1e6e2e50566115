package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/oesys/oes-backend/internal/model"
	"github.com/oesys/oes-backend/internal/repository"
	"github.com/rs/zerolog"
)

// Authoring-side errors.
var (
	ErrNotExamOwner      = errors.New("exam belongs to another instructor")
	ErrSingleCorrectRule = errors.New("single-correct question must have exactly one correct option")
)

// Rescheduler is notified when an exam's closing time is created or edited
// so its close job is replaced without waiting for the next scan.
type Rescheduler interface {
	ScheduleClose(exam *model.Exam)
}

// ExamService covers the instructor surface: exam authoring, question
// replacement, and exposing finalized submissions for review.
type ExamService struct {
	exams       *repository.ExamRepository
	questions   *repository.QuestionRepository
	submissions *repository.SubmissionRepository
	scheduler   Rescheduler
	log         zerolog.Logger
}

// NewExamService creates a new ExamService. scheduler may be nil in tests.
func NewExamService(
	exams *repository.ExamRepository,
	questions *repository.QuestionRepository,
	submissions *repository.SubmissionRepository,
	scheduler Rescheduler,
	log zerolog.Logger,
) *ExamService {
	return &ExamService{
		exams:       exams,
		questions:   questions,
		submissions: submissions,
		scheduler:   scheduler,
		log:         log.With().Str("component", "exam_service").Logger(),
	}
}

// Create makes a new exam owned by the instructor and registers its close job.
func (s *ExamService) Create(ctx context.Context, instructorID int, req *model.CreateExamRequest) (*model.Exam, error) {
	exam := &model.Exam{
		InstructorID: instructorID,
		CourseCode:   req.CourseCode,
		Title:        req.Title,
		OpensAt:      req.OpensAt,
		ClosesAt:     req.ClosesAt,
	}
	if req.Security != nil {
		exam.Security = *req.Security
	}

	if err := s.exams.Create(ctx, exam); err != nil {
		return nil, fmt.Errorf("create exam: %w", err)
	}
	if s.scheduler != nil {
		s.scheduler.ScheduleClose(exam)
	}
	return exam, nil
}

// UpdateAvailability edits the window of an owned exam. The close job is
// replaced immediately; the periodic scan would also catch it.
func (s *ExamService) UpdateAvailability(ctx context.Context, instructorID int, examID uuid.UUID, req *model.UpdateAvailabilityRequest) (*model.Exam, error) {
	exam, err := s.ownedExam(ctx, instructorID, examID)
	if err != nil {
		return nil, err
	}

	if err := s.exams.UpdateAvailability(ctx, examID, req.OpensAt, req.ClosesAt); err != nil {
		return nil, fmt.Errorf("update availability: %w", err)
	}
	exam.OpensAt = req.OpensAt
	exam.ClosesAt = req.ClosesAt

	if s.scheduler != nil {
		s.scheduler.ScheduleClose(exam)
	}
	return exam, nil
}

// ReplaceQuestions swaps the exam's whole question set in one transaction.
// Open attempts keep their pinned order; removed questions simply stop
// rendering and stop scoring.
func (s *ExamService) ReplaceQuestions(ctx context.Context, instructorID int, examID uuid.UUID, req *model.ReplaceQuestionsRequest) ([]model.Question, error) {
	if _, err := s.ownedExam(ctx, instructorID, examID); err != nil {
		return nil, err
	}

	questions := make([]model.Question, 0, len(req.Questions))
	for i, q := range req.Questions {
		correct := 0
		question := model.Question{
			ExamID:          examID,
			QuestionText:    q.QuestionText,
			MultipleCorrect: q.MultipleCorrect,
			Points:          q.Points,
			OrderIndex:      q.OrderIndex,
		}
		if question.Points == 0 {
			question.Points = 1
		}
		if question.OrderIndex == 0 {
			question.OrderIndex = i
		}
		for _, o := range q.Options {
			if o.IsCorrect {
				correct++
			}
			question.Options = append(question.Options, model.Option{
				OptionText: o.OptionText,
				IsCorrect:  o.IsCorrect,
			})
		}
		if !q.MultipleCorrect && correct != 1 {
			return nil, ErrSingleCorrectRule
		}
		questions = append(questions, question)
	}
	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].OrderIndex < questions[j].OrderIndex
	})

	if err := s.questions.ReplaceForExam(ctx, examID, questions); err != nil {
		return nil, fmt.Errorf("replace questions: %w", err)
	}
	return s.questions.ListByExam(ctx, examID)
}

// ListByInstructor returns the instructor's exams, newest first.
func (s *ExamService) ListByInstructor(ctx context.Context, instructorID int) ([]model.Exam, error) {
	return s.exams.ListByInstructor(ctx, instructorID)
}

// ReviewEntry is one finalized attempt as listed for review.
type ReviewEntry struct {
	Submission model.Submission `json:"submission"`
}

// ListSubmitted returns an owned exam's finalized attempts with their
// recorded scores. IN_PROGRESS attempts are never exposed here.
func (s *ExamService) ListSubmitted(ctx context.Context, instructorID int, examID uuid.UUID) ([]model.Submission, error) {
	if _, err := s.ownedExam(ctx, instructorID, examID); err != nil {
		return nil, err
	}
	return s.submissions.ListSubmittedByExam(ctx, examID)
}

func (s *ExamService) ownedExam(ctx context.Context, instructorID int, examID uuid.UUID) (*model.Exam, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	if exam.InstructorID != instructorID {
		return nil, ErrNotExamOwner
	}
	return exam, nil
}

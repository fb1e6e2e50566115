package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oesys/oes-backend/internal/middleware"
	"github.com/oesys/oes-backend/internal/model"
	"github.com/oesys/oes-backend/internal/response"
	"github.com/oesys/oes-backend/internal/service"
	"github.com/oesys/oes-backend/internal/validator"
)

// TakeExamHandler exposes the exam-taking flow to students.
type TakeExamHandler struct {
	takeExamService *service.TakeExamService
	autosaveService *service.AutosaveService
}

// NewTakeExamHandler creates a new TakeExamHandler.
func NewTakeExamHandler(takeExamService *service.TakeExamService, autosaveService *service.AutosaveService) *TakeExamHandler {
	return &TakeExamHandler{
		takeExamService: takeExamService,
		autosaveService: autosaveService,
	}
}

// Search godoc
// POST /api/v1/take-exam/search
// Resolves an exam id; an existing open attempt overrides the searched id.
func (h *TakeExamHandler) Search(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.SearchExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.takeExamService.Search(c.Request.Context(), claims.RollNumber, req.ExamID)
	if err != nil {
		failTakeExam(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// Initialization godoc
// GET /api/v1/take-exam/initialization
// Shows the session's current exam before accept/resume/decline.
func (h *TakeExamHandler) Initialization(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	view, err := h.takeExamService.Initialization(c.Request.Context(), claims.RollNumber)
	if err != nil {
		failTakeExam(c, err)
		return
	}

	response.Success(c, http.StatusOK, view)
}

// Accept godoc
// POST /api/v1/take-exam/accept
// Starts (or adopts) an attempt after the window and password gates pass.
func (h *TakeExamHandler) Accept(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.AcceptExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sub, err := h.takeExamService.Accept(c.Request.Context(), claims.RollNumber, req.Password)
	if err != nil {
		failTakeExam(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"submission_id": sub.ID,
		"exam_id":       sub.ExamID,
		"started_at":    sub.StartedAt,
	})
}

// Resume godoc
// POST /api/v1/take-exam/resume
func (h *TakeExamHandler) Resume(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sub, err := h.takeExamService.Resume(c.Request.Context(), claims.RollNumber)
	if err != nil {
		failTakeExam(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"submission_id": sub.ID,
		"exam_id":       sub.ExamID,
		"started_at":    sub.StartedAt,
	})
}

// Decline godoc
// POST /api/v1/take-exam/decline
func (h *TakeExamHandler) Decline(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	if err := h.takeExamService.Decline(c.Request.Context(), claims.RollNumber); err != nil {
		failTakeExam(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// Paper godoc
// GET /api/v1/take-exam/paper
// Renders the paper in pinned order with saved answers pre-populated.
func (h *TakeExamHandler) Paper(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	view, err := h.takeExamService.Paper(c.Request.Context(), claims.RollNumber)
	if err != nil {
		failTakeExam(c, err)
		return
	}

	response.Success(c, http.StatusOK, view)
}

// Save godoc
// POST /api/v1/take-exam/save
// Saves answers and exits the cycle without finalizing.
func (h *TakeExamHandler) Save(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.AnswerSheetRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.takeExamService.SaveAndExit(c.Request.Context(), claims.RollNumber, req.Answers, req.CycleToken); err != nil {
		failTakeExam(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// Submit godoc
// POST /api/v1/take-exam/submit
// Finalizes the attempt. A duplicate submit gets the stored result back.
func (h *TakeExamHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.AnswerSheetRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.takeExamService.Submit(c.Request.Context(), claims.RollNumber, req.Answers, req.CycleToken)
	if err != nil {
		failTakeExam(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// Autosave godoc
// POST /api/v1/take-exam/autosave
// Accepts a partial background save; rejected synchronously when the
// attempt is no longer writable, queued for persistence otherwise.
func (h *TakeExamHandler) Autosave(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.AutosaveRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	err := h.autosaveService.Save(c.Request.Context(), claims.RollNumber, req.Answers, req.Feedback, req.CycleToken)
	if err != nil {
		failTakeExam(c, err)
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{})
}

// failTakeExam maps exam-taking domain errors onto the response taxonomy.
func failTakeExam(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExamNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrExamClosed):
		response.Fail(c, http.StatusConflict, response.ErrExamClosed)
	case errors.Is(err, service.ErrWrongPassword):
		response.Fail(c, http.StatusForbidden, response.ErrWrongPassword)
	case errors.Is(err, service.ErrSessionConflict), errors.Is(err, service.ErrInvalidCycleToken):
		response.Fail(c, http.StatusConflict, response.ErrSessionConflict)
	case errors.Is(err, service.ErrOtherAttemptOpen):
		response.Fail(c, http.StatusConflict, response.ErrPolicyViolation)
	case errors.Is(err, service.ErrNoActiveAttempt):
		response.Fail(c, http.StatusConflict, response.ErrNoActiveAttempt)
	case errors.Is(err, service.ErrInactiveSubmission):
		response.Fail(c, http.StatusConflict, response.ErrInvalidState)
	case errors.Is(err, model.ErrAmbiguousSelection):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
